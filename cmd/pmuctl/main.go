// pmuctl is the host-side tool for talking to pmud over the wire
// protocol: ping/caps, single channel get/set, whole-config upload and
// download, and a telemetry decode-print loop. Subcommand dispatch
// follows the same os.Args[1] switch as pmud's own main.go (and the
// teacher's cmd/multiserver); the address/id/value arguments are
// positional, and each subcommand checks their count with requireArgs.
// Every command dials through hostlink.Link, which carries either
// transport pmud's host-link protocol runs over: TCP by default, or a
// serial cable when addr has a "serial:" prefix.
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
)

// Version is injected via ldflags at build time.
var Version = "dev"

func root() {
	str := `pmuctl talks to a running pmud over its wire protocol link, over
TCP or a direct serial cable (see help).

Usage:
	pmuctl <command> [args]

Commands:
	ping <addr>
	caps <addr>
	get <addr> <channel-id>
	set <addr> <channel-id> <value>
	configget <addr> <outfile>
	configset <addr> <infile>
	telemetry <addr> [seconds]
	help
	version`
	fmt.Println(str)
}

func help() {
	str := `pmuctl expects <addr> in host:port form, matching the Addr a pmud
instance is listening on (default :7070), or in "serial:<device>" or
"serial:<device>:<baud>" form (baud defaults to 9600) to reach pmud
over a direct serial cable instead of TCP.

configset uploads a whole binary configuration record in a single
frame and waits for pmud to validate, persist, and reload it; it fails
the same way pmud's own CmdSetConfig does if the record's CRC or any
channel definition is invalid. Records larger than one frame's payload
aren't supported yet (see pmud's CmdSetConfig doc comment).

telemetry subscribes to CmdTelemData and prints one decoded line per
packet for the given number of seconds (default 5), then stops the
stream and disconnects.`
	fmt.Println(str)
}

func pversion() {
	fmt.Printf("pmuctl version %v\n", Version)
}

func main() {
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	switch args[1] {
	case "help":
		help()
	case "version":
		pversion()
	case "ping":
		requireArgs(args, 3, "pmuctl ping <addr>")
		cmdPing(args[2])
	case "caps":
		requireArgs(args, 3, "pmuctl caps <addr>")
		cmdCaps(args[2])
	case "get":
		requireArgs(args, 4, "pmuctl get <addr> <channel-id>")
		cmdGet(args[2], mustParseID(args[3]))
	case "set":
		requireArgs(args, 5, "pmuctl set <addr> <channel-id> <value>")
		v, err := strconv.ParseInt(args[4], 10, 32)
		if err != nil {
			log.Fatalf("invalid value %q: %v", args[4], err)
		}
		cmdSet(args[2], mustParseID(args[3]), int32(v))
	case "configget":
		requireArgs(args, 4, "pmuctl configget <addr> <outfile>")
		cmdConfigGet(args[2], args[3])
	case "configset":
		requireArgs(args, 4, "pmuctl configset <addr> <infile>")
		cmdConfigSet(args[2], args[3])
	case "telemetry":
		if len(args) < 3 {
			log.Fatal("usage: pmuctl telemetry <addr> [seconds]")
		}
		seconds := 5
		if len(args) >= 4 {
			n, err := strconv.Atoi(args[3])
			if err != nil {
				log.Fatalf("invalid seconds %q: %v", args[3], err)
			}
			seconds = n
		}
		cmdTelemetry(args[2], time.Duration(seconds)*time.Second)
	default:
		log.Fatalf("unknown command %q", args[1])
	}
}

func requireArgs(args []string, n int, usage string) {
	if len(args) < n {
		log.Fatalf("usage: %s", usage)
	}
}

func mustParseID(s string) uint16 {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		log.Fatalf("invalid channel id %q: %v", s, err)
	}
	return uint16(n)
}

func ok(format string, a ...interface{}) {
	color.New(color.FgGreen).Printf(format+"\n", a...)
}

func fail(format string, a ...interface{}) {
	color.New(color.FgRed).Printf(format+"\n", a...)
	os.Exit(1)
}
