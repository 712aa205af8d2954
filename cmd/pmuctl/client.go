package main

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/tarm/serial"

	"github.com/rakyury/pmu-30-sub009/hostlink"
	"github.com/rakyury/pmu-30-sub009/wire"
)

// dialTimeout bounds both each connect attempt (hostlink.Link's
// Timeout; Open's own retry window is a fixed 3s) and each
// request/response round trip; pmuctl is
// an interactive tool, invoked once per command from a shell, so a
// single straightforward deadline is enough.
const dialTimeout = 3 * time.Second

var errTimeout = errors.New("pmuctl: no response from daemon")

// parseAddr turns a pmuctl address argument into hostlink dial
// parameters. "serial:/dev/ttyUSB0:9600" selects the serial transport
// at the given baud (9600 if the baud segment is omitted or not a
// number); anything else is dialed as a TCP host:port, matching
// pmud's own Addr setting.
func parseAddr(addr string) (isSerial bool, dialAddr string, serCfg *serial.Config) {
	rest, isSerial := strings.CutPrefix(addr, "serial:")
	if !isSerial {
		return false, addr, nil
	}
	device := rest
	baud := 9600
	if i := strings.LastIndex(rest, ":"); i >= 0 {
		if n, err := strconv.Atoi(rest[i+1:]); err == nil {
			device = rest[:i]
			baud = n
		}
	}
	return true, device, &serial.Config{Name: device, Baud: baud, ReadTimeout: 500 * time.Millisecond}
}

// openLink dials addr over hostlink.Link, the same framed transport a
// non-CLI host integration would embed, and wires onFrame/onError
// before Open so the pump goroutine never observes an unset callback.
func openLink(addr string, onFrame func(wire.Command, []byte), onError func(wire.ErrorKind)) (*hostlink.Link, error) {
	isSerial, dialAddr, serCfg := parseAddr(addr)
	l := hostlink.New(dialAddr, isSerial, serCfg)
	l.Timeout = dialTimeout
	l.OnFrame = onFrame
	l.OnError = onError
	if err := l.Open(); err != nil {
		return nil, err
	}
	return l, nil
}

// request opens a short-lived link, writes one frame, and blocks for
// the first frame back (ping/caps/get/set/config are all strict
// request-reply). Each call opens a fresh link rather than holding one
// open across subcommands, since pmuctl is invoked once per command.
func request(addr string, cmd wire.Command, payload []byte) (wire.Command, []byte, error) {
	type result struct {
		cmd     wire.Command
		payload []byte
	}
	resCh := make(chan result, 1)
	errCh := make(chan wire.ErrorKind, 1)

	l, err := openLink(addr,
		func(c wire.Command, pl []byte) {
			if c == wire.CmdError {
				select {
				case errCh <- wire.DecodeErrorPayload(pl).Kind:
				default:
				}
				return
			}
			cp := make([]byte, len(pl))
			copy(cp, pl)
			select {
			case resCh <- result{c, cp}:
			default:
			}
		},
		func(kind wire.ErrorKind) {
			select {
			case errCh <- kind:
			default:
			}
		})
	if err != nil {
		return 0, nil, err
	}
	defer l.Close()

	frame, err := wire.Build(cmd, payload)
	if err != nil {
		return 0, nil, err
	}
	if err := l.Send(frame); err != nil {
		return 0, nil, err
	}

	select {
	case res := <-resCh:
		return res.cmd, res.payload, nil
	case kind := <-errCh:
		return 0, nil, errors.New("pmuctl: daemon returned " + kind.String())
	case <-time.After(dialTimeout):
		return 0, nil, errTimeout
	}
}

// stream opens a link, writes cmd once, and invokes onFrame for every
// frame received until stop is closed. Used by telemetry, where the
// daemon pushes CmdTelemData frames unsolicited after the initial
// CmdTelemStart.
func stream(addr string, cmd wire.Command, payload []byte, onFrame func(wire.Command, []byte), stop <-chan struct{}) error {
	l, err := openLink(addr, onFrame, func(wire.ErrorKind) {})
	if err != nil {
		return err
	}
	defer l.Close()

	frame, err := wire.Build(cmd, payload)
	if err != nil {
		return err
	}
	if err := l.Send(frame); err != nil {
		return err
	}

	<-stop
	return nil
}
