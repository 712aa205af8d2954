// pmud is the power-distribution-unit control daemon: it loads a
// binary channel configuration, runs the channel registry's tick
// loop, serves the host wire protocol over TCP, and exposes a
// read-only debug HTTP surface. The command dispatch (run/help/mkconf/
// conf/version) follows the teacher's cmd/multiserver/main.go almost
// one-for-one.
package main

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"

	yml "gopkg.in/yaml.v2"

	"github.com/rakyury/pmu-30-sub009/channel"
	"github.com/rakyury/pmu-30-sub009/config"
	"github.com/rakyury/pmu-30-sub009/debughttp"
	"github.com/rakyury/pmu-30-sub009/drivers"
)

var (
	// Version is injected via ldflags at build time.
	Version = "dev"

	// ConfigFileName is the daemon's own yaml settings file, distinct
	// from the binary channel configuration record it loads at boot.
	ConfigFileName = "pmud.yml"
	k              = koanf.New(".")
)

// Config is pmud's own settings, not the channel configuration record
// (spec.md section 3) it loads separately from BinaryConfigPath.
type Config struct {
	Addr            string `yaml:"Addr" koanf:"addr"`
	DebugAddr       string `yaml:"DebugAddr" koanf:"debugaddr"`
	BinaryConfigPath string `yaml:"BinaryConfigPath" koanf:"binaryconfigpath"`
	TickHz          int    `yaml:"TickHz" koanf:"tickhz"`
	DeviceType      uint16 `yaml:"DeviceType" koanf:"devicetype"`
}

func defaultConfig() Config {
	return Config{
		Addr:             ":7070",
		DebugAddr:        ":7071",
		BinaryConfigPath: "pmu-config.bin",
		TickHz:           1000,
		DeviceType:       1,
	}
}

func setupconfig() {
	k.Load(structs.Provider(defaultConfig(), "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") {
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func root() {
	str := `pmud is the power-distribution-unit control daemon.

Usage:
	pmud <command>

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `pmud is configured via its .yaml file (pmud.yml). mkconf writes the
defaults to that path; conf prints the currently loaded configuration.

The binary channel configuration record (BinaryConfigPath) is a
separate file: the output of pmuctl's config upload, or a file written
by any tool producing spec-compliant records. If it is missing or its
CRC is bad, pmud falls back to a device-default configuration carrying
only the built-in system channels.`
	fmt.Println(str)
}

func mkconf() {
	c := defaultConfig()
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	if err := yml.NewEncoder(f).Encode(c); err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := Config{}
	if err := k.Unmarshal("", &c); err != nil {
		log.Fatal(err)
	}
	if err := yml.NewEncoder(os.Stdout).Encode(c); err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("pmud version %v\n", Version)
}

// loadRegistry reads and validates the binary configuration record at
// path, falling back to the device-default registry on any read or
// validation failure (spec.md section 6: "invalid CRC -> fall back").
func loadRegistry(path string, deviceType uint16) *channel.Registry {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("no binary configuration at %s (%v), booting device defaults", path, err)
		return config.DefaultRegistry()
	}
	reg, err := config.Build(data)
	if err != nil {
		log.Printf("binary configuration invalid (%v), booting device defaults", err)
		return config.DefaultRegistry()
	}
	return reg
}

// buildBank constructs a drivers.Bank from every PowerOutput/HBridge
// channel's hardware binding and configuration, so the control loop's
// OutputCommander has a live driver for each bound output.
func buildBank(reg *channel.Registry) *drivers.Bank {
	bank := drivers.NewBank()
	reg.ForEach(channel.KindPowerOutput, func(ch *channel.Channel) {
		cfg, ok := ch.Config.(*channel.PowerOutputConfig)
		if !ok {
			return
		}
		bank.AddPowerOutput(ch.HwBinding.Index, drivers.PowerOutputParams{
			SoftStartMs:      cfg.SoftStartMs,
			InrushTimeMs:     cfg.InrushTimeMs,
			CurrentLimitA:    cfg.CurrentLimitA,
			RetryCount:       cfg.RetryCount,
			RetryDelayMs:     cfg.RetryDelayMs,
			AutoFaultEnabled: true,
		})
	})
	reg.ForEach(channel.KindHBridge, func(ch *channel.Channel) {
		cfg, ok := ch.Config.(*channel.HBridgeConfig)
		if !ok {
			return
		}
		bank.AddHBridge(ch.HwBinding.Index, drivers.HBridgeParams{
			StallMs: cfg.StallMs,
		})
	})
	return bank
}

func run() {
	cfg := defaultConfig()
	if err := k.Unmarshal("", &cfg); err != nil {
		log.Fatal(err)
	}

	reg := loadRegistry(cfg.BinaryConfigPath, cfg.DeviceType)
	bank := buildBank(reg)
	prot := &drivers.Protection{AutoFaultsEnabled: true}

	st := &connState{reg: reg, bank: bank, prot: prot, configPath: cfg.BinaryConfigPath}
	// st.mu serializes this swap against the tick loop below and every
	// connState accessor in dispatch.go/telemetry.go (spec.md section
	// 5's apply_config/tick mutual exclusion): building the new
	// reg/bank happens outside the lock (no shared state touched yet),
	// only the pointer swap itself is held under mu.
	st.reload = func() {
		reg := loadRegistry(st.configPath, cfg.DeviceType)
		bank := buildBank(reg)
		st.mu.Lock()
		st.reg, st.bank = reg, bank
		st.mu.Unlock()
	}
	watchConfigFile(cfg.BinaryConfigPath, st.reload)

	go serveHostlink(cfg.Addr, st)
	go func() {
		log.Printf("debug http listening at %s", cfg.DebugAddr)
		router := debughttp.NewRouter(func() *channel.Registry {
			st.mu.Lock()
			defer st.mu.Unlock()
			return st.reg
		}, prot)
		log.Fatal(http.ListenAndServe(cfg.DebugAddr, router))
	}()

	period := time.Second / time.Duration(cfg.TickHz)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	start := time.Now()
	for range ticker.C {
		nowMs := uint64(time.Since(start).Milliseconds())
		// Holding st.mu for the whole tick body, not just the reg/bank
		// pointer reads, is what makes a concurrent reload/SetValue/
		// telemetry sample mutually exclusive with Tick instead of just
		// racing on which pointer they see (spec.md section 5).
		st.mu.Lock()
		st.bank.SetBatteryMv(13800)
		ctx := &channel.EvalContext{Commander: st.bank}
		st.reg.Tick(nowMs, ctx)
		prot.Update(13800, 250, 300, st.bank.TotalCurrentMa(), st.bank.AnyFault())
		st.mu.Unlock()
	}
}

// watchConfigFile invokes reload whenever path changes on disk
// (spec.md's "atomic configuration swap", triggered here by the host
// tool overwriting the file rather than an in-process upload command).
func watchConfigFile(path string, reload func()) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("config watch disabled: %v", err)
		return
	}
	if err := watcher.Add(path); err != nil {
		log.Printf("config watch disabled for %s: %v", path, err)
		return
	}
	go func() {
		for event := range watcher.Events {
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				log.Printf("binary configuration changed, reloading")
				reload()
			}
		}
	}()
}

// serveHostlink accepts wire-protocol connections and dispatches each
// frame through a per-connection handler. st.reg may be swapped by a
// config reload between connections or mid-connection; see
// handleConn's doc comment for the resulting staleness window.
func serveHostlink(addr string, st *connState) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("hostlink listen: %v", err)
	}
	log.Printf("hostlink listening at %s", addr)
	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Printf("hostlink accept: %v", err)
			continue
		}
		go handleConn(conn, st)
	}
}

func main() {
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	switch strings.ToLower(args[1]) {
	case "help":
		help()
	case "mkconf":
		mkconf()
	case "conf":
		printconf()
	case "run":
		run()
	case "version":
		pversion()
	default:
		log.Fatal("unknown command")
	}
}
