package main

import (
	"net"
	"testing"
	"time"

	"github.com/rakyury/pmu-30-sub009/wire"
)

// fakeDaemon accepts every connection at addr and calls reply
// for every frame it receives, writing back whatever frame reply
// returns (if non-nil). This is the same "real socket, no mock
// transport" style as the teacher's comm_test.go fixtures and
// hostlink/link_test.go's tcpEchoServer, just with a frame-aware
// responder instead of a byte echo.
func fakeDaemon(t *testing.T, addr string, reply func(cmd wire.Command, payload []byte) (wire.Command, []byte, bool)) {
	t.Helper()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	serve := func(conn net.Conn) {
		defer conn.Close()

		p := wire.NewParser()
		p.OnFrame = func(cmd wire.Command, payload []byte) {
			rcmd, rpayload, send := reply(cmd, payload)
			if !send {
				return
			}
			frame, err := wire.Build(rcmd, rpayload)
			if err != nil {
				return
			}
			conn.Write(frame)
		}

		buf := make([]byte, 512)
		for {
			n, err := conn.Read(buf)
			for i := 0; i < n; i++ {
				p.Feed(buf[i])
			}
			if err != nil {
				return
			}
		}
	}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serve(conn)
		}
	}()
}

func TestRequestPingPong(t *testing.T) {
	addr := "localhost:19801"
	fakeDaemon(t, addr, func(cmd wire.Command, payload []byte) (wire.Command, []byte, bool) {
		if cmd != wire.CmdPing {
			t.Errorf("daemon got command 0x%02x, want CmdPing", byte(cmd))
		}
		return wire.CmdPong, nil, true
	})

	cmd, payload, err := request(addr, wire.CmdPing, nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if cmd != wire.CmdPong {
		t.Fatalf("got command 0x%02x, want CmdPong", byte(cmd))
	}
	if len(payload) != 0 {
		t.Fatalf("expected empty payload, got %v", payload)
	}
}

func TestRequestSurfacesDaemonError(t *testing.T) {
	addr := "localhost:19802"
	fakeDaemon(t, addr, func(cmd wire.Command, payload []byte) (wire.Command, []byte, bool) {
		return wire.CmdError, wire.ErrorPayload{Kind: wire.ErrKindChannelInvalid}.Encode(), true
	})

	_, _, err := request(addr, wire.CmdChGetValue, []byte{0xFF, 0xFF})
	if err == nil {
		t.Fatal("expected an error when the daemon replies CmdError")
	}
}

func TestRequestTimesOutWhenDaemonNeverReplies(t *testing.T) {
	addr := "localhost:19803"
	fakeDaemon(t, addr, func(cmd wire.Command, payload []byte) (wire.Command, []byte, bool) {
		return 0, nil, false
	})

	_, _, err := request(addr, wire.CmdPing, nil)
	if err != errTimeout {
		t.Fatalf("got %v, want errTimeout", err)
	}
}

func TestRequestFailsWhenNothingListening(t *testing.T) {
	_, _, err := request("localhost:1", wire.CmdPing, nil)
	if err == nil {
		t.Fatal("expected a dial error against an unreachable address")
	}
}

func TestParseAddrDefaultsToTCP(t *testing.T) {
	isSerial, dialAddr, serCfg := parseAddr("localhost:7070")
	if isSerial {
		t.Fatal("expected a plain host:port to select TCP")
	}
	if dialAddr != "localhost:7070" {
		t.Fatalf("got dialAddr %q, want unchanged addr", dialAddr)
	}
	if serCfg != nil {
		t.Fatal("expected a nil serial.Config for a TCP address")
	}
}

func TestParseAddrParsesSerialDeviceAndBaud(t *testing.T) {
	isSerial, dialAddr, serCfg := parseAddr("serial:/dev/ttyUSB0:115200")
	if !isSerial {
		t.Fatal("expected the serial: prefix to select the serial transport")
	}
	if dialAddr != "/dev/ttyUSB0" {
		t.Fatalf("got device %q, want /dev/ttyUSB0", dialAddr)
	}
	if serCfg == nil || serCfg.Name != "/dev/ttyUSB0" || serCfg.Baud != 115200 {
		t.Fatalf("got serCfg %+v, want Name=/dev/ttyUSB0 Baud=115200", serCfg)
	}
}

func TestParseAddrSerialWithoutBaudDefaultsTo9600(t *testing.T) {
	isSerial, dialAddr, serCfg := parseAddr("serial:/dev/ttyUSB0")
	if !isSerial {
		t.Fatal("expected the serial: prefix to select the serial transport")
	}
	if dialAddr != "/dev/ttyUSB0" {
		t.Fatalf("got device %q, want /dev/ttyUSB0", dialAddr)
	}
	if serCfg == nil || serCfg.Baud != 9600 {
		t.Fatalf("got serCfg %+v, want Baud=9600", serCfg)
	}
}

func TestStreamInvokesOnFrameUntilStop(t *testing.T) {
	addr := "localhost:19804"
	fakeDaemon(t, addr, func(cmd wire.Command, payload []byte) (wire.Command, []byte, bool) {
		if cmd != wire.CmdTelemStart {
			return 0, nil, false
		}
		return wire.CmdTelemData, []byte{1, 2, 3}, true
	})

	var count int
	stop := make(chan struct{})
	time.AfterFunc(300*time.Millisecond, func() { close(stop) })

	err := stream(addr, wire.CmdTelemStart, nil, func(cmd wire.Command, payload []byte) {
		count++
	}, stop)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if count == 0 {
		t.Fatal("expected at least one frame before stop closed")
	}
}
