package hostlink

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/rakyury/pmu-30-sub009/wire"
)

// tcpEchoServer loops every accepted connection's bytes back at the
// caller, the same minimal fixture the teacher's comm package tests
// dial against rather than a mock transport.
func tcpEchoServer(t *testing.T, addr string) {
	t.Helper()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go io.Copy(conn, conn)
		}
	}()
}

func TestLinkSendReceivesEchoedFrame(t *testing.T) {
	addr := "localhost:18765"
	tcpEchoServer(t, addr)

	l := New(addr, false, nil)
	got := make(chan wire.Command, 1)
	l.OnFrame = func(cmd wire.Command, payload []byte) { got <- cmd }

	if err := l.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	frame, err := wire.Build(wire.CmdPing, nil)
	if err != nil {
		t.Fatalf("wire.Build: %v", err)
	}
	if err := l.Send(frame); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case cmd := <-got:
		if cmd != wire.CmdPing {
			t.Fatalf("got command 0x%02x, want CmdPing", byte(cmd))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echoed frame")
	}
}

func TestLinkSendBeforeOpenFails(t *testing.T) {
	l := New("localhost:18766", false, nil)
	if err := l.Send([]byte{0}); err != ErrNotConnected {
		t.Fatalf("Send before Open: got %v, want ErrNotConnected", err)
	}
}

func TestLinkCloseIsIdempotentAndStopsPump(t *testing.T) {
	addr := "localhost:18767"
	tcpEchoServer(t, addr)

	l := New(addr, false, nil)
	if err := l.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := l.Send([]byte{0}); err != ErrNotConnected {
		t.Fatalf("Send after Close: got %v, want ErrNotConnected", err)
	}
}

func TestLinkOpenFailsWhenNothingListening(t *testing.T) {
	l := New("localhost:1", false, nil)
	if err := l.Open(); err == nil {
		t.Fatal("expected Open to fail against an unreachable address")
	}
}
