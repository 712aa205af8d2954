package main

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rakyury/pmu-30-sub009/channel"
	"github.com/rakyury/pmu-30-sub009/config"
	"github.com/rakyury/pmu-30-sub009/drivers"
	"github.com/rakyury/pmu-30-sub009/wire"
)

// testRegistry builds a registry with one writable Switch channel
// (800, the writable kind with the simplest domain check) alongside
// one built-in SystemReadOnly channel (1000, battery voltage), so
// CmdChSetValue has both a writable and a read-only target to exercise.
func testRegistry(t *testing.T) *channel.Registry {
	t.Helper()
	entries := []channel.Entry{
		{
			ID:    800,
			Kind:  channel.KindSwitch,
			Name:  "test_switch",
			Flags: channel.FlagEnabled,
			Config: &channel.SwitchConfig{
				Type:         channel.SwitchLatching,
				InputUpID:    channel.NoRef,
				InputDownID:  channel.NoRef,
				StateFirst:   0,
				StateLast:    3,
				StateDefault: 0,
			},
		},
		{
			ID:    1000,
			Kind:  channel.KindSystemReadOnly,
			Name:  "battery_voltage",
			Flags: channel.FlagEnabled | channel.FlagBuiltin | channel.FlagReadOnly,
			Config: &channel.SystemReadOnlyConfig{
				Kind:     channel.SystemBatteryVoltageMv,
				SourceID: channel.NoRef,
			},
		},
	}
	reg, err := channel.Build(entries)
	if err != nil {
		t.Fatalf("channel.Build: %v", err)
	}
	return reg
}

func testState(t *testing.T) *connState {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.bin")
	data := config.Default(1)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing seed config: %v", err)
	}
	st := &connState{
		reg:        testRegistry(t),
		bank:       drivers.NewBank(),
		prot:       &drivers.Protection{AutoFaultsEnabled: true},
		configPath: path,
	}
	st.reload = func() {}
	return st
}

// recvFrame reads one complete wire frame off conn, failing the test
// if none arrives within the deadline.
func recvFrame(t *testing.T, conn net.Conn) (wire.Command, []byte) {
	t.Helper()
	type result struct {
		cmd     wire.Command
		payload []byte
	}
	got := make(chan result, 1)
	p := wire.NewParser()
	p.OnFrame = func(cmd wire.Command, payload []byte) {
		select {
		case got <- result{cmd, payload}:
		default:
		}
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 512)
	for {
		n, err := conn.Read(buf)
		for i := 0; i < n; i++ {
			p.Feed(buf[i])
		}
		select {
		case r := <-got:
			return r.cmd, r.payload
		default:
		}
		if err != nil {
			t.Fatalf("reading reply: %v", err)
		}
	}
}

func TestHandleFramePing(t *testing.T) {
	st := testState(t)
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	var telemStop chan struct{}
	go handleFrame(server, st, &telemStop, wire.CmdPing, nil)

	cmd, payload := recvFrame(t, client)
	if cmd != wire.CmdPong {
		t.Fatalf("got command 0x%02x, want CmdPong", byte(cmd))
	}
	if len(payload) != 0 {
		t.Fatalf("expected empty Pong payload, got %v", payload)
	}
}

func TestHandleFrameGetCaps(t *testing.T) {
	st := testState(t)
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	var telemStop chan struct{}
	go handleFrame(server, st, &telemStop, wire.CmdGetCaps, nil)

	cmd, payload := recvFrame(t, client)
	if cmd != wire.CmdCapsResp {
		t.Fatalf("got command 0x%02x, want CmdCapsResp", byte(cmd))
	}
	caps, err := wire.DecodeCaps(payload)
	if err != nil {
		t.Fatalf("DecodeCaps: %v", err)
	}
	if caps.ProfetCount != 0 || caps.HBridgeCount != 0 {
		t.Fatalf("caps = %+v, want zero output/hbridge counts", caps)
	}
}

func TestHandleFrameChGetValueUnknownID(t *testing.T) {
	st := testState(t)
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	var telemStop chan struct{}
	go handleFrame(server, st, &telemStop, wire.CmdChGetValue, []byte{0xFF, 0xFF})

	cmd, payload := recvFrame(t, client)
	if cmd != wire.CmdError {
		t.Fatalf("got command 0x%02x, want CmdError", byte(cmd))
	}
	if ErrorKind(payload) != wire.ErrKindChannelInvalid {
		t.Fatalf("got error kind %v, want ErrKindChannelInvalid", ErrorKind(payload))
	}
}

func TestHandleFrameChGetValueShortPayload(t *testing.T) {
	st := testState(t)
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	var telemStop chan struct{}
	go handleFrame(server, st, &telemStop, wire.CmdChGetValue, []byte{0x01})

	cmd, payload := recvFrame(t, client)
	if cmd != wire.CmdError || ErrorKind(payload) != wire.ErrKindInvalidParam {
		t.Fatalf("got (%v, %v), want (CmdError, ErrKindInvalidParam)", cmd, ErrorKind(payload))
	}
}

func TestHandleFrameChSetThenGetValueRoundTrip(t *testing.T) {
	st := testState(t)

	setServer, setClient := net.Pipe()
	var telemStop chan struct{}
	go handleFrame(setServer, st, &telemStop, wire.CmdChSetValue, encodeChValue(800, 2))
	cmd, payload := recvFrame(t, setClient)
	setServer.Close()
	setClient.Close()
	if cmd != wire.CmdChValueResp {
		t.Fatalf("set: got command 0x%02x, want CmdChValueResp", byte(cmd))
	}
	id, v := decodeChValueForTest(payload)
	if id != 800 || v != 2 {
		t.Fatalf("set reply = (%d, %d), want (800, 2)", id, v)
	}

	getServer, getClient := net.Pipe()
	defer getServer.Close()
	defer getClient.Close()
	go handleFrame(getServer, st, &telemStop, wire.CmdChGetValue, []byte{byte(800), byte(800 >> 8)})
	cmd, payload = recvFrame(t, getClient)
	if cmd != wire.CmdChValueResp {
		t.Fatalf("get: got command 0x%02x, want CmdChValueResp", byte(cmd))
	}
	id, v = decodeChValueForTest(payload)
	if id != 800 || v != 2 {
		t.Fatalf("get reply = (%d, %d), want (800, 2)", id, v)
	}
}

func TestHandleFrameChSetValueReadOnlyRejected(t *testing.T) {
	st := testState(t)
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	var telemStop chan struct{}
	go handleFrame(server, st, &telemStop, wire.CmdChSetValue, encodeChValue(1000, 5))

	cmd, payload := recvFrame(t, client)
	if cmd != wire.CmdError || ErrorKind(payload) != wire.ErrKindChannelInvalid {
		t.Fatalf("got (%v, %v), want (CmdError, ErrKindChannelInvalid)", cmd, ErrorKind(payload))
	}
}

func TestHandleFrameGetSetConfigRoundTrip(t *testing.T) {
	st := testState(t)
	reloaded := false
	st.reload = func() { reloaded = true }

	newData := config.Default(2)

	setServer, setClient := net.Pipe()
	var telemStop chan struct{}
	go handleFrame(setServer, st, &telemStop, wire.CmdSetConfig, newData)
	cmd, _ := recvFrame(t, setClient)
	setServer.Close()
	setClient.Close()
	if cmd != wire.CmdConfigAck {
		t.Fatalf("got command 0x%02x, want CmdConfigAck", byte(cmd))
	}
	if !reloaded {
		t.Fatal("expected reload() to run after a valid CmdSetConfig")
	}

	getServer, getClient := net.Pipe()
	defer getServer.Close()
	defer getClient.Close()
	go handleFrame(getServer, st, &telemStop, wire.CmdGetConfig, nil)
	cmd, payload := recvFrame(t, getClient)
	if cmd != wire.CmdConfigData {
		t.Fatalf("got command 0x%02x, want CmdConfigData", byte(cmd))
	}
	if string(payload) != string(newData) {
		t.Fatal("stored config does not match what was set")
	}
}

func TestHandleFrameSetConfigInvalidRejected(t *testing.T) {
	st := testState(t)
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	var telemStop chan struct{}
	go handleFrame(server, st, &telemStop, wire.CmdSetConfig, []byte{0x01, 0x02, 0x03})

	cmd, payload := recvFrame(t, client)
	if cmd != wire.CmdError || ErrorKind(payload) != wire.ErrKindConfigInvalid {
		t.Fatalf("got (%v, %v), want (CmdError, ErrKindConfigInvalid)", cmd, ErrorKind(payload))
	}
}

// TestHandleFrameTelemStartStopLifecycle exercises the
// CmdTelemStart/CmdTelemStop state machine in handleFrame directly.
// The real push loop (streamTelemetry) runs on its own goroutine and
// writes to conn independently of handleFrame's return, so the first
// Start here seeds telemStop by hand rather than racing a live
// streamTelemetry goroutine's writes against the assertions below.
func TestHandleFrameTelemStartStopLifecycle(t *testing.T) {
	st := testState(t)
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	telemStop := make(chan struct{})

	go handleFrame(server, st, &telemStop, wire.CmdTelemStart, nil)
	cmd, payload := recvFrame(t, client)
	if cmd != wire.CmdError || ErrorKind(payload) != wire.ErrKindBusy {
		t.Fatalf("start while already streaming: got (%v, %v), want (CmdError, ErrKindBusy)", cmd, ErrorKind(payload))
	}

	handleFrame(server, st, &telemStop, wire.CmdTelemStop, nil)
	if telemStop != nil {
		t.Fatal("expected telemStop to be nil after CmdTelemStop")
	}

	go handleFrame(server, st, &telemStop, wire.CmdTelemStop, nil)
	cmd, payload = recvFrame(t, client)
	if cmd != wire.CmdError || ErrorKind(payload) != wire.ErrKindNotConnected {
		t.Fatalf("stop without start: got (%v, %v), want (CmdError, ErrKindNotConnected)", cmd, ErrorKind(payload))
	}
}

// ErrorKind decodes a CmdError frame's payload for assertions.
func ErrorKind(payload []byte) wire.ErrorKind {
	return wire.DecodeErrorPayload(payload).Kind
}

func decodeChValueForTest(payload []byte) (uint16, int32) {
	id := uint16(payload[0]) | uint16(payload[1])<<8
	v := int32(uint32(payload[2]) | uint32(payload[3])<<8 | uint32(payload[4])<<16 | uint32(payload[5])<<24)
	return id, v
}
