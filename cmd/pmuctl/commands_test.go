package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rakyury/pmu-30-sub009/wire"
)

func TestDecodeChValueRoundTrip(t *testing.T) {
	b := []byte{0x2C, 0x01, 0x10, 0x27, 0x00, 0x00} // id=300, value=10000
	id, v := decodeChValue(b)
	if id != 300 || v != 10000 {
		t.Fatalf("decodeChValue = (%d, %d), want (300, 10000)", id, v)
	}
}

func TestDecodeChValueShortPayloadIsZero(t *testing.T) {
	id, v := decodeChValue([]byte{0x01})
	if id != 0 || v != 0 {
		t.Fatalf("decodeChValue(short) = (%d, %d), want (0, 0)", id, v)
	}
}

func TestMustParseIDAcceptsValidChannelID(t *testing.T) {
	if got := mustParseID("800"); got != 800 {
		t.Fatalf("mustParseID(\"800\") = %d, want 800", got)
	}
}

func TestCmdPingSucceeds(t *testing.T) {
	addr := "localhost:19811"
	fakeDaemon(t, addr, func(cmd wire.Command, payload []byte) (wire.Command, []byte, bool) {
		if cmd != wire.CmdPing {
			t.Errorf("got command 0x%02x, want CmdPing", byte(cmd))
		}
		return wire.CmdPong, nil, true
	})
	cmdPing(addr)
}

func TestFetchCapsSucceeds(t *testing.T) {
	addr := "localhost:19812"
	caps := wire.Caps{ProfetCount: 4, HBridgeCount: 1, MaxChannels: 256}
	fakeDaemon(t, addr, func(cmd wire.Command, payload []byte) (wire.Command, []byte, bool) {
		if cmd != wire.CmdGetCaps {
			t.Errorf("got command 0x%02x, want CmdGetCaps", byte(cmd))
		}
		return wire.CmdCapsResp, caps.Encode(), true
	})
	got := fetchCaps(addr)
	if got.ProfetCount != 4 || got.HBridgeCount != 1 || got.MaxChannels != 256 {
		t.Fatalf("fetchCaps = %+v, want ProfetCount=4 HBridgeCount=1 MaxChannels=256", got)
	}
}

func TestCmdGetAndSetSucceed(t *testing.T) {
	addr := "localhost:19813"
	fakeDaemon(t, addr, func(cmd wire.Command, payload []byte) (wire.Command, []byte, bool) {
		switch cmd {
		case wire.CmdChGetValue:
			return wire.CmdChValueResp, []byte{byte(800), byte(800 >> 8), 2, 0, 0, 0}, true
		case wire.CmdChSetValue:
			return wire.CmdChValueResp, payload, true
		default:
			return 0, nil, false
		}
	})
	cmdGet(addr, 800)
	cmdSet(addr, 800, 3)
}

func TestCmdConfigGetWritesFile(t *testing.T) {
	addr := "localhost:19814"
	want := []byte{1, 2, 3, 4, 5}
	fakeDaemon(t, addr, func(cmd wire.Command, payload []byte) (wire.Command, []byte, bool) {
		if cmd != wire.CmdGetConfig {
			t.Errorf("got command 0x%02x, want CmdGetConfig", byte(cmd))
		}
		return wire.CmdConfigData, want, true
	})

	outfile := filepath.Join(t.TempDir(), "out.bin")
	cmdConfigGet(addr, outfile)

	got, err := os.ReadFile(outfile)
	if err != nil {
		t.Fatalf("reading %s: %v", outfile, err)
	}
	if string(got) != string(want) {
		t.Fatalf("wrote %v, want %v", got, want)
	}
}

func TestCmdConfigSetUploadsFileContents(t *testing.T) {
	addr := "localhost:19815"
	data := []byte{9, 8, 7, 6}
	var gotPayload []byte
	fakeDaemon(t, addr, func(cmd wire.Command, payload []byte) (wire.Command, []byte, bool) {
		if cmd != wire.CmdSetConfig {
			t.Errorf("got command 0x%02x, want CmdSetConfig", byte(cmd))
		}
		gotPayload = append([]byte(nil), payload...)
		return wire.CmdConfigAck, nil, true
	})

	infile := filepath.Join(t.TempDir(), "in.bin")
	if err := os.WriteFile(infile, data, 0o644); err != nil {
		t.Fatalf("writing %s: %v", infile, err)
	}
	cmdConfigSet(addr, infile)

	if string(gotPayload) != string(data) {
		t.Fatalf("daemon received %v, want %v", gotPayload, data)
	}
}
