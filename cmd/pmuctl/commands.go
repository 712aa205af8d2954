package main

import (
	"fmt"
	"os"
	"time"

	"github.com/theckman/yacspin"

	"github.com/rakyury/pmu-30-sub009/wire"
)

func cmdPing(addr string) {
	start := time.Now()
	cmd, _, err := request(addr, wire.CmdPing, nil)
	if err != nil {
		fail("ping %s: %v", addr, err)
	}
	if cmd != wire.CmdPong {
		fail("ping %s: unexpected reply command 0x%02x", addr, byte(cmd))
	}
	ok("pong from %s in %s", addr, time.Since(start).Round(time.Microsecond))
}

func cmdCaps(addr string) {
	caps := fetchCaps(addr)
	fmt.Printf("profets=%d hbridges=%d adc=%d din=%d can=%d max_channels=%d\n",
		caps.ProfetCount, caps.HBridgeCount, caps.AdcCount, caps.DinCount, caps.CanCount, caps.MaxChannels)
	fmt.Printf("features: pid=%v logic=%v timers=%v filters=%v tables2d=%v tables3d=%v\n",
		caps.Has(wire.FeaturePid), caps.Has(wire.FeatureLogic), caps.Has(wire.FeatureTimers),
		caps.Has(wire.FeatureFilters), caps.Has(wire.FeatureTables2D), caps.Has(wire.FeatureTables3D))
}

func fetchCaps(addr string) wire.Caps {
	cmd, payload, err := request(addr, wire.CmdGetCaps, nil)
	if err != nil {
		fail("caps %s: %v", addr, err)
	}
	if cmd != wire.CmdCapsResp {
		fail("caps %s: unexpected reply command 0x%02x", addr, byte(cmd))
	}
	caps, err := wire.DecodeCaps(payload)
	if err != nil {
		fail("caps %s: decoding reply: %v", addr, err)
	}
	return caps
}

func cmdGet(addr string, id uint16) {
	cmd, payload, err := request(addr, wire.CmdChGetValue, []byte{byte(id), byte(id >> 8)})
	if err != nil {
		fail("get %s ch%d: %v", addr, id, err)
	}
	if cmd != wire.CmdChValueResp {
		fail("get %s ch%d: unexpected reply command 0x%02x", addr, id, byte(cmd))
	}
	_, v := decodeChValue(payload)
	ok("ch%d = %d", id, v)
}

func cmdSet(addr string, id uint16, value int32) {
	payload := []byte{
		byte(id), byte(id >> 8),
		byte(value), byte(value >> 8), byte(value >> 16), byte(value >> 24),
	}
	cmd, respPayload, err := request(addr, wire.CmdChSetValue, payload)
	if err != nil {
		fail("set %s ch%d: %v", addr, id, err)
	}
	if cmd != wire.CmdChValueResp {
		fail("set %s ch%d: unexpected reply command 0x%02x", addr, id, byte(cmd))
	}
	_, v := decodeChValue(respPayload)
	ok("ch%d now %d", id, v)
}

func decodeChValue(b []byte) (uint16, int32) {
	if len(b) < 6 {
		return 0, 0
	}
	id := uint16(b[0]) | uint16(b[1])<<8
	v := int32(uint32(b[2]) | uint32(b[3])<<8 | uint32(b[4])<<16 | uint32(b[5])<<24)
	return id, v
}

func cmdConfigGet(addr, outfile string) {
	cmd, payload, err := request(addr, wire.CmdGetConfig, nil)
	if err != nil {
		fail("configget %s: %v", addr, err)
	}
	if cmd != wire.CmdConfigData {
		fail("configget %s: unexpected reply command 0x%02x", addr, byte(cmd))
	}
	if err := os.WriteFile(outfile, payload, 0o644); err != nil {
		fail("configget %s: writing %s: %v", addr, outfile, err)
	}
	ok("wrote %d bytes to %s", len(payload), outfile)
}

func cmdConfigSet(addr, infile string) {
	data, err := os.ReadFile(infile)
	if err != nil {
		fail("configset %s: reading %s: %v", addr, infile, err)
	}
	if len(data) > wire.MaxPayloadLen {
		fail("configset %s: %s is %d bytes, exceeds the %d-byte single-frame limit",
			addr, infile, len(data), wire.MaxPayloadLen)
	}

	spinner, _ := yacspin.New(yacspin.Config{
		Frequency:       100 * time.Millisecond,
		CharSet:         yacspin.CharSets[9],
		Suffix:          " uploading configuration",
		StopCharacter:   "✓",
		StopColors:      []string{"fgGreen"},
		StopFailMessage: "upload failed",
		StopFailColors:  []string{"fgRed"},
	})
	if spinner != nil {
		spinner.Start()
	}

	cmd, _, err := request(addr, wire.CmdSetConfig, data)

	if spinner != nil {
		if err != nil || cmd != wire.CmdConfigAck {
			spinner.StopFail()
		} else {
			spinner.Stop()
		}
	}
	if err != nil {
		fail("configset %s: %v", addr, err)
	}
	if cmd != wire.CmdConfigAck {
		fail("configset %s: unexpected reply command 0x%02x", addr, byte(cmd))
	}
	ok("%s accepted and reloaded", infile)
}

func cmdTelemetry(addr string, dur time.Duration) {
	caps := fetchCaps(addr)

	stop := make(chan struct{})
	time.AfterFunc(dur, func() { close(stop) })

	var count int
	err := stream(addr, wire.CmdTelemStart, nil, func(cmd wire.Command, payload []byte) {
		if cmd != wire.CmdTelemData {
			return
		}
		frame, err := wire.Parse(payload, caps)
		if err != nil {
			fmt.Fprintf(os.Stderr, "telemetry: decode error: %v\n", err)
			return
		}
		count++
		fmt.Printf("seq=%d t=%dms battery=%dmV mcu=%.1fC faults=0x%08x\n",
			frame.Header.Seq, frame.Header.TimestampMs, frame.Header.VoltageMv,
			float64(frame.Header.McuTempC10)/10, frame.FaultBits)
	}, stop)

	if err != nil {
		fail("telemetry %s: %v", addr, err)
	}
	ok("received %d telemetry packets over %s", count, dur)
}
