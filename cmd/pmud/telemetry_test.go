package main

import (
	"testing"

	"github.com/rakyury/pmu-30-sub009/channel"
	"github.com/rakyury/pmu-30-sub009/drivers"
	"github.com/rakyury/pmu-30-sub009/wire"
)

func TestBuildTelemetryFrameSamplesBankAndProtection(t *testing.T) {
	bank := drivers.NewBank()
	bank.AddPowerOutput(0, drivers.PowerOutputParams{RLoadOhm: 10, CurrentLimitA: 50})
	bank.AddHBridge(0, drivers.HBridgeParams{MinPos: -1000, MaxPos: 1000})
	bank.SetBatteryMv(13800)

	bank.CommandPowerOutput(0, true, 1000, 10)
	bank.CommandHBridge(0, channel.HBridgeModeForward, 1000, 0, 10)

	prot := &drivers.Protection{AutoFaultsEnabled: true}
	prot.Update(13800, 250, 300, bank.TotalCurrentMa(), bank.AnyFault())

	st := &connState{bank: bank, prot: prot}

	tf := buildTelemetryFrame(st, 7, 1234)

	if tf.Header.Seq != 7 {
		t.Fatalf("Header.Seq = %d, want 7", tf.Header.Seq)
	}
	if tf.Header.TimestampMs != 1234 {
		t.Fatalf("Header.TimestampMs = %d, want 1234", tf.Header.TimestampMs)
	}
	if tf.Header.VoltageMv != 13800 {
		t.Fatalf("Header.VoltageMv = %d, want 13800", tf.Header.VoltageMv)
	}
	want := wire.SectionOutputs | wire.SectionCurrents | wire.SectionHBridge | wire.SectionFaults
	if tf.Header.Sections != want {
		t.Fatalf("Header.Sections = %v, want %v", tf.Header.Sections, want)
	}

	if len(tf.OutputStates) != 1 || len(tf.CurrentsMa) != 1 {
		t.Fatalf("expected one output sample, got states=%v currents=%v", tf.OutputStates, tf.CurrentsMa)
	}
	if tf.CurrentsMa[0] == 0 {
		t.Fatal("expected nonzero sampled current for a commanded-on output")
	}

	if len(tf.HBridges) != 1 {
		t.Fatalf("expected one hbridge sample, got %v", tf.HBridges)
	}
	if tf.HBridges[0].Mode != uint8(drivers.ModeForward) {
		t.Fatalf("HBridges[0].Mode = %d, want %d", tf.HBridges[0].Mode, drivers.ModeForward)
	}
}

func TestBuildTelemetryFrameEmptyBankHasNoSamples(t *testing.T) {
	st := &connState{
		bank: drivers.NewBank(),
		prot: &drivers.Protection{},
	}

	tf := buildTelemetryFrame(st, 0, 0)

	if len(tf.OutputStates) != 0 || len(tf.CurrentsMa) != 0 || len(tf.HBridges) != 0 {
		t.Fatalf("expected no samples from an empty bank, got %+v", tf)
	}
}

func TestClampToU16(t *testing.T) {
	cases := []struct {
		in   int32
		want uint16
	}{
		{-1, 0},
		{0, 0},
		{100, 100},
		{65535, 65535},
		{70000, 65535},
	}
	for _, c := range cases {
		if got := clampToU16(c.in); got != c.want {
			t.Errorf("clampToU16(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}
