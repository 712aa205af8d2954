package drivers

import (
	"testing"

	"github.com/rakyury/pmu-30-sub009/channel"
)

func TestBankCommandPowerOutputRoutesToDriver(t *testing.T) {
	b := NewBank()
	b.AddPowerOutput(0, PowerOutputParams{RLoadOhm: 10, CurrentLimitA: 50})
	b.SetBatteryMv(13800)

	obs := b.CommandPowerOutput(0, true, 1000, 10)
	if obs.DutyPermille == 0 {
		t.Fatalf("expected nonzero duty after commanding on, got %+v", obs)
	}
}

func TestBankCommandUnknownIndexReturnsZeroValue(t *testing.T) {
	b := NewBank()
	obs := b.CommandPowerOutput(99, true, 1000, 10)
	if obs != (channel.PowerOutputObservation{}) {
		t.Fatalf("expected zero-value observation for unknown index, got %+v", obs)
	}
}

func TestBankCommandHBridgeRoutesToDriver(t *testing.T) {
	b := NewBank()
	b.AddHBridge(0, HBridgeParams{MinPos: -1000, MaxPos: 1000})
	b.SetBatteryMv(13800)

	var last int32
	nowMs := uint64(0)
	for i := 0; i < 50; i++ {
		nowMs += 10
		obs := b.CommandHBridge(0, channel.HBridgeModeForward, 1000, 0, nowMs)
		last = obs.PositionRaw
	}
	if last <= 0 {
		t.Fatalf("expected forward position advance, got %d", last)
	}
}

func TestBankAnyFaultReflectsLatchedDrivers(t *testing.T) {
	b := NewBank()
	b.AddPowerOutput(0, PowerOutputParams{RLoadOhm: 1, CurrentLimitA: 1, AutoFaultEnabled: true})
	b.SetBatteryMv(13800)

	if b.AnyFault() {
		t.Fatal("expected no fault before any command")
	}
	nowMs := uint64(0)
	for i := 0; i < 10; i++ {
		nowMs += 10
		b.CommandPowerOutput(0, true, 1000, nowMs)
	}
	if !b.AnyFault() {
		t.Fatal("expected overcurrent fault to surface through AnyFault")
	}
}

func TestBankIndicesAreSortedAscending(t *testing.T) {
	b := NewBank()
	b.AddPowerOutput(5, PowerOutputParams{})
	b.AddPowerOutput(2, PowerOutputParams{})
	b.AddHBridge(7, HBridgeParams{})
	b.AddHBridge(3, HBridgeParams{})

	outIdx := b.OutputIndices()
	if len(outIdx) != 2 || outIdx[0] != 2 || outIdx[1] != 5 {
		t.Fatalf("OutputIndices() = %v, want [2 5]", outIdx)
	}
	hbIdx := b.HBridgeIndices()
	if len(hbIdx) != 2 || hbIdx[0] != 3 || hbIdx[1] != 7 {
		t.Fatalf("HBridgeIndices() = %v, want [3 7]", hbIdx)
	}
}

func TestBankSnapshotsReflectLastCommand(t *testing.T) {
	b := NewBank()
	b.AddPowerOutput(0, PowerOutputParams{RLoadOhm: 10, CurrentLimitA: 50})
	b.AddHBridge(0, HBridgeParams{MinPos: -1000, MaxPos: 1000})
	b.SetBatteryMv(13800)

	b.CommandPowerOutput(0, true, 1000, 10)
	state, currentMa, _, ok := b.OutputSnapshot(0)
	if !ok {
		t.Fatal("expected snapshot for bound index 0")
	}
	if state != StateOn && state != StatePwm {
		t.Fatalf("expected on/pwm state, got %v", state)
	}
	if currentMa <= 0 {
		t.Fatalf("expected nonzero current, got %d", currentMa)
	}

	b.CommandHBridge(0, channel.HBridgeModeForward, 1000, 0, 10)
	sample, ok := b.HBridgeSnapshot(0)
	if !ok {
		t.Fatal("expected hbridge snapshot for bound index 0")
	}
	if sample.Mode != uint8(ModeForward) {
		t.Fatalf("sample.Mode = %d, want %d", sample.Mode, ModeForward)
	}

	if _, ok := b.OutputSnapshot(99); ok {
		t.Fatal("expected no snapshot for unbound index")
	}
	if _, ok := b.HBridgeSnapshot(99); ok {
		t.Fatal("expected no hbridge snapshot for unbound index")
	}
}
