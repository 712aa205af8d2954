package drivers

import "testing"

func TestHBridgeForwardMovesPositivePosition(t *testing.T) {
	h := NewHBridge(HBridgeParams{Preset: PresetWiper, MinPos: -100000, MaxPos: 100000})
	h.Command(ModeForward, 1000, 0)

	nowMs := uint64(0)
	var last int32
	for i := 0; i < 100; i++ {
		nowMs += 10
		obs := h.Update(nowMs, 10, 13800)
		last = obs.PositionRaw
	}
	if last <= 0 {
		t.Fatalf("position did not advance forward: %d", last)
	}
}

func TestHBridgeReverseMovesNegative(t *testing.T) {
	h := NewHBridge(HBridgeParams{Preset: PresetValve, MinPos: -100000, MaxPos: 100000})
	h.Command(ModeReverse, 1000, 0)

	nowMs := uint64(0)
	var last int32
	for i := 0; i < 100; i++ {
		nowMs += 10
		obs := h.Update(nowMs, 10, 13800)
		last = obs.PositionRaw
	}
	if last >= 0 {
		t.Fatalf("position did not move in reverse: %d", last)
	}
}

func TestHBridgeHitsEndStop(t *testing.T) {
	h := NewHBridge(HBridgeParams{Preset: PresetWindow, MinPos: 0, MaxPos: 500})
	h.Command(ModeForward, 1000, 0)

	nowMs := uint64(0)
	var obs Observation
	for i := 0; i < 500; i++ {
		nowMs += 10
		obs = h.Update(nowMs, 10, 13800)
	}
	if obs.PositionRaw > 500 {
		t.Fatalf("position exceeded MaxPos end-stop: %d", obs.PositionRaw)
	}
	if obs.State != uint8(HBridgeEndStop) {
		t.Fatalf("state = %d, want HBridgeEndStop", obs.State)
	}
}

func TestHBridgeCoastStaysIdle(t *testing.T) {
	h := NewHBridge(HBridgeParams{Preset: PresetGeneric, MinPos: -1000, MaxPos: 1000})
	h.Command(ModeCoast, 0, 0)
	obs := h.Update(10, 10, 13800)
	if obs.State != uint8(HBridgeIdle) {
		t.Fatalf("state = %d, want HBridgeIdle", obs.State)
	}
}
