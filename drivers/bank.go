package drivers

import (
	"sort"

	"github.com/rakyury/pmu-30-sub009/channel"
)

// Bank owns every PowerOutput/HBridge driver instance and implements
// channel.OutputCommander, the collaborator interface C2's
// PowerOutputConfig/HBridgeConfig evaluate against (spec.md section
// 6). The daemon builds one Bank from the loaded configuration and
// hands it to channel.EvalContext each tick.
type Bank struct {
	outputs  map[uint16]*PowerOutput
	hbridges map[uint16]*HBridge

	batteryMv int32
	prevMs    uint64
}

func NewBank() *Bank {
	return &Bank{
		outputs:  make(map[uint16]*PowerOutput),
		hbridges: make(map[uint16]*HBridge),
	}
}

// AddPowerOutput registers a driver at the given hardware index,
// overwriting any previous driver there (used when config is
// reloaded).
func (b *Bank) AddPowerOutput(index uint16, params PowerOutputParams) {
	b.outputs[index] = NewPowerOutput(params)
}

// AddHBridge registers an H-bridge driver at the given hardware index.
func (b *Bank) AddHBridge(index uint16, params HBridgeParams) {
	b.hbridges[index] = NewHBridge(params)
}

// SetBatteryMv feeds the tick's measured supply voltage; every driver
// command this tick sees the same reading (spec.md section 4.4's
// drivers all depend on the shared battery rail).
func (b *Bank) SetBatteryMv(mv int32) { b.batteryMv = mv }

// CommandPowerOutput implements channel.OutputCommander.
func (b *Bank) CommandPowerOutput(index uint16, on bool, dutyPermille uint16, nowMs uint64) channel.PowerOutputObservation {
	o, ok := b.outputs[index]
	if !ok {
		return channel.PowerOutputObservation{}
	}
	o.Command(on, dutyPermille)
	obs := o.Update(nowMs, b.dt(nowMs), b.batteryMv)
	return channel.PowerOutputObservation{
		State:          obs.State,
		CurrentMa:      obs.CurrentMa,
		TemperatureC10: obs.TemperatureC10,
		DutyPermille:   obs.DutyPermille,
		FaultBits:      obs.FaultBits,
	}
}

// CommandHBridge implements channel.OutputCommander.
func (b *Bank) CommandHBridge(index uint16, mode channel.HBridgeMode, dutyPermille uint16, targetPos int32, nowMs uint64) channel.HBridgeObservation {
	h, ok := b.hbridges[index]
	if !ok {
		return channel.HBridgeObservation{}
	}
	h.Command(HBridgeMode(mode), dutyPermille, targetPos)
	obs := h.Update(nowMs, b.dt(nowMs), b.batteryMv)
	return channel.HBridgeObservation{
		State:          obs.State,
		CurrentMa:      obs.CurrentMa,
		PositionRaw:    obs.PositionRaw,
		TemperatureC10: obs.TemperatureC10,
		FaultBits:      obs.FaultBits,
	}
}

// dt derives this tick's elapsed time from the last nowMs seen by any
// Command* call; the first call in a process's life reports 0, which
// every driver's Update treats as "use 1ms".
func (b *Bank) dt(nowMs uint64) uint64 {
	if b.prevMs == 0 || nowMs <= b.prevMs {
		b.prevMs = nowMs
		return 0
	}
	dt := nowMs - b.prevMs
	b.prevMs = nowMs
	return dt
}

// AnyFault reports whether any driver in the bank currently has a
// nonzero fault latch, feeding Protection.Update's channel-fault
// aggregate bit.
func (b *Bank) AnyFault() bool {
	for _, o := range b.outputs {
		if o.latchedFault != 0 {
			return true
		}
	}
	for _, h := range b.hbridges {
		if h.faultBits != 0 {
			return true
		}
	}
	return false
}

// TotalCurrentMa sums every driver's last-observed current, used for
// Protection's total_current_ma.
func (b *Bank) TotalCurrentMa() int32 {
	var total int32
	for _, o := range b.outputs {
		total += int32(o.currentMa)
	}
	for _, h := range b.hbridges {
		total += int32(h.currentMa)
	}
	return total
}

// OutputIndices returns every bound PowerOutput hardware index in
// ascending order, the iteration order telemetry's Outputs/Currents
// sections use (wire.TelemetryFrame has no per-entry id, so the
// daemon and every client must agree on this fixed order).
func (b *Bank) OutputIndices() []uint16 {
	idx := make([]uint16, 0, len(b.outputs))
	for i := range b.outputs {
		idx = append(idx, i)
	}
	sort.Slice(idx, func(i, j int) bool { return idx[i] < idx[j] })
	return idx
}

// HBridgeIndices returns every bound HBridge hardware index in
// ascending order, mirroring OutputIndices.
func (b *Bank) HBridgeIndices() []uint16 {
	idx := make([]uint16, 0, len(b.hbridges))
	for i := range b.hbridges {
		idx = append(idx, i)
	}
	sort.Slice(idx, func(i, j int) bool { return idx[i] < idx[j] })
	return idx
}

// OutputSnapshot reports a bound PowerOutput's last Update() result
// without advancing its model, for telemetry sampling between ticks.
func (b *Bank) OutputSnapshot(index uint16) (state PowerOutputState, currentMa int32, faultBits uint16, ok bool) {
	o, ok := b.outputs[index]
	if !ok {
		return 0, 0, 0, false
	}
	return o.state, int32(o.currentMa), uint16(o.latchedFault), true
}

// HBridgeSample is a telemetry-friendly snapshot of one HBridge's
// last Update() result (the same fields as wire.HBridgeSample, whose
// Flags byte cmd/pmud fills from FaultBits at encode time).
type HBridgeSample struct {
	Mode         uint8
	DutyPermille uint16
	CurrentMa    uint16
	PositionRaw  uint16
	FaultBits    uint8
}

// HBridgeSnapshot reports a bound HBridge's last Update() result
// without advancing its model.
func (b *Bank) HBridgeSnapshot(index uint16) (sample HBridgeSample, ok bool) {
	h, ok := b.hbridges[index]
	if !ok {
		return HBridgeSample{}, false
	}
	pos := h.posRaw
	if pos < 0 {
		pos = 0
	} else if pos > 65535 {
		pos = 65535
	}
	return HBridgeSample{
		Mode:         uint8(h.mode),
		DutyPermille: h.dutyPermille,
		CurrentMa:    uint16(clampF(h.currentMa, 0, 65535)),
		PositionRaw:  uint16(pos),
		FaultBits:    uint8(h.faultBits),
	}, true
}
