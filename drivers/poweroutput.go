// Package drivers implements C4 (spec.md section 4.4): the
// PowerOutput and HBridge physical/fault models and the system-wide
// Protection aggregator. Each driver's Update(dt) method mutates its
// own internal model state once per tick, the same shape as the
// teacher's fsm.ControlLoop.Update — a small struct with a
// phase-locked, single-caller update method (see DESIGN.md).
package drivers

import (
	"time"

	"github.com/cenkalti/backoff"
)

// PowerOutputState mirrors channel.PowerOutputObservation.State
// (spec.md section 4.4.1 "Observables").
type PowerOutputState uint8

const (
	StateOff PowerOutputState = iota
	StateOn
	StatePwm
	StateOC
	StateOT
	StateSC
	StateOL
	StateRetryWait
)

// PowerOutputFault is a bit in Observation.FaultBits.
type PowerOutputFault uint16

const (
	FaultOC PowerOutputFault = 1 << iota
	FaultOT
	FaultSC
	FaultOL
)

const (
	defaultRLoadOhm     = 12.0
	defaultInrushTimeMs = 50
	defaultInrushFactor = 5.0
	defaultOpenLoadMa   = 100.0
	otFaultC            = 140.0
	ambientC            = 25.0
	maxJunctionC        = 150.0
	senseResistanceOhm  = 0.001
	dissipationFraction = 0.05
	scCurrentSpikeA     = 20.0
)

// PowerOutputParams is a channel's static configuration, copied from
// channel.PowerOutputConfig at bind time (spec.md section 4.4.1).
type PowerOutputParams struct {
	RLoadOhm         float64
	SoftStartMs      uint32
	InrushTimeMs     uint32
	CurrentLimitA    float64
	OpenLoadMa       float64
	RetryCount       int
	RetryDelayMs     uint32
	ThermalRthCPerW  float64
	ThermalCthJPerC  float64
	AutoFaultEnabled bool
}

func (p *PowerOutputParams) normalize() {
	if p.RLoadOhm <= 0 {
		p.RLoadOhm = defaultRLoadOhm
	}
	if p.InrushTimeMs == 0 {
		p.InrushTimeMs = defaultInrushTimeMs
	}
	if p.OpenLoadMa <= 0 {
		p.OpenLoadMa = defaultOpenLoadMa
	}
	if p.ThermalRthCPerW <= 0 {
		p.ThermalRthCPerW = 5.0
	}
	if p.ThermalCthJPerC <= 0 {
		p.ThermalCthJPerC = 2.0
	}
}

// newRetryPolicy builds the bounded constant-delay retry policy for a
// single PowerOutput's fault/retry cycle (spec.md section 4.4.1
// "Retry"): the same interval every attempt, exhausted after
// RetryCount attempts. backoff.WithMaxRetries' own attempt counter
// decides exhaustion, rather than a hand-kept counter alongside it:
// NextBackOff returns backoff.Stop once RetryCount calls have been
// made, which latchFault treats as "no more retries".
func newRetryPolicy(ms uint32, retryCount int) backoff.BackOff {
	return backoff.WithMaxRetries(
		backoff.NewConstantBackOff(time.Duration(ms)*time.Millisecond),
		uint64(retryCount),
	)
}

// PowerOutput is one PROFET-style high-side switch's runtime model.
type PowerOutput struct {
	Params PowerOutputParams

	state       PowerOutputState
	commandedOn bool
	dutyTarget  uint16 // permille
	dutyActual  uint16 // permille, ramped by soft-start

	onSinceMs       uint64
	openLoadSinceMs uint64
	haveOpenLoad    bool

	temperatureC float64
	currentMa    float64

	latchedFault PowerOutputFault
	retryPolicy  backoff.BackOff
	retryUntilMs uint64
	// retriesExhausted is set once retryPolicy.NextBackOff returns
	// backoff.Stop; stepState then leaves the driver latched in its
	// fault state instead of ever re-entering StateRetryWait's retry.
	retriesExhausted bool
}

// NewPowerOutput builds a model with sane defaults filled in for any
// zero-valued field in params.
func NewPowerOutput(params PowerOutputParams) *PowerOutput {
	params.normalize()
	return &PowerOutput{
		Params:       params,
		temperatureC: ambientC,
		retryPolicy:  newRetryPolicy(params.RetryDelayMs, params.RetryCount),
	}
}

// Command updates the requested on/off + duty intent; the actual
// physical step happens in Update (spec.md's per-tick driver
// contract; Command/Update are split so Update always advances by one
// fixed dt regardless of how many times Command was called this tick).
func (o *PowerOutput) Command(on bool, dutyPermille uint16) {
	o.commandedOn = on
	o.dutyTarget = clampU16(dutyPermille, 0, 1000)
}

// Update advances the model by dtMs of elapsed time given the measured
// battery voltage, producing the tick's observation (spec.md section
// 4.4.1).
func (o *PowerOutput) Update(nowMs uint64, dtMs uint64, batteryMv int32) Observation {
	if dtMs == 0 {
		dtMs = 1
	}
	o.stepState(nowMs)
	o.stepDuty(dtMs)

	vBatt := float64(batteryMv) / 1000.0
	steady := vBatt / o.Params.RLoadOhm * (float64(o.dutyActual) / 1000.0)

	current := steady
	onMs := nowMs - o.onSinceMs
	if o.dutyActual > 0 && onMs < uint64(o.Params.InrushTimeMs) {
		tRemaining := float64(uint64(o.Params.InrushTimeMs)-onMs) / float64(o.Params.InrushTimeMs)
		current *= 1 + (defaultInrushFactor-1)*tRemaining
	}
	o.currentMa = current * 1000.0

	o.stepThermal(dtMs, current)
	if o.Params.AutoFaultEnabled {
		o.checkFaults(nowMs, vBatt, current)
	}

	return Observation{
		State:          uint8(o.state),
		CurrentMa:      int32(o.currentMa),
		TemperatureC10: int32(o.temperatureC * 10),
		DutyPermille:   o.dutyActual,
		FaultBits:      uint16(o.latchedFault),
	}
}

// stepState advances the on/off/fault/retry state machine one tick.
// A detected fault (StateOC/.../StateOL) is visible for exactly the
// tick it is latched in checkFaults; the following tick's stepState
// call moves it into StateRetryWait, matching spec.md's "on fault
// clear path, after retry_delay_ms, attempt re-enable" retry loop.
func (o *PowerOutput) stepState(nowMs uint64) {
	switch o.state {
	case StateOff:
		if o.commandedOn {
			o.state = o.onState()
			o.onSinceMs = nowMs
			o.haveOpenLoad = false
		}
	case StateOn, StatePwm:
		if !o.commandedOn {
			o.state = StateOff
			o.dutyActual = 0
		}
	case StateOC, StateOT, StateSC, StateOL:
		o.state = StateRetryWait
	case StateRetryWait:
		if !o.retriesExhausted && nowMs >= o.retryUntilMs {
			o.latchedFault = 0
			o.state = o.onState()
			o.onSinceMs = nowMs
		}
	}
}

func (o *PowerOutput) onState() PowerOutputState {
	if o.dutyTarget < 1000 {
		return StatePwm
	}
	return StateOn
}

func (o *PowerOutput) stepDuty(dtMs uint64) {
	if o.state != StateOn && o.state != StatePwm {
		return
	}
	if o.Params.SoftStartMs == 0 {
		o.dutyActual = o.dutyTarget
		return
	}
	stepPerMs := float64(o.dutyTarget) / float64(o.Params.SoftStartMs)
	next := float64(o.dutyActual) + stepPerMs*float64(dtMs)
	o.dutyActual = clampU16(uint16(next), 0, o.dutyTarget)
}

func (o *PowerOutput) stepThermal(dtMs uint64, currentA float64) {
	p := dissipationFraction * currentA * currentA * senseResistanceOhm
	dt := float64(dtMs) / 1000.0
	dT := (p - (o.temperatureC-ambientC)/o.Params.ThermalRthCPerW) / o.Params.ThermalCthJPerC * dt
	o.temperatureC = clampF(o.temperatureC+dT, ambientC, maxJunctionC)
}

func (o *PowerOutput) checkFaults(nowMs uint64, vBatt, currentA float64) {
	on := o.state == StateOn || o.state == StatePwm

	switch {
	case currentA > o.Params.CurrentLimitA:
		o.latchFault(nowMs, StateOC, FaultOC)
	case o.temperatureC > otFaultC:
		o.latchFault(nowMs, StateOT, FaultOT)
	case currentA > scCurrentSpikeA || (currentA > 0 && vBatt/currentA < 0.1):
		o.latchFault(nowMs, StateSC, FaultSC)
	case on && currentA*1000.0 < o.Params.OpenLoadMa:
		if !o.haveOpenLoad {
			o.haveOpenLoad = true
			o.openLoadSinceMs = nowMs
		} else if nowMs-o.openLoadSinceMs >= 100 {
			o.latchFault(nowMs, StateOL, FaultOL)
		}
	default:
		o.haveOpenLoad = false
	}
}

func (o *PowerOutput) latchFault(nowMs uint64, faultState PowerOutputState, fault PowerOutputFault) {
	if o.state == faultState || o.state == StateRetryWait {
		return
	}
	o.state = faultState
	o.latchedFault = fault
	o.dutyActual = 0

	d := o.retryPolicy.NextBackOff()
	if d == backoff.Stop {
		o.retriesExhausted = true
		return
	}
	o.retryUntilMs = nowMs + uint64(d.Milliseconds())
}

// Observation is the per-tick driver report shared by PowerOutput and
// HBridge (spec.md section 4.4.1 "Observables" / 4.4.2).
type Observation struct {
	State          uint8
	CurrentMa      int32
	PositionRaw    int32
	TemperatureC10 int32
	FaultBits      uint16
}

func clampU16(v, lo, hi uint16) uint16 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
