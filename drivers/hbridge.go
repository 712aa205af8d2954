package drivers

import "math"

// HBridgeState mirrors channel.HBridgeObservation.State (spec.md
// section 4.4.2 "Observables").
type HBridgeState uint8

const (
	HBridgeIdle HBridgeState = iota
	HBridgeForward
	HBridgeReverse
	HBridgeBraking
	HBridgeStalled
	HBridgeOC
	HBridgeOT
	HBridgeEndStop
)

// HBridgePreset names the load-specific friction/stiction/inertia
// tuning a channel picks from (spec.md section 4.4.2 "Presets").
type HBridgePreset int

const (
	PresetGeneric HBridgePreset = iota
	PresetWiper
	PresetValve
	PresetWindow
	PresetSeat
	PresetPump
)

// HBridgeParams is the static per-channel configuration.
type HBridgeParams struct {
	Preset           HBridgePreset
	InertiaKgM2      float64
	ViscousFriction  float64 // N*m per rad/s
	CoulombFriction  float64 // N*m
	StribeckVelocity float64 // rad/s, Stribeck knee
	StallVelocity    float64 // rad/s below which "not moving" for StallMs
	StallMs          uint32
	MinPos, MaxPos   int32 // end-stop positions, raw units
	CurrentLimitA    float64
	RLoadOhm         float64
	ThermalRthCPerW  float64
	ThermalCthJPerC  float64
	CountsPerRadian  float64
}

func presetDefaults(p HBridgePreset) HBridgeParams {
	switch p {
	case PresetWiper:
		return HBridgeParams{InertiaKgM2: 0.02, ViscousFriction: 0.05, CoulombFriction: 0.15, StribeckVelocity: 0.5, StallVelocity: 0.05, CurrentLimitA: 8}
	case PresetValve:
		return HBridgeParams{InertiaKgM2: 0.01, ViscousFriction: 0.2, CoulombFriction: 0.4, StribeckVelocity: 0.2, StallVelocity: 0.02, CurrentLimitA: 5}
	case PresetWindow:
		return HBridgeParams{InertiaKgM2: 0.05, ViscousFriction: 0.08, CoulombFriction: 0.3, StribeckVelocity: 0.3, StallVelocity: 0.05, CurrentLimitA: 15}
	case PresetSeat:
		return HBridgeParams{InertiaKgM2: 0.08, ViscousFriction: 0.1, CoulombFriction: 0.4, StribeckVelocity: 0.2, StallVelocity: 0.02, CurrentLimitA: 10}
	case PresetPump:
		return HBridgeParams{InertiaKgM2: 0.005, ViscousFriction: 0.02, CoulombFriction: 0.05, StribeckVelocity: 1.0, StallVelocity: 0.2, CurrentLimitA: 12}
	default:
		return HBridgeParams{InertiaKgM2: 0.02, ViscousFriction: 0.1, CoulombFriction: 0.2, StribeckVelocity: 0.3, StallVelocity: 0.05, CurrentLimitA: 10}
	}
}

// normalize fills any zero-valued field from the preset, so a caller
// only needs to set MinPos/MaxPos/CountsPerRadian explicitly.
func (p *HBridgeParams) normalize() {
	def := presetDefaults(p.Preset)
	if p.InertiaKgM2 == 0 {
		p.InertiaKgM2 = def.InertiaKgM2
	}
	if p.ViscousFriction == 0 {
		p.ViscousFriction = def.ViscousFriction
	}
	if p.CoulombFriction == 0 {
		p.CoulombFriction = def.CoulombFriction
	}
	if p.StribeckVelocity == 0 {
		p.StribeckVelocity = def.StribeckVelocity
	}
	if p.StallVelocity == 0 {
		p.StallVelocity = def.StallVelocity
	}
	if p.CurrentLimitA == 0 {
		p.CurrentLimitA = def.CurrentLimitA
	}
	if p.StallMs == 0 {
		p.StallMs = 500
	}
	if p.RLoadOhm <= 0 {
		p.RLoadOhm = defaultRLoadOhm
	}
	if p.ThermalRthCPerW <= 0 {
		p.ThermalRthCPerW = 6.0
	}
	if p.ThermalCthJPerC <= 0 {
		p.ThermalCthJPerC = 1.5
	}
	if p.CountsPerRadian == 0 {
		p.CountsPerRadian = 1000.0
	}
	if p.MinPos == 0 && p.MaxPos == 0 {
		p.MaxPos = 1 << 20
	}
}

// HBridge is one channel's electro-mechanical-thermal model: a
// torque-balance integrator (motor torque vs. viscous + Coulomb +
// Stribeck friction) feeding a position integrator, bounded by
// end-stops, with stall detection and the same single-pole RC
// thermal model as PowerOutput (spec.md section 4.4.2).
type HBridge struct {
	Params HBridgeParams

	mode         HBridgeMode
	dutyPermille uint16
	target       int32

	posRaw       int32
	velocityRad  float64
	temperatureC float64
	currentMa    float64

	stalledSinceMs uint64
	haveStall      bool
	state          HBridgeState
	faultBits      uint16
}

// HBridgeMode mirrors channel.HBridgeMode so the HBridge model itself
// does not depend on the channel package, same as the PowerOutput
// driver; Bank (see channel.OutputCommander in DESIGN.md) is the one
// file in drivers that imports channel and converts between the two.
type HBridgeMode uint8

const (
	ModeCoast HBridgeMode = iota
	ModeForward
	ModeReverse
	ModeBrake
	ModePosition
)

func NewHBridge(params HBridgeParams) *HBridge {
	params.normalize()
	return &HBridge{Params: params, temperatureC: ambientC}
}

// Command sets the requested mode/duty/target for the next Update.
func (h *HBridge) Command(mode HBridgeMode, dutyPermille uint16, target int32) {
	h.mode = mode
	h.dutyPermille = clampU16(dutyPermille, 0, 1000)
	h.target = target
}

// Update advances the model by dtMs given the measured battery
// voltage, returning the tick's observation.
func (h *HBridge) Update(nowMs uint64, dtMs uint64, batteryMv int32) Observation {
	if dtMs == 0 {
		dtMs = 1
	}
	dt := float64(dtMs) / 1000.0
	vBatt := float64(batteryMv) / 1000.0

	drive := h.driveSign()
	dutyFrac := float64(h.dutyPermille) / 1000.0
	motorTorque := drive * dutyFrac * vBatt * 0.1 // simple Kt-less torque-constant model

	friction := h.Params.ViscousFriction*h.velocityRad +
		h.Params.CoulombFriction*stribeckSign(h.velocityRad, h.Params.StribeckVelocity)

	netTorque := motorTorque - friction
	accel := netTorque / h.Params.InertiaKgM2
	h.velocityRad += accel * dt

	if drive == 0 && h.mode == ModeBrake {
		h.velocityRad *= 0.2
	}

	nextPos := h.posRaw + int32(h.velocityRad*h.Params.CountsPerRadian*dt)
	if nextPos <= h.Params.MinPos {
		nextPos = h.Params.MinPos
		h.velocityRad = 0
		h.state = HBridgeEndStop
	} else if nextPos >= h.Params.MaxPos {
		nextPos = h.Params.MaxPos
		h.velocityRad = 0
		h.state = HBridgeEndStop
	}
	h.posRaw = nextPos

	current := math.Abs(motorTorque) / math.Max(vBatt, 1) * 10
	h.currentMa = current * 1000.0
	h.stepThermal(dtMs, current)
	h.checkFaults(nowMs, dutyFrac)

	return Observation{
		State:          uint8(h.state),
		CurrentMa:      int32(h.currentMa),
		PositionRaw:    h.posRaw,
		TemperatureC10: int32(h.temperatureC * 10),
		FaultBits:      h.faultBits,
	}
}

func (h *HBridge) driveSign() float64 {
	switch h.mode {
	case ModeForward:
		return 1
	case ModeReverse:
		return -1
	case ModePosition:
		if h.target > h.posRaw {
			return 1
		} else if h.target < h.posRaw {
			return -1
		}
		return 0
	default:
		return 0
	}
}

// stribeckSign approximates the Stribeck effect: Coulomb friction
// direction follows velocity sign, tapering to a sign-only response
// once |velocity| exceeds the Stribeck knee.
func stribeckSign(v, knee float64) float64 {
	if knee <= 0 {
		knee = 0.01
	}
	if math.Abs(v) >= knee {
		if v > 0 {
			return 1
		}
		return -1
	}
	return v / knee
}

func (h *HBridge) stepThermal(dtMs uint64, currentA float64) {
	p := dissipationFraction * currentA * currentA * senseResistanceOhm * 4
	dt := float64(dtMs) / 1000.0
	dT := (p - (h.temperatureC-ambientC)/h.Params.ThermalRthCPerW) / h.Params.ThermalCthJPerC * dt
	h.temperatureC = clampF(h.temperatureC+dT, ambientC, maxJunctionC)
}

func (h *HBridge) checkFaults(nowMs uint64, dutyFrac float64) {
	h.faultBits = 0
	switch {
	case h.currentMa/1000.0 > h.Params.CurrentLimitA:
		h.state = HBridgeOC
		h.faultBits |= uint16(FaultOC)
	case h.temperatureC > otFaultC:
		h.state = HBridgeOT
		h.faultBits |= uint16(FaultOT)
	case h.state == HBridgeEndStop:
		// end-stop is not a fault by itself; leave state as-is.
	case dutyFrac > 0 && math.Abs(h.velocityRad) < h.Params.StallVelocity:
		if !h.haveStall {
			h.haveStall = true
			h.stalledSinceMs = nowMs
		} else if nowMs-h.stalledSinceMs >= uint64(h.Params.StallMs) {
			h.state = HBridgeStalled
			h.faultBits |= uint16(FaultOL)
		}
	default:
		h.haveStall = false
		switch {
		case h.driveSign() > 0:
			h.state = HBridgeForward
		case h.driveSign() < 0:
			h.state = HBridgeReverse
		case h.mode == ModeBrake:
			h.state = HBridgeBraking
		default:
			h.state = HBridgeIdle
		}
	}
}
