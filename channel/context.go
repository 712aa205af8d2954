package channel

// AdcSource is the ADC collaborator interface of spec.md section 6:
// a 12-bit reading in [0,4095].
type AdcSource interface {
	ReadChannel(index int) uint16
}

// DigitalSource is the digital-input collaborator interface of
// spec.md section 6.
type DigitalSource interface {
	ReadPin(index int) bool
}

// CanTransmit is the CAN transmit collaborator interface of spec.md
// section 6.
type CanTransmit interface {
	Queue(bus int, id uint32, data []byte, dlc int, isExtended, isFD bool) error
}

// OutputCommander decouples C2's PowerOutput/HBridge evaluation from
// C4's physical driver models (see DESIGN.md). The registry calls
// these once per tick per bound output channel; the daemon supplies
// an implementation backed by the drivers package.
type OutputCommander interface {
	// CommandPowerOutput commands a PROFET-style output and returns its
	// observed state. dutyPermille is in [0,1000].
	CommandPowerOutput(index uint16, on bool, dutyPermille uint16, nowMs uint64) PowerOutputObservation

	// CommandHBridge commands an H-bridge and returns its observed state.
	// mode follows HBridgeMode, dutyPermille in [0,1000], targetPos is
	// used only in HBridgeModePosition.
	CommandHBridge(index uint16, mode HBridgeMode, dutyPermille uint16, targetPos int32, nowMs uint64) HBridgeObservation
}

// PowerOutputObservation is what a driver reports back after a
// command (spec.md section 4.4.1 "Observables").
type PowerOutputObservation struct {
	State       uint8 // mirrors drivers.PowerOutputState
	CurrentMa   int32
	TemperatureC10 int32 // degrees C x10
	DutyPermille   uint16
	FaultBits      uint16
}

// HBridgeObservation mirrors drivers.HBridgeObservation.
type HBridgeObservation struct {
	State          uint8
	CurrentMa      int32
	PositionRaw    int32
	TemperatureC10 int32
	FaultBits      uint16
}

// HBridgeMode enumerates the commanded modes of spec.md section 4.2.6.
type HBridgeMode uint8

const (
	HBridgeModeCoast HBridgeMode = iota
	HBridgeModeForward
	HBridgeModeReverse
	HBridgeModeBrake
	HBridgeModePosition
)

// EvalContext is threaded through every kind's Evaluate call. It
// exposes read access to the current tick's (or previous tick's,
// depending on evaluation order) sibling channel values, the tick's
// monotonic clock, and the collaborators needed by output/CAN kinds.
type EvalContext struct {
	reg       *Registry
	NowMs     uint64
	Commander OutputCommander
	Can       CanTransmit
	Adc       AdcSource
	Digital   DigitalSource
}

// Value returns the referenced channel's current value for this tick
// if it precedes the caller in evaluation order, else its previous
// tick's value (spec.md section 5, "Ordering guarantees"). The
// distinction is transparent here because both fields are updated in
// eval order; callers simply read Value.
func (c *EvalContext) Value(id uint16) int32 {
	if !IsRef(id) {
		return 0
	}
	if ch, ok := c.reg.channels[id]; ok {
		return ch.Value
	}
	return 0
}

// PrevValue returns the referenced channel's value as of the previous
// tick, used for edge detection (spec.md section 5).
func (c *EvalContext) PrevValue(id uint16) int32 {
	if !IsRef(id) {
		return 0
	}
	if ch, ok := c.reg.channels[id]; ok {
		return ch.PrevValue
	}
	return 0
}

// Enabled reports whether the referenced channel is enabled.
func (c *EvalContext) Enabled(id uint16) bool {
	if !IsRef(id) {
		return false
	}
	if ch, ok := c.reg.channels[id]; ok {
		return ch.Flags.Has(FlagEnabled)
	}
	return false
}

// Channel exposes read-only access to a sibling channel, e.g. for
// display metadata lookups.
func (c *EvalContext) Channel(id uint16) (*Channel, bool) {
	ch, ok := c.reg.channels[id]
	return ch, ok
}
