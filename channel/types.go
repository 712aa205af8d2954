// Package channel implements C1 (the channel registry and scheduler)
// and C2 (the behavioral contracts of every channel kind) from
// spec.md. Channels are modeled as a tagged variant carrying
// kind-specific configuration and runtime state, addressed only by
// 16-bit id (never by pointer), per spec.md section 9's redesign
// guidance. There is no teacher analog for a dependency-ordered
// evaluation graph; the arena-with-indices discipline here follows
// spec.md directly (see DESIGN.md).
package channel

import "fmt"

// Kind tags which behavioral contract a Channel follows.
type Kind uint8

const (
	KindDigitalInput Kind = iota
	KindAnalogInput
	KindFrequencyInput
	KindCanRx
	KindPowerOutput
	KindHBridge
	KindCanTx
	KindLogic
	KindNumber
	KindFilter
	KindTimer
	KindTable2D
	KindTable3D
	KindSwitch
	KindEnum
	KindPid
	KindSystemReadOnly
)

func (k Kind) String() string {
	switch k {
	case KindDigitalInput:
		return "DigitalInput"
	case KindAnalogInput:
		return "AnalogInput"
	case KindFrequencyInput:
		return "FrequencyInput"
	case KindCanRx:
		return "CanRx"
	case KindPowerOutput:
		return "PowerOutput"
	case KindHBridge:
		return "HBridge"
	case KindCanTx:
		return "CanTx"
	case KindLogic:
		return "Logic"
	case KindNumber:
		return "Number"
	case KindFilter:
		return "Filter"
	case KindTimer:
		return "Timer"
	case KindTable2D:
		return "Table2D"
	case KindTable3D:
		return "Table3D"
	case KindSwitch:
		return "Switch"
	case KindEnum:
		return "Enum"
	case KindPid:
		return "Pid"
	case KindSystemReadOnly:
		return "SystemReadOnly"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Flags is the per-channel bitset of spec.md section 3.
type Flags uint8

const (
	FlagEnabled Flags = 1 << iota
	FlagInverted
	FlagBuiltin
	FlagReadOnly
	FlagFault
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

func (f Flags) Set(bit Flags, on bool) Flags {
	if on {
		return f | bit
	}
	return f &^ bit
}

// DataType selects how a channel's stored int32 should be presented.
type DataType uint8

const (
	DataTypeSigned DataType = iota
	DataTypeUnsigned
	DataTypeBool
	DataTypeEnum
)

// Display holds presentation metadata; stored integers encode
// fixed-point with scale 10^DecimalPlaces.
type Display struct {
	Unit          string // <=7 bytes
	DecimalPlaces uint8  // 0..6
	DataType      DataType
}

// Float returns the displayed value of a stored integer given this
// display's decimal place scale (spec.md P9).
func (d Display) Float(stored int32) float64 {
	scale := 1.0
	for i := uint8(0); i < d.DecimalPlaces; i++ {
		scale *= 10
	}
	return float64(stored) / scale
}

// Device enumerates the physical device classes a channel may bind to.
type Device uint8

const (
	DeviceNone Device = iota
	DeviceAdc
	DeviceDio
	DevicePwm
	DeviceProfet
	DeviceHBridge
	DeviceCan
	DeviceDac
)

// HwBinding optionally attaches a channel to a physical device index.
// Purely virtual channels have Device == DeviceNone.
type HwBinding struct {
	Device Device
	Index  uint16
}

// NoRef is the sentinel id meaning "unconnected" (spec.md section 3).
const NoRef uint16 = 0xFFFF

// IsRef reports whether id is a real, resolvable channel reference
// rather than the "unconnected" sentinel (0 or 0xFFFF).
func IsRef(id uint16) bool {
	return id != 0 && id != NoRef
}

// Referencer is implemented by kind-specific configs that hold
// references to other channels; the registry uses it to build the
// dependency graph for topological ordering and cycle detection
// (spec.md I3, P1, P7).
type Referencer interface {
	References() []uint16
}

// Evaluator is implemented by kind-specific configs that know how to
// produce a tick's value given the current registry view.
type Evaluator interface {
	Evaluate(ctx *EvalContext, ch *Channel) int32
}

// Channel is a uniquely identified, typed evaluation node (spec.md
// section 3).
type Channel struct {
	ID        uint16
	Kind      Kind
	Name      string
	Flags     Flags
	Display   Display
	HwBinding HwBinding

	// Config is one of the kind-specific *Config structs in kind_*.go.
	Config interface{}

	// State is private, kind-specific runtime state (debounce timers,
	// ring buffers, latch bits, PID integrators) allocated once at
	// apply time and mutated each tick.
	State interface{}

	Value        int32
	PrevValue    int32
	TimestampMs  uint64
	StaleSinceMs uint64
}

// refsOf extracts the reference list from a channel's config, if any.
func refsOf(cfg interface{}) []uint16 {
	if r, ok := cfg.(Referencer); ok {
		return r.References()
	}
	return nil
}
