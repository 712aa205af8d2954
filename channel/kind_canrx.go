package channel

// ByteOrder selects CAN signal endianness (spec.md section 4.2.4/4.2.7).
type ByteOrder uint8

const (
	LittleEndian ByteOrder = iota
	BigEndian
)

// ValueType selects how raw extracted bits are interpreted.
type ValueType uint8

const (
	ValueUnsigned ValueType = iota
	ValueSigned
	ValueFloat
)

// TimeoutPolicyKind selects CAN-RX watchdog behavior.
type TimeoutPolicyKind uint8

const (
	TimeoutHoldPrevious TimeoutPolicyKind = iota
	TimeoutSetValue
)

// CanRxConfig implements spec.md section 4.2.4.
type CanRxConfig struct {
	Bus           int
	MessageID     uint32
	IsExtended    bool
	StartBit      uint
	Length        uint
	ByteOrder     ByteOrder
	ValueType     ValueType
	Multiplier    int32
	Divider       int32
	Offset        int32
	TimeoutMs     uint32
	TimeoutPolicy TimeoutPolicyKind
	TimeoutValue  int32
}

type canRxState struct {
	lastFrameMs uint64
	haveFrame   bool
}

// Evaluate only applies the watchdog; value updates arrive via
// applyCanRxFrame from the registry's OnCanFrame upcall (spec.md
// section 4.2.4 and section 5 "Ordering guarantees" re: CAN being a
// physical input sampled outside the tick proper).
func (c *CanRxConfig) Evaluate(ctx *EvalContext, ch *Channel) int32 {
	st := ch.State.(*canRxState)
	if st.haveFrame && ctx.NowMs-st.lastFrameMs <= uint64(c.TimeoutMs) {
		return ch.Value
	}
	ch.Flags = ch.Flags.Set(FlagFault, true)
	switch c.TimeoutPolicy {
	case TimeoutSetValue:
		return c.TimeoutValue
	default:
		return ch.Value // HoldPrevious
	}
}

// applyCanRxFrame extracts bits, scales, and stashes the decoded value
// directly on the channel (it will be read back by Evaluate on the
// channel's own turn in the tick, matching "update timestamp" in
// spec.md).
func applyCanRxFrame(ch *Channel, cfg *CanRxConfig, data []byte, dlc int, nowMs uint64) {
	raw := extractBits(data, cfg.StartBit, cfg.Length, cfg.ByteOrder)
	var signed int64
	switch cfg.ValueType {
	case ValueSigned:
		signed = signExtend(raw, cfg.Length)
	default:
		signed = int64(raw)
	}
	div := cfg.Divider
	if div == 0 {
		div = 1
	}
	mul := cfg.Multiplier
	if mul == 0 {
		mul = 1
	}
	scaled := int32(roundDiv(signed*int64(mul), int64(div))) + cfg.Offset
	ch.Value = scaled
	ch.PrevValue = scaled
	ch.TimestampMs = nowMs
	ch.StaleSinceMs = 0
	ch.Flags = ch.Flags.Set(FlagFault, false)
	st := ch.State.(*canRxState)
	st.lastFrameMs = nowMs
	st.haveFrame = true
}

func roundDiv(num, den int64) int64 {
	if den == 0 {
		den = 1
	}
	if (num < 0) != (den < 0) {
		return -((-num + den/2) / den)
	}
	return (num + den/2) / den
}

func signExtend(raw uint64, bitsLen uint) int64 {
	if bitsLen == 0 || bitsLen >= 64 {
		return int64(raw)
	}
	shift := 64 - bitsLen
	return int64(raw<<shift) >> shift
}

func extractBits(data []byte, startBit, length uint, order ByteOrder) uint64 {
	if length == 0 || length > 64 {
		return 0
	}
	// Treat data as one big-endian or little-endian bit-addressed
	// integer depending on order, then shift/mask the requested span.
	var whole uint64
	switch order {
	case LittleEndian:
		for i := len(data) - 1; i >= 0; i-- {
			whole = whole<<8 | uint64(data[i])
		}
	default:
		for i := 0; i < len(data); i++ {
			whole = whole<<8 | uint64(data[i])
		}
	}
	if startBit >= 64 {
		return 0
	}
	whole >>= startBit
	if length < 64 {
		whole &= (uint64(1) << length) - 1
	}
	return whole
}
