package channel

// LogicOp enumerates spec.md section 4.2.8.
type LogicOp uint8

const (
	LogicIsTrue LogicOp = iota
	LogicIsFalse
	LogicEqual
	LogicNotEqual
	LogicLess
	LogicGreater
	LogicLessEqual
	LogicGreaterEqual
	LogicInRange
	LogicAnd
	LogicOr
	LogicXor
	LogicNand
	LogicNor
	LogicEdgeRising
	LogicEdgeFalling
	LogicHysteresis
	LogicToggle
	LogicPulse
	LogicFlash
	LogicSetResetLatch
	LogicChanged
)

// LogicConfig implements spec.md section 4.2.8. Not every field
// applies to every Op; unused fields are simply ignored by Evaluate.
type LogicConfig struct {
	Op LogicOp

	SourceID  uint16
	SourceB   uint16
	Inputs    []uint16 // for And/Or/Xor/Nand/Nor over N inputs

	Compare int32 // for Equal/NotEqual/Less/Greater/.../InRange lower bound
	RangeHi int32 // InRange upper bound

	UpperThreshold int32 // Hysteresis
	LowerThreshold int32
	PolarityInvert bool

	SetID, ResetID uint16 // SetResetLatch

	PulseMs      uint32 // Pulse: one-shot high duration after a rising edge
	FlashOnMs    uint32 // Flash: periodic on/off while source is true
	FlashOffMs   uint32

	TrueDelayS  float64
	FalseDelayS float64
}

func (c *LogicConfig) References() []uint16 {
	refs := append([]uint16{c.SourceID, c.SourceB, c.SetID, c.ResetID}, c.Inputs...)
	return refs
}

type logicState struct {
	latchOut       bool
	toggleOut      bool
	lastSourceEdge int32 // previous raw source value, for edge/toggle/changed ops

	pendingOut     bool
	pendingSinceMs uint64
	delayedOut     bool
	haveDelayed    bool

	pulseUntilMs uint64
	pulseArmed   bool

	flashPhaseOn   bool
	flashSinceMs   uint64
}

func boolToInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// Evaluate computes this tick's boolean (0/1) output, then applies the
// true/false hold-delay gate common to every op (spec.md "Delays").
func (c *LogicConfig) Evaluate(ctx *EvalContext, ch *Channel) int32 {
	st := ch.State.(*logicState)
	raw := c.evalRaw(ctx, ch, st)
	if c.PolarityInvert {
		raw = !raw
	}
	return boolToInt(c.applyDelay(ctx, st, raw))
}

func (c *LogicConfig) evalRaw(ctx *EvalContext, ch *Channel, st *logicState) bool {
	src := ctx.Value(c.SourceID)
	srcB := ctx.Value(c.SourceB)
	prevSrc := ctx.PrevValue(c.SourceID)

	switch c.Op {
	case LogicIsTrue:
		return src != 0
	case LogicIsFalse:
		return src == 0
	case LogicEqual:
		return src == c.Compare
	case LogicNotEqual:
		return src != c.Compare
	case LogicLess:
		return src < c.Compare
	case LogicGreater:
		return src > c.Compare
	case LogicLessEqual:
		return src <= c.Compare
	case LogicGreaterEqual:
		return src >= c.Compare
	case LogicInRange:
		return src >= c.Compare && src <= c.RangeHi
	case LogicAnd, LogicNand:
		out := true
		for _, id := range c.Inputs {
			if ctx.Value(id) == 0 {
				out = false
				break
			}
		}
		if c.Op == LogicNand {
			out = !out
		}
		return out
	case LogicOr, LogicNor:
		out := false
		for _, id := range c.Inputs {
			if ctx.Value(id) != 0 {
				out = true
				break
			}
		}
		if c.Op == LogicNor {
			out = !out
		}
		return out
	case LogicXor:
		count := 0
		for _, id := range c.Inputs {
			if ctx.Value(id) != 0 {
				count++
			}
		}
		return count%2 == 1
	case LogicEdgeRising:
		return prevSrc == 0 && src != 0
	case LogicEdgeFalling:
		return prevSrc != 0 && src == 0
	case LogicChanged:
		return src != prevSrc
	case LogicHysteresis:
		if st.latchOut {
			if int32(src) <= c.LowerThreshold {
				st.latchOut = false
			}
		} else {
			if int32(src) >= c.UpperThreshold {
				st.latchOut = true
			}
		}
		return st.latchOut
	case LogicToggle:
		if prevSrc == 0 && src != 0 {
			st.toggleOut = !st.toggleOut
		}
		return st.toggleOut
	case LogicSetResetLatch:
		if ctx.Value(c.SetID) != 0 {
			st.latchOut = true
		} else if ctx.Value(c.ResetID) != 0 {
			st.latchOut = false
		}
		return st.latchOut
	case LogicPulse:
		if prevSrc == 0 && src != 0 {
			st.pulseArmed = true
			st.pulseUntilMs = ctx.NowMs + uint64(c.PulseMs)
		}
		if st.pulseArmed && ctx.NowMs >= st.pulseUntilMs {
			st.pulseArmed = false
		}
		return st.pulseArmed
	case LogicFlash:
		if src == 0 {
			st.flashPhaseOn = false
			st.flashSinceMs = ctx.NowMs
			return false
		}
		period := c.FlashOnMs
		if !st.flashPhaseOn {
			period = c.FlashOffMs
		}
		if ctx.NowMs-st.flashSinceMs >= uint64(period) {
			st.flashPhaseOn = !st.flashPhaseOn
			st.flashSinceMs = ctx.NowMs
		}
		return st.flashPhaseOn
	default:
		_ = srcB
		return false
	}
}

// applyDelay requires the target state to hold for TrueDelayS/
// FalseDelayS before the output actually changes (spec.md "Delays").
func (c *LogicConfig) applyDelay(ctx *EvalContext, st *logicState, raw bool) bool {
	if c.TrueDelayS == 0 && c.FalseDelayS == 0 {
		return raw
	}
	if !st.haveDelayed {
		st.haveDelayed = true
		st.delayedOut = raw
		st.pendingOut = raw
		st.pendingSinceMs = ctx.NowMs
		return st.delayedOut
	}
	if raw != st.pendingOut {
		st.pendingOut = raw
		st.pendingSinceMs = ctx.NowMs
	}
	if raw != st.delayedOut {
		delaySec := c.FalseDelayS
		if raw {
			delaySec = c.TrueDelayS
		}
		if float64(ctx.NowMs-st.pendingSinceMs) >= delaySec*1000 {
			st.delayedOut = raw
		}
	}
	return st.delayedOut
}
