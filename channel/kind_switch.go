package channel

// SwitchType enumerates spec.md section 4.2.13.
type SwitchType uint8

const (
	SwitchLatching SwitchType = iota
	SwitchMomentary
	SwitchPressHold
)

// SwitchConfig implements spec.md section 4.2.13.
type SwitchConfig struct {
	Type SwitchType

	InputUpID, InputDownID uint16
	StateFirst, StateLast  int32
	StateDefault           int32

	HoldMs uint32 // press_hold: duration to register a "hold" step
}

func (c *SwitchConfig) References() []uint16 { return []uint16{c.InputUpID, c.InputDownID} }

type switchState struct {
	value       int32
	initialized bool

	upSinceMs   uint64
	downSinceMs uint64
	upHeld      bool
	downHeld    bool
}

// Evaluate maintains an integer state in [StateFirst,StateLast],
// transitioning on edges of InputUp/InputDown (spec.md section
// 4.2.13). On first enable the value defaults to StateDefault
// (invariant I6's kind-defined default for this kind).
func (c *SwitchConfig) Evaluate(ctx *EvalContext, ch *Channel) int32 {
	st := ch.State.(*switchState)
	if !st.initialized {
		st.value = c.StateDefault
		st.initialized = true
	}

	up := ctx.Value(c.InputUpID) != 0
	upPrev := ctx.PrevValue(c.InputUpID) != 0
	down := ctx.Value(c.InputDownID) != 0
	downPrev := ctx.PrevValue(c.InputDownID) != 0

	switch c.Type {
	case SwitchLatching, SwitchMomentary:
		if up && !upPrev {
			st.value = clamp32(st.value+1, c.StateFirst, c.StateLast)
		}
		if down && !downPrev {
			st.value = clamp32(st.value-1, c.StateFirst, c.StateLast)
		}
	case SwitchPressHold:
		if up && !upPrev {
			st.upSinceMs = ctx.NowMs
			st.upHeld = false
		}
		if up && !st.upHeld && ctx.NowMs-st.upSinceMs >= uint64(c.HoldMs) {
			st.value = c.StateLast
			st.upHeld = true
		} else if up && !upPrev {
			st.value = clamp32(st.value+1, c.StateFirst, c.StateLast)
		}
		if down && !downPrev {
			st.downSinceMs = ctx.NowMs
			st.downHeld = false
		}
		if down && !st.downHeld && ctx.NowMs-st.downSinceMs >= uint64(c.HoldMs) {
			st.value = c.StateFirst
			st.downHeld = true
		} else if down && !downPrev {
			st.value = clamp32(st.value-1, c.StateFirst, c.StateLast)
		}
	}
	return st.value
}
