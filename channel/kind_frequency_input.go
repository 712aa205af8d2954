package channel

// FrequencyInputConfig implements spec.md section 4.2.3.
type FrequencyInputConfig struct {
	Mult, Div uint32
	TimeoutMs uint32
}

type frequencyInputState struct {
	haveEdge   bool
	lastEdgeMs uint64
	periodMs   uint64
}

// Evaluate captures the period between edges and reports Hz*mult/div,
// or 0 when no edge arrived within TimeoutMs.
func (c *FrequencyInputConfig) Evaluate(ctx *EvalContext, ch *Channel) int32 {
	st := ch.State.(*frequencyInputState)
	edge := readDigitalHW(ctx, ch)
	if edge {
		if st.haveEdge {
			st.periodMs = ctx.NowMs - st.lastEdgeMs
		}
		st.lastEdgeMs = ctx.NowMs
		st.haveEdge = true
	}
	if !st.haveEdge || (ctx.NowMs-st.lastEdgeMs) > uint64(c.TimeoutMs) {
		return 0
	}
	if st.periodMs == 0 {
		return 0
	}
	mult, div := c.Mult, c.Div
	if mult == 0 {
		mult = 1
	}
	if div == 0 {
		div = 1
	}
	hz := 1000.0 / float64(st.periodMs)
	return int32(hz * float64(mult) / float64(div))
}
