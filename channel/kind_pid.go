package channel

// AntiWindup selects the integral clamp strategy (spec.md section
// 4.2.15).
type AntiWindup uint8

const (
	AntiWindupBackCalculation AntiWindup = iota
	AntiWindupClamp
)

// PidConfig implements spec.md section 4.2.15.
type PidConfig struct {
	PvID, SetpointID uint16
	Kp, Ki, Kd       float64 // fixed-point gains, applied in float then truncated toward zero
	OutMin, OutMax   int32
	AntiWindup       AntiWindup
}

func (c *PidConfig) References() []uint16 { return []uint16{c.PvID, c.SetpointID} }

type pidState struct {
	integral   float64
	prevError  float64
	haveError  bool
	lastMs     uint64
	haveTick   bool
}

// Evaluate computes clamped P+I+D with back-calculation anti-windup
// (spec.md section 4.2.15): the integral only accumulates the portion
// of the unsaturated output that wasn't clipped.
func (c *PidConfig) Evaluate(ctx *EvalContext, ch *Channel) int32 {
	st := ch.State.(*pidState)

	pv := float64(ctx.Value(c.PvID))
	sp := float64(ctx.Value(c.SetpointID))
	errVal := sp - pv

	var dtS float64
	if st.haveTick {
		dtS = float64(ctx.NowMs-st.lastMs) / 1000.0
	}
	st.lastMs = ctx.NowMs
	st.haveTick = true

	deriv := 0.0
	if st.haveError && dtS > 0 {
		deriv = (errVal - st.prevError) / dtS
	}
	st.prevError = errVal
	st.haveError = true

	switch c.AntiWindup {
	case AntiWindupClamp:
		candidateIntegral := st.integral + errVal*dtS
		unsat := c.Kp*errVal + c.Ki*candidateIntegral + c.Kd*deriv
		if unsat >= float64(c.OutMin) && unsat <= float64(c.OutMax) {
			st.integral = candidateIntegral
		}
	default: // back-calculation
		st.integral += errVal * dtS
	}

	out := c.Kp*errVal + c.Ki*st.integral + c.Kd*deriv
	clamped := clampToInt32(int64(out))
	clamped = clamp32(clamped, c.OutMin, c.OutMax)

	if c.AntiWindup == AntiWindupBackCalculation && out != float64(clamped) {
		excess := out - float64(clamped)
		const backCalcGain = 1.0
		st.integral -= backCalcGain * excess * dtS
	}
	return clamped
}
