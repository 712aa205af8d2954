package channel

// TimerMode enumerates spec.md section 4.2.11.
type TimerMode uint8

const (
	TimerCountUp TimerMode = iota
	TimerCountDown
	TimerDelayOn
	TimerDelayOff
	TimerPulse
)

// TimerConfig implements spec.md section 4.2.11.
type TimerConfig struct {
	Mode TimerMode

	StartID uint16
	StopID  uint16
	ResetID uint16

	StartActiveLow bool
	StopActiveLow  bool

	LimitMs uint32 // the configured hours/minutes/seconds limit, in ms
}

func (c *TimerConfig) References() []uint16 {
	return []uint16{c.StartID, c.StopID, c.ResetID}
}

type timerState struct {
	running    bool
	elapsedMs  uint64
	lastTickMs uint64
	haveTick   bool
}

func polarized(v int32, activeLow bool) bool {
	on := v != 0
	if activeLow {
		return !on
	}
	return on
}

// Evaluate integrates elapsed time while the start condition holds,
// and reports elapsed (count_up) or remaining (count_down) ms;
// delay_on, delay_off and pulse report their 0/1 output instead
// (spec.md section 4.2.11).
func (c *TimerConfig) Evaluate(ctx *EvalContext, ch *Channel) int32 {
	st := ch.State.(*timerState)

	if IsRef(c.ResetID) && ctx.Value(c.ResetID) != 0 {
		st.elapsedMs = 0
		st.running = false
	}

	start := polarized(ctx.Value(c.StartID), c.StartActiveLow)
	stop := IsRef(c.StopID) && polarized(ctx.Value(c.StopID), c.StopActiveLow)

	var dt uint64
	if st.haveTick {
		dt = ctx.NowMs - st.lastTickMs
	}
	st.lastTickMs = ctx.NowMs
	st.haveTick = true

	if stop {
		st.running = false
	} else if start {
		st.running = true
	} else if c.Mode != TimerDelayOff {
		st.running = false
	}

	if st.running {
		st.elapsedMs += dt
		if c.LimitMs > 0 && st.elapsedMs > uint64(c.LimitMs) {
			st.elapsedMs = uint64(c.LimitMs)
		}
	}

	switch c.Mode {
	case TimerCountDown:
		if c.LimitMs == 0 {
			return 0
		}
		remaining := int64(c.LimitMs) - int64(st.elapsedMs)
		if remaining < 0 {
			remaining = 0
		}
		return int32(remaining)
	case TimerDelayOn:
		if st.elapsedMs >= uint64(c.LimitMs) {
			return 1
		}
		return 0
	case TimerDelayOff:
		if start {
			st.elapsedMs = 0
			return 1
		}
		if st.elapsedMs < uint64(c.LimitMs) {
			return 1
		}
		return 0
	case TimerPulse:
		if st.running && st.elapsedMs < uint64(c.LimitMs) {
			return 1
		}
		return 0
	default: // TimerCountUp
		return int32(st.elapsedMs)
	}
}
