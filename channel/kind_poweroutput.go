package channel

// PowerOutputConfig implements spec.md section 4.2.5. The physical
// soft-start/inrush/thermal/fault/retry model lives in the drivers
// package (C4); this config only evaluates the commanded on/off+duty
// intent each tick and relays it through ctx.Commander, storing back
// the observed state as the channel's telemetry value (duty
// permille, clamped to [0,1000]).
type PowerOutputConfig struct {
	SourceID      uint16
	DutySourceID  uint16 // optional; sentinel means "use SourceID as a boolean and run full duty"
	PwmFrequencyHz uint32
	SoftStartMs    uint32
	InrushCurrentA float64
	InrushTimeMs   uint32
	CurrentLimitA  float64
	RetryCount     int
	RetryDelayMs   uint32
	Pins           []int // 1..3 parallelable physical pins treated as one logical output
}

func (c *PowerOutputConfig) References() []uint16 {
	return []uint16{c.SourceID, c.DutySourceID}
}

// Evaluate commands the bound PROFET driver and stores its observed
// duty (permille) as the channel value; current/temperature/fault are
// exposed to telemetry via SystemReadOnly sub-channels that mirror
// this channel (see kind_enum_system.go).
func (c *PowerOutputConfig) Evaluate(ctx *EvalContext, ch *Channel) int32 {
	on := ctx.Value(c.SourceID) != 0
	duty := uint16(1000)
	if IsRef(c.DutySourceID) {
		d := ctx.Value(c.DutySourceID)
		duty = uint16(clamp32(d, 0, 1000))
	}
	if ctx.Commander == nil {
		if on {
			return int32(duty)
		}
		return 0
	}
	obs := ctx.Commander.CommandPowerOutput(ch.HwBinding.Index, on, duty, ctx.NowMs)
	if obs.FaultBits != 0 {
		ch.Flags = ch.Flags.Set(FlagFault, true)
	}
	return int32(obs.DutyPermille)
}
