package channel

// HBridgeConfig implements spec.md section 4.2.6. As with
// PowerOutput, the electro-mechanical-thermal model lives in the
// drivers package; this config only translates a mode/duty/target
// command each tick and relays the observed position back as the
// channel's value.
type HBridgeConfig struct {
	ModeSourceID   uint16 // value maps to HBridgeMode
	DutySourceID   uint16 // 0..1000 permille, Forward/Reverse
	TargetSourceID uint16 // PositionControl target
	StallMs        uint32
}

func (c *HBridgeConfig) References() []uint16 {
	return []uint16{c.ModeSourceID, c.DutySourceID, c.TargetSourceID}
}

func (c *HBridgeConfig) Evaluate(ctx *EvalContext, ch *Channel) int32 {
	mode := HBridgeMode(ctx.Value(c.ModeSourceID))
	duty := uint16(clamp32(ctx.Value(c.DutySourceID), 0, 1000))
	target := ctx.Value(c.TargetSourceID)

	if ctx.Commander == nil {
		return target
	}
	obs := ctx.Commander.CommandHBridge(ch.HwBinding.Index, mode, duty, target, ctx.NowMs)
	if obs.FaultBits != 0 {
		ch.Flags = ch.Flags.Set(FlagFault, true)
	}
	return obs.PositionRaw
}
