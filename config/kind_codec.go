package config

import (
	"fmt"

	"github.com/rakyury/pmu-30-sub009/channel"
)

// decodeConfig dispatches ConfigBytes to the kind-specific decoder.
// Every kind's byte layout is this package's own design (spec.md
// section 6 fixes only the outer header/CRC/string-table shape, not
// per-kind field layout), kept compact and symmetric with encodeConfig
// below so Parse/Build and Encode agree.
func decodeConfig(kind channel.Kind, data []byte) (interface{}, error) {
	r := newReader(data)
	var cfg interface{}
	switch kind {
	case channel.KindDigitalInput:
		cfg = decodeDigitalInput(r)
	case channel.KindAnalogInput:
		cfg = decodeAnalogInput(r)
	case channel.KindFrequencyInput:
		cfg = decodeFrequencyInput(r)
	case channel.KindCanRx:
		cfg = decodeCanRx(r)
	case channel.KindPowerOutput:
		cfg = decodePowerOutput(r)
	case channel.KindHBridge:
		cfg = decodeHBridge(r)
	case channel.KindCanTx:
		cfg = decodeCanTx(r)
	case channel.KindLogic:
		cfg = decodeLogic(r)
	case channel.KindNumber:
		cfg = decodeNumber(r)
	case channel.KindFilter:
		cfg = decodeFilter(r)
	case channel.KindTimer:
		cfg = decodeTimer(r)
	case channel.KindTable2D:
		cfg = decodeTable2D(r)
	case channel.KindTable3D:
		cfg = decodeTable3D(r)
	case channel.KindSwitch:
		cfg = decodeSwitch(r)
	case channel.KindEnum:
		cfg = decodeEnum(r)
	case channel.KindPid:
		cfg = decodePid(r)
	case channel.KindSystemReadOnly:
		cfg = decodeSystemReadOnly(r)
	default:
		return nil, &channel.ConfigError{Kind: channel.ErrUnknownKind, Detail: fmt.Sprintf("kind %d", uint8(kind))}
	}
	if r.err != nil {
		return nil, &channel.ConfigError{Kind: channel.ErrSizeMismatch, Detail: r.err.Error()}
	}
	return cfg, nil
}

// encodeConfig is decodeConfig's inverse, used by Encode.
func encodeConfig(kind channel.Kind, cfg interface{}) ([]byte, error) {
	w := &writer{}
	switch kind {
	case channel.KindDigitalInput:
		encodeDigitalInput(w, cfg.(*channel.DigitalInputConfig))
	case channel.KindAnalogInput:
		encodeAnalogInput(w, cfg.(*channel.AnalogInputConfig))
	case channel.KindFrequencyInput:
		encodeFrequencyInput(w, cfg.(*channel.FrequencyInputConfig))
	case channel.KindCanRx:
		encodeCanRx(w, cfg.(*channel.CanRxConfig))
	case channel.KindPowerOutput:
		encodePowerOutput(w, cfg.(*channel.PowerOutputConfig))
	case channel.KindHBridge:
		encodeHBridge(w, cfg.(*channel.HBridgeConfig))
	case channel.KindCanTx:
		encodeCanTx(w, cfg.(*channel.CanTxConfig))
	case channel.KindLogic:
		encodeLogic(w, cfg.(*channel.LogicConfig))
	case channel.KindNumber:
		encodeNumber(w, cfg.(*channel.NumberConfig))
	case channel.KindFilter:
		encodeFilter(w, cfg.(*channel.FilterConfig))
	case channel.KindTimer:
		encodeTimer(w, cfg.(*channel.TimerConfig))
	case channel.KindTable2D:
		encodeTable2D(w, cfg.(*channel.Table2DConfig))
	case channel.KindTable3D:
		encodeTable3D(w, cfg.(*channel.Table3DConfig))
	case channel.KindSwitch:
		encodeSwitch(w, cfg.(*channel.SwitchConfig))
	case channel.KindEnum:
		encodeEnum(w, cfg.(*channel.EnumConfig))
	case channel.KindPid:
		encodePid(w, cfg.(*channel.PidConfig))
	case channel.KindSystemReadOnly:
		encodeSystemReadOnly(w, cfg.(*channel.SystemReadOnlyConfig))
	default:
		return nil, &channel.ConfigError{Kind: channel.ErrUnknownKind, Detail: fmt.Sprintf("kind %d", uint8(kind))}
	}
	return w.buf, nil
}

func decodeDigitalInput(r *reader) *channel.DigitalInputConfig {
	return &channel.DigitalInputConfig{
		Mode:               channel.DigitalInputMode(r.u8()),
		Pin:                int(r.u16()),
		Pullup:             r.bool8(),
		DebounceMs:         r.u32(),
		ThresholdVoltageMv: r.u16(),
		Teeth:              r.u16(),
		Mult:               r.u32(),
		Div:                r.u32(),
	}
}

func encodeDigitalInput(w *writer, c *channel.DigitalInputConfig) {
	w.u8(uint8(c.Mode))
	w.u16(uint16(c.Pin))
	w.bool8(c.Pullup)
	w.u32(c.DebounceMs)
	w.u16(c.ThresholdVoltageMv)
	w.u16(c.Teeth)
	w.u32(c.Mult)
	w.u32(c.Div)
}

func decodeAnalogInput(r *reader) *channel.AnalogInputConfig {
	c := &channel.AnalogInputConfig{
		Mode:     channel.AnalogInputMode(r.u8()),
		Pull:     channel.PullOption(r.u8()),
		MinMv:    r.i32(),
		MaxMv:    r.i32(),
		MinValue: r.i32(),
		MaxValue: r.i32(),
	}
	n := int(r.u16())
	c.Points = make([]channel.CalPoint, n)
	for i := range c.Points {
		c.Points[i] = channel.CalPoint{VoltageMv: r.i32(), Value: r.i32()}
	}
	c.Positions = int(r.u16())
	c.DebounceMs = r.u32()
	c.ThresholdHighMv = r.i32()
	c.ThresholdLowMv = r.i32()
	c.OnHoldMs = r.u32()
	c.OffHoldMs = r.u32()
	return c
}

func encodeAnalogInput(w *writer, c *channel.AnalogInputConfig) {
	w.u8(uint8(c.Mode))
	w.u8(uint8(c.Pull))
	w.i32(c.MinMv)
	w.i32(c.MaxMv)
	w.i32(c.MinValue)
	w.i32(c.MaxValue)
	w.u16(uint16(len(c.Points)))
	for _, p := range c.Points {
		w.i32(p.VoltageMv)
		w.i32(p.Value)
	}
	w.u16(uint16(c.Positions))
	w.u32(c.DebounceMs)
	w.i32(c.ThresholdHighMv)
	w.i32(c.ThresholdLowMv)
	w.u32(c.OnHoldMs)
	w.u32(c.OffHoldMs)
}

func decodeFrequencyInput(r *reader) *channel.FrequencyInputConfig {
	return &channel.FrequencyInputConfig{Mult: r.u32(), Div: r.u32(), TimeoutMs: r.u32()}
}

func encodeFrequencyInput(w *writer, c *channel.FrequencyInputConfig) {
	w.u32(c.Mult)
	w.u32(c.Div)
	w.u32(c.TimeoutMs)
}

func decodeCanRx(r *reader) *channel.CanRxConfig {
	return &channel.CanRxConfig{
		Bus:           int(r.u8()),
		MessageID:     r.u32(),
		IsExtended:    r.bool8(),
		StartBit:      uint(r.u16()),
		Length:        uint(r.u16()),
		ByteOrder:     channel.ByteOrder(r.u8()),
		ValueType:     channel.ValueType(r.u8()),
		Multiplier:    r.i32(),
		Divider:       r.i32(),
		Offset:        r.i32(),
		TimeoutMs:     r.u32(),
		TimeoutPolicy: channel.TimeoutPolicyKind(r.u8()),
		TimeoutValue:  r.i32(),
	}
}

func encodeCanRx(w *writer, c *channel.CanRxConfig) {
	w.u8(uint8(c.Bus))
	w.u32(c.MessageID)
	w.bool8(c.IsExtended)
	w.u16(uint16(c.StartBit))
	w.u16(uint16(c.Length))
	w.u8(uint8(c.ByteOrder))
	w.u8(uint8(c.ValueType))
	w.i32(c.Multiplier)
	w.i32(c.Divider)
	w.i32(c.Offset)
	w.u32(c.TimeoutMs)
	w.u8(uint8(c.TimeoutPolicy))
	w.i32(c.TimeoutValue)
}

func decodePowerOutput(r *reader) *channel.PowerOutputConfig {
	c := &channel.PowerOutputConfig{
		SourceID:       r.u16(),
		DutySourceID:   r.u16(),
		PwmFrequencyHz: r.u32(),
		SoftStartMs:    r.u32(),
		InrushCurrentA: r.f64milli(),
		InrushTimeMs:   r.u32(),
		CurrentLimitA:  r.f64milli(),
		RetryCount:     int(r.u8()),
		RetryDelayMs:   r.u32(),
	}
	n := int(r.u8())
	c.Pins = make([]int, n)
	for i := range c.Pins {
		c.Pins[i] = int(r.u8())
	}
	return c
}

func encodePowerOutput(w *writer, c *channel.PowerOutputConfig) {
	w.u16(c.SourceID)
	w.u16(c.DutySourceID)
	w.u32(c.PwmFrequencyHz)
	w.u32(c.SoftStartMs)
	w.f64milli(c.InrushCurrentA)
	w.u32(c.InrushTimeMs)
	w.f64milli(c.CurrentLimitA)
	w.u8(uint8(c.RetryCount))
	w.u32(c.RetryDelayMs)
	w.u8(uint8(len(c.Pins)))
	for _, p := range c.Pins {
		w.u8(uint8(p))
	}
}

func decodeHBridge(r *reader) *channel.HBridgeConfig {
	return &channel.HBridgeConfig{
		ModeSourceID:   r.u16(),
		DutySourceID:   r.u16(),
		TargetSourceID: r.u16(),
		StallMs:        r.u32(),
	}
}

func encodeHBridge(w *writer, c *channel.HBridgeConfig) {
	w.u16(c.ModeSourceID)
	w.u16(c.DutySourceID)
	w.u16(c.TargetSourceID)
	w.u32(c.StallMs)
}

func decodeCanTx(r *reader) *channel.CanTxConfig {
	c := &channel.CanTxConfig{
		Bus:        int(r.u8()),
		MessageID:  r.u32(),
		IsExtended: r.bool8(),
		IsFD:       r.bool8(),
		CycleMs:    r.u32(),
		Dlc:        int(r.u8()),
	}
	n := int(r.u16())
	c.Signals = make([]channel.CanTxSignal, n)
	for i := range c.Signals {
		c.Signals[i] = channel.CanTxSignal{
			SourceID:   r.u16(),
			StartBit:   uint(r.u16()),
			Length:     uint(r.u16()),
			ByteOrder:  channel.ByteOrder(r.u8()),
			Multiplier: r.i32(),
		}
	}
	return c
}

func encodeCanTx(w *writer, c *channel.CanTxConfig) {
	w.u8(uint8(c.Bus))
	w.u32(c.MessageID)
	w.bool8(c.IsExtended)
	w.bool8(c.IsFD)
	w.u32(c.CycleMs)
	w.u8(uint8(c.Dlc))
	w.u16(uint16(len(c.Signals)))
	for _, s := range c.Signals {
		w.u16(s.SourceID)
		w.u16(uint16(s.StartBit))
		w.u16(uint16(s.Length))
		w.u8(uint8(s.ByteOrder))
		w.i32(s.Multiplier)
	}
}

func decodeLogic(r *reader) *channel.LogicConfig {
	return &channel.LogicConfig{
		Op:             channel.LogicOp(r.u8()),
		SourceID:       r.u16(),
		SourceB:        r.u16(),
		Inputs:         r.u16s(),
		Compare:        r.i32(),
		RangeHi:        r.i32(),
		UpperThreshold: r.i32(),
		LowerThreshold: r.i32(),
		PolarityInvert: r.bool8(),
		SetID:          r.u16(),
		ResetID:        r.u16(),
		PulseMs:        r.u32(),
		FlashOnMs:      r.u32(),
		FlashOffMs:     r.u32(),
		TrueDelayS:     r.f64milli(),
		FalseDelayS:    r.f64milli(),
	}
}

func encodeLogic(w *writer, c *channel.LogicConfig) {
	w.u8(uint8(c.Op))
	w.u16(c.SourceID)
	w.u16(c.SourceB)
	w.u16s(c.Inputs)
	w.i32(c.Compare)
	w.i32(c.RangeHi)
	w.i32(c.UpperThreshold)
	w.i32(c.LowerThreshold)
	w.bool8(c.PolarityInvert)
	w.u16(c.SetID)
	w.u16(c.ResetID)
	w.u32(c.PulseMs)
	w.u32(c.FlashOnMs)
	w.u32(c.FlashOffMs)
	w.f64milli(c.TrueDelayS)
	w.f64milli(c.FalseDelayS)
}

func decodeNumber(r *reader) *channel.NumberConfig {
	c := &channel.NumberConfig{
		Op:            channel.NumberOp(r.u8()),
		ConstantValue: r.i32(),
		Inputs:        r.u16s(),
		ScaleA:        r.i32(),
		ScaleB:        r.i32(),
		ClampMin:      r.i32(),
		ClampMax:      r.i32(),
		ConditionID:   r.u16(),
		TrueID:        r.u16(),
		FalseID:       r.u16(),
	}
	n := int(r.u16())
	c.Lookup3Table = make([]channel.Point32, n)
	for i := range c.Lookup3Table {
		c.Lookup3Table[i] = channel.Point32{X: r.i32(), Y: r.i32()}
	}
	return c
}

func encodeNumber(w *writer, c *channel.NumberConfig) {
	w.u8(uint8(c.Op))
	w.i32(c.ConstantValue)
	w.u16s(c.Inputs)
	w.i32(c.ScaleA)
	w.i32(c.ScaleB)
	w.i32(c.ClampMin)
	w.i32(c.ClampMax)
	w.u16(c.ConditionID)
	w.u16(c.TrueID)
	w.u16(c.FalseID)
	w.u16(uint16(len(c.Lookup3Table)))
	for _, p := range c.Lookup3Table {
		w.i32(p.X)
		w.i32(p.Y)
	}
}

func decodeFilter(r *reader) *channel.FilterConfig {
	return &channel.FilterConfig{
		Kind:    channel.FilterKind(r.u8()),
		InputID: r.u16(),
		Window:  int(r.u16()),
		TauMs:   r.f64milli(),
	}
}

func encodeFilter(w *writer, c *channel.FilterConfig) {
	w.u8(uint8(c.Kind))
	w.u16(c.InputID)
	w.u16(uint16(c.Window))
	w.f64milli(c.TauMs)
}

func decodeTimer(r *reader) *channel.TimerConfig {
	return &channel.TimerConfig{
		Mode:           channel.TimerMode(r.u8()),
		StartID:        r.u16(),
		StopID:         r.u16(),
		ResetID:        r.u16(),
		StartActiveLow: r.bool8(),
		StopActiveLow:  r.bool8(),
		LimitMs:        r.u32(),
	}
}

func encodeTimer(w *writer, c *channel.TimerConfig) {
	w.u8(uint8(c.Mode))
	w.u16(c.StartID)
	w.u16(c.StopID)
	w.u16(c.ResetID)
	w.bool8(c.StartActiveLow)
	w.bool8(c.StopActiveLow)
	w.u32(c.LimitMs)
}

func decodeTable2D(r *reader) *channel.Table2DConfig {
	return &channel.Table2DConfig{InputID: r.u16(), Axis: r.i32s(), Values: r.i32s()}
}

func encodeTable2D(w *writer, c *channel.Table2DConfig) {
	w.u16(c.InputID)
	w.i32s(c.Axis)
	w.i32s(c.Values)
}

func decodeTable3D(r *reader) *channel.Table3DConfig {
	c := &channel.Table3DConfig{
		InputXID: r.u16(),
		InputYID: r.u16(),
		AxisX:    r.i32s(),
		AxisY:    r.i32s(),
	}
	n := int(r.u16())
	c.Values = make([][]int32, n)
	for i := range c.Values {
		c.Values[i] = r.i32s()
	}
	return c
}

func encodeTable3D(w *writer, c *channel.Table3DConfig) {
	w.u16(c.InputXID)
	w.u16(c.InputYID)
	w.i32s(c.AxisX)
	w.i32s(c.AxisY)
	w.u16(uint16(len(c.Values)))
	for _, row := range c.Values {
		w.i32s(row)
	}
}

func decodeSwitch(r *reader) *channel.SwitchConfig {
	return &channel.SwitchConfig{
		Type:         channel.SwitchType(r.u8()),
		InputUpID:    r.u16(),
		InputDownID:  r.u16(),
		StateFirst:   r.i32(),
		StateLast:    r.i32(),
		StateDefault: r.i32(),
		HoldMs:       r.u32(),
	}
}

func encodeSwitch(w *writer, c *channel.SwitchConfig) {
	w.u8(uint8(c.Type))
	w.u16(c.InputUpID)
	w.u16(c.InputDownID)
	w.i32(c.StateFirst)
	w.i32(c.StateLast)
	w.i32(c.StateDefault)
	w.u32(c.HoldMs)
}

func decodeEnum(r *reader) *channel.EnumConfig {
	c := &channel.EnumConfig{SourceID: r.u16()}
	n := int(r.u8())
	c.Labels = make(map[int32]string, n)
	for i := 0; i < n; i++ {
		key := r.i32()
		c.Labels[key] = r.str8()
	}
	return c
}

func encodeEnum(w *writer, c *channel.EnumConfig) {
	w.u16(c.SourceID)
	w.u8(uint8(len(c.Labels)))
	for k, v := range c.Labels {
		w.i32(k)
		w.str8(v)
	}
}

func decodePid(r *reader) *channel.PidConfig {
	return &channel.PidConfig{
		PvID:       r.u16(),
		SetpointID: r.u16(),
		Kp:         r.f64milli(),
		Ki:         r.f64milli(),
		Kd:         r.f64milli(),
		OutMin:     r.i32(),
		OutMax:     r.i32(),
		AntiWindup: channel.AntiWindup(r.u8()),
	}
}

func encodePid(w *writer, c *channel.PidConfig) {
	w.u16(c.PvID)
	w.u16(c.SetpointID)
	w.f64milli(c.Kp)
	w.f64milli(c.Ki)
	w.f64milli(c.Kd)
	w.i32(c.OutMin)
	w.i32(c.OutMax)
	w.u8(uint8(c.AntiWindup))
}

func decodeSystemReadOnly(r *reader) *channel.SystemReadOnlyConfig {
	return &channel.SystemReadOnlyConfig{Kind: channel.SystemReadOnlyKind(r.u8()), SourceID: r.u16()}
}

func encodeSystemReadOnly(w *writer, c *channel.SystemReadOnlyConfig) {
	w.u8(uint8(c.Kind))
	w.u16(c.SourceID)
}
