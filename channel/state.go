package channel

// newState allocates the kind-specific runtime state a Channel needs
// at apply time (spec.md: channels are "created only at configuration
// apply"). Config-driven sizing (e.g. filter ring length) happens
// here rather than lazily inside Evaluate, so Evaluate never sizes or
// allocates this per-channel state itself.
func newState(kind Kind, cfg interface{}) interface{} {
	switch kind {
	case KindDigitalInput:
		return &digitalInputState{}
	case KindAnalogInput:
		return &analogInputState{}
	case KindFrequencyInput:
		return &frequencyInputState{}
	case KindCanRx:
		return &canRxState{}
	case KindCanTx:
		return &canTxState{}
	case KindLogic:
		return &logicState{}
	case KindFilter:
		if fc, ok := cfg.(*FilterConfig); ok {
			return newFilterState(fc)
		}
		return &filterState{ring: make([]int32, MaxFilterWindow)}
	case KindTimer:
		return &timerState{}
	case KindSwitch:
		return &switchState{}
	case KindPid:
		return &pidState{}
	default:
		return nil
	}
}
