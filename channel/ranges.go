package channel

// idRange is an inclusive [Lo,Hi] band reserved for one Kind, per the
// "ID ranges" table in spec.md section 6.
type idRange struct {
	Lo, Hi uint16
	Kind   Kind
}

var idRanges = []idRange{
	{0, 19, KindDigitalInput},
	{50, 69, KindAnalogInput},
	// FrequencyInput shares the physical-pin numbering space with
	// DigitalInput in spec.md (both are pin-addressed captures); we
	// additionally carve a dedicated band so frequency-mode captures
	// can coexist with switch-mode digital inputs without an id clash.
	{20, 49, KindFrequencyInput},
	{100, 129, KindPowerOutput},
	{150, 157, KindHBridge},
	{200, 299, KindCanRx},
	{300, 399, KindCanTx},
	{400, 499, KindLogic},
	{500, 599, KindNumber},
	{600, 699, KindTimer},
	{700, 799, KindFilter},
	{800, 899, KindSwitch},
	{900, 949, KindTable2D},
	{950, 999, KindTable3D},
	{1000, 1099, KindSystemReadOnly},
	{1100, 1279, KindSystemReadOnly},
	{1280, 1299, KindEnum},
	{1300, 1399, KindPid},
}

// KindForID returns the Kind whose range contains id, and whether one
// was found.
func KindForID(id uint16) (Kind, bool) {
	for _, r := range idRanges {
		if id >= r.Lo && id <= r.Hi {
			return r.Kind, true
		}
	}
	return 0, false
}

// InKindRange reports whether id lies in kind's reserved range
// (spec.md I2, P8).
func InKindRange(id uint16, kind Kind) bool {
	for _, r := range idRanges {
		if r.Kind == kind && id >= r.Lo && id <= r.Hi {
			return true
		}
	}
	return false
}
