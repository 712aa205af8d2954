package wire

// Feature is a single capability-advertised optional feature bit.
type Feature uint16

const (
	FeaturePid Feature = 1 << iota
	FeatureTables2D
	FeatureTables3D
	FeatureLogic
	FeatureTimers
	FeatureFilters
	FeatureMath
	FeatureDatalog
	FeatureCanStream
)

// Caps is the device capability record published via GET_CAPS and
// consumed by the telemetry builder to size variable sections
// (spec.md section 4.3).
type Caps struct {
	ProfetCount      uint16
	HBridgeCount     uint16
	AdcCount         uint16
	DinCount         uint16
	CanCount         uint16
	FreqCount        uint16
	PwmCount         uint16
	DacCount         uint16
	MaxChannels      uint16
	MaxLogic         uint16
	MaxTimers        uint16
	MaxTables        uint16
	FlashSizeKb      uint32
	RamSizeKb        uint32
	MaxCurrentMa     uint32
	PerChannelMa     uint32
	HBridgeCurrentMa uint32
	Features         Feature
}

func (c Caps) Has(f Feature) bool { return c.Features&f != 0 }

// Encode/Decode give Caps its GET_CAPS/CAPS_RESP wire shape. Layout is
// this implementation's own design (spec.md enumerates the fields but
// not their byte order); fixed-width integers throughout keep the
// payload a constant, pre-computable size.
func (c Caps) Encode() []byte {
	w := &writer{}
	w.u16(c.ProfetCount)
	w.u16(c.HBridgeCount)
	w.u16(c.AdcCount)
	w.u16(c.DinCount)
	w.u16(c.CanCount)
	w.u16(c.FreqCount)
	w.u16(c.PwmCount)
	w.u16(c.DacCount)
	w.u16(c.MaxChannels)
	w.u16(c.MaxLogic)
	w.u16(c.MaxTimers)
	w.u16(c.MaxTables)
	w.u32(c.FlashSizeKb)
	w.u32(c.RamSizeKb)
	w.u32(c.MaxCurrentMa)
	w.u32(c.PerChannelMa)
	w.u32(c.HBridgeCurrentMa)
	w.u16(uint16(c.Features))
	return w.buf
}

func DecodeCaps(b []byte) (Caps, error) {
	r := newReader(b)
	c := Caps{
		ProfetCount:      r.u16(),
		HBridgeCount:     r.u16(),
		AdcCount:         r.u16(),
		DinCount:         r.u16(),
		CanCount:         r.u16(),
		FreqCount:        r.u16(),
		PwmCount:         r.u16(),
		DacCount:         r.u16(),
		MaxChannels:      r.u16(),
		MaxLogic:         r.u16(),
		MaxTimers:        r.u16(),
		MaxTables:        r.u16(),
		FlashSizeKb:      r.u32(),
		RamSizeKb:        r.u32(),
		MaxCurrentMa:     r.u32(),
		PerChannelMa:     r.u32(),
		HBridgeCurrentMa: r.u32(),
	}
	c.Features = Feature(r.u16())
	if r.err != nil {
		return Caps{}, r.err
	}
	return c, nil
}
