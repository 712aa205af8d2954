package wire

// Section is a telemetry-packet section presence bit; sections are
// always written in this fixed order regardless of bit order in the
// Sections field (spec.md section 4.3).
type Section uint16

const (
	SectionOutputs  Section = 0x0002
	SectionCurrents Section = 0x0004
	SectionAdc      Section = 0x0008
	SectionDin      Section = 0x0010
	SectionHBridge  Section = 0x0020
	SectionVirtuals Section = 0x0040
	SectionFaults   Section = 0x0080
	SectionExtended Section = 0x0100
)

// sectionOrder is the fixed write order; Sections bits not in this
// list (reserved/undefined) are ignored.
var sectionOrder = []Section{
	SectionOutputs, SectionCurrents, SectionAdc, SectionDin,
	SectionHBridge, SectionVirtuals, SectionFaults, SectionExtended,
}

const telemetryHeaderSize = 16

// TelemetryHeader is the telemetry packet's fixed 16-byte header.
type TelemetryHeader struct {
	Seq         uint32
	TimestampMs uint32
	VoltageMv   uint16
	McuTempC10  int32 // stored/transmitted as i16
	Sections    Section
	Reserved    uint16
}

// HBridgeSample is one HBridge section entry (8 bytes).
type HBridgeSample struct {
	Mode      uint8
	DutyPermille uint16
	CurrentMa uint16
	PositionRaw uint16
	Flags     uint8
}

// VirtualSample is one {id, value} pair in the Virtuals section.
type VirtualSample struct {
	ID    uint16
	Value int32
}

// TelemetryFrame holds every section's data; BuildTelemetry emits the
// sections selected by Header.Sections, sized by the slices given here
// (it takes no capability record).
type TelemetryFrame struct {
	Header TelemetryHeader

	OutputStates  []uint8 // one per profet
	CurrentsMa    []uint16
	AdcMv         []uint16
	DinBitmask    []uint8
	HBridges      []HBridgeSample
	Virtuals      []VirtualSample
	FaultBits     uint32
	Extended      []byte
}

// CalcSize returns the total packet size (header + present sections)
// for a given capability record and section mask, letting callers
// pre-allocate buffers (spec.md section 4.3's Telem_CalcSize). Every
// section but Virtuals has a size fixed by caps alone, so CalcSize is
// exact for them. Virtuals is sparse: BuildTelemetry writes only the
// samples actually present (2 + len(f.Virtuals)*6 bytes), but CalcSize
// has no frame to count against, only caps.MaxChannels, so it reports
// the worst case (2 + MaxChannels*6) — an upper bound, not the exact
// size, whenever SectionVirtuals is set and fewer than MaxChannels
// virtuals are populated. Callers that need the precise length of an
// already-built packet should use len(BuildTelemetry(f)) instead.
func CalcSize(caps Caps, sections Section) int {
	size := telemetryHeaderSize
	for _, s := range sectionOrder {
		if sections&s == 0 {
			continue
		}
		switch s {
		case SectionOutputs:
			size += int(caps.ProfetCount)
		case SectionCurrents:
			size += int(caps.ProfetCount) * 2
		case SectionAdc:
			size += int(caps.AdcCount) * 2
		case SectionDin:
			size += (int(caps.DinCount) + 7) / 8
		case SectionHBridge:
			size += int(caps.HBridgeCount) * 8
		case SectionVirtuals:
			// count prefix (2B) is the fixed part; variable entries are
			// sized by the caller's actual sample count at Build time, so
			// CalcSize reports the worst case capped at MaxChannels.
			size += 2 + int(caps.MaxChannels)*6
		case SectionFaults:
			size += 4
		case SectionExtended:
			// device-defined; not sized generically
		}
	}
	return size
}

// BuildTelemetry assembles a telemetry packet payload (the part that
// follows CmdTelemData in the frame), writing sections in
// sectionOrder regardless of how Header.Sections bits were set by the
// caller.
func BuildTelemetry(f TelemetryFrame) []byte {
	w := &writer{}
	w.u32(f.Header.Seq)
	w.u32(f.Header.TimestampMs)
	w.u16(f.Header.VoltageMv)
	w.i16(f.Header.McuTempC10)
	w.u16(uint16(f.Header.Sections))
	w.u16(f.Header.Reserved)

	for _, s := range sectionOrder {
		if f.Header.Sections&s == 0 {
			continue
		}
		switch s {
		case SectionOutputs:
			w.bytes(f.OutputStates)
		case SectionCurrents:
			for _, v := range f.CurrentsMa {
				w.u16(v)
			}
		case SectionAdc:
			for _, v := range f.AdcMv {
				w.u16(v)
			}
		case SectionDin:
			w.bytes(f.DinBitmask)
		case SectionHBridge:
			for _, hb := range f.HBridges {
				w.u8(hb.Mode)
				w.u16(hb.DutyPermille)
				w.u16(hb.CurrentMa)
				w.u16(hb.PositionRaw)
				w.u8(hb.Flags)
			}
		case SectionVirtuals:
			w.u16(uint16(len(f.Virtuals)))
			for _, v := range f.Virtuals {
				w.u16(v.ID)
				w.i32(v.Value)
			}
		case SectionFaults:
			w.u32(f.FaultBits)
		case SectionExtended:
			w.bytes(f.Extended)
		}
	}
	return w.buf
}

// Parse decodes a telemetry packet payload given the Sections mask
// carried in its own header (the mask is self-describing, so Parse
// needs no external caps — only per-profet/per-adc/per-din counts for
// sections whose entry count isn't self-prefixed, hence those still
// require caps).
func Parse(data []byte, caps Caps) (TelemetryFrame, error) {
	r := newReader(data)
	f := TelemetryFrame{}
	f.Header = TelemetryHeader{
		Seq:         r.u32(),
		TimestampMs: r.u32(),
		VoltageMv:   r.u16(),
		McuTempC10:  r.i16(),
		Sections:    Section(r.u16()),
		Reserved:    r.u16(),
	}
	for _, s := range sectionOrder {
		if f.Header.Sections&s == 0 {
			continue
		}
		switch s {
		case SectionOutputs:
			f.OutputStates = r.take(int(caps.ProfetCount))
		case SectionCurrents:
			f.CurrentsMa = make([]uint16, caps.ProfetCount)
			for i := range f.CurrentsMa {
				f.CurrentsMa[i] = r.u16()
			}
		case SectionAdc:
			f.AdcMv = make([]uint16, caps.AdcCount)
			for i := range f.AdcMv {
				f.AdcMv[i] = r.u16()
			}
		case SectionDin:
			f.DinBitmask = r.take((int(caps.DinCount) + 7) / 8)
		case SectionHBridge:
			f.HBridges = make([]HBridgeSample, caps.HBridgeCount)
			for i := range f.HBridges {
				f.HBridges[i] = HBridgeSample{
					Mode:         r.u8(),
					DutyPermille: r.u16(),
					CurrentMa:    r.u16(),
					PositionRaw:  r.u16(),
					Flags:        r.u8(),
				}
			}
		case SectionVirtuals:
			n := int(r.u16())
			f.Virtuals = make([]VirtualSample, n)
			for i := range f.Virtuals {
				f.Virtuals[i] = VirtualSample{ID: r.u16(), Value: r.i32()}
			}
		case SectionFaults:
			f.FaultBits = r.u32()
		case SectionExtended:
			f.Extended = r.take(len(r.buf) - r.pos)
		}
	}
	if r.err != nil {
		return TelemetryFrame{}, r.err
	}
	return f, nil
}
