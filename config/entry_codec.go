package config

import "github.com/rakyury/pmu-30-sub009/channel"

// rawEntry is the entry header decoded before its kind is known well
// enough to decode ConfigBytes, and before NameIdx/UnitIdx are
// resolved against the string table.
type rawEntry struct {
	ID            uint16
	Kind          channel.Kind
	Flags         channel.Flags
	NameIdx       uint16
	UnitIdx       uint16
	DecimalPlaces uint8
	DataType      channel.DataType
	HwDevice      channel.Device
	HwIndex       uint16
	ConfigBytes   []byte
}

const noStringIdx = 0xFFFF

func decodeEntryHeader(r *reader) (rawEntry, error) {
	re := rawEntry{
		ID:            r.u16(),
		Kind:          channel.Kind(r.u8()),
		Flags:         channel.Flags(r.u8()),
		NameIdx:       r.u16(),
		UnitIdx:       r.u16(),
		DecimalPlaces: r.u8(),
		DataType:      channel.DataType(r.u8()),
		HwDevice:      channel.Device(r.u8()),
		HwIndex:       r.u16(),
	}
	cfgLen := int(r.u16())
	re.ConfigBytes = r.take(cfgLen)
	if r.err != nil {
		return re, &channel.ConfigError{Kind: channel.ErrSizeMismatch, Detail: r.err.Error()}
	}
	return re, nil
}

func encodeEntryHeader(w *writer, e channel.Entry, nameIdx, unitIdx uint16, cfgBytes []byte) {
	w.u16(e.ID)
	w.u8(uint8(e.Kind))
	w.u8(uint8(e.Flags))
	w.u16(nameIdx)
	w.u16(unitIdx)
	w.u8(e.Display.DecimalPlaces)
	w.u8(uint8(e.Display.DataType))
	w.u8(uint8(e.HwBinding.Device))
	w.u16(e.HwBinding.Index)
	w.u16(uint16(len(cfgBytes)))
	w.bytes(cfgBytes)
}

func (re rawEntry) resolve(strings []string) (channel.Entry, error) {
	name, err := lookupString(strings, re.NameIdx)
	if err != nil {
		return channel.Entry{}, err
	}
	unit, err := lookupString(strings, re.UnitIdx)
	if err != nil {
		return channel.Entry{}, err
	}
	cfg, err := decodeConfig(re.Kind, re.ConfigBytes)
	if err != nil {
		return channel.Entry{}, err
	}
	return channel.Entry{
		ID:    re.ID,
		Kind:  re.Kind,
		Name:  name,
		Flags: re.Flags,
		Display: channel.Display{
			Unit:          unit,
			DecimalPlaces: re.DecimalPlaces,
			DataType:      re.DataType,
		},
		HwBinding: channel.HwBinding{Device: re.HwDevice, Index: re.HwIndex},
		Config:    cfg,
	}, nil
}

func lookupString(strings []string, idx uint16) (string, error) {
	if idx == noStringIdx {
		return "", nil
	}
	if int(idx) >= len(strings) {
		return "", &channel.ConfigError{Kind: channel.ErrSizeMismatch, Detail: "string index out of range"}
	}
	return strings[idx], nil
}

func decodeStringTable(r *reader) ([]string, error) {
	count := r.u16()
	offsets := make([]int, count)
	for i := range offsets {
		offsets[i] = int(r.u16())
	}
	if r.err != nil {
		return nil, &channel.ConfigError{Kind: channel.ErrSizeMismatch, Detail: r.err.Error()}
	}
	blob := r.buf[r.pos:]
	out := make([]string, count)
	for i, off := range offsets {
		if off < 0 || off > len(blob) {
			return nil, &channel.ConfigError{Kind: channel.ErrSizeMismatch, Detail: "string offset out of range"}
		}
		end := off
		for end < len(blob) && blob[end] != 0 {
			end++
		}
		if end >= len(blob) {
			return nil, &channel.ConfigError{Kind: channel.ErrSizeMismatch, Detail: errUnterminated.Error()}
		}
		out[i] = string(blob[off:end])
	}
	r.pos = len(r.buf)
	return out, nil
}
