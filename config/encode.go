package config

import (
	"github.com/rakyury/pmu-30-sub009/channel"
	"github.com/rakyury/pmu-30-sub009/internal/crcx"
)

// stringInterner assigns each distinct string a stable index the
// first time it is seen, matching the count/offsets/blob shape
// decodeStringTable expects.
type stringInterner struct {
	index map[string]uint16
	order []string
}

func newStringInterner() *stringInterner {
	return &stringInterner{index: make(map[string]uint16)}
}

func (s *stringInterner) intern(v string) uint16 {
	if v == "" {
		return noStringIdx
	}
	if idx, ok := s.index[v]; ok {
		return idx
	}
	idx := uint16(len(s.order))
	s.index[v] = idx
	s.order = append(s.order, v)
	return idx
}

func (s *stringInterner) encode(w *writer) {
	w.u16(uint16(len(s.order)))
	blob := &writer{}
	offsets := make([]uint16, len(s.order))
	for i, str := range s.order {
		offsets[i] = uint16(len(blob.buf))
		blob.bytes([]byte(str))
		blob.u8(0)
	}
	for _, off := range offsets {
		w.u16(off)
	}
	w.bytes(blob.buf)
}

// Encode is Parse's inverse: it assembles a CRC-32-guarded binary
// configuration record from a channel set, in the format Parse reads
// (spec.md section 6). Default uses it to produce the device-default
// record; cmd/pmuctl uploads record files as they are and does not
// call it.
func Encode(deviceType uint16, flags uint16, entries []channel.Entry) ([]byte, error) {
	strs := newStringInterner()
	body := &writer{}
	for _, e := range entries {
		cfgBytes, err := encodeConfig(e.Kind, e.Config)
		if err != nil {
			return nil, err
		}
		nameIdx := strs.intern(e.Name)
		unitIdx := strs.intern(e.Display.Unit)
		encodeEntryHeader(body, e, nameIdx, unitIdx, cfgBytes)
	}
	strs.encode(body)

	h := Header{
		Magic:        Magic,
		Version:      Version,
		DeviceType:   deviceType,
		ChannelCount: uint16(len(entries)),
		Flags:        flags,
	}
	h.TotalSize = uint32(headerSize + len(body.buf))
	h.Crc32 = crcx.Config32(body.buf)

	out := &writer{}
	out.u32(h.Magic)
	out.u16(h.Version)
	out.u16(h.DeviceType)
	out.u32(h.TotalSize)
	out.u32(h.Crc32)
	out.u16(h.ChannelCount)
	out.u16(h.Flags)
	out.bytes(body.buf)
	return out.buf, nil
}
