package wire

import "encoding/binary"

// writer/reader are the wire package's own small cursor-based binary
// helpers, the same shape as config's (see config/binary.go) but kept
// local rather than shared, since the two packages' payloads diverge
// enough (fixed telemetry sections vs. variable channel configs) that
// a shared generic codec would buy little.
type writer struct{ buf []byte }

func (w *writer) u8(v uint8)     { w.buf = append(w.buf, v) }
func (w *writer) bytes(b []byte) { w.buf = append(w.buf, b...) }

func (w *writer) u16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) i16(v int32) { w.u16(uint16(int16(v))) }

func (w *writer) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) i32(v int32) { w.u32(uint32(v)) }

type reader struct {
	buf []byte
	pos int
	err error
}

func newReader(buf []byte) *reader { return &reader{buf: buf} }

func (r *reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if r.pos+n > len(r.buf) {
		r.err = ErrInvalidLength
		return false
	}
	return true
}

func (r *reader) u8() uint8 {
	if !r.need(1) {
		return 0
	}
	v := r.buf[r.pos]
	r.pos++
	return v
}

func (r *reader) u16() uint16 {
	if !r.need(2) {
		return 0
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v
}

func (r *reader) i16() int32 { return int32(int16(r.u16())) }

func (r *reader) u32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v
}

func (r *reader) i32() int32 { return int32(r.u32()) }

func (r *reader) take(n int) []byte {
	if !r.need(n) {
		return nil
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b
}
