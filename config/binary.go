// Package config implements the binary configuration record of
// spec.md sections 3 and 6: header, packed channel-entry array, and
// an interned string table, all guarded by a CRC-32. Parse validates
// and decodes a record into []channel.Entry; Registry construction and
// cycle/id-range validation is channel.Build's job (see DESIGN.md).
package config

import (
	"encoding/binary"
)

// writer is a small cursor-based binary writer, little-endian
// throughout per spec.md section 6 ("all multi-byte fields are
// little-endian"). It mirrors the teacher's terse helper style
// (comm.Terminator/comm.Timeout: a tiny type with a couple of
// methods) rather than pulling in a serialization framework.
type writer struct {
	buf []byte
}

func (w *writer) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *writer) i8(v int8)    { w.buf = append(w.buf, byte(v)) }
func (w *writer) bool8(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

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

func (w *writer) bytes(b []byte) { w.buf = append(w.buf, b...) }

// reader is the symmetric cursor-based binary reader. Every accessor
// checks bounds and sets a sticky error so callers can read a whole
// structure and check err once at the end, the same shape as the
// teacher's DecodeTelegram error handling.
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
		r.err = errShortBuffer
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

func (r *reader) bool8() bool { return r.u8() != 0 }

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
