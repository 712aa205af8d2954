package config

// milliScale converts the float64 gain/timing fields a few kinds carry
// (PID gains, filter tau, logic delays) to/from a fixed milli-scaled
// int32 for the wire, since the record format carries only integers
// (spec.md section 6).
const milliScale = 1000.0

func (w *writer) f64milli(v float64) { w.i32(int32(v * milliScale)) }
func (r *reader) f64milli() float64  { return float64(r.i32()) / milliScale }

func (w *writer) u16s(vs []uint16) {
	w.u16(uint16(len(vs)))
	for _, v := range vs {
		w.u16(v)
	}
}

func (r *reader) u16s() []uint16 {
	n := int(r.u16())
	out := make([]uint16, n)
	for i := range out {
		out[i] = r.u16()
	}
	return out
}

func (w *writer) i32s(vs []int32) {
	w.u16(uint16(len(vs)))
	for _, v := range vs {
		w.i32(v)
	}
}

func (r *reader) i32s() []int32 {
	n := int(r.u16())
	out := make([]int32, n)
	for i := range out {
		out[i] = r.i32()
	}
	return out
}

func (w *writer) str8(s string) {
	if len(s) > 255 {
		s = s[:255]
	}
	w.u8(uint8(len(s)))
	w.bytes([]byte(s))
}

func (r *reader) str8() string {
	n := int(r.u8())
	return string(r.take(n))
}
