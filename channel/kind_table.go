package channel

// Point32 is a generic (x,y) breakpoint used by small 1D lookup
// tables (Number's lookup3 op).
type Point32 struct {
	X, Y int32
}

// lookup1D performs piecewise-linear interpolation over a sorted
// breakpoint list, clamping to the endpoints out of range.
func lookup1D(pts []Point32, x int32) int32 {
	if x <= pts[0].X {
		return pts[0].Y
	}
	last := pts[len(pts)-1]
	if x >= last.X {
		return last.Y
	}
	for i := 0; i < len(pts)-1; i++ {
		a, b := pts[i], pts[i+1]
		if x >= a.X && x <= b.X {
			if b.X == a.X {
				return a.Y
			}
			span := int64(b.Y-a.Y) * int64(x-a.X) / int64(b.X-a.X)
			return a.Y + int32(span)
		}
	}
	return last.Y
}

// Table2DConfig implements spec.md section 4.2.12: linear
// interpolation over a monotone axis vector.
type Table2DConfig struct {
	InputID uint16
	Axis    []int32 // monotone increasing
	Values  []int32 // len(Values) == len(Axis)
}

func (c *Table2DConfig) References() []uint16 { return []uint16{c.InputID} }

// Evaluate clamps out-of-range input to the boundary and reports
// TableEmpty as a fault when no breakpoints are configured.
func (c *Table2DConfig) Evaluate(ctx *EvalContext, ch *Channel) int32 {
	if len(c.Axis) == 0 || len(c.Axis) != len(c.Values) {
		ch.Flags = ch.Flags.Set(FlagFault, true)
		return 0
	}
	pts := make([]Point32, len(c.Axis))
	for i := range c.Axis {
		pts[i] = Point32{X: c.Axis[i], Y: c.Values[i]}
	}
	return lookup1D(pts, ctx.Value(c.InputID))
}

// Table3DConfig implements spec.md section 4.2.12: bilinear
// interpolation over two monotone axis vectors.
type Table3DConfig struct {
	InputXID, InputYID uint16
	AxisX, AxisY       []int32
	Values             [][]int32 // Values[xi][yi]
}

func (c *Table3DConfig) References() []uint16 { return []uint16{c.InputXID, c.InputYID} }

func (c *Table3DConfig) Evaluate(ctx *EvalContext, ch *Channel) int32 {
	if len(c.AxisX) == 0 || len(c.AxisY) == 0 || len(c.Values) != len(c.AxisX) {
		ch.Flags = ch.Flags.Set(FlagFault, true)
		return 0
	}
	x := ctx.Value(c.InputXID)
	y := ctx.Value(c.InputYID)

	xi0, xi1, xt := locateAxis(c.AxisX, x)
	yi0, yi1, yt := locateAxis(c.AxisY, y)

	v00 := float64(c.Values[xi0][yi0])
	v01 := float64(c.Values[xi0][yi1])
	v10 := float64(c.Values[xi1][yi0])
	v11 := float64(c.Values[xi1][yi1])

	top := v00 + (v10-v00)*xt
	bot := v01 + (v11-v01)*xt
	return int32(top + (bot-top)*yt)
}

// locateAxis finds the bracketing indices and fractional position of
// v within axis, clamping out-of-range values to the boundary.
func locateAxis(axis []int32, v int32) (lo, hi int, t float64) {
	if v <= axis[0] {
		return 0, 0, 0
	}
	last := len(axis) - 1
	if v >= axis[last] {
		return last, last, 0
	}
	for i := 0; i < last; i++ {
		if v >= axis[i] && v <= axis[i+1] {
			span := axis[i+1] - axis[i]
			if span == 0 {
				return i, i + 1, 0
			}
			return i, i + 1, float64(v-axis[i]) / float64(span)
		}
	}
	return last, last, 0
}
