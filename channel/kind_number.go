package channel

import "math"

// NumberOp enumerates spec.md section 4.2.9.
type NumberOp uint8

const (
	NumberConstant NumberOp = iota
	NumberAdd
	NumberSubtract
	NumberMultiply
	NumberDivide
	NumberMin
	NumberMax
	NumberAverage
	NumberAbs
	NumberScale
	NumberClamp
	NumberConditional
	NumberLookup3
)

// NumberConfig implements spec.md section 4.2.9.
type NumberConfig struct {
	Op NumberOp

	ConstantValue int32

	Inputs []uint16 // Add/Subtract/Multiply/Min/Max/Average operate over N inputs

	ScaleA, ScaleB int32 // Scale: a*x+b
	ClampMin, ClampMax int32

	ConditionID uint16
	TrueID      uint16
	FalseID     uint16

	Lookup3Table []Point32 // a small breakpoint table: output = f(input)
}

func (c *NumberConfig) References() []uint16 {
	refs := append([]uint16{}, c.Inputs...)
	refs = append(refs, c.ConditionID, c.TrueID, c.FalseID)
	return refs
}

// Evaluate implements every Number op. Division by zero maps to
// INT32_MAX/INT32_MIN per sign of the dividend and sets Fault
// (spec.md section 4.2.9).
func (c *NumberConfig) Evaluate(ctx *EvalContext, ch *Channel) int32 {
	switch c.Op {
	case NumberConstant:
		return c.ConstantValue
	case NumberAdd:
		var sum int64
		for _, id := range c.Inputs {
			sum += int64(ctx.Value(id))
		}
		return clampToInt32(sum)
	case NumberSubtract:
		if len(c.Inputs) == 0 {
			return 0
		}
		acc := int64(ctx.Value(c.Inputs[0]))
		for _, id := range c.Inputs[1:] {
			acc -= int64(ctx.Value(id))
		}
		return clampToInt32(acc)
	case NumberMultiply:
		acc := int64(1)
		for _, id := range c.Inputs {
			acc *= int64(ctx.Value(id))
		}
		return clampToInt32(acc)
	case NumberDivide:
		if len(c.Inputs) < 2 {
			return 0
		}
		num := int64(ctx.Value(c.Inputs[0]))
		den := int64(ctx.Value(c.Inputs[1]))
		if den == 0 {
			ch.Flags = ch.Flags.Set(FlagFault, true)
			if num >= 0 {
				return math.MaxInt32
			}
			return math.MinInt32
		}
		return clampToInt32(num / den)
	case NumberMin:
		return reduceInputs(ctx, c.Inputs, func(a, b int32) int32 {
			if a < b {
				return a
			}
			return b
		})
	case NumberMax:
		return reduceInputs(ctx, c.Inputs, func(a, b int32) int32 {
			if a > b {
				return a
			}
			return b
		})
	case NumberAverage:
		if len(c.Inputs) == 0 {
			return 0
		}
		var sum int64
		for _, id := range c.Inputs {
			sum += int64(ctx.Value(id))
		}
		return clampToInt32(sum / int64(len(c.Inputs)))
	case NumberAbs:
		if len(c.Inputs) == 0 {
			return 0
		}
		v := ctx.Value(c.Inputs[0])
		if v < 0 {
			return -v
		}
		return v
	case NumberScale:
		if len(c.Inputs) == 0 {
			return c.ScaleB
		}
		v := int64(ctx.Value(c.Inputs[0]))
		return clampToInt32(v*int64(c.ScaleA) + int64(c.ScaleB))
	case NumberClamp:
		if len(c.Inputs) == 0 {
			return 0
		}
		return clamp32(ctx.Value(c.Inputs[0]), c.ClampMin, c.ClampMax)
	case NumberConditional:
		if ctx.Value(c.ConditionID) != 0 {
			return ctx.Value(c.TrueID)
		}
		return ctx.Value(c.FalseID)
	case NumberLookup3:
		if len(c.Inputs) == 0 || len(c.Lookup3Table) == 0 {
			ch.Flags = ch.Flags.Set(FlagFault, true)
			return 0
		}
		return lookup1D(c.Lookup3Table, ctx.Value(c.Inputs[0]))
	}
	return 0
}

func reduceInputs(ctx *EvalContext, ids []uint16, f func(a, b int32) int32) int32 {
	if len(ids) == 0 {
		return 0
	}
	acc := ctx.Value(ids[0])
	for _, id := range ids[1:] {
		acc = f(acc, ctx.Value(id))
	}
	return acc
}

func clampToInt32(v int64) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int32(v)
}
