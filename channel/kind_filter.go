package channel

import "sort"

// FilterKind enumerates spec.md section 4.2.10.
type FilterKind uint8

const (
	FilterMovingAvg FilterKind = iota
	FilterLowPass
	FilterMinWindow
	FilterMaxWindow
	FilterMedian
)

// MaxFilterWindow bounds the ring buffer size (spec.md: "window <= 64").
const MaxFilterWindow = 64

// FilterConfig implements spec.md section 4.2.10.
type FilterConfig struct {
	Kind      FilterKind
	InputID   uint16
	Window    int     // moving_avg/min_window/max_window/median
	TauMs     float64 // low_pass
}

func (c *FilterConfig) References() []uint16 { return []uint16{c.InputID} }

type filterState struct {
	ring     []int32
	count    int
	pos      int
	lpValue  float64
	haveLp   bool
	lastOut  int32
}

func newFilterState(c *FilterConfig) *filterState {
	win := c.Window
	if win <= 0 || win > MaxFilterWindow {
		win = MaxFilterWindow
	}
	return &filterState{ring: make([]int32, win)}
}

// Evaluate maintains a fixed-size ring buffer per channel; a disabled
// channel's ring is reset and its output holds the last value, per
// spec.md section 4.2.10 (both are done by Registry.evalOne while the
// channel is disabled, so Evaluate resumes from an empty ring).
func (c *FilterConfig) Evaluate(ctx *EvalContext, ch *Channel) int32 {
	st := ch.State.(*filterState)
	in := ctx.Value(c.InputID)

	switch c.Kind {
	case FilterLowPass:
		if c.TauMs <= 0 {
			st.lpValue = float64(in)
		} else if !st.haveLp {
			st.lpValue = float64(in)
			st.haveLp = true
		} else {
			// Single-pole low-pass with a fixed per-call alpha of
			// 1/(TauMs+1); the time between calls is not measured, so
			// TauMs counts Evaluate calls (ms at a 1 kHz tick).
			alpha := 1.0
			if ctx.NowMs > 0 {
				alpha = 1.0 / (c.TauMs/1.0 + 1.0)
			}
			st.lpValue += (float64(in) - st.lpValue) * alpha
		}
		return int32(st.lpValue)
	default:
		st.ring[st.pos] = in
		st.pos = (st.pos + 1) % len(st.ring)
		if st.count < len(st.ring) {
			st.count++
		}
		window := st.ring[:st.count]
		switch c.Kind {
		case FilterMovingAvg:
			var sum int64
			for _, v := range window {
				sum += int64(v)
			}
			return int32(sum / int64(len(window)))
		case FilterMinWindow:
			m := window[0]
			for _, v := range window[1:] {
				if v < m {
					m = v
				}
			}
			return m
		case FilterMaxWindow:
			m := window[0]
			for _, v := range window[1:] {
				if v > m {
					m = v
				}
			}
			return m
		case FilterMedian:
			sorted := append([]int32(nil), window...)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
			return sorted[len(sorted)/2]
		}
	}
	return in
}
