package channel

// CanTxSignal packs one source channel into a CAN frame (spec.md
// section 4.2.7).
type CanTxSignal struct {
	SourceID   uint16
	StartBit   uint
	Length     uint
	ByteOrder  ByteOrder
	Multiplier int32
}

// CanTxConfig implements spec.md section 4.2.7.
type CanTxConfig struct {
	Bus        int
	MessageID  uint32
	IsExtended bool
	IsFD       bool
	CycleMs    uint32
	Dlc        int
	Signals    []CanTxSignal
}

func (c *CanTxConfig) References() []uint16 {
	refs := make([]uint16, 0, len(c.Signals))
	for _, s := range c.Signals {
		refs = append(refs, s.SourceID)
	}
	return refs
}

type canTxState struct {
	lastSendMs uint64
	haveSent   bool
}

// Evaluate packs and (on cycle edge) transmits the frame, returning
// the packed DLC as its telemetry-visible value. Pack is exported so
// the payload can be assembled outside the tick; the only send path is
// this cycle-edge one, and cmd/pmud's dispatch has no CAN send command.
func (c *CanTxConfig) Evaluate(ctx *EvalContext, ch *Channel) int32 {
	st := ch.State.(*canTxState)
	due := !st.haveSent || ctx.NowMs-st.lastSendMs >= uint64(c.CycleMs)
	if due && ctx.Can != nil {
		data := c.Pack(ctx)
		if err := ctx.Can.Queue(c.Bus, c.MessageID, data, c.Dlc, c.IsExtended, c.IsFD); err == nil {
			st.lastSendMs = ctx.NowMs
			st.haveSent = true
		}
	}
	return int32(c.Dlc)
}

// Pack assembles the frame payload from each signal's current source
// value, applying its multiplier before transmission (spec.md P9).
func (c *CanTxConfig) Pack(ctx *EvalContext) []byte {
	data := make([]byte, c.Dlc)
	for _, s := range c.Signals {
		v := ctx.Value(s.SourceID)
		mul := s.Multiplier
		if mul == 0 {
			mul = 1
		}
		raw := uint64(int64(v) * int64(mul))
		packBits(data, s.StartBit, s.Length, raw, s.ByteOrder)
	}
	return data
}

func packBits(data []byte, startBit, length uint, value uint64, order ByteOrder) {
	if length == 0 || length > 64 {
		return
	}
	mask := uint64(1)<<length - 1
	value &= mask

	total := uint(len(data)) * 8
	if startBit >= total {
		return
	}
	for i := uint(0); i < length && startBit+i < total; i++ {
		bit := (value >> i) & 1
		pos := startBit + i
		var byteIdx uint
		switch order {
		case LittleEndian:
			byteIdx = pos / 8
		default:
			byteIdx = uint(len(data)) - 1 - pos/8
		}
		if byteIdx >= uint(len(data)) {
			continue
		}
		bitIdx := pos % 8
		if bit != 0 {
			data[byteIdx] |= 1 << bitIdx
		} else {
			data[byteIdx] &^= 1 << bitIdx
		}
	}
}
