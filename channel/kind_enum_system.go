package channel

// EnumConfig implements spec.md section 4.2.14 (Enum): a value-to-label
// mapping for presentation whose value is writable from a source
// channel.
type EnumConfig struct {
	SourceID uint16
	Labels   map[int32]string
}

func (c *EnumConfig) References() []uint16 { return []uint16{c.SourceID} }

func (c *EnumConfig) Evaluate(ctx *EvalContext, ch *Channel) int32 {
	if IsRef(c.SourceID) {
		return ctx.Value(c.SourceID)
	}
	return ch.Value // host-writable when unbound; SetValue handles domain check
}

// SystemReadOnlyKind enumerates the built-in sub-channel families of
// spec.md section 4.2.14.
type SystemReadOnlyKind uint8

const (
	SystemBatteryVoltageMv SystemReadOnlyKind = iota
	SystemBoardTempC10
	SystemMcuTempC10
	SystemUptimeMs
	SystemOutputStatus
	SystemOutputCurrentMa
	SystemOutputVoltageMv
	SystemOutputDuty
	SystemInputSubchannel
)

// SystemReadOnlyConfig implements spec.md section 4.2.14
// (SystemReadOnly): built-ins, never writable by the host. SourceID
// optionally points at the owning output/input channel for the
// per-channel sub-channel kinds.
type SystemReadOnlyConfig struct {
	Kind     SystemReadOnlyKind
	SourceID uint16
}

func (c *SystemReadOnlyConfig) References() []uint16 { return []uint16{c.SourceID} }

// Evaluate for most system channels is a pass-through of ch.Value,
// which only SetSystemValue changes; the sub-channel kinds mirror an
// owning output/input channel's value instead. cmd/pmud's tick loop
// does not call SetSystemValue, so under the daemon the pass-through
// channels keep their initial value.
func (c *SystemReadOnlyConfig) Evaluate(ctx *EvalContext, ch *Channel) int32 {
	switch c.Kind {
	case SystemOutputStatus, SystemOutputCurrentMa, SystemOutputVoltageMv, SystemOutputDuty, SystemInputSubchannel:
		if IsRef(c.SourceID) {
			return ctx.Value(c.SourceID)
		}
		return ch.Value
	default:
		return ch.Value
	}
}

// SetSystemValue writes a caller-computed system value (battery
// voltage, temperatures, uptime, protection status) directly,
// bypassing the normal host SetValue read-only guard. It is the only
// sanctioned way to mutate a SystemReadOnly channel.
func (r *Registry) SetSystemValue(id uint16, v int32, nowMs uint64) {
	ch, ok := r.channels[id]
	if !ok || ch.Kind != KindSystemReadOnly {
		return
	}
	ch.PrevValue = ch.Value
	ch.Value = v
	ch.TimestampMs = nowMs
}
