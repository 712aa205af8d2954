package channel

import "sort"

// Registry owns the channel table, id resolver, and precomputed
// evaluation order for one configuration generation. It is built once
// by Build and never mutated structurally afterward; only Channel
// values mutate during Tick/SetValue. This gives the double-buffered
// swap discipline of spec.md section 5: a new Registry is built in
// the shadow and swapped in whole by its owner (cmd/pmud swaps it
// under connState.mu, the same lock its tick loop holds).
type Registry struct {
	channels map[uint16]*Channel
	order    []uint16 // topological order, ties broken by ascending id
	tickSeq  uint64
}

// Build validates a batch of Entries per spec.md invariants I1-I3 and
// the ID-range table, resolves references, computes a deterministic
// topological evaluation order, and allocates kind-specific runtime
// state. On any error the returned Registry is nil and the caller's
// existing registry is left untouched (spec.md P6).
func Build(entries []Entry) (*Registry, error) {
	if len(entries) > MaxChannels {
		return nil, newErr(ErrTooMany, "%d channels exceeds maximum %d", len(entries), MaxChannels)
	}

	byID := make(map[uint16]*Entry, len(entries))
	for i := range entries {
		e := &entries[i]
		if _, dup := byID[e.ID]; dup {
			return nil, newErr(ErrDuplicateID, "id %d appears more than once", e.ID)
		}
		if !InKindRange(e.ID, e.Kind) {
			return nil, newErr(ErrBadIDRange, "id %d not valid for kind %s", e.ID, e.Kind)
		}
		byID[e.ID] = e
	}

	// Resolve references: every non-sentinel reference must name a
	// present channel (spec.md "Channel references").
	indegree := make(map[uint16]int, len(entries))
	adjacency := make(map[uint16][]uint16, len(entries))
	for id := range byID {
		indegree[id] = 0
	}
	for _, e := range byID {
		for _, ref := range refsOf(e.Config) {
			if !IsRef(ref) {
				continue
			}
			if _, ok := byID[ref]; !ok {
				return nil, newErr(ErrUnresolvedRef, "channel %d references unknown id %d", e.ID, ref)
			}
			adjacency[ref] = append(adjacency[ref], e.ID)
			indegree[e.ID]++
		}
	}

	order, err := topoSort(byID, indegree, adjacency)
	if err != nil {
		return nil, err
	}

	reg := &Registry{
		channels: make(map[uint16]*Channel, len(entries)),
		order:    order,
	}
	for id, e := range byID {
		ch := &Channel{
			ID:        e.ID,
			Kind:      e.Kind,
			Name:      e.Name,
			Flags:     e.Flags,
			Display:   e.Display,
			HwBinding: e.HwBinding,
			Config:    e.Config,
		}
		ch.State = newState(ch.Kind, ch.Config)
		reg.channels[id] = ch
	}
	return reg, nil
}

// topoSort runs Kahn's algorithm, always expanding the smallest
// available id first for determinism (spec.md section 4.1, "ties
// broken by ascending id"). On a remaining cycle it reports the
// offending id path (spec.md scenario 4).
func topoSort(byID map[uint16]*Entry, indegree map[uint16]int, adjacency map[uint16][]uint16) ([]uint16, error) {
	remaining := make(map[uint16]int, len(indegree))
	for id, d := range indegree {
		remaining[id] = d
	}

	var frontier []uint16
	for id, d := range remaining {
		if d == 0 {
			frontier = append(frontier, id)
		}
	}
	sort.Slice(frontier, func(i, j int) bool { return frontier[i] < frontier[j] })

	order := make([]uint16, 0, len(byID))
	for len(frontier) > 0 {
		sort.Slice(frontier, func(i, j int) bool { return frontier[i] < frontier[j] })
		id := frontier[0]
		frontier = frontier[1:]
		order = append(order, id)
		delete(remaining, id)

		for _, next := range adjacency[id] {
			if _, ok := remaining[next]; !ok {
				continue
			}
			remaining[next]--
			if remaining[next] == 0 {
				frontier = append(frontier, next)
			}
		}
	}

	if len(remaining) > 0 {
		path := findCycle(remaining, adjacency)
		return nil, &ConfigError{Kind: ErrCycle, Detail: "dependency cycle detected", Path: path}
	}
	return order, nil
}

// findCycle performs three-color DFS over the nodes left with
// unsatisfied indegree (i.e. the nodes participating in at least one
// cycle) and returns the first back-edge path it finds, smallest
// starting id first for determinism.
func findCycle(remaining map[uint16]int, adjacency map[uint16][]uint16) []uint16 {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[uint16]int, len(remaining))
	ids := make([]uint16, 0, len(remaining))
	for id := range remaining {
		color[id] = white
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var stack []uint16
	var cyclePath []uint16

	var visit func(id uint16) bool
	visit = func(id uint16) bool {
		color[id] = gray
		stack = append(stack, id)
		neighbors := append([]uint16(nil), adjacency[id]...)
		sort.Slice(neighbors, func(i, j int) bool { return neighbors[i] < neighbors[j] })
		for _, n := range neighbors {
			if _, ok := remaining[n]; !ok {
				continue
			}
			switch color[n] {
			case white:
				if visit(n) {
					return true
				}
			case gray:
				// back edge found: n .. id .. n
				start := 0
				for i, v := range stack {
					if v == n {
						start = i
						break
					}
				}
				cyclePath = append([]uint16(nil), stack[start:]...)
				cyclePath = append(cyclePath, n)
				return true
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return false
	}

	for _, id := range ids {
		if color[id] == white {
			if visit(id) {
				return cyclePath
			}
		}
	}
	return ids // fallback: shouldn't happen if remaining is non-empty
}

// Tick executes one evaluation pass in the registry's precomputed
// order (spec.md section 4.1). It is idempotent with respect to input
// snapshots: evaluating twice with the same hardware state produces
// the same outputs.
func (r *Registry) Tick(nowMs uint64, ctx *EvalContext) {
	r.tickSeq++
	ctx.reg = r
	ctx.NowMs = nowMs
	for _, id := range r.order {
		ch := r.channels[id]
		r.evalOne(ctx, ch)
	}
}

func (r *Registry) evalOne(ctx *EvalContext, ch *Channel) {
	ch.PrevValue = ch.Value
	ch.Flags = ch.Flags.Set(FlagFault, false)

	if !ch.Flags.Has(FlagEnabled) {
		if fs, ok := ch.State.(*filterState); ok {
			// A disabled filter holds its last output and empties its
			// ring, so re-enabling starts from fresh samples.
			fs.count, fs.pos, fs.haveLp = 0, 0, false
			return
		}
		ch.Value = disabledDefault(ch.Kind)
		return
	}

	ev, ok := ch.Config.(Evaluator)
	if !ok {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			// A kind's Evaluate must never abort the tick (spec.md
			// "Failure semantics"); a panic inside one is treated like
			// any other per-channel fault.
			ch.Flags = ch.Flags.Set(FlagFault, true)
			ch.Value = disabledDefault(ch.Kind)
		}
	}()
	ch.Value = ev.Evaluate(ctx, ch)
	ch.TimestampMs = ctx.NowMs

	if ch.Flags.Has(FlagInverted) && ch.Display.DataType == DataTypeBool {
		if ch.Value == 0 {
			ch.Value = 1
		} else {
			ch.Value = 0
		}
	}
}

// disabledDefault implements invariant I6: a disabled channel's value
// is a fixed kind-defined default (a disabled Filter instead holds its
// last value; evalOne handles that before calling this).
func disabledDefault(k Kind) int32 {
	return 0
}

// Get returns a read-only snapshot of the channel with id, if present
// (section 4.1's get(id)).
func (r *Registry) Get(id uint16) (Channel, bool) {
	ch, ok := r.channels[id]
	if !ok {
		return Channel{}, false
	}
	return *ch, true
}

// GetValue returns the current value of the channel with id.
func (r *Registry) GetValue(id uint16) (int32, error) {
	ch, ok := r.channels[id]
	if !ok {
		return 0, &ValueError{Kind: "NotFound", ID: id, Detail: "no such channel"}
	}
	return ch.Value, nil
}

// SetValue writes a host-supplied value into a writable channel,
// applying kind-specific domain checks (section 4.1's set_value).
func (r *Registry) SetValue(id uint16, v int32) error {
	ch, ok := r.channels[id]
	if !ok {
		return &ValueError{Kind: "NotFound", ID: id, Detail: "no such channel"}
	}
	if ch.Flags.Has(FlagReadOnly) || ch.Kind == KindSystemReadOnly {
		return &ValueError{Kind: "ReadOnly", ID: id, Detail: "channel is read-only"}
	}
	if !inDomain(ch, v) {
		return &ValueError{Kind: "OutOfDomain", ID: id, Detail: "value outside channel domain"}
	}
	ch.Value = v
	return nil
}

func inDomain(ch *Channel, v int32) bool {
	switch sw := ch.Config.(type) {
	case *SwitchConfig:
		return v >= sw.StateFirst && v <= sw.StateLast
	case *EnumConfig:
		_, ok := sw.Labels[v]
		return ok || len(sw.Labels) == 0
	default:
		if ch.Display.DataType == DataTypeBool {
			return v == 0 || v == 1
		}
		return true
	}
}

// ForEach performs ordered iteration over all channels of kind,
// invoking cb for each (section 4.1's for_each, used by telemetry and
// monitors).
func (r *Registry) ForEach(kind Kind, cb func(*Channel)) {
	for _, id := range r.order {
		ch := r.channels[id]
		if ch.Kind == kind {
			cb(ch)
		}
	}
}

// ForEachOrdered invokes cb for every channel in evaluation order,
// regardless of kind.
func (r *Registry) ForEachOrdered(cb func(*Channel)) {
	for _, id := range r.order {
		cb(r.channels[id])
	}
}

// Len returns the total number of channels in the registry.
func (r *Registry) Len() int { return len(r.channels) }

// Count returns the number of channels of a given kind, used for
// telemetry capability sizing.
func (r *Registry) Count(kind Kind) int {
	n := 0
	for _, ch := range r.channels {
		if ch.Kind == kind {
			n++
		}
	}
	return n
}

// OnCanFrame delivers a received CAN frame to every matching CanRx
// channel (spec.md section 4.2.4). It is called from the hardware
// collaborator's upcall, not from Tick, but only mutates channel
// state that Tick also reads/writes, so callers must serialize it
// with Tick.
func (r *Registry) OnCanFrame(bus int, id uint32, data []byte, dlc int, isExtended bool, nowMs uint64) {
	for _, ch := range r.channels {
		if ch.Kind != KindCanRx {
			continue
		}
		cfg, ok := ch.Config.(*CanRxConfig)
		if !ok {
			continue
		}
		if cfg.Bus != bus || cfg.MessageID != id || cfg.IsExtended != isExtended {
			continue
		}
		applyCanRxFrame(ch, cfg, data, dlc, nowMs)
	}
}
