package processor

import (
	"sync"

	"thunkgraph/internal/thunk"
)

// RoundRobin is a rotating sequence of leaf processors. Pop-front/push-back
// preserves fairness across selections; it is reset only when the processor
// topology changes (spec.md Design Notes).
type RoundRobin struct {
	mu    sync.Mutex
	queue []Processor
}

// NewRoundRobin seeds the queue by flattening root's leaf processors.
func NewRoundRobin(root Processor) *RoundRobin {
	return &RoundRobin{queue: Flatten(root)}
}

// Reset re-flattens the tree, discarding rotation state.
func (rr *RoundRobin) Reset(root Processor) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	rr.queue = Flatten(root)
}

// Order returns a single pass over the current rotation, starting from the
// front, then rotates the queue by one position so the next Order call
// starts with the processor after this call's first — i.e. consecutive
// calls fairly interleave which processor is tried first.
func (rr *RoundRobin) Order() []Processor {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	if len(rr.queue) == 0 {
		return nil
	}
	out := make([]Processor, len(rr.queue))
	copy(out, rr.queue)
	// Rotate: move the front to the back so the next selection starts
	// fresh after it.
	rr.queue = append(rr.queue[1:], rr.queue[0])
	return out
}

// Select implements spec.md §4.3: survey candidates in round-robin order,
// skipping incompatible ones, then apply the proclist policy.
func Select(rr *RoundRobin, t *thunk.Thunk, f thunk.Func, args []any) (Processor, []string, error) {
	candidates := rr.Order()

	var compatible []Processor
	var surveyed []string
	for _, p := range candidates {
		surveyed = append(surveyed, p.Kind())
		if Compatible(p, f, args) {
			compatible = append(compatible, p)
		}
	}

	if single := t.Options.Single; single != "" {
		var pinned []Processor
		for _, p := range compatible {
			for a := p; a != nil; a = a.Parent() {
				if string(a.ID()) == single {
					pinned = append(pinned, p)
					break
				}
			}
		}
		compatible = pinned
	}

	pl := t.Options.Proclist
	switch {
	case pl.IsZero():
		for _, p := range compatible {
			if p.DefaultEnabled() {
				return p, surveyed, nil
			}
		}
	case pl.Predicate != nil:
		for _, p := range compatible {
			if pl.Predicate(p.Kind()) {
				return p, surveyed, nil
			}
		}
	case len(pl.Kinds) > 0:
		allowed := make(map[string]struct{}, len(pl.Kinds))
		for _, k := range pl.Kinds {
			allowed[k] = struct{}{}
		}
		for _, p := range compatible {
			if _, ok := allowed[p.Kind()]; ok {
				return p, surveyed, nil
			}
		}
	}

	return nil, surveyed, ErrSelectionExhausted
}
