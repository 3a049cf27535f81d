package store

import "errors"

// ErrDominatorCycle is returned by RegisterFuture when the target it's
// trying to wait on transitively depends on the requester (spec.md §4.6's
// dominator guard): waiting would deadlock since the target can never
// finish before the requester, which is currently blocked on this call,
// does.
var ErrDominatorCycle = errors.New("store: requester dominates target, would deadlock")
