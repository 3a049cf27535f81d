// Package store implements the scheduler's bookkeeping state (spec.md §3):
// the thunk dictionary, the waiting/ready/running/finished/errored
// partition, the dependents graph, the result cache, and the futures table,
// all guarded by a single lock — generalizing the single-mutex,
// single-map-of-state pattern of the teacher's dag.Executor into the full
// multi-collection store spec.md describes.
package store

import (
	"fmt"
	"sync"
	"sync/atomic"

	"thunkgraph/internal/failure"
	"thunkgraph/internal/future"
	"thunkgraph/internal/thunk"
)

// CacheEntry is a cache slot: exactly one of Value/Chunk/Err is meaningful,
// matching spec.md's "cache : Thunk → value-or-Chunk-or-FailedException".
type CacheEntry struct {
	Value any
	Chunk *thunk.Chunk
	Err   *failure.ThunkFailedException
}

func (e CacheEntry) isError() bool { return e.Err != nil }

// idSet is a deterministic-iteration-free adjacency set; callers that need
// stable order sort the keys themselves (state bookkeeping never needs to,
// only tests/printers do).
type idSet map[thunk.ID]struct{}

// Store is the scheduler's single-writer state, guarded by mu. Every method
// here acquires the lock itself; callers never hold it across a call into
// user code (thunk.Func) or across a channel operation.
type Store struct {
	mu sync.Mutex

	thunkDict   map[thunk.ID]*thunk.Thunk
	waiting     map[thunk.ID]idSet // consumer -> unresolved input ids
	waitingData map[thunk.ID]idSet // producer -> consumers currently awaiting it
	dependents  map[thunk.ID]idSet // producer -> full downstream set (persists)

	ready   []thunk.ID
	running idSet
	finished idSet
	errored idSet

	cache   map[thunk.ID]CacheEntry
	futures map[thunk.ID][]*future.Future

	halted atomic.Bool
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		thunkDict:   make(map[thunk.ID]*thunk.Thunk),
		waiting:     make(map[thunk.ID]idSet),
		waitingData: make(map[thunk.ID]idSet),
		dependents:  make(map[thunk.ID]idSet),
		running:     make(idSet),
		finished:    make(idSet),
		errored:     make(idSet),
		cache:       make(map[thunk.ID]CacheEntry),
		futures:     make(map[thunk.ID][]*future.Future),
	}
}

// Halt sets the monotonic halt latch. Once set it is never cleared for this
// Store's lifetime (invariant I6).
func (s *Store) Halt() {
	s.halted.Store(true)
}

// Halted reports the current halt state.
func (s *Store) Halted() bool {
	return s.halted.Load()
}

// Lookup returns the thunk registered under id, if any.
func (s *Store) Lookup(id thunk.ID) (*thunk.Thunk, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.thunkDict[id]
	return t, ok
}

// Submit interns t (and recursively any of its unseen input thunks are
// assumed already interned by the caller — thunks are always submitted
// bottom-up by construction) and resolves its inputs, placing it in
// `waiting` or `ready` per spec.md §4.1. It returns true if t (or any thunk
// reachable underneath it) ended up newly schedulable.
func (s *Store) Submit(t *thunk.Thunk) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitLocked(t)
}

func (s *Store) submitLocked(t *thunk.Thunk) bool {
	if _, exists := s.thunkDict[t.ID]; exists {
		return false
	}
	s.thunkDict[t.ID] = t
	return s.rescheduleInputsLocked(t)
}

// rescheduleInputsLocked is the recursive input-resolution walk of spec.md
// §4.1: for each non-literal input of t, record the reverse edges, check
// terminal states, and accumulate which of t's inputs remain unresolved.
// Returns whether any work became newly schedulable.
func (s *Store) rescheduleInputsLocked(t *thunk.Thunk) bool {
	scheduledSomething := false

	unresolved := idSet{}
	for _, in := range t.Inputs {
		ref, ok := in.(thunk.Ref)
		if !ok {
			continue
		}
		input := ref.ID

		s.addDependentLocked(input, t.ID)
		s.addWaitingDataLocked(input, t.ID)

		if _, isErrored := s.errored[input]; isErrored {
			// Open question (a), resolved: first errored input stops the
			// traversal for this consumer; other inputs are not fanned
			// out further (spec.md §4.1, §9(a)).
			s.failLocked(t.ID, s.cache[input].Err)
			return scheduledSomething
		}

		if entry, cached := s.cache[input]; cached && !entry.isError() {
			// Already resolved; nothing to wait on.
			continue
		}

		if _, isRunning := s.running[input]; isRunning {
			unresolved[input] = struct{}{}
			continue
		}
		if s.inReadyLocked(input) {
			unresolved[input] = struct{}{}
			continue
		}
		if inputThunk, known := s.thunkDict[input]; known {
			// Recursively ensure the input itself is scheduled.
			if s.rescheduleInputsLocked(inputThunk) {
				scheduledSomething = true
			}
			if _, nowFinished := s.finished[input]; nowFinished {
				continue
			}
			if _, nowErrored := s.errored[input]; nowErrored {
				s.failLocked(t.ID, s.cache[input].Err)
				return scheduledSomething
			}
			unresolved[input] = struct{}{}
			continue
		}
		// Unknown input: treat as unresolved until it is submitted.
		unresolved[input] = struct{}{}
	}

	if len(unresolved) == 0 {
		if _, already := s.errored[t.ID]; !already {
			s.promoteToReadyLocked(t.ID)
			scheduledSomething = true
		}
	} else {
		s.waiting[t.ID] = unresolved
	}

	return scheduledSomething
}

func (s *Store) inReadyLocked(id thunk.ID) bool {
	for _, r := range s.ready {
		if r == id {
			return true
		}
	}
	return false
}

func (s *Store) promoteToReadyLocked(id thunk.ID) {
	delete(s.waiting, id)
	s.ready = append(s.ready, id)
}

func (s *Store) addDependentLocked(producer, consumer thunk.ID) {
	if s.dependents[producer] == nil {
		s.dependents[producer] = idSet{}
	}
	s.dependents[producer][consumer] = struct{}{}
}

func (s *Store) addWaitingDataLocked(producer, consumer thunk.ID) {
	if s.waitingData[producer] == nil {
		s.waitingData[producer] = idSet{}
	}
	s.waitingData[producer][consumer] = struct{}{}
}

// PopReady pops the next ready thunk. If any pinned thunk (Options.Single
// set) satisfies matchesPinned, it is pulled out of FIFO order ahead of
// everything else; otherwise the FIFO front is popped (spec.md §4.2 step 2).
func (s *Store) PopReady(matchesPinned func(single string) bool) (*thunk.Thunk, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.ready) == 0 {
		return nil, false
	}

	if matchesPinned != nil {
		for i, id := range s.ready {
			t := s.thunkDict[id]
			if t.Options.Single != "" && matchesPinned(t.Options.Single) {
				s.ready = append(s.ready[:i], s.ready[i+1:]...)
				return t, true
			}
		}
	}

	id := s.ready[0]
	s.ready = s.ready[1:]
	return s.thunkDict[id], true
}

// ReadyLen reports the current ready-queue depth.
func (s *Store) ReadyLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ready)
}

// RunningLen reports the current running-set size.
func (s *Store) RunningLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.running)
}

// MarkRunning moves a thunk from ready (already popped by PopReady) into the
// running set.
func (s *Store) MarkRunning(id thunk.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[id] = struct{}{}
}

// CompleteSuccess finalizes a successful completion: moves the thunk from
// running to finished, stores its cache entry, fans it out to waiting
// consumers (promoting any that become ready), and fulfils pending futures.
func (s *Store) CompleteSuccess(id thunk.ID, entry CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, running := s.running[id]; !running {
		// Idempotent-completion guard: a second completion for the same
		// thunk is rejected without state change (spec.md §8 law).
		return fmt.Errorf("store: completion for %d but thunk is not running", id)
	}
	delete(s.running, id)
	s.finished[id] = struct{}{}
	s.cache[id] = entry

	s.fanOutLocked(id)
	s.fulfilFuturesLocked(id, entry)
	return nil
}

// CompleteError finalizes a failing completion and propagates failure to
// every transitive dependent (spec.md §4.5).
func (s *Store) CompleteError(id thunk.ID, origErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, running := s.running[id]; !running {
		return fmt.Errorf("store: completion for %d but thunk is not running", id)
	}
	delete(s.running, id)

	exc := failure.NewThunkFailedException(id, origErr)
	s.failLocked(id, exc)
	return nil
}

// failLocked marks id errored with exc (re-addressed via Propagated if exc
// already belongs to a different thunk), fulfils its futures, removes it
// from ready if present, and recursively propagates to dependents. It is
// idempotent: an already-errored id is a no-op.
func (s *Store) failLocked(id thunk.ID, exc *failure.ThunkFailedException) {
	if _, already := s.errored[id]; already {
		return
	}
	if exc == nil {
		exc = failure.NewThunkFailedException(id, fmt.Errorf("unknown origin"))
	}
	mine := exc
	if exc.Thunk != id {
		mine = exc.Propagated(id)
	}

	s.removeFromReadyLocked(id)
	s.errored[id] = struct{}{}
	entry := CacheEntry{Err: mine}
	s.cache[id] = entry

	s.fulfilFuturesLocked(id, entry)

	// Walk dependents transitively (invariant I4), skipping thunks already
	// errored, deterministic order not required by the spec.
	for dep := range s.dependents[id] {
		s.failLocked(dep, mine)
	}
}

func (s *Store) removeFromReadyLocked(id thunk.ID) {
	for i, r := range s.ready {
		if r == id {
			s.ready = append(s.ready[:i], s.ready[i+1:]...)
			return
		}
	}
}

// fanOutLocked removes id from every consumer's waiting set, promoting any
// consumer whose waiting set becomes empty.
func (s *Store) fanOutLocked(id thunk.ID) {
	consumers := s.waitingData[id]
	delete(s.waitingData, id)
	for consumer := range consumers {
		w := s.waiting[consumer]
		delete(w, id)
		if len(w) == 0 {
			delete(s.waiting, consumer)
			if _, already := s.errored[consumer]; !already {
				if _, running := s.running[consumer]; !running {
					if _, fin := s.finished[consumer]; !fin {
						s.ready = append(s.ready, consumer)
					}
				}
			}
		}
	}
}

func (s *Store) fulfilFuturesLocked(id thunk.ID, entry CacheEntry) {
	waiters := s.futures[id]
	delete(s.futures, id)
	var payload future.Payload
	if entry.isError() {
		payload = future.Payload{Err: entry.Err}
	} else if entry.Chunk != nil {
		payload = future.Payload{Value: *entry.Chunk}
	} else {
		payload = future.Payload{Value: entry.Value}
	}
	for _, f := range waiters {
		f.Put(payload)
	}
}

// RegisterFuture appends fut to target's waiters, or fulfils it immediately
// if target already has a cache entry. It fails with ErrDominatorCycle if
// target transitively depends on requester (target is downstream of
// requester — waiting would deadlock since target can never complete before
// requester, which is what's calling this, does).
func (s *Store) RegisterFuture(requester, target thunk.ID, fut *future.Future) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reachableLocked(requester, target) {
		return fmt.Errorf("%w: thunk %d depends on %d", ErrDominatorCycle, target, requester)
	}

	if entry, done := s.cache[target]; done {
		var payload future.Payload
		if entry.isError() {
			payload = future.Payload{Err: entry.Err}
		} else if entry.Chunk != nil {
			payload = future.Payload{Value: *entry.Chunk}
		} else {
			payload = future.Payload{Value: entry.Value}
		}
		fut.Put(payload)
		return nil
	}

	s.futures[target] = append(s.futures[target], fut)
	return nil
}

// reachableLocked reports whether target is reachable from requester via
// the dependents graph, i.e. requester dominates target.
func (s *Store) reachableLocked(requester, target thunk.ID) bool {
	if requester == target {
		return true
	}
	seen := idSet{requester: struct{}{}}
	stack := []thunk.ID{requester}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for next := range s.dependents[cur] {
			if next == target {
				return true
			}
			if _, visited := seen[next]; visited {
				continue
			}
			seen[next] = struct{}{}
			stack = append(stack, next)
		}
	}
	return false
}

// GetDagIDs returns a snapshot mapping every known thunk id to the set of
// its direct dependents (spec.md's get_dag_ids control command).
func (s *Store) GetDagIDs() map[thunk.ID][]thunk.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[thunk.ID][]thunk.ID, len(s.thunkDict))
	for id := range s.thunkDict {
		var deps []thunk.ID
		for d := range s.dependents[id] {
			deps = append(deps, d)
		}
		out[id] = deps
	}
	return out
}

// CacheEntryFor returns the cache entry for id, if any.
func (s *Store) CacheEntryFor(id thunk.ID) (CacheEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.cache[id]
	return e, ok
}

// Finished reports whether id has a terminal successful state.
func (s *Store) Finished(id thunk.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.finished[id]
	return ok
}

// Errored reports whether id has a terminal failed state.
func (s *Store) Errored(id thunk.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.errored[id]
	return ok
}

// AllTerminal reports whether every known thunk is finished or errored
// (used by the scheduler loop's termination check).
func (s *Store) AllTerminal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.finished)+len(s.errored) == len(s.thunkDict)
}

// AbandonAllFutures fulfils every still-pending future with a halted
// payload, used when the scheduler halts mid-run so no waiting future is
// left unresolved (spec.md scenario 5).
func (s *Store) AbandonAllFutures(haltErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, waiters := range s.futures {
		for _, f := range waiters {
			f.Put(future.Payload{Err: haltErr})
		}
		delete(s.futures, id)
	}
}
