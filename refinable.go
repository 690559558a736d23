package hashset

import (
	"runtime"
	"sync"

	"go.uber.org/atomic"
)

// Refinable is the finest-grained variant: it keeps one mutex per bucket,
// and that lock array grows and shrinks in lockstep with the bucket array
// itself. That's the hard part. In Striped, the stripe array never moves,
// so "acquire the lock for this index" is always safe — the lock you
// acquired is still the lock for that index by the time you're done with
// it. Here, a resize can replace the entire lock array out from under a
// concurrent Add/Remove/Contains, so "I hold a lock" is no longer proof
// that "I hold the *right* lock for the table that currently exists".
//
// The fix is a version stamp plus a resizing flag:
//
//  1. Wait while a resize is in progress (resizing == true) — briefly
//     spin, then yield the scheduler after ~32 iterations, so a normal
//     op never fights over a bucket lock that's about to be replaced
//     wholesale.
//  2. Read the version before computing which bucket to touch.
//  3. Compute the bucket index against the *current* table, and lock
//     that bucket's mutex.
//  4. Re-read both the version and the resizing flag. If the version
//     changed since step 2, a resize committed in between and the index
//     (and maybe the lock) computed in step 3 might no longer correspond
//     to the current table at all. If resizing is now true, a resize has
//     started migrating buckets but hasn't bumped the version yet — the
//     lock just acquired may be for a bucket the resize has already
//     emptied into the new table, which version alone can't see since
//     the bump only happens after the whole migration completes. Either
//     condition means release and restart from step 1.
//  5. Only once the version is confirmed stable and no resize is
//     in flight, both checked after lock acquisition, is it safe to read
//     or mutate the bucket.
//
// version only ever increases, and only a completed resize increases it
// (the swap of the bucket+lock arrays happens-before the bump, and the
// bump is the resize's linearization point). So "version unchanged and
// resizing still false, both re-checked after I grabbed my lock" really
// does mean "the table I computed my index against is still the live
// one, and nothing is migrating it out from under me right now".
//
// Resize itself walks the old table one bucket at a time — locking each
// old bucket only long enough to move its chain into the freshly
// allocated array — rather than holding every old lock for the whole
// rehash. resizing stays true for the entire migration, not just around
// the final swap, which is what closes the window described in step 4:
// a normal op that locks a bucket the resize has already emptied sees
// resizing == true at its post-lock re-check (the version bump alone
// would arrive too late) and retries once the new table is published,
// rather than silently operating on a bucket that's about to be
// discarded. Holding every old lock for the whole migration would also
// be correct, but costs more peak lock state for no extra safety, so the
// one-bucket-at-a-time form is what's implemented here.
//
// Go's garbage collector gets us something C or C++ would have to build
// by hand: a goroutine that loaded the old table before a resize keeps
// that table (and its locks slice) reachable for as long as its local
// variable is live — which is exactly until it finishes its version
// re-check and releases the old lock. Nothing ever has to explicitly
// retire a lock array for this to be safe.
type Refinable[T comparable] struct {
	hash     HashFunc[T]
	resizeMu sync.Mutex
	version  atomic.Uint64
	resizing atomic.Bool
	owner    atomic.Uint64
	size     atomic.Int64
	table    atomic.Pointer[refinableTable[T]]
}

// refinableTable is the swappable snapshot of a Refinable set's bucket
// array and its matching per-bucket lock array (always the same length).
type refinableTable[T comparable] struct {
	buckets []*node[T]
	locks   []sync.Mutex
}

// NewRefinable creates a Refinable set with the given initial capacity
// (rounded up to kMinBuckets) and hash function.
func NewRefinable[T comparable](capacity int, hash HashFunc[T]) *Refinable[T] {
	b := normalizeCapacity(capacity)
	r := &Refinable[T]{hash: hash}
	r.table.Store(&refinableTable[T]{
		buckets: make([]*node[T], b),
		locks:   make([]sync.Mutex, b),
	})
	return r
}

// waitForResize spins briefly while a resize is publishing new arrays,
// yielding the scheduler every 32 iterations so this doesn't starve the
// resizing goroutine under oversubscription.
func (r *Refinable[T]) waitForResize() {
	spins := 0
	for r.resizing.Load() {
		spins++
		if spins%32 == 0 {
			runtime.Gosched()
		}
	}
}

// Add inserts v if absent, retrying the lock/version protocol described
// on Refinable until it completes against a geometry that didn't change
// out from under it.
func (r *Refinable[T]) Add(v T) bool {
	for {
		r.waitForResize()
		verBefore := r.version.Load()

		t := r.table.Load()
		b := len(t.buckets)
		i := bucketIndex(r.hash, v, b)
		t.locks[i].Lock()

		if r.version.Load() != verBefore || r.resizing.Load() {
			t.locks[i].Unlock()
			continue
		}

		added := chainAdd(&t.buckets[i], v)
		t.locks[i].Unlock()

		if !added {
			return false
		}
		newSize := r.size.Add(1)
		if loadFactor(int(newSize), b) > kMaxLoadFactor && !r.resizing.Load() {
			r.resize(growCapacity(b))
		}
		return true
	}
}

// Remove deletes v if present, following the same retry protocol as Add.
func (r *Refinable[T]) Remove(v T) bool {
	for {
		r.waitForResize()
		verBefore := r.version.Load()

		t := r.table.Load()
		b := len(t.buckets)
		i := bucketIndex(r.hash, v, b)
		t.locks[i].Lock()

		if r.version.Load() != verBefore || r.resizing.Load() {
			t.locks[i].Unlock()
			continue
		}

		removed := chainRemove(&t.buckets[i], v)
		t.locks[i].Unlock()

		if !removed {
			return false
		}
		newSize := r.size.Add(-1)
		if loadFactor(int(newSize), b) < kMinLoadFactor && !r.resizing.Load() {
			r.resize(shrinkCapacity(b))
		}
		return true
	}
}

// Contains reports whether v is a member. Contains never triggers a
// resize; growth and shrink are driven exclusively by successful
// Add/Remove.
func (r *Refinable[T]) Contains(v T) bool {
	for {
		r.waitForResize()
		verBefore := r.version.Load()

		t := r.table.Load()
		i := bucketIndex(r.hash, v, len(t.buckets))
		t.locks[i].Lock()

		if r.version.Load() != verBefore || r.resizing.Load() {
			t.locks[i].Unlock()
			continue
		}

		found := chainContains(t.buckets[i], v)
		t.locks[i].Unlock()
		return found
	}
}

// Size returns the element count (relaxed eventual consistency, same as
// the other concurrent variants).
func (r *Refinable[T]) Size() int {
	return int(r.size.Load())
}

// resize grows or shrinks both the bucket array and the lock array
// together to newCap: acquire the resize mutex, publish the resizing
// flag, migrate one old bucket at a time under its own old lock, swap in
// the new arrays, bump the version (this is the resize's linearization
// point), then clear the resizing flag.
func (r *Refinable[T]) resize(newCap int) {
	r.resizeMu.Lock()
	defer r.resizeMu.Unlock()

	newCap = normalizeCapacity(newCap)
	t := r.table.Load()
	if len(t.buckets) == newCap {
		return // another resizer already got here first
	}

	r.owner.Store(r.nextOwner())
	r.resizing.Store(true)

	newBuckets := make([]*node[T], newCap)
	newLocks := make([]sync.Mutex, newCap)
	for i := range t.buckets {
		t.locks[i].Lock()
		for n := t.buckets[i]; n != nil; {
			next := n.next
			idx := bucketIndex(r.hash, n.value, newCap)
			n.next = newBuckets[idx]
			newBuckets[idx] = n
			n = next
		}
		t.buckets[i] = nil
		t.locks[i].Unlock()
	}

	r.table.Store(&refinableTable[T]{buckets: newBuckets, locks: newLocks})
	r.version.Add(1)
	r.resizing.Store(false)
	r.owner.Store(0)
}

// resizeOwnerSeq backs nextOwner; 0 is reserved for "no owner in progress".
var resizeOwnerSeq atomic.Uint64

// nextOwner returns the next resize-owner id. Go goroutines have no
// public, stable identity to use in place of a thread id, and none is
// required for correctness here: this implementation never invokes
// resize recursively from inside another resize's own critical section,
// so no goroutine ever needs to recognize "this resize is mine, skip the
// wait gate" mid-flight. owner exists for observability only.
func (r *Refinable[T]) nextOwner() uint64 {
	return resizeOwnerSeq.Add(1)
}

// snapshotBuckets returns each bucket chain's elements, for internal
// tests only. Callers should only use this from a quiescent state.
func (r *Refinable[T]) snapshotBuckets() [][]T {
	t := r.table.Load()
	for i := range t.locks {
		t.locks[i].Lock()
	}
	out := make([][]T, len(t.buckets))
	for i, head := range t.buckets {
		out[i] = chainValues(head)
	}
	for i := range t.locks {
		t.locks[i].Unlock()
	}
	return out
}

// lockCount reports the current per-bucket lock array length, for tests
// asserting it always equals the bucket array length outside a
// transition.
func (r *Refinable[T]) lockCount() int {
	return len(r.table.Load().locks)
}

var _ Set[int] = (*Refinable[int])(nil)
