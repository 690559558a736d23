package hashset

import (
	"sync"

	"go.uber.org/atomic"
)

// bucketTable is the swappable snapshot of a Striped set's bucket array.
// Readers load the current *bucketTable once per attempt and compare its
// length against what they observed before acquiring a stripe lock, to
// detect a resize that interposed between the two.
type bucketTable[T comparable] struct {
	buckets []*node[T]
}

// Striped locks bucket access through a fixed-size array of S stripe
// mutexes, independent of the bucket count: bucket b is guarded by
// stripes[b mod S]. Resize grows or shrinks only the bucket array; the
// stripe count never changes after construction, which is the defining
// property of this variant.
//
// A resize re-buckets every element under all S stripe locks held
// simultaneously (in fixed array order, to match the order a normal
// operation would acquire them in, which is never more than one at a
// time) plus a dedicated resize mutex that serializes concurrent
// resizers.
type Striped[T comparable] struct {
	hash     HashFunc[T]
	stripes  []sync.Mutex
	resizeMu sync.Mutex
	size     atomic.Int64
	table    atomic.Pointer[bucketTable[T]]
}

// NewStriped creates a Striped set with the given initial capacity
// (rounded up to kMinBuckets) and stripe count (0 is coerced to 64).
func NewStriped[T comparable](capacity int, stripes int, hash HashFunc[T]) *Striped[T] {
	if stripes <= 0 {
		stripes = defaultStripes
	}
	s := &Striped[T]{
		hash:    hash,
		stripes: make([]sync.Mutex, stripes),
	}
	s.table.Store(&bucketTable[T]{buckets: make([]*node[T], normalizeCapacity(capacity))})
	return s
}

func (s *Striped[T]) stripeOf(bucket int) int {
	return bucket % len(s.stripes)
}

// Add inserts v if absent.
func (s *Striped[T]) Add(v T) bool {
	for {
		t := s.table.Load()
		b := len(t.buckets)
		i := bucketIndex(s.hash, v, b)
		st := s.stripeOf(i)

		s.stripes[st].Lock()
		if len(s.table.Load().buckets) != b {
			// A resize interposed between observing b and acquiring the
			// stripe lock. Release and restart from a fresh observation.
			s.stripes[st].Unlock()
			continue
		}
		added := chainAdd(&t.buckets[i], v)
		var newSize int64
		if added {
			newSize = s.size.Add(1)
		}
		s.stripes[st].Unlock()

		if !added {
			return false
		}
		if loadFactor(int(newSize), b) > kMaxLoadFactor {
			s.resize(growCapacity(b))
		}
		return true
	}
}

// Remove deletes v if present.
func (s *Striped[T]) Remove(v T) bool {
	for {
		t := s.table.Load()
		b := len(t.buckets)
		i := bucketIndex(s.hash, v, b)
		st := s.stripeOf(i)

		s.stripes[st].Lock()
		if len(s.table.Load().buckets) != b {
			s.stripes[st].Unlock()
			continue
		}
		removed := chainRemove(&t.buckets[i], v)
		var newSize int64
		if removed {
			newSize = s.size.Add(-1)
		}
		s.stripes[st].Unlock()

		if !removed {
			return false
		}
		if b > kMinBuckets && loadFactor(int(newSize), b) < kMinLoadFactor {
			s.resize(shrinkCapacity(b))
		}
		return true
	}
}

// Contains reports whether v is a member, following the same
// observe/lock/re-observe protocol as Add and Remove so it never reads a
// bucket mid-resize.
func (s *Striped[T]) Contains(v T) bool {
	for {
		t := s.table.Load()
		b := len(t.buckets)
		i := bucketIndex(s.hash, v, b)
		st := s.stripeOf(i)

		s.stripes[st].Lock()
		if len(s.table.Load().buckets) != b {
			s.stripes[st].Unlock()
			continue
		}
		found := chainContains(t.buckets[i], v)
		s.stripes[st].Unlock()
		return found
	}
}

// Size returns the element count. size uses relaxed-style eventual
// consistency: it is always within [0, completed Adds - completed
// Removes], but carries no happens-before relationship to any
// particular concurrent Add.
func (s *Striped[T]) Size() int {
	return int(s.size.Load())
}

// resize grows or shrinks the bucket array to newCap while leaving the
// stripe array untouched. Resizes are serialized by resizeMu; all S
// stripes are held (in fixed order, the same order normal operations
// would encounter them in, which prevents deadlock since a normal op
// never holds more than one) while the new array is populated and
// swapped in.
func (s *Striped[T]) resize(newCap int) {
	s.resizeMu.Lock()
	defer s.resizeMu.Unlock()

	t := s.table.Load()
	if len(t.buckets) == newCap {
		return // another resizer already got here first
	}

	for i := range s.stripes {
		s.stripes[i].Lock()
	}
	newBuckets := make([]*node[T], newCap)
	for _, head := range t.buckets {
		for n := head; n != nil; {
			next := n.next
			i := bucketIndex(s.hash, n.value, newCap)
			n.next = newBuckets[i]
			newBuckets[i] = n
			n = next
		}
	}
	s.table.Store(&bucketTable[T]{buckets: newBuckets})
	for i := range s.stripes {
		s.stripes[i].Unlock()
	}
}

// snapshotBuckets returns each bucket chain's elements, for internal
// tests only. Callers should only use this from a quiescent state.
func (s *Striped[T]) snapshotBuckets() [][]T {
	for i := range s.stripes {
		s.stripes[i].Lock()
	}
	t := s.table.Load()
	out := make([][]T, len(t.buckets))
	for i, head := range t.buckets {
		out[i] = chainValues(head)
	}
	for i := range s.stripes {
		s.stripes[i].Unlock()
	}
	return out
}

// stripeCount reports the fixed stripe array length, for tests that
// check it never changes across a resize.
func (s *Striped[T]) stripeCount() int {
	return len(s.stripes)
}

var _ Set[int] = (*Striped[int])(nil)
