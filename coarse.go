package hashset

import "sync"

// Coarse is the simplest correct concurrent variant: a single mutex
// guards every operation, including the rehash a growth or shrink
// triggers. The mutex is held across the whole call; Resize is invoked
// while already holding it, never by re-entering it.
type Coarse[T comparable] struct {
	mu      sync.Mutex
	hash    HashFunc[T]
	buckets []*node[T]
	size    int
}

// NewCoarse creates a Coarse set with the given initial capacity (rounded
// up to kMinBuckets) and hash function.
func NewCoarse[T comparable](capacity int, hash HashFunc[T]) *Coarse[T] {
	return &Coarse[T]{
		hash:    hash,
		buckets: make([]*node[T], normalizeCapacity(capacity)),
	}
}

// Add inserts v if absent. On success it may trigger a grow-resize while
// still holding the mutex.
func (c *Coarse[T]) Add(v T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := bucketIndex(c.hash, v, len(c.buckets))
	if !chainAdd(&c.buckets[i], v) {
		return false
	}
	c.size++
	if loadFactor(c.size, len(c.buckets)) > kMaxLoadFactor {
		c.resizeLocked(growCapacity(len(c.buckets)))
	}
	return true
}

// Remove deletes v if present. On success it may trigger a shrink-resize
// (clamped at kMinBuckets) while still holding the mutex.
func (c *Coarse[T]) Remove(v T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := bucketIndex(c.hash, v, len(c.buckets))
	if !chainRemove(&c.buckets[i], v) {
		return false
	}
	c.size--
	if len(c.buckets) > kMinBuckets && loadFactor(c.size, len(c.buckets)) < kMinLoadFactor {
		c.resizeLocked(shrinkCapacity(len(c.buckets)))
	}
	return true
}

// Contains reports whether v is a member, under the same mutex used by
// mutating operations so size/bucket reads are never torn.
func (c *Coarse[T]) Contains(v T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := bucketIndex(c.hash, v, len(c.buckets))
	return chainContains(c.buckets[i], v)
}

// Size returns the element count, taken under the mutex.
func (c *Coarse[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// resizeLocked rehashes every element into a new bucket array of newCap.
// Callers must already hold c.mu.
func (c *Coarse[T]) resizeLocked(newCap int) {
	newBuckets := make([]*node[T], newCap)
	for _, head := range c.buckets {
		for n := head; n != nil; {
			next := n.next
			i := bucketIndex(c.hash, n.value, newCap)
			n.next = newBuckets[i]
			newBuckets[i] = n
			n = next
		}
	}
	c.buckets = newBuckets
}

// snapshotBuckets returns each bucket chain's elements, for internal
// tests only. Callers should only use this from a quiescent state.
func (c *Coarse[T]) snapshotBuckets() [][]T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]T, len(c.buckets))
	for i, head := range c.buckets {
		out[i] = chainValues(head)
	}
	return out
}

var _ Set[int] = (*Coarse[int])(nil)
