package hashset

import (
	"encoding/binary"
	"math/rand"
	"time"

	hash "github.com/dchest/siphash"
)

// ByteHasher is a convenience HashFunc[[]byte] source for callers who
// don't already have a deterministic hash for their element type. It
// seeds a random 128-bit SipHash key once at construction: consistent
// hashing across the lifetime of one ByteHasher, but not comparable
// across two different ones.
type ByteHasher struct {
	k0, k1 uint64
}

// NewByteHasher creates a ByteHasher seeded from a random 128-bit key.
func NewByteHasher() *ByteHasher {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	key := make([]byte, 16)
	rng.Read(key)
	return &ByteHasher{
		k0: binary.LittleEndian.Uint64(key[0:8]),
		k1: binary.LittleEndian.Uint64(key[8:16]),
	}
}

// Hash implements HashFunc[[]byte].
func (h *ByteHasher) Hash(v []byte) uint64 {
	return hash.Hash(h.k0, h.k1, v)
}

// HashString implements HashFunc[string] by hashing the string's bytes.
func (h *ByteHasher) HashString(v string) uint64 {
	return hash.Hash(h.k0, h.k1, []byte(v))
}
