package hashset_test

import (
	"testing"

	hashset "github.com/mzyy1001/concurrency-coursework"
	"github.com/stretchr/testify/require"
)

// TestByteHasherIsDeterministicPerInstance checks that one ByteHasher
// always maps the same input to the same hash, for both of its two
// methods.
func TestByteHasherIsDeterministicPerInstance(t *testing.T) {
	h := hashset.NewByteHasher()

	require.Equal(t, h.Hash([]byte("gopher")), h.Hash([]byte("gopher")))
	require.Equal(t, h.HashString("gopher"), h.HashString("gopher"))
	require.Equal(t, h.Hash([]byte("gopher")), h.HashString("gopher"),
		"Hash and HashString must agree on the same bytes")
}

// TestByteHasherDrivesRefinableSet exercises ByteHasher end to end as the
// HashFunc behind a live Refinable set, rather than just calling it in
// isolation: every Add/Remove/Contains below routes its bucket index
// through siphash.
func TestByteHasherDrivesRefinableSet(t *testing.T) {
	h := hashset.NewByteHasher()
	s := hashset.NewRefinable[string](4, h.HashString)

	words := []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf", "hotel"}
	for _, w := range words {
		require.True(t, s.Add(w))
	}
	require.False(t, s.Add("alpha"), "duplicate add must report false")
	require.Equal(t, len(words), s.Size())

	require.True(t, s.Remove("bravo"))
	require.False(t, s.Contains("bravo"))
	require.False(t, s.Remove("bravo"), "second remove of the same key must report false")

	for _, w := range words {
		if w == "bravo" {
			continue
		}
		require.True(t, s.Contains(w), "word %q should still be present", w)
	}
	require.Equal(t, len(words)-1, s.Size())
}

// TestByteHasherDrivesCoarseSet exercises the same siphash-backed
// HashFunc against the Coarse variant, confirming it drives more than
// one implementation.
func TestByteHasherDrivesCoarseSet(t *testing.T) {
	h := hashset.NewByteHasher()
	s := hashset.NewCoarse[string](4, h.HashString)

	for i := 0; i < 200; i++ {
		require.True(t, s.Add(string(rune('a'+i%26))+string(rune('A'+i/26))+string(rune('0'+i%10))))
	}
	require.Equal(t, 200, s.Size())
}
