package faces

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func keyOf(nodes ...int64) FaceKey {
	hashes := make([]uint64, len(nodes))
	for i, n := range nodes {
		hashes[i] = IDHash(uint64(n))
	}
	return NewFaceKey(nodes, hashes)
}

func permutations(a []int64) [][]int64 {
	if len(a) <= 1 {
		return [][]int64{append([]int64(nil), a...)}
	}
	var out [][]int64
	for i := range a {
		rest := make([]int64, 0, len(a)-1)
		rest = append(rest, a[:i]...)
		rest = append(rest, a[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]int64{a[i]}, p...))
		}
	}
	return out
}

func TestIDHash(t *testing.T) {
	assert.Equal(t, IDHash(42), IDHash(42))
	seen := make(map[uint64]bool)
	for id := uint64(1); id <= 1000; id++ {
		h := IDHash(id)
		assert.False(t, seen[h], "collision at id %d", id)
		seen[h] = true
	}
}

func TestFaceKey_PermutationInvariant(t *testing.T) {
	ref := keyOf(11, 7, 30, 2)
	perms := permutations([]int64{11, 7, 30, 2})
	require.Len(t, perms, 24)
	for _, p := range perms {
		k := keyOf(p...)
		assert.Equal(t, ref, k, "permutation %v", p)
		assert.True(t, ref.Equal(k))
		assert.True(t, k.Equal(ref))
	}

	other := keyOf(11, 7, 30, 3)
	assert.False(t, ref.Equal(other))
	assert.NotEqual(t, ref, other)
}

func TestFaceKey_Triangle(t *testing.T) {
	k := keyOf(9, 4, 6)
	assert.Equal(t, 3, k.NodeCount())
	assert.Equal(t, [4]int64{0, 4, 6, 9}, k.Nodes)
	assert.True(t, k.Equal(keyOf(6, 9, 4)))
	assert.False(t, k.Equal(keyOf(6, 9, 4, 5)))
}

func TestFaceOwner_Encode(t *testing.T) {
	o := FaceOwner{Element: 1234, Ordinal: 5}
	assert.Equal(t, int64(12345), o.Encode())
	assert.Equal(t, o, DecodeFaceOwner(o.Encode()))
}

func TestFaceSet_Ownership(t *testing.T) {
	fs := NewFaceSet(0)
	k := keyOf(1, 2, 3, 4)

	require.NoError(t, fs.Add(k, FaceOwner{Element: 1, Ordinal: 5}))
	f, ok := fs.Lookup(k)
	require.True(t, ok)
	assert.Equal(t, BoundaryFace, f.Type())

	// same node set, different order, second element
	require.NoError(t, fs.Add(keyOf(4, 3, 2, 1), FaceOwner{Element: 2, Ordinal: 4}))
	assert.Equal(t, InteriorFace, f.Type())
	assert.Equal(t, 1, fs.Len())

	// re-adding a known owner changes nothing
	require.NoError(t, fs.Add(k, FaceOwner{Element: 2, Ordinal: 4}))
	assert.Equal(t, 2, f.Count)

	err := fs.Add(k, FaceOwner{Element: 3, Ordinal: 0})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNonManifoldTopology))
	var nm *NonManifoldError
	require.True(t, errors.As(err, &nm))
	assert.Equal(t, int64(3), nm.Owners[2].Element)
	assert.Equal(t, 2, f.Count)

	fs.Clear()
	assert.Equal(t, 0, fs.Len())
}

func TestFaceSet_ConcurrentAdd(t *testing.T) {
	const numFaces = 500
	fs := NewFaceSet(numFaces)

	var wg sync.WaitGroup
	for side := 0; side < 2; side++ {
		wg.Add(1)
		go func(side int) {
			defer wg.Done()
			for i := 0; i < numFaces; i++ {
				n := int64(4*i + 1)
				owner := FaceOwner{Element: int64(2*i + side + 1), Ordinal: side}
				assert.NoError(t, fs.Add(keyOf(n, n+1, n+2, n+3), owner))
			}
		}(side)
	}
	wg.Wait()

	require.Equal(t, numFaces, fs.Len())
	for _, f := range fs.Faces() {
		assert.Equal(t, 2, f.Count, "face %v lost an owner", f.Key.Nodes)
	}
}
