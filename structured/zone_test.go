package structured

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func assertSplitPartition(t *testing.T, a *Arena, parent *Zone) {
	t.Helper()
	c1, c2 := a.Zone(parent.Child1), a.Zone(parent.Child2)
	assert.Equal(t, parent.Work(), c1.Work()+c2.Work())
	axis := c1.SplitOrdinal
	for i := 0; i < 3; i++ {
		if i == axis {
			assert.Equal(t, parent.Ordinal[i], c1.Ordinal[i]+c2.Ordinal[i])
			assert.Equal(t, parent.Offset[i], c1.Offset[i])
			assert.Equal(t, c1.Offset[i]+c1.Ordinal[i], c2.Offset[i])
			continue
		}
		assert.Equal(t, parent.Ordinal[i], c1.Ordinal[i])
		assert.Equal(t, parent.Ordinal[i], c2.Ordinal[i])
		assert.Equal(t, parent.Offset[i], c2.Offset[i])
	}
	assert.Equal(t, c2.ID, c1.Sibling)
	assert.Equal(t, c1.ID, c2.Sibling)
	assert.Equal(t, parent.Adam, c1.Adam)
	assert.Equal(t, parent.ID, c2.Parent)
}

func TestSplit_Cube(t *testing.T) {
	a := NewArena(zaptest.NewLogger(t))
	z := a.AddAdam("cube", 4, 4, 4)
	assert.Equal(t, z.ID, z.Adam)
	assert.True(t, z.IsActive())

	c1, c2, err := a.Split(z.ID, 32, 0, true)
	require.NoError(t, err)
	assert.False(t, z.IsActive())
	assertSplitPartition(t, a, z)

	// all axes tie, equal extents: lowest axis wins
	assert.Equal(t, IJK{2, 4, 4}, a.Zone(c1).Ordinal)
	assert.Equal(t, IJK{2, 0, 0}, a.Zone(c2).Offset)
	assert.Equal(t, z, a.AdamOf(c2))
	assert.Len(t, a.Leaves(), 2)

	// seam edges map their owner range exactly onto their donor range
	for _, id := range []int{c1, c2} {
		child := a.Zone(id)
		require.Len(t, child.Connectivity, 1)
		seam := child.Connectivity[0]
		assert.True(t, seam.SameRange)
		assert.True(t, seam.FromDecomp)
		assert.True(t, seam.Active)
		assert.Equal(t, seam.DonorRangeBeg, seam.TransformIndex(seam.OwnerRangeBeg))
		assert.Equal(t, seam.DonorRangeEnd, seam.TransformIndex(seam.OwnerRangeEnd))
		assert.Equal(t, seam.OwnerRangeBeg, seam.InverseTransformIndex(seam.DonorRangeBeg))
		assert.Equal(t, seam.OwnerRangeEnd, seam.InverseTransformIndex(seam.DonorRangeEnd))
		assert.Equal(t, IJK{3, 1, 1}, seam.OwnerRangeBeg)
		assert.Equal(t, IJK{3, 5, 5}, seam.OwnerRangeEnd)
		assert.Equal(t, 25, seam.SharedNodeCount())
		assert.NoError(t, seam.Validate())
	}
	assert.Equal(t, c2, a.Zone(c1).Connectivity[0].DonorZone)
	assert.Equal(t, IJK{2, 0, 0}, a.Zone(c1).Connectivity[0].DonorOffset)
	assert.Equal(t, IJK{1, 1, 1}, a.Zone(c2).Connectivity[0].OwnerLocalBeg())
}

func TestSplit_LineDecomposition(t *testing.T) {
	a := NewArena(nil)
	z := a.AddAdam("block", 4, 4, 4)
	z.LineOrdinal = OrdinalI

	c1, _, err := a.Split(z.ID, 32, 0, false)
	require.NoError(t, err)
	assert.Equal(t, 1, a.Zone(c1).SplitOrdinal)
	assert.Equal(t, IJK{4, 2, 4}, a.Zone(c1).Ordinal)
	assert.Equal(t, OrdinalI, a.Zone(c1).LineOrdinal)
}

func TestSplit_PrefersLongAxis(t *testing.T) {
	// i gives exactly the target work, but j is more than 1.5x longer
	a := NewArena(nil)
	z := a.AddAdam("slab", 8, 13, 1)

	c1, c2, err := a.Split(z.ID, 52, 0, false)
	require.NoError(t, err)
	assertSplitPartition(t, a, z)
	assert.Equal(t, 1, a.Zone(c1).SplitOrdinal)
	assert.Equal(t, IJK{8, 7, 1}, a.Zone(c1).Ordinal)
	assert.Equal(t, IJK{8, 6, 1}, a.Zone(c2).Ordinal)
}

func TestSplit_RelaxesRemainderRule(t *testing.T) {
	a := NewArena(nil)
	z := a.AddAdam("rod", 3, 1, 1)

	c1, c2, err := a.Split(z.ID, 1.5, 0, false)
	require.NoError(t, err)
	assert.Equal(t, IJK{2, 1, 1}, a.Zone(c1).Ordinal)
	assert.Equal(t, IJK{1, 1, 1}, a.Zone(c2).Ordinal)
}

func TestSplit_Infeasible(t *testing.T) {
	tests := []struct {
		name    string
		extents IJK
		line    Ordinal
		avg     float64
	}{
		{"SingleCell", IJK{1, 1, 1}, 0, 0.5},
		{"TwoCells", IJK{2, 2, 2}, 0, 4},
		{"LineForbidsOnlyAxis", IJK{1, 1, 16}, OrdinalK, 8},
		{"NoTarget", IJK{4, 4, 4}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewArena(nil)
			z := a.AddAdam(tt.name, tt.extents[0], tt.extents[1], tt.extents[2])
			z.LineOrdinal = tt.line
			c1, c2, err := a.Split(z.ID, tt.avg, 0, false)
			assert.True(t, errors.Is(err, ErrSplitInfeasible), "%v", err)
			assert.Equal(t, NoZone, c1)
			assert.Equal(t, NoZone, c2)
			assert.Equal(t, 1, a.Len())
			assert.True(t, z.IsActive())
		})
	}

	a := NewArena(nil)
	z := a.AddAdam("twice", 4, 4, 4)
	_, _, err := a.Split(z.ID, 32, 0, false)
	require.NoError(t, err)
	_, _, err = a.Split(z.ID, 32, 0, false)
	assert.True(t, errors.Is(err, ErrSplitInfeasible))
}

func TestAddAdam_Degenerate(t *testing.T) {
	a := NewArena(nil)
	z := a.AddAdam("flat", 4, 4, 0)
	assert.True(t, z.Degenerate)
	assert.False(t, z.IsActive())
	assert.Empty(t, a.Leaves())
}

// connectedPair builds two 4x4x4 adams joined through rotatedEdge and its
// mirror image
func connectedPair() (*Arena, *Zone, *Zone) {
	a := NewArena(nil)
	za := a.AddAdam("a", 4, 4, 4)
	zb := a.AddAdam("b", 4, 4, 4)
	za.Connectivity = []ZoneConnectivity{rotatedEdge()}
	zb.Connectivity = []ZoneConnectivity{{
		Name:          "b-to-a",
		OwnerZone:     zb.ID,
		DonorZone:     za.ID,
		DonorName:     "a",
		Transform:     IJK{2, 1, -3},
		OwnerRangeBeg: IJK{1, 1, 5},
		OwnerRangeEnd: IJK{5, 1, 1},
		DonorRangeBeg: IJK{5, 1, 1},
		DonorRangeEnd: IJK{5, 5, 5},
		Active:        true,
	}}
	return a, za, zb
}

func findEdge(z *Zone, donor int) []ZoneConnectivity {
	var out []ZoneConnectivity
	for _, zgc := range z.Connectivity {
		if zgc.DonorZone == donor {
			out = append(out, zgc)
		}
	}
	return out
}

func TestSplit_PropagatesConnectivity(t *testing.T) {
	a, _, zb := connectedPair()
	require.NoError(t, zb.Connectivity[0].Validate())
	parentEdge := zb.Connectivity[0]

	zb.LineOrdinal = OrdinalI | OrdinalJ
	c1, c2, err := a.Split(zb.ID, 32, 0, false)
	require.NoError(t, err)

	for _, id := range []int{c1, c2} {
		child := a.Zone(id)
		edges := findEdge(child, 0)
		require.Len(t, edges, 1, child.Name)
		e := edges[0]
		assert.Equal(t, id, e.OwnerZone)
		assert.Equal(t, child.Offset, e.OwnerOffset)
		assert.NoError(t, e.Validate())
		assert.LessOrEqual(t, e.SharedNodeCount(), parentEdge.SharedNodeCount())
		assert.Equal(t, 15, e.SharedNodeCount())
	}
	e1 := findEdge(a.Zone(c1), 0)[0]
	assert.Equal(t, IJK{1, 1, 3}, e1.OwnerRangeBeg)
	assert.Equal(t, IJK{5, 1, 1}, e1.OwnerRangeEnd)
	assert.Equal(t, IJK{5, 1, 3}, e1.DonorRangeBeg)
	assert.Equal(t, IJK{5, 5, 5}, e1.DonorRangeEnd)
}

func TestSplit_RetainsUntouchedEdges(t *testing.T) {
	a, za, _ := connectedPair()
	za.Connectivity = append(za.Connectivity, rotatedEdge().retainedCopy())
	za.LineOrdinal = OrdinalJ | OrdinalK

	// split along i: only the i-max child touches the face
	c1, c2, err := a.Split(za.ID, 32, 0, false)
	require.NoError(t, err)

	kids1, kids2 := a.Zone(c1).Connectivity, a.Zone(c2).Connectivity
	retained := 0
	for _, e := range kids1 {
		if e.Retained {
			retained++
			assert.True(t, e.IsZeroRange())
			assert.Equal(t, c1, e.OwnerZone)
		}
	}
	assert.Equal(t, 1, retained)
	assert.Len(t, findEdge(a.Zone(c2), 1), 1)
	assert.Len(t, findEdge(a.Zone(c1), 1), 1) // the retained copy
	assert.Len(t, kids2, 2)                   // seam + clipped face
}
