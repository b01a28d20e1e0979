package structured

import (
	"fmt"
	"math"

	"go.uber.org/zap"
)

// NoZone marks an unset zone reference
const NoZone = -1

// Zone is one node of the split tree. An adam zone is an undecomposed input
// block (Adam == ID); every other zone is half of its parent.
type Zone struct {
	Name string
	ID   int

	Adam    int
	Parent  int
	Child1  int
	Child2  int
	Sibling int

	Ordinal IJK // Cells per axis
	Offset  IJK // Cell offset of this zone inside its adam

	Processor    int
	LineOrdinal  Ordinal // Axes that may not be split
	SplitOrdinal int     // Axis of the split that created this zone, -1 for adams

	// Degenerate zones (a zero extent) are never active and never assigned
	Degenerate bool

	Connectivity []ZoneConnectivity
}

// IsActive reports whether the zone is a leaf of the split tree
func (z *Zone) IsActive() bool { return z.Child1 == NoZone && !z.Degenerate }

// IsSplit reports whether the zone has children
func (z *Zone) IsSplit() bool { return z.Child1 != NoZone }

// Work is the cell count of the zone
func (z *Zone) Work() int64 {
	return int64(z.Ordinal[0]) * int64(z.Ordinal[1]) * int64(z.Ordinal[2])
}

// NodeRange returns the 1-based inclusive node box of the zone in adam space
func (z *Zone) NodeRange() (lo, hi IJK) {
	for i := 0; i < 3; i++ {
		lo[i] = z.Offset[i] + 1
		hi[i] = z.Offset[i] + z.Ordinal[i] + 1
	}
	return lo, hi
}

// NodeCount is the number of nodes of the zone
func (z *Zone) NodeCount() int64 {
	return int64(z.Ordinal[0]+1) * int64(z.Ordinal[1]+1) * int64(z.Ordinal[2]+1)
}

func (z *Zone) String() string {
	return fmt.Sprintf("zone %d %q (adam %d) extents %v offset %v work %d proc %d",
		z.ID, z.Name, z.Adam, z.Ordinal, z.Offset, z.Work(), z.Processor)
}

// Arena owns every zone of one decomposition run. Zones are addressed by
// index; indices are never reused.
type Arena struct {
	zones  []*Zone
	logger *zap.Logger
}

func NewArena(logger *zap.Logger) *Arena {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Arena{logger: logger}
}

// AddAdam appends an undecomposed zone and returns it
func (a *Arena) AddAdam(name string, ni, nj, nk int) *Zone {
	z := a.newZone(name)
	z.Adam = z.ID
	z.Ordinal = IJK{ni, nj, nk}
	z.Degenerate = ni <= 0 || nj <= 0 || nk <= 0
	return z
}

func (a *Arena) newZone(name string) *Zone {
	z := &Zone{
		Name:         name,
		ID:           len(a.zones),
		Adam:         NoZone,
		Parent:       NoZone,
		Child1:       NoZone,
		Child2:       NoZone,
		Sibling:      NoZone,
		Processor:    -1,
		SplitOrdinal: -1,
	}
	a.zones = append(a.zones, z)
	return z
}

// Zone returns the zone with the given id
func (a *Arena) Zone(id int) *Zone { return a.zones[id] }

// Len is the number of zones ever created
func (a *Arena) Len() int { return len(a.zones) }

// Zones returns all zones in creation order
func (a *Arena) Zones() []*Zone { return a.zones }

// Leaves returns the active zones in creation order
func (a *Arena) Leaves() []*Zone {
	var leaves []*Zone
	for _, z := range a.zones {
		if z.IsActive() {
			leaves = append(leaves, z)
		}
	}
	return leaves
}

// AdamOf follows parent links to the root of the zone's split family
func (a *Arena) AdamOf(id int) *Zone {
	z := a.zones[id]
	for z.Parent != NoZone {
		z = a.zones[z.Parent]
	}
	return z
}

type splitChoice struct {
	axis int
	ord  IJK
	work [3]int64
}

// candidates computes the child extent and resulting work for a split along
// each axis; ineligible axes get zero work
func (z *Zone) candidates(ratio float64, allowRemainder bool) splitChoice {
	var c splitChoice
	c.axis = -1
	for a := 0; a < 3; a++ {
		ext := z.Ordinal[a]
		c.ord[a] = int(math.Round(float64(ext) * ratio))
		c.work[a] = int64(c.ord[a]) * int64(z.Ordinal[(a+1)%3]) * int64(z.Ordinal[(a+2)%3])
		switch {
		case z.LineOrdinal.Has(a), ext == 1, c.ord[a] <= 1, c.ord[a] >= ext:
			c.work[a] = 0
		case !allowRemainder && ext-c.ord[a] == 1:
			c.work[a] = 0
		}
	}
	return c
}

// chooseAxis picks the axis whose split work is closest to avgWork, then
// prefers a markedly longer eligible axis to keep the children cube-like
func (z *Zone) chooseAxis(c splitChoice, avgWork float64) int {
	best := -1
	bestDelta := math.Inf(1)
	for a := 0; a < 3; a++ {
		if c.work[a] == 0 {
			continue
		}
		delta := math.Abs(float64(c.work[a]) - avgWork)
		if delta < bestDelta || (delta == bestDelta && z.Ordinal[a] > z.Ordinal[best]) {
			best, bestDelta = a, delta
		}
	}
	if best < 0 {
		return -1
	}
	longest := best
	for a := 0; a < 3; a++ {
		if c.work[a] == 0 || a == best {
			continue
		}
		if float64(z.Ordinal[a]) > 1.5*float64(z.Ordinal[best]) && z.Ordinal[a] > z.Ordinal[longest] {
			longest = a
		}
	}
	return longest
}

// Split bisects an active zone so that one child carries roughly avgWork
// cells. On success the children are appended to the arena and their ids
// returned; otherwise ErrSplitInfeasible is returned and nothing changes.
// The split trace is logged when verbose is set on rank 0.
func (a *Arena) Split(id int, avgWork float64, rank int, verbose bool) (int, int, error) {
	z := a.zones[id]
	if !z.IsActive() {
		return NoZone, NoZone, fmt.Errorf("%w: zone %q (%d) is not active", ErrSplitInfeasible, z.Name, z.ID)
	}
	work := float64(z.Work())
	if work <= 0 || avgWork <= 0 {
		return NoZone, NoZone, fmt.Errorf("%w: zone %q (%d) has work %.0f, target %.1f",
			ErrSplitInfeasible, z.Name, z.ID, work, avgWork)
	}

	ratio := avgWork / work
	if ratio > 1 {
		ratio = 1 / ratio
	}

	c := z.candidates(ratio, false)
	if c.work == [3]int64{} {
		c = z.candidates(ratio, true)
	}
	axis := z.chooseAxis(c, avgWork)
	if axis < 0 {
		return NoZone, NoZone, fmt.Errorf("%w: zone %q (%d) extents %v line %q ratio %.3f",
			ErrSplitInfeasible, z.Name, z.ID, z.Ordinal, z.LineOrdinal.String(), ratio)
	}

	c1 := a.newZone(z.Name + "_c1")
	c2 := a.newZone(z.Name + "_c2")
	for _, child := range []*Zone{c1, c2} {
		child.Adam = z.Adam
		child.Parent = z.ID
		child.LineOrdinal = z.LineOrdinal
		child.SplitOrdinal = axis
		child.Ordinal = z.Ordinal
		child.Offset = z.Offset
	}
	c1.Ordinal[axis] = max(c.ord[axis], 1)
	c2.Ordinal[axis] = z.Ordinal[axis] - c1.Ordinal[axis]
	c2.Offset[axis] += c1.Ordinal[axis]
	c1.Sibling, c2.Sibling = c2.ID, c1.ID
	z.Child1, z.Child2 = c1.ID, c2.ID

	if verbose && rank == 0 {
		a.logger.Info("split zone",
			zap.String("zone", z.Name),
			zap.Int("id", z.ID),
			zap.String("axis", AxisName(axis)),
			zap.Float64("ratio", ratio),
			zap.Int64("work", z.Work()),
			zap.Stringer("child1", c1.Ordinal),
			zap.Stringer("child2", c2.Ordinal))
	}

	a.addSeam(c1, c2, axis)
	a.propagateToChildren(z, c1, c2)
	return c1.ID, c2.ID, nil
}

// addSeam connects the two halves of a split across their shared plane
func (a *Arena) addSeam(c1, c2 *Zone, axis int) {
	lo, hi := c1.NodeRange()
	lo[axis] = hi[axis]

	seam := func(owner, donor *Zone) ZoneConnectivity {
		return ZoneConnectivity{
			Name:           fmt.Sprintf("%s--%s", owner.Name, donor.Name),
			OwnerZone:      owner.ID,
			DonorZone:      donor.ID,
			DonorName:      donor.Name,
			Transform:      IdentityTransform,
			OwnerRangeBeg:  lo,
			OwnerRangeEnd:  hi,
			DonorRangeBeg:  lo,
			DonorRangeEnd:  hi,
			OwnerOffset:    owner.Offset,
			DonorOffset:    donor.Offset,
			Active:         true,
			SameRange:      true,
			FromDecomp:     true,
			OwnerProcessor: -1,
			DonorProcessor: -1,
		}
	}
	c1.Connectivity = append(c1.Connectivity, seam(c1, c2))
	c2.Connectivity = append(c2.Connectivity, seam(c2, c1))
}

// propagateToChildren clips every parent edge to the child or children it
// touches. An edge touching neither survives as a retained copy on child1.
func (a *Arena) propagateToChildren(parent, c1, c2 *Zone) {
	for _, zgc := range parent.Connectivity {
		if !zgc.Active {
			c1.Connectivity = append(c1.Connectivity, zgc.reown(c1))
			continue
		}
		found := false
		for _, child := range []*Zone{c1, c2} {
			lo, hi := child.NodeRange()
			if clipped, ok := zgc.clipOwner(lo, hi); ok {
				child.Connectivity = append(child.Connectivity, clipped.reown(child))
				found = true
			}
		}
		if !found {
			c1.Connectivity = append(c1.Connectivity, zgc.retainedCopy().reown(c1))
		}
	}
}

func (zgc ZoneConnectivity) reown(owner *Zone) ZoneConnectivity {
	zgc.OwnerZone = owner.ID
	zgc.OwnerOffset = owner.Offset
	return zgc
}

func (zgc ZoneConnectivity) redonate(donor *Zone) ZoneConnectivity {
	zgc.DonorZone = donor.ID
	zgc.DonorName = donor.Name
	zgc.DonorOffset = donor.Offset
	return zgc
}
