package structured

import (
	"fmt"
	"strings"
)

// ZoneConnectivity is one adjacency edge from an owner zone to a donor zone.
// Ranges are 1-based node indices in the index space of each side's adam
// zone; the offsets convert them to zone-local indices.
//
// Transform follows the CGNS convention: Transform[i] = ±(d+1) means owner
// axis i runs along donor axis d, in the same (+) or opposite (-) direction.
type ZoneConnectivity struct {
	Name      string
	OwnerZone int
	DonorZone int
	DonorName string

	Transform IJK

	OwnerRangeBeg, OwnerRangeEnd IJK
	DonorRangeBeg, DonorRangeEnd IJK
	OwnerOffset, DonorOffset     IJK

	Active     bool
	SameRange  bool // Owner and donor ranges are identical (processor split seam)
	FromDecomp bool // Created by a split, not declared in the input
	Retained   bool // Inactive zero-range copy kept for reconstruction

	OwnerProcessor int
	DonorProcessor int
}

// IdentityTransform maps each owner axis onto the same donor axis
var IdentityTransform = IJK{1, 2, 3}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func signInt(v int) int {
	if v < 0 {
		return -1
	}
	return 1
}

// ValidTransform reports whether t is a signed permutation of the three axes
func ValidTransform(t IJK) bool {
	var seen [3]bool
	for _, v := range t {
		a := absInt(v)
		if a < 1 || a > 3 || seen[a-1] {
			return false
		}
		seen[a-1] = true
	}
	return true
}

// TransformMatrix returns the 3x3 signed permutation matrix, row-major, with
// donorDelta[r] = sum_c M[3r+c] * ownerDelta[c]
func (zgc *ZoneConnectivity) TransformMatrix() [9]int {
	var m [9]int
	for c, v := range zgc.Transform {
		r := absInt(v) - 1
		m[3*r+c] = signInt(v)
	}
	return m
}

// TransformIndex maps an owner-space node index to donor space
func (zgc *ZoneConnectivity) TransformIndex(owner IJK) IJK {
	var donor IJK
	for i, v := range zgc.Transform {
		d := absInt(v) - 1
		donor[d] = signInt(v)*(owner[i]-zgc.OwnerRangeBeg[i]) + zgc.DonorRangeBeg[d]
	}
	return donor
}

// InverseTransformIndex maps a donor-space node index to owner space
func (zgc *ZoneConnectivity) InverseTransformIndex(donor IJK) IJK {
	var owner IJK
	for i, v := range zgc.Transform {
		d := absInt(v) - 1
		owner[i] = signInt(v)*(donor[d]-zgc.DonorRangeBeg[d]) + zgc.OwnerRangeBeg[i]
	}
	return owner
}

// SharedNodeCount is the number of nodes in the owner range
func (zgc *ZoneConnectivity) SharedNodeCount() int {
	n := 1
	for i := 0; i < 3; i++ {
		n *= absInt(zgc.OwnerRangeEnd[i]-zgc.OwnerRangeBeg[i]) + 1
	}
	return n
}

// HasFaces reports whether the owner range is a 2-D interface: collapsed to a
// single index on exactly one axis and spanning at least one cell on the
// other two
func (zgc *ZoneConnectivity) HasFaces() bool {
	collapsed := 0
	for i := 0; i < 3; i++ {
		if zgc.OwnerRangeBeg[i] == zgc.OwnerRangeEnd[i] {
			collapsed++
		}
	}
	return collapsed == 1
}

// IsZeroRange reports whether both ranges are all zero
func (zgc *ZoneConnectivity) IsZeroRange() bool {
	var zero IJK
	return zgc.OwnerRangeBeg == zero && zgc.OwnerRangeEnd == zero &&
		zgc.DonorRangeBeg == zero && zgc.DonorRangeEnd == zero
}

// Validate checks the edge invariants
func (zgc *ZoneConnectivity) Validate() error {
	if !ValidTransform(zgc.Transform) {
		return fmt.Errorf("%w: %s: transform %v is not a signed permutation",
			ErrInconsistentConnectivity, zgc.Label(), zgc.Transform)
	}
	if !zgc.Active {
		return nil
	}
	if !zgc.HasFaces() {
		return fmt.Errorf("%w: %s: active edge owner range %v..%v is not a face",
			ErrInconsistentConnectivity, zgc.Label(), zgc.OwnerRangeBeg, zgc.OwnerRangeEnd)
	}
	if got := zgc.TransformIndex(zgc.OwnerRangeEnd); got != zgc.DonorRangeEnd {
		return fmt.Errorf("%w: %s: owner range end %v transforms to %v, donor range end is %v",
			ErrInconsistentConnectivity, zgc.Label(), zgc.OwnerRangeEnd, got, zgc.DonorRangeEnd)
	}
	return nil
}

// IsValid is Validate without the diagnostic
func (zgc *ZoneConnectivity) IsValid() bool { return zgc.Validate() == nil }

// OwnerLocalBeg and the other local accessors convert adam-space ranges to
// zone-local node indices
func (zgc *ZoneConnectivity) OwnerLocalBeg() IJK { return zgc.OwnerRangeBeg.Sub(zgc.OwnerOffset) }
func (zgc *ZoneConnectivity) OwnerLocalEnd() IJK { return zgc.OwnerRangeEnd.Sub(zgc.OwnerOffset) }
func (zgc *ZoneConnectivity) DonorLocalBeg() IJK { return zgc.DonorRangeBeg.Sub(zgc.DonorOffset) }
func (zgc *ZoneConnectivity) DonorLocalEnd() IJK { return zgc.DonorRangeEnd.Sub(zgc.DonorOffset) }

// Label identifies the edge in diagnostics
func (zgc *ZoneConnectivity) Label() string {
	return fmt.Sprintf("connection %q (owner zone %d, donor %s/%d)",
		zgc.Name, zgc.OwnerZone, zgc.DonorName, zgc.DonorZone)
}

func (zgc *ZoneConnectivity) String() string {
	var flags []string
	if zgc.Active {
		flags = append(flags, "active")
	}
	if zgc.SameRange {
		flags = append(flags, "same-range")
	}
	if zgc.FromDecomp {
		flags = append(flags, "decomp")
	}
	if zgc.Retained {
		flags = append(flags, "retained")
	}
	return fmt.Sprintf("%s: zone %d -> %s(%d) transform %v owner %v..%v donor %v..%v procs %d->%d nodes %d [%s]",
		zgc.Name, zgc.OwnerZone, zgc.DonorName, zgc.DonorZone, zgc.Transform,
		zgc.OwnerRangeBeg, zgc.OwnerRangeEnd, zgc.DonorRangeBeg, zgc.DonorRangeEnd,
		zgc.OwnerProcessor, zgc.DonorProcessor, zgc.SharedNodeCount(), strings.Join(flags, ","))
}

// clipRange intersects the range beg..end (either direction) with the node
// box lo..hi. Axes that span cells must still span cells afterwards, so a
// face never degrades into a line or point contact.
func clipRange(beg, end, lo, hi IJK) (nb, ne IJK, ok bool) {
	for i := 0; i < 3; i++ {
		mn, mx := beg[i], end[i]
		if mn > mx {
			mn, mx = mx, mn
		}
		cl, ch := max(mn, lo[i]), min(mx, hi[i])
		if cl > ch || (mx > mn && cl == ch) {
			return nb, ne, false
		}
		if beg[i] <= end[i] {
			nb[i], ne[i] = cl, ch
		} else {
			nb[i], ne[i] = ch, cl
		}
	}
	return nb, ne, true
}

// clipOwner restricts the edge to the owner nodes inside lo..hi and derives
// the matching donor range through the transform
func (zgc ZoneConnectivity) clipOwner(lo, hi IJK) (ZoneConnectivity, bool) {
	beg, end, ok := clipRange(zgc.OwnerRangeBeg, zgc.OwnerRangeEnd, lo, hi)
	if !ok {
		return zgc, false
	}
	out := zgc
	out.DonorRangeBeg = zgc.TransformIndex(beg)
	out.DonorRangeEnd = zgc.TransformIndex(end)
	out.OwnerRangeBeg, out.OwnerRangeEnd = beg, end
	return out, true
}

// clipDonor restricts the edge to the donor nodes inside lo..hi and derives
// the matching owner range through the inverse transform
func (zgc ZoneConnectivity) clipDonor(lo, hi IJK) (ZoneConnectivity, bool) {
	beg, end, ok := clipRange(zgc.DonorRangeBeg, zgc.DonorRangeEnd, lo, hi)
	if !ok {
		return zgc, false
	}
	out := zgc
	out.OwnerRangeBeg = zgc.InverseTransformIndex(beg)
	out.OwnerRangeEnd = zgc.InverseTransformIndex(end)
	out.DonorRangeBeg, out.DonorRangeEnd = beg, end
	return out, true
}

// retainedCopy is the inactive zero-range stand-in for an edge that no
// longer touches its owner
func (zgc ZoneConnectivity) retainedCopy() ZoneConnectivity {
	out := zgc
	out.OwnerRangeBeg, out.OwnerRangeEnd = IJK{}, IJK{}
	out.DonorRangeBeg, out.DonorRangeEnd = IJK{}, IJK{}
	out.Active = false
	out.Retained = true
	return out
}
