package structured

import "go.uber.org/zap"

// minSharedNodes is the smallest shared node count an edge keeps after
// repair; anything at or below it is a point or line contact
const minSharedNodes = 2

// ResolveSplitDonors rewrites every leaf edge whose donor zone has been
// split so that it points at the donor's children instead, clipping the
// donor range to each child and re-deriving the owner range. Each leaf's
// edges are processed as a worklist until no edge names a split donor; the
// worklist is finite because every rewrite moves the donor one level down a
// finite tree. Edges left with minSharedNodes or fewer shared nodes are
// dropped unless retained. Returns the number of edges rewritten; a second
// call after convergence returns 0 and changes nothing.
func (a *Arena) ResolveSplitDonors() int {
	rewritten := 0
	for _, z := range a.zones {
		if !z.IsActive() {
			continue
		}
		work := append([]ZoneConnectivity(nil), z.Connectivity...)
		kept := make([]ZoneConnectivity, 0, len(work))
		for len(work) > 0 {
			zgc := work[0]
			work = work[1:]
			donor := a.zones[zgc.DonorZone]
			if !donor.IsSplit() {
				kept = append(kept, zgc)
				continue
			}
			rewritten++
			work = append(work, a.splitDonor(zgc, donor)...)
		}

		filtered := kept[:0]
		for _, zgc := range kept {
			if zgc.Retained || zgc.SharedNodeCount() > minSharedNodes {
				filtered = append(filtered, zgc)
			}
		}
		z.Connectivity = filtered
	}
	if rewritten > 0 {
		a.logger.Debug("resolved split donors", zap.Int("rewritten", rewritten))
	}
	return rewritten
}

// splitDonor replaces an edge into a split donor by 0, 1 or 2 edges into
// the donor's children
func (a *Arena) splitDonor(zgc ZoneConnectivity, donor *Zone) []ZoneConnectivity {
	c1, c2 := a.zones[donor.Child1], a.zones[donor.Child2]
	if !zgc.Active {
		return []ZoneConnectivity{zgc.redonate(c1)}
	}
	var out []ZoneConnectivity
	for _, child := range []*Zone{c1, c2} {
		lo, hi := child.NodeRange()
		if clipped, ok := zgc.clipDonor(lo, hi); ok {
			out = append(out, clipped.redonate(child))
		}
	}
	return out
}
