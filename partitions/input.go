package partitions

import (
	"fmt"
	"math"
	"sort"

	"github.com/notargets/meshdecomp/structured"
)

// ZoneSpec describes one structured block by its cell counts
type ZoneSpec struct {
	Name       string
	NI, NJ, NK int
}

// ConnectionSpec is a declared interface between two zones, in the owner
// zone's node index space. Ranges are 1-based and inclusive.
type ConnectionSpec struct {
	Name      string
	Owner     string
	Donor     string
	Transform structured.IJK

	OwnerRangeBeg, OwnerRangeEnd structured.IJK
	DonorRangeBeg, DonorRangeEnd structured.IJK
}

// Input is everything one decomposition run needs
type Input struct {
	Zones        []ZoneSpec
	Connectivity []ConnectionSpec

	Processors  int
	LoadBalance float64 // Allowed fractional overshoot of the average work

	// Axes that may not be split, for every zone and per zone name
	LineDecomposition     string
	ZoneLineDecomposition map[string]string
}

// buildArena validates the input and loads it into a fresh arena. Zones
// with a zero extent are added as degenerate and their connections dropped.
func (pb *PartitionBuilder) buildArena(in *Input) (*structured.Arena, error) {
	if in.Processors <= 0 {
		return nil, fmt.Errorf("%w: processor count %d", structured.ErrConfiguration, in.Processors)
	}
	if in.LoadBalance < 0 || math.IsNaN(in.LoadBalance) || math.IsInf(in.LoadBalance, 0) {
		return nil, fmt.Errorf("%w: load balance threshold %g", structured.ErrConfiguration, in.LoadBalance)
	}
	if len(in.Zones) == 0 {
		return nil, fmt.Errorf("%w: no zones", structured.ErrConfiguration)
	}

	global, err := structured.ParseOrdinals(in.LineDecomposition)
	if err != nil {
		return nil, err
	}

	arena := structured.NewArena(pb.logger)
	byName := make(map[string]*structured.Zone, len(in.Zones))
	for _, zs := range in.Zones {
		if zs.Name == "" {
			return nil, fmt.Errorf("%w: zone without a name", structured.ErrConfiguration)
		}
		if _, dup := byName[zs.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate zone %q", structured.ErrConfiguration, zs.Name)
		}
		if zs.NI < 0 || zs.NJ < 0 || zs.NK < 0 {
			return nil, fmt.Errorf("%w: zone %q has negative extents (%d,%d,%d)",
				structured.ErrConfiguration, zs.Name, zs.NI, zs.NJ, zs.NK)
		}
		z := arena.AddAdam(zs.Name, zs.NI, zs.NJ, zs.NK)
		z.LineOrdinal = global
		if z.Degenerate {
			pb.logger.Warn("zone has a zero extent and will not be assigned",
				zapZone(z)...)
		}
		byName[zs.Name] = z
	}

	// sorted for deterministic error reporting
	names := make([]string, 0, len(in.ZoneLineDecomposition))
	for name := range in.ZoneLineDecomposition {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		z, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: line decomposition names unknown zone %q", structured.ErrConfiguration, name)
		}
		ord, err := structured.ParseOrdinals(in.ZoneLineDecomposition[name])
		if err != nil {
			return nil, fmt.Errorf("zone %q: %w", name, err)
		}
		z.LineOrdinal |= ord
	}
	for _, z := range arena.Zones() {
		if z.LineOrdinal == structured.OrdinalI|structured.OrdinalJ|structured.OrdinalK {
			return nil, fmt.Errorf("%w: line decomposition forbids every axis of zone %q",
				structured.ErrConfiguration, z.Name)
		}
	}

	for _, cs := range in.Connectivity {
		owner, ok := byName[cs.Owner]
		if !ok {
			return nil, fmt.Errorf("%w: connection %q names unknown owner zone %q",
				structured.ErrInconsistentConnectivity, cs.Name, cs.Owner)
		}
		donor, ok := byName[cs.Donor]
		if !ok {
			return nil, fmt.Errorf("%w: connection %q names unknown donor zone %q",
				structured.ErrInconsistentConnectivity, cs.Name, cs.Donor)
		}
		if owner.Degenerate || donor.Degenerate {
			pb.logger.Debug("dropping connection to degenerate zone", zapConnection(cs)...)
			continue
		}
		zgc := structured.ZoneConnectivity{
			Name:           cs.Name,
			OwnerZone:      owner.ID,
			DonorZone:      donor.ID,
			DonorName:      donor.Name,
			Transform:      cs.Transform,
			OwnerRangeBeg:  cs.OwnerRangeBeg,
			OwnerRangeEnd:  cs.OwnerRangeEnd,
			DonorRangeBeg:  cs.DonorRangeBeg,
			DonorRangeEnd:  cs.DonorRangeEnd,
			Active:         true,
			OwnerProcessor: -1,
			DonorProcessor: -1,
		}
		if err := zgc.Validate(); err != nil {
			return nil, err
		}
		if !insideZone(owner, zgc.OwnerRangeBeg, zgc.OwnerRangeEnd) {
			return nil, fmt.Errorf("%w: connection %q owner range %v..%v outside zone %q",
				structured.ErrInconsistentConnectivity, cs.Name, zgc.OwnerRangeBeg, zgc.OwnerRangeEnd, owner.Name)
		}
		if !insideZone(donor, zgc.DonorRangeBeg, zgc.DonorRangeEnd) {
			return nil, fmt.Errorf("%w: connection %q donor range %v..%v outside zone %q",
				structured.ErrInconsistentConnectivity, cs.Name, zgc.DonorRangeBeg, zgc.DonorRangeEnd, donor.Name)
		}
		owner.Connectivity = append(owner.Connectivity, zgc)
	}
	return arena, nil
}

func insideZone(z *structured.Zone, beg, end structured.IJK) bool {
	lo, hi := z.NodeRange()
	for i := 0; i < 3; i++ {
		a, b := min(beg[i], end[i]), max(beg[i], end[i])
		if a < lo[i] || b > hi[i] {
			return false
		}
	}
	return true
}
