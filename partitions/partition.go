package partitions

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/stat"

	"github.com/notargets/meshdecomp/structured"
)

// Partition is the set of leaf zones assigned to one processor
type Partition struct {
	// Processor rank owning this partition
	ID int

	// Zone membership
	Zones    []int // Arena ids of the leaf zones on this processor
	NumZones int
	Work     int64 // Sum of the zones' cell counts

	// Adam zones with at least one piece on this processor
	Adams map[int]bool
}

// PartitionLayout is the processor assignment of every leaf zone
type PartitionLayout struct {
	// All partitions, indexed by processor
	Partitions []Partition

	// Global sizing information
	TotalWork     int64
	NumPartitions int

	// Zone to processor mapping, indexed by arena id; -1 for zones that are
	// split or degenerate
	ZToP []int
}

// PartitionMetrics tracks the communication implied by one partition
type PartitionMetrics struct {
	LocalCommVolume  int // Shared nodes on edges between zones of this processor
	RemoteCommVolume int // Shared nodes on edges to other processors
	NumNeighbors     int // Number of processors this one exchanges with
}

// PartitionStats summarizes the load balance
type PartitionStats struct {
	NumPartitions int
	MinWork       int64
	MaxWork       int64
	AvgWork       float64
	StdDevWork    float64
	Imbalance     float64 // MaxWork / AvgWork

	Metrics []PartitionMetrics

	// Connected groups of processors in the exchange graph
	NumComponents int
}

func newPartitionLayout(numPartitions, numZones int) *PartitionLayout {
	pl := &PartitionLayout{
		Partitions:    make([]Partition, numPartitions),
		NumPartitions: numPartitions,
		ZToP:          make([]int, numZones),
	}
	for i := range pl.Partitions {
		pl.Partitions[i] = Partition{ID: i, Adams: make(map[int]bool)}
	}
	for i := range pl.ZToP {
		pl.ZToP[i] = -1
	}
	return pl
}

func (pl *PartitionLayout) assign(z *structured.Zone, proc int) {
	p := &pl.Partitions[proc]
	p.Zones = append(p.Zones, z.ID)
	p.NumZones++
	p.Work += z.Work()
	p.Adams[z.Adam] = true
	pl.TotalWork += z.Work()
	pl.ZToP[z.ID] = proc
	z.Processor = proc
}

// GetPartition returns the processor of a zone, or -1
func (pl *PartitionLayout) GetPartition(zoneID int) int {
	if zoneID < 0 || zoneID >= len(pl.ZToP) {
		return -1
	}
	return pl.ZToP[zoneID]
}

// ValidateLayout checks that every active zone is assigned exactly once and
// that the work bookkeeping adds up
func (pl *PartitionLayout) ValidateLayout(arena *structured.Arena) error {
	seen := make(map[int]int)
	var total int64
	for _, p := range pl.Partitions {
		if p.NumZones != len(p.Zones) {
			return fmt.Errorf("partition %d: NumZones %d != %d zones", p.ID, p.NumZones, len(p.Zones))
		}
		var work int64
		for _, id := range p.Zones {
			if prev, dup := seen[id]; dup {
				return fmt.Errorf("zone %d assigned to partitions %d and %d", id, prev, p.ID)
			}
			seen[id] = p.ID
			work += arena.Zone(id).Work()
		}
		if work != p.Work {
			return fmt.Errorf("partition %d: recorded work %d != zone work %d", p.ID, p.Work, work)
		}
		total += work
	}
	if total != pl.TotalWork {
		return fmt.Errorf("computed total work %d != stored total work %d", total, pl.TotalWork)
	}
	for _, z := range arena.Leaves() {
		if _, ok := seen[z.ID]; !ok {
			return fmt.Errorf("active zone %d (%s) is not assigned", z.ID, z.Name)
		}
	}
	return nil
}

// PartitionStatistics computes load balance and exchange metrics. The edges
// must already carry owner and donor processors.
func (pl *PartitionLayout) PartitionStatistics(edges []structured.ZoneConnectivity) PartitionStats {
	work := make([]float64, pl.NumPartitions)
	for i, p := range pl.Partitions {
		work[i] = float64(p.Work)
	}
	stats := PartitionStats{
		NumPartitions: pl.NumPartitions,
		AvgWork:       stat.Mean(work, nil),
		Metrics:       make([]PartitionMetrics, pl.NumPartitions),
	}
	if pl.NumPartitions == 0 {
		return stats
	}
	stats.MinWork = int64(floats.Min(work))
	stats.MaxWork = int64(floats.Max(work))
	if pl.NumPartitions > 1 {
		stats.StdDevWork = stat.StdDev(work, nil)
	}
	if stats.AvgWork > 0 {
		stats.Imbalance = float64(stats.MaxWork) / stats.AvgWork
	} else {
		stats.Imbalance = math.NaN()
	}

	g := simple.NewUndirectedGraph()
	for p := 0; p < pl.NumPartitions; p++ {
		g.AddNode(simple.Node(p))
	}
	for _, e := range edges {
		if !e.Active || e.OwnerProcessor < 0 || e.DonorProcessor < 0 {
			continue
		}
		m := &stats.Metrics[e.OwnerProcessor]
		if e.OwnerProcessor == e.DonorProcessor {
			m.LocalCommVolume += e.SharedNodeCount()
			continue
		}
		m.RemoteCommVolume += e.SharedNodeCount()
		from, to := simple.Node(e.OwnerProcessor), simple.Node(e.DonorProcessor)
		if !g.HasEdgeBetween(from.ID(), to.ID()) {
			g.SetEdge(g.NewEdge(from, to))
		}
	}
	for p := range stats.Metrics {
		stats.Metrics[p].NumNeighbors = g.From(int64(p)).Len()
	}
	stats.NumComponents = len(topo.ConnectedComponents(g))
	return stats
}

func (ps PartitionStats) String() string {
	return fmt.Sprintf("partitions %d work min %d max %d avg %.1f stddev %.1f imbalance %.3f components %d",
		ps.NumPartitions, ps.MinWork, ps.MaxWork, ps.AvgWork, ps.StdDevWork, ps.Imbalance, ps.NumComponents)
}
