package utils

import (
	"fmt"

	"github.com/notargets/meshdecomp/structured"
)

// ZoneConnector manages pick and place indices for exchanging node values
// across the connectivity of a decomposed structured mesh. Every partition
// stores the nodes of its zones contiguously, zone by zone in id order and
// i fastest within a zone. Each partition owns a P buffer holding, for every
// node of every edge it owns, the donor's value of that node.
type ZoneConnector struct {
	NumPartitions int

	// Partition mappings
	ZonesPerPartition [][]int     // [partition] → zone ids
	NodeBase          map[int]int // zone id → first local node in its partition
	NodesPerPartition []int       // Local nodes per partition
	PBufferSize       []int       // Received values per partition

	// Pick/Place indices per partition
	PickIndices  [][]PickBuffer  // [sourcePartition][targetPartition]
	PlaceIndices [][]PlaceBuffer // [targetPartition][sourcePartition]

	arena *structured.Arena
}

// PickBuffer contains indices for gathering values to send
type PickBuffer struct {
	Indices         []int // Local node indices in the source partition
	TargetPartition int
}

// PlaceBuffer contains indices for scattering received values
type PlaceBuffer struct {
	Indices         []int // P buffer positions
	SourcePartition int
}

// NewZoneConnector builds the exchange indices for every active edge of the
// arena's leaves. Leaves must already be assigned to processors.
func NewZoneConnector(arena *structured.Arena, numPartitions int) (*ZoneConnector, error) {
	if numPartitions <= 0 {
		return nil, fmt.Errorf("invalid partition count %d", numPartitions)
	}
	zc := &ZoneConnector{
		NumPartitions: numPartitions,
		arena:         arena,
	}
	if err := zc.buildPartitionMappings(); err != nil {
		return nil, err
	}
	zc.initializeBuffers()
	if err := zc.BuildIndices(); err != nil {
		return nil, err
	}
	return zc, nil
}

// buildPartitionMappings numbers the nodes of every partition
func (zc *ZoneConnector) buildPartitionMappings() error {
	zc.ZonesPerPartition = make([][]int, zc.NumPartitions)
	zc.NodesPerPartition = make([]int, zc.NumPartitions)
	zc.NodeBase = make(map[int]int)

	for _, z := range zc.arena.Leaves() {
		p := z.Processor
		if p < 0 || p >= zc.NumPartitions {
			return fmt.Errorf("zone %q (%d) has processor %d outside 0..%d", z.Name, z.ID, p, zc.NumPartitions-1)
		}
		zc.ZonesPerPartition[p] = append(zc.ZonesPerPartition[p], z.ID)
		zc.NodeBase[z.ID] = zc.NodesPerPartition[p]
		zc.NodesPerPartition[p] += int(z.NodeCount())
	}
	return nil
}

// initializeBuffers creates empty pick and place buffer structures
func (zc *ZoneConnector) initializeBuffers() {
	zc.PickIndices = make([][]PickBuffer, zc.NumPartitions)
	zc.PlaceIndices = make([][]PlaceBuffer, zc.NumPartitions)
	zc.PBufferSize = make([]int, zc.NumPartitions)

	for p := 0; p < zc.NumPartitions; p++ {
		zc.PickIndices[p] = make([]PickBuffer, zc.NumPartitions)
		zc.PlaceIndices[p] = make([]PlaceBuffer, zc.NumPartitions)
		for q := 0; q < zc.NumPartitions; q++ {
			zc.PickIndices[p][q] = PickBuffer{TargetPartition: q}
			zc.PlaceIndices[p][q] = PlaceBuffer{SourcePartition: q}
		}
	}
}

// LocalNode returns the partition-local index of a node given in the zone's
// adam index space
func (zc *ZoneConnector) LocalNode(z *structured.Zone, adam structured.IJK) int {
	l := adam.Sub(z.Offset)
	ni, nj := z.Ordinal[0]+1, z.Ordinal[1]+1
	return zc.NodeBase[z.ID] + (l[0] - 1) + ni*(l[1]-1) + ni*nj*(l[2]-1)
}

// BuildIndices constructs pick and place indices for all partitions
func (zc *ZoneConnector) BuildIndices() error {
	for _, z := range zc.arena.Leaves() {
		p := z.Processor
		for _, zgc := range z.Connectivity {
			if !zgc.Active {
				continue
			}
			donor := zc.arena.Zone(zgc.DonorZone)
			if !donor.IsActive() {
				return fmt.Errorf("%s: donor %q is not a leaf", zgc.Label(), donor.Name)
			}
			q := donor.Processor

			forEachNode(zgc.OwnerRangeBeg, zgc.OwnerRangeEnd, func(owner structured.IJK) {
				source := zc.LocalNode(donor, zgc.TransformIndex(owner))

				// source partition sends this node to partition p
				zc.PickIndices[q][p].Indices = append(zc.PickIndices[q][p].Indices, source)

				// partition p places the received value at the next slot
				zc.PlaceIndices[p][q].Indices = append(zc.PlaceIndices[p][q].Indices, zc.PBufferSize[p])
				zc.PBufferSize[p]++
			})
		}
	}
	return nil
}

// forEachNode visits the nodes of an inclusive range, i fastest, walking
// each axis from beg to end
func forEachNode(beg, end structured.IJK, visit func(structured.IJK)) {
	var step structured.IJK
	for a := 0; a < 3; a++ {
		step[a] = 1
		if end[a] < beg[a] {
			step[a] = -1
		}
	}
	for k := beg[2]; ; k += step[2] {
		for j := beg[1]; ; j += step[1] {
			for i := beg[0]; ; i += step[0] {
				visit(structured.IJK{i, j, k})
				if i == end[0] {
					break
				}
			}
			if j == end[1] {
				break
			}
		}
		if k == end[2] {
			break
		}
	}
}

// GetPickIndices returns pick indices for sending from source to target partition
func (zc *ZoneConnector) GetPickIndices(sourcePartition, targetPartition int) []int {
	if sourcePartition < 0 || sourcePartition >= zc.NumPartitions ||
		targetPartition < 0 || targetPartition >= zc.NumPartitions {
		return nil
	}
	return zc.PickIndices[sourcePartition][targetPartition].Indices
}

// GetPlaceIndices returns place indices for target partition receiving from source
func (zc *ZoneConnector) GetPlaceIndices(targetPartition, sourcePartition int) []int {
	if targetPartition < 0 || targetPartition >= zc.NumPartitions ||
		sourcePartition < 0 || sourcePartition >= zc.NumPartitions {
		return nil
	}
	return zc.PlaceIndices[targetPartition][sourcePartition].Indices
}

// Exchange runs pick, exchange and place over per-partition node values and
// returns the filled P buffers
func (zc *ZoneConnector) Exchange(values [][]float64) ([][]float64, error) {
	if len(values) != zc.NumPartitions {
		return nil, fmt.Errorf("got values for %d partitions, want %d", len(values), zc.NumPartitions)
	}
	pBuffers := make([][]float64, zc.NumPartitions)
	for p := range pBuffers {
		if len(values[p]) != zc.NodesPerPartition[p] {
			return nil, fmt.Errorf("partition %d has %d values, want %d", p, len(values[p]), zc.NodesPerPartition[p])
		}
		pBuffers[p] = make([]float64, zc.PBufferSize[p])
	}
	for q := 0; q < zc.NumPartitions; q++ {
		for p := 0; p < zc.NumPartitions; p++ {
			pick := zc.PickIndices[q][p].Indices
			place := zc.PlaceIndices[p][q].Indices
			for n, idx := range pick {
				pBuffers[p][place[n]] = values[q][idx]
			}
		}
	}
	return pBuffers, nil
}

// Volume is the number of values partition source sends to target
func (zc *ZoneConnector) Volume(source, target int) int {
	return len(zc.GetPickIndices(source, target))
}

// Verify checks index validity and conservation properties
func (zc *ZoneConnector) Verify() error {
	// all pick indices are within bounds
	for p := 0; p < zc.NumPartitions; p++ {
		for q := 0; q < zc.NumPartitions; q++ {
			for _, idx := range zc.PickIndices[p][q].Indices {
				if idx < 0 || idx >= zc.NodesPerPartition[p] {
					return fmt.Errorf("invalid pick index %d for partition %d (max %d)",
						idx, p, zc.NodesPerPartition[p]-1)
				}
			}
		}
	}

	// pick and place arrays have the same length
	for p := 0; p < zc.NumPartitions; p++ {
		for q := 0; q < zc.NumPartitions; q++ {
			pickLen := len(zc.PickIndices[p][q].Indices)
			placeLen := len(zc.PlaceIndices[q][p].Indices)
			if pickLen != placeLen {
				return fmt.Errorf("length mismatch: pick[%d][%d]=%d, place[%d][%d]=%d",
					p, q, pickLen, q, p, placeLen)
			}
		}
	}

	// every P buffer slot is written exactly once
	for p := 0; p < zc.NumPartitions; p++ {
		used := make([]bool, zc.PBufferSize[p])
		for q := 0; q < zc.NumPartitions; q++ {
			for _, idx := range zc.PlaceIndices[p][q].Indices {
				if idx < 0 || idx >= len(used) || used[idx] {
					return fmt.Errorf("place index %d for partition %d is out of range or repeated", idx, p)
				}
				used[idx] = true
			}
		}
		for idx, ok := range used {
			if !ok {
				return fmt.Errorf("P buffer slot %d of partition %d is never written", idx, p)
			}
		}
	}

	// total pick operations equals total shared nodes
	totalPicks, totalShared := 0, 0
	for p := 0; p < zc.NumPartitions; p++ {
		for q := 0; q < zc.NumPartitions; q++ {
			totalPicks += len(zc.PickIndices[p][q].Indices)
		}
	}
	for _, z := range zc.arena.Leaves() {
		for _, zgc := range z.Connectivity {
			if zgc.Active {
				totalShared += zgc.SharedNodeCount()
			}
		}
	}
	if totalPicks != totalShared {
		return fmt.Errorf("conservation error: total picks %d != total shared nodes %d",
			totalPicks, totalShared)
	}
	return nil
}
