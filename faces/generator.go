package faces

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/notargets/meshdecomp/element"
)

// Block is one element block: elements of a single geometry with a fixed
// stride connectivity array
type Block struct {
	Name     string
	Geometry element.ElementGeometry

	NumElements  int
	Connectivity []int   // NumElements*NVp local node numbers, 1-based
	NodeMap      []int64 // local node (0-based) -> global node id; nil means identity

	// Element ids in this block are ElementOffset + i + 1
	ElementOffset int64
}

// ElementID returns the id of the i-th (0-based) element of the block
func (b *Block) ElementID(i int) int64 { return b.ElementOffset + int64(i) + 1 }

// BlockFaces is the face classification of one block (or of a whole model)
type BlockFaces struct {
	Name     string
	Set      *FaceSet
	Boundary []FaceOwner // sorted by element, then ordinal
	Interior int         // number of faces with two owners
}

// SideSet is a boundary face list in sideset form, with 1-based side numbers
type SideSet struct {
	Name     string
	Elements []int64
	Sides    []int
}

// SideSet exports the boundary faces as a sideset
func (bf *BlockFaces) SideSet(name string) SideSet {
	ss := SideSet{
		Name:     name,
		Elements: make([]int64, len(bf.Boundary)),
		Sides:    make([]int, len(bf.Boundary)),
	}
	for i, o := range bf.Boundary {
		ss.Elements[i] = o.Element
		ss.Sides[i] = o.Ordinal + 1
	}
	return ss
}

// Generator builds face sets from element blocks
type Generator struct {
	logger  *zap.Logger
	workers int
}

type Option func(*Generator)

func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithWorkers bounds how many blocks are processed at once
func WithWorkers(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.workers = n
		}
	}
}

func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		logger:  zap.NewNop(),
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GenerateBlock builds the face set of a single block. On a non-manifold
// face no partial result is returned.
func (g *Generator) GenerateBlock(b *Block) (*BlockFaces, error) {
	topo, err := element.GetTopology(b.Geometry)
	if err != nil {
		return nil, fmt.Errorf("block %s: %w: %v", b.Name, ErrInvalidBlock, err)
	}
	set := NewFaceSet(b.NumElements * topo.NFaces() / 2)
	if err = g.addBlock(set, b, topo); err != nil {
		return nil, err
	}
	return g.classify(b.Name, set), nil
}

// Generate processes blocks concurrently, one face set per block. Any block
// error aborts the whole run.
func (g *Generator) Generate(ctx context.Context, blocks []*Block) ([]*BlockFaces, error) {
	results := make([]*BlockFaces, len(blocks))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for i, b := range blocks {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			bf, err := g.GenerateBlock(b)
			if err != nil {
				return err
			}
			results[i] = bf
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// GenerateModel uses one face set across all blocks, so faces shared between
// blocks are interior and the boundary list is the skin of the whole mesh.
// Element ids must be unique across blocks.
func (g *Generator) GenerateModel(name string, blocks []*Block) (*BlockFaces, error) {
	size := 0
	for _, b := range blocks {
		size += b.NumElements * 3
	}
	set := NewFaceSet(size)
	for _, b := range blocks {
		topo, err := element.GetTopology(b.Geometry)
		if err != nil {
			return nil, fmt.Errorf("block %s: %w: %v", b.Name, ErrInvalidBlock, err)
		}
		if err = g.addBlock(set, b, topo); err != nil {
			return nil, err
		}
	}
	return g.classify(name, set), nil
}

func (g *Generator) addBlock(set *FaceSet, b *Block, topo *element.Topology) error {
	hashes, err := nodeHashes(b, topo.NVp)
	if err != nil {
		return err
	}

	var (
		nodes  = make([]int64, 0, element.MaxFaceNodes)
		hashed = make([]uint64, 0, element.MaxFaceNodes)
	)
	for e := 0; e < b.NumElements; e++ {
		conn := b.Connectivity[e*topo.NVp : (e+1)*topo.NVp]
		for f, local := range topo.FaceNodes {
			nodes, hashed = nodes[:0], hashed[:0]
			for _, v := range local {
				ln := conn[v] - 1
				nodes = append(nodes, globalID(b, ln))
				hashed = append(hashed, hashes[ln])
			}
			owner := FaceOwner{Element: b.ElementID(e), Ordinal: f}
			if err = set.Add(NewFaceKey(nodes, hashed), owner); err != nil {
				var nm *NonManifoldError
				if errors.As(err, &nm) {
					nm.Block = b.Name
				}
				return err
			}
		}
	}
	g.logger.Debug("faces generated",
		zap.String("block", b.Name),
		zap.Int("elements", b.NumElements),
		zap.Int("faces", set.Len()))
	return nil
}

func (g *Generator) classify(name string, set *FaceSet) *BlockFaces {
	bf := &BlockFaces{Name: name, Set: set}
	for _, f := range set.Faces() {
		switch f.Type() {
		case BoundaryFace:
			bf.Boundary = append(bf.Boundary, f.Owners[0])
		case InteriorFace:
			bf.Interior++
		}
	}
	sort.Slice(bf.Boundary, func(i, j int) bool {
		if bf.Boundary[i].Element != bf.Boundary[j].Element {
			return bf.Boundary[i].Element < bf.Boundary[j].Element
		}
		return bf.Boundary[i].Ordinal < bf.Boundary[j].Ordinal
	})
	return bf
}

// nodeHashes validates the block and computes IDHash once per local node
func nodeHashes(b *Block, nvp int) ([]uint64, error) {
	if b.NumElements < 0 || len(b.Connectivity) != b.NumElements*nvp {
		return nil, fmt.Errorf("block %s: %w: connectivity length %d does not match %d elements of %d nodes",
			b.Name, ErrInvalidBlock, len(b.Connectivity), b.NumElements, nvp)
	}
	numNodes := len(b.NodeMap)
	if b.NodeMap == nil {
		for _, n := range b.Connectivity {
			if n > numNodes {
				numNodes = n
			}
		}
	}
	for i, n := range b.Connectivity {
		if n < 1 || n > numNodes {
			return nil, fmt.Errorf("block %s: %w: element %d references local node %d outside [1,%d]",
				b.Name, ErrInvalidBlock, b.ElementID(i/nvp), n, numNodes)
		}
	}

	hashes := make([]uint64, numNodes)
	for ln := range hashes {
		id := globalID(b, ln)
		if id <= 0 {
			return nil, fmt.Errorf("block %s: %w: local node %d maps to non-positive global id %d",
				b.Name, ErrInvalidBlock, ln+1, id)
		}
		hashes[ln] = IDHash(uint64(id))
	}
	return hashes, nil
}

func globalID(b *Block, local int) int64 {
	if b.NodeMap == nil {
		return int64(local + 1)
	}
	return b.NodeMap[local]
}
