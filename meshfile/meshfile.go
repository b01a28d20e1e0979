// Package meshfile loads unstructured meshes from disk and groups their
// elements into single-topology blocks for face generation.
package meshfile

import (
	"fmt"
	"sort"

	"github.com/notargets/gocfd/DG3D/mesh"
	"github.com/notargets/gocfd/DG3D/mesh/readers"

	"github.com/notargets/meshdecomp/element"
	"github.com/notargets/meshdecomp/faces"
)

// Model is a mesh split into element blocks. Block elements are numbered
// consecutively across blocks; ElementIndex maps them back to the file.
type Model struct {
	Path     string
	NumNodes int
	Blocks   []*faces.Block

	// ElementIndex[b][i] is the file's 0-based index of element i of block b
	ElementIndex [][]int
}

// Read parses any mesh format the gocfd readers understand
func Read(path string) (*Model, error) {
	msh, err := readers.ReadMeshFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mesh %s: %w", path, err)
	}
	m, err := FromMesh(msh)
	if err != nil {
		return nil, fmt.Errorf("mesh %s: %w", path, err)
	}
	m.Path = path
	return m, nil
}

// FromMesh groups the elements of a mesh by geometry. Node numbers in the
// blocks are the mesh's vertex indices plus one.
func FromMesh(msh *mesh.Mesh) (*Model, error) {
	byGeom := make(map[element.ElementGeometry][]int)
	for e := 0; e < len(msh.EtoV); e++ {
		g, err := element.GeometryFromVertexCount(len(msh.EtoV[e]))
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", e, err)
		}
		byGeom[g] = append(byGeom[g], e)
	}

	geoms := make([]element.ElementGeometry, 0, len(byGeom))
	for g := range byGeom {
		geoms = append(geoms, g)
	}
	sort.Slice(geoms, func(i, j int) bool { return geoms[i] < geoms[j] })

	m := &Model{NumNodes: len(msh.Vertices)}
	var offset int64
	for _, g := range geoms {
		elems := byGeom[g]
		topo, err := element.GetTopology(g)
		if err != nil {
			return nil, err
		}
		b := &faces.Block{
			Name:          topo.Name,
			Geometry:      g,
			NumElements:   len(elems),
			Connectivity:  make([]int, 0, len(elems)*topo.NVp),
			ElementOffset: offset,
		}
		for _, e := range elems {
			for _, v := range msh.EtoV[e] {
				b.Connectivity = append(b.Connectivity, v+1)
			}
		}
		m.Blocks = append(m.Blocks, b)
		m.ElementIndex = append(m.ElementIndex, elems)
		offset += int64(len(elems))
	}
	return m, nil
}

// NumElements is the total element count over all blocks
func (m *Model) NumElements() int {
	n := 0
	for _, b := range m.Blocks {
		n += b.NumElements
	}
	return n
}
