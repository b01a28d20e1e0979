package element

import "fmt"

type Dimensionality uint8

const (
	D1 Dimensionality = iota
	D2
	D3
)

type ElementGeometry uint8

const (
	Tet ElementGeometry = iota
	Hex
	Prism
	Pyramid
	Tri
	Rectangle
	Line
)

// MaxFaceNodes is the number of corner nodes of the largest face (a quad)
const MaxFaceNodes = 4

// Topology describes the corner-node layout of one element geometry and the
// corner nodes that form each of its faces
type Topology struct {
	Geometry   ElementGeometry
	Name       string
	Dimensions Dimensionality
	NVp        int // Corner (vertex) nodes per element

	// FaceNodes[f] lists the 0-based element-local corner nodes of face f,
	// ordered counter-clockwise when viewed from outside the element
	FaceNodes [][]int
}

// NFaces returns the number of faces per element
func (t *Topology) NFaces() int { return len(t.FaceNodes) }

// Exodus-style side numbering for the volume elements. Side s (1-based in
// sideset output) is FaceNodes[s-1] here.
var topologies = map[ElementGeometry]*Topology{
	Tet: {
		Geometry: Tet, Name: "tetra4", Dimensions: D3, NVp: 4,
		FaceNodes: [][]int{
			{0, 1, 3},
			{1, 2, 3},
			{0, 3, 2},
			{0, 2, 1},
		},
	},
	Hex: {
		Geometry: Hex, Name: "hex8", Dimensions: D3, NVp: 8,
		FaceNodes: [][]int{
			{0, 1, 5, 4},
			{1, 2, 6, 5},
			{2, 3, 7, 6},
			{0, 4, 7, 3},
			{0, 3, 2, 1},
			{4, 5, 6, 7},
		},
	},
	Prism: {
		Geometry: Prism, Name: "wedge6", Dimensions: D3, NVp: 6,
		FaceNodes: [][]int{
			{0, 1, 4, 3},
			{1, 2, 5, 4},
			{0, 3, 5, 2},
			{0, 2, 1},
			{3, 4, 5},
		},
	},
	Pyramid: {
		Geometry: Pyramid, Name: "pyramid5", Dimensions: D3, NVp: 5,
		FaceNodes: [][]int{
			{0, 1, 4},
			{1, 2, 4},
			{2, 3, 4},
			{3, 0, 4},
			{0, 3, 2, 1},
		},
	},
	// Shell-like surface elements have a single face, the element itself
	Tri: {
		Geometry: Tri, Name: "tri3", Dimensions: D2, NVp: 3,
		FaceNodes: [][]int{{0, 1, 2}},
	},
	Rectangle: {
		Geometry: Rectangle, Name: "quad4", Dimensions: D2, NVp: 4,
		FaceNodes: [][]int{{0, 1, 2, 3}},
	},
}

// GetTopology returns the face layout for a geometry
func GetTopology(g ElementGeometry) (*Topology, error) {
	t, ok := topologies[g]
	if !ok {
		return nil, fmt.Errorf("no face topology for element geometry %s", g)
	}
	return t, nil
}

// GeometryFromVertexCount infers a volume element geometry from its number
// of corner nodes
func GeometryFromVertexCount(nv int) (ElementGeometry, error) {
	switch nv {
	case 4:
		return Tet, nil
	case 5:
		return Pyramid, nil
	case 6:
		return Prism, nil
	case 8:
		return Hex, nil
	}
	return 0, fmt.Errorf("no volume element has %d vertices", nv)
}

func (g ElementGeometry) String() string {
	switch g {
	case Tet:
		return "Tet"
	case Hex:
		return "Hex"
	case Prism:
		return "Prism"
	case Pyramid:
		return "Pyramid"
	case Tri:
		return "Tri"
	case Rectangle:
		return "Rectangle"
	case Line:
		return "Line"
	}
	return fmt.Sprintf("ElementGeometry(%d)", uint8(g))
}
