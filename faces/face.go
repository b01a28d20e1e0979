// Package faces deduplicates element faces by an order-independent node hash
// and classifies every face as interior (two owners) or boundary (one owner).
// Boundary faces are the raw material of skins and sidesets.
package faces

import (
	"fmt"
	"sort"
	"sync"

	"github.com/notargets/meshdecomp/element"
)

// FaceType identifies how a face is connected
type FaceType uint8

const (
	Unowned FaceType = iota
	BoundaryFace
	InteriorFace
)

func (ft FaceType) String() string {
	switch ft {
	case BoundaryFace:
		return "boundary"
	case InteriorFace:
		return "interior"
	}
	return "unowned"
}

// IDHash is a fixed 64-bit integer mixer (Thomas Wang's hash64shift) applied
// to a global node id before the per-face combination
func IDHash(id uint64) uint64 {
	key := id
	key = (^key) + (key << 21)
	key = key ^ (key >> 24)
	key = (key + (key << 3)) + (key << 8)
	key = key ^ (key >> 14)
	key = (key + (key << 2)) + (key << 4)
	key = key ^ (key >> 28)
	key = key + (key << 31)
	return key
}

// FaceKey is the immutable identity of a face: its node ids sorted ascending
// (zero-padded for faces with fewer than four nodes) and the combined hash.
// Two keys compare equal with == exactly when they hold the same node set.
type FaceKey struct {
	Hash  uint64
	Nodes [element.MaxFaceNodes]int64
}

// NewFaceKey builds a key from global node ids given in any order. hashes
// holds IDHash of each node, aligned with nodes.
func NewFaceKey(nodes []int64, hashes []uint64) FaceKey {
	var k FaceKey
	copy(k.Nodes[:], nodes)
	sorted := k.Nodes[:]
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	// Wrapping sum is commutative, so the hash does not depend on node order
	for _, h := range hashes {
		k.Hash += h
	}
	return k
}

// NodeCount returns the number of non-padding nodes in the face
func (k FaceKey) NodeCount() int {
	n := 0
	for _, id := range k.Nodes {
		if id != 0 {
			n++
		}
	}
	return n
}

// Contains reports whether every node of k appears in other
func (k FaceKey) Contains(other FaceKey) bool {
	for _, id := range k.Nodes {
		if id == 0 {
			continue
		}
		found := false
		for _, o := range other.Nodes {
			if o == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Equal is the set equality of two faces: equal hashes and mutual containment
func (k FaceKey) Equal(other FaceKey) bool {
	return k.Hash == other.Hash && k.Contains(other) && other.Contains(k)
}

// FaceOwner is one (element, local face) claim on a face. Ordinal is 0-based.
type FaceOwner struct {
	Element int64
	Ordinal int
}

// Encode packs the owner as element*10 + ordinal
func (o FaceOwner) Encode() int64 { return o.Element*10 + int64(o.Ordinal) }

// DecodeFaceOwner is the inverse of Encode
func DecodeFaceOwner(v int64) FaceOwner {
	return FaceOwner{Element: v / 10, Ordinal: int(v % 10)}
}

func (o FaceOwner) String() string {
	return fmt.Sprintf("element %d face %d", o.Element, o.Ordinal)
}

// Face is the mutable owner record stored against a FaceKey
type Face struct {
	Key    FaceKey
	Owners [2]FaceOwner
	Count  int
}

// Type classifies the face by its owner count
func (f *Face) Type() FaceType {
	switch f.Count {
	case 1:
		return BoundaryFace
	case 2:
		return InteriorFace
	}
	return Unowned
}

// addElement records another owner. A third distinct owner is a
// non-manifold error; re-adding an existing owner is a no-op.
func (f *Face) addElement(owner FaceOwner) error {
	for i := 0; i < f.Count; i++ {
		if f.Owners[i] == owner {
			return nil
		}
	}
	if f.Count == 2 {
		return &NonManifoldError{Key: f.Key, Owners: [3]FaceOwner{f.Owners[0], f.Owners[1], owner}}
	}
	f.Owners[f.Count] = owner
	f.Count++
	return nil
}

// FaceSet maps face keys to their owner records. It is safe for concurrent
// use: two elements racing on the same key never lose an owner.
type FaceSet struct {
	mu    sync.Mutex
	faces map[FaceKey]*Face
}

func NewFaceSet(sizeHint int) *FaceSet {
	return &FaceSet{faces: make(map[FaceKey]*Face, sizeHint)}
}

// Add inserts a new face owned by owner, or adds owner to the existing face
func (fs *FaceSet) Add(key FaceKey, owner FaceOwner) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if f, ok := fs.faces[key]; ok {
		return f.addElement(owner)
	}
	fs.faces[key] = &Face{Key: key, Owners: [2]FaceOwner{owner}, Count: 1}
	return nil
}

// Lookup returns the face stored for key
func (fs *FaceSet) Lookup(key FaceKey) (*Face, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f, ok := fs.faces[key]
	return f, ok
}

func (fs *FaceSet) Len() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.faces)
}

// Faces returns every face, ordered by key for deterministic iteration
func (fs *FaceSet) Faces() []*Face {
	fs.mu.Lock()
	out := make([]*Face, 0, len(fs.faces))
	for _, f := range fs.faces {
		out = append(out, f)
	}
	fs.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key.Nodes, out[j].Key.Nodes
		for n := range a {
			if a[n] != b[n] {
				return a[n] < b[n]
			}
		}
		return false
	})
	return out
}

// Clear destroys all faces
func (fs *FaceSet) Clear() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.faces = make(map[FaceKey]*Face)
}
