package faces

import (
	"errors"
	"fmt"
)

var (
	// ErrNonManifoldTopology is returned when a face is claimed by a third element
	ErrNonManifoldTopology = errors.New("non-manifold topology")
	// ErrInvalidBlock is returned for malformed element block input
	ErrInvalidBlock = errors.New("invalid element block")
)

// NonManifoldError names the face and the three elements that claim it
type NonManifoldError struct {
	Block  string
	Key    FaceKey
	Owners [3]FaceOwner
}

func (e *NonManifoldError) Error() string {
	where := ""
	if e.Block != "" {
		where = fmt.Sprintf(" in block %s", e.Block)
	}
	return fmt.Sprintf("%v%s: face with nodes %v is claimed by %s, %s and %s",
		ErrNonManifoldTopology, where, e.Key.Nodes, e.Owners[0], e.Owners[1], e.Owners[2])
}

func (e *NonManifoldError) Unwrap() error { return ErrNonManifoldTopology }
