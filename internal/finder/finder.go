// Package finder implements the spatial indices used for SPH neighbour
// queries and collision detection. All variants return the same neighbour
// sets; they differ only in build and query cost.
package finder

import (
	"fmt"

	"github.com/regolith-sim/regolith/internal/geometry"
	"github.com/regolith-sim/regolith/internal/settings"
)

// Neighbour is one query result: a point index and its squared distance
// from the query position.
type Neighbour struct {
	Index  int
	DistSq float64
}

// Finder answers fixed-radius neighbour queries over an indexed point set.
// Results contain every point within the radius, in unspecified order, and
// include the query point itself when it is indexed.
type Finder interface {
	// Build constructs the index over the given positions. The slice is
	// retained; callers must Build again after mutating it.
	Build(points []geometry.Vec)

	// Find appends all neighbours of p within radius to out and returns
	// the extended slice.
	Find(p geometry.Vec, radius float64, out []Neighbour) []Neighbour
}

// Rebuilder is an optional fast-refresh capability for indices that can
// cheaply absorb small point movements.
type Rebuilder interface {
	Rebuild(points []geometry.Vec)
}

// Rebuild refreshes f over points, using the fast path when available.
func Rebuild(f Finder, points []geometry.Vec) {
	if r, ok := f.(Rebuilder); ok {
		r.Rebuild(points)
		return
	}
	f.Build(points)
}

// FromSettings constructs the finder selected by the run settings.
func FromSettings(run *settings.Settings[settings.RunID]) (Finder, error) {
	kind, err := settings.GetEnum[settings.Finder](run, settings.SphFinder)
	if err != nil {
		return nil, err
	}
	switch kind {
	case settings.FinderBruteForce:
		return &BruteForce{}, nil
	case settings.FinderUniformGrid:
		return &UniformGrid{}, nil
	case settings.FinderHashGrid:
		return &HashGrid{}, nil
	case settings.FinderKdTree:
		return &KdTree{LeafSize: 25}, nil
	case settings.FinderLinkedList:
		return &LinkedList{}, nil
	case settings.FinderOctree:
		return &Octree{LeafSize: 16}, nil
	default:
		return nil, fmt.Errorf("finder: unknown finder %d", int(kind))
	}
}
