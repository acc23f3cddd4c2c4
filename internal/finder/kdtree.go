package finder

import (
	"sort"

	"github.com/regolith-sim/regolith/internal/geometry"
)

// KdTree recursively splits the point set along its widest axis. Queries
// descend only the subtrees whose bounding boxes intersect the search
// sphere.
type KdTree struct {
	// LeafSize bounds the number of points kept in one leaf.
	LeafSize int

	points []geometry.Vec
	perm   []int32
	nodes  []kdNode
}

type kdNode struct {
	lower, upper geometry.Vec
	left, right  int32 // -1 for leaves
	from, to     int32 // permutation range of a leaf
}

func (t *KdTree) Build(points []geometry.Vec) {
	if t.LeafSize <= 0 {
		t.LeafSize = 25
	}
	t.points = points
	t.perm = make([]int32, len(points))
	for i := range t.perm {
		t.perm[i] = int32(i)
	}
	t.nodes = t.nodes[:0]
	if len(points) > 0 {
		t.build(0, len(points))
	}
}

func (t *KdTree) build(from, to int) int32 {
	id := int32(len(t.nodes))
	t.nodes = append(t.nodes, kdNode{left: -1, right: -1, from: int32(from), to: int32(to)})

	lower := t.points[t.perm[from]]
	upper := lower
	for _, i := range t.perm[from+1 : to] {
		p := t.points[i]
		for c := 0; c < 3; c++ {
			if p[c] < lower[c] {
				lower[c] = p[c]
			}
			if p[c] > upper[c] {
				upper[c] = p[c]
			}
		}
	}
	t.nodes[id].lower = lower
	t.nodes[id].upper = upper

	if to-from <= t.LeafSize {
		return id
	}

	axis := 0
	for c := 1; c < 3; c++ {
		if upper[c]-lower[c] > upper[axis]-lower[axis] {
			axis = c
		}
	}
	seg := t.perm[from:to]
	sort.Slice(seg, func(a, b int) bool {
		return t.points[seg[a]][axis] < t.points[seg[b]][axis]
	})
	mid := from + (to-from)/2

	left := t.build(from, mid)
	right := t.build(mid, to)
	t.nodes[id].left = left
	t.nodes[id].right = right
	return id
}

func (t *KdTree) Find(p geometry.Vec, radius float64, out []Neighbour) []Neighbour {
	if len(t.nodes) == 0 {
		return out
	}
	return t.find(0, p, radius*radius, out)
}

func (t *KdTree) find(id int32, p geometry.Vec, r2 float64, out []Neighbour) []Neighbour {
	n := &t.nodes[id]
	if boxDistSq(n.lower, n.upper, p) > r2 {
		return out
	}
	if n.left < 0 {
		for _, i := range t.perm[n.from:n.to] {
			d2 := p.Sub(t.points[i]).LenSq()
			if d2 <= r2 {
				out = append(out, Neighbour{Index: int(i), DistSq: d2})
			}
		}
		return out
	}
	out = t.find(n.left, p, r2, out)
	out = t.find(n.right, p, r2, out)
	return out
}

// boxDistSq is the squared distance from p to the axis-aligned box.
func boxDistSq(lower, upper, p geometry.Vec) float64 {
	d2 := 0.0
	for c := 0; c < 3; c++ {
		if p[c] < lower[c] {
			d := lower[c] - p[c]
			d2 += d * d
		} else if p[c] > upper[c] {
			d := p[c] - upper[c]
			d2 += d * d
		}
	}
	return d2
}
