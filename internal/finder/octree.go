package finder

import (
	"math"

	"github.com/regolith-sim/regolith/internal/geometry"
)

const octreeMaxDepth = 32

// Octree recursively subdivides the bounding cube of the point set into
// octants until a leaf holds at most LeafSize points. Queries skip every
// cube that misses the search sphere.
type Octree struct {
	// LeafSize bounds the number of points kept in one leaf.
	LeafSize int

	points []geometry.Vec
	perm   []int32
	nodes  []octNode
}

type octNode struct {
	center   geometry.Vec // cube center
	half     float64      // cube half-extent
	children [8]int32     // -1 when absent
	from, to int32
	leaf     bool
}

func (t *Octree) Build(points []geometry.Vec) {
	if t.LeafSize <= 0 {
		t.LeafSize = 16
	}
	t.points = points
	t.nodes = t.nodes[:0]
	n := len(points)
	t.perm = make([]int32, n)
	for i := range t.perm {
		t.perm[i] = int32(i)
	}
	if n == 0 {
		return
	}

	lower := points[0]
	upper := points[0]
	for _, p := range points[1:] {
		for c := 0; c < 3; c++ {
			lower[c] = math.Min(lower[c], p[c])
			upper[c] = math.Max(upper[c], p[c])
		}
	}
	center := lower.Add(upper).Scale(0.5)
	half := 0.0
	for c := 0; c < 3; c++ {
		half = math.Max(half, (upper[c]-lower[c])/2)
	}
	if half == 0 {
		half = 1e-10
	}
	// slack keeps boundary particles strictly inside
	t.build(center, half*(1+1e-10), 0, n, 0)
}

func (t *Octree) build(center geometry.Vec, half float64, from, to, depth int) int32 {
	id := int32(len(t.nodes))
	node := octNode{center: center, half: half, from: int32(from), to: int32(to)}
	for i := range node.children {
		node.children[i] = -1
	}
	t.nodes = append(t.nodes, node)

	// the depth cut keeps coincident points from splitting forever
	if to-from <= t.LeafSize || depth >= octreeMaxDepth {
		t.nodes[id].leaf = true
		return id
	}

	var bounds [9]int
	seg := t.perm[from:to]
	buckets := make([][]int32, 8)
	for _, i := range seg {
		o := octantOf(t.points[i], center)
		buckets[o] = append(buckets[o], i)
	}
	pos := 0
	bounds[0] = 0
	for o := 0; o < 8; o++ {
		copy(seg[pos:], buckets[o])
		pos += len(buckets[o])
		bounds[o+1] = pos
	}

	for o := 0; o < 8; o++ {
		cfrom := from + bounds[o]
		cto := from + bounds[o+1]
		if cfrom == cto {
			continue
		}
		child := t.build(octantCenter(center, half, o), half/2, cfrom, cto, depth+1)
		t.nodes[id].children[o] = child
	}
	return id
}

func octantOf(p, center geometry.Vec) int {
	o := 0
	for c := 0; c < 3; c++ {
		if p[c] >= center[c] {
			o |= 1 << c
		}
	}
	return o
}

func octantCenter(center geometry.Vec, half float64, o int) geometry.Vec {
	q := half / 2
	out := center
	for c := 0; c < 3; c++ {
		if o&(1<<c) != 0 {
			out[c] += q
		} else {
			out[c] -= q
		}
	}
	return out
}

func (t *Octree) Find(p geometry.Vec, radius float64, out []Neighbour) []Neighbour {
	if len(t.nodes) == 0 {
		return out
	}
	return t.find(0, p, radius*radius, out)
}

func (t *Octree) find(id int32, p geometry.Vec, r2 float64, out []Neighbour) []Neighbour {
	node := &t.nodes[id]

	// closest distance from p to the cube
	d2 := 0.0
	for c := 0; c < 3; c++ {
		if d := math.Abs(p[c]-node.center[c]) - node.half; d > 0 {
			d2 += d * d
		}
	}
	if d2 > r2 {
		return out
	}

	if node.leaf {
		for _, i := range t.perm[node.from:node.to] {
			d2 := p.Sub(t.points[i]).LenSq()
			if d2 <= r2 {
				out = append(out, Neighbour{Index: int(i), DistSq: d2})
			}
		}
		return out
	}
	for _, child := range node.children {
		if child >= 0 {
			out = t.find(child, p, r2, out)
		}
	}
	return out
}
