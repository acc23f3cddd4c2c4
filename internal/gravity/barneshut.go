package gravity

import (
	"math"

	"github.com/regolith-sim/regolith/internal/geometry"
	"github.com/regolith-sim/regolith/internal/sched"
	"github.com/regolith-sim/regolith/internal/stats"
)

const bhLeafSize = 16

// BarnesHut approximates distant groups of particles by their multipole
// moments, evaluated over an octree. A node is accepted when its size over
// its distance falls below the opening angle; otherwise its children are
// visited. Order >= 2 adds the quadrupole correction to the monopole term.
type BarnesHut struct {
	G     float64
	Theta float64
	Order int

	positions []geometry.Vec
	masses    []float64
	perm      []int32
	nodes     []bhNode
}

type bhNode struct {
	center   geometry.Vec // cube center
	half     float64      // cube half-extent
	com      geometry.Vec
	mass     float64
	quad     geometry.SymTensor // traceless quadrupole about com
	children [8]int32           // -1 when absent
	from, to int32
	leaf     bool
}

func NewBarnesHut(g, theta float64, order int) *BarnesHut {
	return &BarnesHut{G: g, Theta: theta, Order: order}
}

func (b *BarnesHut) Build(positions []geometry.Vec, masses []float64) {
	b.positions = positions
	b.masses = masses
	b.nodes = b.nodes[:0]
	n := len(positions)
	b.perm = make([]int32, n)
	for i := range b.perm {
		b.perm[i] = int32(i)
	}
	if n == 0 {
		return
	}

	lower := positions[0]
	upper := positions[0]
	for _, p := range positions[1:] {
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
	b.build(center, half*(1+1e-10), 0, n)
}

func (b *BarnesHut) build(center geometry.Vec, half float64, from, to int) int32 {
	id := int32(len(b.nodes))
	node := bhNode{center: center, half: half, from: int32(from), to: int32(to)}
	for i := range node.children {
		node.children[i] = -1
	}
	b.nodes = append(b.nodes, node)

	if to-from <= bhLeafSize {
		b.nodes[id].leaf = true
		b.finishMoments(id)
		return id
	}

	// partition the permutation range into octants around the center
	var bounds [9]int
	seg := b.perm[from:to]
	buckets := make([][]int32, 8)
	for _, i := range seg {
		o := octant(b.positions[i], center)
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
		child := b.build(childCenter(center, half, o), half/2, cfrom, cto)
		b.nodes[id].children[o] = child
	}
	b.finishMoments(id)
	return id
}

func octant(p, center geometry.Vec) int {
	o := 0
	for c := 0; c < 3; c++ {
		if p[c] >= center[c] {
			o |= 1 << c
		}
	}
	return o
}

func childCenter(center geometry.Vec, half float64, o int) geometry.Vec {
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

// finishMoments computes mass, centre of mass and the traceless quadrupole
// of the node from its particle range.
func (b *BarnesHut) finishMoments(id int32) {
	n := &b.nodes[id]
	mass := 0.0
	com := geometry.Vec{}
	for _, i := range b.perm[n.from:n.to] {
		m := b.masses[i]
		mass += m
		com = com.Add(b.positions[i].Scale(m))
	}
	if mass > 0 {
		com = com.Scale(1 / mass)
	}
	n.mass = mass
	n.com = com

	var quad geometry.SymTensor
	for _, i := range b.perm[n.from:n.to] {
		d := b.positions[i].Sub(com)
		m := b.masses[i]
		contrib := geometry.SymmetricOuter(d, d).Scale(3 * m)
		quad = quad.Add(contrib)
		r2 := d.LenSq()
		quad.Diag = quad.Diag.Sub(geometry.V(m*r2, m*r2, m*r2))
	}
	n.quad = quad
}

func (b *BarnesHut) EvalAll(sch *sched.Scheduler, acc []geometry.Vec, st *stats.Stats) {
	if len(b.nodes) == 0 {
		return
	}
	sch.For(len(b.positions), func(i int) {
		acc[i] = acc[i].Add(b.eval(0, b.positions[i]))
	})
	if st != nil {
		st.Set(stats.GravityNodeCount, len(b.nodes))
	}
}

func (b *BarnesHut) EvalPoint(p geometry.Vec) geometry.Vec {
	if len(b.nodes) == 0 {
		return geometry.Vec{}
	}
	return b.eval(0, p)
}

func (b *BarnesHut) eval(id int32, p geometry.Vec) geometry.Vec {
	n := &b.nodes[id]
	d := p.Sub(n.com)
	r2 := d.LenSq()

	size := 2 * n.half
	if !n.leaf && size*size > b.Theta*b.Theta*r2 {
		a := geometry.Vec{}
		for _, child := range n.children {
			if child >= 0 {
				a = a.Add(b.eval(child, p))
			}
		}
		return a
	}
	if n.leaf {
		a := geometry.Vec{}
		for _, i := range b.perm[n.from:n.to] {
			dj := b.positions[i].Sub(p)
			rj2 := dj.LenSq()
			if rj2 == 0 {
				continue
			}
			rj := math.Sqrt(rj2)
			a = a.Add(dj.Scale(b.G * b.masses[i] / (rj2 * rj)))
		}
		return a
	}

	r := math.Sqrt(r2)
	a := d.Scale(-b.G * n.mass / (r2 * r))
	if b.Order >= 2 {
		r5 := r2 * r2 * r
		qd := n.quad.Apply(d)
		dqd := geometry.Dot(d, qd)
		a = a.Sub(qd.Scale(b.G / r5))
		a = a.Add(d.Scale(2.5 * b.G * dqd / (r5 * r2)))
	}
	return a
}
