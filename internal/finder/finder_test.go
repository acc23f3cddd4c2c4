package finder

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/regolith-sim/regolith/internal/geometry"
)

func randomPoints(n int, seed int64) []geometry.Vec {
	rng := rand.New(rand.NewSource(seed))
	pts := make([]geometry.Vec, n)
	for i := range pts {
		pts[i] = geometry.V(rng.Float64()*10-5, rng.Float64()*10-5, rng.Float64()*10-5)
	}
	return pts
}

func sortNeighbours(ns []Neighbour) {
	sort.Slice(ns, func(a, b int) bool { return ns[a].Index < ns[b].Index })
}

// Every finder must return the same neighbour set as the brute force.
func TestFindersAgree(t *testing.T) {
	pts := randomPoints(500, 1)
	reference := &BruteForce{}
	reference.Build(pts)

	finders := map[string]Finder{
		"uniform_grid": &UniformGrid{},
		"hash_grid":    &HashGrid{},
		"kd_tree":      &KdTree{LeafSize: 10},
		"linked_list":  &LinkedList{},
		"octree":       &Octree{LeafSize: 10},
	}
	for name, f := range finders {
		f.Build(pts)
		for q := 0; q < 50; q++ {
			p := pts[q*7%len(pts)]
			radius := 0.3 + float64(q%5)*0.4
			want := reference.Find(p, radius, nil)
			got := f.Find(p, radius, nil)
			sortNeighbours(want)
			sortNeighbours(got)
			if len(want) != len(got) {
				t.Fatalf("%s: %d neighbours, brute force found %d (radius %v)",
					name, len(got), len(want), radius)
			}
			for i := range want {
				if want[i].Index != got[i].Index || want[i].DistSq != got[i].DistSq {
					t.Fatalf("%s: neighbour %d = %+v, want %+v", name, i, got[i], want[i])
				}
			}
		}
	}
}

func TestSelfIsReported(t *testing.T) {
	pts := randomPoints(100, 2)
	for _, f := range []Finder{&BruteForce{}, &UniformGrid{}, &HashGrid{}, &KdTree{}, &LinkedList{}, &Octree{}} {
		f.Build(pts)
		ns := f.Find(pts[13], 0.01, nil)
		found := false
		for _, n := range ns {
			if n.Index == 13 && n.DistSq == 0 {
				found = true
			}
		}
		if !found {
			t.Errorf("%T: query at an indexed point must report it", f)
		}
	}
}

func TestEmptyPointSet(t *testing.T) {
	for _, f := range []Finder{&BruteForce{}, &UniformGrid{}, &HashGrid{}, &KdTree{}, &LinkedList{}, &Octree{}} {
		f.Build(nil)
		if ns := f.Find(geometry.V(0, 0, 0), 1, nil); len(ns) != 0 {
			t.Errorf("%T: neighbours in empty set: %v", f, ns)
		}
	}
}

func TestCoincidentPoints(t *testing.T) {
	pts := make([]geometry.Vec, 10)
	for _, f := range []Finder{&UniformGrid{}, &HashGrid{}, &KdTree{LeafSize: 2}, &LinkedList{}, &Octree{LeafSize: 2}} {
		f.Build(pts)
		ns := f.Find(geometry.V(0, 0, 0), 0.5, nil)
		if len(ns) != 10 {
			t.Errorf("%T: found %d of 10 coincident points", f, len(ns))
		}
	}
}

func TestRebuildFallsBackToBuild(t *testing.T) {
	pts := randomPoints(50, 3)
	f := &KdTree{LeafSize: 4}
	f.Build(pts)
	pts[0] = geometry.V(100, 0, 0)
	Rebuild(f, pts)
	ns := f.Find(geometry.V(100, 0, 0), 0.5, nil)
	if len(ns) != 1 || ns[0].Index != 0 {
		t.Errorf("moved point not found after rebuild: %v", ns)
	}
}
