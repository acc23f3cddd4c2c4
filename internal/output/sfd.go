package output

import (
	"bufio"
	"fmt"
	"math"
	"sort"

	"github.com/regolith-sim/regolith/internal/paths"
	"github.com/regolith-sim/regolith/internal/quantity"
	"github.com/regolith-sim/regolith/internal/stats"
	"github.com/regolith-sim/regolith/internal/storage"
)

// SFDWriter writes the cumulative size-frequency distribution of the
// particle set: for each body radius, the number of bodies at least that
// large. Particles of the same aggregate count as a single body with the
// mass-equivalent radius.
type SFDWriter struct {
	Mask *Mask
}

func (w *SFDWriter) Write(st *storage.Storage, rs *stats.Stats, time float64) (paths.Path, error) {
	radii, err := bodyRadii(st)
	if err != nil {
		return paths.Path{}, err
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(radii)))

	p := w.Mask.Next("sfd")
	f, err := createFile(p)
	if err != nil {
		return paths.Path{}, err
	}
	defer f.Close()
	out := bufio.NewWriter(f)

	fmt.Fprintf(out, "# time: %s\n", format(time))
	fmt.Fprintln(out, "# radius\tcumulative_count")
	for i, r := range radii {
		fmt.Fprintf(out, "%s\t%d\n", format(r), i+1)
	}
	if err := out.Flush(); err != nil {
		return paths.Path{}, fmt.Errorf("output: %w", err)
	}
	return p, nil
}

// bodyRadii returns one radius per body: per aggregate when aggregate ids
// are present, otherwise per particle. The radius of a multi-particle body
// conserves volume.
func bodyRadii(st *storage.Storage) ([]float64, error) {
	h, err := st.Scalars(quantity.SmoothingLength, quantity.Value)
	if err != nil {
		return nil, err
	}
	ids, err := st.Indices(quantity.AggregateID)
	if err != nil {
		out := make([]float64, len(h))
		copy(out, h)
		return out, nil
	}
	volumes := make(map[int32]float64)
	for i := range h {
		volumes[ids[i]] += h[i] * h[i] * h[i]
	}
	out := make([]float64, 0, len(volumes))
	for _, v := range volumes {
		out = append(out, math.Cbrt(v))
	}
	return out, nil
}
