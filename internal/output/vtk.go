package output

import (
	"bufio"
	"fmt"

	"github.com/regolith-sim/regolith/internal/paths"
	"github.com/regolith-sim/regolith/internal/quantity"
	"github.com/regolith-sim/regolith/internal/stats"
	"github.com/regolith-sim/regolith/internal/storage"
)

// VTKWriter writes the particle set as a legacy-format VTK unstructured
// grid of vertex cells, with the scalar and vector quantities attached as
// point data.
type VTKWriter struct {
	Mask *Mask
}

func (w *VTKWriter) Write(st *storage.Storage, rs *stats.Stats, time float64) (paths.Path, error) {
	p := w.Mask.Next("vtu")
	f, err := createFile(p)
	if err != nil {
		return paths.Path{}, err
	}
	defer f.Close()
	out := bufio.NewWriter(f)

	r, err := st.Vectors(quantity.Position, quantity.Value)
	if err != nil {
		return paths.Path{}, err
	}
	n := len(r)

	fmt.Fprintln(out, "# vtk DataFile Version 3.0")
	fmt.Fprintf(out, "time %s\n", format(time))
	fmt.Fprintln(out, "ASCII")
	fmt.Fprintln(out, "DATASET UNSTRUCTURED_GRID")
	fmt.Fprintf(out, "POINTS %d double\n", n)
	for i := range r {
		fmt.Fprintf(out, "%s %s %s\n", format(r[i][0]), format(r[i][1]), format(r[i][2]))
	}

	fmt.Fprintf(out, "CELLS %d %d\n", n, 2*n)
	for i := 0; i < n; i++ {
		fmt.Fprintf(out, "1 %d\n", i)
	}
	fmt.Fprintf(out, "CELL_TYPES %d\n", n)
	for i := 0; i < n; i++ {
		fmt.Fprintln(out, "1") // VTK_VERTEX
	}

	fmt.Fprintf(out, "POINT_DATA %d\n", n)
	st.Each(func(id quantity.ID, q *quantity.Quantity) {
		if id == quantity.Position {
			return
		}
		name := quantity.MetadataOf(id).Name
		switch q.Type() {
		case quantity.Scalar:
			fmt.Fprintf(out, "SCALARS %s double 1\n", name)
			fmt.Fprintln(out, "LOOKUP_TABLE default")
			for _, x := range q.Scalars(quantity.Value) {
				fmt.Fprintln(out, format(x))
			}
		case quantity.Vector:
			fmt.Fprintf(out, "VECTORS %s double\n", name)
			for _, v := range q.Vectors(quantity.Value) {
				fmt.Fprintf(out, "%s %s %s\n", format(v[0]), format(v[1]), format(v[2]))
			}
		case quantity.Index:
			fmt.Fprintf(out, "SCALARS %s int 1\n", name)
			fmt.Fprintln(out, "LOOKUP_TABLE default")
			for _, x := range q.Indices() {
				fmt.Fprintf(out, "%d\n", x)
			}
		}
	})
	// velocities live in the derivative slot of the position quantity
	if v, err := st.Vectors(quantity.Position, quantity.Dt); err == nil {
		fmt.Fprintln(out, "VECTORS velocity double")
		for i := range v {
			fmt.Fprintf(out, "%s %s %s\n", format(v[i][0]), format(v[i][1]), format(v[i][2]))
		}
	}

	if err := out.Flush(); err != nil {
		return paths.Path{}, fmt.Errorf("output: %w", err)
	}
	return p, nil
}
