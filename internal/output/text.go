package output

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/regolith-sim/regolith/internal/paths"
	"github.com/regolith-sim/regolith/internal/quantity"
	"github.com/regolith-sim/regolith/internal/settings"
	"github.com/regolith-sim/regolith/internal/stats"
	"github.com/regolith-sim/regolith/internal/storage"
)

// column describes one enabled text column group.
type column struct {
	flag   int
	header []string
	put    func(st *storage.Storage, i int, row []string) []string
}

func scalarColumn(flag int, name string, id quantity.ID, d quantity.Derivative) column {
	return column{
		flag:   flag,
		header: []string{name},
		put: func(st *storage.Storage, i int, row []string) []string {
			v, err := st.Scalars(id, d)
			if err != nil {
				return append(row, "0")
			}
			return append(row, format(v[i]))
		},
	}
}

func vectorColumn(flag int, name string, id quantity.ID, d quantity.Derivative) column {
	return column{
		flag:   flag,
		header: []string{name + ".x", name + ".y", name + ".z"},
		put: func(st *storage.Storage, i int, row []string) []string {
			v, err := st.Vectors(id, d)
			if err != nil {
				return append(row, "0", "0", "0")
			}
			return append(row, format(v[i][0]), format(v[i][1]), format(v[i][2]))
		},
	}
}

func indexColumn(flag int, name string, id quantity.ID) column {
	return column{
		flag:   flag,
		header: []string{name},
		put: func(st *storage.Storage, i int, row []string) []string {
			v, err := st.Indices(id)
			if err != nil {
				return append(row, "0")
			}
			return append(row, fmt.Sprintf("%d", v[i]))
		},
	}
}

var textColumns = []column{
	vectorColumn(settings.QuantityFlagPosition, "position", quantity.Position, quantity.Value),
	vectorColumn(settings.QuantityFlagVelocity, "velocity", quantity.Position, quantity.Dt),
	scalarColumn(settings.QuantityFlagMass, "mass", quantity.Mass, quantity.Value),
	scalarColumn(settings.QuantityFlagDensity, "density", quantity.Density, quantity.Value),
	scalarColumn(settings.QuantityFlagEnergy, "energy", quantity.Energy, quantity.Value),
	scalarColumn(settings.QuantityFlagPressure, "pressure", quantity.Pressure, quantity.Value),
	scalarColumn(settings.QuantityFlagDamage, "damage", quantity.Damage, quantity.Value),
	scalarColumn(settings.QuantityFlagSmoothingLength, "smoothing_length", quantity.SmoothingLength, quantity.Value),
	indexColumn(settings.QuantityFlagAggregateID, "aggregate_id", quantity.AggregateID),
}

func format(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}

// TextWriter writes one row per particle, tab-separated, with the column
// set chosen by the output-quantity flags.
type TextWriter struct {
	Mask       *Mask
	Quantities settings.FlagSet
	RunName    string
}

func (w *TextWriter) Write(st *storage.Storage, rs *stats.Stats, time float64) (paths.Path, error) {
	p := w.Mask.Next("txt")
	f, err := createFile(p)
	if err != nil {
		return paths.Path{}, err
	}
	defer f.Close()
	out := bufio.NewWriter(f)

	fmt.Fprintf(out, "# run: %s\n", w.RunName)
	fmt.Fprintf(out, "# time: %s\n", format(time))
	var headers []string
	var cols []column
	for _, c := range textColumns {
		if w.Quantities.Has(c.flag) {
			cols = append(cols, c)
			headers = append(headers, c.header...)
		}
	}
	fmt.Fprintf(out, "# %s\n", strings.Join(headers, "\t"))

	row := make([]string, 0, len(headers))
	for i := 0; i < st.ParticleCount(); i++ {
		row = row[:0]
		for _, c := range cols {
			row = c.put(st, i, row)
		}
		fmt.Fprintln(out, strings.Join(row, "\t"))
	}
	if err := out.Flush(); err != nil {
		return paths.Path{}, fmt.Errorf("output: %w", err)
	}
	return p, nil
}
