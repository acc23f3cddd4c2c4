package output

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/regolith-sim/regolith/internal/geometry"
	"github.com/regolith-sim/regolith/internal/paths"
	"github.com/regolith-sim/regolith/internal/quantity"
	"github.com/regolith-sim/regolith/internal/settings"
	"github.com/regolith-sim/regolith/internal/stats"
	"github.com/regolith-sim/regolith/internal/storage"
)

// StateWriter serialises every quantity with all derivative buffers plus
// the material parameters of each partition, so a run can resume from the
// file. A YAML sidecar carries the run metadata.
type StateWriter struct {
	Mask    *Mask
	RunName string
	Run     *settings.Settings[settings.RunID]
}

// Metadata is the YAML sidecar written next to each state file.
type Metadata struct {
	Run       string  `yaml:"run"`
	Time      float64 `yaml:"time"`
	Step      int     `yaml:"step"`
	Particles int     `yaml:"particles"`
}

func (w *StateWriter) Write(st *storage.Storage, rs *stats.Stats, time float64) (paths.Path, error) {
	p := w.Mask.Next("state")
	f, err := createFile(p)
	if err != nil {
		return paths.Path{}, err
	}
	defer f.Close()
	out := bufio.NewWriter(f)

	fmt.Fprintf(out, "run_time = %s\n", format(time))
	fmt.Fprintf(out, "output_index = %d\n", w.Mask.Index()-1)
	if rs != nil && rs.Has(stats.Timestep) {
		fmt.Fprintf(out, "timestep = %s\n", format(rs.Float(stats.Timestep)))
	}
	fmt.Fprintf(out, "particle_cnt = %d\n", st.ParticleCount())

	for idx, part := range st.Partitions() {
		fmt.Fprintf(out, "\n[material %d]\n", idx)
		fmt.Fprintf(out, "from = %d\nto = %d\n", part.From, part.To)
		if part.Material != nil && part.Material.Params != nil {
			out.WriteString(part.Material.Params.Serialize())
		}
	}

	st.Each(func(id quantity.ID, q *quantity.Quantity) {
		fmt.Fprintf(out, "\n[quantity %s]\n", quantity.MetadataOf(id).Name)
		fmt.Fprintf(out, "order = %d\n", int(q.Order()))
		writeQuantityRows(out, q)
	})
	if err := out.Flush(); err != nil {
		return paths.Path{}, fmt.Errorf("output: %w", err)
	}

	meta := Metadata{Run: w.RunName, Time: time, Particles: st.ParticleCount()}
	if rs != nil && rs.Has(stats.Step) {
		meta.Step = rs.Int(stats.Step)
	}
	if err := writeMetadata(p.ReplaceExtension("yaml"), meta); err != nil {
		return paths.Path{}, err
	}
	return p, nil
}

func writeMetadata(p paths.Path, meta Metadata) error {
	data, err := yaml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("output: %w", err)
	}
	if err := os.WriteFile(p.Native(), data, 0o644); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	return nil
}

func writeQuantityRows(out *bufio.Writer, q *quantity.Quantity) {
	n := q.Size()
	for i := 0; i < n; i++ {
		var row []string
		switch q.Type() {
		case quantity.Scalar:
			for d := quantity.Value; d <= quantity.Derivative(int(q.Order())); d++ {
				row = append(row, format(q.Scalars(d)[i]))
			}
		case quantity.Vector:
			for d := quantity.Value; d <= quantity.Derivative(int(q.Order())); d++ {
				row = appendVec(row, q.Vectors(d)[i])
			}
		case quantity.Tensor:
			for d := quantity.Value; d <= quantity.Derivative(int(q.Order())); d++ {
				t := q.Tensors(d)[i]
				row = appendVec(appendVec(row, t.Diag), t.Off)
			}
		case quantity.Index:
			row = append(row, fmt.Sprintf("%d", q.Indices()[i]))
		}
		fmt.Fprintln(out, strings.Join(row, "\t"))
	}
}

func appendVec(row []string, v geometry.Vec) []string {
	return append(row, format(v[0]), format(v[1]), format(v[2]))
}

// ResumeInfo carries the header fields of a state file that a resumed run
// restores. The Has flags distinguish a missing field from a zero value.
type ResumeInfo struct {
	Time        float64
	HasTime     bool
	Timestep    float64
	HasTimestep bool
	Index       int
	HasIndex    bool
}

// ReadResumeInfo scans only the header of a state file.
func ReadResumeInfo(p paths.Path) (ResumeInfo, error) {
	data, err := os.ReadFile(p.Native())
	if err != nil {
		return ResumeInfo{}, fmt.Errorf("output: %w", err)
	}
	var info ResumeInfo
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "[") {
			break
		}
		if v, ok := strings.CutPrefix(line, "run_time ="); ok {
			info.Time, err = strconv.ParseFloat(strings.TrimSpace(v), 64)
			info.HasTime = err == nil
		} else if v, ok := strings.CutPrefix(line, "timestep ="); ok {
			info.Timestep, err = strconv.ParseFloat(strings.TrimSpace(v), 64)
			info.HasTimestep = err == nil
		} else if v, ok := strings.CutPrefix(line, "output_index ="); ok {
			info.Index, err = strconv.Atoi(strings.TrimSpace(v))
			info.HasIndex = err == nil
		}
	}
	return info, nil
}

// LoadState reads a state file back into a storage, returning the run time
// it was written at.
func LoadState(p paths.Path) (*storage.Storage, float64, error) {
	data, err := os.ReadFile(p.Native())
	if err != nil {
		return nil, 0, fmt.Errorf("output: %w", err)
	}
	st := storage.New()
	time := 0.0
	count := 0

	type materialSection struct {
		from, to int
		body     []string
	}
	var materials []*materialSection

	lines := strings.Split(string(data), "\n")
	i := 0
	for i < len(lines) {
		line := strings.TrimSpace(lines[i])
		switch {
		case line == "" || strings.HasPrefix(line, "#"):
			i++
		case strings.HasPrefix(line, "[material"):
			m := &materialSection{}
			i++
			for i < len(lines) {
				l := strings.TrimSpace(lines[i])
				if strings.HasPrefix(l, "[") {
					break
				}
				switch {
				case strings.HasPrefix(l, "from ="):
					m.from, _ = strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(l, "from =")))
				case strings.HasPrefix(l, "to ="):
					m.to, _ = strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(l, "to =")))
				case l != "":
					m.body = append(m.body, l)
				}
				i++
			}
			materials = append(materials, m)
		case strings.HasPrefix(line, "[quantity "):
			name := strings.TrimSuffix(strings.TrimPrefix(line, "[quantity "), "]")
			id, ok := quantity.IDByName(name)
			if !ok {
				return nil, 0, fmt.Errorf("output: unknown quantity %q in %s", name, p)
			}
			i++
			order := quantity.Zero
			if i < len(lines) && strings.HasPrefix(strings.TrimSpace(lines[i]), "order =") {
				o, _ := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(lines[i]), "order =")))
				order = quantity.Order(o)
				i++
			}
			if i+count > len(lines) {
				return nil, 0, fmt.Errorf("output: truncated quantity %q in %s", name, p)
			}
			rows := lines[i : i+count]
			q, err := parseQuantity(quantity.MetadataOf(id).Type, order, rows)
			if err != nil {
				return nil, 0, fmt.Errorf("output: quantity %q: %w", name, err)
			}
			st.Insert(id, q)
			i += count
		default:
			if v, ok := strings.CutPrefix(line, "run_time ="); ok {
				time, _ = strconv.ParseFloat(strings.TrimSpace(v), 64)
			} else if v, ok := strings.CutPrefix(line, "particle_cnt ="); ok {
				count, _ = strconv.Atoi(strings.TrimSpace(v))
			}
			i++
		}
	}

	for _, m := range materials {
		body := settings.NewBody()
		if len(m.body) > 0 {
			if err := body.Deserialize(strings.Join(m.body, "\n")); err != nil {
				return nil, 0, err
			}
		}
		if err := st.AddPartition(storage.NewMaterial(body), m.to-m.from); err != nil {
			return nil, 0, err
		}
	}
	return st, time, nil
}

func parseQuantity(dtype quantity.DataType, order quantity.Order, rows []string) (*quantity.Quantity, error) {
	n := len(rows)
	fieldsOf := func(i int, want int) ([]float64, error) {
		parts := strings.Fields(rows[i])
		if len(parts) != want {
			return nil, fmt.Errorf("row %d has %d fields, want %d", i, len(parts), want)
		}
		out := make([]float64, want)
		for k, p := range parts {
			x, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return nil, err
			}
			out[k] = x
		}
		return out, nil
	}
	buffers := int(order) + 1

	switch dtype {
	case quantity.Scalar:
		vals := make([][]float64, buffers)
		for d := range vals {
			vals[d] = make([]float64, n)
		}
		for i := 0; i < n; i++ {
			fs, err := fieldsOf(i, buffers)
			if err != nil {
				return nil, err
			}
			for d := range vals {
				vals[d][i] = fs[d]
			}
		}
		q := quantity.NewScalar(order, vals[0])
		for d := 1; d < buffers; d++ {
			copy(q.Scalars(quantity.Derivative(d)), vals[d])
		}
		return q, nil
	case quantity.Vector:
		vals := make([][]geometry.Vec, buffers)
		for d := range vals {
			vals[d] = make([]geometry.Vec, n)
		}
		for i := 0; i < n; i++ {
			fs, err := fieldsOf(i, buffers*3)
			if err != nil {
				return nil, err
			}
			for d := range vals {
				vals[d][i] = geometry.V(fs[d*3], fs[d*3+1], fs[d*3+2])
			}
		}
		q := quantity.NewVector(order, vals[0])
		for d := 1; d < buffers; d++ {
			copy(q.Vectors(quantity.Derivative(d)), vals[d])
		}
		return q, nil
	case quantity.Tensor:
		vals := make([][]geometry.SymTensor, buffers)
		for d := range vals {
			vals[d] = make([]geometry.SymTensor, n)
		}
		for i := 0; i < n; i++ {
			fs, err := fieldsOf(i, buffers*6)
			if err != nil {
				return nil, err
			}
			for d := range vals {
				vals[d][i] = geometry.SymTensor{
					Diag: geometry.V(fs[d*6], fs[d*6+1], fs[d*6+2]),
					Off:  geometry.V(fs[d*6+3], fs[d*6+4], fs[d*6+5]),
				}
			}
		}
		q := quantity.NewTensor(order, vals[0])
		for d := 1; d < buffers; d++ {
			copy(q.Tensors(quantity.Derivative(d)), vals[d])
		}
		return q, nil
	case quantity.Index:
		vals := make([]int32, n)
		for i := 0; i < n; i++ {
			x, err := strconv.ParseInt(strings.TrimSpace(rows[i]), 10, 32)
			if err != nil {
				return nil, err
			}
			vals[i] = int32(x)
		}
		return quantity.NewIndex(vals), nil
	default:
		return nil, fmt.Errorf("unknown data type %d", int(dtype))
	}
}
