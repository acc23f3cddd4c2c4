// Package output writes run snapshots: tab-separated text tables, lossless
// state files allowing resume, VTK unstructured grids and size-frequency
// distributions. File names come from a mask with a monotone index.
package output

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/regolith-sim/regolith/internal/paths"
	"github.com/regolith-sim/regolith/internal/settings"
	"github.com/regolith-sim/regolith/internal/stats"
	"github.com/regolith-sim/regolith/internal/storage"
)

var ErrInvalidMask = errors.New("output: file mask has no %d placeholder")

// Writer emits one snapshot of the state and returns the written path.
type Writer interface {
	Write(st *storage.Storage, rs *stats.Stats, time float64) (paths.Path, error)
}

// Mask generates snapshot file names. The %d placeholder is replaced by a
// monotonically increasing index, so a resumed run continues the sequence;
// %e is replaced by the tag the writer supplies.
type Mask struct {
	dir   paths.Path
	name  string
	index int
}

func NewMask(dir paths.Path, name string, firstIndex int) *Mask {
	return &Mask{dir: dir, name: name, index: firstIndex}
}

// Next returns the next path of the sequence and advances the index.
func (m *Mask) Next(tag string) paths.Path {
	name := strings.ReplaceAll(m.name, "%d", fmt.Sprintf("%04d", m.index))
	name = strings.ReplaceAll(name, "%e", tag)
	m.index++
	return m.dir.Join(paths.New(name))
}

func (m *Mask) Index() int { return m.index }

// Spacing maps a snapshot index to the simulated time it is due.
type Spacing interface {
	Time(i int) float64
}

// Linear spaces snapshots equidistantly from the start time.
type Linear struct {
	Start    float64
	Interval float64
}

func (l Linear) Time(i int) float64 { return l.Start + float64(i+1)*l.Interval }

// Logarithmic doubles the interval after every snapshot.
type Logarithmic struct {
	Start    float64
	Interval float64
}

func (l Logarithmic) Time(i int) float64 {
	return l.Start + l.Interval*(math.Pow(2, float64(i+1))-1)
}

// Custom takes snapshots at an explicit list of times.
type Custom struct {
	Times []float64
}

func (c Custom) Time(i int) float64 {
	if i >= len(c.Times) {
		return math.Inf(1)
	}
	return c.Times[i]
}

// ParseTimes reads a comma-separated list of snapshot times.
func ParseTimes(text string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		x, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("output: invalid snapshot time %q: %w", part, err)
		}
		out = append(out, x)
	}
	return out, nil
}

// SpacingFromSettings builds the snapshot schedule of the run.
func SpacingFromSettings(run *settings.Settings[settings.RunID]) (Spacing, error) {
	kind, err := settings.GetEnum[settings.OutputSpacing](run, settings.RunOutputSpacing)
	if err != nil {
		return nil, err
	}
	start := settings.MustGet[float64](run, settings.RunStartTime)
	interval := settings.MustGet[float64](run, settings.RunOutputInterval)
	switch kind {
	case settings.SpacingLinear:
		return Linear{Start: start, Interval: interval}, nil
	case settings.SpacingLogarithmic:
		return Logarithmic{Start: start, Interval: interval}, nil
	case settings.SpacingCustom:
		times, err := ParseTimes(settings.MustGet[string](run, settings.RunOutputCustomTimes))
		if err != nil {
			return nil, err
		}
		return Custom{Times: times}, nil
	default:
		return nil, fmt.Errorf("output: unknown spacing %d", int(kind))
	}
}

// Sink drives a set of writers along a snapshot schedule.
type Sink struct {
	writers []Writer
	spacing Spacing
	count   int
}

func NewSink(spacing Spacing, writers ...Writer) *Sink {
	return &Sink{writers: writers, spacing: spacing}
}

// Due reports whether the next snapshot time has been reached.
func (s *Sink) Due(time float64) bool {
	return len(s.writers) > 0 && time >= s.spacing.Time(s.count)
}

// SkipUntil fast-forwards the schedule past snapshots before the given
// time, used when a run resumes mid-schedule.
func (s *Sink) SkipUntil(time float64) {
	for s.spacing.Time(s.count) < time {
		s.count++
	}
}

// Write emits a snapshot through every writer and advances the schedule.
func (s *Sink) Write(st *storage.Storage, rs *stats.Stats, time float64) error {
	s.count++
	var firstErr error
	for _, w := range s.writers {
		if _, err := w.Write(st, rs, time); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// FromSettings assembles the sink enabled by the run settings. A run without
// output formats gets an empty sink that is never due.
func FromSettings(run *settings.Settings[settings.RunID]) (*Sink, error) {
	flags, err := settings.GetFlags(run, settings.RunOutputType)
	if err != nil {
		return nil, err
	}
	spacing, err := SpacingFromSettings(run)
	if err != nil {
		return nil, err
	}
	dir := settings.MustGet[paths.Path](run, settings.RunOutputPath)
	name := settings.MustGet[string](run, settings.RunOutputName)
	first := settings.MustGet[int](run, settings.RunOutputFirstIndex)
	runName := settings.MustGet[string](run, settings.RunName)
	if !strings.Contains(name, "%d") {
		return nil, ErrInvalidMask
	}

	var writers []Writer
	if flags.Has(int(settings.OutputText)) {
		quantities, err := settings.GetFlags(run, settings.RunOutputQuantities)
		if err != nil {
			return nil, err
		}
		writers = append(writers, &TextWriter{
			Mask:       NewMask(dir, name, first),
			Quantities: quantities,
			RunName:    runName,
		})
	}
	if flags.Has(int(settings.OutputState)) {
		writers = append(writers, &StateWriter{
			Mask:    NewMask(dir, replaceExtension(name, "state"), first),
			RunName: runName,
			Run:     run,
		})
	}
	if flags.Has(int(settings.OutputVTK)) {
		writers = append(writers, &VTKWriter{
			Mask: NewMask(dir, replaceExtension(name, "vtu"), first),
		})
	}
	if flags.Has(int(settings.OutputSFD)) {
		writers = append(writers, &SFDWriter{
			Mask: NewMask(dir, replaceExtension(name, "sfd"), first),
		})
	}
	return NewSink(spacing, writers...), nil
}

func replaceExtension(name, ext string) string {
	return paths.New(name).ReplaceExtension(ext).Native()
}

func createFile(p paths.Path) (*os.File, error) {
	if dir := p.ParentPath(); !dir.Empty() {
		if err := os.MkdirAll(dir.Native(), 0o755); err != nil {
			return nil, fmt.Errorf("output: %w", err)
		}
	}
	f, err := os.Create(p.Native())
	if err != nil {
		return nil, fmt.Errorf("output: %w", err)
	}
	return f, nil
}
