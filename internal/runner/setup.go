package runner

import (
	"errors"
	"fmt"

	"github.com/regolith-sim/regolith/internal/config"
	"github.com/regolith-sim/regolith/internal/output"
	"github.com/regolith-sim/regolith/internal/paths"
	"github.com/regolith-sim/regolith/internal/settings"
	"github.com/regolith-sim/regolith/internal/storage"
)

// NamedBody pairs a body's material parameters with its node name from the
// setup file.
type NamedBody struct {
	Name   string
	Params *settings.Settings[settings.BodyID]
}

// PhaseSpec is one stage of a composite run: a reserved phase name plus
// the run settings overridden for that stage.
type PhaseSpec struct {
	Name string
	Run  *settings.Settings[settings.RunID]
}

// Setup is a parsed run description: the run settings, the initial bodies
// and, for composite runs, the phase sequence. In the file it is a config
// with a "run" node, one freely named node per body, and zero or more
// phase nodes named "stabilization", "fragmentation" or "reaccumulation",
// each overriding the run settings for its stage:
//
//	"run" [
//	  "run.name" = my run
//	]
//	"target" [
//	  "initial.particle_cnt" = 10000
//	]
//	"stabilization" [
//	  "run.end_time" = 100
//	]
//	"fragmentation" [
//	  "run.end_time" = 10
//	]
//	"reaccumulation" [
//	  "run.end_time" = 3600
//	]
//
// Phases chain in file order; without phase nodes the run type selects a
// single phase.
type Setup struct {
	Run    *settings.Settings[settings.RunID]
	Bodies []NamedBody
	Phases []PhaseSpec

	// Resume names a state file to continue from instead of building the
	// bodies. The first phase picks up the saved time, timestep and
	// output index.
	Resume paths.Path
}

// isPhaseNode reports whether a setup node name is reserved for a phase.
func isPhaseNode(name string) bool {
	switch name {
	case "stabilization", "fragmentation", "reaccumulation":
		return true
	}
	return false
}

// LoadSetup reads a setup file. Unknown keys are skipped so files written
// by newer versions still load.
func LoadSetup(p paths.Path) (*Setup, error) {
	cfg := config.New()
	if err := cfg.Load(p); err != nil {
		return nil, err
	}
	setup := &Setup{Run: settings.NewRun()}
	var firstErr error
	cfg.Enumerate(func(name string, node *config.Node) {
		if name == "run" {
			if err := fillSettings(setup.Run, node); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("node %q: %w", name, err)
			}
			return
		}
		if isPhaseNode(name) {
			overrides := settings.NewRun()
			if err := fillSettings(overrides, node); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("node %q: %w", name, err)
			}
			setup.Phases = append(setup.Phases, PhaseSpec{Name: name, Run: overrides})
			return
		}
		body := settings.NewBody()
		if err := fillSettings(body, node); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("node %q: %w", name, err)
		}
		setup.Bodies = append(setup.Bodies, NamedBody{Name: name, Params: body})
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return setup, nil
}

// Save writes the setup file with every explicitly set entry.
func (s *Setup) Save(p paths.Path) error {
	cfg := config.New()
	node := cfg.AddNode("run")
	s.Run.EachSet(func(_ settings.RunID, name string, value any) {
		node.SetEntry(name, settings.FormatValue(value))
	})
	for _, b := range s.Bodies {
		node := cfg.AddNode(b.Name)
		b.Params.EachSet(func(_ settings.BodyID, name string, value any) {
			node.SetEntry(name, settings.FormatValue(value))
		})
	}
	for _, ph := range s.Phases {
		node := cfg.AddNode(ph.Name)
		ph.Run.EachSet(func(_ settings.RunID, name string, value any) {
			node.SetEntry(name, settings.FormatValue(value))
		})
	}
	return cfg.Save(p)
}

// fillSettings applies a config node's entries onto a settings object,
// skipping keys the table does not know.
func fillSettings[K ~int](s *settings.Settings[K], node *config.Node) error {
	var firstErr error
	node.EnumerateEntries(func(key, value string) {
		err := s.Deserialize(key + " = " + config.Unquoted(value))
		if err != nil && !errors.Is(err, settings.ErrUnknownKey) && firstErr == nil {
			firstErr = err
		}
	})
	return firstErr
}

// resumable is implemented by the simulation phases; the first phase of a
// resumed run picks up the saved loop state.
type resumable interface {
	setResume(info output.ResumeInfo)
}

// Graph assembles the job graph of the setup: a particle source (the
// configured bodies merged together, or a loaded state file on resume) fed
// into the phase selected by the run type, or into the declared phase
// chain of a composite run. The returned node is the graph's sink.
func (s *Setup) Graph() (*Node, error) {
	source, resume, err := s.sourceNode()
	if err != nil {
		return nil, err
	}

	if len(s.Phases) > 0 {
		prev := source
		for i, ph := range s.Phases {
			job := s.phaseJob(ph)
			if i == 0 && resume != nil {
				job.(resumable).setResume(*resume)
			}
			node := NewNode(job)
			if err := node.Connect(prev, "particles"); err != nil {
				return nil, err
			}
			prev = node
			if i < len(s.Phases)-1 && s.Run.IsSet(settings.RunOutputPath) {
				save := NewNode(NewSaveFile(ph.Name+" state", s.statePath(ph.Name)))
				if err := save.Connect(prev, "particles"); err != nil {
					return nil, err
				}
				prev = save
			}
		}
		return prev, nil
	}

	kind, err := settings.GetEnum[settings.RunType](s.Run, settings.RunTypeID)
	if err != nil {
		return nil, err
	}
	var job Job
	switch kind {
	case settings.RunTypeSPH:
		job = NewSPHPhase("sph", s.Run)
	case settings.RunTypeNBody, settings.RunTypeRubblePile:
		job = NewNBodyPhase("nbody", s.Run)
	default:
		return nil, fmt.Errorf("%w: unknown run type %d", ErrSetup, int(kind))
	}
	if resume != nil {
		job.(resumable).setResume(*resume)
	}
	sink := NewNode(job)
	if err := sink.Connect(source, "particles"); err != nil {
		return nil, err
	}
	return sink, nil
}

// sourceNode builds the particle source of the graph. A resumed setup
// loads the state file; a fresh one assembles and merges the bodies.
func (s *Setup) sourceNode() (*Node, *output.ResumeInfo, error) {
	if !s.Resume.Empty() {
		info, err := output.ReadResumeInfo(s.Resume)
		if err != nil {
			return nil, nil, err
		}
		load := NewLoadFile("load state", s.Resume)
		load.Info = info
		return NewNode(load), &info, nil
	}

	if len(s.Bodies) == 0 {
		return nil, nil, fmt.Errorf("%w: setup has no bodies", ErrSetup)
	}
	merge := NewNode(NewMergeBodies("bodies", len(s.Bodies)))
	for i, b := range s.Bodies {
		params := NewNode(NewBodyParameters(b.Name+" parameters", b.Params))
		body := NewNode(NewMonolithicBody(b.Name))
		if err := body.Connect(params, "material"); err != nil {
			return nil, nil, err
		}
		if err := merge.Connect(body, mergeSlot(i)); err != nil {
			return nil, nil, err
		}
	}
	return merge, nil, nil
}

// statePath places a between-phase state file in the run's output
// directory.
func (s *Setup) statePath(phase string) paths.Path {
	dir := settings.MustGet[string](s.Run, settings.RunOutputPath)
	return paths.New(dir).Join(paths.New(phase + "_final.scf"))
}

// phaseJob builds the simulation phase of one stage. The stage settings
// are the global run settings with the stage's overrides applied on top.
func (s *Setup) phaseJob(ph PhaseSpec) Job {
	run := s.Run.Clone()
	if ph.Run != nil {
		run.AddEntries(ph.Run)
	}
	switch ph.Name {
	case "stabilization":
		return NewStabilizationPhase(ph.Name, run)
	case "reaccumulation":
		return NewNBodyPhase(ph.Name, run)
	default:
		return NewSPHPhase(ph.Name, run)
	}
}

// MergeBodies joins several particle sources into one storage, keeping
// their material partitions in slot order.
type MergeBodies struct {
	JobName string
	Count   int
}

func NewMergeBodies(name string, count int) *MergeBodies {
	return &MergeBodies{JobName: name, Count: count}
}

func (m *MergeBodies) Name() string { return m.JobName }

func (m *MergeBodies) Slots() []Slot {
	slots := make([]Slot, m.Count)
	for i := range slots {
		slots[i] = Slot{Name: mergeSlot(i), Type: TypeParticles}
	}
	return slots
}

func (m *MergeBodies) OutputType() Type { return TypeParticles }

func (m *MergeBodies) Evaluate(in *Inputs, global *settings.Settings[settings.RunID], cb *Callbacks) (any, error) {
	var merged *storage.Storage
	for i := 0; i < m.Count; i++ {
		st, err := in.Particles(mergeSlot(i))
		if err != nil {
			return nil, err
		}
		if merged == nil {
			merged = st
			continue
		}
		if err := merged.Merge(st); err != nil {
			return nil, err
		}
	}
	return merged, nil
}

func mergeSlot(i int) string { return fmt.Sprintf("body_%d", i) }
