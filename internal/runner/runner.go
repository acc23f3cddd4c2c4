// Package runner assembles the jobs of a simulation into a dependency graph
// and drives the integration loop of each phase. A job consumes the results
// of its typed input slots and yields a single result; connecting jobs forms
// a DAG that Prepare evaluates bottom-up. Composite runs chain phase jobs,
// each adapting the storage it receives before integrating it further.
package runner

import (
	"errors"
	"fmt"

	"github.com/regolith-sim/regolith/internal/settings"
	"github.com/regolith-sim/regolith/internal/storage"
)

var (
	ErrAborted  = errors.New("runner: run aborted")
	ErrCycle    = errors.New("runner: connection would create a cycle")
	ErrSlot     = errors.New("runner: unknown slot")
	ErrSlotType = errors.New("runner: slot type mismatch")
	ErrUnbound  = errors.New("runner: slot has no provider")
	ErrSetup    = errors.New("runner: invalid setup")
)

// Type labels what flows through a slot.
type Type int

const (
	TypeParticles Type = iota
	TypeMaterial
)

func (t Type) String() string {
	switch t {
	case TypeParticles:
		return "particles"
	case TypeMaterial:
		return "material"
	}
	return "unknown"
}

// Slot is a named, typed input of a job. Each slot accepts at most one
// provider.
type Slot struct {
	Name string
	Type Type
}

// Job is one unit of the graph. Evaluate receives the results of all bound
// slots and the global run settings, and produces a value of the declared
// output type.
type Job interface {
	Name() string
	Slots() []Slot
	OutputType() Type
	Evaluate(in *Inputs, global *settings.Settings[settings.RunID], cb *Callbacks) (any, error)
}

// Inputs holds the evaluated provider results, keyed by slot name.
type Inputs struct {
	values map[string]any
}

// Particles returns the storage bound to the named slot.
func (in *Inputs) Particles(slot string) (*storage.Storage, error) {
	v, ok := in.values[slot]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnbound, slot)
	}
	st, ok := v.(*storage.Storage)
	if !ok {
		return nil, fmt.Errorf("%w: %q holds %T", ErrSlotType, slot, v)
	}
	return st, nil
}

// Material returns the body parameters bound to the named slot.
func (in *Inputs) Material(slot string) (*settings.Settings[settings.BodyID], error) {
	v, ok := in.values[slot]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnbound, slot)
	}
	body, ok := v.(*settings.Settings[settings.BodyID])
	if !ok {
		return nil, fmt.Errorf("%w: %q holds %T", ErrSlotType, slot, v)
	}
	return body, nil
}

// Node wraps a job with its provider bindings. Nodes are not safe for
// concurrent use; the graph is assembled and prepared from one goroutine.
type Node struct {
	job       Job
	providers map[string]*Node
	changed   []string
	result    any
	done      bool
}

func NewNode(job Job) *Node {
	return &Node{job: job, providers: make(map[string]*Node)}
}

func (n *Node) Job() Job { return n.job }

func (n *Node) slot(name string) (Slot, bool) {
	for _, s := range n.job.Slots() {
		if s.Name == name {
			return s, true
		}
	}
	return Slot{}, false
}

// Connect binds a provider to the named slot, replacing any previous
// binding. The provider's output type must match the slot and the new edge
// must not close a cycle.
func (n *Node) Connect(provider *Node, slotName string) error {
	s, ok := n.slot(slotName)
	if !ok {
		return fmt.Errorf("%w: %q on job %q", ErrSlot, slotName, n.job.Name())
	}
	if got := provider.job.OutputType(); got != s.Type {
		return fmt.Errorf("%w: slot %q wants %s, job %q yields %s",
			ErrSlotType, slotName, s.Type, provider.job.Name(), got)
	}
	if provider == n || provider.dependsOn(n) {
		return fmt.Errorf("%w: %s -> %s", ErrCycle, provider.job.Name(), n.job.Name())
	}
	n.providers[slotName] = provider
	n.notify(slotName)
	return nil
}

// Disconnect unbinds the named slot, a no-op when nothing is connected.
func (n *Node) Disconnect(slotName string) {
	if _, ok := n.providers[slotName]; ok {
		delete(n.providers, slotName)
		n.notify(slotName)
	}
}

// Provider returns the node bound to the named slot, nil when unbound.
func (n *Node) Provider(slotName string) *Node { return n.providers[slotName] }

// dependsOn reports whether target is reachable through provider edges.
func (n *Node) dependsOn(target *Node) bool {
	for _, p := range n.providers {
		if p == target || p.dependsOn(target) {
			return true
		}
	}
	return false
}

// notify queues a slot-change notification. The queue is drained between
// evaluations, so a rebind made from inside a callback never reenters a
// running job.
func (n *Node) notify(slot string) { n.changed = append(n.changed, slot) }

// DrainChanges returns and clears the queued slot-change notifications.
func (n *Node) DrainChanges() []string {
	out := n.changed
	n.changed = nil
	return out
}

// Prepare evaluates the providers in dependency order and then the node's
// own job, returning the job's result. Results of an earlier Prepare are
// discarded first; shared providers in a diamond are evaluated once.
func (n *Node) Prepare(global *settings.Settings[settings.RunID], cb *Callbacks) (any, error) {
	n.reset()
	return n.eval(global, cb)
}

func (n *Node) reset() {
	n.done = false
	n.result = nil
	for _, p := range n.providers {
		p.reset()
	}
}

func (n *Node) eval(global *settings.Settings[settings.RunID], cb *Callbacks) (any, error) {
	if n.done {
		return n.result, nil
	}
	in := &Inputs{values: make(map[string]any)}
	for _, s := range n.job.Slots() {
		p, ok := n.providers[s.Name]
		if !ok {
			return nil, fmt.Errorf("%w: slot %q of job %q", ErrUnbound, s.Name, n.job.Name())
		}
		v, err := p.eval(global, cb)
		if err != nil {
			return nil, err
		}
		in.values[s.Name] = v
	}
	n.DrainChanges()
	cb.start(n.job)
	v, err := n.job.Evaluate(in, global, cb)
	if err != nil {
		return nil, fmt.Errorf("runner: job %q: %w", n.job.Name(), err)
	}
	n.result = v
	n.done = true
	return v, nil
}
