package runner

import (
	"github.com/regolith-sim/regolith/internal/stats"
	"github.com/regolith-sim/regolith/internal/storage"
)

// Callbacks observe a run. All fields are optional; a nil Callbacks is
// valid everywhere one is accepted. ShouldAbort is polled cooperatively at
// batch boundaries, so a pending abort takes effect at the next timestep.
type Callbacks struct {
	OnStart     func(job Job)
	OnEnd       func(st *storage.Storage, rs *stats.Stats)
	OnTimeStep  func(st *storage.Storage, rs *stats.Stats)
	ShouldAbort func() bool
}

func (c *Callbacks) start(job Job) {
	if c != nil && c.OnStart != nil {
		c.OnStart(job)
	}
}

func (c *Callbacks) end(st *storage.Storage, rs *stats.Stats) {
	if c != nil && c.OnEnd != nil {
		c.OnEnd(st, rs)
	}
}

func (c *Callbacks) timeStep(st *storage.Storage, rs *stats.Stats) {
	if c != nil && c.OnTimeStep != nil {
		c.OnTimeStep(st, rs)
	}
}

func (c *Callbacks) aborted() bool {
	return c != nil && c.ShouldAbort != nil && c.ShouldAbort()
}
