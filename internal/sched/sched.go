// Package sched provides the parallel-for abstraction used by solvers and
// gravity evaluators. Work is split into contiguous chunks of a configurable
// granularity so that per-particle bodies amortise scheduling overhead.
package sched

import (
	"runtime"

	"github.com/dgravesa/go-parallel/parallel"
)

const defaultGranularity = 1000

// Scheduler runs index ranges across a pool of goroutines.
type Scheduler struct {
	workers     int
	granularity int
}

// New creates a scheduler with the given worker count and granularity in
// particles per task. Zero workers means one per CPU; zero granularity uses
// the default.
func New(workers, granularity int) *Scheduler {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if granularity <= 0 {
		granularity = defaultGranularity
	}
	return &Scheduler{workers: workers, granularity: granularity}
}

// Serial returns a single-worker scheduler, useful in tests and for
// deterministic accumulation.
func Serial() *Scheduler { return &Scheduler{workers: 1, granularity: defaultGranularity} }

func (s *Scheduler) Workers() int     { return s.workers }
func (s *Scheduler) Granularity() int { return s.granularity }

// For invokes fn(i) for every i in [0, n) across the pool.
func (s *Scheduler) For(n int, fn func(i int)) {
	if s.workers == 1 || n < s.granularity {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	parallel.WithNumGoroutines(s.workers).For(n, func(i, _ int) {
		fn(i)
	})
}

// ForChunks invokes fn(from, to) on disjoint ranges covering [0, n), each at
// most one granularity long. No ordering is guaranteed across chunks.
func (s *Scheduler) ForChunks(n int, fn func(from, to int)) {
	chunks := (n + s.granularity - 1) / s.granularity
	if s.workers == 1 || chunks <= 1 {
		if n > 0 {
			fn(0, n)
		}
		return
	}
	parallel.WithNumGoroutines(s.workers).For(chunks, func(c, _ int) {
		from := c * s.granularity
		to := from + s.granularity
		if to > n {
			to = n
		}
		fn(from, to)
	})
}

// ForThreads invokes fn(thread, from, to) with the thread index of the
// goroutine running the chunk, for per-thread accumulation buffers.
func (s *Scheduler) ForThreads(n int, fn func(thread, from, to int)) {
	chunks := (n + s.granularity - 1) / s.granularity
	if s.workers == 1 || chunks <= 1 {
		if n > 0 {
			fn(0, 0, n)
		}
		return
	}
	parallel.WithNumGoroutines(s.workers).For(chunks, func(c, grID int) {
		from := c * s.granularity
		to := from + s.granularity
		if to > n {
			to = n
		}
		fn(grID, from, to)
	})
}
