package sched

import (
	"sync"
	"testing"
)

func TestForCoversAllIndices(t *testing.T) {
	s := New(4, 10)
	var mu sync.Mutex
	seen := make(map[int]int)
	s.For(1000, func(i int) {
		mu.Lock()
		seen[i]++
		mu.Unlock()
	})
	if len(seen) != 1000 {
		t.Fatalf("covered %d indices", len(seen))
	}
	for i, n := range seen {
		if n != 1 {
			t.Fatalf("index %d visited %d times", i, n)
		}
	}
}

func TestForChunksDisjoint(t *testing.T) {
	s := New(4, 7)
	covered := make([]bool, 100)
	var mu sync.Mutex
	s.ForChunks(100, func(from, to int) {
		if to-from > 7 {
			t.Errorf("chunk [%d,%d) exceeds granularity", from, to)
		}
		mu.Lock()
		for i := from; i < to; i++ {
			if covered[i] {
				t.Errorf("index %d covered twice", i)
			}
			covered[i] = true
		}
		mu.Unlock()
	})
	for i, c := range covered {
		if !c {
			t.Fatalf("index %d not covered", i)
		}
	}
}

func TestForThreadsBoundedIndex(t *testing.T) {
	s := New(3, 5)
	var mu sync.Mutex
	total := 0
	s.ForThreads(42, func(thread, from, to int) {
		if thread < 0 || thread >= s.Workers() {
			t.Errorf("thread index %d out of range", thread)
		}
		mu.Lock()
		total += to - from
		mu.Unlock()
	})
	if total != 42 {
		t.Errorf("covered %d of 42", total)
	}
}

func TestSerialFallback(t *testing.T) {
	s := Serial()
	order := make([]int, 0, 5)
	s.For(5, func(i int) { order = append(order, i) })
	for i, v := range order {
		if v != i {
			t.Fatalf("serial scheduler must run in order, got %v", order)
		}
	}
	s.ForChunks(0, func(from, to int) { t.Error("empty range must not invoke body") })
}
