package logger

import (
	"strings"
	"sync"
	"testing"
)

func TestThresholdFilters(t *testing.T) {
	var buf strings.Builder
	l := NewWriter(&buf, Warning)
	Debugf(l, "hidden")
	Infof(l, "also hidden")
	Warnf(l, "shown %d", 1)
	Errorf(l, "shown %d", 2)
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("messages below threshold leaked: %q", out)
	}
	if !strings.Contains(out, "shown 1") || !strings.Contains(out, "shown 2") {
		t.Errorf("messages above threshold missing: %q", out)
	}
}

func TestConcurrentAppends(t *testing.T) {
	var buf strings.Builder
	l := NewWriter(&buf, Info)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			Infof(l, "line")
		}()
	}
	wg.Wait()
	if n := strings.Count(buf.String(), "\n"); n != 20 {
		t.Errorf("wrote %d lines", n)
	}
}

func TestMultiFansOut(t *testing.T) {
	var a, b strings.Builder
	m := Multi{NewWriter(&a, Info), NewWriter(&b, Error)}
	Infof(m, "msg")
	if !strings.Contains(a.String(), "msg") {
		t.Error("first sink missed the message")
	}
	if b.Len() != 0 {
		t.Error("second sink should filter info")
	}
}

func TestNull(t *testing.T) {
	var l Logger = Null{}
	Errorf(l, "dropped") // must not panic
}
