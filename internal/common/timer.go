// Package common provides small shared helpers.
package common

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// StageTimer records the duration of named stages in the order they ran.
type StageTimer struct {
	mu     sync.Mutex
	start  time.Time
	order  []string
	stages map[string]time.Duration
}

// NewStageTimer creates a timer whose total starts now.
func NewStageTimer() *StageTimer {
	return &StageTimer{start: time.Now(), stages: make(map[string]time.Duration)}
}

// Start begins timing a stage. The returned function stops it and returns
// the elapsed time; repeated stages accumulate.
func (t *StageTimer) Start(name string) func() time.Duration {
	begin := time.Now()
	return func() time.Duration {
		d := time.Since(begin)
		t.mu.Lock()
		defer t.mu.Unlock()
		if _, ok := t.stages[name]; !ok {
			t.order = append(t.order, name)
		}
		t.stages[name] += d
		return d
	}
}

// Stage returns the recorded duration of name.
func (t *StageTimer) Stage(name string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stages[name]
}

// Stages returns a copy of all recorded durations.
func (t *StageTimer) Stages() map[string]time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]time.Duration, len(t.stages))
	for k, v := range t.stages {
		out[k] = v
	}
	return out
}

// Total returns the wall time since the timer was created.
func (t *StageTimer) Total() time.Duration {
	return time.Since(t.start)
}

// String formats stages as "name=1ms name=2ms".
func (t *StageTimer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	parts := make([]string, 0, len(t.order))
	for _, name := range t.order {
		parts = append(parts, fmt.Sprintf("%s=%v", name, t.stages[name].Round(time.Microsecond)))
	}
	return strings.Join(parts, " ")
}
