package batch

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressCallback receives job progress during a batch run. Calls come
// from the collecting goroutine only, one at a time.
type ProgressCallback interface {
	// OnStart is called once with the number of jobs.
	OnStart(total int)
	// OnProgress is called after every finished job.
	OnProgress(done, total int)
	// OnComplete is called when the run ends, also after a failure.
	OnComplete()
	// OnError is called for each failed job before its OnProgress.
	OnError(done int, err error)
}

// NoOpProgressCallback discards all progress.
type NoOpProgressCallback struct{}

func (NoOpProgressCallback) OnStart(int)        {}
func (NoOpProgressCallback) OnProgress(int, int) {}
func (NoOpProgressCallback) OnComplete()        {}
func (NoOpProgressCallback) OnError(int, error) {}

// ConsoleProgressCallback draws a single-line progress bar.
type ConsoleProgressCallback struct {
	writer io.Writer
	prefix string
	width  int

	mu       sync.Mutex
	start    time.Time
	failures int
}

// NewConsoleProgressCallback creates a console reporter writing to w, or
// stderr when w is nil.
func NewConsoleProgressCallback(w io.Writer, prefix string) *ConsoleProgressCallback {
	if w == nil {
		w = os.Stderr
	}
	return &ConsoleProgressCallback{writer: w, prefix: prefix, width: 30}
}

// WithWidth sets the bar width in cells.
func (c *ConsoleProgressCallback) WithWidth(width int) *ConsoleProgressCallback {
	c.width = max(1, width)
	return c
}

func (c *ConsoleProgressCallback) OnStart(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.start = time.Now()
	c.failures = 0
	_, _ = fmt.Fprintf(c.writer, "%s%d jobs\n", c.prefix, total)
}

func (c *ConsoleProgressCallback) OnProgress(done, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if total <= 0 {
		return
	}
	filled := c.width * done / total
	bar := strings.Repeat("#", filled) + strings.Repeat(".", c.width-filled)
	line := fmt.Sprintf("\r%s[%s] %d/%d", c.prefix, bar, done, total)
	if c.failures > 0 {
		line += fmt.Sprintf(" (%d failed)", c.failures)
	}
	_, _ = fmt.Fprint(c.writer, line)
}

func (c *ConsoleProgressCallback) OnComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, _ = fmt.Fprintf(c.writer, "\n%sdone in %v\n", c.prefix, time.Since(c.start).Round(time.Millisecond))
}

func (c *ConsoleProgressCallback) OnError(_ int, _ error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failures++
}

// LogProgressCallback reports progress through slog.
type LogProgressCallback struct {
	logger *slog.Logger
	start  time.Time
}

// NewLogProgressCallback creates a log reporter; nil uses slog.Default().
func NewLogProgressCallback(logger *slog.Logger) *LogProgressCallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProgressCallback{logger: logger}
}

func (l *LogProgressCallback) OnStart(total int) {
	l.start = time.Now()
	l.logger.Info("Batch started", "jobs", total)
}

func (l *LogProgressCallback) OnProgress(done, total int) {
	l.logger.Debug("Batch progress", "done", done, "total", total)
}

func (l *LogProgressCallback) OnComplete() {
	l.logger.Info("Batch completed", "elapsed", time.Since(l.start).Round(time.Millisecond))
}

func (l *LogProgressCallback) OnError(done int, err error) {
	l.logger.Error("Batch job failed", "done", done, "error", err)
}

// MultiProgressCallback fans progress out to several callbacks.
type MultiProgressCallback []ProgressCallback

func (m MultiProgressCallback) OnStart(total int) {
	for _, cb := range m {
		cb.OnStart(total)
	}
}

func (m MultiProgressCallback) OnProgress(done, total int) {
	for _, cb := range m {
		cb.OnProgress(done, total)
	}
}

func (m MultiProgressCallback) OnComplete() {
	for _, cb := range m {
		cb.OnComplete()
	}
}

func (m MultiProgressCallback) OnError(done int, err error) {
	for _, cb := range m {
		cb.OnError(done, err)
	}
}
