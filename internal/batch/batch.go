// Package batch runs many generations from a YAML manifest on a worker pool.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/MeKo-Tech/qrimage/internal/generator"
	"github.com/MeKo-Tech/qrimage/internal/output"
	"github.com/MeKo-Tech/qrimage/internal/provider"
)

// ErrSkipped marks jobs that never ran because an earlier job failed.
var ErrSkipped = errors.New("skipped after earlier failure")

// Config holds all configuration for batch processing.
type Config struct {
	// Workers is the pool size; zero means runtime.NumCPU().
	Workers int
	// ContinueOnError keeps processing after a failed job.
	ContinueOnError bool
	// OutputDir overrides the manifest output directory.
	OutputDir string

	Generator generator.Config
	Sink      output.Sink
	Progress  ProgressCallback
}

// JobError reports a failed job.
type JobError struct {
	Index   int
	Keyword string
	Err     error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %d (%s): %v", e.Index+1, e.Keyword, e.Err)
}

func (e *JobError) Unwrap() error { return e.Err }

// JobResult is the outcome of one job.
type JobResult struct {
	Index    int           `json:"index" yaml:"index"`
	Keyword  string        `json:"keyword" yaml:"keyword"`
	Data     string        `json:"data" yaml:"data"`
	Path     string        `json:"path,omitempty" yaml:"path,omitempty"`
	Attempts int           `json:"attempts,omitempty" yaml:"attempts,omitempty"`
	Strategy string        `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	Duration time.Duration `json:"duration_ns" yaml:"duration"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`

	Err error `json:"-" yaml:"-"`
}

// OK reports whether the job produced a validated image.
func (r JobResult) OK() bool { return r.Err == nil }

// Result holds the result of batch processing, in manifest order.
type Result struct {
	Jobs        []JobResult
	Duration    time.Duration
	WorkerCount int
}

// Succeeded counts successful jobs.
func (r *Result) Succeeded() int {
	n := 0
	for _, j := range r.Jobs {
		if j.OK() {
			n++
		}
	}
	return n
}

// Failed counts jobs that ran and failed.
func (r *Result) Failed() int {
	n := 0
	for _, j := range r.Jobs {
		if j.Err != nil && !errors.Is(j.Err, ErrSkipped) {
			n++
		}
	}
	return n
}

// Skipped counts jobs that never ran.
func (r *Result) Skipped() int {
	n := 0
	for _, j := range r.Jobs {
		if errors.Is(j.Err, ErrSkipped) {
			n++
		}
	}
	return n
}

type jobItem struct {
	index int
	job   Job
}

// Run processes every job of m with backgrounds from source. Without
// ContinueOnError the first failure cancels the jobs not yet started and is
// returned as a *JobError alongside the partial result.
func Run(ctx context.Context, m *Manifest, source provider.Source, cfg Config) (*Result, error) {
	if m == nil || len(m.Jobs) == 0 {
		return nil, errors.New("no jobs to run")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	workers := min(cfg.Workers, len(m.Jobs))
	if cfg.Sink == nil {
		cfg.Sink = output.NewFileSink(output.DefaultJPEGQuality)
	}
	progress := cfg.Progress
	if progress == nil {
		progress = NoOpProgressCallback{}
	}
	dir := m.OutputDir
	if cfg.OutputDir != "" {
		dir = cfg.OutputDir
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	progress.OnStart(len(m.Jobs))
	defer progress.OnComplete()

	jobs := make(chan jobItem)
	results := make(chan JobResult, len(m.Jobs))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				results <- runJob(runCtx, item, source, dir, cfg)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, job := range m.Jobs {
			select {
			case jobs <- jobItem{index: i, job: job}:
			case <-runCtx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]JobResult, len(m.Jobs))
	done := make([]bool, len(m.Jobs))
	processed := 0
	for res := range results {
		ordered[res.Index] = res
		done[res.Index] = true
		processed++
		if res.Err != nil {
			progress.OnError(processed, res.Err)
			if !cfg.ContinueOnError {
				cancel()
			}
		}
		progress.OnProgress(processed, len(m.Jobs))
	}

	for i, ok := range done {
		if !ok {
			ordered[i] = JobResult{Index: i, Keyword: m.Jobs[i].Keyword, Data: m.Jobs[i].Data, Err: ErrSkipped, Error: ErrSkipped.Error()}
		}
	}

	result := &Result{Jobs: ordered, Duration: time.Since(start), WorkerCount: workers}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	if !cfg.ContinueOnError {
		for _, jr := range ordered {
			if jr.Err != nil && !errors.Is(jr.Err, ErrSkipped) {
				return result, &JobError{Index: jr.Index, Keyword: jr.Keyword, Err: jr.Err}
			}
		}
	}
	return result, nil
}

func runJob(ctx context.Context, item jobItem, source provider.Source, dir string, cfg Config) (jr JobResult) {
	jr = JobResult{Index: item.index, Keyword: item.job.Keyword, Data: item.job.Data}
	start := time.Now()
	defer func() {
		jr.Duration = time.Since(start)
		if jr.Err != nil {
			jr.Error = jr.Err.Error()
		}
	}()

	if err := ctx.Err(); err != nil {
		jr.Err = ErrSkipped
		return jr
	}

	gc, err := item.job.apply(cfg.Generator)
	if err != nil {
		jr.Err = err
		return jr
	}

	path := item.job.outputPath(dir)
	gen := generator.New(gc, source, generator.WithSink(cfg.Sink))
	res, err := gen.GenerateAndSave(ctx, item.job.Keyword, item.job.Data, path)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			jr.Err = ErrSkipped
			return jr
		}
		slog.Warn("Batch job failed", "job", item.index+1, "keyword", item.job.Keyword, "error", err)
		jr.Err = err
		return jr
	}

	jr.Path = res.Path
	jr.Attempts = len(res.Report.Attempts)
	jr.Strategy = res.Report.Matched().Strategy
	return jr
}
