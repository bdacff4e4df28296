// Package tasks runs periodic maintenance jobs in the background.
package tasks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dalemusser/unigrading/internal/app/system/metrics"
	"github.com/dalemusser/unigrading/internal/app/system/timeouts"
	"go.uber.org/zap"
)

var (
	// ErrUnknownJob is returned by RunOnce for a name nobody registered.
	ErrUnknownJob = errors.New("no such job")
	// ErrBusy is returned by RunOnce while the same job is already running.
	ErrBusy = errors.New("job is already running")
)

// Job is a named unit of maintenance work. Jobs with Interval <= 0 are never
// scheduled and only run through RunOnce.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Runner schedules jobs, one goroutine each. A job never overlaps itself:
// a tick or RunOnce that finds it running is skipped.
type Runner struct {
	logger *zap.Logger
	jobs   []Job
	wg     sync.WaitGroup
	cancel context.CancelFunc

	mu      sync.Mutex
	running map[string]struct{}
}

func New(logger *zap.Logger) *Runner {
	return &Runner{logger: logger, running: make(map[string]struct{})}
}

// Register adds a job. Call before Start.
func (r *Runner) Register(job Job) {
	r.jobs = append(r.jobs, job)
}

// Start runs every scheduled job once right away and then on its interval
// until Stop.
func (r *Runner) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	scheduled := 0
	for _, job := range r.jobs {
		if job.Interval <= 0 {
			continue
		}
		scheduled++
		r.wg.Add(1)
		go r.loop(ctx, job)
	}
	r.logger.Info("background task runner started",
		zap.Int("jobs", len(r.jobs)),
		zap.Int("scheduled", scheduled))
}

// Stop cancels the jobs and waits for them until ctx is done. A job that
// ignores its context makes Stop return ctx.Err().
func (r *Runner) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("background task runner stopped")
		return nil
	case <-ctx.Done():
		r.logger.Warn("background task runner shutdown timed out",
			zap.Strings("still_running", r.busy()))
		return ctx.Err()
	}
}

// RunOnce runs the named job now and returns its error.
func (r *Runner) RunOnce(ctx context.Context, name string) error {
	for _, job := range r.jobs {
		if job.Name == name {
			return r.execute(ctx, job)
		}
	}
	return ErrUnknownJob
}

func (r *Runner) loop(ctx context.Context, job Job) {
	defer r.wg.Done()

	_ = r.execute(ctx, job)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = r.execute(ctx, job)
		}
	}
}

func (r *Runner) claim(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.running[name]; ok {
		return false
	}
	r.running[name] = struct{}{}
	return true
}

func (r *Runner) release(name string) {
	r.mu.Lock()
	delete(r.running, name)
	r.mu.Unlock()
}

func (r *Runner) busy() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.running))
	for n := range r.running {
		names = append(names, n)
	}
	return names
}

// execute runs job under the batch timeout and records the outcome.
func (r *Runner) execute(ctx context.Context, job Job) error {
	if !r.claim(job.Name) {
		r.logger.Debug("job skipped; previous run still going", zap.String("job", job.Name))
		return ErrBusy
	}
	defer r.release(job.Name)

	start := time.Now()
	runCtx, cancel := timeouts.WithTimeout(ctx, timeouts.Batch(), r.logger, job.Name)
	defer cancel()

	err := job.Run(runCtx)
	took := time.Since(start)
	switch {
	case err != nil && ctx.Err() != nil:
		// Shutdown, not failure.
		r.logger.Debug("job cancelled", zap.String("job", job.Name), zap.Duration("duration", took))
	case err != nil:
		metrics.JobRuns.WithLabelValues(job.Name, "error").Inc()
		r.logger.Error("job failed",
			zap.String("job", job.Name),
			zap.Duration("duration", took),
			zap.Error(err))
	default:
		metrics.JobRuns.WithLabelValues(job.Name, "ok").Inc()
		r.logger.Debug("job completed", zap.String("job", job.Name), zap.Duration("duration", took))
	}
	return err
}
