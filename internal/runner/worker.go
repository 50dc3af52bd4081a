package runner

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/scoutline/scout-cli/internal/model"
	"github.com/scoutline/scout-cli/internal/scheduler"
	"github.com/scoutline/scout-cli/internal/store"
)

// WorkerOptions configures the claim loop.
type WorkerOptions struct {
	Concurrency  int
	PollInterval time.Duration
}

// Worker claims dispatched jobs and drives the executor. Multiple workers
// may run against the same store; the jobs table hands each job to exactly
// one claimant.
type Worker struct {
	store store.Store
	exec  *Executor
	opts  WorkerOptions
}

// NewWorker creates a Worker.
func NewWorker(st store.Store, exec *Executor, opts WorkerOptions) *Worker {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	return &Worker{store: st, exec: exec, opts: opts}
}

// Run polls the queue until ctx is cancelled. Each claim loop processes one
// job at a time; Concurrency controls how many loops run in parallel.
func (w *Worker) Run(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "worker"))
	log.Info("worker started",
		zap.Int("concurrency", w.opts.Concurrency),
		zap.Duration("poll_interval", w.opts.PollInterval),
	)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.opts.Concurrency; i++ {
		g.Go(func() error {
			return w.loop(ctx, log)
		})
	}
	err := g.Wait()
	log.Info("worker stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *Worker) loop(ctx context.Context, log *zap.Logger) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		job, err := w.store.ClaimJob(ctx)
		if err != nil {
			log.Error("claim failed", zap.Error(err))
			if !w.sleep(ctx) {
				return ctx.Err()
			}
			continue
		}
		if job == nil {
			if !w.sleep(ctx) {
				return ctx.Err()
			}
			continue
		}

		w.process(ctx, job, log)
	}
}

// process runs one claimed job to completion. A shutdown mid-run requeues
// the job so another worker picks it up; any other outcome completes it,
// because run-level failures are recorded on the run and retried through
// the schedule, not the queue.
func (w *Worker) process(ctx context.Context, job *model.Job, log *zap.Logger) {
	log = log.With(zap.String("job_id", job.ID), zap.String("task", job.Task))

	if job.Task != scheduler.TaskRunConnector {
		log.Error("unknown task, dropping job")
		w.finishJob(ctx, job.ID, log)
		return
	}

	err := w.exec.Execute(ctx, job.Argument)
	if err != nil && ctx.Err() != nil {
		if relErr := w.store.ReleaseJob(context.WithoutCancel(ctx), job.ID); relErr != nil {
			log.Error("job requeue failed", zap.Error(relErr))
		}
		return
	}
	if err != nil {
		log.Warn("job finished with run failure", zap.Error(err))
	}
	w.finishJob(ctx, job.ID, log)
}

func (w *Worker) finishJob(ctx context.Context, id string, log *zap.Logger) {
	if err := w.store.CompleteJob(context.WithoutCancel(ctx), id); err != nil {
		log.Error("job completion failed", zap.Error(err))
	}
}

// sleep waits one poll interval; false means the context ended first.
func (w *Worker) sleep(ctx context.Context) bool {
	t := time.NewTimer(w.opts.PollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
