// Package scheduler decides which connectors are due and dispatches run jobs
// under per-connector mutual exclusion.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/scoutline/scout-cli/internal/cadence"
	"github.com/scoutline/scout-cli/internal/connector"
	"github.com/scoutline/scout-cli/internal/model"
	"github.com/scoutline/scout-cli/internal/store"
)

// TaskRunConnector is the task name dispatched per due connector; the
// connector name is the job's sole argument.
const TaskRunConnector = "run_connector"

// DefaultLockTTL bounds how long a crashed executor can keep a connector
// unschedulable.
const DefaultLockTTL = 1800 * time.Second

// LockKey returns the mutual-exclusion lock key for a connector.
func LockKey(connector string) string {
	return "connector:" + connector + ":lock"
}

// Locker is the distributed set-if-absent lock substrate.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// Queue dispatches run jobs with at-least-once delivery.
type Queue interface {
	EnqueueJob(ctx context.Context, task, argument string) (string, error)
}

// ScheduleStore is the slice of persistence the sweep needs.
type ScheduleStore interface {
	EnsureSchedule(ctx context.Context, connector, cadence string) error
	ListSchedules(ctx context.Context, filter store.ScheduleFilter) ([]model.Schedule, error)
}

// Options configures a Scheduler.
type Options struct {
	// Waves orders dispatch: members of earlier waves go first; names in
	// no wave follow in their due-set order.
	Waves [][]string
	// LockTTL bounds each acquired lock. Zero means DefaultLockTTL.
	LockTTL time.Duration
}

// Scheduler runs periodic sweeps over the connector registry.
type Scheduler struct {
	registry *connector.Registry
	store    ScheduleStore
	locker   Locker
	queue    Queue
	waves    [][]string
	lockTTL  time.Duration
}

// New creates a Scheduler. The lock is the sole cross-sweep and
// cross-process de-duplication mechanism; the sweep itself keeps no state.
func New(reg *connector.Registry, st ScheduleStore, locker Locker, queue Queue, opts Options) *Scheduler {
	ttl := opts.LockTTL
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &Scheduler{
		registry: reg,
		store:    st,
		locker:   locker,
		queue:    queue,
		waves:    opts.Waves,
		lockTTL:  ttl,
	}
}

// Sweep evaluates every enabled connector once and dispatches a run job for
// each due connector whose lock it wins. Returns the number of dispatched
// jobs. Per-connector failures are logged and isolated; only store-level
// listing failures abort the sweep.
func (s *Scheduler) Sweep(ctx context.Context, now time.Time) (int, error) {
	log := zap.L().With(zap.String("component", "scheduler"))
	now = now.UTC()

	// Bootstrap: registration is self-scheduling.
	for _, name := range s.registry.Names() {
		conn, _ := s.registry.Get(name)
		if err := s.store.EnsureSchedule(ctx, name, conn.DefaultCadence()); err != nil {
			log.Error("schedule bootstrap failed", zap.String("connector", name), zap.Error(err))
		}
	}

	enabled := true
	scheds, err := s.store.ListSchedules(ctx, store.ScheduleFilter{Enabled: &enabled})
	if err != nil {
		return 0, err
	}

	var due []string
	for _, sched := range scheds {
		if _, ok := s.registry.Get(sched.Connector); !ok {
			log.Warn("schedule references unknown connector", zap.String("connector", sched.Connector))
			continue
		}
		dueAt, err := s.dueAt(sched, now)
		if err != nil {
			log.Error("due computation failed",
				zap.String("connector", sched.Connector),
				zap.String("cadence", sched.Cadence),
				zap.Error(err),
			)
			continue
		}
		if !dueAt.After(now) {
			due = append(due, sched.Connector)
		}
	}

	dispatched := 0
	for _, name := range OrderByWaves(due, s.waves) {
		ok, err := s.locker.AcquireLock(ctx, LockKey(name), s.lockTTL)
		if err != nil {
			log.Error("lock acquisition failed", zap.String("connector", name), zap.Error(err))
			continue
		}
		if !ok {
			// Presumed already running or claimed by a concurrent
			// scheduler instance.
			log.Debug("lock held, skipping", zap.String("connector", name))
			continue
		}
		if _, err := s.queue.EnqueueJob(ctx, TaskRunConnector, name); err != nil {
			log.Error("dispatch failed", zap.String("connector", name), zap.Error(err))
			if relErr := s.locker.ReleaseLock(ctx, LockKey(name)); relErr != nil {
				log.Error("lock release failed", zap.String("connector", name), zap.Error(relErr))
			}
			continue
		}
		log.Info("dispatched", zap.String("connector", name))
		dispatched++
	}

	return dispatched, nil
}

// dueAt computes when a schedule is next due. The sweep never mutates the
// schedule; state advances only after the executor confirms work done.
func (s *Scheduler) dueAt(sched model.Schedule, now time.Time) (time.Time, error) {
	if sched.NextDueAt != nil {
		return *sched.NextDueAt, nil
	}
	if sched.LastRunAt != nil {
		return cadence.Next(sched.Cadence, *sched.LastRunAt)
	}
	// Never ran: due on first sweep.
	return now, nil
}
