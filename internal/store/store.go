// Package store persists schedules, runs, sources, candidates, dedupe marks,
// locks, and dispatch jobs behind a driver-agnostic interface.
package store

import (
	"context"
	"time"

	"github.com/scoutline/scout-cli/internal/model"
)

// ScheduleFilter specifies criteria for listing schedules.
type ScheduleFilter struct {
	Enabled *bool
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Connector string
	Status    model.RunStatus
	After     time.Time
	Limit     int
	Offset    int
}

// CandidateFilter specifies criteria for listing candidates.
type CandidateFilter struct {
	Channel string
	Status  model.CandidateStatus
	After   time.Time
	Limit   int
	Offset  int
}

// IngestTx is the transactional surface a run executor writes through. Its
// reads see the transaction's own writes, so items ingested earlier in the
// same run participate in dedupe.
type IngestTx interface {
	InsertSource(ctx context.Context, src model.Source) (int64, error)
	InsertCandidate(ctx context.Context, c model.Candidate) (int64, error)
	AddDedupeMark(ctx context.Context, namespace, tokenHash string) error

	SourceHashExists(ctx context.Context, hash string) (bool, error)
	HasDedupeMark(ctx context.Context, namespace, tokenHash string) (bool, error)
	RecentSources(ctx context.Context, channel string, limit int) ([]model.Source, error)
	RecentCandidates(ctx context.Context, channel string, limit int) ([]model.Candidate, error)
}

// Store defines the persistence interface for the scheduling core.
type Store interface {
	// Schedules. EnsureSchedule is insert-if-absent so concurrent sweeps
	// cannot create duplicate rows. AdvanceSchedule resets the failure
	// count; DeferSchedule pushes the due time out after a failed run.
	EnsureSchedule(ctx context.Context, connector, cadence string) error
	GetSchedule(ctx context.Context, connector string) (*model.Schedule, error)
	ListSchedules(ctx context.Context, filter ScheduleFilter) ([]model.Schedule, error)
	SetScheduleEnabled(ctx context.Context, connector string, enabled bool) error
	AdvanceSchedule(ctx context.Context, connector string, lastRun, nextDue time.Time) error
	DeferSchedule(ctx context.Context, connector string, nextDue time.Time, failureCount int) error

	// Runs (append-only; exactly one transition to a terminal state).
	CreateRun(ctx context.Context, connector string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, itemCount int, finishedAt time.Time) error
	FailRun(ctx context.Context, runID string, detail string, finishedAt time.Time) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Ingest runs fn inside a transaction; a returned error rolls back
	// every write made through the IngestTx.
	Ingest(ctx context.Context, fn func(tx IngestTx) error) error

	// Dedupe reads against committed state.
	SourceHashExists(ctx context.Context, hash string) (bool, error)
	HasDedupeMark(ctx context.Context, namespace, tokenHash string) (bool, error)
	RecentSources(ctx context.Context, channel string, limit int) ([]model.Source, error)
	RecentCandidates(ctx context.Context, channel string, limit int) ([]model.Candidate, error)

	// Browse/edit surface.
	ListCandidates(ctx context.Context, filter CandidateFilter) ([]model.Candidate, error)
	UpdateCandidateStatus(ctx context.Context, id int64, status model.CandidateStatus) error

	// Locks: atomic set-if-absent with expiry, plus delete. An expired
	// lock is treated as absent.
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error

	// Jobs: at-least-once dispatch queue. ClaimJob returns nil when the
	// queue is empty; ReleaseJob requeues a claimed job.
	EnqueueJob(ctx context.Context, task, argument string) (string, error)
	ClaimJob(ctx context.Context) (*model.Job, error)
	CompleteJob(ctx context.Context, id string) error
	ReleaseJob(ctx context.Context, id string) error
	CountJobs(ctx context.Context, status model.JobStatus) (int, error)

	// Lifecycle.
	Migrate(ctx context.Context) error
	Close() error
}
