package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/scoutline/scout-cli/internal/model"
	"github.com/scoutline/scout-cli/internal/store"
)

// MetricsSnapshot holds a point-in-time view of system health.
type MetricsSnapshot struct {
	// Run metrics (within lookback window).
	RunsTotal     int     `json:"runs_total"`
	RunsSuccess   int     `json:"runs_success"`
	RunsFailed    int     `json:"runs_failed"`
	RunsRunning   int     `json:"runs_running"`
	RunFailRate   float64 `json:"run_fail_rate"`
	ItemsIngested int     `json:"items_ingested"`

	// Candidate review backlog (all time).
	CandidatesPending  int `json:"candidates_pending"`
	CandidatesApproved int `json:"candidates_approved"`

	// Schedule health.
	SchedulesEnabled int `json:"schedules_enabled"`
	SchedulesFailing int `json:"schedules_failing"`

	// Dispatch queue depth.
	JobsQueued  int `json:"jobs_queued"`
	JobsClaimed int `json:"jobs_claimed"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from the store.
type Collector struct {
	store store.Store
}

// NewCollector creates a new metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot of system metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.store.ListRuns(ctx, store.RunFilter{
		After: cutoff,
		Limit: 10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.RunsTotal = len(runs)
	for _, r := range runs {
		switch r.Status {
		case model.RunStatusSuccess:
			snap.RunsSuccess++
			snap.ItemsIngested += r.ItemCount
		case model.RunStatusError:
			snap.RunsFailed++
		case model.RunStatusRunning:
			snap.RunsRunning++
		}
	}
	if finished := snap.RunsSuccess + snap.RunsFailed; finished > 0 {
		snap.RunFailRate = float64(snap.RunsFailed) / float64(finished)
	}

	pending, err := c.store.ListCandidates(ctx, store.CandidateFilter{Status: model.CandidateStatusPending, Limit: 10000})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list pending candidates")
	}
	snap.CandidatesPending = len(pending)

	approved, err := c.store.ListCandidates(ctx, store.CandidateFilter{Status: model.CandidateStatusApproved, Limit: 10000})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list approved candidates")
	}
	snap.CandidatesApproved = len(approved)

	enabled := true
	scheds, err := c.store.ListSchedules(ctx, store.ScheduleFilter{Enabled: &enabled})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list schedules")
	}
	snap.SchedulesEnabled = len(scheds)
	for _, s := range scheds {
		if s.FailureCount > 0 {
			snap.SchedulesFailing++
		}
	}

	queued, err := c.store.CountJobs(ctx, model.JobStatusQueued)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count queued jobs")
	}
	snap.JobsQueued = queued

	claimed, err := c.store.CountJobs(ctx, model.JobStatusClaimed)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count claimed jobs")
	}
	snap.JobsClaimed = claimed

	return snap, nil
}
