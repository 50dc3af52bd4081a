// Package runner executes dispatched connector runs: fetch, dedupe, extract,
// score, persist, then advance the connector's schedule.
package runner

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/scoutline/scout-cli/internal/cadence"
	"github.com/scoutline/scout-cli/internal/connector"
	"github.com/scoutline/scout-cli/internal/dedupe"
	"github.com/scoutline/scout-cli/internal/model"
	"github.com/scoutline/scout-cli/internal/scheduler"
	"github.com/scoutline/scout-cli/internal/scoring"
	"github.com/scoutline/scout-cli/internal/store"
)

// ScoreBreakdownKey is the candidate metadata key holding the persisted
// score component breakdown.
const ScoreBreakdownKey = "score_breakdown"

// Options configures an Executor.
type Options struct {
	// Backoff controls rescheduling after a failed run.
	Backoff scheduler.BackoffConfig
	// FetchLimiter paces connector fetches across the worker. Nil means
	// no pacing.
	FetchLimiter *rate.Limiter
}

// Executor runs one connector end to end. The scheduler acquires the
// connector lock before dispatch; the executor releases it when the run
// reaches a terminal state.
type Executor struct {
	store    store.Store
	registry *connector.Registry
	scorer   *scoring.Engine
	backoff  scheduler.BackoffConfig
	limiter  *rate.Limiter

	now func() time.Time
}

// New creates an Executor.
func New(st store.Store, reg *connector.Registry, scorer *scoring.Engine, opts Options) *Executor {
	return &Executor{
		store:    st,
		registry: reg,
		scorer:   scorer,
		backoff:  opts.Backoff,
		limiter:  opts.FetchLimiter,
		now:      time.Now,
	}
}

// Execute runs the named connector once and records the outcome. The run
// row reaches exactly one terminal state; the schedule advances only on
// success. The connector lock is released on every path.
func (e *Executor) Execute(ctx context.Context, name string) error {
	log := zap.L().With(zap.String("component", "runner"), zap.String("connector", name))

	defer func() {
		// Release even after a failed run so the next sweep can retry
		// without waiting out the lock TTL.
		if err := e.store.ReleaseLock(context.WithoutCancel(ctx), scheduler.LockKey(name)); err != nil {
			log.Error("lock release failed", zap.Error(err))
		}
	}()

	conn, ok := e.registry.Get(name)
	if !ok {
		return eris.Errorf("runner: unknown connector %q", name)
	}

	if err := e.store.EnsureSchedule(ctx, name, conn.DefaultCadence()); err != nil {
		return eris.Wrap(err, "runner: ensure schedule")
	}
	sched, err := e.store.GetSchedule(ctx, name)
	if err != nil {
		return eris.Wrap(err, "runner: load schedule")
	}

	run, err := e.store.CreateRun(ctx, name)
	if err != nil {
		return eris.Wrap(err, "runner: create run")
	}
	log = log.With(zap.String("run_id", run.ID))
	log.Info("run started")

	accepted, runErr := e.ingest(ctx, conn, sched.LastRunAt, log)
	finished := e.now().UTC()

	if runErr != nil {
		// Bookkeeping writes survive cancellation so the run row still
		// reaches a terminal state when a shutdown interrupts the run.
		bctx := context.WithoutCancel(ctx)
		if err := e.store.FailRun(bctx, run.ID, eris.ToString(runErr, true), finished); err != nil {
			log.Error("recording run failure failed", zap.Error(err))
		}
		e.recordFailure(bctx, name, sched.FailureCount+1, finished, log)
		log.Warn("run failed", zap.Error(runErr))
		return runErr
	}

	if err := e.store.CompleteRun(ctx, run.ID, accepted, finished); err != nil {
		return eris.Wrap(err, "runner: complete run")
	}
	next, err := cadence.Next(sched.Cadence, finished)
	if err != nil {
		return eris.Wrapf(err, "runner: cadence %q", sched.Cadence)
	}
	if err := e.store.AdvanceSchedule(ctx, name, finished, next); err != nil {
		return eris.Wrap(err, "runner: advance schedule")
	}
	log.Info("run complete", zap.Int("items", accepted), zap.Time("next_due", next))
	return nil
}

// ingest fetches, dedupes, extracts, and scores inside one transaction so a
// mid-run failure leaves no partial writes.
func (e *Executor) ingest(ctx context.Context, conn connector.Connector, since *time.Time, log *zap.Logger) (int, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return 0, eris.Wrap(err, "runner: fetch pacing")
		}
	}

	sources, err := fetchSources(ctx, conn, since)
	if err != nil {
		return 0, err
	}

	accepted := 0
	err = e.store.Ingest(ctx, func(tx store.IngestTx) error {
		dd := dedupe.New(tx)
		for _, raw := range sources {
			n, err := e.ingestSource(ctx, tx, dd, conn, raw, log)
			if err != nil {
				return err
			}
			accepted += n
		}
		return nil
	})
	if err != nil {
		accepted = 0
	}
	return accepted, err
}

// ingestSource persists one raw source and its extracted candidates,
// returning how many candidates were accepted.
func (e *Executor) ingestSource(ctx context.Context, tx store.IngestTx, dd *dedupe.Engine, conn connector.Connector, raw connector.RawSource, log *zap.Logger) (int, error) {
	dup, reason, err := dd.CheckSource(ctx, raw)
	if err != nil {
		return 0, err
	}
	if dup {
		log.Debug("duplicate source skipped",
			zap.String("channel", raw.Channel),
			zap.String("reason", reason),
		)
		return 0, nil
	}

	fetchedAt := raw.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = e.now().UTC()
	}
	srcID, err := tx.InsertSource(ctx, model.Source{
		Channel:     raw.Channel,
		URL:         raw.URL,
		Kind:        raw.Kind,
		FetchedAt:   fetchedAt,
		ContentHash: raw.ContentHash,
		RawBlobPtr:  raw.RawBlobPtr,
		Meta:        raw.Meta,
	})
	if err != nil {
		return 0, eris.Wrap(err, "runner: insert source")
	}
	if tok, ok := dedupe.Token(raw.Meta); ok {
		if err := tx.AddDedupeMark(ctx, dedupe.NamespaceSource, dedupe.TokenHash(tok)); err != nil {
			return 0, eris.Wrap(err, "runner: mark source token")
		}
	}

	cands, err := extractCandidates(ctx, conn, raw)
	if err != nil {
		return 0, err
	}

	accepted := 0
	for _, rc := range cands {
		channel := rc.Channel
		if channel == "" {
			channel = raw.Channel
		}
		rc.Channel = channel

		dup, reason, err := dd.CheckCandidate(ctx, rc)
		if err != nil {
			return 0, err
		}
		if dup {
			log.Debug("duplicate candidate skipped",
				zap.String("name", rc.Name),
				zap.String("reason", reason),
			)
			continue
		}

		score, breakdown := e.scorer.Score(channel, rc.Meta)
		meta := rc.Meta
		if meta == nil {
			meta = make(map[string]any, 1)
		}
		meta[ScoreBreakdownKey] = map[string]any{
			"institutional": breakdown.Institutional,
			"community":     breakdown.Community,
			"social":        breakdown.Social,
			"recency":       breakdown.Recency,
		}

		if _, err := tx.InsertCandidate(ctx, model.Candidate{
			SourceID: srcID,
			Name:     rc.Name,
			Channel:  channel,
			Evidence: rc.Evidence,
			Meta:     meta,
			Status:   model.CandidateStatusPending,
			Score:    score,
		}); err != nil {
			return 0, eris.Wrap(err, "runner: insert candidate")
		}
		if tok, ok := dedupe.Token(rc.Meta); ok {
			if err := tx.AddDedupeMark(ctx, dedupe.NamespaceCandidate, dedupe.TokenHash(tok)); err != nil {
				return 0, eris.Wrap(err, "runner: mark candidate token")
			}
		}
		accepted++
	}
	return accepted, nil
}

// recordFailure bumps the schedule's failure count. Under the "none" policy
// the due time snaps to the failure instant, so the connector is retried on
// the very next sweep.
func (e *Executor) recordFailure(ctx context.Context, name string, failures int, finished time.Time, log *zap.Logger) {
	nextDue := finished
	if delay := e.backoff.Delay(failures); delay > 0 {
		nextDue = finished.Add(delay)
	}
	if err := e.store.DeferSchedule(ctx, name, nextDue, failures); err != nil {
		log.Error("defer schedule failed", zap.Error(err))
	}
}

// fetchSources calls Fetch with panic containment; a panicking connector
// fails its own run instead of taking the worker down.
func fetchSources(ctx context.Context, conn connector.Connector, since *time.Time) (sources []connector.RawSource, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("runner: connector %s panicked in fetch: %v", conn.Name(), r)
		}
	}()
	sources, err = conn.Fetch(ctx, since)
	if err != nil {
		return nil, eris.Wrapf(err, "runner: fetch %s", conn.Name())
	}
	return sources, nil
}

// extractCandidates calls Extract with panic containment.
func extractCandidates(ctx context.Context, conn connector.Connector, src connector.RawSource) (cands []connector.RawCandidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("runner: connector %s panicked in extract: %v", conn.Name(), r)
		}
	}()
	cands, err = conn.Extract(ctx, src)
	if err != nil {
		return nil, eris.Wrapf(err, "runner: extract %s", conn.Name())
	}
	return cands, nil
}
