package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scoutline/scout-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func ingestSource(t *testing.T, st *SQLiteStore, src model.Source) int64 {
	t.Helper()
	var id int64
	require.NoError(t, st.Ingest(context.Background(), func(tx IngestTx) error {
		var err error
		id, err = tx.InsertSource(context.Background(), src)
		return err
	}))
	return id
}

// --- Schedules ---

func TestSQLite_EnsureSchedule_InsertIfAbsent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.EnsureSchedule(ctx, "reddit", "*/30 * * * *"))

	// Second call with a different cadence must not overwrite.
	require.NoError(t, st.EnsureSchedule(ctx, "reddit", "0 0 * * *"))

	sched, err := st.GetSchedule(ctx, "reddit")
	require.NoError(t, err)
	require.NotNil(t, sched)
	assert.Equal(t, "*/30 * * * *", sched.Cadence)
	assert.True(t, sched.Enabled)
	assert.Nil(t, sched.LastRunAt)
	assert.Nil(t, sched.NextDueAt)
	assert.Zero(t, sched.FailureCount)
}

func TestSQLite_GetSchedule_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	sched, err := st.GetSchedule(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, sched)
}

func TestSQLite_AdvanceSchedule(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.EnsureSchedule(ctx, "events", "0 * * * *"))
	require.NoError(t, st.DeferSchedule(ctx, "events", time.Now().UTC().Add(time.Hour), 3))

	lastRun := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	nextDue := time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)
	require.NoError(t, st.AdvanceSchedule(ctx, "events", lastRun, nextDue))

	sched, err := st.GetSchedule(ctx, "events")
	require.NoError(t, err)
	assert.Equal(t, lastRun, sched.LastRunAt.UTC())
	assert.Equal(t, nextDue, sched.NextDueAt.UTC())
	assert.Zero(t, sched.FailureCount) // success resets backoff
}

func TestSQLite_AdvanceSchedule_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)
	err := st.AdvanceSchedule(context.Background(), "ghost", time.Now(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule not found")
}

func TestSQLite_ListSchedules_EnabledFilter(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.EnsureSchedule(ctx, "a", "* * * * *"))
	require.NoError(t, st.EnsureSchedule(ctx, "b", "* * * * *"))
	require.NoError(t, st.SetScheduleEnabled(ctx, "b", false))

	enabled := true
	scheds, err := st.ListSchedules(ctx, ScheduleFilter{Enabled: &enabled})
	require.NoError(t, err)
	require.Len(t, scheds, 1)
	assert.Equal(t, "a", scheds[0].Connector)

	all, err := st.ListSchedules(ctx, ScheduleFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

// --- Runs ---

func TestSQLite_RunLifecycle_Success(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "stub")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	finished := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, st.CompleteRun(ctx, run.ID, 3, finished))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusSuccess, got.Status)
	assert.Equal(t, 3, got.ItemCount)
	require.NotNil(t, got.FinishedAt)
	assert.Equal(t, finished, got.FinishedAt.UTC())
}

func TestSQLite_RunLifecycle_SingleTerminalTransition(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "stub")
	require.NoError(t, err)
	require.NoError(t, st.FailRun(ctx, run.ID, "fetch: boom", time.Now().UTC()))

	// A second terminal transition must not land.
	err = st.CompleteRun(ctx, run.ID, 1, time.Now().UTC())
	require.Error(t, err)

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusError, got.Status)
	assert.Contains(t, got.Error, "boom")
}

func TestSQLite_ListRuns_Filters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	r1, err := st.CreateRun(ctx, "reddit")
	require.NoError(t, err)
	require.NoError(t, st.CompleteRun(ctx, r1.ID, 2, time.Now().UTC()))
	_, err = st.CreateRun(ctx, "events")
	require.NoError(t, err)

	runs, err := st.ListRuns(ctx, RunFilter{Connector: "reddit"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "reddit", runs[0].Connector)

	runs, err = st.ListRuns(ctx, RunFilter{Status: model.RunStatusRunning})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "events", runs[0].Connector)
}

// --- Ingest ---

func TestSQLite_Ingest_CommitsSourcesAndCandidates(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	err := st.Ingest(ctx, func(tx IngestTx) error {
		srcID, err := tx.InsertSource(ctx, model.Source{
			Channel:     "stub",
			URL:         "https://unique.example",
			Kind:        "html",
			FetchedAt:   time.Now().UTC(),
			ContentHash: "h1",
			Meta:        map[string]any{"title": "Unique"},
		})
		if err != nil {
			return err
		}
		_, err = tx.InsertCandidate(ctx, model.Candidate{
			SourceID: srcID,
			Name:     "New Talent",
			Channel:  "stub",
			Evidence: "profile",
			Score:    40,
			Meta:     map[string]any{"score_breakdown": map[string]any{"community": 30.0}},
		})
		if err != nil {
			return err
		}
		return tx.AddDedupeMark(ctx, "candidate", "deadbeef")
	})
	require.NoError(t, err)

	exists, err := st.SourceHashExists(ctx, "h1")
	require.NoError(t, err)
	assert.True(t, exists)

	marked, err := st.HasDedupeMark(ctx, "candidate", "deadbeef")
	require.NoError(t, err)
	assert.True(t, marked)

	cands, err := st.RecentCandidates(ctx, "stub", 50)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, "New Talent", cands[0].Name)
	assert.Equal(t, model.CandidateStatusPending, cands[0].Status)
	assert.Equal(t, 40.0, cands[0].Score)
	assert.Contains(t, cands[0].Meta, "score_breakdown")
}

func TestSQLite_Ingest_RollsBackOnError(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	err := st.Ingest(ctx, func(tx IngestTx) error {
		if _, err := tx.InsertSource(ctx, model.Source{
			Channel:   "stub",
			FetchedAt: time.Now().UTC(),
		}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.Error(t, err)

	sources, err := st.RecentSources(ctx, "stub", 25)
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestSQLite_Ingest_TxSeesOwnWrites(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	err := st.Ingest(ctx, func(tx IngestTx) error {
		if _, err := tx.InsertSource(ctx, model.Source{
			Channel:     "stub",
			FetchedAt:   time.Now().UTC(),
			ContentHash: "batch-dup",
		}); err != nil {
			return err
		}
		exists, err := tx.SourceHashExists(ctx, "batch-dup")
		if err != nil {
			return err
		}
		assert.True(t, exists)
		return nil
	})
	require.NoError(t, err)
}

// --- Dedupe reads ---

func TestSQLite_RecentSources_WindowAndOrder(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		ingestSource(t, st, model.Source{
			Channel:   "events",
			URL:       "https://example.com/" + string(rune('a'+i)),
			FetchedAt: time.Now().UTC(),
		})
	}

	recent, err := st.RecentSources(ctx, "events", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	// Newest first.
	assert.Equal(t, "https://example.com/d", recent[0].URL)
	assert.Equal(t, "https://example.com/c", recent[1].URL)
}

// --- Candidates ---

func TestSQLite_UpdateCandidateStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	srcID := ingestSource(t, st, model.Source{Channel: "stub", FetchedAt: time.Now().UTC()})
	var candID int64
	require.NoError(t, st.Ingest(ctx, func(tx IngestTx) error {
		var err error
		candID, err = tx.InsertCandidate(ctx, model.Candidate{SourceID: srcID, Name: "X", Channel: "stub"})
		return err
	}))

	require.NoError(t, st.UpdateCandidateStatus(ctx, candID, model.CandidateStatusApproved))

	cands, err := st.ListCandidates(ctx, CandidateFilter{Status: model.CandidateStatusApproved})
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, candID, cands[0].ID)

	err = st.UpdateCandidateStatus(ctx, 9999, model.CandidateStatusDismissed)
	require.Error(t, err)
}

// --- Locks ---

func TestSQLite_AcquireLock_MutualExclusion(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	ok, err := st.AcquireLock(ctx, "connector:stub:lock", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = st.AcquireLock(ctx, "connector:stub:lock", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.ReleaseLock(ctx, "connector:stub:lock"))

	ok, err = st.AcquireLock(ctx, "connector:stub:lock", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSQLite_AcquireLock_ExpiredLockIsReacquirable(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	// Simulates a crashed executor whose lock TTL has lapsed.
	ok, err := st.AcquireLock(ctx, "connector:stub:lock", -time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = st.AcquireLock(ctx, "connector:stub:lock", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

// --- Jobs ---

func TestSQLite_JobQueue_FIFOClaim(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.EnqueueJob(ctx, "run_connector", "beta")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond) // distinct created_at for ordering
	_, err = st.EnqueueJob(ctx, "run_connector", "alpha")
	require.NoError(t, err)

	j1, err := st.ClaimJob(ctx)
	require.NoError(t, err)
	require.NotNil(t, j1)
	assert.Equal(t, "beta", j1.Argument)
	assert.Equal(t, model.JobStatusClaimed, j1.Status)
	assert.Equal(t, 1, j1.Attempts)

	j2, err := st.ClaimJob(ctx)
	require.NoError(t, err)
	require.NotNil(t, j2)
	assert.Equal(t, "alpha", j2.Argument)

	j3, err := st.ClaimJob(ctx)
	require.NoError(t, err)
	assert.Nil(t, j3)

	require.NoError(t, st.CompleteJob(ctx, j1.ID))
	require.NoError(t, st.ReleaseJob(ctx, j2.ID))

	// Released job is claimable again with a bumped attempt count.
	j4, err := st.ClaimJob(ctx)
	require.NoError(t, err)
	require.NotNil(t, j4)
	assert.Equal(t, j2.ID, j4.ID)
	assert.Equal(t, 2, j4.Attempts)

	queued, err := st.CountJobs(ctx, model.JobStatusQueued)
	require.NoError(t, err)
	assert.Zero(t, queued)
}
