package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scoutline/scout-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetSchedule_Missing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT connector, cadence, last_run_at, next_due_at, enabled, failure_count`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	sched, err := s.GetSchedule(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, sched)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_EnsureSchedule(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO schedules .+ ON CONFLICT \(connector\) DO NOTHING`).
		WithArgs("reddit", "*/30 * * * *").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.EnsureSchedule(context.Background(), "reddit", "*/30 * * * *"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AdvanceSchedule_Missing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE schedules SET last_run_at`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.AdvanceSchedule(context.Background(), "ghost", time.Now(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AcquireLock(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO locks .+ ON CONFLICT \(key\) DO UPDATE`).
		WithArgs("connector:stub:lock", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	ok, err := s.AcquireLock(context.Background(), "connector:stub:lock", 30*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec(`INSERT INTO locks .+ ON CONFLICT \(key\) DO UPDATE`).
		WithArgs("connector:stub:lock", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	ok, err = s.AcquireLock(context.Background(), "connector:stub:lock", 30*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok) // held by another scheduler instance
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ClaimJob_EmptyQueue(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`UPDATE jobs SET status`).
		WithArgs(string(model.JobStatusClaimed), string(model.JobStatusQueued)).
		WillReturnError(pgx.ErrNoRows)

	j, err := s.ClaimJob(context.Background())
	require.NoError(t, err)
	assert.Nil(t, j)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SourceHashExists(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM sources WHERE content_hash`).
		WithArgs("dup").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := s.SourceHashExists(context.Background(), "dup")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Ingest_RollsBackOnError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := s.Ingest(context.Background(), func(tx IngestTx) error {
		return assert.AnError
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Ingest_Commits(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO sources`).
		WithArgs("stub", nil, nil, pgxmock.AnyArg(), "h1", nil, "{}").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectCommit()

	err := s.Ingest(context.Background(), func(tx IngestTx) error {
		id, err := tx.InsertSource(context.Background(), model.Source{
			Channel:     "stub",
			FetchedAt:   time.Now().UTC(),
			ContentHash: "h1",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(7), id)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
