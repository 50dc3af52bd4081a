package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/scoutline/scout-cli/internal/model"
)

// Pool abstracts pgxpool.Pool so tests can substitute pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS schedules (
	connector     TEXT PRIMARY KEY,
	cadence       TEXT NOT NULL,
	last_run_at   TIMESTAMPTZ,
	next_due_at   TIMESTAMPTZ,
	enabled       BOOLEAN NOT NULL DEFAULT TRUE,
	failure_count INT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS runs (
	id          UUID PRIMARY KEY,
	connector   TEXT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	status      TEXT NOT NULL DEFAULT 'running',
	item_count  INT NOT NULL DEFAULT 0,
	error       TEXT
);

CREATE TABLE IF NOT EXISTS sources (
	id           BIGSERIAL PRIMARY KEY,
	channel      TEXT NOT NULL,
	url          TEXT,
	kind         TEXT,
	fetched_at   TIMESTAMPTZ NOT NULL,
	content_hash TEXT UNIQUE,
	raw_blob_ptr TEXT,
	meta         JSONB NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS candidates (
	id         BIGSERIAL PRIMARY KEY,
	source_id  BIGINT NOT NULL REFERENCES sources(id),
	name       TEXT NOT NULL,
	channel    TEXT NOT NULL,
	evidence   TEXT,
	meta       JSONB NOT NULL DEFAULT '{}',
	status     TEXT NOT NULL DEFAULT 'pending',
	score      DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS dedupe_marks (
	namespace  TEXT NOT NULL,
	token_hash TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (namespace, token_hash)
);

CREATE TABLE IF NOT EXISTS locks (
	key        TEXT PRIMARY KEY,
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS jobs (
	id         UUID PRIMARY KEY,
	task       TEXT NOT NULL,
	argument   TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	attempts   INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_connector ON runs(connector);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_sources_channel ON sources(channel);
CREATE INDEX IF NOT EXISTS idx_candidates_channel ON candidates(channel);
CREATE INDEX IF NOT EXISTS idx_candidates_status ON candidates(status);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// pgQuerier is satisfied by both the pool and pgx.Tx.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// --- Schedules ---

func (s *PostgresStore) EnsureSchedule(ctx context.Context, connector, cadence string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO schedules (connector, cadence, enabled) VALUES ($1, $2, TRUE)
		 ON CONFLICT (connector) DO NOTHING`,
		connector, cadence,
	)
	return eris.Wrapf(err, "postgres: ensure schedule %s", connector)
}

func (s *PostgresStore) GetSchedule(ctx context.Context, connector string) (*model.Schedule, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT connector, cadence, last_run_at, next_due_at, enabled, failure_count
		 FROM schedules WHERE connector = $1`,
		connector,
	)
	sched, err := scanPgSchedule(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get schedule %s", connector)
	}
	return sched, nil
}

func (s *PostgresStore) ListSchedules(ctx context.Context, filter ScheduleFilter) ([]model.Schedule, error) {
	query := `SELECT connector, cadence, last_run_at, next_due_at, enabled, failure_count
	          FROM schedules`
	var args []any
	if filter.Enabled != nil {
		query += ` WHERE enabled = $1`
		args = append(args, *filter.Enabled)
	}
	query += ` ORDER BY connector`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list schedules")
	}
	defer rows.Close()

	var scheds []model.Schedule
	for rows.Next() {
		sched, err := scanPgSchedule(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan schedule")
		}
		scheds = append(scheds, *sched)
	}
	return scheds, eris.Wrap(rows.Err(), "postgres: list schedules iterate")
}

func (s *PostgresStore) SetScheduleEnabled(ctx context.Context, connector string, enabled bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE schedules SET enabled = $1 WHERE connector = $2`,
		enabled, connector,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set schedule enabled %s", connector)
	}
	return checkPgRows(tag, "schedule", connector)
}

func (s *PostgresStore) AdvanceSchedule(ctx context.Context, connector string, lastRun, nextDue time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE schedules SET last_run_at = $1, next_due_at = $2, failure_count = 0 WHERE connector = $3`,
		lastRun.UTC(), nextDue.UTC(), connector,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: advance schedule %s", connector)
	}
	return checkPgRows(tag, "schedule", connector)
}

func (s *PostgresStore) DeferSchedule(ctx context.Context, connector string, nextDue time.Time, failureCount int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE schedules SET next_due_at = $1, failure_count = $2 WHERE connector = $3`,
		nextDue.UTC(), failureCount, connector,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: defer schedule %s", connector)
	}
	return checkPgRows(tag, "schedule", connector)
}

// --- Runs ---

func (s *PostgresStore) CreateRun(ctx context.Context, connector string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, connector, started_at, status) VALUES ($1, $2, $3, $4)`,
		id, connector, now, string(model.RunStatusRunning),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert run for %s", connector)
	}

	return &model.Run{
		ID:        id,
		Connector: connector,
		StartedAt: now,
		Status:    model.RunStatusRunning,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, itemCount int, finishedAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, item_count = $2, finished_at = $3 WHERE id = $4 AND status = $5`,
		string(model.RunStatusSuccess), itemCount, finishedAt.UTC(), runID, string(model.RunStatusRunning),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	return checkPgRows(tag, "run", runID)
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, detail string, finishedAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, finished_at = $3 WHERE id = $4 AND status = $5`,
		string(model.RunStatusError), detail, finishedAt.UTC(), runID, string(model.RunStatusRunning),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	return checkPgRows(tag, "run", runID)
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, connector, started_at, finished_at, status, item_count, error
		 FROM runs WHERE id = $1`,
		runID,
	)
	run, err := scanPgRun(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, connector, started_at, finished_at, status, item_count, error
	          FROM runs WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}
	if filter.Connector != "" {
		query += ` AND connector = ` + arg(filter.Connector)
	}
	if filter.Status != "" {
		query += ` AND status = ` + arg(string(filter.Status))
	}
	if !filter.After.IsZero() {
		query += ` AND started_at >= ` + arg(filter.After.UTC())
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ` + arg(limit)
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		run, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// --- Ingest ---

type pgIngestTx struct {
	tx pgx.Tx
}

func (s *PostgresStore) Ingest(ctx context.Context, fn func(tx IngestTx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin ingest")
	}
	if err := fn(&pgIngestTx{tx: tx}); err != nil {
		tx.Rollback(ctx)
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit ingest")
}

func (t *pgIngestTx) InsertSource(ctx context.Context, src model.Source) (int64, error) {
	return pgInsertSource(ctx, t.tx, src)
}

func (t *pgIngestTx) InsertCandidate(ctx context.Context, c model.Candidate) (int64, error) {
	return pgInsertCandidate(ctx, t.tx, c)
}

func (t *pgIngestTx) AddDedupeMark(ctx context.Context, namespace, tokenHash string) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO dedupe_marks (namespace, token_hash, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (namespace, token_hash) DO NOTHING`,
		namespace, tokenHash, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: add dedupe mark")
}

func (t *pgIngestTx) SourceHashExists(ctx context.Context, hash string) (bool, error) {
	return pgSourceHashExists(ctx, t.tx, hash)
}

func (t *pgIngestTx) HasDedupeMark(ctx context.Context, namespace, tokenHash string) (bool, error) {
	return pgHasDedupeMark(ctx, t.tx, namespace, tokenHash)
}

func (t *pgIngestTx) RecentSources(ctx context.Context, channel string, limit int) ([]model.Source, error) {
	return pgRecentSources(ctx, t.tx, channel, limit)
}

func (t *pgIngestTx) RecentCandidates(ctx context.Context, channel string, limit int) ([]model.Candidate, error) {
	return pgRecentCandidates(ctx, t.tx, channel, limit)
}

func pgInsertSource(ctx context.Context, q pgQuerier, src model.Source) (int64, error) {
	metaJSON, err := marshalMeta(src.Meta)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: marshal source meta")
	}

	var id int64
	err = q.QueryRow(ctx,
		`INSERT INTO sources (channel, url, kind, fetched_at, content_hash, raw_blob_ptr, meta)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		src.Channel, nullStr(src.URL), nullStr(src.Kind), src.FetchedAt.UTC(),
		nullStr(src.ContentHash), nullStr(src.RawBlobPtr), metaJSON,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: insert source")
	}
	return id, nil
}

func pgInsertCandidate(ctx context.Context, q pgQuerier, c model.Candidate) (int64, error) {
	metaJSON, err := marshalMeta(c.Meta)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: marshal candidate meta")
	}
	status := c.Status
	if status == "" {
		status = model.CandidateStatusPending
	}
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var id int64
	err = q.QueryRow(ctx,
		`INSERT INTO candidates (source_id, name, channel, evidence, meta, status, score, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		c.SourceID, c.Name, c.Channel, nullStr(c.Evidence), metaJSON, string(status), c.Score, createdAt.UTC(),
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: insert candidate")
	}
	return id, nil
}

// --- Dedupe reads ---

func (s *PostgresStore) SourceHashExists(ctx context.Context, hash string) (bool, error) {
	return pgSourceHashExists(ctx, s.pool, hash)
}

func (s *PostgresStore) HasDedupeMark(ctx context.Context, namespace, tokenHash string) (bool, error) {
	return pgHasDedupeMark(ctx, s.pool, namespace, tokenHash)
}

func (s *PostgresStore) RecentSources(ctx context.Context, channel string, limit int) ([]model.Source, error) {
	return pgRecentSources(ctx, s.pool, channel, limit)
}

func (s *PostgresStore) RecentCandidates(ctx context.Context, channel string, limit int) ([]model.Candidate, error) {
	return pgRecentCandidates(ctx, s.pool, channel, limit)
}

func pgSourceHashExists(ctx context.Context, q pgQuerier, hash string) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM sources WHERE content_hash = $1)`, hash,
	).Scan(&exists)
	return exists, eris.Wrap(err, "postgres: source hash exists")
}

func pgHasDedupeMark(ctx context.Context, q pgQuerier, namespace, tokenHash string) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM dedupe_marks WHERE namespace = $1 AND token_hash = $2)`,
		namespace, tokenHash,
	).Scan(&exists)
	return exists, eris.Wrap(err, "postgres: has dedupe mark")
}

func pgRecentSources(ctx context.Context, q pgQuerier, channel string, limit int) ([]model.Source, error) {
	rows, err := q.Query(ctx,
		`SELECT id, channel, url, kind, fetched_at, content_hash, raw_blob_ptr, meta
		 FROM sources WHERE channel = $1 ORDER BY id DESC LIMIT $2`,
		channel, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: recent sources")
	}
	defer rows.Close()

	var sources []model.Source
	for rows.Next() {
		src, err := scanPgSource(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan source")
		}
		sources = append(sources, *src)
	}
	return sources, eris.Wrap(rows.Err(), "postgres: recent sources iterate")
}

func pgRecentCandidates(ctx context.Context, q pgQuerier, channel string, limit int) ([]model.Candidate, error) {
	rows, err := q.Query(ctx,
		`SELECT id, source_id, name, channel, evidence, meta, status, score, created_at
		 FROM candidates WHERE channel = $1 ORDER BY id DESC LIMIT $2`,
		channel, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: recent candidates")
	}
	defer rows.Close()

	var cands []model.Candidate
	for rows.Next() {
		c, err := scanPgCandidate(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan candidate")
		}
		cands = append(cands, *c)
	}
	return cands, eris.Wrap(rows.Err(), "postgres: recent candidates iterate")
}

// --- Browse/edit ---

func (s *PostgresStore) ListCandidates(ctx context.Context, filter CandidateFilter) ([]model.Candidate, error) {
	query := `SELECT id, source_id, name, channel, evidence, meta, status, score, created_at
	          FROM candidates WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}
	if filter.Channel != "" {
		query += ` AND channel = ` + arg(filter.Channel)
	}
	if filter.Status != "" {
		query += ` AND status = ` + arg(string(filter.Status))
	}
	if !filter.After.IsZero() {
		query += ` AND created_at >= ` + arg(filter.After.UTC())
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ` + arg(limit)
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list candidates")
	}
	defer rows.Close()

	var cands []model.Candidate
	for rows.Next() {
		c, err := scanPgCandidate(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan candidate")
		}
		cands = append(cands, *c)
	}
	return cands, eris.Wrap(rows.Err(), "postgres: list candidates iterate")
}

func (s *PostgresStore) UpdateCandidateStatus(ctx context.Context, id int64, status model.CandidateStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE candidates SET status = $1 WHERE id = $2`,
		string(status), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update candidate status %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("candidate not found: %d", id)
	}
	return nil
}

// --- Locks ---

func (s *PostgresStore) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO locks (key, expires_at) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET expires_at = EXCLUDED.expires_at
		 WHERE locks.expires_at <= $3`,
		key, now.Add(ttl), now,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: acquire lock %s", key)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) ReleaseLock(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM locks WHERE key = $1`, key)
	return eris.Wrapf(err, "postgres: release lock %s", key)
}

// --- Jobs ---

func (s *PostgresStore) EnqueueJob(ctx context.Context, task, argument string) (string, error) {
	id := uuid.New().String()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, task, argument, status, created_at) VALUES ($1, $2, $3, $4, $5)`,
		id, task, argument, string(model.JobStatusQueued), time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrapf(err, "postgres: enqueue %s(%s)", task, argument)
	}
	return id, nil
}

func (s *PostgresStore) ClaimJob(ctx context.Context) (*model.Job, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE jobs SET status = $1, attempts = attempts + 1
		 WHERE id = (
			SELECT id FROM jobs WHERE status = $2
			ORDER BY created_at LIMIT 1
			FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id, task, argument, status, attempts, created_at`,
		string(model.JobStatusClaimed), string(model.JobStatusQueued),
	)

	var j model.Job
	err := row.Scan(&j.ID, &j.Task, &j.Argument, &j.Status, &j.Attempts, &j.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: claim job")
	}
	return &j, nil
}

func (s *PostgresStore) CompleteJob(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $1 WHERE id = $2`,
		string(model.JobStatusDone), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete job %s", id)
	}
	return checkPgRows(tag, "job", id)
}

func (s *PostgresStore) ReleaseJob(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $1 WHERE id = $2`,
		string(model.JobStatusQueued), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: release job %s", id)
	}
	return checkPgRows(tag, "job", id)
}

func (s *PostgresStore) CountJobs(ctx context.Context, status model.JobStatus) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(1) FROM jobs WHERE status = $1`, string(status),
	).Scan(&n)
	return n, eris.Wrap(err, "postgres: count jobs")
}

// --- helpers ---

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func checkPgRows(tag pgconn.CommandTag, entity, id string) error {
	if tag.RowsAffected() == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func scanPgSchedule(row pgx.Row) (*model.Schedule, error) {
	var sched model.Schedule
	var lastRun, nextDue *time.Time

	err := row.Scan(&sched.Connector, &sched.Cadence, &lastRun, &nextDue, &sched.Enabled, &sched.FailureCount)
	if err != nil {
		return nil, err
	}
	sched.LastRunAt = utcPtr(lastRun)
	sched.NextDueAt = utcPtr(nextDue)
	return &sched, nil
}

func scanPgRun(row pgx.Row) (*model.Run, error) {
	var run model.Run
	var finished *time.Time
	var errDetail *string

	err := row.Scan(&run.ID, &run.Connector, &run.StartedAt, &finished, &run.Status, &run.ItemCount, &errDetail)
	if err != nil {
		return nil, err
	}
	run.FinishedAt = utcPtr(finished)
	if errDetail != nil {
		run.Error = *errDetail
	}
	return &run, nil
}

func scanPgSource(row pgx.Row) (*model.Source, error) {
	var src model.Source
	var url, kind, hash, blobPtr *string
	var metaJSON []byte

	err := row.Scan(&src.ID, &src.Channel, &url, &kind, &src.FetchedAt, &hash, &blobPtr, &metaJSON)
	if err != nil {
		return nil, err
	}
	src.URL = deref(url)
	src.Kind = deref(kind)
	src.ContentHash = deref(hash)
	src.RawBlobPtr = deref(blobPtr)
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &src.Meta); err != nil {
			return nil, err
		}
	}
	return &src, nil
}

func scanPgCandidate(row pgx.Row) (*model.Candidate, error) {
	var c model.Candidate
	var evidence *string
	var metaJSON []byte
	var status string

	err := row.Scan(&c.ID, &c.SourceID, &c.Name, &c.Channel, &evidence, &metaJSON, &status, &c.Score, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.Evidence = deref(evidence)
	c.Status = model.CandidateStatus(status)
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &c.Meta); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
