package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/scoutline/scout-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS schedules (
	connector     TEXT PRIMARY KEY,
	cadence       TEXT NOT NULL,
	last_run_at   DATETIME,
	next_due_at   DATETIME,
	enabled       INTEGER NOT NULL DEFAULT 1,
	failure_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	connector   TEXT NOT NULL,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME,
	status      TEXT NOT NULL DEFAULT 'running',
	item_count  INTEGER NOT NULL DEFAULT 0,
	error       TEXT
);

CREATE TABLE IF NOT EXISTS sources (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	channel      TEXT NOT NULL,
	url          TEXT,
	kind         TEXT,
	fetched_at   DATETIME NOT NULL,
	content_hash TEXT UNIQUE,
	raw_blob_ptr TEXT,
	meta         TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS candidates (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id  INTEGER NOT NULL REFERENCES sources(id),
	name       TEXT NOT NULL,
	channel    TEXT NOT NULL,
	evidence   TEXT,
	meta       TEXT NOT NULL DEFAULT '{}',
	status     TEXT NOT NULL DEFAULT 'pending',
	score      REAL NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS dedupe_marks (
	namespace  TEXT NOT NULL,
	token_hash TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (namespace, token_hash)
);

CREATE TABLE IF NOT EXISTS locks (
	key        TEXT PRIMARY KEY,
	expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS jobs (
	id         TEXT PRIMARY KEY,
	task       TEXT NOT NULL,
	argument   TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	attempts   INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_connector ON runs(connector);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_sources_channel ON sources(channel);
CREATE INDEX IF NOT EXISTS idx_candidates_channel ON candidates(channel);
CREATE INDEX IF NOT EXISTS idx_candidates_status ON candidates(status);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// querier is satisfied by both *sql.DB and *sql.Tx so read/write helpers
// work inside and outside the ingest transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// --- Schedules ---

func (s *SQLiteStore) EnsureSchedule(ctx context.Context, connector, cadence string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO schedules (connector, cadence, enabled) VALUES (?, ?, 1)
		 ON CONFLICT (connector) DO NOTHING`,
		connector, cadence,
	)
	return eris.Wrapf(err, "sqlite: ensure schedule %s", connector)
}

func (s *SQLiteStore) GetSchedule(ctx context.Context, connector string) (*model.Schedule, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT connector, cadence, last_run_at, next_due_at, enabled, failure_count
		 FROM schedules WHERE connector = ?`,
		connector,
	)
	sched, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get schedule %s", connector)
	}
	return sched, nil
}

func (s *SQLiteStore) ListSchedules(ctx context.Context, filter ScheduleFilter) ([]model.Schedule, error) {
	query := `SELECT connector, cadence, last_run_at, next_due_at, enabled, failure_count
	          FROM schedules WHERE 1=1`
	var args []any
	if filter.Enabled != nil {
		query += ` AND enabled = ?`
		args = append(args, boolInt(*filter.Enabled))
	}
	query += ` ORDER BY connector`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list schedules")
	}
	defer rows.Close()

	var scheds []model.Schedule
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan schedule")
		}
		scheds = append(scheds, *sched)
	}
	return scheds, eris.Wrap(rows.Err(), "sqlite: list schedules iterate")
}

func (s *SQLiteStore) SetScheduleEnabled(ctx context.Context, connector string, enabled bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE schedules SET enabled = ? WHERE connector = ?`,
		boolInt(enabled), connector,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set schedule enabled %s", connector)
	}
	return checkRowsAffected(res, "schedule", connector)
}

func (s *SQLiteStore) AdvanceSchedule(ctx context.Context, connector string, lastRun, nextDue time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE schedules SET last_run_at = ?, next_due_at = ?, failure_count = 0 WHERE connector = ?`,
		lastRun.UTC(), nextDue.UTC(), connector,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: advance schedule %s", connector)
	}
	return checkRowsAffected(res, "schedule", connector)
}

func (s *SQLiteStore) DeferSchedule(ctx context.Context, connector string, nextDue time.Time, failureCount int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE schedules SET next_due_at = ?, failure_count = ? WHERE connector = ?`,
		nextDue.UTC(), failureCount, connector,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: defer schedule %s", connector)
	}
	return checkRowsAffected(res, "schedule", connector)
}

// --- Runs ---

func (s *SQLiteStore) CreateRun(ctx context.Context, connector string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, connector, started_at, status) VALUES (?, ?, ?, ?)`,
		id, connector, now, string(model.RunStatusRunning),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert run for %s", connector)
	}

	return &model.Run{
		ID:        id,
		Connector: connector,
		StartedAt: now,
		Status:    model.RunStatusRunning,
	}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, itemCount int, finishedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, item_count = ?, finished_at = ? WHERE id = ? AND status = ?`,
		string(model.RunStatusSuccess), itemCount, finishedAt.UTC(), runID, string(model.RunStatusRunning),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, detail string, finishedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ? AND status = ?`,
		string(model.RunStatusError), detail, finishedAt.UTC(), runID, string(model.RunStatusRunning),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, connector, started_at, finished_at, status, item_count, error
		 FROM runs WHERE id = ?`,
		runID,
	)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, connector, started_at, finished_at, status, item_count, error
	          FROM runs WHERE 1=1`
	var args []any
	if filter.Connector != "" {
		query += ` AND connector = ?`
		args = append(args, filter.Connector)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if !filter.After.IsZero() {
		query += ` AND started_at >= ?`
		args = append(args, filter.After.UTC())
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// --- Ingest ---

// sqliteIngestTx implements IngestTx over a *sql.Tx.
type sqliteIngestTx struct {
	tx *sql.Tx
}

func (s *SQLiteStore) Ingest(ctx context.Context, fn func(tx IngestTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin ingest")
	}
	if err := fn(&sqliteIngestTx{tx: tx}); err != nil {
		tx.Rollback()
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit ingest")
}

func (t *sqliteIngestTx) InsertSource(ctx context.Context, src model.Source) (int64, error) {
	return sqliteInsertSource(ctx, t.tx, src)
}

func (t *sqliteIngestTx) InsertCandidate(ctx context.Context, c model.Candidate) (int64, error) {
	return sqliteInsertCandidate(ctx, t.tx, c)
}

func (t *sqliteIngestTx) AddDedupeMark(ctx context.Context, namespace, tokenHash string) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO dedupe_marks (namespace, token_hash, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (namespace, token_hash) DO NOTHING`,
		namespace, tokenHash, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: add dedupe mark")
}

func (t *sqliteIngestTx) SourceHashExists(ctx context.Context, hash string) (bool, error) {
	return sqliteSourceHashExists(ctx, t.tx, hash)
}

func (t *sqliteIngestTx) HasDedupeMark(ctx context.Context, namespace, tokenHash string) (bool, error) {
	return sqliteHasDedupeMark(ctx, t.tx, namespace, tokenHash)
}

func (t *sqliteIngestTx) RecentSources(ctx context.Context, channel string, limit int) ([]model.Source, error) {
	return sqliteRecentSources(ctx, t.tx, channel, limit)
}

func (t *sqliteIngestTx) RecentCandidates(ctx context.Context, channel string, limit int) ([]model.Candidate, error) {
	return sqliteRecentCandidates(ctx, t.tx, channel, limit)
}

func sqliteInsertSource(ctx context.Context, q querier, src model.Source) (int64, error) {
	metaJSON, err := marshalMeta(src.Meta)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: marshal source meta")
	}

	res, err := q.ExecContext(ctx,
		`INSERT INTO sources (channel, url, kind, fetched_at, content_hash, raw_blob_ptr, meta)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		src.Channel, nullStr(src.URL), nullStr(src.Kind), src.FetchedAt.UTC(),
		nullStr(src.ContentHash), nullStr(src.RawBlobPtr), metaJSON,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert source")
	}
	id, err := res.LastInsertId()
	return id, eris.Wrap(err, "sqlite: source insert id")
}

func sqliteInsertCandidate(ctx context.Context, q querier, c model.Candidate) (int64, error) {
	metaJSON, err := marshalMeta(c.Meta)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: marshal candidate meta")
	}
	status := c.Status
	if status == "" {
		status = model.CandidateStatusPending
	}
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := q.ExecContext(ctx,
		`INSERT INTO candidates (source_id, name, channel, evidence, meta, status, score, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.SourceID, c.Name, c.Channel, nullStr(c.Evidence), metaJSON, string(status), c.Score, createdAt.UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert candidate")
	}
	id, err := res.LastInsertId()
	return id, eris.Wrap(err, "sqlite: candidate insert id")
}

// --- Dedupe reads ---

func (s *SQLiteStore) SourceHashExists(ctx context.Context, hash string) (bool, error) {
	return sqliteSourceHashExists(ctx, s.db, hash)
}

func (s *SQLiteStore) HasDedupeMark(ctx context.Context, namespace, tokenHash string) (bool, error) {
	return sqliteHasDedupeMark(ctx, s.db, namespace, tokenHash)
}

func (s *SQLiteStore) RecentSources(ctx context.Context, channel string, limit int) ([]model.Source, error) {
	return sqliteRecentSources(ctx, s.db, channel, limit)
}

func (s *SQLiteStore) RecentCandidates(ctx context.Context, channel string, limit int) ([]model.Candidate, error) {
	return sqliteRecentCandidates(ctx, s.db, channel, limit)
}

func sqliteSourceHashExists(ctx context.Context, q querier, hash string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM sources WHERE content_hash = ?`, hash,
	).Scan(&n)
	return n > 0, eris.Wrap(err, "sqlite: source hash exists")
}

func sqliteHasDedupeMark(ctx context.Context, q querier, namespace, tokenHash string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM dedupe_marks WHERE namespace = ? AND token_hash = ?`,
		namespace, tokenHash,
	).Scan(&n)
	return n > 0, eris.Wrap(err, "sqlite: has dedupe mark")
}

func sqliteRecentSources(ctx context.Context, q querier, channel string, limit int) ([]model.Source, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, channel, url, kind, fetched_at, content_hash, raw_blob_ptr, meta
		 FROM sources WHERE channel = ? ORDER BY id DESC LIMIT ?`,
		channel, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: recent sources")
	}
	defer rows.Close()

	var sources []model.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan source")
		}
		sources = append(sources, *src)
	}
	return sources, eris.Wrap(rows.Err(), "sqlite: recent sources iterate")
}

func sqliteRecentCandidates(ctx context.Context, q querier, channel string, limit int) ([]model.Candidate, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, source_id, name, channel, evidence, meta, status, score, created_at
		 FROM candidates WHERE channel = ? ORDER BY id DESC LIMIT ?`,
		channel, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: recent candidates")
	}
	defer rows.Close()

	var cands []model.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan candidate")
		}
		cands = append(cands, *c)
	}
	return cands, eris.Wrap(rows.Err(), "sqlite: recent candidates iterate")
}

// --- Browse/edit ---

func (s *SQLiteStore) ListCandidates(ctx context.Context, filter CandidateFilter) ([]model.Candidate, error) {
	query := `SELECT id, source_id, name, channel, evidence, meta, status, score, created_at
	          FROM candidates WHERE 1=1`
	var args []any
	if filter.Channel != "" {
		query += ` AND channel = ?`
		args = append(args, filter.Channel)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if !filter.After.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.After.UTC())
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list candidates")
	}
	defer rows.Close()

	var cands []model.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan candidate")
		}
		cands = append(cands, *c)
	}
	return cands, eris.Wrap(rows.Err(), "sqlite: list candidates iterate")
}

func (s *SQLiteStore) UpdateCandidateStatus(ctx context.Context, id int64, status model.CandidateStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE candidates SET status = ? WHERE id = ?`,
		string(status), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update candidate status %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("candidate not found: %d", id)
	}
	return nil
}

// --- Locks ---

func (s *SQLiteStore) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO locks (key, expires_at) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET expires_at = excluded.expires_at
		 WHERE locks.expires_at <= ?`,
		key, now.Add(ttl), now,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: acquire lock %s", key)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) ReleaseLock(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM locks WHERE key = ?`, key)
	return eris.Wrapf(err, "sqlite: release lock %s", key)
}

// --- Jobs ---

func (s *SQLiteStore) EnqueueJob(ctx context.Context, task, argument string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, task, argument, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, task, argument, string(model.JobStatusQueued), time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: enqueue %s(%s)", task, argument)
	}
	return id, nil
}

func (s *SQLiteStore) ClaimJob(ctx context.Context) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE jobs SET status = ?, attempts = attempts + 1
		 WHERE id = (SELECT id FROM jobs WHERE status = ? ORDER BY created_at LIMIT 1)
		 RETURNING id, task, argument, status, attempts, created_at`,
		string(model.JobStatusClaimed), string(model.JobStatusQueued),
	)

	var j model.Job
	err := row.Scan(&j.ID, &j.Task, &j.Argument, &j.Status, &j.Attempts, &j.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: claim job")
	}
	return &j, nil
}

func (s *SQLiteStore) CompleteJob(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ? WHERE id = ?`,
		string(model.JobStatusDone), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete job %s", id)
	}
	return checkRowsAffected(res, "job", id)
}

func (s *SQLiteStore) ReleaseJob(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ? WHERE id = ?`,
		string(model.JobStatusQueued), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: release job %s", id)
	}
	return checkRowsAffected(res, "job", id)
}

func (s *SQLiteStore) CountJobs(ctx context.Context, status model.JobStatus) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM jobs WHERE status = ?`, string(status),
	).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count jobs")
}

// --- helpers ---

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func marshalMeta(meta map[string]any) (string, error) {
	if meta == nil {
		return "{}", nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalMeta(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var meta map[string]any
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, err
	}
	return meta, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSchedule(row scannable) (*model.Schedule, error) {
	var sched model.Schedule
	var lastRun, nextDue sql.NullTime
	var enabled int

	err := row.Scan(&sched.Connector, &sched.Cadence, &lastRun, &nextDue, &enabled, &sched.FailureCount)
	if err != nil {
		return nil, err
	}
	if lastRun.Valid {
		t := lastRun.Time.UTC()
		sched.LastRunAt = &t
	}
	if nextDue.Valid {
		t := nextDue.Time.UTC()
		sched.NextDueAt = &t
	}
	sched.Enabled = enabled != 0
	return &sched, nil
}

func scanRun(row scannable) (*model.Run, error) {
	var run model.Run
	var finished sql.NullTime
	var errDetail sql.NullString

	err := row.Scan(&run.ID, &run.Connector, &run.StartedAt, &finished, &run.Status, &run.ItemCount, &errDetail)
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time.UTC()
		run.FinishedAt = &t
	}
	run.Error = errDetail.String
	return &run, nil
}

func scanSource(row scannable) (*model.Source, error) {
	var src model.Source
	var url, kind, hash, blobPtr sql.NullString
	var metaJSON string

	err := row.Scan(&src.ID, &src.Channel, &url, &kind, &src.FetchedAt, &hash, &blobPtr, &metaJSON)
	if err != nil {
		return nil, err
	}
	src.URL = url.String
	src.Kind = kind.String
	src.ContentHash = hash.String
	src.RawBlobPtr = blobPtr.String
	src.Meta, err = unmarshalMeta(metaJSON)
	return &src, err
}

func scanCandidate(row scannable) (*model.Candidate, error) {
	var c model.Candidate
	var evidence sql.NullString
	var metaJSON string
	var status string

	err := row.Scan(&c.ID, &c.SourceID, &c.Name, &c.Channel, &evidence, &metaJSON, &status, &c.Score, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.Evidence = evidence.String
	c.Status = model.CandidateStatus(status)
	c.Meta, err = unmarshalMeta(metaJSON)
	return &c, err
}
