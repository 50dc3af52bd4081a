package model

import "time"

// RunStatus represents the state of a connector run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusError   RunStatus = "error"
)

// CandidateStatus represents the review state of a candidate. Transitions
// happen through the editing surface, never inside the run executor.
type CandidateStatus string

const (
	CandidateStatusPending   CandidateStatus = "pending"
	CandidateStatusApproved  CandidateStatus = "approved"
	CandidateStatusWatch     CandidateStatus = "watch"
	CandidateStatusDismissed CandidateStatus = "dismissed"
)

// JobStatus represents the state of a queued dispatch job.
type JobStatus string

const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusClaimed JobStatus = "claimed"
	JobStatusDone    JobStatus = "done"
)

// Schedule tracks cadence state for one connector. Exactly one row exists
// per known connector, created lazily on the first sweep. Timing fields are
// advanced only by the run executor after a confirmed completion.
type Schedule struct {
	Connector    string     `json:"connector"`
	Cadence      string     `json:"cadence"`
	LastRunAt    *time.Time `json:"last_run_at,omitempty"`
	NextDueAt    *time.Time `json:"next_due_at,omitempty"`
	Enabled      bool       `json:"enabled"`
	FailureCount int        `json:"failure_count"`
}

// Run is an append-only execution record for one dispatched connector job.
type Run struct {
	ID         string     `json:"id"`
	Connector  string     `json:"connector"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     RunStatus  `json:"status"`
	ItemCount  int        `json:"item_count"`
	Error      string     `json:"error,omitempty"`
}

// Source is a persisted raw unit ingested from a connector.
type Source struct {
	ID          int64          `json:"id"`
	Channel     string         `json:"channel"`
	URL         string         `json:"url,omitempty"`
	Kind        string         `json:"kind,omitempty"`
	FetchedAt   time.Time      `json:"fetched_at"`
	ContentHash string         `json:"content_hash,omitempty"`
	RawBlobPtr  string         `json:"raw_blob_ptr,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
}

// Candidate is a scored entity extracted from a source. The score breakdown
// is embedded in Meta under "score_breakdown".
type Candidate struct {
	ID        int64           `json:"id"`
	SourceID  int64           `json:"source_id"`
	Name      string          `json:"name"`
	Channel   string          `json:"channel"`
	Evidence  string          `json:"evidence,omitempty"`
	Meta      map[string]any  `json:"meta,omitempty"`
	Status    CandidateStatus `json:"status"`
	Score     float64         `json:"score"`
	CreatedAt time.Time       `json:"created_at"`
}

// DedupeMark records that a dedupe token has been processed. Write-once per
// (namespace, token hash); never deleted.
type DedupeMark struct {
	Namespace string    `json:"namespace"`
	TokenHash string    `json:"token_hash"`
	CreatedAt time.Time `json:"created_at"`
}

// Job is a dispatched unit of work on the at-least-once queue. The payload
// is a task name plus the connector name as its sole argument.
type Job struct {
	ID        string    `json:"id"`
	Task      string    `json:"task"`
	Argument  string    `json:"argument"`
	Status    JobStatus `json:"status"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
}
