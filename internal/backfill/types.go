package backfill

import (
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/fortuna/collegebaseball/internal/schema"
	"github.com/fortuna/collegebaseball/internal/store"
)

// JobType enumerates the supported backfill job variants.
type JobType string

const (
	JobTypeRosters        JobType = "rosters"
	JobTypeTeamStats      JobType = "team_stats"
	JobTypeTeamResults    JobType = "team_results"
	JobTypePlayerGameLogs JobType = "player_game_logs"
)

// ParseJobType validates s.
func ParseJobType(s string) (JobType, bool) {
	switch t := JobType(s); t {
	case JobTypeRosters, JobTypeTeamStats, JobTypeTeamResults, JobTypePlayerGameLogs:
		return t, true
	}
	return "", false
}

// JobStatus represents the lifecycle state for a job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Job models the database representation of a backfill job.
type Job struct {
	JobID           string         `json:"job_id"`
	JobType         JobType        `json:"job_type"`
	Seasons         pq.Int64Array  `json:"seasons"`
	Divisions       pq.Int64Array  `json:"divisions,omitempty"`
	Categories      pq.StringArray `json:"categories,omitempty"`
	Schools         pq.Int64Array  `json:"schools,omitempty"`
	Save            bool           `json:"save"`
	Status          JobStatus      `json:"status"`
	StatusMessage   sql.NullString `json:"-"`
	ProgressCurrent int            `json:"progress_current"`
	ProgressTotal   int            `json:"progress_total"`
	Failures        pq.StringArray `json:"failures,omitempty"`
	LastError       sql.NullString `json:"-"`
	RetryCount      int            `json:"retry_count"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	StartedAt       sql.NullTime   `json:"-"`
	CompletedAt     sql.NullTime   `json:"-"`
}

// Copy returns a shallow copy to prevent external mutation.
func (j *Job) Copy() *Job {
	if j == nil {
		return nil
	}
	cpy := *j
	return &cpy
}

// Spec converts the stored job back into a runnable spec.
func (j *Job) Spec() (JobSpec, error) {
	spec := JobSpec{
		Type:      j.JobType,
		Seasons:   ints(j.Seasons),
		Divisions: ints(j.Divisions),
		Schools:   ints(j.Schools),
		Save:      j.Save,
	}
	for _, c := range j.Categories {
		cat, err := schema.ParseCategory(c)
		if err != nil {
			return spec, err
		}
		spec.Categories = append(spec.Categories, cat)
	}
	return spec, spec.Validate()
}

// JobSpec describes the work to be performed by the runner. Zero divisions
// means every division; zero categories means all three.
type JobSpec struct {
	Type       JobType
	Seasons    []int
	Divisions  []int
	Categories []schema.Category
	Schools    []int
	Save       bool
	DryRun     bool
}

// Entity is one unit of work: a single page fetched, normalized and saved.
type Entity struct {
	Label string
	Key   store.TableKey
}

// Summary is the outcome of a run.
type Summary struct {
	Entities int      `json:"entities"`
	Rows     int      `json:"rows"`
	Failures []string `json:"failures,omitempty"`
}

// Reporter receives lifecycle callbacks from the runner.
type Reporter interface {
	OnJobStart(spec JobSpec, total int)
	OnEntityDone(e Entity, rows, index, total int)
	OnEntityFailed(e Entity, err error, index, total int)
	OnJobComplete(summary Summary)
	OnJobError(err error)
}

// StatusSummary is returned to API callers.
type StatusSummary struct {
	ActiveJob *Job   `json:"active_job,omitempty"`
	History   []*Job `json:"recent_jobs,omitempty"`
}

func ints(a pq.Int64Array) []int {
	if len(a) == 0 {
		return nil
	}
	out := make([]int, len(a))
	for i, v := range a {
		out[i] = int(v)
	}
	return out
}

func int64s(a []int) pq.Int64Array {
	out := make(pq.Int64Array, len(a))
	for i, v := range a {
		out[i] = int64(v)
	}
	return out
}
