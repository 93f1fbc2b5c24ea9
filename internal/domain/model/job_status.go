package model

import "time"

// JobTaskStats are the aggregate counters over a job's task rows.
type JobTaskStats struct {
	Total       int     `json:"total"        db:"total"`
	Success     int     `json:"success"      db:"success"`
	Failed      int     `json:"failed"       db:"failed"`
	Running     int     `json:"running"      db:"running"`
	AvgProgress float64 `json:"avg_progress" db:"avg_progress"`
}

// Done counts tasks that reached a terminal status.
func (s JobTaskStats) Done() int {
	return s.Success + s.Failed
}

// JobCounters is the counters block of a job status report. When task rows
// exist they are task-derived; otherwise they come from the job summary.
type JobCounters struct {
	Total        int   `json:"total"`
	Done         int   `json:"done"`
	Running      int   `json:"running"`
	Pending      int   `json:"pending"`
	Failed       int   `json:"failed"`
	Success      int   `json:"success"`
	InsertedRows int64 `json:"inserted_rows"`
	SuccessCodes int64 `json:"success_codes"`
}

// JobStatusReport is the polling document for one ingestion job. It is
// recomputed from the store on every request.
type JobStatusReport struct {
	JobID      string              `json:"job_id"`
	Status     RunStatus           `json:"status"`
	Percent    int                 `json:"percent"`
	Counters   JobCounters         `json:"counters"`
	Summary    map[string]any      `json:"summary,omitempty"`
	Logs       []IngestionLogEntry `json:"logs"`
	Errors     []IngestionError    `json:"errors"`
	CreatedAt  time.Time           `json:"created_at"`
	StartedAt  *time.Time          `json:"started_at,omitempty"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
}

// JobStats is the aggregate view over all jobs served by the stats endpoint.
type JobStats struct {
	Jobs        map[string]int `json:"jobs"`
	RunsLast24h int            `json:"runs_last_24h"`
	GeneratedAt time.Time      `json:"generated_at"`
}
