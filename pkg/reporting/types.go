package reporting

import "time"

// RunReport is the end-of-run summary the scheduler produces once every
// attempt has reached a terminal state: the totals, success rate, and
// per-attempt outcomes a solver-fleet operator reads after a run completes.
type RunReport struct {
	ExecutionID   string    `json:"execution_id"`
	Benchmark     string    `json:"benchmark"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Duration      string    `json:"duration"`

	Total       int     `json:"total"`
	Completed   int     `json:"completed"`
	Successful  int     `json:"successful"`
	Failed      int     `json:"failed"`
	BenchmarkTotal int  `json:"benchmark_total,omitempty"`
	SuccessRate float64 `json:"success_rate"`

	Attempts []AttemptSummary `json:"attempts"`

	CleanupSummary CleanupSummary `json:"cleanup_summary"`
	CleanupLog     []AuditEntry   `json:"cleanup_log,omitempty"`

	Errors []string `json:"errors,omitempty"`
}

// AttemptSummary is one instance's outcome within a RunReport.
type AttemptSummary struct {
	InstanceID        string  `json:"instance_id"`
	ChallengeID        string  `json:"challenge_id"`
	ChallengeCategory  string  `json:"challenge_category,omitempty"`
	TryNumber          int     `json:"try_number"`
	State              string  `json:"state"`
	Captured           bool    `json:"captured"`
	TrajectoryFound    bool    `json:"trajectory_found"`
	DurationSeconds    float64 `json:"duration_seconds,omitempty"`
	TokensSent         int64   `json:"tokens_sent,omitempty"`
	TokensReceived     int64   `json:"tokens_received,omitempty"`
}

// CleanupSummary mirrors janitor.Summary for embedding in a RunReport
// without an import-cycle dependency on pkg/janitor.
type CleanupSummary struct {
	TotalActions int `json:"total_actions"`
	Succeeded    int `json:"succeeded"`
	Failed       int `json:"failed"`
}

// AuditEntry mirrors janitor.AuditEntry for embedding in a RunReport.
type AuditEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Target    string    `json:"target"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

// RunStatus is the lifecycle state of a run as a whole, distinct from any
// one attempt's attempt.State.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusStopped   RunStatus = "stopped"
)

// LiveRunState is a snapshot of an in-progress run, used by ProgressReporter
// to render periodic status while the scheduler is still dispatching and
// supervising attempts.
type LiveRunState struct {
	ExecutionID string        `json:"execution_id"`
	Benchmark   string        `json:"benchmark"`
	Status      RunStatus     `json:"status"`
	StartTime   time.Time     `json:"start_time"`
	Elapsed     time.Duration `json:"elapsed"`

	Total      int `json:"total"`
	Running    int `json:"running"`
	Completed  int `json:"completed"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`

	LatestCosts map[string]float64 `json:"latest_costs,omitempty"`
}

// ReportSummary is the lightweight index entry ListReports returns, without
// loading each full RunReport from disk.
type ReportSummary struct {
	ExecutionID string    `json:"execution_id"`
	Benchmark   string    `json:"benchmark"`
	StartTime   time.Time `json:"start_time"`
	Duration    string    `json:"duration"`
	SuccessRate float64   `json:"success_rate"`
	Filepath    string    `json:"filepath"`
}
