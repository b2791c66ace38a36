package reporting

import (
	"math"
	"time"
)

// RunInputs is what the scheduler accumulates over a run and hands to
// BuildReport once every attempt has reached a terminal state. It stays
// decoupled from pkg/janitor and pkg/predictions (both of which this
// package is imported by, directly or transitively) so there is no
// import-cycle risk; callers convert their own types into these at the
// call site.
type RunInputs struct {
	ExecutionID    string
	Benchmark      string
	BenchmarkTotal int
	StartTime      time.Time
	EndTime        time.Time
	Attempts       []AttemptSummary
	Cleanup        CleanupSummary
	CleanupLog     []AuditEntry
	Errors         []string
}

// BuildReport assembles a RunReport from RunInputs, deriving Total/
// Completed/Successful/Failed/SuccessRate from the attempt list. When
// BenchmarkTotal is set, the success rate is computed against it rather
// than against the number of attempts actually run, so a partial run still
// reports progress against the full benchmark.
func BuildReport(in RunInputs) *RunReport {
	report := &RunReport{
		ExecutionID:    in.ExecutionID,
		Benchmark:      in.Benchmark,
		BenchmarkTotal: in.BenchmarkTotal,
		StartTime:      in.StartTime,
		EndTime:        in.EndTime,
		Duration:       in.EndTime.Sub(in.StartTime).Round(time.Second).String(),
		Attempts:       in.Attempts,
		CleanupSummary: in.Cleanup,
		CleanupLog:     in.CleanupLog,
		Errors:         in.Errors,
	}

	report.Total = len(in.Attempts)
	for _, a := range in.Attempts {
		report.Completed++
		if a.Captured {
			report.Successful++
		} else {
			report.Failed++
		}
	}

	denominator := report.Total
	if in.BenchmarkTotal > 0 {
		denominator = in.BenchmarkTotal
	}
	if denominator > 0 {
		report.SuccessRate = math.Round(float64(report.Successful)/float64(denominator)*1000) / 1000
	}

	return report
}
