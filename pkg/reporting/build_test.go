package reporting

import (
	"testing"
	"time"
)

func TestBuildReport_CountsAndRate(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(10 * time.Minute)

	report := BuildReport(RunInputs{
		ExecutionID: "exec-1",
		Benchmark:   "intercode_ctf",
		StartTime:   start,
		EndTime:     end,
		Attempts: []AttemptSummary{
			{InstanceID: "pwn_A", Captured: true},
			{InstanceID: "web_B", Captured: false},
			{InstanceID: "crypto_C", Captured: true},
		},
		Cleanup: CleanupSummary{TotalActions: 6, Succeeded: 6},
	})

	if report.Total != 3 || report.Completed != 3 {
		t.Fatalf("Total/Completed = %d/%d, want 3/3", report.Total, report.Completed)
	}
	if report.Successful != 2 || report.Failed != 1 {
		t.Fatalf("Successful/Failed = %d/%d, want 2/1", report.Successful, report.Failed)
	}
	wantRate := 2.0 / 3.0
	if diff := report.SuccessRate - wantRate; diff > 0.001 || diff < -0.001 {
		t.Errorf("SuccessRate = %v, want ~%v", report.SuccessRate, wantRate)
	}
}

func TestBuildReport_RateAgainstBenchmarkTotal(t *testing.T) {
	start := time.Now()
	report := BuildReport(RunInputs{
		ExecutionID:    "exec-2",
		Benchmark:      "cybench",
		BenchmarkTotal: 40,
		StartTime:      start,
		EndTime:        start.Add(time.Minute),
		Attempts: []AttemptSummary{
			{InstanceID: "a", Captured: true},
			{InstanceID: "b", Captured: true},
		},
	})

	want := 2.0 / 40.0
	if diff := report.SuccessRate - want; diff > 0.0001 || diff < -0.0001 {
		t.Errorf("SuccessRate = %v, want %v (against benchmark total, not attempt count)", report.SuccessRate, want)
	}
}

func TestBuildReport_EmptyRun(t *testing.T) {
	start := time.Now()
	report := BuildReport(RunInputs{
		ExecutionID: "exec-3",
		StartTime:   start,
		EndTime:     start,
	})

	if report.Total != 0 || report.SuccessRate != 0 {
		t.Errorf("empty run should report zero total and zero rate, got total=%d rate=%v", report.Total, report.SuccessRate)
	}
}
