package reporting

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// OutputFormat represents the progress output format.
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatTUI  OutputFormat = "tui"
)

// ProgressReporter reports scheduler progress as attempts are dispatched,
// transition state, and the run completes.
type ProgressReporter struct {
	format OutputFormat
	logger *Logger
}

// NewProgressReporter creates a new progress reporter.
func NewProgressReporter(format OutputFormat, logger *Logger) *ProgressReporter {
	return &ProgressReporter{
		format: format,
		logger: logger,
	}
}

// ReportState reports the current run state.
func (pr *ProgressReporter) ReportState(state LiveRunState) {
	switch pr.format {
	case FormatJSON:
		pr.reportJSON(state)
	case FormatTUI:
		pr.reportTUI(state)
	default:
		pr.reportText(state)
	}
}

// ReportAttemptTransition reports one attempt moving between states.
func (pr *ProgressReporter) ReportAttemptTransition(instanceID, from, to string) {
	switch pr.format {
	case FormatJSON:
		data, _ := json.Marshal(map[string]interface{}{
			"event":       "attempt_transition",
			"instance_id": instanceID,
			"from_state":  from,
			"to_state":    to,
			"timestamp":   time.Now(),
		})
		fmt.Println(string(data))
	case FormatTUI:
		pr.clearLine()
		fmt.Printf("%s: %s → %s\n", instanceID, from, to)
	default:
		fmt.Printf("[ATTEMPT] %s: %s → %s\n", instanceID, from, to)
	}
}

// ReportAttemptLaunched reports a newly dispatched attempt.
func (pr *ProgressReporter) ReportAttemptLaunched(instanceID, challengeID string, tryNumber int) {
	switch pr.format {
	case FormatJSON:
		data, _ := json.Marshal(map[string]interface{}{
			"event":       "attempt_launched",
			"instance_id": instanceID,
			"challenge":   challengeID,
			"try_number":  tryNumber,
			"timestamp":   time.Now(),
		})
		fmt.Println(string(data))
	case FormatTUI:
		pr.clearLine()
		fmt.Printf("launched %s (%s, try %d)\n", instanceID, challengeID, tryNumber)
	default:
		fmt.Printf("[LAUNCH] %s (%s, try %d)\n", instanceID, challengeID, tryNumber)
	}
}

// ReportCleanupStarted reports cleanup started.
func (pr *ProgressReporter) ReportCleanupStarted() {
	switch pr.format {
	case FormatJSON:
		data, _ := json.Marshal(map[string]interface{}{
			"event":     "cleanup_started",
			"timestamp": time.Now(),
		})
		fmt.Println(string(data))
	case FormatTUI:
		pr.clearLine()
		fmt.Println("cleaning up containers and networks...")
	default:
		fmt.Println("[CLEANUP] Starting cleanup...")
	}
}

// ReportCleanupCompleted reports cleanup completed.
func (pr *ProgressReporter) ReportCleanupCompleted(succeeded, failed int) {
	switch pr.format {
	case FormatJSON:
		data, _ := json.Marshal(map[string]interface{}{
			"event":     "cleanup_completed",
			"succeeded": succeeded,
			"failed":    failed,
			"timestamp": time.Now(),
		})
		fmt.Println(string(data))
	case FormatTUI:
		pr.clearLine()
		fmt.Printf("cleanup complete: %d succeeded, %d failed\n", succeeded, failed)
	default:
		fmt.Printf("[CLEANUP] Complete: %d succeeded, %d failed\n", succeeded, failed)
	}
}

// ReportRunCompleted reports run completion.
func (pr *ProgressReporter) ReportRunCompleted(report *RunReport) {
	switch pr.format {
	case FormatJSON:
		data, _ := json.Marshal(map[string]interface{}{
			"event":     "run_completed",
			"report":    report,
			"timestamp": time.Now(),
		})
		fmt.Println(string(data))
	case FormatTUI:
		pr.clearLine()
		pr.printRunSummary(report)
	default:
		pr.printTextSummary(report)
	}
}

// reportText outputs progress in plain text format.
func (pr *ProgressReporter) reportText(state LiveRunState) {
	elapsed := time.Since(state.StartTime).Round(time.Second)
	fmt.Printf("[%s] %s | %d/%d completed (%d ok, %d failed) | running=%d | elapsed=%s\n",
		time.Now().Format("15:04:05"),
		state.Status,
		state.Completed, state.Total,
		state.Successful, state.Failed,
		state.Running,
		elapsed,
	)
}

// reportJSON outputs progress in JSON format.
func (pr *ProgressReporter) reportJSON(state LiveRunState) {
	data, err := json.Marshal(state)
	if err != nil {
		pr.logger.Error("Failed to marshal state", "error", err)
		return
	}
	fmt.Println(string(data))
}

// reportTUI outputs progress in terminal UI format.
func (pr *ProgressReporter) reportTUI(state LiveRunState) {
	pr.clearScreen()

	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("   Run: %s (%s)\n", state.ExecutionID, state.Benchmark)
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()

	fmt.Printf("Status:  %s\n", state.Status)
	fmt.Printf("Elapsed: %s\n", state.Elapsed.Round(time.Second))
	fmt.Printf("Progress: %d/%d completed (%d successful, %d failed), %d running\n",
		state.Completed, state.Total, state.Successful, state.Failed, state.Running)
	fmt.Println()

	if len(state.LatestCosts) > 0 {
		fmt.Println("Model cost so far:")
		for name, cost := range state.LatestCosts {
			fmt.Printf("   • %s: $%.4f\n", name, cost)
		}
		fmt.Println()
	}

	fmt.Println(strings.Repeat("-", 80))
}

// printRunSummary prints a run summary in TUI format.
func (pr *ProgressReporter) printRunSummary(report *RunReport) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("   RUN SUMMARY")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()

	fmt.Printf("Execution ID: %s\n", report.ExecutionID)
	fmt.Printf("Benchmark:    %s\n", report.Benchmark)
	fmt.Printf("Duration:     %s\n", report.Duration)
	fmt.Println()

	fmt.Printf("Total:      %d\n", report.Total)
	fmt.Printf("Completed:  %d\n", report.Completed)
	fmt.Printf("Successful: %d\n", report.Successful)
	fmt.Printf("Failed:     %d\n", report.Failed)
	if report.BenchmarkTotal > 0 {
		fmt.Printf("Success rate: %.1f%% of %d total\n", report.SuccessRate*100, report.BenchmarkTotal)
	} else {
		fmt.Printf("Success rate: %.1f%%\n", report.SuccessRate*100)
	}
	fmt.Println()

	fmt.Printf("Cleanup: %d succeeded, %d failed\n",
		report.CleanupSummary.Succeeded,
		report.CleanupSummary.Failed,
	)
	fmt.Println()

	fmt.Println(strings.Repeat("=", 80))
}

// printTextSummary prints a run summary in plain text format.
func (pr *ProgressReporter) printTextSummary(report *RunReport) {
	fmt.Printf("\n[RUN SUMMARY] %s\n", report.ExecutionID)
	fmt.Printf("  Benchmark:  %s\n", report.Benchmark)
	fmt.Printf("  Duration:   %s\n", report.Duration)
	fmt.Printf("  Total:      %d\n", report.Total)
	fmt.Printf("  Completed:  %d\n", report.Completed)
	fmt.Printf("  Successful: %d\n", report.Successful)
	fmt.Printf("  Failed:     %d\n", report.Failed)
	fmt.Printf("  Success rate: %.1f%%\n", report.SuccessRate*100)
	fmt.Printf("  Cleanup: %d succeeded, %d failed\n",
		report.CleanupSummary.Succeeded,
		report.CleanupSummary.Failed,
	)
	fmt.Println()
}

// clearScreen clears the terminal screen.
func (pr *ProgressReporter) clearScreen() {
	fmt.Print("\033[2J\033[H")
}

// clearLine clears the current line.
func (pr *ProgressReporter) clearLine() {
	fmt.Print("\033[K")
}
