package reporting

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ReportFormat represents the report output format.
type ReportFormat string

const (
	ReportFormatHTML ReportFormat = "html"
	ReportFormatText ReportFormat = "text"
	ReportFormatJSON ReportFormat = "json"
)

// Formatter generates formatted reports from run data.
type Formatter struct {
	logger *Logger
}

// NewFormatter creates a new report formatter.
func NewFormatter(logger *Logger) *Formatter {
	return &Formatter{
		logger: logger,
	}
}

// GenerateReport generates a report in the specified format.
func (f *Formatter) GenerateReport(report *RunReport, format ReportFormat, outputPath string) error {
	switch format {
	case ReportFormatHTML:
		return f.generateHTMLReport(report, outputPath)
	case ReportFormatText:
		return f.generateTextReport(report, outputPath)
	case ReportFormatJSON:
		return fmt.Errorf("JSON format is automatically saved by storage")
	default:
		return fmt.Errorf("unsupported report format: %s", format)
	}
}

// generateHTMLReport generates an HTML report.
func (f *Formatter) generateHTMLReport(report *RunReport, outputPath string) error {
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"formatTime": func(t time.Time) string {
			return t.Format("2006-01-02 15:04:05")
		},
		"statusClass": func(captured bool) string {
			if captured {
				return "pass"
			}
			return "fail"
		},
		"percent": func(rate float64) float64 {
			return rate * 100
		},
	}).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse HTML template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, report); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	if err := os.WriteFile(outputPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write HTML report: %w", err)
	}

	f.logger.Info("HTML report generated", "path", outputPath)
	return nil
}

// generateTextReport generates a plain text report.
func (f *Formatter) generateTextReport(report *RunReport, outputPath string) error {
	var buf bytes.Buffer

	buf.WriteString(strings.Repeat("=", 80) + "\n")
	buf.WriteString("   CTF RUN REPORT\n")
	buf.WriteString(strings.Repeat("=", 80) + "\n\n")

	buf.WriteString("RUN SUMMARY\n")
	buf.WriteString(strings.Repeat("-", 80) + "\n")
	buf.WriteString(fmt.Sprintf("Execution ID: %s\n", report.ExecutionID))
	buf.WriteString(fmt.Sprintf("Benchmark:    %s\n", report.Benchmark))
	buf.WriteString(fmt.Sprintf("Start Time:   %s\n", report.StartTime.Format("2006-01-02 15:04:05")))
	buf.WriteString(fmt.Sprintf("End Time:     %s\n", report.EndTime.Format("2006-01-02 15:04:05")))
	buf.WriteString(fmt.Sprintf("Duration:     %s\n", report.Duration))
	buf.WriteString(fmt.Sprintf("Total:        %d\n", report.Total))
	buf.WriteString(fmt.Sprintf("Completed:    %d\n", report.Completed))
	buf.WriteString(fmt.Sprintf("Successful:   %d\n", report.Successful))
	buf.WriteString(fmt.Sprintf("Failed:       %d\n", report.Failed))
	buf.WriteString(fmt.Sprintf("Success rate: %.1f%%\n", report.SuccessRate*100))
	buf.WriteString("\n")

	if len(report.Attempts) > 0 {
		buf.WriteString("ATTEMPTS\n")
		buf.WriteString(strings.Repeat("-", 80) + "\n")
		for i, a := range report.Attempts {
			status := "FAILED"
			if a.Captured {
				status = "CAPTURED"
			}
			buf.WriteString(fmt.Sprintf("%d. [%s] %s try=%d state=%s\n", i+1, status, a.InstanceID, a.TryNumber, a.State))
			if !a.TrajectoryFound {
				buf.WriteString("   warning: no trajectory file found\n")
			}
		}
		buf.WriteString("\n")
	}

	buf.WriteString("CLEANUP SUMMARY\n")
	buf.WriteString(strings.Repeat("-", 80) + "\n")
	buf.WriteString(fmt.Sprintf("Total Actions: %d\n", report.CleanupSummary.TotalActions))
	buf.WriteString(fmt.Sprintf("Succeeded:     %d\n", report.CleanupSummary.Succeeded))
	buf.WriteString(fmt.Sprintf("Failed:        %d\n", report.CleanupSummary.Failed))
	buf.WriteString("\n")

	if len(report.CleanupLog) > 0 {
		buf.WriteString("CLEANUP AUDIT LOG\n")
		buf.WriteString(strings.Repeat("-", 80) + "\n")
		for i, entry := range report.CleanupLog {
			status := "ok"
			if !entry.Success {
				status = "FAILED"
			}
			buf.WriteString(fmt.Sprintf("%d. [%s] %s %s (%s)\n",
				i+1,
				entry.Timestamp.Format("15:04:05"),
				status,
				entry.Action,
				entry.Target,
			))
			if entry.Error != "" {
				buf.WriteString(fmt.Sprintf("   Error: %s\n", entry.Error))
			}
		}
		buf.WriteString("\n")
	}

	if len(report.Errors) > 0 {
		buf.WriteString("ERRORS\n")
		buf.WriteString(strings.Repeat("-", 80) + "\n")
		for i, err := range report.Errors {
			buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, err))
		}
		buf.WriteString("\n")
	}

	buf.WriteString(strings.Repeat("=", 80) + "\n")
	buf.WriteString(fmt.Sprintf("Generated: %s\n", time.Now().Format("2006-01-02 15:04:05")))
	buf.WriteString(strings.Repeat("=", 80) + "\n")

	if err := os.WriteFile(outputPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write text report: %w", err)
	}

	f.logger.Info("Text report generated", "path", outputPath)
	return nil
}

// CompareReports generates a comparison report for multiple runs, typically
// repeated runs of the same benchmark across model versions.
func (f *Formatter) CompareReports(reports []*RunReport, outputPath string) error {
	if len(reports) < 2 {
		return fmt.Errorf("need at least 2 reports to compare")
	}

	var buf bytes.Buffer

	buf.WriteString(strings.Repeat("=", 80) + "\n")
	buf.WriteString("   CTF RUN COMPARISON\n")
	buf.WriteString(strings.Repeat("=", 80) + "\n\n")

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].StartTime.Before(reports[j].StartTime)
	})

	buf.WriteString(fmt.Sprintf("%-20s %-12s %-10s %-10s %-10s\n",
		"Execution ID", "Benchmark", "Duration", "Success%", "Captured"))
	buf.WriteString(strings.Repeat("-", 80) + "\n")

	for _, report := range reports {
		buf.WriteString(fmt.Sprintf("%-20s %-12s %-10s %-9.1f%% %d/%d\n",
			truncate(report.ExecutionID, 20),
			truncate(report.Benchmark, 12),
			report.Duration,
			report.SuccessRate*100,
			report.Successful,
			report.Total,
		))
	}
	buf.WriteString("\n")

	if err := os.WriteFile(outputPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write comparison report: %w", err)
	}

	f.logger.Info("Comparison report generated", "path", outputPath)
	return nil
}

// GetReportPath generates a report file path based on a run report and format.
func GetReportPath(report *RunReport, format ReportFormat, outputDir string) string {
	timestamp := report.StartTime.Format("20060102-150405")
	ext := string(format)
	filename := fmt.Sprintf("report-%s-%s.%s", timestamp, report.ExecutionID, ext)
	return filepath.Join(outputDir, filename)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>CTF Run Report - {{.ExecutionID}}</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
            line-height: 1.6;
            color: #333;
            max-width: 1200px;
            margin: 0 auto;
            padding: 20px;
            background-color: #f5f5f5;
        }
        .container {
            background-color: white;
            border-radius: 8px;
            box-shadow: 0 2px 4px rgba(0,0,0,0.1);
            padding: 30px;
        }
        h1, h2 {
            color: #2c3e50;
            border-bottom: 2px solid #3498db;
            padding-bottom: 10px;
        }
        .header {
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            color: white;
            padding: 30px;
            border-radius: 8px 8px 0 0;
            margin: -30px -30px 30px -30px;
        }
        .info-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(200px, 1fr));
            gap: 20px;
            margin: 20px 0;
        }
        .info-box {
            background-color: #ecf0f1;
            padding: 15px;
            border-radius: 4px;
        }
        .info-label {
            font-weight: bold;
            color: #7f8c8d;
            font-size: 0.9em;
            margin-bottom: 5px;
        }
        .info-value {
            font-size: 1.1em;
            color: #2c3e50;
        }
        table {
            width: 100%;
            border-collapse: collapse;
            margin: 20px 0;
        }
        th, td {
            padding: 12px;
            text-align: left;
            border-bottom: 1px solid #ddd;
        }
        th {
            background-color: #3498db;
            color: white;
        }
        tr:hover {
            background-color: #f5f5f5;
        }
        .badge {
            display: inline-block;
            padding: 3px 10px;
            border-radius: 4px;
            font-weight: bold;
            font-size: 0.85em;
        }
        .badge.pass {
            background-color: #27ae60;
            color: white;
        }
        .badge.fail {
            background-color: #e74c3c;
            color: white;
        }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>CTF Run Report</h1>
            <p>{{.Benchmark}}</p>
            <p>Execution ID: {{.ExecutionID}}</p>
        </div>

        <h2>Summary</h2>
        <div class="info-grid">
            <div class="info-box">
                <div class="info-label">Start Time</div>
                <div class="info-value">{{formatTime .StartTime}}</div>
            </div>
            <div class="info-box">
                <div class="info-label">Duration</div>
                <div class="info-value">{{.Duration}}</div>
            </div>
            <div class="info-box">
                <div class="info-label">Success Rate</div>
                <div class="info-value">{{printf "%.1f" (percent .SuccessRate)}}%</div>
            </div>
            <div class="info-box">
                <div class="info-label">Total / Successful</div>
                <div class="info-value">{{.Total}} / {{.Successful}}</div>
            </div>
        </div>

        {{if .Attempts}}
        <h2>Attempts</h2>
        <table>
            <thead>
                <tr>
                    <th>Instance</th>
                    <th>Try</th>
                    <th>State</th>
                    <th>Result</th>
                    <th>Trajectory</th>
                </tr>
            </thead>
            <tbody>
                {{range .Attempts}}
                <tr>
                    <td>{{.InstanceID}}</td>
                    <td>{{.TryNumber}}</td>
                    <td>{{.State}}</td>
                    <td><span class="badge {{statusClass .Captured}}">{{if .Captured}}CAPTURED{{else}}FAILED{{end}}</span></td>
                    <td>{{if .TrajectoryFound}}present{{else}}missing{{end}}</td>
                </tr>
                {{end}}
            </tbody>
        </table>
        {{end}}

        <h2>Cleanup Summary</h2>
        <div class="info-grid">
            <div class="info-box">
                <div class="info-label">Total Actions</div>
                <div class="info-value">{{.CleanupSummary.TotalActions}}</div>
            </div>
            <div class="info-box">
                <div class="info-label">Succeeded</div>
                <div class="info-value">{{.CleanupSummary.Succeeded}}</div>
            </div>
            <div class="info-box">
                <div class="info-label">Failed</div>
                <div class="info-value">{{.CleanupSummary.Failed}}</div>
            </div>
        </div>

        {{if .Errors}}
        <h2>Errors</h2>
        <ul>
            {{range .Errors}}
            <li>{{.}}</li>
            {{end}}
        </ul>
        {{end}}

        <p style="text-align: center; color: #7f8c8d; margin-top: 30px;">
            Generated by the CTF parallel execution engine • {{formatTime .EndTime}}
        </p>
    </div>
</body>
</html>
`
