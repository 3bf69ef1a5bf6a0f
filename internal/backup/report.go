package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Run statuses derived when a report is finished
const (
	RunStatusSuccess = "success"
	RunStatusPartial = "partial"
	RunStatusAborted = "aborted"
)

// RunReport captures the outcome of a single backup run
type RunReport struct {
	RunID      string             `json:"run_id"`
	Status     string             `json:"status"`
	Storage    string             `json:"storage"`
	DryRun     bool               `json:"dry_run,omitempty"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Duration   time.Duration      `json:"duration"`
	Databases  []DatabaseResult   `json:"databases"`
	Retention  []*RetentionResult `json:"retention,omitempty"`
	Fatal      string             `json:"fatal,omitempty"`

	fatalErr error
}

// NewRunReport starts a report for a run against the named storage provider
func NewRunReport(storage string, dryRun bool) *RunReport {
	return &RunReport{
		RunID:     uuid.New().String(),
		Storage:   storage,
		DryRun:    dryRun,
		StartedAt: time.Now(),
	}
}

// Record appends a per-database outcome
func (r *RunReport) Record(result DatabaseResult) {
	r.Databases = append(r.Databases, result)
}

// AddRetention appends the result of a retention pass
func (r *RunReport) AddRetention(result *RetentionResult) {
	r.Retention = append(r.Retention, result)
}

// Finish stamps the end time and derives the overall status
func (r *RunReport) Finish() {
	r.FinishedAt = time.Now()
	r.Duration = r.FinishedAt.Sub(r.StartedAt)

	switch {
	case r.Fatal != "":
		r.Status = RunStatusAborted
	case r.Failed() > 0:
		r.Status = RunStatusPartial
	default:
		r.Status = RunStatusSuccess
	}
}

// Abort marks the run as fatally terminated and finishes the report
func (r *RunReport) Abort(err error) {
	if err != nil {
		r.Fatal = err.Error()
		r.fatalErr = err
	}
	r.Finish()
}

// Uploaded counts databases whose artifact reached storage
func (r *RunReport) Uploaded() int {
	return r.countStatus(StatusUploaded)
}

// Unchanged counts databases skipped because nothing changed
func (r *RunReport) Unchanged() int {
	return r.countStatus(StatusUnchanged)
}

// Failed counts databases whose backup failed
func (r *RunReport) Failed() int {
	return r.countStatus(StatusFailed)
}

func (r *RunReport) countStatus(status ResultStatus) int {
	count := 0
	for _, result := range r.Databases {
		if result.Status == status {
			count++
		}
	}
	return count
}

// ExitCode maps the run outcome to the process exit code. Configuration,
// validation, and storage-validation aborts exit 2. An interrupted run or
// partial per-database failures exit 1.
func (r *RunReport) ExitCode() int {
	switch {
	case r.fatalErr != nil && isConfigAbort(r.fatalErr):
		return 2
	case r.Fatal != "":
		return 1
	case r.Failed() > 0:
		return 1
	default:
		return 0
	}
}

// isConfigAbort reports whether a fatal error is a configuration-class
// abort rather than a runtime interruption.
func isConfigAbort(err error) bool {
	var backupErr *BackupError
	if errors.As(err, &backupErr) {
		switch backupErr.Type {
		case BackupErrorTypeConfiguration, BackupErrorTypeValidation, BackupErrorTypeStorage:
			return true
		}
	}
	return false
}

// Summary returns a one-line human summary for logs
func (r *RunReport) Summary() string {
	return fmt.Sprintf("%d uploaded, %d unchanged, %d failed in %s",
		r.Uploaded(), r.Unchanged(), r.Failed(), r.Duration.Round(time.Millisecond))
}

// Save writes the report as indented JSON into dir and returns the path
func (r *RunReport) Save(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	// The run ID suffix keeps reports of runs started within the same
	// second from overwriting each other.
	suffix := r.RunID
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	filename := fmt.Sprintf("run-report_%s_%s.json", r.StartedAt.Format("2006-01-02_15-04-05"), suffix)
	fullPath := filepath.Join(dir, filename)

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}

	return fullPath, nil
}

// FormatBytes formats byte size in human-readable format
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
