// Package audit provides the centralized error and audit logger.
//
// Every subsystem logs through a single Logger instance: errors go to
// error.log, actions to audit.log, one JSON record per line. Files that
// grow past the size limit are moved whole into an archive directory.
// Repeated errors from one source within the alert window escalate as an
// error.alert_triggered event on the wired event bus.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hibasheikh90/vaultpilot/internal/bus"
)

// Severity classifies an error record.
type Severity string

const (
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// Record is one line in error.log. Records are append-only: rotation moves
// whole files, never edits them.
type Record struct {
	TS        string         `json:"ts"`
	Severity  Severity       `json:"severity"`
	Source    string         `json:"source"`
	ErrorType string         `json:"error_type"`
	Error     string         `json:"error"`
	Context   map[string]any `json:"context"`
	Resolved  bool           `json:"resolved"`
}

// AuditRecord is one line in audit.log.
type AuditRecord struct {
	TS      string         `json:"ts"`
	Action  string         `json:"action"`
	Status  string         `json:"status"`
	Details map[string]any `json:"details"`
}

// Options configures a Logger. Zero values fall back to the defaults
// documented on each field.
type Options struct {
	// Dir is the log directory; error.log, audit.log and archive/ live here.
	Dir string
	// AlertThreshold is the per-source error count that triggers an alert.
	// Default 3.
	AlertThreshold int
	// AlertWindow is the sliding window for the alert rule. Default 1h.
	AlertWindow time.Duration
	// MaxFileSizeMB is the rotation threshold per log file. Default 50.
	MaxFileSizeMB int
}

// Logger writes structured error and audit records as JSON lines.
//
// A single mutex serializes all appends; the Logger is safe within one
// process but relies on the scheduler lock for cross-process exclusion.
type Logger struct {
	mu           sync.Mutex
	errorLog     string
	auditLog     string
	archiveDir   string
	threshold    int
	window       time.Duration
	maxFileBytes int64

	// recent tracks error timestamps per source for alert escalation.
	recent map[string][]time.Time

	// eventBus receives error.alert_triggered; wired after construction.
	eventBus *bus.Bus
}

// New creates a Logger writing under opts.Dir, creating the directory
// tree as needed.
func New(opts Options) (*Logger, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("audit: log directory is required")
	}
	if opts.AlertThreshold <= 0 {
		opts.AlertThreshold = 3
	}
	if opts.AlertWindow <= 0 {
		opts.AlertWindow = time.Hour
	}
	if opts.MaxFileSizeMB <= 0 {
		opts.MaxFileSizeMB = 50
	}

	archiveDir := filepath.Join(opts.Dir, "archive")
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directories: %w", err)
	}

	return &Logger{
		errorLog:     filepath.Join(opts.Dir, "error.log"),
		auditLog:     filepath.Join(opts.Dir, "audit.log"),
		archiveDir:   archiveDir,
		threshold:    opts.AlertThreshold,
		window:       opts.AlertWindow,
		maxFileBytes: int64(opts.MaxFileSizeMB) * 1024 * 1024,
		recent:       make(map[string][]time.Time),
	}, nil
}

// SetEventBus attaches the event bus for alert escalation.
func (l *Logger) SetEventBus(b *bus.Bus) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.eventBus = b
}

// LogError writes an ERROR record for source and returns it.
func (l *Logger) LogError(source string, err error, context map[string]any) Record {
	return l.LogErrorSeverity(source, err, context, SeverityError)
}

// LogErrorSeverity writes an error record with an explicit severity.
func (l *Logger) LogErrorSeverity(source string, err error, context map[string]any, severity Severity) Record {
	now := time.Now()
	if context == nil {
		context = map[string]any{}
	}
	record := Record{
		TS:        now.Format(time.RFC3339),
		Severity:  severity,
		Source:    source,
		ErrorType: fmt.Sprintf("%T", err),
		Error:     errString(err),
		Context:   context,
		Resolved:  false,
	}

	l.append(l.errorLog, record)
	l.checkAlertEscalation(source, now)

	return record
}

// LogAudit writes an audit record and returns it.
func (l *Logger) LogAudit(action, status string, details map[string]any) AuditRecord {
	if details == nil {
		details = map[string]any{}
	}
	record := AuditRecord{
		TS:      time.Now().Format(time.RFC3339),
		Action:  action,
		Status:  status,
		Details: details,
	}
	l.append(l.auditLog, record)
	return record
}

// RotateIfNeeded archives any log file that exceeds the size limit and
// returns the archived filenames. A fresh file is created implicitly on
// the next append.
func (l *Logger) RotateIfNeeded() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var archived []string
	for _, logPath := range []string{l.errorLog, l.auditLog} {
		info, err := os.Stat(logPath)
		if err != nil || info.Size() <= l.maxFileBytes {
			continue
		}
		if name := l.rotate(logPath); name != "" {
			archived = append(archived, name)
		}
	}
	return archived
}

// ForceRotate archives every non-empty log file regardless of size.
func (l *Logger) ForceRotate() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var archived []string
	for _, logPath := range []string{l.errorLog, l.auditLog} {
		info, err := os.Stat(logPath)
		if err != nil || info.Size() == 0 {
			continue
		}
		if name := l.rotate(logPath); name != "" {
			archived = append(archived, name)
		}
	}
	return archived
}

// RecentErrors reads the last limit error records from error.log.
func (l *Logger) RecentErrors(limit int) []Record {
	var records []Record
	for _, line := range tailLines(l.errorLog, limit) {
		var r Record
		if err := json.Unmarshal([]byte(line), &r); err == nil {
			records = append(records, r)
		}
	}
	return records
}

// RecentAudit reads the last limit audit records from audit.log.
func (l *Logger) RecentAudit(limit int) []AuditRecord {
	var records []AuditRecord
	for _, line := range tailLines(l.auditLog, limit) {
		var r AuditRecord
		if err := json.Unmarshal([]byte(line), &r); err == nil {
			records = append(records, r)
		}
	}
	return records
}

// ErrorCountSince counts errors from source within the trailing window.
func (l *Logger) ErrorCountSince(source string, window time.Duration) int {
	cutoff := time.Now().Add(-window)
	l.mu.Lock()
	defer l.mu.Unlock()
	count := 0
	for _, ts := range l.recent[source] {
		if !ts.Before(cutoff) {
			count++
		}
	}
	return count
}

func (l *Logger) append(logPath string, record any) {
	line, err := json.Marshal(record)
	if err != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	f.Write(append(line, '\n'))
}

// checkAlertEscalation tracks error frequency per source and emits
// error.alert_triggered once the threshold is reached within the window.
// The emit happens outside the mutex: alert handlers may log errors of
// their own.
func (l *Logger) checkAlertEscalation(source string, now time.Time) {
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	window := append(l.recent[source], now)
	pruned := window[:0]
	for _, ts := range window {
		if !ts.Before(cutoff) {
			pruned = append(pruned, ts)
		}
	}
	l.recent[source] = pruned
	count := len(pruned)
	eventBus := l.eventBus
	l.mu.Unlock()

	if count >= l.threshold && eventBus != nil {
		eventBus.Emit(bus.TopicErrorAlert, map[string]any{
			"source":         source,
			"error_count":    count,
			"window_seconds": int(l.window.Seconds()),
			"ts":             now.Format(time.RFC3339),
		})
	}
}

// rotate moves a log file into the archive directory with a timestamp
// suffix. Caller holds the mutex.
func (l *Logger) rotate(logPath string) string {
	base := filepath.Base(logPath)
	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]
	name := fmt.Sprintf("%s_%s%s", stem, time.Now().Format("20060102_150405"), ext)
	if err := os.Rename(logPath, filepath.Join(l.archiveDir, name)); err != nil {
		return ""
	}
	return name
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// tailLines reads the last limit lines of a file. Missing files yield nil.
func tailLines(path string, limit int) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	return lines
}
