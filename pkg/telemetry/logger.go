package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// StructuredLogger emits structured log entries.
type StructuredLogger interface {
	Emit(Entry) error
}

// Severity represents the log severity level.
type Severity string

const (
	// SeverityDebug captures detailed tracing of rule and parameter resolution.
	SeverityDebug Severity = "debug"
	// SeverityInfo captures normal operation messages.
	SeverityInfo Severity = "info"
	// SeverityWarn captures recoverable anomalies.
	SeverityWarn Severity = "warn"
	// SeverityError captures unrecoverable or failure states.
	SeverityError Severity = "error"
)

var severityRank = map[Severity]int{
	SeverityDebug: 0,
	SeverityInfo:  1,
	SeverityWarn:  2,
	SeverityError: 3,
}

// ParseSeverity converts a report level keyword into a Severity. An empty
// keyword selects SeverityInfo.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return SeverityDebug, nil
	case "", "info":
		return SeverityInfo, nil
	case "warn", "warning":
		return SeverityWarn, nil
	case "error", "fatal":
		return SeverityError, nil
	default:
		return "", fmt.Errorf("unknown report level %q", s)
	}
}

// Category captures the structured log category.
type Category string

const (
	// CategoryWorkflow marks pipeline phase events.
	CategoryWorkflow Category = "workflow"
	// CategoryProcess marks events of one transformer, target or validator.
	CategoryProcess Category = "process"
	// CategoryDiagnostic marks configuration and rule findings.
	CategoryDiagnostic Category = "diagnostic"
)

// Entry describes a structured log entry prior to serialization.
type Entry struct {
	Category Category
	Message  string
	Severity Severity
	Step     string
	Process  string
	Backend  string
	Metadata map[string]string
	Error    error
}

// Logger emits structured JSON logs.
type Logger struct {
	enc   *json.Encoder
	runID string
	mu    sync.Mutex
}

// NewLogger constructs a logger for one pipeline run.
func NewLogger(w io.Writer, runID string) (*Logger, error) {
	if w == nil {
		return nil, errors.New("logger writer is required")
	}
	trimmed := strings.TrimSpace(runID)
	if trimmed == "" {
		return nil, errors.New("run ID is required")
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Logger{enc: enc, runID: trimmed}, nil
}

// RunID returns the identifier stamped on every entry.
func (l *Logger) RunID() string { return l.runID }

// Emit writes the provided entry to the underlying writer.
func (l *Logger) Emit(entry Entry) error {
	if l == nil {
		return errors.New("logger is nil")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	severity := entry.Severity
	if severity == "" {
		severity = SeverityInfo
	}

	metadata := map[string]string{}
	if len(entry.Metadata) > 0 {
		metadata = make(map[string]string, len(entry.Metadata))
		for k, v := range entry.Metadata {
			metadata[k] = v
		}
	}

	if entry.Error != nil {
		severity = SeverityError
		metadata["error"] = entry.Error.Error()
	}

	payload := map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"category":  string(entry.Category),
		"message":   entry.Message,
		"severity":  string(severity),
		"runId":     l.runID,
	}

	if entry.Step != "" {
		payload["step"] = entry.Step
	}
	if entry.Process != "" {
		payload["process"] = entry.Process
	}
	if entry.Backend != "" {
		payload["backend"] = entry.Backend
	}
	if len(metadata) > 0 {
		payload["metadata"] = metadata
	}

	return l.enc.Encode(payload)
}

// LevelFilter drops entries below a minimum severity.
type LevelFilter struct {
	Next StructuredLogger
	Min  Severity
}

// Emit forwards entry when its effective severity reaches Min.
func (f LevelFilter) Emit(entry Entry) error {
	severity := entry.Severity
	if severity == "" {
		severity = SeverityInfo
	}
	if entry.Error != nil {
		severity = SeverityError
	}
	if severityRank[severity] < severityRank[f.Min] {
		return nil
	}
	return f.Next.Emit(entry)
}

// Nop discards every entry.
type Nop struct{}

// Emit implements StructuredLogger.
func (Nop) Emit(Entry) error { return nil }

// Recorder keeps emitted entries in memory.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// Emit implements StructuredLogger.
func (r *Recorder) Emit(entry Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

// Entries returns a copy of the recorded entries.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}
