package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"testing"
)

func TestLoggerEmitPopulatesRequiredFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "run-123")
	if err != nil {
		t.Fatalf("unexpected error constructing logger: %v", err)
	}

	err = logger.Emit(Entry{
		Category: CategoryWorkflow,
		Severity: SeverityInfo,
		Message:  "acquiring model",
		Step:     "acquire",
	})
	if err != nil {
		t.Fatalf("emit failed: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}

	required := []string{"timestamp", "category", "message", "severity"}
	for _, key := range required {
		if _, ok := payload[key]; !ok {
			t.Fatalf("expected key %q in payload: %v", key, payload)
		}
	}

	if payload["category"] != string(CategoryWorkflow) {
		t.Fatalf("expected category %q, got %v", CategoryWorkflow, payload["category"])
	}

	if payload["runId"] != "run-123" {
		t.Fatalf("expected runId to be propagated, got %v", payload["runId"])
	}

	if payload["step"] != "acquire" {
		t.Fatalf("expected step to be preserved, got %v", payload["step"])
	}
}

func TestLoggerEmitEscalatesSeverityOnError(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "run-123")
	if err != nil {
		t.Fatalf("unexpected error constructing logger: %v", err)
	}

	err = logger.Emit(Entry{
		Category: CategoryProcess,
		Message:  "transform failed",
		Severity: SeverityInfo,
		Process:  "T1",
		Backend:  "tagger",
		Error:    errors.New("boom"),
	})
	if err != nil {
		t.Fatalf("emit failed: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}

	if payload["severity"] != string(SeverityError) {
		t.Fatalf("expected severity escalated to error, got %v", payload["severity"])
	}

	metadata, ok := payload["metadata"].(map[string]any)
	if !ok {
		t.Fatalf("expected metadata map, got %T", payload["metadata"])
	}

	if metadata["error"] != "boom" {
		t.Fatalf("expected error metadata to be captured, got %v", metadata["error"])
	}

	if payload["process"] != "T1" || payload["backend"] != "tagger" {
		t.Fatalf("expected process and backend preserved, got %v", payload)
	}
}

func TestLoggerRequiresRunID(t *testing.T) {
	_, err := NewLogger(io.Discard, "")
	if err == nil {
		t.Fatalf("expected error when run ID missing")
	}
}

func TestLevelFilterDropsLowerSeverities(t *testing.T) {
	rec := &Recorder{}
	filter := LevelFilter{Next: rec, Min: SeverityWarn}

	_ = filter.Emit(Entry{Message: "info"})
	_ = filter.Emit(Entry{Message: "warn", Severity: SeverityWarn})
	_ = filter.Emit(Entry{Message: "failed", Severity: SeverityDebug, Error: errors.New("x")})

	entries := rec.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected two entries to pass the filter, got %d", len(entries))
	}
	if entries[1].Message != "failed" {
		t.Fatalf("expected entries with errors to count as errors, got %+v", entries[1])
	}
}

func TestParseSeverity(t *testing.T) {
	cases := map[string]Severity{
		"":        SeverityInfo,
		"DEBUG":   SeverityDebug,
		"WARNING": SeverityWarn,
		"fatal":   SeverityError,
	}
	for raw, want := range cases {
		got, err := ParseSeverity(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if got != want {
			t.Fatalf("parse %q: expected %s, got %s", raw, want, got)
		}
	}
	if _, err := ParseSeverity("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
