package config_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/ShapeChange/ShapeChange-sub001/pkg/config"
)

func sampleConfiguration() *config.Configuration {
	return &config.Configuration{
		SourcePath: "/etc/shapechange/shapechange.yaml",
		Input:      config.Input{ID: "INPUT", ModelType: "yaml"},
		Transformers: []config.Transformer{
			{Process: config.Process{ID: "T1", Class: "tagger", Mode: config.ModeEnabled}, Input: "INPUT"},
			{Process: config.Process{ID: "T2", Class: "tagger", Mode: config.ModeDisabled}, Input: "T1"},
		},
		Targets: []config.Target{
			{Process: config.Process{ID: "listing-1", Class: "listing", Mode: config.ModeEnabled}, Inputs: []string{"INPUT", "T2"}},
			{Process: config.Process{ID: "catalogue-1", Class: "catalogue", Mode: config.ModeDiagnosticsOnly}, Inputs: []string{"T1"}},
		},
	}
}

func TestParseMode(t *testing.T) {
	cases := map[string]config.Mode{
		"":                config.ModeEnabled,
		"ENABLED":         config.ModeEnabled,
		"disabled":        config.ModeDisabled,
		"diagnosticsOnly": config.ModeDiagnosticsOnly,
	}
	for raw, want := range cases {
		got, err := config.ParseMode(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if got != want {
			t.Fatalf("parse %q: expected %s, got %s", raw, want, got)
		}
	}
	if _, err := config.ParseMode("sometimes"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestParametersCloneIsIndependent(t *testing.T) {
	source := config.Parameters{"outputDirectory": "out"}
	cloned := source.Clone()
	cloned["outputDirectory"] = "elsewhere"

	if source["outputDirectory"] != "out" {
		t.Fatalf("expected original parameters unchanged, got %q", source["outputDirectory"])
	}
}

func TestConfigurationTreeQueries(t *testing.T) {
	cfg := sampleConfiguration()

	fed := cfg.TargetsFed("INPUT")
	if len(fed) != 1 || fed[0].ID != "listing-1" {
		t.Fatalf("expected listing-1 fed by INPUT, got %+v", fed)
	}
	if got := cfg.TargetsFed("T2"); len(got) != 1 {
		t.Fatalf("expected listing-1 fed by T2 too, got %+v", got)
	}
	children := cfg.TransformersFed("T1")
	if len(children) != 1 || children[0].ID != "T2" {
		t.Fatalf("expected T2 fed by T1, got %+v", children)
	}
	if !cfg.IsProvider("INPUT") || !cfg.IsProvider("T2") || cfg.IsProvider("listing-1") {
		t.Fatalf("unexpected provider classification")
	}
	if len(cfg.Processes()) != 4 {
		t.Fatalf("expected four processes, got %d", len(cfg.Processes()))
	}
	if cfg.Transformers[1].Enabled() {
		t.Fatalf("expected disabled transformer to report not enabled")
	}
	if !cfg.Targets[1].Enabled() {
		t.Fatalf("expected diagnostics-only target to be enabled")
	}
}

func TestFormatSummaryTextAndJSON(t *testing.T) {
	cfg := sampleConfiguration()

	text, err := config.FormatSummary(cfg, config.SummaryFormatText)
	if err != nil {
		t.Fatalf("text summary error: %v", err)
	}
	if !strings.Contains(text, "Input:   INPUT (yaml)") {
		t.Fatalf("text summary missing input header:\n%s", text)
	}
	if !strings.Contains(text, "  transformer  T2") {
		t.Fatalf("text summary missing indented child transformer:\n%s", text)
	}

	encoded, err := config.FormatSummary(cfg, config.SummaryFormatJSON)
	if err != nil {
		t.Fatalf("json summary error: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(encoded), &payload); err != nil {
		t.Fatalf("decode json summary: %v", err)
	}
	processes, ok := payload["processes"].([]any)
	if !ok || len(processes) != 5 {
		t.Fatalf("expected five process rows, got %v", payload["processes"])
	}

	if _, err := config.FormatSummary(cfg, "yaml"); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}
