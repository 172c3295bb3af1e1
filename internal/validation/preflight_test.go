package validation_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/ShapeChange/ShapeChange-sub001/internal/validation"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/backend"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/config"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/rules"
)

type fakeCatalog map[string]backend.Capability

func (f fakeCatalog) Capabilities(id string) backend.Capability { return f[id] }

type fakeInspector map[string]bool

func (f fakeInspector) Exists(path string) bool { return f[path] }

var catalog = fakeCatalog{
	"tagger":  backend.CapTransformer,
	"listing": backend.CapTarget,
}

func validConfig() *config.Configuration {
	return &config.Configuration{
		Input: config.Input{
			ID:         "INPUT",
			ModelType:  "yaml",
			Parameters: config.Parameters{"inputFile": "/models/hydro.yaml"},
		},
		Transformers: []config.Transformer{
			{Process: config.Process{ID: "T1", Class: "tagger", Mode: config.ModeEnabled}, Input: "INPUT"},
			{Process: config.Process{ID: "T2", Class: "tagger", Mode: config.ModeEnabled}, Input: "T1"},
		},
		Targets: []config.Target{
			{Process: config.Process{ID: "out", Class: "listing", Mode: config.ModeEnabled}, Inputs: []string{"INPUT", "T2"}},
		},
	}
}

func TestValidateConfigurationSuccess(t *testing.T) {
	result := validation.ValidateConfiguration(validConfig(), catalog, fakeInspector{"/models/hydro.yaml": true})
	if !result.Passed {
		t.Fatalf("expected validation to pass: %#v", result.Issues)
	}
	if err := result.Err(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestValidateConfigurationFailureAggregatesIssues(t *testing.T) {
	cfg := validConfig()
	cfg.Input.ModelType = ""
	cfg.Transformers = append(cfg.Transformers,
		config.Transformer{Process: config.Process{ID: "T3", Class: "tagger", Mode: config.ModeEnabled}, Input: "T3"},
		config.Transformer{Process: config.Process{ID: "T4", Class: "listing", Mode: config.ModeEnabled}, Input: "T9"},
	)
	cfg.Targets = append(cfg.Targets,
		config.Target{Process: config.Process{ID: "empty", Class: "listing", Mode: config.ModeEnabled}},
		config.Target{Process: config.Process{ID: "out", Class: "mystery", Mode: config.ModeEnabled, Validators: []string{"v1"}}, Inputs: []string{"INPUT"}},
	)

	result := validation.ValidateConfiguration(cfg, catalog, fakeInspector{})
	if result.Passed {
		t.Fatalf("expected validation to fail")
	}

	expectedIssues := []string{
		"input parameter modelType is required",
		"path missing: /models/hydro.yaml",
		"duplicate process id out",
		"transformer T3 uses itself as input",
		"transformer T4 references unknown input T9",
		"target empty has no inputs",
		"process T4: backend class listing is not a transformer",
		"process out: unknown backend class mystery",
		"process out references unknown validator v1",
	}
	for _, expected := range expectedIssues {
		found := false
		for _, actual := range result.Issues {
			if actual == expected {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected issue %q not found in actual issues: %v", expected, result.Issues)
		}
	}
	if !errors.Is(result.Err(), validation.ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", result.Err())
	}
}

func TestValidateConfigurationDetectsInputCycle(t *testing.T) {
	cfg := validConfig()
	cfg.Transformers = []config.Transformer{
		{Process: config.Process{ID: "T1", Class: "tagger", Mode: config.ModeEnabled}, Input: "T2"},
		{Process: config.Process{ID: "T2", Class: "tagger", Mode: config.ModeEnabled}, Input: "T1"},
	}
	cfg.Targets = nil

	result := validation.ValidateConfiguration(cfg, catalog, fakeInspector{"/models/hydro.yaml": true})
	if !hasIssuePrefix(result, "transformer inputs:") {
		t.Fatalf("expected input cycle issue, got %v", result.Issues)
	}
}

func TestValidateConfigurationDetectsExtendsCycle(t *testing.T) {
	cfg := validConfig()
	cfg.Input.RuleSets = []rules.RuleSet{
		{Name: "a", Extends: "b"},
		{Name: "b", Extends: "a"},
	}

	result := validation.ValidateConfiguration(cfg, catalog, fakeInspector{"/models/hydro.yaml": true})
	if !hasIssuePrefix(result, rules.ErrExtendsCycle.Error()) {
		t.Fatalf("expected extends cycle issue, got %v", result.Issues)
	}
}

func TestValidateConfigurationChecksRuleSetsPerProcess(t *testing.T) {
	cfg := validConfig()
	cfg.Input.RuleSets = []rules.RuleSet{{Name: "base", Extends: rules.Root}}
	cfg.Targets[0].RuleSets = []rules.RuleSet{{Name: "custom", Extends: "base"}}
	cfg.Targets = append(cfg.Targets, cfg.Targets[0])
	cfg.Targets[1].ID = "second"
	cfg.Targets[1].RuleSets = []rules.RuleSet{{Name: "custom", Extends: "other"}, {Name: "other", Extends: rules.Root}}

	result := validation.ValidateConfiguration(cfg, catalog, fakeInspector{"/models/hydro.yaml": true})
	if !result.Passed {
		t.Fatalf("expected differing rule sets on separate targets to pass: %v", result.Issues)
	}

	cfg.Targets[1].RuleSets = []rules.RuleSet{{Name: "x", Extends: "y"}, {Name: "y", Extends: "x"}}
	result = validation.ValidateConfiguration(cfg, catalog, fakeInspector{"/models/hydro.yaml": true})
	if !hasIssuePrefix(result, "process second: "+rules.ErrExtendsCycle.Error()) {
		t.Fatalf("expected extends cycle issue for target second, got %v", result.Issues)
	}
}

func TestValidateConfigurationSkipsDisabledClassesAndRemoteInput(t *testing.T) {
	cfg := validConfig()
	cfg.Input.Parameters["inputFile"] = "https://example.org/hydro.yaml"
	cfg.Targets[0].Class = "mystery"
	cfg.Targets[0].Mode = config.ModeDisabled

	result := validation.ValidateConfiguration(cfg, catalog, fakeInspector{})
	if !result.Passed {
		t.Fatalf("expected validation to pass: %#v", result.Issues)
	}
}

func hasIssuePrefix(result validation.Result, prefix string) bool {
	for _, issue := range result.Issues {
		if strings.HasPrefix(issue, prefix) {
			return true
		}
	}
	return false
}
