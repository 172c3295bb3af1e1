package validation

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ShapeChange/ShapeChange-sub001/pkg/backend"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/config"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/graphcycle"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/rules"
)

// ErrInvalidConfiguration is returned by Result.Err when any check failed.
var ErrInvalidConfiguration = errors.New("configuration failed preflight checks")

// Result describes the outcome of the preflight run.
type Result struct {
	Passed bool
	Issues []string
}

// Err returns nil when the checks passed and otherwise an error listing every issue.
func (r Result) Err() error {
	if r.Passed {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, strings.Join(r.Issues, "; "))
}

// Catalog reports the capabilities of a backend class. Zero means unknown.
type Catalog interface {
	Capabilities(id string) backend.Capability
}

// FileInspector models filesystem interrogation, allowing tests to stub.
type FileInspector interface {
	Exists(path string) bool
}

// DefaultInspector interrogates the local filesystem.
type DefaultInspector struct{}

// Exists reports whether path names an existing file or directory.
func (DefaultInspector) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ValidateConfiguration checks the loaded configuration before a run:
// process references, the transformer tree, encoding rule chains, backend
// classes and the input file. Issues are aggregated rather than returned
// one at a time.
func ValidateConfiguration(cfg *config.Configuration, catalog Catalog, fs FileInspector) Result {
	if fs == nil {
		fs = DefaultInspector{}
	}

	issues := []string{}
	if cfg == nil {
		return Result{Issues: []string{"no configuration loaded"}}
	}

	if strings.TrimSpace(cfg.Input.ID) == "" {
		issues = append(issues, "input id is required")
	}
	if strings.TrimSpace(cfg.Input.ModelType) == "" {
		issues = append(issues, "input parameter modelType is required")
	}
	if path := strings.TrimSpace(cfg.Input.Parameters["inputFile"]); path != "" && !isURL(path) && !fs.Exists(path) {
		issues = append(issues, fmt.Sprintf("path missing: %s", path))
	}

	seen := map[string]bool{cfg.Input.ID: true}
	for _, p := range cfg.Processes() {
		if p.ID == "" {
			issues = append(issues, fmt.Sprintf("process of class %s has no id", p.Class))
			continue
		}
		if seen[p.ID] {
			issues = append(issues, fmt.Sprintf("duplicate process id %s", p.ID))
		}
		seen[p.ID] = true
	}

	for _, t := range cfg.Transformers {
		switch {
		case t.Input == "":
			issues = append(issues, fmt.Sprintf("transformer %s has no input", t.ID))
		case t.Input == t.ID:
			issues = append(issues, fmt.Sprintf("transformer %s uses itself as input", t.ID))
		case !cfg.IsProvider(t.Input):
			issues = append(issues, fmt.Sprintf("transformer %s references unknown input %s", t.ID, t.Input))
		}
	}
	for _, t := range cfg.Targets {
		if len(t.Inputs) == 0 {
			issues = append(issues, fmt.Sprintf("target %s has no inputs", t.ID))
		}
		for _, in := range t.Inputs {
			if !cfg.IsProvider(in) {
				issues = append(issues, fmt.Sprintf("target %s references unknown input %s", t.ID, in))
			}
		}
	}

	if err := inputCycle(cfg); err != nil {
		issues = append(issues, fmt.Sprintf("transformer inputs: %v", err))
	}
	if err := extendsCycle(cfg); err != nil {
		issues = append(issues, err.Error())
	}

	if catalog != nil {
		for _, t := range cfg.Transformers {
			issues = appendClassIssue(issues, catalog, t.Process, backend.CapTransformer)
		}
		for _, t := range cfg.Targets {
			issues = appendClassIssue(issues, catalog, t.Process, backend.CapTarget)
		}
	}
	for _, p := range cfg.Processes() {
		for _, ref := range p.Validators {
			if _, ok := cfg.Validator(ref); !ok {
				issues = append(issues, fmt.Sprintf("process %s references unknown validator %s", p.ID, ref))
			}
		}
	}

	return Result{Passed: len(issues) == 0, Issues: issues}
}

func appendClassIssue(issues []string, catalog Catalog, p config.Process, want backend.Capability) []string {
	if !p.Enabled() {
		return issues
	}
	caps := catalog.Capabilities(p.Class)
	switch {
	case caps == 0:
		return append(issues, fmt.Sprintf("process %s: unknown backend class %s", p.ID, p.Class))
	case !caps.Has(want):
		return append(issues, fmt.Sprintf("process %s: backend class %s is not a %s", p.ID, p.Class, want))
	}
	return issues
}

func inputCycle(cfg *config.Configuration) error {
	starts := make([]string, 0, len(cfg.Transformers))
	for _, t := range cfg.Transformers {
		starts = append(starts, t.ID)
	}
	return graphcycle.Detect(starts, func(id string) []string {
		t, ok := cfg.Transformer(id)
		if !ok || t.Input == "" {
			return nil
		}
		return []string{t.Input}
	})
}

// extendsCycle checks the input rule sets, then each process's rule sets
// layered on top of them, mirroring how scopes are built.
func extendsCycle(cfg *config.Configuration) error {
	base := rules.NewGraph()
	for _, rs := range cfg.Input.RuleSets {
		base.RegisterRuleSet(rs)
	}
	if err := base.CheckCycles(); err != nil {
		return err
	}
	processes := cfg.Processes()
	for _, v := range cfg.Validators {
		processes = append(processes, v.Process)
	}
	for _, p := range processes {
		if len(p.RuleSets) == 0 {
			continue
		}
		g := base.Clone()
		for _, rs := range p.RuleSets {
			g.RegisterRuleSet(rs)
		}
		if err := g.CheckCycles(); err != nil {
			return fmt.Errorf("process %s: %w", p.ID, err)
		}
	}
	return nil
}

func isURL(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
