package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ShapeChange/ShapeChange-sub001/pkg/rules"
)

// Mode controls whether a process runs.
type Mode string

const (
	// ModeEnabled runs the process normally.
	ModeEnabled Mode = "enabled"
	// ModeDisabled skips the process and everything fed by it.
	ModeDisabled Mode = "disabled"
	// ModeDiagnosticsOnly runs the process without producing output.
	ModeDiagnosticsOnly Mode = "diagnosticsOnly"
)

// ParseMode converts a configuration keyword into a Mode. An empty keyword
// selects ModeEnabled.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "enabled":
		return ModeEnabled, nil
	case "disabled":
		return ModeDisabled, nil
	case "diagnosticsonly", "diagnostics-only":
		return ModeDiagnosticsOnly, nil
	default:
		return "", fmt.Errorf("unknown process mode %q", s)
	}
}

// Parameters maps parameter names to values.
type Parameters map[string]string

// Clone creates a copy of the parameters so future mutations do not affect the original.
func (p Parameters) Clone() Parameters {
	out := make(Parameters, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Get returns the value of name and whether it is set.
func (p Parameters) Get(name string) (string, bool) {
	v, ok := p[name]
	return v, ok
}

// Names returns the parameter names, sorted.
func (p Parameters) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Process is the configuration shared by transformers, targets and validators.
type Process struct {
	ID           string
	Class        string
	Mode         Mode
	Parameters   Parameters
	RuleSets     []rules.RuleSet
	MapEntries   []rules.MapEntry
	TaggedValues []string
	Validators   []string
}

// Enabled reports whether the process runs, in full or diagnostics-only mode.
func (p Process) Enabled() bool {
	return p.Mode != ModeDisabled
}

// Transformer derives a model from the model produced by Input.
type Transformer struct {
	Process
	Input string
}

// Target encodes the schemas of the models produced by Inputs.
type Target struct {
	Process
	Inputs     []string
	Namespaces map[string]string
}

// Validator describes a validator configuration referenced by processes.
type Validator struct {
	Process
}

// PackageInfo supplies namespace metadata for a schema package.
type PackageInfo struct {
	Name      string
	Namespace string
	XMLNS     string
	Location  string
	Version   string
}

// Input describes how the input model is acquired.
type Input struct {
	ID                string
	ModelType         string
	Parameters        Parameters
	BackendParameters map[string]Parameters
	RuleSets          []rules.RuleSet
	StereotypeAliases map[string]string
	TagAliases        map[string]string
	DescriptorSources map[string]string
	Packages          []PackageInfo
}

// Log configures the structured log sink.
type Log struct {
	ReportLevel string
	LogFile     string
}

// Configuration is the loaded, read-only pipeline configuration.
type Configuration struct {
	Input        Input
	Transformers []Transformer
	Targets      []Target
	Validators   []Validator
	Log          Log
	Dialog       Parameters
	SourcePath   string
	Includes     []string
}

// Transformer returns the transformer with id.
func (c *Configuration) Transformer(id string) (Transformer, bool) {
	for _, t := range c.Transformers {
		if t.ID == id {
			return t, true
		}
	}
	return Transformer{}, false
}

// Validator returns the validator configuration with id.
func (c *Configuration) Validator(id string) (Validator, bool) {
	for _, v := range c.Validators {
		if v.ID == id {
			return v, true
		}
	}
	return Validator{}, false
}

// TransformersFed returns the transformers whose input is providerID, in
// declaration order.
func (c *Configuration) TransformersFed(providerID string) []Transformer {
	var out []Transformer
	for _, t := range c.Transformers {
		if t.Input == providerID {
			out = append(out, t)
		}
	}
	return out
}

// TargetsFed returns the targets that list providerID among their inputs, in
// declaration order.
func (c *Configuration) TargetsFed(providerID string) []Target {
	var out []Target
	for _, t := range c.Targets {
		for _, in := range t.Inputs {
			if in == providerID {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// Processes returns every transformer and target process, transformers first.
func (c *Configuration) Processes() []Process {
	out := make([]Process, 0, len(c.Transformers)+len(c.Targets))
	for _, t := range c.Transformers {
		out = append(out, t.Process)
	}
	for _, t := range c.Targets {
		out = append(out, t.Process)
	}
	return out
}

// IsProvider reports whether id names the input model or a transformer.
func (c *Configuration) IsProvider(id string) bool {
	if id == c.Input.ID {
		return true
	}
	_, ok := c.Transformer(id)
	return ok
}
