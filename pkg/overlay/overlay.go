package overlay

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ShapeChange/ShapeChange-sub001/pkg/config"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/diagnostic"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/rules"
)

// Source identifies where a parameter value originated within the precedence chain.
type Source string

const (
	// SourceGlobal marks values from the input parameters.
	SourceGlobal Source = "global"
	// SourceBackend marks values scoped to the backend class.
	SourceBackend Source = "backend"
	// SourceProcess marks values declared on the process itself.
	SourceProcess Source = "process"
	// SourceRuntime marks values computed by the orchestrator for one invocation.
	SourceRuntime Source = "runtime"
)

// Parameter names the engine itself interprets.
const (
	// ParamDefaultEncodingRule overrides the encoding rule a backend applies.
	ParamDefaultEncodingRule = "defaultEncodingRule"
	// ParamOutputDirectory is the directory targets write to.
	ParamOutputDirectory = "outputDirectory"
)

// Value stores a parameter value and its precedence origin.
type Value struct {
	Value  string
	Source Source
}

// Rules is the read-only view of a rule graph handed to backends.
type Rules interface {
	HasRule(rule string) bool
	HasRuleIn(rule, encRule string) bool
	MatchesEncRule(candidate, base string) bool
	EncRuleExists(id string) bool
	ExtendsEncRule(encRule string) string
	TypeMapEntry(typ, rule string) (rules.MapEntry, bool)
	BaseMapEntry(typ, rule string) (rules.MapEntry, bool)
	ElementMapEntry(typ, rule string) (rules.MapEntry, bool)
	AttributeMapEntry(typ, rule string) (rules.MapEntry, bool)
	TargetMapEntry(typ, rule string) (rules.MapEntry, bool)
	MapEntryParams(kind rules.MapKind, typ, rule string) (rules.ParamInfo, bool)
}

var _ Rules = (*rules.Graph)(nil)

// Overlay is the baseline every invocation scope is built from: global
// parameters, backend-scoped parameters and the rule graph holding the
// built-in and input rule sets. Rule sets declared on a process only exist
// in the scopes built for that process.
type Overlay struct {
	global    config.Parameters
	scoped    map[string]config.Parameters
	baseline  *rules.Graph
	processes []config.Process
}

// New builds the baseline from cfg. Built-in rule sets are registered before
// the input ones, so an input rule set redefining a built-in one is reported
// as a conflict.
func New(cfg *config.Configuration, builtins []rules.RuleSet) *Overlay {
	o := &Overlay{
		global:   config.Parameters{},
		scoped:   map[string]config.Parameters{},
		baseline: rules.NewGraph(),
	}
	for _, rs := range builtins {
		o.baseline.RegisterRuleSet(rs)
	}
	if cfg == nil {
		return o
	}
	o.global = cfg.Input.Parameters.Clone()
	for backend, params := range cfg.Input.BackendParameters {
		o.scoped[backend] = params.Clone()
	}
	for _, rs := range cfg.Input.RuleSets {
		o.baseline.RegisterRuleSet(rs)
	}
	o.processes = cfg.Processes()
	for _, v := range cfg.Validators {
		o.processes = append(o.processes, v.Process)
	}
	return o
}

// Conflicts returns the rule set registrations rejected while building the baseline.
func (o *Overlay) Conflicts() []rules.Conflict {
	return o.baseline.Conflicts()
}

// Diagnostics returns the findings collected while building the baseline.
func (o *Overlay) Diagnostics() diagnostic.Diagnostics {
	return o.baseline.Diagnostics()
}

// CheckCycles reports extends cycles in the baseline rule graph and in the
// graph each process sees once its own rule sets are added.
func (o *Overlay) CheckCycles() error {
	if err := o.baseline.CheckCycles(); err != nil {
		return err
	}
	for _, p := range o.processes {
		if len(p.RuleSets) == 0 {
			continue
		}
		g := o.baseline.Clone()
		for _, rs := range p.RuleSets {
			g.RegisterRuleSet(rs)
		}
		if err := g.CheckCycles(); err != nil {
			return fmt.Errorf("process %s: %w", p.ID, err)
		}
	}
	return nil
}

// Global returns the value of an input parameter.
func (o *Overlay) Global(name string) (string, bool) {
	v, ok := o.global[name]
	return v, ok
}

// Request describes the invocation a scope is built for.
type Request struct {
	Process             config.Process
	DefaultEncodingRule string
	Runtime             config.Parameters
}

// Scope builds the immutable context for one backend invocation. Parameters
// are layered global, backend-scoped, process and runtime, later layers
// overriding earlier ones. The process rule sets and then its map entries
// are registered on a copy of the baseline graph.
func (o *Overlay) Scope(req Request) *Scope {
	s := &Scope{
		processID:  req.Process.ID,
		backend:    req.Process.Class,
		mode:       req.Process.Mode,
		defaultEnc: req.DefaultEncodingRule,
		params:     map[string]Value{},
		global:     o.global.Clone(),
		graph:      o.baseline.Clone(),
	}

	apply := func(label string, set config.Parameters, source Source) {
		for _, name := range set.Names() {
			if previous, ok := s.params[name]; ok {
				s.overrides = append(s.overrides, fmt.Sprintf("%s overrides %s (was %s)", label, name, previous.Source))
			}
			s.params[name] = Value{Value: set[name], Source: source}
		}
	}

	apply("global", o.global, SourceGlobal)
	apply("backend "+req.Process.Class, o.scoped[req.Process.Class], SourceBackend)
	apply("process "+req.Process.ID, req.Process.Parameters, SourceProcess)
	apply("runtime", req.Runtime, SourceRuntime)

	before := s.graph.Diagnostics()
	known := len(s.graph.Conflicts())
	for _, rs := range req.Process.RuleSets {
		s.graph.RegisterRuleSet(rs)
	}
	s.conflicts = s.graph.Conflicts()[known:]
	for _, e := range req.Process.MapEntries {
		s.graph.AddMapEntry(e)
	}
	after := s.graph.Diagnostics()
	s.diags.Errors = after.Errors[len(before.Errors):]
	s.diags.Warnings = after.Warnings[len(before.Warnings):]
	s.diags.Infos = after.Infos[len(before.Infos):]
	return s
}

// Scope is the per-invocation context: resolved parameters and rule graph for
// one process. It is never modified after construction.
type Scope struct {
	processID  string
	backend    string
	mode       config.Mode
	defaultEnc string
	params     map[string]Value
	global     config.Parameters
	overrides  []string
	graph      *rules.Graph
	conflicts  []rules.Conflict
	diags      diagnostic.Diagnostics
}

// ProcessID returns the id of the process the scope was built for.
func (s *Scope) ProcessID() string { return s.processID }

// Backend returns the backend identifier of the process.
func (s *Scope) Backend() string { return s.backend }

// Mode returns the process mode.
func (s *Scope) Mode() config.Mode { return s.mode }

// Parameter returns the effective value of name.
func (s *Scope) Parameter(name string) (string, bool) {
	v, ok := s.params[name]
	return v.Value, ok
}

// ParameterOr returns the effective value of name or fallback when unset or blank.
func (s *Scope) ParameterOr(name, fallback string) string {
	if v, ok := s.params[name]; ok && strings.TrimSpace(v.Value) != "" {
		return v.Value
	}
	return fallback
}

// Lookup returns the effective value of name together with its source.
func (s *Scope) Lookup(name string) (Value, bool) {
	v, ok := s.params[name]
	return v, ok
}

// Global returns the input parameter name, ignoring backend and process layers.
func (s *Scope) Global(name string) (string, bool) {
	v, ok := s.global[name]
	return v, ok
}

// Specific returns name only when a backend or process layer sets it.
func (s *Scope) Specific(name string) (string, bool) {
	v, ok := s.params[name]
	if !ok || v.Source == SourceGlobal {
		return "", false
	}
	return v.Value, true
}

// Parameters returns a copy of the effective parameters.
func (s *Scope) Parameters() config.Parameters {
	out := make(config.Parameters, len(s.params))
	for k, v := range s.params {
		out[k] = v.Value
	}
	return out
}

// Overrides describes every parameter a later layer replaced.
func (s *Scope) Overrides() []string {
	return append([]string(nil), s.overrides...)
}

// EncodingRule returns the encoding rule the backend applies.
func (s *Scope) EncodingRule() string {
	if v := s.ParameterOr(ParamDefaultEncodingRule, ""); v != "" {
		return v
	}
	if s.defaultEnc != "" {
		return s.defaultEnc
	}
	return rules.Root
}

// Rules returns the read-only rule graph of the invocation.
func (s *Scope) Rules() Rules { return s.graph }

// Diagnostics returns the findings collected while registering the process
// rule sets and map entries on top of the baseline.
func (s *Scope) Diagnostics() diagnostic.Diagnostics { return s.diags }

// Conflicts returns the process rule sets rejected because the baseline
// already defines the name differently.
func (s *Scope) Conflicts() []rules.Conflict {
	return append([]rules.Conflict(nil), s.conflicts...)
}

// With returns a copy of s with runtime parameters added.
func (s *Scope) With(runtime config.Parameters) *Scope {
	out := *s
	out.params = make(map[string]Value, len(s.params)+len(runtime))
	for k, v := range s.params {
		out.params[k] = v
	}
	out.overrides = append([]string(nil), s.overrides...)
	names := make([]string, 0, len(runtime))
	for name := range runtime {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if previous, ok := out.params[name]; ok {
			out.overrides = append(out.overrides, fmt.Sprintf("runtime overrides %s (was %s)", name, previous.Source))
		}
		out.params[name] = Value{Value: runtime[name], Source: SourceRuntime}
	}
	return &out
}
