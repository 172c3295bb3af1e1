package config

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	pkgconfig "github.com/ShapeChange/ShapeChange-sub001/pkg/config"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/rules"
)

var (
	// ErrIncludeCycle is returned when a document includes itself directly or indirectly.
	ErrIncludeCycle = errors.New("configuration includes form a cycle")
	// ErrInvalidValue indicates a parameter value cannot be represented as a string.
	ErrInvalidValue = errors.New("invalid parameter value type")
	// ErrUnsupportedFormat indicates the document extension is not a known format.
	ErrUnsupportedFormat = errors.New("unsupported configuration format")
	// ErrFetch is returned when a remote configuration cannot be retrieved.
	ErrFetch = errors.New("configuration could not be fetched")
)

// DefaultSource names the bundled configuration in summaries and logs.
const DefaultSource = "builtin:minimal.yaml"

//go:embed minimal.yaml
var minimalConfig []byte

// Substitution replaces every occurrence of Old with New in parameter values.
type Substitution struct {
	Old string
	New string
}

// Loader parses configuration documents into a pipeline configuration.
type Loader struct {
	substitutions []Substitution
	client        *http.Client
}

// NewLoader constructs a Loader that applies the given substitutions, in
// order, to every parameter value.
func NewLoader(subs ...Substitution) *Loader {
	return &Loader{
		substitutions: append([]Substitution(nil), subs...),
		client:        &http.Client{Timeout: 30 * time.Second},
	}
}

// LoadDefault parses the bundled minimal configuration.
func (l *Loader) LoadDefault() (*pkgconfig.Configuration, error) {
	doc, err := decode(DefaultSource, minimalConfig)
	if err != nil {
		return nil, err
	}
	cfg := l.build(doc)
	cfg.SourcePath = DefaultSource
	return cfg, nil
}

// Load parses the document at location, a file path or an http(s) URL,
// merging its includes depth-first.
func (l *Loader) Load(ctx context.Context, location string) (*pkgconfig.Configuration, error) {
	doc, includes, err := l.resolve(ctx, location, map[string]bool{})
	if err != nil {
		return nil, err
	}
	cfg := l.build(doc)
	cfg.SourcePath = location
	cfg.Includes = includes
	return cfg, nil
}

func (l *Loader) resolve(ctx context.Context, location string, visiting map[string]bool) (rawDocument, []string, error) {
	if visiting[location] {
		return rawDocument{}, nil, fmt.Errorf("%w: %s", ErrIncludeCycle, location)
	}
	visiting[location] = true
	defer delete(visiting, location)

	data, err := l.read(ctx, location)
	if err != nil {
		return rawDocument{}, nil, err
	}
	doc, err := decode(location, data)
	if err != nil {
		return rawDocument{}, nil, err
	}

	var loaded []string
	for _, inc := range doc.Includes {
		inc = strings.TrimSpace(inc)
		if inc == "" {
			continue
		}
		child := relativeTo(location, inc)
		sub, nested, err := l.resolve(ctx, child, visiting)
		if err != nil {
			return rawDocument{}, nil, fmt.Errorf("include %q: %w", inc, err)
		}
		doc.merge(sub)
		loaded = append(loaded, child)
		loaded = append(loaded, nested...)
	}
	return doc, loaded, nil
}

func (l *Loader) read(ctx context.Context, location string) ([]byte, error) {
	if !isURL(location) {
		data, err := os.ReadFile(location)
		if err != nil {
			return nil, fmt.Errorf("read config %q: %w", location, err)
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, location, err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, location, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: status %d", ErrFetch, location, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, location, err)
	}
	return data, nil
}

func decode(location string, data []byte) (rawDocument, error) {
	var doc rawDocument
	switch format(location) {
	case "yaml":
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&doc); err != nil && err != io.EOF {
			return rawDocument{}, fmt.Errorf("parse config %q: %w", location, err)
		}
	case "toml":
		decoder := toml.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&doc); err != nil {
			return rawDocument{}, fmt.Errorf("parse config %q: %w", location, err)
		}
	default:
		return rawDocument{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, location)
	}
	if err := doc.normalise(); err != nil {
		return rawDocument{}, fmt.Errorf("config %q: %w", location, err)
	}
	return doc, nil
}

func format(location string) string {
	name := location
	if isURL(location) {
		name = strings.SplitN(strings.SplitN(location, "?", 2)[0], "#", 2)[0]
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml", "":
		return "yaml"
	case ".toml":
		return "toml"
	default:
		return ""
	}
}

func isURL(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func relativeTo(parent, child string) string {
	if isURL(child) || filepath.IsAbs(child) {
		return child
	}
	if isURL(parent) {
		i := strings.LastIndex(parent, "/")
		return parent[:i+1] + child
	}
	return filepath.Join(filepath.Dir(parent), child)
}

type rawDocument struct {
	Input        rawInput         `yaml:"input" toml:"input"`
	Includes     []string         `yaml:"includes" toml:"includes"`
	Transformers []rawTransformer `yaml:"transformers" toml:"transformers"`
	Targets      []rawTarget      `yaml:"targets" toml:"targets"`
	Validators   []rawProcess     `yaml:"validators" toml:"validators"`
	Log          rawLog           `yaml:"log" toml:"log"`
	Dialog       map[string]any   `yaml:"dialog" toml:"dialog"`
}

type rawInput struct {
	ID                string                    `yaml:"id" toml:"id"`
	ModelType         string                    `yaml:"modelType" toml:"modelType"`
	Parameters        map[string]any            `yaml:"parameters" toml:"parameters"`
	BackendParameters map[string]map[string]any `yaml:"backendParameters" toml:"backendParameters"`
	RuleSets          []rawRuleSet              `yaml:"ruleSets" toml:"ruleSets"`
	StereotypeAliases map[string]string         `yaml:"stereotypeAliases" toml:"stereotypeAliases"`
	TagAliases        map[string]string         `yaml:"tagAliases" toml:"tagAliases"`
	DescriptorSources map[string]string         `yaml:"descriptorSources" toml:"descriptorSources"`
	Packages          []rawPackage              `yaml:"packages" toml:"packages"`
}

type rawRuleSet struct {
	Name    string   `yaml:"name" toml:"name"`
	Extends string   `yaml:"extends" toml:"extends"`
	Rules   []string `yaml:"rules" toml:"rules"`
}

type rawMapEntry struct {
	Kind       string `yaml:"kind" toml:"kind"`
	Type       string `yaml:"type" toml:"type"`
	Rule       string `yaml:"rule" toml:"rule"`
	TargetType string `yaml:"targetType" toml:"targetType"`
	Param      string `yaml:"param" toml:"param"`
}

type rawPackage struct {
	Name      string `yaml:"name" toml:"name"`
	Namespace string `yaml:"namespace" toml:"namespace"`
	XMLNS     string `yaml:"xmlns" toml:"xmlns"`
	Location  string `yaml:"location" toml:"location"`
	Version   string `yaml:"version" toml:"version"`
}

type rawProcess struct {
	ID           string         `yaml:"id" toml:"id"`
	Class        string         `yaml:"class" toml:"class"`
	Mode         string         `yaml:"mode" toml:"mode"`
	Parameters   map[string]any `yaml:"parameters" toml:"parameters"`
	RuleSets     []rawRuleSet   `yaml:"ruleSets" toml:"ruleSets"`
	MapEntries   []rawMapEntry  `yaml:"mapEntries" toml:"mapEntries"`
	TaggedValues []string       `yaml:"taggedValues" toml:"taggedValues"`
	Validators   []string       `yaml:"validators" toml:"validators"`

	mode       pkgconfig.Mode
	parameters map[string]string
	entries    []rules.MapEntry
}

type rawTransformer struct {
	rawProcess `yaml:",inline"`
	Input      string `yaml:"input" toml:"input"`
}

type rawTarget struct {
	rawProcess `yaml:",inline"`
	Inputs     string            `yaml:"inputs" toml:"inputs"`
	Namespaces map[string]string `yaml:"namespaces" toml:"namespaces"`
}

type rawLog struct {
	ReportLevel string `yaml:"reportLevel" toml:"reportLevel"`
	LogFile     string `yaml:"logFile" toml:"logFile"`
}

// normalise checks keyword fields and converts loosely typed values, so
// that build never fails.
func (d *rawDocument) normalise() error {
	for i := range d.Transformers {
		if err := d.Transformers[i].normalise(fmt.Sprintf("transformer %d", i+1)); err != nil {
			return err
		}
	}
	for i := range d.Targets {
		if err := d.Targets[i].normalise(fmt.Sprintf("target %d", i+1)); err != nil {
			return err
		}
	}
	for i := range d.Validators {
		if err := d.Validators[i].normalise(fmt.Sprintf("validator %d", i+1)); err != nil {
			return err
		}
	}
	if _, err := stringMap("input", d.Input.Parameters); err != nil {
		return err
	}
	for name, params := range d.Input.BackendParameters {
		if _, err := stringMap("backend "+name, params); err != nil {
			return err
		}
	}
	if _, err := stringMap("dialog", d.Dialog); err != nil {
		return err
	}
	return nil
}

func (p *rawProcess) normalise(label string) error {
	if p.ID != "" {
		label = fmt.Sprintf("%s (%s)", label, p.ID)
	}
	mode, err := pkgconfig.ParseMode(p.Mode)
	if err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	p.mode = mode
	params, err := stringMap(label, p.Parameters)
	if err != nil {
		return err
	}
	p.parameters = params
	p.entries = p.entries[:0]
	for _, e := range p.MapEntries {
		kind, err := rules.ParseMapKind(e.Kind)
		if err != nil {
			return fmt.Errorf("%s: %w", label, err)
		}
		p.entries = append(p.entries, rules.MapEntry{
			Kind:       kind,
			Type:       e.Type,
			Rule:       e.Rule,
			TargetType: e.TargetType,
			Param:      e.Param,
		})
	}
	return nil
}

// merge folds an included document into d. Lists are appended after d's
// own entries and scalar input settings only fill gaps.
func (d *rawDocument) merge(inc rawDocument) {
	in := &d.Input
	if in.ID == "" {
		in.ID = inc.Input.ID
	}
	if in.ModelType == "" {
		in.ModelType = inc.Input.ModelType
	}
	in.Parameters = fillAny(in.Parameters, inc.Input.Parameters)
	for name, params := range inc.Input.BackendParameters {
		if in.BackendParameters == nil {
			in.BackendParameters = map[string]map[string]any{}
		}
		in.BackendParameters[name] = fillAny(in.BackendParameters[name], params)
	}
	in.RuleSets = append(in.RuleSets, inc.Input.RuleSets...)
	in.StereotypeAliases = fillString(in.StereotypeAliases, inc.Input.StereotypeAliases)
	in.TagAliases = fillString(in.TagAliases, inc.Input.TagAliases)
	in.DescriptorSources = fillString(in.DescriptorSources, inc.Input.DescriptorSources)
	in.Packages = append(in.Packages, inc.Input.Packages...)

	d.Transformers = append(d.Transformers, inc.Transformers...)
	d.Targets = append(d.Targets, inc.Targets...)
	d.Validators = append(d.Validators, inc.Validators...)
	d.Dialog = fillAny(d.Dialog, inc.Dialog)
	if d.Log.ReportLevel == "" {
		d.Log.ReportLevel = inc.Log.ReportLevel
	}
	if d.Log.LogFile == "" {
		d.Log.LogFile = inc.Log.LogFile
	}
}

func (l *Loader) build(doc rawDocument) *pkgconfig.Configuration {
	cfg := &pkgconfig.Configuration{
		Input: pkgconfig.Input{
			ID:                strings.TrimSpace(doc.Input.ID),
			ModelType:         strings.TrimSpace(doc.Input.ModelType),
			Parameters:        l.parameters(doc.Input.Parameters),
			RuleSets:          ruleSets(doc.Input.RuleSets),
			StereotypeAliases: doc.Input.StereotypeAliases,
			TagAliases:        doc.Input.TagAliases,
			DescriptorSources: doc.Input.DescriptorSources,
		},
		Log: pkgconfig.Log{
			ReportLevel: doc.Log.ReportLevel,
			LogFile:     l.substitute(doc.Log.LogFile),
		},
		Dialog: l.parameters(doc.Dialog),
	}
	if len(doc.Input.BackendParameters) > 0 {
		cfg.Input.BackendParameters = map[string]pkgconfig.Parameters{}
		for name, params := range doc.Input.BackendParameters {
			cfg.Input.BackendParameters[name] = l.parameters(params)
		}
	}
	for _, p := range doc.Input.Packages {
		cfg.Input.Packages = append(cfg.Input.Packages, pkgconfig.PackageInfo(p))
	}
	for _, t := range doc.Transformers {
		cfg.Transformers = append(cfg.Transformers, pkgconfig.Transformer{
			Process: l.process(t.rawProcess),
			Input:   strings.TrimSpace(t.Input),
		})
	}
	unnamed := map[string]int{}
	for _, t := range doc.Targets {
		proc := l.process(t.rawProcess)
		if proc.ID == "" {
			unnamed[proc.Class]++
			proc.ID = fmt.Sprintf("%s#%d", proc.Class, unnamed[proc.Class])
		}
		cfg.Targets = append(cfg.Targets, pkgconfig.Target{
			Process:    proc,
			Inputs:     strings.Fields(t.Inputs),
			Namespaces: t.Namespaces,
		})
	}
	for _, v := range doc.Validators {
		cfg.Validators = append(cfg.Validators, pkgconfig.Validator{Process: l.process(v)})
	}
	return cfg
}

func (l *Loader) process(p rawProcess) pkgconfig.Process {
	params := make(pkgconfig.Parameters, len(p.parameters))
	for k, v := range p.parameters {
		params[k] = l.substitute(v)
	}
	return pkgconfig.Process{
		ID:           strings.TrimSpace(p.ID),
		Class:        strings.TrimSpace(p.Class),
		Mode:         p.mode,
		Parameters:   params,
		RuleSets:     ruleSets(p.RuleSets),
		MapEntries:   append([]rules.MapEntry(nil), p.entries...),
		TaggedValues: append([]string(nil), p.TaggedValues...),
		Validators:   append([]string(nil), p.Validators...),
	}
}

// parameters converts values already checked by normalise.
func (l *Loader) parameters(raw map[string]any) pkgconfig.Parameters {
	values, _ := stringMap("", raw)
	out := make(pkgconfig.Parameters, len(values))
	for k, v := range values {
		out[k] = l.substitute(v)
	}
	return out
}

func (l *Loader) substitute(value string) string {
	for _, s := range l.substitutions {
		if s.Old == "" {
			continue
		}
		value = strings.ReplaceAll(value, s.Old, s.New)
	}
	return value
}

func ruleSets(raw []rawRuleSet) []rules.RuleSet {
	var out []rules.RuleSet
	for _, rs := range raw {
		out = append(out, rules.RuleSet{
			Name:    strings.TrimSpace(rs.Name),
			Extends: strings.TrimSpace(rs.Extends),
			Rules:   append([]string(nil), rs.Rules...),
		})
	}
	return out
}

func stringMap(label string, raw map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(raw))
	for name, value := range raw {
		str, err := stringify(name, value)
		if err != nil {
			if label != "" {
				return nil, fmt.Errorf("%s: %w", label, err)
			}
			return nil, err
		}
		out[name] = str
	}
	return out, nil
}

func fillAny(dst, src map[string]any) map[string]any {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = map[string]any{}
	}
	for k, v := range src {
		if _, ok := dst[k]; !ok {
			dst[k] = v
		}
	}
	return dst
}

func fillString(dst, src map[string]string) map[string]string {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = map[string]string{}
	}
	for k, v := range src {
		if _, ok := dst[k]; !ok {
			dst[k] = v
		}
	}
	return dst
}

func stringify(name string, value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case time.Time:
		return v.Format(time.RFC3339), nil
	case fmt.Stringer:
		return v.String(), nil
	case int, int64, uint64, float64, float32:
		return fmt.Sprint(v), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", fmt.Errorf("%w: %s expects string-compatible value", ErrInvalidValue, name)
	}
}
