package backends

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ShapeChange/ShapeChange-sub001/pkg/backend"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/model"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/telemetry"
)

// Listing parameters.
const (
	// ParamOutputFormat selects text or yaml listings.
	ParamOutputFormat = "outputFormat"
	// ParamTaggedValues names, comma separated, the tagged values to list.
	ParamTaggedValues = "taggedValues"
)

// entry is one listed class.
type entry struct {
	ID           string            `yaml:"id"`
	Name         string            `yaml:"name"`
	MapsTo       string            `yaml:"mapsTo,omitempty"`
	TaggedValues map[string]string `yaml:"taggedValues,omitempty"`
}

// listing writes one file per schema package listing its classes.
type listing struct {
	inv     backend.Invocation
	encRule string
	entries []entry
}

func newListing() (*listing, error) { return &listing{}, nil }

func (l *listing) Name() string { return ListingID }

func (l *listing) Initialise(_ context.Context, inv backend.Invocation) error {
	format := l.format(inv)
	if format != "text" && format != "yaml" {
		return fmt.Errorf("parameter %s: unsupported format %q", ParamOutputFormat, format)
	}
	l.inv = inv
	l.encRule = inv.Scope.EncodingRule()
	l.entries = nil
	return nil
}

func (l *listing) Process(_ context.Context, c model.Class) error {
	l.entries = append(l.entries, describe(c, l.inv, l.encRule))
	return nil
}

func (l *listing) Write(context.Context) error {
	if l.inv.DiagnosticsOnly {
		if l.inv.Logger != nil {
			_ = l.inv.Logger.Emit(telemetry.Entry{
				Category: telemetry.CategoryProcess,
				Message:  "listing checked without output",
				Severity: telemetry.SeverityInfo,
				Process:  l.inv.Scope.ProcessID(),
				Backend:  ListingID,
				Metadata: map[string]string{"package": l.inv.Package.Name(), "classes": fmt.Sprint(len(l.entries))},
			})
		}
		return nil
	}

	var (
		data []byte
		ext  string
		err  error
	)
	switch l.format(l.inv) {
	case "yaml":
		data, err = yaml.Marshal(map[string]any{
			"package":      l.inv.Package.Name(),
			"namespace":    l.inv.Package.TargetNamespace(),
			"encodingRule": l.encRule,
			"classes":      l.entries,
		})
		ext = ".yaml"
	default:
		data = l.text()
		ext = ".txt"
	}
	if err != nil {
		return fmt.Errorf("encode listing: %w", err)
	}
	path := filepath.Join(l.inv.OutputDirectory(), OutputName(l.inv.Scope.ProcessID(), l.inv.Package.Name()+ext))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write listing: %w", err)
	}
	return nil
}

func (l *listing) format(inv backend.Invocation) string {
	return strings.ToLower(strings.TrimSpace(inv.Scope.ParameterOr(ParamOutputFormat, "text")))
}

func (l *listing) text() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s (%s) encoding rule %s\n", l.inv.Package.Name(), l.inv.Package.TargetNamespace(), l.encRule)
	for _, e := range l.entries {
		buf.WriteString(e.Name)
		if e.MapsTo != "" {
			buf.WriteString(" -> " + e.MapsTo)
		}
		for _, k := range sortedKeys(e.TaggedValues) {
			fmt.Fprintf(&buf, " %s=%s", k, e.TaggedValues[k])
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// describe applies the conversion rules of encRule to c.
func describe(c model.Class, inv backend.Invocation, encRule string) entry {
	e := entry{ID: c.ID(), Name: c.Name()}
	graph := inv.Scope.Rules()
	if graph.HasRuleIn(RuleListingMapEntries, encRule) {
		if me, ok := graph.TargetMapEntry(c.Name(), encRule); ok {
			e.MapsTo = me.TargetType
		} else if me, ok := graph.TypeMapEntry(c.Name(), encRule); ok {
			e.MapsTo = me.TargetType
		}
	}
	if graph.HasRuleIn(RuleListingTaggedValues, encRule) {
		e.TaggedValues = taggedValues(c, inv)
	}
	return e
}

// taggedValues returns the tagged values of c named by ParamTaggedValues.
func taggedValues(c model.Class, inv backend.Invocation) map[string]string {
	out := map[string]string{}
	for _, name := range strings.Split(inv.Scope.ParameterOr(ParamTaggedValues, ""), ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if v, ok := c.TaggedValue(name); ok {
			out[name] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// OutputName returns the file name a target writes base under. Targets fed
// by one provider share an output directory, so the process id leads.
func OutputName(processID, base string) string {
	return fileName(processID) + "_" + fileName(base)
}

func fileName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '_'
		}
		return r
	}, name)
}
