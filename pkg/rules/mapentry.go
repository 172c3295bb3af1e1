package rules

import (
	"fmt"
	"strings"

	"github.com/ShapeChange/ShapeChange-sub001/pkg/diagnostic"
)

// MapKind distinguishes the map entry tables a graph keeps.
type MapKind int

const (
	// MapType maps a model type to a target type.
	MapType MapKind = iota
	// MapBase maps a model type to the base type used when deriving from it.
	MapBase
	// MapElement maps a model type to an element construct.
	MapElement
	// MapAttribute maps a model type to an attribute construct.
	MapAttribute
	// MapTarget maps a model type for a process-level map entry.
	MapTarget
)

var mapKindNames = map[MapKind]string{
	MapType:      "type",
	MapBase:      "base",
	MapElement:   "element",
	MapAttribute: "attribute",
	MapTarget:    "target",
}

// String returns the kind name used in configuration documents.
func (k MapKind) String() string {
	if name, ok := mapKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseMapKind converts a configuration keyword into a MapKind. An empty
// keyword selects MapTarget.
func ParseMapKind(s string) (MapKind, error) {
	trimmed := strings.ToLower(strings.TrimSpace(s))
	if trimmed == "" {
		return MapTarget, nil
	}
	for kind, name := range mapKindNames {
		if name == trimmed {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown map entry kind %q", s)
}

// MapEntry maps a model type, under an encoding rule, to a target construct.
type MapEntry struct {
	Kind       MapKind
	Type       string
	Rule       string
	TargetType string
	Param      string
}

// AddMapEntry registers e under (e.Type, e.Rule). A later entry with the same
// key replaces the earlier one. A malformed parameter string drops the
// parameter information of the entry but keeps the mapping.
func (g *Graph) AddMapEntry(e MapEntry) {
	key := entryKey{typ: e.Type, rule: Fold(e.Rule)}
	if g.entries[e.Kind] == nil {
		g.entries[e.Kind] = map[entryKey]MapEntry{}
	}
	g.entries[e.Kind][key] = e

	if g.params[e.Kind] == nil {
		g.params[e.Kind] = map[entryKey]ParamInfo{}
	}
	delete(g.params[e.Kind], key)
	if strings.TrimSpace(e.Param) == "" {
		return
	}

	info, diags, err := ParseParams(e.Param)
	subject := fmt.Sprintf("%s map entry %s#%s", e.Kind, e.Type, e.Rule)
	if err != nil {
		g.diags.AddError(diagnostic.CodeParamSyntax,
			fmt.Sprintf("parameter %q discarded: %v", e.Param, err), subject)
		return
	}
	for _, w := range diags.Warnings {
		w.Subject = subject
		g.diags.Warnings = append(g.diags.Warnings, w)
	}
	g.params[e.Kind][key] = info
}

// TypeMapEntry resolves the type mapping of typ under rule or its ancestors.
func (g *Graph) TypeMapEntry(typ, rule string) (MapEntry, bool) {
	return g.resolve(MapType, typ, rule)
}

// BaseMapEntry resolves the base type mapping of typ.
func (g *Graph) BaseMapEntry(typ, rule string) (MapEntry, bool) {
	return g.resolve(MapBase, typ, rule)
}

// ElementMapEntry resolves the element mapping of typ.
func (g *Graph) ElementMapEntry(typ, rule string) (MapEntry, bool) {
	return g.resolve(MapElement, typ, rule)
}

// AttributeMapEntry resolves the attribute mapping of typ.
func (g *Graph) AttributeMapEntry(typ, rule string) (MapEntry, bool) {
	return g.resolve(MapAttribute, typ, rule)
}

// TargetMapEntry resolves the process-level mapping of typ.
func (g *Graph) TargetMapEntry(typ, rule string) (MapEntry, bool) {
	return g.resolve(MapTarget, typ, rule)
}

// MapEntryParams returns the parsed parameter information of the entry that
// resolution selects for (typ, rule). The bool is false when no entry
// resolves or the resolved entry carries no usable parameter information.
func (g *Graph) MapEntryParams(kind MapKind, typ, rule string) (ParamInfo, bool) {
	var (
		info  ParamInfo
		found bool
	)
	g.walk(rule, func(current string) bool {
		key := entryKey{typ: typ, rule: current}
		if _, ok := g.entries[kind][key]; !ok {
			return false
		}
		info, found = g.params[kind][key]
		return true
	})
	return info, found
}

// resolve probes (typ, rule) and then each ancestor of rule; the most
// specific level with an entry wins outright.
func (g *Graph) resolve(kind MapKind, typ, rule string) (MapEntry, bool) {
	var (
		entry MapEntry
		found bool
	)
	table := g.entries[kind]
	if len(table) == 0 {
		return entry, false
	}
	g.walk(rule, func(current string) bool {
		entry, found = table[entryKey{typ: typ, rule: current}]
		return found
	})
	return entry, found
}
