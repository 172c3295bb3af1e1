package rules

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/ShapeChange/ShapeChange-sub001/pkg/diagnostic"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/graphcycle"
)

// Root is the encoding rule every chain may terminate at. It always exists.
const Root = "*"

// ErrExtendsCycle is returned by CheckCycles when an encoding rule extends itself
// directly or through its ancestors.
var ErrExtendsCycle = errors.New("encoding rule extends chain contains a cycle")

// RuleSet defines one encoding rule: its name, optional parent and the
// conversion rules it adds.
type RuleSet struct {
	Name    string
	Extends string
	Rules   []string
}

// Equal compares two rule sets ignoring case and rule order.
func (rs RuleSet) Equal(other RuleSet) bool {
	if Fold(rs.Name) != Fold(other.Name) || Fold(rs.Extends) != Fold(other.Extends) {
		return false
	}
	a, b := foldedSet(rs.Rules), foldedSet(other.Rules)
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

// Conflict records a rule set registration rejected because a different
// definition with the same name was registered first.
type Conflict struct {
	Name     string
	Existing RuleSet
	Rejected RuleSet
}

type rulePair struct {
	rule    string
	encRule string
}

type entryKey struct {
	typ  string
	rule string
}

// Graph stores known conversion rules, the encoding rule extension edges and
// the map entries registered per (type, encoding rule).
type Graph struct {
	rules     map[string]struct{}
	byEncRule map[rulePair]struct{}
	extends   map[string]string
	ruleSets  map[string]RuleSet
	entries   map[MapKind]map[entryKey]MapEntry
	params    map[MapKind]map[entryKey]ParamInfo
	conflicts []Conflict
	diags     diagnostic.Diagnostics
}

// NewGraph constructs an empty rule graph.
func NewGraph() *Graph {
	return &Graph{
		rules:     map[string]struct{}{},
		byEncRule: map[rulePair]struct{}{},
		extends:   map[string]string{},
		ruleSets:  map[string]RuleSet{},
		entries:   map[MapKind]map[entryKey]MapEntry{},
		params:    map[MapKind]map[entryKey]ParamInfo{},
	}
}

// Fold normalises an identifier for case-insensitive comparison.
func Fold(id string) string {
	return cases.Fold().String(strings.TrimSpace(id))
}

// RegisterRuleSet adds an encoding rule definition. Registering an equal
// definition again is a no-op; a differing definition under the same name is
// recorded as a conflict and the first definition stays active.
func (g *Graph) RegisterRuleSet(rs RuleSet) {
	name := Fold(rs.Name)
	if name == "" {
		return
	}
	if existing, ok := g.ruleSets[name]; ok {
		if existing.Equal(rs) {
			return
		}
		g.conflicts = append(g.conflicts, Conflict{Name: rs.Name, Existing: existing, Rejected: rs})
		g.diags.AddError(diagnostic.CodeRuleSetConflict,
			fmt.Sprintf("rule set %q registered with a different definition (extends %q vs %q), first definition kept",
				rs.Name, existing.Extends, rs.Extends), rs.Name)
		return
	}

	g.ruleSets[name] = cloneRuleSet(rs)
	g.extends[name] = Fold(rs.Extends)
	for _, rule := range rs.Rules {
		g.AddRuleTo(rule, name)
	}
}

// AddRule registers a conversion rule globally.
func (g *Graph) AddRule(rule string) {
	if r := Fold(rule); r != "" {
		g.rules[r] = struct{}{}
	}
}

// AddRuleTo registers a conversion rule as part of an encoding rule.
func (g *Graph) AddRuleTo(rule, encRule string) {
	r := Fold(rule)
	if r == "" {
		return
	}
	g.rules[r] = struct{}{}
	g.byEncRule[rulePair{rule: r, encRule: Fold(encRule)}] = struct{}{}
}

// HasRule reports whether rule was registered on any encoding rule.
func (g *Graph) HasRule(rule string) bool {
	_, ok := g.rules[Fold(rule)]
	return ok
}

// HasRuleIn reports whether rule is part of encRule or of one of its ancestors.
func (g *Graph) HasRuleIn(rule, encRule string) bool {
	r := Fold(rule)
	return g.walk(encRule, func(current string) bool {
		_, ok := g.byEncRule[rulePair{rule: r, encRule: current}]
		return ok
	})
}

// MatchesEncRule reports whether base is candidate itself or one of its ancestors.
func (g *Graph) MatchesEncRule(candidate, base string) bool {
	target := Fold(base)
	return g.walk(candidate, func(current string) bool {
		return current == target
	})
}

// EncRuleExists reports whether id is the root rule or a registered encoding rule.
func (g *Graph) EncRuleExists(id string) bool {
	folded := Fold(id)
	if folded == Root {
		return true
	}
	_, ok := g.extends[folded]
	return ok
}

// ExtendsEncRule returns the parent of encRule, or "" when it has none.
func (g *Graph) ExtendsEncRule(encRule string) string {
	return g.extends[Fold(encRule)]
}

// RuleSet returns the active definition registered under name.
func (g *Graph) RuleSet(name string) (RuleSet, bool) {
	rs, ok := g.ruleSets[Fold(name)]
	return rs, ok
}

// EncRules returns the names of all registered encoding rules, sorted.
func (g *Graph) EncRules() []string {
	out := make([]string, 0, len(g.extends))
	for name := range g.extends {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Conflicts returns the rule set registrations that were rejected.
func (g *Graph) Conflicts() []Conflict {
	return append([]Conflict(nil), g.conflicts...)
}

// Diagnostics returns the findings collected while registering rule sets and
// map entries.
func (g *Graph) Diagnostics() diagnostic.Diagnostics {
	var out diagnostic.Diagnostics
	out.Merge(g.diags)
	return out
}

// CheckCycles verifies that no extends chain loops back on itself.
func (g *Graph) CheckCycles() error {
	starts := g.EncRules()
	err := graphcycle.Detect(starts, func(name string) []string {
		if parent := g.extends[name]; parent != "" {
			return []string{parent}
		}
		return nil
	})
	var cycle graphcycle.CycleError[string]
	if errors.As(err, &cycle) {
		return fmt.Errorf("%w: %s", ErrExtendsCycle, strings.Join(cycle.Path, " -> "))
	}
	return err
}

// Clone returns an independent copy of the graph.
func (g *Graph) Clone() *Graph {
	out := NewGraph()
	for k := range g.rules {
		out.rules[k] = struct{}{}
	}
	for k := range g.byEncRule {
		out.byEncRule[k] = struct{}{}
	}
	for k, v := range g.extends {
		out.extends[k] = v
	}
	for k, v := range g.ruleSets {
		out.ruleSets[k] = cloneRuleSet(v)
	}
	for kind, entries := range g.entries {
		m := make(map[entryKey]MapEntry, len(entries))
		for k, v := range entries {
			m[k] = v
		}
		out.entries[kind] = m
	}
	for kind, params := range g.params {
		m := make(map[entryKey]ParamInfo, len(params))
		for k, v := range params {
			m[k] = v
		}
		out.params[kind] = m
	}
	out.conflicts = append(out.conflicts, g.conflicts...)
	out.diags.Merge(g.diags)
	return out
}

// walk visits encRule and its ancestors until visit returns true. A visited
// set stops the walk on cyclic configurations.
func (g *Graph) walk(encRule string, visit func(string) bool) bool {
	seen := map[string]struct{}{}
	for current := Fold(encRule); current != ""; current = g.extends[current] {
		if _, loop := seen[current]; loop {
			return false
		}
		seen[current] = struct{}{}
		if visit(current) {
			return true
		}
	}
	return false
}

func cloneRuleSet(rs RuleSet) RuleSet {
	out := RuleSet{Name: rs.Name, Extends: rs.Extends}
	if len(rs.Rules) > 0 {
		out.Rules = append([]string(nil), rs.Rules...)
	}
	return out
}

func foldedSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, item := range items {
		out[Fold(item)] = struct{}{}
	}
	return out
}
