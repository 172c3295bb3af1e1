package pipeline

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ShapeChange/ShapeChange-sub001/pkg/model"
)

// Parameters interpreted by the orchestrator.
const (
	ParamAppSchemaName           = "appSchemaName"
	ParamAppSchemaNameRegex      = "appSchemaNameRegex"
	ParamAppSchemaNamespaceRegex = "appSchemaNamespaceRegex"
	ParamSortedOutput            = "sortedOutput"
	ParamSkipSemanticValidation  = "skipSemanticValidation"
)

// packageFilter selects the schema packages a target processes. Empty fields
// accept every package.
type packageFilter struct {
	name        string
	nameRegex   *regexp.Regexp
	namespaceRe *regexp.Regexp
}

// newPackageFilter reads the filter parameters through lookup. A pattern that
// does not compile is reported and left out of the filter.
func newPackageFilter(lookup func(string) (string, bool)) (packageFilter, []error) {
	var f packageFilter
	var problems []error
	if v, ok := lookup(ParamAppSchemaName); ok {
		f.name = strings.TrimSpace(v)
	}
	compile := func(param string) *regexp.Regexp {
		v, ok := lookup(param)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		re, err := regexp.Compile("^(?:" + v + ")$")
		if err != nil {
			problems = append(problems, fmt.Errorf("parameter %s: %w", param, err))
			return nil
		}
		return re
	}
	f.nameRegex = compile(ParamAppSchemaNameRegex)
	f.namespaceRe = compile(ParamAppSchemaNamespaceRegex)
	return f, problems
}

func (f packageFilter) accepts(pkg model.Package) bool {
	if f.name != "" && pkg.Name() != f.name {
		return false
	}
	if f.nameRegex != nil && !f.nameRegex.MatchString(pkg.Name()) {
		return false
	}
	if f.namespaceRe != nil && !f.namespaceRe.MatchString(pkg.TargetNamespace()) {
		return false
	}
	return true
}

// sortClasses orders classes as requested by the sortedOutput value. The
// boolean is false when the value is not recognised; classes are then left
// in model order.
func sortClasses(classes []model.Class, order string) ([]model.Class, bool) {
	order = strings.TrimSpace(order)
	out := append([]model.Class(nil), classes...)

	switch {
	case order == "" || strings.EqualFold(order, "false"):
		return out, true
	case strings.EqualFold(order, "true"), strings.EqualFold(order, "name"):
		sort.SliceStable(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
		return out, true
	case strings.EqualFold(order, "id"):
		sort.SliceStable(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
		return out, true
	case len(order) > len("taggedValue=") && strings.EqualFold(order[:len("taggedValue=")], "taggedValue="):
		tag := strings.TrimSpace(order[len("taggedValue="):])
		key := func(c model.Class) string {
			if v, ok := c.TaggedValue(tag); ok {
				return v
			}
			return c.Name()
		}
		sort.SliceStable(out, func(i, j int) bool { return key(out[i]) < key(out[j]) })
		return out, true
	default:
		return out, false
	}
}
