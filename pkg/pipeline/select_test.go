package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ShapeChange/ShapeChange-sub001/pkg/model"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/model/memory"
)

func classNames(classes []model.Class) []string {
	out := make([]string, 0, len(classes))
	for _, c := range classes {
		out = append(out, c.Name())
	}
	return out
}

func TestSortClasses(t *testing.T) {
	classes := []model.Class{
		&memory.Class{Identifier: "C2", ClassName: "River", TaggedValues: map[string]string{"rank": "b"}},
		&memory.Class{Identifier: "C3", ClassName: "Canal"},
		&memory.Class{Identifier: "C1", ClassName: "Lake", TaggedValues: map[string]string{"rank": "a"}},
	}

	cases := []struct {
		order string
		want  []string
		ok    bool
	}{
		{"false", []string{"River", "Canal", "Lake"}, true},
		{"", []string{"River", "Canal", "Lake"}, true},
		{"true", []string{"Canal", "Lake", "River"}, true},
		{"NAME", []string{"Canal", "Lake", "River"}, true},
		{"id", []string{"Lake", "River", "Canal"}, true},
		{"taggedValue=rank", []string{"Canal", "Lake", "River"}, true},
		{"maybe", []string{"River", "Canal", "Lake"}, false},
		{"taggedValue=", []string{"River", "Canal", "Lake"}, false},
	}
	for _, tc := range cases {
		got, ok := sortClasses(classes, tc.order)
		assert.Equal(t, tc.ok, ok, tc.order)
		assert.Equal(t, tc.want, classNames(got), tc.order)
	}
	assert.Equal(t, "River", classes[0].Name(), "the input slice is not reordered")
}

func TestPackageFilter(t *testing.T) {
	hydro := &memory.Package{PkgName: "Hydro", Namespace: "urn:hydro"}
	transport := &memory.Package{PkgName: "Transport", Namespace: "urn:transport"}

	lookup := func(values map[string]string) func(string) (string, bool) {
		return func(name string) (string, bool) {
			v, ok := values[name]
			return v, ok
		}
	}

	f, problems := newPackageFilter(lookup(nil))
	assert.Empty(t, problems)
	assert.True(t, f.accepts(hydro))

	f, _ = newPackageFilter(lookup(map[string]string{ParamAppSchemaName: "Hydro"}))
	assert.True(t, f.accepts(hydro))
	assert.False(t, f.accepts(transport))

	f, _ = newPackageFilter(lookup(map[string]string{ParamAppSchemaNameRegex: "Trans"}))
	assert.False(t, f.accepts(transport), "patterns match the whole name")

	f, _ = newPackageFilter(lookup(map[string]string{ParamAppSchemaNamespaceRegex: "urn:trans.*"}))
	assert.True(t, f.accepts(transport))
	assert.False(t, f.accepts(hydro))

	f, problems = newPackageFilter(lookup(map[string]string{ParamAppSchemaNameRegex: "("}))
	assert.Len(t, problems, 1)
	assert.True(t, f.accepts(hydro), "a broken pattern does not filter")
}
