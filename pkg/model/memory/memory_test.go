package memory

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShapeChange/ShapeChange-sub001/pkg/model"
)

const sampleModel = `
name: sample
packages:
  - id: P1
    name: Hydro
    targetNamespace: urn:hydro
    schema: true
    classes:
      - id: C2
        name: River
        taggedValues: {order: "2"}
      - id: C1
        name: Lake
    packages:
      - id: P1a
        name: HydroSub
        targetNamespace: urn:hydro
        classes:
          - id: C3
            name: Canal
      - id: P1b
        name: Foreign
        targetNamespace: urn:other
        classes:
          - id: C4
            name: Dam
`

func decodeSample(t *testing.T) *Model {
	t.Helper()
	m, err := Decode(strings.NewReader(sampleModel))
	require.NoError(t, err)
	require.NoError(t, m.PostprocessAfterLoadingAndValidate(context.Background()))
	return m
}

func TestSelectedSchemasAndClasses(t *testing.T) {
	m := decodeSample(t)

	schemas := m.SelectedSchemas()
	require.Len(t, schemas, 1)
	assert.Equal(t, "Hydro", schemas[0].Name())

	classes := model.ClassesWithDescendants(m, schemas[0])
	names := make([]string, 0, len(classes))
	for _, c := range classes {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"River", "Lake", "Canal"}, names, "packages with another namespace are excluded")
}

func TestCloneIsDeep(t *testing.T) {
	m := decodeSample(t)
	copied := m.Clone().(*Model)

	copied.FindClass("C1").SetTaggedValue("status", "copied")
	copied.FindPackage("P1").PkgName = "Renamed"

	_, ok := m.FindClass("C1").TaggedValue("status")
	assert.False(t, ok)
	assert.Equal(t, "Hydro", m.FindPackage("P1").Name())
}

func TestPostprocessRejectsDuplicateIDs(t *testing.T) {
	m := &Model{Packages: []*Package{{Identifier: "P", ClassList: []*Class{{Identifier: "P"}}}}}
	assert.Error(t, m.PostprocessAfterLoadingAndValidate(context.Background()))
}

func TestLoadReadsInputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleModel), 0o600))

	loaded, err := Load(context.Background(), map[string]string{"inputFile": path})
	require.NoError(t, err)
	assert.Len(t, loaded.SelectedSchemas(), 1)

	_, err = Load(context.Background(), map[string]string{})
	assert.ErrorIs(t, err, ErrInputFileRequired)
}

func TestCloneConverter(t *testing.T) {
	m := decodeSample(t)
	copied, err := model.CloneConverter(m)
	require.NoError(t, err)
	assert.NotSame(t, m, copied)
}
