package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ShapeChange/ShapeChange-sub001/pkg/backend"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/config"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/model"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/model/memory"
)

const testModel = `
name: test
packages:
  - id: P1
    name: Hydro
    targetNamespace: urn:hydro
    schema: true
    classes:
      - {id: C1, name: Lake, taggedValues: {order: "2"}}
      - {id: C2, name: River, taggedValues: {order: "1"}}
      - {id: C3, name: Canal}
  - id: P2
    name: Transport
    targetNamespace: urn:transport
    schema: true
    classes:
      - {id: C4, name: Road}
`

// recorder observes what the fake backends were asked to do.
type recorder struct {
	source *memory.Model
	events []string
	inputs map[string]*memory.Model
}

func (r *recorder) add(format string, args ...any) {
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recorder) has(prefix string) bool {
	for _, e := range r.events {
		if strings.HasPrefix(e, prefix) {
			return true
		}
	}
	return false
}

type taggingTransformer struct {
	rec *recorder
	inv backend.Invocation
}

func (t *taggingTransformer) Initialise(_ context.Context, inv backend.Invocation) error {
	t.inv = inv
	return nil
}

func (t *taggingTransformer) Transform(_ context.Context, m model.Mutable) (model.Model, error) {
	id := t.inv.Scope.ProcessID()
	if t.inv.Scope.ParameterOr("fail", "") == "true" {
		return nil, errors.New("cannot transform")
	}
	if t.inv.Scope.ParameterOr("panic", "") == "true" {
		panic("unexpected model element")
	}
	mm := m.(*memory.Model)
	mm.EachClass(func(c *memory.Class) { c.SetTaggedValue("by", id) })
	t.rec.inputs[id] = mm
	t.rec.add("transform:%s", id)
	return mm, nil
}

func (t *taggingTransformer) Shutdown() {}

type fileTarget struct {
	rec     *recorder
	inv     backend.Invocation
	classes []string
}

func (f *fileTarget) Initialise(_ context.Context, inv backend.Invocation) error {
	f.inv = inv
	return nil
}

func (f *fileTarget) Process(_ context.Context, c model.Class) error {
	f.classes = append(f.classes, c.Name())
	return nil
}

func (f *fileTarget) Write(context.Context) error {
	f.rec.add("listing:%s:%s:%s", f.inv.Scope.ProcessID(), f.inv.Package.Name(), strings.Join(f.classes, ","))
	if f.inv.DiagnosticsOnly {
		return nil
	}
	name := f.inv.Scope.ProcessID() + "-" + f.inv.Package.Name() + ".txt"
	return os.WriteFile(filepath.Join(f.inv.OutputDirectory(), name), []byte(strings.Join(f.classes, "\n")), 0o644)
}

func (f *fileTarget) Name() string { return "listing" }

type catalogueTarget struct {
	rec     *recorder
	inv     backend.Invocation
	classes []string
}

func (c *catalogueTarget) Initialise(_ context.Context, inv backend.Invocation) error {
	c.inv = inv
	return nil
}

func (c *catalogueTarget) Process(_ context.Context, cl model.Class) error {
	c.classes = append(c.classes, cl.Name())
	return nil
}

func (c *catalogueTarget) Write(context.Context) error { return nil }
func (c *catalogueTarget) Name() string                { return "catalogue" }

func (c *catalogueTarget) Reset() {
	c.rec.add("reset")
	c.classes = nil
}

func (c *catalogueTarget) WriteAll(context.Context) error {
	c.rec.add("writeAll:%s:%d", c.inv.Scope.ProcessID(), len(c.classes))
	return os.WriteFile(filepath.Join(c.inv.OutputDirectory(), "catalogue.txt"), []byte(strings.Join(c.classes, "\n")), 0o644)
}

type reportTarget struct {
	rec *recorder
}

func (r *reportTarget) Initialise(context.Context, backend.Invocation) error { return nil }
func (r *reportTarget) Write(context.Context) error                         { return nil }
func (r *reportTarget) Name() string                                        { return "report" }

func (r *reportTarget) Process(ctx context.Context, c model.Class) error {
	return nil
}

func (r *reportTarget) WriteOutput(_ context.Context, inv backend.Invocation) error {
	r.rec.add("deferred:%s:released=%t", inv.Scope.ProcessID(), r.rec.source.IsShutdown())
	return nil
}

type paramValidator struct{}

func (paramValidator) IsValid(_ context.Context, _ config.Process, inv backend.Invocation) bool {
	return inv.Scope.ParameterOr("valid", "true") != "false"
}

func newTestRegistry(t *testing.T, rec *recorder) *backend.Registry {
	t.Helper()
	r := backend.NewRegistry()
	r.MustRegister(
		backend.Describe("tagger", func() (*taggingTransformer, error) { return &taggingTransformer{rec: rec}, nil }),
		backend.Describe("listing", func() (*fileTarget, error) { return &fileTarget{rec: rec}, nil }),
		backend.Describe("listingValidator", func() (paramValidator, error) { return paramValidator{}, nil }),
		backend.Describe("catalogue", func() (*catalogueTarget, error) { return &catalogueTarget{rec: rec}, nil }),
		backend.Describe("report", func() (*reportTarget, error) { return &reportTarget{rec: rec}, nil }),
	)
	require.NoError(t, r.RegisterLoader(memory.ModelType, model.LoaderFunc(func(context.Context, map[string]string) (model.Model, error) {
		m, err := memory.Decode(strings.NewReader(testModel))
		if err != nil {
			return nil, err
		}
		rec.source = m
		return m, nil
	})))
	return r
}

func newRecorder() *recorder {
	return &recorder{inputs: map[string]*memory.Model{}}
}

func baseConfig(t *testing.T) *config.Configuration {
	t.Helper()
	return &config.Configuration{
		Input: config.Input{
			ID:         "INPUT",
			ModelType:  memory.ModelType,
			Parameters: config.Parameters{"outputDirectory": t.TempDir()},
		},
	}
}

func transformer(id, input string, mode config.Mode, params config.Parameters) config.Transformer {
	return config.Transformer{
		Process: config.Process{ID: id, Class: "tagger", Mode: mode, Parameters: params},
		Input:   input,
	}
}

func target(id, class string, inputs ...string) config.Target {
	return config.Target{
		Process: config.Process{ID: id, Class: class, Mode: config.ModeEnabled},
		Inputs:  inputs,
	}
}
