package backend

import (
	"context"

	"github.com/ShapeChange/ShapeChange-sub001/pkg/config"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/model"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/overlay"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/telemetry"
)

// Invocation is the context a backend instance is initialised with. Package
// and Model are nil for transformers and validators.
type Invocation struct {
	Scope           *overlay.Scope
	Logger          telemetry.StructuredLogger
	Store           *Store
	Package         model.Package
	Model           model.Model
	DiagnosticsOnly bool
}

// OutputDirectory returns the directory the invocation writes to.
func (inv Invocation) OutputDirectory() string {
	if inv.Scope == nil {
		return ""
	}
	return inv.Scope.ParameterOr(overlay.ParamOutputDirectory, ".")
}

// Target encodes the classes of one schema package.
type Target interface {
	Initialise(ctx context.Context, inv Invocation) error
	Process(ctx context.Context, c model.Class) error
	Write(ctx context.Context) error
	Name() string
}

// Aggregating targets collect every package of a run and materialise their
// output once in WriteAll. One instance serves the whole run.
type Aggregating interface {
	Target
	Reset()
	WriteAll(ctx context.Context) error
}

// Deferred targets write their output in a separate phase after the model is
// released. WriteOutput is called on a fresh instance; the invocation carries
// no package or model.
type Deferred interface {
	WriteOutput(ctx context.Context, inv Invocation) error
}

// Transformer derives a model from its input.
type Transformer interface {
	Initialise(ctx context.Context, inv Invocation) error
	Transform(ctx context.Context, m model.Mutable) (model.Model, error)
	Shutdown()
}

// Validator checks the configuration of one process.
type Validator interface {
	IsValid(ctx context.Context, p config.Process, inv Invocation) bool
}

// Store carries state between backend instances of one run, such as the
// records a deferred target hands to its output phase.
type Store struct {
	values map[string]any
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{values: map[string]any{}}
}

// Load returns the value stored under key.
func (s *Store) Load(key string) (any, bool) {
	if s == nil {
		return nil, false
	}
	v, ok := s.values[key]
	return v, ok
}

// Save stores value under key.
func (s *Store) Save(key string, value any) {
	s.values[key] = value
}
