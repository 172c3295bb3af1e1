package cli

import (
	"io"

	"github.com/ShapeChange/ShapeChange-sub001/internal/backends"
	"github.com/ShapeChange/ShapeChange-sub001/internal/config"
	internalstate "github.com/ShapeChange/ShapeChange-sub001/internal/state"
	"github.com/ShapeChange/ShapeChange-sub001/internal/validation"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/backend"
	pkgstate "github.com/ShapeChange/ShapeChange-sub001/pkg/state"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/telemetry"
)

// StateManager persists the record of a run.
type StateManager interface {
	Write(pkgstate.Record, pkgstate.Overrides) (string, error)
}

// Deps holds the collaborators of the root command. Zero fields take defaults.
type Deps struct {
	Registry     func() (*backend.Registry, error)
	NewLoader    func(...config.Substitution) *config.Loader
	StateManager StateManager
	Emitter      func(io.Writer) (*telemetry.Emitter, error)
	Inspector    validation.FileInspector
	NewRunID     func() string
}

func ensureDeps(deps Deps) Deps {
	if deps.Registry == nil {
		deps.Registry = backends.NewRegistry
	}
	if deps.NewLoader == nil {
		deps.NewLoader = config.NewLoader
	}
	if deps.StateManager == nil {
		deps.StateManager = pkgstate.NewManager(internalstate.NewResolver())
	}
	if deps.Emitter == nil {
		deps.Emitter = telemetryEmitterDefault
	}
	if deps.Inspector == nil {
		deps.Inspector = validation.DefaultInspector{}
	}
	if deps.NewRunID == nil {
		deps.NewRunID = newRunID
	}
	return deps
}

func telemetryEmitterDefault(w io.Writer) (*telemetry.Emitter, error) {
	return telemetry.NewEmitter(w)
}
