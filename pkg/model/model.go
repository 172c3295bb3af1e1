package model

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotConvertible is returned when a model has no mutable working representation.
var ErrNotConvertible = errors.New("model cannot be converted to a mutable working copy")

// Class is a classifier of an application schema.
type Class interface {
	ID() string
	Name() string
	TaggedValue(name string) (string, bool)
}

// Package is a package of the model; schema packages are the units targets
// process.
type Package interface {
	ID() string
	Name() string
	TargetNamespace() string
	Children() []Package
}

// Model is a loaded application schema model.
type Model interface {
	LoadInformationFromExternalSources(ctx context.Context) error
	PostprocessAfterLoadingAndValidate(ctx context.Context) error
	// SelectedSchemas returns the schema packages selected for processing, in order.
	SelectedSchemas() []Package
	Classes(pkg Package) []Class
	Shutdown()
}

// Mutable is the working representation transformers operate on.
type Mutable interface {
	Model
	// Clone returns an independent deep copy.
	Clone() Mutable
}

// Converter produces a mutable working copy of m.
type Converter func(m Model) (Mutable, error)

// CloneConverter copies models that already are in the mutable representation.
func CloneConverter(m Model) (Mutable, error) {
	if mm, ok := m.(Mutable); ok {
		return mm.Clone(), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrNotConvertible, m)
}

// Loader creates the input model described by the input configuration
// parameters.
type Loader interface {
	Load(ctx context.Context, params map[string]string) (Model, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, params map[string]string) (Model, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, params map[string]string) (Model, error) {
	return f(ctx, params)
}

// ClassesWithDescendants returns the classes of pkg and of every descendant
// package sharing pkg's target namespace.
func ClassesWithDescendants(m Model, pkg Package) []Class {
	out := append([]Class(nil), m.Classes(pkg)...)
	ns := pkg.TargetNamespace()
	var walk func(Package)
	walk = func(p Package) {
		for _, child := range p.Children() {
			if child.TargetNamespace() != ns {
				continue
			}
			out = append(out, m.Classes(child)...)
			walk(child)
		}
	}
	walk(pkg)
	return out
}
