package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ShapeChange/ShapeChange-sub001/pkg/model"
)

// ModelType is the input model type the YAML loader is registered under.
const ModelType = "yaml"

// ErrInputFileRequired is returned when the loader parameters lack inputFile.
var ErrInputFileRequired = errors.New("input parameter inputFile is required")

// Class is an in-memory classifier.
type Class struct {
	Identifier   string            `yaml:"id"`
	ClassName    string            `yaml:"name"`
	TaggedValues map[string]string `yaml:"taggedValues,omitempty"`
}

func (c *Class) ID() string   { return c.Identifier }
func (c *Class) Name() string { return c.ClassName }

// TaggedValue returns the value of tagged value name.
func (c *Class) TaggedValue(name string) (string, bool) {
	v, ok := c.TaggedValues[name]
	return v, ok
}

// SetTaggedValue sets tagged value name on the class.
func (c *Class) SetTaggedValue(name, value string) {
	if c.TaggedValues == nil {
		c.TaggedValues = map[string]string{}
	}
	c.TaggedValues[name] = value
}

// Package is an in-memory package.
type Package struct {
	Identifier string     `yaml:"id"`
	PkgName    string     `yaml:"name"`
	Namespace  string     `yaml:"targetNamespace,omitempty"`
	Schema     bool       `yaml:"schema,omitempty"`
	ClassList  []*Class   `yaml:"classes,omitempty"`
	Packages   []*Package `yaml:"packages,omitempty"`
}

func (p *Package) ID() string              { return p.Identifier }
func (p *Package) Name() string            { return p.PkgName }
func (p *Package) TargetNamespace() string { return p.Namespace }

// Children returns the child packages.
func (p *Package) Children() []model.Package {
	out := make([]model.Package, 0, len(p.Packages))
	for _, child := range p.Packages {
		out = append(out, child)
	}
	return out
}

// Model is an in-memory application schema model. It is its own mutable
// working representation.
type Model struct {
	Name     string     `yaml:"name,omitempty"`
	Packages []*Package `yaml:"packages"`

	shutdown bool
}

var _ model.Mutable = (*Model)(nil)

// LoadInformationFromExternalSources is a no-op for in-memory models.
func (m *Model) LoadInformationFromExternalSources(context.Context) error { return nil }

// PostprocessAfterLoadingAndValidate checks identifiers are unique.
func (m *Model) PostprocessAfterLoadingAndValidate(context.Context) error {
	seen := map[string]struct{}{}
	var check func(p *Package) error
	check = func(p *Package) error {
		if strings.TrimSpace(p.Identifier) == "" {
			return fmt.Errorf("package %q has no id", p.PkgName)
		}
		ids := []string{p.Identifier}
		for _, c := range p.ClassList {
			ids = append(ids, c.Identifier)
		}
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				return fmt.Errorf("duplicate model element id %q", id)
			}
			seen[id] = struct{}{}
		}
		for _, child := range p.Packages {
			if err := check(child); err != nil {
				return err
			}
		}
		return nil
	}
	for _, p := range m.Packages {
		if err := check(p); err != nil {
			return err
		}
	}
	return nil
}

// SelectedSchemas returns all packages flagged as schema, depth-first.
func (m *Model) SelectedSchemas() []model.Package {
	var out []model.Package
	var walk func(p *Package)
	walk = func(p *Package) {
		if p.Schema {
			out = append(out, p)
		}
		for _, child := range p.Packages {
			walk(child)
		}
	}
	for _, p := range m.Packages {
		walk(p)
	}
	return out
}

// Classes returns the classes owned directly by pkg.
func (m *Model) Classes(pkg model.Package) []model.Class {
	p, ok := pkg.(*Package)
	if !ok {
		p = m.FindPackage(pkg.ID())
	}
	if p == nil {
		return nil
	}
	out := make([]model.Class, 0, len(p.ClassList))
	for _, c := range p.ClassList {
		out = append(out, c)
	}
	return out
}

// FindPackage returns the package with id, or nil.
func (m *Model) FindPackage(id string) *Package {
	var found *Package
	var walk func(p *Package)
	walk = func(p *Package) {
		if found != nil {
			return
		}
		if p.Identifier == id {
			found = p
			return
		}
		for _, child := range p.Packages {
			walk(child)
		}
	}
	for _, p := range m.Packages {
		walk(p)
	}
	return found
}

// FindClass returns the class with id, or nil.
func (m *Model) FindClass(id string) *Class {
	var found *Class
	m.EachClass(func(c *Class) {
		if found == nil && c.Identifier == id {
			found = c
		}
	})
	return found
}

// EachClass calls fn for every class of the model.
func (m *Model) EachClass(fn func(*Class)) {
	var walk func(p *Package)
	walk = func(p *Package) {
		for _, c := range p.ClassList {
			fn(c)
		}
		for _, child := range p.Packages {
			walk(child)
		}
	}
	for _, p := range m.Packages {
		walk(p)
	}
}

// Shutdown marks the model released.
func (m *Model) Shutdown() { m.shutdown = true }

// IsShutdown reports whether Shutdown was called.
func (m *Model) IsShutdown() bool { return m.shutdown }

// Clone returns a deep copy of the model.
func (m *Model) Clone() model.Mutable {
	out := &Model{Name: m.Name}
	for _, p := range m.Packages {
		out.Packages = append(out.Packages, clonePackage(p))
	}
	return out
}

func clonePackage(p *Package) *Package {
	out := &Package{
		Identifier: p.Identifier,
		PkgName:    p.PkgName,
		Namespace:  p.Namespace,
		Schema:     p.Schema,
	}
	for _, c := range p.ClassList {
		cc := &Class{Identifier: c.Identifier, ClassName: c.ClassName}
		if len(c.TaggedValues) > 0 {
			cc.TaggedValues = make(map[string]string, len(c.TaggedValues))
			for k, v := range c.TaggedValues {
				cc.TaggedValues[k] = v
			}
		}
		out.ClassList = append(out.ClassList, cc)
	}
	for _, child := range p.Packages {
		out.Packages = append(out.Packages, clonePackage(child))
	}
	return out
}

// Decode parses a YAML model document.
func Decode(r io.Reader) (*Model, error) {
	var m Model
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&m); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	return &m, nil
}

// Load reads the YAML model file named by the inputFile parameter.
func Load(_ context.Context, params map[string]string) (model.Model, error) {
	path := strings.TrimSpace(params["inputFile"])
	if path == "" {
		return nil, ErrInputFileRequired
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model %q: %w", path, err)
	}
	m, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}
