package backends

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/ShapeChange/ShapeChange-sub001/pkg/backend"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/model"
)

// CatalogueFile is the base name of the document the catalogue target writes.
const CatalogueFile = "catalogue.toml"

type cataloguePackage struct {
	Name      string   `toml:"name"`
	Namespace string   `toml:"namespace"`
	Classes   []string `toml:"classes"`
}

type catalogueDocument struct {
	EncodingRule string             `toml:"encodingRule"`
	Packages     []cataloguePackage `toml:"package"`
}

// catalogue collects the classes of every schema package of a target
// configuration and writes them into a single document.
type catalogue struct {
	inv      backend.Invocation
	packages []cataloguePackage
}

func newCatalogue() (*catalogue, error) { return &catalogue{}, nil }

func (c *catalogue) Name() string { return CatalogueID }

func (c *catalogue) Initialise(_ context.Context, inv backend.Invocation) error {
	c.inv = inv
	c.packages = append(c.packages, cataloguePackage{
		Name:      inv.Package.Name(),
		Namespace: inv.Package.TargetNamespace(),
	})
	return nil
}

func (c *catalogue) Process(_ context.Context, cl model.Class) error {
	last := &c.packages[len(c.packages)-1]
	last.Classes = append(last.Classes, cl.Name())
	return nil
}

func (c *catalogue) Write(context.Context) error { return nil }

func (c *catalogue) Reset() {
	c.inv = backend.Invocation{}
	c.packages = nil
}

func (c *catalogue) WriteAll(context.Context) error {
	if len(c.packages) == 0 || c.inv.DiagnosticsOnly {
		return nil
	}
	data, err := toml.Marshal(catalogueDocument{
		EncodingRule: c.inv.Scope.EncodingRule(),
		Packages:     c.packages,
	})
	if err != nil {
		return fmt.Errorf("encode catalogue: %w", err)
	}
	if err := os.WriteFile(filepath.Join(c.inv.OutputDirectory(), OutputName(c.inv.Scope.ProcessID(), CatalogueFile)), data, 0o644); err != nil {
		return fmt.Errorf("write catalogue: %w", err)
	}
	return nil
}
