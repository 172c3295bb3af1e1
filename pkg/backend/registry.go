package backend

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ShapeChange/ShapeChange-sub001/pkg/model"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/rules"
)

// ValidatorSuffix is appended to a backend ID to find its companion validator.
const ValidatorSuffix = "Validator"

var (
	// ErrDuplicateBackend is returned when an ID is registered twice.
	ErrDuplicateBackend = errors.New("duplicate backend identifier")
	// ErrUnknownBackend is returned when no backend is registered under an ID.
	ErrUnknownBackend = errors.New("unknown backend")
	// ErrCapability is returned when a backend lacks the contract a caller needs.
	ErrCapability = errors.New("backend does not provide capability")
	// ErrDuplicateLoader is returned when a model type is registered twice.
	ErrDuplicateLoader = errors.New("duplicate model loader")
	// ErrUnknownModelType is returned when no loader handles a model type.
	ErrUnknownModelType = errors.New("unknown model type")
)

// Capability is a set of contracts a backend implementation satisfies.
type Capability uint8

const (
	CapTarget Capability = 1 << iota
	CapAggregating
	CapDeferred
	CapTransformer
	CapValidator
)

// Has reports whether c includes every capability in other.
func (c Capability) Has(other Capability) bool {
	return other != 0 && c&other == other
}

func (c Capability) String() string {
	names := []struct {
		cap  Capability
		name string
	}{
		{CapTarget, "target"},
		{CapAggregating, "aggregating"},
		{CapDeferred, "deferred"},
		{CapTransformer, "transformer"},
		{CapValidator, "validator"},
	}
	var parts []string
	for _, n := range names {
		if c.Has(n.cap) {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// CapabilitiesOf probes which contracts the type T satisfies. Pointer
// implementations are probed through their nil value, so nothing is
// instantiated.
func CapabilitiesOf[T any]() Capability {
	var zero T
	v := any(zero)
	var c Capability
	if _, ok := v.(Target); ok {
		c |= CapTarget
	}
	if _, ok := v.(Aggregating); ok {
		c |= CapAggregating
	}
	if _, ok := v.(Deferred); ok {
		c |= CapDeferred
	}
	if _, ok := v.(Transformer); ok {
		c |= CapTransformer
	}
	if _, ok := v.(Validator); ok {
		c |= CapValidator
	}
	return c
}

// Descriptor is one entry of the registration table.
type Descriptor struct {
	ID                  string
	DefaultEncodingRule string
	// RuleSets are built-in encoding rules the backend contributes.
	RuleSets     []rules.RuleSet
	Capabilities Capability
	New          func() (any, error)
}

// Describe builds a descriptor whose capabilities are probed from T.
func Describe[T any](id string, newFn func() (T, error)) Descriptor {
	return Descriptor{
		ID:           id,
		Capabilities: CapabilitiesOf[T](),
		New: func() (any, error) {
			inst, err := newFn()
			if err != nil {
				return nil, err
			}
			return inst, nil
		},
	}
}

// Registry maps backend identifiers to implementations and model types to
// loaders. It is populated at startup and read-only afterwards.
type Registry struct {
	descriptors map[string]Descriptor
	order       []string
	loaders     map[string]model.Loader
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		descriptors: map[string]Descriptor{},
		loaders:     map[string]model.Loader{},
	}
}

// Register adds d to the table. A duplicate ID is rejected.
func (r *Registry) Register(d Descriptor) error {
	id := strings.TrimSpace(d.ID)
	if id == "" {
		return errors.New("backend identifier is required")
	}
	if d.New == nil {
		return fmt.Errorf("backend %s: constructor is required", id)
	}
	if d.Capabilities == 0 {
		return fmt.Errorf("backend %s: %w: no known contract implemented", id, ErrCapability)
	}
	if _, exists := r.descriptors[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateBackend, id)
	}
	d.ID = id
	r.descriptors[id] = d
	r.order = append(r.order, id)
	return nil
}

// MustRegister registers every descriptor and panics on the first error.
func (r *Registry) MustRegister(ds ...Descriptor) {
	for _, d := range ds {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
}

// Descriptor returns the descriptor registered under id.
func (r *Registry) Descriptor(id string) (Descriptor, bool) {
	d, ok := r.descriptors[id]
	return d, ok
}

// IDs returns the registered identifiers, sorted.
func (r *Registry) IDs() []string {
	ids := append([]string(nil), r.order...)
	sort.Strings(ids)
	return ids
}

// Capabilities returns the capabilities of the backend registered under id.
func (r *Registry) Capabilities(id string) Capability {
	return r.descriptors[id].Capabilities
}

// DefaultEncodingRule returns the encoding rule a backend applies when the
// process does not select one.
func (r *Registry) DefaultEncodingRule(id string) string {
	return r.descriptors[id].DefaultEncodingRule
}

// RuleSets returns the built-in rule sets of every backend in registration order.
func (r *Registry) RuleSets() []rules.RuleSet {
	var out []rules.RuleSet
	for _, id := range r.order {
		out = append(out, r.descriptors[id].RuleSets...)
	}
	return out
}

func (r *Registry) instantiate(id string, want Capability) (any, error) {
	d, ok := r.descriptors[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, id)
	}
	if !d.Capabilities.Has(want) {
		return nil, fmt.Errorf("%w: %s is not %s", ErrCapability, id, want)
	}
	inst, err := d.New()
	if err != nil {
		return nil, fmt.Errorf("instantiate backend %s: %w", id, err)
	}
	if inst == nil {
		return nil, fmt.Errorf("instantiate backend %s: constructor returned nil", id)
	}
	return inst, nil
}

// NewTarget returns a fresh target instance.
func (r *Registry) NewTarget(id string) (Target, error) {
	inst, err := r.instantiate(id, CapTarget)
	if err != nil {
		return nil, err
	}
	return inst.(Target), nil
}

// NewDeferred returns a fresh instance for the deferred output phase.
func (r *Registry) NewDeferred(id string) (Deferred, error) {
	inst, err := r.instantiate(id, CapDeferred)
	if err != nil {
		return nil, err
	}
	return inst.(Deferred), nil
}

// NewTransformer returns a fresh transformer instance.
func (r *Registry) NewTransformer(id string) (Transformer, error) {
	inst, err := r.instantiate(id, CapTransformer)
	if err != nil {
		return nil, err
	}
	return inst.(Transformer), nil
}

// Validator returns the companion validator of backend id. The boolean is
// false when none is registered; an error means it could not be constructed.
func (r *Registry) Validator(id string) (Validator, bool, error) {
	vid := id + ValidatorSuffix
	if _, ok := r.descriptors[vid]; !ok {
		return nil, false, nil
	}
	inst, err := r.instantiate(vid, CapValidator)
	if err != nil {
		return nil, true, err
	}
	return inst.(Validator), true, nil
}

// RegisterLoader makes l responsible for input models of modelType.
func (r *Registry) RegisterLoader(modelType string, l model.Loader) error {
	key := strings.ToLower(strings.TrimSpace(modelType))
	if key == "" {
		return errors.New("model type is required")
	}
	if l == nil {
		return fmt.Errorf("model type %s: loader is required", modelType)
	}
	if _, exists := r.loaders[key]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateLoader, modelType)
	}
	r.loaders[key] = l
	return nil
}

// Loader returns the loader registered for modelType.
func (r *Registry) Loader(modelType string) (model.Loader, error) {
	l, ok := r.loaders[strings.ToLower(strings.TrimSpace(modelType))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModelType, modelType)
	}
	return l, nil
}
