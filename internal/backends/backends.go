// Package backends holds the built-in transformer and target implementations
// and registers them, together with the bundled model loader, in a registry.
package backends

import (
	"fmt"

	"github.com/ShapeChange/ShapeChange-sub001/pkg/backend"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/model"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/model/memory"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/rules"
)

// Backend identifiers used as process classes in configuration documents.
const (
	ListingID           = "listing"
	CatalogueID         = "catalogue"
	DeferredReportID    = "deferred-report"
	TaggerID            = "tagger"
	TaggerValidatorID   = TaggerID + backend.ValidatorSuffix
	ListingEncodingRule = "listing"
)

// Conversion rules understood by the listing target.
const (
	RuleListingTaggedValues = "rule-listing-tagged-values"
	RuleListingMapEntries   = "rule-listing-map-entries"
)

// Register adds the built-in backends and the YAML model loader to r.
func Register(r *backend.Registry) error {
	listing := backend.Describe(ListingID, newListing)
	listing.DefaultEncodingRule = ListingEncodingRule
	listing.RuleSets = []rules.RuleSet{{
		Name:    ListingEncodingRule,
		Extends: rules.Root,
		Rules:   []string{RuleListingMapEntries},
	}}

	descriptors := []backend.Descriptor{
		listing,
		backend.Describe(CatalogueID, newCatalogue),
		backend.Describe(DeferredReportID, newDeferredReport),
		backend.Describe(TaggerID, newTagger),
		backend.Describe(TaggerValidatorID, newTaggerValidator),
	}
	for _, d := range descriptors {
		if err := r.Register(d); err != nil {
			return fmt.Errorf("register built-in backends: %w", err)
		}
	}
	if err := r.RegisterLoader(memory.ModelType, model.LoaderFunc(memory.Load)); err != nil {
		return fmt.Errorf("register built-in model loader: %w", err)
	}
	return nil
}

// NewRegistry returns a registry holding the built-in backends.
func NewRegistry() (*backend.Registry, error) {
	r := backend.NewRegistry()
	if err := Register(r); err != nil {
		return nil, err
	}
	return r, nil
}
