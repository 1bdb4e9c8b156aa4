// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package fact

import (
	"slices"

	"github.com/juju/errors"
)

// Script is a filter predicate written in Starlark. The source must define a
// function `matches(fact)` returning a truth value.
type Script struct {
	Source string
}

// Spec is a single filter clause of a subscription. Every non-empty field
// must hold for a fact to match the clause.
type Spec struct {
	// Namespace is required.
	Namespace string
	// Type restricts the clause to a fact type.
	Type string
	// Version is the schema version the subscriber wants to receive. Zero
	// means any version is acceptable. It does not filter facts out. A
	// version is only meaningful for a single type.
	Version int
	// AggregateID restricts the clause to facts referring to the aggregate.
	AggregateID string
	// Meta restricts the clause to facts carrying all the given annotations.
	Meta map[string]string
	// Filter is an optional script evaluated after the storage query.
	Filter *Script
}

// Validate returns an error if the spec is not usable.
func (s Spec) Validate() error {
	if s.Namespace == "" {
		return errors.NotValidf("spec without namespace")
	}
	if s.Version < 0 {
		return errors.NotValidf("spec version %d", s.Version)
	}
	if s.Version != AnyVersion && s.Type == "" {
		return errors.NotValidf("spec version %d without type for namespace %q", s.Version, s.Namespace)
	}
	if s.Filter != nil && s.Filter.Source == "" {
		return errors.NotValidf("empty filter script for namespace %q", s.Namespace)
	}
	return nil
}

// HasFilter returns true if the spec carries a filter script.
func (s Spec) HasFilter() bool {
	return s.Filter != nil
}

// Request describes a subscription: the specs are combined with OR semantics.
type Request struct {
	Specs []Spec
	// Continuous subscriptions follow the log after the catchup.
	Continuous bool
	// IDOnly subscriptions receive facts without payload.
	IDOnly bool
	// StartingAfter is the serial after which facts are delivered. Zero
	// starts from inception.
	StartingAfter int64
	// Debug is a free form label used in log messages.
	Debug string
}

// Validate returns an error if the request is not usable.
func (r Request) Validate() error {
	if len(r.Specs) == 0 {
		return errors.NotValidf("request without specs")
	}
	for i, spec := range r.Specs {
		if err := spec.Validate(); err != nil {
			return errors.Annotatef(err, "spec %d", i)
		}
	}
	if r.StartingAfter < 0 {
		return errors.NotValidf("starting position %d", r.StartingAfter)
	}
	return nil
}

// HasFilters returns true if any of the specs carries a filter script.
func (r Request) HasFilters() bool {
	return slices.ContainsFunc(r.Specs, Spec.HasFilter)
}

// String returns the debug label of the request.
func (r Request) String() string {
	if r.Debug == "" {
		return "subscription"
	}
	return r.Debug
}
