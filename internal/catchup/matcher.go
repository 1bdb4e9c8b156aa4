// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package catchup

import (
	"fmt"
	"slices"

	"github.com/juju/errors"

	"github.com/juju/factstore/core/fact"
	"github.com/juju/factstore/internal/script"
)

// Matcher re-evaluates the specs of a request against facts returned by the
// storage query, including the filter scripts storage cannot evaluate.
type Matcher struct {
	specs   []fact.Spec
	filters []*script.Program
}

// NewMatcher compiles the filter scripts of the specs.
func NewMatcher(specs []fact.Spec) (*Matcher, error) {
	filters := make([]*script.Program, len(specs))
	for i, spec := range specs {
		if !spec.HasFilter() {
			continue
		}
		name := fmt.Sprintf("filter-%d-%s", i, spec.Namespace)
		program, err := script.Compile(name, spec.Filter.Source, script.MatchesEntrypoint)
		if err != nil {
			return nil, errors.Annotatef(err, "spec %d", i)
		}
		filters[i] = program
	}
	return &Matcher{
		specs:   specs,
		filters: filters,
	}, nil
}

// CanBeSkipped returns true if the storage query already guarantees that
// every fact it returns matches. The query expresses namespace, type,
// aggregate and meta constraints, so only filter scripts need evaluating.
func (m *Matcher) CanBeSkipped() bool {
	for _, filter := range m.filters {
		if filter != nil {
			return false
		}
	}
	return true
}

// Test returns true if any of the specs matches the fact.
func (m *Matcher) Test(f fact.Fact) (bool, error) {
	for i, spec := range m.specs {
		if !matchesSpec(spec, f) {
			continue
		}
		if m.filters[i] == nil {
			return true, nil
		}
		ok, err := m.filters[i].Matches(f)
		if err != nil {
			return false, errors.Trace(err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func matchesSpec(spec fact.Spec, f fact.Fact) bool {
	if spec.Namespace != f.Namespace {
		return false
	}
	if spec.Type != "" && spec.Type != f.Type {
		return false
	}
	if spec.AggregateID != "" && !slices.Contains(f.AggregateIDs, spec.AggregateID) {
		return false
	}
	for k, v := range spec.Meta {
		if actual, ok := f.Meta[k]; !ok || actual != v {
			return false
		}
	}
	return true
}
