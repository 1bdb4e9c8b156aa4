// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package fact

import (
	"github.com/juju/collections/set"
)

// AnyVersion is recorded when a subscriber accepts every version.
const AnyVersion = 0

type versionKey struct {
	namespace string
	factType  string
}

// RequestedVersions records, per namespace and type, the versions a
// subscriber accepts. It is populated once before facts are processed and is
// read only afterwards.
type RequestedVersions struct {
	versions map[versionKey]set.Ints
}

// NewRequestedVersions returns the versions requested by the given specs.
func NewRequestedVersions(specs []Spec) *RequestedVersions {
	rv := &RequestedVersions{
		versions: make(map[versionKey]set.Ints),
	}
	for _, spec := range specs {
		rv.Add(spec.Namespace, spec.Type, spec.Version)
	}
	return rv
}

// Add records that the version is acceptable for the namespace and type.
// Adding AnyVersion records a wildcard.
func (rv *RequestedVersions) Add(namespace, factType string, version int) {
	if rv.versions == nil {
		rv.versions = make(map[versionKey]set.Ints)
	}
	key := versionKey{namespace: namespace, factType: factType}
	versions, ok := rv.versions[key]
	if !ok {
		versions = set.NewInts()
		rv.versions[key] = versions
	}
	versions.Add(version)
}

// Matches returns true if a fact of the given namespace, type and version
// can be delivered without transformation.
func (rv *RequestedVersions) Matches(namespace, factType string, version int) bool {
	versions := rv.Get(namespace, factType)
	if versions.IsEmpty() || versions.Contains(AnyVersion) {
		return true
	}
	return versions.Contains(version)
}

// Get returns the versions recorded for the namespace and type, including the
// wildcard if it was recorded.
func (rv *RequestedVersions) Get(namespace, factType string) set.Ints {
	if rv == nil || rv.versions == nil {
		return set.NewInts()
	}
	versions, ok := rv.versions[versionKey{namespace: namespace, factType: factType}]
	if !ok {
		return set.NewInts()
	}
	return set.NewInts(versions.Values()...)
}
