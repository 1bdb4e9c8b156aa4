// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package catchup

import (
	"github.com/juju/factstore/core/fact"
	"github.com/juju/factstore/core/transformation"
)

// Preparer decides whether a fact has to be transformed before it can be
// delivered.
type Preparer struct {
	versions *fact.RequestedVersions
	idOnly   bool
}

// NewPreparer returns a Preparer for the requested versions. Facts of id-only
// subscriptions are never transformed.
func NewPreparer(versions *fact.RequestedVersions, idOnly bool) *Preparer {
	return &Preparer{
		versions: versions,
		idOnly:   idOnly,
	}
}

// Prepare returns the transformation request for the fact, or nil if the fact
// can be delivered as is.
func (p *Preparer) Prepare(f fact.Fact) *transformation.Request {
	if p.idOnly || p.versions.Matches(f.Namespace, f.Type, f.Version) {
		return nil
	}
	return &transformation.Request{
		Fact:    f,
		Targets: p.versions.Get(f.Namespace, f.Type),
	}
}
