// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package transformation describes the contract between the delivery
// pipeline and the service that migrates fact payloads between schema
// versions.
package transformation

import (
	"context"

	"github.com/juju/collections/set"

	"github.com/juju/factstore/core/fact"
)

// Request pairs a fact with the versions it may be transformed to. A fact
// only needs to reach one of the targets.
type Request struct {
	Fact    fact.Fact
	Targets set.Ints
}

// Transformer transforms batches of facts. Results are correlated with the
// requests by fact ID and may be returned in any order.
type Transformer interface {
	Transform(ctx context.Context, requests []Request) ([]fact.Fact, error)
}
