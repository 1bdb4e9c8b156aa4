// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package catchup

import (
	"context"

	"github.com/juju/factstore/core/fact"
)

// Store is the storage used by a catchup. Every match-set is identified by
// the execution that prepared it.
type Store interface {
	// PrepareMatches records the serials after the given one that satisfy
	// any of the specs and returns how many were recorded.
	PrepareMatches(ctx context.Context, executionID string, specs []fact.Spec, after int64) (int64, error)

	// FetchMatches returns at most limit facts of the match-set with a
	// serial after the given one, in ascending serial order.
	FetchMatches(ctx context.Context, executionID string, after int64, limit int, idOnly bool) ([]fact.Fact, error)

	// StreamMatches calls fn for every fact of the match-set with a serial
	// after the given one, in ascending serial order.
	StreamMatches(ctx context.Context, executionID string, after int64, idOnly bool, fn func(fact.Fact) error) error

	// DeleteMatches removes the match-set.
	DeleteMatches(ctx context.Context, executionID string) error
}
