// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package catchup

import (
	"context"

	"github.com/juju/errors"

	"github.com/juju/factstore/core/fact"
)

// Strategy names the way the match-set of a catchup is paged.
type Strategy string

const (
	// StrategyCursor streams the match-set in a single query.
	StrategyCursor Strategy = "cursor"
	// StrategyChunked fetches the match-set in pages.
	StrategyChunked Strategy = "chunked"
	// StrategyQueued fetches pages in the background and delivers them from
	// a bounded queue.
	StrategyQueued Strategy = "queued"
)

// Validate returns an error if the strategy is unknown.
func (s Strategy) Validate() error {
	switch s {
	case StrategyCursor, StrategyChunked, StrategyQueued:
		return nil
	}
	return errors.NotValidf("catchup strategy %q", s)
}

// Phase identifies which part of a subscription a catchup serves.
type Phase int

const (
	// PhasePrimary replays the log up to the position read when the
	// subscription started.
	PhasePrimary Phase = iota
	// PhaseSecondary replays the facts appended while the primary phase
	// was running.
	PhaseSecondary
	// PhaseFollow delivers facts appended after the subscription caught up.
	PhaseFollow
)

func (p Phase) String() string {
	switch p {
	case PhasePrimary:
		return "primary"
	case PhaseSecondary:
		return "secondary"
	case PhaseFollow:
		return "follow"
	}
	return "unknown"
}

// SelectStrategy returns the strategy used for a catchup. Phases expected to
// see few facts stream them; id-only catchups whose facts need no filtering
// in memory use the queued strategy.
func SelectStrategy(configured Strategy, phase Phase, idOnly, skippable bool) Strategy {
	switch {
	case phase != PhasePrimary:
		return StrategyCursor
	case idOnly && skippable:
		return StrategyQueued
	}
	return configured
}

// pager walks the match-set of an execution and hands every fact to the
// stage.
type pager interface {
	run(ctx context.Context) error
}

// execution holds the state of one catchup run.
type execution struct {
	id       string
	cursor   *Cursor
	store    Store
	stage    *Stage
	idOnly   bool
	pageSize int
	logger   Logger
}

// statement runs fn with a context that is cancelled when the cursor is.
// The cancellation is registered on the cursor handle only while fn runs.
func (e *execution) statement(ctx context.Context, fn func(context.Context) error) error {
	if e.cursor.Cancelled() {
		return ErrCatchupCancelled
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	handle := e.cursor.Handle()
	handle.Set(cancel)
	defer handle.Set(nil)

	// Close the window between the check above and registering the handle.
	if e.cursor.Cancelled() {
		return ErrCatchupCancelled
	}

	err := fn(ctx)
	if err != nil && e.cursor.Cancelled() {
		e.logger.Debugf("execution %q: statement cancelled: %v", e.id, err)
		return ErrCatchupCancelled
	}
	return err
}

// accept hands the fact to the stage and moves the cursor past it.
func (e *execution) accept(ctx context.Context, f fact.Fact) error {
	if err := e.stage.Accept(ctx, f); err != nil {
		return errors.Trace(err)
	}
	e.cursor.Advance(f.Serial)
	return nil
}
