// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package matchpruner removes the match-sets left behind by catchup
// executions that never cleaned up, for example because the process died.
package matchpruner

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/retry"
	"github.com/juju/worker/v4"
	"gopkg.in/tomb.v2"
)

const (
	// defaultPruneMinInterval is the default minimum interval at which the
	// pruner will run.
	defaultPruneMinInterval = time.Minute
	// defaultPruneMaxInterval is the default maximum interval at which the
	// pruner will run.
	defaultPruneMaxInterval = time.Minute * 30
)

var (
	// backOffStrategy is the default backoff strategy used by the pruner.
	backOffStrategy = retry.ExpBackoff(defaultPruneMinInterval, defaultPruneMaxInterval, 1.5, false)
)

// Logger represents the logging methods called.
type Logger interface {
	Infof(message string, args ...any)
	Debugf(message string, args ...any)
}

// MatchSetState removes match-sets registered before a point in time.
type MatchSetState interface {
	PruneExecutions(ctx context.Context, before time.Time) (int, error)
}

// WorkerConfig encapsulates the configuration options for the pruner.
type WorkerConfig struct {
	State  MatchSetState
	MaxAge time.Duration
	Clock  clock.Clock
	Logger Logger
}

// Validate ensures that the config values are valid.
func (c *WorkerConfig) Validate() error {
	if c.State == nil {
		return errors.NotValidf("missing State")
	}
	if c.MaxAge <= 0 {
		return errors.NotValidf("max age %v", c.MaxAge)
	}
	if c.Clock == nil {
		return errors.NotValidf("missing clock")
	}
	if c.Logger == nil {
		return errors.NotValidf("missing logger")
	}
	return nil
}

// Pruner is a worker removing orphaned match-sets.
type Pruner struct {
	tomb tomb.Tomb
	cfg  WorkerConfig
}

// NewWorker creates a new Pruner.
func NewWorker(cfg WorkerConfig) (worker.Worker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}

	pruner := &Pruner{
		cfg: cfg,
	}
	pruner.tomb.Go(pruner.loop)

	return pruner, nil
}

// Kill is part of the worker.Worker interface.
func (w *Pruner) Kill() {
	w.tomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (w *Pruner) Wait() error {
	return w.tomb.Wait()
}

func (w *Pruner) loop() error {
	timer := w.cfg.Clock.NewTimer(defaultPruneMinInterval)
	defer timer.Stop()

	var attempts int
	for {
		select {
		case <-w.tomb.Dying():
			return tomb.ErrDying

		case <-timer.Chan():
			pruned, err := w.prune()
			if err != nil {
				return errors.Trace(err)
			}

			// Back off while there is nothing to prune.
			if pruned == 0 {
				attempts++
			} else {
				attempts = 0
			}

			timer.Reset(backOffStrategy(0, attempts))
		}
	}
}

func (w *Pruner) prune() (int, error) {
	ctx := w.tomb.Context(context.Background())

	before := w.cfg.Clock.Now().Add(-w.cfg.MaxAge)
	pruned, err := w.cfg.State.PruneExecutions(ctx, before)
	if err != nil {
		return -1, errors.Annotate(err, "pruning match-sets")
	}

	if pruned > 0 {
		w.cfg.Logger.Infof("pruned %d match-sets registered before %s", pruned, before.Format(time.RFC3339))
	} else {
		w.cfg.Logger.Debugf("no match-sets to prune")
	}
	return pruned, nil
}
