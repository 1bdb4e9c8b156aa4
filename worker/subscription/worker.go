// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package subscription runs a subscription to the fact log: it replays the
// matching history to the sink and, for continuous subscriptions, keeps
// delivering facts as they are appended.
package subscription

import (
	"context"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/worker/v4"
	"gopkg.in/tomb.v2"

	"github.com/juju/factstore/core/fact"
	coresubscription "github.com/juju/factstore/core/subscription"
	"github.com/juju/factstore/internal/catchup"
)

// Logger represents the logging methods called.
type Logger interface {
	Errorf(message string, args ...any)
	Infof(message string, args ...any)
	Debugf(message string, args ...any)
}

// LogState reports the position of the fact log.
type LogState interface {
	LatestSerial(ctx context.Context) (int64, error)
}

// Catchup delivers the facts of the log matching a request.
type Catchup interface {
	Run(ctx context.Context, req fact.Request, cursor *catchup.Cursor, phase catchup.Phase, sink coresubscription.Sink) (catchup.Result, error)
}

// Config holds the dependencies of a Subscription.
type Config struct {
	Request            fact.Request
	Sink               coresubscription.Sink
	LogState           LogState
	Catchup            Catchup
	Clock              clock.Clock
	Logger             Logger
	FollowPollInterval time.Duration
}

// Validate returns an error if the config cannot be used to start a
// Subscription.
func (c Config) Validate() error {
	if err := c.Request.Validate(); err != nil {
		return errors.Trace(err)
	}
	if c.Sink == nil {
		return errors.NotValidf("nil Sink")
	}
	if c.LogState == nil {
		return errors.NotValidf("nil LogState")
	}
	if c.Catchup == nil {
		return errors.NotValidf("nil Catchup")
	}
	if c.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if c.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	if c.Request.Continuous && c.FollowPollInterval <= 0 {
		return errors.NotValidf("follow poll interval %v", c.FollowPollInterval)
	}
	return nil
}

var _ worker.Worker = (*Subscription)(nil)

// Subscription is a worker delivering facts to a sink.
type Subscription struct {
	tomb   tomb.Tomb
	config Config
	cursor *catchup.Cursor

	closeOnce sync.Once
	closeErr  error
}

// New starts a subscription.
func New(config Config) (*Subscription, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	w := &Subscription{
		config: config,
		cursor: catchup.NewCursor(config.Request.StartingAfter),
	}
	w.tomb.Go(w.loop)
	return w, nil
}

// Kill is part of the worker.Worker interface.
func (w *Subscription) Kill() {
	w.tomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (w *Subscription) Wait() error {
	return w.tomb.Wait()
}

// Position returns the serial of the last fact processed.
func (w *Subscription) Position() int64 {
	return w.cursor.Serial()
}

// Close cancels the running statement, stops the subscription and closes
// the sink. Only the first call has any effect.
func (w *Subscription) Close() error {
	w.closeOnce.Do(func() {
		w.cursor.Cancel()
		w.tomb.Kill(nil)
		if err := w.tomb.Wait(); err != nil {
			w.config.Logger.Debugf("%s stopped: %v", w.config.Request, err)
		}
		w.closeErr = errors.Trace(w.config.Sink.Close())
	})
	return w.closeErr
}

func (w *Subscription) loop() error {
	ctx := w.tomb.Context(context.Background())

	err := w.run(ctx)
	if err == nil {
		return nil
	}
	if w.closing() {
		return tomb.ErrDying
	}
	w.config.Logger.Errorf("%s failed at %d: %v", w.config.Request, w.cursor.Serial(), err)
	w.config.Sink.OnError(err)
	return errors.Trace(err)
}

func (w *Subscription) run(ctx context.Context) error {
	req := w.config.Request
	sink := w.config.Sink
	start := w.cursor.Serial()

	latest, err := w.config.LogState.LatestSerial(ctx)
	if err != nil {
		return errors.Trace(err)
	}

	primary, err := w.config.Catchup.Run(ctx, req, w.cursor, catchup.PhasePrimary, sink)
	if err != nil {
		return errors.Trace(err)
	}
	secondary, err := w.config.Catchup.Run(ctx, req, w.cursor, catchup.PhaseSecondary, sink)
	if err != nil {
		return errors.Trace(err)
	}

	// Let the consumer move on even when nothing it wants was appended.
	if primary.Delivered+secondary.Delivered == 0 {
		position := max(latest, w.cursor.Serial())
		if position > start {
			w.cursor.Advance(position)
			sink.OnFastForward(position)
		}
	}

	w.config.Logger.Debugf("%s caught up at %d after delivering %d facts", req, w.cursor.Serial(), primary.Delivered+secondary.Delivered)
	sink.OnCatchup()

	if !req.Continuous {
		sink.OnComplete()
		return nil
	}
	return errors.Trace(w.follow(ctx))
}

// follow polls the log for facts appended after the cursor.
func (w *Subscription) follow(ctx context.Context) error {
	timer := w.config.Clock.NewTimer(w.config.FollowPollInterval)
	defer timer.Stop()

	for {
		select {
		case <-w.tomb.Dying():
			return tomb.ErrDying

		case <-timer.Chan():
			latest, err := w.config.LogState.LatestSerial(ctx)
			if err != nil {
				return errors.Trace(err)
			}
			if latest > w.cursor.Serial() {
				if _, err := w.config.Catchup.Run(ctx, w.config.Request, w.cursor, catchup.PhaseFollow, w.config.Sink); err != nil {
					return errors.Trace(err)
				}
			}
			timer.Reset(w.config.FollowPollInterval)
		}
	}
}

func (w *Subscription) closing() bool {
	if w.cursor.Cancelled() {
		return true
	}
	select {
	case <-w.tomb.Dying():
		return true
	default:
		return false
	}
}
