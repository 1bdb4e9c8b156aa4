// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package database

import (
	"context"
	"database/sql"
	"sync/atomic"
	"time"

	"github.com/canonical/sqlair"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/retry"
)

const (
	defaultRetryAttempts = 250
	defaultRetryDelay    = time.Millisecond
	defaultMaxRetryDelay = time.Millisecond * 100
)

var logger = loggo.GetLogger("factstore.database")

// Logger is the logging interface used by the transaction runner.
type Logger interface {
	Tracef(string, ...interface{})
	IsTraceEnabled() bool
}

// Option configures a TxnRunner.
type Option func(*option)

type option struct {
	clock    clock.Clock
	logger   Logger
	attempts int
}

// WithClock sets the clock used to delay retries.
func WithClock(clock clock.Clock) Option {
	return func(o *option) {
		o.clock = clock
	}
}

// WithLogger sets the logger used to trace transactions.
func WithLogger(logger Logger) Option {
	return func(o *option) {
		o.logger = logger
	}
}

// WithRetryAttempts sets the number of attempts made for transactions
// failing with transient errors.
func WithRetryAttempts(attempts int) Option {
	return func(o *option) {
		o.attempts = attempts
	}
}

// TxnRunner runs transactions against a database, retrying those that fail
// with transient errors such as a busy or locked database.
type TxnRunner struct {
	db *sqlair.DB

	clock    clock.Clock
	logger   Logger
	attempts int

	id atomic.Uint64
}

// NewTxnRunner returns a TxnRunner for the given database.
func NewTxnRunner(db *sql.DB, opts ...Option) *TxnRunner {
	o := &option{
		clock:    clock.WallClock,
		logger:   logger,
		attempts: defaultRetryAttempts,
	}
	for _, opt := range opts {
		opt(o)
	}
	return &TxnRunner{
		db:       sqlair.NewDB(db),
		clock:    o.clock,
		logger:   o.logger,
		attempts: o.attempts,
	}
}

// Txn executes the input function within a sqlair transaction. The
// transaction is retried if it fails with a transient error.
func (t *TxnRunner) Txn(ctx context.Context, fn func(context.Context, *sqlair.TX) error) error {
	return t.Retry(ctx, func() error {
		return errors.Trace(t.txn(ctx, fn))
	})
}

// StdTxn executes the input function within a database/sql transaction. The
// transaction is retried if it fails with a transient error.
func (t *TxnRunner) StdTxn(ctx context.Context, fn func(context.Context, *sql.Tx) error) error {
	return t.Retry(ctx, func() error {
		return errors.Trace(t.stdTxn(ctx, fn))
	})
}

// Retry calls fn until it succeeds, fails with an error that is not
// transient, runs out of attempts or the context is done.
func (t *TxnRunner) Retry(ctx context.Context, fn func() error) error {
	err := retry.Call(retry.CallArgs{
		Func: fn,
		IsFatalError: func(err error) bool {
			return !IsErrRetryable(err)
		},
		Attempts:    t.attempts,
		Delay:       defaultRetryDelay,
		MaxDelay:    defaultMaxRetryDelay,
		BackoffFunc: retry.ExpBackoff(defaultRetryDelay, defaultMaxRetryDelay, 1.5, true),
		Clock:       t.clock,
		Stop:        ctx.Done(),
	})
	if retry.IsAttemptsExceeded(err) || retry.IsRetryStopped(err) {
		if last := retry.LastError(err); last != nil {
			return last
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return err
}

func (t *TxnRunner) txn(ctx context.Context, fn func(context.Context, *sqlair.TX) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id := t.id.Add(1)
	if t.logger.IsTraceEnabled() {
		t.logger.Tracef("running sqlair txn (id: %d)", id)
	}

	tx, err := t.db.Begin(ctx, nil)
	if err != nil {
		return errors.Trace(err)
	}
	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			t.logger.Tracef("rollback of txn (id: %d) failed: %v", id, rbErr)
		}
		return err
	}
	return errors.Trace(tx.Commit())
}

func (t *TxnRunner) stdTxn(ctx context.Context, fn func(context.Context, *sql.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id := t.id.Add(1)
	if t.logger.IsTraceEnabled() {
		t.logger.Tracef("running std txn (id: %d)", id)
	}

	tx, err := t.db.PlainDB().BeginTx(ctx, nil)
	if err != nil {
		return errors.Trace(err)
	}
	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			t.logger.Tracef("rollback of txn (id: %d) failed: %v", id, rbErr)
		}
		return err
	}
	return errors.Trace(tx.Commit())
}
