// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package catchup replays the facts of the log matching a subscription
// request to a sink.
//
// A catchup execution first records the serials of every matching fact in a
// match-set owned by the execution, then pages through the match-set with
// one of the strategies, filters and transforms the facts and forwards them
// to the sink in serial order. The match-set is removed on every exit path.
package catchup

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/juju/factstore/core/fact"
	"github.com/juju/factstore/core/subscription"
	"github.com/juju/factstore/core/transformation"
)

const tracerName = "github.com/juju/factstore/internal/catchup"

// Config holds the dependencies and settings of a Catchup.
type Config struct {
	Store       Store
	Transformer transformation.Transformer
	Clock       clock.Clock
	Logger      Logger
	// Metrics is optional.
	Metrics *Collector
	// Tracer is optional. Every execution is recorded as a span when set.
	Tracer trace.Tracer

	Strategy                Strategy
	PageSize                int
	QueueSize               int
	QueueOfferTimeout       time.Duration
	QueuePollTimeout        time.Duration
	TransformationBatchSize int
}

// Validate returns an error if the config cannot be used to create a
// Catchup.
func (c Config) Validate() error {
	if c.Store == nil {
		return errors.NotValidf("nil Store")
	}
	if c.Transformer == nil {
		return errors.NotValidf("nil Transformer")
	}
	if c.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if c.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	if err := c.Strategy.Validate(); err != nil {
		return errors.Trace(err)
	}
	if c.PageSize <= 0 {
		return errors.NotValidf("page size %d", c.PageSize)
	}
	if c.QueueSize <= 0 {
		return errors.NotValidf("queue size %d", c.QueueSize)
	}
	if c.QueueOfferTimeout <= 0 {
		return errors.NotValidf("queue offer timeout %v", c.QueueOfferTimeout)
	}
	if c.QueuePollTimeout <= 0 {
		return errors.NotValidf("queue poll timeout %v", c.QueuePollTimeout)
	}
	if c.TransformationBatchSize <= 0 {
		return errors.NotValidf("transformation batch size %d", c.TransformationBatchSize)
	}
	return nil
}

// Result describes a finished catchup execution.
type Result struct {
	// Matched is the size of the match-set.
	Matched int64
	// Delivered is the number of facts forwarded to the sink.
	Delivered int
	// Strategy is the strategy used to page the match-set.
	Strategy Strategy
}

// Catchup runs catchup executions.
type Catchup struct {
	config Config
	tracer trace.Tracer
}

// New returns a Catchup for the config.
func New(config Config) (*Catchup, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	tracer := config.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(tracerName)
	}
	return &Catchup{
		config: config,
		tracer: tracer,
	}, nil
}

// Run delivers the facts matching the request with a serial after the
// cursor to the sink, advancing the cursor as facts are processed.
func (c *Catchup) Run(ctx context.Context, req fact.Request, cursor *Cursor, phase Phase, sink subscription.Sink) (_ Result, err error) {
	if err := req.Validate(); err != nil {
		return Result{}, errors.Trace(err)
	}
	matcher, err := NewMatcher(req.Specs)
	if err != nil {
		return Result{}, errors.Trace(err)
	}

	strategy := SelectStrategy(c.config.Strategy, phase, req.IDOnly, matcher.CanBeSkipped())
	stage := NewStage(StageConfig{
		Matcher:     matcher,
		Preparer:    NewPreparer(fact.NewRequestedVersions(req.Specs), req.IDOnly),
		Transformer: c.config.Transformer,
		Sink:        sink,
		BatchSize:   c.config.TransformationBatchSize,
		IDOnly:      req.IDOnly,
		Logger:      c.config.Logger,
	})
	exec := &execution{
		id:     uuid.NewString(),
		cursor: cursor,
		store:  c.config.Store,
		stage:  stage,
		// Facts without payload can only be filtered by storage.
		idOnly:   req.IDOnly && matcher.CanBeSkipped(),
		pageSize: c.config.PageSize,
		logger:   c.config.Logger,
	}

	logger := c.config.Logger
	logger.Debugf("%s: %s catchup %q after %d using %s strategy", req, phase, exec.id, cursor.Serial(), strategy)

	ctx, span := c.tracer.Start(ctx, "catchup", trace.WithAttributes(
		attribute.String("execution", exec.id),
		attribute.String("strategy", string(strategy)),
		attribute.String("phase", phase.String()),
		attribute.Int64("after", cursor.Serial()),
	))

	start := c.config.Clock.Now()
	var res Result
	defer func() {
		if cleanupErr := c.cleanup(ctx, exec); cleanupErr != nil && err == nil {
			err = errors.Trace(cleanupErr)
		}
		c.config.Metrics.observe(strategy, phase, res, stage.Transformed(), c.config.Clock.Now().Sub(start).Seconds())

		span.SetAttributes(
			attribute.Int64("matched", res.Matched),
			attribute.Int("delivered", res.Delivered),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	res = Result{Strategy: strategy}
	err = exec.statement(ctx, func(ctx context.Context) error {
		var err error
		res.Matched, err = c.config.Store.PrepareMatches(ctx, exec.id, req.Specs, cursor.Serial())
		return err
	})
	if err != nil {
		return res, errors.Annotatef(err, "preparing catchup %q", exec.id)
	}
	if res.Matched == 0 {
		logger.Debugf("%s: no facts after %d", req, cursor.Serial())
		return res, nil
	}

	err = c.pager(strategy, exec, sink).run(ctx)
	if err == nil {
		err = stage.Flush(ctx)
	}
	res.Delivered = stage.Delivered()
	if err != nil {
		return res, errors.Trace(err)
	}

	logger.Debugf("%s: %s catchup %q delivered %d of %d matches", req, phase, exec.id, res.Delivered, res.Matched)
	return res, nil
}

func (c *Catchup) pager(strategy Strategy, exec *execution, sink subscription.Sink) pager {
	switch strategy {
	case StrategyCursor:
		return cursorPager{execution: exec}
	case StrategyQueued:
		return queuedPager{
			execution:    exec,
			clock:        c.config.Clock,
			sink:         sink,
			queueSize:    c.config.QueueSize,
			offerTimeout: c.config.QueueOfferTimeout,
			pollTimeout:  c.config.QueuePollTimeout,
		}
	}
	return chunkedPager{execution: exec}
}

// cleanup removes the match-set of the execution. It runs even when the
// context of the catchup has been cancelled.
func (c *Catchup) cleanup(ctx context.Context, exec *execution) error {
	exec.cursor.Handle().Set(nil)
	if err := c.config.Store.DeleteMatches(context.WithoutCancel(ctx), exec.id); err != nil {
		c.config.Logger.Warningf("removing match-set of catchup %q: %v", exec.id, err)
		return errors.Annotatef(err, "removing match-set of catchup %q", exec.id)
	}
	return nil
}
