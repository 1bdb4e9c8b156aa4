// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/worker/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/juju/factstore/core/fact"
	"github.com/juju/factstore/internal/catchup"
	"github.com/juju/factstore/internal/cmd"
	"github.com/juju/factstore/internal/config"
	"github.com/juju/factstore/internal/transformation"
	"github.com/juju/factstore/worker/matchpruner"
	"github.com/juju/factstore/worker/subscription"
)

const subscribeDoc = `
Replays the facts matching any of the specs to stdout as JSON lines, followed
by a "catchup" event. Without --follow a "complete" event ends the output;
with --follow new facts are written as they are appended until interrupted.

A spec is namespace[/type][@version], where a version needs a type. When a
version is given, facts of the namespace and type stored with another version
are transformed with the scripts registered through --transform before they
are written. A transform script defines transform(event), receiving and
returning the decoded payload.

A filter script defines matches(fact) and is applied to every spec.

Examples:

    factstore subscribe --spec orders/created
    factstore subscribe --spec orders/created@2 --transform orders/created:1-2=v2.star
    factstore subscribe --spec orders --after 1200 --follow --metrics-address :9100
`

type subscribeCommand struct {
	baseCommand

	specs          specsValue
	aggregateID    string
	meta           metaValue
	filterPath     string
	transforms     transformsValue
	after          int64
	follow         bool
	idOnly         bool
	label          string
	metricsAddress string
}

func newSubscribeCommand() *subscribeCommand {
	return &subscribeCommand{}
}

// Info implements cmd.Command.
func (c *subscribeCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "subscribe",
		Purpose: "Replay and follow the facts matching a subscription.",
		Doc:     subscribeDoc,
	}
}

// SetFlags implements cmd.Command.
func (c *subscribeCommand) SetFlags(f *gnuflag.FlagSet) {
	c.baseCommand.SetFlags(f)
	f.Var(&c.specs, "spec", "Spec of the facts to deliver, may be repeated")
	f.StringVar(&c.aggregateID, "aggregate", "", "Only deliver facts of the aggregate")
	f.Var(&c.meta, "meta", "Only deliver facts with the key=value annotation, may be repeated")
	f.StringVar(&c.filterPath, "filter", "", "Path to a filter script")
	f.Var(&c.transforms, "transform", "Transformation step namespace[/type]:from-to=path, may be repeated")
	f.Int64Var(&c.after, "after", 0, "Only deliver facts with a serial after this one")
	f.BoolVar(&c.follow, "follow", false, "Keep delivering facts as they are appended")
	f.BoolVar(&c.idOnly, "id-only", false, "Deliver facts without payload")
	f.StringVar(&c.label, "label", "", "Label of the subscription in log messages")
	f.StringVar(&c.metricsAddress, "metrics-address", "", "Serve Prometheus metrics on this address")
}

// Init implements cmd.Command.
func (c *subscribeCommand) Init(args []string) error {
	if len(c.specs) == 0 {
		return errors.New("at least one --spec is required")
	}
	if c.after < 0 {
		return errors.NotValidf("--after %d", c.after)
	}
	return cmd.CheckEmpty(args)
}

// Run implements cmd.Command.
func (c *subscribeCommand) Run(ctx *cmd.Context) error {
	cfg, err := c.readConfig(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	req, err := c.request(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	registry, err := c.registry(ctx)
	if err != nil {
		return errors.Trace(err)
	}

	st, err := c.openStore(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer func() { _ = st.Close() }()

	service, err := transformation.NewService(transformation.Config{
		Registry:    registry,
		Concurrency: cfg.TransformationConcurrency,
		CacheSize:   cfg.TransformationCacheSize,
		Logger:      logger,
	})
	if err != nil {
		return errors.Trace(err)
	}

	metrics := catchup.NewMetricsCollector()
	if c.metricsAddress != "" {
		stop, err := serveMetrics(c.metricsAddress, metrics)
		if err != nil {
			return errors.Trace(err)
		}
		defer stop()
	}

	runner, err := catchup.New(catchupConfig(cfg, st, service, metrics))
	if err != nil {
		return errors.Trace(err)
	}

	if c.follow {
		pruner, err := matchpruner.NewWorker(matchpruner.WorkerConfig{
			State:  st.state,
			MaxAge: cfg.MatchSetMaxAge,
			Clock:  clock.WallClock,
			Logger: logger,
		})
		if err != nil {
			return errors.Trace(err)
		}
		defer func() {
			if err := worker.Stop(pruner); err != nil {
				logger.Warningf("stopping match-set pruner: %v", err)
			}
		}()
	}

	sub, err := subscription.New(subscription.Config{
		Request:            req,
		Sink:               newJSONSink(ctx.Stdout),
		LogState:           st.state,
		Catchup:            runner,
		Clock:              clock.WallClock,
		Logger:             logger,
		FollowPollInterval: cfg.FollowPollInterval,
	})
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(runUntilDone(ctx, sub))
}

// request builds the subscription request from the flags.
func (c *subscribeCommand) request(ctx *cmd.Context) (fact.Request, error) {
	var filter *fact.Script
	if c.filterPath != "" {
		source, err := os.ReadFile(ctx.AbsPath(c.filterPath))
		if err != nil {
			return fact.Request{}, errors.Annotate(err, "reading filter script")
		}
		filter = &fact.Script{Source: string(source)}
	}

	specs := make([]fact.Spec, len(c.specs))
	for i, spec := range c.specs {
		spec.AggregateID = c.aggregateID
		spec.Meta = c.meta
		spec.Filter = filter
		specs[i] = spec
	}

	req := fact.Request{
		Specs:         specs,
		Continuous:    c.follow,
		IDOnly:        c.idOnly,
		StartingAfter: c.after,
		Debug:         c.label,
	}
	return req, errors.Trace(req.Validate())
}

// registry returns a transformation registry holding the scripts named by
// the --transform flags.
func (c *subscribeCommand) registry(ctx *cmd.Context) (*transformation.Registry, error) {
	registry := transformation.NewRegistry()
	for _, step := range c.transforms {
		source, err := os.ReadFile(ctx.AbsPath(step.Path))
		if err != nil {
			return nil, errors.Annotatef(err, "reading transform script")
		}
		if err := registry.Register(step.Namespace, step.Type, step.From, step.To, string(source)); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return registry, nil
}

func catchupConfig(cfg config.Config, st *store, service *transformation.Service, metrics *catchup.Collector) catchup.Config {
	return catchup.Config{
		Store:                   st.state,
		Transformer:             service,
		Clock:                   clock.WallClock,
		Logger:                  logger,
		Metrics:                 metrics,
		Strategy:                cfg.CatchupStrategy,
		PageSize:                cfg.PageSize,
		QueueSize:               cfg.QueueSize,
		QueueOfferTimeout:       cfg.QueueOfferTimeout,
		QueuePollTimeout:        cfg.QueuePollTimeout,
		TransformationBatchSize: cfg.TransformationBatchSize,
	}
}

// runUntilDone waits for the subscription to finish, closing it when the
// context is done first.
func runUntilDone(ctx context.Context, sub *subscription.Subscription) error {
	done := make(chan error, 1)
	go func() {
		done <- sub.Wait()
	}()

	select {
	case err := <-done:
		if closeErr := sub.Close(); err == nil {
			err = closeErr
		}
		return errors.Trace(err)

	case <-ctx.Done():
		closeErr := sub.Close()
		if err := <-done; err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(closeErr)
	}
}

// serveMetrics serves the catchup metrics on the address until the returned
// function is called.
func serveMetrics(address string, collector prometheus.Collector) (func(), error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(collector); err != nil {
		return nil, errors.Annotate(err, "registering catchup metrics")
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, errors.Annotatef(err, "listening on %q", address)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("serving metrics: %v", err)
		}
	}()
	logger.Infof("serving metrics on %s", listener.Addr())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}, nil
}
