// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package config reads the settings of the catchup pipeline from YAML.
package config

import (
	"os"
	"time"

	"github.com/juju/errors"
	"github.com/juju/schema"
	"gopkg.in/yaml.v3"

	"github.com/juju/factstore/internal/catchup"
)

const (
	// CatchupStrategy is the strategy used for primary catchups.
	CatchupStrategy = "catchup-strategy"

	// PageSize is the number of facts fetched per page.
	PageSize = "page-size"

	// QueueSize is the capacity of the queue used by the queued strategy.
	QueueSize = "queue-size"

	// QueueOfferTimeout is how long the producer of the queued strategy
	// waits for the consumer before giving up on it.
	QueueOfferTimeout = "queue-offer-timeout"

	// QueuePollTimeout is how long the consumer of the queued strategy waits
	// for a fact before checking for cancellation.
	QueuePollTimeout = "queue-poll-timeout"

	// TransformationBatchSize is the number of buffered facts triggering a
	// flush.
	TransformationBatchSize = "transformation-batch-size"

	// TransformationConcurrency is the number of facts transformed at once.
	TransformationConcurrency = "transformation-concurrency"

	// TransformationCacheSize is the number of transformed facts cached.
	TransformationCacheSize = "transformation-cache-size"

	// FollowPollInterval is how often a continuous subscription looks for
	// new facts.
	FollowPollInterval = "follow-poll-interval"

	// MatchSetMaxAge is the age after which a match-set is considered
	// orphaned.
	MatchSetMaxAge = "match-set-max-age"
)

const (
	DefaultCatchupStrategy           = catchup.StrategyChunked
	DefaultPageSize                  = 1000
	DefaultQueueSize                 = 1000
	DefaultQueueOfferTimeout         = 15 * time.Minute
	DefaultQueuePollTimeout          = 50 * time.Millisecond
	DefaultTransformationBatchSize   = 100
	DefaultTransformationConcurrency = 8
	DefaultTransformationCacheSize   = 10000
	DefaultFollowPollInterval        = time.Second
	DefaultMatchSetMaxAge            = time.Hour
)

var configChecker = schema.FieldMap(schema.Fields{
	CatchupStrategy:           schema.String(),
	PageSize:                  schema.ForceInt(),
	QueueSize:                 schema.ForceInt(),
	QueueOfferTimeout:         schema.TimeDuration(),
	QueuePollTimeout:          schema.TimeDuration(),
	TransformationBatchSize:   schema.ForceInt(),
	TransformationConcurrency: schema.ForceInt(),
	TransformationCacheSize:   schema.ForceInt(),
	FollowPollInterval:        schema.TimeDuration(),
	MatchSetMaxAge:            schema.TimeDuration(),
}, schema.Defaults{
	CatchupStrategy:           string(DefaultCatchupStrategy),
	PageSize:                  DefaultPageSize,
	QueueSize:                 DefaultQueueSize,
	QueueOfferTimeout:         DefaultQueueOfferTimeout.String(),
	QueuePollTimeout:          DefaultQueuePollTimeout.String(),
	TransformationBatchSize:   DefaultTransformationBatchSize,
	TransformationConcurrency: DefaultTransformationConcurrency,
	TransformationCacheSize:   DefaultTransformationCacheSize,
	FollowPollInterval:        DefaultFollowPollInterval.String(),
	MatchSetMaxAge:            DefaultMatchSetMaxAge.String(),
})

// Config holds the settings of the catchup pipeline.
type Config struct {
	CatchupStrategy           catchup.Strategy
	PageSize                  int
	QueueSize                 int
	QueueOfferTimeout         time.Duration
	QueuePollTimeout          time.Duration
	TransformationBatchSize   int
	TransformationConcurrency int
	TransformationCacheSize   int
	FollowPollInterval        time.Duration
	MatchSetMaxAge            time.Duration
}

// Default returns the config used when no setting is given.
func Default() Config {
	return Config{
		CatchupStrategy:           DefaultCatchupStrategy,
		PageSize:                  DefaultPageSize,
		QueueSize:                 DefaultQueueSize,
		QueueOfferTimeout:         DefaultQueueOfferTimeout,
		QueuePollTimeout:          DefaultQueuePollTimeout,
		TransformationBatchSize:   DefaultTransformationBatchSize,
		TransformationConcurrency: DefaultTransformationConcurrency,
		TransformationCacheSize:   DefaultTransformationCacheSize,
		FollowPollInterval:        DefaultFollowPollInterval,
		MatchSetMaxAge:            DefaultMatchSetMaxAge,
	}
}

// Read parses the YAML file at the path.
func Read(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Annotatef(err, "reading config %q", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, errors.Annotatef(err, "config %q", path)
	}
	return cfg, nil
}

// Parse parses the YAML document. Missing settings take their default.
func Parse(data []byte) (Config, error) {
	attrs := make(map[string]any)
	if err := yaml.Unmarshal(data, &attrs); err != nil {
		return Config{}, errors.Annotate(err, "parsing config")
	}
	if attrs == nil {
		attrs = make(map[string]any)
	}

	coerced, err := configChecker.Coerce(attrs, nil)
	if err != nil {
		return Config{}, errors.Trace(err)
	}
	m := coerced.(map[string]any)

	cfg := Config{
		CatchupStrategy:           catchup.Strategy(m[CatchupStrategy].(string)),
		PageSize:                  m[PageSize].(int),
		QueueSize:                 m[QueueSize].(int),
		QueueOfferTimeout:         m[QueueOfferTimeout].(time.Duration),
		QueuePollTimeout:          m[QueuePollTimeout].(time.Duration),
		TransformationBatchSize:   m[TransformationBatchSize].(int),
		TransformationConcurrency: m[TransformationConcurrency].(int),
		TransformationCacheSize:   m[TransformationCacheSize].(int),
		FollowPollInterval:        m[FollowPollInterval].(time.Duration),
		MatchSetMaxAge:            m[MatchSetMaxAge].(time.Duration),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Trace(err)
	}
	return cfg, nil
}

// Validate returns an error if a setting is out of range.
func (c Config) Validate() error {
	if err := c.CatchupStrategy.Validate(); err != nil {
		return errors.Trace(err)
	}
	for key, value := range map[string]int{
		PageSize:                  c.PageSize,
		QueueSize:                 c.QueueSize,
		TransformationBatchSize:   c.TransformationBatchSize,
		TransformationConcurrency: c.TransformationConcurrency,
		TransformationCacheSize:   c.TransformationCacheSize,
	} {
		if value <= 0 {
			return errors.NotValidf("%s %d", key, value)
		}
	}
	for key, value := range map[string]time.Duration{
		QueueOfferTimeout:  c.QueueOfferTimeout,
		QueuePollTimeout:   c.QueuePollTimeout,
		FollowPollInterval: c.FollowPollInterval,
		MatchSetMaxAge:     c.MatchSetMaxAge,
	} {
		if value <= 0 {
			return errors.NotValidf("%s %v", key, value)
		}
	}
	return nil
}
