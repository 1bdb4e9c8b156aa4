// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package transformation migrates fact payloads between schema versions by
// chaining single step Starlark scripts.
package transformation

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/juju/errors"
	"golang.org/x/sync/errgroup"

	"github.com/juju/factstore/core/fact"
	coretransformation "github.com/juju/factstore/core/transformation"
)

// Logger represents the logging methods called.
type Logger interface {
	Debugf(message string, args ...any)
	Tracef(message string, args ...any)
}

// Config holds the dependencies and settings of a Service.
type Config struct {
	Registry    *Registry
	Concurrency int
	CacheSize   int
	Logger      Logger
}

// Validate returns an error if the config cannot be used to create a
// Service.
func (c Config) Validate() error {
	if c.Registry == nil {
		return errors.NotValidf("nil Registry")
	}
	if c.Concurrency <= 0 {
		return errors.NotValidf("concurrency %d", c.Concurrency)
	}
	if c.CacheSize <= 0 {
		return errors.NotValidf("cache size %d", c.CacheSize)
	}
	if c.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	return nil
}

type cacheKey struct {
	id      string
	version int
}

// Service transforms facts using the scripts of a Registry, caching the
// results by fact ID and version.
type Service struct {
	registry    *Registry
	concurrency int
	cache       *lru.Cache
	logger      Logger
}

// NewService returns a Service for the config.
func NewService(config Config) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	cache, err := lru.New(config.CacheSize)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &Service{
		registry:    config.Registry,
		concurrency: config.Concurrency,
		cache:       cache,
		logger:      config.Logger,
	}, nil
}

var _ coretransformation.Transformer = (*Service)(nil)

// Transform transforms every request to the lowest reachable target version.
// Results are returned in the order they complete. The first failure aborts
// the batch.
func (s *Service) Transform(ctx context.Context, requests []coretransformation.Request) ([]fact.Fact, error) {
	var (
		mu      sync.Mutex
		results = make([]fact.Fact, 0, len(requests))
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, req := range requests {
		req := req
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return errors.Trace(err)
			}
			transformed, err := s.transform(req)
			if err != nil {
				return errors.Trace(err)
			}
			mu.Lock()
			results = append(results, transformed)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Trace(err)
	}
	return results, nil
}

func (s *Service) transform(req coretransformation.Request) (fact.Fact, error) {
	f := req.Fact
	steps, err := s.registry.Resolve(f.Namespace, f.Type, f.Version, req.Targets)
	if err != nil {
		return fact.Fact{}, errors.Annotatef(err, "fact %q", f.ID)
	}
	if len(steps) == 0 {
		return f, nil
	}

	target := steps[len(steps)-1].To
	key := cacheKey{id: f.ID, version: target}
	if cached, ok := s.cache.Get(key); ok {
		s.logger.Tracef("fact %q version %d served from cache", f.ID, target)
		return cached.(fact.Fact), nil
	}

	payload := f.Payload
	for _, step := range steps {
		if payload, err = step.Apply(payload); err != nil {
			return fact.Fact{}, errors.Annotatef(err, "fact %q", f.ID)
		}
	}
	transformed := f.Transformed(target, payload)
	s.cache.Add(key, transformed)

	s.logger.Debugf("fact %q transformed from version %d to %d in %d steps", f.ID, f.Version, target, len(steps))
	return transformed, nil
}
