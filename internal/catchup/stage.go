// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package catchup

import (
	"context"

	"github.com/juju/errors"

	"github.com/juju/factstore/core/fact"
	"github.com/juju/factstore/core/subscription"
	"github.com/juju/factstore/core/transformation"
)

type stageMode int

const (
	modeDirect stageMode = iota
	modeBuffering
)

type result struct {
	fact fact.Fact
	err  error
}

// pending is resolved exactly once, so the channel never blocks the sender.
type pending chan result

func resolved(f fact.Fact) pending {
	p := make(pending, 1)
	p <- result{fact: f}
	return p
}

// Stage filters facts, transforms them when the subscriber asked for another
// version and forwards them to the sink in the order they were accepted.
//
// Facts are forwarded directly until the first one needs transforming. From
// then on every fact is buffered and the buffer is transformed in one batch
// when it is flushed. A Stage is owned by a single catchup execution and is
// not safe for concurrent use.
type Stage struct {
	matcher     *Matcher
	preparer    *Preparer
	transformer transformation.Transformer
	sink        subscription.Sink
	batchSize   int
	idOnly      bool
	logger      Logger

	mode     stageMode
	buffer   []pending
	requests []transformation.Request
	index    map[string]pending

	delivered   int
	transformed int
}

// StageConfig holds the collaborators of a Stage.
type StageConfig struct {
	Matcher     *Matcher
	Preparer    *Preparer
	Transformer transformation.Transformer
	Sink        subscription.Sink
	BatchSize   int
	IDOnly      bool
	Logger      Logger
}

// NewStage returns a Stage in direct mode.
func NewStage(config StageConfig) *Stage {
	return &Stage{
		matcher:     config.Matcher,
		preparer:    config.Preparer,
		transformer: config.Transformer,
		sink:        config.Sink,
		batchSize:   config.BatchSize,
		idOnly:      config.IDOnly,
		logger:      config.Logger,
		index:       make(map[string]pending),
	}
}

// Accept processes the next fact. Facts not matching the request are
// dropped.
func (s *Stage) Accept(ctx context.Context, f fact.Fact) error {
	if !s.matcher.CanBeSkipped() {
		ok, err := s.matcher.Test(f)
		if err != nil {
			return errors.Trace(err)
		}
		if !ok {
			s.logger.Tracef("fact %q (%d) filtered out", f.ID, f.Serial)
			return nil
		}
	}
	if s.idOnly {
		f = f.IDOnly()
	}

	req := s.preparer.Prepare(f)
	if s.mode == modeDirect {
		if req == nil {
			return s.forward(ctx, f)
		}
		s.logger.Debugf("fact %q needs transforming, buffering", f.ID)
		s.mode = modeBuffering
	}

	if req == nil {
		s.buffer = append(s.buffer, resolved(f))
	} else {
		p := make(pending, 1)
		s.buffer = append(s.buffer, p)
		s.requests = append(s.requests, *req)
		s.index[f.ID] = p
	}
	if len(s.buffer) >= s.batchSize {
		return errors.Trace(s.Flush(ctx))
	}
	return nil
}

// Flush transforms the buffered facts in one batch and forwards every
// buffered fact in the order it was accepted.
func (s *Stage) Flush(ctx context.Context) error {
	if len(s.buffer) == 0 {
		return nil
	}
	buffer, requests, index := s.buffer, s.requests, s.index
	s.buffer, s.requests, s.index = nil, nil, make(map[string]pending)

	if len(requests) > 0 {
		s.transformed += len(requests)
		go s.transform(ctx, requests, index)
	}

	for _, p := range buffer {
		var res result
		select {
		case res = <-p:
		case <-ctx.Done():
			return errors.Trace(ctx.Err())
		}
		if res.err != nil {
			return errors.Trace(res.err)
		}
		if err := s.forward(ctx, res.fact); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func (s *Stage) transform(ctx context.Context, requests []transformation.Request, index map[string]pending) {
	results, err := s.transformer.Transform(ctx, requests)
	if err != nil {
		for id, p := range index {
			p <- result{err: errors.WithType(errors.Annotatef(err, "transforming fact %q", id), ErrTransformationFailed)}
		}
		return
	}
	for _, f := range results {
		p, ok := index[f.ID]
		if !ok {
			continue
		}
		delete(index, f.ID)
		p <- result{fact: f}
	}
	for id, p := range index {
		p <- result{err: errors.WithType(errors.Errorf("no transformation result for fact %q", id), ErrTransformationFailed)}
	}
}

// forward hands the fact to the sink. A sink that cannot take the fact is
// assumed to be gone and is closed.
func (s *Stage) forward(ctx context.Context, f fact.Fact) error {
	if err := s.sink.Notify(ctx, f); err != nil {
		s.logger.Debugf("delivering fact %q (%d): %v", f.ID, f.Serial, err)
		if closeErr := s.sink.Close(); closeErr != nil {
			s.logger.Debugf("closing sink after failed delivery: %v", closeErr)
		}
		return errors.Annotatef(err, "delivering fact %q", f.ID)
	}
	s.delivered++
	return nil
}

// Delivered returns the number of facts forwarded to the sink.
func (s *Stage) Delivered() int {
	return s.delivered
}

// Transformed returns the number of facts submitted for transformation.
func (s *Stage) Transformed() int {
	return s.transformed
}
