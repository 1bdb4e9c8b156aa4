// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package catchup

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"gopkg.in/tomb.v2"

	"github.com/juju/factstore/core/fact"
	"github.com/juju/factstore/core/subscription"
)

// cursorPager streams the whole match-set in one statement.
type cursorPager struct {
	*execution
}

func (p cursorPager) run(ctx context.Context) error {
	return p.statement(ctx, func(ctx context.Context) error {
		return p.store.StreamMatches(ctx, p.id, p.cursor.Serial(), p.idOnly, func(f fact.Fact) error {
			// A restarted stream replays facts already handed over.
			if f.Serial <= p.cursor.Serial() {
				return nil
			}
			return p.accept(ctx, f)
		})
	})
}

// chunkedPager fetches the match-set one page at a time.
type chunkedPager struct {
	*execution
}

func (p chunkedPager) run(ctx context.Context) error {
	for {
		var page []fact.Fact
		err := p.statement(ctx, func(ctx context.Context) error {
			var err error
			page, err = p.store.FetchMatches(ctx, p.id, p.cursor.Serial(), p.pageSize, p.idOnly)
			return err
		})
		if err != nil {
			return errors.Trace(err)
		}
		if len(page) == 0 {
			return nil
		}
		p.logger.Tracef("execution %q: page of %d facts after %d", p.id, len(page), p.cursor.Serial())
		for _, f := range page {
			if err := p.accept(ctx, f); err != nil {
				return errors.Trace(err)
			}
		}
	}
}

// queuedPager fetches pages in a producer goroutine and delivers facts from
// a bounded queue. A producer unable to hand over a fact within the offer
// timeout considers the consumer stalled and closes the sink.
type queuedPager struct {
	*execution

	clock        clock.Clock
	sink         subscription.Sink
	queueSize    int
	offerTimeout time.Duration
	pollTimeout  time.Duration
}

func (p queuedPager) run(ctx context.Context) error {
	var t tomb.Tomb
	queue := make(chan fact.Fact, p.queueSize)
	t.Go(func() error {
		defer close(queue)
		return p.produce(t.Context(ctx), &t, queue)
	})

	for {
		select {
		case f, ok := <-queue:
			if !ok {
				return errors.Trace(t.Wait())
			}
			// Queued facts are dropped once the catchup is interrupted.
			if err := p.interrupted(ctx); err != nil {
				return p.stop(&t, err)
			}
			if err := p.accept(ctx, f); err != nil {
				t.Kill(nil)
				if producerErr := t.Wait(); errors.Is(producerErr, ErrConsumerStalled) {
					return errors.Trace(producerErr)
				}
				return errors.Trace(err)
			}
		case <-ctx.Done():
			return p.stop(&t, ctx.Err())
		case <-p.clock.After(p.pollTimeout):
			if p.cursor.Cancelled() {
				return p.stop(&t, ErrCatchupCancelled)
			}
		}
	}
}

func (p queuedPager) interrupted(ctx context.Context) error {
	if p.cursor.Cancelled() {
		return ErrCatchupCancelled
	}
	return ctx.Err()
}

// stop kills the producer and waits for it to return.
func (p queuedPager) stop(t *tomb.Tomb, reason error) error {
	t.Kill(reason)
	if err := t.Wait(); err != nil && !errors.Is(err, reason) {
		p.logger.Debugf("execution %q: producer stopped: %v", p.id, err)
	}
	return errors.Trace(reason)
}

func (p queuedPager) produce(ctx context.Context, t *tomb.Tomb, queue chan<- fact.Fact) error {
	after := p.cursor.Serial()
	for {
		var page []fact.Fact
		err := p.statement(ctx, func(ctx context.Context) error {
			var err error
			page, err = p.store.FetchMatches(ctx, p.id, after, p.pageSize, p.idOnly)
			return err
		})
		if err != nil {
			return errors.Trace(err)
		}
		if len(page) == 0 {
			return nil
		}
		for _, f := range page {
			select {
			case queue <- f:
			case <-t.Dying():
				return tomb.ErrDying
			case <-p.clock.After(p.offerTimeout):
				p.logger.Warningf("execution %q: consumer took no fact for %v, closing", p.id, p.offerTimeout)
				t.Kill(ErrConsumerStalled)
				if err := p.sink.Close(); err != nil {
					p.logger.Debugf("closing stalled sink: %v", err)
				}
				return ErrConsumerStalled
			}
			after = f.Serial
		}
	}
}
