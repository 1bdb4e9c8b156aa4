// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package subscription

import (
	"context"

	"github.com/juju/factstore/core/fact"
)

// Sink is the delivery target of a subscription.
type Sink interface {
	// Notify delivers a fact. It returns an error if the consumer is gone.
	Notify(ctx context.Context, f fact.Fact) error

	// OnCatchup signals that the replay of historical facts has finished.
	OnCatchup()

	// OnComplete signals that the subscription is done and no follow phase
	// will take place.
	OnComplete()

	// OnFastForward informs the consumer that it may advance its position
	// to the given serial, even if no facts were delivered.
	OnFastForward(serial int64)

	// OnError signals that the subscription failed. Facts delivered before
	// the failure are not retracted.
	OnError(err error)

	// Close releases the resources of the sink. It is safe to call more
	// than once.
	Close() error
}
