// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package catchup

import "github.com/juju/errors"

const (
	// ErrConsumerStalled is returned when the consumer of a queued catchup
	// did not take a fact for longer than the offer timeout.
	ErrConsumerStalled = errors.ConstError("consumer stalled")

	// ErrTransformationFailed is returned when a fact held by the stage
	// could not be transformed.
	ErrTransformationFailed = errors.ConstError("transformation failed")

	// ErrCatchupCancelled is returned when the cursor of a catchup was
	// cancelled while a statement was running or about to start.
	ErrCatchupCancelled = errors.ConstError("catchup cancelled")
)
