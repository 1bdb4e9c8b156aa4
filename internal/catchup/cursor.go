// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package catchup

import (
	"context"
	"sync"
	"sync/atomic"
)

// StatementHandle holds the cancellation of the storage statement currently
// executed on behalf of a catchup, if any. It is safe for concurrent use.
type StatementHandle struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

// Set records the cancellation of the running statement. Setting nil clears
// the handle once the statement has finished.
func (h *StatementHandle) Set(cancel context.CancelFunc) {
	h.mu.Lock()
	h.cancel = cancel
	h.mu.Unlock()
}

// Cancel aborts the running statement, if there is one.
func (h *StatementHandle) Cancel() {
	h.mu.Lock()
	cancel := h.cancel
	h.cancel = nil
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Cursor tracks the position of a subscription in the fact log. The serial
// watermark only moves forward.
type Cursor struct {
	serial    atomic.Int64
	cancelled atomic.Bool
	handle    StatementHandle
}

// NewCursor returns a cursor positioned after the serial.
func NewCursor(serial int64) *Cursor {
	c := &Cursor{}
	c.serial.Store(serial)
	return c
}

// Serial returns the serial of the last processed fact.
func (c *Cursor) Serial() int64 {
	return c.serial.Load()
}

// Advance moves the watermark to the serial, unless it is already beyond.
func (c *Cursor) Advance(serial int64) {
	for {
		current := c.serial.Load()
		if serial <= current || c.serial.CompareAndSwap(current, serial) {
			return
		}
	}
}

// Cancel flags the cursor as cancelled and aborts the running statement.
// Calling it more than once has no further effect.
func (c *Cursor) Cancel() {
	if c.cancelled.Swap(true) {
		return
	}
	c.handle.Cancel()
}

// Cancelled returns true once Cancel has been called.
func (c *Cursor) Cancelled() bool {
	return c.cancelled.Load()
}

// Handle returns the statement handle of the cursor.
func (c *Cursor) Handle() *StatementHandle {
	return &c.handle
}
