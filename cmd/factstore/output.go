// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/juju/errors"

	"github.com/juju/factstore/core/fact"
)

// factDoc is the JSON line representation of a fact, read by append and
// written by subscribe.
type factDoc struct {
	ID           string            `json:"id,omitempty"`
	Namespace    string            `json:"namespace"`
	Type         string            `json:"type,omitempty"`
	Version      int               `json:"version,omitempty"`
	Serial       int64             `json:"serial,omitempty"`
	AggregateIDs []string          `json:"aggregate_ids,omitempty"`
	Meta         map[string]string `json:"meta,omitempty"`
	Payload      json.RawMessage   `json:"payload,omitempty"`
}

func newFactDoc(f fact.Fact) factDoc {
	return factDoc{
		ID:           f.ID,
		Namespace:    f.Namespace,
		Type:         f.Type,
		Version:      f.Version,
		Serial:       f.Serial,
		AggregateIDs: f.AggregateIDs,
		Meta:         f.Meta,
		Payload:      json.RawMessage(f.Payload),
	}
}

// fact returns the fact described by the document, generating an ID when
// none is given.
func (d factDoc) fact() fact.Fact {
	f := fact.New(d.Namespace, d.Type, d.Version, []byte(d.Payload))
	if d.ID != "" {
		f.ID = d.ID
	}
	f.AggregateIDs = d.AggregateIDs
	f.Meta = d.Meta
	return f
}

// eventDoc is the JSON line written for the signals of a subscription.
type eventDoc struct {
	Event  string `json:"event"`
	Serial int64  `json:"serial,omitempty"`
	Error  string `json:"error,omitempty"`
}

// errSinkClosed is returned when delivering to a closed sink.
const errSinkClosed = errors.ConstError("sink closed")

// jsonSink writes the facts and signals of a subscription as JSON lines.
type jsonSink struct {
	mu      sync.Mutex
	encoder *json.Encoder
	closed  bool
}

func newJSONSink(w io.Writer) *jsonSink {
	return &jsonSink{encoder: json.NewEncoder(w)}
}

// Notify writes the fact.
func (s *jsonSink) Notify(_ context.Context, f fact.Fact) error {
	return s.write(newFactDoc(f))
}

// OnCatchup writes the catchup event.
func (s *jsonSink) OnCatchup() {
	s.signal(eventDoc{Event: "catchup"})
}

// OnComplete writes the complete event.
func (s *jsonSink) OnComplete() {
	s.signal(eventDoc{Event: "complete"})
}

// OnFastForward writes the fast-forward event with the serial.
func (s *jsonSink) OnFastForward(serial int64) {
	s.signal(eventDoc{Event: "fast-forward", Serial: serial})
}

// OnError writes the error event.
func (s *jsonSink) OnError(err error) {
	s.signal(eventDoc{Event: "error", Error: err.Error()})
}

// Close stops any further writes.
func (s *jsonSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *jsonSink) signal(doc eventDoc) {
	if err := s.write(doc); err != nil {
		logger.Debugf("dropping %s event: %v", doc.Event, err)
	}
}

func (s *jsonSink) write(doc any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSinkClosed
	}
	return errors.Trace(s.encoder.Encode(doc))
}
