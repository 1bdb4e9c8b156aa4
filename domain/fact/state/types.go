// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"encoding/json"

	"github.com/juju/errors"

	"github.com/juju/factstore/core/fact"
)

// factRow represents a row from the fact table.
type factRow struct {
	Serial       int64  `db:"serial"`
	UUID         string `db:"uuid"`
	Namespace    string `db:"namespace"`
	Type         string `db:"type"`
	Version      int    `db:"version"`
	AggregateIDs string `db:"aggregate_ids"`
	Meta         string `db:"meta"`
	Payload      string `db:"payload"`
}

// factIDRow represents the identifying columns of a row from the fact table.
type factIDRow struct {
	Serial    int64  `db:"serial"`
	UUID      string `db:"uuid"`
	Namespace string `db:"namespace"`
	Type      string `db:"type"`
	Version   int    `db:"version"`
}

func encodeFact(f fact.Fact) (factRow, error) {
	aggregates := f.AggregateIDs
	if aggregates == nil {
		aggregates = []string{}
	}
	aggregateData, err := json.Marshal(aggregates)
	if err != nil {
		return factRow{}, errors.Annotatef(err, "encoding aggregate ids of fact %q", f.ID)
	}

	meta := f.Meta
	if meta == nil {
		meta = map[string]string{}
	}
	metaData, err := json.Marshal(meta)
	if err != nil {
		return factRow{}, errors.Annotatef(err, "encoding meta of fact %q", f.ID)
	}

	payload := string(f.Payload)
	if payload == "" {
		payload = "{}"
	} else if !json.Valid(f.Payload) {
		return factRow{}, errors.NotValidf("payload of fact %q", f.ID)
	}

	return factRow{
		UUID:         f.ID,
		Namespace:    f.Namespace,
		Type:         f.Type,
		Version:      f.Version,
		AggregateIDs: string(aggregateData),
		Meta:         string(metaData),
		Payload:      payload,
	}, nil
}

func (r factRow) decode() (fact.Fact, error) {
	f := fact.Fact{
		ID:        r.UUID,
		Namespace: r.Namespace,
		Type:      r.Type,
		Version:   r.Version,
		Serial:    r.Serial,
		Payload:   []byte(r.Payload),
	}

	var aggregates []string
	if err := json.Unmarshal([]byte(r.AggregateIDs), &aggregates); err != nil {
		return fact.Fact{}, errors.Annotatef(err, "decoding aggregate ids of fact %q", r.UUID)
	}
	if len(aggregates) > 0 {
		f.AggregateIDs = aggregates
	}

	var meta map[string]string
	if err := json.Unmarshal([]byte(r.Meta), &meta); err != nil {
		return fact.Fact{}, errors.Annotatef(err, "decoding meta of fact %q", r.UUID)
	}
	if len(meta) > 0 {
		f.Meta = meta
	}
	return f, nil
}

func (r factIDRow) decode() fact.Fact {
	return fact.Fact{
		ID:        r.UUID,
		Namespace: r.Namespace,
		Type:      r.Type,
		Version:   r.Version,
		Serial:    r.Serial,
	}
}
