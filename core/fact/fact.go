// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package fact

import (
	"maps"
	"slices"

	"github.com/google/uuid"
	"github.com/juju/errors"
)

// Fact is an immutable entry of the fact log. The serial is assigned by the
// storage layer when the fact is appended and is the only total order across
// facts.
type Fact struct {
	// ID uniquely identifies the fact. Transformed facts keep the ID of the
	// fact they were derived from.
	ID string
	// Namespace is the namespace the fact belongs to.
	Namespace string
	// Type is the optional type of the fact within the namespace.
	Type string
	// Version is the schema version of the payload. Zero means unversioned.
	Version int
	// Serial is the position of the fact in the log.
	Serial int64
	// Payload is the opaque JSON document of the fact.
	Payload []byte
	// AggregateIDs are the identifiers of the aggregates the fact refers to.
	AggregateIDs []string
	// Meta holds arbitrary string annotations.
	Meta map[string]string
}

// New returns a fact with a newly generated ID. The serial is left unset
// until the fact is appended to the log.
func New(namespace, factType string, version int, payload []byte) Fact {
	return Fact{
		ID:        uuid.NewString(),
		Namespace: namespace,
		Type:      factType,
		Version:   version,
		Payload:   payload,
	}
}

// Validate returns an error if the fact can not be appended to the log.
func (f Fact) Validate() error {
	if _, err := uuid.Parse(f.ID); err != nil {
		return errors.NotValidf("fact id %q", f.ID)
	}
	if f.Namespace == "" {
		return errors.NotValidf("empty namespace for fact %q", f.ID)
	}
	if f.Version < 0 {
		return errors.NotValidf("negative version %d for fact %q", f.Version, f.ID)
	}
	return nil
}

// Transformed returns a copy of the fact carrying the same identity and
// position, but with the given version and payload.
func (f Fact) Transformed(version int, payload []byte) Fact {
	t := f.clone()
	t.Version = version
	t.Payload = slices.Clone(payload)
	return t
}

// IDOnly returns a copy of the fact stripped of everything a caller that only
// asked for identifiers does not need.
func (f Fact) IDOnly() Fact {
	return Fact{
		ID:        f.ID,
		Namespace: f.Namespace,
		Type:      f.Type,
		Version:   f.Version,
		Serial:    f.Serial,
	}
}

func (f Fact) clone() Fact {
	f.Payload = slices.Clone(f.Payload)
	f.AggregateIDs = slices.Clone(f.AggregateIDs)
	f.Meta = maps.Clone(f.Meta)
	return f
}
