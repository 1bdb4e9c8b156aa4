// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/juju/errors"

	"github.com/juju/factstore/core/fact"
)

// specsValue implements gnuflag.Value for the repeatable --spec flag, taking
// values of the form namespace[/type][@version].
type specsValue []fact.Spec

// Set parses and appends a spec.
func (v *specsValue) Set(value string) error {
	var spec fact.Spec

	rest, version, found := strings.Cut(value, "@")
	if found {
		n, err := strconv.Atoi(version)
		if err != nil || n < 0 {
			return errors.NotValidf("version %q in spec %q", version, value)
		}
		spec.Version = n
	}
	spec.Namespace, spec.Type, _ = strings.Cut(rest, "/")
	if err := spec.Validate(); err != nil {
		return errors.Annotatef(err, "spec %q", value)
	}

	*v = append(*v, spec)
	return nil
}

// String implements gnuflag.Value.
func (v *specsValue) String() string {
	parts := make([]string, len(*v))
	for i, spec := range *v {
		s := spec.Namespace
		if spec.Type != "" {
			s += "/" + spec.Type
		}
		if spec.Version != fact.AnyVersion {
			s += fmt.Sprintf("@%d", spec.Version)
		}
		parts[i] = s
	}
	return strings.Join(parts, ",")
}

// metaValue implements gnuflag.Value for the repeatable --meta flag, taking
// values of the form key=value.
type metaValue map[string]string

// Set parses and records an annotation.
func (v *metaValue) Set(value string) error {
	key, val, found := strings.Cut(value, "=")
	if !found || key == "" {
		return errors.NotValidf("meta %q, expected key=value", value)
	}
	if *v == nil {
		*v = make(map[string]string)
	}
	(*v)[key] = val
	return nil
}

// String implements gnuflag.Value.
func (v *metaValue) String() string {
	parts := make([]string, 0, len(*v))
	for key, val := range *v {
		parts = append(parts, key+"="+val)
	}
	return strings.Join(parts, ",")
}

// transformStep names a transformation script registered for one step
// between two versions of a fact type.
type transformStep struct {
	Namespace string
	Type      string
	From      int
	To        int
	Path      string
}

// transformsValue implements gnuflag.Value for the repeatable --transform
// flag, taking values of the form namespace[/type]:from-to=path.
type transformsValue []transformStep

// Set parses and appends a transformation step.
func (v *transformsValue) Set(value string) error {
	key, path, found := strings.Cut(value, "=")
	if !found || path == "" {
		return errors.NotValidf("transform %q, expected namespace[/type]:from-to=path", value)
	}
	kind, versions, found := strings.Cut(key, ":")
	if !found {
		return errors.NotValidf("transform %q without versions", value)
	}
	from, to, found := strings.Cut(versions, "-")
	if !found {
		return errors.NotValidf("transform %q versions %q", value, versions)
	}

	step := transformStep{Path: path}
	step.Namespace, step.Type, _ = strings.Cut(kind, "/")
	if step.Namespace == "" {
		return errors.NotValidf("transform %q without namespace", value)
	}
	var err error
	if step.From, err = strconv.Atoi(from); err != nil {
		return errors.NotValidf("transform %q source version %q", value, from)
	}
	if step.To, err = strconv.Atoi(to); err != nil {
		return errors.NotValidf("transform %q target version %q", value, to)
	}

	*v = append(*v, step)
	return nil
}

// String implements gnuflag.Value.
func (v *transformsValue) String() string {
	parts := make([]string, len(*v))
	for i, step := range *v {
		kind := step.Namespace
		if step.Type != "" {
			kind += "/" + step.Type
		}
		parts[i] = fmt.Sprintf("%s:%d-%d=%s", kind, step.From, step.To, step.Path)
	}
	return strings.Join(parts, ",")
}
