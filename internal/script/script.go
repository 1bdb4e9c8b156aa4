// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package script evaluates the Starlark programs used to filter facts and to
// migrate fact payloads between schema versions.
package script

import (
	"fmt"

	"github.com/juju/errors"
	"go.starlark.net/lib/json"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/juju/factstore/core/fact"
)

const (
	// MatchesEntrypoint is the function a filter script must define.
	MatchesEntrypoint = "matches"

	// TransformEntrypoint is the function a transformation script must
	// define.
	TransformEntrypoint = "transform"

	// maxExecutionSteps bounds the work a single call may perform.
	maxExecutionSteps = 1 << 22
)

// Program is a compiled script exposing a single entrypoint. The globals of
// a program are frozen once compiled, so a program can be called from
// several goroutines at once.
type Program struct {
	name string
	fn   starlark.Callable
}

// Compile executes the source and returns the program exposing the named
// entrypoint.
func Compile(name, source, entrypoint string) (*Program, error) {
	thread := newThread(name)
	globals, err := starlark.ExecFileOptions(&syntax.FileOptions{}, thread, name, source, predeclared())
	if err != nil {
		return nil, errors.Annotatef(err, "compiling script %q", name)
	}

	value, ok := globals[entrypoint]
	if !ok {
		return nil, errors.NotValidf("script %q without %s function", name, entrypoint)
	}
	fn, ok := value.(starlark.Callable)
	if !ok {
		return nil, errors.NotValidf("script %q %s is a %s", name, entrypoint, value.Type())
	}
	return &Program{
		name: name,
		fn:   fn,
	}, nil
}

// Name returns the name the program was compiled with.
func (p *Program) Name() string {
	return p.name
}

// Matches calls the program with the fact and returns the truth value of the
// result.
func (p *Program) Matches(f fact.Fact) (bool, error) {
	thread := newThread(p.name)
	value, err := factValue(thread, f)
	if err != nil {
		return false, errors.Trace(err)
	}

	result, err := starlark.Call(thread, p.fn, starlark.Tuple{value}, nil)
	if err != nil {
		return false, errors.Annotatef(err, "evaluating %q for fact %q", p.name, f.ID)
	}
	return bool(result.Truth()), nil
}

// Transform calls the program with the decoded payload and returns the
// encoded result.
func (p *Program) Transform(payload []byte) ([]byte, error) {
	thread := newThread(p.name)
	event, err := decode(thread, payload)
	if err != nil {
		return nil, errors.Trace(err)
	}

	result, err := starlark.Call(thread, p.fn, starlark.Tuple{event}, nil)
	if err != nil {
		return nil, errors.Annotatef(err, "evaluating %q", p.name)
	}
	if result == starlark.None {
		return nil, errors.NotValidf("script %q returned None", p.name)
	}
	return encode(thread, result)
}

func newThread(name string) *starlark.Thread {
	thread := &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			logger.Debugf("%s: %s", name, msg)
		},
	}
	thread.SetMaxExecutionSteps(maxExecutionSteps)
	return thread
}

func predeclared() starlark.StringDict {
	return starlark.StringDict{
		"json": json.Module,
	}
}

func decode(thread *starlark.Thread, payload []byte) (starlark.Value, error) {
	if len(payload) == 0 {
		return starlark.None, nil
	}
	value, err := starlark.Call(thread, json.Module.Members["decode"], starlark.Tuple{starlark.String(payload)}, nil)
	if err != nil {
		return nil, errors.Annotate(err, "decoding payload")
	}
	return value, nil
}

func encode(thread *starlark.Thread, value starlark.Value) ([]byte, error) {
	encoded, err := starlark.Call(thread, json.Module.Members["encode"], starlark.Tuple{value}, nil)
	if err != nil {
		return nil, errors.Annotate(err, "encoding result")
	}
	s, ok := starlark.AsString(encoded)
	if !ok {
		return nil, errors.Errorf("encoding result: unexpected %s", encoded.Type())
	}
	return []byte(s), nil
}

// factValue exposes the fact to scripts as a dict.
func factValue(thread *starlark.Thread, f fact.Fact) (starlark.Value, error) {
	payload, err := decode(thread, f.Payload)
	if err != nil {
		return nil, errors.Annotatef(err, "fact %q", f.ID)
	}

	aggregates := make([]starlark.Value, len(f.AggregateIDs))
	for i, id := range f.AggregateIDs {
		aggregates[i] = starlark.String(id)
	}

	meta := starlark.NewDict(len(f.Meta))
	for k, v := range f.Meta {
		if err := meta.SetKey(starlark.String(k), starlark.String(v)); err != nil {
			return nil, errors.Trace(err)
		}
	}

	value := starlark.NewDict(8)
	for _, entry := range []struct {
		key   string
		value starlark.Value
	}{
		{"id", starlark.String(f.ID)},
		{"ns", starlark.String(f.Namespace)},
		{"type", starlark.String(f.Type)},
		{"version", starlark.MakeInt(f.Version)},
		{"serial", starlark.MakeInt64(f.Serial)},
		{"aggregate_ids", starlark.NewList(aggregates)},
		{"meta", meta},
		{"payload", payload},
	} {
		if err := value.SetKey(starlark.String(entry.key), entry.value); err != nil {
			return nil, errors.Annotatef(err, "setting %s", entry.key)
		}
	}
	return value, nil
}

// String implements fmt.Stringer.
func (p *Program) String() string {
	return fmt.Sprintf("script(%s)", p.name)
}
