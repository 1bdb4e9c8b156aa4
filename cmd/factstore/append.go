// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/juju/errors"

	"github.com/juju/factstore/core/fact"
	"github.com/juju/factstore/internal/cmd"
)

// maxLineSize bounds a single JSON line read by append.
const maxLineSize = 16 << 20

const appendDoc = `
Reads facts as JSON lines from the file, or from stdin when no file is given,
and appends them to the fact log in a single transaction. Each line is an
object with a required "namespace" and optional "id", "type", "version",
"aggregate_ids", "meta" and "payload" fields. Facts without an id get a new
one.

The appended facts are written to stdout with their serials.

Examples:

    echo '{"namespace":"orders","type":"created","version":1,"payload":{"total":1}}' | factstore append
`

type appendCommand struct {
	baseCommand

	path string
}

func newAppendCommand() *appendCommand {
	return &appendCommand{}
}

// Info implements cmd.Command.
func (c *appendCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "append",
		Args:    "[<file>]",
		Purpose: "Append facts to the fact log.",
		Doc:     appendDoc,
	}
}

// Init implements cmd.Command.
func (c *appendCommand) Init(args []string) error {
	switch len(args) {
	case 0:
	case 1:
		c.path = args[0]
	default:
		return cmd.CheckEmpty(args[1:])
	}
	return nil
}

// Run implements cmd.Command.
func (c *appendCommand) Run(ctx *cmd.Context) error {
	in := ctx.Stdin
	if c.path != "" && c.path != "-" {
		file, err := os.Open(ctx.AbsPath(c.path))
		if err != nil {
			return errors.Trace(err)
		}
		defer func() { _ = file.Close() }()
		in = file
	}

	facts, err := readFacts(in)
	if err != nil {
		return errors.Trace(err)
	}
	if len(facts) == 0 {
		return nil
	}

	st, err := c.openStore(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer func() { _ = st.Close() }()

	appended, err := st.state.Append(ctx, facts...)
	if err != nil {
		return errors.Annotatef(err, "appending %d facts", len(facts))
	}

	encoder := json.NewEncoder(ctx.Stdout)
	for _, f := range appended {
		if err := encoder.Encode(factDoc{
			ID:        f.ID,
			Namespace: f.Namespace,
			Type:      f.Type,
			Version:   f.Version,
			Serial:    f.Serial,
		}); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func readFacts(r io.Reader) ([]fact.Fact, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var (
		facts []fact.Fact
		line  int
	)
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var doc factDoc
		if err := json.Unmarshal([]byte(text), &doc); err != nil {
			return nil, errors.Annotatef(err, "line %d", line)
		}
		f := doc.fact()
		if err := f.Validate(); err != nil {
			return nil, errors.Annotatef(err, "line %d", line)
		}
		facts = append(facts, f)
	}
	return facts, errors.Trace(scanner.Err())
}
