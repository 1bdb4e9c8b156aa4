// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/juju/factstore/internal/cmd"
)

const pruneDoc = `
Removes the match-sets of catchup executions registered longer ago than the
maximum age. Executions clean up after themselves, so only the match-sets of
processes that died while catching up are left to prune. The maximum age
defaults to the match-set-max-age setting of the config.
`

type pruneCommand struct {
	baseCommand

	maxAge time.Duration
}

func newPruneCommand() *pruneCommand {
	return &pruneCommand{}
}

// Info implements cmd.Command.
func (c *pruneCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "prune",
		Purpose: "Remove orphaned catchup match-sets.",
		Doc:     pruneDoc,
	}
}

// SetFlags implements cmd.Command.
func (c *pruneCommand) SetFlags(f *gnuflag.FlagSet) {
	c.baseCommand.SetFlags(f)
	f.DurationVar(&c.maxAge, "max-age", 0, "Prune executions older than this")
}

// Init implements cmd.Command.
func (c *pruneCommand) Init(args []string) error {
	if c.maxAge < 0 {
		return errors.NotValidf("--max-age %v", c.maxAge)
	}
	return cmd.CheckEmpty(args)
}

// Run implements cmd.Command.
func (c *pruneCommand) Run(ctx *cmd.Context) error {
	maxAge := c.maxAge
	if maxAge == 0 {
		cfg, err := c.readConfig(ctx)
		if err != nil {
			return errors.Trace(err)
		}
		maxAge = cfg.MatchSetMaxAge
	}

	st, err := c.openStore(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer func() { _ = st.Close() }()

	pruned, err := st.state.PruneExecutions(ctx, time.Now().Add(-maxAge))
	if err != nil {
		return errors.Trace(err)
	}
	fmt.Fprintf(ctx.Stdout, "pruned %s executions\n", humanize.Comma(int64(pruned)))
	return nil
}
