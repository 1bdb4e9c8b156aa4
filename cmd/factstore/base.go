// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"database/sql"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	coredatabase "github.com/juju/factstore/core/database"
	"github.com/juju/factstore/database"
	"github.com/juju/factstore/domain/fact/state"
	"github.com/juju/factstore/domain/schema"
	"github.com/juju/factstore/internal/cmd"
	"github.com/juju/factstore/internal/config"
)

// baseCommand holds the flags shared by every factstore command.
type baseCommand struct {
	cmd.CommandBase

	dbPath     string
	configPath string
}

// SetFlags adds the database and config flags.
func (c *baseCommand) SetFlags(f *gnuflag.FlagSet) {
	f.StringVar(&c.dbPath, "db", "factstore.db", "Path to the SQLite fact log")
	f.StringVar(&c.configPath, "config", "", "Path to a YAML pipeline config")
}

// readConfig returns the pipeline config, using the defaults when no config
// file was given.
func (c *baseCommand) readConfig(ctx *cmd.Context) (config.Config, error) {
	if c.configPath == "" {
		return config.Default(), nil
	}
	cfg, err := config.Read(ctx.AbsPath(c.configPath))
	return cfg, errors.Trace(err)
}

// store bundles the open database with the fact state on top of it.
type store struct {
	db    *sql.DB
	state *state.State
}

// openStore opens the fact log, creating the schema if needed.
func (c *baseCommand) openStore(ctx *cmd.Context) (*store, error) {
	db, err := database.Open(ctx.AbsPath(c.dbPath))
	if err != nil {
		return nil, errors.Trace(err)
	}

	runner := database.NewTxnRunner(db)
	if err := schema.Apply(ctx, runner); err != nil {
		_ = db.Close()
		return nil, errors.Annotate(err, "applying schema")
	}

	factory := func() (coredatabase.TxnRunner, error) {
		return runner, nil
	}
	return &store{
		db:    db,
		state: state.NewState(factory, logger),
	}, nil
}

// Close closes the database.
func (s *store) Close() error {
	return errors.Trace(s.db.Close())
}
