// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/juju/loggo"

	"github.com/juju/factstore/internal/cmd"
)

// loggingConfigEnvKey names the environment variable holding the loggo
// configuration, for example "<root>=INFO;factstore.catchup=TRACE".
const loggingConfigEnvKey = "FACTSTORE_LOGGING_CONFIG"

var logger = loggo.GetLogger("factstore.cmd.factstore")

func init() {
	// If the environment key is empty, ConfigureLoggers returns nil and does
	// nothing.
	err := loggo.ConfigureLoggers(os.Getenv(loggingConfigEnvKey))
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR parsing %s: %s\n\n", loggingConfigEnvKey, err)
	}
}

const factstoreDoc = `
factstore appends facts to a SQLite backed fact log and subscribes to it.

A subscription replays the facts matching its specs and, with --follow, keeps
delivering facts as they are appended until interrupted. Facts are written to
stdout as JSON lines.
`

// NewFactstoreCommand returns the factstore super command with all the
// subcommands registered.
func NewFactstoreCommand() *cmd.SuperCommand {
	super := cmd.NewSuperCommand(cmd.SuperCommandParams{
		Name:    "factstore",
		Purpose: "Append to and subscribe to a fact log.",
		Doc:     factstoreDoc,
		NotifyRun: func(name string) {
			logger.Debugf("running %s", name)
		},
	})
	super.Register(newAppendCommand())
	super.Register(newSubscribeCommand())
	super.Register(newPruneCommand())
	return super
}

// Main runs the factstore command with the given arguments, returning the
// exit code.
func Main(ctx context.Context, args []string) int {
	cmdCtx, err := cmd.DefaultContext(ctx)
	if err != nil {
		cmd.WriteError(os.Stderr, err)
		return 2
	}
	return cmd.Main(NewFactstoreCommand(), cmdCtx, args)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Main(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
