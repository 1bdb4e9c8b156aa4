// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"
)

// SuperCommandParams provides a way to have default parameters to the
// NewSuperCommand call.
type SuperCommandParams struct {
	Name    string
	Purpose string
	Doc     string

	// NotifyRun, if not nil, is called when the SuperCommand is about to run
	// a sub-command.
	NotifyRun func(cmdName string)
}

// SuperCommand is a Command that selects a subcommand and assumes its
// properties; any command line arguments that were not used in selecting
// the subcommand are passed down to it, and to Run a SuperCommand is to run
// its selected subcommand.
type SuperCommand struct {
	CommandBase
	Name    string
	Purpose string
	Doc     string

	subcmds   map[string]Command
	action    Command
	showHelp  bool
	notifyRun func(string)
}

// NewSuperCommand creates and initializes a new SuperCommand.
func NewSuperCommand(params SuperCommandParams) *SuperCommand {
	return &SuperCommand{
		Name:      params.Name,
		Purpose:   params.Purpose,
		Doc:       params.Doc,
		subcmds:   make(map[string]Command),
		notifyRun: params.NotifyRun,
	}
}

// Register makes a subcommand available for use on the command line.
func (c *SuperCommand) Register(subcmd Command) {
	name := subcmd.Info().Name
	if _, found := c.subcmds[name]; found {
		panic(fmt.Sprintf("command already registered: %q", name))
	}
	c.subcmds[name] = subcmd
}

// Info returns a description of the currently selected subcommand, or of the
// SuperCommand itself if no subcommand has been specified.
func (c *SuperCommand) Info() *Info {
	if c.action != nil {
		info := *c.action.Info()
		info.Name = fmt.Sprintf("%s %s", c.Name, info.Name)
		return &info
	}
	subcommands := make(map[string]string, len(c.subcmds))
	for name, subcmd := range c.subcmds {
		subcommands[name] = subcmd.Info().Purpose
	}
	return &Info{
		Name:        c.Name,
		Args:        "<command> ...",
		Purpose:     c.Purpose,
		Doc:         strings.TrimSpace(c.Doc),
		Subcommands: subcommands,
	}
}

// SetFlags adds the options that apply to all commands.
func (c *SuperCommand) SetFlags(f *gnuflag.FlagSet) {
	f.BoolVar(&c.showHelp, "h", false, "Show help on a command")
	f.BoolVar(&c.showHelp, "help", false, "")
}

// AllowInterspersedFlags returns false: only flags of the SuperCommand
// itself can come prior to the subcommand name.
func (c *SuperCommand) AllowInterspersedFlags() bool {
	return false
}

// Init selects the subcommand named by the first argument and initializes
// it with the remaining arguments.
func (c *SuperCommand) Init(args []string) error {
	if len(args) == 0 {
		c.showHelp = true
		return nil
	}

	subcmd, found := c.subcmds[args[0]]
	if !found {
		return errors.Errorf("unrecognized command: %s %s", c.Name, args[0])
	}
	c.action = subcmd

	f := gnuflag.NewFlagSet(c.Info().Name, gnuflag.ContinueOnError)
	f.SetOutput(io.Discard)
	f.BoolVar(&c.showHelp, "h", false, "")
	f.BoolVar(&c.showHelp, "help", false, "")
	subcmd.SetFlags(f)
	if err := f.Parse(subcmd.AllowInterspersedFlags(), args[1:]); err != nil {
		return err
	}
	if c.showHelp {
		return nil
	}
	return subcmd.Init(f.Args())
}

// Run executes the subcommand that was selected in Init.
func (c *SuperCommand) Run(ctx *Context) error {
	if c.showHelp {
		if c.action != nil {
			PrintUsage(ctx.Stdout, c.action)
			return nil
		}
		PrintUsage(ctx.Stdout, c)
		return nil
	}
	if c.action == nil {
		panic("Run: missing subcommand; Init failed or not called")
	}

	if c.notifyRun != nil {
		c.notifyRun(c.action.Info().Name)
	}
	err := c.action.Run(ctx)
	if err != nil && !IsErrSilent(err) {
		WriteError(ctx.Stderr, err)
		logger.Debugf("error stack: \n%v", errors.ErrorStack(err))

		// The error has been written above; make it silent so Main does not
		// write it again.
		err = ErrSilent
	} else if err == nil {
		logger.Infof("command finished")
	}
	return err
}

func describe(subcommands map[string]string) string {
	names := make([]string, 0, len(subcommands))
	longest := 0
	for name := range subcommands {
		names = append(names, name)
		longest = max(longest, len(name))
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "    %-*s - %s\n", longest, name, subcommands[name])
	}
	return b.String()
}
