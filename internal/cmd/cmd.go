// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package cmd provides the command line plumbing of the factstore tools.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("factstore.cmd")

// ErrSilent can be returned from Run to signal that Main should exit with
// code 1 without producing error output.
const ErrSilent = errors.ConstError("cmd: error out silently")

// IsErrSilent returns whether the error should be logged from cmd.Main.
func IsErrSilent(err error) bool {
	return errors.Is(err, ErrSilent)
}

// Context represents the run context of a Command. Command implementations
// should interpret file names relative to Dir and use Stdin, Stdout and
// Stderr instead of the process streams.
type Context struct {
	context.Context

	Dir    string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// DefaultContext returns a Context suitable for use in non-hosted
// situations, bound to the process streams and working directory.
func DefaultContext(ctx context.Context) (*Context, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, errors.Trace(err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &Context{
		Context: ctx,
		Dir:     abs,
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}, nil
}

// AbsPath returns an absolute representation of path, relative to the
// context's working directory.
func (ctx *Context) AbsPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(ctx.Dir, path)
}

// Infof writes an informational message to Stderr.
func (ctx *Context) Infof(format string, params ...any) {
	fmt.Fprintf(ctx.Stderr, format+"\n", params...)
}

// Info holds some of the usage documentation of a Command.
type Info struct {
	// Name is the Command's name.
	Name string

	// Args describes the command's expected positional arguments.
	Args string

	// Purpose is a short explanation of the Command's purpose.
	Purpose string

	// Doc is the long documentation for the Command.
	Doc string

	// Subcommands stores the name and description of each subcommand.
	Subcommands map[string]string
}

// Usage combines Name and Args to describe the Command's intended usage.
func (i *Info) Usage() string {
	if i.Args == "" {
		return i.Name
	}
	return fmt.Sprintf("%s %s", i.Name, i.Args)
}

// Command is implemented by types that interpret command-line arguments.
type Command interface {
	// Info returns information about the Command.
	Info() *Info

	// SetFlags adds command specific flags to the flag set.
	SetFlags(f *gnuflag.FlagSet)

	// Init initializes the Command before running.
	Init(args []string) error

	// Run will execute the Command as directed by the options and positional
	// arguments passed to Init.
	Run(ctx *Context) error

	// AllowInterspersedFlags returns whether the command allows flag
	// arguments to be interspersed with non-flag arguments.
	AllowInterspersedFlags() bool
}

// CommandBase provides the default implementation for SetFlags, Init and
// AllowInterspersedFlags.
type CommandBase struct{}

// SetFlags does nothing in the simplest case.
func (c *CommandBase) SetFlags(f *gnuflag.FlagSet) {}

// Init in the simplest case makes sure there are no args.
func (c *CommandBase) Init(args []string) error {
	return CheckEmpty(args)
}

// AllowInterspersedFlags returns true by default.
func (c *CommandBase) AllowInterspersedFlags() bool {
	return true
}

// CheckEmpty is a utility function that returns an error if args is not
// empty.
func CheckEmpty(args []string) error {
	if len(args) != 0 {
		return errors.Errorf("unrecognized args: %q", args)
	}
	return nil
}

// NewFlagSet returns a FlagSet initialized for use with c.
func NewFlagSet(c Command, output io.Writer) *gnuflag.FlagSet {
	f := gnuflag.NewFlagSet(c.Info().Name, gnuflag.ContinueOnError)
	f.SetOutput(output)
	c.SetFlags(f)
	return f
}

// PrintUsage writes the usage of c, its flags and documentation to w.
func PrintUsage(w io.Writer, c Command) {
	info := c.Info()
	fmt.Fprintf(w, "Usage: %s\n", info.Usage())
	if info.Purpose != "" {
		fmt.Fprintf(w, "\nSummary:\n%s\n", info.Purpose)
	}

	var flags strings.Builder
	f := NewFlagSet(c, &flags)
	f.PrintDefaults()
	if flags.Len() > 0 {
		fmt.Fprintf(w, "\nOptions:\n%s", flags.String())
	}
	if info.Doc != "" {
		fmt.Fprintf(w, "\nDetails:\n%s\n", strings.TrimSpace(info.Doc))
	}
	if len(info.Subcommands) > 0 {
		fmt.Fprintf(w, "\nSubcommands:\n%s", describe(info.Subcommands))
	}
}

// WriteError writes the error to the writer.
func WriteError(w io.Writer, err error) {
	fmt.Fprintf(w, "ERROR %v\n", err)
}

// Main runs the given Command in the supplied Context with the given
// arguments, which should not include the command name. It returns a code
// suitable for passing to os.Exit.
func Main(c Command, ctx *Context, args []string) int {
	f := NewFlagSet(c, io.Discard)
	if err := f.Parse(c.AllowInterspersedFlags(), args); err != nil {
		if err == gnuflag.ErrHelp {
			PrintUsage(ctx.Stdout, c)
			return 0
		}
		WriteError(ctx.Stderr, err)
		return 2
	}
	if err := c.Init(f.Args()); err != nil {
		WriteError(ctx.Stderr, err)
		return 2
	}
	if err := c.Run(ctx); err != nil {
		if IsErrSilent(err) {
			return 1
		}
		logger.Debugf("%s command failed: %v", c.Info().Name, errors.ErrorStack(err))
		WriteError(ctx.Stderr, err)
		return 1
	}
	return 0
}
