package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

// Command is a node of the command tree. Exactly one of Run or
// Subcommands is set.
type Command struct {
	Name    string
	Summary string

	// Usage is the usage line shown in help. Synthesized when empty.
	Usage string

	// Flags registers the command's own flags. Global flags are added to
	// every leaf command.
	Flags func(fs *pflag.FlagSet)

	Subcommands []*Command

	Run func(ctx context.Context, args []string) error

	parent *Command
}

// execute dispatches args down the tree and runs the matching leaf.
func (a *app) execute(ctx context.Context, c *Command, args []string) error {
	if len(args) > 0 && isHelpFlag(args[0]) {
		a.printHelp(c)
		return nil
	}

	if len(c.Subcommands) > 0 {
		if len(args) == 0 || strings.HasPrefix(args[0], "-") {
			a.printHelp(c)
			return fmt.Errorf("subcommand required")
		}
		for _, sub := range c.Subcommands {
			if sub.Name == args[0] {
				sub.parent = c
				return a.execute(ctx, sub, args[1:])
			}
		}
		return fmt.Errorf("unknown command %q\n\nRun '%s --help' for usage.", args[0], c.fullName())
	}

	fs := a.flagSet(c)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			a.printHelp(c)
			return nil
		}
		return fmt.Errorf("%s\n\nRun '%s --help' for usage.", err, c.fullName())
	}

	if err := a.setup(); err != nil {
		return err
	}
	return c.Run(ctx, fs.Args())
}

func (a *app) flagSet(c *Command) *pflag.FlagSet {
	fs := pflag.NewFlagSet(c.fullName(), pflag.ContinueOnError)
	if c.Flags != nil {
		c.Flags(fs)
	}
	a.globalFlags(fs)
	return fs
}

func (a *app) printHelp(c *Command) {
	w := a.stdout
	if c.Summary != "" {
		fmt.Fprintf(w, "%s\n\n", c.Summary)
	}

	switch {
	case c.Usage != "":
		fmt.Fprintf(w, "Usage:\n  %s\n", c.Usage)
	case len(c.Subcommands) > 0:
		fmt.Fprintf(w, "Usage:\n  %s <command> [flags]\n", c.fullName())
	default:
		fmt.Fprintf(w, "Usage:\n  %s [flags]\n", c.fullName())
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nCommands:\n")
		tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
		for _, sub := range c.Subcommands {
			fmt.Fprintf(tw, "  %s\t%s\n", sub.Name, sub.Summary)
		}
		tw.Flush()
		fmt.Fprintf(w, "\nRun '%s <command> --help' for more information on a command.\n", c.fullName())
		return
	}

	fmt.Fprintf(w, "\nFlags:\n%s", a.flagSet(c).FlagUsages())
}

func (c *Command) fullName() string {
	if c.parent == nil {
		return c.Name
	}
	return c.parent.fullName() + " " + c.Name
}

func isHelpFlag(arg string) bool {
	return arg == "-h" || arg == "--help" || arg == "help"
}
