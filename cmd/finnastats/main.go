// main.go - Statistics reporting tool for Finna
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"finnastats/internal"
)

const defaultConfigPath = "settings.json"

// Command defines the interface for all command implementations
type Command interface {
	// Name returns the command name
	Name() string
	// Description returns the command description
	Description() string
	// Execute runs the command with the given app and args
	Execute(ctx context.Context, app *internal.Application, args []string) error
}

// The set of available commands
var commands = []Command{
	&IndexCountsCommand{},
	&UserCountsCommand{},
	&ListMethodsCommand{},
	&UserListCountsCommand{},
	&ViewStatisticsCommand{},
	&ListViewsCommand{},
	&HelpCommand{},
}

func main() {
	// Cancel in-flight requests on shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command line and returns the process exit code.
func run(ctx context.Context, argv []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("finnastats", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", defaultConfigPath, "path to the settings file")
	fs.Usage = func() { printUsage(stderr) }
	if err := fs.Parse(argv); err != nil {
		return 2
	}

	cmdName, args := parseArgs(fs.Args())

	cmd := findCommand(cmdName)
	if cmd == nil {
		fmt.Fprintf(stderr, "Error: unknown command %q\n", cmdName)
		printUsage(stderr)
		return 1
	}
	if _, ok := cmd.(*HelpCommand); ok {
		printUsage(stdout)
		return 0
	}

	app, err := internal.NewApp(*configPath, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer func() {
		if err := app.Shutdown(); err != nil {
			app.Logger.Warn("Cleanup error", slog.Any("error", err))
		}
	}()

	app.Logger = app.Logger.With(slog.String("command", cmd.Name()))
	if err := cmd.Execute(ctx, app, args); err != nil {
		app.Logger.Error("Command failed", slog.Any("error", err))
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	app.Logger.Debug("Command completed")
	return 0
}

// parseArgs splits the remaining arguments into the command and its args
func parseArgs(args []string) (string, []string) {
	if len(args) == 0 {
		return "help", nil
	}
	return args[0], args[1:]
}

// findCommand finds a command by name
func findCommand(name string) Command {
	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd
		}
	}
	return nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: finnastats [-config settings.json] [command] [args...]")
	fmt.Fprintln(w, "Available commands:")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %s: %s\n", cmd.Name(), cmd.Description())
	}
}
