package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/busstats/internal/config"
	"github.com/roach88/busstats/internal/platform"
)

// RootOptions holds global flags for all commands and the state resolved
// from them before a subcommand runs.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	Config   config.Config
	Platform platform.Platform
	Logger   *slog.Logger

	logFile *os.File
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the busstats CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "busstats",
		Short: "busstats - bus delay statistics",
		Long: `Collect AUVASA bus arrival delays and move them between nodes.

A collector node scrapes stop pages into a staging CSV file and serves it
over HTTP. A storage node fetches that file, merges it into a SQLite
database and asks the collector to delete its copy with a daily token.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if !needsSetup(cmd) {
				return nil
			}
			return opts.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return opts.close()
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to "+config.FileName+" (default: search ./ and ~/.config/busstats/)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	// Add subcommands
	cmd.AddCommand(NewGenerateCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewAllCommand(opts))
	cmd.AddCommand(NewCountCommand(opts))
	cmd.AddCommand(NewAnalyseCommand(opts))
	cmd.AddCommand(NewWarnCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// needsSetup reports whether cmd runs against a configuration. Help and
// completion do not.
func needsSetup(cmd *cobra.Command) bool {
	if !cmd.HasParent() {
		return false
	}
	name := cmd.Name()
	return name != "help" && name != "completion" && !strings.HasPrefix(name, "__")
}

// setup loads the configuration, resolves the platform and installs the
// default logger.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	formatter := o.formatter(cmd)

	cfg, used, err := config.Load(o.ConfigPath)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeConfig, "failed to load configuration", err)
	}
	plat, err := platform.Resolve(cfg)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeConfig, "failed to resolve environment", err)
	}

	var logOut io.Writer = cmd.ErrOrStderr()
	if path := plat.Paths.LogFile(); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeConfig, "failed to open log file", err)
		}
		o.logFile = f
		logOut = io.MultiWriter(logOut, f)
	}

	// Configure logging based on verbose flag
	logLevel := slog.LevelInfo
	if o.Verbose {
		logLevel = slog.LevelDebug
	}
	o.Logger = slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(o.Logger)

	o.Config = cfg
	o.Platform = plat
	o.Logger.Debug("configuration loaded", "path", used, "environment", cfg.Environment)
	return nil
}

func (o *RootOptions) close() error {
	if o.logFile == nil {
		return nil
	}
	err := o.logFile.Close()
	o.logFile = nil
	return err
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// require fails with ExitCommandError unless this node runs in env.
func (o *RootOptions) require(formatter *OutputFormatter, env config.Environment) error {
	if err := o.Platform.Require(env); err != nil {
		return formatter.fail(ExitCommandError, ErrCodeEnvironment, "wrong environment", err)
	}
	return nil
}

// signalContext derives a context from the command's that is cancelled on
// SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command, logger *slog.Logger) (context.Context, context.CancelFunc) {
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan) // Prevent signal handler leak
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
