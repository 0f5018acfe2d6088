package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/roach88/busstats/internal/config"
	"github.com/roach88/busstats/internal/transfer"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the staging file to the storage node",
		Long: `Serve the staging CSV file over HTTP.

GET / returns the file, DELETE / removes it when the form field "token"
carries today's token. Deletions only happen between seconds 10 and 45 of a
minute so they never race the generator.

Example:
  busstats serve
  busstats serve --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(rootOpts, cmd)
		},
	}

	return cmd
}

func runServe(opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	if err := opts.require(formatter, config.Collector); err != nil {
		return err
	}
	codec, err := opts.codec(formatter)
	if err != nil {
		return err
	}

	st := opts.newStaging()
	srv := transfer.NewServer(transfer.ServerConfig{
		Addr:        opts.Config.Server.Listen,
		MetricsAddr: opts.Config.Server.MetricsListen,
	}, st, codec, transfer.WithServerLogger(opts.Logger))

	ctx, cancel := signalContext(cmd, opts.Logger)
	defer cancel()

	formatter.Printf("Serving %s on %s. Press Ctrl-C to stop.", st.Path(), opts.Config.Server.Listen)
	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return formatter.fail(ExitFailure, ErrCodeTransfer, "server error", err)
	}

	opts.Logger.Info("server stopped gracefully")
	return nil
}
