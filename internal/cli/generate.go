package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/busstats/internal/config"
	"github.com/roach88/busstats/internal/scraper"
)

// useConfiguredSchedule is the value --schedule takes when given without a
// spec.
const useConfiguredSchedule = "config"

// GenerateOptions holds flags for the generate command.
type GenerateOptions struct {
	*RootOptions
	Schedule string
}

// GenerateResult is the JSON payload of a single generate cycle.
type GenerateResult struct {
	Scraped int    `json:"scraped"`
	Path    string `json:"path"`
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenerateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Scrape stop pages into the staging file",
		Long: `Scrape every configured stop page once and append the results to the
staging CSV file. Failures are alerted and leave the staging file untouched.

With --schedule the cycle repeats on a cron spec until interrupted. A bare
--schedule uses scraper.schedule from the configuration.

Example:
  busstats generate
  busstats generate --schedule
  busstats generate --schedule "*/2 * * * *"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Schedule, "schedule", "", "run on a cron spec until interrupted")
	cmd.Flags().Lookup("schedule").NoOptDefVal = useConfiguredSchedule

	return cmd
}

func runGenerate(opts *GenerateOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	if err := opts.require(formatter, config.Collector); err != nil {
		return err
	}

	st := opts.newStaging()
	gen := scraper.NewGenerator(opts.newScraper(), st, opts.Config.Scraper.Stops, opts.alertSink(), opts.Logger)

	ctx, cancel := signalContext(cmd, opts.Logger)
	defer cancel()

	if opts.Schedule != "" {
		spec := opts.Schedule
		if spec == useConfiguredSchedule {
			spec = opts.Config.Scraper.Schedule
		}
		formatter.Printf("Generating on %q into %s. Press Ctrl-C to stop.", spec, st.Path())
		if err := gen.Schedule(ctx, spec); err != nil {
			return formatter.fail(ExitCommandError, ErrCodeConfig, "invalid schedule", err)
		}
		opts.Logger.Info("generation stopped")
		return nil
	}

	n, err := gen.Run(ctx)
	if err != nil {
		return formatter.fail(ExitFailure, ErrCodeGeneric, "data generation failed", err)
	}

	if formatter.JSON() {
		return formatter.Success(GenerateResult{Scraped: n, Path: st.Path()})
	}
	formatter.Printf("%s Scraped %d record(s) into %s", okMark, n, st.Path())
	return nil
}
