package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/busstats/internal/config"
	"github.com/roach88/busstats/internal/transfer"
)

// AllResult is the JSON payload of the all command.
type AllResult struct {
	Transfer *transfer.Result `json:"transfer,omitempty"`
	Update   UpdateResult     `json:"update"`
}

// NewAllCommand creates the all command.
func NewAllCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "all",
		Short: "Fetch the staging file and merge it",
		Long: `Run get and then update.

A collector without a staging file is not an error here: whatever is left in
the local staging file is still merged.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAll(rootOpts, cmd)
		},
	}

	return cmd
}

func runAll(opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	if err := opts.require(formatter, config.Storage); err != nil {
		return err
	}
	codec, err := opts.codec(formatter)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd, opts.Logger)
	defer cancel()

	var result AllResult
	res, err := fetchStaging(ctx, opts, codec)
	switch {
	case collectorEmpty(err):
		opts.Logger.Info("collector has no staging file, merging local leftovers")
		formatter.Printf("%s Collector has no staging file", warnMark)
	case err != nil:
		return transferFailure(formatter, err)
	default:
		result.Transfer = &res
		printTransfer(formatter, res)
	}

	report, err := mergeStaging(ctx, opts, formatter, codec)
	if err != nil {
		return err
	}
	result.Update = UpdateResult{Report: report, Speed: report.Speed()}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	printReport(formatter, report)
	return nil
}
