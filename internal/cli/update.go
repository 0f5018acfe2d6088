package cli

import (
	"context"
	"errors"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/busstats/internal/config"
	"github.com/roach88/busstats/internal/merge"
	"github.com/roach88/busstats/internal/token"
)

// UpdateResult is the JSON payload of the update command.
type UpdateResult struct {
	merge.Report
	Speed float64 `json:"speed"`
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Merge the staging file into the database",
		Long: `Insert every staged record the database does not hold yet, then delete
the staging file when the number of inserted records matches the number of
new ones. On a mismatch the staging file is kept and the command fails.

Example:
  busstats update
  busstats update --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			if err := rootOpts.require(formatter, config.Storage); err != nil {
				return err
			}

			codec, err := rootOpts.codec(formatter)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd, rootOpts.Logger)
			defer cancel()

			report, err := mergeStaging(ctx, rootOpts, formatter, codec)
			if err != nil {
				return err
			}
			if formatter.JSON() {
				return formatter.Success(UpdateResult{Report: report, Speed: report.Speed()})
			}
			printReport(formatter, report)
			return nil
		},
	}

	return cmd
}

// mergeStaging runs one merge cycle with a freshly minted token. Errors are
// already reported through formatter.
func mergeStaging(ctx context.Context, opts *RootOptions, formatter *OutputFormatter, codec *token.Codec) (merge.Report, error) {
	st, err := opts.openStore(formatter)
	if err != nil {
		return merge.Report{}, err
	}
	defer opts.closeStore(st)

	tok, err := codec.Mint()
	if err != nil {
		return merge.Report{}, formatter.fail(ExitFailure, ErrCodeGeneric, "failed to mint token", err)
	}

	engine := merge.New(opts.newStaging(), st, codec, merge.WithLogger(opts.Logger))
	report, err := engine.Run(ctx, tok)
	if err != nil {
		var discrepancy *merge.DiscrepancyError
		if errors.As(err, &discrepancy) {
			printReport(formatter, report)
			return report, formatter.fail(ExitFailure, ErrCodeDiscrepancy, "merge discrepancy", err)
		}
		return report, formatter.fail(ExitFailure, ErrCodeGeneric, "merge failed", err)
	}
	return report, nil
}

func printReport(formatter *OutputFormatter, r merge.Report) {
	formatter.Printf("%s Saved %s new record(s) of %s staged", okMark, humanize.Comma(int64(r.Inserted)), humanize.Comma(int64(r.Staged)))
	formatter.Printf("Executed in %s", r.Elapsed.Round(time.Millisecond))
	formatter.Printf("Mean speed: %s records/s", humanize.FormatFloat("#,###.##", r.Speed()))
	if !r.Removed && r.Staged > 0 {
		formatter.Printf("%s Staging file kept", warnMark)
	}
	formatter.VerboseLog("cycle %s: pending=%d inserted=%d", r.CycleID, r.Pending, r.Inserted)
}
