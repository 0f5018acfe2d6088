package cli

import (
	"context"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/roach88/busstats/internal/config"
	"github.com/roach88/busstats/internal/transfer"
)

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Fetch the staging file from the collector",
		Long: `Download the collector's staging CSV file into the local staging path
and then ask the collector to delete its copy with today's token.

The local file is replaced by the downloaded one. Nothing is deleted on the
collector unless the download succeeded.

Example:
  busstats get
  busstats get --format json`,
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

			res, err := fetchStaging(ctx, rootOpts, codec)
			if err != nil {
				return transferFailure(formatter, err)
			}
			if formatter.JSON() {
				return formatter.Success(res)
			}
			printTransfer(formatter, res)
			return nil
		},
	}

	return cmd
}

// fetchStaging runs one transfer client cycle.
func fetchStaging(ctx context.Context, opts *RootOptions, minter transfer.Minter) (transfer.Result, error) {
	client := transfer.NewClient(opts.Config.Server.URL, opts.Platform.Paths.StagingPath(), opts.newDownloader(), minter, opts.Logger)
	return client.Get(ctx)
}

// collectorEmpty reports whether err is the collector answering that it has
// no staging file.
func collectorEmpty(err error) bool {
	var fetchErr *transfer.FetchError
	return errors.As(err, &fetchErr) && fetchErr.StatusCode == http.StatusNotFound
}

func transferFailure(formatter *OutputFormatter, err error) error {
	if collectorEmpty(err) {
		return formatter.fail(ExitFailure, ErrCodeNotFound, "collector has no staging file", err)
	}
	return formatter.fail(ExitFailure, ErrCodeTransfer, "transfer failed", err)
}

func printTransfer(formatter *OutputFormatter, res transfer.Result) {
	if res.Bytes == 0 {
		formatter.Printf("%s Collector staging file is empty, nothing fetched", warnMark)
		return
	}
	formatter.Printf("%s Fetched %s into %s", okMark, res.Size(), res.Path)
	if res.Retained > 0 {
		formatter.Printf("%s Kept %d local record(s) from an earlier fetch", warnMark, res.Retained)
	}

	mark := okMark
	if !res.Deleted {
		mark = warnMark
	}
	formatter.Printf("%s Delete: status %d, %s", mark, res.DeleteStatus, res.DeleteReply)
}
