package cli

import (
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/busstats/internal/config"
)

// CountResult is the JSON payload of the count command.
type CountResult struct {
	Records int `json:"records"`
}

// NewCountCommand creates the count command.
func NewCountCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "count",
		Short:         "Print the number of records in the database",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			if err := rootOpts.require(formatter, config.Storage); err != nil {
				return err
			}
			st, err := rootOpts.openStore(formatter)
			if err != nil {
				return err
			}
			defer rootOpts.closeStore(st)

			n, err := st.Count(cmd.Context())
			if err != nil {
				return formatter.fail(ExitFailure, ErrCodeGeneric, "failed to count records", err)
			}

			if formatter.JSON() {
				return formatter.Success(CountResult{Records: n})
			}
			formatter.Printf("%s record(s)", humanize.Comma(int64(n)))
			return nil
		},
	}

	return cmd
}
