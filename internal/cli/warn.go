package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/busstats/internal/analysis"
	"github.com/roach88/busstats/internal/notify"
	"github.com/roach88/busstats/internal/record"
	"github.com/roach88/busstats/internal/scraper"
)

// WarnResult is the JSON payload of the warn command.
type WarnResult struct {
	Warning string   `json:"warning"`
	Stop    int      `json:"stop"`
	Message string   `json:"message"`
	To      []string `json:"to,omitempty"`
}

// NewWarnCommand creates the warn command.
func NewWarnCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "warn <name>",
		Short: "Send the upcoming arrivals of a configured warning",
		Long: `Scrape the stop of a warning from the configuration and send when each
of its lines arrives to the warning's recipients. Without a mail server the
message is only logged and printed.

Example:
  busstats warn gamazo`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWarn(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runWarn(opts *RootOptions, name string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	w, ok := opts.Config.Warning(name)
	if !ok {
		return formatter.fail(ExitCommandError, ErrCodeNotFound,
			fmt.Sprintf("unknown warning %q (known: %s)", name, strings.Join(opts.Config.WarningNames(), ", ")), nil)
	}

	ctx, cancel := signalContext(cmd, opts.Logger)
	defer cancel()

	records, err := opts.newScraper().Scrape(ctx, scraper.Stop{ID: w.Stop, Lines: w.Lines})
	if err != nil {
		return formatter.fail(ExitFailure, ErrCodeTransfer, "failed to read stop", err)
	}
	record.Sort(records)

	message := analysis.ArrivalMessage(records)
	if message == "" {
		message = fmt.Sprintf("No buses announced at stop %d", w.Stop)
	}

	msg := notify.Message{
		Subject: "busstats: " + strings.ToUpper(name),
		Body:    message,
		To:      w.Recipients,
	}
	if err := opts.alertSink().Send(ctx, msg); err != nil {
		return formatter.fail(ExitFailure, ErrCodeGeneric, "failed to send warning", err)
	}

	if formatter.JSON() {
		return formatter.Success(WarnResult{Warning: name, Stop: w.Stop, Message: message, To: w.Recipients})
	}
	formatter.Printf("%s", message)
	return nil
}
