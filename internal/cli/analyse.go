package cli

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/busstats/internal/analysis"
	"github.com/roach88/busstats/internal/config"
	"github.com/roach88/busstats/internal/record"
)

// AnalyseOptions holds flags for the analyse command.
type AnalyseOptions struct {
	*RootOptions
	Line    string
	Stop    int
	From    string
	To      string
	Epsilon int
	Limit   int
}

// Arrival is one grouped punctual arrival.
type Arrival struct {
	Datetime string `json:"datetime"`
	Line     string `json:"line"`
	Stop     int    `json:"stop"`
}

// AnalyseResult is the JSON payload of the analyse command.
type AnalyseResult struct {
	Matched  int       `json:"matched"`
	Arrivals []Arrival `json:"arrivals"`
	MeanHour string    `json:"mean_hour,omitempty"`
}

// NewAnalyseCommand creates the analyse command.
func NewAnalyseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AnalyseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "analyse",
		Short: "Show when a line actually reaches a stop",
		Long: `List the samples where a bus of the line was due at the stop, collapse
samples closer than --epsilon minutes into one arrival and print the
arrivals with their mean time of day.

Example:
  busstats analyse --line 2 --stop 833
  busstats analyse --line 8 --stop 1358 --from 07:30 --to 09:00 --epsilon 3`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyse(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Line, "line", "", "bus line (required)")
	cmd.Flags().IntVar(&opts.Stop, "stop", 0, "stop id (required)")
	cmd.Flags().StringVar(&opts.From, "from", "00:00", "earliest time of day (HH:MM)")
	cmd.Flags().StringVar(&opts.To, "to", "23:59", "latest time of day (HH:MM)")
	cmd.Flags().IntVar(&opts.Epsilon, "epsilon", 2, "minutes within which samples are one arrival")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum samples read from the database (0 = all)")
	_ = cmd.MarkFlagRequired("line")
	_ = cmd.MarkFlagRequired("stop")

	return cmd
}

func runAnalyse(opts *AnalyseOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	if err := opts.require(formatter, config.Storage); err != nil {
		return err
	}

	from, err := analysis.ParseClock(opts.From)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, "invalid --from", err)
	}
	to, err := analysis.ParseClock(opts.To)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, "invalid --to", err)
	}
	// "23:59" covers the whole last minute
	to += 59 * time.Second

	st, err := opts.openStore(formatter)
	if err != nil {
		return err
	}
	defer opts.closeStore(st)

	samples, err := st.Punctual(cmd.Context(), opts.Line, opts.Stop, opts.Limit)
	if err != nil {
		return formatter.fail(ExitFailure, ErrCodeGeneric, "failed to read records", err)
	}
	samples = analysis.FilterTimes(samples, from, to)
	arrivals := analysis.Group(samples, opts.Epsilon, analysis.Latest)
	formatter.VerboseLog("%d sample(s) grouped into %d arrival(s)", len(samples), len(arrivals))

	result := AnalyseResult{Matched: len(samples), Arrivals: make([]Arrival, 0, len(arrivals))}
	for _, r := range arrivals {
		result.Arrivals = append(result.Arrivals, Arrival{Datetime: r.Datetime(), Line: r.Line, Stop: r.StopID})
	}
	if len(arrivals) > 0 {
		result.MeanHour = analysis.FormatHour(analysis.MeanHour(arrivals))
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	if len(arrivals) == 0 {
		formatter.Printf("%s No punctual samples of line %s at stop %d", warnMark, opts.Line, opts.Stop)
		return nil
	}
	renderArrivals(formatter, arrivals, result.MeanHour)
	return nil
}

func renderArrivals(formatter *OutputFormatter, arrivals []record.Record, meanHour string) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(formatter.Writer)
	t.AppendHeader(table.Row{"#", "Date", "Time", "Line", "Stop"})
	for i, r := range arrivals {
		t.AppendRow(table.Row{i + 1, r.Timestamp.Format("2006-01-02"), r.Timestamp.Format("15:04:05"), r.Line, r.StopID})
	}
	t.AppendFooter(table.Row{"", "", "Mean", meanHour, fmt.Sprintf("%d arrival(s)", len(arrivals))})
	t.Render()
}
