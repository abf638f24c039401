// Package usagecmder provides the usage command, which reads recorded
// chat usage from a running usage API.
package usagecmder

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/deepgate/cmd/deepgate/remote"
	"github.com/papercomputeco/deepgate/pkg/cliui"
	"github.com/papercomputeco/deepgate/pkg/storage"
)

const usageLongDesc string = `Show recorded chat usage from a running deepgate usage API.

By default the most recent calls are listed, newest first. Use --summary to
print token totals per model instead.

Examples:
  deepgate usage
  deepgate usage --limit 100
  deepgate usage --summary
  deepgate usage --api-target http://gateway.internal:8081`

const usageShortDesc string = "Show recorded usage"

const timeLayout = "2006-01-02 15:04:05"

type usageCommander struct {
	limit   int
	summary bool
}

func NewUsageCmd() *cobra.Command {
	cmder := &usageCommander{}

	cmd := &cobra.Command{
		Use:   "usage",
		Short: usageShortDesc,
		Long:  usageLongDesc,
		Args:  cobra.NoArgs,
		RunE:  cmder.run,
	}

	cmd.Flags().IntVarP(&cmder.limit, "limit", "n", storage.DefaultListLimit, "Maximum number of records to list")
	cmd.Flags().BoolVar(&cmder.summary, "summary", false, "Print per-model totals instead of individual calls")
	remote.AddTargetFlags(cmd)

	return cmd
}

func (c *usageCommander) run(cmd *cobra.Command, _ []string) error {
	if c.limit <= 0 {
		return fmt.Errorf("--limit must be a positive integer")
	}

	client, err := remote.NewClient(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if c.summary {
		summary, err := client.UsageSummary(cmd.Context())
		if err != nil {
			return fmt.Errorf("fetching usage summary: %w", err)
		}
		printSummary(out, summary)
		return nil
	}

	records, err := client.Usage(cmd.Context(), c.limit)
	if err != nil {
		return fmt.Errorf("listing usage: %w", err)
	}
	printRecords(out, records)
	return nil
}

func printRecords(out io.Writer, records []*storage.Record) {
	if len(records) == 0 {
		fmt.Fprintf(out, "  %s No usage recorded yet.\n", cliui.DimStyle.Render("●"))
		return
	}

	table := cliui.NewTable("time", "model", "mode", "prompt", "completion", "total", "outcome", "duration")
	for _, r := range records {
		mode := "blocking"
		if r.Streaming {
			mode = "stream"
		}
		table.AddRow(
			r.CreatedAt.Local().Format(timeLayout),
			r.Model,
			mode,
			strconv.Itoa(r.PromptTokens),
			strconv.Itoa(r.CompletionTokens),
			strconv.Itoa(r.TotalTokens),
			r.Outcome,
			cliui.FormatDuration(time.Duration(r.DurationMs)*time.Millisecond),
		)
	}
	table.Fprint(out)
}

func printSummary(out io.Writer, summary *storage.Summary) {
	fmt.Fprintf(out, "\n  %s %s   %s %s\n\n",
		cliui.KeyStyle.Render("Calls:"),
		cliui.ValueStyle.Render(strconv.FormatInt(summary.Calls, 10)),
		cliui.KeyStyle.Render("Tokens:"),
		cliui.ValueStyle.Render(strconv.FormatInt(summary.TotalTokens, 10)),
	)

	if len(summary.ByModel) == 0 {
		return
	}

	models := make([]string, 0, len(summary.ByModel))
	for m := range summary.ByModel {
		models = append(models, m)
	}
	slices.Sort(models)

	table := cliui.NewTable("model", "calls", "prompt", "completion", "total")
	for _, m := range models {
		s := summary.ByModel[m]
		table.AddRow(
			m,
			strconv.FormatInt(s.Calls, 10),
			strconv.FormatInt(s.PromptTokens, 10),
			strconv.FormatInt(s.CompletionTokens, 10),
			strconv.FormatInt(s.TotalTokens, 10),
		)
	}
	table.Fprint(out)
}
