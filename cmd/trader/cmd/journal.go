package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/noahterminal/trader/journal"
	"github.com/noahterminal/trader/perf"
	"github.com/spf13/cobra"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query trade journal data",
	Long: `Query and display records from a SQLite journal.

Subcommands:
  runs       - List recorded backtests and live sessions
  show       - Print a run and its trades as an Org-mode entry
  rejections - List the signals a run rejected

Examples:
  trader journal runs
  trader journal show 01HQ7Z3X9G5N2V8K4M6P0R1S2T`,
}

var journalRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runJournalRuns,
}

var journalShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print a run and its trades",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalShow,
}

var journalRejectionsCmd = &cobra.Command{
	Use:   "rejections <run-id>",
	Short: "List rejected and failed signals of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalRejections,
}

var journalDBPath string

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalRunsCmd)
	journalCmd.AddCommand(journalShowCmd)
	journalCmd.AddCommand(journalRejectionsCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./trader.sqlite", "path to SQLite journal DB")
}

func runJournalRuns(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	runs, err := j.ListRuns()
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tKIND\tSTRATEGY\tSYMBOL\tCREATED\tTRADES\tRETURN\tMAX DD")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.RunID, r.Kind, r.Strategy, r.Symbol,
			r.Created.Local().Format(time.DateTime), r.Trades,
			perf.Percent(r.TotalReturn), perf.Percent(r.MaxDrawdown))
	}
	return tw.Flush()
}

func runJournalShow(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	run, err := j.GetRun(args[0])
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	trades, err := j.ListTrades(run.RunID)
	if err != nil {
		return fmt.Errorf("list trades: %w", err)
	}
	return journal.WriteOrg(cmd.OutOrStdout(), run, trades)
}

func runJournalRejections(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	recs, err := j.ListRejections(args[0])
	if err != nil {
		return fmt.Errorf("list rejections: %w", err)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSTRATEGY\tSIGNAL\tSTATUS\tREASON\tDETAIL")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s %g %s\t%s\t%s\t%s\n",
			r.Time.UTC().Format(time.RFC3339), r.Strategy,
			r.Action, r.Quantity, r.Symbol, r.Status, r.Reason, r.Detail)
	}
	return tw.Flush()
}
