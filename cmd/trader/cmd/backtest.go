package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/noahterminal/trader/backtest"
	"github.com/noahterminal/trader/journal"
	"github.com/noahterminal/trader/strategies"
	"github.com/spf13/cobra"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a strategy over historical prices",
	Long: `Backtest replays a price CSV (time,symbol,close) through a strategy and
reports the resulting trades, portfolio history and performance.

Supported strategies:
  - noop: Does nothing (baseline test)
  - buy-once: Buys a fixed quantity at the first event and holds
  - ma-cross: Moving-average crossover with configurable windows

Example:
  trader backtest -d data/btc.csv -s ma-cross --short 20 --long 50`,
	RunE: runBacktest,
}

var (
	btData        string
	btStrategy    string
	btSymbol      string
	btFrom        string
	btTo          string
	btCash        float64
	btQuantity    float64
	btShort       int
	btLong        int
	btAllocation  float64
	btRollWindows bool
	btJournalType string
	btJournalPath string
	btJSON        bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	f := backtestCmd.Flags()
	f.StringVarP(&btData, "data", "d", "", "path to price CSV (time,symbol,close)")
	f.StringVarP(&btStrategy, "strategy", "s", "", "strategy name ("+strings.Join(strategies.Available(), ", ")+")")
	f.StringVar(&btSymbol, "symbol", "", "only replay events for this symbol")
	f.StringVar(&btFrom, "from", "", "first date to replay (YYYY-MM-DD or RFC3339)")
	f.StringVar(&btTo, "to", "", "replay events before this date")
	f.Float64VarP(&btCash, "cash", "b", 0, "initial cash")
	f.Float64VarP(&btQuantity, "quantity", "q", 0, "buy-once: quantity to buy")
	f.IntVar(&btShort, "short", 0, "ma-cross: short SMA window")
	f.IntVar(&btLong, "long", 0, "ma-cross: long SMA window")
	f.Float64Var(&btAllocation, "allocation", 0, "ma-cross: quantity per signal")
	f.BoolVar(&btRollWindows, "roll-windows", false, "roll risk windows on the event clock")
	f.StringVar(&btJournalType, "journal", "", "journal type (sqlite, csv, none)")
	f.StringVar(&btJournalPath, "journal-path", "", "journal database file or CSV directory")
	f.BoolVar(&btJSON, "json", false, "print the report as JSON")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	f := cmd.Flags()
	if f.Changed("data") {
		cfg.Backtest.Data = btData
	}
	if f.Changed("strategy") {
		cfg.Strategy.Name = btStrategy
	}
	if f.Changed("symbol") {
		cfg.Strategy.Symbol = btSymbol
	}
	if f.Changed("from") {
		cfg.Backtest.From = btFrom
	}
	if f.Changed("to") {
		cfg.Backtest.To = btTo
	}
	if f.Changed("cash") {
		cfg.Account.InitialCash = btCash
	}
	if f.Changed("quantity") {
		cfg.Strategy.Quantity = btQuantity
	}
	if f.Changed("short") {
		cfg.Strategy.ShortWindow = btShort
	}
	if f.Changed("long") {
		cfg.Strategy.LongWindow = btLong
	}
	if f.Changed("allocation") {
		cfg.Strategy.Allocation = btAllocation
	}
	if f.Changed("roll-windows") {
		cfg.Backtest.RollWindows = btRollWindows
	}
	if f.Changed("journal") {
		cfg.Journal.Type = btJournalType
	}
	if f.Changed("journal-path") {
		cfg.Journal.Path = btJournalPath
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Backtest.Data == "" {
		return fmt.Errorf("backtest: --data is required")
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	strat, err := strategies.New(cfg.Strategy.Name, cfg.Strategy.Params())
	if err != nil {
		return fmt.Errorf("strategy: %w", err)
	}

	from, to, err := cfg.Backtest.Range()
	if err != nil {
		return err
	}
	feed, err := backtest.NewCSVFeed(cfg.Backtest.Data, backtest.CSVOptions{
		From:        from,
		To:          to,
		ShortWindow: cfg.Strategy.ShortWindow,
		LongWindow:  cfg.Strategy.LongWindow,
	})
	if err != nil {
		return err
	}

	j, err := journal.Open(cfg.Journal.Type, cfg.Journal.Path)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	if j != nil {
		defer j.Close()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := &backtest.Runner{
		Feed:     feed,
		Strategy: strat,
		Symbol:   cfg.Strategy.Symbol,
		Options: backtest.Options{
			InitialCash: cfg.Account.InitialCash,
			Limits:      cfg.Risk,
			RollWindows: cfg.Backtest.RollWindows,
		},
		Journal: j,
		Logger:  log,
	}
	rep, err := r.Run(ctx)
	if err != nil {
		return fmt.Errorf("backtest: %w", err)
	}

	out := cmd.OutOrStdout()
	if btJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	rep.Print(out)
	return nil
}
