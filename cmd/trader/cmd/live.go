package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/noahterminal/trader/intent"
	"github.com/noahterminal/trader/internal/telemetry"
	"github.com/noahterminal/trader/journal"
	"github.com/noahterminal/trader/kernel"
	"github.com/noahterminal/trader/ledger"
	"github.com/noahterminal/trader/live"
	"github.com/noahterminal/trader/perf"
	"github.com/noahterminal/trader/risk"
	"github.com/noahterminal/trader/strategies"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Run strategies against a live market stream",
	Long: `Live connects to a websocket that publishes JSON market events and runs
the configured strategies until interrupted. Accepted signals become signed
intents submitted to a simulated gateway.

Event format:
  {"symbol":"BTC","timestamp":"2024-01-02T15:04:05Z","price":42000.5}

Example:
  trader live --stream ws://localhost:8080/prices -s ma-cross -s buy-once`,
	RunE: runLive,
}

var (
	lvStream      string
	lvStrategies  []string
	lvMetricsAddr string
	lvKey         string
	lvCash        float64
	lvJournalType string
	lvJournalPath string
)

func init() {
	rootCmd.AddCommand(liveCmd)

	f := liveCmd.Flags()
	f.StringVar(&lvStream, "stream", "", "websocket URL of the market event stream")
	f.StringSliceVarP(&lvStrategies, "strategy", "s", nil, "strategies to activate (repeatable)")
	f.StringVar(&lvMetricsAddr, "metrics-addr", "", "address for the Prometheus /metrics endpoint (empty disables)")
	f.StringVar(&lvKey, "key", "", "hex secp256k1 signing key (empty generates one)")
	f.Float64VarP(&lvCash, "cash", "b", 0, "initial cash")
	f.StringVar(&lvJournalType, "journal", "", "journal type (sqlite, csv, none)")
	f.StringVar(&lvJournalPath, "journal-path", "", "journal database file or CSV directory")
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	f := cmd.Flags()
	if f.Changed("stream") {
		cfg.Live.StreamURL = lvStream
	}
	if f.Changed("metrics-addr") {
		cfg.Live.MetricsAddr = lvMetricsAddr
	}
	if f.Changed("key") {
		cfg.Live.KeyHex = lvKey
	}
	if f.Changed("cash") {
		cfg.Account.InitialCash = lvCash
	}
	if f.Changed("journal") {
		cfg.Journal.Type = lvJournalType
	}
	if f.Changed("journal-path") {
		cfg.Journal.Path = lvJournalPath
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Live.StreamURL == "" {
		return fmt.Errorf("live: --stream is required")
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	names := lvStrategies
	if len(names) == 0 {
		names = []string{cfg.Strategy.Name}
	}
	reg := strategies.NewRegistry()
	for _, name := range names {
		st, err := strategies.New(name, cfg.Strategy.Params())
		if err != nil {
			return fmt.Errorf("strategy: %w", err)
		}
		if err := reg.Register(st); err != nil {
			return err
		}
		if err := reg.Activate(st.Name()); err != nil {
			return err
		}
	}

	signer, err := intent.NewKeySigner(cfg.Live.KeyHex)
	if err != nil {
		return fmt.Errorf("signing key: %w", err)
	}
	log.Info("signing intents", zap.String("public_key", signer.PublicKey()))

	sess := kernel.NewSession(
		ledger.New(cfg.Account.InitialCash),
		risk.NewGate(cfg.Risk),
		perf.NewCollector(),
		kernel.WithClock(time.Now),
	)
	gw := intent.NewSimGateway(intent.WithRejectedSymbols(cfg.Live.RejectSymbols...))
	pipe := intent.NewPipeline(reg, sess, signer, gw, intent.WithLogger(log))
	proc := kernel.NewProcessor(sess, kernel.WithPipeline(pipe), kernel.WithLogger(log))

	j, err := journal.Open(cfg.Journal.Type, cfg.Journal.Path)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	if j != nil {
		defer j.Close()
	}

	promReg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(promReg)
	if cfg.Live.MetricsAddr != "" {
		srv := telemetry.Serve(cfg.Live.MetricsAddr, promReg)
		log.Info("serving metrics", zap.String("addr", cfg.Live.MetricsAddr))
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	ex := &live.Executor{
		Processor: proc,
		Registry:  reg,
		Stream:    live.NewWebSocketStream(cfg.Live.StreamURL, log),
		Journal:   j,
		Metrics:   metrics,
		Logger:    log,
		OnOutcome: func(o kernel.Outcome) {
			if o.Trade != nil {
				fmt.Fprintf(out, "%s  %-10s %-4s %s %s @ %s\n",
					o.Time.Format(time.RFC3339), o.Strategy, o.Trade.Action,
					o.Trade.Quantity, o.Trade.Symbol, o.Trade.Price)
				return
			}
			fmt.Fprintf(out, "%s  %-10s %-8s %s (%s)\n",
				o.Time.Format(time.RFC3339), o.Strategy, o.Status, o.Signal, o.Reason)
		},
	}

	sum, err := ex.Run(ctx)

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Session:       %s\n", sum.SessionID)
	fmt.Fprintf(out, "Events:        %d (%d dropped)\n", sum.Events, sum.Dropped)
	fmt.Fprintf(out, "Trades:        %d\n", sum.Trades)
	fmt.Fprintf(out, "Rejected:      %d\n", sum.Rejections)
	fmt.Fprintf(out, "End Value:     %.2f\n", sum.Stats.FinalValue)
	fmt.Fprintf(out, "Return:        %s\n", perf.Percent(sum.Stats.TotalReturn))
	fmt.Fprintf(out, "Max Drawdown:  %s\n", perf.Percent(sum.Stats.MaxDrawdown))
	return err
}
