package backtest

import (
	"fmt"
	"io"
	"time"

	"github.com/noahterminal/trader/kernel"
	"github.com/noahterminal/trader/ledger"
	"github.com/noahterminal/trader/market"
	"github.com/noahterminal/trader/perf"
)

// Report is the result of one run. It carries no wall-clock or random
// values, so identical inputs produce identical reports.
type Report struct {
	Strategy string    `json:"strategy_name"`
	Symbol   string    `json:"symbol"`
	Start    time.Time `json:"start_date"`
	End      time.Time `json:"end_date"`
	Events   int       `json:"events"`

	InitialValue   float64 `json:"initial_value"`
	FinalValue     float64 `json:"final_value"`
	TotalReturn    float64 `json:"total_return"`
	TotalReturnPct string  `json:"total_return_pct"`
	MaxDrawdown    float64 `json:"max_drawdown"`
	MaxDrawdownPct string  `json:"max_drawdown_pct"`
	SharpeRatio    float64 `json:"sharpe_ratio"`

	TotalTrades      int             `json:"total_trades"`
	Trades           []ledger.Trade  `json:"trades"`
	PortfolioHistory []perf.Snapshot `json:"portfolio_history"`
	Rejections       []Rejection     `json:"rejections"`
}

// Rejection is a signal that did not become a trade.
type Rejection struct {
	Time   time.Time     `json:"timestamp"`
	Signal market.Signal `json:"signal"`
	Reason string        `json:"reason"`
	Detail string        `json:"detail,omitempty"`
}

func rejectionOf(o kernel.Outcome) Rejection {
	return Rejection{Time: o.Time, Signal: o.Signal, Reason: o.Reason, Detail: o.Detail}
}

func (r Report) Print(w io.Writer) {
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Backtest Result")
	fmt.Fprintln(w, "==================================================")

	fmt.Fprintf(w, "Strategy:      %s\n", r.Strategy)
	fmt.Fprintf(w, "Symbol:        %s\n", r.Symbol)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Period")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start:         %s\n", r.Start.Format(time.RFC3339))
	fmt.Fprintf(w, "End:           %s\n", r.End.Format(time.RFC3339))
	fmt.Fprintf(w, "Events:        %d\n", r.Events)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trade Statistics")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Trades:        %d\n", r.TotalTrades)
	fmt.Fprintf(w, "Rejected:      %d\n", len(r.Rejections))

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Account Performance")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start Value:   %.2f\n", r.InitialValue)
	fmt.Fprintf(w, "End Value:     %.2f\n", r.FinalValue)
	fmt.Fprintf(w, "Net P/L:       %.2f\n", r.FinalValue-r.InitialValue)
	fmt.Fprintf(w, "Return:        %s\n", r.TotalReturnPct)
	fmt.Fprintf(w, "Max Drawdown:  %s\n", r.MaxDrawdownPct)
	fmt.Fprintf(w, "Sharpe Ratio:  %.4f\n", r.SharpeRatio)

	if len(r.Rejections) > 0 {
		counts := map[string]int{}
		var order []string
		for _, rj := range r.Rejections {
			if counts[rj.Reason] == 0 {
				order = append(order, rj.Reason)
			}
			counts[rj.Reason]++
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Rejections")
		fmt.Fprintln(w, "--------------------------------------------------")
		for _, reason := range order {
			fmt.Fprintf(w, "%-28s %d\n", reason, counts[reason])
		}
	}
}
