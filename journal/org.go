package journal

import (
	"io"
	"text/template"
	"time"
)

type orgView struct {
	Run    RunRecord
	Trades []TradeRecord
}

var orgFuncs = template.FuncMap{
	"pct": func(x float64) float64 { return x * 100.0 },
	"day": func(t time.Time) string { return t.UTC().Format("2006-01-02") },
	"stamp": func(t time.Time) string {
		return t.UTC().Format("2006-01-02 Mon 15:04")
	},
}

var orgTemplate = template.Must(template.New("run").Funcs(orgFuncs).Parse(RunOrgTemplate))

// WriteOrg renders a run and its trades as an Org-mode entry.
func WriteOrg(w io.Writer, run RunRecord, trades []TradeRecord) error {
	return orgTemplate.Execute(w, orgView{Run: run, Trades: trades})
}

const RunOrgTemplate = `* {{.Run.Kind}}: {{.Run.Strategy}} {{.Run.Symbol}}
:PROPERTIES:
:RUN_ID:      {{.Run.RunID}}
:STRATEGY:    {{.Run.Strategy}}
:SYMBOL:      {{.Run.Symbol}}
:START_DATE:  {{day .Run.Start}}
:END_DATE:    {{day .Run.End}}
:START_VAL:   {{printf "%.2f" .Run.InitialValue}}
:END_VAL:     {{printf "%.2f" .Run.FinalValue}}
:RETURN_PCT:  {{printf "%.2f" (pct .Run.TotalReturn)}}
:MAX_DD_PCT:  {{printf "%.2f" (pct .Run.MaxDrawdown)}}
:RATIO:       {{printf "%.4f" .Run.Ratio}}
:TRADES:      {{.Run.Trades}}
:REJECTIONS:  {{.Run.Rejections}}
:CREATED:     [{{stamp .Run.Created}}]
:END:
{{- if .Trades }}

** Trades
| # | Time | Action | Qty | Price | Realized P/L |
|---+------+--------+-----+-------+--------------|
{{- range .Trades }}
| {{.Seq}} | {{.Time.UTC.Format "2006-01-02 15:04:05"}} | {{.Action}} | {{printf "%g" .Quantity}} | {{printf "%.2f" .Price}} | {{printf "%.2f" .RealizedPL}} |
{{- end }}
{{- end }}
`
