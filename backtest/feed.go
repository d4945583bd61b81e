package backtest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/noahterminal/trader/indicators"
	"github.com/noahterminal/trader/market"
)

// ErrMalformedStream is the only error that aborts a backtest.
var ErrMalformedStream = errors.New("backtest: malformed event stream")

// EventFeed yields market events one at a time, in time order.
// Implementations return (ok=false, err=nil) at EOF.
type EventFeed interface {
	Next() (ev market.Event, ok bool, err error)
	Close() error
}

// SliceFeed replays events from memory.
type SliceFeed struct {
	events []market.Event
	i      int
}

func NewSliceFeed(events []market.Event) *SliceFeed {
	return &SliceFeed{events: events}
}

func (f *SliceFeed) Next() (market.Event, bool, error) {
	if f.i >= len(f.events) {
		return market.Event{}, false, nil
	}
	ev := f.events[f.i]
	f.i++
	return ev, true, nil
}

func (f *SliceFeed) Close() error { return nil }

// CSVOptions controls CSV parsing and indicator derivation.
type CSVOptions struct {
	// Only events in [From, To) are returned when set.
	From time.Time
	To   time.Time

	// Windows for the derived SMAShort/SMALong fields.
	ShortWindow int
	LongWindow  int
}

// CSVFeed reads price rows:
//
//	time,symbol,close
//
// where time is RFC3339, RFC3339Nano, "2006-01-02 15:04:05" or "2006-01-02".
// A header row is optional. With a header, columns are found by name
// (time|timestamp|date, symbol|instrument|ticker, close|price), so
// OHLCV layouts work too. Empty rows are skipped. SMAShort/SMALong are
// filled from streaming averages per symbol once enough rows were seen.
type CSVFeed struct {
	c    io.Closer
	r    *csv.Reader
	opts CSVOptions

	sawFirst bool
	cols     columns
	line     int

	short map[string]*indicators.SMA
	long  map[string]*indicators.SMA
}

type columns struct{ time, symbol, close int }

var positional = columns{time: 0, symbol: 1, close: 2}

func NewCSVFeed(path string, opts CSVOptions) (*CSVFeed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	feed := NewCSVFeedReader(f, opts)
	feed.c = f
	return feed, nil
}

// NewCSVFeedReader reads rows from r. Closing the feed does not close r.
func NewCSVFeedReader(r io.Reader, opts CSVOptions) *CSVFeed {
	if opts.ShortWindow <= 0 {
		opts.ShortWindow = 50
	}
	if opts.LongWindow <= 0 {
		opts.LongWindow = 200
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	return &CSVFeed{
		r:     cr,
		opts:  opts,
		cols:  positional,
		short: make(map[string]*indicators.SMA),
		long:  make(map[string]*indicators.SMA),
	}
}

func (f *CSVFeed) Close() error {
	if f.c != nil {
		return f.c.Close()
	}
	return nil
}

func (f *CSVFeed) Next() (market.Event, bool, error) {
	for {
		row, err := f.r.Read()
		if err == io.EOF {
			return market.Event{}, false, nil
		}
		f.line++
		if err != nil {
			return market.Event{}, false, fmt.Errorf("%w: line %d: %v", ErrMalformedStream, f.line, err)
		}
		if blank(row) {
			continue
		}

		if !f.sawFirst {
			f.sawFirst = true
			if cols, ok := header(row); ok {
				f.cols = cols
				continue
			}
		}

		ev, err := f.parse(row)
		if err != nil {
			return market.Event{}, false, fmt.Errorf("%w: line %d: %v", ErrMalformedStream, f.line, err)
		}

		// Averages see every row so that windows are warm at From.
		f.derive(&ev)
		if !inRange(ev.Time, f.opts.From, f.opts.To) {
			continue
		}
		return ev, true, nil
	}
}

func (f *CSVFeed) parse(row []string) (market.Event, error) {
	need := max(f.cols.time, f.cols.symbol, f.cols.close) + 1
	if len(row) < need {
		return market.Event{}, fmt.Errorf("want at least %d columns, got %d", need, len(row))
	}

	t, err := parseTime(strings.TrimSpace(row[f.cols.time]))
	if err != nil {
		return market.Event{}, err
	}
	sym := strings.TrimSpace(row[f.cols.symbol])
	if sym == "" {
		return market.Event{}, fmt.Errorf("empty symbol")
	}
	px, err := strconv.ParseFloat(strings.TrimSpace(row[f.cols.close]), 64)
	if err != nil {
		return market.Event{}, fmt.Errorf("bad close %q: %w", row[f.cols.close], err)
	}

	ev := market.Event{Symbol: sym, Time: t, Close: px}
	if err := ev.Validate(); err != nil {
		return market.Event{}, err
	}
	return ev, nil
}

func (f *CSVFeed) derive(ev *market.Event) {
	s, ok := f.short[ev.Symbol]
	if !ok {
		s = indicators.NewSMA(f.opts.ShortWindow)
		f.short[ev.Symbol] = s
	}
	l, ok := f.long[ev.Symbol]
	if !ok {
		l = indicators.NewSMA(f.opts.LongWindow)
		f.long[ev.Symbol] = l
	}
	s.Update(ev.Close)
	l.Update(ev.Close)
	if s.Ready() && l.Ready() {
		ev.SMAShort = s.Value()
		ev.SMALong = l.Value()
	}
}

func header(row []string) (columns, bool) {
	cols := columns{time: -1, symbol: -1, close: -1}
	for i, name := range row {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "time", "timestamp", "date":
			cols.time = i
		case "symbol", "instrument", "ticker":
			cols.symbol = i
		case "close", "price":
			cols.close = i
		}
	}
	if cols.time < 0 {
		return columns{}, false
	}
	if cols.symbol < 0 || cols.close < 0 {
		// a header we only half understand falls back to position
		return positional, true
	}
	return cols, true
}

var timeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("bad time %q", s)
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}
