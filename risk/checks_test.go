package risk

import (
	"errors"
	"testing"

	"github.com/noahterminal/trader/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate_FixedOrder(t *testing.T) {
	t.Parallel()

	limits := DefaultLimits()

	tests := []struct {
		name     string
		qty      float64
		counters Counters
		want     Code
	}{
		{"accept", 0.1, Counters{}, ""},
		{"size", 0.5, Counters{}, PositionSizeExceeded},
		{"size wins over everything", 0.5, Counters{DailyLosses: 1, TradesThisHour: 99}, PositionSizeExceeded},
		{"daily loss at limit", 0.05, Counters{DailyLosses: 0.02}, DailyLossLimitExceeded},
		{"daily loss wins over hourly", 0.05, Counters{DailyLosses: 0.03, TradesThisHour: 10}, DailyLossLimitExceeded},
		{"hourly at limit", 0.05, Counters{TradesThisHour: 10}, HourlyTradeLimitExceeded},
		{"hourly below limit", 0.05, Counters{DailyLosses: 0.019, TradesThisHour: 9}, ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := Evaluate(market.Signal{Action: market.Buy, Symbol: "BTC", Quantity: tt.qty}, tt.counters, limits)
			if tt.want == "" {
				assert.True(t, d.Allowed)
				assert.NoError(t, d.Err())
				return
			}
			require.False(t, d.Allowed)
			require.NotNil(t, d.Violation)
			assert.Equal(t, tt.want, d.Violation.Code)
			assert.True(t, errors.Is(d.Err(), ErrRejected))
		})
	}
}

func TestLimitsValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, DefaultLimits().Validate())
	assert.Error(t, Limits{MaxDailyLoss: 0.1, MaxTradesPerHour: 1}.Validate())
	assert.Error(t, Limits{MaxPositionSize: 1, MaxDailyLoss: 2, MaxTradesPerHour: 1}.Validate())
	assert.Error(t, Limits{MaxPositionSize: 1, MaxDailyLoss: 0.1}.Validate())
}
