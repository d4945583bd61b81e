package risk

import (
	"fmt"
	"time"
)

// Limits is the risk configuration. It may be replaced at runtime through
// Gate.SetLimits.
type Limits struct {
	// MaxPositionSize caps the quantity a single signal may request.
	MaxPositionSize float64 `json:"max_position_size" yaml:"max_position_size"`

	// MaxDailyLoss is the accumulated loss fraction that halts trading for the day.
	MaxDailyLoss float64 `json:"max_daily_loss" yaml:"max_daily_loss"`

	// MaxTradesPerHour caps accepted trades per hourly window.
	MaxTradesPerHour int `json:"max_trades_per_hour" yaml:"max_trades_per_hour"`
}

// DefaultLimits returns 10% per trade, 2% daily loss and 10 trades per hour.
func DefaultLimits() Limits {
	return Limits{
		MaxPositionSize:  0.1,
		MaxDailyLoss:     0.02,
		MaxTradesPerHour: 10,
	}
}

func (l Limits) Validate() error {
	if l.MaxPositionSize <= 0 {
		return fmt.Errorf("risk.max_position_size must be positive")
	}
	if l.MaxDailyLoss <= 0 || l.MaxDailyLoss > 1 {
		return fmt.Errorf("risk.max_daily_loss must be between 0 and 1")
	}
	if l.MaxTradesPerHour <= 0 {
		return fmt.Errorf("risk.max_trades_per_hour must be positive")
	}
	return nil
}

// Counters is the state the gate evaluates signals against.
type Counters struct {
	DailyLosses    float64 `json:"daily_losses"`
	TradesThisHour int     `json:"trades_this_hour"`
}

const (
	HourWindow = time.Hour
	DayWindow  = 24 * time.Hour
)
