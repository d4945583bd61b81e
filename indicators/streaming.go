package indicators

import "fmt"

// SMA is a streaming simple moving average backed by a ring buffer.
type SMA struct {
	period int
	window []float64
	next   int
	count  int
	sum    float64
}

var _ Indicator = (*SMA)(nil)

// NewSMA creates a simple moving average over period closes. A period below
// one is treated as one.
func NewSMA(period int) *SMA {
	if period < 1 {
		period = 1
	}
	return &SMA{
		period: period,
		window: make([]float64, period),
	}
}

func (m *SMA) Name() string {
	return fmt.Sprintf("SMA(%d)", m.period)
}

func (m *SMA) Warmup() int {
	return m.period
}

func (m *SMA) Reset() {
	clear(m.window)
	m.next = 0
	m.count = 0
	m.sum = 0
}

func (m *SMA) Update(close float64) {
	if m.count == m.period {
		m.sum -= m.window[m.next]
	} else {
		m.count++
	}
	m.window[m.next] = close
	m.sum += close
	m.next = (m.next + 1) % m.period
}

func (m *SMA) Ready() bool {
	return m.count >= m.period
}

// Value returns the average of the closes seen so far, capped at period.
// Callers that need a full window should check Ready.
func (m *SMA) Value() float64 {
	if m.count == 0 {
		return 0
	}
	return m.sum / float64(m.count)
}
