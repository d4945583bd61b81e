package live

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/gorilla/websocket"
	"github.com/noahterminal/trader/internal/logging"
	"github.com/noahterminal/trader/market"
	"go.uber.org/zap"
)

const (
	defaultReadTimeout  = 30 * time.Second
	defaultPingInterval = 15 * time.Second
	defaultMaxBackoff   = 30 * time.Second
)

// WebSocketStream reads JSON market events from a websocket:
//
//	{"symbol":"BTC","timestamp":"2024-01-02T15:04:05Z","price":42000.5}
//
// sma_short and sma_long are optional. Events without a timestamp are
// stamped on arrival. Undecodable messages are logged and skipped. The
// stream reconnects with exponential backoff until ctx is cancelled.
type WebSocketStream struct {
	URL    string
	Logger *zap.Logger

	ReadTimeout  time.Duration
	PingInterval time.Duration
	MaxBackoff   time.Duration

	now func() time.Time
}

func NewWebSocketStream(url string, log *zap.Logger) *WebSocketStream {
	return &WebSocketStream{
		URL:          url,
		Logger:       logging.OrNop(log),
		ReadTimeout:  defaultReadTimeout,
		PingInterval: defaultPingInterval,
		MaxBackoff:   defaultMaxBackoff,
		now:          time.Now,
	}
}

func (s *WebSocketStream) log() *zap.Logger { return logging.OrNop(s.Logger) }

func (s *WebSocketStream) Run(ctx context.Context, out chan<- market.Event) error {
	if s.URL == "" {
		return fmt.Errorf("live: websocket stream requires a url")
	}

	backoff := time.Second
	maxBackoff := s.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = defaultMaxBackoff
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := s.consume(ctx, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.log().Warn("market stream disconnected, retrying", zap.Error(err), zap.Duration("backoff", backoff))
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff = time.Duration(math.Min(float64(maxBackoff), float64(backoff)*1.8))
	}
}

func (s *WebSocketStream) consume(ctx context.Context, out chan<- market.Event) error {
	readTimeout := s.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}
	pingEvery := s.PingInterval
	if pingEvery <= 0 {
		pingEvery = defaultPingInterval
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	s.log().Info("connected market stream", zap.String("url", s.URL))

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(pingEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					s.log().Warn("market stream ping failed", zap.Error(err))
					return
				}
			case <-pingCtx.Done():
				// unblocks ReadMessage on shutdown
				_ = conn.Close()
				return
			}
		}
	}()

	now := s.now
	if now == nil {
		now = time.Now
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		var ev market.Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			s.log().Warn("failed to decode market event", zap.Error(err))
			continue
		}
		if ev.Time.IsZero() {
			ev.Time = now().UTC()
		}
		if err := ev.Validate(); err != nil {
			s.log().Warn("dropping invalid market event", zap.Error(err))
			continue
		}

		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
