// Package feed connects to the exchange WebSocket stream, decodes inbound
// messages into domain events, and keeps the connection alive through
// heartbeat monitoring and exponential-backoff reconnection.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/marketglass/footprintd/internal/domain"
)

// State is the supervisor's connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateStopped      State = "stopped"
)

const (
	handshakeTimeout = 15 * time.Second
	writeWait        = 10 * time.Second
)

// Handler receives every successfully decoded event, in arrival order.
type Handler func(ctx context.Context, ev domain.Event)

// Config holds the supervisor's connection parameters.
type Config struct {
	// URL is the raw stream endpoint, e.g. "wss://fstream.binance.com/ws".
	URL string
	// Symbol is the lowercase instrument, e.g. "btcusdt".
	Symbol string
	// DepthSpeed is the depth stream update interval suffix, e.g. "100ms".
	DepthSpeed string
	// HeartbeatInterval is the maximum silence tolerated before the
	// connection is considered dead and torn down.
	HeartbeatInterval time.Duration
	// ReconnectFloor and ReconnectCeiling bound the exponential backoff.
	ReconnectFloor   time.Duration
	ReconnectCeiling time.Duration
}

// Supervisor owns the transport handle and drives the connection state
// machine: Disconnected -> Connecting -> Connected, back to Disconnected on
// close or heartbeat timeout, and Stopped only on shutdown. Reconnection is
// an explicit loop with backoff state on the supervisor, not recursion.
type Supervisor struct {
	cfg     Config
	handler Handler
	logger  *slog.Logger

	mu             sync.Mutex
	state          State
	reconnectDelay time.Duration

	// lastMessage is the unix-nano arrival time of the last inbound frame.
	lastMessage atomic.Int64
}

// NewSupervisor creates a supervisor that dispatches decoded events to
// handler.
func NewSupervisor(cfg Config, handler Handler, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		cfg:            cfg,
		handler:        handler,
		logger:         logger.With(slog.String("component", "feed")),
		state:          StateDisconnected,
		reconnectDelay: cfg.ReconnectFloor,
	}
}

// State returns the current connection state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// ReconnectDelay returns the current backoff delay.
func (s *Supervisor) ReconnectDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconnectDelay
}

// bumpBackoff doubles the reconnect delay up to the ceiling.
func (s *Supervisor) bumpBackoff() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconnectDelay *= 2
	if s.reconnectDelay > s.cfg.ReconnectCeiling {
		s.reconnectDelay = s.cfg.ReconnectCeiling
	}
}

// resetBackoff restores the delay floor after a healthy message.
func (s *Supervisor) resetBackoff() {
	s.mu.Lock()
	s.reconnectDelay = s.cfg.ReconnectFloor
	s.mu.Unlock()
}

// streams returns the stream names subscribed on every (re)connect.
func (s *Supervisor) streams() []string {
	symbol := strings.ToLower(s.cfg.Symbol)
	return []string{
		symbol + "@aggTrade",
		symbol + "@depth@" + s.cfg.DepthSpeed,
	}
}

// Run connects and processes messages until ctx is cancelled. Connection
// failures and dropped connections are retried indefinitely with exponential
// backoff; Run only returns on shutdown.
func (s *Supervisor) Run(ctx context.Context) error {
	defer s.setState(StateStopped)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.setState(StateConnecting)
		err := s.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.setState(StateDisconnected)

		delay := s.ReconnectDelay()
		s.logger.Warn("feed disconnected, reconnecting",
			slog.String("error", errString(err)),
			slog.Duration("delay", delay),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		s.bumpBackoff()
	}
}

// runConnection dials, subscribes, and reads frames until the connection
// drops, goes silent past the heartbeat interval, or ctx is cancelled.
func (s *Supervisor) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("feed: dial %s: %w", s.cfg.URL, err)
	}
	defer conn.Close()

	if err := s.subscribe(conn); err != nil {
		return err
	}
	s.setState(StateConnected)
	s.lastMessage.Store(time.Now().UnixNano())
	s.logger.Info("feed connected",
		slog.String("symbol", s.cfg.Symbol),
		slog.Int("streams", len(s.streams())),
	)

	// The watchdog force-closes the connection when the feed goes silent or
	// the context is cancelled, which unblocks ReadMessage below.
	watchdogDone := make(chan struct{})
	defer close(watchdogDone)
	go s.watchdog(ctx, conn, watchdogDone)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("feed: read: %w", err)
		}
		s.lastMessage.Store(time.Now().UnixNano())

		ev, err := DecodeMessage(raw)
		if err != nil {
			// Bad frames are dropped without touching connection state.
			s.logger.Debug("discarding malformed message", slog.String("error", err.Error()))
			continue
		}
		if ev == nil {
			continue
		}
		s.resetBackoff()
		s.handler(ctx, ev)
	}
}

// subscribe sends one SUBSCRIBE frame covering the trade and depth streams.
func (s *Supervisor) subscribe(conn *websocket.Conn) error {
	cmd := wsCommand{
		Method: "SUBSCRIBE",
		Params: s.streams(),
		ID:     time.Now().UnixMilli(),
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(cmd); err != nil {
		return fmt.Errorf("feed: subscribe: %w", err)
	}
	return nil
}

// watchdog runs the heartbeat check on its own timer, independent of message
// arrival. It closes the connection on silence or shutdown.
func (s *Supervisor) watchdog(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait),
			)
			conn.Close()
			return
		case <-ticker.C:
			silent := time.Since(time.Unix(0, s.lastMessage.Load()))
			if silent > s.cfg.HeartbeatInterval {
				s.logger.Warn("heartbeat timeout, closing connection",
					slog.Duration("silent", silent),
				)
				conn.Close()
				return
			}
		}
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
