// Package service hosts the monitor orchestration: one goroutine-safe
// owner for the order book, the footprint aggregator, and the signal
// analyzer, fed by decoded events and drained by background workers.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/marketglass/footprintd/internal/book"
	"github.com/marketglass/footprintd/internal/domain"
	"github.com/marketglass/footprintd/internal/footprint"
	"github.com/marketglass/footprintd/internal/notify"
	"github.com/marketglass/footprintd/internal/persist"
	"github.com/marketglass/footprintd/internal/signal"
)

// MonitorConfig holds the orchestration knobs.
type MonitorConfig struct {
	Symbol      string
	Granularity time.Duration

	// ImbalanceTail is how close to the window's end the once-per-window
	// imbalance scan runs.
	ImbalanceTail time.Duration

	// PruneRange and PruneInterval control periodic trimming of book levels
	// far from the last traded price.
	PruneRange    float64
	PruneInterval time.Duration

	// RefreshInterval is how often presentation snapshots are pushed to the
	// cache.
	RefreshInterval time.Duration

	// SignalChannel and SignalStream name the pub/sub channel and the
	// durable stream signals are published to.
	SignalChannel string
	SignalStream  string
}

// MonitorService owns all live market state. Every mutation happens under a
// single ingestion mutex; storage and network I/O always run outside it so
// a slow backend can never stall the feed.
type MonitorService struct {
	cfg      MonitorConfig
	book     *book.Book
	agg      *footprint.Aggregator
	analyzer *signal.Analyzer
	queue    *persist.Queue       // optional, nil disables persistence
	cache    domain.SnapshotCache // optional
	bus      domain.SignalBus     // optional
	notifier *notify.Notifier     // optional
	logger   *slog.Logger

	mu               sync.Mutex
	zones            []domain.SupportResistanceLevel
	imbalanceChecked bool
	lastReversal     time.Time // window start of the last published reversal
}

// NewMonitorService wires the monitor together. cache, bus, and notifier
// may be nil; the corresponding outputs are then skipped.
func NewMonitorService(
	cfg MonitorConfig,
	bk *book.Book,
	agg *footprint.Aggregator,
	analyzer *signal.Analyzer,
	queue *persist.Queue,
	cache domain.SnapshotCache,
	bus domain.SignalBus,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *MonitorService {
	return &MonitorService{
		cfg:      cfg,
		book:     bk,
		agg:      agg,
		analyzer: analyzer,
		queue:    queue,
		cache:    cache,
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "monitor")),
	}
}

// outbox collects side effects computed under the ingestion lock so the
// actual I/O happens after the lock is released.
type outbox struct {
	imbalance *domain.ImbalanceRun
	reversal  *domain.ReversalSignal
}

// HandleEvent routes one decoded feed event into the live state. It is the
// supervisor's message handler and must never block on storage or network.
func (s *MonitorService) HandleEvent(ctx context.Context, ev domain.Event) {
	var out outbox

	s.mu.Lock()
	switch e := ev.(type) {
	case domain.DepthEvent:
		s.applyDepth(e)
	case domain.TradeEvent:
		s.applyTrade(e, &out)
	default:
		s.logger.Warn("unknown event type", slog.Any("event", ev))
	}
	s.mu.Unlock()

	s.flushOutbox(ctx, out)
}

// applyDepth folds a depth diff into the book. Caller holds the lock.
func (s *MonitorService) applyDepth(e domain.DepthEvent) {
	for _, lvl := range e.Bids {
		s.book.Update(lvl.Price, lvl.Quantity, domain.SideBid)
	}
	for _, lvl := range e.Asks {
		s.book.Update(lvl.Price, lvl.Quantity, domain.SideAsk)
	}
}

// applyTrade folds a trade into the aggregator, archiving the finished
// window when it rolls over and running the signal checks. Caller holds the
// lock.
func (s *MonitorService) applyTrade(e domain.TradeEvent, out *outbox) {
	s.book.SetLastTrade(e.Price)

	archived, archivedTrades := s.agg.OnTrade(e)
	if archived != nil {
		s.enqueueArchive(archived, archivedTrades)
		s.zones = s.analyzer.SupportResistance(s.agg.HistorySlice())
		s.imbalanceChecked = false
	}

	current := s.agg.Current()
	if current == nil {
		return
	}

	// The imbalance scan runs once per window, near its close, when the
	// flows have mostly settled.
	if !s.imbalanceChecked && e.Time.After(current.Start.Add(s.cfg.Granularity-s.cfg.ImbalanceTail)) {
		s.imbalanceChecked = true
		out.imbalance = s.analyzer.ConsecutiveImbalance(current)
	}

	// One reversal publication per window keeps a burst of matching trades
	// from re-announcing the same rejection.
	if sig := s.analyzer.ReversalSignal(current, s.zones); sig != nil {
		if !current.Start.Equal(s.lastReversal) {
			s.lastReversal = current.Start
			out.reversal = sig
		}
	}
}

// enqueueArchive pushes the finished window and its raw trades onto the
// persistence queue. Payloads are serialized here so the drain worker never
// touches live state. Caller holds the lock.
func (s *MonitorService) enqueueArchive(win *domain.FootprintWindow, trades []domain.TradeEvent) {
	if s.queue == nil {
		return
	}
	now := time.Now().UTC()

	winPayload, err := json.Marshal(win)
	if err != nil {
		s.logger.Error("marshal archived window", slog.String("error", err.Error()))
	} else {
		s.enqueue(domain.ArchiveRecord{
			Kind:        domain.RecordWindow,
			Symbol:      s.cfg.Symbol,
			WindowStart: win.Start,
			Payload:     winPayload,
			EnqueuedAt:  now,
		})
	}

	if len(trades) == 0 {
		return
	}
	tradePayload, err := json.Marshal(trades)
	if err != nil {
		s.logger.Error("marshal archived trades", slog.String("error", err.Error()))
		return
	}
	s.enqueue(domain.ArchiveRecord{
		Kind:        domain.RecordTrades,
		Symbol:      s.cfg.Symbol,
		WindowStart: win.Start,
		Payload:     tradePayload,
		EnqueuedAt:  now,
	})
}

func (s *MonitorService) enqueue(rec domain.ArchiveRecord) {
	if !s.queue.Enqueue(rec) {
		s.logger.Warn("persistence queue full, oldest record dropped",
			slog.String("kind", string(rec.Kind)),
			slog.Uint64("dropped_total", s.queue.Dropped()),
		)
	}
}

// flushOutbox performs the publishes and alerts computed under the lock.
func (s *MonitorService) flushOutbox(ctx context.Context, out outbox) {
	if out.imbalance != nil {
		s.publishSignal(ctx, "imbalance", out.imbalance)
		s.alert(ctx, "imbalance",
			fmt.Sprintf("%s imbalance", s.cfg.Symbol),
			fmt.Sprintf("%s-side run from %.2f across %d levels",
				out.imbalance.Direction, out.imbalance.Prices[0], len(out.imbalance.Prices)),
		)
	}
	if out.reversal != nil {
		s.publishSignal(ctx, "reversal", out.reversal)
		s.alert(ctx, "reversal",
			fmt.Sprintf("%s reversal %s", s.cfg.Symbol, out.reversal.Action),
			fmt.Sprintf("price %.2f rejecting %s zone at %.2f (ratio %.2f)",
				out.reversal.Price, out.reversal.ZoneKind, out.reversal.ZonePrice, out.reversal.ImbalanceRatio),
		)
	}
}

// signalEnvelope is the wire form of a published signal.
type signalEnvelope struct {
	Kind    string      `json:"kind"`
	Symbol  string      `json:"symbol"`
	Payload interface{} `json:"payload"`
	Time    time.Time   `json:"time"`
}

func (s *MonitorService) publishSignal(ctx context.Context, kind string, payload interface{}) {
	if s.bus == nil {
		return
	}
	body, err := json.Marshal(signalEnvelope{
		Kind:    kind,
		Symbol:  s.cfg.Symbol,
		Payload: payload,
		Time:    time.Now().UTC(),
	})
	if err != nil {
		s.logger.Error("marshal signal", slog.String("error", err.Error()))
		return
	}
	if err := s.bus.Publish(ctx, s.cfg.SignalChannel, body); err != nil {
		s.logger.Error("publish signal", slog.String("error", err.Error()))
	}
	if err := s.bus.StreamAppend(ctx, s.cfg.SignalStream, body); err != nil {
		s.logger.Error("append signal stream", slog.String("error", err.Error()))
	}
}

func (s *MonitorService) alert(ctx context.Context, kind, title, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Alert(ctx, kind, title, message); err != nil {
		s.logger.Error("alert delivery", slog.String("error", err.Error()))
	}
}

// CurrentFootprint returns a copy of the live window, or nil before the
// first trade.
func (s *MonitorService) CurrentFootprint() *domain.FootprintWindow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agg.Current()
}

// HistoricalFootprint returns a copy of the i-th most recent archived
// window (0 = newest), or nil when out of range.
func (s *MonitorService) HistoricalFootprint(i int) *domain.FootprintWindow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agg.History(i)
}

// CurrentOrderBook returns a deep-copied book snapshot.
func (s *MonitorService) CurrentOrderBook() domain.OrderBookSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.Snapshot()
}

// Zones returns a copy of the latest support/resistance zones.
func (s *MonitorService) Zones() []domain.SupportResistanceLevel {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.SupportResistanceLevel, len(s.zones))
	copy(out, s.zones)
	return out
}

// RunMaintenance periodically prunes book levels far from the last traded
// price. It returns when the context is cancelled.
func (s *MonitorService) RunMaintenance(ctx context.Context) error {
	if s.cfg.PruneInterval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(s.cfg.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.mu.Lock()
			if ref, ok := s.book.LastTrade(); ok {
				before := s.book.Len()
				s.book.Prune(ref, s.cfg.PruneRange)
				if removed := before - s.book.Len(); removed > 0 {
					s.logger.Debug("pruned book levels",
						slog.Int("removed", removed),
						slog.Float64("ref", ref),
					)
				}
			}
			s.mu.Unlock()
		}
	}
}

// RunRefresh periodically publishes the order book and live footprint to
// the snapshot cache. It returns when the context is cancelled, and is a
// no-op when no cache is configured.
func (s *MonitorService) RunRefresh(ctx context.Context) error {
	if s.cache == nil || s.cfg.RefreshInterval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(s.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// Copies are taken under the lock; the cache writes are not.
			s.mu.Lock()
			snap := s.book.Snapshot()
			win := s.agg.Current()
			s.mu.Unlock()

			if err := s.cache.SetOrderBook(ctx, snap); err != nil {
				s.logger.Error("cache order book", slog.String("error", err.Error()))
			}
			if win != nil {
				if err := s.cache.SetFootprint(ctx, s.cfg.Symbol, win); err != nil {
					s.logger.Error("cache footprint", slog.String("error", err.Error()))
				}
			}
		}
	}
}
