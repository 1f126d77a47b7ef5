package app

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/marketglass/footprintd/internal/book"
	"github.com/marketglass/footprintd/internal/config"
	"github.com/marketglass/footprintd/internal/domain"
	"github.com/marketglass/footprintd/internal/feed"
	"github.com/marketglass/footprintd/internal/footprint"
	"github.com/marketglass/footprintd/internal/notify"
	"github.com/marketglass/footprintd/internal/persist"
	"github.com/marketglass/footprintd/internal/service"
	"github.com/marketglass/footprintd/internal/signal"
)

// monitorStack bundles the per-mode goroutine roots built around one
// MonitorService.
type monitorStack struct {
	monitor    *service.MonitorService
	supervisor *feed.Supervisor
	runner     *persist.Runner // nil without a sink
}

// buildMonitor assembles the ingestion stack. cache, bus, and notifier may
// be nil to switch the corresponding outputs off for the mode.
func (a *App) buildMonitor(
	deps *Dependencies,
	cache domain.SnapshotCache,
	bus domain.SignalBus,
	notifier *notify.Notifier,
) *monitorStack {
	cfg := a.cfg

	bk := book.New(cfg.Feed.Symbol)
	agg := footprint.NewAggregator(
		cfg.Feed.Symbol,
		cfg.Window.Granularity.Duration,
		cfg.Window.Tick,
		cfg.Window.History,
	)
	analyzer := signal.New(signal.Config{
		Tick:           cfg.Window.Tick,
		RunLength:      cfg.Signal.RunLength,
		ImbalanceRatio: cfg.Signal.ImbalanceRatio,
		VolumeShare:    cfg.Signal.VolumeShare,
		MergeRange:     cfg.Signal.MergeRange,
		Proximity:      cfg.Signal.Proximity,
		ReversalRatio:  cfg.Signal.ReversalRatio,
	}, a.logger)

	var queue *persist.Queue
	var runner *persist.Runner
	if deps.Sink != nil {
		queue = persist.NewQueue(cfg.Persist.QueueSize)
		runner = persist.NewRunner(
			queue,
			deps.Sink,
			cfg.Persist.MaxRetries,
			cfg.Persist.RetryDelay.Duration,
			a.logger,
		)
	}

	monitor := service.NewMonitorService(
		service.MonitorConfig{
			Symbol:          cfg.Feed.Symbol,
			Granularity:     cfg.Window.Granularity.Duration,
			ImbalanceTail:   cfg.Signal.ImbalanceTail.Duration,
			PruneRange:      cfg.Book.PruneRange,
			PruneInterval:   cfg.Book.PruneInterval.Duration,
			RefreshInterval: cfg.Book.RefreshInterval.Duration,
			SignalChannel:   signalChannel(cfg),
			SignalStream:    signalStream(cfg),
		},
		bk, agg, analyzer, queue, cache, bus, notifier, a.logger,
	)

	supervisor := feed.NewSupervisor(feed.Config{
		URL:               cfg.Feed.URL,
		Symbol:            cfg.Feed.Symbol,
		DepthSpeed:        cfg.Feed.DepthSpeed,
		HeartbeatInterval: cfg.Feed.HeartbeatInterval.Duration,
		ReconnectFloor:    cfg.Feed.ReconnectFloor.Duration,
		ReconnectCeiling:  cfg.Feed.ReconnectCeiling.Duration,
	}, monitor.HandleEvent, a.logger)

	return &monitorStack{
		monitor:    monitor,
		supervisor: supervisor,
		runner:     runner,
	}
}

// run starts the stack's goroutines under one errgroup and blocks until the
// first fatal error or shutdown.
func (a *App) run(ctx context.Context, stack *monitorStack, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return stack.supervisor.Run(ctx) })
	g.Go(func() error { return stack.monitor.RunMaintenance(ctx) })
	g.Go(func() error { return stack.monitor.RunRefresh(ctx) })

	if stack.runner != nil {
		g.Go(func() error { return stack.runner.Run(ctx) })
	}
	if deps.Retention != nil {
		g.Go(func() error { return deps.Retention.Run(ctx) })
	}

	err := g.Wait()
	if err != nil && ctx.Err() != nil {
		a.logger.Info("application stopped")
		return nil
	}
	return err
}

// MonitorMode runs live monitoring only: feed, book, footprint, signals,
// and presentation snapshots. Nothing is persisted.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	stack := a.buildMonitor(deps, deps.SnapshotCache, deps.SignalBus, deps.Notifier)
	return a.run(ctx, stack, deps)
}

// RecordMode runs headless recording: feed, aggregation, and the
// persistence pipeline, without signal fan-out or alerts.
func (a *App) RecordMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting record mode")

	stack := a.buildMonitor(deps, nil, nil, nil)
	return a.run(ctx, stack, deps)
}

// FullMode runs monitoring and recording together.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	stack := a.buildMonitor(deps, deps.SnapshotCache, deps.SignalBus, deps.Notifier)
	return a.run(ctx, stack, deps)
}

// signalChannel derives the pub/sub channel name, scoped per symbol.
func signalChannel(cfg *config.Config) string {
	return cfg.Signal.Channel + ":" + strings.ToUpper(cfg.Feed.Symbol)
}

// signalStream derives the durable stream name, scoped per symbol.
func signalStream(cfg *config.Config) string {
	return cfg.Signal.Stream + ":" + strings.ToUpper(cfg.Feed.Symbol)
}
