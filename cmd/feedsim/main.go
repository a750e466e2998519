package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chenming7777/tradefloor/internal/config"
	"github.com/chenming7777/tradefloor/internal/sim"
	"github.com/chenming7777/tradefloor/internal/transport"
)

// feedsim publishes a simulated market feed over NATS for the floor to
// consume.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	nc, err := transport.Connect(cfg.NATSURL, "feedsim")
	if err != nil {
		logger.Error("failed to connect to nats", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer nc.Close()

	feed := sim.NewFeed(sim.FeedConfig{
		StartPrice: 10000,
		MaxMove:    500,
		Interval:   cfg.FeedInterval,
		Seed:       time.Now().UnixNano(),
	})
	pub := transport.NewFeedPublisher(nc, cfg.TicksSubject)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("feed simulator started",
		slog.String("subject", cfg.TicksSubject),
		slog.Duration("interval", cfg.FeedInterval))

	for {
		ticks, err := feed.Next(ctx)
		if err != nil {
			logger.Info("feed simulator stopped")
			return
		}
		for _, tick := range ticks {
			if err := pub.Publish(tick); err != nil {
				logger.Error("publish failed",
					slog.String("symbol", tick.Symbol),
					slog.String("error", err.Error()))
			}
		}
	}
}
