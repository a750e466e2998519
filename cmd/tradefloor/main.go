package main

import (
	"context"
	"flag"
	"fmt"
	"hash/fnv"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chenming7777/tradefloor/internal/config"
	"github.com/chenming7777/tradefloor/internal/domain"
	"github.com/chenming7777/tradefloor/internal/engine"
	"github.com/chenming7777/tradefloor/internal/obs"
	"github.com/chenming7777/tradefloor/internal/report"
	"github.com/chenming7777/tradefloor/internal/sim"
	"github.com/chenming7777/tradefloor/internal/strategy"
	"github.com/chenming7777/tradefloor/internal/transport"
)

func main() {
	standalone := flag.Bool("standalone", false, "Run with in-process feed and exchange simulators instead of NATS")
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:HTTP_PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("HTTP_PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	metrics := obs.New("tradefloor")

	// Run until a signal arrives or the configured duration elapses.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if cfg.RunDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.RunDuration)
		defer cancel()
	}

	var (
		sink     engine.OrderSink
		source   engine.TickSource
		statuses <-chan domain.StatusEvent
		cleanup  = func() {}
	)
	if *standalone {
		feed := sim.NewFeed(sim.FeedConfig{
			StartPrice: 10000,
			MaxMove:    500,
			Interval:   cfg.FeedInterval,
			Seed:       time.Now().UnixNano(),
		})
		exchange := sim.NewExchange(sim.ExchangeConfig{
			MinFillDelay: cfg.MinFillDelay,
			MaxFillDelay: cfg.MaxFillDelay,
			DupProb:      cfg.FillDupProb,
			DropProb:     cfg.FillDropProb,
			QueueCap:     cfg.QueueCapacity,
			Seed:         time.Now().UnixNano(),
		}, logger)
		go exchange.Run(ctx)
		sink, source, statuses = exchange, feed, exchange.Events()
	} else {
		nc, err := transport.Connect(cfg.NATSURL, "tradefloor")
		if err != nil {
			logger.Error("failed to connect to nats", slog.String("error", err.Error()))
			os.Exit(1)
		}
		feedSource, err := transport.NewFeedSource(nc, cfg.TicksSubject, cfg.QueueCapacity, logger)
		if err != nil {
			logger.Error("failed to subscribe to feed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		statusSource, err := transport.NewStatusSource(nc, cfg.StatusSubject, cfg.QueueCapacity, logger)
		if err != nil {
			logger.Error("failed to subscribe to statuses", slog.String("error", err.Error()))
			os.Exit(1)
		}
		go statusSource.Run(ctx)
		sink = transport.NewOrderPublisher(nc, cfg.OrdersSubject)
		source = feedSource
		statuses = statusSource.Events()
		cleanup = func() {
			feedSource.Close()
			nc.Close()
		}
	}
	defer cleanup()

	floor := engine.NewFloor(engine.Params{
		Brokers:          cfg.Brokers,
		TradersPerBroker: cfg.TradersPerBroker,
		InitialCash:      cfg.InitialCash,
		QueueCapacity:    cfg.QueueCapacity,
		FeedWindow:       cfg.FeedWindow,
	}, sink, randomPolicies(), logger, metrics)

	// Report server.
	router := report.NewRouter(floor, cfg.InitialCash, metrics.Handler(), logger)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("report server starting", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("report server error", slog.String("error", err.Error()))
		}
	}()

	floor.Run(ctx, source, statuses)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("report server shutdown error", slog.String("error", err.Error()))
	}

	report.WriteTable(os.Stdout, report.BuildAll(floor.Accounts(), floor.Prices(), cfg.InitialCash))
	logger.Info("floor stopped")
}

// randomPolicies seeds every trader's policy independently so two
// traders never mirror each other's decisions.
func randomPolicies() engine.PolicyFactory {
	base := time.Now().UnixNano()
	return func(traderID string) strategy.Policy {
		h := fnv.New64a()
		h.Write([]byte(traderID))
		return strategy.NewRandom(base ^ int64(h.Sum64()))
	}
}

func newLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
}
