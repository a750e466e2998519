package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/chenming7777/tradefloor/internal/config"
	"github.com/chenming7777/tradefloor/internal/domain"
	"github.com/chenming7777/tradefloor/internal/sim"
	"github.com/chenming7777/tradefloor/internal/transport"
)

// exchsim consumes orders from NATS, fills them after a randomized
// delay, and publishes completion events back.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	nc, err := transport.Connect(cfg.NATSURL, "exchsim")
	if err != nil {
		logger.Error("failed to connect to nats", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer nc.Close()

	orders, err := transport.NewOrderConsumer(nc, cfg.OrdersSubject, cfg.QueueCapacity, logger)
	if err != nil {
		logger.Error("failed to subscribe to orders", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer orders.Close()

	statusPub := transport.NewStatusPublisher(nc, cfg.StatusSubject)

	exchange := sim.NewExchange(sim.ExchangeConfig{
		MinFillDelay: cfg.MinFillDelay,
		MaxFillDelay: cfg.MaxFillDelay,
		DupProb:      cfg.FillDupProb,
		DropProb:     cfg.FillDropProb,
		QueueCap:     cfg.QueueCapacity,
		Seed:         time.Now().UnixNano(),
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go exchange.Run(ctx)

	// Pump fill events back onto the status subject.
	go func() {
		for ev := range exchange.Events() {
			err := statusPub.Publish(transport.StatusPayload{
				EventID: uuid.NewString(),
				OrderID: ev.OrderID,
				Status:  string(ev.Status),
			})
			if err != nil {
				logger.Error("status publish failed",
					slog.String("order_id", ev.OrderID),
					slog.String("error", err.Error()))
			}
		}
	}()

	logger.Info("exchange simulator started",
		slog.String("orders", cfg.OrdersSubject),
		slog.String("statuses", cfg.StatusSubject))

	for {
		p, err := orders.Next(ctx)
		if err != nil {
			logger.Info("exchange simulator stopped")
			return
		}
		kind, err := p.Order.Kind()
		if err != nil {
			logger.Warn("unroutable order payload, skipped", slog.String("error", err.Error()))
			continue
		}
		o := &domain.Order{
			OrderID:  p.Order.OrderID,
			TraderID: p.TraderID,
			Symbol:   p.Order.Symbol,
			Kind:     kind,
			Quantity: p.Order.Quantity,
		}
		if err := exchange.Submit(ctx, o); err != nil {
			logger.Warn("order rejected", slog.String("order_id", o.OrderID))
		}
	}
}
