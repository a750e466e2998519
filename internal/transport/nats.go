package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/chenming7777/tradefloor/internal/domain"
)

// Subjects names the three NATS subjects the system communicates over.
type Subjects struct {
	Ticks    string
	Orders   string
	Statuses string
}

// Connect dials the NATS server with the client name set.
func Connect(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url, nats.Name(name))
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}
	return nc, nil
}

// FeedSource adapts a NATS subscription on the ticks subject to the
// floor's tick source. Malformed payloads are logged and skipped.
type FeedSource struct {
	sub    *nats.Subscription
	msgs   chan *nats.Msg
	logger *slog.Logger
}

// NewFeedSource subscribes to the ticks subject with a bounded buffer.
func NewFeedSource(nc *nats.Conn, subject string, queueCap int, logger *slog.Logger) (*FeedSource, error) {
	msgs := make(chan *nats.Msg, queueCap)
	sub, err := nc.ChanSubscribe(subject, msgs)
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", subject, err)
	}
	return &FeedSource{sub: sub, msgs: msgs, logger: logger}, nil
}

// Next blocks until a well-formed tick arrives or ctx is cancelled.
func (s *FeedSource) Next(ctx context.Context) ([]domain.Tick, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case m, ok := <-s.msgs:
			if !ok {
				return nil, domain.ErrFeedClosed
			}
			var p TickPayload
			if err := json.Unmarshal(m.Data, &p); err != nil {
				s.logger.Warn("malformed tick payload, skipped", slog.String("error", err.Error()))
				continue
			}
			tick, err := p.Tick()
			if err != nil {
				s.logger.Warn("invalid tick payload, skipped", slog.String("error", err.Error()))
				continue
			}
			return []domain.Tick{tick}, nil
		}
	}
}

// Close drops the subscription.
func (s *FeedSource) Close() error {
	return s.sub.Unsubscribe()
}

// FeedPublisher publishes ticks on the ticks subject. Used by the feed
// simulator.
type FeedPublisher struct {
	nc      *nats.Conn
	subject string
}

func NewFeedPublisher(nc *nats.Conn, subject string) *FeedPublisher {
	return &FeedPublisher{nc: nc, subject: subject}
}

func (p *FeedPublisher) Publish(t domain.Tick) error {
	data, err := json.Marshal(NewTickPayload(t))
	if err != nil {
		return err
	}
	return p.nc.Publish(p.subject, data)
}

// OrderPublisher publishes orders on the orders subject. It satisfies
// the broker's order sink.
type OrderPublisher struct {
	nc      *nats.Conn
	subject string
}

func NewOrderPublisher(nc *nats.Conn, subject string) *OrderPublisher {
	return &OrderPublisher{nc: nc, subject: subject}
}

// Submit publishes the order as JSON. The broker id travels alongside
// the order so the exchange side never parses trader ids.
func (p *OrderPublisher) Submit(ctx context.Context, o *domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	brokerID, _, _ := strings.Cut(o.TraderID, "-")
	data, err := json.Marshal(NewOrderPayload(brokerID, o))
	if err != nil {
		return err
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish order %s: %w", o.OrderID, err)
	}
	return nil
}

// OrderConsumer receives orders from the orders subject. Used by the
// exchange simulator.
type OrderConsumer struct {
	sub    *nats.Subscription
	msgs   chan *nats.Msg
	logger *slog.Logger
}

func NewOrderConsumer(nc *nats.Conn, subject string, queueCap int, logger *slog.Logger) (*OrderConsumer, error) {
	msgs := make(chan *nats.Msg, queueCap)
	sub, err := nc.ChanSubscribe(subject, msgs)
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", subject, err)
	}
	return &OrderConsumer{sub: sub, msgs: msgs, logger: logger}, nil
}

// Next blocks until a well-formed order payload arrives or ctx is
// cancelled.
func (c *OrderConsumer) Next(ctx context.Context) (OrderPayload, error) {
	for {
		select {
		case <-ctx.Done():
			return OrderPayload{}, ctx.Err()
		case m, ok := <-c.msgs:
			if !ok {
				return OrderPayload{}, domain.ErrOrderSinkClosed
			}
			var p OrderPayload
			if err := json.Unmarshal(m.Data, &p); err != nil {
				c.logger.Warn("malformed order payload, skipped", slog.String("error", err.Error()))
				continue
			}
			return p, nil
		}
	}
}

func (c *OrderConsumer) Close() error {
	return c.sub.Unsubscribe()
}

// StatusPublisher publishes completion events on the status subject.
// Used by the exchange simulator.
type StatusPublisher struct {
	nc      *nats.Conn
	subject string
}

func NewStatusPublisher(nc *nats.Conn, subject string) *StatusPublisher {
	return &StatusPublisher{nc: nc, subject: subject}
}

func (p *StatusPublisher) Publish(s StatusPayload) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return p.nc.Publish(p.subject, data)
}

// StatusSource pumps completion events from the status subject into a
// channel for the floor's status router.
type StatusSource struct {
	sub    *nats.Subscription
	msgs   chan *nats.Msg
	events chan domain.StatusEvent
	logger *slog.Logger
}

func NewStatusSource(nc *nats.Conn, subject string, queueCap int, logger *slog.Logger) (*StatusSource, error) {
	msgs := make(chan *nats.Msg, queueCap)
	sub, err := nc.ChanSubscribe(subject, msgs)
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", subject, err)
	}
	return &StatusSource{
		sub:    sub,
		msgs:   msgs,
		events: make(chan domain.StatusEvent, queueCap),
		logger: logger,
	}, nil
}

// Events is the decoded event stream. Closed when Run returns.
func (s *StatusSource) Events() <-chan domain.StatusEvent {
	return s.events
}

// Run decodes messages until ctx is cancelled. Malformed payloads are
// logged and skipped.
func (s *StatusSource) Run(ctx context.Context) {
	defer close(s.events)
	defer s.sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-s.msgs:
			if !ok {
				return
			}
			var p StatusPayload
			if err := json.Unmarshal(m.Data, &p); err != nil {
				s.logger.Warn("malformed status payload, skipped", slog.String("error", err.Error()))
				continue
			}
			select {
			case s.events <- p.Event():
			case <-ctx.Done():
				return
			}
		}
	}
}
