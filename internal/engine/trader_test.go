package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/chenming7777/tradefloor/internal/domain"
	"github.com/chenming7777/tradefloor/internal/obs"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTrader(t *testing.T, cash int64) (*TraderActor, chan *domain.Order) {
	t.Helper()
	orders := make(chan *domain.Order, 16)
	tr := NewTraderActor("B001-T001", cash, 16, orders, nil, testLogger(), obs.New(t.Name()))
	return tr, orders
}

func TestPlaceBuy_EscrowsAndEmits(t *testing.T) {
	tr, orders := newTestTrader(t, 500000)

	o, err := tr.PlaceBuy(context.Background(), "AAPL", domain.OrderKindMarketBuy, 10000, 5)
	if err != nil {
		t.Fatalf("PlaceBuy: %v", err)
	}

	acc := tr.AccountSnapshot()
	if acc.Cash != 450000 {
		t.Errorf("Cash = %d, want 450000", acc.Cash)
	}
	if o.EscrowedCash != 50000 {
		t.Errorf("EscrowedCash = %d, want 50000", o.EscrowedCash)
	}

	select {
	case got := <-orders:
		if got.OrderID != o.OrderID {
			t.Errorf("emitted %s, want %s", got.OrderID, o.OrderID)
		}
	default:
		t.Fatal("order was not emitted")
	}
}

func TestPlaceBuy_InsufficientFundsRejectedLocally(t *testing.T) {
	tr, orders := newTestTrader(t, 100)

	_, err := tr.PlaceBuy(context.Background(), "AAPL", domain.OrderKindMarketBuy, 10000, 5)
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}

	if acc := tr.AccountSnapshot(); acc.Cash != 100 {
		t.Errorf("Cash = %d, want 100 (unchanged)", acc.Cash)
	}
	select {
	case o := <-orders:
		t.Fatalf("rejected order %s was emitted", o.OrderID)
	default:
	}
}

func TestPlaceBuy_RejectionDoesNotConsumeOrderID(t *testing.T) {
	tr, _ := newTestTrader(t, 50000)
	ctx := context.Background()

	if _, err := tr.PlaceBuy(ctx, "AAPL", domain.OrderKindMarketBuy, 10000, 100); err == nil {
		t.Fatal("expected rejection")
	}
	o, err := tr.PlaceBuy(ctx, "AAPL", domain.OrderKindMarketBuy, 10000, 1)
	if err != nil {
		t.Fatalf("PlaceBuy: %v", err)
	}
	if o.OrderID != "B001-T001-O000001" {
		t.Errorf("OrderID = %s, want B001-T001-O000001 (ids allocated only on success)", o.OrderID)
	}
}

func TestPlaceOrders_IDsStrictlyIncrease(t *testing.T) {
	tr, _ := newTestTrader(t, 500000)
	ctx := context.Background()

	var prev string
	for i := 0; i < 5; i++ {
		o, err := tr.PlaceBuy(ctx, "AAPL", domain.OrderKindMarketBuy, 100, 1)
		if err != nil {
			t.Fatalf("PlaceBuy #%d: %v", i, err)
		}
		if o.OrderID <= prev {
			t.Errorf("order id %s not greater than %s", o.OrderID, prev)
		}
		prev = o.OrderID
	}
}

func TestPlace_InvalidInputRejected(t *testing.T) {
	tr, orders := newTestTrader(t, 500000)
	ctx := context.Background()

	cases := []struct {
		name string
		call func() (*domain.Order, error)
	}{
		{"buy zero price", func() (*domain.Order, error) {
			return tr.PlaceBuy(ctx, "AAPL", domain.OrderKindMarketBuy, 0, 5)
		}},
		{"buy negative price", func() (*domain.Order, error) {
			return tr.PlaceBuy(ctx, "AAPL", domain.OrderKindLimitBuy, -100, 5)
		}},
		{"buy zero quantity", func() (*domain.Order, error) {
			return tr.PlaceBuy(ctx, "AAPL", domain.OrderKindMarketBuy, 10000, 0)
		}},
		{"sell negative quantity", func() (*domain.Order, error) {
			return tr.PlaceSell(ctx, "AAPL", domain.OrderKindMarketSell, 10000, -1)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.call(); !errors.Is(err, domain.ErrInvalidOrder) {
				t.Fatalf("err = %v, want ErrInvalidOrder", err)
			}
		})
	}

	acc := tr.AccountSnapshot()
	if acc.Cash != 500000 {
		t.Errorf("Cash = %d, want 500000 (unchanged)", acc.Cash)
	}
	select {
	case o := <-orders:
		t.Fatalf("invalid order %s was emitted", o.OrderID)
	default:
	}
	// Invalid input must not consume an order id either.
	if o, err := tr.PlaceBuy(ctx, "AAPL", domain.OrderKindMarketBuy, 100, 1); err != nil {
		t.Fatalf("PlaceBuy: %v", err)
	} else if o.OrderID != "B001-T001-O000001" {
		t.Errorf("OrderID = %s, want B001-T001-O000001", o.OrderID)
	}
}

func TestPlaceSell_InsufficientShares(t *testing.T) {
	tr, orders := newTestTrader(t, 500000)

	_, err := tr.PlaceSell(context.Background(), "AAPL", domain.OrderKindMarketSell, 10000, 1)
	if !errors.Is(err, domain.ErrInsufficientShares) {
		t.Fatalf("err = %v, want ErrInsufficientShares", err)
	}
	select {
	case o := <-orders:
		t.Fatalf("rejected order %s was emitted", o.OrderID)
	default:
	}
}

func TestCompleteOrder_BuyConsumesEscrow(t *testing.T) {
	tr, _ := newTestTrader(t, 500000)
	ctx := context.Background()

	o, err := tr.PlaceBuy(ctx, "AAPL", domain.OrderKindMarketBuy, 10000, 5)
	if err != nil {
		t.Fatalf("PlaceBuy: %v", err)
	}
	if _, err := tr.CompleteOrder(o.OrderID, 10000); err != nil {
		t.Fatalf("CompleteOrder: %v", err)
	}

	acc := tr.AccountSnapshot()
	if acc.Cash != 450000 {
		t.Errorf("Cash = %d, want 450000", acc.Cash)
	}
	p := acc.Positions["AAPL"]
	if p == nil || p.Quantity != 5 || p.AvgCost != 10000 {
		t.Errorf("position = %+v, want 5 @ 10000", p)
	}
}

func TestCompleteOrder_SellRoundTripRestoresCash(t *testing.T) {
	tr, _ := newTestTrader(t, 500000)
	ctx := context.Background()

	buy, err := tr.PlaceBuy(ctx, "AAPL", domain.OrderKindMarketBuy, 10000, 5)
	if err != nil {
		t.Fatalf("PlaceBuy: %v", err)
	}
	if _, err := tr.CompleteOrder(buy.OrderID, 10000); err != nil {
		t.Fatalf("CompleteOrder buy: %v", err)
	}

	sell, err := tr.PlaceSell(ctx, "AAPL", domain.OrderKindMarketSell, 10000, 5)
	if err != nil {
		t.Fatalf("PlaceSell: %v", err)
	}
	if _, err := tr.CompleteOrder(sell.OrderID, 10000); err != nil {
		t.Fatalf("CompleteOrder sell: %v", err)
	}

	acc := tr.AccountSnapshot()
	if acc.Cash != 500000 {
		t.Errorf("Cash = %d, want 500000 after a flat round trip", acc.Cash)
	}
	if _, ok := acc.Positions["AAPL"]; ok {
		t.Error("position must be pruned after selling out")
	}
}

func TestCompleteOrder_DuplicateIsNoOp(t *testing.T) {
	tr, _ := newTestTrader(t, 500000)
	ctx := context.Background()

	o, err := tr.PlaceBuy(ctx, "AAPL", domain.OrderKindMarketBuy, 10000, 2)
	if err != nil {
		t.Fatalf("PlaceBuy: %v", err)
	}
	if _, err := tr.CompleteOrder(o.OrderID, 10000); err != nil {
		t.Fatalf("first CompleteOrder: %v", err)
	}
	before := tr.AccountSnapshot()

	if _, err := tr.CompleteOrder(o.OrderID, 10000); !errors.Is(err, domain.ErrUnknownOrder) {
		t.Fatalf("second CompleteOrder err = %v, want ErrUnknownOrder", err)
	}
	after := tr.AccountSnapshot()
	if after.Cash != before.Cash {
		t.Errorf("Cash changed by duplicate fill: %d != %d", after.Cash, before.Cash)
	}
	if after.Positions["AAPL"].Quantity != before.Positions["AAPL"].Quantity {
		t.Error("position changed by duplicate fill")
	}
}

func TestEmit_FailureRollsBackEscrow(t *testing.T) {
	// An unbuffered, never-read channel forces the emission path to block
	// until the context gives up.
	orders := make(chan *domain.Order)
	tr := NewTraderActor("B001-T001", 500000, 16, orders, nil, testLogger(), obs.New(t.Name()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.PlaceBuy(ctx, "AAPL", domain.OrderKindMarketBuy, 10000, 5)
	if !errors.Is(err, domain.ErrOrderSinkClosed) {
		t.Fatalf("err = %v, want ErrOrderSinkClosed", err)
	}

	acc := tr.AccountSnapshot()
	if acc.Cash != 500000 {
		t.Errorf("Cash = %d, want 500000 rolled back", acc.Cash)
	}
	if len(acc.Pending) != 0 {
		t.Error("pending set must be empty after rollback")
	}
}

func TestCancelPendingOrders_RefundsExactly(t *testing.T) {
	tr, _ := newTestTrader(t, 500000)
	ctx := context.Background()

	if _, err := tr.PlaceBuy(ctx, "AAPL", domain.OrderKindLimitBuy, 9900, 3); err != nil {
		t.Fatalf("PlaceBuy: %v", err)
	}
	if _, err := tr.PlaceBuy(ctx, "MSFT", domain.OrderKindMarketBuy, 20000, 1); err != nil {
		t.Fatalf("PlaceBuy: %v", err)
	}

	cancelled := tr.CancelPendingOrders()
	if len(cancelled) != 2 {
		t.Fatalf("cancelled %d, want 2", len(cancelled))
	}
	if acc := tr.AccountSnapshot(); acc.Cash != 500000 {
		t.Errorf("Cash = %d, want 500000 refunded", acc.Cash)
	}
}
