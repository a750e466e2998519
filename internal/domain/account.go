package domain

import "fmt"

// Position is a trader's holding in a single symbol. Quantity is the
// tradable amount; Reserved is the amount escrowed by pending sell
// orders. AvgCost is the volume-weighted average purchase price of all
// currently held shares (tradable + reserved), recomputed on every buy.
type Position struct {
	Quantity int64
	Reserved int64
	AvgCost  int64 // cents
}

// Held returns the total shares the position represents.
func (p *Position) Held() int64 {
	return p.Quantity + p.Reserved
}

// Account is one trader's financial state: cash, positions, and pending
// orders. It is not self-synchronizing: every mutation must happen while
// holding the owning actor's lock, whether the caller is the trader's own
// loop or a broker applying a completion. Each method is a single
// non-blocking critical section so a cancelled task can never observe a
// half-applied escrow.
type Account struct {
	TraderID    string
	Cash        int64 // cents; invariant: Cash >= 0
	Positions   map[string]*Position
	Pending     map[string]*Order
	RealizedPnL int64 // cents, sells credited at fill price vs. average cost
}

// NewAccount creates an account with the given starting cash and no
// positions.
func NewAccount(traderID string, initialCash int64) *Account {
	return &Account{
		TraderID:  traderID,
		Cash:      initialCash,
		Positions: make(map[string]*Position),
		Pending:   make(map[string]*Order),
	}
}

// ReserveBuy debits the order's escrowed cash and records the order as
// pending, as one atomic step. Returns ErrInsufficientFunds without
// mutating anything when the account cannot cover the escrow.
func (a *Account) ReserveBuy(o *Order) error {
	if o.EscrowedCash > a.Cash {
		return ErrInsufficientFunds
	}
	a.Cash -= o.EscrowedCash
	o.Status = OrderStatusPending
	a.Pending[o.OrderID] = o
	return nil
}

// ReserveSell moves the order's quantity from the position's tradable
// amount into its reserved amount and records the order as pending. The
// position record is retained even at zero tradable quantity so its
// average cost survives for bookkeeping. Returns ErrInsufficientShares
// without mutating anything when the tradable amount is too small.
func (a *Account) ReserveSell(o *Order) error {
	p := a.Positions[o.Symbol]
	if p == nil || p.Quantity < o.Quantity {
		return ErrInsufficientShares
	}
	p.Quantity -= o.Quantity
	p.Reserved += o.Quantity
	o.EscrowedQty = o.Quantity
	o.Status = OrderStatusPending
	a.Pending[o.OrderID] = o
	return nil
}

// Rollback reverses a reservation after a failed emission: the escrow is
// restored exactly and the order leaves the pending set as Cancelled.
// It is a no-op for unknown order ids.
func (a *Account) Rollback(orderID string) {
	o, ok := a.Pending[orderID]
	if !ok {
		return
	}
	a.release(o)
	o.Status = OrderStatusCancelled
	delete(a.Pending, orderID)
}

// ApplyFill settles a pending order at fillPrice. Buys grow the position
// and recompute its volume-weighted average cost; the stored escrow is
// consumed, with any difference against the fill cost settled to cash.
// Sells credit cash at the fill price, consume the reserved quantity,
// accrue realized P&L against the average cost, and prune the position
// once empty. Returns ErrUnknownOrder for ids that are not pending,
// including a second call for the same id, which makes completion
// idempotent.
func (a *Account) ApplyFill(orderID string, fillPrice int64) (*Order, error) {
	o, ok := a.Pending[orderID]
	if !ok {
		return nil, ErrUnknownOrder
	}

	if o.Kind.IsBuy() {
		p := a.Positions[o.Symbol]
		if p == nil {
			p = &Position{}
			a.Positions[o.Symbol] = p
		}
		oldHeld := p.Held()
		p.AvgCost = (p.AvgCost*oldHeld + fillPrice*o.Quantity) / (oldHeld + o.Quantity)
		p.Quantity += o.Quantity
		// Consume the escrow; a limit buy never fills above its limit, so
		// the residual is never negative for limit orders.
		a.Cash += o.EscrowedCash - fillPrice*o.Quantity
	} else {
		p := a.Positions[o.Symbol]
		a.Cash += fillPrice * o.Quantity
		if p != nil {
			a.RealizedPnL += (fillPrice - p.AvgCost) * o.Quantity
			p.Reserved -= o.EscrowedQty
			if p.Held() <= 0 {
				delete(a.Positions, o.Symbol)
			}
		}
	}

	o.Status = OrderStatusFilled
	delete(a.Pending, orderID)
	return o, nil
}

// CancelPending reverses the escrow of every pending order (buys restore
// the exact debited cash, sells restore the reserved quantity), marks
// them Cancelled, and clears the pending set. Returns the cancelled
// orders. Used by the shutdown sweep.
func (a *Account) CancelPending() []*Order {
	cancelled := make([]*Order, 0, len(a.Pending))
	for id, o := range a.Pending {
		a.release(o)
		o.Status = OrderStatusCancelled
		delete(a.Pending, id)
		cancelled = append(cancelled, o)
	}
	return cancelled
}

// release restores an order's escrow: the exact cash debited for buys,
// the reserved share quantity for sells (recreating the position record
// if it was pruned away).
func (a *Account) release(o *Order) {
	if o.Kind.IsBuy() {
		a.Cash += o.EscrowedCash
		return
	}
	p := a.Positions[o.Symbol]
	if p == nil {
		p = &Position{}
		a.Positions[o.Symbol] = p
	}
	if p.Reserved >= o.EscrowedQty {
		p.Reserved -= o.EscrowedQty
	} else {
		p.Reserved = 0
	}
	p.Quantity += o.EscrowedQty
}

// BuyEscrow returns the total cash currently escrowed by pending buys.
func (a *Account) BuyEscrow() int64 {
	var total int64
	for _, o := range a.Pending {
		if o.Kind.IsBuy() {
			total += o.EscrowedCash
		}
	}
	return total
}

// Clone returns a deep copy suitable for reporting without holding the
// owning actor's lock afterwards.
func (a *Account) Clone() Account {
	c := Account{
		TraderID:    a.TraderID,
		Cash:        a.Cash,
		RealizedPnL: a.RealizedPnL,
		Positions:   make(map[string]*Position, len(a.Positions)),
		Pending:     make(map[string]*Order, len(a.Pending)),
	}
	for sym, p := range a.Positions {
		cp := *p
		c.Positions[sym] = &cp
	}
	for id, o := range a.Pending {
		co := *o
		c.Pending[id] = &co
	}
	return c
}

// Validate checks the account's structural invariants.
func (a *Account) Validate() error {
	if a.Cash < 0 {
		return fmt.Errorf("negative cash: %d", a.Cash)
	}
	for sym, p := range a.Positions {
		if p.Quantity < 0 {
			return fmt.Errorf("negative quantity for %s: %d", sym, p.Quantity)
		}
		if p.Reserved < 0 {
			return fmt.Errorf("negative reserved quantity for %s: %d", sym, p.Reserved)
		}
	}
	for id, o := range a.Pending {
		if o.Status != OrderStatusPending {
			return fmt.Errorf("non-pending order %s in pending set: %s", id, o.Status)
		}
	}
	return nil
}
