package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/chenming7777/tradefloor/internal/domain"
)

// PositionView is one holding valued at the latest known price. Value
// covers the full held amount, reserved shares included.
type PositionView struct {
	Symbol      string  `json:"symbol"`
	Quantity    int64   `json:"quantity"`
	Reserved    int64   `json:"reserved,omitempty"`
	AvgCost     float64 `json:"avg_cost"`
	LatestPrice float64 `json:"latest_price"`
	Value       float64 `json:"value"`
}

// Snapshot is one trader's final portfolio: cash, valued holdings, and
// profit against the starting cash. Escrowed buy cash counts toward the
// total so a snapshot taken mid-flight still conserves value.
type Snapshot struct {
	TraderID    string         `json:"trader_id"`
	CashLeft    float64        `json:"cash_left"`
	BuyEscrow   float64        `json:"buy_escrow,omitempty"`
	HeldStocks  []PositionView `json:"held_stocks"`
	TotalAmount float64        `json:"total_amount"`
	ProfitLoss  float64        `json:"profit_loss"`
	RealizedPnL float64        `json:"realized_pnl"`
	Pending     int            `json:"pending_orders"`
}

// Build values the account against the given latest prices. A symbol
// with no known price is valued at its average cost.
func Build(acc domain.Account, prices map[string]int64, initialCash int64) Snapshot {
	s := Snapshot{
		TraderID:    acc.TraderID,
		CashLeft:    domain.CentsToDollars(acc.Cash),
		BuyEscrow:   domain.CentsToDollars(acc.BuyEscrow()),
		RealizedPnL: domain.CentsToDollars(acc.RealizedPnL),
		Pending:     len(acc.Pending),
	}

	symbols := make([]string, 0, len(acc.Positions))
	for sym := range acc.Positions {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	var stockValue int64
	for _, sym := range symbols {
		p := acc.Positions[sym]
		price, ok := prices[sym]
		if !ok {
			price = p.AvgCost
		}
		value := price * p.Held()
		stockValue += value
		s.HeldStocks = append(s.HeldStocks, PositionView{
			Symbol:      sym,
			Quantity:    p.Quantity,
			Reserved:    p.Reserved,
			AvgCost:     domain.CentsToDollars(p.AvgCost),
			LatestPrice: domain.CentsToDollars(price),
			Value:       domain.CentsToDollars(value),
		})
	}

	total := acc.Cash + acc.BuyEscrow() + stockValue
	s.TotalAmount = domain.CentsToDollars(total)
	s.ProfitLoss = domain.CentsToDollars(total - initialCash)
	return s
}

// BuildAll snapshots every account in order.
func BuildAll(accounts []domain.Account, prices map[string]int64, initialCash int64) []Snapshot {
	out := make([]Snapshot, 0, len(accounts))
	for _, acc := range accounts {
		out = append(out, Build(acc, prices, initialCash))
	}
	return out
}

// money renders a snapshot dollar amount as a display string. Snapshot
// values are exact cents converted to dollars, so the round trip through
// RoundToCents is lossless.
func money(dollars float64) string {
	return domain.FormatCents(domain.RoundToCents(dollars))
}

// WriteTable prints the final portfolios in a human-readable block per
// trader.
func WriteTable(w io.Writer, snapshots []Snapshot) {
	for _, s := range snapshots {
		fmt.Fprintf(w, "Trader ID: %s\n", s.TraderID)
		fmt.Fprintf(w, "Cash Left: %s\n", money(s.CashLeft))
		if s.BuyEscrow > 0 {
			fmt.Fprintf(w, "Buy Escrow: %s\n", money(s.BuyEscrow))
		}
		if len(s.HeldStocks) == 0 {
			fmt.Fprintln(w, "Held Stocks: none")
		} else {
			fmt.Fprintln(w, "Held Stocks:")
			for _, h := range s.HeldStocks {
				fmt.Fprintf(w, "  %-6s qty %d", h.Symbol, h.Quantity)
				if h.Reserved > 0 {
					fmt.Fprintf(w, " (+%d reserved)", h.Reserved)
				}
				fmt.Fprintf(w, " @ %s avg, %s last, value %s\n",
					money(h.AvgCost), money(h.LatestPrice), money(h.Value))
			}
		}
		fmt.Fprintf(w, "Total Amount: %s\n", money(s.TotalAmount))
		fmt.Fprintf(w, "Profit/Loss: %s\n", money(s.ProfitLoss))
		fmt.Fprintln(w, "-----------------------------")
	}
}
