// Package portfolio tracks cash, open positions, and realized PnL for a
// single account. Positions are held as FIFO lots so partial sells are
// costed against the oldest contracts first. Exchange fees are charged
// on both buys and sells; Sell returns PnL net of the sell fee only,
// with buy fees tracked separately in the fees-paid accumulator.
package portfolio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/zcole/kalshi-core/internal/model"
	"github.com/zcole/kalshi-core/internal/orderbook"
)

var (
	// ErrOutOfMoney is returned when a debit would take the cash
	// balance negative.
	ErrOutOfMoney = errors.New("portfolio: out of money")

	// ErrOppositeSide is returned when adding to a position held on
	// the other side of the market.
	ErrOppositeSide = errors.New("portfolio: already holding the other side")

	// ErrNoPosition is returned when selling a market we do not hold.
	ErrNoPosition = errors.New("portfolio: no position in market")
)

// Balance is a cash balance in cents that can never go negative.
type Balance struct {
	cents model.Cents
}

// NewBalance creates a balance with the given starting amount.
func NewBalance(starting model.Cents) (*Balance, error) {
	if starting < 0 {
		return nil, fmt.Errorf("invalid starting balance %d", starting)
	}
	return &Balance{cents: starting}, nil
}

// Add applies a signed delta. A delta that would take the balance
// negative returns ErrOutOfMoney and leaves the balance unchanged.
func (b *Balance) Add(delta model.Cents) error {
	if b.cents+delta < 0 {
		return fmt.Errorf("%w: balance %d, delta %d", ErrOutOfMoney, b.cents, delta)
	}
	b.cents += delta
	return nil
}

// Cents returns the current balance.
func (b *Balance) Cents() model.Cents { return b.cents }

// lot is one purchase at a single price.
type lot struct {
	price    model.Price
	quantity model.Quantity
}

// Position is the contracts held in one market, all on the same side,
// as a FIFO list of lots.
type Position struct {
	Ticker model.MarketTicker
	Side   model.Side
	lots   []lot
}

func (p *Position) add(price model.Price, quantity model.Quantity) {
	p.lots = append(p.lots, lot{price: price, quantity: quantity})
}

// sellFIFO removes quantity contracts oldest-first and returns their
// total purchase cost.
func (p *Position) sellFIFO(quantity model.Quantity) (model.Cents, error) {
	if quantity > p.Quantity() {
		return 0, fmt.Errorf("selling %d contracts but holding %d", quantity, p.Quantity())
	}
	var cost model.Cents
	remaining := p.lots[:0]
	for _, l := range p.lots {
		if quantity >= l.quantity {
			cost += model.Cents(int64(l.price) * int64(l.quantity))
			quantity -= l.quantity
			continue
		}
		if quantity > 0 {
			cost += model.Cents(int64(l.price) * int64(quantity))
			l.quantity -= quantity
			quantity = 0
		}
		remaining = append(remaining, l)
	}
	p.lots = remaining
	return cost, nil
}

// Quantity returns the total contracts held across all lots.
func (p *Position) Quantity() model.Quantity {
	var total model.Quantity
	for _, l := range p.lots {
		total += l.quantity
	}
	return total
}

// Value returns the total purchase cost of the held contracts.
func (p *Position) Value() model.Cents {
	var total model.Cents
	for _, l := range p.lots {
		total += model.Cents(int64(l.price) * int64(l.quantity))
	}
	return total
}

// maxPrice returns the highest lot price, or 0 for an empty position.
func (p *Position) maxPrice() model.Price {
	var max model.Price
	for _, l := range p.lots {
		if l.price > max {
			max = l.price
		}
	}
	return max
}

func (p *Position) empty() bool { return len(p.lots) == 0 }

// Portfolio holds cash and open positions. Methods are safe for
// concurrent use.
type Portfolio struct {
	mu        sync.Mutex
	balance   *Balance
	positions map[model.MarketTicker]*Position
	feesPaid  model.Cents
}

// New creates a portfolio with the given starting cash in cents.
func New(starting model.Cents) (*Portfolio, error) {
	balance, err := NewBalance(starting)
	if err != nil {
		return nil, err
	}
	return &Portfolio{
		balance:   balance,
		positions: make(map[model.MarketTicker]*Position),
	}, nil
}

// Buy opens or adds to a position. The cash balance is debited the
// contract cost plus the exchange fee. Adding to a position held on
// the opposite side returns ErrOppositeSide.
func (p *Portfolio) Buy(ticker model.MarketTicker, price model.Price, quantity model.Quantity, side model.Side) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos, held := p.positions[ticker]
	if held && pos.Side != side {
		return fmt.Errorf("%w: %s held on %s", ErrOppositeSide, ticker, pos.Side)
	}

	fee := model.TradingFee(price, quantity)
	cost := model.Cents(int64(price)*int64(quantity)) + fee
	if err := p.balance.Add(-cost); err != nil {
		return err
	}
	p.feesPaid += fee

	if held {
		pos.add(price, quantity)
	} else {
		p.positions[ticker] = &Position{
			Ticker: ticker,
			Side:   side,
			lots:   []lot{{price: price, quantity: quantity}},
		}
	}
	return nil
}

// Sell closes up to maxQuantity contracts FIFO at the given price and
// returns the realized PnL: proceeds minus the sell fee minus the FIFO
// purchase cost. Buy fees are not included in the returned PnL. Selling
// more than held sells everything held.
func (p *Portfolio) Sell(ticker model.MarketTicker, price model.Price, maxQuantity model.Quantity, side model.Side) (model.Cents, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sellLocked(ticker, price, maxQuantity, side)
}

func (p *Portfolio) sellLocked(ticker model.MarketTicker, price model.Price, maxQuantity model.Quantity, side model.Side) (model.Cents, error) {
	pos, held := p.positions[ticker]
	if !held {
		return 0, fmt.Errorf("%w: %s", ErrNoPosition, ticker)
	}
	if pos.Side != side {
		return 0, fmt.Errorf("%w: %s held on %s", ErrOppositeSide, ticker, pos.Side)
	}

	quantity := maxQuantity
	if held := pos.Quantity(); quantity > held {
		quantity = held
	}

	fee := model.TradingFee(price, quantity)
	cost, err := pos.sellFIFO(quantity)
	if err != nil {
		return 0, err
	}
	proceeds := model.Cents(int64(price)*int64(quantity)) - fee
	p.feesPaid += fee
	if err := p.balance.Add(proceeds); err != nil {
		return 0, err
	}

	if pos.empty() {
		delete(p.positions, ticker)
	}
	return proceeds - cost, nil
}

// FindSellOpportunity sells into the book's best resting bid on our
// side when it exceeds the highest price we paid. It returns the
// realized PnL and whether a sell happened.
func (p *Portfolio) FindSellOpportunity(book *orderbook.Book) (model.Cents, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos, held := p.positions[book.Ticker]
	if !held {
		return 0, false, nil
	}
	best, err := book.Side(pos.Side).Best()
	if err != nil {
		return 0, false, nil
	}
	if best.Price <= pos.maxPrice() {
		return 0, false, nil
	}
	pnl, err := p.sellLocked(book.Ticker, best.Price, best.Quantity, pos.Side)
	if err != nil {
		return 0, false, err
	}
	return pnl, true, nil
}

// ApplyFill reconciles an execution reported by the exchange into the
// portfolio: buys open or extend the position, sells realize it.
func (p *Portfolio) ApplyFill(fill model.Fill) error {
	if fill.Action == model.ActionBuy {
		return p.Buy(fill.Ticker, fill.Price(), fill.Count, fill.Side)
	}
	_, err := p.Sell(fill.Ticker, fill.Price(), fill.Count, fill.Side)
	return err
}

// Cash returns the current cash balance.
func (p *Portfolio) Cash() model.Cents {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance.Cents()
}

// FeesPaid returns the total exchange fees charged so far.
func (p *Portfolio) FeesPaid() model.Cents {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.feesPaid
}

// PositionsValue returns the total purchase cost of all open positions.
func (p *Portfolio) PositionsValue() model.Cents {
	p.mu.Lock()
	defer p.mu.Unlock()
	var total model.Cents
	for _, pos := range p.positions {
		total += pos.Value()
	}
	return total
}

// Position returns a copy of the position in the given market.
func (p *Portfolio) Position(ticker model.MarketTicker) (Position, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.positions[ticker]
	if !ok {
		return Position{}, false
	}
	cp := Position{Ticker: pos.Ticker, Side: pos.Side, lots: append([]lot(nil), pos.lots...)}
	return cp, true
}

// Tickers returns the markets with open positions.
func (p *Portfolio) Tickers() []model.MarketTicker {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.MarketTicker, 0, len(p.positions))
	for t := range p.positions {
		out = append(out, t)
	}
	return out
}
