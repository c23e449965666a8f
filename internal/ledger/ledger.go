// Package ledger keeps the authoritative record of holdings and cost basis,
// independent of whatever the venue reports, so venue-side reporting gaps
// cannot corrupt the book.
package ledger

import (
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"main/internal/schema"
)

var (
	ErrInvalidFill = errors.New("ledger: fill quantity must be > 0")
	ErrUnknownSide = errors.New("ledger: fill side is unknown")
)

// MidSource supplies the current mark price for an instrument.
type MidSource interface {
	Mid(key schema.InstrumentKey) (schema.Price, bool)
}

// Position is one open holding. Quantity is signed: negative means short.
// AverageCost is recomputed only on quantity-increasing fills; reducing
// fills preserve it and realize profit instead.
type Position struct {
	Instrument  schema.InstrumentKey
	Quantity    schema.Quantity
	AverageCost decimal.Decimal
	RealizedPnL decimal.Decimal
}

// Ledger applies fills to per-instrument positions. Quantities are only
// ever mutated inside ApplyFill.
type Ledger struct {
	mu            sync.Mutex
	positions     map[schema.InstrumentKey]*Position
	totalRealized decimal.Decimal
	multiplier    decimal.Decimal
	marks         MidSource
}

// New creates an empty ledger marking positions against the given source.
func New(marks MidSource) *Ledger {
	return &Ledger{
		positions:  make(map[schema.InstrumentKey]*Position),
		multiplier: decimal.NewFromInt(schema.ContractMultiplier),
		marks:      marks,
	}
}

// ApplyFill updates the position for the filled instrument and returns the
// resulting position. A position driven to exactly zero is removed; the
// returned snapshot then has Quantity zero.
func (l *Ledger) ApplyFill(fill schema.Fill) (Position, error) {
	if fill.Qty <= 0 {
		return Position{}, ErrInvalidFill
	}
	if fill.Side != schema.OrderSideBuy && fill.Side != schema.OrderSideSell {
		return Position{}, ErrUnknownSide
	}

	signedQty := fill.Side.Sign() * int64(fill.Qty)
	price := fill.Price.Decimal()

	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[fill.Instrument]
	if !ok {
		pos = &Position{
			Instrument:  fill.Instrument,
			Quantity:    schema.Quantity(signedQty),
			AverageCost: price,
		}
		l.positions[fill.Instrument] = pos
		return *pos, nil
	}

	oldQty := int64(pos.Quantity)
	switch {
	case oldQty == 0 || sameSign(oldQty, signedQty):
		l.increase(pos, signedQty, price)
	case abs(signedQty) <= abs(oldQty):
		l.reduce(pos, abs(signedQty), price)
	default:
		// Close-and-reverse in one fill: realize the full old quantity,
		// then open the remainder at the fill price.
		remainder := signedQty + oldQty
		l.reduce(pos, abs(oldQty), price)
		l.increase(pos, remainder, price)
	}

	out := *pos
	if pos.Quantity == 0 {
		delete(l.positions, fill.Instrument)
	}
	return out, nil
}

// increase grows position magnitude and reweights the average cost.
func (l *Ledger) increase(pos *Position, signedQty int64, price decimal.Decimal) {
	oldAbs := decimal.NewFromInt(abs(int64(pos.Quantity)))
	addAbs := decimal.NewFromInt(abs(signedQty))
	if pos.Quantity == 0 {
		pos.AverageCost = price
	} else {
		num := oldAbs.Mul(pos.AverageCost).Add(addAbs.Mul(price))
		pos.AverageCost = num.Div(oldAbs.Add(addAbs))
	}
	pos.Quantity += schema.Quantity(signedQty)
}

// reduce shrinks position magnitude and realizes profit against the
// unchanged average cost. reducedAbs must not exceed |pos.Quantity|.
func (l *Ledger) reduce(pos *Position, reducedAbs int64, price decimal.Decimal) {
	direction := int64(1)
	if pos.Quantity < 0 {
		direction = -1
	}
	reduced := decimal.NewFromInt(reducedAbs)
	pnl := price.Sub(pos.AverageCost).
		Mul(reduced).
		Mul(l.multiplier).
		Mul(decimal.NewFromInt(direction))
	pos.RealizedPnL = pos.RealizedPnL.Add(pnl)
	l.totalRealized = l.totalRealized.Add(pnl)
	pos.Quantity -= schema.Quantity(direction * reducedAbs)
}

// Get returns a copy of the position for an instrument.
func (l *Ledger) Get(key schema.InstrumentKey) (Position, bool) {
	l.mu.Lock()
	pos, ok := l.positions[key]
	if !ok {
		l.mu.Unlock()
		return Position{}, false
	}
	out := *pos
	l.mu.Unlock()
	return out, true
}

// Positions returns a copy of every open position.
func (l *Ledger) Positions() []Position {
	l.mu.Lock()
	out := make([]Position, 0, len(l.positions))
	for _, pos := range l.positions {
		out = append(out, *pos)
	}
	l.mu.Unlock()
	return out
}

// UnrealizedPnL marks the position against the current mid price.
// ok is false when there is no position or no usable mark.
func (l *Ledger) UnrealizedPnL(key schema.InstrumentKey) (decimal.Decimal, bool) {
	pos, ok := l.Get(key)
	if !ok || l.marks == nil {
		return decimal.Decimal{}, false
	}
	mid, ok := l.marks.Mid(key)
	if !ok {
		return decimal.Decimal{}, false
	}
	pnl := mid.Decimal().
		Sub(pos.AverageCost).
		Mul(decimal.NewFromInt(int64(pos.Quantity))).
		Mul(l.multiplier)
	return pnl, true
}

// TotalRealized returns the realized profit accumulated across all
// instruments, including positions that have since closed.
func (l *Ledger) TotalRealized() decimal.Decimal {
	l.mu.Lock()
	out := l.totalRealized
	l.mu.Unlock()
	return out
}

func sameSign(a, b int64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
