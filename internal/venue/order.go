package venue

import "main/internal/schema"

// NoPrice is the documented "no value" sentinel for unused price fields.
// Venue-facing payloads must never carry zero-value price fields: some SDK
// order structs default unset numerics to huge sentinels and the venue then
// rejects the order silently.
const NoPrice schema.Price = -1

// TimeInForce values accepted by the venue.
const (
	TifDay = "DAY"
	TifGTC = "GTC"
)

// Order type codes accepted by the venue.
const (
	TypeLimit     = "LMT"
	TypeStopLimit = "STP LMT"
)

// Order is the venue-facing order payload. Construct it through NewLimitOrder
// or NewStopLimitOrder so every field is explicitly set.
type Order struct {
	OrderID     uint64
	Instrument  schema.InstrumentKey
	Side        schema.OrderSide
	Qty         schema.Quantity
	Type        string
	LimitPrice  schema.Price
	StopPrice   schema.Price
	TimeInForce string
	Account     string
	Transmit    bool
}

// NewLimitOrder builds a day limit order with every field populated.
func NewLimitOrder(orderID uint64, key schema.InstrumentKey, side schema.OrderSide, qty schema.Quantity, limit schema.Price) Order {
	return Order{
		OrderID:     orderID,
		Instrument:  key,
		Side:        side,
		Qty:         qty,
		Type:        TypeLimit,
		LimitPrice:  limit,
		StopPrice:   NoPrice,
		TimeInForce: TifDay,
		Account:     "",
		Transmit:    true,
	}
}

// NewStopLimitOrder builds a day stop-limit order with every field populated.
func NewStopLimitOrder(orderID uint64, key schema.InstrumentKey, side schema.OrderSide, qty schema.Quantity, stop, limit schema.Price) Order {
	return Order{
		OrderID:     orderID,
		Instrument:  key,
		Side:        side,
		Qty:         qty,
		Type:        TypeStopLimit,
		LimitPrice:  limit,
		StopPrice:   stop,
		TimeInForce: TifDay,
		Account:     "",
		Transmit:    true,
	}
}
