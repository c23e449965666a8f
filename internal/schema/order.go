package schema

import "time"

// OrderSide describes order direction.
type OrderSide uint16

const (
	OrderSideUnknown OrderSide = iota
	OrderSideBuy
	OrderSideSell
)

// String returns the venue action string for the side.
func (s OrderSide) String() string {
	switch s {
	case OrderSideBuy:
		return "BUY"
	case OrderSideSell:
		return "SELL"
	default:
		return "?"
	}
}

// Sign returns +1 for buys and -1 for sells.
func (s OrderSide) Sign() int64 {
	if s == OrderSideSell {
		return -1
	}
	return 1
}

// Opposite returns the other side.
func (s OrderSide) Opposite() OrderSide {
	switch s {
	case OrderSideBuy:
		return OrderSideSell
	case OrderSideSell:
		return OrderSideBuy
	default:
		return OrderSideUnknown
	}
}

// OrderMode selects the placement protocol for a submitted order.
type OrderMode uint16

const (
	OrderModeUnknown OrderMode = iota
	// OrderModeChaseMid reprices the order toward the market whenever the
	// mid moves, with time-escalating concessions.
	OrderModeChaseMid
	// OrderModePassive leaves the initial limit price untouched.
	OrderModePassive
)

// OrderState tracks the engine's view of an order lifecycle.
type OrderState uint16

const (
	OrderStateUnknown OrderState = iota
	OrderStateWorking
	OrderStateCancelling
	OrderStateFilled
	OrderStateCancelled
	OrderStateRejected
)

// String returns a log-friendly state name.
func (s OrderState) String() string {
	switch s {
	case OrderStateWorking:
		return "Working"
	case OrderStateCancelling:
		return "Cancelling"
	case OrderStateFilled:
		return "Filled"
	case OrderStateCancelled:
		return "Cancelled"
	case OrderStateRejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// Terminal reports whether the state removes the order from the engine.
func (s OrderState) Terminal() bool {
	switch s {
	case OrderStateFilled, OrderStateCancelled, OrderStateRejected:
		return true
	default:
		return false
	}
}

// VenueOrderStatus is the status reported by the venue on an order
// status callback.
type VenueOrderStatus uint16

const (
	VenueStatusUnknown VenueOrderStatus = iota
	VenueStatusSubmitted
	VenueStatusPartFilled
	VenueStatusFilled
	VenueStatusCancelled
	VenueStatusRejected
)

// Fill is one execution report from the venue.
type Fill struct {
	OrderID    uint64
	Instrument InstrumentKey
	Side       OrderSide
	Qty        Quantity
	Price      Price
	Time       time.Time
}
