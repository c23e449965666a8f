package schema

import "time"

// TickField identifies which quote field a market data tick updates.
type TickField uint16

const (
	TickUnknown TickField = iota
	TickBid
	TickAsk
	TickLast
	TickBidSize
	TickAskSize
)

// String returns a log-friendly field name.
func (f TickField) String() string {
	switch f {
	case TickBid:
		return "bid"
	case TickAsk:
		return "ask"
	case TickLast:
		return "last"
	case TickBidSize:
		return "bidSize"
	case TickAskSize:
		return "askSize"
	default:
		return "unknown"
	}
}

// Quote is the latest two-sided market for one instrument.
type Quote struct {
	Bid         Price
	Ask         Price
	Last        Price
	BidSize     Quantity
	AskSize     Quantity
	LastUpdated time.Time
}
