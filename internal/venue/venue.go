// Package venue defines the boundary to the broker session. The broker SDK
// plays two roles: it accepts commands and it pushes callbacks. The two are
// kept as separate capabilities composed by the session manager, rather
// than one wide surface.
package venue

import "main/internal/schema"

// Commander issues commands over the logical venue connection. Commands are
// fire-and-forget from the caller's perspective: outcomes arrive later as
// Events callbacks. An error return means the command never left the
// process.
type Commander interface {
	Connect(identity int) error
	Disconnect() error
	SubmitOrder(order Order) error
	CancelOrder(orderID uint64) error
	SubscribeQuotes(correlationID uint64, key schema.InstrumentKey) error
	UnsubscribeQuotes(correlationID uint64) error
}

// Events is the inbound callback surface the venue invokes. Callbacks for
// one session are delivered strictly serialized in arrival order.
type Events interface {
	OnTick(correlationID uint64, field schema.TickField, value int64)
	OnOrderStatus(orderID uint64, status schema.VenueOrderStatus, filledQty schema.Quantity, avgFillPrice schema.Price)
	OnFill(fill schema.Fill)
	OnError(code int32, correlationID uint64, message string)
	OnConnected()
	OnDisconnected()
}
