package services

// Event types published to connected dashboard clients.
const (
	EventStockChanged         = "stock_changed"
	EventProductChanged       = "product_changed"
	EventSaleRecorded         = "sale_recorded"
	EventSaleRemoved          = "sale_removed"
	EventReservationHeld      = "reservation_held"
	EventReservationConverted = "reservation_converted"
	EventReservationReleased  = "reservation_released"
	EventSnapshotSaved        = "reorder_snapshot_saved"
)

// EventPublisher pushes engine events to the live feed. Implemented by the
// websocket server; declared here to avoid an import cycle, the same way the
// websocket package declares its service interfaces.
type EventPublisher interface {
	Publish(eventType string, payload interface{})
}

// publish is a nil-safe helper so services can fire events without caring
// whether a feed is attached (tests run without one).
func publish(p EventPublisher, eventType string, payload interface{}) {
	if p == nil {
		return
	}
	p.Publish(eventType, payload)
}
