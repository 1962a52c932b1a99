package enums

import "fmt"

// OutboxAggregateType names the aggregate an outbox row belongs to.
type OutboxAggregateType string

const (
	AggregateOrder     OutboxAggregateType = "order"
	AggregateInventory OutboxAggregateType = "inventory"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateInventory,
}

// IsValid reports whether the value is a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// OutboxEventType names the kind of event stored in an outbox row.
type OutboxEventType string

const (
	// EventOrderSubmitted carries a locally saved order that still has to reach the orders service.
	EventOrderSubmitted OutboxEventType = "order_submitted"
	// EventOrderCreated announces an order accepted by the orders service.
	EventOrderCreated OutboxEventType = "order_created"
	// EventInventoryImported announces a committed CSV import.
	EventInventoryImported OutboxEventType = "inventory_imported"
)

var validEventTypes = []OutboxEventType{
	EventOrderSubmitted,
	EventOrderCreated,
	EventInventoryImported,
}

// String implements fmt.Stringer.
func (e OutboxEventType) String() string {
	return string(e)
}

// IsValid reports whether the value is a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into an OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}
