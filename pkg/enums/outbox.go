package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateDropshipOrder OutboxAggregateType = "dropship_order"
	AggregateImportJob     OutboxAggregateType = "import_job"
	AggregateProductSource OutboxAggregateType = "product_source"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateDropshipOrder,
	AggregateImportJob,
	AggregateProductSource,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventDropshipOrderCreated       OutboxEventType = "dropship_order_created"
	EventDropshipOrderPlaced        OutboxEventType = "dropship_order_placed"
	EventDropshipOrderShipped       OutboxEventType = "dropship_order_shipped"
	EventDropshipOrderDelivered     OutboxEventType = "dropship_order_delivered"
	EventDropshipOrderIssue         OutboxEventType = "dropship_order_issue"
	EventDropshipOrderStatusChanged OutboxEventType = "dropship_order_status_changed"
	EventImportCompleted            OutboxEventType = "import_completed"
	EventImportFailed               OutboxEventType = "import_failed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventDropshipOrderCreated,
	EventDropshipOrderPlaced,
	EventDropshipOrderShipped,
	EventDropshipOrderDelivered,
	EventDropshipOrderIssue,
	EventDropshipOrderStatusChanged,
	EventImportCompleted,
	EventImportFailed,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
