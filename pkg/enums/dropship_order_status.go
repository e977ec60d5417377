package enums

import "fmt"

// DropshipOrderStatus tracks the lifecycle of a supplier re-purchase order.
type DropshipOrderStatus string

const (
	DropshipOrderStatusPending   DropshipOrderStatus = "pending"
	DropshipOrderStatusPlaced    DropshipOrderStatus = "placed"
	DropshipOrderStatusConfirmed DropshipOrderStatus = "confirmed"
	DropshipOrderStatusShipped   DropshipOrderStatus = "shipped"
	DropshipOrderStatusDelivered DropshipOrderStatus = "delivered"
	DropshipOrderStatusCancelled DropshipOrderStatus = "cancelled"
	DropshipOrderStatusRefunded  DropshipOrderStatus = "refunded"
	DropshipOrderStatusIssue     DropshipOrderStatus = "issue"
)

var validDropshipOrderStatuses = []DropshipOrderStatus{
	DropshipOrderStatusPending,
	DropshipOrderStatusPlaced,
	DropshipOrderStatusConfirmed,
	DropshipOrderStatusShipped,
	DropshipOrderStatusDelivered,
	DropshipOrderStatusCancelled,
	DropshipOrderStatusRefunded,
	DropshipOrderStatusIssue,
}

// String implements fmt.Stringer.
func (s DropshipOrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known DropshipOrderStatus.
func (s DropshipOrderStatus) IsValid() bool {
	for _, candidate := range validDropshipOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status permits no further transitions.
func (s DropshipOrderStatus) IsTerminal() bool {
	switch s {
	case DropshipOrderStatusDelivered, DropshipOrderStatusCancelled, DropshipOrderStatusRefunded:
		return true
	}
	return false
}

// ParseDropshipOrderStatus converts raw input into a DropshipOrderStatus.
func ParseDropshipOrderStatus(value string) (DropshipOrderStatus, error) {
	for _, candidate := range validDropshipOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dropship order status %q", value)
}
