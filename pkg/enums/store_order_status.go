package enums

import "fmt"

// StoreOrderStatus mirrors the storefront order lifecycle. Only the states the
// fulfillment flow touches are modeled here; the storefront owns the rest.
type StoreOrderStatus string

const (
	StoreOrderStatusPaid       StoreOrderStatus = "paid"
	StoreOrderStatusProcessing StoreOrderStatus = "processing"
	StoreOrderStatusShipped    StoreOrderStatus = "shipped"
	StoreOrderStatusDelivered  StoreOrderStatus = "delivered"
	StoreOrderStatusCancelled  StoreOrderStatus = "cancelled"
)

var validStoreOrderStatuses = []StoreOrderStatus{
	StoreOrderStatusPaid,
	StoreOrderStatusProcessing,
	StoreOrderStatusShipped,
	StoreOrderStatusDelivered,
	StoreOrderStatusCancelled,
}

// String implements fmt.Stringer.
func (s StoreOrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StoreOrderStatus.
func (s StoreOrderStatus) IsValid() bool {
	for _, candidate := range validStoreOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStoreOrderStatus converts raw input into a StoreOrderStatus.
func ParseStoreOrderStatus(value string) (StoreOrderStatus, error) {
	for _, candidate := range validStoreOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid store order status %q", value)
}
