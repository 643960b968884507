package domain

import "strings"

// OrderStatus represents the status of a customer order (backend-aligned)
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPlaced    OrderStatus = "PLACED"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// IsValid checks if the order status is valid
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending,
		OrderStatusPlaced,
		OrderStatusConfirmed,
		OrderStatusShipped,
		OrderStatusDelivered,
		OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo checks if a status transition is valid.
// Only cancellation is driven locally; the rest arrive from the backend.
func (s OrderStatus) CanTransitionTo(newStatus OrderStatus) bool {
	switch s {
	case OrderStatusPending:
		return newStatus == OrderStatusPlaced ||
			newStatus == OrderStatusConfirmed ||
			newStatus == OrderStatusCancelled
	case OrderStatusPlaced:
		return newStatus == OrderStatusConfirmed ||
			newStatus == OrderStatusCancelled
	case OrderStatusConfirmed:
		return newStatus == OrderStatusShipped ||
			newStatus == OrderStatusCancelled
	case OrderStatusShipped:
		return newStatus == OrderStatusDelivered
	case OrderStatusDelivered, OrderStatusCancelled:
		return false // Terminal states
	default:
		return false
	}
}

// ParseOrderStatus normalizes a backend or UI status ("pending", "Pending") to an OrderStatus
func ParseOrderStatus(s string) OrderStatus {
	status := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !status.IsValid() {
		return OrderStatusPending
	}
	return status
}

// Matches reports whether the status passes a UI filter ("all", "pending", ...)
func (s OrderStatus) Matches(filter string) bool {
	filter = strings.TrimSpace(filter)
	if filter == "" || strings.EqualFold(filter, "all") {
		return true
	}
	return strings.EqualFold(string(s), filter)
}

// SyncStatus tags an entity with how it relates to the backend's copy
type SyncStatus string

const (
	// SyncStatusSynced - state equals the last canonical backend state
	SyncStatusSynced SyncStatus = "synced"
	// SyncStatusLocalOnly - state was mutated locally after the backend failed
	SyncStatusLocalOnly SyncStatus = "local_only"
	// SyncStatusPending - a backend call is in flight
	SyncStatusPending SyncStatus = "pending"
)

// PaymentMethod is the customer's chosen payment method
type PaymentMethod string

const (
	PaymentMethodRazorpay PaymentMethod = "razorpay"
	PaymentMethodCOD      PaymentMethod = "cod"
)

// IsValid checks if the payment method is known
func (m PaymentMethod) IsValid() bool {
	return m == PaymentMethodRazorpay || m == PaymentMethodCOD
}

// BackendName is the enum value the backend expects for paymentMethod
func (m PaymentMethod) BackendName() string {
	if m == PaymentMethodRazorpay {
		return "RAZORPAY"
	}
	return "COD"
}

// CheckoutStage is a step of the order placement flow
type CheckoutStage string

const (
	StageCollectingItems CheckoutStage = "collecting_items"
	StageShippingEntered CheckoutStage = "shipping_entered"
	StagePaymentSelected CheckoutStage = "payment_selected"
	StageReview          CheckoutStage = "review"
	StagePlaced          CheckoutStage = "placed"
	StageConfirmed       CheckoutStage = "confirmed"
)

var checkoutStages = []CheckoutStage{
	StageCollectingItems,
	StageShippingEntered,
	StagePaymentSelected,
	StageReview,
	StagePlaced,
	StageConfirmed,
}

// Index returns the position of the stage in the linear flow, -1 if unknown
func (s CheckoutStage) Index() int {
	for i, st := range checkoutStages {
		if st == s {
			return i
		}
	}
	return -1
}

// Previous returns the stage before s; the first stage returns itself
func (s CheckoutStage) Previous() CheckoutStage {
	i := s.Index()
	if i <= 0 {
		return StageCollectingItems
	}
	return checkoutStages[i-1]
}
