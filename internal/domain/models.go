package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SizeVariant is one purchasable size of a product with its own price table
type SizeVariant struct {
	Label    string          `json:"label"`
	Price    decimal.Decimal `json:"price"`
	Discount decimal.Decimal `json:"discount"`
}

// Product is reference data; the cart only points at it
type Product struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	CurrentPrice decimal.Decimal `json:"currentPrice"`
	Sizes        []SizeVariant   `json:"sizes"`
	Images       []string        `json:"images,omitempty"`
}

// Size returns the variant with the given label
func (p Product) Size(label string) (SizeVariant, bool) {
	for _, s := range p.Sizes {
		if s.Label == label {
			return s, true
		}
	}
	return SizeVariant{}, false
}

// DefaultSizeLabel is the label of the first variant, "" when the product has none
func (p Product) DefaultSizeLabel() string {
	if len(p.Sizes) == 0 {
		return ""
	}
	return p.Sizes[0].Label
}

// CartItem is one line of the cart, unique per (Product.ID, SelectedSize)
type CartItem struct {
	RemoteID     int64   `json:"remoteId,omitempty"` // backend cart-item id, 0 for local-only lines
	Product      Product `json:"product"`
	Quantity     int     `json:"quantity"`
	SelectedSize string  `json:"selectedSize"`
}

// Matches reports whether the line is the (productID, size) pair
func (i CartItem) Matches(productID int64, size string) bool {
	return i.Product.ID == productID && i.SelectedSize == size
}

// Cart is the per-user cart state container
type Cart struct {
	Items      []CartItem `json:"items"`
	SyncStatus SyncStatus `json:"syncStatus"`
	Revision   int64      `json:"revision"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// OrderItem is one line of an order
type OrderItem struct {
	ID           int64           `json:"id,omitempty"`
	ProductID    int64           `json:"productId"`
	Name         string          `json:"name,omitempty"`
	Size         string          `json:"size"`
	Quantity     int             `json:"quantity"`
	MrpPrice     decimal.Decimal `json:"mrpPrice"`
	SellingPrice decimal.Decimal `json:"sellingPrice"`
}

// ShippingInfo is the delivery address captured at checkout
type ShippingInfo struct {
	ID     int64  `json:"id,omitempty"`
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

// PaymentInfo is the payment choice captured at checkout
type PaymentInfo struct {
	Method        PaymentMethod `json:"method"`
	TransactionID string        `json:"transactionId,omitempty"`
	OrderID       string        `json:"orderId,omitempty"`
	Status        string        `json:"status,omitempty"`
	// PaymentLinkURL is returned by the backend for online payments
	PaymentLinkURL string `json:"paymentLinkUrl,omitempty"`
}

// CardDetails are only validated, never stored
type CardDetails struct {
	Number     string `json:"cardNumber"`
	Expiry     string `json:"expiryDate"`
	CVV        string `json:"cvv"`
	HolderName string `json:"cardHolderName"`
}

// Order is a placed order, from the backend or synthesized in demo mode
type Order struct {
	ID                int64           `json:"id"`
	OrderID           string          `json:"orderId"`
	Items             []OrderItem     `json:"orderItems"`
	ShippingAddress   ShippingInfo    `json:"shippingAddress"`
	PaymentDetails    PaymentInfo     `json:"paymentDetails"`
	TotalMrpPrice     decimal.Decimal `json:"totalMrpPrice"`
	TotalSellingPrice decimal.Decimal `json:"totalSellingPrice"`
	Taxes             decimal.Decimal `json:"taxes"`
	DeliveryCharges   decimal.Decimal `json:"deliveryCharges"`
	Total             decimal.Decimal `json:"total"`
	Status            OrderStatus     `json:"orderStatus"`
	TotalItem         int             `json:"totalItem"`
	PaymentStatus     string          `json:"paymentStatus"`
	OrderDate         time.Time       `json:"orderDate"`
	DeliveryDate      time.Time       `json:"deliveryDate"`
	Demo              bool            `json:"demo"`
	SyncStatus        SyncStatus      `json:"syncStatus"`
}

// OrderList is the per-user order state container
type OrderList struct {
	Orders     []Order    `json:"orders"`
	SyncStatus SyncStatus `json:"syncStatus"`
	Revision   int64      `json:"revision"`
}

// Checkout is the in-progress order placement
type Checkout struct {
	Stage    CheckoutStage `json:"stage"`
	Items    []OrderItem   `json:"items"`
	Shipping *ShippingInfo `json:"shipping,omitempty"`
	Payment  *PaymentInfo  `json:"payment,omitempty"`
	// PlacedOrderID is set once the order exists
	PlacedOrderID int64 `json:"placedOrderId,omitempty"`
}

// Profile is the customer's profile as the backend returns it
type Profile struct {
	ID         int64      `json:"id,omitempty"`
	FullName   string     `json:"fullName"`
	Email      string     `json:"email"`
	Mobile     string     `json:"mobile,omitempty"`
	Address    string     `json:"address,omitempty"`
	SyncStatus SyncStatus `json:"syncStatus,omitempty"`
}

// ChatMessage is one message of a customer/scientist chat
type ChatMessage struct {
	ID         string     `json:"id"`
	ChatID     int64      `json:"chatId"`
	Content    string     `json:"content"`
	ImageURL   string     `json:"imageUrl,omitempty"`
	SenderRole string     `json:"senderRole"`
	SenderID   int64      `json:"senderId,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
	IsRead     bool       `json:"isRead"`
	SyncStatus SyncStatus `json:"syncStatus,omitempty"`
}
