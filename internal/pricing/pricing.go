// Package pricing computes cart and order totals. Every function here is pure:
// the same input always yields the same output and nothing is mutated.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/pestofarm/storefront/internal/config"
	"github.com/pestofarm/storefront/internal/domain"
)

// Policy holds the delivery and tax rules
type Policy struct {
	// FreeDeliveryThreshold: delivery is free when (total - discount) is strictly above it
	FreeDeliveryThreshold decimal.Decimal
	DeliveryFee           decimal.Decimal
	GSTRate               decimal.Decimal
	// ChargeEmptyCart keeps the fee on a zero-value cart (zero is below the threshold)
	ChargeEmptyCart bool
}

// DefaultPolicy is ₹50 delivery below ₹499 and 18% GST
func DefaultPolicy() Policy {
	return Policy{
		FreeDeliveryThreshold: decimal.NewFromInt(499),
		DeliveryFee:           decimal.NewFromInt(50),
		GSTRate:               decimal.RequireFromString("0.18"),
		ChargeEmptyCart:       true,
	}
}

// PolicyFromConfig parses the pricing section of the config
func PolicyFromConfig(cfg config.PricingConfig) (Policy, error) {
	threshold, err := decimal.NewFromString(cfg.FreeDeliveryThreshold)
	if err != nil {
		return Policy{}, fmt.Errorf("invalid FREE_DELIVERY_THRESHOLD: %w", err)
	}
	fee, err := decimal.NewFromString(cfg.DeliveryFee)
	if err != nil {
		return Policy{}, fmt.Errorf("invalid DELIVERY_FEE: %w", err)
	}
	gst, err := decimal.NewFromString(cfg.GSTRate)
	if err != nil {
		return Policy{}, fmt.Errorf("invalid GST_RATE: %w", err)
	}
	return Policy{
		FreeDeliveryThreshold: threshold,
		DeliveryFee:           fee,
		GSTRate:               gst,
		ChargeEmptyCart:       cfg.ChargeEmptyCart,
	}, nil
}

// Totals are the derived numbers of a cart
type Totals struct {
	NumberOfProducts int             `json:"numberOfProducts"`
	TotalCost        decimal.Decimal `json:"totalCost"`
	DiscountApplied  decimal.Decimal `json:"discountApplied"`
	DeliveryCharges  decimal.Decimal `json:"deliveryCharges"`
	FinalTotal       decimal.Decimal `json:"finalTotal"`
}

// Quote is the review-page breakdown of an order
type Quote struct {
	TotalItems      int             `json:"totalItems"`
	TotalMrp        decimal.Decimal `json:"totalMrp"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Taxes           decimal.Decimal `json:"taxes"`
	DeliveryCharges decimal.Decimal `json:"deliveryCharges"`
	Total           decimal.Decimal `json:"total"`
}

type Aggregator struct {
	policy Policy
}

func NewAggregator(policy Policy) *Aggregator {
	return &Aggregator{policy: policy}
}

func (a *Aggregator) Policy() Policy {
	return a.policy
}

// UnitPrice resolves the price and discount of one unit of a cart line.
// Unknown sizes fall back to the product's current price with no discount.
func UnitPrice(item domain.CartItem) (price, discount decimal.Decimal) {
	if size, ok := item.Product.Size(item.SelectedSize); ok {
		return size.Price, size.Discount
	}
	return item.Product.CurrentPrice, decimal.Zero
}

// Summarize computes the cart totals
func (a *Aggregator) Summarize(items []domain.CartItem) Totals {
	t := Totals{
		TotalCost:       decimal.Zero,
		DiscountApplied: decimal.Zero,
	}
	for _, item := range items {
		qty := decimal.NewFromInt(int64(item.Quantity))
		price, discount := UnitPrice(item)
		t.NumberOfProducts += item.Quantity
		t.TotalCost = t.TotalCost.Add(price.Mul(qty))
		t.DiscountApplied = t.DiscountApplied.Add(discount.Mul(qty))
	}
	t.DeliveryCharges = a.DeliveryCharges(t.TotalCost.Sub(t.DiscountApplied), len(items) == 0)
	t.FinalTotal = t.TotalCost.Sub(t.DiscountApplied).Add(t.DeliveryCharges)
	return t
}

// DeliveryCharges applies the free-delivery threshold to a net amount
func (a *Aggregator) DeliveryCharges(net decimal.Decimal, empty bool) decimal.Decimal {
	if empty && !a.policy.ChargeEmptyCart {
		return decimal.Zero
	}
	if net.GreaterThan(a.policy.FreeDeliveryThreshold) {
		return decimal.Zero
	}
	return a.policy.DeliveryFee
}

// Quote prices an order for review and for demo placement: GST on the
// selling subtotal plus the flat delivery fee, without the free threshold.
func (a *Aggregator) Quote(items []domain.OrderItem) Quote {
	q := Quote{
		TotalMrp: decimal.Zero,
		Subtotal: decimal.Zero,
	}
	for _, item := range items {
		qty := decimal.NewFromInt(int64(item.Quantity))
		q.TotalItems += item.Quantity
		q.TotalMrp = q.TotalMrp.Add(item.MrpPrice.Mul(qty))
		q.Subtotal = q.Subtotal.Add(item.SellingPrice.Mul(qty))
	}
	q.Taxes = q.Subtotal.Mul(a.policy.GSTRate)
	q.DeliveryCharges = a.policy.DeliveryFee
	q.Total = q.Subtotal.Add(q.Taxes).Add(q.DeliveryCharges)
	return q
}

// OrderItemsFromCart converts cart lines to order lines: mrp is the unit
// price, selling is the unit price minus the unit discount.
func OrderItemsFromCart(items []domain.CartItem) []domain.OrderItem {
	out := make([]domain.OrderItem, 0, len(items))
	for _, item := range items {
		price, discount := UnitPrice(item)
		out = append(out, domain.OrderItem{
			ProductID:    item.Product.ID,
			Name:         item.Product.Name,
			Size:         item.SelectedSize,
			Quantity:     item.Quantity,
			MrpPrice:     price,
			SellingPrice: price.Sub(discount),
		})
	}
	return out
}
