package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pestofarm/storefront/internal/domain"
	"github.com/pestofarm/storefront/internal/pricing"
	"github.com/pestofarm/storefront/pkg/errors"
)

// CheckoutView is the checkout plus its price breakdown
type CheckoutView struct {
	domain.Checkout
	Quote *pricing.Quote `json:"quote,omitempty"`
}

// CheckoutFlow walks a session through
// collecting_items -> shipping_entered -> payment_selected -> review -> placed -> confirmed.
// Every step checks that the data of the steps before it exists; when it
// does not, *errors.ErrPrecondition names the stage to go back to.
type CheckoutFlow struct {
	sessions   *SessionRegistry
	carts      *CartReconciler
	orders     *OrderService
	aggregator *pricing.Aggregator
	logger     *zap.Logger
}

// NewCheckoutFlow creates a new checkout flow
func NewCheckoutFlow(
	sessions *SessionRegistry,
	carts *CartReconciler,
	orders *OrderService,
	aggregator *pricing.Aggregator,
	logger *zap.Logger,
) *CheckoutFlow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckoutFlow{
		sessions:   sessions,
		carts:      carts,
		orders:     orders,
		aggregator: aggregator,
		logger:     logger,
	}
}

func (f *CheckoutFlow) view(c domain.Checkout) CheckoutView {
	v := CheckoutView{Checkout: c}
	if len(c.Items) > 0 {
		q := f.aggregator.Quote(c.Items)
		v.Quote = &q
	}
	return v
}

// Get returns the current checkout
func (f *CheckoutFlow) Get(caller Caller) CheckoutView {
	return f.view(f.sessions.Get(caller.Email).Checkout())
}

// requireUpTo checks the data needed to enter stage. The precondition error
// carries the last complete stage, whose next step supplies what is missing.
func requireUpTo(c domain.Checkout, stage domain.CheckoutStage) error {
	idx := stage.Index()
	if idx > domain.StageCollectingItems.Index() && len(c.Items) == 0 {
		return &errors.ErrPrecondition{Stage: domain.StageCollectingItems, Missing: "items"}
	}
	if idx > domain.StageShippingEntered.Index() && c.Shipping == nil {
		return &errors.ErrPrecondition{Stage: domain.StageCollectingItems, Missing: "shipping"}
	}
	if idx > domain.StagePaymentSelected.Index() && c.Payment == nil {
		return &errors.ErrPrecondition{Stage: domain.StageShippingEntered, Missing: "payment"}
	}
	return nil
}

func guardNotPlaced(c domain.Checkout) error {
	if c.Stage == domain.StagePlaced || c.Stage == domain.StageConfirmed {
		return &errors.ErrConflict{Message: fmt.Sprintf("order %d already placed; reset the checkout to start a new one", c.PlacedOrderID)}
	}
	return nil
}

// SetItems starts (or restarts) the checkout with items
func (f *CheckoutFlow) SetItems(caller Caller, items []domain.OrderItem) (CheckoutView, error) {
	if len(items) == 0 {
		return CheckoutView{}, &errors.ErrValidation{
			Message: "at least one item is required",
			Fields:  map[string]string{"items": "required"},
		}
	}
	for i, item := range items {
		if item.ProductID <= 0 || item.Quantity <= 0 {
			return CheckoutView{}, &errors.ErrValidation{
				Message: "invalid order item",
				Fields:  map[string]string{fmt.Sprintf("items[%d]", i): "productId and a positive quantity are required"},
			}
		}
	}

	sess := f.sessions.Get(caller.Email)
	defer sess.lock()()

	c := sess.Checkout()
	if c.Stage == domain.StagePlaced || c.Stage == domain.StageConfirmed {
		c = domain.Checkout{}
	}
	c.Items = append([]domain.OrderItem(nil), items...)
	c.Stage = domain.StageCollectingItems
	return f.view(sess.setCheckout(c)), nil
}

// SetItemsFromCart copies the cart into the checkout (the regular cart flow;
// SetItems is the direct "buy now" flow)
func (f *CheckoutFlow) SetItemsFromCart(ctx context.Context, caller Caller) (CheckoutView, error) {
	cart, err := f.carts.Current(ctx, caller)
	if err != nil {
		return CheckoutView{}, err
	}
	if len(cart.Items) == 0 {
		return CheckoutView{}, &errors.ErrPrecondition{Stage: domain.StageCollectingItems, Missing: "items"}
	}
	return f.SetItems(caller, pricing.OrderItemsFromCart(cart.Items))
}

// SetShipping records the delivery address
func (f *CheckoutFlow) SetShipping(caller Caller, info domain.ShippingInfo) (CheckoutView, error) {
	sess := f.sessions.Get(caller.Email)
	defer sess.lock()()

	c := sess.Checkout()
	if err := guardNotPlaced(c); err != nil {
		return CheckoutView{}, err
	}
	if err := requireUpTo(c, domain.StageShippingEntered); err != nil {
		return CheckoutView{}, err
	}
	info, err := ValidateShipping(info)
	if err != nil {
		return CheckoutView{}, err
	}
	c.Shipping = &info
	c.Stage = domain.StageShippingEntered
	return f.view(sess.setCheckout(c)), nil
}

// SetPayment records the payment method. Card details are validated for
// razorpay and then discarded.
func (f *CheckoutFlow) SetPayment(caller Caller, info domain.PaymentInfo, card *domain.CardDetails) (CheckoutView, error) {
	sess := f.sessions.Get(caller.Email)
	defer sess.lock()()

	c := sess.Checkout()
	if err := guardNotPlaced(c); err != nil {
		return CheckoutView{}, err
	}
	if err := requireUpTo(c, domain.StagePaymentSelected); err != nil {
		return CheckoutView{}, err
	}
	if err := ValidatePayment(info, card, now()); err != nil {
		return CheckoutView{}, err
	}
	c.Payment = &domain.PaymentInfo{Method: info.Method}
	c.Stage = domain.StagePaymentSelected
	return f.view(sess.setCheckout(c)), nil
}

// Review moves to the review stage and returns the price breakdown
func (f *CheckoutFlow) Review(caller Caller) (CheckoutView, error) {
	sess := f.sessions.Get(caller.Email)
	defer sess.lock()()

	c := sess.Checkout()
	if err := guardNotPlaced(c); err != nil {
		return CheckoutView{}, err
	}
	if err := requireUpTo(c, domain.StageReview); err != nil {
		return CheckoutView{}, err
	}
	c.Stage = domain.StageReview
	return f.view(sess.setCheckout(c)), nil
}

// Place places the reviewed order and clears the checkout data
func (f *CheckoutFlow) Place(ctx context.Context, caller Caller) (*domain.Order, error) {
	sess := f.sessions.Get(caller.Email)
	defer sess.lock()()

	c := sess.Checkout()
	if err := guardNotPlaced(c); err != nil {
		return nil, err
	}
	if err := requireUpTo(c, domain.StagePlaced); err != nil {
		return nil, err
	}
	if c.Stage != domain.StageReview {
		return nil, &errors.ErrPrecondition{Stage: domain.StagePaymentSelected, Missing: "review"}
	}

	req := PlaceRequest{Items: c.Items, Shipping: *c.Shipping, Payment: *c.Payment}
	if err := validatePlaceRequest(req); err != nil {
		return nil, err
	}
	order, err := f.orders.place(ctx, caller, sess, req)
	if err != nil {
		return nil, err
	}

	sess.setCheckout(domain.Checkout{Stage: domain.StagePlaced, PlacedOrderID: order.ID})
	return order, nil
}

// Confirm acknowledges the placed order on the confirmation page
func (f *CheckoutFlow) Confirm(ctx context.Context, caller Caller, orderID int64) (*domain.Order, error) {
	sess := f.sessions.Get(caller.Email)
	defer sess.lock()()

	c := sess.Checkout()
	if c.Stage != domain.StagePlaced && c.Stage != domain.StageConfirmed {
		return nil, &errors.ErrPrecondition{Stage: c.Stage, Missing: "placed order"}
	}
	if c.PlacedOrderID != orderID {
		return nil, &errors.ErrNotFound{Resource: "placed order", ID: fmt.Sprintf("%d", orderID)}
	}
	order, ok := findOrder(sess.Orders().Orders, orderID)
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "order", ID: fmt.Sprintf("%d", orderID)}
	}
	c.Stage = domain.StageConfirmed
	sess.setCheckout(c)
	return &order, nil
}

// Back moves one stage backward. Data already entered is kept.
func (f *CheckoutFlow) Back(caller Caller) (CheckoutView, error) {
	sess := f.sessions.Get(caller.Email)
	defer sess.lock()()

	c := sess.Checkout()
	if err := guardNotPlaced(c); err != nil {
		return CheckoutView{}, err
	}
	c.Stage = c.Stage.Previous()
	return f.view(sess.setCheckout(c)), nil
}

// Reset discards the checkout
func (f *CheckoutFlow) Reset(caller Caller) CheckoutView {
	sess := f.sessions.Get(caller.Email)
	defer sess.lock()()
	return f.view(sess.setCheckout(domain.Checkout{Stage: domain.StageCollectingItems}))
}
