package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pestofarm/storefront/internal/backend"
	"github.com/pestofarm/storefront/internal/domain"
	"github.com/pestofarm/storefront/internal/pricing"
	"github.com/pestofarm/storefront/internal/repository"
	"github.com/pestofarm/storefront/pkg/errors"
)

// PlaceRequest is everything needed to place an order
type PlaceRequest struct {
	Items    []domain.OrderItem
	Shipping domain.ShippingInfo
	Payment  domain.PaymentInfo
}

var orderFilters = map[string]bool{
	"all":       true,
	"pending":   true,
	"placed":    true,
	"confirmed": true,
	"shipped":   true,
	"delivered": true,
	"cancelled": true,
}

// OrderService loads, places and cancels orders with the same
// backend-first, mirror-second policy as the cart
type OrderService struct {
	sessions   *SessionRegistry
	backend    OrderBackend
	mirror     repository.SnapshotStore
	aggregator *pricing.Aggregator
	demoMode   bool
	logger     *zap.Logger
}

// NewOrderService creates a new order service. With demoMode set, placement
// synthesizes a local demo order when the backend cannot take it.
func NewOrderService(
	sessions *SessionRegistry,
	orderBackend OrderBackend,
	mirror repository.SnapshotStore,
	aggregator *pricing.Aggregator,
	demoMode bool,
	logger *zap.Logger,
) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		sessions:   sessions,
		backend:    orderBackend,
		mirror:     mirror,
		aggregator: aggregator,
		demoMode:   demoMode,
		logger:     logger,
	}
}

// Load re-reads the order list from the backend, falling back to the mirror
func (s *OrderService) Load(ctx context.Context, caller Caller) (domain.OrderList, error) {
	sess := s.sessions.Get(caller.Email)
	defer sess.lock()()
	return s.load(ctx, caller, sess)
}

func (s *OrderService) load(ctx context.Context, caller Caller, sess *Session) (domain.OrderList, error) {
	if caller.Token != "" {
		prev := sess.Orders().SyncStatus
		sess.setOrdersStatus(domain.SyncStatusPending)
		remote, err := s.backend.ListUserOrders(ctx, caller.Token)
		if err == nil {
			local := sess.Orders().Orders
			if !sess.isOrdersLoaded() {
				// first load in this process: demo orders only exist in the mirror
				local = append(local, s.mirroredDemoOrders(ctx, sess.Email)...)
			}
			merged := mergeDemoOrders(remote, local)
			list := sess.commitOrders(merged, domain.SyncStatusSynced)
			s.writeMirror(ctx, sess.Email, list)
			return list, nil
		}
		if authRejected(err) {
			sess.setOrdersStatus(prev)
			return domain.OrderList{}, err
		}
		s.logger.Warn("Failed to load orders from backend, falling back to mirror",
			zap.String("email", sess.Email), zap.Error(err))
	}

	var mirrored domain.OrderList
	found, err := repository.ReadJSON(ctx, s.mirror, repository.OrdersKey(sess.Email), &mirrored)
	if err != nil {
		s.logger.Warn("Failed to read orders mirror", zap.String("email", sess.Email), zap.Error(err))
		return sess.commitOrders(sess.Orders().Orders, domain.SyncStatusLocalOnly), nil
	}
	if !found {
		// keep what this process already knows, e.g. demo orders placed before any mirror write
		mirrored.Orders = sess.Orders().Orders
	}
	return sess.commitOrders(mirrored.Orders, domain.SyncStatusLocalOnly), nil
}

func (s *OrderService) ensureLoaded(ctx context.Context, caller Caller, sess *Session) error {
	if sess.isOrdersLoaded() {
		return nil
	}
	_, err := s.load(ctx, caller, sess)
	return err
}

func (s *OrderService) mirroredDemoOrders(ctx context.Context, email string) []domain.Order {
	var mirrored domain.OrderList
	found, err := repository.ReadJSON(ctx, s.mirror, repository.OrdersKey(email), &mirrored)
	if err != nil {
		s.logger.Warn("Failed to read orders mirror", zap.String("email", email), zap.Error(err))
		return nil
	}
	if !found {
		return nil
	}
	var demo []domain.Order
	for _, o := range mirrored.Orders {
		if o.Demo {
			demo = append(demo, o)
		}
	}
	return demo
}

func (s *OrderService) writeMirror(ctx context.Context, email string, list domain.OrderList) {
	if err := repository.WriteJSON(ctx, s.mirror, repository.OrdersKey(email), list); err != nil {
		s.logger.Warn("Failed to mirror orders", zap.String("email", email), zap.Error(err))
	}
}

// mergeDemoOrders normalizes the backend list and keeps local demo orders the
// backend has never seen, newest first
func mergeDemoOrders(remote, local []domain.Order) []domain.Order {
	out := make([]domain.Order, 0, len(remote)+len(local))
	known := make(map[string]bool, len(remote))
	for _, o := range remote {
		normalizeOrder(&o)
		o.SyncStatus = domain.SyncStatusSynced
		known[o.OrderID] = true
		out = append(out, o)
	}
	for _, o := range local {
		if o.Demo && !known[o.OrderID] {
			known[o.OrderID] = true
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OrderDate.After(out[j].OrderDate)
	})
	return out
}

// normalizeOrder fills what the backend leaves out of a listed order
func normalizeOrder(o *domain.Order) {
	if o.Status == "" {
		o.Status = domain.OrderStatusPending
	}
	if o.TotalItem == 0 {
		for _, item := range o.Items {
			o.TotalItem += item.Quantity
		}
	}
	if o.Total.IsZero() {
		o.Total = o.TotalSellingPrice
	}
}

// Current returns the order list, loading it on first access
func (s *OrderService) Current(ctx context.Context, caller Caller) (domain.OrderList, error) {
	sess := s.sessions.Get(caller.Email)
	defer sess.lock()()
	if err := s.ensureLoaded(ctx, caller, sess); err != nil {
		return domain.OrderList{}, err
	}
	return sess.Orders(), nil
}

// List returns the orders whose status passes filter (all, pending, shipped, ...)
func (s *OrderService) List(ctx context.Context, caller Caller, filter string) ([]domain.Order, error) {
	filter = strings.ToLower(strings.TrimSpace(filter))
	if filter == "" {
		filter = "all"
	}
	if !orderFilters[filter] {
		return nil, &errors.ErrValidation{
			Message: fmt.Sprintf("unknown status filter %q", filter),
			Fields:  map[string]string{"status": "must be one of all, pending, placed, confirmed, shipped, delivered, cancelled"},
		}
	}
	list, err := s.Current(ctx, caller)
	if err != nil {
		return nil, err
	}
	return filterOrders(list.Orders, filter), nil
}

func filterOrders(orders []domain.Order, filter string) []domain.Order {
	out := make([]domain.Order, 0, len(orders))
	for _, o := range orders {
		if o.Status.Matches(filter) {
			out = append(out, o)
		}
	}
	return out
}

// Get returns one order, asking the backend when it is not in the list
func (s *OrderService) Get(ctx context.Context, caller Caller, id int64) (*domain.Order, error) {
	list, err := s.Current(ctx, caller)
	if err != nil {
		return nil, err
	}
	for _, o := range list.Orders {
		if o.ID == id {
			return &o, nil
		}
	}
	if caller.Token != "" {
		order, err := s.backend.GetOrder(ctx, caller.Token, id)
		if err == nil {
			normalizeOrder(order)
			order.SyncStatus = domain.SyncStatusSynced
			return order, nil
		}
		if authRejected(err) {
			return nil, err
		}
		s.logger.Debug("Order lookup on backend failed", zap.Int64("order_id", id), zap.Error(err))
	}
	return nil, &errors.ErrNotFound{Resource: "order", ID: fmt.Sprintf("%d", id)}
}

// Place creates the order on the backend or, failing that, as a demo order
func (s *OrderService) Place(ctx context.Context, caller Caller, req PlaceRequest) (*domain.Order, error) {
	if err := validatePlaceRequest(req); err != nil {
		return nil, err
	}
	sess := s.sessions.Get(caller.Email)
	defer sess.lock()()
	return s.place(ctx, caller, sess, req)
}

func validatePlaceRequest(req PlaceRequest) error {
	fields := map[string]string{}
	if len(req.Items) == 0 {
		fields["items"] = "at least one item is required"
	}
	if !req.Payment.Method.IsValid() {
		fields["payment.method"] = "must be razorpay or cod"
	}
	if req.Shipping.Name == "" || req.Shipping.Phone == "" || req.Shipping.Street == "" ||
		req.Shipping.City == "" || req.Shipping.State == "" || req.Shipping.Zip == "" {
		fields["shipping"] = "incomplete shipping information"
	}
	if len(fields) > 0 {
		return &errors.ErrValidation{Message: "incomplete order information", Fields: fields}
	}
	return nil
}

func (s *OrderService) place(ctx context.Context, caller Caller, sess *Session, req PlaceRequest) (*domain.Order, error) {
	if err := s.ensureLoaded(ctx, caller, sess); err != nil {
		return nil, err
	}

	var lastErr error
	if caller.Token != "" {
		created, err := s.backend.CreateOrder(ctx, caller.Token, createOrderRequest(req))
		if err == nil {
			order := s.adoptPlaced(*created, req, sess.Orders().Orders)
			s.prepend(ctx, sess, order, domain.SyncStatusSynced)
			s.logger.Info("Order placed", zap.String("email", sess.Email), zap.String("order_id", order.OrderID))
			return &order, nil
		}
		if authRejected(err) {
			return nil, err
		}
		lastErr = err
		s.logger.Warn("Backend order placement failed", zap.String("email", sess.Email), zap.Error(err))
	} else {
		lastErr = &errors.ErrUnauthorized{Message: "no backend token"}
	}

	if !s.demoMode {
		return nil, &errors.ErrBackendUnavailable{Operation: "place order", Err: lastErr}
	}

	order := s.demoOrder(req, sess.Orders().Orders)
	s.prepend(ctx, sess, order, domain.SyncStatusLocalOnly)
	s.logger.Info("Demo order placed", zap.String("email", sess.Email), zap.String("order_id", order.OrderID))
	return &order, nil
}

func (s *OrderService) prepend(ctx context.Context, sess *Session, order domain.Order, status domain.SyncStatus) {
	current := sess.Orders()
	orders := append([]domain.Order{order}, current.Orders...)
	if current.SyncStatus == domain.SyncStatusLocalOnly {
		status = domain.SyncStatusLocalOnly
	}
	list := sess.commitOrders(orders, status)
	s.writeMirror(ctx, sess.Email, list)
}

func createOrderRequest(req PlaceRequest) backend.CreateOrderRequest {
	lines := make([]backend.CreateOrderLine, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, backend.CreateOrderLine{
			ProductID:    item.ProductID,
			Quantity:     item.Quantity,
			Size:         item.Size,
			MrpPrice:     item.MrpPrice.String(),
			SellingPrice: item.SellingPrice.String(),
		})
	}
	return backend.CreateOrderRequest{
		Name:          req.Shipping.Name,
		Phone:         req.Shipping.Phone,
		Street:        req.Shipping.Street,
		City:          req.Shipping.City,
		State:         req.Shipping.State,
		Zip:           req.Shipping.Zip,
		PaymentMethod: req.Payment.Method.BackendName(),
		OrderItems:    lines,
	}
}

// adoptPlaced takes the backend's record and fills whatever it left out
func (s *OrderService) adoptPlaced(o domain.Order, req PlaceRequest, existing []domain.Order) domain.Order {
	t := now()
	q := s.aggregator.Quote(req.Items)

	if o.ID == 0 {
		o.ID = freeOrderID(existing, t.UnixMilli())
	}
	if o.OrderID == "" {
		o.OrderID = fmt.Sprintf("ORD%d", t.UnixMilli())
	}
	if len(o.Items) == 0 {
		o.Items = req.Items
	}
	if o.ShippingAddress == (domain.ShippingInfo{}) {
		o.ShippingAddress = req.Shipping
	}
	if o.PaymentDetails.Method == "" {
		link := o.PaymentDetails.PaymentLinkURL
		txn := o.PaymentDetails.TransactionID
		o.PaymentDetails = req.Payment
		o.PaymentDetails.PaymentLinkURL = link
		if txn != "" {
			o.PaymentDetails.TransactionID = txn
		}
	}
	if o.TotalMrpPrice.IsZero() {
		o.TotalMrpPrice = q.TotalMrp
	}
	if o.TotalSellingPrice.IsZero() {
		o.TotalSellingPrice = q.Subtotal
	}
	if o.Status == "" {
		o.Status = domain.OrderStatusPending
	}
	if o.TotalItem == 0 {
		o.TotalItem = q.TotalItems
	}
	if o.PaymentStatus == "" {
		o.PaymentStatus = "PENDING"
	}
	if o.OrderDate.IsZero() {
		o.OrderDate = t
	}
	if o.DeliveryDate.IsZero() {
		o.DeliveryDate = t.Add(24 * time.Hour)
	}
	if o.Total.IsZero() {
		o.Total = o.TotalSellingPrice
	}
	o.SyncStatus = domain.SyncStatusSynced
	return o
}

// freeOrderID returns candidate, or the next id after it that no order in
// existing uses
func freeOrderID(existing []domain.Order, candidate int64) int64 {
	used := make(map[int64]bool, len(existing))
	for _, o := range existing {
		used[o.ID] = true
	}
	for used[candidate] {
		candidate++
	}
	return candidate
}

// demoOrder prices the request locally: 18% GST and the flat delivery fee
func (s *OrderService) demoOrder(req PlaceRequest, existing []domain.Order) domain.Order {
	t := now()
	q := s.aggregator.Quote(req.Items)
	id := freeOrderID(existing, t.UnixMilli())

	paymentStatus := "COMPLETED"
	if req.Payment.Method == domain.PaymentMethodRazorpay {
		paymentStatus = "PENDING"
	}

	return domain.Order{
		ID:                id,
		OrderID:           fmt.Sprintf("DEMO%d", id),
		Items:             append([]domain.OrderItem(nil), req.Items...),
		ShippingAddress:   req.Shipping,
		PaymentDetails:    req.Payment,
		TotalMrpPrice:     q.TotalMrp,
		TotalSellingPrice: q.Subtotal,
		Taxes:             q.Taxes,
		DeliveryCharges:   q.DeliveryCharges,
		Total:             q.Total,
		Status:            domain.OrderStatusPending,
		TotalItem:         q.TotalItems,
		PaymentStatus:     paymentStatus,
		OrderDate:         t,
		DeliveryDate:      t.Add(7 * 24 * time.Hour),
		Demo:              true,
		SyncStatus:        domain.SyncStatusLocalOnly,
	}
}

// Cancel cancels an order. A backend rejection carrying a JSON message is
// returned as *errors.ErrBackend; any other failure, a demo order or a
// missing token cancels locally.
func (s *OrderService) Cancel(ctx context.Context, caller Caller, id int64) (*domain.Order, error) {
	sess := s.sessions.Get(caller.Email)
	defer sess.lock()()
	if err := s.ensureLoaded(ctx, caller, sess); err != nil {
		return nil, err
	}

	order, ok := findOrder(sess.Orders().Orders, id)
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "order", ID: fmt.Sprintf("%d", id)}
	}
	if !order.Status.CanTransitionTo(domain.OrderStatusCancelled) {
		return nil, &errors.ErrInvalidStateTransition{From: order.Status, To: domain.OrderStatusCancelled}
	}

	if caller.Token != "" && !order.Demo {
		err := s.backend.CancelOrder(ctx, caller.Token, id)
		if err == nil {
			list, err := s.load(ctx, caller, sess)
			if err != nil {
				return nil, err
			}
			if reloaded, ok := findOrder(list.Orders, id); ok && list.SyncStatus == domain.SyncStatusSynced {
				return &reloaded, nil
			}
			return s.cancelLocally(ctx, sess, id)
		}
		if authRejected(err) {
			return nil, err
		}
		if rejected, ok := rejectedWithMessage(err); ok {
			s.logger.Warn("Backend rejected order cancellation", zap.Int64("order_id", id), zap.Error(err))
			return nil, rejected
		}
		s.logger.Warn("Backend cancel failed, cancelling locally", zap.Int64("order_id", id), zap.Error(err))
	}

	return s.cancelLocally(ctx, sess, id)
}

func (s *OrderService) cancelLocally(ctx context.Context, sess *Session, id int64) (*domain.Order, error) {
	current := sess.Orders()
	var cancelled domain.Order
	orders := make([]domain.Order, 0, len(current.Orders))
	for _, o := range current.Orders {
		if o.ID == id {
			o.Status = domain.OrderStatusCancelled
			o.SyncStatus = domain.SyncStatusLocalOnly
			cancelled = o
		}
		orders = append(orders, o)
	}
	list := sess.commitOrders(orders, domain.SyncStatusLocalOnly)
	s.writeMirror(ctx, sess.Email, list)
	return &cancelled, nil
}

func findOrder(orders []domain.Order, id int64) (domain.Order, bool) {
	for _, o := range orders {
		if o.ID == id {
			return o, true
		}
	}
	return domain.Order{}, false
}
