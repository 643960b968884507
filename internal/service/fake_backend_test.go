package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/pestofarm/storefront/internal/backend"
	"github.com/pestofarm/storefront/internal/domain"
	"github.com/pestofarm/storefront/internal/pricing"
	"github.com/pestofarm/storefront/internal/repository/memory"
	"github.com/pestofarm/storefront/pkg/errors"
)

// fakeBackend mimics the REST backend's cart/order/profile/chat behavior in memory
type fakeBackend struct {
	mu sync.Mutex

	down         bool   // every call fails as unreachable
	rejectToken  bool   // every call answers 401
	rejectCancel string // CancelOrder answers 400 with this message
	cancelErr    error
	failOps      map[string]error
	createReply  *domain.Order

	nextID   int64
	products map[int64]domain.Product
	cart     []domain.CartItem
	orders   []domain.Order
	profile  *domain.Profile
	messages []domain.ChatMessage

	calls map[string]int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		nextID:   100,
		products: map[int64]domain.Product{},
		calls:    map[string]int{},
		failOps:  map[string]error{},
	}
}

func (f *fakeBackend) hit(op string) error {
	f.calls[op]++
	if f.down {
		return &errors.ErrBackendUnavailable{Operation: op, Err: fmt.Errorf("connection refused")}
	}
	if f.rejectToken {
		return &errors.ErrUnauthorized{Message: "backend rejected the token: Invalid token"}
	}
	if err := f.failOps[op]; err != nil {
		return err
	}
	return nil
}

func (f *fakeBackend) failOp(op string, err error) {
	f.mu.Lock()
	f.failOps[op] = err
	f.mu.Unlock()
}

func (f *fakeBackend) setDown(down bool) {
	f.mu.Lock()
	f.down = down
	f.mu.Unlock()
}

func (f *fakeBackend) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeBackend) GetCart(ctx context.Context, token string) ([]domain.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("get cart"); err != nil {
		return nil, err
	}
	return append([]domain.CartItem(nil), f.cart...), nil
}

func (f *fakeBackend) AddCartItem(ctx context.Context, token string, req backend.AddCartItemRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("add cart item"); err != nil {
		return err
	}
	for i := range f.cart {
		if f.cart[i].Matches(req.ProductID, req.Size) {
			f.cart[i].Quantity += req.Quantity
			return nil
		}
	}
	product, ok := f.products[req.ProductID]
	if !ok {
		return &errors.ErrBackend{StatusCode: 404, Message: "product not found"}
	}
	f.nextID++
	f.cart = append(f.cart, domain.CartItem{RemoteID: f.nextID, Product: product, Quantity: req.Quantity, SelectedSize: req.Size})
	return nil
}

func (f *fakeBackend) UpdateCartItem(ctx context.Context, token string, cartItemID int64, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("update cart item"); err != nil {
		return err
	}
	for i := range f.cart {
		if f.cart[i].RemoteID == cartItemID {
			f.cart[i].Quantity = quantity
			return nil
		}
	}
	return &errors.ErrBackend{StatusCode: 404, Message: "cart item not found"}
}

func (f *fakeBackend) RemoveCartItem(ctx context.Context, token string, cartItemID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("remove cart item"); err != nil {
		return err
	}
	out := f.cart[:0]
	for _, item := range f.cart {
		if item.RemoteID != cartItemID {
			out = append(out, item)
		}
	}
	f.cart = out
	return nil
}

func (f *fakeBackend) CreateOrder(ctx context.Context, token string, req backend.CreateOrderRequest) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("create order"); err != nil {
		return nil, err
	}
	if f.createReply != nil {
		reply := *f.createReply
		return &reply, nil
	}
	f.nextID++
	order := domain.Order{
		ID:      f.nextID,
		OrderID: "PF" + strconv.FormatInt(f.nextID, 10),
		Status:  domain.OrderStatusPending,
	}
	for _, line := range req.OrderItems {
		order.Items = append(order.Items, domain.OrderItem{
			ProductID:    line.ProductID,
			Size:         line.Size,
			Quantity:     line.Quantity,
			MrpPrice:     decimal.RequireFromString(line.MrpPrice),
			SellingPrice: decimal.RequireFromString(line.SellingPrice),
		})
	}
	f.orders = append(f.orders, order)
	return &order, nil
}

func (f *fakeBackend) ListUserOrders(ctx context.Context, token string) ([]domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("list orders"); err != nil {
		return nil, err
	}
	return append([]domain.Order(nil), f.orders...), nil
}

func (f *fakeBackend) GetOrder(ctx context.Context, token string, orderID int64) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("get order"); err != nil {
		return nil, err
	}
	for _, o := range f.orders {
		if o.ID == orderID {
			return &o, nil
		}
	}
	return nil, &errors.ErrBackend{StatusCode: 404, Message: "order not found"}
}

func (f *fakeBackend) CancelOrder(ctx context.Context, token string, orderID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("cancel order"); err != nil {
		return err
	}
	if f.rejectCancel != "" {
		return &errors.ErrBackend{StatusCode: 400, Message: f.rejectCancel, JSON: true}
	}
	if f.cancelErr != nil {
		return f.cancelErr
	}
	for i := range f.orders {
		if f.orders[i].ID == orderID {
			f.orders[i].Status = domain.OrderStatusCancelled
			return nil
		}
	}
	return &errors.ErrBackend{StatusCode: 404, Message: "order not found"}
}

func (f *fakeBackend) GetProfile(ctx context.Context, token string) (*domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("get profile"); err != nil {
		return nil, err
	}
	if f.profile == nil {
		return nil, &errors.ErrBackend{StatusCode: 404, Message: "user not found"}
	}
	p := *f.profile
	return &p, nil
}

func (f *fakeBackend) UpdateProfile(ctx context.Context, token string, profile domain.Profile) (*domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("update profile"); err != nil {
		return nil, err
	}
	profile.SyncStatus = ""
	f.profile = &profile
	p := profile
	return &p, nil
}

func (f *fakeBackend) ListChatMessages(ctx context.Context, token string, chatID int64) ([]domain.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("list chat messages"); err != nil {
		return nil, err
	}
	return append([]domain.ChatMessage(nil), f.messages...), nil
}

func (f *fakeBackend) SendChatMessage(ctx context.Context, token string, chatID int64, content string) (*domain.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("send chat message"); err != nil {
		return nil, err
	}
	f.nextID++
	msg := domain.ChatMessage{
		ID:         strconv.FormatInt(f.nextID, 10),
		ChatID:     chatID,
		Content:    content,
		SenderRole: "USER",
		Timestamp:  time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
	}
	f.messages = append(f.messages, msg)
	return &msg, nil
}

func (f *fakeBackend) addMessage(id, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, domain.ChatMessage{ID: id, Content: content, SenderRole: "SCIENTIST"})
}

type testServices struct {
	backend  *fakeBackend
	mirror   *memory.Store
	sessions *SessionRegistry
	carts    *CartReconciler
	orders   *OrderService
	checkout *CheckoutFlow
}

func newTestServices(t *testing.T) *testServices {
	t.Helper()
	fb := newFakeBackend()
	mirror := memory.NewStore(0)
	sessions := NewSessionRegistry()
	agg := pricing.NewAggregator(pricing.DefaultPolicy())
	carts := NewCartReconciler(sessions, fb, mirror, agg, 100, nil)
	orders := NewOrderService(sessions, fb, mirror, agg, true, nil)
	return &testServices{
		backend:  fb,
		mirror:   mirror,
		sessions: sessions,
		carts:    carts,
		orders:   orders,
		checkout: NewCheckoutFlow(sessions, carts, orders, agg, nil),
	}
}

var (
	withToken    = Caller{Email: "farmer@example.com", Token: "jwt-token"}
	withoutToken = Caller{Email: "farmer@example.com"}
)

func neemOil() domain.Product {
	return domain.Product{
		ID:           1,
		Name:         "Neem Oil",
		CurrentPrice: decimal.NewFromInt(158),
		Sizes: []domain.SizeVariant{
			{Label: "250ml", Price: decimal.NewFromInt(158), Discount: decimal.Zero},
			{Label: "1L", Price: decimal.NewFromInt(500), Discount: decimal.NewFromInt(40)},
		},
	}
}

func sprayer() domain.Product {
	return domain.Product{
		ID:           2,
		Name:         "Knapsack Sprayer",
		CurrentPrice: decimal.NewFromInt(600),
	}
}

func currentOrders(t *testing.T, orders *OrderService, caller Caller) domain.OrderList {
	t.Helper()
	list, err := orders.Current(context.Background(), caller)
	require.NoError(t, err)
	return list
}

func fixedClock(t *testing.T, at time.Time) {
	t.Helper()
	prev := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = prev })
}
