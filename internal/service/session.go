package service

import (
	"strings"
	"sync"

	"github.com/pestofarm/storefront/internal/domain"
)

// Caller identifies the user an action runs for. Token may be empty, in which
// case every remote call is skipped and the local path is taken.
type Caller struct {
	Email string
	Token string
}

// Session is the state container of one logged-in user. actionMu serializes
// actions (remote call + commit); stateMu guards the fields so reads never
// wait on a backend round trip.
type Session struct {
	Email string

	actionMu sync.Mutex

	stateMu      sync.RWMutex
	cart         domain.Cart
	cartLoaded   bool
	orders       domain.OrderList
	ordersLoaded bool
	checkout     domain.Checkout
}

func newSession(email string) *Session {
	return &Session{
		Email:    email,
		cart:     domain.Cart{Items: []domain.CartItem{}, SyncStatus: domain.SyncStatusSynced},
		orders:   domain.OrderList{Orders: []domain.Order{}, SyncStatus: domain.SyncStatusSynced},
		checkout: domain.Checkout{Stage: domain.StageCollectingItems},
	}
}

func (s *Session) lock() func() {
	s.actionMu.Lock()
	return s.actionMu.Unlock
}

// Cart returns a copy of the cart
func (s *Session) Cart() domain.Cart {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	c := s.cart
	c.Items = append(make([]domain.CartItem, 0, len(s.cart.Items)), s.cart.Items...)
	return c
}

// Orders returns a copy of the order list
func (s *Session) Orders() domain.OrderList {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	o := s.orders
	o.Orders = append(make([]domain.Order, 0, len(s.orders.Orders)), s.orders.Orders...)
	return o
}

// Checkout returns a copy of the checkout
func (s *Session) Checkout() domain.Checkout {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return copyCheckout(s.checkout)
}

func (s *Session) setCartStatus(status domain.SyncStatus) {
	s.stateMu.Lock()
	s.cart.SyncStatus = status
	s.stateMu.Unlock()
}

// commitCart replaces the cart wholesale and bumps the revision
func (s *Session) commitCart(items []domain.CartItem, status domain.SyncStatus) domain.Cart {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if items == nil {
		items = []domain.CartItem{}
	}
	s.cart = domain.Cart{
		Items:      items,
		SyncStatus: status,
		Revision:   s.cart.Revision + 1,
		UpdatedAt:  now(),
	}
	s.cartLoaded = true
	c := s.cart
	c.Items = append(make([]domain.CartItem, 0, len(items)), items...)
	return c
}

func (s *Session) isCartLoaded() bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.cartLoaded
}

func (s *Session) setOrdersStatus(status domain.SyncStatus) {
	s.stateMu.Lock()
	s.orders.SyncStatus = status
	s.stateMu.Unlock()
}

func (s *Session) commitOrders(orders []domain.Order, status domain.SyncStatus) domain.OrderList {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if orders == nil {
		orders = []domain.Order{}
	}
	s.orders = domain.OrderList{
		Orders:     orders,
		SyncStatus: status,
		Revision:   s.orders.Revision + 1,
	}
	s.ordersLoaded = true
	o := s.orders
	o.Orders = append(make([]domain.Order, 0, len(orders)), orders...)
	return o
}

func (s *Session) isOrdersLoaded() bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.ordersLoaded
}

func (s *Session) setCheckout(c domain.Checkout) domain.Checkout {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.checkout = copyCheckout(c)
	return copyCheckout(c)
}

func copyCheckout(c domain.Checkout) domain.Checkout {
	out := c
	out.Items = append([]domain.OrderItem(nil), c.Items...)
	if c.Shipping != nil {
		shipping := *c.Shipping
		out.Shipping = &shipping
	}
	if c.Payment != nil {
		payment := *c.Payment
		out.Payment = &payment
	}
	return out
}

// SessionRegistry hands out one Session per e-mail address
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*Session)}
}

// Get returns the session for email, creating it on first use
func (r *SessionRegistry) Get(email string) *Session {
	key := strings.ToLower(strings.TrimSpace(email))
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key]
	if !ok {
		s = newSession(key)
		r.sessions[key] = s
	}
	return s
}

// Drop forgets a user's in-memory state (logout). Mirrored snapshots stay.
func (r *SessionRegistry) Drop(email string) {
	key := strings.ToLower(strings.TrimSpace(email))
	r.mu.Lock()
	delete(r.sessions, key)
	r.mu.Unlock()
}

// Len is the number of live sessions
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
