package service

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/pestofarm/storefront/internal/backend"
	"github.com/pestofarm/storefront/internal/domain"
	"github.com/pestofarm/storefront/pkg/errors"
)

// CartBackend is the remote cart API
type CartBackend interface {
	GetCart(ctx context.Context, token string) ([]domain.CartItem, error)
	AddCartItem(ctx context.Context, token string, req backend.AddCartItemRequest) error
	UpdateCartItem(ctx context.Context, token string, cartItemID int64, quantity int) error
	RemoveCartItem(ctx context.Context, token string, cartItemID int64) error
}

// OrderBackend is the remote order API
type OrderBackend interface {
	CreateOrder(ctx context.Context, token string, req backend.CreateOrderRequest) (*domain.Order, error)
	ListUserOrders(ctx context.Context, token string) ([]domain.Order, error)
	GetOrder(ctx context.Context, token string, orderID int64) (*domain.Order, error)
	CancelOrder(ctx context.Context, token string, orderID int64) error
}

// ProfileBackend is the remote user profile API
type ProfileBackend interface {
	GetProfile(ctx context.Context, token string) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, token string, profile domain.Profile) (*domain.Profile, error)
}

// ChatBackend is the remote customer/scientist chat API
type ChatBackend interface {
	ListChatMessages(ctx context.Context, token string, chatID int64) ([]domain.ChatMessage, error)
	SendChatMessage(ctx context.Context, token string, chatID int64, content string) (*domain.ChatMessage, error)
}

var _ Backend = (*backend.Client)(nil)

// authRejected reports whether the backend refused the caller's token. Such
// callers get an error instead of the mirrored copy.
func authRejected(err error) bool {
	var unauthorized *errors.ErrUnauthorized
	return stderrors.As(err, &unauthorized)
}

// rejectedWithMessage reports whether err is a backend answer with a JSON
// body, returning it
func rejectedWithMessage(err error) (*errors.ErrBackend, bool) {
	var rejected *errors.ErrBackend
	if stderrors.As(err, &rejected) && rejected.JSON {
		return rejected, true
	}
	return nil, false
}

// now is swapped in tests
var now = time.Now
