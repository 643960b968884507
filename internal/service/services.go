package service

import (
	"go.uber.org/zap"

	"github.com/pestofarm/storefront/internal/config"
	"github.com/pestofarm/storefront/internal/pricing"
	"github.com/pestofarm/storefront/internal/repository"
)

// Backend is everything the services need from the remote API
type Backend interface {
	CartBackend
	OrderBackend
	ProfileBackend
	ChatBackend
}

// Services holds all services sharing one session registry and mirror
type Services struct {
	Sessions *SessionRegistry
	Carts    *CartReconciler
	Orders   *OrderService
	Checkout *CheckoutFlow
	Profiles *ProfileService
	Chats    *ChatService
	Mirror   repository.SnapshotStore
}

// NewServices creates the full set of services
func NewServices(cfg *config.Config, remote Backend, mirror repository.SnapshotStore, logger *zap.Logger) (*Services, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	policy, err := pricing.PolicyFromConfig(cfg.Pricing)
	if err != nil {
		return nil, err
	}
	aggregator := pricing.NewAggregator(policy)
	sessions := NewSessionRegistry()

	carts := NewCartReconciler(sessions, remote, mirror, aggregator, cfg.Pricing.MaxLineQuantity, logger.Named("cart"))
	orders := NewOrderService(sessions, remote, mirror, aggregator, cfg.Checkout.DemoModeEnabled, logger.Named("orders"))

	return &Services{
		Sessions: sessions,
		Carts:    carts,
		Orders:   orders,
		Checkout: NewCheckoutFlow(sessions, carts, orders, aggregator, logger.Named("checkout")),
		Profiles: NewProfileService(remote, mirror, logger.Named("profile")),
		Chats:    NewChatService(remote, mirror, cfg.Chat, logger.Named("chat")),
		Mirror:   mirror,
	}, nil
}
