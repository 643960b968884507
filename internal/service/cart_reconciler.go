package service

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/pestofarm/storefront/internal/backend"
	"github.com/pestofarm/storefront/internal/domain"
	"github.com/pestofarm/storefront/internal/pricing"
	"github.com/pestofarm/storefront/internal/repository"
	"github.com/pestofarm/storefront/pkg/errors"
)

const defaultMaxLineQuantity = 100

// CartView is the cart plus its derived totals
type CartView struct {
	domain.Cart
	Totals pricing.Totals `json:"totals"`
}

// CartReconciler funnels every cart mutation through one path: try the
// backend, adopt its canonical cart on success, otherwise mutate locally.
// Backend failures are logged and never returned, except a rejected token,
// which is returned as *errors.ErrUnauthorized without touching the mirror.
type CartReconciler struct {
	sessions    *SessionRegistry
	backend     CartBackend
	mirror      repository.SnapshotStore
	aggregator  *pricing.Aggregator
	maxQuantity int
	logger      *zap.Logger
}

// NewCartReconciler creates a new cart reconciler
func NewCartReconciler(
	sessions *SessionRegistry,
	cartBackend CartBackend,
	mirror repository.SnapshotStore,
	aggregator *pricing.Aggregator,
	maxQuantity int,
	logger *zap.Logger,
) *CartReconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxQuantity <= 0 {
		maxQuantity = defaultMaxLineQuantity
	}
	return &CartReconciler{
		sessions:    sessions,
		backend:     cartBackend,
		mirror:      mirror,
		aggregator:  aggregator,
		maxQuantity: maxQuantity,
		logger:      logger,
	}
}

func (r *CartReconciler) view(c domain.Cart) CartView {
	return CartView{Cart: c, Totals: r.aggregator.Summarize(c.Items)}
}

// Snapshot returns the in-memory cart without any I/O
func (r *CartReconciler) Snapshot(caller Caller) CartView {
	return r.view(r.sessions.Get(caller.Email).Cart())
}

// Current returns the cart, loading it on first access
func (r *CartReconciler) Current(ctx context.Context, caller Caller) (CartView, error) {
	sess := r.sessions.Get(caller.Email)
	defer sess.lock()()
	if err := r.ensureLoaded(ctx, caller, sess); err != nil {
		return CartView{}, err
	}
	return r.view(sess.Cart()), nil
}

// Load re-reads the cart from the backend, or from the mirror when the
// backend cannot be reached. No mirror means an empty cart.
func (r *CartReconciler) Load(ctx context.Context, caller Caller) (CartView, error) {
	sess := r.sessions.Get(caller.Email)
	defer sess.lock()()
	c, err := r.load(ctx, caller, sess)
	if err != nil {
		return CartView{}, err
	}
	return r.view(c), nil
}

func (r *CartReconciler) load(ctx context.Context, caller Caller, sess *Session) (domain.Cart, error) {
	if caller.Token != "" {
		prev := sess.Cart().SyncStatus
		sess.setCartStatus(domain.SyncStatusPending)
		items, err := r.backend.GetCart(ctx, caller.Token)
		if err == nil {
			return r.adopt(ctx, sess, items), nil
		}
		if authRejected(err) {
			sess.setCartStatus(prev)
			return domain.Cart{}, err
		}
		r.logger.Warn("Failed to load cart from backend, falling back to mirror",
			zap.String("email", sess.Email), zap.Error(err))
	}

	var mirrored domain.Cart
	found, err := repository.ReadJSON(ctx, r.mirror, repository.CartKey(sess.Email), &mirrored)
	if err != nil {
		r.logger.Warn("Failed to read cart mirror", zap.String("email", sess.Email), zap.Error(err))
		return sess.commitCart(sess.Cart().Items, domain.SyncStatusLocalOnly), nil
	}
	if !found {
		mirrored.Items = nil
	}
	return sess.commitCart(mirrored.Items, domain.SyncStatusLocalOnly), nil
}

func (r *CartReconciler) ensureLoaded(ctx context.Context, caller Caller, sess *Session) error {
	if sess.isCartLoaded() {
		return nil
	}
	_, err := r.load(ctx, caller, sess)
	return err
}

// adopt replaces the cart with the backend's canonical copy
func (r *CartReconciler) adopt(ctx context.Context, sess *Session, items []domain.CartItem) domain.Cart {
	c := sess.commitCart(items, domain.SyncStatusSynced)
	r.writeMirror(ctx, sess.Email, c)
	return c
}

// applyLocal runs the optimistic local mutation
func (r *CartReconciler) applyLocal(ctx context.Context, sess *Session, mutate func([]domain.CartItem) []domain.CartItem) domain.Cart {
	c := sess.commitCart(mutate(sess.Cart().Items), domain.SyncStatusLocalOnly)
	r.writeMirror(ctx, sess.Email, c)
	return c
}

func (r *CartReconciler) writeMirror(ctx context.Context, email string, c domain.Cart) {
	if err := repository.WriteJSON(ctx, r.mirror, repository.CartKey(email), c); err != nil {
		r.logger.Warn("Failed to mirror cart", zap.String("email", email), zap.Error(err))
	}
}

// remote runs call then re-fetches the cart. ok is false when either step
// failed; err is set only when the backend rejected the token.
func (r *CartReconciler) remote(ctx context.Context, caller Caller, sess *Session, op string, call func() error) (c domain.Cart, ok bool, err error) {
	if caller.Token == "" {
		return domain.Cart{}, false, nil
	}
	prev := sess.Cart().SyncStatus
	sess.setCartStatus(domain.SyncStatusPending)
	if err := call(); err != nil {
		if authRejected(err) {
			sess.setCartStatus(prev)
			return domain.Cart{}, false, err
		}
		r.logger.Warn("Backend cart call failed, applying locally",
			zap.String("op", op), zap.String("email", sess.Email), zap.Error(err))
		return domain.Cart{}, false, nil
	}
	items, err := r.backend.GetCart(ctx, caller.Token)
	if err != nil {
		if authRejected(err) {
			sess.setCartStatus(prev)
			return domain.Cart{}, false, err
		}
		r.logger.Warn("Backend cart re-fetch failed, applying locally",
			zap.String("op", op), zap.String("email", sess.Email), zap.Error(err))
		return domain.Cart{}, false, nil
	}
	return r.adopt(ctx, sess, items), true, nil
}

// Add puts quantity units of (product, size) into the cart, merging with an
// existing line. An empty size picks the product's first variant.
func (r *CartReconciler) Add(ctx context.Context, caller Caller, product domain.Product, size string, quantity int) (CartView, error) {
	if product.ID <= 0 {
		return CartView{}, &errors.ErrValidation{
			Message: "product is required",
			Fields:  map[string]string{"product": "required"},
		}
	}
	if size == "" {
		size = product.DefaultSizeLabel()
	}

	sess := r.sessions.Get(caller.Email)
	defer sess.lock()()
	if err := r.ensureLoaded(ctx, caller, sess); err != nil {
		return CartView{}, err
	}

	if quantity <= 0 {
		return r.viewOrErr(r.remove(ctx, caller, sess, product.ID, size))
	}

	req := backend.AddCartItemRequest{ProductID: product.ID, Size: size, Quantity: quantity}
	c, ok, err := r.remote(ctx, caller, sess, "add", func() error {
		return r.backend.AddCartItem(ctx, caller.Token, req)
	})
	if err != nil {
		return CartView{}, err
	}
	if ok {
		return r.view(c), nil
	}

	c = r.applyLocal(ctx, sess, func(items []domain.CartItem) []domain.CartItem {
		return mergeAdd(items, product, size, quantity, r.maxQuantity)
	})
	return r.view(c), nil
}

// UpdateQuantity sets the quantity of a line. Zero or less removes it; larger
// values are clamped to the configured maximum.
func (r *CartReconciler) UpdateQuantity(ctx context.Context, caller Caller, productID int64, size string, quantity int) (CartView, error) {
	sess := r.sessions.Get(caller.Email)
	defer sess.lock()()
	if err := r.ensureLoaded(ctx, caller, sess); err != nil {
		return CartView{}, err
	}

	if quantity <= 0 {
		return r.viewOrErr(r.remove(ctx, caller, sess, productID, size))
	}
	if quantity > r.maxQuantity {
		quantity = r.maxQuantity
	}

	current := sess.Cart().Items
	idx := findLine(current, productID, size)
	if idx < 0 {
		return CartView{}, &errors.ErrNotFound{Resource: "cart item", ID: lineID(productID, size)}
	}
	line := current[idx]

	if line.RemoteID != 0 {
		c, ok, err := r.remote(ctx, caller, sess, "update", func() error {
			return r.backend.UpdateCartItem(ctx, caller.Token, line.RemoteID, quantity)
		})
		if err != nil {
			return CartView{}, err
		}
		if ok {
			return r.view(c), nil
		}
	}

	c := r.applyLocal(ctx, sess, func(items []domain.CartItem) []domain.CartItem {
		out := make([]domain.CartItem, 0, len(items))
		for _, item := range items {
			if item.Matches(line.Product.ID, line.SelectedSize) {
				item.Quantity = quantity
			}
			out = append(out, item)
		}
		return out
	})
	return r.view(c), nil
}

// Remove drops the (productID, size) line; an empty size drops every line of
// the product. Removing an absent line is a no-op.
func (r *CartReconciler) Remove(ctx context.Context, caller Caller, productID int64, size string) (CartView, error) {
	sess := r.sessions.Get(caller.Email)
	defer sess.lock()()
	if err := r.ensureLoaded(ctx, caller, sess); err != nil {
		return CartView{}, err
	}
	return r.viewOrErr(r.remove(ctx, caller, sess, productID, size))
}

func (r *CartReconciler) viewOrErr(c domain.Cart, err error) (CartView, error) {
	if err != nil {
		return CartView{}, err
	}
	return r.view(c), nil
}

func (r *CartReconciler) remove(ctx context.Context, caller Caller, sess *Session, productID int64, size string) (domain.Cart, error) {
	current := sess.Cart()
	var matched []domain.CartItem
	for _, item := range current.Items {
		if lineMatches(item, productID, size) {
			matched = append(matched, item)
		}
	}
	if len(matched) == 0 {
		return current, nil
	}

	if allRemote(matched) {
		c, ok, err := r.remote(ctx, caller, sess, "remove", func() error {
			for _, item := range matched {
				if err := r.backend.RemoveCartItem(ctx, caller.Token, item.RemoteID); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil || ok {
			return c, err
		}
	}

	return r.applyLocal(ctx, sess, func(items []domain.CartItem) []domain.CartItem {
		out := make([]domain.CartItem, 0, len(items))
		for _, item := range items {
			if !lineMatches(item, productID, size) {
				out = append(out, item)
			}
		}
		return out
	}), nil
}

// Clear empties the cart (after a placed order, or on request)
func (r *CartReconciler) Clear(ctx context.Context, caller Caller) (CartView, error) {
	sess := r.sessions.Get(caller.Email)
	defer sess.lock()()
	if err := r.ensureLoaded(ctx, caller, sess); err != nil {
		return CartView{}, err
	}
	return r.viewOrErr(r.clear(ctx, caller, sess))
}

func (r *CartReconciler) clear(ctx context.Context, caller Caller, sess *Session) (domain.Cart, error) {
	current := sess.Cart()
	if len(current.Items) == 0 {
		return current, nil
	}
	if allRemote(current.Items) {
		c, ok, err := r.remote(ctx, caller, sess, "clear", func() error {
			for _, item := range current.Items {
				if err := r.backend.RemoveCartItem(ctx, caller.Token, item.RemoteID); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil || ok {
			return c, err
		}
	}
	return r.applyLocal(ctx, sess, func([]domain.CartItem) []domain.CartItem { return nil }), nil
}

// mergeAdd applies the backend's merge rule: same (product, size) accumulates,
// anything else is appended
func mergeAdd(items []domain.CartItem, product domain.Product, size string, quantity, maxQuantity int) []domain.CartItem {
	out := make([]domain.CartItem, 0, len(items)+1)
	merged := false
	for _, item := range items {
		if item.Matches(product.ID, size) {
			item.Quantity += quantity
			if item.Quantity > maxQuantity {
				item.Quantity = maxQuantity
			}
			merged = true
		}
		out = append(out, item)
	}
	if !merged {
		if quantity > maxQuantity {
			quantity = maxQuantity
		}
		out = append(out, domain.CartItem{Product: product, Quantity: quantity, SelectedSize: size})
	}
	return out
}

func lineMatches(item domain.CartItem, productID int64, size string) bool {
	if size == "" {
		return item.Product.ID == productID
	}
	return item.Matches(productID, size)
}

func findLine(items []domain.CartItem, productID int64, size string) int {
	for i, item := range items {
		if lineMatches(item, productID, size) {
			return i
		}
	}
	return -1
}

func allRemote(items []domain.CartItem) bool {
	for _, item := range items {
		if item.RemoteID == 0 {
			return false
		}
	}
	return true
}

func lineID(productID int64, size string) string {
	if size == "" {
		return strconv.FormatInt(productID, 10)
	}
	return fmt.Sprintf("%d/%s", productID, size)
}
