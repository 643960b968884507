package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pestofarm/storefront/internal/config"
	"github.com/pestofarm/storefront/internal/domain"
	"github.com/pestofarm/storefront/pkg/errors"
)

// Client calls the storefront REST backend on behalf of a user token
type Client struct {
	baseURL    string
	authScheme string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a backend HTTP client
func NewClient(cfg config.BackendConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		authScheme: cfg.AuthScheme,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// AddCartItemRequest is the body of PUT /api/cart/add
type AddCartItemRequest struct {
	ProductID int64  `json:"productId"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

// CreateOrderRequest is the body of POST /api/orders
type CreateOrderRequest struct {
	Name          string            `json:"name"`
	Phone         string            `json:"phone"`
	Street        string            `json:"street"`
	City          string            `json:"city"`
	State         string            `json:"state"`
	Zip           string            `json:"zip"`
	PaymentMethod string            `json:"paymentMethod"`
	OrderItems    []CreateOrderLine `json:"orderItems"`
}

type CreateOrderLine struct {
	ProductID    int64  `json:"productId"`
	Quantity     int    `json:"quantity"`
	Size         string `json:"size"`
	MrpPrice     string `json:"mrpPrice"`
	SellingPrice string `json:"sellingPrice"`
}

func (c *Client) authorization(token string) string {
	if c.authScheme == "raw" {
		return token
	}
	return "Bearer " + token
}

// do sends one request. Transport failures come back as
// *errors.ErrBackendUnavailable, non-2xx answers as *errors.ErrBackend.
func (c *Client) do(ctx context.Context, op, method, path, token string, body io.Reader, contentType string, out any) error {
	if c.baseURL == "" {
		return &errors.ErrBackendUnavailable{Operation: op, Err: fmt.Errorf("backend client not configured")}
	}
	if token == "" {
		return &errors.ErrUnauthorized{Message: "authentication token is required"}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.authorization(token))
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Backend request failed", zap.String("op", op), zap.Error(err))
		return &errors.ErrBackendUnavailable{Operation: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &errors.ErrBackendUnavailable{Operation: op, Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		msg, _ := errorMessage(raw)
		c.logger.Info("Backend rejected token", zap.String("op", op), zap.Int("status", resp.StatusCode))
		return &errors.ErrUnauthorized{Message: "backend rejected the token: " + msg}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, isJSON := errorMessage(raw)
		return &errors.ErrBackend{StatusCode: resp.StatusCode, Message: msg, JSON: isJSON}
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path, token string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}
	return c.do(ctx, op, method, path, token, body, contentType, out)
}

// errorMessage pulls "message" or "error" out of a JSON error body, else the raw text
func errorMessage(raw []byte) (msg string, isJSON bool) {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message, true
		}
		if body.Error != "" {
			return body.Error, true
		}
		return strings.TrimSpace(string(raw)), true
	}
	return strings.TrimSpace(string(raw)), false
}

// GetCart fetches the canonical cart
func (c *Client) GetCart(ctx context.Context, token string) ([]domain.CartItem, error) {
	var cart cartDTO
	if err := c.doJSON(ctx, "get cart", http.MethodGet, "/api/cart", token, nil, &cart); err != nil {
		return nil, err
	}
	return cart.toDomain(), nil
}

// AddCartItem adds (or merges) a line on the backend
func (c *Client) AddCartItem(ctx context.Context, token string, req AddCartItemRequest) error {
	return c.doJSON(ctx, "add cart item", http.MethodPut, "/api/cart/add", token, req, nil)
}

// UpdateCartItem sets the quantity of a backend cart line
func (c *Client) UpdateCartItem(ctx context.Context, token string, cartItemID int64, quantity int) error {
	path := "/api/cart/item/" + strconv.FormatInt(cartItemID, 10)
	return c.doJSON(ctx, "update cart item", http.MethodPut, path, token, map[string]int{"quantity": quantity}, nil)
}

// RemoveCartItem deletes a backend cart line
func (c *Client) RemoveCartItem(ctx context.Context, token string, cartItemID int64) error {
	path := "/api/cart/item/" + strconv.FormatInt(cartItemID, 10)
	return c.doJSON(ctx, "remove cart item", http.MethodDelete, path, token, nil, nil)
}

// CreateOrder places an order. The backend may answer with a partial record
// (or only a payment link); missing fields stay zero for the caller to fill.
func (c *Client) CreateOrder(ctx context.Context, token string, req CreateOrderRequest) (*domain.Order, error) {
	q := url.Values{}
	q.Set("paymentMethod", req.PaymentMethod)
	var dto orderDTO
	if err := c.doJSON(ctx, "create order", http.MethodPost, "/api/orders?"+q.Encode(), token, req, &dto); err != nil {
		return nil, err
	}
	order := dto.toDomain()
	return &order, nil
}

// ListUserOrders fetches the user's orders
func (c *Client) ListUserOrders(ctx context.Context, token string) ([]domain.Order, error) {
	var dtos []orderDTO
	if err := c.doJSON(ctx, "list orders", http.MethodGet, "/api/orders/user", token, nil, &dtos); err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0, len(dtos))
	for _, d := range dtos {
		orders = append(orders, d.toDomain())
	}
	return orders, nil
}

// GetOrder fetches one order
func (c *Client) GetOrder(ctx context.Context, token string, orderID int64) (*domain.Order, error) {
	var dto orderDTO
	path := "/api/orders/" + strconv.FormatInt(orderID, 10)
	if err := c.doJSON(ctx, "get order", http.MethodGet, path, token, nil, &dto); err != nil {
		return nil, err
	}
	order := dto.toDomain()
	return &order, nil
}

// CancelOrder asks the backend to cancel an order
func (c *Client) CancelOrder(ctx context.Context, token string, orderID int64) error {
	path := "/api/orders/" + strconv.FormatInt(orderID, 10) + "/cancel"
	return c.doJSON(ctx, "cancel order", http.MethodPut, path, token, map[string]any{}, nil)
}

// GetProfile fetches the user's profile
func (c *Client) GetProfile(ctx context.Context, token string) (*domain.Profile, error) {
	var dto profileDTO
	if err := c.doJSON(ctx, "get profile", http.MethodGet, "/api/users/profile", token, nil, &dto); err != nil {
		return nil, err
	}
	p := dto.toDomain()
	return &p, nil
}

// UpdateProfile saves the user's profile and returns the stored version.
// Fields the backend leaves out of its answer keep the submitted values.
func (c *Client) UpdateProfile(ctx context.Context, token string, profile domain.Profile) (*domain.Profile, error) {
	var dto profileDTO
	if err := c.doJSON(ctx, "update profile", http.MethodPut, "/api/users/profile", token, profileRequestFrom(profile), &dto); err != nil {
		return nil, err
	}
	p := dto.toDomain()
	if p.FullName == "" {
		p.FullName = profile.FullName
	}
	if p.Email == "" {
		p.Email = profile.Email
	}
	if p.Mobile == "" {
		p.Mobile = profile.Mobile
	}
	if p.Address == "" {
		p.Address = profile.Address
	}
	return &p, nil
}

// ListChatMessages fetches all messages of a chat
func (c *Client) ListChatMessages(ctx context.Context, token string, chatID int64) ([]domain.ChatMessage, error) {
	var dtos []messageDTO
	path := "/api/chats/" + strconv.FormatInt(chatID, 10) + "/messages"
	if err := c.doJSON(ctx, "list chat messages", http.MethodGet, path, token, nil, &dtos); err != nil {
		return nil, err
	}
	out := make([]domain.ChatMessage, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toDomain(chatID))
	}
	return out, nil
}

// SendChatMessage posts a text message as the user (multipart, like the web form)
func (c *Client) SendChatMessage(ctx context.Context, token string, chatID int64, content string) (*domain.ChatMessage, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("chatId", strconv.FormatInt(chatID, 10)); err != nil {
		return nil, err
	}
	// older backend builds read "message", newer ones "content"
	for _, field := range []string{"content", "message"} {
		if err := w.WriteField(field, content); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	var dto messageDTO
	if err := c.do(ctx, "send chat message", http.MethodPost, "/api/chats/user/send", token, &buf, w.FormDataContentType(), &dto); err != nil {
		return nil, err
	}
	msg := dto.toDomain(chatID)
	return &msg, nil
}
