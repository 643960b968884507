package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/pestofarm/storefront/internal/api/handlers"
	"github.com/pestofarm/storefront/internal/backend"
	"github.com/pestofarm/storefront/internal/config"
	"github.com/pestofarm/storefront/internal/domain"
	"github.com/pestofarm/storefront/internal/repository/memory"
	"github.com/pestofarm/storefront/internal/service"
)

const testSecret = "test-secret"

// RouterSuite drives the API with an unreachable backend, so every action
// takes the local path
type RouterSuite struct {
	suite.Suite
	router *gin.Engine
	token  string
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Environment: "test",
		Pricing: config.PricingConfig{
			FreeDeliveryThreshold: "499",
			DeliveryFee:           "50",
			GSTRate:               "0.18",
			ChargeEmptyCart:       true,
			MaxLineQuantity:       100,
		},
		Checkout: config.CheckoutConfig{DemoModeEnabled: true},
		Auth:     config.AuthConfig{JWTSecret: testSecret, EmailClaim: "email"},
		CORS:     config.CORSConfig{AllowOrigins: []string{"http://localhost:3000"}},
	}
	remote := backend.NewClient(config.BackendConfig{}, nil)
	svc, err := service.NewServices(cfg, remote, memory.NewStore(0), nil)
	s.Require().NoError(err)

	s.router = NewRouter(cfg, svc, nil)
	s.token = signToken(s.T(), "Farmer@Example.com")
}

func signToken(t *testing.T, email string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": email,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (s *RouterSuite) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *RouterSuite) decode(w *httptest.ResponseRecorder, out any) {
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

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

func (s *RouterSuite) TestHealth() {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Equal(http.StatusOK, w.Code)
	s.NotEmpty(w.Header().Get(requestIDHeader))
}

func (s *RouterSuite) TestPanicResponseHidesValue() {
	s.router.GET("/api/boom", func(c *gin.Context) {
		panic("db password is hunter2")
	})

	w := s.do(http.MethodGet, "/api/boom", nil)
	s.Equal(http.StatusInternalServerError, w.Code)
	s.NotContains(w.Body.String(), "hunter2")
	s.JSONEq(`{"error":"internal server error"}`, w.Body.String())
}

func (s *RouterSuite) TestRequiresToken() {
	req := httptest.NewRequest(http.MethodGet, "/v1/cart", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *RouterSuite) TestCartLifecycle() {
	w := s.do(http.MethodPost, "/v1/cart/items", handlers.AddCartItemRequest{Product: neemOil(), Size: "250ml"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var view service.CartView
	s.decode(w, &view)
	s.Equal(domain.SyncStatusLocalOnly, view.SyncStatus)
	s.Require().Len(view.Items, 1)
	s.Equal(1, view.Items[0].Quantity)
	s.True(decimal.NewFromInt(208).Equal(view.Totals.FinalTotal), view.Totals.FinalTotal.String())

	qty := 4
	w = s.do(http.MethodPut, "/v1/cart/items/1", handlers.UpdateCartItemRequest{Size: "250ml", Quantity: &qty})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.decode(w, &view)
	s.Equal(4, view.Items[0].Quantity)
	s.True(view.Totals.DeliveryCharges.IsZero(), "632 is above the free delivery threshold")

	w = s.do(http.MethodPut, "/v1/cart/items/9", handlers.UpdateCartItemRequest{Quantity: &qty})
	s.Equal(http.StatusNotFound, w.Code)

	w = s.do(http.MethodPut, "/v1/cart/items/abc", handlers.UpdateCartItemRequest{Quantity: &qty})
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodDelete, "/v1/cart/items/1?size=250ml", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.decode(w, &view)
	s.Empty(view.Items)

	w = s.do(http.MethodGet, "/v1/cart", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"items":[]`)
}

func (s *RouterSuite) TestAddCartItemValidation() {
	w := s.do(http.MethodPost, "/v1/cart/items", handlers.AddCartItemRequest{})
	s.Equal(http.StatusUnprocessableEntity, w.Code)

	var body map[string]any
	s.decode(w, &body)
	s.Contains(body["fields"], "product")
}

func (s *RouterSuite) placeThroughCheckout() *httptest.ResponseRecorder {
	w := s.do(http.MethodPost, "/v1/cart/items", handlers.AddCartItemRequest{Product: neemOil(), Size: "1L"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPut, "/v1/checkout/items", nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPut, "/v1/checkout/shipping", domain.ShippingInfo{
		Name: "Ravi Kumar", Phone: "9876543210", Street: "12 Mandi Road",
		City: "Nashik", State: "Maharashtra", Zip: "422001",
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPut, "/v1/checkout/payment", handlers.CheckoutPaymentRequest{Method: domain.PaymentMethodCOD})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/v1/checkout/review", nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var review service.CheckoutView
	s.decode(w, &review)
	s.Require().NotNil(review.Quote)
	s.True(decimal.RequireFromString("82.8").Equal(review.Quote.Taxes), review.Quote.Taxes.String())

	return s.do(http.MethodPost, "/v1/checkout/place", nil, "Idempotency-Key", "place-1")
}

func (s *RouterSuite) TestCheckoutPlacesDemoOrder() {
	w := s.placeThroughCheckout()
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var order domain.Order
	s.decode(w, &order)
	s.True(order.Demo)
	s.Equal(domain.OrderStatusPending, order.Status)
	s.True(decimal.RequireFromString("592.8").Equal(order.Total), order.Total.String())

	w = s.do(http.MethodPost, "/v1/checkout/confirm/"+jsonNumber(order.ID), nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/v1/checkout", nil)
	var checkout service.CheckoutView
	s.decode(w, &checkout)
	s.Equal(domain.StageConfirmed, checkout.Stage)
}

func (s *RouterSuite) TestPlaceIsIdempotent() {
	first := s.placeThroughCheckout()
	s.Require().Equal(http.StatusCreated, first.Code, first.Body.String())

	replay := s.do(http.MethodPost, "/v1/checkout/place", nil, "Idempotency-Key", "place-1")
	s.Equal(http.StatusCreated, replay.Code)
	s.Equal("true", replay.Header().Get("Idempotent-Replayed"))
	s.JSONEq(first.Body.String(), replay.Body.String())

	conflict := s.do(http.MethodPost, "/v1/checkout/place", map[string]string{"note": "other"}, "Idempotency-Key", "place-1")
	s.Equal(http.StatusConflict, conflict.Code)

	again := s.do(http.MethodPost, "/v1/checkout/place", nil)
	s.Equal(http.StatusConflict, again.Code)

	w := s.do(http.MethodGet, "/v1/orders", nil)
	var list handlers.OrderListResponse
	s.decode(w, &list)
	s.Len(list.Orders, 1)
}

func (s *RouterSuite) TestCheckoutPreconditionRedirects() {
	w := s.do(http.MethodPut, "/v1/checkout/shipping", domain.ShippingInfo{Name: "Ravi"})
	s.Require().Equal(http.StatusConflict, w.Code, w.Body.String())

	var body map[string]any
	s.decode(w, &body)
	s.Equal("collecting_items", body["redirect"])
	s.Equal("items", body["missing"])

	w = s.do(http.MethodPut, "/v1/checkout/items", nil)
	s.Equal(http.StatusConflict, w.Code, "empty cart cannot start a checkout")
}

func (s *RouterSuite) TestCheckoutShippingValidation() {
	w := s.do(http.MethodPut, "/v1/checkout/items", handlers.CheckoutItemsRequest{Items: []domain.OrderItem{
		{ProductID: 1, Quantity: 1, MrpPrice: decimal.NewFromInt(158), SellingPrice: decimal.NewFromInt(158)},
	}})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPut, "/v1/checkout/shipping", domain.ShippingInfo{
		Name: "Ravi", Phone: "123", Street: "x", City: "y", State: "z", Zip: "422001",
	})
	s.Equal(http.StatusUnprocessableEntity, w.Code)
	s.Contains(w.Body.String(), "phone")
}

func (s *RouterSuite) TestCancelOrder() {
	w := s.placeThroughCheckout()
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var order domain.Order
	s.decode(w, &order)

	w = s.do(http.MethodPut, "/v1/orders/"+jsonNumber(order.ID)+"/cancel", nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var cancelled domain.Order
	s.decode(w, &cancelled)
	s.Equal(domain.OrderStatusCancelled, cancelled.Status)

	w = s.do(http.MethodGet, "/v1/orders?status=pending", nil)
	var list handlers.OrderListResponse
	s.decode(w, &list)
	s.Empty(list.Orders)
	s.Equal(domain.SyncStatusLocalOnly, list.SyncStatus)

	w = s.do(http.MethodPut, "/v1/orders/"+jsonNumber(order.ID)+"/cancel", nil)
	s.Equal(http.StatusConflict, w.Code)

	w = s.do(http.MethodGet, "/v1/orders?status=lost", nil)
	s.Equal(http.StatusUnprocessableEntity, w.Code)
}

func (s *RouterSuite) TestProfile() {
	w := s.do(http.MethodPut, "/v1/profile", domain.Profile{FullName: "Ravi Kumar", Mobile: "9876543210"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/v1/profile", nil)
	var p domain.Profile
	s.decode(w, &p)
	s.Equal("Ravi Kumar", p.FullName)
	s.Equal("farmer@example.com", p.Email)
	s.Equal(domain.SyncStatusLocalOnly, p.SyncStatus)
}

func (s *RouterSuite) TestChatNeedsBackendToSend() {
	w := s.do(http.MethodPost, "/v1/chats/7/messages", handlers.SendChatMessageRequest{Content: "hello"})
	s.Equal(http.StatusServiceUnavailable, w.Code)

	w = s.do(http.MethodGet, "/v1/chats/7/messages", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var h service.ChatHistory
	s.decode(w, &h)
	s.Empty(h.Messages)
}

func (s *RouterSuite) TestChatStreamSendsHistory() {
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/chats/7/stream?access_token=" + s.token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	defer conn.Close()

	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))
	var ev handlers.ChatStreamEvent
	s.Require().NoError(conn.ReadJSON(&ev))
	s.Equal("history", ev.Type)
	s.Equal(domain.SyncStatusLocalOnly, ev.SyncStatus)
}

func jsonNumber(id int64) string {
	raw, _ := json.Marshal(id)
	return string(raw)
}
