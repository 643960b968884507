package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pestofarm/storefront/internal/config"
	"github.com/pestofarm/storefront/internal/domain"
	"github.com/pestofarm/storefront/pkg/errors"
)

func newTestClient(t *testing.T, scheme string, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.BackendConfig{BaseURL: srv.URL + "/", AuthScheme: scheme, Timeout: 2 * time.Second}, nil)
}

func TestClientAuthorizationHeader(t *testing.T) {
	tests := []struct {
		scheme string
		want   string
	}{
		{scheme: "bearer", want: "Bearer tok"},
		{scheme: "", want: "Bearer tok"},
		{scheme: "raw", want: "tok"},
	}
	for _, tt := range tests {
		t.Run(tt.scheme, func(t *testing.T) {
			var got string
			c := newTestClient(t, tt.scheme, func(w http.ResponseWriter, r *http.Request) {
				got = r.Header.Get("Authorization")
				_, _ = w.Write([]byte(`{"cartItems":[]}`))
			})
			_, err := c.GetCart(context.Background(), "tok")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClientErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("no token", func(t *testing.T) {
		c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
			t.Error("request must not be sent")
		})
		_, err := c.GetCart(ctx, "")
		var unauthorized *errors.ErrUnauthorized
		require.ErrorAs(t, err, &unauthorized)
	})

	t.Run("not configured", func(t *testing.T) {
		c := NewClient(config.BackendConfig{}, nil)
		_, err := c.GetCart(ctx, "tok")
		var unavailable *errors.ErrBackendUnavailable
		require.ErrorAs(t, err, &unavailable)
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		c := NewClient(config.BackendConfig{BaseURL: url}, nil)
		err := c.RemoveCartItem(ctx, "tok", 1)
		var unavailable *errors.ErrBackendUnavailable
		require.ErrorAs(t, err, &unavailable)
		assert.Equal(t, "remove cart item", unavailable.Operation)
	})

	t.Run("json message", func(t *testing.T) {
		c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"Order cannot be cancelled","status":400}`))
		})
		err := c.CancelOrder(ctx, "tok", 5)
		var be *errors.ErrBackend
		require.ErrorAs(t, err, &be)
		assert.Equal(t, http.StatusBadRequest, be.StatusCode)
		assert.Equal(t, "Order cannot be cancelled", be.Message)
		assert.True(t, be.JSON)
	})

	t.Run("html error page", func(t *testing.T) {
		c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("<html>Internal Server Error</html>"))
		})
		err := c.CancelOrder(ctx, "tok", 5)
		var be *errors.ErrBackend
		require.ErrorAs(t, err, &be)
		assert.Equal(t, http.StatusInternalServerError, be.StatusCode)
		assert.False(t, be.JSON)
	})

	t.Run("rejected token", func(t *testing.T) {
		for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
			c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
				_, _ = w.Write([]byte(`{"message":"Invalid token"}`))
			})
			_, err := c.ListUserOrders(ctx, "forged")
			var unauthorized *errors.ErrUnauthorized
			require.ErrorAs(t, err, &unauthorized, "status %d", status)
			assert.Contains(t, unauthorized.Message, "Invalid token")
		}
	})

	t.Run("error field and plain text", func(t *testing.T) {
		bodies := map[string]string{
			`{"error":"Bad Gateway"}`: "Bad Gateway",
			"upstream timeout\n":       "upstream timeout",
		}
		for body, want := range bodies {
			c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				_, _ = w.Write([]byte(body))
			})
			_, err := c.ListUserOrders(ctx, "tok")
			var be *errors.ErrBackend
			require.ErrorAs(t, err, &be)
			assert.Equal(t, want, be.Message)
		}
	})
}

func TestClientGetCartMapsBackendShapes(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/cart", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"id": 1,
			"cartItems": [
				{"id": 11, "quantity": 2, "size": "1L",
				 "product": {"id": 3, "title": "Neem Oil", "mrpPrice": 500, "sellingPrice": 460, "sizes": "250ml, 1L"}},
				{"id": 12, "quantity": 1,
				 "product": {"id": 4, "name": "Sprayer", "currentPrice": "600",
				             "sizes": [{"label": "16L", "price": 600, "discount": 20}]}}
			]
		}`))
	})

	items, err := c.GetCart(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, items, 2)

	neem := items[0]
	assert.Equal(t, int64(11), neem.RemoteID)
	assert.Equal(t, "Neem Oil", neem.Product.Name)
	assert.Equal(t, "1L", neem.SelectedSize)
	require.Len(t, neem.Product.Sizes, 2)
	assert.Equal(t, "250ml", neem.Product.Sizes[0].Label)
	assert.True(t, decimal.NewFromInt(500).Equal(neem.Product.Sizes[1].Price))
	assert.True(t, decimal.NewFromInt(40).Equal(neem.Product.Sizes[1].Discount))
	assert.True(t, decimal.NewFromInt(460).Equal(neem.Product.CurrentPrice))

	sprayer := items[1]
	assert.Equal(t, "16L", sprayer.SelectedSize)
	assert.True(t, decimal.NewFromInt(20).Equal(sprayer.Product.Sizes[0].Discount))
}

func TestClientCartMutations(t *testing.T) {
	type call struct {
		method, path string
		body         map[string]any
	}
	var calls []call
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			assert.NoError(t, json.Unmarshal(raw, &body))
		}
		calls = append(calls, call{r.Method, r.URL.Path, body})
		w.WriteHeader(http.StatusOK)
	})
	ctx := context.Background()

	require.NoError(t, c.AddCartItem(ctx, "tok", AddCartItemRequest{ProductID: 3, Size: "1L", Quantity: 2}))
	require.NoError(t, c.UpdateCartItem(ctx, "tok", 11, 5))
	require.NoError(t, c.RemoveCartItem(ctx, "tok", 11))

	require.Len(t, calls, 3)
	assert.Equal(t, call{http.MethodPut, "/api/cart/add", map[string]any{"productId": float64(3), "size": "1L", "quantity": float64(2)}}, calls[0])
	assert.Equal(t, call{http.MethodPut, "/api/cart/item/11", map[string]any{"quantity": float64(5)}}, calls[1])
	assert.Equal(t, call{http.MethodDelete, "/api/cart/item/11", nil}, calls[2])
}

func TestClientCreateOrder(t *testing.T) {
	var query string
	var body CreateOrderRequest
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("paymentMethod")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{
			"id": 77,
			"orderStatus": "placed",
			"totalPrice": 1000,
			"totalDiscountedPrice": 920,
			"orderDate": "2026-10-18T12:30:00",
			"shippingAddress": {"name": "Ravi", "mobile": "9876543210", "address": "12 Mandi Road", "pinCode": "422001"},
			"payment_link_url": "https://rzp.io/i/abc",
			"payment_link_id": "plink_1"
		}`))
	})

	order, err := c.CreateOrder(context.Background(), "tok", CreateOrderRequest{
		Name:          "Ravi",
		PaymentMethod: "RAZORPAY",
		OrderItems:    []CreateOrderLine{{ProductID: 3, Quantity: 2, Size: "1L", MrpPrice: "500", SellingPrice: "460"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "RAZORPAY", query)
	require.Len(t, body.OrderItems, 1)
	assert.Equal(t, "460", body.OrderItems[0].SellingPrice)

	assert.Equal(t, int64(77), order.ID)
	assert.Empty(t, order.OrderID)
	assert.Equal(t, domain.OrderStatusPlaced, order.Status)
	assert.True(t, decimal.NewFromInt(1000).Equal(order.TotalMrpPrice))
	assert.True(t, decimal.NewFromInt(920).Equal(order.TotalSellingPrice))
	assert.True(t, time.Date(2026, 10, 18, 12, 30, 0, 0, time.UTC).Equal(order.OrderDate), order.OrderDate.String())
	assert.Equal(t, "9876543210", order.ShippingAddress.Phone)
	assert.Equal(t, "12 Mandi Road", order.ShippingAddress.Street)
	assert.Equal(t, "422001", order.ShippingAddress.Zip)
	assert.Equal(t, "https://rzp.io/i/abc", order.PaymentDetails.PaymentLinkURL)
	assert.Equal(t, "plink_1", order.PaymentDetails.TransactionID)
}

func TestClientListOrdersTimestamps(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/orders/user", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"id": 1, "orderDate": 1792324800000, "deliveryDate": "not a date"},
			{"id": 2, "orderDate": "2026-10-18T12:00:00Z", "orderItems": [{"quantity": 1, "product": {"id": 9, "title": "Urea"}}]}
		]`))
	})

	orders, err := c.ListUserOrders(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, orders, 2)

	want := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	assert.True(t, want.Equal(orders[0].OrderDate))
	assert.True(t, orders[0].DeliveryDate.IsZero())
	assert.True(t, want.Equal(orders[1].OrderDate))
	require.Len(t, orders[1].Items, 1)
	assert.Equal(t, int64(9), orders[1].Items[0].ProductID)
	assert.Equal(t, "Urea", orders[1].Items[0].Name)
}

func TestClientProfile(t *testing.T) {
	var sent map[string]string
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/users/profile", r.URL.Path)
		if r.Method == http.MethodPut {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&sent))
			_, _ = w.Write([]byte(`{"id": 3, "fullname": "Ravi Kumar"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id": 3, "fullname": "Ravi Kumar", "email": "farmer@example.com", "phone": "9876543210"}`))
	})
	ctx := context.Background()

	p, err := c.GetProfile(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, "Ravi Kumar", p.FullName)
	assert.Equal(t, "9876543210", p.Mobile)

	saved, err := c.UpdateProfile(ctx, "tok", domain.Profile{FullName: "Ravi Kumar", Email: "farmer@example.com", Address: "Nashik"})
	require.NoError(t, err)
	assert.Equal(t, "Ravi Kumar", sent["fullname"])
	assert.Equal(t, "farmer@example.com", saved.Email)
	assert.Equal(t, "Nashik", saved.Address)
	assert.Equal(t, int64(3), saved.ID)
}

func TestClientChat(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/chats/7/messages":
			_, _ = w.Write([]byte(`[
				{"id": 1, "content": "hello", "senderRole": "USER", "senderId": 4, "timestamp": "2026-10-18T09:00:00"},
				{"id": "abc", "message": "use 2ml/l", "senderRole": "SCIENTIST", "createdAt": "2026-10-18T09:05:00"}
			]`))
		case "/api/chats/user/send":
			require.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "7", r.FormValue("chatId"))
			assert.Equal(t, "leaves curling", r.FormValue("content"))
			assert.Equal(t, "leaves curling", r.FormValue("message"))
			_, _ = w.Write([]byte(`{"id": 3, "content": "leaves curling", "senderRole": "USER"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	msgs, err := c.ListChatMessages(ctx, "tok", 7)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "1", msgs[0].ID)
	assert.Equal(t, int64(4), msgs[0].SenderID)
	assert.Equal(t, int64(7), msgs[0].ChatID)
	assert.Equal(t, "abc", msgs[1].ID)
	assert.Equal(t, "use 2ml/l", msgs[1].Content)
	assert.True(t, time.Date(2026, 10, 18, 9, 5, 0, 0, time.UTC).Equal(msgs[1].Timestamp))

	sent, err := c.SendChatMessage(ctx, "tok", 7, "leaves curling")
	require.NoError(t, err)
	assert.Equal(t, "3", sent.ID)
	assert.Equal(t, "leaves curling", sent.Content)
}
