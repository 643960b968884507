package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pestofarm/storefront/internal/domain"
	"github.com/pestofarm/storefront/internal/service"
)

// CheckoutItemsRequest is the body of PUT /v1/checkout/items. Without items
// the current cart is used.
type CheckoutItemsRequest struct {
	Items []domain.OrderItem `json:"items"`
}

// CheckoutPaymentRequest is the body of PUT /v1/checkout/payment
type CheckoutPaymentRequest struct {
	Method domain.PaymentMethod `json:"method" binding:"required"`
	Card   *domain.CardDetails  `json:"card"`
}

// HandleGetCheckout handles GET /v1/checkout
func HandleGetCheckout(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerOrAbort(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, svc.Checkout.Get(caller))
	}
}

// HandleSetCheckoutItems handles PUT /v1/checkout/items
func HandleSetCheckoutItems(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerOrAbort(c)
		if !ok {
			return
		}
		var req CheckoutItemsRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
				return
			}
		}

		var (
			view service.CheckoutView
			err  error
		)
		if len(req.Items) == 0 {
			view, err = svc.Checkout.SetItemsFromCart(c.Request.Context(), caller)
		} else {
			view, err = svc.Checkout.SetItems(caller, req.Items)
		}
		if err != nil {
			respondError(c, err, logger)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

// HandleSetCheckoutShipping handles PUT /v1/checkout/shipping
func HandleSetCheckoutShipping(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerOrAbort(c)
		if !ok {
			return
		}
		var req domain.ShippingInfo
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
			return
		}

		view, err := svc.Checkout.SetShipping(caller, req)
		if err != nil {
			respondError(c, err, logger)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

// HandleSetCheckoutPayment handles PUT /v1/checkout/payment
func HandleSetCheckoutPayment(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerOrAbort(c)
		if !ok {
			return
		}
		var req CheckoutPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
			return
		}

		view, err := svc.Checkout.SetPayment(caller, domain.PaymentInfo{Method: req.Method}, req.Card)
		if err != nil {
			respondError(c, err, logger)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

// HandleReviewCheckout handles GET /v1/checkout/review
func HandleReviewCheckout(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerOrAbort(c)
		if !ok {
			return
		}
		view, err := svc.Checkout.Review(caller)
		if err != nil {
			respondError(c, err, logger)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

// HandlePlaceOrder handles POST /v1/checkout/place
func HandlePlaceOrder(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerOrAbort(c)
		if !ok {
			return
		}
		order, err := svc.Checkout.Place(c.Request.Context(), caller)
		if err != nil {
			respondError(c, err, logger)
			return
		}
		logger.Info("Checkout placed order",
			zap.String("email", caller.Email),
			zap.String("order_id", order.OrderID),
			zap.Bool("demo", order.Demo),
		)
		c.JSON(http.StatusCreated, order)
	}
}

// HandleCheckoutBack handles POST /v1/checkout/back
func HandleCheckoutBack(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerOrAbort(c)
		if !ok {
			return
		}
		view, err := svc.Checkout.Back(caller)
		if err != nil {
			respondError(c, err, logger)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

// HandleConfirmOrder handles POST /v1/checkout/confirm/:orderId
func HandleConfirmOrder(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerOrAbort(c)
		if !ok {
			return
		}
		orderID, ok := int64Param(c, "orderId")
		if !ok {
			return
		}
		order, err := svc.Checkout.Confirm(c.Request.Context(), caller, orderID)
		if err != nil {
			respondError(c, err, logger)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

// HandleResetCheckout handles DELETE /v1/checkout
func HandleResetCheckout(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerOrAbort(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, svc.Checkout.Reset(caller))
	}
}
