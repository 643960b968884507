package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pestofarm/storefront/internal/domain"
	"github.com/pestofarm/storefront/internal/service"
)

// AddCartItemRequest is the body of POST /v1/cart/items. A missing quantity adds one.
type AddCartItemRequest struct {
	Product  domain.Product `json:"product"`
	Size     string         `json:"size"`
	Quantity *int           `json:"quantity"`
}

// UpdateCartItemRequest is the body of PUT /v1/cart/items/:productId
type UpdateCartItemRequest struct {
	Size     string `json:"size"`
	Quantity *int   `json:"quantity" binding:"required"`
}

// HandleGetCart handles GET /v1/cart
func HandleGetCart(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerOrAbort(c)
		if !ok {
			return
		}
		view, err := svc.Carts.Current(c.Request.Context(), caller)
		if err != nil {
			respondError(c, err, logger)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

// HandleSyncCart handles POST /v1/cart/sync: re-reads the backend cart
func HandleSyncCart(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerOrAbort(c)
		if !ok {
			return
		}
		view, err := svc.Carts.Load(c.Request.Context(), caller)
		if err != nil {
			respondError(c, err, logger)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

// HandleAddCartItem handles POST /v1/cart/items
func HandleAddCartItem(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerOrAbort(c)
		if !ok {
			return
		}
		var req AddCartItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
			return
		}
		qty := 1
		if req.Quantity != nil {
			qty = *req.Quantity
		}

		view, err := svc.Carts.Add(c.Request.Context(), caller, req.Product, req.Size, qty)
		if err != nil {
			respondError(c, err, logger)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

// HandleUpdateCartItem handles PUT /v1/cart/items/:productId
func HandleUpdateCartItem(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerOrAbort(c)
		if !ok {
			return
		}
		productID, ok := int64Param(c, "productId")
		if !ok {
			return
		}
		var req UpdateCartItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
			return
		}

		view, err := svc.Carts.UpdateQuantity(c.Request.Context(), caller, productID, req.Size, *req.Quantity)
		if err != nil {
			respondError(c, err, logger)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

// HandleRemoveCartItem handles DELETE /v1/cart/items/:productId?size=
func HandleRemoveCartItem(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerOrAbort(c)
		if !ok {
			return
		}
		productID, ok := int64Param(c, "productId")
		if !ok {
			return
		}

		view, err := svc.Carts.Remove(c.Request.Context(), caller, productID, c.Query("size"))
		if err != nil {
			respondError(c, err, logger)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

// HandleClearCart handles DELETE /v1/cart
func HandleClearCart(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerOrAbort(c)
		if !ok {
			return
		}
		view, err := svc.Carts.Clear(c.Request.Context(), caller)
		if err != nil {
			respondError(c, err, logger)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}
