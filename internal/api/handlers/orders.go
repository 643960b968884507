package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pestofarm/storefront/internal/domain"
	"github.com/pestofarm/storefront/internal/service"
)

// OrderListResponse is the answer of GET /v1/orders
type OrderListResponse struct {
	Orders     []domain.Order    `json:"orders"`
	SyncStatus domain.SyncStatus `json:"syncStatus"`
}

// HandleListOrders handles GET /v1/orders?status=
func HandleListOrders(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerOrAbort(c)
		if !ok {
			return
		}
		if c.Query("refresh") == "true" {
			if _, err := svc.Orders.Load(c.Request.Context(), caller); err != nil {
				respondError(c, err, logger)
				return
			}
		}

		orders, err := svc.Orders.List(c.Request.Context(), caller, c.Query("status"))
		if err != nil {
			respondError(c, err, logger)
			return
		}
		list, err := svc.Orders.Current(c.Request.Context(), caller)
		if err != nil {
			respondError(c, err, logger)
			return
		}
		c.JSON(http.StatusOK, OrderListResponse{
			Orders:     orders,
			SyncStatus: list.SyncStatus,
		})
	}
}

// HandleGetOrder handles GET /v1/orders/:id
func HandleGetOrder(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerOrAbort(c)
		if !ok {
			return
		}
		id, ok := int64Param(c, "id")
		if !ok {
			return
		}

		order, err := svc.Orders.Get(c.Request.Context(), caller, id)
		if err != nil {
			respondError(c, err, logger)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

// HandleCancelOrder handles PUT /v1/orders/:id/cancel
func HandleCancelOrder(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerOrAbort(c)
		if !ok {
			return
		}
		id, ok := int64Param(c, "id")
		if !ok {
			return
		}

		order, err := svc.Orders.Cancel(c.Request.Context(), caller, id)
		if err != nil {
			respondError(c, err, logger)
			return
		}
		logger.Info("Order cancelled",
			zap.String("email", caller.Email),
			zap.Int64("order_id", id),
			zap.String("sync_status", string(order.SyncStatus)),
		)
		c.JSON(http.StatusOK, order)
	}
}
