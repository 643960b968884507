package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pestofarm/storefront/internal/api/handlers"
	"github.com/pestofarm/storefront/internal/api/middleware"
	"github.com/pestofarm/storefront/internal/config"
	"github.com/pestofarm/storefront/internal/service"
)

const requestIDHeader = "X-Request-ID"

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, svc *service.Services, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(customRecovery(logger))
	router.Use(requestID())
	router.Use(loggingMiddleware(logger))
	router.Use(cors.New(corsConfig(cfg.CORS)))

	// Root: friendly response so GET / returns 200 instead of 404
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "PestoFarm storefront API",
			"endpoints": []string{
				"GET /health",
				"GET /v1/cart",
				"GET /v1/orders",
				"GET /v1/checkout",
				"GET /v1/profile",
				"GET /v1/chats/:chatId/messages",
			},
		})
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": svc.Sessions.Len()})
	})

	// API v1 routes
	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg.Auth, logger))
	{
		cart := v1.Group("/cart")
		{
			cart.GET("", handlers.HandleGetCart(svc, logger))
			cart.POST("/sync", handlers.HandleSyncCart(svc, logger))
			cart.POST("/items", handlers.HandleAddCartItem(svc, logger))
			cart.PUT("/items/:productId", handlers.HandleUpdateCartItem(svc, logger))
			cart.DELETE("/items/:productId", handlers.HandleRemoveCartItem(svc, logger))
			cart.DELETE("", handlers.HandleClearCart(svc, logger))
		}

		orders := v1.Group("/orders")
		{
			orders.GET("", handlers.HandleListOrders(svc, logger))
			orders.GET("/:id", handlers.HandleGetOrder(svc, logger))
			orders.PUT("/:id/cancel", handlers.HandleCancelOrder(svc, logger))
		}

		checkout := v1.Group("/checkout")
		{
			checkout.GET("", handlers.HandleGetCheckout(svc, logger))
			checkout.DELETE("", handlers.HandleResetCheckout(svc, logger))
			checkout.PUT("/items", handlers.HandleSetCheckoutItems(svc, logger))
			checkout.PUT("/shipping", handlers.HandleSetCheckoutShipping(svc, logger))
			checkout.PUT("/payment", handlers.HandleSetCheckoutPayment(svc, logger))
			checkout.GET("/review", handlers.HandleReviewCheckout(svc, logger))
			checkout.POST("/place", middleware.IdempotencyMiddleware(svc.Mirror, logger), handlers.HandlePlaceOrder(svc, logger))
			checkout.POST("/back", handlers.HandleCheckoutBack(svc, logger))
			checkout.POST("/confirm/:orderId", handlers.HandleConfirmOrder(svc, logger))
		}

		v1.GET("/profile", handlers.HandleGetProfile(svc, logger))
		v1.PUT("/profile", handlers.HandleUpdateProfile(svc, logger))

		chats := v1.Group("/chats/:chatId")
		{
			chats.GET("/messages", handlers.HandleListChatMessages(svc, logger))
			chats.POST("/messages", handlers.HandleSendChatMessage(svc, logger))
			chats.GET("/stream", handlers.HandleChatStream(svc, cfg.CORS.AllowOrigins, logger))
		}
	}

	return router
}

func corsConfig(cfg config.CORSConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.IdempotencyKeyHeader},
		ExposeHeaders:    []string{"Content-Length", requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			c.AllowAllOrigins = true
			c.AllowCredentials = false
			return c
		}
	}
	c.AllowOrigins = cfg.AllowOrigins
	if len(c.AllowOrigins) == 0 {
		c.AllowAllOrigins = true
		c.AllowCredentials = false
	}
	return c
}

// requestID tags every request with an id, reusing the caller's when present
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// customRecovery is a custom recovery middleware that logs panics
func customRecovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("Panic recovered",
			zap.Any("error", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		status := c.Writer.Status()
		logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString("request_id")),
		)
	}
}
