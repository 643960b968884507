package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pestofarm/storefront/internal/domain"
	"github.com/pestofarm/storefront/internal/service"
)

// HandleGetProfile handles GET /v1/profile
func HandleGetProfile(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerOrAbort(c)
		if !ok {
			return
		}
		profile, err := svc.Profiles.Get(c.Request.Context(), caller)
		if err != nil {
			respondError(c, err, logger)
			return
		}
		c.JSON(http.StatusOK, profile)
	}
}

// HandleUpdateProfile handles PUT /v1/profile
func HandleUpdateProfile(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerOrAbort(c)
		if !ok {
			return
		}
		var req domain.Profile
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
			return
		}

		p, err := svc.Profiles.Update(c.Request.Context(), caller, req)
		if err != nil {
			respondError(c, err, logger)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}
