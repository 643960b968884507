package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pestofarm/storefront/internal/api/middleware"
	"github.com/pestofarm/storefront/internal/service"
	"github.com/pestofarm/storefront/pkg/errors"
)

// respondError maps service errors onto HTTP answers
func respondError(c *gin.Context, err error, logger *zap.Logger) {
	switch e := err.(type) {
	case *errors.ErrValidation:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": e.Error(), "fields": e.Fields})
	case *errors.ErrUnauthorized:
		c.JSON(http.StatusUnauthorized, gin.H{"error": e.Error()})
	case *errors.ErrNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": e.Error()})
	case *errors.ErrPrecondition:
		c.JSON(http.StatusConflict, gin.H{"error": e.Error(), "redirect": e.Stage, "missing": e.Missing})
	case *errors.ErrInvalidStateTransition:
		c.JSON(http.StatusConflict, gin.H{"error": e.Error(), "from": e.From, "to": e.To})
	case *errors.ErrConflict:
		c.JSON(http.StatusConflict, gin.H{"error": e.Error()})
	case *errors.ErrBackend:
		status := http.StatusBadGateway
		if e.StatusCode >= 400 && e.StatusCode < 500 {
			status = e.StatusCode
		}
		c.JSON(status, gin.H{"error": e.Message, "backendStatus": e.StatusCode})
	case *errors.ErrBackendUnavailable:
		logger.Warn("Backend unavailable", zap.String("op", e.Operation), zap.Error(e.Err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "backend unavailable, try again later"})
	default:
		logger.Error("Request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func callerOrAbort(c *gin.Context) (service.Caller, bool) {
	caller, ok := middleware.GetCallerFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return service.Caller{}, false
	}
	return caller, true
}

func int64Param(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || v <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return v, true
}
