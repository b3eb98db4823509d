package handler

import (
	"errors"
	"net/http"

	"github.com/diticoms/service-desk/internal/errs"
	"github.com/diticoms/service-desk/internal/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statusFor maps domain and sheet errors to HTTP status codes.
func statusFor(err error) int {
	var (
		cfgErr *errs.ConfigurationError
		appErr *errs.ApplicationError
		toErr  *errs.TimeoutError
	)
	switch {
	case errors.As(err, &cfgErr), errors.Is(err, errs.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrNotLoggedIn):
		return http.StatusUnauthorized
	case errors.Is(err, errs.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrTicketNotFound):
		return http.StatusNotFound
	case errors.As(err, &appErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &toErr):
		return http.StatusGatewayTimeout
	case errs.IsUpstream(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		logger.FromGin(c).Error("request failed", zap.Error(err))
	}
	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.JSON(code, gin.H{"error": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
