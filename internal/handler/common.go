package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/service"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/pkg/logger"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// serviceError maps service sentinel errors onto HTTP responses. Unknown
// errors are logged and returned as a 500 without detail.
func serviceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrFederationDisabled):
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrNotAuthorized):
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrPartnershipNotFound),
		errors.Is(err, service.ErrTransactionNotFound),
		errors.Is(err, service.ErrMessageNotFound),
		errors.Is(err, service.ErrMemberNotFound),
		errors.Is(err, service.ErrListingNotFound),
		errors.Is(err, service.ErrPartnerNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrNotInvolved):
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrPartnershipExists),
		errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrAlreadyReversed):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrSelfPartnership),
		errors.Is(err, service.ErrInvalidLevel),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrEmptyMessageBody):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrInsufficientBalance):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, echo.Map{
			"error":             "invalid_client",
			"error_description": "Invalid credentials",
		})
	}

	logger.FromEcho(c).Error("Unhandled service error", zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// paramUint parses a path parameter as an unsigned integer
func paramUint(c echo.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(v), true
}

// queryUint parses a query parameter, returning def when absent or invalid
func queryUint(c echo.Context, name string, def uint) uint {
	v, err := strconv.ParseUint(c.QueryParam(name), 10, 32)
	if err != nil {
		return def
	}
	return uint(v)
}

// queryInt parses a query parameter, returning def when absent or invalid
func queryInt(c echo.Context, name string, def int) int {
	v, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return def
	}
	return v
}

// badRequest is the uniform malformed-payload response
func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}
