package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/estate-portal/internal/service"
)

const requestTimeout = 5 * time.Second

// reqCtx bounds downstream calls made on behalf of one request.
func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// statusOf maps a service error to its HTTP status.  Unknown errors are 500.
func statusOf(err error) int {
	var fe *service.FieldError
	switch {
	case errors.As(err, &fe),
		errors.Is(err, service.ErrEmailRegistered),
		errors.Is(err, service.ErrFlatRegistered),
		errors.Is(err, service.ErrInvalidInvitation),
		errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrInvalidStatus):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidCode),
		errors.Is(err, service.ErrInvalidRefresh):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrEmailNotConfirmed),
		errors.Is(err, service.ErrAccountSuspended),
		errors.Is(err, service.ErrNoRole),
		errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrVisitorState),
		errors.Is(err, service.ErrAlreadyJoined),
		errors.Is(err, service.ErrAmenityExists):
		return http.StatusConflict
	case errors.Is(err, service.ErrInviteNotSent):
		return http.StatusBadGateway
	case errors.Is(err, service.ErrRealtimeUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// publicMessage is the text shown to the caller.  Service sentinels carry
// their own message; downstream failures get a generic one.
func publicMessage(err error, status int) string {
	if status == http.StatusInternalServerError {
		return "internal server error"
	}
	var fe *service.FieldError
	if errors.As(err, &fe) {
		return fe.Error()
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return http.StatusText(status)
}

var sentinels = []error{
	service.ErrEmailRegistered, service.ErrFlatRegistered, service.ErrInvalidInvitation,
	service.ErrEmailTaken, service.ErrWeakPassword, service.ErrInvalidEmail, service.ErrInvalidStatus,
	service.ErrInvalidCredentials, service.ErrEmailNotConfirmed, service.ErrAccountSuspended,
	service.ErrInvalidCode, service.ErrInvalidRefresh, service.ErrNoRole,
	service.ErrForbidden, service.ErrNotFound, service.ErrVisitorState, service.ErrAlreadyJoined,
	service.ErrAmenityExists, service.ErrInviteNotSent, service.ErrRealtimeUnavailable,
}

// fail writes {"error": msg} for err.  Server errors are logged with the
// request id and hidden from the caller.
func fail(c echo.Context, log *zap.Logger, err error) error {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		logger(log).Error("request failed",
			zap.String("request_id", requestID(c)),
			zap.String("path", c.Path()),
			zap.Error(err))
	}
	return c.JSON(status, echo.Map{"error": publicMessage(err, status)})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

func requestID(c echo.Context) string {
	id, _ := c.Get("request_id").(string)
	return id
}

func logger(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
