package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/dunglechi/vnpt-talent-hub-sub001/internal/controller"
	"github.com/dunglechi/vnpt-talent-hub-sub001/internal/service"
	"github.com/dunglechi/vnpt-talent-hub-sub001/internal/storage"
)

func ErrorHandler(log *zap.SugaredLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		if status, reason, handled := mapDomainError(err); handled {
			if jsonErr := c.JSON(status, controller.ErrorResponse{Reason: reason}); jsonErr != nil {
				log.Errorw("failed to write json response", "error", jsonErr)
			}
			return
		}

		he, ok := err.(*echo.HTTPError)
		if ok {
			if he.Code == http.StatusInternalServerError {
				log.Errorw("HTTP error", "error", err, "uri", c.Request().RequestURI)
			}
			reason, _ := he.Message.(string)
			if jsonErr := c.JSON(he.Code, controller.ErrorResponse{Reason: reason}); jsonErr != nil {
				log.Errorw("failed to write json response", "error", jsonErr)
			}
			return
		}

		log.Errorw("unhandled error", "error", err, "uri", c.Request().RequestURI)
		c.JSON(http.StatusInternalServerError, controller.ErrorResponse{Reason: "internal server error"})
	}
}

// mapDomainError translates service and storage sentinels into HTTP
// responses. Every session failure collapses to the same 401 body so the
// API leaks nothing about token state.
func mapDomainError(err error) (int, string, bool) {
	switch {
	case errors.Is(err, service.ErrSessionInvalid):
		return http.StatusUnauthorized, service.ErrSessionInvalid.Error(), true
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, service.ErrInvalidCredentials.Error(), true
	case errors.Is(err, service.ErrInactiveUser):
		return http.StatusForbidden, service.ErrInactiveUser.Error(), true
	case errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrAlreadyVerified),
		errors.Is(err, storage.ErrEmailTaken),
		errors.Is(err, storage.ErrVerificationConsumed),
		errors.Is(err, storage.ErrVerificationExpired):
		return http.StatusBadRequest, err.Error(), true
	case errors.Is(err, storage.ErrVerificationNotFound):
		return http.StatusNotFound, "invalid token", true
	case errors.Is(err, storage.ErrUserNotFound):
		return http.StatusNotFound, storage.ErrUserNotFound.Error(), true
	default:
		return 0, "", false
	}
}
