package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"propdesk/internal/domain"
)

// Response represents a standardized API response
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   interface{} `json:"error,omitempty"`
}

// SuccessResponse sends a success response
func SuccessResponse(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, Response{
		Status: "success",
		Data:   data,
	})
}

// CreatedResponse sends a 201 Created response
func CreatedResponse(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, Response{
		Status: "success",
		Data:   data,
	})
}

// ErrorResponse sends an error response
func ErrorResponse(c echo.Context, statusCode int, message string, err interface{}) error {
	return c.JSON(statusCode, Response{
		Status:  "error",
		Message: message,
		Error:   err,
	})
}

// BadRequestResponse sends a 400 Bad Request response
func BadRequestResponse(c echo.Context, message string) error {
	return ErrorResponse(c, http.StatusBadRequest, message, nil)
}

// UnauthorizedResponse sends a 401 Unauthorized response
func UnauthorizedResponse(c echo.Context, message string) error {
	return ErrorResponse(c, http.StatusUnauthorized, message, nil)
}

// ForbiddenResponse sends a 403 Forbidden response
func ForbiddenResponse(c echo.Context, message string) error {
	return ErrorResponse(c, http.StatusForbidden, message, nil)
}

// NotFoundResponse sends a 404 Not Found response
func NotFoundResponse(c echo.Context, message string) error {
	return ErrorResponse(c, http.StatusNotFound, message, nil)
}

// DomainErrorResponse maps an engine error to the matching HTTP status.
func DomainErrorResponse(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return ErrorResponse(c, http.StatusBadRequest, "Invalid request", err.Error())
	case errors.Is(err, domain.ErrInsufficientMargin):
		return ErrorResponse(c, http.StatusUnprocessableEntity, "Insufficient balance for this trade", err.Error())
	case errors.Is(err, domain.ErrAccountNotActive):
		return ErrorResponse(c, http.StatusForbidden, "Account is not active", err.Error())
	case errors.Is(err, domain.ErrAccountClosed):
		return ErrorResponse(c, http.StatusForbidden, "Account is closed", err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		return ErrorResponse(c, http.StatusConflict, "Invalid account status transition", err.Error())
	case errors.Is(err, domain.ErrPositionNotFound):
		return ErrorResponse(c, http.StatusNotFound, "Position not found", err.Error())
	case errors.Is(err, domain.ErrPositionNotOpen):
		return ErrorResponse(c, http.StatusConflict, "Position is not open", err.Error())
	case errors.Is(err, domain.ErrPriceUnavailable):
		return ErrorResponse(c, http.StatusServiceUnavailable, "Price unavailable, please retry", err.Error())
	case errors.Is(err, domain.ErrLockTimeout):
		return ErrorResponse(c, http.StatusServiceUnavailable, "Account is busy, please retry", err.Error())
	default:
		return ErrorResponse(c, http.StatusInternalServerError, "Internal server error", err.Error())
	}
}
