package apperrors

import (
	"errors"
	"net/http"
)

var (
	ErrInvalidStatus       = errors.New("invalid shipment status")
	ErrInvalidApprovalType = errors.New("invalid approval type")
	ErrInvalidTransition   = errors.New("status transition not allowed")
	ErrUnauthorized        = errors.New("not authorized for this shipment")
	ErrAlreadyDecided      = errors.New("approval already decided")
	ErrApprovalClosed      = errors.New("approval is already final")
	ErrMissingReason       = errors.New("rejection reason is required")
	ErrPersistence         = errors.New("persistence failure")
	ErrLocationUnavailable = errors.New("location unavailable")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("concurrent update conflict")
	ErrValidation          = errors.New("validation failed")
)

// HTTPStatus maps an error from the taxonomy to a response code.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrInvalidApprovalType),
		errors.Is(err, ErrMissingReason),
		errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyDecided),
		errors.Is(err, ErrApprovalClosed),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrLocationUnavailable):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// Code returns the stable machine-readable name used in API responses.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidStatus):
		return "InvalidStatus"
	case errors.Is(err, ErrInvalidApprovalType):
		return "InvalidApprovalType"
	case errors.Is(err, ErrInvalidTransition):
		return "InvalidTransition"
	case errors.Is(err, ErrUnauthorized):
		return "Unauthorized"
	case errors.Is(err, ErrAlreadyDecided):
		return "AlreadyDecided"
	case errors.Is(err, ErrApprovalClosed):
		return "ApprovalClosed"
	case errors.Is(err, ErrMissingReason):
		return "MissingReason"
	case errors.Is(err, ErrLocationUnavailable):
		return "LocationUnavailable"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrConflict):
		return "Conflict"
	case errors.Is(err, ErrValidation):
		return "ValidationError"
	}
	return "PersistenceError"
}
