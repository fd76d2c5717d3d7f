package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorBadInput               = "BACKOFFICE_BAD_INPUT"
	ErrorConfigurationInvalid   = "BACKOFFICE_CONFIGURATION_INVALID"
	ErrorEndpointUnknown        = "BACKOFFICE_ENDPOINT_UNKNOWN"
	ErrorOverrideStoreFailed    = "BACKOFFICE_OVERRIDE_STORE_FAILED"
	ErrorNotFound               = "BACKOFFICE_NOT_FOUND"
	ErrorConflict               = "BACKOFFICE_CONFLICT"
	ErrorExternalFailure        = "BACKOFFICE_EXTERNAL_FAILURE"
	ErrorInternal               = "BACKOFFICE_INTERNAL_ERROR"
	ErrorDeliveryFailed         = "WEBHOOK_DELIVERY_FAILED"
	ErrorCalendarReadFailed     = "CALENDAR_READ_FAILED"
	ErrorCalendarRefreshFailed  = "CALENDAR_REFRESH_FAILED"
	ErrorCalendarEventNotFound  = "CALENDAR_EVENT_NOT_FOUND"
	ErrorCalendarMutationFailed = "CALENDAR_MUTATION_FAILED"
	ErrorSyncMutationInProgress = "SYNC_MUTATION_IN_PROGRESS"
)

// NewError builds a rich error carrying the HTTP status derived from the
// category.
func NewError(message string, category goerrors.Category, textCode string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, category).
		WithCode(HTTPStatus(category)).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func WrapError(
	source error,
	category goerrors.Category,
	message string,
	textCode string,
	metadata map[string]any,
) *goerrors.Error {
	if source == nil {
		return NewError(message, category, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(HTTPStatus(category)).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func NewValidationError(field string, message string) *goerrors.Error {
	return goerrors.NewValidation("validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}

// HasTextCode reports whether err, or a rich error it wraps, carries code.
func HasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

func backofficeErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "unknown endpoint"), strings.Contains(msg, "unknown operation"):
		return ensureErrorEnvelope(goerrors.New(err.Error(), goerrors.CategoryValidation).WithTextCode(ErrorEndpointUnknown))
	case strings.Contains(msg, "not found"):
		return ensureErrorEnvelope(goerrors.New(err.Error(), goerrors.CategoryNotFound).WithTextCode(ErrorNotFound))
	case strings.Contains(msg, "in progress"):
		return ensureErrorEnvelope(goerrors.New(err.Error(), goerrors.CategoryConflict).WithTextCode(ErrorConflict))
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return ensureErrorEnvelope(goerrors.New(err.Error(), goerrors.CategoryBadInput).WithTextCode(ErrorBadInput))
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = HTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryNotFound:
		return ErrorNotFound
	case goerrors.CategoryConflict:
		return ErrorConflict
	case goerrors.CategoryExternal:
		return ErrorExternalFailure
	default:
		return ErrorInternal
	}
}

func HTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
