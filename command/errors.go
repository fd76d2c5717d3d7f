package command

import (
	"net/http"

	"github.com/goliatone/go-backoffice/core"
	goerrors "github.com/goliatone/go-errors"
)

func commandDependencyError(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.ErrorInternal)
}

func commandValidationError(field string, message string) error {
	return goerrors.NewValidation("command: validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}

func commandInvalidInputError(message string) error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ErrorBadInput)
}

func commandWrapValidation(err error, message string) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, goerrors.CategoryValidation, message).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ErrorBadInput)
}

// mutationError turns a failed calendar mutation into the error returned by
// the command. Not found keeps its own text code so callers can treat it as
// soft.
func mutationError(result core.MutationResult) error {
	if result.OK() {
		return nil
	}
	if result.NotFound() {
		return core.NewError("command: calendar event not found", goerrors.CategoryNotFound, core.ErrorCalendarEventNotFound, map[string]any{
			"event_id": result.EventID,
			"kind":     string(result.Kind),
		})
	}
	if result.Err != nil {
		return result.Err
	}
	return core.NewError("command: calendar mutation failed", goerrors.CategoryExternal, core.ErrorCalendarMutationFailed, map[string]any{
		"kind":        string(result.Kind),
		"status_code": result.StatusCode,
	})
}
