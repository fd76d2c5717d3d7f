package command

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goliatone/go-backoffice/core"
)

const (
	TypeAddEvent           = "backoffice.command.agenda.add"
	TypeEditEvent          = "backoffice.command.agenda.edit"
	TypeDeleteEvent        = "backoffice.command.agenda.delete"
	TypeSetCategory        = "backoffice.command.agenda.set_category"
	TypeSetDateFilter      = "backoffice.command.agenda.set_date_filter"
	TypeRefreshAgenda      = "backoffice.command.agenda.refresh"
	TypeSaveEndpoints      = "backoffice.command.endpoints.save"
	TypeReloadEndpoints    = "backoffice.command.endpoints.reload"
	TypeDeliverIntegration = "backoffice.command.integration.deliver"
)

// AddEventMessage targets Category, or the viewed agenda when it is empty.
// The same holds for edit and delete.
type AddEventMessage struct {
	Category core.Category
	Form     core.EventForm
}

func (AddEventMessage) Type() string { return TypeAddEvent }

func (m AddEventMessage) Validate() error {
	if err := validateTarget(m.Category); err != nil {
		return err
	}
	return m.Form.Validate()
}

type EditEventMessage struct {
	Category core.Category
	ID       string
	Form     core.EventForm
}

func (EditEventMessage) Type() string { return TypeEditEvent }

func (m EditEventMessage) Validate() error {
	if err := validateTarget(m.Category); err != nil {
		return err
	}
	if strings.TrimSpace(m.ID) == "" {
		return commandValidationError("id", "event id is required")
	}
	return m.Form.Validate()
}

type DeleteEventMessage struct {
	Category core.Category
	ID       string
}

func (DeleteEventMessage) Type() string { return TypeDeleteEvent }

func (m DeleteEventMessage) Validate() error {
	if err := validateTarget(m.Category); err != nil {
		return err
	}
	if strings.TrimSpace(m.ID) == "" {
		return commandValidationError("id", "event id is required")
	}
	return nil
}

type SetCategoryMessage struct {
	Category core.Category
}

func (SetCategoryMessage) Type() string { return TypeSetCategory }

func (m SetCategoryMessage) Validate() error {
	if !m.Category.Valid() {
		return commandValidationError("category", fmt.Sprintf("unknown category %q", m.Category))
	}
	return nil
}

func validateTarget(category core.Category) error {
	if category != "" && !category.Valid() {
		return commandValidationError("category", fmt.Sprintf("unknown category %q", category))
	}
	return nil
}

// SetDateFilterMessage carries a YYYY-MM-DD day; empty clears the filter.
type SetDateFilterMessage struct {
	Date string
}

func (SetDateFilterMessage) Type() string { return TypeSetDateFilter }

func (m SetDateFilterMessage) Validate() error {
	if _, err := core.ParseDateFilter(m.Date); err != nil {
		return commandWrapValidation(err, "command: invalid date filter")
	}
	return nil
}

type RefreshAgendaMessage struct {
	ViaPost bool
}

func (RefreshAgendaMessage) Type() string { return TypeRefreshAgenda }

type SaveEndpointsMessage struct {
	Overrides map[core.OperationKey]string
}

func (SaveEndpointsMessage) Type() string { return TypeSaveEndpoints }

func (m SaveEndpointsMessage) Validate() error {
	if len(m.Overrides) == 0 {
		return commandValidationError("overrides", "at least one endpoint is required")
	}
	for key := range m.Overrides {
		if !core.KnownKey(key) {
			return commandValidationError(string(key), "unknown endpoint key")
		}
	}
	return nil
}

type ReloadEndpointsMessage struct{}

func (ReloadEndpointsMessage) Type() string { return TypeReloadEndpoints }

// DeliverIntegrationMessage replays a prepared webhook payload. It is the
// message queued for asynchronous delivery.
type DeliverIntegrationMessage struct {
	Operation core.OperationKey `json:"operation"`
	Payload   json.RawMessage   `json:"payload,omitempty"`
}

func (DeliverIntegrationMessage) Type() string { return TypeDeliverIntegration }

func (m DeliverIntegrationMessage) Validate() error {
	if !core.KnownKey(m.Operation) {
		return commandValidationError("operation", fmt.Sprintf("unknown operation %q", m.Operation))
	}
	if core.CategorySensitive(m.Operation) {
		return commandInvalidInputError("command: agenda operations cannot be delivered as integrations")
	}
	if len(m.Payload) > 0 && !json.Valid(m.Payload) {
		return commandValidationError("payload", "payload must be valid json")
	}
	return nil
}
