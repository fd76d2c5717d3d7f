package command

import (
	"context"
	"strings"

	"github.com/goliatone/go-backoffice/core"
	bosync "github.com/goliatone/go-backoffice/sync"
	"github.com/goliatone/go-backoffice/webhooks"
	gocmd "github.com/goliatone/go-command"
)

// AgendaService is the operator's agenda view. *sync.Coordinator implements
// it.
type AgendaService interface {
	SetCategory(ctx context.Context, category core.Category) (bosync.Snapshot, error)
	SetDateFilter(ctx context.Context, filter core.DateFilter) bosync.Snapshot
	Refresh(ctx context.Context) bosync.Snapshot
	RefreshViaPost(ctx context.Context) bosync.Snapshot
	AddEvent(ctx context.Context, category core.Category, form core.EventForm) core.MutationResult
	EditEvent(ctx context.Context, category core.Category, id string, form core.EventForm) core.MutationResult
	DeleteEvent(ctx context.Context, category core.Category, id string) core.MutationResult
}

type EndpointService interface {
	SaveEndpoints(ctx context.Context, overrides map[core.OperationKey]string) error
	ReloadEndpoints(ctx context.Context) error
}

type IntegrationDeliverer interface {
	Deliver(ctx context.Context, key core.OperationKey, payload any) (webhooks.Report, error)
}

type AddEventCommand struct {
	agenda AgendaService
}

func NewAddEventCommand(agenda AgendaService) *AddEventCommand {
	return &AddEventCommand{agenda: agenda}
}

func (c *AddEventCommand) Execute(ctx context.Context, msg AddEventMessage) error {
	if c == nil || c.agenda == nil {
		return commandDependencyError("command: agenda service is required")
	}
	result := c.agenda.AddEvent(ctx, msg.Category, msg.Form)
	storeResult(ctx, result)
	return mutationError(result)
}

type EditEventCommand struct {
	agenda AgendaService
}

func NewEditEventCommand(agenda AgendaService) *EditEventCommand {
	return &EditEventCommand{agenda: agenda}
}

func (c *EditEventCommand) Execute(ctx context.Context, msg EditEventMessage) error {
	if c == nil || c.agenda == nil {
		return commandDependencyError("command: agenda service is required")
	}
	result := c.agenda.EditEvent(ctx, msg.Category, strings.TrimSpace(msg.ID), msg.Form)
	storeResult(ctx, result)
	return mutationError(result)
}

type DeleteEventCommand struct {
	agenda AgendaService
}

func NewDeleteEventCommand(agenda AgendaService) *DeleteEventCommand {
	return &DeleteEventCommand{agenda: agenda}
}

func (c *DeleteEventCommand) Execute(ctx context.Context, msg DeleteEventMessage) error {
	if c == nil || c.agenda == nil {
		return commandDependencyError("command: agenda service is required")
	}
	result := c.agenda.DeleteEvent(ctx, msg.Category, strings.TrimSpace(msg.ID))
	storeResult(ctx, result)
	return mutationError(result)
}

type SetCategoryCommand struct {
	agenda AgendaService
}

func NewSetCategoryCommand(agenda AgendaService) *SetCategoryCommand {
	return &SetCategoryCommand{agenda: agenda}
}

func (c *SetCategoryCommand) Execute(ctx context.Context, msg SetCategoryMessage) error {
	if c == nil || c.agenda == nil {
		return commandDependencyError("command: agenda service is required")
	}
	snapshot, err := c.agenda.SetCategory(ctx, msg.Category)
	if err != nil {
		return err
	}
	storeResult(ctx, snapshot)
	return nil
}

type SetDateFilterCommand struct {
	agenda AgendaService
}

func NewSetDateFilterCommand(agenda AgendaService) *SetDateFilterCommand {
	return &SetDateFilterCommand{agenda: agenda}
}

func (c *SetDateFilterCommand) Execute(ctx context.Context, msg SetDateFilterMessage) error {
	if c == nil || c.agenda == nil {
		return commandDependencyError("command: agenda service is required")
	}
	filter, err := core.ParseDateFilter(msg.Date)
	if err != nil {
		return commandWrapValidation(err, "command: invalid date filter")
	}
	storeResult(ctx, c.agenda.SetDateFilter(ctx, filter))
	return nil
}

type RefreshAgendaCommand struct {
	agenda AgendaService
}

func NewRefreshAgendaCommand(agenda AgendaService) *RefreshAgendaCommand {
	return &RefreshAgendaCommand{agenda: agenda}
}

func (c *RefreshAgendaCommand) Execute(ctx context.Context, msg RefreshAgendaMessage) error {
	if c == nil || c.agenda == nil {
		return commandDependencyError("command: agenda service is required")
	}
	if msg.ViaPost {
		storeResult(ctx, c.agenda.RefreshViaPost(ctx))
		return nil
	}
	storeResult(ctx, c.agenda.Refresh(ctx))
	return nil
}

type SaveEndpointsCommand struct {
	service EndpointService
}

func NewSaveEndpointsCommand(service EndpointService) *SaveEndpointsCommand {
	return &SaveEndpointsCommand{service: service}
}

func (c *SaveEndpointsCommand) Execute(ctx context.Context, msg SaveEndpointsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: endpoint service is required")
	}
	return c.service.SaveEndpoints(ctx, msg.Overrides)
}

type ReloadEndpointsCommand struct {
	service EndpointService
}

func NewReloadEndpointsCommand(service EndpointService) *ReloadEndpointsCommand {
	return &ReloadEndpointsCommand{service: service}
}

func (c *ReloadEndpointsCommand) Execute(ctx context.Context, _ ReloadEndpointsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: endpoint service is required")
	}
	return c.service.ReloadEndpoints(ctx)
}

type DeliverIntegrationCommand struct {
	deliverer IntegrationDeliverer
}

func NewDeliverIntegrationCommand(deliverer IntegrationDeliverer) *DeliverIntegrationCommand {
	return &DeliverIntegrationCommand{deliverer: deliverer}
}

func (c *DeliverIntegrationCommand) Execute(ctx context.Context, msg DeliverIntegrationMessage) error {
	if c == nil || c.deliverer == nil {
		return commandDependencyError("command: integration deliverer is required")
	}
	var payload any
	if len(msg.Payload) > 0 {
		payload = msg.Payload
	}
	report, err := c.deliverer.Deliver(ctx, msg.Operation, payload)
	storeResult(ctx, report)
	return err
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
