package gocommand

import (
	"time"

	bocommand "github.com/goliatone/go-backoffice/command"
	"github.com/goliatone/go-backoffice/query"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
)

// Handlers lists what the backoffice message surface is served by. Nil
// fields leave the matching commands and queries unregistered.
type Handlers struct {
	Agenda interface {
		bocommand.AgendaService
		query.AgendaReader
	}
	AgendaLocation *time.Location
	Endpoints      interface {
		bocommand.EndpointService
		query.EndpointReader
	}
	Integrations bocommand.IntegrationDeliverer
	Deliveries   query.DeliveryLogReader
}

// Subscriptions groups the dispatcher subscriptions created by
// RegisterBackoffice.
type Subscriptions []commanddispatcher.Subscription

func (s Subscriptions) Unsubscribe() {
	for _, sub := range s {
		if sub != nil {
			sub.Unsubscribe()
		}
	}
}

type binding func() (commanddispatcher.Subscription, error)

// RegisterBackoffice registers and subscribes every backoffice command and
// query. On failure nothing stays subscribed.
func RegisterBackoffice(a *RegistryAdapter, h Handlers, opts ...runner.Option) (Subscriptions, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}

	var bindings []binding
	if agenda := h.Agenda; agenda != nil {
		bindings = append(bindings,
			func() (commanddispatcher.Subscription, error) {
				return BindCommand(a, bocommand.NewAddEventCommand(agenda), opts...)
			},
			func() (commanddispatcher.Subscription, error) {
				return BindCommand(a, bocommand.NewEditEventCommand(agenda), opts...)
			},
			func() (commanddispatcher.Subscription, error) {
				return BindCommand(a, bocommand.NewDeleteEventCommand(agenda), opts...)
			},
			func() (commanddispatcher.Subscription, error) {
				return BindCommand(a, bocommand.NewSetCategoryCommand(agenda), opts...)
			},
			func() (commanddispatcher.Subscription, error) {
				return BindCommand(a, bocommand.NewSetDateFilterCommand(agenda), opts...)
			},
			func() (commanddispatcher.Subscription, error) {
				return BindCommand(a, bocommand.NewRefreshAgendaCommand(agenda), opts...)
			},
			func() (commanddispatcher.Subscription, error) {
				return BindQuery(a, query.NewAgendaSnapshotQuery(agenda, h.AgendaLocation), opts...)
			},
		)
	}
	if endpoints := h.Endpoints; endpoints != nil {
		bindings = append(bindings,
			func() (commanddispatcher.Subscription, error) {
				return BindCommand(a, bocommand.NewSaveEndpointsCommand(endpoints), opts...)
			},
			func() (commanddispatcher.Subscription, error) {
				return BindCommand(a, bocommand.NewReloadEndpointsCommand(endpoints), opts...)
			},
			func() (commanddispatcher.Subscription, error) {
				return BindQuery(a, query.NewEffectiveEndpointsQuery(endpoints), opts...)
			},
			func() (commanddispatcher.Subscription, error) {
				return BindQuery(a, query.NewEndpointGroupsQuery(endpoints), opts...)
			},
			func() (commanddispatcher.Subscription, error) {
				return BindQuery(a, query.NewResolveEndpointQuery(endpoints), opts...)
			},
		)
	}
	if h.Integrations != nil {
		bindings = append(bindings, func() (commanddispatcher.Subscription, error) {
			return BindCommand(a, bocommand.NewDeliverIntegrationCommand(h.Integrations), opts...)
		})
	}
	if h.Deliveries != nil {
		bindings = append(bindings, func() (commanddispatcher.Subscription, error) {
			return BindQuery(a, query.NewRecentDeliveriesQuery(h.Deliveries), opts...)
		})
	}

	subs := make(Subscriptions, 0, len(bindings))
	for _, bind := range bindings {
		sub, err := bind()
		if err != nil {
			subs.Unsubscribe()
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}
