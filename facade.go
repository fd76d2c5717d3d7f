package backoffice

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-backoffice/adapters/gocommand"
	"github.com/goliatone/go-backoffice/adapters/gojob"
	"github.com/goliatone/go-backoffice/calendar"
	bocommand "github.com/goliatone/go-backoffice/command"
	"github.com/goliatone/go-backoffice/core"
	"github.com/goliatone/go-backoffice/httpapi"
	"github.com/goliatone/go-backoffice/integrations"
	boquery "github.com/goliatone/go-backoffice/query"
	bosync "github.com/goliatone/go-backoffice/sync"
	"github.com/goliatone/go-backoffice/transport"
	"github.com/goliatone/go-backoffice/webhooks"
	"github.com/goliatone/go-command/runner"
	goerrors "github.com/goliatone/go-errors"
)

type Commands struct {
	AddEvent           *bocommand.AddEventCommand
	EditEvent          *bocommand.EditEventCommand
	DeleteEvent        *bocommand.DeleteEventCommand
	SetCategory        *bocommand.SetCategoryCommand
	SetDateFilter      *bocommand.SetDateFilterCommand
	RefreshAgenda      *bocommand.RefreshAgendaCommand
	SaveEndpoints      *bocommand.SaveEndpointsCommand
	ReloadEndpoints    *bocommand.ReloadEndpointsCommand
	DeliverIntegration *bocommand.DeliverIntegrationCommand
}

// Queries leaves RecentDeliveries nil when no delivery log is configured.
type Queries struct {
	AgendaSnapshot     *boquery.AgendaSnapshotQuery
	EffectiveEndpoints *boquery.EffectiveEndpointsQuery
	EndpointGroups     *boquery.EndpointGroupsQuery
	ResolveEndpoint    *boquery.ResolveEndpointQuery
	RecentDeliveries   *boquery.RecentDeliveriesQuery
}

// Backoffice wires one Service into the full operator surface: webhook
// dispatcher, calendar reads and mutations, the agenda coordinator and the
// integration client.
type Backoffice struct {
	service      *core.Service
	dispatcher   *webhooks.Dispatcher
	calendar     *calendar.Service
	poller       *bosync.Poller
	coordinator  *bosync.Coordinator
	integrations *integrations.Client
	deliveries   boquery.DeliveryLogReader
	enqueuer     core.JobEnqueuer
	deliverer    bocommand.IntegrationDeliverer
	commands     Commands
	queries      Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	httpClient transport.HTTPDoer
	recorder   webhooks.ReportRecorder
	deliveries boquery.DeliveryLogReader
	enqueuer   core.JobEnqueuer
	waiter     func(ctx context.Context, delay time.Duration) error
}

// WithHTTPClient is used when the service carries no transport of its own.
func WithHTTPClient(client transport.HTTPDoer) FacadeOption {
	return func(o *facadeOptions) {
		o.httpClient = client
	}
}

func WithReportRecorder(recorder webhooks.ReportRecorder) FacadeOption {
	return func(o *facadeOptions) {
		o.recorder = recorder
	}
}

// WithDeliveryLog exposes reader through the RecentDeliveries query. A reader
// that also records reports is installed as the dispatcher's recorder unless
// WithReportRecorder set one.
func WithDeliveryLog(reader boquery.DeliveryLogReader) FacadeOption {
	return func(o *facadeOptions) {
		o.deliveries = reader
	}
}

// WithJobEnqueuer enables EnqueueDelivery and routes DeliverIntegration
// commands through the queue.
func WithJobEnqueuer(enqueuer core.JobEnqueuer) FacadeOption {
	return func(o *facadeOptions) {
		o.enqueuer = enqueuer
	}
}

func WithDeliveryWaiter(wait func(ctx context.Context, delay time.Duration) error) FacadeOption {
	return func(o *facadeOptions) {
		o.waiter = wait
	}
}

func NewFacade(service *core.Service, opts ...FacadeOption) (*Backoffice, error) {
	if service == nil {
		return nil, fmt.Errorf("backoffice: service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	deps := service.Dependencies()
	config := service.Config()

	adapter := deps.Transport
	if adapter == nil {
		adapter = transport.NewRESTAdapter(cfg.httpClient)
	}

	recorder := cfg.recorder
	if recorder == nil {
		if candidate, ok := cfg.deliveries.(webhooks.ReportRecorder); ok {
			recorder = candidate
		}
	}

	dispatcherOpts := []webhooks.DispatcherOption{
		webhooks.WithResolver(service.Resolver()),
		webhooks.WithDefaults(webhooks.OptionsFromConfig(config.Delivery)),
		webhooks.WithLogger(service.NamedLogger("webhooks")),
		webhooks.WithMetricsRecorder(deps.MetricsRecorder),
		webhooks.WithClock(deps.Now),
		webhooks.WithWaiter(cfg.waiter),
	}
	if recorder != nil {
		dispatcherOpts = append(dispatcherOpts, webhooks.WithReportRecorder(recorder))
	}
	dispatcher := webhooks.NewDispatcher(adapter, dispatcherOpts...)

	cal := calendar.NewService(adapter, service.Resolver(),
		calendar.WithConfig(config.Calendar),
		calendar.WithLogger(service.NamedLogger("calendar")),
		calendar.WithMetricsRecorder(deps.MetricsRecorder),
	)

	poller := bosync.NewPoller(config.Calendar.PollInterval(), service.NamedLogger("sync.poller"))
	coordinator := bosync.NewCoordinator(cal,
		bosync.WithPoller(poller),
		bosync.WithNotifier(deps.Notifier),
		bosync.WithLogger(service.NamedLogger("sync")),
		bosync.WithMetricsRecorder(deps.MetricsRecorder),
		bosync.WithClock(deps.Now),
		bosync.WithCategory(config.Category()),
	)

	client := integrations.NewClient(dispatcher, integrations.WithLogger(service.NamedLogger("integrations")))

	b := &Backoffice{
		service:      service,
		dispatcher:   dispatcher,
		calendar:     cal,
		poller:       poller,
		coordinator:  coordinator,
		integrations: client,
		deliveries:   cfg.deliveries,
		enqueuer:     cfg.enqueuer,
	}

	b.deliverer = client
	if cfg.enqueuer != nil {
		b.deliverer = queuedDeliverer{enqueuer: cfg.enqueuer}
	}

	b.commands = Commands{
		AddEvent:           bocommand.NewAddEventCommand(coordinator),
		EditEvent:          bocommand.NewEditEventCommand(coordinator),
		DeleteEvent:        bocommand.NewDeleteEventCommand(coordinator),
		SetCategory:        bocommand.NewSetCategoryCommand(coordinator),
		SetDateFilter:      bocommand.NewSetDateFilterCommand(coordinator),
		RefreshAgenda:      bocommand.NewRefreshAgendaCommand(coordinator),
		SaveEndpoints:      bocommand.NewSaveEndpointsCommand(service),
		ReloadEndpoints:    bocommand.NewReloadEndpointsCommand(service),
		DeliverIntegration: bocommand.NewDeliverIntegrationCommand(b.deliverer),
	}
	b.queries = Queries{
		AgendaSnapshot:     boquery.NewAgendaSnapshotQuery(coordinator, cal.Location()),
		EffectiveEndpoints: boquery.NewEffectiveEndpointsQuery(service),
		EndpointGroups:     boquery.NewEndpointGroupsQuery(service),
		ResolveEndpoint:    boquery.NewResolveEndpointQuery(service),
	}
	if cfg.deliveries != nil {
		b.queries.RecentDeliveries = boquery.NewRecentDeliveriesQuery(cfg.deliveries)
	}
	return b, nil
}

// New builds the Service from cfg and wraps it in a facade.
func New(cfg Config, serviceOpts []Option, opts ...FacadeOption) (*Backoffice, error) {
	service, err := core.NewService(cfg, serviceOpts...)
	if err != nil {
		return nil, err
	}
	return NewFacade(service, opts...)
}

func (b *Backoffice) Commands() Commands {
	if b == nil {
		return Commands{}
	}
	return b.commands
}

func (b *Backoffice) Queries() Queries {
	if b == nil {
		return Queries{}
	}
	return b.queries
}

func (b *Backoffice) Service() *core.Service {
	if b == nil {
		return nil
	}
	return b.service
}

func (b *Backoffice) Dispatcher() *webhooks.Dispatcher {
	return b.dispatcher
}

func (b *Backoffice) Calendar() *calendar.Service {
	return b.calendar
}

func (b *Backoffice) Agenda() *bosync.Coordinator {
	return b.coordinator
}

func (b *Backoffice) Integrations() *integrations.Client {
	return b.integrations
}

// Start launches the poll scheduler and performs the first agenda read.
func (b *Backoffice) Start(ctx context.Context) bosync.Snapshot {
	b.poller.Start()
	return b.coordinator.Start(ctx)
}

func (b *Backoffice) Stop() {
	b.coordinator.Stop()
	b.poller.Stop()
}

// EnqueueDelivery schedules payload for key on the job queue instead of
// delivering it inline.
func (b *Backoffice) EnqueueDelivery(ctx context.Context, key core.OperationKey, payload any) error {
	if b.enqueuer == nil {
		return core.NewError("backoffice: job enqueuer is not configured", goerrors.CategoryInternal, core.ErrorConfigurationInvalid, nil)
	}
	msg, err := gojob.NewDeliveryMessage(key, payload)
	if err != nil {
		return err
	}
	return b.enqueuer.Enqueue(ctx, msg)
}

// DeliveryWorker drains dequeuer through the integration client, so queued
// deliveries get the same resolver, retries and delivery log as inline ones.
func (b *Backoffice) DeliveryWorker(dequeuer core.JobDequeuer, opts ...gojob.WorkerOption) *gojob.DeliveryWorker {
	opts = append([]gojob.WorkerOption{gojob.WithWorkerLogger(b.service.NamedLogger("jobs"))}, opts...)
	return gojob.NewDeliveryWorker(dequeuer, b.integrations, opts...)
}

// RegisterCommands subscribes every command and query on the go-command
// dispatcher.
func (b *Backoffice) RegisterCommands(adapter *gocommand.RegistryAdapter, runnerOpts ...runner.Option) (gocommand.Subscriptions, error) {
	return gocommand.RegisterBackoffice(adapter, gocommand.Handlers{
		Agenda:         b.coordinator,
		AgendaLocation: b.calendar.Location(),
		Endpoints:      b.service,
		Integrations:   b.deliverer,
		Deliveries:     b.deliveries,
	}, runnerOpts...)
}

// Router builds the HTTP API over this facade. extra options are applied
// last.
func (b *Backoffice) Router(extra ...httpapi.Option) *httpapi.Server {
	opts := []httpapi.Option{
		httpapi.WithAgenda(b.coordinator),
		httpapi.WithEndpoints(b.service),
		httpapi.WithBot(b.integrations),
		httpapi.WithLogger(b.service.NamedLogger("http")),
		httpapi.WithErrorMapper(b.service.MapError),
		httpapi.WithLocation(b.calendar.Location()),
		httpapi.WithClock(b.service.Dependencies().Now),
	}
	if b.deliveries != nil {
		opts = append(opts, httpapi.WithDeliveryLog(b.deliveries))
	}
	return httpapi.NewServer(append(opts, extra...)...)
}

// queuedDeliverer answers DeliverIntegration with an empty report once the
// job is accepted; the worker produces the real one.
type queuedDeliverer struct {
	enqueuer core.JobEnqueuer
}

func (d queuedDeliverer) Deliver(ctx context.Context, key core.OperationKey, payload any) (webhooks.Report, error) {
	msg, err := gojob.NewDeliveryMessage(key, payload)
	if err != nil {
		return webhooks.Report{}, err
	}
	if err := d.enqueuer.Enqueue(ctx, msg); err != nil {
		return webhooks.Report{}, err
	}
	return webhooks.Report{Operation: key}, nil
}
