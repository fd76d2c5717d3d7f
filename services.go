package backoffice

import "github.com/goliatone/go-backoffice/core"

type Config = core.Config

type DeliveryConfig = core.DeliveryConfig

type CalendarConfig = core.CalendarConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type OverrideStore = core.OverrideStore
type TransportAdapter = core.TransportAdapter
type Notifier = core.Notifier
type Notification = core.Notification

type OperationKey = core.OperationKey
type Category = core.Category
type CalendarEvent = core.CalendarEvent
type EventForm = core.EventForm
type DateFilter = core.DateFilter
type MutationResult = core.MutationResult

var (
	WithLogger          = core.WithLogger
	WithLoggerProvider  = core.WithLoggerProvider
	WithMetricsRecorder = core.WithMetricsRecorder
	WithErrorFactory    = core.WithErrorFactory
	WithErrorMapper     = core.WithErrorMapper
	WithConfigProvider  = core.WithConfigProvider
	WithOptionsResolver = core.WithOptionsResolver
	WithOverrideStore   = core.WithOverrideStore
	WithTransport       = core.WithTransport
	WithNotifier        = core.WithNotifier
	WithClock           = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}
