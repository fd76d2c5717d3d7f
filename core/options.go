package core

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceSetup struct {
	runtime Config
	deps    ServiceDependencies
}

// Option adjusts the dependencies NewService starts from.
type Option func(*serviceSetup)

func WithLogger(logger Logger) Option {
	return func(s *serviceSetup) { s.deps.Logger = logger }
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(s *serviceSetup) { s.deps.LoggerProvider = provider }
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(s *serviceSetup) { s.deps.MetricsRecorder = recorder }
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(s *serviceSetup) { s.deps.ErrorFactory = factory }
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(s *serviceSetup) { s.deps.ErrorMapper = mapper }
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(s *serviceSetup) { s.deps.ConfigProvider = provider }
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(s *serviceSetup) { s.deps.OptionsResolver = resolver }
}

// WithOverrideStore persists operator endpoint overrides. Without one the
// overrides live in memory only.
func WithOverrideStore(store OverrideStore) Option {
	return func(s *serviceSetup) { s.deps.OverrideStore = store }
}

func WithTransport(adapter TransportAdapter) Option {
	return func(s *serviceSetup) { s.deps.Transport = adapter }
}

func WithNotifier(notifier Notifier) Option {
	return func(s *serviceSetup) { s.deps.Notifier = notifier }
}

func WithClock(now func() time.Time) Option {
	return func(s *serviceSetup) { s.deps.Now = now }
}

// withDefaults fills every dependency an option left empty. Logger and
// LoggerProvider are resolved by NewService.
func (d ServiceDependencies) withDefaults() ServiceDependencies {
	if d.MetricsRecorder == nil {
		d.MetricsRecorder = NopMetricsRecorder{}
	}
	if d.ErrorFactory == nil {
		d.ErrorFactory = goerrors.New
	}
	if d.ErrorMapper == nil {
		d.ErrorMapper = defaultErrorMapper
	}
	if d.ConfigProvider == nil {
		d.ConfigProvider = NewCfgxConfigProvider(nil)
	}
	if d.OptionsResolver == nil {
		d.OptionsResolver = GoOptionsResolver{}
	}
	if d.Notifier == nil {
		d.Notifier = NopNotifier{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return backofficeErrorMapper(err)
}

// StaticRawConfigLoader serves a fixed raw map, mostly for tests and
// embedding callers that already decoded their configuration.
type StaticRawConfigLoader struct {
	Values map[string]any
}

func (l StaticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if l.Values == nil {
		return map[string]any{}, nil
	}
	return maps.Clone(l.Values), nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = StaticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// GoOptionsResolver layers defaults < loaded config < runtime config.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// configToLayerMap drops zero values unless includeZero is set so that
// sparse runtime configs only shadow what they actually set.
func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	delivery := map[string]any{}
	if includeZero || cfg.Delivery.Retries != 0 {
		delivery["retries"] = cfg.Delivery.Retries
	}
	if includeZero || cfg.Delivery.RetryDelayMS != 0 {
		delivery["retry_delay_ms"] = cfg.Delivery.RetryDelayMS
	}
	if includeZero || cfg.Delivery.TimeoutMS != 0 {
		delivery["timeout_ms"] = cfg.Delivery.TimeoutMS
	}
	if len(delivery) > 0 {
		layer["delivery"] = delivery
	}

	calendar := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Calendar.DefaultCategory) != "" {
		calendar["default_category"] = cfg.Calendar.DefaultCategory
	}
	if includeZero || cfg.Calendar.PollIntervalMS != 0 {
		calendar["poll_interval_ms"] = cfg.Calendar.PollIntervalMS
	}
	if includeZero || cfg.Calendar.ReadTimeoutMS != 0 {
		calendar["read_timeout_ms"] = cfg.Calendar.ReadTimeoutMS
	}
	if includeZero || cfg.Calendar.UTCOffsetMinutes != 0 {
		calendar["utc_offset_minutes"] = cfg.Calendar.UTCOffsetMinutes
	}
	if len(calendar) > 0 {
		layer["calendar"] = calendar
	}

	if includeZero || len(cfg.Endpoints) > 0 {
		endpoints := make(map[string]any, len(cfg.Endpoints))
		for key, value := range cfg.Endpoints {
			endpoints[key] = value
		}
		layer["endpoints"] = endpoints
	}
	return layer
}
