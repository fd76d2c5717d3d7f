package core

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Service owns the resolved configuration and the endpoint resolver, and
// hands the shared runtime dependencies to the delivery and agenda layers.
type Service struct {
	config   Config
	deps     ServiceDependencies
	resolver *Resolver
	observer *Observer
}

type ServiceDependencies struct {
	Logger          Logger
	LoggerProvider  LoggerProvider
	MetricsRecorder MetricsRecorder
	ErrorFactory    ErrorFactory
	ErrorMapper     ErrorMapper
	ConfigProvider  ConfigProvider
	OptionsResolver OptionsResolver
	OverrideStore   OverrideStore
	Transport       TransportAdapter
	Notifier        Notifier
	Now             func() time.Time
}

// NewService resolves configuration and validates the endpoint table. An
// unknown or empty endpoint is a configuration error and fails construction.
// An unreadable override store is logged and the defaults are used.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	setup := serviceSetup{runtime: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(&setup)
		}
	}
	deps := setup.deps.withDefaults()

	provider, logger := glog.Resolve("backoffice", deps.LoggerProvider, deps.Logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("backoffice"); named != nil {
			logger = glog.Ensure(named)
		}
	}
	deps.Logger, deps.LoggerProvider = logger, provider

	defaults := DefaultConfig()
	loaded, err := deps.ConfigProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, configurationError(deps.ErrorMapper, err)
	}
	resolved, err := deps.OptionsResolver.Resolve(defaults, loaded, setup.runtime)
	if err != nil {
		return nil, configurationError(deps.ErrorMapper, err)
	}

	svc := &Service{config: resolved, deps: deps}
	svc.observer = NewObserver(svc.NamedLogger("endpoints"), deps.MetricsRecorder, "backoffice")
	svc.resolver = NewResolver(
		deps.OverrideStore,
		WithResolverLogger(svc.NamedLogger("endpoints")),
		WithSeedOverrides(resolved.Endpoints),
	)
	if err := svc.resolver.Reload(context.Background()); err != nil {
		logger.Warn("starting with default endpoints", "error", err)
	}
	if err := svc.resolver.Validate(); err != nil {
		return nil, configurationError(deps.ErrorMapper, err)
	}
	return svc, nil
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return s.deps
}

func (s *Service) Resolver() *Resolver {
	if s == nil {
		return nil
	}
	return s.resolver
}

// NamedLogger returns the provider's logger for name, or the service logger.
func (s *Service) NamedLogger(name string) Logger {
	if s == nil {
		return glog.Nop()
	}
	if s.deps.LoggerProvider != nil {
		if named := s.deps.LoggerProvider.GetLogger("backoffice." + name); named != nil {
			return named
		}
	}
	return glog.Ensure(s.deps.Logger)
}

func (s *Service) Endpoints() map[OperationKey]string {
	return s.resolver.Snapshot().Effective()
}

func (s *Service) EndpointGroups() []EndpointGroupView {
	return s.resolver.Groups()
}

func (s *Service) ResolveEndpoint(key OperationKey, category Category) (string, error) {
	url, err := s.resolver.Lookup(key, category)
	if err != nil {
		return "", s.mapError(err)
	}
	return url, nil
}

// ReloadEndpoints re-reads the override store. It is the explicit reload that
// follows a configuration save made outside this process.
func (s *Service) ReloadEndpoints(ctx context.Context) error {
	startedAt := time.Now()
	err := s.resolver.Reload(ctx)
	s.observer.Observe(ctx, startedAt, "endpoints.reload", err, nil)
	return s.mapError(err)
}

// WatchEndpoints reloads the resolver whenever a watching override store
// reports a change. It blocks until ctx is done and returns nil right away
// when the store cannot watch.
func (s *Service) WatchEndpoints(ctx context.Context) error {
	watcher, ok := s.deps.OverrideStore.(OverrideWatcher)
	if !ok {
		return nil
	}
	return watcher.Watch(ctx, func() {
		if err := s.ReloadEndpoints(ctx); err != nil {
			s.deps.Logger.Warn("endpoint overrides reload failed", "error", err)
		}
	})
}

func (s *Service) SaveEndpoints(ctx context.Context, overrides map[OperationKey]string) error {
	startedAt := time.Now()
	err := s.resolver.Save(ctx, overrides)
	s.observer.Observe(ctx, startedAt, "endpoints.save", err, map[string]any{
		"keys": len(overrides),
	})
	return s.mapError(err)
}

func (s *Service) MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if s == nil || s.deps.ErrorMapper == nil {
		return defaultErrorMapper(err)
	}
	return s.deps.ErrorMapper(err)
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	return s.MapError(err)
}

func configurationError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if HasTextCode(err, ErrorConfigurationInvalid) {
		return err
	}
	wrapped := WrapError(err, goerrors.CategoryValidation, "core: invalid configuration", ErrorConfigurationInvalid, nil)
	if mapper == nil {
		return wrapped
	}
	if mapped := mapper(wrapped); mapped != nil {
		return mapped
	}
	return wrapped
}

// NopNotifier drops notifications.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Notification) {}
