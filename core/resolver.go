package core

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// EndpointConfig is an immutable view of defaults shadowed by non-empty
// overrides.
type EndpointConfig struct {
	effective map[OperationKey]string
	overrides map[OperationKey]string
}

func newEndpointConfig(layers ...map[OperationKey]string) *EndpointConfig {
	cfg := &EndpointConfig{
		effective: DefaultEndpoints(),
		overrides: map[OperationKey]string{},
	}
	for _, layer := range layers {
		for key, value := range layer {
			value = strings.TrimSpace(value)
			if value == "" || !KnownKey(key) {
				continue
			}
			cfg.effective[key] = value
			cfg.overrides[key] = value
		}
	}
	return cfg
}

func (c *EndpointConfig) Get(key OperationKey) string {
	if c == nil {
		return defaultEndpoints[key]
	}
	return c.effective[key]
}

func (c *EndpointConfig) Overridden(key OperationKey) bool {
	if c == nil {
		return false
	}
	_, ok := c.overrides[key]
	return ok
}

func (c *EndpointConfig) Effective() map[OperationKey]string {
	out := make(map[OperationKey]string, len(defaultEndpoints))
	if c == nil {
		return DefaultEndpoints()
	}
	for key, value := range c.effective {
		out[key] = value
	}
	return out
}

func (c *EndpointConfig) Overrides() map[OperationKey]string {
	out := map[OperationKey]string{}
	if c == nil {
		return out
	}
	for key, value := range c.overrides {
		out[key] = value
	}
	return out
}

type EndpointView struct {
	Key        OperationKey `json:"key"`
	Label      string       `json:"label"`
	Default    string       `json:"default"`
	Effective  string       `json:"effective"`
	Overridden bool         `json:"overridden"`
}

type EndpointGroupView struct {
	Name   string         `json:"name"`
	Fields []EndpointView `json:"fields"`
}

type ResolverOption func(*Resolver)

func WithResolverLogger(logger Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithSeedOverrides installs configuration supplied overrides beneath the
// persisted ones.
func WithSeedOverrides(seed map[string]string) ResolverOption {
	return func(r *Resolver) {
		for key, value := range seed {
			r.seed[OperationKey(strings.TrimSpace(key))] = strings.TrimSpace(value)
		}
	}
}

// Resolver maps operation keys to URLs. Reads are lock free against an
// atomically swapped snapshot; Reload and Save are serialized.
type Resolver struct {
	store    OverrideStore
	seed     map[OperationKey]string
	logger   Logger
	mu       sync.Mutex
	snapshot atomic.Pointer[EndpointConfig]
}

func NewResolver(store OverrideStore, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		store:  store,
		seed:   map[OperationKey]string{},
		logger: glog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	r.snapshot.Store(newEndpointConfig(r.seed))
	return r
}

// Resolve returns the effective URL for key, qualified by category when the
// operation is category sensitive. Unknown keys resolve to "".
func (r *Resolver) Resolve(key OperationKey, category Category) string {
	qualified := qualify(key, category)
	snapshot := r.current()
	if value := snapshot.Get(qualified); value != "" {
		return value
	}
	return snapshot.Get(key)
}

// Lookup is Resolve with an error for keys outside the endpoint table.
func (r *Resolver) Lookup(key OperationKey, category Category) (string, error) {
	qualified := qualify(key, category)
	if !KnownKey(qualified) && !KnownKey(key) {
		return "", NewError(
			fmt.Sprintf("core: unknown endpoint key %q", qualified),
			goerrors.CategoryValidation,
			ErrorEndpointUnknown,
			map[string]any{"operation": string(key), "category": string(category)},
		)
	}
	value := r.Resolve(key, category)
	if value == "" {
		return "", NewError(
			fmt.Sprintf("core: endpoint %q resolved to an empty url", qualified),
			goerrors.CategoryValidation,
			ErrorConfigurationInvalid,
			map[string]any{"operation": string(qualified)},
		)
	}
	return value, nil
}

// Validate checks that every given key, or the whole table when none are
// given, resolves to a usable URL.
func (r *Resolver) Validate(keys ...OperationKey) error {
	if len(keys) == 0 {
		keys = KnownKeys()
	}
	for _, key := range keys {
		if !KnownKey(key) {
			return NewError(
				fmt.Sprintf("core: unknown endpoint key %q", key),
				goerrors.CategoryValidation,
				ErrorConfigurationInvalid,
				map[string]any{"operation": string(key)},
			)
		}
		value := r.current().Get(key)
		if err := ValidateEndpointURL(value); err != nil {
			return WrapError(err, goerrors.CategoryValidation,
				fmt.Sprintf("core: endpoint %q is invalid", key),
				ErrorConfigurationInvalid,
				map[string]any{"operation": string(key), "url": value},
			)
		}
	}
	return nil
}

// Reload rebuilds the snapshot from the override store. A failing or
// malformed store leaves the resolver on defaults plus seed overrides and the
// load error is returned for the caller to log.
func (r *Resolver) Reload(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reloadLocked(ctx)
}

func (r *Resolver) reloadLocked(ctx context.Context) error {
	if r.store == nil {
		r.snapshot.Store(newEndpointConfig(r.seed))
		return nil
	}
	persisted, err := r.store.Load(ctx)
	if err != nil {
		r.logger.Warn("endpoint overrides unavailable, using defaults", "error", err)
		r.snapshot.Store(newEndpointConfig(r.seed))
		return WrapError(err, goerrors.CategoryOperation, "core: load endpoint overrides", ErrorOverrideStoreFailed, nil)
	}
	accepted := make(map[OperationKey]string, len(persisted))
	for key, value := range persisted {
		if !KnownKey(key) {
			r.logger.Warn("ignoring override for unknown endpoint", "operation", string(key))
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if urlErr := ValidateEndpointURL(value); urlErr != nil {
			r.logger.Warn("ignoring invalid endpoint override", "operation", string(key), "error", urlErr)
			continue
		}
		accepted[key] = value
	}
	r.snapshot.Store(newEndpointConfig(r.seed, accepted))
	return nil
}

// Save persists overrides then reloads so the new values are visible to the
// next resolution. Empty values clear an override.
func (r *Resolver) Save(ctx context.Context, overrides map[OperationKey]string) error {
	normalized := make(map[OperationKey]string, len(overrides))
	for key, value := range overrides {
		if !KnownKey(key) {
			return NewError(
				fmt.Sprintf("core: unknown endpoint key %q", key),
				goerrors.CategoryValidation,
				ErrorEndpointUnknown,
				map[string]any{"operation": string(key)},
			)
		}
		value = strings.TrimSpace(value)
		if value != "" {
			if err := ValidateEndpointURL(value); err != nil {
				return WrapError(err, goerrors.CategoryValidation,
					fmt.Sprintf("core: endpoint %q is invalid", key),
					ErrorBadInput,
					map[string]any{"operation": string(key), "url": value},
				)
			}
		}
		normalized[key] = value
	}
	if r.store == nil {
		return NewError("core: override store is not configured", goerrors.CategoryInternal, ErrorOverrideStoreFailed, nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.store.Save(ctx, normalized); err != nil {
		return WrapError(err, goerrors.CategoryOperation, "core: save endpoint overrides", ErrorOverrideStoreFailed, nil)
	}
	return r.reloadLocked(ctx)
}

func (r *Resolver) Snapshot() *EndpointConfig {
	return r.current()
}

// Groups renders the configuration screen with defaults and effective values.
func (r *Resolver) Groups() []EndpointGroupView {
	snapshot := r.current()
	groups := EndpointGroups()
	out := make([]EndpointGroupView, 0, len(groups))
	for _, group := range groups {
		view := EndpointGroupView{Name: group.Name, Fields: make([]EndpointView, 0, len(group.Fields))}
		for _, field := range group.Fields {
			view.Fields = append(view.Fields, EndpointView{
				Key:        field.Key,
				Label:      field.Label,
				Default:    defaultEndpoints[field.Key],
				Effective:  snapshot.Get(field.Key),
				Overridden: snapshot.Overridden(field.Key),
			})
		}
		out = append(out, view)
	}
	return out
}

func (r *Resolver) current() *EndpointConfig {
	if r == nil {
		return nil
	}
	return r.snapshot.Load()
}

func qualify(key OperationKey, category Category) OperationKey {
	if !CategorySensitive(key) {
		return key
	}
	if !category.Valid() {
		category = DefaultCategory
	}
	return QualifiedKey(key, category)
}

func ValidateEndpointURL(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("url is required")
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid url scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("invalid url: host is required")
	}
	return nil
}
