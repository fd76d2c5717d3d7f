package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-backoffice/core"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	DefaultRetries    = 3
	DefaultRetryDelay = time.Second
	DefaultTimeout    = 10 * time.Second
)

// Options bound a single delivery.
type Options struct {
	Retries    int
	RetryDelay time.Duration
	Timeout    time.Duration
}

func DefaultOptions() Options {
	return Options{
		Retries:    DefaultRetries,
		RetryDelay: DefaultRetryDelay,
		Timeout:    DefaultTimeout,
	}
}

// OptionsFromConfig converts the delivery section of the service config.
func OptionsFromConfig(cfg core.DeliveryConfig) Options {
	return Options{
		Retries:    cfg.Retries,
		RetryDelay: cfg.RetryDelay(),
		Timeout:    cfg.Timeout(),
	}.normalized(DefaultOptions())
}

// normalized replaces values outside their valid range with the fallback.
func (o Options) normalized(fallback Options) Options {
	if o.Retries < 1 {
		o.Retries = fallback.Retries
	}
	if o.Retries < 1 {
		o.Retries = DefaultRetries
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = fallback.RetryDelay
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = 0
	}
	if o.Timeout <= 0 {
		o.Timeout = fallback.Timeout
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

type DeliverOption func(*Options)

func WithRetries(retries int) DeliverOption {
	return func(o *Options) {
		o.Retries = retries
	}
}

func WithRetryDelay(delay time.Duration) DeliverOption {
	return func(o *Options) {
		o.RetryDelay = delay
	}
}

func WithTimeout(timeout time.Duration) DeliverOption {
	return func(o *Options) {
		o.Timeout = timeout
	}
}

// Delivery describes one payload bound for one URL. Operation and Category
// are informational and only used in logs and metrics.
type Delivery struct {
	URL       string
	Payload   any
	Operation core.OperationKey
	Category  core.Category
	Headers   map[string]string
	Options   Options
}

type Attempt struct {
	Number     int           `json:"number"`
	StatusCode int           `json:"status_code,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

func (a Attempt) Successful() bool {
	return a.Error == "" && a.StatusCode >= 200 && a.StatusCode < 300
}

// Report is the outcome of a delivery. LastError is nil on success.
type Report struct {
	URL        string            `json:"url"`
	Operation  core.OperationKey `json:"operation,omitempty"`
	Success    bool              `json:"success"`
	StatusCode int               `json:"status_code,omitempty"`
	Attempts   []Attempt         `json:"attempts"`
	Payload    string            `json:"data"`
	Timestamp  time.Time         `json:"timestamp"`
	LastError  error             `json:"-"`
}

type Dispatcher struct {
	transport core.TransportAdapter
	resolver  core.EndpointResolver
	defaults  Options
	logger    core.Logger
	metrics   core.MetricsRecorder
	observer  *core.Observer
	now       func() time.Time
	wait      func(ctx context.Context, delay time.Duration) error
	recorder  ReportRecorder
}

// ReportRecorder persists the outcome of every delivery.
type ReportRecorder interface {
	RecordDelivery(ctx context.Context, report Report) error
}

type DispatcherOption func(*Dispatcher)

func WithResolver(resolver core.EndpointResolver) DispatcherOption {
	return func(d *Dispatcher) {
		d.resolver = resolver
	}
}

func WithDefaults(opts Options) DispatcherOption {
	return func(d *Dispatcher) {
		d.defaults = opts.normalized(DefaultOptions())
	}
}

func WithLogger(logger core.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = recorder
	}
}

func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

func WithReportRecorder(recorder ReportRecorder) DispatcherOption {
	return func(d *Dispatcher) {
		d.recorder = recorder
	}
}

// WithWaiter replaces the inter-attempt sleep.
func WithWaiter(wait func(ctx context.Context, delay time.Duration) error) DispatcherOption {
	return func(d *Dispatcher) {
		if wait != nil {
			d.wait = wait
		}
	}
}

func NewDispatcher(transport core.TransportAdapter, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		transport: transport,
		defaults:  DefaultOptions(),
		logger:    glog.Nop(),
		now:       time.Now,
		wait:      core.WaitWithContext,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(d)
	}
	d.observer = core.NewObserver(d.logger, d.metrics, "webhooks")
	return d
}

// Deliver posts payload to url and reports whether any attempt got a 2xx.
func (d *Dispatcher) Deliver(ctx context.Context, url string, payload any, opts ...DeliverOption) bool {
	if d == nil {
		return false
	}
	options := d.defaults
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	return d.Send(ctx, Delivery{URL: url, Payload: payload, Options: options}).Success
}

// DeliverOperation resolves key for category and delivers payload there.
func (d *Dispatcher) DeliverOperation(
	ctx context.Context,
	key core.OperationKey,
	category core.Category,
	payload any,
	opts ...DeliverOption,
) Report {
	if d == nil {
		return Report{Operation: key, LastError: fmt.Errorf("webhooks: dispatcher is nil")}
	}
	options := d.defaults
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	delivery := Delivery{Payload: payload, Operation: key, Category: category, Options: options}
	if d.resolver != nil {
		delivery.URL = d.resolver.Resolve(key, category)
	}
	return d.Send(ctx, delivery)
}

// Send runs the retry loop for delivery. It never panics on transport errors
// and never returns an error; the Report carries the last failure.
func (d *Dispatcher) Send(ctx context.Context, delivery Delivery) Report {
	if ctx == nil {
		ctx = context.Background()
	}
	startedAt := time.Now()
	report := Report{
		URL:       strings.TrimSpace(delivery.URL),
		Operation: delivery.Operation,
		Attempts:  []Attempt{},
	}
	if d == nil {
		report.LastError = fmt.Errorf("webhooks: dispatcher is nil")
		return report
	}
	report.Timestamp = d.now().UTC()
	options := delivery.Options.normalized(d.defaults)

	body, err := encodePayload(delivery.Payload)
	if err != nil {
		report.LastError = core.WrapError(err, goerrors.CategoryBadInput, "webhooks: encode payload", core.ErrorBadInput, nil)
		d.finish(ctx, startedAt, delivery, &report)
		return report
	}
	report.Payload = string(body)

	if report.URL == "" {
		report.LastError = core.NewError("webhooks: delivery url is required", goerrors.CategoryBadInput, core.ErrorBadInput, map[string]any{
			"operation": string(delivery.Operation),
		})
		d.finish(ctx, startedAt, delivery, &report)
		return report
	}
	if d.transport == nil {
		report.LastError = core.NewError("webhooks: transport is not configured", goerrors.CategoryInternal, core.ErrorInternal, nil)
		d.finish(ctx, startedAt, delivery, &report)
		return report
	}

	scheduler := core.LinearBackoffScheduler{Delay: options.RetryDelay}
	for attempt := 1; attempt <= options.Retries; attempt++ {
		result, attemptErr := d.attempt(ctx, report.URL, body, delivery.Headers, options.Timeout, attempt)
		report.Attempts = append(report.Attempts, result)
		// A transport error carries no status; keep the last one seen.
		if result.StatusCode != 0 {
			report.StatusCode = result.StatusCode
		}
		if attemptErr == nil {
			report.Success = true
			report.LastError = nil
			break
		}
		report.LastError = attemptErr
		if attempt == options.Retries {
			break
		}
		if waitErr := d.wait(ctx, scheduler.NextDelay(attempt)); waitErr != nil {
			report.LastError = waitErr
			break
		}
	}

	d.finish(ctx, startedAt, delivery, &report)
	return report
}

func (d *Dispatcher) attempt(
	ctx context.Context,
	url string,
	body []byte,
	headers map[string]string,
	timeout time.Duration,
	number int,
) (Attempt, error) {
	startedAt := time.Now()
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := d.transport.Do(attemptCtx, core.TransportRequest{
		Method:  http.MethodPost,
		URL:     url,
		Headers: headers,
		Body:    body,
		Timeout: timeout,
	})
	result := Attempt{Number: number, StatusCode: res.StatusCode, Duration: time.Since(startedAt)}
	switch {
	case err != nil:
		result.Error = err.Error()
	case !res.Successful():
		err = core.NewError(
			fmt.Sprintf("webhooks: endpoint responded with status %d", res.StatusCode),
			goerrors.CategoryExternal,
			core.ErrorDeliveryFailed,
			map[string]any{"status_code": res.StatusCode, "url": url},
		)
		result.Error = err.Error()
	}

	if err != nil {
		d.logger.Warn("webhook attempt failed",
			"url", url,
			"attempt", number,
			"status_code", res.StatusCode,
			"error", result.Error,
		)
		return result, err
	}
	d.logger.Debug("webhook attempt succeeded", "url", url, "attempt", number, "status_code", res.StatusCode)
	return result, nil
}

// finish emits the summary log line and metrics for a delivery.
func (d *Dispatcher) finish(ctx context.Context, startedAt time.Time, delivery Delivery, report *Report) {
	operation := string(delivery.Operation)
	if operation == "" {
		operation = report.URL
	}
	fields := map[string]any{
		"operation": operation,
		"success":   report.Success,
		"timestamp": report.Timestamp.Format(time.RFC3339Nano),
		"data":      report.Payload,
		"attempts":  len(report.Attempts),
		"endpoint":  report.URL,
	}
	if delivery.Category != "" {
		fields["category"] = string(delivery.Category)
	}
	var err error
	if !report.Success {
		err = report.LastError
		if err == nil {
			err = core.NewError("webhooks: delivery failed", goerrors.CategoryExternal, core.ErrorDeliveryFailed, nil)
		}
		err = core.WrapError(err, goerrors.CategoryExternal, "webhooks: delivery failed after retries", core.ErrorDeliveryFailed, map[string]any{
			"attempts": len(report.Attempts),
		})
		report.LastError = err
	}
	d.observer.Observe(ctx, startedAt, "deliver", err, fields)
	if d.recorder != nil {
		if recordErr := d.recorder.RecordDelivery(ctx, *report); recordErr != nil {
			d.logger.Warn("webhook delivery log write failed", "operation", operation, "error", recordErr)
		}
	}
}

func encodePayload(payload any) ([]byte, error) {
	switch typed := payload.(type) {
	case nil:
		return []byte("{}"), nil
	case json.RawMessage:
		if len(typed) == 0 {
			return []byte("{}"), nil
		}
		if !json.Valid(typed) {
			return nil, fmt.Errorf("webhooks: payload is not valid json")
		}
		return typed, nil
	case []byte:
		if len(typed) == 0 {
			return []byte("{}"), nil
		}
		if !json.Valid(typed) {
			return nil, fmt.Errorf("webhooks: payload is not valid json")
		}
		return typed, nil
	default:
		return json.Marshal(payload)
	}
}
