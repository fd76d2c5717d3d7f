package core

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Observer emits the structured log line and metrics pair every component
// records per operation.
type Observer struct {
	logger  Logger
	metrics MetricsRecorder
	prefix  string
}

func NewObserver(logger Logger, metrics MetricsRecorder, prefix string) *Observer {
	if metrics == nil {
		metrics = NopMetricsRecorder{}
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = "backoffice"
	}
	return &Observer{
		logger:  glog.Ensure(logger),
		metrics: metrics,
		prefix:  prefix,
	}
}

func (o *Observer) Logger() Logger {
	if o == nil {
		return glog.Nop()
	}
	return o.logger
}

// Observe records <prefix>.<operation>.total and .duration_ms and logs the
// outcome with the given fields.
func (o *Observer) Observe(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	err error,
	fields map[string]any,
) {
	if o == nil {
		return
	}
	operation = normalizeOperation(operation)
	if operation == "" {
		operation = "unknown"
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	elapsed := time.Since(startedAt).Milliseconds()

	contextFields := cloneFields(fields)
	contextFields["event_type"] = operation
	contextFields["status"] = status
	contextFields["duration_ms"] = elapsed
	if err != nil {
		contextFields["error"] = err.Error()
	}

	tags := map[string]string{
		"operation": operation,
		"status":    status,
	}
	for _, key := range []string{"category", "endpoint"} {
		if value := strings.TrimSpace(fmt.Sprint(contextFields[key])); value != "" && value != "<nil>" {
			tags[key] = value
		}
	}

	o.Count(ctx, operation+".total", 1, tags)
	o.metrics.ObserveHistogram(ctx, o.prefix+"."+operation+".duration_ms", float64(elapsed), cloneTags(tags))

	if err != nil {
		o.Log(ctx, "error", operation+" failed", contextFields)
		return
	}
	o.Log(ctx, "info", operation+" succeeded", contextFields)
}

func (o *Observer) Count(ctx context.Context, name string, value int64, tags map[string]string) {
	if o == nil || o.metrics == nil {
		return
	}
	o.metrics.IncCounter(ctx, o.prefix+"."+strings.TrimSpace(name), value, cloneTags(tags))
}

func (o *Observer) Log(ctx context.Context, level string, message string, fields map[string]any) {
	if o == nil || o.logger == nil {
		return
	}
	logger := o.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	var args []any
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	} else {
		args = flattenFields(fields)
	}
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		logger.Error(message, args...)
	case "warn":
		logger.Warn(message, args...)
	case "debug":
		logger.Debug(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func cloneFields(fields map[string]any) map[string]any {
	if fields == nil {
		return map[string]any{}
	}
	return maps.Clone(fields)
}

// flattenFields turns fields into sorted key/value args for loggers that
// cannot take a field map.
func flattenFields(fields map[string]any) []any {
	var args []any
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		args = append(args, key, fields[key])
	}
	return args
}

var operationReplacer = strings.NewReplacer(" ", "_", "-", "_")

func normalizeOperation(operation string) string {
	return operationReplacer.Replace(strings.ToLower(strings.TrimSpace(operation)))
}
