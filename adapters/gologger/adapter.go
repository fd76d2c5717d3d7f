// Package gologger bridges backoffice loggers into go-job.
package gologger

import (
	"context"

	"github.com/goliatone/go-backoffice/core"
	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

// JobLoggers resolves name against provider and logger, provider first, and
// bridges the result into go-job's logger contracts. The returned glog logger
// is never nil.
func JobLoggers(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.Logger, job.LoggerProvider, job.Logger) {
	resolvedProvider, resolved := glog.Resolve(name, provider, logger)
	resolved = glog.Ensure(resolved)

	var jobProvider job.LoggerProvider
	if resolvedProvider != nil {
		jobProvider = job.GoLoggerProvider(resolvedProvider)
	}
	return resolved, jobProvider, job.GoLogger(resolved)
}

// JobLogHook writes one line per webhook job lifecycle event.
type JobLogHook struct {
	logger glog.Logger
}

func NewJobLogHook(logger glog.Logger) *JobLogHook {
	return &JobLogHook{logger: glog.Ensure(logger)}
}

func (h *JobLogHook) OnStart(ctx context.Context, event core.JobWorkerEvent) {
	h.log(ctx, event).Debug("webhook job started", jobArgs(event)...)
}

func (h *JobLogHook) OnSuccess(ctx context.Context, event core.JobWorkerEvent) {
	h.log(ctx, event).Info("webhook job delivered", jobArgs(event)...)
}

func (h *JobLogHook) OnFailure(ctx context.Context, event core.JobWorkerEvent) {
	h.log(ctx, event).Error("webhook job dead lettered", jobArgs(event)...)
}

func (h *JobLogHook) OnRetry(ctx context.Context, event core.JobWorkerEvent) {
	h.log(ctx, event).Warn("webhook job requeued", jobArgs(event)...)
}

func (h *JobLogHook) log(ctx context.Context, _ core.JobWorkerEvent) glog.Logger {
	if h == nil || h.logger == nil {
		return glog.Nop()
	}
	return h.logger.WithContext(ctx)
}

func jobArgs(event core.JobWorkerEvent) []any {
	args := []any{"attempt", event.Attempt, "duration_ms", event.Duration.Milliseconds()}
	if event.Message != nil {
		args = append(args, "job_id", event.Message.JobID, "idempotency_key", event.Message.IdempotencyKey)
		if operation, ok := event.Message.Parameters["operation"]; ok {
			args = append(args, "operation", operation)
		}
	}
	if event.Delay > 0 {
		args = append(args, "delay_ms", event.Delay.Milliseconds())
	}
	if event.Err != nil {
		args = append(args, "error", event.Err.Error())
	}
	return args
}

var _ core.JobWorkerHook = (*JobLogHook)(nil)
