package gojob

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-backoffice/core"
	"github.com/goliatone/go-backoffice/webhooks"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
)

const (
	JobIDWebhookDeliver = "backoffice.webhook.deliver"

	paramOperation = "operation"
	paramPayload   = "payload"
)

// Deliverer posts a prepared integration payload. *integrations.Client
// implements it.
type Deliverer interface {
	Deliver(ctx context.Context, key core.OperationKey, payload any) (webhooks.Report, error)
}

// NewDeliveryMessage wraps an integration call as an execution message. The
// payload is encoded up front so the queue only ever carries JSON text.
func NewDeliveryMessage(key core.OperationKey, payload any) (*core.JobExecutionMessage, error) {
	if !core.KnownKey(key) {
		return nil, fmt.Errorf("gojob: unknown operation %q", key)
	}
	params := map[string]any{paramOperation: string(key)}
	if payload != nil {
		var raw []byte
		switch value := payload.(type) {
		case json.RawMessage:
			raw = value
		case []byte:
			raw = value
		default:
			encoded, err := json.Marshal(payload)
			if err != nil {
				return nil, fmt.Errorf("gojob: encode payload: %w", err)
			}
			raw = encoded
		}
		if !json.Valid(raw) {
			return nil, fmt.Errorf("gojob: payload must be valid json")
		}
		params[paramPayload] = string(raw)
	}
	return &core.JobExecutionMessage{
		JobID:          JobIDWebhookDeliver,
		ScriptPath:     JobIDWebhookDeliver,
		Parameters:     params,
		IdempotencyKey: uuid.NewString(),
	}, nil
}

// DecodeDeliveryMessage is the inverse of NewDeliveryMessage.
func DecodeDeliveryMessage(msg *core.JobExecutionMessage) (core.OperationKey, json.RawMessage, error) {
	if msg == nil {
		return "", nil, fmt.Errorf("gojob: execution message is required")
	}
	if msg.JobID != JobIDWebhookDeliver {
		return "", nil, fmt.Errorf("gojob: unexpected job %q", msg.JobID)
	}
	operation, _ := msg.Parameters[paramOperation].(string)
	key := core.OperationKey(strings.TrimSpace(operation))
	if !core.KnownKey(key) {
		return "", nil, fmt.Errorf("gojob: unknown operation %q", operation)
	}
	var payload json.RawMessage
	switch value := msg.Parameters[paramPayload].(type) {
	case nil:
	case string:
		payload = json.RawMessage(value)
	case []byte:
		payload = json.RawMessage(value)
	default:
		return "", nil, fmt.Errorf("gojob: payload must be json text, got %T", value)
	}
	if len(payload) > 0 && !json.Valid(payload) {
		return "", nil, fmt.Errorf("gojob: payload must be valid json")
	}
	return key, payload, nil
}

type WorkerOption func(*DeliveryWorker)

func WithWorkerLogger(logger core.Logger) WorkerOption {
	return func(w *DeliveryWorker) {
		w.logger = glog.Ensure(logger)
	}
}

func WithWorkerHook(hook core.JobWorkerHook) WorkerOption {
	return func(w *DeliveryWorker) {
		w.hook = hook
	}
}

func WithRetryPolicy(policy RetryPolicy) WorkerOption {
	return func(w *DeliveryWorker) {
		w.policy = policy
	}
}

func WithIdleWait(wait time.Duration) WorkerOption {
	return func(w *DeliveryWorker) {
		if wait > 0 {
			w.idleWait = wait
		}
	}
}

func WithWorkerClock(now func() time.Time) WorkerOption {
	return func(w *DeliveryWorker) {
		if now != nil {
			w.now = now
		}
	}
}

// DeliveryWorker drains queued integration deliveries. A delivery that the
// dispatcher reports as failed is nacked until the retry policy gives up.
type DeliveryWorker struct {
	dequeuer  core.JobDequeuer
	deliverer Deliverer
	logger    core.Logger
	hook      core.JobWorkerHook
	policy    RetryPolicy
	idleWait  time.Duration
	now       func() time.Time
	attempts  map[string]int
}

func NewDeliveryWorker(dequeuer core.JobDequeuer, deliverer Deliverer, opts ...WorkerOption) *DeliveryWorker {
	w := &DeliveryWorker{
		dequeuer:  dequeuer,
		deliverer: deliverer,
		logger:    glog.Nop(),
		policy:    DefaultRetryPolicy(),
		idleWait:  time.Second,
		now:       time.Now,
		attempts:  map[string]int{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// Run processes deliveries until ctx is done.
func (w *DeliveryWorker) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := w.ProcessNext(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Debug("webhook worker idle", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.idleWait):
			}
		}
	}
}

// ProcessNext handles one delivery. It returns an error only when nothing
// could be dequeued or the queue refused the ack/nack.
func (w *DeliveryWorker) ProcessNext(ctx context.Context) error {
	if w == nil || w.dequeuer == nil || w.deliverer == nil {
		return fmt.Errorf("gojob: delivery worker is not configured")
	}
	delivery, err := w.dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	if delivery == nil {
		return fmt.Errorf("gojob: empty delivery")
	}

	msg := delivery.Message()
	key, payload, err := DecodeDeliveryMessage(msg)
	if err != nil {
		w.logger.Warn("webhook job rejected", "error", err)
		return delivery.Nack(ctx, core.JobNackOptions{DeadLetter: true, Reason: err.Error()})
	}

	id := msg.IdempotencyKey
	w.attempts[id]++
	attempt := w.attempts[id]
	started := w.now()
	event := core.JobWorkerEvent{Message: msg, Attempt: attempt, StartedAt: started}
	w.onStart(ctx, event)

	var body any
	if len(payload) > 0 {
		body = payload
	}
	report, err := w.deliverer.Deliver(ctx, key, body)
	event.Duration = w.now().Sub(started)
	if err == nil {
		delete(w.attempts, id)
		w.onSuccess(ctx, event)
		return delivery.Ack(ctx)
	}

	event.Err = err
	opts := w.policy.After(attempt, err.Error())
	if opts.Requeue {
		event.Delay = opts.Delay
		w.onRetry(ctx, event)
	} else {
		delete(w.attempts, id)
		w.onFailure(ctx, event)
	}
	w.logger.Warn("webhook job failed",
		"operation", string(key),
		"attempt", attempt,
		"requeue", opts.Requeue,
		"status_code", report.StatusCode,
		"error", err,
	)
	return delivery.Nack(ctx, opts)
}

func (w *DeliveryWorker) onStart(ctx context.Context, event core.JobWorkerEvent) {
	if w.hook != nil {
		w.hook.OnStart(ctx, event)
	}
}

func (w *DeliveryWorker) onSuccess(ctx context.Context, event core.JobWorkerEvent) {
	if w.hook != nil {
		w.hook.OnSuccess(ctx, event)
	}
}

func (w *DeliveryWorker) onFailure(ctx context.Context, event core.JobWorkerEvent) {
	if w.hook != nil {
		w.hook.OnFailure(ctx, event)
	}
}

func (w *DeliveryWorker) onRetry(ctx context.Context, event core.JobWorkerEvent) {
	if w.hook != nil {
		w.hook.OnRetry(ctx, event)
	}
}
