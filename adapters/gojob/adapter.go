package gojob

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/goliatone/go-backoffice/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
)

// RetryPolicy decides the fate of a delivery job after a failed attempt.
// The dispatcher already retried inline, so redeliveries back off harder.
type RetryPolicy struct {
	MaxAttempts     int
	Backoff         core.BackoffScheduler
	DeadLetterOnMax bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     5,
		Backoff:         core.ExponentialBackoffScheduler{Initial: 5 * time.Second, Max: time.Minute},
		DeadLetterOnMax: true,
	}
}

// After returns the nack for the given failed attempt, counting from 1.
// Exhausted jobs are dead lettered or dropped depending on DeadLetterOnMax.
func (p RetryPolicy) After(attempt int, reason string) core.JobNackOptions {
	opts := core.JobNackOptions{Reason: strings.TrimSpace(reason)}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		opts.DeadLetter = p.DeadLetterOnMax
		return opts
	}
	opts.Requeue = true
	if p.Backoff != nil {
		opts.Delay = max(p.Backoff.NextDelay(attempt), 0)
	}
	return opts
}

func toQueueMessage(msg *core.JobExecutionMessage) *job.ExecutionMessage {
	if msg == nil {
		return nil
	}
	return &job.ExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		ScriptPath:     strings.TrimSpace(msg.ScriptPath),
		Parameters:     cloneParams(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    job.DeduplicationPolicy(strings.TrimSpace(msg.DedupPolicy)),
	}
}

func fromQueueMessage(msg *job.ExecutionMessage) *core.JobExecutionMessage {
	if msg == nil {
		return nil
	}
	return &core.JobExecutionMessage{
		JobID:          msg.JobID,
		ScriptPath:     msg.ScriptPath,
		Parameters:     cloneParams(msg.Parameters),
		IdempotencyKey: msg.IdempotencyKey,
		DedupPolicy:    string(msg.DedupPolicy),
	}
}

func cloneParams(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	maps.Copy(out, in)
	return out
}

// EnqueuerAdapter puts core execution messages on a go-job queue.
type EnqueuerAdapter struct {
	enqueuer queue.Enqueuer
}

func NewEnqueuerAdapter(enqueuer queue.Enqueuer) *EnqueuerAdapter {
	return &EnqueuerAdapter{enqueuer: enqueuer}
}

func (a *EnqueuerAdapter) Enqueue(ctx context.Context, msg *core.JobExecutionMessage) error {
	switch {
	case a == nil || a.enqueuer == nil:
		return fmt.Errorf("gojob: enqueuer is not configured")
	case msg == nil:
		return fmt.Errorf("gojob: execution message is required")
	}
	return a.enqueuer.Enqueue(ctx, toQueueMessage(msg))
}

// DequeuerAdapter hands go-job deliveries to the delivery worker.
type DequeuerAdapter struct {
	dequeuer queue.Dequeuer
}

func NewDequeuerAdapter(dequeuer queue.Dequeuer) *DequeuerAdapter {
	return &DequeuerAdapter{dequeuer: dequeuer}
}

func (a *DequeuerAdapter) Dequeue(ctx context.Context) (core.JobDelivery, error) {
	if a == nil || a.dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is not configured")
	}
	delivery, err := a.dequeuer.Dequeue(ctx)
	if err != nil {
		return nil, err
	}
	if delivery == nil {
		return nil, fmt.Errorf("gojob: queue returned no delivery")
	}
	return queueDelivery{delivery: delivery}, nil
}

type queueDelivery struct {
	delivery queue.Delivery
}

func (d queueDelivery) Message() *core.JobExecutionMessage {
	return fromQueueMessage(d.delivery.Message())
}

func (d queueDelivery) Ack(ctx context.Context) error {
	return d.delivery.Ack(ctx)
}

func (d queueDelivery) Nack(ctx context.Context, opts core.JobNackOptions) error {
	return d.delivery.Nack(ctx, queue.NackOptions{
		Delay:      opts.Delay,
		Requeue:    opts.Requeue,
		DeadLetter: opts.DeadLetter,
		Reason:     opts.Reason,
	})
}

var (
	_ core.JobEnqueuer = (*EnqueuerAdapter)(nil)
	_ core.JobDequeuer = (*DequeuerAdapter)(nil)
	_ core.JobDelivery = queueDelivery{}
)
