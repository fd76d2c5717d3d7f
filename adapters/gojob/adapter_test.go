package gojob

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-backoffice/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
)

type stubQueueEnqueuer struct {
	last *job.ExecutionMessage
}

func (s *stubQueueEnqueuer) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	s.last = msg
	return nil
}

type stubQueueDequeuer struct {
	delivery queue.Delivery
}

func (s *stubQueueDequeuer) Dequeue(context.Context) (queue.Delivery, error) {
	return s.delivery, nil
}

type stubQueueDelivery struct {
	msg      *job.ExecutionMessage
	acked    bool
	nackOpts queue.NackOptions
}

func (s *stubQueueDelivery) Message() *job.ExecutionMessage { return s.msg }

func (s *stubQueueDelivery) Ack(context.Context) error {
	s.acked = true
	return nil
}

func (s *stubQueueDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	s.nackOpts = opts
	return nil
}

func TestEnqueuerAdapter_TrimsAndCopiesMessage(t *testing.T) {
	enqueuer := &stubQueueEnqueuer{}
	params := map[string]any{"operation": "pausaBot"}

	err := NewEnqueuerAdapter(enqueuer).Enqueue(context.Background(), &core.JobExecutionMessage{
		JobID:          " " + JobIDWebhookDeliver + " ",
		Parameters:     params,
		IdempotencyKey: "idem-1",
		DedupPolicy:    "drop",
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	got := enqueuer.last
	if got == nil || got.JobID != JobIDWebhookDeliver {
		t.Fatalf("expected trimmed job id, got %#v", got)
	}
	if got.DedupPolicy != job.DeduplicationPolicy("drop") || got.IdempotencyKey != "idem-1" {
		t.Fatalf("unexpected queue message %#v", got)
	}
	params["operation"] = "mutated"
	if got.Parameters["operation"] != "pausaBot" {
		t.Fatalf("expected parameters to be copied")
	}

	if err := NewEnqueuerAdapter(enqueuer).Enqueue(context.Background(), nil); err == nil {
		t.Fatalf("expected nil message to be rejected")
	}
	if err := NewEnqueuerAdapter(nil).Enqueue(context.Background(), &core.JobExecutionMessage{}); err == nil {
		t.Fatalf("expected missing queue to be rejected")
	}
}

func TestDequeuerAdapter_MapsDeliveryOutcomes(t *testing.T) {
	ctx := context.Background()
	raw := &stubQueueDelivery{msg: &job.ExecutionMessage{JobID: JobIDWebhookDeliver, IdempotencyKey: "idem-2"}}
	delivery, err := NewDequeuerAdapter(&stubQueueDequeuer{delivery: raw}).Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if msg := delivery.Message(); msg == nil || msg.IdempotencyKey != "idem-2" || msg.Parameters == nil {
		t.Fatalf("unexpected core message %#v", msg)
	}
	if err := delivery.Ack(ctx); err != nil || !raw.acked {
		t.Fatalf("expected ack to reach the queue, err=%v", err)
	}

	if err := delivery.Nack(ctx, core.JobNackOptions{Delay: time.Second, Requeue: true, Reason: "503"}); err != nil {
		t.Fatalf("nack: %v", err)
	}
	if raw.nackOpts.Delay != time.Second || !raw.nackOpts.Requeue || raw.nackOpts.Reason != "503" {
		t.Fatalf("unexpected nack options %#v", raw.nackOpts)
	}

	if _, err := NewDequeuerAdapter(&stubQueueDequeuer{}).Dequeue(ctx); err == nil {
		t.Fatalf("expected empty delivery to be an error")
	}
}

func TestRetryPolicy_After(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:     3,
		Backoff:         core.ExponentialBackoffScheduler{Initial: 2 * time.Second, Max: 5 * time.Second},
		DeadLetterOnMax: true,
	}

	first := policy.After(1, " transient ")
	if !first.Requeue || first.DeadLetter || first.Delay != 2*time.Second || first.Reason != "transient" {
		t.Fatalf("unexpected first nack %#v", first)
	}
	second := policy.After(2, "still failing")
	if !second.Requeue || second.Delay != 4*time.Second {
		t.Fatalf("unexpected second nack %#v", second)
	}
	last := policy.After(3, "gave up")
	if last.Requeue || !last.DeadLetter {
		t.Fatalf("expected dead letter on the last attempt, got %#v", last)
	}

	policy.DeadLetterOnMax = false
	if dropped := policy.After(3, "gave up"); dropped.Requeue || dropped.DeadLetter {
		t.Fatalf("expected exhausted job to be dropped, got %#v", dropped)
	}

	unbounded := RetryPolicy{}
	if opts := unbounded.After(50, "x"); !opts.Requeue || opts.Delay != 0 {
		t.Fatalf("expected unbounded policy to requeue immediately, got %#v", opts)
	}
}
