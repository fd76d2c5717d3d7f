package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestObserver_RecordsSuccessMetricsAndLog(t *testing.T) {
	logger := newCaptureLogger()
	metrics := &captureMetricsRecorder{}
	observer := NewObserver(logger, metrics, "webhooks")

	observer.Observe(context.Background(), time.Now().Add(-5*time.Millisecond), "Deliver", nil, map[string]any{
		"endpoint": "https://x/hook",
		"category": "venda-ci",
	})

	if len(metrics.counters) != 1 || metrics.counters[0].name != "webhooks.deliver.total" {
		t.Fatalf("unexpected counters %#v", metrics.counters)
	}
	tags := metrics.counters[0].tags
	if tags["status"] != "success" || tags["endpoint"] != "https://x/hook" || tags["category"] != "venda-ci" {
		t.Fatalf("unexpected tags %#v", tags)
	}
	if len(metrics.histograms) != 1 || metrics.histograms[0].name != "webhooks.deliver.duration_ms" {
		t.Fatalf("unexpected histograms %#v", metrics.histograms)
	}

	records := logger.snapshot()
	if len(records) != 1 || records[0].level != "info" || records[0].msg != "deliver succeeded" {
		t.Fatalf("unexpected log records %#v", records)
	}
	if records[0].fields["event_type"] != "deliver" {
		t.Fatalf("expected event_type field, got %#v", records[0].fields)
	}
}

func TestObserver_RecordsFailure(t *testing.T) {
	logger := newCaptureLogger()
	metrics := &captureMetricsRecorder{}
	observer := NewObserver(logger, metrics, "")

	observer.Observe(context.Background(), time.Now(), "calendar-read", errors.New("timeout"), nil)

	if metrics.counters[0].name != "backoffice.calendar_read.total" || metrics.counters[0].tags["status"] != "failure" {
		t.Fatalf("unexpected failure counter %#v", metrics.counters[0])
	}
	records := logger.snapshot()
	if len(records) != 1 || records[0].level != "error" {
		t.Fatalf("expected one error record, got %#v", records)
	}
	if records[0].fields["error"] != "timeout" {
		t.Fatalf("expected error field, got %#v", records[0].fields)
	}
}

func TestObserver_NilIsSafe(t *testing.T) {
	var observer *Observer
	observer.Observe(context.Background(), time.Now(), "noop", nil, nil)
	observer.Count(context.Background(), "noop", 1, nil)
	if observer.Logger() == nil {
		t.Fatalf("expected nop logger from nil observer")
	}
}
