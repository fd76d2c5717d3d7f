package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-backoffice/webhooks"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DeliveryLogEntry is one persisted webhook outcome. Payloads are stored with
// personal data redacted.
type DeliveryLogEntry struct {
	ID         string    `json:"id"`
	Operation  string    `json:"operation"`
	URL        string    `json:"url"`
	Success    bool      `json:"success"`
	StatusCode int       `json:"status_code"`
	Attempts   int       `json:"attempts"`
	Payload    string    `json:"data"`
	LastError  string    `json:"last_error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type DeliveryLogStore struct {
	db   *bun.DB
	repo repository.Repository[*deliveryLogRecord]
}

func NewDeliveryLogStore(db *bun.DB) (*DeliveryLogStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*deliveryLogRecord](db, deliveryLogHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid delivery log repository wiring: %w", err)
		}
	}
	return &DeliveryLogStore{db: db, repo: repo}, nil
}

func (s *DeliveryLogStore) RecordDelivery(ctx context.Context, report webhooks.Report) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: delivery log store is not configured")
	}
	createdAt := report.Timestamp.UTC()
	if report.Timestamp.IsZero() {
		createdAt = time.Now().UTC()
	}
	record := &deliveryLogRecord{
		ID:         uuid.NewString(),
		Operation:  string(report.Operation),
		URL:        report.URL,
		Success:    report.Success,
		StatusCode: report.StatusCode,
		Attempts:   len(report.Attempts),
		Payload:    redactPayload(report.Payload),
		CreatedAt:  createdAt,
	}
	if report.LastError != nil {
		record.LastError = report.LastError.Error()
	}
	_, err := s.repo.Create(ctx, record)
	return err
}

// Recent lists the newest entries, optionally for one operation.
func (s *DeliveryLogStore) Recent(ctx context.Context, operation string, limit int) ([]DeliveryLogEntry, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: delivery log store is not configured")
	}
	if limit <= 0 {
		limit = 50
	}
	selectors := []repository.SelectCriteria{
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(limit, 0),
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		selectors = append(selectors, repository.SelectBy("operation", "=", operation))
	}
	records, _, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return nil, err
	}
	out := make([]DeliveryLogEntry, 0, len(records))
	for _, record := range records {
		out = append(out, DeliveryLogEntry{
			ID:         record.ID,
			Operation:  record.Operation,
			URL:        record.URL,
			Success:    record.Success,
			StatusCode: record.StatusCode,
			Attempts:   record.Attempts,
			Payload:    record.Payload,
			LastError:  record.LastError,
			CreatedAt:  record.CreatedAt,
		})
	}
	return out, nil
}

// Prune drops entries older than ttl and returns how many were removed.
func (s *DeliveryLogStore) Prune(ctx context.Context, ttl time.Duration) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: delivery log store is not configured")
	}
	if ttl <= 0 {
		return 0, nil
	}
	res, err := s.db.NewDelete().
		Model((*deliveryLogRecord)(nil)).
		Where("created_at < ?", time.Now().UTC().Add(-ttl)).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}

func redactPayload(payload string) string {
	if strings.TrimSpace(payload) == "" {
		return "{}"
	}
	var decoded any
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		return payload
	}
	encoded, err := json.Marshal(redact(decoded))
	if err != nil {
		return payload
	}
	return string(encoded)
}
