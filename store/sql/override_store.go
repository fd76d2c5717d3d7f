package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-backoffice/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// OverrideStore keeps one row per overridden endpoint key. Save replaces the
// whole set, matching the single document the configuration screen edits.
type OverrideStore struct {
	db   *bun.DB
	repo repository.Repository[*endpointOverrideRecord]
}

func NewOverrideStore(db *bun.DB) (*OverrideStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*endpointOverrideRecord](db, endpointOverrideHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid endpoint override repository wiring: %w", err)
		}
	}
	return &OverrideStore{db: db, repo: repo}, nil
}

func (s *OverrideStore) Load(ctx context.Context) (map[core.OperationKey]string, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: endpoint override store is not configured")
	}
	records, _, err := s.repo.List(ctx, repository.OrderBy("operation_key ASC"))
	if err != nil {
		return nil, err
	}
	out := make(map[core.OperationKey]string, len(records))
	for _, record := range records {
		key := strings.TrimSpace(record.OperationKey)
		if key == "" {
			continue
		}
		out[core.OperationKey(key)] = record.URL
	}
	return out, nil
}

func (s *OverrideStore) Save(ctx context.Context, overrides map[core.OperationKey]string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: endpoint override store is not configured")
	}
	now := time.Now().UTC()
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*endpointOverrideRecord)(nil)).
			Where("1 = 1").
			Exec(ctx); err != nil {
			return err
		}
		for key, value := range overrides {
			value = strings.TrimSpace(value)
			if value == "" {
				continue
			}
			record := &endpointOverrideRecord{
				ID:           uuid.NewString(),
				OperationKey: string(key),
				URL:          value,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if _, err := s.repo.CreateTx(ctx, tx, record); err != nil {
				return fmt.Errorf("sqlstore: save override %q: %w", key, err)
			}
		}
		return nil
	})
}
