package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
)

// RepositoryFactory builds every SQL store over one bun database.
type RepositoryFactory struct {
	db          *bun.DB
	overrides   *OverrideStore
	deliveryLog *DeliveryLogStore
}

// NewRepositoryFactoryFromPersistence uses the database of a migrated
// go-persistence-bun client.
func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	if client == nil {
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	}
	return NewRepositoryFactoryFromDB(client.DB())
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	overrides, err := NewOverrideStore(db)
	if err != nil {
		return nil, err
	}
	deliveryLog, err := NewDeliveryLogStore(db)
	if err != nil {
		return nil, err
	}
	return &RepositoryFactory{db: db, overrides: overrides, deliveryLog: deliveryLog}, nil
}

func (f *RepositoryFactory) DB() *bun.DB { return f.db }

func (f *RepositoryFactory) OverrideStore() *OverrideStore { return f.overrides }

func (f *RepositoryFactory) DeliveryLogStore() *DeliveryLogStore { return f.deliveryLog }
