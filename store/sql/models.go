package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type endpointOverrideRecord struct {
	bun.BaseModel `bun:"table:backoffice_endpoint_overrides,alias:beo"`

	ID           string    `bun:"id,pk"`
	OperationKey string    `bun:"operation_key,notnull"`
	URL          string    `bun:"url,notnull"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type deliveryLogRecord struct {
	bun.BaseModel `bun:"table:backoffice_webhook_deliveries,alias:bwd"`

	ID         string    `bun:"id,pk"`
	Operation  string    `bun:"operation,notnull"`
	URL        string    `bun:"url,notnull"`
	Success    bool      `bun:"success,notnull"`
	StatusCode int       `bun:"status_code,notnull"`
	Attempts   int       `bun:"attempts,notnull"`
	Payload    string    `bun:"payload,notnull"`
	LastError  string    `bun:"last_error,notnull"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
