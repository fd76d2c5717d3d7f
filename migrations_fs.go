package backoffice

import (
	"embed"
	"io/fs"
)

// migrationsFS holds the schema for the override and delivery log tables,
// with SQLite variants under data/sql/migrations/sqlite.
//
//go:embed data/sql/migrations/*.sql data/sql/migrations/sqlite/*.sql
var migrationsFS embed.FS

func GetMigrationsFS() fs.FS {
	return migrationsFS
}
