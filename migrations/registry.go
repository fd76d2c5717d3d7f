// Package migrations registers the embedded schema with a SQL migrator for
// each supported dialect.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	backoffice "github.com/goliatone/go-backoffice"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	defaultSourceLabel = "go-backoffice"
	migrationsDir      = "data/sql/migrations"
)

// FilesystemSpec is the migration set of one dialect. Postgres files sit at
// the root of the migrations directory and SQLite variants under sqlite/.
type FilesystemSpec struct {
	Dialect string
	Path    string
	FS      fs.FS
}

type Registration struct {
	SourceLabel string
	Dialects    []string
	Filesystems []FilesystemSpec
}

// RegisterFunc hands one dialect's migrations to the migrator, usually
// persistence.Client.RegisterSQLMigrations.
type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type Option func(*registerOptions)

type registerOptions struct {
	label    string
	dialects []string
	source   fs.FS
}

func WithSourceLabel(label string) Option {
	return func(o *registerOptions) {
		if trimmed := strings.TrimSpace(label); trimmed != "" {
			o.label = trimmed
		}
	}
}

// ForDialects limits registration to the named dialects.
func ForDialects(dialects ...string) Option {
	return func(o *registerOptions) {
		picked := normalizeDialects(dialects)
		if len(picked) > 0 {
			o.dialects = picked
		}
	}
}

// FromFS reads migrations from source instead of the embedded schema.
func FromFS(source fs.FS) Option {
	return func(o *registerOptions) {
		if source != nil {
			o.source = source
		}
	}
}

// Filesystems splits source, or the embedded schema when source is nil, into
// one spec per dialect. Each dialect must ship at least one *.up.sql file.
func Filesystems(source fs.FS) ([]FilesystemSpec, error) {
	if source == nil {
		source = backoffice.GetMigrationsFS()
	}
	base, err := fs.Sub(source, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("migrations: open %s: %w", migrationsDir, err)
	}
	sqliteFS, err := fs.Sub(base, DialectSQLite)
	if err != nil {
		return nil, fmt.Errorf("migrations: open sqlite migrations: %w", err)
	}

	specs := []FilesystemSpec{
		{Dialect: DialectPostgres, Path: migrationsDir, FS: base},
		{Dialect: DialectSQLite, Path: path.Join(migrationsDir, DialectSQLite), FS: sqliteFS},
	}
	for _, spec := range specs {
		ups, err := fs.Glob(spec.FS, "*.up.sql")
		if err != nil {
			return nil, fmt.Errorf("migrations: list %s: %w", spec.Path, err)
		}
		if len(ups) == 0 {
			return nil, fmt.Errorf("migrations: no %s migrations under %s", spec.Dialect, spec.Path)
		}
	}
	return specs, nil
}

// Register calls registerFn once per selected dialect, postgres first. The
// first failure stops registration.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	options := registerOptions{
		label:    defaultSourceLabel,
		dialects: []string{DialectPostgres, DialectSQLite},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	reg := Registration{SourceLabel: options.label, Dialects: options.dialects}
	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}

	specs, err := Filesystems(options.source)
	if err != nil {
		return reg, err
	}
	for _, spec := range specs {
		if !slices.Contains(options.dialects, spec.Dialect) {
			continue
		}
		if err := registerFn(ctx, spec.Dialect, reg.SourceLabel, spec.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s: %w", spec.Dialect, err)
		}
		reg.Filesystems = append(reg.Filesystems, spec)
	}
	return reg, nil
}

func normalizeDialects(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		dialect := strings.ToLower(strings.TrimSpace(value))
		if dialect == "" || slices.Contains(out, dialect) {
			continue
		}
		out = append(out, dialect)
	}
	return out
}
