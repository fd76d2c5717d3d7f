// Package filestore persists endpoint overrides as one JSON document on disk,
// the same shape the configuration screen edits.
package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	stdsync "sync"

	"github.com/fsnotify/fsnotify"
	"github.com/goliatone/go-backoffice/core"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

const overridesSchemaURL = "backoffice://schemas/endpoint-overrides.json"

// The document is a flat object of operation key to URL. Key and URL checks
// happen in the resolver so one bad entry does not discard the others.
const overridesSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "propertyNames": { "minLength": 1 },
  "additionalProperties": { "type": "string" }
}`

type Option func(*Store)

func WithLogger(logger core.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithFileMode(mode fs.FileMode) Option {
	return func(s *Store) {
		if mode != 0 {
			s.mode = mode
		}
	}
}

// Store is a core.OverrideStore and core.OverrideWatcher backed by a file.
type Store struct {
	path   string
	mode   fs.FileMode
	logger core.Logger
	schema *jsonschema.Schema
	mu     stdsync.Mutex
}

func NewStore(path string, opts ...Option) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("filestore: path is required")
	}
	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}
	s := &Store{
		path:   filepath.Clean(path),
		mode:   0o600,
		logger: glog.Nop(),
		schema: schema,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

func (s *Store) Path() string {
	return s.path
}

// Load returns an empty map when the file does not exist or is blank. A
// document that fails to parse or validate is an error.
func (s *Store) Load(context.Context) (map[core.OperationKey]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[core.OperationKey]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("filestore: read %s: %w", s.path, err)
	}
	return s.decode(data)
}

// Save rewrites the whole document. Blank values are dropped.
func (s *Store) Save(_ context.Context, overrides map[core.OperationKey]string) error {
	document := make(map[string]string, len(overrides))
	for key, value := range overrides {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		document[string(key)] = value
	}
	data, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return fmt.Errorf("filestore: encode overrides: %w", err)
	}
	if _, err := s.decode(data); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return writeAtomic(s.path, append(data, '\n'), s.mode)
}

// Watch calls onChange whenever the document is written, created or replaced
// until ctx is done.
func (s *Store) Watch(ctx context.Context, onChange func()) error {
	if onChange == nil {
		return fmt.Errorf("filestore: change callback is required")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("filestore: create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("filestore: watch %s: %w", dir, err)
	}
	name := filepath.Base(s.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				s.logger.Debug("endpoint overrides file changed", "path", s.path, "op", event.Op.String())
				onChange()
			}
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("endpoint overrides watcher error", "path", s.path, "error", watchErr)
		}
	}
}

func (s *Store) decode(data []byte) (map[core.OperationKey]string, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return map[core.OperationKey]string{}, nil
	}
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("filestore: malformed overrides document: %w", err)
	}
	if err := s.schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("filestore: invalid overrides document: %w", err)
	}
	var document map[string]string
	if err := json.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("filestore: decode overrides: %w", err)
	}
	out := make(map[core.OperationKey]string, len(document))
	for key, value := range document {
		out[core.OperationKey(key)] = value
	}
	return out, nil
}

func compileSchema() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(overridesSchema))
	if err != nil {
		return nil, fmt.Errorf("filestore: parse schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(overridesSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("filestore: add schema: %w", err)
	}
	schema, err := compiler.Compile(overridesSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("filestore: compile schema: %w", err)
	}
	return schema, nil
}

func writeAtomic(path string, data []byte, mode fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("filestore: create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("filestore: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("filestore: write temp file: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("filestore: chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("filestore: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("filestore: replace %s: %w", path, err)
	}
	return nil
}

var (
	_ core.OverrideStore   = (*Store)(nil)
	_ core.OverrideWatcher = (*Store)(nil)
)
