package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-backoffice/core"
	"gopkg.in/yaml.v3"
)

const (
	storeFile     = "file"
	storeSQLite   = "sqlite"
	storePostgres = "postgres"
)

// settings are the process level knobs read from the environment. Everything
// about endpoints, delivery and the agenda lives in the YAML config.
type settings struct {
	Addr           string
	ConfigPath     string
	Store          string
	OverridesPath  string
	DatabaseURL    string
	DeliveryLogTTL time.Duration
	QueueSize      int
	Debug          bool
}

func loadSettings(getenv func(string) string) (settings, error) {
	s := settings{
		Addr:           ":8080",
		ConfigPath:     "backoffice.yaml",
		Store:          storeFile,
		OverridesPath:  "backoffice-endpoints.json",
		DatabaseURL:    "file:backoffice.db?_foreign_keys=on",
		DeliveryLogTTL: 30 * 24 * time.Hour,
		QueueSize:      64,
	}
	if value := strings.TrimSpace(getenv("BACKOFFICE_ADDR")); value != "" {
		s.Addr = value
	}
	if value := strings.TrimSpace(getenv("BACKOFFICE_CONFIG")); value != "" {
		s.ConfigPath = value
	}
	if value := strings.TrimSpace(strings.ToLower(getenv("BACKOFFICE_STORE"))); value != "" {
		switch value {
		case storeFile, storeSQLite, storePostgres:
			s.Store = value
		default:
			return settings{}, fmt.Errorf("backoffice: unknown store %q", value)
		}
	}
	if value := strings.TrimSpace(getenv("BACKOFFICE_OVERRIDES_PATH")); value != "" {
		s.OverridesPath = value
	}
	if value := strings.TrimSpace(getenv("BACKOFFICE_DATABASE_URL")); value != "" {
		s.DatabaseURL = value
	} else if s.Store == storePostgres {
		return settings{}, fmt.Errorf("backoffice: BACKOFFICE_DATABASE_URL is required for the postgres store")
	}
	if value := strings.TrimSpace(getenv("BACKOFFICE_DELIVERY_LOG_TTL")); value != "" {
		ttl, err := time.ParseDuration(value)
		if err != nil || ttl <= 0 {
			return settings{}, fmt.Errorf("backoffice: invalid BACKOFFICE_DELIVERY_LOG_TTL %q", value)
		}
		s.DeliveryLogTTL = ttl
	}
	if value := strings.TrimSpace(getenv("BACKOFFICE_QUEUE_SIZE")); value != "" {
		size, err := strconv.Atoi(value)
		if err != nil || size < 1 {
			return settings{}, fmt.Errorf("backoffice: invalid BACKOFFICE_QUEUE_SIZE %q", value)
		}
		s.QueueSize = size
	}
	if value := strings.TrimSpace(getenv("BACKOFFICE_DEBUG")); value != "" {
		debug, err := strconv.ParseBool(value)
		if err != nil {
			return settings{}, fmt.Errorf("backoffice: invalid BACKOFFICE_DEBUG %q", value)
		}
		s.Debug = debug
	}
	return s, nil
}

// yamlConfigLoader reads the raw config map from a YAML file. A missing file
// yields an empty map so defaults apply.
type yamlConfigLoader struct {
	path string
}

var _ core.RawConfigLoader = yamlConfigLoader{}

func (l yamlConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if strings.TrimSpace(l.path) == "" {
		return map[string]any{}, nil
	}
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("backoffice: read config %s: %w", l.path, err)
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("backoffice: parse config %s: %w", l.path, err)
	}
	return raw, nil
}
