package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goliatone/go-backoffice/core"
)

func envMap(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestLoadSettings_Defaults(t *testing.T) {
	s, err := loadSettings(envMap(nil))
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if s.Addr != ":8080" || s.Store != storeFile || s.QueueSize != 64 {
		t.Fatalf("unexpected defaults: %#v", s)
	}
	if s.DeliveryLogTTL != 30*24*time.Hour {
		t.Fatalf("expected 30 day ttl, got %s", s.DeliveryLogTTL)
	}
}

func TestLoadSettings_Overrides(t *testing.T) {
	s, err := loadSettings(envMap(map[string]string{
		"BACKOFFICE_ADDR":             "127.0.0.1:9000",
		"BACKOFFICE_STORE":            "Postgres",
		"BACKOFFICE_DATABASE_URL":     "postgres://localhost/backoffice",
		"BACKOFFICE_DELIVERY_LOG_TTL": "48h",
		"BACKOFFICE_QUEUE_SIZE":       "8",
		"BACKOFFICE_DEBUG":            "true",
	}))
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if s.Store != storePostgres || s.DatabaseURL != "postgres://localhost/backoffice" {
		t.Fatalf("unexpected store settings: %#v", s)
	}
	if s.DeliveryLogTTL != 48*time.Hour || s.QueueSize != 8 || !s.Debug {
		t.Fatalf("unexpected overrides: %#v", s)
	}
}

func TestLoadSettings_Rejects(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown store":     {"BACKOFFICE_STORE": "redis"},
		"postgres no dsn":   {"BACKOFFICE_STORE": "postgres"},
		"bad ttl":           {"BACKOFFICE_DELIVERY_LOG_TTL": "soon"},
		"zero queue":        {"BACKOFFICE_QUEUE_SIZE": "0"},
		"bad debug literal": {"BACKOFFICE_DEBUG": "maybe"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := loadSettings(envMap(env)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestYAMLConfigLoader_FeedsServiceConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backoffice.yaml")
	doc := []byte(`
service_name: agenda-ops
delivery:
  retries: 5
calendar:
  default_category: venda-ci
endpoints:
  pausaBot: https://hooks.example.com/pause
`)
	if err := os.WriteFile(path, doc, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	svc, err := core.NewService(core.Config{}, core.WithConfigProvider(core.NewCfgxConfigProvider(yamlConfigLoader{path: path})))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	cfg := svc.Config()
	if cfg.ServiceName != "agenda-ops" || cfg.Delivery.Retries != 5 {
		t.Fatalf("unexpected config: %#v", cfg)
	}
	if cfg.Category() != core.CategoryVenda {
		t.Fatalf("expected venda category, got %q", cfg.Category())
	}
	if got := svc.Resolver().Resolve(core.OperationPauseBot, ""); got != "https://hooks.example.com/pause" {
		t.Fatalf("expected yaml endpoint seed, got %q", got)
	}
}

func TestYAMLConfigLoader_MissingFileIsEmpty(t *testing.T) {
	raw, err := yamlConfigLoader{path: filepath.Join(t.TempDir(), "absent.yaml")}.LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("expected missing file to be tolerated: %v", err)
	}
	if len(raw) != 0 {
		t.Fatalf("expected empty map, got %#v", raw)
	}

	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("delivery: [unclosed"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := (yamlConfigLoader{path: path}).LoadRaw(context.Background()); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestSlogLogger_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, false)
	logger.WithFields(map[string]any{"component": "jobs"}).Info("job done", "attempt", 2)
	logger.Debug("hidden")

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("expected a single json line, got %q: %v", buf.String(), err)
	}
	if line["msg"] != "job done" || line["component"] != "jobs" || line["attempt"] != float64(2) {
		t.Fatalf("unexpected log line: %#v", line)
	}
}
