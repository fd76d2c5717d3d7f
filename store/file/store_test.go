package filestore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-backoffice/core"
)

func TestStore_LoadMissingFileIsEmpty(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "overrides.json"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	loaded, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("expected empty overrides, got %#v", loaded)
	}
}

func TestStore_SaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "overrides.json")
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	err = store.Save(context.Background(), map[core.OperationKey]string{
		core.OperationPauseBot: "https://x/pause",
		core.OperationStartBot: " ",
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.Contains(string(raw), "iniciaBot") {
		t.Fatalf("expected blank values to be dropped, got %s", raw)
	}

	loaded, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 1 || loaded[core.OperationPauseBot] != "https://x/pause" {
		t.Fatalf("unexpected overrides %#v", loaded)
	}
}

func TestStore_RejectsMalformedDocuments(t *testing.T) {
	cases := map[string]string{
		"not json":      `{"pausaBot": `,
		"not an object": `["https://x"]`,
		"number value":  `{"pausaBot": 42}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "overrides.json")
			if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
				t.Fatalf("write: %v", err)
			}
			store, err := NewStore(path)
			if err != nil {
				t.Fatalf("new store: %v", err)
			}
			if _, err := store.Load(context.Background()); err == nil {
				t.Fatalf("expected %s to be rejected", name)
			}
		})
	}
}

func TestStore_MalformedFileFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overrides.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	resolver := core.NewResolver(store)
	if err := resolver.Reload(context.Background()); err == nil {
		t.Fatalf("expected reload to report the malformed document")
	}
	if got := resolver.Resolve(core.OperationMessage, ""); got != core.DefaultWebhookBase+"/envia_mensagem" {
		t.Fatalf("expected default endpoint, got %q", got)
	}
}

func TestStore_WatchReportsSaves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overrides.json")
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := make(chan struct{}, 16)
	done := make(chan error, 1)
	go func() {
		done <- store.Watch(ctx, func() {
			select {
			case changes <- struct{}{}:
			default:
			}
		})
	}()

	deadline := time.After(5 * time.Second)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if err := store.Save(context.Background(), map[core.OperationKey]string{core.OperationConfirm: "https://x/confirm"}); err != nil {
			t.Fatalf("save: %v", err)
		}
		select {
		case <-changes:
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("watch: %v", err)
			}
			return
		case <-deadline:
			t.Fatalf("expected a change notification")
		case <-ticker.C:
		}
	}
}

func TestNewStore_RequiresPath(t *testing.T) {
	if _, err := NewStore("  "); err == nil {
		t.Fatalf("expected empty path to fail")
	}
	if err := (&Store{}).Watch(context.Background(), nil); err == nil {
		t.Fatalf("expected nil callback to fail")
	}
}
