package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kursadbilgin/notify-dispatcher/internal/domain"
)

const sampleCatalog = `
types:
  - name: activity
    actions:
      - symbol: comment_added
        code: 1
      - symbol: mentioned
        code: 2
      - symbol: tagged
        code: 2
  - name: billing
    actions:
      - symbol: invoice_ready
        code: 10
`

func TestParseCatalog(t *testing.T) {
	t.Parallel()

	catalog, err := ParseCatalog([]byte(sampleCatalog), nil, nil)
	if err != nil {
		t.Fatalf("ParseCatalog() error = %v", err)
	}

	activity, err := catalog.Lookup("activity")
	if err != nil {
		t.Fatalf("Lookup(activity) error = %v", err)
	}
	code, err := activity.Resolve("mentioned")
	if err != nil || code != 2 {
		t.Fatalf("Resolve(mentioned) = %d, %v, want 2", code, err)
	}
	symbol, err := activity.ReverseResolve(2)
	if err != nil || symbol != "mentioned" {
		t.Fatalf("ReverseResolve(2) = %q, %v, want mentioned (file order)", symbol, err)
	}

	billing, err := catalog.Lookup("billing")
	if err != nil {
		t.Fatalf("Lookup(billing) error = %v", err)
	}
	if _, err := billing.Resolve("comment_added"); !errors.Is(err, domain.ErrUnknownAction) {
		t.Fatalf("billing.Resolve(comment_added) error = %v, want ErrUnknownAction", err)
	}
}

func TestParseCatalogErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
	}{
		{name: "empty", data: ``},
		{name: "invalid yaml", data: `types: [`},
		{name: "missing name", data: "types:\n  - actions: []\n"},
		{name: "duplicate name", data: "types:\n  - name: a\n  - name: a\n"},
		{name: "missing symbol", data: "types:\n  - name: a\n    actions:\n      - code: 1\n"},
		{name: "bad dormancy", data: "types:\n  - name: a\n    deviceDormancy: soon\n"},
		{name: "negative dormancy", data: "types:\n  - name: a\n    deviceDormancy: -1h\n"},
		{name: "dormancy without factory", data: "types:\n  - name: a\n    deviceDormancy: 24h\n"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := ParseCatalog([]byte(tt.data), nil, nil); err == nil {
				t.Fatal("ParseCatalog() expected error, got nil")
			}
		})
	}
}

func TestLoadCatalogFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "actions.yaml")
	if err := os.WriteFile(path, []byte(sampleCatalog), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	catalog, err := LoadCatalog(path, nil, nil)
	if err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}
	if kinds := catalog.Kinds(); len(kinds) != 2 {
		t.Fatalf("Kinds() = %v, want 2 kinds", kinds)
	}

	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"), nil, nil); err == nil {
		t.Fatal("LoadCatalog() expected error for missing file")
	}
}

type dormancyDirectory struct {
	domain.DeviceDirectory
	dormancy time.Duration
}

func TestParseCatalogDeviceDormancyOverride(t *testing.T) {
	t.Parallel()

	data := `
types:
  - name: account
    actions:
      - symbol: signed_up
        code: 1
  - name: social
    deviceDormancy: 720h
    actions:
      - symbol: followed
        code: 1
`
	fallback := dormancyDirectory{dormancy: 90 * 24 * time.Hour}
	var built []time.Duration
	factory := func(dormancy time.Duration) domain.DeviceDirectory {
		built = append(built, dormancy)
		return dormancyDirectory{dormancy: dormancy}
	}

	catalog, err := ParseCatalog([]byte(data), fallback, factory)
	if err != nil {
		t.Fatalf("ParseCatalog() error = %v", err)
	}
	if len(built) != 1 || built[0] != 30*24*time.Hour {
		t.Fatalf("factory calls = %v, want one 720h directory", built)
	}

	tests := []struct {
		kind string
		want time.Duration
	}{
		{kind: "account", want: 90 * 24 * time.Hour},
		{kind: "social", want: 30 * 24 * time.Hour},
	}
	for _, tt := range tests {
		cfg, err := catalog.Lookup(tt.kind)
		if err != nil {
			t.Fatalf("Lookup(%s) error = %v", tt.kind, err)
		}
		got, ok := cfg.DeviceDirectory().(dormancyDirectory)
		if !ok || got.dormancy != tt.want {
			t.Fatalf("%s directory = %+v, want dormancy %v", tt.kind, cfg.DeviceDirectory(), tt.want)
		}
	}
}

func TestShippedActionsFileLoads(t *testing.T) {
	t.Parallel()

	catalog, err := LoadCatalog(filepath.Join("..", "..", "configs", "actions.yaml"), dormancyDirectory{}, func(d time.Duration) domain.DeviceDirectory {
		return dormancyDirectory{dormancy: d}
	})
	if err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}

	social, err := catalog.Lookup("social")
	if err != nil {
		t.Fatalf("Lookup(social) error = %v", err)
	}
	if symbol, err := social.ReverseResolve(3); err != nil || symbol != "commented" {
		t.Fatalf("ReverseResolve(3) = %q, %v, want commented", symbol, err)
	}
	if got := social.Actions(); len(got) != 4 || got[3] != "replied" {
		t.Fatalf("Actions() = %v", got)
	}
}
