package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kursadbilgin/notify-dispatcher/internal/domain"
	"gopkg.in/yaml.v3"
)

type catalogFile struct {
	Types []catalogType `yaml:"types"`
}

type catalogType struct {
	Name           string          `yaml:"name"`
	DeviceDormancy string          `yaml:"deviceDormancy"`
	Actions        []catalogAction `yaml:"actions"`
}

type catalogAction struct {
	Symbol string `yaml:"symbol"`
	Code   int    `yaml:"code"`
}

// DirectoryFactory builds the device directory of a kind that sets its own deviceDormancy.
type DirectoryFactory func(dormancy time.Duration) domain.DeviceDirectory

// LoadCatalog reads the notification kinds and their action tables from a YAML file.
// Kinds resolve devices through fallback unless they set deviceDormancy.
func LoadCatalog(path string, fallback domain.DeviceDirectory, directoryFor DirectoryFactory) (*domain.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read actions file: %w", err)
	}
	return ParseCatalog(data, fallback, directoryFor)
}

func ParseCatalog(data []byte, fallback domain.DeviceDirectory, directoryFor DirectoryFactory) (*domain.Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse actions file: %w", err)
	}
	if len(file.Types) == 0 {
		return nil, fmt.Errorf("actions file defines no notification types")
	}

	catalog := domain.NewCatalog()
	seen := make(map[string]struct{}, len(file.Types))
	for _, t := range file.Types {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return nil, fmt.Errorf("notification type name is required")
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate notification type %q", name)
		}
		seen[name] = struct{}{}

		cfg := domain.NewTypeConfig(name, fallback)
		for _, a := range t.Actions {
			if strings.TrimSpace(a.Symbol) == "" {
				return nil, fmt.Errorf("notification type %q has an action without symbol", name)
			}
			cfg.AddAction(a.Symbol, a.Code)
		}

		if raw := strings.TrimSpace(t.DeviceDormancy); raw != "" {
			dormancy, err := time.ParseDuration(raw)
			if err != nil || dormancy < 0 {
				return nil, fmt.Errorf("notification type %q has invalid deviceDormancy %q", name, raw)
			}
			if directoryFor == nil {
				return nil, fmt.Errorf("notification type %q sets deviceDormancy but no device directory factory is configured", name)
			}
			cfg.SetDeviceDirectory(directoryFor(dormancy))
		}
		catalog.Register(cfg)
	}

	return catalog, nil
}
