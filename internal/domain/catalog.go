package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Catalog indexes TypeConfigs by kind name.
type Catalog struct {
	types map[string]*TypeConfig
}

func NewCatalog(configs ...*TypeConfig) *Catalog {
	c := &Catalog{types: make(map[string]*TypeConfig, len(configs))}
	for _, cfg := range configs {
		c.Register(cfg)
	}
	return c
}

func (c *Catalog) Register(cfg *TypeConfig) {
	if cfg == nil {
		return
	}
	c.types[cfg.Name()] = cfg
}

func (c *Catalog) Lookup(kind string) (*TypeConfig, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	cfg, ok := c.types[strings.TrimSpace(kind)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return cfg, nil
}

func (c *Catalog) Kinds() []string {
	kinds := make([]string, 0, len(c.types))
	for k := range c.types {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
