package domain

import (
	"fmt"
	"strings"
	"sync"
)

type actionEntry struct {
	symbol string
	code   int
}

// TypeConfig holds the action table and device-directory binding of one notification kind.
// Actions keep registration order; overwriting a symbol keeps its original position.
type TypeConfig struct {
	name string

	mu        sync.RWMutex
	actions   []actionEntry
	index     map[string]int
	directory DeviceDirectory
	fallback  DeviceDirectory
}

func NewTypeConfig(name string, fallback DeviceDirectory) *TypeConfig {
	return &TypeConfig{
		name:     strings.TrimSpace(name),
		index:    make(map[string]int),
		fallback: fallback,
	}
}

func (c *TypeConfig) Name() string { return c.name }

// AddAction registers symbol with code, overwriting any previous code for symbol.
// Codes are not required to be unique.
func (c *TypeConfig) AddAction(symbol string, code int) {
	symbol = strings.TrimSpace(symbol)

	c.mu.Lock()
	defer c.mu.Unlock()

	if i, ok := c.index[symbol]; ok {
		c.actions[i].code = code
		return
	}
	c.index[symbol] = len(c.actions)
	c.actions = append(c.actions, actionEntry{symbol: symbol, code: code})
}

func (c *TypeConfig) Resolve(symbol string) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.index[strings.TrimSpace(symbol)]
	if !ok {
		return 0, fmt.Errorf("%w: %q for kind %q", ErrUnknownAction, symbol, c.name)
	}
	return c.actions[i].code, nil
}

// ReverseResolve returns the first registered symbol whose code equals code.
func (c *TypeConfig) ReverseResolve(code int) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, a := range c.actions {
		if a.code == code {
			return a.symbol, nil
		}
	}
	return "", fmt.Errorf("%w: %d for kind %q", ErrUnknownActionCode, code, c.name)
}

// ActionSymbolOf maps the record's stored action code back to its symbol.
func (c *TypeConfig) ActionSymbolOf(n *Notification) (string, error) {
	if n == nil {
		return "", fmt.Errorf("%w: notification is required", ErrValidation)
	}
	return c.ReverseResolve(n.ActionCode)
}

// Actions returns the registered symbols in registration order.
func (c *TypeConfig) Actions() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	symbols := make([]string, 0, len(c.actions))
	for _, a := range c.actions {
		symbols = append(symbols, a.symbol)
	}
	return symbols
}

func (c *TypeConfig) SetDeviceDirectory(directory DeviceDirectory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.directory = directory
}

// DeviceDirectory returns the kind's own directory, or the shared fallback when none was set.
func (c *TypeConfig) DeviceDirectory() DeviceDirectory {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.directory != nil {
		return c.directory
	}
	return c.fallback
}
