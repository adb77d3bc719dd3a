package adapter

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Factory builds an unconnected adapter for one warehouse type.
type Factory func(*slog.Logger) Adapter

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// Register makes a warehouse type available under name. Adapter packages
// call it from init, so a blank import is enough to enable a warehouse.
// Registering the same name twice or a nil factory panics, as with
// database/sql drivers.
func Register(name string, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if factory == nil {
		panic("adapter: Register factory is nil for " + name)
	}
	if _, dup := factories[name]; dup {
		panic("adapter: Register called twice for " + name)
	}
	factories[name] = factory
}

// Lookup returns the factory registered for a warehouse type.
func Lookup(name string) (Factory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[name]
	return f, ok
}

// New builds the adapter for cfg.Type without connecting it.
func New(cfg Config, logger *slog.Logger) (Adapter, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("warehouse type not specified")
	}

	factory, ok := Lookup(cfg.Type)
	if !ok {
		return nil, &UnknownAdapterError{Type: cfg.Type, Available: Registered()}
	}
	return factory(logger), nil
}

// Registered lists the warehouse types this binary can extract from.
func Registered() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsRegistered reports whether a warehouse type can be used.
func IsRegistered(name string) bool {
	_, ok := Lookup(name)
	return ok
}

// UnknownAdapterError reports a warehouse.type no adapter is registered for.
type UnknownAdapterError struct {
	Type      string
	Available []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown warehouse type %q\nAvailable warehouses: %v\nHint: Check warehouse.type in your extraction config", e.Type, e.Available)
}
