// Package connector defines the boundary between the scheduling core and
// source-specific adapters, plus the process-wide registry of adapters.
package connector

import (
	"context"
	"sort"
	"sync"
	"time"
)

// RawSource is one ingested unit returned by a connector fetch. It becomes a
// persisted Source only after passing dedupe.
type RawSource struct {
	Channel     string
	URL         string
	Kind        string
	FetchedAt   time.Time
	ContentHash string
	RawBlobPtr  string
	Meta        map[string]any
}

// RawCandidate is an entity extracted from a raw source. A dedupe token may
// be supplied under Meta["dedupe_token"].
type RawCandidate struct {
	Name     string
	Evidence string
	Channel  string
	Meta     map[string]any
}

// Connector is a named source adapter. Fetch must tolerate being retried
// with the same since value; Extract is a pure transformation of the source.
type Connector interface {
	Name() string
	DefaultCadence() string
	Fetch(ctx context.Context, since *time.Time) ([]RawSource, error)
	Extract(ctx context.Context, src RawSource) ([]RawCandidate, error)
}

// Registry is a catalog of connectors keyed by name. Registration is
// additive only; connectors stay registered for the process lifetime.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Connector
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]Connector)}
}

// Register adds a connector. Registering the same name twice replaces the
// earlier entry, which only happens in tests.
func (r *Registry) Register(c Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.Name()] = c
}

// Get returns the connector for name, or false if unknown.
func (r *Registry) Get(name string) (Connector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[name]
	return c, ok
}

// Names returns all registered connector names, sorted for deterministic
// sweep bootstrap order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.conns))
	for name := range r.conns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
