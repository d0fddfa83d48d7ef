package backend

import (
	"context"
	"fmt"
)

// Registry holds the loaded backends of a local instance in registration order.
// It is built once and read-only afterwards.
type Registry struct {
	order    []string
	backends map[string]Backend
}

// NewRegistry creates every backend of entries, in order.
func NewRegistry(ctx context.Context, entries []Entry, cfg Config) (*Registry, error) {
	r := &Registry{backends: make(map[string]Backend, len(entries))}
	for _, e := range entries {
		b, err := New(ctx, e, cfg)
		if err != nil {
			return nil, err
		}
		if err := r.Add(b); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add registers an already constructed backend.
func (r *Registry) Add(b Backend) error {
	if r.backends == nil {
		r.backends = make(map[string]Backend)
	}
	name := b.Descriptor().Name
	if _, ok := r.backends[name]; ok {
		return fmt.Errorf("backend %q registered twice", name)
	}
	r.backends[name] = b
	r.order = append(r.order, name)
	return nil
}

// Get returns the backend with the given name.
func (r *Registry) Get(name string) (Backend, bool) {
	b, ok := r.backends[name]
	return b, ok
}

// Names returns backend names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Descriptors returns the capability declarations in registration order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.backends[n].Descriptor())
	}
	return out
}
