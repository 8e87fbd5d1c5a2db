package core

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrNoNotifiers     = errors.New("no notifiers registered")
	ErrUnknownNotifier = errors.New("unknown notifier")
)

// Registry holds named notifiers. The first one registered is the default.
type Registry struct {
	mu          sync.RWMutex
	notifiers   map[string]Notifier
	defaultName string
}

func NewRegistry() *Registry {
	return &Registry{notifiers: make(map[string]Notifier)}
}

func (r *Registry) Register(n Notifier) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := n.Name()
	if _, exists := r.notifiers[name]; exists {
		return fmt.Errorf("notifier %q already registered", name)
	}
	r.notifiers[name] = n
	if r.defaultName == "" {
		r.defaultName = name
	}
	return nil
}

// Lookup returns the notifier called name, or the default when name is empty.
func (r *Registry) Lookup(name string) (Notifier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == "" {
		if r.defaultName == "" {
			return nil, ErrNoNotifiers
		}
		return r.notifiers[r.defaultName], nil
	}
	n, ok := r.notifiers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNotifier, name)
	}
	return n, nil
}

// Names lists registered notifiers in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.notifiers))
	for name := range r.notifiers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
