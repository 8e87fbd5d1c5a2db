package ops

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Op is a bot command such as /help. Name is the command without the slash.
type Op interface {
	Name() string
	Description() string
	Execute(ctx context.Context, args string) (string, error)
}

// Registry holds the bot's commands keyed by name.
type Registry struct {
	mu  sync.RWMutex
	ops map[string]Op
}

func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]Op)}
}

// Register adds a command. Names are unique.
func (r *Registry) Register(op Op) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := op.Name()
	if _, exists := r.ops[name]; exists {
		return fmt.Errorf("command already registered: /%s", name)
	}
	r.ops[name] = op
	return nil
}

// Get returns the command with the given name, or nil.
func (r *Registry) Get(name string) Op {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ops[name]
}

// List returns all commands sorted by name.
func (r *Registry) List() []Op {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Op, 0, len(r.ops))
	for _, op := range r.ops {
		result = append(result, op)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}

// Defaults registers /start, /help and /status. mode reports how the bot
// receives updates.
func Defaults(r *Registry, mode func() string) error {
	for _, op := range []Op{
		&StartOp{},
		&HelpOp{Registry: r},
		&StatusOp{Mode: mode},
	} {
		if err := r.Register(op); err != nil {
			return err
		}
	}
	return nil
}
