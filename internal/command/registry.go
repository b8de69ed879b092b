package command

import (
	"sort"
	"strings"
	"sync"
)

// LookupPrefixes are tried, in order, in front of a command name when
// resolving async commands, so both "SequencerCommandFoo" and "Foo"
// registrations answer to Foo().
var LookupPrefixes = []string{"SequencerCommand", ""}

// Registry maps command names to inline handlers and async factories.
type Registry struct {
	mu     sync.RWMutex
	inline map[string]Inline
	async  map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		inline: make(map[string]Inline),
		async:  make(map[string]Factory),
	}
}

// NewBuiltinRegistry returns a registry with every built-in command.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	registerBuiltinInline(r)
	registerBuiltinAsync(r)
	return r
}

// RegisterInline adds or replaces an inline handler.
func (r *Registry) RegisterInline(name string, fn Inline) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inline[name] = fn
}

// RegisterAsync adds or replaces an async command factory.
func (r *Registry) RegisterAsync(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.async[name] = factory
}

// Inline returns the inline handler for name.
func (r *Registry) Inline(name string) (Inline, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.inline[name]
	return fn, ok
}

// Lookup finds an async factory for name, trying each of LookupPrefixes.
func (r *Registry) Lookup(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, prefix := range LookupPrefixes {
		if factory, ok := r.async[prefix+name]; ok {
			return factory, true
		}
	}
	return nil, false
}

// Names returns every registered command name (prefixes stripped), sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	for name := range r.inline {
		seen[name] = struct{}{}
	}
	for name := range r.async {
		for _, prefix := range LookupPrefixes {
			if prefix != "" && strings.HasPrefix(name, prefix) {
				name = strings.TrimPrefix(name, prefix)
				break
			}
		}
		seen[name] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
