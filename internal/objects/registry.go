package objects

import (
	"sync"

	"metaschema/internal/metadata"
	"metaschema/internal/metadata/resolver"
	"metaschema/pkg/logger"
)

// Registry holds one Manager per class, addressed by kind and name.
type Registry struct {
	probe Probe
	log   *logger.Logger

	mu     sync.RWMutex
	byKind map[metadata.Kind]map[string]*Manager
}

var _ resolver.Managers = (*Registry)(nil)

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithProbe sets the store probe shared by all managers.
func WithProbe(p Probe) RegistryOption {
	return func(r *Registry) { r.probe = p }
}

// WithLogger sets the registry logger.
func WithLogger(l *logger.Logger) RegistryOption {
	return func(r *Registry) { r.log = l }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{byKind: make(map[metadata.Kind]map[string]*Manager)}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.Default()
	}
	r.log = r.log.WithComponent("objects")
	return r
}

// Attach keeps the registry in step with store: managers are rebuilt on every
// document replacement, and immediately when a document is already loaded.
func (r *Registry) Attach(store *metadata.Store) {
	store.OnReplace(r.Sync)
	if doc := store.Document(); doc != nil {
		r.Sync(doc)
	}
}

// Sync rebuilds the managers from doc. Managers of classes that survive keep
// their cached objects.
func (r *Registry) Sync(doc *metadata.Document) {
	next := make(map[metadata.Kind]map[string]*Manager, len(doc.Classes))

	r.mu.Lock()
	defer r.mu.Unlock()
	for kind, classes := range doc.Classes {
		byName := make(map[string]*Manager, len(classes))
		for name := range classes {
			if m, ok := r.byKind[kind][name]; ok {
				byName[name] = m
				continue
			}
			byName[name] = newManager(metadata.ClassPath(kind, name), r.probe, r.log)
		}
		next[kind] = byName
	}
	r.byKind = next
}

// Manager returns the manager of kind/name.
func (r *Registry) Manager(kind metadata.Kind, name string) (*Manager, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byKind[kind][name]
	return m, ok
}

// Lookup returns the concrete manager of classPath.
func (r *Registry) Lookup(classPath string) (*Manager, bool) {
	kind, name, ok := metadata.SplitClassPath(classPath)
	if !ok {
		return nil, false
	}
	return r.Manager(kind, name)
}

// ByClassPath implements resolver.Managers.
func (r *Registry) ByClassPath(classPath string) (resolver.Manager, bool) {
	m, ok := r.Lookup(classPath)
	if !ok {
		return nil, false
	}
	return m, true
}
