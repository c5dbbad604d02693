package objects

import (
	"context"
	"sync"

	"metaschema/internal/core/id"
	"metaschema/internal/metadata"
	"metaschema/internal/metadata/resolver"
	"metaschema/pkg/logger"
)

// Probe looks up stored objects. It must not create anything.
type Probe interface {
	Load(ctx context.Context, table string, ref id.ID) (Attributes, bool, error)
}

// Manager is the object manager of one class: an in-memory object cache in
// front of an optional store probe.
type Manager struct {
	classPath string
	kind      metadata.Kind
	table     string
	probe     Probe
	log       *logger.Logger

	mu    sync.RWMutex
	cache map[id.ID]*Object
}

var _ resolver.Manager = (*Manager)(nil)

func newManager(classPath string, probe Probe, log *logger.Logger) *Manager {
	kind, _, _ := metadata.SplitClassPath(classPath)
	return &Manager{
		classPath: classPath,
		kind:      kind,
		table:     metadata.TableName(classPath),
		probe:     probe,
		log:       log,
		cache:     make(map[id.ID]*Object),
	}
}

// ClassPath implements resolver.Manager.
func (m *Manager) ClassPath() string { return m.classPath }

// Table returns the relational table of the class.
func (m *Manager) Table() string { return m.table }

// Get returns the object with ref from the cache or, failing that, from the
// store probe. Blank references and registers never resolve.
func (m *Manager) Get(ctx context.Context, ref id.ID) (resolver.Object, bool) {
	obj, ok := m.Find(ctx, ref)
	if !ok {
		return nil, false
	}
	return obj, true
}

// Find is Get returning the concrete object.
func (m *Manager) Find(ctx context.Context, ref id.ID) (*Object, bool) {
	if id.IsBlank(ref) || m.kind.IsRegister() {
		return nil, false
	}

	m.mu.RLock()
	obj, ok := m.cache[ref]
	m.mu.RUnlock()
	if ok {
		return obj, true
	}
	if m.probe == nil {
		return nil, false
	}

	attrs, found, err := m.probe.Load(ctx, m.table, ref)
	if err != nil {
		m.log.WithContext(ctx).Warnw("object probe failed", "class", m.classPath, "ref", ref, "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	return m.Put(ref, attrs), true
}

// Put caches a stored object and returns it.
func (m *Manager) Put(ref id.ID, attrs Attributes) *Object {
	obj := &Object{ref: ref, mgr: m, attrs: attrs}
	m.mu.Lock()
	m.cache[ref] = obj
	m.mu.Unlock()
	return obj
}

// New creates an unsaved object. It is not cached.
func (m *Manager) New(attrs Attributes) *Object {
	return &Object{ref: id.New(), mgr: m, isNew: true, attrs: attrs}
}

// Forget drops ref from the cache.
func (m *Manager) Forget(ref id.ID) {
	m.mu.Lock()
	delete(m.cache, ref)
	m.mu.Unlock()
}

// Len returns the number of cached objects.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.cache)
}
