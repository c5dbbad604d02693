// Package metadata holds the in-memory description of every data class of an
// application and answers lookups against it.
//
// The Store owns the current Document. A document is never patched in place:
// a reload builds a new snapshot and swaps it atomically, so readers take no locks.
package metadata

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"metaschema/internal/core/apperror"
	"metaschema/pkg/logger"
)

// Store is the Schema Store.
type Store struct {
	current atomic.Pointer[snapshot]

	// loadMu guards source and unsubscribe.
	loadMu      sync.Mutex
	source      DocumentSource
	unsubscribe func()

	onReload func()
	onError  func(error)

	listenersMu sync.RWMutex
	listeners   []func(*Document)

	log *logger.Logger
}

// snapshot is one adopted document with everything derived from it.
type snapshot struct {
	doc   *Document
	names *Names

	// builtins caches synthesized standard attributes by "<classPath>#<field>"
	// so that repeated lookups return the same descriptor.
	builtins sync.Map
}

// Option configures a Store.
type Option func(*Store)

// WithReloadHook sets the application reload signal, invoked when the metadata
// changes remotely while a document is already loaded.
func WithReloadHook(fn func()) Option {
	return func(s *Store) { s.onReload = fn }
}

// WithErrorHook sets the recovery hook receiving load failures.
func WithErrorHook(fn func(error)) Option {
	return func(s *Store) { s.onError = fn }
}

// WithLogger sets the store logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Store) { s.log = l }
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Default()
	}
	s.log = s.log.WithComponent("metadata")
	return s
}

// Load adopts an already materialized document.
func (s *Store) Load(doc *Document) {
	s.adopt(doc)
}

// Init loads the document from source: fetches meta and meta_patch, applies
// the patch, strips store keys and adopts the result. It also subscribes to
// change events of source. Failures are reported to the error hook and returned;
// there is no retry.
func (s *Store) Init(ctx context.Context, source DocumentSource) error {
	s.loadMu.Lock()
	if s.source != source {
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
		s.source = source
		s.unsubscribe = source.Subscribe(s.handleChange)
	}
	s.loadMu.Unlock()

	return s.loadFromSource(ctx)
}

// Reload refetches the documents from the subscribed source and replaces the
// current document wholesale.
func (s *Store) Reload(ctx context.Context) error {
	return s.loadFromSource(ctx)
}

// Close drops the change subscription. The loaded document stays readable.
func (s *Store) Close() {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.source = nil
}

func (s *Store) loadFromSource(ctx context.Context) error {
	s.loadMu.Lock()
	source := s.source
	s.loadMu.Unlock()

	if source == nil {
		return s.fail(ctx, apperror.NewMetadataLoad(fmt.Errorf("no document source")))
	}

	doc, err := fetchDocument(ctx, source)
	if err != nil {
		return s.fail(ctx, err)
	}
	s.adopt(doc)
	return nil
}

func fetchDocument(ctx context.Context, source DocumentSource) (*Document, error) {
	if err := source.Info(ctx); err != nil {
		return nil, apperror.NewMetadataLoad(fmt.Errorf("store not ready: %w", err))
	}

	base, err := source.Get(ctx, DocMeta)
	if err != nil {
		return nil, loadError(err)
	}
	patch, err := source.Get(ctx, DocMetaPatch)
	if err != nil {
		return nil, loadError(err)
	}

	merged := ApplyPatch(base, patch)
	StripStoreKeys(merged)

	doc, err := DecodeDocument(merged)
	if err != nil {
		return nil, apperror.NewMetadataLoad(err)
	}
	return doc, nil
}

func loadError(err error) error {
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.NewMetadataLoad(err)
}

func (s *Store) fail(ctx context.Context, err error) error {
	s.log.WithContext(ctx).Errorw("metadata load failed", "error", err)
	if s.onError != nil {
		s.onError(err)
	}
	return err
}

func (s *Store) adopt(doc *Document) {
	if doc == nil {
		doc = NewDocument()
	}
	snap := &snapshot{doc: doc, names: NewNames(doc.Synonyms)}
	s.current.Store(snap)

	classes := 0
	for _, byName := range doc.Classes {
		classes += len(byName)
	}
	s.log.Infow("metadata adopted", "kinds", len(doc.Classes), "classes", classes, "synonyms", len(doc.Synonyms))

	s.listenersMu.RLock()
	listeners := slices.Clone(s.listeners)
	s.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(doc)
	}
}

// handleChange reacts to store notifications. Only the meta document counts:
// with nothing loaded yet it re-runs the load, otherwise it raises the reload signal.
func (s *Store) handleChange(ctx context.Context, ev ChangeEvent) {
	if ev.ID != DocMeta {
		return
	}
	if !s.Loaded() {
		s.log.WithContext(ctx).Infow("metadata appeared in store, loading")
		_ = s.loadFromSource(ctx)
		return
	}
	s.log.WithContext(ctx).Infow("metadata changed remotely, reload scheduled")
	if s.onReload != nil {
		s.onReload()
	}
}

// OnReplace registers fn to run after every adopted document.
func (s *Store) OnReplace(fn func(*Document)) {
	s.listenersMu.Lock()
	s.listeners = append(s.listeners, fn)
	s.listenersMu.Unlock()
}

// Loaded reports whether a document has been adopted.
func (s *Store) Loaded() bool {
	return s.current.Load() != nil
}

// Document returns the current document or nil.
func (s *Store) Document() *Document {
	if snap := s.current.Load(); snap != nil {
		return snap.doc
	}
	return nil
}

// Names returns the naming translator of the current document.
// Before the first load it translates with the built-in table only.
func (s *Store) Names() *Names {
	if snap := s.current.Load(); snap != nil {
		return snap.names
	}
	return NewNames(nil)
}

// Snapshot returns the current document with its naming translator. Callers
// reading several classes in one pass use it so a reload cannot split the pass
// across two documents. The document is nil before the first load.
func (s *Store) Snapshot() (*Document, *Names) {
	if snap := s.current.Load(); snap != nil {
		return snap.doc, snap.names
	}
	return nil, NewNames(nil)
}

// Get returns the class at classPath or nil.
func (s *Store) Get(classPath string) *Class {
	kind, name, ok := SplitClassPath(classPath)
	if !ok {
		return nil
	}
	return s.Document().Class(kind, name)
}

// Field returns the field descriptor of classPath. Standard attributes are
// synthesized by kind; other names come from the class fields. A miss is nil.
func (s *Store) Field(classPath, fieldName string) *Field {
	snap := s.current.Load()
	if snap == nil {
		return nil
	}
	kind, name, ok := SplitClassPath(classPath)
	if !ok {
		return nil
	}

	key := classPath + "#" + fieldName
	if f, ok := snap.builtins.Load(key); ok {
		return f.(*Field)
	}
	if f, ok := builtinField(kind, classPath, fieldName); ok {
		actual, _ := snap.builtins.LoadOrStore(key, f)
		return actual.(*Field)
	}

	class := snap.doc.Class(kind, name)
	if class == nil {
		return nil
	}
	return class.Fields[fieldName]
}

// Classes returns kind -> sorted class names.
func (s *Store) Classes() map[Kind][]string {
	return s.Document().ClassNames()
}

// AttachPrintingPlates stores the plate list of each document class present in
// plates. Meant for the setup phase, before concurrent reads start.
func (s *Store) AttachPrintingPlates(plates map[string]any) {
	doc := s.Document()
	if doc == nil {
		return
	}
	for name, list := range plates {
		if class := doc.Class(KindDocument, name); class != nil {
			class.PrintingPlates = list
		}
	}
}
