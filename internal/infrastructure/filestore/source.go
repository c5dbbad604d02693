// Package filestore serves metadata documents from a directory: one file per
// document id (meta.yaml, meta_patch.json, ...), read through a virtual
// filesystem.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mandelsoft/vfs/pkg/osfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"sigs.k8s.io/yaml"

	"metaschema/internal/core/apperror"
	"metaschema/internal/metadata"
	"metaschema/pkg/logger"
)

// Extensions are probed in this order; the first existing file wins.
var Extensions = []string{".json", ".yaml", ".yml"}

var _ metadata.DocumentSource = (*Source)(nil)

// Source is a directory of metadata documents.
type Source struct {
	fs       vfs.FileSystem
	dir      string
	log      *logger.Logger
	debounce time.Duration

	handlersMu sync.RWMutex
	handlers   map[int]metadata.ChangeHandler
	nextID     int
}

// Option configures a Source.
type Option func(*Source)

// WithFileSystem replaces the OS filesystem.
func WithFileSystem(fs vfs.FileSystem) Option {
	return func(s *Source) { s.fs = fs }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Source) { s.log = l }
}

// WithDebounce sets how long Watch waits for writes to settle.
func WithDebounce(d time.Duration) Option {
	return func(s *Source) { s.debounce = d }
}

// New creates a source over dir.
func New(dir string, opts ...Option) *Source {
	s := &Source{
		fs:       osfs.OsFs,
		dir:      dir,
		debounce: 200 * time.Millisecond,
		handlers: make(map[int]metadata.ChangeHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Default()
	}
	s.log = s.log.WithComponent("metadata-files")
	return s
}

// Dir returns the document directory.
func (s *Source) Dir() string { return s.dir }

// Info implements metadata.DocumentSource: the directory must exist.
func (s *Source) Info(context.Context) error {
	ok, err := vfs.DirExists(s.fs, s.dir)
	if err != nil {
		return fmt.Errorf("stat %s: %w", s.dir, err)
	}
	if !ok {
		return fmt.Errorf("metadata directory %s does not exist", s.dir)
	}
	return nil
}

// Get implements metadata.DocumentSource.
func (s *Source) Get(ctx context.Context, docID string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := s.locate(docID)
	if err != nil {
		return nil, err
	}

	data, err := vfs.ReadFile(s.fs, file)
	if err != nil {
		return nil, apperror.NewMetadataLoad(fmt.Errorf("read %s: %w", file, err))
	}
	doc := make(map[string]any)
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, apperror.NewMetadataLoad(fmt.Errorf("parse %s: %w", file, err))
		}
	}
	s.log.WithContext(ctx).Debugw("document read", "id", docID, "file", file, "bytes", len(data))
	return doc, nil
}

func (s *Source) locate(docID string) (string, error) {
	if docID == "" || strings.ContainsAny(docID, `/\`) {
		return "", apperror.NewValidation(fmt.Sprintf("invalid document id %q", docID))
	}
	for _, ext := range Extensions {
		file := path.Join(s.dir, docID+ext)
		ok, err := vfs.FileExists(s.fs, file)
		if err != nil {
			return "", apperror.NewMetadataLoad(fmt.Errorf("stat %s: %w", file, err))
		}
		if ok {
			return file, nil
		}
	}
	return "", apperror.NewDocumentMissing(docID)
}

// Put writes doc as YAML, replacing any existing file of docID, and notifies
// subscribers.
func (s *Source) Put(ctx context.Context, docID string, doc map[string]any) error {
	if docID == "" || strings.ContainsAny(docID, `/\`) {
		return apperror.NewValidation(fmt.Sprintf("invalid document id %q", docID))
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", docID, err)
	}
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil && !errors.Is(err, vfs.ErrExist) {
		return fmt.Errorf("create %s: %w", s.dir, err)
	}
	for _, ext := range Extensions {
		if ext == ".yaml" {
			continue
		}
		if err := s.fs.Remove(path.Join(s.dir, docID+ext)); err != nil && !errors.Is(err, vfs.ErrNotExist) {
			return fmt.Errorf("remove stale %s%s: %w", docID, ext, err)
		}
	}
	file := path.Join(s.dir, docID+".yaml")
	if err := vfs.WriteFile(s.fs, file, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", file, err)
	}
	s.log.WithContext(ctx).Infow("document written", "id", docID, "file", file)
	s.Notify(ctx, path.Base(file))
	return nil
}

// List returns the document ids present in the directory.
func (s *Source) List(context.Context) ([]string, error) {
	entries, err := vfs.ReadDir(s.fs, s.dir)
	if err != nil {
		if errors.Is(err, vfs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	seen := make(map[string]struct{})
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		docID, ok := DocumentID(e.Name())
		if !ok {
			continue
		}
		if _, dup := seen[docID]; dup {
			continue
		}
		seen[docID] = struct{}{}
		ids = append(ids, docID)
	}
	sort.Strings(ids)
	return ids, nil
}

// DocumentID maps a file name to its document id.
func DocumentID(name string) (string, bool) {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	ext := path.Ext(base)
	for _, known := range Extensions {
		if ext == known {
			docID := strings.TrimSuffix(base, ext)
			return docID, docID != ""
		}
	}
	return "", false
}

// Subscribe implements metadata.DocumentSource.
func (s *Source) Subscribe(h metadata.ChangeHandler) func() {
	s.handlersMu.Lock()
	key := s.nextID
	s.nextID++
	s.handlers[key] = h
	s.handlersMu.Unlock()

	return func() {
		s.handlersMu.Lock()
		delete(s.handlers, key)
		s.handlersMu.Unlock()
	}
}

// Notify reports a change of file name to subscribers. Names that do not map
// to a document id are ignored.
func (s *Source) Notify(ctx context.Context, name string) {
	docID, ok := DocumentID(name)
	if !ok {
		return
	}
	deleted := false
	if _, err := s.locate(docID); apperror.IsDocumentMissing(err) {
		deleted = true
	}
	s.dispatch(ctx, metadata.ChangeEvent{ID: docID, Deleted: deleted})
}

func (s *Source) dispatch(ctx context.Context, ev metadata.ChangeEvent) {
	s.handlersMu.RLock()
	handlers := make([]metadata.ChangeHandler, 0, len(s.handlers))
	for _, h := range s.handlers {
		handlers = append(handlers, h)
	}
	s.handlersMu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.log.WithContext(ctx).Errorw("change handler panic recovered", "id", ev.ID, "panic", r)
				}
			}()
			h(ctx, ev)
		}()
	}
}
