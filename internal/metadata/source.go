package metadata

import "context"

// Document ids in the persistent store.
const (
	DocMeta      = "meta"
	DocMetaPatch = "meta_patch"
)

// ChangeEvent reports a change of one document in the persistent store.
type ChangeEvent struct {
	ID      string
	Deleted bool
}

// ChangeHandler receives change events. It runs on the source's delivery goroutine.
type ChangeHandler func(ctx context.Context, ev ChangeEvent)

// DocumentSource is a persistent store holding the metadata documents.
type DocumentSource interface {
	// Info is a readiness probe.
	Info(ctx context.Context) error

	// Get returns the document with the given id as a generic JSON object.
	// A missing document is reported with apperror.CodeDocumentMissing.
	Get(ctx context.Context, id string) (map[string]any, error)

	// Subscribe registers h for change events and returns the unsubscribe func.
	Subscribe(h ChangeHandler) (unsubscribe func())
}
