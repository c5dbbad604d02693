package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"metaschema/internal/core/apperror"
	"metaschema/internal/core/tx"
	"metaschema/internal/infrastructure/codec"
	"metaschema/internal/metadata"
	"metaschema/pkg/logger"
)

const (
	// DefaultTable holds the metadata documents.
	DefaultTable = "sys_metadata"
	// DefaultChannel carries change notifications.
	DefaultChannel = "metadata_changed"

	defaultCompressThreshold = 64 * 1024
)

var _ metadata.DocumentSource = (*DocumentStore)(nil)

// documentRow is one stored document. Large bodies are kept zstd-compressed
// in body_compressed with body left NULL.
type documentRow struct {
	ID              string `db:"id"`
	Body            []byte `db:"body"`
	BodyCompressed  []byte `db:"body_compressed"`
	CompressionAlgo string `db:"compression_algo"`
	Rev             int64  `db:"rev"`
}

// DocumentInfo describes a stored document without its body.
type DocumentInfo struct {
	ID              string `db:"id" json:"id"`
	Rev             int64  `db:"rev" json:"rev"`
	CompressionAlgo string `db:"compression_algo" json:"compression_algo"`
	Size            int64  `db:"size" json:"size"`
}

// changePayload is the NOTIFY payload.
type changePayload struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted,omitempty"`
}

// DocumentStore keeps metadata documents in PostgreSQL and fans out
// LISTEN/NOTIFY change events to subscribers.
type DocumentStore struct {
	db      QuerierProvider
	txm     tx.Manager
	zstd    *codec.Zstd
	builder squirrel.StatementBuilderType
	log     *logger.Logger

	table             string
	channel           string
	compressThreshold int

	handlersMu sync.RWMutex
	handlers   map[int]metadata.ChangeHandler
	nextID     int
}

// StoreOption configures a DocumentStore.
type StoreOption func(*DocumentStore)

// WithTable overrides the document table. Empty keeps the default.
func WithTable(name string) StoreOption {
	return func(s *DocumentStore) {
		if name != "" {
			s.table = name
		}
	}
}

// WithChannel overrides the notification channel. Empty keeps the default.
func WithChannel(name string) StoreOption {
	return func(s *DocumentStore) {
		if name != "" {
			s.channel = name
		}
	}
}

// WithCompressThreshold sets the body size above which bodies are compressed.
// Zero keeps the default.
func WithCompressThreshold(n int) StoreOption {
	return func(s *DocumentStore) {
		if n > 0 {
			s.compressThreshold = n
		}
	}
}

// WithStoreLogger sets the logger.
func WithStoreLogger(l *logger.Logger) StoreOption {
	return func(s *DocumentStore) { s.log = l }
}

// NewDocumentStore creates a document store.
func NewDocumentStore(db QuerierProvider, txm tx.Manager, z *codec.Zstd, opts ...StoreOption) *DocumentStore {
	s := &DocumentStore{
		db:                db,
		txm:               txm,
		zstd:              z,
		builder:           squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		table:             DefaultTable,
		channel:           DefaultChannel,
		compressThreshold: defaultCompressThreshold,
		handlers:          make(map[int]metadata.ChangeHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Default()
	}
	s.log = s.log.WithComponent("metadata-store")
	return s
}

// Channel returns the notification channel.
func (s *DocumentStore) Channel() string { return s.channel }

// EnsureSchema creates the document table.
func (s *DocumentStore) EnsureSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id text PRIMARY KEY,
		body jsonb,
		body_compressed bytea,
		compression_algo text NOT NULL DEFAULT 'none',
		rev bigint NOT NULL DEFAULT 1,
		updated_at timestamp with time zone NOT NULL DEFAULT now()
	)`, s.table)
	if _, err := s.db.GetQuerier(ctx).Exec(ctx, stmt); err != nil {
		return apperror.NewDatabase(fmt.Errorf("create %s: %w", s.table, err))
	}
	return nil
}

// Info implements metadata.DocumentSource.
func (s *DocumentStore) Info(ctx context.Context) error {
	var one int
	if err := s.db.GetQuerier(ctx).QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("ping metadata store: %w", err)
	}
	return nil
}

// Get implements metadata.DocumentSource.
func (s *DocumentStore) Get(ctx context.Context, docID string) (map[string]any, error) {
	query, args, err := s.builder.
		Select("id", "body", "body_compressed", "compression_algo", "rev").
		From(s.table).
		Where(squirrel.Eq{"id": docID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var row documentRow
	if err := pgxscan.Get(ctx, s.db.GetQuerier(ctx), &row, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewDocumentMissing(docID)
		}
		return nil, apperror.NewDatabase(fmt.Errorf("get %s: %w", docID, err))
	}

	body, err := s.decodeBody(row)
	if err != nil {
		return nil, apperror.NewMetadataLoad(fmt.Errorf("document %s: %w", docID, err))
	}
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, apperror.NewMetadataLoad(fmt.Errorf("document %s: %w", docID, err))
	}
	if doc == nil {
		doc = make(map[string]any)
	}
	s.log.WithContext(ctx).Debugw("document fetched", "id", docID, "rev", row.Rev, "algo", row.CompressionAlgo)
	return doc, nil
}

func (s *DocumentStore) decodeBody(row documentRow) ([]byte, error) {
	switch codec.Algo(row.CompressionAlgo) {
	case codec.AlgoZstd:
		if s.zstd == nil {
			return nil, errors.New("compressed body but no codec configured")
		}
		return s.zstd.Decompress(row.BodyCompressed)
	case codec.AlgoNone, "":
		if len(row.Body) == 0 {
			return []byte("{}"), nil
		}
		return row.Body, nil
	default:
		return nil, fmt.Errorf("unknown compression %q", row.CompressionAlgo)
	}
}

// List returns the stored documents ordered by id.
func (s *DocumentStore) List(ctx context.Context) ([]DocumentInfo, error) {
	query, args, err := s.builder.
		Select("id", "rev", "compression_algo",
			"COALESCE(octet_length(body::text), octet_length(body_compressed), 0) AS size").
		From(s.table).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []DocumentInfo
	if err := pgxscan.Select(ctx, s.db.GetQuerier(ctx), &items, query, args...); err != nil {
		return nil, apperror.NewDatabase(fmt.Errorf("list documents: %w", err))
	}
	return items, nil
}

// Put upserts a document and notifies subscribers in the same transaction.
func (s *DocumentStore) Put(ctx context.Context, docID string, doc map[string]any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return apperror.NewValidation(fmt.Sprintf("document %s is not JSON: %v", docID, err))
	}

	var body, packed any
	algo := codec.AlgoNone
	if s.zstd != nil && s.compressThreshold > 0 && len(raw) > s.compressThreshold {
		packed = s.zstd.Compress(raw)
		algo = codec.AlgoZstd
	} else {
		body = string(raw)
	}

	query, args, err := s.builder.
		Insert(s.table).
		Columns("id", "body", "body_compressed", "compression_algo").
		Values(docID, body, packed, string(algo)).
		Suffix(fmt.Sprintf("ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body, "+
			"body_compressed = EXCLUDED.body_compressed, compression_algo = EXCLUDED.compression_algo, "+
			"rev = %s.rev + 1, updated_at = now()", s.table)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		q := s.db.GetQuerier(ctx)
		if _, err := q.Exec(ctx, query, args...); err != nil {
			return apperror.NewDatabase(fmt.Errorf("put %s: %w", docID, err))
		}
		if err := s.notify(ctx, q, changePayload{ID: docID}); err != nil {
			return err
		}
		s.log.WithContext(ctx).Infow("document stored", "id", docID, "bytes", len(raw), "algo", string(algo))
		return nil
	})
}

// Publish stores several documents atomically, in id order.
func (s *DocumentStore) Publish(ctx context.Context, docs map[string]map[string]any) error {
	ids := make([]string, 0, len(docs))
	for docID := range docs {
		ids = append(ids, docID)
	}
	sort.Strings(ids)

	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, docID := range ids {
			if err := s.Put(ctx, docID, docs[docID]); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes a document.
func (s *DocumentStore) Delete(ctx context.Context, docID string) error {
	query, args, err := s.builder.Delete(s.table).Where(squirrel.Eq{"id": docID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		q := s.db.GetQuerier(ctx)
		tag, err := q.Exec(ctx, query, args...)
		if err != nil {
			return apperror.NewDatabase(fmt.Errorf("delete %s: %w", docID, err))
		}
		if tag.RowsAffected() == 0 {
			return apperror.NewNotFound("metadata document", docID)
		}
		return s.notify(ctx, q, changePayload{ID: docID, Deleted: true})
	})
}

func (s *DocumentStore) notify(ctx context.Context, q Querier, p changePayload) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if _, err := q.Exec(ctx, "SELECT pg_notify($1, $2)", s.channel, string(payload)); err != nil {
		return apperror.NewDatabase(fmt.Errorf("notify %s: %w", s.channel, err))
	}
	return nil
}

// Subscribe implements metadata.DocumentSource.
func (s *DocumentStore) Subscribe(h metadata.ChangeHandler) func() {
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

// HandleNotification decodes a NOTIFY payload and delivers it to every
// subscriber. A payload that is not JSON is taken as a bare document id.
func (s *DocumentStore) HandleNotification(ctx context.Context, payload string) {
	var ev metadata.ChangeEvent
	var p changePayload
	if err := json.Unmarshal([]byte(payload), &p); err == nil && p.ID != "" {
		ev = metadata.ChangeEvent{ID: p.ID, Deleted: p.Deleted}
	} else {
		ev = metadata.ChangeEvent{ID: strings.TrimSpace(payload)}
	}
	if ev.ID == "" {
		return
	}

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
