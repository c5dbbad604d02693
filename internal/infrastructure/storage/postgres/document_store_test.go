package postgres

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metaschema/internal/core/apperror"
	"metaschema/internal/infrastructure/codec"
	"metaschema/internal/metadata"
	"metaschema/pkg/logger"
)

var documentColumns = []string{"id", "body", "body_compressed", "compression_algo", "rev"}

func newTestStore(t *testing.T, db *fakeDB, opts ...StoreOption) (*DocumentStore, *passTx) {
	t.Helper()
	z, err := codec.NewZstd()
	require.NoError(t, err)
	txm := &passTx{}
	opts = append([]StoreOption{WithStoreLogger(logger.Nop())}, opts...)
	return NewDocumentStore(db, txm, z, opts...), txm
}

func TestDocumentStore_GetPlain(t *testing.T) {
	db := newFakeDB()
	db.on("FROM sys_metadata", documentColumns,
		[]any{"meta", []byte(`{"cat":{"nom":{"name":"Номенклатура"}}}`), nil, "none", int64(3)})
	s, _ := newTestStore(t, db)

	doc, err := s.Get(context.Background(), metadata.DocMeta)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"cat": map[string]any{"nom": map[string]any{"name": "Номенклатура"}}}, doc)

	require.Len(t, db.queries, 1)
	assert.Contains(t, db.queries[0].sql, "WHERE id = $1")
	assert.Equal(t, []any{metadata.DocMeta}, db.queries[0].args)
}

func TestDocumentStore_GetCompressed(t *testing.T) {
	z, err := codec.NewZstd()
	require.NoError(t, err)

	db := newFakeDB()
	db.on("FROM sys_metadata", documentColumns,
		[]any{"meta", nil, z.Compress([]byte(`{"enm":{"order_status":[]}}`)), "zstd", int64(1)})
	s, _ := newTestStore(t, db)

	doc, err := s.Get(context.Background(), metadata.DocMeta)
	require.NoError(t, err)
	assert.Contains(t, doc, "enm")
}

func TestDocumentStore_GetEmptyBody(t *testing.T) {
	db := newFakeDB()
	db.on("FROM sys_metadata", documentColumns, []any{"meta_patch", nil, nil, "none", int64(1)})
	s, _ := newTestStore(t, db)

	doc, err := s.Get(context.Background(), metadata.DocMetaPatch)
	require.NoError(t, err)
	assert.Empty(t, doc)
	assert.NotNil(t, doc)
}

func TestDocumentStore_GetMissing(t *testing.T) {
	s, _ := newTestStore(t, newFakeDB())

	_, err := s.Get(context.Background(), metadata.DocMetaPatch)
	require.Error(t, err)
	assert.True(t, apperror.IsDocumentMissing(err))
}

func TestDocumentStore_GetUnknownAlgo(t *testing.T) {
	db := newFakeDB()
	db.on("FROM sys_metadata", documentColumns, []any{"meta", nil, []byte{1}, "lz4", int64(1)})
	s, _ := newTestStore(t, db)

	_, err := s.Get(context.Background(), metadata.DocMeta)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeMetadataLoad))
}

func TestDocumentStore_Info(t *testing.T) {
	db := newFakeDB()
	s, _ := newTestStore(t, db)
	assert.NoError(t, s.Info(context.Background()))

	db.pingErr = errors.New("connection refused")
	assert.Error(t, s.Info(context.Background()))
}

func TestDocumentStore_PutNotifies(t *testing.T) {
	db := newFakeDB()
	s, txm := newTestStore(t, db)

	err := s.Put(context.Background(), metadata.DocMeta, map[string]any{"cat": map[string]any{}})
	require.NoError(t, err)
	assert.Equal(t, 1, txm.calls)

	require.Len(t, db.execs, 2)
	upsert := db.execs[0]
	assert.Contains(t, upsert.sql, "INSERT INTO sys_metadata")
	assert.Contains(t, upsert.sql, "ON CONFLICT (id) DO UPDATE")
	assert.Contains(t, upsert.sql, "rev = sys_metadata.rev + 1")
	require.Len(t, upsert.args, 4)
	assert.Equal(t, metadata.DocMeta, upsert.args[0])
	assert.Equal(t, `{"cat":{}}`, upsert.args[1])
	assert.Nil(t, upsert.args[2])
	assert.Equal(t, "none", upsert.args[3])

	notify := db.execs[1]
	assert.Equal(t, "SELECT pg_notify($1, $2)", notify.sql)
	assert.Equal(t, []any{DefaultChannel, `{"id":"meta"}`}, notify.args)
}

func TestDocumentStore_PutCompressesLargeBodies(t *testing.T) {
	db := newFakeDB()
	s, _ := newTestStore(t, db, WithCompressThreshold(16))

	err := s.Put(context.Background(), metadata.DocMeta, map[string]any{
		"cat": map[string]any{"nom": strings.Repeat("x", 256)},
	})
	require.NoError(t, err)

	upsert := db.execs[0]
	assert.Nil(t, upsert.args[1])
	packed, ok := upsert.args[2].([]byte)
	require.True(t, ok)
	assert.NotEmpty(t, packed)
	assert.Equal(t, "zstd", upsert.args[3])
}

func TestDocumentStore_PutFailureSkipsNotify(t *testing.T) {
	db := newFakeDB()
	db.execErr = errors.New("disk full")
	s, _ := newTestStore(t, db)

	err := s.Put(context.Background(), metadata.DocMeta, map[string]any{})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeDatabase))
	assert.Len(t, db.execs, 1)
}

func TestDocumentStore_PublishInIDOrder(t *testing.T) {
	db := newFakeDB()
	s, _ := newTestStore(t, db, WithTable("md_docs"), WithChannel("md_changed"))

	err := s.Publish(context.Background(), map[string]map[string]any{
		metadata.DocMetaPatch: {},
		metadata.DocMeta:      {},
	})
	require.NoError(t, err)

	sqls := db.execSQL()
	require.Len(t, sqls, 4)
	assert.Contains(t, sqls[0], "INSERT INTO md_docs")
	assert.Equal(t, metadata.DocMeta, db.execs[0].args[0])
	assert.Equal(t, metadata.DocMetaPatch, db.execs[2].args[0])
	assert.Equal(t, "md_changed", db.execs[3].args[0])
}

func TestDocumentStore_Delete(t *testing.T) {
	db := newFakeDB()
	db.tag = "DELETE 1"
	s, _ := newTestStore(t, db)

	require.NoError(t, s.Delete(context.Background(), metadata.DocMetaPatch))
	require.Len(t, db.execs, 2)
	assert.Equal(t, `{"id":"meta_patch","deleted":true}`, db.execs[1].args[1])

	db.tag = "DELETE 0"
	err := s.Delete(context.Background(), "nothing")
	assert.True(t, apperror.IsNotFound(err))
}

func TestDocumentStore_List(t *testing.T) {
	db := newFakeDB()
	db.on("octet_length", []string{"id", "rev", "compression_algo", "size"},
		[]any{"meta", int64(4), "zstd", int64(1024)},
		[]any{"meta_patch", int64(1), "none", int64(2)},
	)
	s, _ := newTestStore(t, db)

	items, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []DocumentInfo{
		{ID: "meta", Rev: 4, CompressionAlgo: "zstd", Size: 1024},
		{ID: "meta_patch", Rev: 1, CompressionAlgo: "none", Size: 2},
	}, items)
}

func TestDocumentStore_HandleNotification(t *testing.T) {
	s, _ := newTestStore(t, newFakeDB())

	var got []metadata.ChangeEvent
	unsubscribe := s.Subscribe(func(_ context.Context, ev metadata.ChangeEvent) {
		got = append(got, ev)
	})
	s.Subscribe(func(context.Context, metadata.ChangeEvent) { panic("boom") })

	ctx := context.Background()
	s.HandleNotification(ctx, `{"id":"meta"}`)
	s.HandleNotification(ctx, `{"id":"meta_patch","deleted":true}`)
	s.HandleNotification(ctx, " meta \n")
	s.HandleNotification(ctx, "")

	assert.Equal(t, []metadata.ChangeEvent{
		{ID: "meta"},
		{ID: "meta_patch", Deleted: true},
		{ID: "meta"},
	}, got)

	unsubscribe()
	s.HandleNotification(ctx, "meta")
	assert.Len(t, got, 3)
}

func TestDocumentStore_FeedsMetadataStore(t *testing.T) {
	db := newFakeDB()
	db.on("FROM sys_metadata", documentColumns,
		[]any{"meta", []byte(`{"cat":{"nom":{"name":"Номенклатура","fields":{}}}}`), nil, "none", int64(1)})
	s, _ := newTestStore(t, db)

	var reloads atomic.Int32
	store := metadata.NewStore(metadata.WithLogger(logger.Nop()), metadata.WithReloadHook(func() { reloads.Add(1) }))
	require.NoError(t, store.Init(context.Background(), s))
	assert.NotNil(t, store.Get("cat.nom"))

	s.HandleNotification(context.Background(), `{"id":"meta"}`)
	assert.Equal(t, int32(1), reloads.Load())

	s.HandleNotification(context.Background(), `{"id":"meta_patch"}`)
	assert.Equal(t, int32(1), reloads.Load())
}
