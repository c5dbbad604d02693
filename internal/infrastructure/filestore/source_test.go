package filestore

import (
	"context"
	"testing"

	"github.com/mandelsoft/vfs/pkg/memoryfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metaschema/internal/core/apperror"
	"metaschema/internal/metadata"
	"metaschema/pkg/logger"
)

func newMemSource(t *testing.T, files map[string]string) (*Source, vfs.FileSystem) {
	t.Helper()
	mem := memoryfs.New()
	require.NoError(t, mem.MkdirAll("/md", 0o755))
	for name, body := range files {
		require.NoError(t, vfs.WriteFile(mem, "/md/"+name, []byte(body), 0o644))
	}
	return New("/md", WithFileSystem(mem), WithLogger(logger.Nop())), mem
}

func TestSource_Info(t *testing.T) {
	s, _ := newMemSource(t, nil)
	assert.NoError(t, s.Info(context.Background()))

	missing := New("/nowhere", WithFileSystem(memoryfs.New()), WithLogger(logger.Nop()))
	assert.Error(t, missing.Info(context.Background()))
}

func TestSource_GetFormats(t *testing.T) {
	s, _ := newMemSource(t, map[string]string{
		"meta.json":       `{"cat":{"nom":{"synonym":"Номенклатура"}}}`,
		"meta_patch.yml":  "cat:\n  nom:\n    code_length: 11\n",
		"empty.yaml":      "",
		"broken.yaml":     "cat: [",
		"notes.txt":       "ignored",
		"meta_patch.yaml": "cat: {}\n",
	})
	ctx := context.Background()

	meta, err := s.Get(ctx, metadata.DocMeta)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"cat": map[string]any{"nom": map[string]any{"synonym": "Номенклатура"}}}, meta)

	// .yaml is probed before .yml
	patch, err := s.Get(ctx, metadata.DocMetaPatch)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"cat": map[string]any{}}, patch)

	empty, err := s.Get(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = s.Get(ctx, "broken")
	assert.True(t, apperror.HasCode(err, apperror.CodeMetadataLoad))

	_, err = s.Get(ctx, "notes")
	assert.True(t, apperror.IsDocumentMissing(err))

	_, err = s.Get(ctx, "../etc/passwd")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestSource_PutAndList(t *testing.T) {
	s, mem := newMemSource(t, map[string]string{"meta.json": `{}`})
	ctx := context.Background()

	var events []metadata.ChangeEvent
	s.Subscribe(func(_ context.Context, ev metadata.ChangeEvent) { events = append(events, ev) })

	require.NoError(t, s.Put(ctx, metadata.DocMeta, map[string]any{"enm": map[string]any{"order_status": map[string]any{}}}))
	require.NoError(t, s.Put(ctx, metadata.DocMetaPatch, map[string]any{}))

	exists, err := vfs.FileExists(mem, "/md/meta.json")
	require.NoError(t, err)
	assert.False(t, exists, "stale json replaced by yaml")

	got, err := s.Get(ctx, metadata.DocMeta)
	require.NoError(t, err)
	assert.Contains(t, got, "enm")

	ids, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{metadata.DocMeta, metadata.DocMetaPatch}, ids)

	assert.Equal(t, []metadata.ChangeEvent{{ID: metadata.DocMeta}, {ID: metadata.DocMetaPatch}}, events)
}

func TestSource_NotifyDeleted(t *testing.T) {
	s, mem := newMemSource(t, map[string]string{"meta.yaml": "{}"})

	var events []metadata.ChangeEvent
	unsubscribe := s.Subscribe(func(_ context.Context, ev metadata.ChangeEvent) { events = append(events, ev) })
	s.Subscribe(func(context.Context, metadata.ChangeEvent) { panic("boom") })

	require.NoError(t, mem.Remove("/md/meta.yaml"))
	s.Notify(context.Background(), "/md/meta.yaml")
	s.Notify(context.Background(), "/md/README.md")
	assert.Equal(t, []metadata.ChangeEvent{{ID: metadata.DocMeta, Deleted: true}}, events)

	unsubscribe()
	s.Notify(context.Background(), "meta.yaml")
	assert.Len(t, events, 1)
}

func TestDocumentID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		ok   bool
	}{
		{"meta.yaml", "meta", true},
		{"/srv/md/meta_patch.json", "meta_patch", true},
		{`C:\md\meta.yml`, "meta", true},
		{"meta.txt", "", false},
		{".yaml", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := DocumentID(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.id, id)
		})
	}
}

func TestEmbedded_LoadsIntoStore(t *testing.T) {
	src, err := NewEmbedded(WithLogger(logger.Nop()))
	require.NoError(t, err)

	store := metadata.NewStore(metadata.WithLogger(logger.Nop()))
	require.NoError(t, store.Init(context.Background(), src))

	nom := store.Get("cat.nom")
	require.NotNil(t, nom)
	assert.Equal(t, "Артикул поставщика", nom.Fields["article"].Synonym)
	assert.Equal(t, 11, nom.CodeLength)

	order := store.Get("doc.calc_order")
	require.NotNil(t, order)
	assert.Contains(t, order.Fields, "note")
	assert.Contains(t, order.Fields, "partner")

	assert.Equal(t, "РасчетЗаказ", store.Names().ToExternal("calc_order"))
	assert.NotNil(t, store.Get("ireg.prices"))
}
