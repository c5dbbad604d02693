package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metaschema/internal/infrastructure/artifact"
	"metaschema/internal/infrastructure/codec"
	"metaschema/internal/infrastructure/filestore"
	"metaschema/internal/metadata"
	"metaschema/pkg/logger"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--log-level", "error"))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestClasses(t *testing.T) {
	t.Chdir(t.TempDir())

	out, err := execute(t, "classes", "--kind", "cat")
	require.NoError(t, err)
	assert.Contains(t, out, "CLASS")
	assert.Contains(t, out, "cat.nom")
	assert.Contains(t, out, "cat_nom")
	assert.Contains(t, out, "Справочник.Номенклатура")
	assert.NotContains(t, out, "doc.calc_order")
}

func TestName(t *testing.T) {
	t.Chdir(t.TempDir())

	out, err := execute(t, "name", "to-external", "cat.nom", "calc_order")
	require.NoError(t, err)
	assert.Equal(t, "cat.nom\tСправочник.Номенклатура\ncalc_order\tРасчетЗаказ\n", out)

	out, err = execute(t, "name", "to-internal", "Документ.РасчетЗаказ")
	require.NoError(t, err)
	assert.Equal(t, "Документ.РасчетЗаказ\tdoc.calc_order\n", out)

	_, err = execute(t, "name", "to-internal")
	assert.Error(t, err)
}

func TestDDL(t *testing.T) {
	t.Chdir(t.TempDir())

	out, err := execute(t, "ddl", "--stdout")
	require.NoError(t, err)
	assert.Contains(t, out, "CREATE TABLE IF NOT EXISTS cat_nom")
	assert.Contains(t, out, "CREATE TABLE IF NOT EXISTS doc_calc_order")

	out, err = execute(t, "ddl", "--class", "enm.order_status")
	require.NoError(t, err)
	assert.Contains(t, out, "enm_order_status")
	assert.NotContains(t, out, "cat_nom")

	_, err = execute(t, "ddl", "--class", "cat.missing")
	assert.ErrorContains(t, err, "unknown class")

	_, err = execute(t, "ddl", "--ddl-dialect", "oracle")
	assert.Error(t, err)
}

func TestDDL_WritesCompressedArtifact(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()

	out, err := execute(t, "ddl", "--ddl-dir", dir, "--ddl-dialect", "legacy", "--ddl-compress")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, "create_tables.sql.zst"))

	z, err := codec.NewZstd()
	require.NoError(t, err)
	data, err := artifact.NewWriter(dir, artifact.WithCodec(z), artifact.WithLogger(logger.Nop())).Read("create_tables.sql.zst")
	require.NoError(t, err)
	assert.Contains(t, string(data), "USE md; ")
}

func TestExportThenDryRunPublish(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()

	out, err := execute(t, "export", "--to", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "exported to "+dir)
	assert.FileExists(t, filepath.Join(dir, "meta.yaml"))
	assert.FileExists(t, filepath.Join(dir, "meta_patch.yaml"))

	out, err = execute(t, "publish", "--from", dir, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "valid "+dir)
	assert.Contains(t, out, "4 synonyms")

	_, err = execute(t, "publish", "--from", dir)
	assert.ErrorContains(t, err, "publish needs --source-kind postgres")
}

type recordingPublisher struct {
	ensured bool
	docs    map[string]map[string]any
}

func (p *recordingPublisher) EnsureSchema(context.Context) error {
	p.ensured = true
	return nil
}

func (p *recordingPublisher) Publish(_ context.Context, docs map[string]map[string]any) error {
	p.docs = docs
	return nil
}

func TestPublish(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	files := filestore.New(dir, filestore.WithLogger(logger.Nop()))
	require.NoError(t, files.Put(ctx, metadata.DocMeta, map[string]any{
		"cat": map[string]any{"nom": map[string]any{"synonym": "Номенклатура"}},
	}))

	dst := &recordingPublisher{}
	schema, err := publish(ctx, files, dst)
	require.NoError(t, err)
	assert.True(t, dst.ensured)
	assert.Equal(t, map[string]any{}, dst.docs[metadata.DocMetaPatch], "missing patch is published empty")
	assert.Contains(t, dst.docs[metadata.DocMeta], "cat")
	assert.NotNil(t, schema.Class(metadata.KindCatalog, "nom"))

	empty := filestore.New(t.TempDir(), filestore.WithLogger(logger.Nop()))
	_, err = publish(ctx, empty, &recordingPublisher{})
	assert.Error(t, err)
}
