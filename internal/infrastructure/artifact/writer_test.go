package artifact

import (
	"context"
	"strings"
	"testing"

	"github.com/mandelsoft/vfs/pkg/memoryfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metaschema/internal/infrastructure/codec"
	"metaschema/internal/metadata/ddl"
	"metaschema/internal/metadata/metatest"
	"metaschema/pkg/logger"
)

func TestWriter_Plain(t *testing.T) {
	mem := memoryfs.New()
	w := NewWriter("/out", WithFileSystem(mem), WithLogger(logger.Nop()))

	require.NoError(t, w.Write(context.Background(), "sql/create_tables.sql", []byte("CREATE TABLE x ();")))

	data, err := vfs.ReadFile(mem, "/out/sql/create_tables.sql")
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE x ();", string(data))

	tmp, err := vfs.FileExists(mem, "/out/sql/create_tables.sql.tmp")
	require.NoError(t, err)
	assert.False(t, tmp)

	require.NoError(t, w.Write(context.Background(), "/abs.sql", []byte("y")))
	data, err = w.Read("/abs.sql")
	require.NoError(t, err)
	assert.Equal(t, "y", string(data))
}

func TestWriter_Overwrite(t *testing.T) {
	mem := memoryfs.New()
	w := NewWriter("/out", WithFileSystem(mem), WithLogger(logger.Nop()))

	require.NoError(t, w.Write(context.Background(), "schema.sql", []byte("first, longer script")))
	require.NoError(t, w.Write(context.Background(), "schema.sql", []byte("second")))

	data, err := w.Read("schema.sql")
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	tmp, err := vfs.FileExists(mem, "/out/schema.sql.tmp")
	require.NoError(t, err)
	assert.False(t, tmp)
}

func TestWriter_Compressed(t *testing.T) {
	z, err := codec.NewZstd()
	require.NoError(t, err)
	mem := memoryfs.New()
	w := NewWriter("/out", WithFileSystem(mem), WithCodec(z), WithLogger(logger.Nop()))

	script := []byte("CREATE TABLE IF NOT EXISTS cat_units (ref uuid PRIMARY KEY NOT NULL);")
	require.NoError(t, w.Write(context.Background(), "ddl.sql.zst", script))

	raw, err := vfs.ReadFile(mem, "/out/ddl.sql.zst")
	require.NoError(t, err)
	assert.NotEqual(t, script, raw)

	back, err := w.Read("ddl.sql.zst")
	require.NoError(t, err)
	assert.Equal(t, script, back)
}

func TestWriter_Errors(t *testing.T) {
	w := NewWriter("/out", WithFileSystem(memoryfs.New()), WithLogger(logger.Nop()))

	assert.Error(t, w.Write(context.Background(), "", []byte("x")))
	assert.Error(t, w.Write(context.Background(), "x.sql.zst", []byte("x")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, w.Write(ctx, "x.sql", []byte("x")), context.Canceled)
}

func TestWriter_GeneratorArtifact(t *testing.T) {
	mem := memoryfs.New()
	w := NewWriter("/out", WithFileSystem(mem), WithLogger(logger.Nop()))
	gen := ddl.NewGenerator(metatest.Store(), ddl.WithArtifactWriter(w), ddl.WithGeneratorLogger(logger.Nop()))

	opts := ddl.Options{Dialect: ddl.Postgres}
	require.NoError(t, <-gen.GenerateAsync(context.Background(), opts, nil))

	data, err := w.Read(ddl.DefaultOutput)
	require.NoError(t, err)
	assert.Contains(t, string(data), "CREATE TABLE IF NOT EXISTS cat_nom")
	assert.Contains(t, string(data), "CREATE TABLE IF NOT EXISTS doc_calc_order")

	require.NoError(t, <-gen.GenerateAsync(context.Background(), ddl.Options{Dialect: ddl.Legacy}, nil))

	data, err = w.Read(ddl.DefaultOutput)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "USE md; "))
}
