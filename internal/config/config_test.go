package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metaschema/internal/metadata/ddl"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, SourceEmbedded, cfg.Source.Kind)
	assert.Equal(t, "sys_metadata", cfg.Source.Table)
	assert.Equal(t, 64*1024, cfg.Source.CompressThreshold)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 15*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, ddl.Postgres, cfg.DDL.ParsedDialect())
	assert.Equal(t, ddl.DefaultOutput, cfg.DDL.OutputPath())
}

func TestLoad_Precedence(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
source:
  kind: file
  dir: /srv/md
http:
  addr: ":9000"
  read_timeout: 5s
ddl:
  dialect: legacy
  compress: true
`)
	t.Setenv("METASCHEMA_HTTP_ADDR", ":9100")
	t.Setenv("METASCHEMA_SOURCE_COMPRESS_THRESHOLD", "1024")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse([]string{"--http-addr=:9200", "--source-dir=/opt/md"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, SourceFile, cfg.Source.Kind)
	assert.Equal(t, "/opt/md", cfg.Source.Dir)
	assert.Equal(t, 1024, cfg.Source.CompressThreshold)
	assert.Equal(t, ":9200", cfg.HTTP.Addr)
	assert.Equal(t, 5*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, ddl.Legacy, cfg.DDL.ParsedDialect())
	assert.Equal(t, ddl.DefaultOutput+".zst", cfg.DDL.OutputPath())
}

func TestLoad_UnsetFlagsDoNotOverride(t *testing.T) {
	path := writeConfig(t, "http:\n  addr: \":7000\"\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse(nil))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.HTTP.Addr)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "source:\n  kind: postgres\n"), nil)
	assert.ErrorContains(t, err, "source.dsn")

	_, err = Load(writeConfig(t, "source:\n  kind: redis\nddl:\n  dialect: oracle\n"), nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "source.kind")
	assert.ErrorContains(t, err, "ddl.dialect")
}

func TestKeyMapping(t *testing.T) {
	assert.Equal(t, "http.read_timeout", envKey("METASCHEMA_HTTP_READ_TIMEOUT"))
	assert.Equal(t, "source.dsn", envKey("METASCHEMA_SOURCE_DSN"))
	assert.Equal(t, "debug", envKey("METASCHEMA_DEBUG"))

	assert.Equal(t, "source.compress_threshold", flagKey("source-compress-threshold"))
	assert.Equal(t, "config", flagKey("config"))
}
