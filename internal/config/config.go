// Package config loads service configuration with koanf: defaults, then
// metaschema.yaml, then METASCHEMA_* environment variables, then flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"metaschema/internal/metadata/ddl"
)

const (
	// FileName is the config file looked up in the working directory.
	FileName = "metaschema.yaml"
	// EnvPrefix prefixes environment overrides: METASCHEMA_SOURCE_DSN -> source.dsn.
	EnvPrefix = "METASCHEMA_"
)

// Source kinds.
const (
	SourcePostgres = "postgres"
	SourceFile     = "file"
	SourceEmbedded = "embedded"
)

// Config is the full service configuration.
type Config struct {
	Log    LogConfig    `koanf:"log"`
	Source SourceConfig `koanf:"source"`
	HTTP   HTTPConfig   `koanf:"http"`
	DDL    DDLConfig    `koanf:"ddl"`
}

type LogConfig struct {
	Level       string `koanf:"level"`
	Development bool   `koanf:"development"`
}

// SourceConfig selects where metadata documents come from.
type SourceConfig struct {
	Kind              string `koanf:"kind"`
	DSN               string `koanf:"dsn"`
	Dir               string `koanf:"dir"`
	Watch             bool   `koanf:"watch"`
	Table             string `koanf:"table"`
	Channel           string `koanf:"channel"`
	CompressThreshold int    `koanf:"compress_threshold"`
	MaxConns          int32  `koanf:"max_conns"`
}

type HTTPConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DDLConfig controls script generation.
type DDLConfig struct {
	Dialect string `koanf:"dialect"`
	Output  string `koanf:"output"`
	Dir     string `koanf:"dir"`
	// Compress appends .zst to the output and stores a zstd frame.
	Compress bool `koanf:"compress"`
}

// OutputPath returns the artifact path honoring Compress.
func (c DDLConfig) OutputPath() string {
	out := c.Output
	if out == "" {
		out = ddl.DefaultOutput
	}
	if c.Compress && !strings.HasSuffix(out, ".zst") {
		out += ".zst"
	}
	return out
}

// ParsedDialect returns the configured SQL dialect.
func (c DDLConfig) ParsedDialect() ddl.Dialect {
	d, _ := ddl.ParseDialect(c.Dialect)
	return d
}

func defaults() map[string]any {
	return map[string]any{
		"log.level":                 "info",
		"log.development":           false,
		"source.kind":               SourceEmbedded,
		"source.dir":                "metadata",
		"source.watch":              true,
		"source.table":              "sys_metadata",
		"source.channel":            "metadata_changed",
		"source.compress_threshold": 64 * 1024,
		"source.max_conns":          8,
		"http.addr":                 ":8080",
		"http.read_timeout":         "15s",
		"http.write_timeout":        "30s",
		"http.shutdown_timeout":     "30s",
		"ddl.dialect":               "postgres",
		"ddl.output":                ddl.DefaultOutput,
		"ddl.dir":                   ".",
		"ddl.compress":              false,
	}
}

// RegisterFlags declares the flags Load understands. Flag names are the
// config keys with the section separated by a dash: --source-dsn.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file (default ./"+FileName+")")
	fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.Bool("log-development", false, "human-readable log output")
	fs.String("source-kind", SourceEmbedded, "metadata source: postgres, file or embedded")
	fs.String("source-dsn", "", "PostgreSQL connection string")
	fs.String("source-dir", "metadata", "directory of metadata documents")
	fs.Bool("source-watch", true, "follow changes of the file source")
	fs.String("http-addr", ":8080", "HTTP listen address")
	fs.String("ddl-dialect", "postgres", "SQL dialect: postgres or legacy")
	fs.String("ddl-output", ddl.DefaultOutput, "DDL script path")
	fs.String("ddl-dir", ".", "directory DDL scripts are written to")
	fs.Bool("ddl-compress", false, "write the DDL script as zstd")
}

// Load reads the configuration. cfgFile may be empty; an explicitly named file
// must exist. flags may be nil; only flags that were set override.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if cfgFile == "" && flags != nil {
		cfgFile, _ = flags.GetString("config")
	}
	path, err := findConfigFile(cfgFile)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			return flagKey(f.Name), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func findConfigFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file %s: %w", explicit, err)
		}
		return explicit, nil
	}
	if _, err := os.Stat(FileName); err == nil {
		return FileName, nil
	}
	return "", nil
}

// envKey maps METASCHEMA_HTTP_READ_TIMEOUT to http.read_timeout.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, rest, ok := strings.Cut(key, "_")
	if !ok {
		return key
	}
	return section + "." + rest
}

// flagKey maps --source-compress-threshold to source.compress_threshold.
func flagKey(name string) string {
	section, rest, ok := strings.Cut(name, "-")
	if !ok {
		return name
	}
	return section + "." + strings.ReplaceAll(rest, "-", "_")
}

// Validate checks the combination of settings.
func (c *Config) Validate() error {
	var errs []error
	switch c.Source.Kind {
	case SourcePostgres:
		if c.Source.DSN == "" {
			errs = append(errs, errors.New("source.dsn is required for the postgres source"))
		}
	case SourceFile:
		if c.Source.Dir == "" {
			errs = append(errs, errors.New("source.dir is required for the file source"))
		}
	case SourceEmbedded:
	default:
		errs = append(errs, fmt.Errorf("unknown source.kind %q", c.Source.Kind))
	}
	if _, err := ddl.ParseDialect(c.DDL.Dialect); err != nil {
		errs = append(errs, fmt.Errorf("ddl.dialect: %w", err))
	}
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	return errors.Join(errs...)
}
