// Package artifact writes generated scripts to a filesystem.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/mandelsoft/vfs/pkg/osfs"
	"github.com/mandelsoft/vfs/pkg/vfs"

	"metaschema/internal/infrastructure/codec"
	"metaschema/internal/metadata/ddl"
	"metaschema/pkg/logger"
)

// CompressedExt marks artifacts stored as zstd frames.
const CompressedExt = ".zst"

var _ ddl.ArtifactWriter = (*Writer)(nil)

// Writer stores artifacts below a base directory. Paths ending in .zst are
// compressed.
type Writer struct {
	fs   vfs.FileSystem
	base string
	zstd *codec.Zstd
	log  *logger.Logger
}

// Option configures a Writer.
type Option func(*Writer)

// WithFileSystem replaces the OS filesystem.
func WithFileSystem(fs vfs.FileSystem) Option {
	return func(w *Writer) { w.fs = fs }
}

// WithCodec enables .zst output.
func WithCodec(z *codec.Zstd) Option {
	return func(w *Writer) { w.zstd = z }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(w *Writer) { w.log = l }
}

// NewWriter creates a writer rooted at base. Relative artifact paths are
// resolved against it.
func NewWriter(base string, opts ...Option) *Writer {
	w := &Writer{fs: osfs.OsFs, base: base}
	for _, opt := range opts {
		opt(w)
	}
	if w.log == nil {
		w.log = logger.Default()
	}
	w.log = w.log.WithComponent("artifact")
	return w
}

// Resolve returns the filesystem path of an artifact.
func (w *Writer) Resolve(p string) string {
	if path.IsAbs(p) || w.base == "" {
		return p
	}
	return path.Join(w.base, p)
}

// Write implements ddl.ArtifactWriter. The content goes to a temporary
// sibling first and is then renamed over the target. Filesystems that refuse
// to rename onto an existing file get the old target removed first.
func (w *Writer) Write(ctx context.Context, p string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p == "" {
		return errors.New("empty artifact path")
	}
	target := w.Resolve(p)

	if strings.HasSuffix(target, CompressedExt) {
		if w.zstd == nil {
			return fmt.Errorf("%s: compressed output requested but no codec configured", target)
		}
		data = w.zstd.Compress(data)
	}

	if dir := path.Dir(target); dir != "." {
		if err := w.fs.MkdirAll(dir, 0o755); err != nil && !errors.Is(err, vfs.ErrExist) {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	tmp := target + ".tmp"
	if err := vfs.WriteFile(w.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := w.replace(tmp, target); err != nil {
		_ = w.fs.Remove(tmp)
		return fmt.Errorf("rename %s: %w", target, err)
	}

	w.log.WithContext(ctx).Infow("artifact written", "path", target, "bytes", len(data))
	return nil
}

func (w *Writer) replace(tmp, target string) error {
	err := w.fs.Rename(tmp, target)
	if err == nil {
		return nil
	}
	exists, statErr := vfs.FileExists(w.fs, target)
	if statErr != nil || !exists {
		return err
	}
	if rmErr := w.fs.Remove(target); rmErr != nil {
		return rmErr
	}
	return w.fs.Rename(tmp, target)
}

// Read returns an artifact, decompressing .zst files.
func (w *Writer) Read(p string) ([]byte, error) {
	target := w.Resolve(p)
	data, err := vfs.ReadFile(w.fs, target)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(target, CompressedExt) {
		if w.zstd == nil {
			return nil, fmt.Errorf("%s: compressed artifact but no codec configured", target)
		}
		return w.zstd.Decompress(data)
	}
	return data, nil
}
