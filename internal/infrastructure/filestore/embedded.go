package filestore

import (
	"embed"
	"fmt"
	"io/fs"
	"path"

	"github.com/mandelsoft/vfs/pkg/memoryfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
)

//go:embed sample/*.yaml
var sample embed.FS

const embeddedDir = "/metadata"

// NewEmbedded returns a source over the bundled sample documents, copied into
// an in-memory filesystem. Put works but is lost on exit.
func NewEmbedded(opts ...Option) (*Source, error) {
	mem := memoryfs.New()
	if err := mem.MkdirAll(embeddedDir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", embeddedDir, err)
	}

	entries, err := fs.ReadDir(sample, "sample")
	if err != nil {
		return nil, fmt.Errorf("read bundled documents: %w", err)
	}
	for _, e := range entries {
		data, err := sample.ReadFile(path.Join("sample", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read bundled %s: %w", e.Name(), err)
		}
		if err := vfs.WriteFile(mem, path.Join(embeddedDir, e.Name()), data, 0o644); err != nil {
			return nil, fmt.Errorf("copy bundled %s: %w", e.Name(), err)
		}
	}

	return New(embeddedDir, append([]Option{WithFileSystem(mem)}, opts...)...), nil
}
