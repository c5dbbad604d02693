package ddl

import (
	"context"
	"errors"
	"runtime"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"metaschema/internal/metadata"
	"metaschema/pkg/logger"
)

var tracer = otel.Tracer("metaschema/ddl")

var errNoWriter = errors.New("ddl: no artifact writer configured")

// DefaultOutput is the artifact written when no completion callback is given.
const DefaultOutput = "create_tables.sql"

// generationOrder is the kind order of a full script.
var generationOrder = []metadata.Kind{
	metadata.KindEnum,
	metadata.KindCharacteristic,
	metadata.KindChartOfAccounts,
	metadata.KindCatalog,
	metadata.KindBusinessProcess,
	metadata.KindTask,
	metadata.KindDocument,
	metadata.KindInfoRegister,
	metadata.KindAccumRegister,
}

// KindOrder returns the kinds that get tables, in script order.
func KindOrder() []metadata.Kind {
	return append([]metadata.Kind(nil), generationOrder...)
}

// Schema is the part of the schema store the generator reads. A run renders
// the single document returned at its start.
type Schema interface {
	Document() *metadata.Document
}

// ArtifactWriter persists a generated script.
type ArtifactWriter interface {
	Write(ctx context.Context, path string, data []byte) error
}

// Options controls one generation run.
type Options struct {
	Dialect Dialect
	// Output is the artifact path used without a completion callback.
	Output string
}

// Generator renders the DDL script of a whole schema.
type Generator struct {
	schema  Schema
	builder TableBuilder
	writer  ArtifactWriter
	log     *logger.Logger
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithTableBuilder replaces the per-class renderer.
func WithTableBuilder(b TableBuilder) GeneratorOption {
	return func(g *Generator) { g.builder = b }
}

// WithArtifactWriter sets the writer used when no callback is supplied.
func WithArtifactWriter(w ArtifactWriter) GeneratorOption {
	return func(g *Generator) { g.writer = w }
}

// WithGeneratorLogger sets the logger.
func WithGeneratorLogger(l *logger.Logger) GeneratorOption {
	return func(g *Generator) { g.log = l }
}

// NewGenerator creates a generator over schema.
func NewGenerator(schema Schema, opts ...GeneratorOption) *Generator {
	g := &Generator{schema: schema, builder: Tables{}}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = logger.Default()
	}
	g.log = g.log.WithComponent("ddl")
	return g
}

// Generate renders every class, one at a time, yielding between classes.
// The first failing class aborts the run; no partial script is returned.
func (g *Generator) Generate(ctx context.Context, opts Options) (string, error) {
	ctx, span := tracer.Start(ctx, "ddl.generate",
		trace.WithAttributes(attribute.String("ddl.dialect", opts.Dialect.String())),
	)
	defer span.End()

	doc := g.schema.Document()
	classes := doc.ClassNames()

	var sb strings.Builder
	sb.WriteString(opts.Dialect.Prefix())

	count := 0
	for _, kind := range generationOrder {
		for _, name := range classes[kind] {
			if err := ctx.Err(); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "cancelled")
				return "", err
			}

			classPath := metadata.ClassPath(kind, name)
			stmt, err := g.builder.Build(opts.Dialect, classPath, doc.Class(kind, name))
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "class failed")
				g.log.WithContext(ctx).Errorw("ddl generation failed", "class", classPath, "error", err)
				return "", err
			}
			sb.WriteString(stmt)
			sb.WriteString("; ")
			count++

			runtime.Gosched()
		}
	}

	span.SetAttributes(attribute.Int("ddl.classes", count))
	g.log.WithContext(ctx).Debugw("ddl generated", "dialect", opts.Dialect.String(), "classes", count)
	return sb.String(), nil
}

// GenerateAsync runs Generate in the background. On success the script goes to
// onComplete, or to the artifact at opts.Output when onComplete is nil.
// The returned channel yields the final error (nil on success) and is closed.
func (g *Generator) GenerateAsync(ctx context.Context, opts Options, onComplete func(script string)) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)

		script, err := g.Generate(ctx, opts)
		if err != nil {
			done <- err
			return
		}
		if onComplete != nil {
			onComplete(script)
			done <- nil
			return
		}
		done <- g.WriteArtifact(ctx, opts, script)
	}()
	return done
}

// WriteArtifact stores script at opts.Output (DefaultOutput when empty).
func (g *Generator) WriteArtifact(ctx context.Context, opts Options, script string) error {
	path := opts.Output
	if path == "" {
		path = DefaultOutput
	}
	if g.writer == nil {
		return errNoWriter
	}
	if err := g.writer.Write(ctx, path, []byte(script)); err != nil {
		return err
	}
	g.log.WithContext(ctx).Infow("ddl artifact written", "path", path, "bytes", len(script))
	return nil
}
