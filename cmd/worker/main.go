// Package main is the entry point for the metaschema background worker.
// It follows the metadata source and rewrites the DDL artifact whenever the
// schema changes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"metaschema/internal/bootstrap"
	"metaschema/internal/config"
	appctx "metaschema/internal/core/context"
	"metaschema/internal/infrastructure/artifact"
	"metaschema/internal/infrastructure/codec"
	"metaschema/internal/metadata"
	"metaschema/internal/metadata/ddl"
	"metaschema/pkg/logger"
)

func main() {
	flags := pflag.NewFlagSet("metaschema-worker", pflag.ExitOnError)
	config.RegisterFlags(flags)
	interval := flags.Duration("regenerate-every", 0, "also regenerate on this interval (0 disables)")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load("", flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *interval, log); err != nil {
		log.Fatalw("worker failed", "error", err)
	}
	log.Info("worker stopped")
}

func run(ctx context.Context, cfg *config.Config, interval time.Duration, log *logger.Logger) error {
	log.Infow("starting metaschema worker", "source", cfg.Source.Kind, "output", cfg.DDL.OutputPath())

	src, err := bootstrap.Open(ctx, cfg.Source, log)
	if err != nil {
		return err
	}
	defer src.Close()

	var reloader *bootstrap.Reloader
	rt, err := bootstrap.Load(ctx, src, log, func() { reloader.Signal() })
	if err != nil {
		log.Warnw("metadata not loaded at startup", "error", err)
	}

	z, err := codec.NewZstd()
	if err != nil {
		return err
	}
	writer := artifact.NewWriter(cfg.DDL.Dir, artifact.WithCodec(z), artifact.WithLogger(log))
	worker := NewDDLWorker(rt.Store, ddl.NewGenerator(rt.Store,
		ddl.WithArtifactWriter(writer),
		ddl.WithGeneratorLogger(log),
	), ddl.Options{Dialect: cfg.DDL.ParsedDialect(), Output: cfg.DDL.OutputPath()}, log)

	reloader = bootstrap.NewReloader(rt.Store, log)
	rt.Store.OnReplace(func(*metadata.Document) { worker.Trigger() })

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return src.Follow(ctx, func(context.Context) { reloader.Signal() }) })
	g.Go(func() error { return reloader.Run(ctx) })
	g.Go(func() error { return worker.Run(ctx, interval) })
	return g.Wait()
}

// DDLWorker regenerates the DDL artifact on demand, one run at a time.
type DDLWorker struct {
	store     *metadata.Store
	generator *ddl.Generator
	opts      ddl.Options
	log       *logger.Logger
	pending   chan struct{}
}

// NewDDLWorker creates a worker writing opts.Output.
func NewDDLWorker(store *metadata.Store, generator *ddl.Generator, opts ddl.Options, log *logger.Logger) *DDLWorker {
	return &DDLWorker{
		store:     store,
		generator: generator,
		opts:      opts,
		log:       log.WithComponent("worker"),
		pending:   make(chan struct{}, 1),
	}
}

// Trigger requests a regeneration; triggers raised while one is pending merge.
func (w *DDLWorker) Trigger() {
	select {
	case w.pending <- struct{}{}:
	default:
	}
}

// Run serves triggers until ctx is done. A loaded store is rendered once on start.
func (w *DDLWorker) Run(ctx context.Context, interval time.Duration) error {
	if w.store.Loaded() {
		w.Trigger()
	}

	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			if w.store.Loaded() {
				w.regenerate(ctx)
			}
		case <-w.pending:
			w.regenerate(ctx)
		}
	}
}

func (w *DDLWorker) regenerate(ctx context.Context) {
	ctx = appctx.StartRun(ctx, "ddl")
	start := time.Now()
	if err := <-w.generator.GenerateAsync(ctx, w.opts, nil); err != nil {
		if ctx.Err() == nil {
			w.log.WithContext(ctx).Errorw("ddl regeneration failed", "error", err)
		}
		return
	}
	w.log.WithContext(ctx).Infow("ddl regenerated",
		"output", w.opts.Output,
		"dialect", w.opts.Dialect.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
