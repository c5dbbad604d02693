// Package bootstrap opens the configured metadata source and wires the
// schema store, object registry and resolver on top of it. The binaries
// under cmd/ share it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"metaschema/internal/config"
	appctx "metaschema/internal/core/context"
	"metaschema/internal/infrastructure/codec"
	"metaschema/internal/infrastructure/filestore"
	"metaschema/internal/infrastructure/storage/postgres"
	"metaschema/internal/metadata"
	"metaschema/internal/metadata/resolver"
	"metaschema/internal/objects"
	"metaschema/pkg/logger"
)

// Source is an opened metadata source. Exactly one of Documents and Files is
// set; Pool and Probe are set for postgres only.
type Source struct {
	metadata.DocumentSource

	Kind      string
	Pool      *postgres.Pool
	Documents *postgres.DocumentStore
	Files     *filestore.Source
	Probe     objects.Probe

	watch bool
	log   *logger.Logger
}

// Open connects the source selected by cfg.Kind.
func Open(ctx context.Context, cfg config.SourceConfig, log *logger.Logger) (*Source, error) {
	src := &Source{Kind: cfg.Kind, watch: cfg.Watch, log: log.WithComponent("source")}

	switch cfg.Kind {
	case config.SourcePostgres:
		poolCfg := postgres.DefaultPoolConfig(cfg.DSN)
		if cfg.MaxConns > 0 {
			poolCfg.MaxConns = cfg.MaxConns
		}
		pool, err := postgres.NewPool(ctx, poolCfg)
		if err != nil {
			return nil, fmt.Errorf("connect metadata database: %w", err)
		}
		z, err := codec.NewZstd()
		if err != nil {
			pool.Close()
			return nil, err
		}
		txm := postgres.NewTxManager(pool)
		src.Pool = pool
		src.Documents = postgres.NewDocumentStore(txm, txm, z,
			postgres.WithTable(cfg.Table),
			postgres.WithChannel(cfg.Channel),
			postgres.WithCompressThreshold(cfg.CompressThreshold),
			postgres.WithStoreLogger(log),
		)
		src.Probe = postgres.NewObjectProbe(txm)
		src.DocumentSource = src.Documents

	case config.SourceFile:
		src.Files = filestore.New(cfg.Dir, filestore.WithLogger(log))
		src.DocumentSource = src.Files

	case config.SourceEmbedded:
		files, err := filestore.NewEmbedded(filestore.WithLogger(log))
		if err != nil {
			return nil, err
		}
		src.Files = files
		src.DocumentSource = files

	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}

	src.log.Infow("metadata source opened", "kind", cfg.Kind)
	return src, nil
}

// Follow delivers remote changes to subscribers until ctx is done: a LISTEN
// loop for postgres, a directory watch for a file source with watching
// enabled. onReconnect runs after the listener re-establishes its connection.
func (s *Source) Follow(ctx context.Context, onReconnect func(ctx context.Context)) error {
	switch {
	case s.Documents != nil:
		var opts []postgres.ListenerOption
		if onReconnect != nil {
			opts = append(opts, postgres.WithReconnectHook(onReconnect))
		}
		l := s.Documents.Listen(s.Pool, opts...)
		if err := l.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		l.Stop()
		return nil

	case s.Kind == config.SourceFile && s.watch:
		return s.Files.Watch(ctx)
	}

	<-ctx.Done()
	return nil
}

// Close logs final pool statistics and releases the database pool.
func (s *Source) Close() {
	if s.Pool != nil {
		postgres.LogPoolStats(logger.WithLogger(context.Background(), s.log), s.Pool)
		s.Pool.Close()
	}
}

// Runtime is the loaded schema with its object layer.
type Runtime struct {
	Store    *metadata.Store
	Registry *objects.Registry
	Resolver *resolver.Resolver
}

// Load builds the store over src, performs the initial load and attaches an
// object registry and resolver. onReload receives the reload signal raised
// when the meta document changes after the first load.
func Load(ctx context.Context, src *Source, log *logger.Logger, onReload func()) (*Runtime, error) {
	opts := []metadata.Option{metadata.WithLogger(log)}
	if onReload != nil {
		opts = append(opts, metadata.WithReloadHook(onReload))
	}
	store := metadata.NewStore(opts...)

	registryOpts := []objects.RegistryOption{objects.WithLogger(log)}
	if src.Probe != nil {
		registryOpts = append(registryOpts, objects.WithProbe(src.Probe))
	}
	registry := objects.NewRegistry(registryOpts...)
	registry.Attach(store)

	rt := &Runtime{
		Store:    store,
		Registry: registry,
		Resolver: resolver.New(registry, store),
	}
	if err := store.Init(ctx, src); err != nil {
		return rt, err
	}
	return rt, nil
}

// Reloader coalesces reload signals and runs Store.Reload for them one at a
// time.
type Reloader struct {
	store   *metadata.Store
	log     *logger.Logger
	pending chan struct{}
	after   []func(ctx context.Context)
}

// NewReloader creates a reloader for store. after runs on every successful reload.
func NewReloader(store *metadata.Store, log *logger.Logger, after ...func(ctx context.Context)) *Reloader {
	return &Reloader{
		store:   store,
		log:     log.WithComponent("reloader"),
		pending: make(chan struct{}, 1),
		after:   after,
	}
}

// Signal requests a reload. It never blocks; signals raised while one is
// pending are merged.
func (r *Reloader) Signal() {
	select {
	case r.pending <- struct{}{}:
	default:
	}
}

// Run serves signals until ctx is done.
func (r *Reloader) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.pending:
			runCtx := appctx.StartRun(ctx, "reload")
			if err := r.store.Reload(runCtx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				r.log.WithContext(runCtx).Warnw("metadata reload failed", "error", err)
				continue
			}
			for _, fn := range r.after {
				fn(runCtx)
			}
		}
	}
}
