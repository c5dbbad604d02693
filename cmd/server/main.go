// Package main is the entry point for the metaschema API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"metaschema/internal/bootstrap"
	"metaschema/internal/config"
	"metaschema/internal/infrastructure/artifact"
	"metaschema/internal/infrastructure/codec"
	v1 "metaschema/internal/infrastructure/http/v1"
	"metaschema/internal/metadata/ddl"
	"metaschema/pkg/logger"
)

var version = "dev"

func main() {
	flags := pflag.NewFlagSet("metaschema-server", pflag.ExitOnError)
	config.RegisterFlags(flags)
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

	if err := run(cfg, log); err != nil {
		log.Fatalw("server failed", "error", err)
	}
	log.Info("server stopped")
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infow("starting metaschema server", "version", version, "source", cfg.Source.Kind)

	src, err := bootstrap.Open(ctx, cfg.Source, log)
	if err != nil {
		return err
	}
	defer src.Close()

	var reloader *bootstrap.Reloader
	rt, err := bootstrap.Load(ctx, src, log, func() { reloader.Signal() })
	if err != nil {
		// the store loads itself once the meta document appears
		log.Warnw("metadata not loaded at startup", "error", err)
	}
	reloader = bootstrap.NewReloader(rt.Store, log)

	z, err := codec.NewZstd()
	if err != nil {
		return err
	}
	writer := artifact.NewWriter(cfg.DDL.Dir, artifact.WithCodec(z), artifact.WithLogger(log))
	generator := ddl.NewGenerator(rt.Store,
		ddl.WithArtifactWriter(writer),
		ddl.WithGeneratorLogger(log),
	)

	router := v1.NewRouter(v1.RouterConfig{
		Logger:    log,
		Store:     rt.Store,
		Source:    src,
		Pool:      src.Pool,
		Generator: generator,
		Resolver:  rt.Resolver,
		Version:   version,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Infow("server starting", "addr", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return src.Follow(ctx, func(context.Context) { reloader.Signal() })
	})

	g.Go(func() error {
		return reloader.Run(ctx)
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
