// Package cli provides the metactl command-line interface.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"metaschema/internal/bootstrap"
	"metaschema/internal/config"
	"metaschema/pkg/logger"
)

// Version is set at build time.
var Version = "dev"

type envKey struct{}

// env is the per-invocation state built by the root command.
type env struct {
	cfg *config.Config
	log *logger.Logger
}

// NewRootCmd creates the metactl root command.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "metactl",
		Short: "Inspect and publish metaschema documents",
		Long: `metactl works with the metadata documents that describe the application
schema: list classes, translate names, render DDL scripts and publish
documents from a directory to the PostgreSQL store.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" || cmd.Name() == "__complete" {
				return nil
			}
			cfg, err := config.Load("", cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			log, err := logger.New(logger.Config{
				Level:       cfg.Log.Level,
				Development: cfg.Log.Development,
				OutputPaths: []string{"stderr"},
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), envKey{}, &env{cfg: cfg, log: log}))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newVersionCommand(),
		newClassesCommand(),
		newDDLCommand(),
		newNameCommand(),
		newPublishCommand(),
		newExportCommand(),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	root := NewRootCmd()
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func envOf(cmd *cobra.Command) *env {
	if e, ok := cmd.Context().Value(envKey{}).(*env); ok {
		return e
	}
	return &env{cfg: &config.Config{}, log: logger.Default()}
}

// openRuntime opens the configured source and loads the schema from it.
func openRuntime(cmd *cobra.Command) (*bootstrap.Source, *bootstrap.Runtime, error) {
	e := envOf(cmd)
	src, err := bootstrap.Open(cmd.Context(), e.cfg.Source, e.log)
	if err != nil {
		return nil, nil, err
	}
	rt, err := bootstrap.Load(cmd.Context(), src, e.log, nil)
	if err != nil {
		src.Close()
		return nil, nil, err
	}
	return src, rt, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "metactl %s\n", Version)
		},
	}
}
