package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"metaschema/internal/bootstrap"
	"metaschema/internal/config"
	"metaschema/internal/core/apperror"
	"metaschema/internal/infrastructure/filestore"
	"metaschema/internal/metadata"
)

// documentReader is the read side of a document source.
type documentReader interface {
	Get(ctx context.Context, id string) (map[string]any, error)
}

// publisher is the write side of the PostgreSQL document store.
type publisher interface {
	EnsureSchema(ctx context.Context) error
	Publish(ctx context.Context, docs map[string]map[string]any) error
}

// collectDocuments reads meta and meta_patch from src and checks that they
// merge into a valid schema. A missing meta_patch is published empty.
func collectDocuments(ctx context.Context, src documentReader) (map[string]map[string]any, *metadata.Document, error) {
	docs := make(map[string]map[string]any, 2)
	for _, docID := range []string{metadata.DocMeta, metadata.DocMetaPatch} {
		doc, err := src.Get(ctx, docID)
		if err != nil {
			if docID == metadata.DocMetaPatch && apperror.IsDocumentMissing(err) {
				doc = map[string]any{}
			} else {
				return nil, nil, err
			}
		}
		docs[docID] = doc
	}

	// merging mutates its base, so validate a second read
	base, err := src.Get(ctx, metadata.DocMeta)
	if err != nil {
		return nil, nil, err
	}
	patch, err := src.Get(ctx, metadata.DocMetaPatch)
	if err != nil && !apperror.IsDocumentMissing(err) {
		return nil, nil, err
	}
	merged := metadata.ApplyPatch(base, patch)
	metadata.StripStoreKeys(merged)
	schema, err := metadata.DecodeDocument(merged)
	if err != nil {
		return nil, nil, apperror.NewMetadataLoad(err)
	}
	return docs, schema, nil
}

func publish(ctx context.Context, src documentReader, dst publisher) (*metadata.Document, error) {
	docs, schema, err := collectDocuments(ctx, src)
	if err != nil {
		return nil, err
	}
	if err := dst.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	if err := dst.Publish(ctx, docs); err != nil {
		return nil, err
	}
	return schema, nil
}

func newPublishCommand() *cobra.Command {
	var (
		from   string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish metadata documents from a directory to PostgreSQL",
		Long: `Read meta and meta_patch (.json, .yaml or .yml) from a directory, check that
they merge into a valid schema and write both to the document table in one
transaction. Running services are notified through LISTEN/NOTIFY.`,
		Example: `  metactl publish --from ./metadata --source-kind postgres --source-dsn postgres://localhost/md
  metactl publish --from ./metadata --dry-run`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := envOf(cmd)
			if from == "" {
				from = e.cfg.Source.Dir
			}
			files := filestore.New(from, filestore.WithLogger(e.log))

			if dryRun {
				_, schema, err := collectDocuments(cmd.Context(), files)
				if err != nil {
					return err
				}
				return printSummary(cmd, "valid", from, schema)
			}

			if e.cfg.Source.Kind != config.SourcePostgres {
				return fmt.Errorf("publish needs --source-kind %s, got %q", config.SourcePostgres, e.cfg.Source.Kind)
			}
			src, err := bootstrap.Open(cmd.Context(), e.cfg.Source, e.log)
			if err != nil {
				return err
			}
			defer src.Close()

			schema, err := publish(cmd.Context(), files, src.Documents)
			if err != nil {
				return err
			}
			return printSummary(cmd, "published", from, schema)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "document directory (default --source-dir)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate only")
	return cmd
}

func printSummary(cmd *cobra.Command, verb, dir string, schema *metadata.Document) error {
	classes := 0
	for _, byName := range schema.Classes {
		classes += len(byName)
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d classes, %d synonyms\n", verb, dir, classes, len(schema.Synonyms))
	return err
}

func newExportCommand() *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the documents of the configured source to a directory as YAML",
		Example: `  metactl export --to ./metadata --source-kind postgres --source-dsn postgres://localhost/md
  metactl export --to ./sample`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := envOf(cmd)
			src, err := bootstrap.Open(cmd.Context(), e.cfg.Source, e.log)
			if err != nil {
				return err
			}
			defer src.Close()

			docs, schema, err := collectDocuments(cmd.Context(), src)
			if err != nil {
				return err
			}
			out := filestore.New(to, filestore.WithLogger(e.log))
			for _, docID := range []string{metadata.DocMeta, metadata.DocMetaPatch} {
				if err := out.Put(cmd.Context(), docID, docs[docID]); err != nil {
					return err
				}
			}
			return printSummary(cmd, "exported to", to, schema)
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "target directory")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
