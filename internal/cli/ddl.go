package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"metaschema/internal/infrastructure/artifact"
	"metaschema/internal/infrastructure/codec"
	"metaschema/internal/metadata/ddl"
)

func newDDLCommand() *cobra.Command {
	var (
		stdout bool
		class  string
	)
	cmd := &cobra.Command{
		Use:   "ddl",
		Short: "Render the CREATE TABLE script of the schema",
		Long: `Render the DDL script of every class in dependency order and write it to
--ddl-dir/--ddl-output. With --ddl-compress the artifact is stored as zstd.`,
		Example: `  metactl ddl --ddl-dialect legacy --ddl-output legacy.sql
  metactl ddl --stdout --class cat.nom`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := envOf(cmd)
			dialect, err := ddl.ParseDialect(e.cfg.DDL.Dialect)
			if err != nil {
				return err
			}

			src, rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer src.Close()

			if class != "" {
				c := rt.Store.Get(class)
				if c == nil {
					return fmt.Errorf("unknown class %q", class)
				}
				stmt, err := ddl.Tables{}.Build(dialect, class, c)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), stmt+";")
				return err
			}

			z, err := codec.NewZstd()
			if err != nil {
				return err
			}
			writer := artifact.NewWriter(e.cfg.DDL.Dir, artifact.WithCodec(z), artifact.WithLogger(e.log))
			gen := ddl.NewGenerator(rt.Store, ddl.WithArtifactWriter(writer), ddl.WithGeneratorLogger(e.log))
			opts := ddl.Options{Dialect: dialect, Output: e.cfg.DDL.OutputPath()}

			if stdout {
				script, err := gen.Generate(cmd.Context(), opts)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), script)
				return err
			}

			if err := <-gen.GenerateAsync(cmd.Context(), opts, nil); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", writer.Resolve(opts.Output))
			return err
		},
	}
	cmd.Flags().BoolVar(&stdout, "stdout", false, "print the script instead of writing the artifact")
	cmd.Flags().StringVar(&class, "class", "", "print the statement of one class path only")
	return cmd
}
