package cli

import (
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"metaschema/internal/metadata"
	"metaschema/internal/metadata/ddl"
)

func newClassesCommand() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "classes",
		Short: "List the classes of the loaded schema",
		Example: `  metactl classes
  metactl classes --kind cat --source-kind file --source-dir ./metadata`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			src, rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer src.Close()

			doc, names := rt.Store.Snapshot()
			classes := doc.ClassNames()

			kinds := ddl.KindOrder()
			for k := range classes {
				if !slices.Contains(kinds, k) {
					kinds = append(kinds, k)
				}
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "CLASS\tTABLE\tSYNONYM\tEXTERNAL")
			for _, k := range kinds {
				if kind != "" && string(k) != kind {
					continue
				}
				for _, name := range classes[k] {
					classPath := metadata.ClassPath(k, name)
					_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
						classPath,
						metadata.TableName(classPath),
						doc.Class(k, name).Synonym,
						names.ClassPathToExternal(classPath),
					)
				}
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "only classes of this kind (cat, doc, ireg, ...)")
	return cmd
}
