package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newNameCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "name",
		Short: "Translate names between the internal and external vocabularies",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:     "to-internal <name>...",
			Short:   "Translate external names; dotted names are qualified class names",
			Example: "  metactl name to-internal Справочник.Номенклатура РасчетЗаказ",
			Args:    cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return translate(cmd, args, true)
			},
		},
		&cobra.Command{
			Use:     "to-external <name>...",
			Short:   "Translate internal names or class paths",
			Example: "  metactl name to-external cat.nom calc_order",
			Args:    cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return translate(cmd, args, false)
			},
		},
	)
	return cmd
}

func translate(cmd *cobra.Command, args []string, toInternal bool) error {
	src, rt, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer src.Close()

	names := rt.Store.Names()
	for _, name := range args {
		var out string
		switch qualified := strings.Contains(name, "."); {
		case toInternal && qualified:
			out = names.ClassPathFromExternal(name)
		case toInternal:
			out = names.ToInternal(name)
		case qualified:
			out = names.ClassPathToExternal(name)
		default:
			out = names.ToExternal(name)
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, out); err != nil {
			return err
		}
	}
	return nil
}
