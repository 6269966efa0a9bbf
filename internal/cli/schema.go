package cli

import (
	"context"

	"github.com/spf13/cobra"
)

func newSchemaCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "schema <connection-id>",
		Short: "Print the tables, columns and keys of a connection",
		Long: `Introspect a connection and print its tables with their columns,
primary keys, foreign keys and indexes. The schema is read fresh on every
call.`,
		Example: `  vizly schema warehouse
  vizly schema warehouse --format yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				conn, err := a.catalog.Get(args[0])
				if err != nil {
					return err
				}
				snap, err := a.schema.Inspect(ctx, conn)
				if err != nil {
					return err
				}
				return renderSnapshot(cmd.OutOrStdout(), snap, format)
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table, json, yaml")
	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "json", "yaml"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}
