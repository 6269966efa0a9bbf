package cli

import (
	"context"

	"github.com/koustreak/vizly/internal/errs"
	"github.com/spf13/cobra"
)

func newTestCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "test <connection-id>",
		Short: "Check that a connection is reachable",
		Long: `Run SELECT 1 on a connection under the probe timeout and report the
outcome and latency. Exits non-zero when the connection is unreachable.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				conn, err := a.catalog.Get(args[0])
				if err != nil {
					return err
				}
				res, err := a.executor.TestConnection(ctx, conn)
				if err != nil {
					return err
				}
				if err := renderProbe(cmd.OutOrStdout(), conn.ID, res, format); err != nil {
					return err
				}
				if !res.OK {
					return errs.New(errs.ErrKindConnectionFailed, "connection test failed")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table, json")
	return cmd
}
