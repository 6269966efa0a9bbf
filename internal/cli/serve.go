package cli

import (
	"context"

	"github.com/koustreak/vizly/internal/server"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve execution, schema and connection tests over HTTP",
		Long: `Start the HTTP server.

Routes:
  GET  /healthz
  GET  /v1/connections
  POST /v1/connections/{id}/execute
  GET  /v1/connections/{id}/schema
  POST /v1/connections/{id}/test

Requests carrying the header X-Vizly-Role: admin may run write statements.
The header must be set by a trusted proxy, never by end users.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				a.log.With().
					Int("connections", len(a.catalog.List())).
					Logger().
					Info("connection catalog loaded")

				srv := server.New(server.Config{
					Addr:            a.cfg.Server.Addr,
					ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
					Executor:        a.executor,
					Schema:          a.schema,
					Catalog:         a.catalog,
					Logger:          a.log,
				})
				return srv.Serve(ctx)
			})
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default :8080)")
	return cmd
}
