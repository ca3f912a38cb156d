package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dotspan/dotspan/internal/server"
)

// serveCommand creates the HTTP API command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the export API over HTTP",
		Long: `Serve previews, downloads and print pages over HTTP.

Routes:
  GET  /healthz
  GET  /api/v1/themes
  POST /api/v1/preview
  POST /api/v1/export/{png|jpg}
  POST /api/v1/print?paper=a4|letter`,
		Example: `  dotspan serve --addr :9000`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := c.Config.Server
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}

			runner, err := c.newRunner(ctx, noCache, server.NewFlagLoader)
			if err != nil {
				return fmt.Errorf("initialize cache: %w", err)
			}
			defer runner.Close()

			srv := server.New(runner,
				server.WithLogger(c.Logger),
				server.WithMaxBodyBytes(cfg.MaxBodyBytes),
			)
			return srv.ListenAndServe(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", c.Config.Server.Addr, "listen address")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	return cmd
}
