package main

import (
	"github.com/spf13/cobra"

	"CrowdedCOT/internal/di"
)

func newServeCmd(c *cli) *cobra.Command {
	var source string
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the positioning API over HTTP",
		Long: `Serve GET /api/positioning, GET /api/positioning/latest, /healthz and the
Prometheus metrics endpoint. Every request reloads the configured source.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := cmd.Flags()
			if fs.Changed("source") {
				c.cfg.Source.Kind = source
			}
			if fs.Changed("port") {
				c.cfg.Server.Port = port
			}
			if err := c.applyEngineFlags(fs); err != nil {
				return err
			}
			c.cfg.Log.Format = "json"

			l, err := di.ProvideLogger(c.cfg)
			if err != nil {
				return err
			}
			app, cleanup, err := di.InitializeApp(cmd.Context(), c.cfg, l)
			if err != nil {
				return err
			}
			defer cleanup()
			return app.Run(cmd.Context())
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&source, "source", "", "data source: cftc, csv or clickhouse (default source.kind)")
	fs.IntVar(&port, "port", 0, "listen port (default server.port)")
	c.bindEngineFlags(fs)
	return cmd
}
