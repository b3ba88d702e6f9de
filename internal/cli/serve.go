package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/discussed/internal/pipeline"
	"github.com/ppiankov/discussed/internal/server"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve lookups over HTTP",
	Long: `Serve runs the lookup engine behind an HTTP API:

  POST /v1/aggregate            {"url": "...", "title": "..."}  (?format=rss|atom)
  GET  /v1/comments?provider=&url=
  GET  /healthz
  GET  /metrics                 Prometheus metrics

Example:
  discussed serve --addr :8787`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	addEngineFlags(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := engineConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("addr") {
		cfg.Server.Addr = serveAddr
	}

	ctx := cmd.Context()
	p, err := pipeline.NewPipeline(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}
	defer func() { _ = p.Close() }()

	return server.New(p, cfg.Server.Addr).Run(ctx)
}
