// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/litreview/internal/server"
	"github.com/pdiddy/litreview/internal/workpool"
	"github.com/pdiddy/litreview/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the review API over HTTP",
	Long: `Serve starts the HTTP API used by the web frontend:

  POST /api/search   full review for {"query": ...}
  POST /api/filters  classify-only search with include/exclude terms
  GET  /api/test     liveness message
  GET  /health       health check

With server.runner=exec each request runs the review command as a
subprocess and parses its result blocks.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "port to listen on (default server.port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	port := cfg.Server.Port
	if p, _ := cmd.Flags().GetInt("port"); p > 0 {
		port = p
	}

	var runner server.Runner
	switch cfg.Server.Runner {
	case types.RunnerExec:
		bin := cfg.Server.Binary
		if bin == "" {
			if self, err := os.Executable(); err == nil {
				bin = self
			}
		}
		runner = &server.ExecRunner{Binary: bin, ConfigFile: viper.ConfigFileUsed()}
	default:
		client, err := newLLM(ctx)
		if err != nil {
			return err
		}
		defer client.Close()
		src, err := newSource("")
		if err != nil {
			return err
		}
		runner = &server.InProcessRunner{Pipeline: newPipeline(client, src, workpool.Locked(cmd.ErrOrStderr()))}
	}

	zap.L().Info("review runner", zap.String("runner", string(cfg.Server.Runner)))
	return server.New(runner, cfg.Server.AllowedOrigins).Serve(ctx, fmt.Sprintf(":%d", port))
}
