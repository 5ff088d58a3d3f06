// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the litreview CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/litreview/internal/config"
	"github.com/pdiddy/litreview/internal/secrets"
	"github.com/pdiddy/litreview/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// cfg is the loaded configuration, available to every subcommand.
var cfg *types.Config

var rootCmd = &cobra.Command{
	Use:   "litreview",
	Short: "Automated literature reviews from arXiv",
	Long: `litreview searches arXiv for a research topic, classifies each paper's
relevance with a generative model, extracts the passages that matter, plans
an outline and writes a cited review in Markdown or LaTeX.

The review command prints its result as tagged blocks on stdout so other
programs can parse it; progress and logs go to stderr. The serve command
exposes the same pipeline over HTTP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		if err := secrets.LoadEnv(envFile); err != nil {
			return err
		}

		cfgFile, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(viper.GetViper(), cfgFile)
		if err != nil {
			return err
		}
		if err := config.InitLogger(loaded.Log); err != nil {
			return err
		}
		if f := viper.ConfigFileUsed(); f != "" {
			zap.L().Debug("using config file", zap.String("path", f))
		}

		secretsDir, _ := cmd.Flags().GetString("secrets-dir")
		files, err := secrets.Load(secretsDir)
		if err != nil {
			return err
		}
		if loaded.LLM.APIKey == "" {
			loaded.LLM.APIKey = secrets.APIKey(loaded.LLM.Provider, files)
		}

		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./litreview.yaml or ~/.config/litreview/litreview.yaml)")
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file with API keys")
	rootCmd.PersistentFlags().String("secrets-dir", ".secrets/", "directory of API key files")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	zap.L().Sync()
	if err != nil {
		os.Exit(1)
	}
}
