// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config loads the run configuration and installs the global logger.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/litreview/pkg/types"
)

// EnvPrefix prefixes every environment override, e.g. LITREVIEW_LLM_PROVIDER.
const EnvPrefix = "LITREVIEW"

// SetDefaults registers the default value of every configuration key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("llm.provider", string(types.ProviderGemini))
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.embedding_model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.requests_per_second", 1.0)
	v.SetDefault("llm.burst", 1)

	v.SetDefault("search.max_results", 5)
	v.SetDefault("search.sort_by", "submittedDate")
	v.SetDefault("search.timeout", "30s")
	v.SetDefault("search.user_agent", "litreview/0.1")

	v.SetDefault("acquisition.papers_dir", "./papers")
	v.SetDefault("acquisition.download_delay", "1s")
	v.SetDefault("acquisition.timeout", "60s")
	v.SetDefault("acquisition.user_agent", "litreview/0.1")

	v.SetDefault("convert.backend", string(types.ConvertPdftotext))
	v.SetDefault("convert.binary", "pdftotext")
	v.SetDefault("convert.image", "markitdown:latest")
	v.SetDefault("convert.max_pages", 0)

	v.SetDefault("classify.max_chars", 100000)
	v.SetDefault("extract.max_retries", 2)

	v.SetDefault("index.backend", string(types.IndexEmbedding))
	v.SetDefault("index.top_k", 5)

	v.SetDefault("outline.max_sections", 5)
	v.SetDefault("outline.max_depth", types.DefaultMaxDepth)

	v.SetDefault("report.format", string(types.OutputMarkdown))
	v.SetDefault("report.typeset_with_model", false)

	v.SetDefault("pipeline.concurrency", 3)
	v.SetDefault("pipeline.deterministic", false)

	v.SetDefault("server.port", 8000)
	v.SetDefault("server.runner", string(types.RunnerInProcess))
	v.SetDefault("server.binary", "litreview")
	v.SetDefault("server.allowed_origins", []string{"*"})
}

// Load reads configuration into a types.Config. When cfgFile is empty it
// looks for litreview.yaml in the working directory and then in
// ~/.config/litreview. A missing file is not an error. Environment variables
// with the LITREVIEW_ prefix override file values.
func Load(v *viper.Viper, cfgFile string) (*types.Config, error) {
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("litreview")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "litreview"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}

// Validate checks the values a run cannot proceed without.
func Validate(cfg *types.Config) error {
	switch cfg.LLM.Provider {
	case types.ProviderGemini, types.ProviderClaude, types.ProviderOpenAI:
	default:
		return eris.Errorf("config: unknown llm.provider %q", cfg.LLM.Provider)
	}
	switch cfg.Index.Backend {
	case types.IndexEmbedding, types.IndexFTS:
	default:
		return eris.Errorf("config: unknown index.backend %q", cfg.Index.Backend)
	}
	switch cfg.Convert.Backend {
	case types.ConvertPdftotext, types.ConvertMarkitdown:
	default:
		return eris.Errorf("config: unknown convert.backend %q", cfg.Convert.Backend)
	}
	switch cfg.Report.Format {
	case types.OutputMarkdown, types.OutputLaTeX:
	default:
		return eris.Errorf("config: unknown report.format %q", cfg.Report.Format)
	}
	if cfg.Outline.MaxDepth < 1 {
		return eris.New("config: outline.max_depth must be at least 1")
	}
	if cfg.Pipeline.Concurrency < 1 {
		return eris.New("config: pipeline.concurrency must be at least 1")
	}
	if cfg.Search.MaxResults < 1 {
		return eris.New("config: search.max_results must be at least 1")
	}
	return nil
}

// InitLogger initializes the global zap logger. Console format writes
// human-readable lines; anything else writes JSON.
func InitLogger(cfg types.LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	// stdout carries the sentinel protocol; logs go to stderr.
	zapCfg.OutputPaths = []string{"stderr"}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)
	return nil
}
