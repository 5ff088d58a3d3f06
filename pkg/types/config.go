// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "litreview/0.1").
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`
}

// LogConfig configures the global zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // "json" or "console"
}

// LLMProvider names a generative model backend.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
	ProviderClaude LLMProvider = "claude"
	ProviderOpenAI LLMProvider = "openai"
)

// LLMConfig holds settings shared by every stage that calls the generative
// model service.
type LLMConfig struct {
	Provider       LLMProvider `mapstructure:"provider" yaml:"provider"`
	Model          string      `mapstructure:"model" yaml:"model"`
	EmbeddingModel string      `mapstructure:"embedding_model" yaml:"embedding_model"`
	APIKey         string      `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL        string      `mapstructure:"base_url" yaml:"base_url,omitempty"`

	// MaxRetries is the number of retries on a failed call (default 3).
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`

	// RequestsPerSecond and Burst configure the token bucket shared by all
	// workers (default 1 and 1).
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `mapstructure:"burst" yaml:"burst"`
}

// SearchConfig holds settings for the paper source.
type SearchConfig struct {
	HTTPConfig `mapstructure:",squash" yaml:",inline"`

	// MaxResults is the number of papers fetched per run (default 5).
	MaxResults int `mapstructure:"max_results" yaml:"max_results"`

	// SortBy is the arXiv sort criterion: submittedDate, lastUpdatedDate or relevance.
	SortBy string `mapstructure:"sort_by" yaml:"sort_by"`
}

// AcquisitionConfig holds settings for PDF download.
type AcquisitionConfig struct {
	HTTPConfig `mapstructure:",squash" yaml:",inline"`

	// DownloadDelay is the pause between consecutive downloads (default 1s).
	DownloadDelay time.Duration `mapstructure:"download_delay" yaml:"download_delay"`

	// PapersDir is the cache directory (contains raw/ and metadata/).
	PapersDir string `mapstructure:"papers_dir" yaml:"papers_dir"`
}

// ConvertBackend selects how PDFs become plain text.
type ConvertBackend string

const (
	ConvertPdftotext  ConvertBackend = "pdftotext"
	ConvertMarkitdown ConvertBackend = "markitdown"
)

// ConvertConfig holds settings for PDF text conversion. Conversion only runs
// when the generator cannot read uploaded files.
type ConvertConfig struct {
	Backend ConvertBackend `mapstructure:"backend" yaml:"backend"`

	// Binary overrides the pdftotext executable path.
	Binary string `mapstructure:"binary" yaml:"binary"`

	// Image is the markitdown container image.
	Image string `mapstructure:"image" yaml:"image"`

	// MaxPages limits pdftotext to the first pages (0 = all).
	MaxPages int `mapstructure:"max_pages" yaml:"max_pages"`
}

// ClassifyConfig holds settings for the relevance classifier.
type ClassifyConfig struct {
	// MaxChars truncates converted paper text sent inline (default 100000).
	MaxChars int `mapstructure:"max_chars" yaml:"max_chars"`
}

// ExtractConfig holds settings for the content extractor.
type ExtractConfig struct {
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
}

// IndexBackend selects the retrieval index similarity engine.
type IndexBackend string

const (
	IndexEmbedding IndexBackend = "embedding"
	IndexFTS       IndexBackend = "fts"
)

// IndexConfig holds settings for the retrieval index.
type IndexConfig struct {
	Backend IndexBackend `mapstructure:"backend" yaml:"backend"`
	TopK    int          `mapstructure:"top_k" yaml:"top_k"`
}

// OutlineConfig bounds the planned outline.
type OutlineConfig struct {
	MaxSections int `mapstructure:"max_sections" yaml:"max_sections"`
	MaxDepth    int `mapstructure:"max_depth" yaml:"max_depth"`
}

// OutputFormat selects the report format.
type OutputFormat string

const (
	OutputMarkdown OutputFormat = "markdown"
	OutputLaTeX    OutputFormat = "latex"
)

// ReportConfig holds settings for the report compiler.
type ReportConfig struct {
	Format OutputFormat `mapstructure:"format" yaml:"format"`

	// TypesetWithModel asks the generator to polish LaTeX output.
	TypesetWithModel bool `mapstructure:"typeset_with_model" yaml:"typeset_with_model"`
}

// PipelineConfig holds orchestration settings.
type PipelineConfig struct {
	// Concurrency bounds the worker pool for per-paper and per-section stages.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`

	// Deterministic skips criteria generation and uses BuildQuery.
	Deterministic bool `mapstructure:"deterministic" yaml:"deterministic"`
}

// RunnerKind selects how the HTTP surface executes a review.
type RunnerKind string

const (
	RunnerInProcess RunnerKind = "inprocess"
	RunnerExec      RunnerKind = "exec"
)

// ServerConfig holds settings for the HTTP surface.
type ServerConfig struct {
	Port           int        `mapstructure:"port" yaml:"port"`
	Runner         RunnerKind `mapstructure:"runner" yaml:"runner"`
	Binary         string     `mapstructure:"binary" yaml:"binary"`
	AllowedOrigins []string   `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// Config groups every setting of a review run.
type Config struct {
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
	LLM         LLMConfig         `mapstructure:"llm" yaml:"llm"`
	Search      SearchConfig      `mapstructure:"search" yaml:"search"`
	Acquisition AcquisitionConfig `mapstructure:"acquisition" yaml:"acquisition"`
	Convert     ConvertConfig     `mapstructure:"convert" yaml:"convert"`
	Classify    ClassifyConfig    `mapstructure:"classify" yaml:"classify"`
	Extract     ExtractConfig     `mapstructure:"extract" yaml:"extract"`
	Index       IndexConfig       `mapstructure:"index" yaml:"index"`
	Outline     OutlineConfig     `mapstructure:"outline" yaml:"outline"`
	Report      ReportConfig      `mapstructure:"report" yaml:"report"`
	Pipeline    PipelineConfig    `mapstructure:"pipeline" yaml:"pipeline"`
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
}
