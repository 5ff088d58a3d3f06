// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys from a directory of plain-text files and
// from a dotenv file. In a secrets directory each file is one secret: the
// filename is the key name and the trimmed contents are the value.
//
// Recognized key names: gemini-api-key, anthropic-api-key, openai-api-key.
package secrets

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/litreview/pkg/types"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, eris.Wrapf(err, "reading secrets directory %s", dir)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			zap.L().Warn("could not read secret", zap.String("name", name), zap.Error(err))
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// LoadEnv reads a dotenv file and exports every variable that is not
// already set in the process environment. A missing file is not an error.
func LoadEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return eris.Wrapf(err, "loading %s", path)
	}
	return nil
}

// envNames lists the environment variables consulted per provider, in order.
var envNames = map[types.LLMProvider][]string{
	types.ProviderGemini: {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	types.ProviderClaude: {"ANTHROPIC_API_KEY"},
	types.ProviderOpenAI: {"OPENAI_API_KEY"},
}

// fileNames maps a provider to its key file in the secrets directory.
var fileNames = map[types.LLMProvider]string{
	types.ProviderGemini: "gemini-api-key",
	types.ProviderClaude: "anthropic-api-key",
	types.ProviderOpenAI: "openai-api-key",
}

// APIKey resolves the key for provider. Environment variables win over the
// secrets directory. It returns "" when no key is found.
func APIKey(provider types.LLMProvider, files map[string]string) string {
	for _, name := range envNames[provider] {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return files[fileNames[provider]]
}
