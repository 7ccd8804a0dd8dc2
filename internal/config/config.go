// Package config provides configuration loading for groundd.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/complykit/groundd/internal/logging"
)

// envPrefix namespaces the environment variables the loader reads.
const envPrefix = "GROUNDD_"

// defaultConfig is loaded before the file and environment layers so that
// bool fields keep their documented defaults unless explicitly overridden.
const defaultConfig = `
logging:
  level: info
  format: json
embeddings:
  model: text-embedding-3-small
  cache_size: 8192
llm:
  model: gpt-4o-mini
grounding:
  confidence_threshold: 0.6
  strict_mode: true
  use_llm_analysis: false
alignment:
  threshold: 60
`

// Config is the top-level groundd configuration.
type Config struct {
	Logging    logging.Config   `koanf:"logging"`
	Store      StoreConfig      `koanf:"store"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	LLM        LLMConfig        `koanf:"llm"`
	Grounding  GroundingConfig  `koanf:"grounding"`
	Alignment  AlignmentConfig  `koanf:"alignment"`
}

// StoreConfig locates the SQLite knowledge store.
type StoreConfig struct {
	Path string `koanf:"path"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	APIKey    string `koanf:"api_key"`
	Model     string `koanf:"model"`
	BaseURL   string `koanf:"base_url"`
	CacheSize int    `koanf:"cache_size"`
}

// LLMConfig configures the completion provider used by the fallback matcher.
type LLMConfig struct {
	APIKey  string `koanf:"api_key"`
	Model   string `koanf:"model"`
	BaseURL string `koanf:"base_url"`
}

// GroundingConfig holds the grounding run defaults.
type GroundingConfig struct {
	ConfidenceThreshold float64 `koanf:"confidence_threshold"`
	StrictMode          bool    `koanf:"strict_mode"`
	UseLLMAnalysis      bool    `koanf:"use_llm_analysis"`
}

// AlignmentConfig holds the template alignment defaults.
type AlignmentConfig struct {
	// Threshold is the 0-100 acceptance score.
	Threshold int `koanf:"threshold"`
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store: path is required")
	}
	if c.Grounding.ConfidenceThreshold <= 0 || c.Grounding.ConfidenceThreshold > 1 {
		return fmt.Errorf("grounding: confidence_threshold must be in (0,1], got %v", c.Grounding.ConfidenceThreshold)
	}
	if c.Alignment.Threshold <= 0 || c.Alignment.Threshold > 100 {
		return fmt.Errorf("alignment: threshold must be in (0,100], got %d", c.Alignment.Threshold)
	}
	if c.Embeddings.CacheSize < 0 {
		return fmt.Errorf("embeddings: cache_size must not be negative")
	}
	return nil
}

// Load reads configuration with the following precedence, highest first:
//
//  1. GROUNDD_* environment variables (GROUNDD_STORE_PATH, GROUNDD_LLM_API_KEY)
//  2. YAML config file, if configPath is non-empty and the file exists
//  3. Built-in defaults
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider([]byte(defaultConfig)), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			content, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.Store.Path == "" {
		cfg.Store.Path = defaultStorePath()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// envTransform maps GROUNDD_SECTION_FIELD_NAME to section.field_name. The
// section is the text up to the first underscore; remaining underscores stay
// in the field name.
//
//	GROUNDD_STORE_PATH                     -> store.path
//	GROUNDD_GROUNDING_CONFIDENCE_THRESHOLD -> grounding.confidence_threshold
func envTransform(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	section, field, found := strings.Cut(lower, "_")
	if !found {
		return lower
	}
	return section + "." + field
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "groundd.db"
	}
	return filepath.Join(home, ".config", "groundd", "groundd.db")
}
