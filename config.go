package lexlink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the LexLink engine.
type Config struct {
	// DBPath is the full path to the corpus SQLite database file
	// (documents and interpretation links). If empty, defaults to
	// ~/.lexlink/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName is the name for the database (used when DBPath is empty).
	// Defaults to "lexlink".
	DBName string `json:"db_name" yaml:"db_name"`

	// DataDir is where index generations live (lexical and dense).
	// If empty, defaults to a directory next to the database file.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// StorageDir controls where data is created when DBPath is not set.
	// Options: "home" (default) uses ~/.lexlink/, "local" uses the
	// current working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// Embedding provider for the dense index.
	Embedding EmbedConfig `json:"embedding" yaml:"embedding"`

	// EmbeddingDim must match the embedding model's output dimension.
	EmbeddingDim int `json:"embedding_dim" yaml:"embedding_dim"`

	// Retrieval fusion weights. The reserved graph-reranker share is
	// redistributed across whichever of these are active.
	WeightLexical float64 `json:"weight_lexical" yaml:"weight_lexical"`
	WeightDense   float64 `json:"weight_dense" yaml:"weight_dense"`

	// Retrieval shape
	TopK                      int `json:"top_k" yaml:"top_k"`
	KFetchMultiplier          int `json:"k_fetch_multiplier" yaml:"k_fetch_multiplier"`
	KMerge                    int `json:"k_merge" yaml:"k_merge"`
	MaxInterpretivePerStatute int `json:"max_interpretive_per_statute" yaml:"max_interpretive_per_statute"`

	// SideTimeoutMs bounds each retrieval side (lexical, dense) separately.
	SideTimeoutMs int `json:"side_timeout_ms" yaml:"side_timeout_ms"`

	// CacheMaxBytes bounds the in-process retrieval result cache.
	// Zero disables caching.
	CacheMaxBytes int64 `json:"cache_max_bytes" yaml:"cache_max_bytes"`

	// Validation thresholds
	SynthesisPassScore   float64 `json:"synthesis_pass_score" yaml:"synthesis_pass_score"`
	MaxHallucinationRate float64 `json:"max_hallucination_rate" yaml:"max_hallucination_rate"`

	// Ingestion
	MaxRootTextChars int `json:"max_root_text_chars" yaml:"max_root_text_chars"`

	// Dense index building
	EmbedBatchSize int `json:"embed_batch_size" yaml:"embed_batch_size"`
	MaxEmbedChars  int `json:"max_embed_chars" yaml:"max_embed_chars"`
}

// EmbedConfig configures the embedding provider endpoint.
type EmbedConfig struct {
	Provider string `json:"provider" yaml:"provider"` // ollama, openai
	Model    string `json:"model" yaml:"model"`
	BaseURL  string `json:"base_url" yaml:"base_url"`
	APIKey   string `json:"api_key" yaml:"api_key"`
}

// DefaultConfig returns a Config with sensible defaults for local inference.
// Data is stored under ~/.lexlink/ by default.
func DefaultConfig() Config {
	return Config{
		DBName:     "lexlink",
		StorageDir: "home",
		Embedding: EmbedConfig{
			Provider: "ollama",
			Model:    "nomic-embed-text",
			BaseURL:  "http://localhost:11434",
		},
		EmbeddingDim:              768,
		WeightLexical:             0.4,
		WeightDense:               0.4,
		TopK:                      10,
		KFetchMultiplier:          20,
		KMerge:                    500,
		MaxInterpretivePerStatute: 3,
		SideTimeoutMs:             2000,
		SynthesisPassScore:        0.70,
		MaxHallucinationRate:      0.05,
		MaxRootTextChars:          20000,
		EmbedBatchSize:            32,
		MaxEmbedChars:             20000,
	}
}

// LoadConfig reads a YAML or JSON config file, chosen by extension,
// layered over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing yaml config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing json config: %w", err)
		}
	}
	return cfg, nil
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "lexlink"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db" // fallback to cwd
		}
		dir := filepath.Join(home, ".lexlink")
		return filepath.Join(dir, name+".db")
	}
}

// resolveDataDir computes the index generation directory.
func (c *Config) resolveDataDir() string {
	if c.DataDir != "" {
		return c.DataDir
	}
	return filepath.Join(filepath.Dir(c.resolveDBPath()), "index")
}
