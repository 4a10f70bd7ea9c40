// Package config loads application configuration from an optional YAML
// file with environment-variable overrides on top.
package config

import (
	"errors"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the root application configuration.
type Config struct {
	Addr        string `yaml:"addr"`
	HoldingsCSV string `yaml:"holdings_csv"`
	TradesCSV   string `yaml:"trades_csv"`

	OllamaURL      string `yaml:"ollama_url"`
	EmbeddingModel string `yaml:"embedding_model"`
	LLMModel       string `yaml:"llm_model"`
	MaxTokens      int    `yaml:"max_tokens"`

	TopKDefault           int `yaml:"top_k_default"`
	MaxHistory            int `yaml:"max_history"`
	GenerationTimeoutSecs int `yaml:"generation_timeout_secs"`

	VectorStore string `yaml:"vector_store"` // "memory" or "sqlite"
	DataPath    string `yaml:"data_path"`    // sqlite index location
	WatchFiles  bool   `yaml:"watch_files"`
}

// Load reads a config from path. A missing file yields defaults; the
// environment always wins over the file.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	applyEnv(cfg)
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Addr:                  ":8000",
		HoldingsCSV:           "dataset/holdings.csv",
		TradesCSV:             "dataset/trades.csv",
		OllamaURL:             "http://localhost:11434",
		EmbeddingModel:        "nomic-embed-text",
		LLMModel:              "llama3.2",
		MaxTokens:             512,
		TopKDefault:           5,
		MaxHistory:            10,
		GenerationTimeoutSecs: 60,
		VectorStore:           "memory",
		DataPath:              "./data",
		WatchFiles:            true,
	}
}

func applyDefaults(cfg *Config) {
	def := defaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.HoldingsCSV == "" {
		cfg.HoldingsCSV = def.HoldingsCSV
	}
	if cfg.TradesCSV == "" {
		cfg.TradesCSV = def.TradesCSV
	}
	if cfg.OllamaURL == "" {
		cfg.OllamaURL = def.OllamaURL
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = def.EmbeddingModel
	}
	if cfg.LLMModel == "" {
		cfg.LLMModel = def.LLMModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.TopKDefault <= 0 {
		cfg.TopKDefault = def.TopKDefault
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = def.MaxHistory
	}
	if cfg.GenerationTimeoutSecs <= 0 {
		cfg.GenerationTimeoutSecs = def.GenerationTimeoutSecs
	}
	if cfg.VectorStore == "" {
		cfg.VectorStore = def.VectorStore
	}
	if cfg.DataPath == "" {
		cfg.DataPath = def.DataPath
	}
}

// applyEnv layers environment overrides on top of the file values.
func applyEnv(cfg *Config) {
	setString(&cfg.Addr, "ADDR")
	setString(&cfg.HoldingsCSV, "HOLDINGS_CSV")
	setString(&cfg.TradesCSV, "TRADES_CSV")
	setString(&cfg.OllamaURL, "OLLAMA_URL")
	setString(&cfg.EmbeddingModel, "EMBEDDING_MODEL")
	setString(&cfg.LLMModel, "LLM_MODEL")
	setString(&cfg.VectorStore, "VECTOR_STORE")
	setString(&cfg.DataPath, "DATA_PATH")
	setInt(&cfg.MaxTokens, "MAX_TOKENS")
	setInt(&cfg.TopKDefault, "TOP_K_DEFAULT")
	setInt(&cfg.MaxHistory, "MAX_HISTORY")
	setInt(&cfg.GenerationTimeoutSecs, "GENERATION_TIMEOUT_SECS")
	if v := os.Getenv("WATCH_FILES"); v != "" {
		cfg.WatchFiles = v == "1" || v == "true"
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			*dst = parsed
		}
	}
}
