// Package config loads process configuration via viper, following the
// nested mapstructure-tagged struct convention the ambient stack uses
// throughout this module. It defines the shape and defaults every core
// component is built against, and Load fills them from a .env file, the
// config file and environment variables.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all process configuration.
type Config struct {
	App     App     `mapstructure:"app"`
	AI      AI      `mapstructure:"ai"`
	Storage Storage `mapstructure:"storage"`
	Search  Search  `mapstructure:"search"`
	Ingest  Ingest  `mapstructure:"ingest"`
}

// App holds general process configuration.
type App struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// AI holds AI provider configuration.
type AI struct {
	Gemini GeminiConfig `mapstructure:"gemini"`
	OpenAI OpenAIConfig `mapstructure:"openai"`
}

// GeminiConfig holds Google Gemini configuration.
type GeminiConfig struct {
	APIKey              string `mapstructure:"api_key"`
	Model               string `mapstructure:"model"`
	EmbeddingModel      string `mapstructure:"embedding_model"`
	EmbeddingDimensions int32  `mapstructure:"embedding_dimensions"`
}

// OpenAIConfig holds OpenAI-compatible provider configuration.
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// Storage holds storage-layer configuration.
type Storage struct {
	DataDir      string `mapstructure:"data_dir"`
	PostgresDSN  string `mapstructure:"postgres_dsn"`
	CodeStoreDir string `mapstructure:"code_store_dir"`
}

// Search holds hybrid-search defaults.
type Search struct {
	DefaultLimit         int      `mapstructure:"default_limit"`
	RRFConstant          int      `mapstructure:"rrf_constant"`
	TemporalKeywords     []string `mapstructure:"temporal_keywords"`
	TemporalPropertyName string   `mapstructure:"temporal_property_name"`
}

// Ingest holds ingestion-pipeline configuration.
type Ingest struct {
	Jina     JinaConfig     `mapstructure:"jina"`
	Coderepo CoderepoConfig `mapstructure:"coderepo"`
}

// JinaConfig configures the Jina readability ingest strategy.
type JinaConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// CoderepoConfig configures the code-repository ingestor.
type CoderepoConfig struct {
	CloneDir string `mapstructure:"clone_dir"`
}

var globalConfig *Config

// Load loads configuration from environment, an optional .env file, and an
// optional config file, applying defaults for anything unset.
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("warning: error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".ragcore")
		viper.SetConfigType("yaml")
	}

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}

	globalConfig = cfg
	return cfg, nil
}

// Get returns the process-wide configuration, loading it with defaults if
// Load has not been called yet.
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("config: failed to load: %v", err))
		}
		return cfg
	}
	return globalConfig
}

func setDefaults() {
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.log_level", "info")

	viper.SetDefault("ai.gemini.model", "gemini-flash-lite-latest")
	viper.SetDefault("ai.gemini.embedding_model", "gemini-embedding-001")
	viper.SetDefault("ai.gemini.embedding_dimensions", int32(768))
	viper.SetDefault("ai.openai.model", "gpt-4o-mini")
	viper.SetDefault("ai.openai.base_url", "https://api.openai.com/v1")

	viper.SetDefault("storage.data_dir", ".ragcore-data")
	viper.SetDefault("storage.code_store_dir", ".ragcore-data/coderepos")

	viper.SetDefault("search.default_limit", 10)
	viper.SetDefault("search.rrf_constant", 60)
	viper.SetDefault("search.temporal_keywords", []string{"latest", "newest", "most recent"})
	viper.SetDefault("search.temporal_property_name", "published_date")

	viper.SetDefault("ingest.coderepo.clone_dir", ".ragcore-data/clones")
}
