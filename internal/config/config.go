// Package config loads gistloop settings from application.yml, a .env file
// and GISTLOOP_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "GISTLOOP"

type Config struct {
	LLM          LLM          `mapstructure:"llm"`
	Ollama       Ollama       `mapstructure:"ollama"`
	Index        Index        `mapstructure:"index"`
	Search       Search       `mapstructure:"search"`
	Conversation Conversation `mapstructure:"conversation"`
	Reviewer     Reviewer     `mapstructure:"reviewer"`
	Summarize    Summarize    `mapstructure:"summarize"`
	Store        Store        `mapstructure:"store"`
	Log          Log          `mapstructure:"log"`
}

type LLM struct {
	Provider    string        `mapstructure:"provider"`
	Model       string        `mapstructure:"model"`
	ReviewModel string        `mapstructure:"review_model"`
	APIKey      string        `mapstructure:"api_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Retries     int           `mapstructure:"retries"`
	RetryBase   time.Duration `mapstructure:"retry_base"`
	RPS         float64       `mapstructure:"rps"`
	Burst       int           `mapstructure:"burst"`
}

type Ollama struct {
	Host string `mapstructure:"host"`
}

type Index struct {
	Prefixes []string `mapstructure:"prefixes"`
	Suffixes []string `mapstructure:"suffixes"`
}

type Search struct {
	Extensions  []string `mapstructure:"extensions"`
	MaxFiles    int      `mapstructure:"max_files"`
	MaxFileSize int64    `mapstructure:"max_file_size"`
	Workers     int      `mapstructure:"workers"`
}

type Conversation struct {
	MaxRounds   int `mapstructure:"max_rounds"`
	ReviewEvery int `mapstructure:"review_every"`
	MaxFindings int `mapstructure:"max_findings"`
}

type Reviewer struct {
	Enabled    bool `mapstructure:"enabled"`
	MaxHistory int  `mapstructure:"max_history"`
}

type Summarize struct {
	Workers int `mapstructure:"workers"`
}

type Store struct {
	Kind     string   `mapstructure:"kind"` // file, s3 or postgres
	S3       S3       `mapstructure:"s3"`
	Postgres Postgres `mapstructure:"postgres"`
}

type S3 struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type Postgres struct {
	DSN string `mapstructure:"dsn"`
}

type Log struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.review_model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.timeout", 120*time.Second)
	v.SetDefault("llm.retries", 4)
	v.SetDefault("llm.retry_base", 2*time.Second)
	v.SetDefault("llm.rps", 0.0)
	v.SetDefault("llm.burst", 1)
	v.SetDefault("ollama.host", "http://localhost:11434")
	v.SetDefault("index.prefixes", []string{"src/main/java"})
	v.SetDefault("index.suffixes", []string{".java"})
	v.SetDefault("search.extensions", []string{".java", ".yml", ".properties"})
	v.SetDefault("search.max_files", 10000)
	v.SetDefault("search.max_file_size", int64(1<<20))
	v.SetDefault("search.workers", 8)
	v.SetDefault("conversation.max_rounds", 8)
	v.SetDefault("conversation.review_every", 2)
	v.SetDefault("conversation.max_findings", 15)
	v.SetDefault("reviewer.enabled", true)
	v.SetDefault("reviewer.max_history", 10)
	v.SetDefault("summarize.workers", 2)
	v.SetDefault("store.kind", "file")
	v.SetDefault("store.s3.endpoint", "")
	v.SetDefault("store.s3.region", "")
	v.SetDefault("store.s3.access_key", "")
	v.SetDefault("store.s3.secret_key", "")
	v.SetDefault("store.s3.bucket", "gistloop")
	v.SetDefault("store.s3.use_ssl", false)
	v.SetDefault("store.postgres.dsn", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Load reads the configuration. An explicit path must exist; otherwise
// application.yml in dir is optional. A .env file in dir is applied to the
// process environment first and never overrides variables already set.
func Load(path, dir string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName("application")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: read application.yml: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = providerKey(cfg.LLM.Provider)
	}
	return &cfg, cfg.Validate()
}

// providerKey returns the vendor's conventional API key variable.
func providerKey(provider string) string {
	switch strings.ToLower(provider) {
	case "", "gemini":
		return os.Getenv("GEMINI_API_KEY")
	case "groq":
		return os.Getenv("GROQ_API_KEY")
	}
	return ""
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Store.Kind) {
	case "file", "":
	case "s3":
		if c.Store.S3.Endpoint == "" {
			return errors.New("config: store.s3.endpoint is required for the s3 store")
		}
	case "postgres":
		if c.Store.Postgres.DSN == "" {
			return errors.New("config: store.postgres.dsn is required for the postgres store")
		}
	default:
		return fmt.Errorf("config: unknown store.kind %q", c.Store.Kind)
	}
	if c.Conversation.MaxRounds < 1 {
		return fmt.Errorf("config: conversation.max_rounds must be positive, got %d", c.Conversation.MaxRounds)
	}
	if len(c.Index.Prefixes) == 0 {
		return errors.New("config: index.prefixes must not be empty")
	}
	return nil
}
