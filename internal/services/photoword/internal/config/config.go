package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hiroshi75/photoword/internal/pkg/env"
	"gopkg.in/yaml.v3"
)

type Config struct {
	AuthSecret    string
	DefaultUser   string
	UserCacheKeys int64
	UserCacheCost int64
	Log           logConfig
	DB            dbConfig
	Http          httpConfig
	Image         imageConfig
	Session       sessionConfig
	Extractor     ExtractorConfig
}

type logConfig struct {
	Level  string
	Format string
}

type dbConfig struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	Path     string
}

type httpConfig struct {
	ListenAddr      string
	IdleTimeout     time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type imageConfig struct {
	MaxSize   int64
	MaxWidth  int
	MaxHeight int
}

type sessionConfig struct {
	Backend  string
	TTL      time.Duration
	BoltPath string
	Redis    redisConfig
}

type redisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ExtractorConfig selects the vision model provider. It can be read from the
// environment or from a YAML profile file.
type ExtractorConfig struct {
	Provider   string        `yaml:"provider"`
	Model      string        `yaml:"model"`
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key,omitempty"`
	APIKeyEnv  string        `yaml:"api_key_env,omitempty"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	MaxTokens  int           `yaml:"max_tokens"`
	SourceLang string        `yaml:"source_lang"`
	TargetLang string        `yaml:"target_lang"`
	ConfigFile string        `yaml:"-"`
}

func FromEnv() Config {
	return Config{
		AuthSecret:    env.String("AUTH_SECRET", ""),
		DefaultUser:   env.String("DEFAULT_USER", "test_user"),
		UserCacheKeys: env.Int64("USER_CACHE_KEYS", 10000),
		UserCacheCost: env.Int64("USER_CACHE_COST", 10000),
		Log: logConfig{
			Level:  env.OneOf("LOG_LEVEL", "info", "debug", "info", "warn", "error"),
			Format: env.OneOf("LOG_FORMAT", "json", "json", "text"),
		},
		DB: dbConfig{
			Driver:   env.OneOf("DB_DRIVER", "sqlite", "sqlite", "postgres"),
			Host:     env.String("DB_HOST", "localhost"),
			Port:     env.String("DB_PORT", "5432"),
			User:     env.String("DB_USER", "postgres"),
			Password: env.String("DB_PASSWORD", "password"),
			Name:     env.String("DB_NAME", "photoword"),
			SSLMode:  env.String("DB_SSLMODE", "disable"),
			Path:     env.String("DB_PATH", "data/photoword.db"),
		},
		Http: httpConfig{
			ListenAddr:      env.String("HTTP_LISTEN_ADDR", ":8080"),
			IdleTimeout:     env.Duration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			ReadTimeout:     env.Duration("HTTP_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    env.Duration("HTTP_WRITE_TIMEOUT", 90*time.Second),
			ShutdownTimeout: env.Duration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Image: imageConfig{
			MaxSize:   env.Int64("IMAGE_MAX_SIZE", 10<<20),
			MaxWidth:  env.Int("IMAGE_MAX_WIDTH", 8000),
			MaxHeight: env.Int("IMAGE_MAX_HEIGHT", 8000),
		},
		Session: sessionConfig{
			Backend:  env.OneOf("SESSION_BACKEND", "memory", "memory", "redis", "bolt"),
			TTL:      env.Duration("SESSION_TTL", 24*time.Hour),
			BoltPath: env.String("SESSION_BOLT_PATH", "data/sessions.db"),
			Redis: redisConfig{
				Addr:     env.String("REDIS_ADDR", "localhost:6379"),
				Password: env.String("REDIS_PASSWORD", ""),
				DB:       env.Int("REDIS_DB", 0),
			},
		},
		Extractor: ExtractorConfig{
			Provider:   env.OneOf("EXTRACTOR_PROVIDER", "anthropic", "anthropic", "gemini", "openai"),
			Model:      env.String("EXTRACTOR_MODEL", ""),
			BaseURL:    env.String("EXTRACTOR_BASE_URL", ""),
			APIKey:     env.String("EXTRACTOR_API_KEY", ""),
			Timeout:    env.Duration("EXTRACTOR_TIMEOUT", 30*time.Second),
			MaxRetries: env.Int("EXTRACTOR_MAX_RETRIES", 2),
			MaxTokens:  env.Int("EXTRACTOR_MAX_TOKENS", 1000),
			SourceLang: env.String("EXTRACTOR_SOURCE_LANG", "Spanish"),
			TargetLang: env.String("EXTRACTOR_TARGET_LANG", "Japanese"),
			ConfigFile: env.String("EXTRACTOR_CONFIG", ""),
		},
	}
}

// LoadExtractorFile reads an extractor profile from path. Fields the file
// leaves out or empty are taken from fallback, and api_key_env names the
// variable holding the key when api_key is not set.
func LoadExtractorFile(path string, fallback ExtractorConfig) (ExtractorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ExtractorConfig{}, fmt.Errorf("read extractor config: %w", err)
	}

	// keys absent from the file keep the fallback value, so an explicit
	// max_retries: 0 survives
	cfg := fallback
	cfg.APIKey, cfg.APIKeyEnv = "", ""
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return ExtractorConfig{}, fmt.Errorf("parse extractor config %s: %w", path, err)
	}

	if cfg.APIKey == "" && cfg.APIKeyEnv != "" {
		cfg.APIKey = env.String(cfg.APIKeyEnv, "")
	}

	cfg.ConfigFile = path
	return cfg.merge(fallback), nil
}

func (c ExtractorConfig) merge(fb ExtractorConfig) ExtractorConfig {
	if c.Provider == "" {
		c.Provider = fb.Provider
	}
	if c.Model == "" {
		c.Model = fb.Model
	}
	if c.BaseURL == "" {
		c.BaseURL = fb.BaseURL
	}
	if c.APIKey == "" {
		c.APIKey = fb.APIKey
	}
	if c.Timeout == 0 {
		c.Timeout = fb.Timeout
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = fb.MaxTokens
	}
	if c.SourceLang == "" {
		c.SourceLang = fb.SourceLang
	}
	if c.TargetLang == "" {
		c.TargetLang = fb.TargetLang
	}
	return c
}
