package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Supported generation backends
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	AI       AIConfig       `yaml:"ai"`
	Cache    CacheConfig    `yaml:"cache"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	PublicURL    string        `yaml:"public_url"` // prefix for asset handles
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type AIConfig struct {
	Provider    string        `yaml:"provider"`
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	TextModel   string        `yaml:"text_model"`
	ImageModel  string        `yaml:"image_model"`
	SpeechModel string        `yaml:"speech_model"`
	FlowTimeout time.Duration `yaml:"flow_timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	Workers     int           `yaml:"workers"` // background follow-up jobs
}

type CacheConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Redis     RedisConfig   `yaml:"redis"`
	SpeechTTL time.Duration `yaml:"speech_ttl"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type DatabaseConfig struct {
	Enabled bool        `yaml:"enabled"`
	MySQL   MySQLConfig `yaml:"mysql"`
}

type MySQLConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DSN returns the go-sql-driver DSN for the configured database
func (c MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.Username,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 180 * time.Second,
		},
		AI: AIConfig{
			Provider:    ProviderGemini,
			FlowTimeout: 120 * time.Second,
			MaxRetries:  3,
			RetryDelay:  time.Second,
			Workers:     4,
		},
		Cache: CacheConfig{
			Redis: RedisConfig{
				Host:     "localhost",
				Port:     6379,
				PoolSize: 10,
			},
			SpeechTTL: 24 * time.Hour,
		},
		Database: DatabaseConfig{
			MySQL: MySQLConfig{
				Host:            "localhost",
				Port:            3306,
				Database:        "viral_card",
				MaxOpenConns:    10,
				MaxIdleConns:    5,
				ConnMaxLifetime: time.Hour,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from a YAML file on top of Default. A missing file
// is not an error. A .env file in the working directory is loaded first so
// credentials can live outside the YAML.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv applies environment variable overrides
func (c *Config) applyEnv() {
	switch c.AI.Provider {
	case ProviderOpenAI:
		if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
			c.AI.APIKey = apiKey
		}
		if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
			c.AI.BaseURL = baseURL
		}
	default:
		if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
			c.AI.APIKey = apiKey
		} else if apiKey := os.Getenv("API_KEY"); apiKey != "" {
			c.AI.APIKey = apiKey
		}
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if url := os.Getenv("PUBLIC_URL"); url != "" {
		c.Server.PublicURL = url
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		c.Cache.Redis.Password = pw
	}
	if pw := os.Getenv("MYSQL_PASSWORD"); pw != "" {
		c.Database.MySQL.Password = pw
	}
}

// Validate checks values that would otherwise fail late
func (c *Config) Validate() error {
	if c.AI.Provider != ProviderGemini && c.AI.Provider != ProviderOpenAI {
		return fmt.Errorf("unknown ai.provider %q", c.AI.Provider)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.AI.FlowTimeout <= 0 {
		return errors.New("ai.flow_timeout must be positive")
	}
	if c.AI.MaxRetries < 1 {
		c.AI.MaxRetries = 1
	}
	c.AI.defaultModels()
	return nil
}

// defaultModels fills unset model names for the selected provider
func (a *AIConfig) defaultModels() {
	text, image, speech := "gemini-3-flash-preview", "gemini-2.5-flash-image", "gemini-2.5-flash-preview-tts"
	if a.Provider == ProviderOpenAI {
		text, image, speech = "gpt-4o-mini", "dall-e-3", "tts-1"
	}
	if a.TextModel == "" {
		a.TextModel = text
	}
	if a.ImageModel == "" {
		a.ImageModel = image
	}
	if a.SpeechModel == "" {
		a.SpeechModel = speech
	}
}

// Addr is the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// AssetBaseURL is the prefix every asset handle starts with
func (c *Config) AssetBaseURL() string {
	if c.Server.PublicURL != "" {
		return c.Server.PublicURL
	}
	return fmt.Sprintf("http://localhost:%d", c.Server.Port)
}
