// Package config loads the service configuration from a YAML file plus
// environment variables (.env supported). One Config value is constructed
// at startup and passed by reference into every collaborator.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM        LLMConfig        `yaml:"llm" validate:"required"`
	Generation GenerationConfig `yaml:"generation" validate:"required"`
	Paths      PathsConfig      `yaml:"paths" validate:"required"`
	Server     ServerConfig     `yaml:"server" validate:"required"`
}

type LLMConfig struct {
	Provider  string `yaml:"provider" validate:"required,oneof=openai zhipu baidu"`
	APIKey    string `yaml:"api_key" validate:"required"`
	APISecret string `yaml:"api_secret" validate:"required_if=Provider baidu"`
	BaseURL   string `yaml:"base_url" validate:"required,url"`
	Model     string `yaml:"model" validate:"required"`

	Temperature float64 `yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `yaml:"max_tokens" validate:"required,min=1,max=131072"`
	TopP        float64 `yaml:"top_p" validate:"gte=0,lte=1"`

	RequestTimeout time.Duration `yaml:"request_timeout" validate:"required,min=1s,max=1h"`
	MaxRetries     int           `yaml:"max_retries" validate:"min=0,max=10"`
	RetryDelay     time.Duration `yaml:"retry_delay" validate:"required,min=1ms"`
	RetryBackoff   float64       `yaml:"retry_backoff" validate:"required,gte=1"`

	RateLimit RateLimitConfig `yaml:"rate_limit" validate:"required"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" validate:"required,min=1,max=10000"`
	BurstSize         int `yaml:"burst_size" validate:"required,min=1,max=1000"`
}

type GenerationConfig struct {
	Concurrency int           `yaml:"concurrency" validate:"required,min=1,max=100"`
	ItemPause   time.Duration `yaml:"item_pause" validate:"min=0"`
	BatchPause  time.Duration `yaml:"batch_pause" validate:"min=0"`
}

type PathsConfig struct {
	DataDir     string `yaml:"data_dir" validate:"required"`
	PromptsFile string `yaml:"prompts_file" validate:"required"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

// Load reads the config file at path (defaults apply when the file is
// absent), overlays credential environment variables, and validates the
// result.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = os.Getenv("BIDWRITER_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	if key := os.Getenv("LLM_API_KEY"); key != "" {
		cfg.LLM.APIKey = key
	}
	if secret := os.Getenv("LLM_API_SECRET"); secret != "" {
		cfg.LLM.APISecret = secret
	}
	if base := os.Getenv("LLM_API_BASE"); base != "" {
		cfg.LLM.BaseURL = base
	}
	if model := os.Getenv("LLM_MODEL"); model != "" {
		cfg.LLM.Model = model
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration the original deployment shipped with.
func Default() *Config {
	dataDir := dataHome()
	return &Config{
		LLM: LLMConfig{
			Provider:       "openai",
			BaseURL:        "https://ark.cn-beijing.volces.com/api/v3/chat/completions",
			Model:          "doubao-seed-1-6-251015",
			Temperature:    0.7,
			MaxTokens:      8192,
			TopP:           0.1,
			RequestTimeout: 30 * time.Second,
			MaxRetries:     3,
			RetryDelay:     2 * time.Second,
			RetryBackoff:   1.5,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 120,
				BurstSize:         15,
			},
		},
		Generation: GenerationConfig{
			Concurrency: 15,
			ItemPause:   50 * time.Millisecond,
			BatchPause:  200 * time.Millisecond,
		},
		Paths: PathsConfig{
			DataDir:     dataDir,
			PromptsFile: filepath.Join(dataDir, "config", "prompt_config.json"),
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

func dataHome() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "bidwriter")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "bidwriter")
}

func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
