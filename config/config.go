package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Store    StoreConfig    `yaml:"store"`
	Upload   UploadConfig   `yaml:"upload"`
	Model    ModelConfig    `yaml:"model"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Penalty  PenaltyConfig  `yaml:"penalty"`
	OCR      OCRConfig      `yaml:"ocr"`
	Minio    MinioConfig    `yaml:"minio"`
	Mineru   MineruConfig   `yaml:"mineru"`
}

type ServerConfig struct {
	Port            int `yaml:"port"`
	RateLimitPerMin int `yaml:"rate_limit_per_min"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type StoreConfig struct {
	MaxContracts int `yaml:"max_contracts"` // 0 = unlimited
}

type UploadConfig struct {
	MaxBytes int64 `yaml:"max_bytes"` // at most MaxUploadBytes
}

// MaxUploadBytes is the hard PDF size limit
const MaxUploadBytes = 5 << 20

// ModelConfig selects and configures the generative model backend
type ModelConfig struct {
	Provider    string  `yaml:"provider"` // gemini, ollama
	Name        string  `yaml:"name"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float32 `yaml:"temperature"`
}

// PipelineConfig is the invocation policy applied to every prompt stage
type PipelineConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	Backoff           time.Duration `yaml:"backoff"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
}

type PenaltyConfig struct {
	Currency          string  `yaml:"currency"`
	DefaultBaseAmount float64 `yaml:"default_base_amount"`
	FallbackAmount    float64 `yaml:"fallback_amount"`
}

type OCRConfig struct {
	Engine         string `yaml:"engine"` // model, mineru
	ArchiveUploads bool   `yaml:"archive_uploads"`
}

type MinioConfig struct {
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Bucket     string `yaml:"bucket"`
	UseSSL     bool   `yaml:"use_ssl"`
	Region     string `yaml:"region"`
	ExpireDays int    `yaml:"expire_days"`
}

type MineruConfig struct {
	APIURL       string        `yaml:"api_url"`
	APIToken     string        `yaml:"api_token"`
	ModelVersion string        `yaml:"model_version"`
	CallbackURL  string        `yaml:"callback_url"`
	Seed         string        `yaml:"seed"`
	UID          string        `yaml:"uid"` // account uid, part of the callback checksum
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxPolls     int           `yaml:"max_polls"`
}

// Engine names
const (
	EngineModel  = "model"
	EngineMineru = "mineru"
)

// Provider names
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config with every default applied
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.RateLimitPerMin == 0 {
		c.Server.RateLimitPerMin = 100
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Upload.MaxBytes == 0 {
		c.Upload.MaxBytes = MaxUploadBytes
	}
	if c.Model.Provider == "" {
		c.Model.Provider = ProviderGemini
	}
	if c.Model.Name == "" {
		switch c.Model.Provider {
		case ProviderOllama:
			c.Model.Name = "llama3"
		default:
			c.Model.Name = "gemini-2.0-flash"
		}
	}
	if c.Model.APIKey == "" {
		c.Model.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.Model.BaseURL == "" && c.Model.Provider == ProviderOllama {
		c.Model.BaseURL = os.Getenv("OLLAMA_API_URL")
		if c.Model.BaseURL == "" {
			c.Model.BaseURL = "http://localhost:11434"
		}
	}
	if c.Pipeline.MaxAttempts == 0 {
		c.Pipeline.MaxAttempts = 1
	}
	if c.Penalty.Currency == "" {
		c.Penalty.Currency = "USD"
	}
	if c.Penalty.DefaultBaseAmount == 0 {
		c.Penalty.DefaultBaseAmount = 10000
	}
	if c.Penalty.FallbackAmount == 0 {
		c.Penalty.FallbackAmount = 100
	}
	if c.OCR.Engine == "" {
		c.OCR.Engine = EngineModel
	}
	if c.Minio.Region == "" {
		c.Minio.Region = "us-east-1"
	}
	if c.Minio.ExpireDays == 0 {
		c.Minio.ExpireDays = 7
	}
	if c.Mineru.ModelVersion == "" {
		c.Mineru.ModelVersion = "vlm"
	}
	if c.Mineru.PollInterval == 0 {
		c.Mineru.PollInterval = 5 * time.Second
	}
	if c.Mineru.MaxPolls == 0 {
		c.Mineru.MaxPolls = 60
	}
}

// Validate rejects combinations the services cannot run with
func (c *Config) Validate() error {
	switch c.Model.Provider {
	case ProviderGemini, ProviderOllama:
	default:
		return fmt.Errorf("unknown model provider %q", c.Model.Provider)
	}
	switch c.OCR.Engine {
	case EngineModel:
		if c.Model.Provider == ProviderOllama {
			return fmt.Errorf("model provider %q cannot read PDFs; set ocr.engine: %s", c.Model.Provider, EngineMineru)
		}
	case EngineMineru:
		if c.Mineru.APIURL == "" {
			return fmt.Errorf("ocr engine %q requires mineru.api_url", c.OCR.Engine)
		}
		if c.Minio.Endpoint == "" {
			return fmt.Errorf("ocr engine %q requires minio.endpoint", c.OCR.Engine)
		}
	default:
		return fmt.Errorf("unknown ocr engine %q", c.OCR.Engine)
	}
	if c.OCR.ArchiveUploads && c.Minio.Endpoint == "" {
		return fmt.Errorf("ocr.archive_uploads requires minio.endpoint")
	}
	if c.Upload.MaxBytes < 0 || c.Upload.MaxBytes > MaxUploadBytes {
		return fmt.Errorf("upload.max_bytes must be between 1 and %d", MaxUploadBytes)
	}
	if c.Pipeline.MaxAttempts < 0 {
		return fmt.Errorf("pipeline.max_attempts must be positive")
	}
	return nil
}

// MinioEnabled reports whether object storage is configured
func (c *Config) MinioEnabled() bool {
	return c.Minio.Endpoint != ""
}
