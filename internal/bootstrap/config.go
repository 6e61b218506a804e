package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddr string `env:"SERVER_ADDR" envDefault:":8080"`
	LogLevel   string `env:"LOG_LEVEL"   envDefault:"info"`
	LogFormat  string `env:"LOG_FORMAT"  envDefault:"json"`

	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`

	OpenAIBaseURL string        `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	VisionModel   string        `env:"VISION_MODEL"    envDefault:"gpt-4-vision-preview"`
	VisionTimeout time.Duration `env:"VISION_TIMEOUT"  envDefault:"60s"`

	ProbeTimeout      time.Duration `env:"PROBE_TIMEOUT"      envDefault:"10s"`
	SubmissionTimeout time.Duration `env:"SUBMISSION_TIMEOUT" envDefault:"3m"`
	SubmissionTTL     time.Duration `env:"SUBMISSION_TTL"     envDefault:"15m"`
	MaxUploadBytes    int64         `env:"MAX_UPLOAD_BYTES"   envDefault:"67108864"`

	TempDir         string        `env:"TEMP_DIR"`
	TempMaxAge      time.Duration `env:"TEMP_MAX_AGE"      envDefault:"30m"`
	JanitorSchedule string        `env:"JANITOR_SCHEDULE"  envDefault:"0 */5 * * * *"`

	RedisAddr     string `env:"REDIS_ADDR"     envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"       envDefault:"0"`

	OTelEndpoint string `env:"OTEL_ENDPOINT"`

	StaticDir string `env:"STATIC_DIR" envDefault:"./static"`
	IndexHTML string `env:"INDEX_HTML" envDefault:"./static/index.html"`
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.TempDir == "" {
		cfg.TempDir = filepath.Join(os.TempDir(), "kickflip")
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", cfg.MaxUploadBytes)
	}
	if cfg.TempMaxAge < cfg.SubmissionTimeout {
		return nil, fmt.Errorf("TEMP_MAX_AGE (%s) must not be shorter than SUBMISSION_TIMEOUT (%s)", cfg.TempMaxAge, cfg.SubmissionTimeout)
	}
	return cfg, nil
}
