package config

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type HTTP struct {
	Port string `yaml:"port" env:"PORT" env-default:"8080"`
}

type Database struct {
	URL string `yaml:"url" env:"DATABASE_URL" env-required:"true"`
}

type Model struct {
	BaseURL        string        `yaml:"base_url" env:"MODEL_BASE_URL" env-default:"https://api.openai.com/v1"`
	APIKey         string        `yaml:"api_key" env:"MODEL_API_KEY" env-required:"true"`
	Name           string        `yaml:"name" env:"MODEL_NAME" env-default:"gpt-4o-mini"`
	EmbeddingModel string        `yaml:"embedding_model" env:"EMBEDDING_MODEL" env-default:"text-embedding-3-small"`
	Temperature    float32       `yaml:"temperature" env:"MODEL_TEMPERATURE" env-default:"0.7"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"MODEL_REQUEST_TIMEOUT" env-default:"90s"`
	// TokenBudget caps the replayed history; oldest non-system messages are
	// dropped until the context fits.
	TokenBudget int `yaml:"token_budget" env:"MODEL_TOKEN_BUDGET" env-default:"6000"`
}

type Turn struct {
	// MaxIterations bounds the tool-call loop within a single turn.
	MaxIterations int `yaml:"max_iterations" env:"TURN_MAX_ITERATIONS" env-default:"8"`
	// ConfirmationTTL expires pending tool confirmations that the client
	// never resolves.
	ConfirmationTTL time.Duration `yaml:"confirmation_ttl" env:"CONFIRMATION_TTL" env-default:"5m"`
}

type Discord struct {
	WebhookURL string `yaml:"webhook_url" env:"DISCORD_WEBHOOK_URL"`
}

type Config struct {
	HTTP     HTTP     `yaml:"http"`
	Database Database `yaml:"database"`
	Model    Model    `yaml:"model"`
	Turn     Turn     `yaml:"turn"`
	Discord  Discord  `yaml:"discord"`
}

// Load reads an optional yaml config file, then overlays environment
// variables on top of it.
func Load(cfgPath string) (*Config, error) {
	var cfg Config
	if cfgPath != "" {
		if err := cleanenv.ReadConfig(cfgPath, &cfg); err != nil {
			return nil, err
		}
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
