package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr          string        `env:"HTTP_ADDR"           envDefault:":8080"`
	DBPath            string        `env:"DB_PATH"             envDefault:"db.sqlite"`
	Token             string        `env:"TOKEN"`
	AllowedUsers      []int64       `env:"ALLOWED_USERS"`
	OpenAIAPIKey      string        `env:"OPENAI_API_KEY"`
	CORSOrigin        string        `env:"CORS_ORIGIN"         envDefault:"*"`
	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT"     envDefault:"10s"`
	DiffCacheSize     int           `env:"DIFF_CACHE_SIZE"     envDefault:"1024"`
	DiffCacheTTL      time.Duration `env:"DIFF_CACHE_TTL"      envDefault:"1h"`
	SourceRefreshSpec string        `env:"SOURCE_REFRESH_SPEC" envDefault:"30 * * * *"`
}

func LoadConfig() Config {
	return env.Must(env.ParseAs[Config]())
}

// Parse reads the configuration from the given environment instead of the process one.
func Parse(environment map[string]string) (Config, error) {
	var cfg Config
	err := env.ParseWithOptions(&cfg, env.Options{Environment: environment})
	return cfg, err
}

// BotEnabled reports whether a Telegram token is configured.
func (c Config) BotEnabled() bool {
	return c.Token != ""
}
