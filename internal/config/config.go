package config

import (
	"fmt"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Log         LogConfig         `yaml:"log"`
	CORS        CORSConfig        `yaml:"cors"`
	Admin       AdminConfig       `yaml:"admin"`
	Aggregation AggregationConfig `yaml:"aggregation"`
	Analysis    AnalysisConfig    `yaml:"analysis"`
	RateLimit   RateLimitConfig   `yaml:"ratelimit"`
	Notify      NotifyConfig      `yaml:"notify"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"             env:"SERVER_HOST"             env-default:"0.0.0.0"`
	Port            int           `yaml:"port"             env:"PORT"                    env-default:"8057"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"5s"`
	Mode            string        `yaml:"mode"             env:"GIN_MODE"                env-default:"release"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig selects the store. URL is sqlite://<path> or postgres://<dsn>.
type DatabaseConfig struct {
	URL          string `yaml:"url"            env:"DATABASE_URL"            env-default:"sqlite://retro.db"`
	MaxOpenConns int    `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS" env-default:"20"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// CORSConfig holds the allowed origin for browsers and websocket upgrades.
type CORSConfig struct {
	Origin string `yaml:"origin" env:"CORS_ORIGIN" env-default:"*"`
}

// AdminConfig guards the manual aggregation trigger on the REST surface.
type AdminConfig struct {
	Token string `yaml:"token" env:"X_ADMIN_TOKEN"`
}

// AggregationConfig configures the background summary job.
type AggregationConfig struct {
	Interval     time.Duration `yaml:"interval"      env:"AI_INTERVAL"      env-default:"30m"`
	InitialDelay time.Duration `yaml:"initial_delay" env:"AI_INITIAL_DELAY" env-default:"5s"`
	Timeout      time.Duration `yaml:"timeout"       env:"AI_TIMEOUT"       env-default:"60s"`
}

// AnalysisConfig configures the external AI collaborator.
type AnalysisConfig struct {
	Provider      string `yaml:"provider"       env:"AI_PROVIDER"       env-default:"none"`
	APIKey        string `yaml:"api_key"        env:"AI_API_KEY"`
	Model         string `yaml:"model"          env:"AI_MODEL"`
	BaseURL       string `yaml:"base_url"       env:"AI_BASE_URL"`
	ImageProvider string `yaml:"image_provider" env:"AI_IMAGE_PROVIDER" env-default:"none"`
	ImageAPIKey   string `yaml:"image_api_key"  env:"AI_IMAGE_API_KEY"`
	ImageModel    string `yaml:"image_model"    env:"AI_IMAGE_MODEL"`
	Context       string `yaml:"context"        env:"AI_CONTEXT"`
}

// RateLimitConfig bounds how fast a single client may mutate the board.
type RateLimitConfig struct {
	CreateRPS   float64 `yaml:"create_rps"   env:"RATELIMIT_CREATE_RPS"   env-default:"1"`
	CreateBurst int     `yaml:"create_burst" env:"RATELIMIT_CREATE_BURST" env-default:"5"`
	SocketRPS   float64 `yaml:"socket_rps"   env:"RATELIMIT_SOCKET_RPS"   env-default:"10"`
	SocketBurst int     `yaml:"socket_burst" env:"RATELIMIT_SOCKET_BURST" env-default:"20"`
}

// NotifyConfig configures the outbound webhook fired after each published aggregate.
type NotifyConfig struct {
	WebhookURL    string `yaml:"webhook_url"    env:"NOTIFY_WEBHOOK_URL"`
	WebhookSecret string `yaml:"webhook_secret" env:"NOTIFY_WEBHOOK_SECRET"`
}

// Masked returns a copy with secrets blanked out, for printing.
func (c Config) Masked() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "****"
	}
	c.Admin.Token = mask(c.Admin.Token)
	c.Analysis.APIKey = mask(c.Analysis.APIKey)
	c.Analysis.ImageAPIKey = mask(c.Analysis.ImageAPIKey)
	c.Notify.WebhookSecret = mask(c.Notify.WebhookSecret)
	return c
}
