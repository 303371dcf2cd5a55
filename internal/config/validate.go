package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Analysis provider names.
const (
	ProviderNone      = "none"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Validate performs business-rule validation on the loaded configuration.
// Load calls it automatically.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be in 1..65535 (got %d)", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout must be > 0"))
	}
	switch c.Server.Mode {
	case "", "release", "debug", "test":
	default:
		errs = append(errs, fmt.Errorf("server.mode must be release, debug or test (got %q)", c.Server.Mode))
	}

	if !strings.HasPrefix(c.Database.URL, "sqlite://") && !strings.HasPrefix(c.Database.URL, "postgres://") {
		errs = append(errs, fmt.Errorf("database.url must start with sqlite:// or postgres:// (got %q)", c.Database.URL))
	}

	if err := c.Aggregation.validate(); err != nil {
		errs = append(errs, fmt.Errorf("aggregation: %w", err))
	}
	if err := c.Analysis.validate(); err != nil {
		errs = append(errs, fmt.Errorf("analysis: %w", err))
	}

	if c.RateLimit.CreateRPS <= 0 || c.RateLimit.CreateBurst <= 0 {
		errs = append(errs, fmt.Errorf("ratelimit: create_rps and create_burst must be > 0"))
	}
	if c.RateLimit.SocketRPS <= 0 || c.RateLimit.SocketBurst <= 0 {
		errs = append(errs, fmt.Errorf("ratelimit: socket_rps and socket_burst must be > 0"))
	}

	if c.Notify.WebhookURL != "" {
		if u, err := url.Parse(c.Notify.WebhookURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Errorf("notify.webhook_url must be an http(s) URL"))
		}
	}

	return errors.Join(errs...)
}

func (a AggregationConfig) validate() error {
	if a.Interval <= 0 {
		return fmt.Errorf("interval must be > 0 (got %s)", a.Interval)
	}
	if a.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0 (got %s)", a.Timeout)
	}
	if a.InitialDelay < 0 {
		return fmt.Errorf("initial_delay must be >= 0 (got %s)", a.InitialDelay)
	}
	return nil
}

func (a AnalysisConfig) validate() error {
	switch a.Provider {
	case ProviderNone:
	case ProviderAnthropic, ProviderOpenAI:
		if a.APIKey == "" {
			return fmt.Errorf("api_key is required for provider %q", a.Provider)
		}
	default:
		return fmt.Errorf("unknown provider %q", a.Provider)
	}

	switch a.ImageProvider {
	case ProviderNone:
	case ProviderOpenAI:
		if a.ImageAPIKey == "" {
			return fmt.Errorf("image_api_key is required for image provider %q", a.ImageProvider)
		}
	default:
		return fmt.Errorf("unknown image provider %q", a.ImageProvider)
	}
	return nil
}
