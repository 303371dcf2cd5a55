package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Load reads configuration from a YAML file and environment variables.
// Priority: ENV > YAML > defaults (via env-default tags).
// The file path is the argument, else CONFIG_PATH, else "./config.yaml".
// A missing default file is not an error; a missing explicit one is.
func Load(path string) (*Config, error) {
	var cfg Config

	explicitPath := path != ""
	if !explicitPath {
		path = os.Getenv("CONFIG_PATH")
		explicitPath = path != ""
	}
	if !explicitPath {
		path = "./config.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if explicitPath {
		return nil, fmt.Errorf("config: file %s: %w", path, err)
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config: read env: %w", err)
		}
	}

	applyProviderKeys(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// applyProviderKeys fills API keys from the vendor-specific variables when
// the generic ones are empty.
func applyProviderKeys(cfg *Config) {
	vendorKey := func(provider string) string {
		switch provider {
		case ProviderAnthropic:
			return os.Getenv("ANTHROPIC_API_KEY")
		case ProviderOpenAI:
			return os.Getenv("OPENAI_API_KEY")
		}
		return ""
	}
	if cfg.Analysis.APIKey == "" {
		cfg.Analysis.APIKey = vendorKey(cfg.Analysis.Provider)
	}
	if cfg.Analysis.ImageAPIKey == "" {
		if cfg.Analysis.ImageProvider == cfg.Analysis.Provider {
			cfg.Analysis.ImageAPIKey = cfg.Analysis.APIKey
		} else {
			cfg.Analysis.ImageAPIKey = vendorKey(cfg.Analysis.ImageProvider)
		}
	}
}
