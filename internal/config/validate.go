package config

import "errors"

func ValidateForRun(cfg *Config) error {
	if cfg.Assistant.URL == "" {
		return errors.New("ASSISTANT_URL environment variable is required")
	}
	if err := cfg.Redis.Validate(); err != nil {
		return err
	}
	return cfg.Coalesce.Validate()
}
