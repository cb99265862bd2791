package config

import (
	"fmt"

	"beacon/internal/constants"
)

// Validate checks the static invariants of a loaded configuration.
func Validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in (0, 65535], got %d", cfg.Server.Port)
	}

	switch cfg.Broker.Type {
	case "kafka":
		if len(cfg.Broker.Kafka.Brokers) == 0 {
			return fmt.Errorf("broker.kafka.brokers must not be empty")
		}
	case "":
		return fmt.Errorf("broker.type is required")
	default:
		return fmt.Errorf("unknown broker.type: %s", cfg.Broker.Type)
	}

	switch cfg.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging.level: %s", cfg.Logging.Level)
	}

	switch cfg.Profile.Provider {
	case "", constants.ProviderNameCache, constants.ProviderNameMongoDB, constants.ProviderNamePostgreSQL:
	default:
		return fmt.Errorf("unknown profile.provider: %s", cfg.Profile.Provider)
	}

	for i, rule := range cfg.Filtering.Rules {
		if rule.Expression == "" {
			return fmt.Errorf("filtering.rules[%d]: expression is required", i)
		}
	}

	return nil
}
