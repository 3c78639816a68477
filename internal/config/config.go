package config

import (
	"os"
	"runtime"
	"strconv"
	"strings"

	"gosuperior/domain/superior"
	"gosuperior/domain/trial"
	"gosuperior/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database  DatabaseConfig
	Selection SelectionConfig
	Columns   trial.Columns
	Engine    EngineConfig
	Server    ServerConfig
	Paths     PathConfig
	LogLevel  string
}

// DatabaseConfig holds database connection settings. An empty URL disables
// result persistence.
type DatabaseConfig struct {
	URL string
}

// Enabled reports whether results should be persisted.
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// SelectionConfig holds the default selection spec
type SelectionConfig struct {
	Intensity float64
	Increase  bool
}

// Spec converts the configured selection into a domain spec.
func (s SelectionConfig) Spec() superior.SelectionSpec {
	return superior.SelectionSpec{Intensity: s.Intensity, Increase: s.Increase}
}

// EngineConfig holds estimation settings
type EngineConfig struct {
	Workers int
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// PathConfig holds file system paths
type PathConfig struct {
	ExportDir string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	intensity, err := getEnvFloat("SUPERIOR_INTENSITY", 0.2)
	if err != nil {
		return nil, err
	}
	increase, err := getEnvBool("SUPERIOR_INCREASE", true)
	if err != nil {
		return nil, err
	}
	workers, err := getEnvInt("SUPERIOR_WORKERS", runtime.GOMAXPROCS(0))
	if err != nil {
		return nil, err
	}

	config := &Config{
		Database: DatabaseConfig{
			URL: getEnvOrDefault("DATABASE_URL", ""),
		},
		Selection: SelectionConfig{
			Intensity: intensity,
			Increase:  increase,
		},
		Columns: trial.Columns{
			Genotype:    getEnvOrDefault("GENOTYPE_COLUMN", "gen"),
			Environment: getEnvOrDefault("ENVIRONMENT_COLUMN", "env"),
			Region:      getEnvOrDefault("REGION_COLUMN", ""),
			Trait:       getEnvOrDefault("TRAIT_COLUMN", "y"),
		},
		Engine: EngineConfig{
			Workers: workers,
		},
		Server: ServerConfig{
			Port:    getEnvOrDefault("PORT", "8080"),
			GinMode: getEnvOrDefault("GIN_MODE", "release"),
		},
		Paths: PathConfig{
			ExportDir: getEnvOrDefault("EXPORT_DIR", "."),
		},
		LogLevel: getEnvOrDefault("LOG_LEVEL", "INFO"),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func validateConfig(config *Config) error {
	if err := config.Selection.Spec().Validate(); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	if config.Engine.Workers < 1 {
		return errors.ConfigInvalid("SUPERIOR_WORKERS must be at least 1")
	}
	c := config.Columns
	if c.Genotype == "" || c.Environment == "" || c.Trait == "" {
		return errors.ConfigInvalid("genotype, environment and trait column names are required")
	}
	names := []string{c.Genotype, c.Environment, c.Trait}
	if c.Region != "" {
		names = append(names, c.Region)
	}
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		key := strings.ToLower(name)
		if seen[key] {
			return errors.ConfigInvalid("column " + name + " is assigned to more than one factor")
		}
		seen[key] = true
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.ConfigInvalid(key + " must be an integer")
	}
	return intValue, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, errors.ConfigInvalid(key + " must be a number")
	}
	return floatValue, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return false, errors.ConfigInvalid(key + " must be a boolean")
	}
	return boolValue, nil
}
