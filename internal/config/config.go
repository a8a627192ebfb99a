// Copyright 2025 DFRAS Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var (
	// ErrMissingRequiredField is returned when a required configuration field is missing
	ErrMissingRequiredField = errors.New("missing required configuration field")
	// ErrInvalidConfigValue is returned when a configuration value is invalid
	ErrInvalidConfigValue = errors.New("invalid configuration value")
)

// Config represents the complete application configuration
type Config struct {
	Dataset  DatasetConfig  `mapstructure:"dataset"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// DatasetConfig locates the CSV sample data and the SQLite mirror
type DatasetConfig struct {
	Path   string `mapstructure:"path"`
	DBPath string `mapstructure:"db_path"`
}

// AnalysisConfig contains the analysis pipeline tuning knobs
type AnalysisConfig struct {
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	ClusterCount        int     `mapstructure:"cluster_count"`
	INRRate             float64 `mapstructure:"inr_rate"`
	TopPatterns         int     `mapstructure:"top_patterns"`
	SeverityThreshold   int     `mapstructure:"severity_threshold"`
}

// OpenAIConfig contains OpenAI API configuration. The API key is optional;
// without it the service runs with semantic analysis disabled.
type OpenAIConfig struct {
	APIKey string `mapstructure:"apikey"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed for field '%s': %s", e.Field, e.Message)
}

// LoadOptions contains options for configuration loading
type LoadOptions struct {
	ConfigPath       string
	Environment      string
	ValidateRequired bool
}

// Load loads configuration from file and environment variables
// Environment variables take precedence over config file values
func Load(configPath string) (*Config, error) {
	return LoadWithOptions(LoadOptions{
		ConfigPath:       configPath,
		Environment:      getEnvironment(),
		ValidateRequired: true,
	})
}

// LoadWithOptions loads configuration with additional options
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if err := setConfigFile(v, opts.ConfigPath); err != nil {
		return nil, fmt.Errorf("failed to set config file: %w", err)
	}

	// Enable environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("DFRAS")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error if env vars are set
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	setEnvironmentMappings(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if opts.ValidateRequired {
		if err := validateConfig(&config); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Dataset defaults
	v.SetDefault("dataset.path", "./sample-data")
	v.SetDefault("dataset.db_path", "./dfras.db")

	// Analysis defaults
	v.SetDefault("analysis.similarity_threshold", 0.7)
	v.SetDefault("analysis.cluster_count", 5)
	v.SetDefault("analysis.inr_rate", 83.0)
	v.SetDefault("analysis.top_patterns", 5)
	v.SetDefault("analysis.severity_threshold", 10)

	// Server defaults
	v.SetDefault("server.port", 8010)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// setConfigFile sets the configuration file path with fallback logic
func setConfigFile(v *viper.Viper, configPath string) error {
	// Check for CONFIG_PATH environment variable
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return fmt.Errorf("config file specified by CONFIG_PATH does not exist: %s", envPath)
		}
		v.SetConfigFile(envPath)
		return nil
	}

	// Use provided config path
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return fmt.Errorf("config file does not exist: %s", configPath)
		}
		v.SetConfigFile(configPath)
		return nil
	}

	// Default fallback locations; a missing file is fine because every key
	// has a default or an environment mapping
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")
	return nil
}

// setEnvironmentMappings sets explicit environment variable mappings. The
// AI_* and BUSINESS_* names are the ones operators of earlier deployments
// already export, so they keep working here.
func setEnvironmentMappings(v *viper.Viper) {
	envMappings := map[string]string{
		"OPENAI_API_KEY":          "openai.apikey",
		"DATASET_PATH":            "dataset.path",
		"DATASET_DB_PATH":         "dataset.db_path",
		"AI_SIMILARITY_THRESHOLD": "analysis.similarity_threshold",
		"AI_KMEANS_CLUSTERS":      "analysis.cluster_count",
		"BUSINESS_INR_RATE":       "analysis.inr_rate",
		"LOG_LEVEL":               "logging.level",
		"LOG_FORMAT":              "logging.format",
		"LOG_OUTPUT":              "logging.output",
	}

	for envVar, configKey := range envMappings {
		if value := os.Getenv(envVar); value != "" {
			v.Set(configKey, value)
		}
	}
}

// validateConfig validates the configuration for required fields and valid values
func validateConfig(config *Config) error {
	var errors []ValidationError

	if config.Dataset.Path == "" {
		errors = append(errors, ValidationError{
			Field:   "dataset.path",
			Message: "dataset path is required. Set via config file or DATASET_PATH environment variable",
		})
	}

	if config.Dataset.DBPath == "" {
		errors = append(errors, ValidationError{
			Field:   "dataset.db_path",
			Message: "dataset database path is required",
		})
	} else {
		if err := validateDirectoryExists(filepath.Dir(config.Dataset.DBPath)); err != nil {
			errors = append(errors, ValidationError{
				Field:   "dataset.db_path",
				Message: fmt.Sprintf("dataset database directory does not exist: %s", filepath.Dir(config.Dataset.DBPath)),
			})
		}
	}

	if config.Analysis.SimilarityThreshold < 0 || config.Analysis.SimilarityThreshold > 1 {
		errors = append(errors, ValidationError{
			Field:   "analysis.similarity_threshold",
			Message: "similarity_threshold must be between 0 and 1",
		})
	}

	if config.Analysis.ClusterCount <= 0 {
		errors = append(errors, ValidationError{
			Field:   "analysis.cluster_count",
			Message: "cluster_count must be greater than 0",
		})
	}

	if config.Analysis.INRRate <= 0 {
		errors = append(errors, ValidationError{
			Field:   "analysis.inr_rate",
			Message: "inr_rate must be greater than 0",
		})
	}

	if config.Analysis.TopPatterns <= 0 {
		errors = append(errors, ValidationError{
			Field:   "analysis.top_patterns",
			Message: "top_patterns must be greater than 0",
		})
	}

	if config.Analysis.SeverityThreshold < 0 {
		errors = append(errors, ValidationError{
			Field:   "analysis.severity_threshold",
			Message: "severity_threshold must be greater than or equal to 0",
		})
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "server.port",
			Message: "port must be between 1 and 65535",
		})
	}

	// Validate enum values
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, config.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("log level must be one of: %s", strings.Join(validLogLevels, ", ")),
		})
	}

	validLogFormats := []string{"json", "text"}
	if !contains(validLogFormats, config.Logging.Format) {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("log format must be one of: %s", strings.Join(validLogFormats, ", ")),
		})
	}

	if len(errors) > 0 {
		var errorMessages []string
		for _, err := range errors {
			errorMessages = append(errorMessages, err.Error())
		}
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errorMessages, "\n"))
	}

	return nil
}

// MaskSensitiveValues returns a copy of the config with sensitive values masked
func (c *Config) MaskSensitiveValues() *Config {
	masked := *c

	if masked.OpenAI.APIKey != "" {
		masked.OpenAI.APIKey = maskValue(masked.OpenAI.APIKey)
	}

	return &masked
}

// maskValue masks sensitive values, showing only the first 8 characters
func maskValue(value string) string {
	if len(value) <= 8 {
		return strings.Repeat("*", len(value))
	}
	return value[:8] + strings.Repeat("*", len(value)-8)
}

// contains checks if a slice contains a specific string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// validateDirectoryExists checks if a directory exists
func validateDirectoryExists(path string) error {
	if path == "" || path == "." {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	return nil
}

// getEnvironment returns the current environment (development, production, etc.)
func getEnvironment() string {
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		return env
	}
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "development"
}

// WatchConfig enables configuration hot-reloading for development
func WatchConfig(configPath string, callback func(*Config)) error {
	v := viper.New()

	if err := setConfigFile(v, configPath); err != nil {
		return err
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		fmt.Printf("Config file changed: %s\n", e.Name)

		config, err := LoadWithOptions(LoadOptions{
			ConfigPath:       configPath,
			Environment:      getEnvironment(),
			ValidateRequired: true,
		})
		if err != nil {
			fmt.Printf("Failed to reload config: %v\n", err)
			return
		}

		callback(config)
	})

	return nil
}
