package config

import (
	"os"
	"strconv"
	"strings"

	"triadbalance/domain/balance"
	"triadbalance/internal/connectivity"
	"triadbalance/internal/errors"

	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	Analysis AnalysisConfig `yaml:"analysis"`
	Server   ServerConfig   `yaml:"server"`
	LogLevel string         `yaml:"log_level"`
}

// AnalysisConfig holds the per-subject pipeline settings
type AnalysisConfig struct {
	WindowLength  int     `yaml:"window_length" json:"window_length"`
	Method        string  `yaml:"method" json:"method"`
	Missing       string  `yaml:"missing" json:"missing"`
	KeepZeroSigns bool    `yaml:"keep_zero_signs" json:"keep_zero_signs"`
	DropUndefined bool    `yaml:"drop_undefined" json:"drop_undefined"`
	MinAbs        float64 `yaml:"min_abs" json:"min_abs"`
	Workers       int     `yaml:"workers" json:"workers"`
	Streaming     bool    `yaml:"streaming" json:"streaming"`
	Seed          uint64  `yaml:"seed" json:"seed"`
	Surrogates    int     `yaml:"surrogates" json:"surrogates"`
	Convention    string  `yaml:"convention" json:"convention"`
	// Subnetwork holds 0-based ROI indices; empty disables subnetwork aggregates
	Subnetwork    []int `yaml:"subnetwork" json:"subnetwork"`
	ProgressEvery int   `yaml:"progress_every" json:"progress_every"`
	// MaxSubjects bounds how many subjects a batch runs at once
	MaxSubjects int `yaml:"max_subjects" json:"max_subjects"`
}

// ServerConfig holds HTTP settings
type ServerConfig struct {
	Port string `yaml:"port"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			WindowLength:  30,
			Method:        string(connectivity.MethodPearson),
			Missing:       string(connectivity.PairwiseComplete),
			DropUndefined: true,
			Seed:          42,
			Convention:    string(balance.ConventionRaw),
			ProgressEvery: 100,
			MaxSubjects:   2,
		},
		Server:   ServerConfig{Port: "8080"},
		LogLevel: "INFO",
	}
}

// Load reads configuration from environment variables on top of the defaults and validates it
func Load() (*Config, error) {
	config := Default()
	applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

// LoadFile reads a YAML file on top of the defaults, then applies environment overrides
func LoadFile(path string) (*Config, error) {
	config := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", path)
	}
	if err := yaml.Unmarshal(raw, config); err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, errors.Wrapf(err, "failed to parse config file %s", path))
	}
	applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func applyEnv(c *Config) {
	a := &c.Analysis
	a.WindowLength = getEnvIntOrDefault("TRIAD_WINDOW_LENGTH", a.WindowLength)
	a.Method = getEnvOrDefault("TRIAD_METHOD", a.Method)
	a.Missing = getEnvOrDefault("TRIAD_MISSING", a.Missing)
	a.KeepZeroSigns = getEnvBoolOrDefault("TRIAD_KEEP_ZERO_SIGNS", a.KeepZeroSigns)
	a.DropUndefined = getEnvBoolOrDefault("TRIAD_DROP_UNDEFINED", a.DropUndefined)
	a.MinAbs = getEnvFloatOrDefault("TRIAD_MIN_ABS", a.MinAbs)
	a.Workers = getEnvIntOrDefault("TRIAD_WORKERS", a.Workers)
	a.Streaming = getEnvBoolOrDefault("TRIAD_STREAMING", a.Streaming)
	a.Seed = getEnvUintOrDefault("TRIAD_SEED", a.Seed)
	a.Surrogates = getEnvIntOrDefault("TRIAD_SURROGATES", a.Surrogates)
	a.Convention = getEnvOrDefault("TRIAD_CONVENTION", a.Convention)
	a.Subnetwork = getEnvIntsOrDefault("TRIAD_SUBNETWORK", a.Subnetwork)
	a.MaxSubjects = getEnvIntOrDefault("TRIAD_MAX_SUBJECTS", a.MaxSubjects)

	c.Server.Port = getEnvOrDefault("PORT", c.Server.Port)
	c.LogLevel = getEnvOrDefault("LOG_LEVEL", c.LogLevel)
}

// Validate checks every field that the pipeline would otherwise reject later
func (c *Config) Validate() error {
	return c.Analysis.Validate()
}

// Validate checks the analysis settings
func (a AnalysisConfig) Validate() error {
	if a.WindowLength < 2 {
		return errors.ConfigInvalid("window length must be at least 2")
	}
	if _, err := connectivity.ParseMethod(a.Method); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	if _, err := connectivity.ParseMissingPolicy(a.Missing); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	if _, err := balance.ParseConvention(a.Convention); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	if a.MinAbs < 0 || a.MinAbs >= 1 {
		return errors.ConfigInvalid("min_abs must be in [0, 1)")
	}
	if a.Surrogates < 0 {
		return errors.ConfigInvalid("surrogates cannot be negative")
	}
	for _, r := range a.Subnetwork {
		if r < 0 {
			return errors.ConfigInvalid("subnetwork ROI indices must be non-negative")
		}
	}
	return nil
}

// ConnectivityOptions converts the settings for the estimator
func (a AnalysisConfig) ConnectivityOptions() connectivity.Options {
	method, _ := connectivity.ParseMethod(a.Method)
	missing, _ := connectivity.ParseMissingPolicy(a.Missing)
	return connectivity.Options{
		WindowLength:  a.WindowLength,
		Method:        method,
		Missing:       missing,
		ProgressEvery: a.ProgressEvery,
	}
}

// CodeConvention returns the parsed display convention
func (a AnalysisConfig) CodeConvention() balance.Convention {
	conv, err := balance.ParseConvention(a.Convention)
	if err != nil {
		return balance.ConventionRaw
	}
	return conv
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvUintOrDefault(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseUint(value, 10, 64); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvIntsOrDefault parses a comma-separated list such as "0,4,7"
func getEnvIntsOrDefault(key string, defaultValue []int) []int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []int
	for _, part := range strings.Split(value, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return defaultValue
		}
		out = append(out, v)
	}
	return out
}
