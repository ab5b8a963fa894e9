// Package config loads the YAML configuration shared by the incomeml commands.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/YuminosukeSato/incomeml/income"
	"github.com/YuminosukeSato/incomeml/pkg/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the root of the configuration file.
type Config struct {
	Log        LogConfig          `yaml:"log"`
	Server     ServerConfig       `yaml:"server"`
	Model      ModelConfig        `yaml:"model"`
	Training   income.TrainConfig `yaml:"training"`
	Adjustment income.Adjustment  `yaml:"adjustment"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Pretty bool   `yaml:"pretty"`
}

// ServerConfig configures the HTTP endpoint.
type ServerConfig struct {
	Addr            string        `yaml:"addr" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
	// RateLimit is the sustained number of requests per second. 0 disables limiting.
	RateLimit float64 `yaml:"rate_limit" validate:"gte=0"`
	Burst     int     `yaml:"burst" validate:"gte=0"`
}

// ModelConfig locates the trained artifact.
type ModelConfig struct {
	ArtifactPath string `yaml:"artifact_path" validate:"required"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			RateLimit:       50,
			Burst:           100,
		},
		Model:      ModelConfig{ArtifactPath: "model.gob.zst"},
		Training:   income.DefaultTrainConfig(),
		Adjustment: income.DefaultAdjustment(),
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every section against its constraints.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return c.Training.ValidateCategorical()
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		reason := fe.Tag()
		if fe.Param() != "" {
			reason += "=" + fe.Param()
		}
		return errors.NewValidationError(fe.Namespace(), reason, fe.Value())
	}
	return errors.Wrap(err, "config validation")
}

// Load reads path over the defaults and validates the result. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "failed to read config %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "failed to parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Write stores cfg as YAML at path, creating parent directories.
func Write(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to encode config")
	}
	return errors.Wrap(os.WriteFile(path, data, 0o644), "failed to write config")
}
