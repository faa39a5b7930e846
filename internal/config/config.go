// Package config loads the service configuration from defaults, an optional
// YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
	Datasets DatasetsConfig `koanf:"datasets"`
	Database DatabaseConfig `koanf:"database"`
	Models   ModelsConfig   `koanf:"models"`
	Catalog  CatalogConfig  `koanf:"catalog"`
	History  HistoryConfig  `koanf:"history"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimit       int           `koanf:"rate_limit"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// Addr returns host:port for http.Server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// DatasetConfig points at one training dataset. When Table is set and a
// Postgres DSN is configured the table is read instead of the CSV file.
type DatasetConfig struct {
	Path  string `koanf:"path"`
	Table string `koanf:"table"`
}

// Name returns a short label for logs.
func (d DatasetConfig) Name() string {
	if d.Table != "" {
		return d.Table
	}
	return d.Path
}

type DatasetsConfig struct {
	Recommendation DatasetConfig `koanf:"recommendation"`
	Rotation       DatasetConfig `koanf:"rotation"`
	Yield          DatasetConfig `koanf:"yield"`
}

type DatabaseConfig struct {
	PostgresDSN string `koanf:"postgres_dsn"`
}

// Artifact store backends.
const (
	BackendFile   = "file"
	BackendBadger = "badger"
)

// Yield model algorithms.
const (
	AlgorithmRandomForest     = "random_forest"
	AlgorithmGradientBoosting = "gradient_boosting"
)

// ModelsConfig controls training and artifact persistence.
type ModelsConfig struct {
	Dir            string  `koanf:"dir"`
	Backend        string  `koanf:"backend"`
	NEstimators    int     `koanf:"n_estimators"`
	Seed           int64   `koanf:"seed"`
	TestSize       float64 `koanf:"test_size"`
	YieldAlgorithm string  `koanf:"yield_algorithm"`
	TrainOnStart   bool    `koanf:"train_on_start"`
	Persist        bool    `koanf:"persist"`
	Workers        int     `koanf:"workers"`

	// Tree hyperparameters. Zero keeps the ml package default.
	MaxDepth        int  `koanf:"max_depth"`
	MinSamplesSplit int  `koanf:"min_samples_split"`
	MinSamplesLeaf  int  `koanf:"min_samples_leaf"`
	MaxFeatures     int  `koanf:"max_features"`
	Bootstrap       bool `koanf:"bootstrap"`
}

// CatalogConfig optionally overrides the built-in season/soil crop catalog.
type CatalogConfig struct {
	Path string `koanf:"path"`
}

type HistoryConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("server.rate_limit must not be negative"))
	}
	if c.Models.NEstimators < 1 {
		errs = append(errs, fmt.Errorf("models.n_estimators must be positive, got %d", c.Models.NEstimators))
	}
	if c.Models.TestSize < 0 || c.Models.TestSize >= 1 {
		errs = append(errs, fmt.Errorf("models.test_size must be in [0, 1), got %g", c.Models.TestSize))
	}
	switch c.Models.Backend {
	case BackendFile, BackendBadger:
	default:
		errs = append(errs, fmt.Errorf("models.backend must be %q or %q, got %q", BackendFile, BackendBadger, c.Models.Backend))
	}
	switch c.Models.YieldAlgorithm {
	case AlgorithmRandomForest, AlgorithmGradientBoosting:
	default:
		errs = append(errs, fmt.Errorf("models.yield_algorithm must be %q or %q, got %q",
			AlgorithmRandomForest, AlgorithmGradientBoosting, c.Models.YieldAlgorithm))
	}
	if c.Models.MaxDepth < 0 || c.Models.MinSamplesSplit < 0 || c.Models.MinSamplesLeaf < 0 || c.Models.MaxFeatures < 0 {
		errs = append(errs, errors.New("models tree hyperparameters must not be negative"))
	}
	if strings.TrimSpace(c.Models.Dir) == "" {
		errs = append(errs, errors.New("models.dir is required"))
	}
	if c.History.Enabled && strings.TrimSpace(c.History.Path) == "" {
		errs = append(errs, errors.New("history.path is required when history is enabled"))
	}
	for name, ds := range map[string]DatasetConfig{
		"recommendation": c.Datasets.Recommendation,
		"rotation":       c.Datasets.Rotation,
		"yield":          c.Datasets.Yield,
	} {
		if ds.Path == "" && ds.Table == "" {
			errs = append(errs, fmt.Errorf("datasets.%s needs a path or a table", name))
		}
		if ds.Table != "" && c.Database.PostgresDSN == "" && ds.Path == "" {
			errs = append(errs, fmt.Errorf("datasets.%s.table requires database.postgres_dsn", name))
		}
	}

	return errors.Join(errs...)
}
