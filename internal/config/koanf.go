package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order; the first existing file wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/cropwise/config.yaml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Default returns the built-in configuration. Dataset paths match the layout
// the service has always been run from: the CSVs sit one directory above the
// working directory.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"http://localhost:3000", "http://127.0.0.1:3000"},
			RateLimit:       120,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Datasets: DatasetsConfig{
			Recommendation: DatasetConfig{Path: "../crop_recommendation_dataset.csv"},
			Rotation:       DatasetConfig{Path: "../crop_rotation_with_soil_score.csv"},
			Yield:          DatasetConfig{Path: "../crop_yield.csv"},
		},
		Models: ModelsConfig{
			Dir:            "models",
			Backend:        BackendFile,
			NEstimators:    100,
			Seed:           42,
			TestSize:       0.2,
			YieldAlgorithm: AlgorithmRandomForest,
			Persist:        true,
			Bootstrap:      true,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    "data/history.db",
		},
	}
}

// Load reads defaults, then the config file, then environment variables.
func Load() (*Config, error) {
	return LoadFile(findConfigFile())
}

// LoadFile is Load with an explicit config file path. An empty path skips
// the file layer.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Comma separated env values for these keys become string slices.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	// Legacy names the service has always honoured.
	"port":         "server.port",
	"log_level":    "logging.level",
	"log_format":   "logging.format",
	"database_url": "database.postgres_dsn",

	"cropwise_host":              "server.host",
	"cropwise_port":              "server.port",
	"cropwise_read_timeout":      "server.read_timeout",
	"cropwise_write_timeout":     "server.write_timeout",
	"cropwise_shutdown_timeout":  "server.shutdown_timeout",
	"cropwise_cors_origins":      "server.cors_origins",
	"cropwise_rate_limit":        "server.rate_limit",
	"cropwise_rate_limit_window": "server.rate_limit_window",

	"cropwise_log_level":  "logging.level",
	"cropwise_log_format": "logging.format",
	"cropwise_log_caller": "logging.caller",

	"cropwise_recommendation_csv":   "datasets.recommendation.path",
	"cropwise_recommendation_table": "datasets.recommendation.table",
	"cropwise_rotation_csv":         "datasets.rotation.path",
	"cropwise_rotation_table":       "datasets.rotation.table",
	"cropwise_yield_csv":            "datasets.yield.path",
	"cropwise_yield_table":          "datasets.yield.table",

	"cropwise_postgres_dsn": "database.postgres_dsn",

	"cropwise_models_dir":        "models.dir",
	"cropwise_models_backend":    "models.backend",
	"cropwise_n_estimators":      "models.n_estimators",
	"cropwise_seed":              "models.seed",
	"cropwise_test_size":         "models.test_size",
	"cropwise_yield_algorithm":   "models.yield_algorithm",
	"cropwise_train_on_start":    "models.train_on_start",
	"cropwise_persist_models":    "models.persist",
	"cropwise_train_workers":     "models.workers",
	"cropwise_max_depth":         "models.max_depth",
	"cropwise_min_samples_leaf":  "models.min_samples_leaf",
	"cropwise_min_samples_split": "models.min_samples_split",
	"cropwise_max_features":      "models.max_features",
	"cropwise_bootstrap":         "models.bootstrap",

	"cropwise_catalog_path": "catalog.path",

	"cropwise_history_enabled": "history.enabled",
	"cropwise_history_path":    "history.path",
}

// envTransformFunc maps known environment variables onto config keys and
// drops everything else.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
