// Package config は環境変数からサービス設定を読み込みます。
package config

import (
	"github.com/caarlos0/env/v11"

	"github.com/YuminosukeSato/forecast/pkg/errors"
)

// Config holds the runtime configuration for the forecast services.
// Every field can be overridden through a FORECAST_* environment
// variable; unset variables fall back to defaults suitable for local
// development.
type Config struct {
	// ListenAddr is the address the HTTP server binds to.
	ListenAddr string `env:"FORECAST_LISTEN_ADDR" envDefault:":8000"`
	// LogLevel selects the slog level (debug, info, warn, error).
	LogLevel string `env:"FORECAST_LOG_LEVEL" envDefault:"info"`

	// DemandModelDir holds config.json and the model_fold_<i>.txt files.
	DemandModelDir string `env:"FORECAST_DEMAND_MODEL_DIR" envDefault:"artifacts/demand"`
	// DemandEncoderDir holds encoders.json with the M-estimate tables.
	DemandEncoderDir string `env:"FORECAST_DEMAND_ENCODER_DIR" envDefault:"artifacts/demand"`

	// PriceDatasetDir holds stores.csv, features.csv and train.csv.
	PriceDatasetDir string `env:"FORECAST_PRICE_DATASET_DIR" envDefault:"data/price"`
	// PriceModelDir holds linear_regressor.json and mlp_regressor.json.
	PriceModelDir string `env:"FORECAST_PRICE_MODEL_DIR" envDefault:"artifacts/price"`
	// PriceDefaultStrategy names the strategy used when a request
	// does not ask for one.
	PriceDefaultStrategy string `env:"FORECAST_PRICE_DEFAULT_STRATEGY" envDefault:"linear"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, errors.Wrap(err, "parse environment")
	}
	return &cfg, nil
}
