// Package forecast hosts two retail forecasting inference services:
// demand forecasting (units sold per store/SKU/week) and price
// forecasting (weekly sales per store/department).
//
// # Services
//
// Demand forecasting scores one record at a time or whole CSV batches.
// Each record is validated, turned into a fixed 23-feature vector
// (price differences, calendar fields, M-estimate category encodings)
// and scored through an ensemble of LightGBM fold models trained on a
// log1p target; the ensemble mean is inverted and clamped to be
// non-negative.
//
// Price forecasting looks a store/department/date query up in the
// reference datasets (store metadata, nearest-date context features,
// historical sales statistics), builds a named feature map with one-hot
// indicators, and scores it with a pluggable strategy: a linear model
// or a small dense network, both loaded from JSON artifacts.
//
// # Layout
//
//   - cmd/forecast: CLI with serve, demand, price and evaluate commands
//   - internal/lightgbm: LightGBM text-format model loader and predictor
//   - internal/demand: demand pipeline (features, encoders, ensemble)
//   - internal/price: price pipeline (datasets, features, strategies)
//   - internal/server: HTTP API (chi)
//   - internal/batch: offline CSV scoring
//   - internal/evaluate: RMSLE/RMSE/MAE and diagnostic plots
//   - pkg/errors: structured error types with zerolog marshaling
//   - pkg/log: slog setup with stacktrace extraction
//
// # Usage
//
// Start the HTTP server (configuration comes from FORECAST_*
// environment variables):
//
//	forecast serve
//
// Score a CSV file offline:
//
//	forecast demand --input records.csv --output predictions.csv
//
// Evaluate predictions against actuals:
//
//	forecast evaluate --actual actual.csv --predictions predictions.csv
package forecast
