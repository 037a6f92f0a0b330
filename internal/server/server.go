// Package server exposes the demand and price forecasting pipelines
// over HTTP.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/YuminosukeSato/forecast/internal/demand"
	"github.com/YuminosukeSato/forecast/internal/price"
	"github.com/YuminosukeSato/forecast/pkg/errors"
)

const maxRequestBodySize = 1 << 20 // 1MB

// demandStrategyName is the only demand scoring strategy; requests may
// name it explicitly.
const demandStrategyName = "lightgbm_ensemble"

// Deps carries the loaded pipelines the handlers serve from.
type Deps struct {
	Demand *demand.Pipeline
	Price  *price.Pipeline
}

// New builds the HTTP handler with all forecast routes mounted.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestLogger)

	r.Get("/", handleRoot())
	r.Get("/health", handleHealth(deps))
	r.Get("/strategies", handleStrategies(deps))
	r.Post("/api/demand-forecast/predict", handleDemandPredict(deps))
	r.Post("/api/price-forecast/predict", handlePricePredict(deps))

	return r
}

type demandPredictRequest struct {
	demand.Record
	Strategy string `json:"strategy,omitempty"`
}

type demandPredictResponse struct {
	Status             string  `json:"status"`
	RecordID           int     `json:"record_id"`
	PredictedUnitsSold float64 `json:"predicted_units_sold"`
	StrategyUsed       string  `json:"strategy_used"`
}

func handleDemandPredict(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req demandPredictRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}
		if req.Strategy != "" && req.Strategy != demandStrategyName {
			httpError(w, http.StatusBadRequest, "unknown strategy %q", req.Strategy)
			return
		}

		prediction, err := deps.Demand.Predict(&req.Record)
		if err != nil {
			writePipelineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, demandPredictResponse{
			Status:             "success",
			RecordID:           prediction.RecordID,
			PredictedUnitsSold: prediction.UnitsSold,
			StrategyUsed:       demandStrategyName,
		})
	}
}

type pricePredictResponse struct {
	Status       string  `json:"status"`
	WeeklySales  float64 `json:"predicted_weekly_sales"`
	Store        int     `json:"store"`
	Dept         int     `json:"dept"`
	Date         string  `json:"date"`
	StrategyUsed string  `json:"strategy_used"`
}

func handlePricePredict(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req price.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}

		result, err := deps.Price.Predict(&req)
		if err != nil {
			writePipelineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pricePredictResponse{
			Status:       "success",
			WeeklySales:  result.WeeklySales,
			Store:        result.Store,
			Dept:         result.Dept,
			Date:         result.Date,
			StrategyUsed: result.StrategyUsed,
		})
	}
}

type rootResponse struct {
	Message    string `json:"message"`
	Version    string `json:"version"`
	Health     string `json:"health"`
	Strategies string `json:"strategies"`
}

// handleRoot serves a service banner pointing at the other endpoints.
func handleRoot() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, rootResponse{
			Message:    "Forecasting APIs",
			Version:    "1.0.0",
			Health:     "/health",
			Strategies: "/strategies",
		})
	}
}

type healthResponse struct {
	Status           string   `json:"status"`
	DemandStrategies []string `json:"demand_strategies"`
	PriceStrategies  []string `json:"price_strategies"`
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{
			Status:           "healthy",
			DemandStrategies: []string{demandStrategyName},
			PriceStrategies:  deps.Price.Registry().List(),
		})
	}
}

type pipelineStrategies struct {
	Available []string `json:"available"`
	Default   string   `json:"default"`
}

type strategiesResponse struct {
	Demand pipelineStrategies `json:"demand"`
	Price  pipelineStrategies `json:"price"`
}

func handleStrategies(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		registry := deps.Price.Registry()
		writeJSON(w, http.StatusOK, strategiesResponse{
			Demand: pipelineStrategies{
				Available: []string{demandStrategyName},
				Default:   demandStrategyName,
			},
			Price: pipelineStrategies{
				Available: registry.List(),
				Default:   registry.DefaultName(),
			},
		})
	}
}

type errorResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// writePipelineError maps pipeline failures to HTTP status codes:
// caller mistakes become 400, everything else is a 500.
func writePipelineError(w http.ResponseWriter, err error) {
	var verr *errors.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: "error", Detail: err.Error()})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorResponse{Status: "error", Detail: err.Error()})
}

func httpError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, errorResponse{Status: "error", Detail: fmt.Sprintf(format, args...)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
