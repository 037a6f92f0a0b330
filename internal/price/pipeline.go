package price

import (
	"path/filepath"
)

// Result is one scored price-forecasting request.
type Result struct {
	WeeklySales  float64 `json:"predicted_weekly_sales"`
	Store        int     `json:"store"`
	Dept         int     `json:"dept"`
	Date         string  `json:"date"`
	StrategyUsed string  `json:"strategy_used"`
}

// Pipeline is the full price-forecasting inference path. All state is
// read-only after construction.
type Pipeline struct {
	transformer *Transformer
	registry    *Registry
}

// LoadPipeline loads the three datasets and both strategy artifacts from
// the configured directories. Any failure is fatal to startup.
func LoadPipeline(datasetDir, modelDir, defaultStrategy string) (*Pipeline, error) {
	datasets, err := LoadDatasets(
		filepath.Join(datasetDir, "stores.csv"),
		filepath.Join(datasetDir, "features.csv"),
		filepath.Join(datasetDir, "train.csv"),
	)
	if err != nil {
		return nil, err
	}

	linear, err := LoadLinearStrategy(filepath.Join(modelDir, "linear_regressor.json"))
	if err != nil {
		return nil, err
	}
	mlp, err := LoadMLPStrategy(filepath.Join(modelDir, "mlp_regressor.json"))
	if err != nil {
		return nil, err
	}

	registry := NewRegistry()
	registry.Register(linear)
	registry.Register(mlp)
	if defaultStrategy != "" {
		if err := registry.SetDefault(defaultStrategy); err != nil {
			return nil, err
		}
	}

	return NewPipeline(NewTransformer(datasets), registry), nil
}

// NewPipeline assembles a pipeline from already-loaded parts.
func NewPipeline(transformer *Transformer, registry *Registry) *Pipeline {
	return &Pipeline{transformer: transformer, registry: registry}
}

// Registry exposes the strategy registry for introspection endpoints.
func (p *Pipeline) Registry() *Registry {
	return p.registry
}

// Predict scores one request with the requested (or default) strategy.
func (p *Pipeline) Predict(r *Request) (Result, error) {
	if err := r.Validate(); err != nil {
		return Result{}, err
	}
	strategy, err := p.registry.Get(r.Strategy)
	if err != nil {
		return Result{}, err
	}
	features, err := p.transformer.BuildFeatures(r)
	if err != nil {
		return Result{}, err
	}
	sales, err := strategy.Predict(features)
	if err != nil {
		return Result{}, err
	}
	return Result{
		WeeklySales:  sales,
		Store:        r.Store,
		Dept:         r.Dept,
		Date:         r.Date,
		StrategyUsed: strategy.Name(),
	}, nil
}
