package price

import (
	"sort"
	"strings"

	"github.com/YuminosukeSato/forecast/pkg/errors"
)

// Strategy scores one named feature map. Implementations are read-only
// after load and safe for concurrent use.
type Strategy interface {
	Name() string
	Predict(features map[string]float64) (float64, error)
}

// Registry maps strategy names to loaded strategies and designates a
// default for requests that leave the strategy blank.
type Registry struct {
	strategies  map[string]Strategy
	defaultName string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// Register adds a strategy. The first registered strategy becomes the
// default until SetDefault overrides it.
func (r *Registry) Register(s Strategy) {
	r.strategies[s.Name()] = s
	if r.defaultName == "" {
		r.defaultName = s.Name()
	}
}

// SetDefault designates the default strategy.
func (r *Registry) SetDefault(name string) error {
	if _, ok := r.strategies[name]; !ok {
		return errors.NewValidationError("strategy", "not registered", name)
	}
	r.defaultName = name
	return nil
}

// Get resolves a strategy by name; an empty name selects the default.
func (r *Registry) Get(name string) (Strategy, error) {
	if name == "" {
		name = r.defaultName
	}
	s, ok := r.strategies[name]
	if !ok {
		return nil, errors.NewValidationError("strategy", "unknown strategy", name)
	}
	return s, nil
}

// DefaultName returns the current default strategy name.
func (r *Registry) DefaultName() string {
	return r.defaultName
}

// List returns registered strategy names in sorted order.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// baseFeatureColumns are the non-indicator features the transformer
// always computes for a valid request.
var baseFeatureColumns = map[string]struct{}{
	"Store": {}, "Dept": {}, "IsHoliday": {}, "Year": {}, "Month": {}, "Week": {},
	"Size": {}, "Temperature": {}, "Fuel_Price": {}, "CPI": {}, "Unemployment": {},
	"Total_MarkDown": {}, "max": {}, "min": {}, "mean": {}, "median": {}, "std": {},
}

// validateColumns checks every artifact column against the feature names
// the transformer can produce: the base features plus Store_N/Dept_N/Type_X
// one-hot indicators. Reading an unknown column as zero is correct only
// for inactive indicators; a misspelled base feature would otherwise score
// as a constant zero on every request, so it is rejected at load.
func validateColumns(path string, columns []string) error {
	for _, col := range columns {
		if _, ok := baseFeatureColumns[col]; ok {
			continue
		}
		if suffix, ok := strings.CutPrefix(col, "Store_"); ok && suffix != "" {
			continue
		}
		if suffix, ok := strings.CutPrefix(col, "Dept_"); ok && suffix != "" {
			continue
		}
		if suffix, ok := strings.CutPrefix(col, "Type_"); ok && suffix != "" {
			continue
		}
		return errors.NewArtifactError("model", path, errors.Newf("unknown feature column %q", col))
	}
	return nil
}

// vectorize orders the named features by the columns a strategy was
// trained with. Absent columns read as zero; that is how inactive one-hot
// indicators are represented.
func vectorize(features map[string]float64, columns []string) []float64 {
	x := make([]float64, len(columns))
	for i, col := range columns {
		x[i] = features[col]
	}
	return x
}
