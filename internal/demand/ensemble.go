package demand

import (
	"fmt"
	"log/slog"
	"math"
	"path/filepath"

	"github.com/YuminosukeSato/forecast/internal/lightgbm"
	"github.com/YuminosukeSato/forecast/pkg/errors"
)

// Ensemble scores a feature vector through N independently trained fold
// models and averages the results. The fold models were trained on a
// log1p-transformed target, so each raw score is inverse-transformed with
// expm1 before averaging. Models are loaded once and read-only afterwards.
type Ensemble struct {
	models []*lightgbm.Model
}

// LoadEnsemble loads model_fold_<i>.txt for every fold. A missing or
// unparseable fold fails the whole load; the service must not score with a
// partial ensemble.
func LoadEnsemble(modelDir string, numFolds int) (*Ensemble, error) {
	if numFolds <= 0 {
		return nil, errors.Newf("demand.LoadEnsemble: n_folds must be > 0, got %d", numFolds)
	}

	models := make([]*lightgbm.Model, 0, numFolds)
	for i := 0; i < numFolds; i++ {
		path := filepath.Join(modelDir, fmt.Sprintf("model_fold_%d.txt", i))
		model, err := lightgbm.Load(path)
		if err != nil {
			return nil, err
		}
		models = append(models, model)
	}

	slog.Info("demand ensemble loaded",
		"folds", numFolds,
		"features", models[0].NumFeatures,
		"trees_per_fold", models[0].NumTrees(),
	)
	return &Ensemble{models: models}, nil
}

// NumFolds returns the number of fold models in the ensemble.
func (e *Ensemble) NumFolds() int {
	return len(e.models)
}

// Predict returns the fold-averaged prediction on the original target
// scale. The result is clamped to be non-negative via absolute value and
// is never NaN: numerical instability in any fold fails the request.
func (e *Ensemble) Predict(vector []float64) (float64, error) {
	var sum float64
	for i, model := range e.models {
		raw, err := model.Predict(vector)
		if err != nil {
			return 0, errors.Wrapf(err, "fold %d", i)
		}
		pred := math.Expm1(raw)
		if err := errors.CheckScalar("demand.Ensemble.Predict", pred); err != nil {
			return 0, errors.Wrapf(err, "fold %d", i)
		}
		sum += pred
	}

	mean := sum / float64(len(e.models))
	return math.Abs(mean), nil
}
