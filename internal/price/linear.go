package price

import (
	"encoding/json"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/forecast/pkg/errors"
)

// LinearStrategy scores with exported scikit-learn linear regression
// coefficients: y = coef . x + intercept.
type LinearStrategy struct {
	columns   []string
	coef      *mat.VecDense
	intercept float64
}

type linearArtifact struct {
	FeatureColumns []string  `json:"feature_columns"`
	Coef           []float64 `json:"coef"`
	Intercept      float64   `json:"intercept"`
}

// LoadLinearStrategy reads a linear regression artifact.
func LoadLinearStrategy(path string) (*LinearStrategy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewArtifactError("model", path, err)
	}
	var artifact linearArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, errors.NewArtifactError("model", path, err)
	}
	if len(artifact.Coef) == 0 {
		return nil, errors.NewArtifactError("model", path, errors.New("coef is empty"))
	}
	if len(artifact.Coef) != len(artifact.FeatureColumns) {
		return nil, errors.NewArtifactError("model", path,
			errors.Newf("coef has %d entries but feature_columns has %d", len(artifact.Coef), len(artifact.FeatureColumns)))
	}
	if err := validateColumns(path, artifact.FeatureColumns); err != nil {
		return nil, err
	}

	return &LinearStrategy{
		columns:   artifact.FeatureColumns,
		coef:      mat.NewVecDense(len(artifact.Coef), artifact.Coef),
		intercept: artifact.Intercept,
	}, nil
}

// Name implements Strategy.
func (s *LinearStrategy) Name() string { return "linear" }

// Predict implements Strategy.
func (s *LinearStrategy) Predict(features map[string]float64) (float64, error) {
	x := mat.NewVecDense(len(s.columns), vectorize(features, s.columns))
	y := mat.Dot(s.coef, x) + s.intercept
	if err := errors.CheckScalar("price.LinearStrategy.Predict", y); err != nil {
		return 0, err
	}
	return y, nil
}
