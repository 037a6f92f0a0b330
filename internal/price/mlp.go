package price

import (
	"encoding/json"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/forecast/pkg/errors"
)

// MLPStrategy scores with a small feed-forward network exported to JSON at
// training time: a chain of dense layers, each weights*x + bias followed
// by an activation. The final layer must produce a single output.
type MLPStrategy struct {
	columns []string
	layers  []denseLayer
}

type denseLayer struct {
	weights    *mat.Dense // outDim x inDim
	bias       *mat.VecDense
	activation string
}

type mlpArtifact struct {
	FeatureColumns []string `json:"feature_columns"`
	Layers         []struct {
		Weights    [][]float64 `json:"weights"`
		Bias       []float64   `json:"bias"`
		Activation string      `json:"activation"`
	} `json:"layers"`
}

// LoadMLPStrategy reads a feed-forward network artifact and validates the
// layer dimension chain.
func LoadMLPStrategy(path string) (*MLPStrategy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewArtifactError("model", path, err)
	}
	var artifact mlpArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, errors.NewArtifactError("model", path, err)
	}
	if len(artifact.Layers) == 0 {
		return nil, errors.NewArtifactError("model", path, errors.New("no layers"))
	}
	if len(artifact.FeatureColumns) == 0 {
		return nil, errors.NewArtifactError("model", path, errors.New("feature_columns is empty"))
	}
	if err := validateColumns(path, artifact.FeatureColumns); err != nil {
		return nil, err
	}

	s := &MLPStrategy{columns: artifact.FeatureColumns}
	prevDim := len(artifact.FeatureColumns)
	for i, layer := range artifact.Layers {
		outDim := len(layer.Weights)
		if outDim == 0 {
			return nil, errors.NewArtifactError("model", path, errors.Newf("layer %d has no weights", i))
		}
		flat := make([]float64, 0, outDim*prevDim)
		for _, row := range layer.Weights {
			if len(row) != prevDim {
				return nil, errors.NewArtifactError("model", path,
					errors.Newf("layer %d expects input dim %d, weight row has %d", i, prevDim, len(row)))
			}
			flat = append(flat, row...)
		}
		if len(layer.Bias) != outDim {
			return nil, errors.NewArtifactError("model", path,
				errors.Newf("layer %d has %d bias entries, want %d", i, len(layer.Bias), outDim))
		}
		switch layer.Activation {
		case "relu", "identity", "linear":
		default:
			return nil, errors.NewArtifactError("model", path,
				errors.Newf("layer %d has unsupported activation %q", i, layer.Activation))
		}

		s.layers = append(s.layers, denseLayer{
			weights:    mat.NewDense(outDim, prevDim, flat),
			bias:       mat.NewVecDense(outDim, layer.Bias),
			activation: layer.Activation,
		})
		prevDim = outDim
	}
	if prevDim != 1 {
		return nil, errors.NewArtifactError("model", path, errors.Newf("final layer produces %d outputs, want 1", prevDim))
	}
	return s, nil
}

// Name implements Strategy.
func (s *MLPStrategy) Name() string { return "mlp" }

// Predict implements Strategy.
func (s *MLPStrategy) Predict(features map[string]float64) (float64, error) {
	x := mat.NewVecDense(len(s.columns), vectorize(features, s.columns))

	for _, layer := range s.layers {
		outDim, _ := layer.weights.Dims()
		y := mat.NewVecDense(outDim, nil)
		y.MulVec(layer.weights, x)
		y.AddVec(y, layer.bias)
		if layer.activation == "relu" {
			for i := 0; i < outDim; i++ {
				y.SetVec(i, math.Max(0, y.AtVec(i)))
			}
		}
		x = y
	}

	out := x.AtVec(0)
	if err := errors.CheckScalar("price.MLPStrategy.Predict", out); err != nil {
		return 0, err
	}
	return out, nil
}
