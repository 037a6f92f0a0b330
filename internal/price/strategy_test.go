package price

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/forecast/pkg/errors"
)

func vecOf(values ...float64) *mat.VecDense {
	return mat.NewVecDense(len(values), values)
}

func writeArtifact(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLinearStrategyPredict(t *testing.T) {
	path := writeArtifact(t, "linear_regressor.json", `{
		"feature_columns": ["mean", "Size", "Type_A", "Dept_1"],
		"coef": [1.0, 0.1, 500.0, 100.0],
		"intercept": 50.0
	}`)
	s, err := LoadLinearStrategy(path)
	if err != nil {
		t.Fatalf("LoadLinearStrategy() error = %v", err)
	}
	if s.Name() != "linear" {
		t.Errorf("Name() = %q", s.Name())
	}

	features := map[string]float64{
		"mean":   20000,
		"Size":   151315,
		"Type_A": 1,
		"Dept_1": 1,
		// Extra features are ignored; absent ones read as zero.
		"Temperature": 55.3,
	}
	got, err := s.Predict(features)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	want := 20000*1.0 + 151315*0.1 + 500 + 100 + 50
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Predict() = %v, want %v", got, want)
	}
}

func TestLoadLinearStrategyFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "invalid json", content: `{`},
		{name: "empty coef", content: `{"feature_columns": [], "coef": []}`},
		{name: "length mismatch", content: `{"feature_columns": ["mean"], "coef": [1.0, 2.0]}`},
		{name: "misspelled base feature", content: `{"feature_columns": ["Temprature"], "coef": [2.0], "intercept": 5.0}`},
		{name: "bare one-hot prefix", content: `{"feature_columns": ["Dept_"], "coef": [1.0]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeArtifact(t, "linear_regressor.json", tt.content)
			if _, err := LoadLinearStrategy(path); err == nil {
				t.Error("LoadLinearStrategy() should fail")
			}
		})
	}
}

func TestLoadRejectsUnknownColumn(t *testing.T) {
	// A typo in a base feature column must not load: vectorize would read
	// the column as zero on every request and the model would silently
	// score garbage.
	path := writeArtifact(t, "linear_regressor.json",
		`{"feature_columns": ["Temprature"], "coef": [2.0], "intercept": 5.0}`)
	_, err := LoadLinearStrategy(path)
	if err == nil {
		t.Fatal("LoadLinearStrategy() should fail on a misspelled column")
	}
	var aerr *errors.ArtifactError
	if !errors.As(err, &aerr) {
		t.Errorf("error %v is not an ArtifactError", err)
	}

	path = writeArtifact(t, "mlp_regressor.json",
		`{"feature_columns": ["Temprature"], "layers": [{"weights": [[1]], "bias": [0], "activation": "identity"}]}`)
	_, err = LoadMLPStrategy(path)
	if err == nil {
		t.Fatal("LoadMLPStrategy() should fail on a misspelled column")
	}
	if !errors.As(err, &aerr) {
		t.Errorf("error %v is not an ArtifactError", err)
	}
}

func TestValidateColumnsAcceptsKnownNames(t *testing.T) {
	columns := []string{
		"mean", "median", "Week", "Temperature", "max", "CPI", "Fuel_Price",
		"min", "Unemployment", "std", "Month", "Total_MarkDown", "IsHoliday",
		"Size", "Year", "Dept_1", "Dept_3", "Dept_5", "Dept_9", "Dept_11",
		"Dept_16", "Dept_18", "Dept_56", "Store_1", "Type_A",
	}
	if err := validateColumns("model.json", columns); err != nil {
		t.Errorf("validateColumns() error = %v", err)
	}
}

func TestMLPStrategyPredict(t *testing.T) {
	path := writeArtifact(t, "mlp_regressor.json", `{
		"feature_columns": ["mean", "IsHoliday"],
		"layers": [
			{"weights": [[1, 0], [0, 1]], "bias": [0, 0], "activation": "relu"},
			{"weights": [[0.5, 2]], "bias": [10], "activation": "identity"}
		]
	}`)
	s, err := LoadMLPStrategy(path)
	if err != nil {
		t.Fatalf("LoadMLPStrategy() error = %v", err)
	}
	if s.Name() != "mlp" {
		t.Errorf("Name() = %q", s.Name())
	}

	got, err := s.Predict(map[string]float64{"mean": 20000, "IsHoliday": 0})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if want := 0.5*20000 + 10; math.Abs(got-want) > 1e-9 {
		t.Errorf("Predict() = %v, want %v", got, want)
	}
}

func TestMLPReLUClampsNegatives(t *testing.T) {
	path := writeArtifact(t, "mlp_regressor.json", `{
		"feature_columns": ["mean"],
		"layers": [
			{"weights": [[-1]], "bias": [0], "activation": "relu"},
			{"weights": [[1]], "bias": [3], "activation": "identity"}
		]
	}`)
	s, err := LoadMLPStrategy(path)
	if err != nil {
		t.Fatalf("LoadMLPStrategy() error = %v", err)
	}

	// relu(-1*5) = 0, then 0*1 + 3.
	got, err := s.Predict(map[string]float64{"mean": 5})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if got != 3 {
		t.Errorf("Predict() = %v, want 3", got)
	}
}

func TestLoadMLPStrategyFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "no layers", content: `{"feature_columns": ["mean"], "layers": []}`},
		{
			name:    "dimension chain mismatch",
			content: `{"feature_columns": ["mean", "std"], "layers": [{"weights": [[1]], "bias": [0], "activation": "relu"}]}`,
		},
		{
			name:    "bias length mismatch",
			content: `{"feature_columns": ["mean"], "layers": [{"weights": [[1]], "bias": [0, 1], "activation": "relu"}]}`,
		},
		{
			name:    "multi-output final layer",
			content: `{"feature_columns": ["mean"], "layers": [{"weights": [[1], [2]], "bias": [0, 0], "activation": "identity"}]}`,
		},
		{
			name:    "unsupported activation",
			content: `{"feature_columns": ["mean"], "layers": [{"weights": [[1]], "bias": [0], "activation": "tanh"}]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeArtifact(t, "mlp_regressor.json", tt.content)
			if _, err := LoadMLPStrategy(path); err == nil {
				t.Error("LoadMLPStrategy() should fail")
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	linear := &LinearStrategy{columns: []string{"x"}, coef: vecOf(1)}
	registry := NewRegistry()
	registry.Register(linear)

	if registry.DefaultName() != "linear" {
		t.Errorf("DefaultName() = %q, want first registered", registry.DefaultName())
	}

	got, err := registry.Get("")
	if err != nil || got.Name() != "linear" {
		t.Errorf("Get(\"\") = %v, %v", got, err)
	}

	_, err = registry.Get("dnn")
	if err == nil {
		t.Fatal("Get(unknown) should fail")
	}
	var verr *errors.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("error %v is not a ValidationError", err)
	}

	if err := registry.SetDefault("dnn"); err == nil {
		t.Error("SetDefault(unknown) should fail")
	}
}
