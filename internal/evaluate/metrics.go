// Package evaluate computes offline accuracy metrics for forecast
// output against held-out actuals.
package evaluate

import (
	"math"

	"github.com/YuminosukeSato/forecast/pkg/errors"
)

// Report bundles the regression metrics for one evaluation run.
type Report struct {
	Count int     `json:"count"`
	RMSLE float64 `json:"rmsle"`
	RMSE  float64 `json:"rmse"`
	MAE   float64 `json:"mae"`
}

func checkPair(op string, actual, predicted []float64) error {
	if len(actual) == 0 {
		return errors.NewDataError(op, "empty input")
	}
	if len(actual) != len(predicted) {
		return errors.NewDimensionError(op, len(actual), len(predicted))
	}
	return nil
}

// RMSLE computes the root mean squared logarithmic error. Both series
// must be non-negative; demand predictions are clamped upstream.
func RMSLE(actual, predicted []float64) (float64, error) {
	if err := checkPair("RMSLE", actual, predicted); err != nil {
		return 0, err
	}
	var sum float64
	for i := range actual {
		if actual[i] < 0 || predicted[i] < 0 {
			return 0, errors.NewDataError("RMSLE", "inputs must be non-negative")
		}
		diff := math.Log1p(predicted[i]) - math.Log1p(actual[i])
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(actual))), nil
}

// RMSE computes the root mean squared error.
func RMSE(actual, predicted []float64) (float64, error) {
	if err := checkPair("RMSE", actual, predicted); err != nil {
		return 0, err
	}
	var sum float64
	for i := range actual {
		diff := predicted[i] - actual[i]
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(actual))), nil
}

// MAE computes the mean absolute error.
func MAE(actual, predicted []float64) (float64, error) {
	if err := checkPair("MAE", actual, predicted); err != nil {
		return 0, err
	}
	var sum float64
	for i := range actual {
		sum += math.Abs(predicted[i] - actual[i])
	}
	return sum / float64(len(actual)), nil
}

// Evaluate computes all metrics for one prediction series.
func Evaluate(actual, predicted []float64) (*Report, error) {
	rmsle, err := RMSLE(actual, predicted)
	if err != nil {
		return nil, err
	}
	rmse, err := RMSE(actual, predicted)
	if err != nil {
		return nil, err
	}
	mae, err := MAE(actual, predicted)
	if err != nil {
		return nil, err
	}
	return &Report{
		Count: len(actual),
		RMSLE: rmsle,
		RMSE:  rmse,
		MAE:   mae,
	}, nil
}
