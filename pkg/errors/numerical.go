package errors

import (
	"fmt"
	"math"
)

// CheckFinite checks if values contain NaN or Inf and returns a DataError
// if numerical instability is detected.
func CheckFinite(operation string, values []float64) error {
	for i, v := range values {
		if math.IsNaN(v) {
			return NewDataError(operation, fmt.Sprintf("NaN detected at index %d", i))
		}
		if math.IsInf(v, 0) {
			return NewDataError(operation, fmt.Sprintf("Inf detected at index %d", i))
		}
	}
	return nil
}

// CheckScalar checks a single scalar value for numerical instability.
func CheckScalar(operation string, value float64) error {
	if math.IsNaN(value) {
		return NewDataError(operation, "result is NaN")
	}
	if math.IsInf(value, 0) {
		return NewDataError(operation, "result is Inf")
	}
	return nil
}
