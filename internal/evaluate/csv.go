package evaluate

import (
	"encoding/csv"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/YuminosukeSato/forecast/pkg/errors"
)

// LoadSeries reads an ID-to-value CSV such as the batch scorer output.
// The header must contain idColumn and valueColumn; other columns are
// ignored.
func LoadSeries(path, idColumn, valueColumn string) (map[int]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewArtifactError("series", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrapf(err, "read header of %s", path)
	}
	idIdx, valueIdx := -1, -1
	for i, name := range header {
		switch name {
		case idColumn:
			idIdx = i
		case valueColumn:
			valueIdx = i
		}
	}
	if idIdx < 0 {
		return nil, errors.NewDataError("load series", "missing column "+idColumn)
	}
	if valueIdx < 0 {
		return nil, errors.NewDataError("load series", "missing column "+valueColumn)
	}

	series := make(map[int]float64)
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read line %d of %s", line, path)
		}
		id, err := strconv.Atoi(row[idIdx])
		if err != nil {
			return nil, errors.Wrapf(err, "parse id on line %d of %s", line, path)
		}
		value, err := strconv.ParseFloat(row[valueIdx], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "parse value on line %d of %s", line, path)
		}
		series[id] = value
	}
	return series, nil
}

// Align joins two series on their shared IDs and returns the matched
// values in ascending ID order. IDs present in only one series are
// dropped.
func Align(actual, predicted map[int]float64) ([]float64, []float64) {
	ids := make([]int, 0, len(actual))
	for id := range actual {
		if _, ok := predicted[id]; ok {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)

	actualValues := make([]float64, len(ids))
	predictedValues := make([]float64, len(ids))
	for i, id := range ids {
		actualValues[i] = actual[id]
		predictedValues[i] = predicted[id]
	}
	return actualValues, predictedValues
}
