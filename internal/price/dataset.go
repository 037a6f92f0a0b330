// Package price implements the price-forecasting inference pipeline: a
// read-only dataset store for contextual features, one-hot feature
// engineering, and pluggable scoring strategies (linear regression and a
// small feed-forward network) loaded from JSON artifacts.
package price

import (
	"encoding/csv"
	"io"
	"log/slog"
	"math"
	"os"
	"sort"
	"strconv"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/forecast/pkg/errors"
)

const dateLayout = "2006-01-02"

// StoreInfo is one row of stores.csv.
type StoreInfo struct {
	Store int
	Type  string // A, B or C
	Size  int
}

// ContextFeatures is one row of features.csv, with missing markdowns
// already zeroed.
type ContextFeatures struct {
	Date         time.Time
	Temperature  float64
	FuelPrice    float64
	CPI          float64
	Unemployment float64
	MarkDowns    [5]float64
	IsHoliday    bool
}

// TotalMarkDown sums the five markdown columns.
func (c *ContextFeatures) TotalMarkDown() float64 {
	var total float64
	for _, m := range c.MarkDowns {
		total += m
	}
	return total
}

// SalesStats summarizes the historical weekly sales of one store/dept
// pair.
type SalesStats struct {
	Max    float64
	Min    float64
	Mean   float64
	Median float64
	Std    float64
}

type storeDept struct {
	store int
	dept  int
}

// DatasetStore holds the three price-forecasting datasets, loaded once at
// startup and read-only afterwards.
type DatasetStore struct {
	stores   map[int]StoreInfo
	features map[int][]ContextFeatures // per store, sorted by date
	sales    map[storeDept][]float64

	medianCPI          float64
	medianUnemployment float64
}

// LoadDatasets reads stores.csv, features.csv and train.csv. Any missing
// or malformed file is fatal to startup.
func LoadDatasets(storesPath, featuresPath, trainPath string) (*DatasetStore, error) {
	ds := &DatasetStore{
		stores:   make(map[int]StoreInfo),
		features: make(map[int][]ContextFeatures),
		sales:    make(map[storeDept][]float64),
	}

	if err := ds.loadStores(storesPath); err != nil {
		return nil, err
	}
	if err := ds.loadFeatures(featuresPath); err != nil {
		return nil, err
	}
	if err := ds.loadTrain(trainPath); err != nil {
		return nil, err
	}

	slog.Info("price datasets loaded",
		"stores", len(ds.stores),
		"store_dept_pairs", len(ds.sales),
	)
	return ds, nil
}

// StoreInfo returns the metadata of one store. An unknown store is a
// request-level validation error, not a fallback.
func (ds *DatasetStore) StoreInfo(store int) (StoreInfo, error) {
	info, ok := ds.stores[store]
	if !ok {
		return StoreInfo{}, errors.NewValidationError("store", "not found in stores dataset", store)
	}
	return info, nil
}

// FeaturesNear returns the context features of the given store for the
// requested date, falling back to the row with the nearest date when no
// exact match exists.
func (ds *DatasetStore) FeaturesNear(store int, date time.Time) (ContextFeatures, error) {
	rows, ok := ds.features[store]
	if !ok || len(rows) == 0 {
		return ContextFeatures{}, errors.NewValidationError("store", "no context features for store", store)
	}

	best := rows[0]
	bestDiff := math.Abs(rows[0].Date.Sub(date).Hours())
	for _, row := range rows[1:] {
		diff := math.Abs(row.Date.Sub(date).Hours())
		if diff < bestDiff {
			best, bestDiff = row, diff
		}
		if diff == 0 {
			break
		}
	}

	if bestDiff != 0 {
		slog.Debug("using context features from nearest date",
			"store", store,
			"requested", date.Format(dateLayout),
			"nearest", best.Date.Format(dateLayout),
		)
	}

	// CPI and unemployment gaps are filled with the dataset-wide median.
	if math.IsNaN(best.CPI) {
		best.CPI = ds.medianCPI
	}
	if math.IsNaN(best.Unemployment) {
		best.Unemployment = ds.medianUnemployment
	}
	return best, nil
}

// SalesStats summarizes historical weekly sales for a store/dept pair.
// Pairs with no history get all-zero stats; a single observation has a
// standard deviation of zero.
func (ds *DatasetStore) SalesStats(store, dept int) SalesStats {
	sales := ds.sales[storeDept{store: store, dept: dept}]
	if len(sales) == 0 {
		return SalesStats{}
	}

	sorted := make([]float64, len(sales))
	copy(sorted, sales)
	sort.Float64s(sorted)

	stats := SalesStats{
		Max:    floats.Max(sorted),
		Min:    floats.Min(sorted),
		Mean:   stat.Mean(sorted, nil),
		Median: stat.Quantile(0.5, stat.LinInterp, sorted, nil),
	}
	if len(sorted) > 1 {
		stats.Std = stat.StdDev(sorted, nil)
	}
	return stats
}

func (ds *DatasetStore) loadStores(path string) error {
	rows, header, err := readCSV(path)
	if err != nil {
		return errors.NewArtifactError("dataset", path, err)
	}
	for i, row := range rows {
		store, err := strconv.Atoi(cell(row, header, "Store"))
		if err != nil {
			return errors.NewArtifactError("dataset", path, errors.Wrapf(err, "row %d: Store", i+1))
		}
		size, err := strconv.Atoi(cell(row, header, "Size"))
		if err != nil {
			return errors.NewArtifactError("dataset", path, errors.Wrapf(err, "row %d: Size", i+1))
		}
		ds.stores[store] = StoreInfo{Store: store, Type: cell(row, header, "Type"), Size: size}
	}
	if len(ds.stores) == 0 {
		return errors.NewArtifactError("dataset", path, errors.New("no store rows"))
	}
	return nil
}

func (ds *DatasetStore) loadFeatures(path string) error {
	rows, header, err := readCSV(path)
	if err != nil {
		return errors.NewArtifactError("dataset", path, err)
	}

	var allCPI, allUnemployment []float64
	for i, row := range rows {
		store, err := strconv.Atoi(cell(row, header, "Store"))
		if err != nil {
			return errors.NewArtifactError("dataset", path, errors.Wrapf(err, "row %d: Store", i+1))
		}
		date, err := time.Parse(dateLayout, cell(row, header, "Date"))
		if err != nil {
			return errors.NewArtifactError("dataset", path, errors.Wrapf(err, "row %d: Date", i+1))
		}

		cf := ContextFeatures{
			Date:         date,
			Temperature:  numericCell(row, header, "Temperature", 0),
			FuelPrice:    numericCell(row, header, "Fuel_Price", 0),
			CPI:          numericCell(row, header, "CPI", math.NaN()),
			Unemployment: numericCell(row, header, "Unemployment", math.NaN()),
			IsHoliday:    boolCell(row, header, "IsHoliday"),
		}
		for m := 0; m < 5; m++ {
			cf.MarkDowns[m] = numericCell(row, header, "MarkDown"+strconv.Itoa(m+1), 0)
		}
		ds.features[store] = append(ds.features[store], cf)

		if !math.IsNaN(cf.CPI) {
			allCPI = append(allCPI, cf.CPI)
		}
		if !math.IsNaN(cf.Unemployment) {
			allUnemployment = append(allUnemployment, cf.Unemployment)
		}
	}
	if len(ds.features) == 0 {
		return errors.NewArtifactError("dataset", path, errors.New("no feature rows"))
	}

	for store := range ds.features {
		rows := ds.features[store]
		sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
	}
	ds.medianCPI = medianOf(allCPI)
	ds.medianUnemployment = medianOf(allUnemployment)
	return nil
}

func (ds *DatasetStore) loadTrain(path string) error {
	rows, header, err := readCSV(path)
	if err != nil {
		return errors.NewArtifactError("dataset", path, err)
	}
	for i, row := range rows {
		store, err := strconv.Atoi(cell(row, header, "Store"))
		if err != nil {
			return errors.NewArtifactError("dataset", path, errors.Wrapf(err, "row %d: Store", i+1))
		}
		dept, err := strconv.Atoi(cell(row, header, "Dept"))
		if err != nil {
			return errors.NewArtifactError("dataset", path, errors.Wrapf(err, "row %d: Dept", i+1))
		}
		sales, err := strconv.ParseFloat(cell(row, header, "Weekly_Sales"), 64)
		if err != nil {
			return errors.NewArtifactError("dataset", path, errors.Wrapf(err, "row %d: Weekly_Sales", i+1))
		}
		key := storeDept{store: store, dept: dept}
		ds.sales[key] = append(ds.sales[key], sales)
	}
	if len(ds.sales) == 0 {
		return errors.NewArtifactError("dataset", path, errors.New("no training rows"))
	}
	return nil
}

func readCSV(path string) ([][]string, map[string]int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	headerRow, err := reader.Read()
	if err != nil {
		return nil, nil, errors.Wrap(err, "reading header")
	}
	header := make(map[string]int, len(headerRow))
	for i, name := range headerRow {
		header[name] = i
	}

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		rows = append(rows, row)
	}
	return rows, header, nil
}

func cell(row []string, header map[string]int, name string) string {
	idx, ok := header[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// numericCell parses a float cell, mapping empty and NA cells to the given
// fallback.
func numericCell(row []string, header map[string]int, name string, fallback float64) float64 {
	raw := cell(row, header, name)
	if raw == "" || raw == "NA" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

func boolCell(row []string, header map[string]int, name string) bool {
	switch cell(row, header, name) {
	case "TRUE", "True", "true", "1":
		return true
	default:
		return false
	}
}

func medianOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return stat.Quantile(0.5, stat.LinInterp, sorted, nil)
}
