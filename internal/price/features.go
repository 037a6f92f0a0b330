package price

import (
	"strconv"
	"time"

	"github.com/YuminosukeSato/forecast/pkg/errors"
)

// Request is one price-forecasting query. IsHoliday is optional and
// defaults from the features dataset; Strategy selects the scoring model
// and defaults to the registry default when empty.
type Request struct {
	Store     int    `json:"store"`
	Dept      int    `json:"dept"`
	Date      string `json:"date"` // YYYY-MM-DD
	IsHoliday *bool  `json:"is_holiday,omitempty"`
	Strategy  string `json:"strategy,omitempty"`
}

// Validate checks the request fields before any dataset lookup.
func (r *Request) Validate() error {
	if r.Store < 1 {
		return errors.NewValidationError("store", "must be >= 1", r.Store)
	}
	if r.Dept < 1 {
		return errors.NewValidationError("dept", "must be >= 1", r.Dept)
	}
	if _, err := ParseDate(r.Date); err != nil {
		return err
	}
	return nil
}

// ParseDate parses a strict YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, errors.NewValidationError("date", "must be in YYYY-MM-DD format", s)
	}
	return t, nil
}

// Transformer assembles the named feature map shared by all price
// strategies: store metadata, nearest-date context features, historical
// sales statistics, calendar fields and one-hot store/dept/type
// indicators. Each strategy then selects its own frozen column order from
// the map, with absent one-hot columns reading as zero.
type Transformer struct {
	datasets *DatasetStore
}

// NewTransformer wraps a loaded dataset store.
func NewTransformer(datasets *DatasetStore) *Transformer {
	return &Transformer{datasets: datasets}
}

// BuildFeatures resolves one validated request into the named feature map.
func (t *Transformer) BuildFeatures(r *Request) (map[string]float64, error) {
	date, err := ParseDate(r.Date)
	if err != nil {
		return nil, err
	}

	info, err := t.datasets.StoreInfo(r.Store)
	if err != nil {
		return nil, err
	}
	context, err := t.datasets.FeaturesNear(r.Store, date)
	if err != nil {
		return nil, err
	}
	stats := t.datasets.SalesStats(r.Store, r.Dept)

	isHoliday := context.IsHoliday
	if r.IsHoliday != nil {
		isHoliday = *r.IsHoliday
	}

	_, isoWeek := date.ISOWeek()
	features := map[string]float64{
		"Store":          float64(r.Store),
		"Dept":           float64(r.Dept),
		"IsHoliday":      boolToFloat(isHoliday),
		"Year":           float64(date.Year()),
		"Month":          float64(int(date.Month())),
		"Week":           float64(isoWeek),
		"Size":           float64(info.Size),
		"Temperature":    context.Temperature,
		"Fuel_Price":     context.FuelPrice,
		"CPI":            context.CPI,
		"Unemployment":   context.Unemployment,
		"Total_MarkDown": context.TotalMarkDown(),
		"max":            stats.Max,
		"min":            stats.Min,
		"mean":           stats.Mean,
		"median":         stats.Median,
		"std":            stats.Std,
	}

	// One-hot indicators: only the active columns are present, every other
	// Store_*/Dept_*/Type_* column reads as zero in strategy order.
	features["Store_"+strconv.Itoa(r.Store)] = 1
	features["Dept_"+strconv.Itoa(r.Dept)] = 1
	features["Type_"+info.Type] = 1

	if err := checkFeatureMap(features); err != nil {
		return nil, err
	}
	return features, nil
}

func checkFeatureMap(features map[string]float64) error {
	for name, value := range features {
		if err := errors.CheckScalar("price.BuildFeatures."+name, value); err != nil {
			return err
		}
	}
	return nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
