package demand

import (
	"encoding/json"
	"os"
	"time"

	"github.com/YuminosukeSato/forecast/pkg/errors"
)

// Config is the model configuration artifact written at training time. It
// freezes the feature order the fold models were trained with, the epoch
// for the week-serial feature, and the list of time features that go
// through target encoding.
type Config struct {
	BaseDate           string   `json:"base_date"` // YYYY-MM-DD
	NumFolds           int      `json:"n_folds"`
	FeatureColumns     []string `json:"feature_columns"`
	CategoricalColumns []string `json:"categorical_columns"`
	TimeFeatures       []string `json:"time_features"`

	baseDate time.Time
}

// LoadConfig reads and validates the config artifact.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewArtifactError("config", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.NewArtifactError("config", path, err)
	}

	cfg.baseDate, err = time.Parse("2006-01-02", cfg.BaseDate)
	if err != nil {
		return nil, errors.NewArtifactError("config", path, errors.Wrap(err, "invalid base_date"))
	}
	if len(cfg.FeatureColumns) == 0 {
		return nil, errors.NewArtifactError("config", path, errors.New("feature_columns is empty"))
	}
	if cfg.NumFolds <= 0 {
		cfg.NumFolds = 10
	}
	return &cfg, nil
}

// ParsedBaseDate returns the parsed week-serial epoch.
func (c *Config) ParsedBaseDate() time.Time {
	return c.baseDate
}

// Transformer converts validated records into the fixed-order feature
// vector expected by the fold models. It is a pure function of one record
// plus the frozen encoder tables; identical records produce bit-identical
// vectors.
type Transformer struct {
	cfg      *Config
	encoders *Encoders
}

// NewTransformer wires a config artifact and encoder tables together.
func NewTransformer(cfg *Config, encoders *Encoders) *Transformer {
	return &Transformer{cfg: cfg, encoders: encoders}
}

// BuildVector produces the feature vector in config order. The record must
// already be validated.
func (t *Transformer) BuildVector(r *Record) ([]float64, error) {
	totalPrice := r.EffectiveTotalPrice()
	diff := r.BasePrice - totalPrice

	if r.BasePrice == 0 {
		return nil, errors.NewDataError("demand.BuildVector", "division by zero: base_price is 0")
	}
	if totalPrice == 0 {
		return nil, errors.NewDataError("demand.BuildVector", "division by zero: total_price is 0")
	}
	relativeDiffBase := diff / r.BasePrice
	relativeDiffTotal := diff / totalPrice

	weekDate, err := ParseWeek(r.Week)
	if err != nil {
		return nil, err
	}

	features := map[string]float64{
		"base_price":          r.BasePrice,
		"total_price":         totalPrice,
		"diff":                diff,
		"relative_diff_base":  relativeDiffBase,
		"relative_diff_total": relativeDiffTotal,
		"is_featured_sku":     float64(r.IsFeaturedSKU),
		"is_display_sku":      float64(r.IsDisplaySKU),
		"store_id":            float64(r.StoreID),
		"sku_id":              float64(r.SKUID),
		"store_encoded":       t.encoders.EncodeStore(r.StoreID),
		"sku_encoded":         t.encoders.EncodeSKU(r.SKUID),
	}

	calendar := calendarFeatures(weekDate, t.cfg.baseDate)
	for name, value := range calendar {
		features[name] = value
	}
	// Selected time features are replaced by their target-encoded values;
	// features without an encoding table keep the raw calendar value.
	for _, name := range t.cfg.TimeFeatures {
		raw, ok := calendar[name]
		if !ok {
			continue
		}
		features[name] = t.encoders.EncodeTime(name, raw)
	}

	vector := make([]float64, len(t.cfg.FeatureColumns))
	for i, col := range t.cfg.FeatureColumns {
		value, ok := features[col]
		if !ok {
			return nil, errors.Newf("demand.BuildVector: feature %q from config is not computed", col)
		}
		vector[i] = value
	}

	if err := errors.CheckFinite("demand.BuildVector", vector); err != nil {
		return nil, err
	}
	return vector, nil
}

// calendarFeatures derives the twelve date features for the week start and
// the week end (start + 6 days). Weekday is Monday-based to match the
// statistics the encoders were fitted on, and the week serial counts
// fractional weeks since the configured base date.
func calendarFeatures(weekStart, baseDate time.Time) map[string]float64 {
	weekEnd := weekStart.AddDate(0, 0, 6)

	out := make(map[string]float64, 12)
	addDate := func(prefix string, d time.Time) {
		_, isoWeek := d.ISOWeek()
		out[prefix+"year"] = float64(d.Year())
		out[prefix+"date"] = float64(d.Day())
		out[prefix+"month"] = float64(int(d.Month()))
		out[prefix+"weekday"] = float64((int(d.Weekday()) + 6) % 7)
		out[prefix+"weeknum"] = float64(isoWeek)
		out[prefix+"week_serial"] = d.Sub(baseDate).Seconds() / (86400 * 7)
	}
	addDate("", weekStart)
	addDate("end_", weekEnd)
	return out
}
