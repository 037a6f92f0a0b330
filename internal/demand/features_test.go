package demand

import (
	"math"
	"testing"
	"time"

	"github.com/YuminosukeSato/forecast/pkg/errors"
)

func testConfig() *Config {
	cfg := &Config{
		BaseDate: "2011-01-17",
		NumFolds: 2,
		FeatureColumns: []string{
			"base_price", "total_price", "diff", "relative_diff_base", "relative_diff_total",
			"is_featured_sku", "is_display_sku", "store_encoded", "sku_encoded",
			"store_id", "sku_id",
			"year", "date", "month", "weekday", "weeknum", "week_serial",
			"end_year", "end_date", "end_month", "end_weekday", "end_weeknum", "end_week_serial",
		},
		CategoricalColumns: []string{"store_id", "sku_id"},
		TimeFeatures:       []string{"weeknum"},
	}
	cfg.baseDate = time.Date(2011, 1, 17, 0, 0, 0, 0, time.UTC)
	return cfg
}

func testEncoders() *Encoders {
	return &Encoders{
		GlobalMean: 10.0,
		MStore:     10,
		MSKU:       10,
		MTime:      5,
		Store: map[string]CategoryStats{
			"8091": {Count: 40, Mean: 25.0},
		},
		SKU: map[string]CategoryStats{
			"216418": {Count: 90, Mean: 15.0},
		},
		Time: map[string]map[string]CategoryStats{
			"weeknum": {
				"29": {Count: 45, Mean: 12.0},
			},
		},
	}
}

func featureIndex(t *testing.T, cfg *Config, name string) int {
	t.Helper()
	for i, col := range cfg.FeatureColumns {
		if col == name {
			return i
		}
	}
	t.Fatalf("feature %q not in config", name)
	return -1
}

func floatPtr(v float64) *float64 { return &v }

func TestBuildVectorPriceFeatures(t *testing.T) {
	cfg := testConfig()
	tr := NewTransformer(cfg, testEncoders())

	tests := []struct {
		name       string
		basePrice  float64
		totalPrice *float64
		wantDiff   float64
		wantRDB    float64
		wantRDT    float64
	}{
		{
			name:       "equal prices give zero diffs",
			basePrice:  108.30,
			totalPrice: floatPtr(108.30),
			wantDiff:   0, wantRDB: 0, wantRDT: 0,
		},
		{
			name:       "missing total_price defaults to base_price",
			basePrice:  133.95,
			totalPrice: nil,
			wantDiff:   0, wantRDB: 0, wantRDT: 0,
		},
		{
			name:       "discounted price",
			basePrice:  111.8625,
			totalPrice: floatPtr(99.0375),
			wantDiff:   12.825,
			wantRDB:    0.1147,
			wantRDT:    0.1295,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Record{
				Week: "16/07/13", StoreID: 8091, SKUID: 216418,
				BasePrice: tt.basePrice, TotalPrice: tt.totalPrice,
			}
			vector, err := tr.BuildVector(r)
			if err != nil {
				t.Fatalf("BuildVector() error = %v", err)
			}
			if len(vector) != len(cfg.FeatureColumns) {
				t.Fatalf("vector length = %d, want %d", len(vector), len(cfg.FeatureColumns))
			}

			checks := map[string]float64{
				"diff":                tt.wantDiff,
				"relative_diff_base":  tt.wantRDB,
				"relative_diff_total": tt.wantRDT,
			}
			for name, want := range checks {
				got := vector[featureIndex(t, cfg, name)]
				if math.Abs(got-want) > 1e-4 {
					t.Errorf("%s = %v, want %v", name, got, want)
				}
			}

			// Diff and base price must round-trip to the effective total price.
			gotDiff := vector[featureIndex(t, cfg, "diff")]
			gotBase := vector[featureIndex(t, cfg, "base_price")]
			gotTotal := vector[featureIndex(t, cfg, "total_price")]
			if math.Abs((gotBase-gotDiff)-gotTotal) > 1e-9 {
				t.Errorf("base - diff = %v, want total %v", gotBase-gotDiff, gotTotal)
			}
		})
	}
}

func TestBuildVectorCalendarFeatures(t *testing.T) {
	cfg := testConfig()
	// No time encoding so raw calendar values are observable.
	cfg.TimeFeatures = nil
	tr := NewTransformer(cfg, testEncoders())

	r := &Record{Week: "17/01/11", StoreID: 8091, SKUID: 216418, BasePrice: 100}
	vector, err := tr.BuildVector(r)
	if err != nil {
		t.Fatalf("BuildVector() error = %v", err)
	}

	// 17/01/11 is the week-serial epoch, a Monday in ISO week 3.
	wants := map[string]float64{
		"year":            2011,
		"date":            17,
		"month":           1,
		"weekday":         0,
		"weeknum":         3,
		"week_serial":     0,
		"end_year":        2011,
		"end_date":        23,
		"end_month":       1,
		"end_weekday":     6,
		"end_weeknum":     3,
		"end_week_serial": 6.0 / 7.0,
	}
	for name, want := range wants {
		got := vector[featureIndex(t, cfg, name)]
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}
}

func TestBuildVectorAppliesTimeEncoding(t *testing.T) {
	cfg := testConfig()
	tr := NewTransformer(cfg, testEncoders())

	// 16/07/13 falls in ISO week 29, which has an encoding entry:
	// (45*12 + 5*10) / 50 = 11.8.
	r := &Record{Week: "16/07/13", StoreID: 8091, SKUID: 216418, BasePrice: 100}
	vector, err := tr.BuildVector(r)
	if err != nil {
		t.Fatalf("BuildVector() error = %v", err)
	}

	got := vector[featureIndex(t, cfg, "weeknum")]
	if math.Abs(got-11.8) > 1e-9 {
		t.Errorf("weeknum encoded = %v, want 11.8", got)
	}
	// end_weeknum is not in time_features, so it stays raw.
	if got := vector[featureIndex(t, cfg, "end_weeknum")]; got != 29 {
		t.Errorf("end_weeknum = %v, want raw 29", got)
	}
}

func TestValidateRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name   string
		record Record
	}{
		{name: "ISO date instead of DD/MM/YY", record: Record{Week: "2013-07-16", BasePrice: 1}},
		{name: "empty week", record: Record{Week: "", BasePrice: 1}},
		{name: "zero base price", record: Record{Week: "16/07/13", BasePrice: 0}},
		{name: "negative total price", record: Record{Week: "16/07/13", BasePrice: 1, TotalPrice: floatPtr(-2)}},
		{name: "flag out of range", record: Record{Week: "16/07/13", BasePrice: 1, IsFeaturedSKU: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if err == nil {
				t.Fatal("Validate() should fail")
			}
			var verr *errors.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("error %v is not a ValidationError", err)
			}
		})
	}
}

func TestBuildVectorRejectsZeroPrices(t *testing.T) {
	// Validate catches these in the normal pipeline, but BuildVector must
	// still refuse to divide by a zero price when called with a raw record.
	tr := NewTransformer(testConfig(), testEncoders())

	tests := []struct {
		name   string
		record Record
	}{
		{name: "zero base price", record: Record{Week: "16/07/13", StoreID: 8091, SKUID: 216418, BasePrice: 0}},
		{name: "zero total price", record: Record{Week: "16/07/13", StoreID: 8091, SKUID: 216418, BasePrice: 100, TotalPrice: floatPtr(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tr.BuildVector(&tt.record)
			if err == nil {
				t.Fatal("BuildVector() should fail")
			}
			var derr *errors.DataError
			if !errors.As(err, &derr) {
				t.Errorf("error %v is not a DataError", err)
			}
		})
	}
}

func TestBuildVectorDeterminism(t *testing.T) {
	tr := NewTransformer(testConfig(), testEncoders())
	r := &Record{Week: "16/07/13", StoreID: 8091, SKUID: 216418, BasePrice: 111.8625, TotalPrice: floatPtr(99.0375)}

	first, err := tr.BuildVector(r)
	if err != nil {
		t.Fatalf("BuildVector() error = %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := tr.BuildVector(r)
		if err != nil {
			t.Fatalf("BuildVector() error = %v", err)
		}
		for j := range first {
			if first[j] != again[j] {
				t.Fatalf("vector not bit-identical at index %d: %v vs %v", j, first[j], again[j])
			}
		}
	}
}
