// Package demand implements the demand-forecasting inference pipeline:
// request validation, price and calendar feature engineering, target
// encoding of categorical keys, and scoring through an ensemble of
// LightGBM fold models.
package demand

import (
	"time"

	"github.com/YuminosukeSato/forecast/pkg/errors"
)

// weekLayout is the strict wire format for the week field. Weeks arrive as
// zero-padded DD/MM/YY strings; anything else is a validation error.
const weekLayout = "02/01/06"

// Record is one demand-forecasting input row. TotalPrice is optional and
// defaults to BasePrice when absent.
type Record struct {
	RecordID      int      `json:"record_ID"`
	Week          string   `json:"week"`
	StoreID       int      `json:"store_id"`
	SKUID         int      `json:"sku_id"`
	TotalPrice    *float64 `json:"total_price,omitempty"`
	BasePrice     float64  `json:"base_price"`
	IsFeaturedSKU int      `json:"is_featured_sku"`
	IsDisplaySKU  int      `json:"is_display_sku"`
}

// Prediction pairs a scored value with the record it came from. Batch
// output preserves the input order of records.
type Prediction struct {
	RecordID  int     `json:"record_ID"`
	UnitsSold float64 `json:"units_sold"`
}

// Validate checks every mandatory field before any feature computation
// begins.
func (r *Record) Validate() error {
	if r.Week == "" {
		return errors.NewValidationError("week", "is required", r.Week)
	}
	if _, err := ParseWeek(r.Week); err != nil {
		return err
	}
	if r.BasePrice <= 0 {
		return errors.NewValidationError("base_price", "must be > 0", r.BasePrice)
	}
	if r.TotalPrice != nil && *r.TotalPrice <= 0 {
		return errors.NewValidationError("total_price", "must be > 0 when present", *r.TotalPrice)
	}
	if r.IsFeaturedSKU != 0 && r.IsFeaturedSKU != 1 {
		return errors.NewValidationError("is_featured_sku", "must be 0 or 1", r.IsFeaturedSKU)
	}
	if r.IsDisplaySKU != 0 && r.IsDisplaySKU != 1 {
		return errors.NewValidationError("is_display_sku", "must be 0 or 1", r.IsDisplaySKU)
	}
	return nil
}

// EffectiveTotalPrice applies the documented default: a missing
// total_price equals base_price.
func (r *Record) EffectiveTotalPrice() float64 {
	if r.TotalPrice == nil {
		return r.BasePrice
	}
	return *r.TotalPrice
}

// ParseWeek parses a week-start date in DD/MM/YY form. The layout is
// strict so that an ISO date like "2013-07-16" fails instead of silently
// misparsing.
func ParseWeek(s string) (time.Time, error) {
	t, err := time.Parse(weekLayout, s)
	if err != nil {
		return time.Time{}, errors.NewValidationError("week", "must be in DD/MM/YY format", s)
	}
	return t, nil
}
