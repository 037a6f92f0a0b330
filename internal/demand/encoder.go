package demand

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/YuminosukeSato/forecast/pkg/errors"
)

// CategoryStats holds the per-key statistics frozen at training time.
type CategoryStats struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
}

// Encoders applies M-estimate target encoding from a read-only artifact:
//
//	encoded = (n*mean + m*global_mean) / (n + m)
//
// Keys unseen at training time resolve to the global mean instead of
// erroring, since new stores and SKUs are expected in production; each
// fallback raises an UnknownCategoryWarning through the warning hook.
type Encoders struct {
	GlobalMean float64 `json:"global_mean"`
	MStore     float64 `json:"m_store"`
	MSKU       float64 `json:"m_sku"`
	MTime      float64 `json:"m_time"`

	Store map[string]CategoryStats            `json:"store"`
	SKU   map[string]CategoryStats            `json:"sku"`
	Time  map[string]map[string]CategoryStats `json:"time"`
}

// LoadEncoders reads the encoder artifact. The tables are read-only after
// this call.
func LoadEncoders(path string) (*Encoders, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewArtifactError("encoder", path, err)
	}
	var enc Encoders
	if err := json.Unmarshal(data, &enc); err != nil {
		return nil, errors.NewArtifactError("encoder", path, err)
	}
	if len(enc.Store) == 0 || len(enc.SKU) == 0 {
		return nil, errors.NewArtifactError("encoder", path, errors.New("store or sku table is empty"))
	}
	if enc.MStore <= 0 {
		enc.MStore = 10
	}
	if enc.MSKU <= 0 {
		enc.MSKU = 10
	}
	if enc.MTime <= 0 {
		enc.MTime = 5
	}
	return &enc, nil
}

// EncodeStore maps a store ID to its smoothed target mean.
func (e *Encoders) EncodeStore(storeID int) float64 {
	return e.encode("store", e.Store, strconv.Itoa(storeID), e.MStore)
}

// EncodeSKU maps a SKU ID to its smoothed target mean.
func (e *Encoders) EncodeSKU(skuID int) float64 {
	return e.encode("sku", e.SKU, strconv.Itoa(skuID), e.MSKU)
}

// EncodeTime maps a calendar feature value to its smoothed target mean.
// Features without an encoding table pass the raw value through.
func (e *Encoders) EncodeTime(feature string, raw float64) float64 {
	table, ok := e.Time[feature]
	if !ok {
		return raw
	}
	key := strconv.FormatFloat(raw, 'f', -1, 64)
	return e.encode("time."+feature, table, key, e.MTime)
}

func (e *Encoders) encode(name string, table map[string]CategoryStats, key string, m float64) float64 {
	stats, ok := table[key]
	if !ok {
		errors.Warn(errors.NewUnknownCategoryWarning(name, key, e.GlobalMean))
		return e.GlobalMean
	}
	n := float64(stats.Count)
	return (n*stats.Mean + m*e.GlobalMean) / (n + m)
}
