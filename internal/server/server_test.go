package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/forecast/internal/demand"
	"github.com/YuminosukeSato/forecast/internal/price"
)

const demandConfigJSON = `{
	"base_date": "2011-01-17",
	"n_folds": 2,
	"feature_columns": [
		"base_price", "total_price", "diff", "relative_diff_base", "relative_diff_total",
		"is_featured_sku", "is_display_sku", "store_encoded", "sku_encoded",
		"store_id", "sku_id",
		"year", "date", "month", "weekday", "weeknum", "week_serial",
		"end_year", "end_date", "end_month", "end_weekday", "end_weeknum", "end_week_serial"
	],
	"categorical_columns": ["store_id", "sku_id"],
	"time_features": ["weeknum"]
}`

const demandEncodersJSON = `{
	"global_mean": 10.0,
	"store": {"8091": {"count": 40, "mean": 25.0}},
	"sku": {"216418": {"count": 90, "mean": 15.0}},
	"time": {"weeknum": {"29": {"count": 45, "mean": 12.0}}}
}`

func writeDemandFold(t *testing.T, dir string, fold int, leafValue float64) {
	t.Helper()
	model := fmt.Sprintf(`tree
version=v3
num_class=1
max_feature_idx=22
objective=regression
tree_sizes=60

Tree=0
num_leaves=1
leaf_value=%g
shrinkage=0.1

`, leafValue)
	path := filepath.Join(dir, fmt.Sprintf("model_fold_%d.txt", fold))
	require.NoError(t, os.WriteFile(path, []byte(model), 0o644))
}

func newTestDemandPipeline(t *testing.T) *demand.Pipeline {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(demandConfigJSON), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "encoders.json"), []byte(demandEncodersJSON), 0o644))
	// expm1(ln 3) = 2 and expm1(ln 5) = 4 average to 3 units.
	writeDemandFold(t, dir, 0, math.Log(3))
	writeDemandFold(t, dir, 1, math.Log(5))

	pipeline, err := demand.LoadPipeline(dir, dir)
	require.NoError(t, err)
	return pipeline
}

const storesCSV = `Store,Type,Size
1,A,151315
`

const featuresCSV = `Store,Date,Temperature,Fuel_Price,MarkDown1,MarkDown2,MarkDown3,MarkDown4,MarkDown5,CPI,Unemployment,IsHoliday
1,2012-11-02,55.3,3.4,100,50,NA,25,25,215.5,7.8,FALSE
`

const trainCSV = `Store,Dept,Date,Weekly_Sales,IsHoliday
1,1,2012-10-05,10000,FALSE
1,1,2012-10-12,20000,FALSE
1,1,2012-10-19,30000,FALSE
`

const linearArtifactJSON = `{
	"feature_columns": ["mean"],
	"coef": [1.0],
	"intercept": 500.0
}`

const mlpArtifactJSON = `{
	"feature_columns": ["mean"],
	"layers": [
		{"weights": [[0.5]], "bias": [0], "activation": "identity"}
	]
}`

func newTestPricePipeline(t *testing.T) *price.Pipeline {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"stores.csv":            storesCSV,
		"features.csv":          featuresCSV,
		"train.csv":             trainCSV,
		"linear_regressor.json": linearArtifactJSON,
		"mlp_regressor.json":    mlpArtifactJSON,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	pipeline, err := price.LoadPipeline(dir, dir, "linear")
	require.NoError(t, err)
	return pipeline
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	return New(Deps{
		Demand: newTestDemandPipeline(t),
		Price:  newTestPricePipeline(t),
	})
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRoot(t *testing.T) {
	handler := newTestServer(t)

	rec := doJSON(t, handler, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp rootResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Forecasting APIs", resp.Message)
	assert.Equal(t, "1.0.0", resp.Version)
	assert.Equal(t, "/health", resp.Health)
	assert.Equal(t, "/strategies", resp.Strategies)
}

func TestHealth(t *testing.T) {
	handler := newTestServer(t)

	rec := doJSON(t, handler, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, []string{demandStrategyName}, resp.DemandStrategies)
	assert.Equal(t, []string{"linear", "mlp"}, resp.PriceStrategies)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestStrategies(t *testing.T) {
	handler := newTestServer(t)

	rec := doJSON(t, handler, http.MethodGet, "/strategies", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp strategiesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{demandStrategyName}, resp.Demand.Available)
	assert.Equal(t, demandStrategyName, resp.Demand.Default)
	assert.Equal(t, []string{"linear", "mlp"}, resp.Price.Available)
	assert.Equal(t, "linear", resp.Price.Default)
}

func TestDemandPredict(t *testing.T) {
	handler := newTestServer(t)

	body := map[string]any{
		"record_ID":   42,
		"week":        "16/07/13",
		"store_id":    8091,
		"sku_id":      216418,
		"total_price": 108.30,
		"base_price":  108.30,
	}
	rec := doJSON(t, handler, http.MethodPost, "/api/demand-forecast/predict", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp demandPredictResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, 42, resp.RecordID)
	assert.InDelta(t, 3.0, resp.PredictedUnitsSold, 1e-12)
	assert.Equal(t, demandStrategyName, resp.StrategyUsed)
}

func TestDemandPredictValidation(t *testing.T) {
	handler := newTestServer(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{
			name: "malformed week",
			body: map[string]any{"week": "2013-07-16", "store_id": 8091, "sku_id": 216418, "base_price": 100},
		},
		{
			name: "non-positive base price",
			body: map[string]any{"week": "16/07/13", "store_id": 8091, "sku_id": 216418, "base_price": 0},
		},
		{
			name: "unknown strategy",
			body: map[string]any{"week": "16/07/13", "store_id": 8091, "sku_id": 216418, "base_price": 100, "strategy": "xgboost"},
		},
		{
			name: "bad flag value",
			body: map[string]any{"week": "16/07/13", "store_id": 8091, "sku_id": 216418, "base_price": 100, "is_featured_sku": 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, handler, http.MethodPost, "/api/demand-forecast/predict", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "error", resp.Status)
			assert.NotEmpty(t, resp.Detail)
		})
	}
}

func TestDemandPredictInvalidJSON(t *testing.T) {
	handler := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/demand-forecast/predict", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDemandPredictUnknownStoreFallsBack(t *testing.T) {
	handler := newTestServer(t)

	// Unknown store and SKU keys encode to the global mean; the request
	// still succeeds.
	body := map[string]any{
		"week": "16/07/13", "store_id": 1, "sku_id": 2, "base_price": 100,
	}
	rec := doJSON(t, handler, http.MethodPost, "/api/demand-forecast/predict", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestPricePredict(t *testing.T) {
	handler := newTestServer(t)

	body := map[string]any{"store": 1, "dept": 1, "date": "2012-11-02"}
	rec := doJSON(t, handler, http.MethodPost, "/api/price-forecast/predict", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp pricePredictResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	// mean of the sales history is 20000; the linear artifact adds 500.
	assert.InDelta(t, 20500.0, resp.WeeklySales, 1e-9)
	assert.Equal(t, 1, resp.Store)
	assert.Equal(t, 1, resp.Dept)
	assert.Equal(t, "2012-11-02", resp.Date)
	assert.Equal(t, "linear", resp.StrategyUsed)
}

func TestPricePredictStrategySelection(t *testing.T) {
	handler := newTestServer(t)

	body := map[string]any{"store": 1, "dept": 1, "date": "2012-11-02", "strategy": "mlp"}
	rec := doJSON(t, handler, http.MethodPost, "/api/price-forecast/predict", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp pricePredictResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.InDelta(t, 10000.0, resp.WeeklySales, 1e-9)
	assert.Equal(t, "mlp", resp.StrategyUsed)
}

func TestPricePredictValidation(t *testing.T) {
	handler := newTestServer(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{name: "bad date", body: map[string]any{"store": 1, "dept": 1, "date": "02/11/2012"}},
		{name: "unknown strategy", body: map[string]any{"store": 1, "dept": 1, "date": "2012-11-02", "strategy": "dnn"}},
		{name: "unknown store", body: map[string]any{"store": 9, "dept": 1, "date": "2012-11-02"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, handler, http.MethodPost, "/api/price-forecast/predict", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}
