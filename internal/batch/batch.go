// Package batch scores demand-forecasting CSV files offline. It reads
// the same columns the HTTP API accepts and writes one prediction row
// per input record, preserving input order.
package batch

import (
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/YuminosukeSato/forecast/internal/demand"
	"github.com/YuminosukeSato/forecast/pkg/errors"
)

var inputColumns = []string{
	"record_ID", "week", "store_id", "sku_id",
	"total_price", "base_price", "is_featured_sku", "is_display_sku",
}

// ScoreFile reads the input CSV, scores every row through the pipeline
// and writes record_ID,units_sold rows to the output path.
func ScoreFile(pipeline *demand.Pipeline, inputPath, outputPath string) error {
	in, err := os.Open(inputPath)
	if err != nil {
		return errors.NewArtifactError("batch input", inputPath, err)
	}
	defer in.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		return errors.NewArtifactError("batch output", outputPath, err)
	}
	defer out.Close()

	if err := Score(pipeline, in, out); err != nil {
		return err
	}
	return out.Close()
}

// Score reads records from r, scores them and writes predictions to w.
func Score(pipeline *demand.Pipeline, r io.Reader, w io.Writer) error {
	records, err := ReadRecords(r)
	if err != nil {
		return err
	}

	predictions, err := pipeline.PredictBatch(records)
	if err != nil {
		return err
	}
	slog.Info("batch scoring finished", slog.Int("records", len(records)))

	return WritePredictions(w, predictions)
}

// ReadRecords parses the demand input CSV. The header row is required
// and columns may appear in any order; total_price may be empty.
func ReadRecords(r io.Reader) ([]demand.Record, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(err, "read csv header")
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	for _, name := range inputColumns {
		if name == "total_price" {
			continue // optional column
		}
		if _, ok := index[name]; !ok {
			return nil, errors.NewDataError("read csv header", "missing column "+name)
		}
	}

	var records []demand.Record
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read csv line %d", line)
		}
		record, err := parseRow(index, row)
		if err != nil {
			return nil, errors.Wrapf(err, "csv line %d", line)
		}
		records = append(records, record)
	}
	return records, nil
}

func parseRow(index map[string]int, row []string) (demand.Record, error) {
	var record demand.Record
	var err error

	if record.RecordID, err = intCell(index, row, "record_ID"); err != nil {
		return record, err
	}
	record.Week = row[index["week"]]
	if record.StoreID, err = intCell(index, row, "store_id"); err != nil {
		return record, err
	}
	if record.SKUID, err = intCell(index, row, "sku_id"); err != nil {
		return record, err
	}
	if record.BasePrice, err = floatCell(index, row, "base_price"); err != nil {
		return record, err
	}
	if col, ok := index["total_price"]; ok && row[col] != "" {
		v, err := strconv.ParseFloat(row[col], 64)
		if err != nil {
			return record, errors.NewDataError("parse total_price", err.Error())
		}
		record.TotalPrice = &v
	}
	if record.IsFeaturedSKU, err = intCell(index, row, "is_featured_sku"); err != nil {
		return record, err
	}
	if record.IsDisplaySKU, err = intCell(index, row, "is_display_sku"); err != nil {
		return record, err
	}
	return record, nil
}

func intCell(index map[string]int, row []string, name string) (int, error) {
	v, err := strconv.Atoi(row[index[name]])
	if err != nil {
		return 0, errors.NewDataError("parse "+name, err.Error())
	}
	return v, nil
}

func floatCell(index map[string]int, row []string, name string) (float64, error) {
	v, err := strconv.ParseFloat(row[index[name]], 64)
	if err != nil {
		return 0, errors.NewDataError("parse "+name, err.Error())
	}
	return v, nil
}

// WritePredictions writes the record_ID,units_sold output CSV.
func WritePredictions(w io.Writer, predictions []demand.Prediction) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"record_ID", "units_sold"}); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	for _, p := range predictions {
		row := []string{
			strconv.Itoa(p.RecordID),
			strconv.FormatFloat(p.UnitsSold, 'f', -1, 64),
		}
		if err := writer.Write(row); err != nil {
			return errors.Wrap(err, "write csv row")
		}
	}
	writer.Flush()
	return errors.Wrap(writer.Error(), "flush csv")
}
