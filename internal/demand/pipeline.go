package demand

import (
	"path/filepath"
	"sync"

	"github.com/YuminosukeSato/forecast/pkg/errors"
)

// Pipeline is the full demand-forecasting inference path: validate,
// transform, score. It holds only read-only state after construction, so
// one Pipeline serves concurrent requests.
type Pipeline struct {
	transformer *Transformer
	ensemble    *Ensemble
}

// LoadPipeline loads every artifact the pipeline needs: the model config,
// the encoder tables, and all fold models. Any failure is fatal to
// startup.
func LoadPipeline(modelDir, encoderDir string) (*Pipeline, error) {
	cfg, err := LoadConfig(filepath.Join(modelDir, "config.json"))
	if err != nil {
		return nil, err
	}
	encoders, err := LoadEncoders(filepath.Join(encoderDir, "encoders.json"))
	if err != nil {
		return nil, err
	}
	ensemble, err := LoadEnsemble(modelDir, cfg.NumFolds)
	if err != nil {
		return nil, err
	}
	return NewPipeline(NewTransformer(cfg, encoders), ensemble), nil
}

// NewPipeline assembles a pipeline from already-loaded parts. Tests use
// this to inject small fixtures.
func NewPipeline(transformer *Transformer, ensemble *Ensemble) *Pipeline {
	return &Pipeline{transformer: transformer, ensemble: ensemble}
}

// Predict scores one record. The returned prediction carries the record ID
// through unchanged.
func (p *Pipeline) Predict(r *Record) (Prediction, error) {
	if err := r.Validate(); err != nil {
		return Prediction{}, err
	}
	vector, err := p.transformer.BuildVector(r)
	if err != nil {
		return Prediction{}, err
	}
	unitsSold, err := p.ensemble.Predict(vector)
	if err != nil {
		return Prediction{}, err
	}
	return Prediction{RecordID: r.RecordID, UnitsSold: unitsSold}, nil
}

// PredictBatch scores records, preserving input order in the output. A
// validation or computation error on any record fails the batch,
// identifying the lowest offending row index. Large batches are scored
// concurrently; the pipeline holds no mutable state after loading, so
// every record is independent.
func (p *Pipeline) PredictBatch(records []Record) ([]Prediction, error) {
	if len(records) < parallelBatchThreshold {
		predictions := make([]Prediction, 0, len(records))
		for i := range records {
			pred, err := p.Predict(&records[i])
			if err != nil {
				return nil, errors.Wrapf(err, "record %d", i)
			}
			predictions = append(predictions, pred)
		}
		return predictions, nil
	}

	predictions := make([]Prediction, len(records))
	firstErr := struct {
		sync.Mutex
		index int
		err   error
	}{index: len(records)}

	parallelize(len(records), func(start, end int) {
		for i := start; i < end; i++ {
			pred, err := p.Predict(&records[i])
			if err != nil {
				firstErr.Lock()
				if i < firstErr.index {
					firstErr.index = i
					firstErr.err = err
				}
				firstErr.Unlock()
				return
			}
			predictions[i] = pred
		}
	})

	if firstErr.err != nil {
		return nil, errors.Wrapf(firstErr.err, "record %d", firstErr.index)
	}
	return predictions, nil
}
