// Package lightgbm loads LightGBM regression models from the text format
// written by Booster.save_model() and evaluates them on dense feature
// vectors. Only the inference path is implemented; training happens
// elsewhere and the model files are treated as read-only artifacts.
package lightgbm

import (
	"math"

	"github.com/YuminosukeSato/forecast/pkg/errors"
)

// decision_type bit layout, as written by LightGBM.
const (
	categoricalMask = 1 << 0
	defaultLeftMask = 1 << 1
	missingTypeMask = 3 << 2
	missingZero     = 1 << 2
	missingNaN      = 2 << 2
)

// Tree is a single decision tree stored in the column-oriented layout of
// the model file. Child indices are signed: a value >= 0 points at another
// internal node, a negative value v designates leaf ^v.
type Tree struct {
	Index         int
	NumLeaves     int
	ShrinkageRate float64

	SplitFeature []int
	Threshold    []float64
	DecisionType []uint32
	LeftChild    []int
	RightChild   []int
	LeafValue    []float64

	// Categorical split storage. Threshold of a categorical node holds an
	// index into CatBoundaries; the bitset slice between two consecutive
	// boundaries lists the categories routed left.
	CatBoundaries []uint32
	CatThreshold  []uint32
}

// Predict returns the raw leaf value for one sample. Leaf values in the
// model file already include shrinkage, so no extra scaling is applied.
func (t *Tree) Predict(features []float64) float64 {
	if len(t.LeftChild) == 0 {
		// Constant tree with a single leaf.
		if len(t.LeafValue) > 0 {
			return t.LeafValue[0]
		}
		return 0
	}

	idx := 0
	for {
		var next int
		if t.goesLeft(idx, features) {
			next = t.LeftChild[idx]
		} else {
			next = t.RightChild[idx]
		}
		if next < 0 {
			return t.LeafValue[^next]
		}
		idx = next
	}
}

func (t *Tree) goesLeft(idx int, features []float64) bool {
	fval := features[t.SplitFeature[idx]]
	dt := t.DecisionType[idx]

	if dt&categoricalMask != 0 {
		return t.categoricalLeft(idx, fval)
	}

	// Missing-value routing. LightGBM treats NaN as zero unless the split
	// was trained with missing_type=NaN.
	if math.IsNaN(fval) && dt&missingTypeMask != missingNaN {
		fval = 0
	}
	const zeroThreshold = 1e-35
	isZero := fval > -zeroThreshold && fval <= zeroThreshold
	if (dt&missingTypeMask == missingZero && isZero) || (dt&missingTypeMask == missingNaN && math.IsNaN(fval)) {
		return dt&defaultLeftMask != 0
	}

	return fval <= t.Threshold[idx]
}

func (t *Tree) categoricalLeft(idx int, fval float64) bool {
	if math.IsNaN(fval) || fval < 0 {
		return false
	}
	category := int(fval)
	catIdx := int(t.Threshold[idx])
	if catIdx+1 >= len(t.CatBoundaries) {
		return false
	}
	start := t.CatBoundaries[catIdx]
	end := t.CatBoundaries[catIdx+1]
	word := uint32(category / 32)
	if word >= end-start {
		return false
	}
	return t.CatThreshold[start+word]&(1<<(uint32(category)%32)) != 0
}

// Model is a loaded LightGBM booster restricted to single-output
// regression objectives.
type Model struct {
	Objective    string
	NumFeatures  int
	FeatureNames []string
	Trees        []Tree
}

// Predict sums the raw tree outputs for one feature vector. The caller is
// responsible for any target-scale inverse transform (for example expm1
// for a log1p-trained objective).
func (m *Model) Predict(features []float64) (float64, error) {
	if len(features) != m.NumFeatures {
		return 0, errors.NewDimensionError("lightgbm.Predict", m.NumFeatures, len(features))
	}

	var score float64
	for i := range m.Trees {
		score += m.Trees[i].Predict(features)
	}
	if err := errors.CheckScalar("lightgbm.Predict", score); err != nil {
		return 0, err
	}
	return score, nil
}

// NumTrees returns the number of boosting iterations in the model.
func (m *Model) NumTrees() int {
	return len(m.Trees)
}
