package lightgbm

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/forecast/pkg/errors"
)

// Load reads a LightGBM model from a text file saved by save_model().
func Load(path string) (*Model, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.NewArtifactError("model", path, err)
	}
	defer file.Close()

	model, err := LoadFromReader(file)
	if err != nil {
		return nil, errors.NewArtifactError("model", path, err)
	}
	return model, nil
}

// LoadFromReader parses the LightGBM text model format: a block of global
// key=value parameters, then one block per tree, each terminated by a
// blank line.
func LoadFromReader(r io.Reader) (*Model, error) {
	reader := bufio.NewReader(r)

	header, err := readBlock(reader)
	if err != nil {
		return nil, err
	}

	model := &Model{}

	if v, ok := header["objective"]; ok {
		// The objective line may carry extra options, e.g. "regression l2".
		model.Objective = strings.Fields(v)[0]
	}
	switch model.Objective {
	case "regression", "regression_l1", "regression_l2", "huber", "fair", "poisson", "quantile", "mape", "gamma", "tweedie":
	case "":
		return nil, errors.New("model file has no objective")
	default:
		return nil, errors.Newf("unsupported objective %q: only regression models are served", model.Objective)
	}

	if v, ok := header["num_class"]; ok {
		if numClass, err := strconv.Atoi(v); err == nil && numClass > 1 {
			return nil, errors.Newf("multiclass model (num_class=%d) is not supported", numClass)
		}
	}

	if v, ok := header["max_feature_idx"]; ok {
		maxFeature, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.Wrap(err, "invalid max_feature_idx")
		}
		model.NumFeatures = maxFeature + 1
	}
	if model.NumFeatures == 0 {
		return nil, errors.New("model file has no max_feature_idx")
	}

	if v, ok := header["feature_names"]; ok {
		model.FeatureNames = strings.Fields(v)
	}

	treeSizes, ok := header["tree_sizes"]
	if !ok {
		return nil, errors.New("model file has no tree_sizes")
	}
	numTrees := len(strings.Fields(treeSizes))

	for i := 0; i < numTrees; i++ {
		block, err := readBlock(reader)
		if err != nil {
			return nil, errors.Wrapf(err, "reading tree %d", i)
		}
		tree, err := parseTree(block, i)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing tree %d", i)
		}
		model.Trees = append(model.Trees, tree)
	}

	return model, nil
}

// block is one key=value section of the model file.
type block map[string]string

func (b block) int(key string) (int, error) {
	v, ok := b[key]
	if !ok {
		return 0, errors.Newf("missing field %q", key)
	}
	return strconv.Atoi(v)
}

func (b block) floats(key string) ([]float64, error) {
	v, ok := b[key]
	if !ok {
		return nil, errors.Newf("missing field %q", key)
	}
	fields := strings.Fields(v)
	out := make([]float64, len(fields))
	for i, f := range fields {
		val, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "field %q entry %d", key, i)
		}
		out[i] = val
	}
	return out, nil
}

func (b block) ints(key string) ([]int, error) {
	v, ok := b[key]
	if !ok {
		return nil, errors.Newf("missing field %q", key)
	}
	fields := strings.Fields(v)
	out := make([]int, len(fields))
	for i, f := range fields {
		val, err := strconv.Atoi(f)
		if err != nil {
			return nil, errors.Wrapf(err, "field %q entry %d", key, i)
		}
		out[i] = val
	}
	return out, nil
}

func (b block) uints(key string) ([]uint32, error) {
	v, ok := b[key]
	if !ok {
		return nil, errors.Newf("missing field %q", key)
	}
	fields := strings.Fields(v)
	out := make([]uint32, len(fields))
	for i, f := range fields {
		val, err := strconv.ParseUint(f, 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "field %q entry %d", key, i)
		}
		out[i] = uint32(val)
	}
	return out, nil
}

// readBlock reads key=value lines until a blank line or EOF. Tree=N marker
// lines separate blocks but carry no payload of their own.
func readBlock(reader *bufio.Reader) (block, error) {
	b := make(block)
	for {
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, "Tree="):
			// Section marker only.
		case trimmed == "":
			if len(b) > 0 {
				return b, nil
			}
			if err == io.EOF {
				return nil, io.ErrUnexpectedEOF
			}
		default:
			if key, value, found := strings.Cut(trimmed, "="); found {
				b[key] = value
			}
		}

		if err == io.EOF {
			if len(b) > 0 {
				return b, nil
			}
			return nil, io.ErrUnexpectedEOF
		}
	}
}

func parseTree(b block, index int) (Tree, error) {
	tree := Tree{Index: index}

	numLeaves, err := b.int("num_leaves")
	if err != nil {
		return tree, err
	}
	if numLeaves < 1 {
		return tree, errors.Newf("num_leaves=%d, want >= 1", numLeaves)
	}
	tree.NumLeaves = numLeaves

	if v, ok := b["shrinkage"]; ok {
		tree.ShrinkageRate, _ = strconv.ParseFloat(v, 64)
	}

	if tree.LeafValue, err = b.floats("leaf_value"); err != nil {
		return tree, err
	}
	if len(tree.LeafValue) != numLeaves {
		return tree, errors.Newf("leaf_value has %d entries, want %d", len(tree.LeafValue), numLeaves)
	}

	// A single-leaf tree is a constant; it has no split arrays.
	if numLeaves == 1 {
		return tree, nil
	}

	numNodes := numLeaves - 1
	if tree.SplitFeature, err = b.ints("split_feature"); err != nil {
		return tree, err
	}
	if tree.Threshold, err = b.floats("threshold"); err != nil {
		return tree, err
	}
	if tree.DecisionType, err = b.uints("decision_type"); err != nil {
		return tree, err
	}
	if tree.LeftChild, err = b.ints("left_child"); err != nil {
		return tree, err
	}
	if tree.RightChild, err = b.ints("right_child"); err != nil {
		return tree, err
	}

	for _, arr := range [][]int{tree.SplitFeature, tree.LeftChild, tree.RightChild} {
		if len(arr) != numNodes {
			return tree, errors.Newf("split arrays have inconsistent lengths (want %d nodes)", numNodes)
		}
	}
	if len(tree.Threshold) != numNodes || len(tree.DecisionType) != numNodes {
		return tree, errors.Newf("split arrays have inconsistent lengths (want %d nodes)", numNodes)
	}

	// Categorical splits are optional; most folds of a price/demand model
	// use purely numerical splits on the encoded features.
	hasCategorical := false
	for _, dt := range tree.DecisionType {
		if dt&categoricalMask != 0 {
			hasCategorical = true
			break
		}
	}
	if hasCategorical {
		if tree.CatBoundaries, err = b.uints("cat_boundaries"); err != nil {
			return tree, err
		}
		if tree.CatThreshold, err = b.uints("cat_threshold"); err != nil {
			return tree, err
		}
	}

	return tree, nil
}
