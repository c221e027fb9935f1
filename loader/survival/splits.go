package loadersurvival

import (
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
)

type splitRow struct {
	Train string `csv:"train"`
	Val   string `csv:"val"`
	Test  string `csv:"test"`
}

// ReadSplitsCSV reads a table with train, val and test columns of case ids. Blank cells are
// ignored since the columns usually have different lengths.
func ReadSplitsCSV(filename string) (SplitAssignment, error) {
	f, err := os.Open(filename)
	if err != nil {
		return SplitAssignment{}, errors.Wrapf(err, "opening %s", filename)
	}
	defer f.Close()

	rows := make([]*splitRow, 0)
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return SplitAssignment{}, errors.Wrapf(err, "reading %s", filename)
	}

	var assign SplitAssignment
	add := func(dst *[]string, cell string) {
		if !isMissing(cell) {
			*dst = append(*dst, strings.TrimSpace(cell))
		}
	}
	for _, r := range rows {
		add(&assign.Train, r.Train)
		add(&assign.Val, r.Val)
		add(&assign.Test, r.Test)
	}
	return assign, nil
}

// WriteSplitsCSV writes an assignment in the layout read by ReadSplitsCSV, shorter columns
// padded with blank cells
func WriteSplitsCSV(assign SplitAssignment, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), os.ModePerm); err != nil {
		return errors.Wrapf(err, "creating directory for %s", filename)
	}
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "creating %s", filename)
	}
	defer f.Close()

	n := len(assign.Train)
	if len(assign.Val) > n {
		n = len(assign.Val)
	}
	if len(assign.Test) > n {
		n = len(assign.Test)
	}
	cell := func(ids []string, i int) string {
		if i < len(ids) {
			return ids[i]
		}
		return ""
	}
	rows := make([]*splitRow, n)
	for i := range rows {
		rows[i] = &splitRow{Train: cell(assign.Train, i), Val: cell(assign.Val, i), Test: cell(assign.Test, i)}
	}
	return errors.Wrapf(gocsv.MarshalFile(&rows, f), "writing %s", filename)
}

// SplitIndices are positions of patients in a dataset
type SplitIndices struct {
	Train []int
	Val   []int
	Test  []int
}

// SplitOptions configure GenerateSplits
type SplitOptions struct {
	// ValNum and TestNum are the number of validation and test samples drawn per class
	ValNum  []int
	TestNum []int
	NSplits int
	Seed    int64
	// LabelFrac is the fraction of the remaining samples of each class kept for training
	LabelFrac float64
	// CustomTestIDs, when set, form the test split of every fold
	CustomTestIDs []int
}

// GenerateSplits draws class-stratified train/val/test folds from the class indices of a
// dataset with numSamples patients. Folds are drawn one after the other from the same seeded
// source.
func GenerateSplits(classIndices [][]int, numSamples int, opts SplitOptions) ([]SplitIndices, error) {
	if len(opts.ValNum) != len(opts.TestNum) || len(opts.ValNum) > len(classIndices) {
		return nil, errors.Errorf("per-class counts (%d val, %d test) do not match %d classes",
			len(opts.ValNum), len(opts.TestNum), len(classIndices))
	}
	if opts.LabelFrac <= 0 || opts.LabelFrac > 1 {
		return nil, errors.Errorf("label fraction must be in (0, 1], got %v", opts.LabelFrac)
	}

	available := make(map[int]struct{}, numSamples)
	for i := 0; i < numSamples; i++ {
		available[i] = struct{}{}
	}
	for _, id := range opts.CustomTestIDs {
		delete(available, id)
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	folds := make([]SplitIndices, 0, opts.NSplits)
	for fold := 0; fold < opts.NSplits; fold++ {
		var split SplitIndices
		split.Test = append(split.Test, opts.CustomTestIDs...)

		for c := range opts.ValNum {
			remaining := make([]int, 0, len(classIndices[c]))
			for _, id := range classIndices[c] {
				if _, ok := available[id]; ok {
					remaining = append(remaining, id)
				}
			}
			sort.Ints(remaining)

			if opts.ValNum[c] > 0 {
				var val []int
				var err error
				if val, remaining, err = draw(rng, remaining, opts.ValNum[c]); err != nil {
					return nil, errors.Wrapf(err, "validation samples of class %d", c)
				}
				split.Val = append(split.Val, val...)
			}
			if opts.CustomTestIDs == nil && opts.TestNum[c] > 0 {
				var test []int
				var err error
				if test, remaining, err = draw(rng, remaining, opts.TestNum[c]); err != nil {
					return nil, errors.Wrapf(err, "test samples of class %d", c)
				}
				split.Test = append(split.Test, test...)
			}

			if opts.LabelFrac == 1 {
				split.Train = append(split.Train, remaining...)
			} else {
				n := int(math.Ceil(float64(len(remaining)) * opts.LabelFrac))
				split.Train = append(split.Train, remaining[:n]...)
			}
		}

		sort.Ints(split.Train)
		sort.Ints(split.Val)
		sort.Ints(split.Test)
		folds = append(folds, split)
	}
	return folds, nil
}

// draw picks k of the sorted ids without replacement and returns them with the sorted rest
func draw(rng *rand.Rand, ids []int, k int) (picked, rest []int, err error) {
	if k > len(ids) {
		return nil, nil, errors.Errorf("cannot draw %d samples out of %d", k, len(ids))
	}
	perm := rng.Perm(len(ids))
	chosen := make(map[int]struct{}, k)
	for _, p := range perm[:k] {
		picked = append(picked, ids[p])
		chosen[p] = struct{}{}
	}
	for i, id := range ids {
		if _, ok := chosen[i]; !ok {
			rest = append(rest, id)
		}
	}
	return picked, rest, nil
}

// BalancedWeights returns, for every patient of the split, the sampling weight N / n_c where
// n_c is the size of its class.
func BalancedWeights(s *Split) []float64 {
	n := float64(s.Len())
	classes := s.ClassIndices()
	weights := make([]float64, s.Len())
	for i := range weights {
		weights[i] = n / float64(len(classes[s.Label(i)]))
	}
	return weights
}

// SplitFromIndices converts positions of dataset patients into a case id assignment
func (d *Dataset) SplitFromIndices(idx SplitIndices) SplitAssignment {
	ids := func(pos []int) []string {
		out := make([]string, 0, len(pos))
		for _, p := range pos {
			if p >= 0 && p < len(d.patients) {
				out = append(out, d.patients[p].PK.CaseID)
			}
		}
		return out
	}
	return SplitAssignment{Train: ids(idx.Train), Val: ids(idx.Val), Test: ids(idx.Test)}
}
