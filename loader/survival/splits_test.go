package loadersurvival

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSplitsCSV(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "splits_0.csv")
	require.NoError(t, ioutil.WriteFile(filename, []byte(",train,val,test\n0,A,D,\n1,B,,\n2,C,,\n"), 0644))

	assign, err := ReadSplitsCSV(filename)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, assign.Train)
	assert.Equal(t, []string{"D"}, assign.Val)
	assert.Empty(t, assign.Test)

	_, err = ReadSplitsCSV(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestWriteSplitsCSV(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "splits", "splits_1.csv")
	assign := SplitAssignment{Train: []string{"A", "B", "C"}, Val: []string{"D"}}
	require.NoError(t, WriteSplitsCSV(assign, filename))

	got, err := ReadSplitsCSV(filename)
	require.NoError(t, err)
	assert.Equal(t, assign.Train, got.Train)
	assert.Equal(t, assign.Val, got.Val)
	assert.Empty(t, got.Test)
}

func TestGenerateSplits(t *testing.T) {
	classIndices := [][]int{{0, 2, 4, 6, 8}, {1, 3, 5, 7, 9}}
	opts := SplitOptions{ValNum: []int{1, 1}, TestNum: []int{1, 2}, NSplits: 3, Seed: 7, LabelFrac: 1}

	folds, err := GenerateSplits(classIndices, 10, opts)
	require.NoError(t, err)
	require.Len(t, folds, 3)

	for _, f := range folds {
		assert.Len(t, f.Val, 2)
		assert.Len(t, f.Test, 3)
		assert.Len(t, f.Train, 5)

		seen := make(map[int]bool)
		for _, part := range [][]int{f.Train, f.Val, f.Test} {
			for _, id := range part {
				assert.False(t, seen[id], "index %d in two parts", id)
				seen[id] = true
			}
		}
		assert.Len(t, seen, 10)
	}

	again, err := GenerateSplits(classIndices, 10, opts)
	require.NoError(t, err)
	assert.Equal(t, folds, again)
}

func TestGenerateSplitsOptions(t *testing.T) {
	classIndices := [][]int{{0, 1, 2, 3}, {4, 5}}

	folds, err := GenerateSplits(classIndices, 6, SplitOptions{
		ValNum: []int{1, 0}, TestNum: []int{0, 0}, NSplits: 1, LabelFrac: 0.5, CustomTestIDs: []int{5},
	})
	require.NoError(t, err)
	f := folds[0]
	assert.Equal(t, []int{5}, f.Test)
	assert.Len(t, f.Val, 1)
	// ceil(3 * 0.5) of class 0 and the whole remaining class 1
	assert.Len(t, f.Train, 3)
	assert.NotContains(t, f.Train, 5)

	_, err = GenerateSplits(classIndices, 6, SplitOptions{ValNum: []int{5, 0}, TestNum: []int{0, 0}, NSplits: 1, LabelFrac: 1})
	assert.Error(t, err)

	_, err = GenerateSplits(classIndices, 6, SplitOptions{ValNum: []int{1}, TestNum: []int{1, 1}, NSplits: 1, LabelFrac: 1})
	assert.Error(t, err)

	_, err = GenerateSplits(classIndices, 6, SplitOptions{ValNum: []int{1, 1}, TestNum: []int{1, 1}, NSplits: 1})
	assert.Error(t, err)
}

func TestSplitFromIndices(t *testing.T) {
	d := testDataset(t, DatasetOptions{})
	assign := d.SplitFromIndices(SplitIndices{Train: []int{0, 2}, Val: []int{1}, Test: []int{3, 9}})
	assert.Equal(t, SplitAssignment{Train: []string{"A", "C"}, Val: []string{"B"}, Test: []string{"D"}}, assign)
}

func TestBalancedWeights(t *testing.T) {
	d := testDataset(t, DatasetOptions{ReferenceDurations: []float64{0, 5, 10}})
	s := d.Split([]string{"A", "C", "D"})
	// labels 0, 2, 3 in a split of 3
	assert.Equal(t, []float64{3, 3, 3}, BalancedWeights(s))

	d = testDataset(t, DatasetOptions{ReferenceDurations: []float64{0, 100}})
	// every case falls in bin 0, labels 0, 1, 0, 1
	assert.Equal(t, []float64{2, 2, 2, 2}, BalancedWeights(d.All()))
}
