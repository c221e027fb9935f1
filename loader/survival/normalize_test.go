package loadersurvival

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func patientsOf(columns ...[]float64) []Patient {
	patients := make([]Patient, len(columns[0]))
	for i := range patients {
		patients[i] = Patient{PK: &PatientPK{CaseID: string(rune('a' + i))}}
		for _, col := range columns {
			patients[i].Covariates = append(patients[i].Covariates, col[i])
		}
	}
	return patients
}

func TestFitStatsSkipsMissing(t *testing.T) {
	patients := patientsOf([]float64{1, 2, 3, math.NaN(), 5})
	stats, err := FitStats([]string{"x_rna"}, patients)
	require.NoError(t, err)

	cs, ok := stats.Get("x_rna")
	require.True(t, ok)
	assert.InDelta(t, 2.5, cs.Median, 1e-12)
	assert.InDelta(t, 2.75, cs.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(8.75/3), cs.Std, 1e-12)

	out, err := stats.Apply([]string{"x_rna"}, patients)
	require.NoError(t, err)
	assert.InDelta(t, (2.5-2.75)/cs.Std, out[3].Covariates[0], 1e-12)
	for _, p := range out {
		assert.False(t, math.IsNaN(p.Covariates[0]))
	}
	// input left as is
	assert.True(t, math.IsNaN(patients[3].Covariates[0]))
}

func TestFitStatsConstantColumn(t *testing.T) {
	patients := patientsOf([]float64{4, 4, 4}, []float64{7, math.NaN(), math.NaN()})
	stats, err := FitStats([]string{"c_cli", "s_cli"}, patients)
	require.NoError(t, err)

	for _, col := range []string{"c_cli", "s_cli"} {
		cs, _ := stats.Get(col)
		assert.Equal(t, 1.0, cs.Std)
	}

	out, err := stats.Apply([]string{"c_cli", "s_cli"}, patients)
	require.NoError(t, err)
	for _, p := range out {
		assert.Equal(t, []float64{0, 0}, p.Covariates)
	}
}

func TestFitStatsErrors(t *testing.T) {
	_, err := FitStats([]string{"x_rna"}, nil)
	assert.Equal(t, ErrEmptySplit, errors.Cause(err))

	_, err = FitStats([]string{"x_rna"}, patientsOf([]float64{math.NaN(), math.NaN()}))
	assert.Equal(t, ErrEmptyColumn, errors.Cause(err))
}

func TestApplyUsesTrainingStatsOnly(t *testing.T) {
	train := patientsOf([]float64{1, 2, 3})
	stats, err := FitStats([]string{"x_rna"}, train)
	require.NoError(t, err)

	other := patientsOf([]float64{100, math.NaN()})
	out, err := stats.Apply([]string{"x_rna"}, other)
	require.NoError(t, err)
	assert.InDelta(t, 98, out[0].Covariates[0], 1e-12)
	assert.InDelta(t, 0, out[1].Covariates[0], 1e-12)

	cs, _ := stats.Get("x_rna")
	assert.Equal(t, ColumnStats{Median: 2, Mean: 2, Std: 1}, cs)
}

func TestApplyErrors(t *testing.T) {
	stats, err := NewStats([]string{"x_rna"}, []ColumnStats{{Median: math.NaN(), Mean: 1, Std: 2}})
	require.NoError(t, err)

	_, err = stats.Apply([]string{"y_rna"}, patientsOf([]float64{1}))
	assert.Equal(t, ErrUnknownCovariate, errors.Cause(err))

	// without a median, missing values survive normalization
	_, err = stats.Apply([]string{"x_rna"}, patientsOf([]float64{math.NaN()}))
	assert.Equal(t, ErrResidualMissing, errors.Cause(err))

	out, err := stats.Apply([]string{"x_rna"}, patientsOf([]float64{5}))
	require.NoError(t, err)
	assert.Equal(t, 2.0, out[0].Covariates[0])
}

func TestStatsCSVRoundTrip(t *testing.T) {
	patients := patientsOf([]float64{1, 2, 3, math.NaN(), 5}, []float64{3, 3, 3, 3, 3})
	covariates := []string{"x_rna", "y_cnv"}
	fitted, err := FitStats(covariates, patients)
	require.NoError(t, err)

	filename := filepath.Join(t.TempDir(), "stats", "train_stats.csv")
	require.NoError(t, WriteStatsCSV(fitted, filename))
	loaded, err := ReadStatsCSV(filename)
	require.NoError(t, err)
	assert.Equal(t, covariates, loaded.Columns())

	want, err := fitted.Apply(covariates, patients)
	require.NoError(t, err)
	got, err := loaded.Apply(covariates, patients)
	require.NoError(t, err)
	for i := range want {
		assert.InDeltaSlice(t, want[i].Covariates, got[i].Covariates, 1e-12)
	}
}

func TestTimeBreaksCSVRoundTrip(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "converted", "time_breaks.csv")
	breaks := TimeBreaks{0, 2.75, 4.5, 6.25, 9}
	require.NoError(t, WriteTimeBreaksCSV(breaks, filename))

	got, err := ReadTimeBreaksCSV(filename)
	require.NoError(t, err)
	assert.Equal(t, breaks, got)

	require.NoError(t, WriteTimeBreaksCSV(TimeBreaks{0}, filename))
	_, err = ReadTimeBreaksCSV(filename)
	assert.Equal(t, ErrInvalidBinCount, errors.Cause(err))
}

func TestNewStatsFromLines(t *testing.T) {
	stats, err := NewStatsFromLines([][]string{
		{"", "mean", "std"},
		{"x_rna", "1.5", "0"},
	})
	require.NoError(t, err)
	cs, ok := stats.Get("x_rna")
	require.True(t, ok)
	assert.True(t, math.IsNaN(cs.Median))
	assert.Equal(t, 1.0, cs.Std)

	_, err = NewStatsFromLines([][]string{{"", "median", "std"}, {"x_rna", "1", "1"}})
	assert.Equal(t, ErrMissingStatsColumn, errors.Cause(err))

	_, err = NewStatsFromLines([][]string{{"", "median", "mean"}, {"x_rna", "1", "1"}})
	assert.Equal(t, ErrMissingStatsColumn, errors.Cause(err))

	_, err = NewStatsFromLines([][]string{{"", "mean", "std"}, {"x_rna", "one", "1"}})
	assert.Error(t, err)
}
