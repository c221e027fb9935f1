package loadersurvival

import (
	"math"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"go.dedis.ch/onet/v3/log"
)

// ColumnStats are the training statistics of one covariate
type ColumnStats struct {
	Median float64
	Mean   float64
	// Std is never 0: constant training columns get 1
	Std float64
}

// Stats is the read-only feature-statistics table, fit once on the training split
type Stats struct {
	columns []string
	byName  map[string]ColumnStats
}

// NewStats builds a statistics table from persisted values. Zero standard deviations are
// replaced by 1 as in FitStats.
func NewStats(columns []string, values []ColumnStats) (*Stats, error) {
	if len(columns) != len(values) {
		return nil, errors.Errorf("%d columns but %d statistics", len(columns), len(values))
	}
	s := &Stats{columns: append([]string(nil), columns...), byName: make(map[string]ColumnStats, len(columns))}
	for i, c := range columns {
		v := values[i]
		if v.Std == 0 {
			v.Std = 1
		}
		s.byName[c] = v
	}
	return s, nil
}

// FitStats computes median, mean and sample standard deviation of every covariate over the
// observed (non-missing) values of the patients.
func FitStats(covariates []string, patients []Patient) (*Stats, error) {
	if len(patients) == 0 {
		return nil, ErrEmptySplit
	}
	s := &Stats{columns: append([]string(nil), covariates...), byName: make(map[string]ColumnStats, len(covariates))}
	observed := make([]float64, 0, len(patients))
	for j, col := range covariates {
		observed = observed[:0]
		for _, p := range patients {
			if v := p.Covariates[j]; !math.IsNaN(v) {
				observed = append(observed, v)
			}
		}
		if len(observed) == 0 {
			return nil, errors.Wrap(ErrEmptyColumn, col)
		}

		var cs ColumnStats
		var err error
		if cs.Median, err = stats.Median(observed); err != nil {
			return nil, errors.Wrapf(err, "median of %s", col)
		}
		if cs.Mean, err = stats.Mean(observed); err != nil {
			return nil, errors.Wrapf(err, "mean of %s", col)
		}
		if len(observed) > 1 {
			if cs.Std, err = stats.StdDevS(observed); err != nil {
				return nil, errors.Wrapf(err, "std of %s", col)
			}
		}
		if cs.Std == 0 {
			cs.Std = 1
		}
		s.byName[col] = cs
	}
	return s, nil
}

// Columns returns the covariates covered by the table
func (s *Stats) Columns() []string {
	return append([]string(nil), s.columns...)
}

// Get returns the statistics of a covariate
func (s *Stats) Get(col string) (ColumnStats, bool) {
	cs, ok := s.byName[col]
	return cs, ok
}

// Apply fills missing covariates with the training median and standardizes them with the
// training mean and std. The patients are copied, never modified.
func (s *Stats) Apply(covariates []string, patients []Patient) ([]Patient, error) {
	colStats := make([]ColumnStats, len(covariates))
	for j, col := range covariates {
		cs, ok := s.byName[col]
		if !ok {
			return nil, errors.Wrap(ErrUnknownCovariate, col)
		}
		colStats[j] = cs
	}

	out := make([]Patient, len(patients))
	before, after := newRange(), newRange()
	filled := 0
	for i, p := range patients {
		np := p
		np.Covariates = make([]float64, len(covariates))
		for j, cs := range colStats {
			v := p.Covariates[j]
			if math.IsNaN(v) {
				v = cs.Median
				filled++
			}
			before.add(v)
			v = (v - cs.Mean) / cs.Std
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errors.Wrapf(ErrResidualMissing, "case %s covariate %s", p.PK.CaseID, covariates[j])
			}
			after.add(v)
			np.Covariates[j] = v
		}
		out[i] = np
	}

	if len(covariates) > 0 {
		log.Lvl2("Filled", filled, "missing values with train medians")
		log.Lvlf2("Z-score normalization with train mean and std: before %.2f - %.2f, after %.2f - %.2f",
			before.min, before.max, after.min, after.max)
	}
	return out, nil
}

type valueRange struct {
	min, max float64
}

func newRange() *valueRange {
	return &valueRange{min: math.Inf(1), max: math.Inf(-1)}
}

func (r *valueRange) add(v float64) {
	r.min = math.Min(r.min, v)
	r.max = math.Max(r.max, v)
}
