package survloss

import (
	"math"

	"github.com/pkg/errors"
)

// CoxSurvLoss is the negative Cox partial log-likelihood of per-sample risk scores
type CoxSurvLoss struct{}

// Loss reads one risk score per sample from the first column of Hazards
func (CoxSurvLoss) Loss(b Batch) (float64, error) {
	risk := make([]float64, len(b.Hazards))
	for i, h := range b.Hazards {
		if len(h) != 1 {
			return 0, errors.Wrapf(ErrShape, "sample %d: cox loss takes one risk score, got %d", i, len(h))
		}
		risk[i] = h[0]
	}
	return CoxLoss(risk, b.Times, b.Censorship)
}

// RiskSet returns R with R[i][j] = 1 when sample j is still at risk at the time of sample i,
// that is times[j] >= times[i].
func RiskSet(times []float64) [][]float64 {
	n := len(times)
	r := make([][]float64, n)
	for i := range r {
		r[i] = make([]float64, n)
		for j := range r[i] {
			if times[j] >= times[i] {
				r[i][j] = 1
			}
		}
	}
	return r
}

// CoxLoss is -1/N * sum_i (1 - c_i) * (risk_i - log sum_j R[i][j] exp(risk_j)).
// Censored samples add nothing to the sum but stay in the risk sets of the others.
func CoxLoss(risk, times, censorship []float64) (float64, error) {
	n := len(risk)
	if n == 0 {
		return 0, errors.Wrap(ErrShape, "empty batch")
	}
	if len(times) != n || len(censorship) != n {
		return 0, errors.Wrapf(ErrShape, "%d risk scores, %d times, %d censorship", n, len(times), len(censorship))
	}

	r := RiskSet(times)
	sum := 0.0
	for i := 0; i < n; i++ {
		// log-sum-exp over the risk set, shifted by its largest score
		shift := math.Inf(-1)
		for j := 0; j < n; j++ {
			if r[i][j] == 1 {
				shift = math.Max(shift, risk[j])
			}
		}
		acc := 0.0
		for j := 0; j < n; j++ {
			acc += r[i][j] * math.Exp(risk[j]-shift)
		}
		sum += (risk[i] - (shift + math.Log(acc))) * (1 - censorship[i])
	}
	return -sum / float64(n), nil
}
