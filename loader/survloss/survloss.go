// Package survloss implements the censored survival losses trained against discretized
// survival labels: the discrete negative log-likelihood, the discrete cross-entropy and the Cox
// partial likelihood. Every loss is a pure function of its inputs.
package survloss

import (
	"math"

	"github.com/pkg/errors"
)

// DefaultAlpha weights the uncensored term of NLLSurvLoss and CrossEntropySurvLoss
const DefaultAlpha = 0.15

// DefaultEps floors every probability before taking its logarithm
const DefaultEps = 1e-7

var (
	// ErrShape is returned when the batch tensors disagree on their sizes
	ErrShape = errors.New("inconsistent batch shapes")
	// ErrLabelRange is returned when a discrete label is not a valid bin
	ErrLabelRange = errors.New("discrete label out of range")
)

// Batch holds the per-sample inputs of a loss. Hazards is N x K for the discrete losses and
// N x 1 (one risk score per sample) for the Cox loss.
type Batch struct {
	Hazards [][]float64
	// Survival is optional, it is derived from Hazards when nil
	Survival [][]float64
	// Labels are the discrete bins in [0, K)
	Labels []int
	// Censorship is 1 for censored samples, 0 for observed events
	Censorship []float64
	// Times are the survival times, only used by the Cox loss
	Times []float64
}

// Loss is implemented by the three survival losses
type Loss interface {
	// Loss returns the batch mean loss
	Loss(b Batch) (float64, error)
}

// SurvivalFromHazards returns the cumulative product of (1 - hazard) along every row
func SurvivalFromHazards(hazards [][]float64) [][]float64 {
	s := make([][]float64, len(hazards))
	for i, h := range hazards {
		s[i] = make([]float64, len(h))
		acc := 1.0
		for k, v := range h {
			acc *= 1 - v
			s[i][k] = acc
		}
	}
	return s
}

// discreteInputs validates a batch for the discrete losses and returns its survival matrix
func discreteInputs(b Batch) ([][]float64, error) {
	n := len(b.Labels)
	if n == 0 {
		return nil, errors.Wrap(ErrShape, "empty batch")
	}
	if len(b.Hazards) != n || len(b.Censorship) != n {
		return nil, errors.Wrapf(ErrShape, "%d hazards, %d labels, %d censorship", len(b.Hazards), n, len(b.Censorship))
	}
	survival := b.Survival
	if survival == nil {
		survival = SurvivalFromHazards(b.Hazards)
	}
	if len(survival) != n {
		return nil, errors.Wrapf(ErrShape, "%d survival rows for %d samples", len(survival), n)
	}
	for i := range b.Hazards {
		k := len(b.Hazards[i])
		if len(survival[i]) != k {
			return nil, errors.Wrapf(ErrShape, "sample %d: %d hazards, %d survival", i, k, len(survival[i]))
		}
		if b.Labels[i] < 0 || b.Labels[i] >= k {
			return nil, errors.Wrapf(ErrLabelRange, "sample %d: label %d with %d bins", i, b.Labels[i], k)
		}
	}
	return survival, nil
}

// paddedSurvival is the survival probability with S(-1) = 1 prepended: index y is the
// probability of being alive at the start of bin y.
func paddedSurvival(s []float64, y int) float64 {
	if y == 0 {
		return 1
	}
	return s[y-1]
}

func logFloor(v, eps float64) float64 {
	return math.Log(math.Max(v, eps))
}

func mean(v []float64) float64 {
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}
