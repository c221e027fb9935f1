package survloss

import "math"

// NLLSurvLoss is the discrete-time negative log-likelihood
type NLLSurvLoss struct {
	Alpha float64
	Eps   float64
}

// NewNLLSurvLoss returns the loss with DefaultAlpha and DefaultEps
func NewNLLSurvLoss() NLLSurvLoss {
	return NLLSurvLoss{Alpha: DefaultAlpha, Eps: DefaultEps}
}

// Loss uses the configured alpha
func (l NLLSurvLoss) Loss(b Batch) (float64, error) {
	return l.LossAlpha(b, l.Alpha)
}

// LossAlpha overrides alpha for one call
func (l NLLSurvLoss) LossAlpha(b Batch, alpha float64) (float64, error) {
	survival, err := discreteInputs(b)
	if err != nil {
		return 0, err
	}
	eps := l.Eps
	losses := make([]float64, len(b.Labels))
	for i, y := range b.Labels {
		c := b.Censorship[i]
		uncensored := -(1 - c) * (logFloor(paddedSurvival(survival[i], y), eps) + logFloor(b.Hazards[i][y], eps))
		censored := -c * logFloor(paddedSurvival(survival[i], y+1), eps)
		losses[i] = (1-alpha)*(censored+uncensored) + alpha*uncensored
	}
	return mean(losses), nil
}

// CrossEntropySurvLoss is the discrete-time cross-entropy regularized by the uncensored
// likelihood term
type CrossEntropySurvLoss struct {
	Alpha float64
	Eps   float64
}

// NewCrossEntropySurvLoss returns the loss with DefaultAlpha and DefaultEps
func NewCrossEntropySurvLoss() CrossEntropySurvLoss {
	return CrossEntropySurvLoss{Alpha: DefaultAlpha, Eps: DefaultEps}
}

// Loss uses the configured alpha
func (l CrossEntropySurvLoss) Loss(b Batch) (float64, error) {
	return l.LossAlpha(b, l.Alpha)
}

// LossAlpha overrides alpha for one call
func (l CrossEntropySurvLoss) LossAlpha(b Batch, alpha float64) (float64, error) {
	survival, err := discreteInputs(b)
	if err != nil {
		return 0, err
	}
	eps := l.Eps
	losses := make([]float64, len(b.Labels))
	for i, y := range b.Labels {
		c := b.Censorship[i]
		reg := -(1 - c) * (math.Log(paddedSurvival(survival[i], y)+eps) + logFloor(b.Hazards[i][y], eps))
		s := math.Max(survival[i][y], eps)
		ce := -c*math.Log(s) - (1-c)*logFloor(1-s, eps)
		losses[i] = (1-alpha)*ce + alpha*reg
	}
	return mean(losses), nil
}
