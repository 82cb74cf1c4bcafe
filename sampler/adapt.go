package sampler

import (
	"math"
)

// dualAveraging adapts the leapfrog step size toward a target
// acceptance rate during warm-up, following the Hoffman-Gelman
// schedule (gamma=0.05, t0=10, kappa=0.75).
type dualAveraging struct {
	target float64

	mu        float64
	logEps    float64
	logEpsBar float64
	hBar      float64
	iter      int
}

func newDualAveraging(eps0, target float64) *dualAveraging {
	return &dualAveraging{
		target:    target,
		mu:        math.Log(10 * eps0),
		logEps:    math.Log(eps0),
		logEpsBar: 0,
	}
}

const (
	daGamma = 0.05
	daT0    = 10.0
	daKappa = 0.75
)

// update folds in one iteration's acceptance statistic and returns the
// step size to use next.
func (da *dualAveraging) update(accept float64) float64 {
	if accept > 1 {
		accept = 1
	}

	da.iter++
	t := float64(da.iter)

	w := 1 / (t + daT0)
	da.hBar = (1-w)*da.hBar + w*(da.target-accept)

	da.logEps = da.mu - math.Sqrt(t)/daGamma*da.hBar

	wBar := math.Pow(t, -daKappa)
	da.logEpsBar = wBar*da.logEps + (1-wBar)*da.logEpsBar

	return math.Exp(da.logEps)
}

// final returns the averaged step size to freeze after warm-up.
func (da *dualAveraging) final() float64 {
	if da.iter == 0 {
		return math.Exp(da.logEps)
	}
	return math.Exp(da.logEpsBar)
}
