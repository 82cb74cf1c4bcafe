package sampler

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/problab/stipple/model"
)

// A Summary is the per-variable diagnostic suite for a chain: location
// and spread of the marginal, Monte-Carlo error, autocorrelation-aware
// effective sample size, and the chain's divergence count. Weighted
// chains (importance, SMC) get weight-normalized moments.
type Summary struct {
	Mean        float64
	StdDev      float64
	MCErr       float64
	ESS         float64
	Divergences int
}

// Summary computes the diagnostic suite for one identifier.
func (c *Chain) Summary(id model.Ident) (*Summary, error) {
	xs, err := c.Get(id)
	if err != nil {
		return nil, err
	}
	if len(xs) < 2 {
		return nil, errors.Errorf("Need at least 2 iterations to summarize, have %d", len(xs))
	}

	s := &Summary{Divergences: c.Divergences()}

	if c.Weighted() {
		w := c.normWeights()
		s.Mean = stat.Mean(xs, w)
		s.StdDev = math.Sqrt(stat.Variance(xs, w))
		// Weighted draws are independent: ESS is the inverse sum of
		// squared normalized weights
		ssq := 0.0
		for _, wi := range w {
			ssq += wi * wi
		}
		tot := floats.Sum(w)
		s.ESS = tot * tot / ssq
		s.MCErr = s.StdDev / math.Sqrt(s.ESS)
		return s, nil
	}

	s.Mean = stat.Mean(xs, nil)
	s.StdDev = math.Sqrt(stat.Variance(xs, nil))
	s.ESS = essAutocorr(xs)
	s.MCErr = s.StdDev / math.Sqrt(s.ESS)
	return s, nil
}

// normWeights exponentiates log-weights stably (shifted by the max).
func (c *Chain) normWeights() []float64 {
	lw := make([]float64, len(c.Diags))
	for i, d := range c.Diags {
		lw[i] = d.LogWeight
	}
	shift := floats.Max(lw)
	w := make([]float64, len(lw))
	for i, l := range lw {
		w[i] = math.Exp(l - shift)
	}
	return w
}

// LogMeanWeight is the log of the average importance weight
// (the normalizing-constant estimate for importance/SMC chains).
func (c *Chain) LogMeanWeight() float64 {
	lw := make([]float64, len(c.Diags))
	for i, d := range c.Diags {
		lw[i] = d.LogWeight
	}
	if len(lw) == 0 {
		return math.Inf(-1)
	}
	return floats.LogSumExp(lw) - math.Log(float64(len(lw)))
}

// essAutocorr is the initial-positive-sequence estimator: N over one
// plus twice the sum of leading positive autocorrelations.
func essAutocorr(xs []float64) float64 {
	n := len(xs)
	mean := stat.Mean(xs, nil)
	v := stat.Variance(xs, nil)
	if v <= 0 {
		return 1
	}

	sum := 0.0
	for lag := 1; lag < n/2; lag++ {
		acf := 0.0
		for i := 0; i+lag < n; i++ {
			acf += (xs[i] - mean) * (xs[i+lag] - mean)
		}
		acf /= float64(n-lag) * v
		if acf < 0.05 {
			break
		}
		sum += acf
	}

	ess := float64(n) / (1 + 2*sum)
	if ess < 1 {
		ess = 1
	}
	if ess > float64(n) {
		ess = float64(n)
	}
	return ess
}

// GelmanRubin is the potential-scale-reduction diagnostic for one
// identifier across the chains of a multi-chain view. Values well
// above 1 mean the chains have not mixed. Requires at least 2 chains
// of equal length.
func (mc *MultiChain) GelmanRubin(id model.Ident) (float64, error) {
	if len(mc.Chains) < 2 {
		return 0, errors.Errorf("Gelman-Rubin needs at least 2 chains, have %d", len(mc.Chains))
	}

	seqs, err := mc.Get(id)
	if err != nil {
		return 0, err
	}

	n := len(seqs[0])
	if n < 2 {
		return 0, errors.Errorf("Gelman-Rubin needs at least 2 iterations per chain")
	}
	for i, s := range seqs {
		if len(s) != n {
			return 0, errors.Errorf("Chain %d has %d iterations, expected %d", i, len(s), n)
		}
	}

	m := float64(len(seqs))
	nn := float64(n)

	chainMeans := make([]float64, len(seqs))
	within := 0.0
	for i, s := range seqs {
		chainMeans[i] = stat.Mean(s, nil)
		within += stat.Variance(s, nil)
	}
	within /= m

	grand := stat.Mean(chainMeans, nil)
	between := 0.0
	for _, cm := range chainMeans {
		between += (cm - grand) * (cm - grand)
	}
	between *= nn / (m - 1)

	if within <= 0 {
		return 1, nil
	}

	varEst := (nn-1)/nn*within + between/nn
	return math.Sqrt(varEst / within), nil
}
