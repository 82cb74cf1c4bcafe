package sampler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/problab/stipple/model"
)

// Prior marginal means converge to the analytic values within three
// Monte-Carlo standard errors.
func TestPriorMarginalMeans(t *testing.T) {
	assert := assert.New(t)

	const n = 10000
	m := priorOnlyModel(t)

	cfg := DefaultConfig()
	cfg.Seed = 101
	s, err := NewPrior(cfg)
	assert.NoError(err)

	ch := runChain(t, s, m, n)
	assert.Equal(n, ch.Len())
	assert.InDelta(1.0, ch.AcceptRate(), 1e-12)
	assert.False(ch.Weighted())

	// g ~ Gamma(4, 2): mean 2, sd 1. n ~ Normal(1, 2).
	gs, err := ch.Get(model.Name("g"))
	assert.NoError(err)
	gm := meanOf(gs)
	assert.InDelta(2.0, gm, 3*1.0/math.Sqrt(n))

	ns, err := ch.Get(model.Name("n"))
	assert.NoError(err)
	nm := meanOf(ns)
	assert.InDelta(1.0, nm, 3*2.0/math.Sqrt(n))
}

func meanOf(xs []float64) float64 {
	tot := 0.0
	for _, x := range xs {
		tot += x
	}
	return tot / float64(len(xs))
}

// Importance-weighted posterior mean on the conjugate model: target is
// Normal(0.5, 1/sqrt(2)).
func TestImportancePosteriorMean(t *testing.T) {
	assert := assert.New(t)

	const n = 20000
	m := normTestModel(t)

	cfg := DefaultConfig()
	cfg.Seed = 202
	s, err := NewImportance(cfg)
	assert.NoError(err)

	ch := runChain(t, s, m, n)
	assert.True(ch.Weighted())

	sum, err := ch.Summary(model.Name("m"))
	assert.NoError(err)
	assert.InDelta(normPostMean, sum.Mean, 0.05)
	assert.InDelta(normPostSigma, sum.StdDev, 0.05)
	assert.True(sum.ESS > 1)

	// Evidence for N(0,1) prior, N(m,1) likelihood at x=1:
	// marginal is N(0, sqrt(2)), so log Z = logpdf_N(1; 0, sqrt(2))
	wantZ := -0.5*math.Log(2*math.Pi*2) - 1.0/4.0
	assert.InDelta(wantZ, ch.LogMeanWeight(), 0.05)
}

// Weights on an observation-free model are all zero, so the chain is
// unweighted.
func TestImportanceNoObservations(t *testing.T) {
	assert := assert.New(t)

	m := priorOnlyModel(t)
	s, err := NewImportance(DefaultConfig())
	assert.NoError(err)

	ch := runChain(t, s, m, 50)
	assert.False(ch.Weighted())
	for _, d := range ch.Diags {
		assert.Equal(0.0, d.LogWeight)
	}
}
