package sampler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/problab/stipple/model"
)

func TestChainBasics(t *testing.T) {
	assert := assert.New(t)

	_, err := NewChain(nil, 0)
	assert.Error(err)

	m := normTestModel(t)
	ch, err := NewChain(m, 0)
	assert.NoError(err)
	assert.Equal(0, ch.Len())

	assert.Error(ch.Append(nil, Diag{}))

	// A trace with fewer sites than the model declares is rejected
	short := model.NewTrace()
	short.Set(model.Name("m"), model.Normal{Mu: 0, Sigma: 1}, 0.25, false)
	assert.Error(ch.Append(short, Diag{}))

	s, err := NewPrior(DefaultConfig())
	assert.NoError(err)
	assert.NoError(s.Init(m))

	for i := 0; i < 10; i++ {
		tr, d, err := s.Step()
		assert.NoError(err)
		assert.NoError(ch.Append(tr, d))
	}
	assert.Equal(10, ch.Len())

	vals, err := ch.Get(model.Name("m"))
	assert.NoError(err)
	assert.Equal(10, len(vals))

	_, err = ch.Get(model.Name("nope"))
	assert.Error(err)

	sub, err := ch.Slice(2, 7)
	assert.NoError(err)
	assert.Equal(5, sub.Len())
	subVals, err := sub.Get(model.Name("m"))
	assert.NoError(err)
	assert.Equal(vals[2:7], subVals)

	_, err = ch.Slice(-1, 5)
	assert.Error(err)
	_, err = ch.Slice(3, 2)
	assert.Error(err)
	_, err = ch.Slice(0, 11)
	assert.Error(err)
}

func TestChainDiagCounts(t *testing.T) {
	assert := assert.New(t)

	m := normTestModel(t)
	ch, err := NewChain(m, 0)
	assert.NoError(err)

	tr := model.NewTrace()
	gen := testGen(t, 42)
	_, err = m.Execute(model.DrawFromPrior{}, tr, gen)
	assert.NoError(err)

	assert.NoError(ch.Append(tr, Diag{Accepted: true}))
	assert.NoError(ch.Append(tr, Diag{Accepted: false, Divergent: true}))
	assert.NoError(ch.Append(tr, Diag{Accepted: true, Divergent: true}))
	assert.NoError(ch.Append(tr, Diag{Accepted: false}))

	assert.Equal(2, ch.Divergences())
	assert.InDelta(0.5, ch.AcceptRate(), 1e-12)
	assert.False(ch.Weighted())

	assert.NoError(ch.Append(tr, Diag{Accepted: true, LogWeight: -1.5}))
	assert.True(ch.Weighted())
}

func TestChainSplitDrift(t *testing.T) {
	assert := assert.New(t)

	m := normTestModel(t)
	ch, err := NewChain(m, 8)
	assert.NoError(err)

	gen := testGen(t, 7)

	// Not available until the window fills
	_, ok := ch.SplitDrift(model.Name("m"))
	assert.False(ok)

	for i := 0; i < 8; i++ {
		tr := model.NewTrace()
		_, err := m.Execute(model.Condition{Values: map[string]float64{"m": float64(i)}}, tr, gen)
		assert.NoError(err)
		assert.NoError(ch.Append(tr, Diag{Accepted: true}))
	}

	d, ok := ch.SplitDrift(model.Name("m"))
	assert.True(ok)
	// Halves are {0..3} and {4..7}: means 1.5 and 5.5
	assert.InDelta(4.0, d, 1e-12)

	_, ok = ch.SplitDrift(model.Name("x"))
	assert.False(ok)
}

func TestMergeChainsMismatch(t *testing.T) {
	assert := assert.New(t)

	_, err := MergeChains(nil)
	assert.Error(err)

	m1 := normTestModel(t)
	m2 := gaussTestModel(t)

	c1, err := NewChain(m1, 0)
	assert.NoError(err)
	c2, err := NewChain(m2, 0)
	assert.NoError(err)

	_, err = MergeChains([]*Chain{c1, c2})
	assert.Error(err)

	c3, err := NewChain(normTestModel(t), 0)
	assert.NoError(err)
	mc, err := MergeChains([]*Chain{c1, c3})
	assert.NoError(err)
	assert.Equal(2, len(mc.Chains))
}

func TestSummaryUnweighted(t *testing.T) {
	assert := assert.New(t)

	m := normTestModel(t)
	ch, err := NewChain(m, 0)
	assert.NoError(err)

	_, err = ch.Summary(model.Name("m"))
	assert.Error(err)

	gen := testGen(t, 11)
	vals := []float64{1, 2, 3, 4, 5}
	for _, v := range vals {
		tr := model.NewTrace()
		_, err := m.Execute(model.Condition{Values: map[string]float64{"m": v}}, tr, gen)
		assert.NoError(err)
		assert.NoError(ch.Append(tr, Diag{Accepted: true}))
	}

	s, err := ch.Summary(model.Name("m"))
	assert.NoError(err)
	assert.InDelta(3.0, s.Mean, 1e-12)
	assert.InDelta(math.Sqrt(2.5), s.StdDev, 1e-12)
	assert.True(s.ESS >= 1 && s.ESS <= 5)
	assert.Equal(0, s.Divergences)
}

func TestSummaryWeighted(t *testing.T) {
	assert := assert.New(t)

	m := normTestModel(t)
	ch, err := NewChain(m, 0)
	assert.NoError(err)

	gen := testGen(t, 13)
	set := func(v, lw float64) {
		tr := model.NewTrace()
		_, err := m.Execute(model.Condition{Values: map[string]float64{"m": v}}, tr, gen)
		assert.NoError(err)
		assert.NoError(ch.Append(tr, Diag{Accepted: true, LogWeight: lw}))
	}

	// Weights 1 and 3 after normalization: mean = (0*1 + 4*3)/4 = 3
	set(0.0, 0.0)
	set(4.0, math.Log(3))

	assert.True(ch.Weighted())
	s, err := ch.Summary(model.Name("m"))
	assert.NoError(err)
	assert.InDelta(3.0, s.Mean, 1e-9)
	assert.True(s.ESS > 1 && s.ESS < 2)

	// Normalizing-constant estimate: log((1+3)/2) in the shifted scale
	assert.InDelta(math.Log(2), ch.LogMeanWeight(), 1e-9)
}

func TestGelmanRubin(t *testing.T) {
	assert := assert.New(t)

	m := normTestModel(t)
	gen := testGen(t, 17)

	mk := func(vals []float64) *Chain {
		ch, err := NewChain(m, 0)
		assert.NoError(err)
		for _, v := range vals {
			tr := model.NewTrace()
			_, err := m.Execute(model.Condition{Values: map[string]float64{"m": v}}, tr, gen)
			assert.NoError(err)
			assert.NoError(ch.Append(tr, Diag{Accepted: true}))
		}
		return ch
	}

	same1 := mk([]float64{1, 2, 3, 4, 1, 2, 3, 4})
	same2 := mk([]float64{4, 3, 2, 1, 4, 3, 2, 1})
	far := mk([]float64{101, 102, 103, 104, 101, 102, 103, 104})

	mc, err := MergeChains([]*Chain{same1, same2})
	assert.NoError(err)

	_, err = (&MultiChain{Chains: []*Chain{same1}}).GelmanRubin(model.Name("m"))
	assert.Error(err)

	r, err := mc.GelmanRubin(model.Name("m"))
	assert.NoError(err)
	assert.InDelta(1.0, r, 0.1)

	mc2, err := MergeChains([]*Chain{same1, far})
	assert.NoError(err)
	r2, err := mc2.GelmanRubin(model.Name("m"))
	assert.NoError(err)
	assert.True(r2 > 3, "expected clear non-convergence, got %v", r2)
}
