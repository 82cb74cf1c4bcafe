package sampler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/problab/stipple/model"
	"github.com/problab/stipple/rand"
)

func testGen(t *testing.T, seed int64) *rand.Generator {
	t.Helper()
	gen, err := rand.NewGenerator(seed)
	if err != nil {
		t.Fatal(err)
	}
	return gen
}

// normTestModel is the conjugate workhorse: m ~ Normal(0,1) with one
// observation x = 1.0, so the posterior is exactly
// Normal(0.5, 1/sqrt(2)).
func normTestModel(t *testing.T) *model.Model {
	t.Helper()

	m, err := model.NewBuilder("norm").
		Latent(model.Name("m"), model.Fixed(model.Normal{Mu: 0, Sigma: 1})).
		Observe(model.Name("x"), func(tr *model.Trace) (model.Dist, error) {
			mv, err := tr.Val(model.Name("m"))
			if err != nil {
				return nil, err
			}
			return model.Normal{Mu: mv, Sigma: 1}, nil
		}, model.Observed(1.0)).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	return m
}

const (
	normPostMean  = 0.5
	normPostSigma = 0.70710678118654752
)

// gaussTestModel is the two-latent InverseGamma/Normal model
// conditioned on two points.
func gaussTestModel(t *testing.T) *model.Model {
	t.Helper()

	like := func(tr *model.Trace) (model.Dist, error) {
		mv, err := tr.Val(model.Name("m"))
		if err != nil {
			return nil, err
		}
		s, err := tr.Val(model.Name("s"))
		if err != nil {
			return nil, err
		}
		return model.Normal{Mu: mv, Sigma: math.Sqrt(s)}, nil
	}

	m, err := model.NewBuilder("gauss").
		Latent(model.Name("s"), model.Fixed(model.InverseGamma{Alpha: 2, Beta: 3})).
		Latent(model.Name("m"), func(tr *model.Trace) (model.Dist, error) {
			s, err := tr.Val(model.Name("s"))
			if err != nil {
				return nil, err
			}
			return model.Normal{Mu: 0, Sigma: math.Sqrt(s)}, nil
		}).
		Observe(model.Name("x"), like, model.Observed(1.5)).
		Observe(model.Name("y"), like, model.Observed(2.0)).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	return m
}

// priorOnlyModel has no observations: two independent latents with
// known analytic means.
func priorOnlyModel(t *testing.T) *model.Model {
	t.Helper()

	m, err := model.NewBuilder("prior-only").
		Latent(model.Name("g"), model.Fixed(model.Gamma{Alpha: 4, Beta: 2})).
		Latent(model.Name("n"), model.Fixed(model.Normal{Mu: 1, Sigma: 2})).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	return m
}

// runChain drives a sampler for n iterations into a fresh chain.
func runChain(t *testing.T, s Sampler, m *model.Model, n int) *Chain {
	t.Helper()

	if err := s.Init(m); err != nil {
		t.Fatal(err)
	}
	ch, err := NewChain(m, 0)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < n; i++ {
		tr, d, err := s.Step()
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if err := ch.Append(tr, d); err != nil {
			t.Fatal(err)
		}
	}
	return ch
}

// Every sampler family obeys the outer protocol: N iterations in, N
// entries out, each trace holding exactly the declared identifier set.
func TestAllSamplersChainShape(t *testing.T) {
	assert := assert.New(t)

	cfg := DefaultConfig()
	cfg.WarmUp = 5
	cfg.Particles = 20
	cfg.LeapfrogSteps = 5

	factories := map[string]Factory{
		"prior": func(c Config) (Sampler, error) { return NewPrior(c) },
		"is":    func(c Config) (Sampler, error) { return NewImportance(c) },
		"mh":    NewMetropolis,
		"hmc":   NewHMC,
		"nuts":  NewNUTS,
		"smc":   func(c Config) (Sampler, error) { return NewSMC(c) },
		"pg":    func(c Config) (Sampler, error) { return NewParticleGibbs(c) },
	}

	const iters = 25
	m := gaussTestModel(t)
	want := []string{"s", "m", "x", "y"}

	for name, f := range factories {
		s, err := f(cfg)
		assert.NoError(err, name)

		ch := runChain(t, s, m, iters)
		assert.Equal(iters, ch.Len(), name)

		for _, tr := range ch.Traces {
			ids := tr.Idents()
			assert.Equal(len(want), len(ids), name)
			for i, id := range ids {
				assert.Equal(want[i], id.String(), name)
			}
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	assert := assert.New(t)

	cfg := DefaultConfig()
	assert.True(cfg.StepSize > 0)
	assert.True(cfg.LeapfrogSteps >= 1)
	assert.True(cfg.Particles >= 1)
	assert.Equal(ResampleMultinomial, cfg.Resampling)
}
