package cmd

import (
	"math"

	"github.com/pkg/errors"

	"github.com/problab/stipple/model"
)

// demoModel builds one of the built-in demonstration models by name.
func demoModel(name string) (*model.Model, error) {
	switch name {
	case "gauss":
		return gaussDemo()
	case "funnel":
		return funnelDemo()
	case "counts":
		return countsDemo()
	default:
		return nil, errors.Errorf("Unknown demo model %q (try gauss, funnel, or counts)", name)
	}
}

// gaussDemo is a conjugate-style location/scale model: unknown variance
// with an InverseGamma prior, unknown mean, two observed points.
func gaussDemo() (*model.Model, error) {
	like := func(tr *model.Trace) (model.Dist, error) {
		m, err := tr.Val(model.Name("m"))
		if err != nil {
			return nil, err
		}
		s, err := tr.Val(model.Name("s"))
		if err != nil {
			return nil, err
		}
		return model.Normal{Mu: m, Sigma: math.Sqrt(s)}, nil
	}

	return model.NewBuilder("gauss").
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
}

// funnelDemo is Neal's funnel: a scale latent whose exponent drives the
// spread of the lower-level latents. Hard for fixed-step HMC, a good
// stress test for NUTS.
func funnelDemo() (*model.Model, error) {
	b := model.NewBuilder("funnel").
		Latent(model.Name("v"), model.Fixed(model.Normal{Mu: 0, Sigma: 3}))

	for i := 0; i < 5; i++ {
		b = b.Latent(model.Indexed("x", i), func(tr *model.Trace) (model.Dist, error) {
			v, err := tr.Val(model.Name("v"))
			if err != nil {
				return nil, err
			}
			return model.Normal{Mu: 0, Sigma: math.Exp(v / 2)}, nil
		})
	}
	return b.Build()
}

// countsDemo is a Gamma-Poisson rate model over a small count series.
func countsDemo() (*model.Model, error) {
	counts := []float64{4, 7, 5, 3, 6}

	b := model.NewBuilder("counts").
		Latent(model.Name("rate"), model.Fixed(model.Gamma{Alpha: 2, Beta: 0.5}))

	for i, c := range counts {
		b = b.Observe(model.Indexed("k", i), func(tr *model.Trace) (model.Dist, error) {
			r, err := tr.Val(model.Name("rate"))
			if err != nil {
				return nil, err
			}
			return model.Poisson{Lambda: r}, nil
		}, model.Observed(c))
	}
	return b.Build()
}
