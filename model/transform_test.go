package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransformRoundTrip(t *testing.T) {
	assert := assert.New(t)

	cases := []struct {
		tf Transform
		xs []float64
	}{
		{identity{}, []float64{-10, 0, 3.5}},
		{logShift{Lo: 0}, []float64{0.001, 1, 250}},
		{logShift{Lo: 2}, []float64{2.001, 5, 100}},
		{negLogShift{Hi: 1}, []float64{-10, 0, 0.999}},
		{logit{Lo: 0, Hi: 1}, []float64{0.01, 0.5, 0.99}},
		{logit{Lo: -2, Hi: 3}, []float64{-1.9, 0, 2.9}},
	}

	for _, c := range cases {
		for _, x := range c.xs {
			z := c.tf.To(x)
			back := c.tf.From(z)
			assert.InDelta(x, back, 1e-9, "round trip through %T at %g", c.tf, x)
		}
	}
}

func TestTransformJacobian(t *testing.T) {
	assert := assert.New(t)

	// Compare analytic log-Jacobians against a central difference of From
	cases := []struct {
		tf Transform
		zs []float64
	}{
		{identity{}, []float64{-3, 0, 2}},
		{logShift{Lo: 0}, []float64{-2, 0, 1.5}},
		{negLogShift{Hi: 4}, []float64{-1, 0.5}},
		{logit{Lo: 0, Hi: 1}, []float64{-2, 0, 2}},
		{logit{Lo: -1, Hi: 5}, []float64{-1, 1}},
	}

	const h = 1e-6
	for _, c := range cases {
		for _, z := range c.zs {
			numeric := math.Abs(c.tf.From(z+h)-c.tf.From(z-h)) / (2 * h)
			assert.InDelta(math.Log(numeric), c.tf.LogJacobian(z), 1e-4,
				"%T at z=%g", c.tf, z)
		}
	}
}

func TestTransformFor(t *testing.T) {
	assert := assert.New(t)

	assert.IsType(identity{}, TransformFor(Normal{Mu: 0, Sigma: 1}))
	assert.IsType(logShift{}, TransformFor(Gamma{Alpha: 1, Beta: 1}))
	assert.IsType(logShift{}, TransformFor(InverseGamma{Alpha: 2, Beta: 3}))
	assert.IsType(logit{}, TransformFor(Beta{Alpha: 1, Beta: 1}))
	assert.IsType(logit{}, TransformFor(Uniform{Min: -1, Max: 1}))
	assert.Nil(TransformFor(Poisson{Lambda: 1}))
	assert.Nil(TransformFor(Bernoulli{P: 0.5}))
}
