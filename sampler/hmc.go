package sampler

import (
	"math"

	"github.com/pkg/errors"

	"github.com/problab/stipple/model"
	"github.com/problab/stipple/rand"
)

// maxEnergyError flags a trajectory as divergent: the discretized
// Hamiltonian has drifted too far from its starting value for the
// Metropolis correction to be meaningful.
const maxEnergyError = 1000.0

// HMCKernel simulates Hamiltonian dynamics in unconstrained space with
// leapfrog integration and applies a Metropolis correction on the
// joint (position, momentum) energy. With WarmUp > 0 the step size is
// adapted by dual averaging toward TargetAccept and frozen afterwards
// (the HMCDA variant).
type HMCKernel struct {
	cfg Config

	m   *model.Model
	gen *rand.Generator
	u   *model.Unconstrained

	eps  float64
	da   *dualAveraging
	iter int
}

// NewHMCKernel validates the HMC options.
func NewHMCKernel(cfg Config) (*HMCKernel, error) {
	if cfg.StepSize <= 0 {
		return nil, errors.Errorf("HMC step size must be > 0, got %v", cfg.StepSize)
	}
	if cfg.LeapfrogSteps < 1 {
		return nil, errors.Errorf("HMC leapfrog step count must be >= 1, got %d", cfg.LeapfrogSteps)
	}
	if cfg.WarmUp > 0 && (cfg.TargetAccept <= 0 || cfg.TargetAccept >= 1) {
		return nil, errors.Errorf("HMC target accept rate must be in (0,1), got %v", cfg.TargetAccept)
	}
	if cfg.WarmUp < 0 {
		return nil, errors.Errorf("HMC warm-up length must be >= 0, got %d", cfg.WarmUp)
	}
	return &HMCKernel{cfg: cfg}, nil
}

// NewHMC returns a standalone HMC sampler over all latents.
func NewHMC(cfg Config) (Sampler, error) {
	k, err := NewHMCKernel(cfg)
	if err != nil {
		return nil, err
	}
	return newKernelSampler(k, cfg), nil
}

// Init implements Kernel.
func (k *HMCKernel) Init(m *model.Model, subset []model.Ident, start *model.Trace, gen *rand.Generator) error {
	u, err := model.NewUnconstrained(m, start, subset, gen)
	if err != nil {
		return errors.Wrap(err, "HMC kernel setup failed")
	}

	k.m = m
	k.gen = gen
	k.u = u
	k.eps = k.cfg.StepSize
	if k.cfg.WarmUp > 0 {
		k.da = newDualAveraging(k.cfg.StepSize, k.cfg.TargetAccept)
	}
	return nil
}

// leapfrog advances (z, p) by n steps of size eps. Returns false if a
// gradient or position went non-finite mid-trajectory.
func leapfrog(u *model.Unconstrained, z, p []float64, eps float64, n int) bool {
	dim := len(z)
	grad := make([]float64, dim)

	u.Gradient(grad, z)
	if !finiteVec(grad) {
		return false
	}

	for step := 0; step < n; step++ {
		for i := 0; i < dim; i++ {
			p[i] += 0.5 * eps * grad[i]
			z[i] += eps * p[i]
		}
		if !finiteVec(z) {
			return false
		}
		u.Gradient(grad, z)
		if !finiteVec(grad) {
			return false
		}
		for i := 0; i < dim; i++ {
			p[i] += 0.5 * eps * grad[i]
		}
	}
	return true
}

func finiteVec(xs []float64) bool {
	for _, x := range xs {
		if !isFinite(x) {
			return false
		}
	}
	return true
}

func kinetic(p []float64) float64 {
	k := 0.0
	for _, pi := range p {
		k += pi * pi
	}
	return 0.5 * k
}

// Step implements Kernel.
func (k *HMCKernel) Step(cur *model.Trace) (*model.Trace, Diag, error) {
	if err := k.u.Repin(cur); err != nil {
		return nil, Diag{}, err
	}

	z0, err := k.u.Flatten(cur)
	if err != nil {
		return nil, Diag{}, err
	}
	logp0 := k.u.LogDensity(z0)

	// Fresh momentum each step; gradient ordering is strict, leapfrog
	// blocks on each gradient call
	p := make([]float64, len(z0))
	for i := range p {
		p[i] = k.gen.NormFloat64()
	}
	h0 := -logp0 + kinetic(p)

	z := append([]float64{}, z0...)
	ok := leapfrog(k.u, z, p, k.eps, k.cfg.LeapfrogSteps)

	logp1 := math.Inf(-1)
	h1 := math.Inf(1)
	if ok {
		logp1 = k.u.LogDensity(z)
		h1 = -logp1 + kinetic(p)
	}

	divergent := !ok || !isFinite(h1) || h1-h0 > maxEnergyError

	accept := 0.0
	if !divergent {
		accept = math.Exp(h0 - h1)
		if accept > 1 {
			accept = 1
		}
	}

	k.iter++
	d := Diag{StepSize: k.eps, Divergent: divergent, Energy: h1}
	k.adaptStep(accept)

	if divergent || k.gen.Float64() >= accept {
		d.LogDensity = k.u.ConstrainedLogDensity(z0)
		d.Accepted = false
		return cur, d, nil
	}

	next := model.NewTrace()
	res, err := k.u.Apply(z, next)
	if err != nil {
		return nil, Diag{}, errors.Wrap(err, "HMC accept failed to materialize trace")
	}

	d.LogDensity = res.LogDensity
	d.Accepted = true
	return next, d, nil
}

// adaptStep runs the dual-averaging schedule during warm-up and
// freezes the averaged step size at the end.
func (k *HMCKernel) adaptStep(accept float64) {
	if k.da == nil {
		return
	}
	if k.iter <= k.cfg.WarmUp {
		k.eps = k.da.update(accept)
		if k.iter == k.cfg.WarmUp {
			k.eps = k.da.final()
			k.da = nil
		}
	}
}
