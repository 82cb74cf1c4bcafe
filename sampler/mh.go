package sampler

import (
	"math"

	"github.com/pkg/errors"

	"github.com/problab/stipple/model"
	"github.com/problab/stipple/rand"
)

// MetropolisKernel is a random-walk Metropolis-Hastings transition in
// unconstrained space: a symmetric Gaussian perturbation of the
// current point, accepted with probability min(1, exp(dlogp)). Working
// through the unconstraining transforms keeps proposals inside every
// site's support (the Jacobian terms cancel into the z-space density,
// and the proposal stays symmetric in z).
type MetropolisKernel struct {
	cfg Config

	m   *model.Model
	gen *rand.Generator
	u   *model.Unconstrained
}

// NewMetropolisKernel validates the MH options.
func NewMetropolisKernel(cfg Config) (*MetropolisKernel, error) {
	if cfg.ProposalStdDev <= 0 {
		return nil, errors.Errorf("MH proposal stddev must be > 0, got %v", cfg.ProposalStdDev)
	}
	return &MetropolisKernel{cfg: cfg}, nil
}

// NewMetropolis returns a standalone MH sampler over all latents.
func NewMetropolis(cfg Config) (Sampler, error) {
	k, err := NewMetropolisKernel(cfg)
	if err != nil {
		return nil, err
	}
	return newKernelSampler(k, cfg), nil
}

// Init implements Kernel.
func (k *MetropolisKernel) Init(m *model.Model, subset []model.Ident, start *model.Trace, gen *rand.Generator) error {
	u, err := model.NewUnconstrained(m, start, subset, gen)
	if err != nil {
		return errors.Wrap(err, "MH kernel setup failed")
	}

	k.m = m
	k.gen = gen
	k.u = u
	return nil
}

// Step implements Kernel. A rejected proposal re-emits the current
// trace unchanged.
func (k *MetropolisKernel) Step(cur *model.Trace) (*model.Trace, Diag, error) {
	if err := k.u.Repin(cur); err != nil {
		return nil, Diag{}, err
	}

	z, err := k.u.Flatten(cur)
	if err != nil {
		return nil, Diag{}, err
	}
	logp := k.u.LogDensity(z)

	prop := make([]float64, len(z))
	for i := range z {
		prop[i] = z[i] + k.cfg.ProposalStdDev*k.gen.NormFloat64()
	}
	propLogp := k.u.LogDensity(prop)

	reject := Diag{LogDensity: k.u.ConstrainedLogDensity(z), Accepted: false}

	// Non-finite proposal density: numerical rejection, not an abort
	if !isFinite(propLogp) {
		return cur, reject, nil
	}

	if logAccept := propLogp - logp; logAccept < 0 {
		if math.Log(k.gen.Float64()) >= logAccept {
			return cur, reject, nil
		}
	}

	next := model.NewTrace()
	res, err := k.u.Apply(prop, next)
	if err != nil {
		return nil, Diag{}, errors.Wrap(err, "MH accept failed to materialize trace")
	}

	return next, Diag{LogDensity: res.LogDensity, Accepted: true}, nil
}
