package sampler

import (
	"github.com/pkg/errors"

	"github.com/problab/stipple/model"
	"github.com/problab/stipple/rand"
)

// kernelSampler lifts a Kernel over all latent sites into a standalone
// Sampler: it owns the chain's PRNG and the current trace, and feeds
// each emitted trace back in as the next step's state.
type kernelSampler struct {
	cfg  Config
	kern Kernel

	m   *model.Model
	gen *rand.Generator
	cur *model.Trace
}

func newKernelSampler(kern Kernel, cfg Config) *kernelSampler {
	return &kernelSampler{cfg: cfg, kern: kern}
}

// Init implements Sampler.
func (s *kernelSampler) Init(m *model.Model) error {
	if m == nil {
		return errors.Errorf("No model supplied")
	}
	if len(m.Latents()) < 1 {
		return errors.Errorf("Model %s has no latent sites to sample", m.Name())
	}

	gen, err := rand.NewGenerator(s.cfg.Seed)
	if err != nil {
		return errors.Wrap(err, "Could not create PRNG")
	}

	start, err := initialTrace(m, s.cfg, gen)
	if err != nil {
		return err
	}

	if err := s.kern.Init(m, m.Latents(), start, gen); err != nil {
		return err
	}

	s.m = m
	s.gen = gen
	s.cur = start
	return nil
}

// Step implements Sampler.
func (s *kernelSampler) Step() (*model.Trace, Diag, error) {
	if s.cur == nil {
		return nil, Diag{}, errors.Errorf("Step called before Init")
	}

	next, d, err := s.kern.Step(s.cur)
	if err != nil {
		return nil, Diag{}, err
	}
	s.cur = next
	return next, d, nil
}
