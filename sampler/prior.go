package sampler

import (
	"github.com/pkg/errors"

	"github.com/problab/stipple/model"
	"github.com/problab/stipple/rand"
)

// Prior draws every latent independently from its declared
// distribution. Every step is accepted. With no observed sites this is
// plain prior sampling; with observations it is the proposal half of
// importance sampling, which is why Importance embeds it.
type Prior struct {
	m   *model.Model
	gen *rand.Generator
}

// NewPrior returns a prior sampler.
func NewPrior(cfg Config) (*Prior, error) {
	gen, err := rand.NewGenerator(cfg.Seed)
	if err != nil {
		return nil, errors.Wrap(err, "Could not create PRNG")
	}
	return &Prior{gen: gen}, nil
}

// Init implements Sampler.
func (p *Prior) Init(m *model.Model) error {
	if m == nil {
		return errors.Errorf("No model supplied")
	}
	p.m = m
	return nil
}

// Step implements Sampler.
func (p *Prior) Step() (*model.Trace, Diag, error) {
	tr := model.NewTrace()
	res, err := p.m.Execute(model.DrawFromPrior{}, tr, p.gen)
	if err != nil {
		return nil, Diag{}, errors.Wrap(err, "Prior execution failed")
	}

	return tr, Diag{
		LogDensity: res.LogDensity,
		Accepted:   true,
	}, nil
}

// Importance draws from the prior and weights each draw by its
// observation log-density. Posterior expectations over the resulting
// chain use weight-normalized averaging (Chain.Summary does this
// automatically for weighted chains).
type Importance struct {
	prior *Prior
}

// NewImportance returns an importance sampler.
func NewImportance(cfg Config) (*Importance, error) {
	p, err := NewPrior(cfg)
	if err != nil {
		return nil, err
	}
	return &Importance{prior: p}, nil
}

// Init implements Sampler.
func (s *Importance) Init(m *model.Model) error {
	return s.prior.Init(m)
}

// Step implements Sampler.
func (s *Importance) Step() (*model.Trace, Diag, error) {
	tr := model.NewTrace()
	res, err := s.prior.m.Execute(model.DrawFromPrior{}, tr, s.prior.gen)
	if err != nil {
		return nil, Diag{}, errors.Wrap(err, "Importance proposal failed")
	}

	return tr, Diag{
		LogDensity: res.LogDensity,
		Accepted:   true,
		LogWeight:  res.Observed,
	}, nil
}
