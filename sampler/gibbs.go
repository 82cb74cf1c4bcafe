package sampler

import (
	"github.com/pkg/errors"

	"github.com/problab/stipple/model"
	"github.com/problab/stipple/rand"
)

// A Group assigns a disjoint set of latent identifiers to one
// sub-kernel.
type Group struct {
	Idents []model.Ident
	Kernel Kernel
}

// Gibbs composes sub-kernels over a partition of the model's latent
// sites. One outer step applies each group's kernel in fixed order,
// holding every other group at its current value (the kernels see
// those values through their pinned/conditioned view, and re-derive
// Jacobian corrections only over their own subset).
type Gibbs struct {
	cfg    Config
	groups []Group

	m   *model.Model
	gen *rand.Generator
	cur *model.Trace
}

// NewGibbs validates the group structure: at least one group, no
// empty groups, every group carrying a kernel.
func NewGibbs(cfg Config, groups ...Group) (*Gibbs, error) {
	if len(groups) < 1 {
		return nil, errors.Errorf("Gibbs composition needs at least one group")
	}
	for i, g := range groups {
		if len(g.Idents) < 1 {
			return nil, errors.Errorf("Gibbs group %d is empty", i)
		}
		if g.Kernel == nil {
			return nil, errors.Errorf("Gibbs group %d has no kernel", i)
		}
	}
	return &Gibbs{cfg: cfg, groups: groups}, nil
}

// Init implements Sampler. The partition must cover the model's
// latents exactly: unknown, duplicated, or missing identifiers are
// configuration errors.
func (s *Gibbs) Init(m *model.Model) error {
	if m == nil {
		return errors.Errorf("No model supplied")
	}

	latent := make(map[string]bool)
	for _, id := range m.Latents() {
		latent[id.String()] = false
	}

	for i, g := range s.groups {
		for _, id := range g.Idents {
			key := id.String()
			used, ok := latent[key]
			if !ok {
				return errors.Errorf("Gibbs group %d names %s, which is not a latent site of model %s", i, key, m.Name())
			}
			if used {
				return errors.Errorf("Identifier %s appears in more than one Gibbs group", key)
			}
			latent[key] = true
		}
	}
	for key, used := range latent {
		if !used {
			return errors.Errorf("Latent site %s is not assigned to any Gibbs group", key)
		}
	}

	gen, err := rand.NewGenerator(s.cfg.Seed)
	if err != nil {
		return errors.Wrap(err, "Could not create PRNG")
	}

	start, err := initialTrace(m, s.cfg, gen)
	if err != nil {
		return err
	}

	for i, g := range s.groups {
		if err := g.Kernel.Init(m, g.Idents, start, gen); err != nil {
			return errors.Wrapf(err, "Gibbs group %d kernel init failed", i)
		}
	}

	s.m = m
	s.gen = gen
	s.cur = start
	return nil
}

// Step implements Sampler: one sweep over all groups.
func (s *Gibbs) Step() (*model.Trace, Diag, error) {
	if s.cur == nil {
		return nil, Diag{}, errors.Errorf("Step called before Init")
	}

	out := Diag{Accepted: true}
	for i, g := range s.groups {
		next, d, err := g.Kernel.Step(s.cur)
		if err != nil {
			return nil, Diag{}, errors.Wrapf(err, "Gibbs group %d step failed", i)
		}
		s.cur = next

		out.Accepted = out.Accepted && d.Accepted
		out.Divergent = out.Divergent || d.Divergent
		out.LogDensity = d.LogDensity
		out.StepSize = d.StepSize
	}

	return s.cur, out, nil
}
