package sampler

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/problab/stipple/model"
	"github.com/problab/stipple/rand"
)

// particle is one weighted partial trace in the SMC population. Each
// particle owns its trace (snapshots are cloned on resampling, never
// aliased), with lineage recorded through the ancestry log.
type particle struct {
	tr   *model.Trace
	logw float64 // incremental log-weight since the last resample
	logp float64 // accumulated joint log-density
}

// SMC runs a particle population through the model's site sequence,
// weighting at observation sites and resampling whenever the effective
// sample size of the weights drops below ESSThreshold * Particles.
// Each Step is one full sweep, emitting a trace drawn in proportion to
// the final weights. In conditional mode (Particle Gibbs) one
// reference particle retraces the previous sweep's selection
// unperturbed, making the sweep a valid Gibbs update.
type SMC struct {
	cfg         Config
	conditional bool

	m     *model.Model
	gen   *rand.Generator
	decls []model.Decl

	ref      *model.Trace
	ancestry [][]int
	lastESS  float64
}

// NewSMC returns an unconditional SMC sampler.
func NewSMC(cfg Config) (*SMC, error) {
	return newSMC(cfg, false)
}

// NewParticleGibbs returns a conditional-SMC (Particle Gibbs) sampler.
func NewParticleGibbs(cfg Config) (*SMC, error) {
	if cfg.Particles < 2 {
		return nil, errors.Errorf("Particle Gibbs needs at least 2 particles, got %d", cfg.Particles)
	}
	return newSMC(cfg, true)
}

func newSMC(cfg Config, conditional bool) (*SMC, error) {
	if cfg.Particles < 1 {
		return nil, errors.Errorf("Particle population must be >= 1, got %d", cfg.Particles)
	}
	switch cfg.Resampling {
	case ResampleMultinomial, ResampleResidual:
	default:
		return nil, errors.Errorf("Unknown resampling strategy %q", cfg.Resampling)
	}
	if cfg.ESSThreshold <= 0 || cfg.ESSThreshold > 1 {
		return nil, errors.Errorf("ESS threshold must be in (0, 1], got %v", cfg.ESSThreshold)
	}

	gen, err := rand.NewGenerator(cfg.Seed)
	if err != nil {
		return nil, errors.Wrap(err, "Could not create PRNG")
	}

	return &SMC{cfg: cfg, conditional: conditional, gen: gen}, nil
}

// Init implements Sampler.
func (s *SMC) Init(m *model.Model) error {
	if m == nil {
		return errors.Errorf("No model supplied")
	}
	s.m = m
	s.decls = m.Decls()
	return nil
}

// Ancestry returns the parent-index record of every resampling event
// so far, for lineage-based diagnostics.
func (s *SMC) Ancestry() [][]int {
	out := make([][]int, len(s.ancestry))
	for i, ps := range s.ancestry {
		out[i] = append([]int{}, ps...)
	}
	return out
}

// Step implements Sampler: one full sweep of the particle population.
func (s *SMC) Step() (*model.Trace, Diag, error) {
	n := s.cfg.Particles
	ps := make([]*particle, n)
	for i := range ps {
		ps[i] = &particle{tr: model.NewTrace()}
	}

	var refVals map[string]float64
	if s.conditional && s.ref != nil {
		refVals = s.ref.Values()
	}

	s.lastESS = float64(n)

	// Evidence estimate for the sweep: each resampling stage
	// contributes the log-mean weight accumulated since the last one
	sweepLogZ := 0.0

	for _, decl := range s.decls {
		for i, p := range ps {
			d, err := decl.Dist(p.tr)
			if err != nil {
				return nil, Diag{}, errors.Wrapf(err, "SMC sweep at site %s", decl.ID)
			}

			if decl.Data.IsObserved() {
				v := decl.Data.Value()
				lp := math.Inf(-1)
				if d.In(v) {
					lp = d.LogProb(v)
				}
				p.tr.Set(decl.ID, d, v, true)
				p.logw += lp
				p.logp += lp
				continue
			}

			var v float64
			if i == 0 && refVals != nil {
				v = refVals[decl.ID.String()]
			} else {
				v = d.Sample(s.gen)
			}
			lp := math.Inf(-1)
			if d.In(v) {
				lp = d.LogProb(v)
			}
			p.tr.Set(decl.ID, d, v, false)
			p.logp += lp
		}

		if decl.Data.IsObserved() {
			var stage float64
			ps, stage = s.maybeResample(ps)
			sweepLogZ += stage
		}
	}

	// Select the emitted trace in proportion to final weights
	logw := make([]float64, n)
	for i, p := range ps {
		logw[i] = p.logw
	}
	tot := floats.LogSumExp(logw)

	diag := Diag{ESS: s.lastESS}
	if !isFinite(tot) {
		// Every particle died: numerical rejection of the whole sweep
		diag.Divergent = true
		if s.ref != nil {
			diag.Accepted = false
			return s.ref, diag, nil
		}
		diag.Accepted = false
		diag.LogDensity = ps[0].logp
		return ps[0].tr, diag, nil
	}

	u := s.gen.Float64()
	cum := 0.0
	idx := n - 1
	for i := range logw {
		cum += math.Exp(logw[i] - tot)
		if u < cum {
			idx = i
			break
		}
	}

	chosen := ps[idx]
	if s.conditional {
		s.ref = chosen.tr
	}

	diag.Accepted = true
	diag.LogDensity = chosen.logp
	diag.LogWeight = sweepLogZ + tot - math.Log(float64(n))
	return chosen.tr, diag, nil
}

// maybeResample checks the weight ESS and resamples the population
// when it has degenerated. The reference particle (index 0) keeps its
// lineage in conditional mode. The second return is the stage's
// log-mean-weight contribution to the sweep's evidence estimate (zero
// when no resampling happened, since the weights keep accumulating).
func (s *SMC) maybeResample(ps []*particle) ([]*particle, float64) {
	n := len(ps)

	logw := make([]float64, n)
	for i, p := range ps {
		logw[i] = p.logw
	}
	tot := floats.LogSumExp(logw)
	if !isFinite(tot) {
		return ps, 0
	}

	w := make([]float64, n)
	ssq := 0.0
	for i := range logw {
		w[i] = math.Exp(logw[i] - tot)
		ssq += w[i] * w[i]
	}
	ess := 1 / ssq
	s.lastESS = ess

	if ess >= s.cfg.ESSThreshold*float64(n) {
		return ps, 0
	}

	var parents []int
	if s.cfg.Resampling == ResampleResidual {
		parents = s.residualIndices(w)
	} else {
		parents = s.multinomialIndices(w)
	}
	if s.conditional {
		parents[0] = 0
	}
	s.ancestry = append(s.ancestry, parents)

	out := make([]*particle, n)
	for i, parent := range parents {
		out[i] = &particle{
			tr:   ps[parent].tr.Clone(),
			logw: 0,
			logp: ps[parent].logp,
		}
	}
	return out, tot - math.Log(float64(n))
}

// multinomialIndices draws n parents with replacement.
func (s *SMC) multinomialIndices(w []float64) []int {
	n := len(w)
	out := make([]int, n)
	for i := range out {
		u := s.gen.Float64()
		cum := 0.0
		out[i] = n - 1
		for j, wj := range w {
			cum += wj
			if u < cum {
				out[i] = j
				break
			}
		}
	}
	return out
}

// residualIndices keeps floor(n*w) deterministic copies per particle
// and fills the remainder multinomially from the residual weights.
func (s *SMC) residualIndices(w []float64) []int {
	n := len(w)
	out := make([]int, 0, n)

	resid := make([]float64, n)
	residTot := 0.0
	for j, wj := range w {
		scaled := wj * float64(n)
		copies := int(math.Floor(scaled))
		for c := 0; c < copies; c++ {
			out = append(out, j)
		}
		resid[j] = scaled - float64(copies)
		residTot += resid[j]
	}

	for len(out) < n {
		u := s.gen.Float64() * residTot
		cum := 0.0
		pick := n - 1
		for j, rj := range resid {
			cum += rj
			if u < cum {
				pick = j
				break
			}
		}
		out = append(out, pick)
	}
	return out[:n]
}
