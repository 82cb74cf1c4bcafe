package sampler

import (
	"math"

	"github.com/pkg/errors"

	"github.com/problab/stipple/model"
	"github.com/problab/stipple/rand"
)

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// A Sampler produces a sequence of traces approximating the posterior
// of a model. The outer protocol is shared by every algorithm family:
// Init once, then repeated Steps, each emitting the trace for one
// iteration. A rejected step re-emits the previous trace (this affects
// diagnostics, not forward progress). Emitted traces must never be
// mutated afterwards.
type Sampler interface {
	Init(m *model.Model) error
	Step() (*model.Trace, Diag, error)
}

// A Kernel is a transition operator over a subset of a model's latent
// sites, holding everything else fixed at the current trace's values.
// Standalone samplers wrap a kernel over all latents; Gibbs
// composition applies one kernel per group in a fixed order.
type Kernel interface {
	Init(m *model.Model, subset []model.Ident, start *model.Trace, gen *rand.Generator) error
	Step(cur *model.Trace) (*model.Trace, Diag, error)
}

// Diag is the per-iteration diagnostic record stored alongside each
// trace in a chain.
type Diag struct {
	LogDensity float64 // joint log-density of the emitted trace
	Accepted   bool
	Divergent  bool    // HMC-family energy blow-up or non-finite gradient
	LogWeight  float64 // importance/SMC log-weight; 0 for unweighted samplers
	Energy     float64 // Hamiltonian at the accepted point (HMC family)
	StepSize   float64 // leapfrog step size in effect (HMC family)
	TreeDepth  int     // NUTS tree depth reached
	ESS        float64 // particle effective sample size (SMC family)
}

// Resampling strategy names for the SMC family.
const (
	ResampleMultinomial = "multinomial"
	ResampleResidual    = "residual"
)

// Config carries every recognized sampler option. Each constructor
// validates only the fields its family uses and fails fast on bad
// values, before any sampling starts.
type Config struct {
	Seed    int64
	Initial map[string]float64 // optional initial latent values

	ProposalStdDev float64 // MH: random-walk scale in unconstrained space

	StepSize      float64 // HMC family: leapfrog step size
	LeapfrogSteps int     // HMC: steps per trajectory
	TargetAccept  float64 // HMCDA/NUTS: dual-averaging target
	WarmUp        int     // HMCDA/NUTS: adaptation iterations
	MaxTreeDepth  int     // NUTS

	Particles    int     // SMC family: particle population size
	Resampling   string  // multinomial or residual
	ESSThreshold float64 // resample when ESS/N drops below this
}

// DefaultConfig returns the options used when a caller specifies
// nothing.
func DefaultConfig() Config {
	return Config{
		Seed:           1,
		ProposalStdDev: 0.5,
		StepSize:       0.1,
		LeapfrogSteps:  16,
		TargetAccept:   0.8,
		WarmUp:         0,
		MaxTreeDepth:   10,
		Particles:      100,
		Resampling:     ResampleMultinomial,
		ESSThreshold:   0.5,
	}
}

// initialTrace builds the starting trace for an iterative sampler:
// latents come from cfg.Initial where given, otherwise from the prior.
// A few redraws are attempted if the starting density is degenerate.
func initialTrace(m *model.Model, cfg Config, gen *rand.Generator) (*model.Trace, error) {
	const attempts = 32

	var lastErr error
	for i := 0; i < attempts; i++ {
		tr := model.NewTrace()
		res, err := m.Execute(model.Condition{Values: cfg.Initial}, tr, gen)
		if err != nil {
			return nil, errors.Wrap(err, "Could not initialize sampler state")
		}
		if isFinite(res.LogDensity) {
			return tr, nil
		}
		lastErr = errors.Errorf("Initial point has log-density %v", res.LogDensity)
		if len(cfg.Initial) > 0 {
			// User-supplied values are degenerate: redrawing will not help
			break
		}
	}

	return nil, errors.Wrap(lastErr, "Could not find a finite starting point")
}
