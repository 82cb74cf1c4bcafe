package sampler

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/problab/stipple/model"
)

// Parallel selects how independent chains are executed.
type Parallel int

const (
	// ParallelNone runs chains one after another.
	ParallelNone Parallel = iota
	// ParallelThreaded runs one goroutine per chain. Safe because
	// chains share only the immutable model; each gets a private
	// sampler and PRNG.
	ParallelThreaded
	// ParallelDistributed is recognized but rejected: multi-process
	// chain coordination is a known problem area and no correctness
	// guarantee is offered beyond independent-chain parallelism.
	ParallelDistributed
)

// A Factory builds one sampler instance from a per-chain config. Run
// derives chain i's seed as cfg.Seed + i, so chains never share a
// random stream.
type Factory func(cfg Config) (Sampler, error)

// RunOpts controls one inference call.
type RunOpts struct {
	Iterations int
	Chains     int
	BurnIn     int
	Parallel   Parallel
	Window     int // convergence-window size per chain (0 = default)

	// Progress, when set, is called after every recorded iteration
	// with the chain id and diagnostics. Must be safe for concurrent
	// use under ParallelThreaded.
	Progress func(chain, iter int, d Diag)
}

// Run drives num-chains independent samplers over a shared model and
// merges the results. Within one chain sampling is strictly
// sequential: each step completes (including any gradient work) before
// the next begins. A chain stops only between completed steps.
func Run(m *model.Model, factory Factory, cfg Config, opts RunOpts) (*MultiChain, error) {
	if m == nil {
		return nil, errors.Errorf("No model supplied")
	}
	if factory == nil {
		return nil, errors.Errorf("No sampler factory supplied")
	}
	if opts.Iterations < 1 {
		return nil, errors.Errorf("Iteration count must be >= 1, got %d", opts.Iterations)
	}
	if opts.Chains < 1 {
		return nil, errors.Errorf("Chain count must be >= 1, got %d", opts.Chains)
	}
	if opts.BurnIn < 0 {
		return nil, errors.Errorf("Burn-in must be >= 0, got %d", opts.BurnIn)
	}
	if opts.Parallel == ParallelDistributed {
		return nil, errors.Errorf("Distributed chain execution is not supported; use threaded parallelism")
	}

	chains := make([]*Chain, opts.Chains)
	errs := make([]error, opts.Chains)

	runOne := func(c int) {
		chainCfg := cfg
		chainCfg.Seed = cfg.Seed + int64(c)

		s, err := factory(chainCfg)
		if err != nil {
			errs[c] = errors.Wrapf(err, "Could not build sampler for chain %d", c)
			return
		}
		if err := s.Init(m); err != nil {
			errs[c] = errors.Wrapf(err, "Could not init sampler for chain %d", c)
			return
		}

		ch, err := NewChain(m, opts.Window)
		if err != nil {
			errs[c] = err
			return
		}

		for i := 0; i < opts.BurnIn; i++ {
			if _, _, err := s.Step(); err != nil {
				errs[c] = errors.Wrapf(err, "Chain %d failed during burn-in", c)
				return
			}
		}

		for i := 0; i < opts.Iterations; i++ {
			tr, d, err := s.Step()
			if err != nil {
				errs[c] = errors.Wrapf(err, "Chain %d failed at iteration %d", c, i)
				return
			}
			if err := ch.Append(tr, d); err != nil {
				errs[c] = errors.Wrapf(err, "Chain %d could not record iteration %d", c, i)
				return
			}
			if opts.Progress != nil {
				opts.Progress(c, i, d)
			}
		}

		chains[c] = ch
	}

	if opts.Parallel == ParallelThreaded {
		var wg sync.WaitGroup
		for c := 0; c < opts.Chains; c++ {
			wg.Add(1)
			go func(c int) {
				defer wg.Done()
				runOne(c)
			}(c)
		}
		wg.Wait()
	} else {
		for c := 0; c < opts.Chains; c++ {
			runOne(c)
		}
	}

	for c, err := range errs {
		if err != nil {
			return nil, errors.Wrapf(err, "Sampling run failed (first failure: chain %d)", c)
		}
	}

	return MergeChains(chains)
}
