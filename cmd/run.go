package cmd

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/problab/stipple/model"
	"github.com/problab/stipple/sampler"
)

var samplerName string
var iterations int
var chainCount int
var burnIn int
var parallel bool
var useMonitor bool
var windowSize int

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Sample a demo model's posterior and report summaries",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSampling()
	},
}

func init() {
	runCmd.Flags().StringVarP(&samplerName, "sampler", "s", "nuts", "Sampler to use (prior, importance, mh, hmc, nuts, smc, pg, gibbs)")
	runCmd.Flags().IntVarP(&iterations, "iterations", "n", 2000, "Recorded iterations per chain")
	runCmd.Flags().IntVar(&chainCount, "chains", 2, "Independent chains to run")
	runCmd.Flags().IntVar(&burnIn, "burnin", 500, "Discarded iterations per chain")
	runCmd.Flags().BoolVar(&parallel, "parallel", false, "Run chains on separate goroutines")
	runCmd.Flags().BoolVar(&useMonitor, "monitor", false, "Expose progress over expvar HTTP")
	runCmd.Flags().IntVar(&windowSize, "window", 0, "Drift-diagnostic window size (0 = default)")
}

// samplerFactory maps a name to a sampler constructor. The gibbs option
// composes one MH kernel per latent site.
func samplerFactory(name string, m *model.Model) (sampler.Factory, error) {
	switch name {
	case "prior":
		return func(c sampler.Config) (sampler.Sampler, error) { return sampler.NewPrior(c) }, nil
	case "importance":
		return func(c sampler.Config) (sampler.Sampler, error) { return sampler.NewImportance(c) }, nil
	case "mh":
		return sampler.NewMetropolis, nil
	case "hmc":
		return sampler.NewHMC, nil
	case "nuts":
		return sampler.NewNUTS, nil
	case "smc":
		return func(c sampler.Config) (sampler.Sampler, error) { return sampler.NewSMC(c) }, nil
	case "pg":
		return func(c sampler.Config) (sampler.Sampler, error) { return sampler.NewParticleGibbs(c) }, nil
	case "gibbs":
		return func(c sampler.Config) (sampler.Sampler, error) {
			groups := make([]sampler.Group, 0, len(m.Latents()))
			for _, id := range m.Latents() {
				k, err := sampler.NewMetropolisKernel(c)
				if err != nil {
					return nil, err
				}
				groups = append(groups, sampler.Group{Idents: []model.Ident{id}, Kernel: k})
			}
			return sampler.NewGibbs(c, groups...)
		}, nil
	default:
		return nil, errors.Errorf("Unknown sampler %q", name)
	}
}

func runSampling() error {
	mod, err := demoModel(demoName)
	if err != nil {
		return err
	}

	cfg, err := samplerConfig()
	if err != nil {
		return err
	}

	factory, err := samplerFactory(samplerName, mod)
	if err != nil {
		return err
	}

	fmt.Printf("stipple run\n")
	fmt.Printf("Model:    %s\n", mod.Name())
	fmt.Printf("Sampler:  %s\n", samplerName)
	fmt.Printf("Chains:   %d x %d iterations (burn-in %d)\n", chainCount, iterations, burnIn)
	fmt.Printf("Rnd Seed: %d\n", cfg.Seed)

	opts := sampler.RunOpts{
		Iterations: iterations,
		Chains:     chainCount,
		BurnIn:     burnIn,
		Window:     windowSize,
	}
	if parallel {
		opts.Parallel = sampler.ParallelThreaded
	}

	var mon *monitor
	if useMonitor {
		mon = &monitor{}
		if err := mon.Start(); err != nil {
			return err
		}
		defer mon.Stop()

		mon.MaxIters.Set(int64(iterations * chainCount))
		mon.Chains.Set(int64(chainCount))

		startTime := time.Now()
		opts.Progress = func(chain, iter int, d sampler.Diag) {
			mon.Iterations.Add(1)
			if d.Divergent {
				mon.Divergences.Add(1)
			}
			mon.RunTime.Set(time.Since(startTime).Seconds())
		}
	}

	begin := time.Now()
	mc, err := sampler.Run(mod, factory, cfg, opts)
	if err != nil {
		return err
	}
	elapsed := time.Since(begin)

	fmt.Printf("--------------------------------------------------\n")
	fmt.Printf("Completed in %v (%d divergences)\n", elapsed, mc.Divergences())

	for _, ch := range mc.Chains {
		verb("Chain accept rate: %.3f\n", ch.AcceptRate())
	}

	fmt.Printf("%-12s %9s %9s %9s %9s %7s\n", "Site", "Mean", "StdDev", "MCErr", "ESS", "Rhat")
	for _, id := range mod.Latents() {
		sum, err := mc.Chains[0].Summary(id)
		if err != nil {
			return errors.Wrapf(err, "Could not summarize %s", id)
		}

		rhat := "-"
		if len(mc.Chains) > 1 {
			r, err := mc.GelmanRubin(id)
			if err != nil {
				return errors.Wrapf(err, "Could not compute Rhat for %s", id)
			}
			rhat = fmt.Sprintf("%7.3f", r)
		}

		fmt.Printf("%-12s %9.4f %9.4f %9.4f %9.1f %7s\n",
			id, sum.Mean, sum.StdDev, sum.MCErr, sum.ESS, rhat)

		if drift, ok := mc.Chains[0].SplitDrift(id); ok {
			verb("%-12s window drift: %.4f\n", id, drift)
		}
	}

	if mc.Chains[0].Weighted() {
		fmt.Printf("Log mean weight (evidence estimate): %.4f\n", mc.Chains[0].LogMeanWeight())
	}

	return nil
}
