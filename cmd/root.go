package cmd

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/problab/stipple/sampler"
)

var cfgFile string
var verbose bool
var demoName string
var randomSeed int64

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stipple",
	Short: "Trace-based sampling for generative models",
	Long: `stipple evaluates generative models and samples their posteriors.
Among other features:

  - Built-in demo models (gauss, funnel, counts)
  - Prior, importance, MH, HMC, NUTS, SMC, and Particle Gibbs samplers
  - Multi-chain runs with convergence diagnostics
`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "YAML config file for sampler options")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging (default is much more parsimonious)")
	rootCmd.PersistentFlags().StringVarP(&demoName, "demo", "d", "gauss", "Demo model to use (gauss, funnel, counts)")
	rootCmd.PersistentFlags().Int64VarP(&randomSeed, "seed", "r", 1, "Random seed to use")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(queryCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// verb is printf that only fires with --verbose
func verb(format string, args ...interface{}) {
	if verbose {
		fmt.Printf(format, args...)
	}
}

// samplerConfig builds the sampler options: defaults, then the config
// file (if any), then the command line seed.
func samplerConfig() (sampler.Config, error) {
	cfg := sampler.DefaultConfig()

	if cfgFile != "" {
		v := viper.New()
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return cfg, errors.Wrapf(err, "Could not read config file %s", cfgFile)
		}

		if v.IsSet("proposal-stddev") {
			cfg.ProposalStdDev = v.GetFloat64("proposal-stddev")
		}
		if v.IsSet("step-size") {
			cfg.StepSize = v.GetFloat64("step-size")
		}
		if v.IsSet("leapfrog-steps") {
			cfg.LeapfrogSteps = v.GetInt("leapfrog-steps")
		}
		if v.IsSet("target-accept") {
			cfg.TargetAccept = v.GetFloat64("target-accept")
		}
		if v.IsSet("warmup") {
			cfg.WarmUp = v.GetInt("warmup")
		}
		if v.IsSet("max-tree-depth") {
			cfg.MaxTreeDepth = v.GetInt("max-tree-depth")
		}
		if v.IsSet("particles") {
			cfg.Particles = v.GetInt("particles")
		}
		if v.IsSet("resampling") {
			cfg.Resampling = v.GetString("resampling")
		}
		if v.IsSet("ess-threshold") {
			cfg.ESSThreshold = v.GetFloat64("ess-threshold")
		}
		if v.IsSet("initial") {
			init := map[string]float64{}
			for key, val := range v.GetStringMap("initial") {
				f, ok := val.(float64)
				if !ok {
					if i, isInt := val.(int); isInt {
						f, ok = float64(i), true
					}
				}
				if !ok {
					return cfg, errors.Errorf("Initial value for %s is not a number", key)
				}
				init[key] = f
			}
			cfg.Initial = init
		}
	}

	cfg.Seed = randomSeed
	return cfg, nil
}
