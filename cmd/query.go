package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/problab/stipple/rand"
)

var setValues string

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Evaluate a demo model's joint density at fixed latent values",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery()
	},
}

func init() {
	queryCmd.Flags().StringVar(&setValues, "set", "", "Latent bindings, e.g. s=1.0,m=1.0")
	queryCmd.MarkFlagRequired("set")
}

// parseBindings reads a comma-separated name=value list.
func parseBindings(s string) (map[string]float64, error) {
	out := map[string]float64{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		eq := strings.IndexByte(part, '=')
		if eq < 1 {
			return nil, errors.Errorf("Malformed binding %q (want name=value)", part)
		}

		v, err := strconv.ParseFloat(part[eq+1:], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "Malformed value in binding %q", part)
		}
		out[strings.TrimSpace(part[:eq])] = v
	}

	if len(out) < 1 {
		return nil, errors.Errorf("No bindings given")
	}
	return out, nil
}

func runQuery() error {
	mod, err := demoModel(demoName)
	if err != nil {
		return err
	}

	bound, err := parseBindings(setValues)
	if err != nil {
		return err
	}

	gen, err := rand.NewGenerator(randomSeed)
	if err != nil {
		return err
	}

	lp, err := mod.JointDensity(bound, gen)
	if err != nil {
		return err
	}

	fmt.Printf("Model: %s\n", mod.Name())
	for name, v := range bound {
		verb("Bound %s = %v\n", name, v)
	}
	fmt.Printf("Joint log-density: %.6f\n", lp)
	return nil
}
