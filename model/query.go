package model

import (
	"math"

	"github.com/pkg/errors"

	"github.com/problab/stipple/rand"
)

// JointDensity computes the joint log-density over the bound subset:
// every site named in bound plus every observed site contributes its
// log-density term; latents left out of bound ("ignore") are drawn
// from their priors so downstream distributions are parameterized, but
// contribute nothing. Binding an undeclared identifier is a
// configuration error.
//
// Equivalent to executing the model under Condition and summing the
// per-site terms for the selected sites, which is exactly how it is
// implemented - so it round-trips with Result.Sites by construction.
func (m *Model) JointDensity(bound map[string]float64, gen *rand.Generator) (float64, error) {
	for key := range bound {
		id, err := ParseIdent(key)
		if err != nil {
			return 0, errors.Wrapf(err, "Bad bound identifier %q", key)
		}
		if !m.HasIdent(id) {
			return 0, errors.Errorf("Bound identifier %s is not declared in model %s", id, m.name)
		}
	}

	tr := NewTrace()
	res, err := m.Execute(Condition{Values: bound}, tr, gen)
	if err != nil {
		return 0, errors.Wrapf(err, "Query execution failed for model %s", m.name)
	}

	total := 0.0
	for _, decl := range m.decls {
		key := decl.ID.String()
		_, isBound := bound[key]
		if isBound || decl.Data.IsObserved() {
			total += res.Sites[key]
		}
	}

	if math.IsNaN(total) {
		total = math.Inf(-1)
	}
	return total, nil
}
