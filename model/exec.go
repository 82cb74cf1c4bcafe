package model

import (
	"math"

	"github.com/pkg/errors"

	"github.com/problab/stipple/rand"
)

// A Context is the variable-resolution policy for one model execution:
// it decides, per latent site, whether the interpreter draws a fresh
// value, reuses a supplied value, or substitutes a sampler-owned
// proposal. The choice of Context never alters the identifier/order
// structure of the execution - only which values populate the trace.
type Context interface {
	Resolve(id Ident, d Dist, gen *rand.Generator) float64
}

// DrawFromPrior draws every latent site from its declared
// distribution.
type DrawFromPrior struct{}

// Resolve implements Context.
func (DrawFromPrior) Resolve(id Ident, d Dist, gen *rand.Generator) float64 {
	return d.Sample(gen)
}

// Condition looks latent sites up in a user-supplied value map,
// falling back to a prior draw when absent. With an empty map this is
// prior-predictive sampling.
type Condition struct {
	Values map[string]float64
}

// Resolve implements Context.
func (c Condition) Resolve(id Ident, d Dist, gen *rand.Generator) float64 {
	if v, ok := c.Values[id.String()]; ok {
		return v
	}
	return d.Sample(gen)
}

// Propose substitutes candidate values owned by an iterative sampler's
// proposal state. Sites without a candidate (the first iteration) fall
// back to a prior draw.
type Propose struct {
	Values map[string]float64
}

// Resolve implements Context.
func (p Propose) Resolve(id Ident, d Dist, gen *rand.Generator) float64 {
	if v, ok := p.Values[id.String()]; ok {
		return v
	}
	return d.Sample(gen)
}

// A Result is the outcome of one model execution: the accumulated
// joint log-density, the observation-only subtotal (importance
// samplers weight by it), and the per-site terms.
type Result struct {
	LogDensity float64
	Observed   float64
	Sites      map[string]float64
}

// Execute walks the generative program once: each declared site is
// visited exactly once, in declaration order. Observed sites score
// their datum without redrawing; latent sites resolve a value through
// ctx, store it in the trace, and score it. A value outside its
// distribution's support drives the total to -Inf but execution
// continues, so the returned trace always contains every declared
// site. A DistFunc error (unresolved dependency) is fatal.
func (m *Model) Execute(ctx Context, tr *Trace, gen *rand.Generator) (*Result, error) {
	if tr == nil {
		return nil, errors.Errorf("Model %s executed against a nil trace", m.name)
	}
	if ctx == nil {
		ctx = DrawFromPrior{}
	}

	res := &Result{
		Sites: make(map[string]float64, len(m.decls)),
	}

	for _, decl := range m.decls {
		d, err := decl.Dist(tr)
		if err != nil {
			return nil, errors.Wrapf(err, "Model %s: site %s", m.name, decl.ID)
		}
		if d == nil {
			return nil, errors.Errorf("Model %s: site %s produced a nil distribution", m.name, decl.ID)
		}

		var value float64
		observed := decl.Data.IsObserved()
		if observed {
			value = decl.Data.Value()
		} else {
			value = ctx.Resolve(decl.ID, d, gen)
		}

		lp := math.Inf(-1)
		if d.In(value) {
			lp = d.LogProb(value)
		}

		tr.Set(decl.ID, d, value, observed)
		res.Sites[decl.ID.String()] = lp
		res.LogDensity += lp
		if observed {
			res.Observed += lp
		}
	}

	if math.IsNaN(res.LogDensity) {
		res.LogDensity = math.Inf(-1)
	}

	return res, nil
}
