package model

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/diff/fd"

	"github.com/problab/stipple/rand"
)

// Unconstrained is the reparameterization HMC-family kernels work in:
// a fixed-order latent subset mapped through per-distribution
// transforms onto R^n. Values for latents outside the subset are
// pinned from a base trace, which is how Gibbs composition gives each
// sub-kernel a view with all other groups held fixed (and Jacobian
// corrections only over its own subset).
//
// Gradients come from the numeric backend (gonum diff/fd), treated as
// an external black box: synchronous and blocking from the sampler's
// perspective.
type Unconstrained struct {
	m          *Model
	gen        *rand.Generator
	ids        []Ident
	keys       []string
	transforms []Transform
	pinned     map[string]float64

	// last evaluated point, cached per chain (never shared)
	lastZ  []float64
	lastLp float64
}

// NewUnconstrained builds the reparameterization for the given latent
// subset. The base trace must already hold a value for every latent
// site. Discrete subset members are a configuration error: they have
// no unconstraining transform.
func NewUnconstrained(m *Model, base *Trace, subset []Ident, gen *rand.Generator) (*Unconstrained, error) {
	if len(subset) < 1 {
		return nil, errors.Errorf("Unconstrained reparameterization needs at least one site")
	}

	inSubset := make(map[string]bool, len(subset))
	for _, id := range subset {
		inSubset[id.String()] = true
	}

	u := &Unconstrained{
		m:      m,
		gen:    gen,
		pinned: make(map[string]float64),
	}

	for _, decl := range m.Decls() {
		if !decl.Latent() {
			continue
		}
		key := decl.ID.String()
		e, ok := base.At(decl.ID)
		if !ok {
			return nil, errors.Errorf("Base trace has no value for latent site %s", key)
		}

		if !inSubset[key] {
			u.pinned[key] = e.Value
			continue
		}

		t := TransformFor(e.Dist)
		if t == nil {
			return nil, errors.Errorf("Site %s has discrete distribution %s: not a gradient-sampler target", key, e.Dist)
		}
		u.ids = append(u.ids, decl.ID)
		u.keys = append(u.keys, key)
		u.transforms = append(u.transforms, t)
	}

	if len(u.ids) != len(subset) {
		return nil, errors.Errorf("Subset of %d sites matched %d latent declarations", len(subset), len(u.ids))
	}

	return u, nil
}

// Repin refreshes the pinned values for latents outside the subset
// from the given trace. Gibbs composition calls this before each
// sub-step so a kernel sees the other groups' current values.
// Invalidates the evaluation cache.
func (u *Unconstrained) Repin(tr *Trace) error {
	for key := range u.pinned {
		id, err := ParseIdent(key)
		if err != nil {
			return err
		}
		v, err := tr.Val(id)
		if err != nil {
			return errors.Wrapf(err, "Repin needs a value for %s", key)
		}
		u.pinned[key] = v
	}
	u.lastZ = nil
	return nil
}

// Dim is the dimension of the unconstrained space.
func (u *Unconstrained) Dim() int {
	return len(u.ids)
}

// Idents returns the subset in model declaration order.
func (u *Unconstrained) Idents() []Ident {
	out := make([]Ident, len(u.ids))
	copy(out, u.ids)
	return out
}

// Flatten reads the subset's current constrained values out of a trace
// and maps them to z-space.
func (u *Unconstrained) Flatten(tr *Trace) ([]float64, error) {
	z := make([]float64, len(u.ids))
	for i, id := range u.ids {
		v, err := tr.Val(id)
		if err != nil {
			return nil, errors.Wrap(err, "Flatten needs a fully populated trace")
		}
		z[i] = u.transforms[i].To(v)
	}
	return z, nil
}

// values builds the full latent assignment for a z point: transformed
// subset plus pinned remainder.
func (u *Unconstrained) values(z []float64) map[string]float64 {
	vals := make(map[string]float64, len(u.pinned)+len(z))
	for k, v := range u.pinned {
		vals[k] = v
	}
	for i, key := range u.keys {
		vals[key] = u.transforms[i].From(z[i])
	}
	return vals
}

// LogDensity is the joint log-density at a z point, including the
// log-Jacobian corrections for the subset. Non-finite model density
// propagates as -Inf.
func (u *Unconstrained) LogDensity(z []float64) float64 {
	if len(u.lastZ) == len(z) && sameVec(u.lastZ, z) {
		return u.lastLp
	}

	tr := NewTrace()
	res, err := u.m.Execute(Condition{Values: u.values(z)}, tr, u.gen)
	if err != nil {
		// Structural errors surface at Init time via the same path;
		// during a step they degrade to a rejection.
		return math.Inf(-1)
	}

	lp := res.LogDensity
	for i := range z {
		lp += u.transforms[i].LogJacobian(z[i])
	}
	if math.IsNaN(lp) {
		lp = math.Inf(-1)
	}

	u.lastZ = append(u.lastZ[:0], z...)
	u.lastLp = lp
	return lp
}

// ConstrainedLogDensity is the joint log-density of the model at the
// constrained point z maps to, without the Jacobian corrections. This
// is what belongs in chain diagnostics.
func (u *Unconstrained) ConstrainedLogDensity(z []float64) float64 {
	lp := u.LogDensity(z)
	if math.IsInf(lp, -1) {
		return lp
	}
	for i := range z {
		lp -= u.transforms[i].LogJacobian(z[i])
	}
	return lp
}

// Gradient fills dst with the gradient of LogDensity at z. A
// non-finite density region yields non-finite components, which the
// calling kernel treats as a divergence.
func (u *Unconstrained) Gradient(dst, z []float64) {
	fd.Gradient(dst, u.LogDensity, z, nil)
}

// Apply writes a z point's constrained values back into a trace by
// re-executing the model under Condition, so downstream observed sites
// are rescored consistently. Returns the execution result.
func (u *Unconstrained) Apply(z []float64, tr *Trace) (*Result, error) {
	res, err := u.m.Execute(Condition{Values: u.values(z)}, tr, u.gen)
	if err != nil {
		return nil, err
	}
	for _, id := range u.ids {
		tr.MarkTransformed(id, true)
	}
	return res, nil
}

func sameVec(a, b []float64) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
