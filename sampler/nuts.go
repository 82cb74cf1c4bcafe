package sampler

import (
	"math"

	"github.com/pkg/errors"

	"github.com/problab/stipple/model"
	"github.com/problab/stipple/rand"
)

// NUTSKernel is the No-U-Turn variant of HMC: instead of a fixed
// trajectory length it doubles a binary tree of leapfrog states until
// the trajectory turns back on itself or MaxTreeDepth is reached, then
// selects a proposal by slice sampling over the tree's valid states.
// Step size adapts by dual averaging during warm-up, like HMCDA.
type NUTSKernel struct {
	cfg Config

	m   *model.Model
	gen *rand.Generator
	u   *model.Unconstrained

	eps  float64
	da   *dualAveraging
	iter int
}

// NewNUTSKernel validates the NUTS options.
func NewNUTSKernel(cfg Config) (*NUTSKernel, error) {
	if cfg.StepSize <= 0 {
		return nil, errors.Errorf("NUTS step size must be > 0, got %v", cfg.StepSize)
	}
	if cfg.MaxTreeDepth < 1 {
		return nil, errors.Errorf("NUTS max tree depth must be >= 1, got %d", cfg.MaxTreeDepth)
	}
	if cfg.WarmUp > 0 && (cfg.TargetAccept <= 0 || cfg.TargetAccept >= 1) {
		return nil, errors.Errorf("NUTS target accept rate must be in (0,1), got %v", cfg.TargetAccept)
	}
	return &NUTSKernel{cfg: cfg}, nil
}

// NewNUTS returns a standalone NUTS sampler over all latents.
func NewNUTS(cfg Config) (Sampler, error) {
	k, err := NewNUTSKernel(cfg)
	if err != nil {
		return nil, err
	}
	return newKernelSampler(k, cfg), nil
}

// Init implements Kernel.
func (k *NUTSKernel) Init(m *model.Model, subset []model.Ident, start *model.Trace, gen *rand.Generator) error {
	u, err := model.NewUnconstrained(m, start, subset, gen)
	if err != nil {
		return errors.Wrap(err, "NUTS kernel setup failed")
	}

	k.m = m
	k.gen = gen
	k.u = u
	k.eps = k.cfg.StepSize
	if k.cfg.WarmUp > 0 {
		k.da = newDualAveraging(k.cfg.StepSize, k.cfg.TargetAccept)
	}
	return nil
}

// tree is one subtree's bookkeeping during doubling.
type tree struct {
	zMinus, pMinus []float64
	zPlus, pPlus   []float64
	zProp, pProp   []float64
	n              int  // valid states in the subtree
	ok             bool // no U-turn, no divergence
	divergent      bool
	alpha          float64 // summed Metropolis statistics for adaptation
	nAlpha         int
}

// noUTurn checks the momentum/displacement criterion across the
// subtree's endpoints.
func noUTurn(zMinus, zPlus, pMinus, pPlus []float64) bool {
	fwd, bwd := 0.0, 0.0
	for i := range zPlus {
		d := zPlus[i] - zMinus[i]
		fwd += d * pPlus[i]
		bwd += d * pMinus[i]
	}
	return fwd >= 0 && bwd >= 0
}

// oneStep is a single leapfrog move in direction dir.
func (k *NUTSKernel) oneStep(z, p []float64, dir int) ([]float64, []float64, bool) {
	zn := append([]float64{}, z...)
	pn := append([]float64{}, p...)
	eps := k.eps * float64(dir)
	ok := leapfrog(k.u, zn, pn, eps, 1)
	return zn, pn, ok
}

// buildTree grows a subtree of depth j in direction dir, slice
// threshold logu against H0.
func (k *NUTSKernel) buildTree(z, p []float64, logu float64, dir, j int, h0 float64) *tree {
	if j == 0 {
		zn, pn, ok := k.oneStep(z, p, dir)

		t := &tree{
			zMinus: zn, pMinus: pn,
			zPlus: zn, pPlus: pn,
			zProp: zn, pProp: pn,
			ok: false,
		}

		if !ok {
			t.divergent = true
			t.nAlpha = 1
			return t
		}

		h := -k.u.LogDensity(zn) + kinetic(pn)
		if logu <= -h {
			t.n = 1
		}
		if logu-maxEnergyError > -h {
			t.divergent = true
		}
		t.ok = !t.divergent

		a := math.Exp(h0 - h)
		if a > 1 || math.IsNaN(a) {
			a = 1
		}
		if !isFinite(h) {
			a = 0
		}
		t.alpha = a
		t.nAlpha = 1
		return t
	}

	// Recurse: build the inner half, then extend outward
	t := k.buildTree(z, p, logu, dir, j-1, h0)
	if !t.ok {
		return t
	}

	var t2 *tree
	if dir < 0 {
		t2 = k.buildTree(t.zMinus, t.pMinus, logu, dir, j-1, h0)
		t.zMinus, t.pMinus = t2.zMinus, t2.pMinus
	} else {
		t2 = k.buildTree(t.zPlus, t.pPlus, logu, dir, j-1, h0)
		t.zPlus, t.pPlus = t2.zPlus, t2.pPlus
	}

	if t2.n > 0 && t.n+t2.n > 0 {
		if float64(t2.n)/float64(t.n+t2.n) > k.gen.Float64() {
			t.zProp, t.pProp = t2.zProp, t2.pProp
		}
	}
	t.n += t2.n
	t.alpha += t2.alpha
	t.nAlpha += t2.nAlpha
	t.divergent = t.divergent || t2.divergent
	t.ok = t2.ok && !t.divergent && noUTurn(t.zMinus, t.zPlus, t.pMinus, t.pPlus)
	return t
}

// Step implements Kernel.
func (k *NUTSKernel) Step(cur *model.Trace) (*model.Trace, Diag, error) {
	if err := k.u.Repin(cur); err != nil {
		return nil, Diag{}, err
	}

	z0, err := k.u.Flatten(cur)
	if err != nil {
		return nil, Diag{}, err
	}
	logp0 := k.u.LogDensity(z0)

	p0 := make([]float64, len(z0))
	for i := range p0 {
		p0[i] = k.gen.NormFloat64()
	}
	h0 := -logp0 + kinetic(p0)

	// Slice variable: u ~ Uniform(0, exp(-H0)) worked in logs
	logu := math.Log(k.gen.Float64()) - h0

	zMinus := append([]float64{}, z0...)
	zPlus := append([]float64{}, z0...)
	pMinus := append([]float64{}, p0...)
	pPlus := append([]float64{}, p0...)
	zProp := append([]float64{}, z0...)
	pProp := append([]float64{}, p0...)

	n := 1
	depth := 0
	divergent := false
	alpha, nAlpha := 0.0, 0

	for depth < k.cfg.MaxTreeDepth {
		dir := -1
		if k.gen.Float64() < 0.5 {
			dir = 1
		}

		var t *tree
		if dir < 0 {
			t = k.buildTree(zMinus, pMinus, logu, dir, depth, h0)
			zMinus, pMinus = t.zMinus, t.pMinus
		} else {
			t = k.buildTree(zPlus, pPlus, logu, dir, depth, h0)
			zPlus, pPlus = t.zPlus, t.pPlus
		}

		alpha += t.alpha
		nAlpha += t.nAlpha
		divergent = divergent || t.divergent

		if t.ok && t.n > 0 {
			if float64(t.n)/float64(n) > k.gen.Float64() {
				zProp, pProp = t.zProp, t.pProp
			}
		}
		n += t.n
		depth++

		if !t.ok || !noUTurn(zMinus, zPlus, pMinus, pPlus) {
			break
		}
	}

	k.iter++
	meanAlpha := 0.0
	if nAlpha > 0 {
		meanAlpha = alpha / float64(nAlpha)
	}
	k.adaptStep(meanAlpha)

	d := Diag{StepSize: k.eps, Divergent: divergent, TreeDepth: depth}

	accepted := !sameSlice(zProp, z0)
	if !accepted {
		d.LogDensity = k.u.ConstrainedLogDensity(z0)
		d.Accepted = false
		return cur, d, nil
	}

	next := model.NewTrace()
	res, err := k.u.Apply(zProp, next)
	if err != nil {
		return nil, Diag{}, errors.Wrap(err, "NUTS accept failed to materialize trace")
	}

	d.LogDensity = res.LogDensity
	d.Accepted = true
	// Full Hamiltonian at the selected state, matching the HMC kernel
	d.Energy = -k.u.LogDensity(zProp) + kinetic(pProp)
	return next, d, nil
}

func (k *NUTSKernel) adaptStep(accept float64) {
	if k.da == nil {
		return
	}
	if k.iter <= k.cfg.WarmUp {
		k.eps = k.da.update(accept)
		if k.iter == k.cfg.WarmUp {
			k.eps = k.da.final()
			k.da = nil
		}
	}
}

func sameSlice(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
