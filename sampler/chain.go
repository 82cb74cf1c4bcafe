package sampler

import (
	"github.com/pkg/errors"

	"github.com/problab/stipple/buffer"
	"github.com/problab/stipple/model"
)

// DefaultWindow is the convergence-window size used when a caller
// does not specify one.
const DefaultWindow = 200

// A Chain is the ordered collection of accepted traces for one
// sampling run, plus per-iteration diagnostics. Append-only during
// sampling, then effectively immutable: queries hand back copies.
type Chain struct {
	Target *model.Model
	Traces []*model.Trace
	Diags  []Diag

	window  map[string]*buffer.CircularFloat
	winSize int
}

// NewChain returns an empty chain for the given model. window is the
// size of the per-variable sliding window used for drift diagnostics;
// <= 0 uses DefaultWindow.
func NewChain(m *model.Model, window int) (*Chain, error) {
	if m == nil {
		return nil, errors.Errorf("A chain requires a model")
	}
	if window <= 0 {
		window = DefaultWindow
	}

	c := &Chain{
		Target:  m,
		window:  make(map[string]*buffer.CircularFloat),
		winSize: window,
	}
	for _, id := range m.Latents() {
		c.window[id.String()] = buffer.NewCircularFloat(window)
	}
	return c, nil
}

// Append records one iteration. The chain takes ownership of the
// trace: callers must not mutate it afterwards.
func (c *Chain) Append(tr *model.Trace, d Diag) error {
	if tr == nil {
		return errors.Errorf("Can not append a nil trace")
	}
	if tr.Len() != c.Target.Len() {
		return errors.Errorf("Trace has %d sites, model %s declares %d", tr.Len(), c.Target.Name(), c.Target.Len())
	}

	c.Traces = append(c.Traces, tr)
	c.Diags = append(c.Diags, d)

	for key, win := range c.window {
		id, err := model.ParseIdent(key)
		if err != nil {
			return err
		}
		v, err := tr.Val(id)
		if err != nil {
			return errors.Wrapf(err, "Appended trace is missing %s", key)
		}
		win.Add(v)
	}
	return nil
}

// Len is the number of recorded iterations.
func (c *Chain) Len() int {
	return len(c.Traces)
}

// Get returns the sequence of values for one identifier across all
// iterations.
func (c *Chain) Get(id model.Ident) ([]float64, error) {
	if !c.Target.HasIdent(id) {
		return nil, errors.Errorf("Identifier %s is not declared in model %s", id, c.Target.Name())
	}

	out := make([]float64, len(c.Traces))
	for i, tr := range c.Traces {
		v, err := tr.Val(id)
		if err != nil {
			return nil, errors.Wrapf(err, "Chain trace %d is missing %s", i, id)
		}
		out[i] = v
	}
	return out, nil
}

// Slice returns a view of iterations [start, end). The returned chain
// shares trace pointers with the original (traces are immutable once
// appended) but has fresh diagnostic windows.
func (c *Chain) Slice(start, end int) (*Chain, error) {
	if start < 0 || end > len(c.Traces) || start > end {
		return nil, errors.Errorf("Invalid slice [%d, %d) of chain with %d iterations", start, end, len(c.Traces))
	}

	out, err := NewChain(c.Target, c.winSize)
	if err != nil {
		return nil, err
	}
	for i := start; i < end; i++ {
		if err := out.Append(c.Traces[i], c.Diags[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Divergences counts iterations flagged divergent.
func (c *Chain) Divergences() int {
	n := 0
	for _, d := range c.Diags {
		if d.Divergent {
			n++
		}
	}
	return n
}

// AcceptRate is the fraction of accepted iterations.
func (c *Chain) AcceptRate() float64 {
	if len(c.Diags) == 0 {
		return 0
	}
	n := 0
	for _, d := range c.Diags {
		if d.Accepted {
			n++
		}
	}
	return float64(n) / float64(len(c.Diags))
}

// Weighted reports whether any iteration carries a non-zero importance
// weight (importance sampling and SMC chains do).
func (c *Chain) Weighted() bool {
	for _, d := range c.Diags {
		if d.LogWeight != 0 {
			return true
		}
	}
	return false
}

// SplitDrift compares the means of the older and newer halves of the
// sliding window for one latent. Large values mean the chain is still
// moving. Second return is false until the window has filled.
func (c *Chain) SplitDrift(id model.Ident) (float64, bool) {
	win, ok := c.window[id.String()]
	if !ok {
		return 0, false
	}
	first, second, ok := win.HalfMeans()
	if !ok {
		return 0, false
	}
	d := second - first
	if d < 0 {
		d = -d
	}
	return d, true
}

// A MultiChain is a set of independent chains over the same model,
// indexed by (iteration, chain id).
type MultiChain struct {
	Chains []*Chain
}

// MergeChains combines independent chains into a multi-chain view.
// Every chain must target the same model and declare the identical
// identifier set; a mismatch is a fatal error.
func MergeChains(chains []*Chain) (*MultiChain, error) {
	if len(chains) < 1 {
		return nil, errors.Errorf("Can not merge 0 chains")
	}

	ref := chains[0].Target.Idents()
	for i, ch := range chains[1:] {
		ids := ch.Target.Idents()
		if len(ids) != len(ref) {
			return nil, errors.Errorf("Chain %d has %d identifiers, expected %d", i+1, len(ids), len(ref))
		}
		for j := range ids {
			if ids[j].String() != ref[j].String() {
				return nil, errors.Errorf("Chain %d identifier mismatch: %s != %s", i+1, ids[j], ref[j])
			}
		}
	}

	return &MultiChain{Chains: chains}, nil
}

// Get returns per-chain value sequences for one identifier.
func (mc *MultiChain) Get(id model.Ident) ([][]float64, error) {
	out := make([][]float64, len(mc.Chains))
	for i, ch := range mc.Chains {
		vals, err := ch.Get(id)
		if err != nil {
			return nil, errors.Wrapf(err, "Chain %d", i)
		}
		out[i] = vals
	}
	return out, nil
}

// Divergences sums divergence counts across chains.
func (mc *MultiChain) Divergences() int {
	n := 0
	for _, ch := range mc.Chains {
		n += ch.Divergences()
	}
	return n
}
