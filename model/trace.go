package model

import (
	"github.com/pkg/errors"
)

// An Entry is the per-site record inside a Trace.
type Entry struct {
	Value       float64
	Dist        Dist
	Observed    bool
	Transformed bool // true when the value was produced through an unconstraining transform
}

// A Trace maps each declared site to its current value and metadata.
// It is mutated only during a model execution, by the active Context's
// resolution policy, and lives exactly as long as the execution or the
// chain's retained copy.
type Trace struct {
	order   []Ident
	entries map[string]*Entry
}

// NewTrace returns an empty trace.
func NewTrace() *Trace {
	return &Trace{
		entries: make(map[string]*Entry),
	}
}

// Clone returns a deep copy; chains retain clones so later executions
// can keep mutating the working trace.
func (tr *Trace) Clone() *Trace {
	cp := &Trace{
		order:   make([]Ident, len(tr.order)),
		entries: make(map[string]*Entry, len(tr.entries)),
	}
	copy(cp.order, tr.order)
	for k, e := range tr.entries {
		dup := *e
		cp.entries[k] = &dup
	}
	return cp
}

// Set records a value for a site, appending to the visit order on
// first sight. The execution loop is the only intended caller.
func (tr *Trace) Set(id Ident, d Dist, value float64, observed bool) {
	key := id.String()
	if e, ok := tr.entries[key]; ok {
		e.Value = value
		e.Dist = d
		e.Observed = observed
		return
	}

	tr.order = append(tr.order, id)
	tr.entries[key] = &Entry{
		Value:    value,
		Dist:     d,
		Observed: observed,
	}
}

// MarkTransformed flags a site as living behind an unconstraining
// transform for the current sampler.
func (tr *Trace) MarkTransformed(id Ident, on bool) {
	if e, ok := tr.entries[id.String()]; ok {
		e.Transformed = on
	}
}

// At returns the full entry for a site.
func (tr *Trace) At(id Ident) (*Entry, bool) {
	e, ok := tr.entries[id.String()]
	return e, ok
}

// Val returns the resolved value for a site. An unresolved identifier
// is a dependency error: distribution parameters may only reference
// already-declared sites.
func (tr *Trace) Val(id Ident) (float64, error) {
	e, ok := tr.entries[id.String()]
	if !ok {
		return 0, errors.Errorf("Identifier %s is not resolved (declaration order must respect dependencies)", id)
	}
	return e.Value, nil
}

// Idents returns the sites in visit order.
func (tr *Trace) Idents() []Ident {
	out := make([]Ident, len(tr.order))
	copy(out, tr.order)
	return out
}

// Len is the number of recorded sites.
func (tr *Trace) Len() int {
	return len(tr.order)
}

// Values returns a flat name->value map of every recorded site.
// Useful for building Condition contexts from a previous iteration.
func (tr *Trace) Values() map[string]float64 {
	out := make(map[string]float64, len(tr.entries))
	for k, e := range tr.entries {
		out[k] = e.Value
	}
	return out
}

// LatentValues is Values restricted to non-observed sites.
func (tr *Trace) LatentValues() map[string]float64 {
	out := make(map[string]float64)
	for k, e := range tr.entries {
		if !e.Observed {
			out[k] = e.Value
		}
	}
	return out
}
