package model

import (
	"fmt"
)

// Datum is the value slot attached to a declaration: either an
// observed literal or missing. A missing slot makes the site latent.
// The distinction is fixed at model construction, never inferred at
// sampling time.
type Datum struct {
	observed bool
	value    float64
}

// Observed returns a bound data slot.
func Observed(v float64) Datum {
	return Datum{observed: true, value: v}
}

// Missing returns an unbound (latent) data slot.
func Missing() Datum {
	return Datum{}
}

// IsObserved reports whether the slot carries data.
func (d Datum) IsObserved() bool {
	return d.observed
}

// Value returns the observed literal. Only meaningful when IsObserved.
func (d Datum) Value() float64 {
	return d.value
}

func (d Datum) String() string {
	if d.observed {
		return fmt.Sprintf("Observed(%g)", d.value)
	}
	return "Missing"
}

// A DistFunc computes a site's distribution from already-resolved
// values. Asking the trace for an identifier that has not been
// resolved yet is a structural error: declaration order must respect
// data dependency.
type DistFunc func(tr *Trace) (Dist, error)

// Fixed wraps a constant distribution as a DistFunc, for sites whose
// parameters do not depend on other variables.
func Fixed(d Dist) DistFunc {
	return func(*Trace) (Dist, error) {
		return d, nil
	}
}

// A Decl is one random-variable site in a model: its identifier, how
// to build its distribution, and whether it is bound to data.
type Decl struct {
	ID   Ident
	Dist DistFunc
	Data Datum
}

// Latent reports whether the site is to be inferred.
func (d Decl) Latent() bool {
	return !d.Data.IsObserved()
}
