package model

import (
	"math"
)

// A Transform is a bijection between a distribution's support and the
// whole real line, so momentum-based samplers can integrate on an
// unbounded space. LogJacobian is the log absolute derivative of From,
// the correction added to the density when working in z-space.
//
// There is no third-party bijector package in the Go numeric
// ecosystem, so these are hand-rolled over math.
type Transform interface {
	// To maps a constrained value to unconstrained space.
	To(x float64) float64
	// From maps an unconstrained value back to the support.
	From(z float64) float64
	// LogJacobian is log|dFrom/dz| at z.
	LogJacobian(z float64) float64
}

// TransformFor selects the standard transform from a distribution's
// support bounds: identity for the real line, log for positive
// half-lines, logit for bounded intervals. Discrete distributions get
// no transform (nil): they are not HMC targets.
func TransformFor(d Dist) Transform {
	if Discrete(d) {
		return nil
	}

	lo, hi := d.Bounds()
	loInf, hiInf := math.IsInf(lo, -1), math.IsInf(hi, 1)

	switch {
	case loInf && hiInf:
		return identity{}
	case !loInf && hiInf:
		return logShift{Lo: lo}
	case loInf && !hiInf:
		return negLogShift{Hi: hi}
	default:
		return logit{Lo: lo, Hi: hi}
	}
}

type identity struct{}

func (identity) To(x float64) float64          { return x }
func (identity) From(z float64) float64        { return z }
func (identity) LogJacobian(z float64) float64 { return 0 }

// logShift maps (Lo, inf) to the real line via log(x - Lo).
type logShift struct {
	Lo float64
}

func (t logShift) To(x float64) float64          { return math.Log(x - t.Lo) }
func (t logShift) From(z float64) float64        { return t.Lo + math.Exp(z) }
func (t logShift) LogJacobian(z float64) float64 { return z }

// negLogShift maps (-inf, Hi) to the real line via log(Hi - x).
type negLogShift struct {
	Hi float64
}

func (t negLogShift) To(x float64) float64          { return math.Log(t.Hi - x) }
func (t negLogShift) From(z float64) float64        { return t.Hi - math.Exp(z) }
func (t negLogShift) LogJacobian(z float64) float64 { return z }

// logit maps the interval (Lo, Hi) to the real line.
type logit struct {
	Lo, Hi float64
}

func (t logit) To(x float64) float64 {
	p := (x - t.Lo) / (t.Hi - t.Lo)
	return math.Log(p) - math.Log1p(-p)
}

func (t logit) From(z float64) float64 {
	return t.Lo + (t.Hi-t.Lo)*sigmoid(z)
}

func (t logit) LogJacobian(z float64) float64 {
	// d/dz [Lo + (Hi-Lo)*sigmoid(z)] = (Hi-Lo)*sigmoid(z)*(1-sigmoid(z))
	s := sigmoid(z)
	return math.Log(t.Hi-t.Lo) + math.Log(s) + math.Log1p(-s)
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
