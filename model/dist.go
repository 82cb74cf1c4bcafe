package model

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Dist is the boundary to the external distribution library. Every
// declared site carries one. The distuv types do the real work; the
// wrappers pin down support bounds (needed to pick an unconstraining
// transform) and turn invalid parameters or out-of-support points into
// -Inf log-density instead of NaN, so rejection-style samplers can
// recover instead of aborting.
type Dist interface {
	// Sample draws from the distribution using the supplied source.
	Sample(src rand.Source) float64
	// LogProb is the log-density at x (-Inf outside the support or for
	// invalid parameters).
	LogProb(x float64) float64
	// Mean is the analytic mean (NaN where undefined).
	Mean() float64
	// Bounds is the support interval (open at infinite endpoints).
	Bounds() (lo, hi float64)
	// In reports whether x lies in the support.
	In(x float64) bool

	fmt.Stringer
}

func finiteOrNegInf(lp float64) float64 {
	if math.IsNaN(lp) {
		return math.Inf(-1)
	}
	return lp
}

// Normal is an unbounded Gaussian with mean Mu and stddev Sigma.
type Normal struct {
	Mu, Sigma float64
}

func (d Normal) Sample(src rand.Source) float64 {
	return distuv.Normal{Mu: d.Mu, Sigma: d.Sigma, Src: src}.Rand()
}

func (d Normal) LogProb(x float64) float64 {
	if d.Sigma <= 0 {
		return math.Inf(-1)
	}
	return finiteOrNegInf(distuv.Normal{Mu: d.Mu, Sigma: d.Sigma}.LogProb(x))
}

func (d Normal) Mean() float64              { return d.Mu }
func (d Normal) Bounds() (float64, float64) { return math.Inf(-1), math.Inf(1) }
func (d Normal) In(x float64) bool          { return !math.IsNaN(x) && !math.IsInf(x, 0) }
func (d Normal) String() string             { return fmt.Sprintf("Normal(%g, %g)", d.Mu, d.Sigma) }

// LogNormal has positive support; Mu/Sigma parameterize the log scale.
type LogNormal struct {
	Mu, Sigma float64
}

func (d LogNormal) Sample(src rand.Source) float64 {
	return distuv.LogNormal{Mu: d.Mu, Sigma: d.Sigma, Src: src}.Rand()
}

func (d LogNormal) LogProb(x float64) float64 {
	if d.Sigma <= 0 || x <= 0 {
		return math.Inf(-1)
	}
	return finiteOrNegInf(distuv.LogNormal{Mu: d.Mu, Sigma: d.Sigma}.LogProb(x))
}

func (d LogNormal) Mean() float64              { return math.Exp(d.Mu + 0.5*d.Sigma*d.Sigma) }
func (d LogNormal) Bounds() (float64, float64) { return 0, math.Inf(1) }
func (d LogNormal) In(x float64) bool          { return x > 0 && !math.IsInf(x, 0) }
func (d LogNormal) String() string             { return fmt.Sprintf("LogNormal(%g, %g)", d.Mu, d.Sigma) }

// Gamma with shape Alpha and rate Beta.
type Gamma struct {
	Alpha, Beta float64
}

func (d Gamma) Sample(src rand.Source) float64 {
	return distuv.Gamma{Alpha: d.Alpha, Beta: d.Beta, Src: src}.Rand()
}

func (d Gamma) LogProb(x float64) float64 {
	if d.Alpha <= 0 || d.Beta <= 0 || x <= 0 {
		return math.Inf(-1)
	}
	return finiteOrNegInf(distuv.Gamma{Alpha: d.Alpha, Beta: d.Beta}.LogProb(x))
}

func (d Gamma) Mean() float64              { return d.Alpha / d.Beta }
func (d Gamma) Bounds() (float64, float64) { return 0, math.Inf(1) }
func (d Gamma) In(x float64) bool          { return x > 0 && !math.IsInf(x, 0) }
func (d Gamma) String() string             { return fmt.Sprintf("Gamma(%g, %g)", d.Alpha, d.Beta) }

// InverseGamma with shape Alpha and scale Beta.
type InverseGamma struct {
	Alpha, Beta float64
}

func (d InverseGamma) Sample(src rand.Source) float64 {
	return distuv.InverseGamma{Alpha: d.Alpha, Beta: d.Beta, Src: src}.Rand()
}

func (d InverseGamma) LogProb(x float64) float64 {
	if d.Alpha <= 0 || d.Beta <= 0 || x <= 0 {
		return math.Inf(-1)
	}
	return finiteOrNegInf(distuv.InverseGamma{Alpha: d.Alpha, Beta: d.Beta}.LogProb(x))
}

// Mean is only defined for Alpha > 1.
func (d InverseGamma) Mean() float64 {
	if d.Alpha <= 1 {
		return math.NaN()
	}
	return d.Beta / (d.Alpha - 1)
}

func (d InverseGamma) Bounds() (float64, float64) { return 0, math.Inf(1) }
func (d InverseGamma) In(x float64) bool          { return x > 0 && !math.IsInf(x, 0) }
func (d InverseGamma) String() string {
	return fmt.Sprintf("InverseGamma(%g, %g)", d.Alpha, d.Beta)
}

// Beta on the open unit interval.
type Beta struct {
	Alpha, Beta float64
}

func (d Beta) Sample(src rand.Source) float64 {
	return distuv.Beta{Alpha: d.Alpha, Beta: d.Beta, Src: src}.Rand()
}

func (d Beta) LogProb(x float64) float64 {
	if d.Alpha <= 0 || d.Beta <= 0 || x <= 0 || x >= 1 {
		return math.Inf(-1)
	}
	return finiteOrNegInf(distuv.Beta{Alpha: d.Alpha, Beta: d.Beta}.LogProb(x))
}

func (d Beta) Mean() float64              { return d.Alpha / (d.Alpha + d.Beta) }
func (d Beta) Bounds() (float64, float64) { return 0, 1 }
func (d Beta) In(x float64) bool          { return x > 0 && x < 1 }
func (d Beta) String() string             { return fmt.Sprintf("Beta(%g, %g)", d.Alpha, d.Beta) }

// Uniform on the interval (Min, Max).
type Uniform struct {
	Min, Max float64
}

func (d Uniform) Sample(src rand.Source) float64 {
	return distuv.Uniform{Min: d.Min, Max: d.Max, Src: src}.Rand()
}

func (d Uniform) LogProb(x float64) float64 {
	if d.Max <= d.Min || x < d.Min || x > d.Max {
		return math.Inf(-1)
	}
	return -math.Log(d.Max - d.Min)
}

func (d Uniform) Mean() float64              { return 0.5 * (d.Min + d.Max) }
func (d Uniform) Bounds() (float64, float64) { return d.Min, d.Max }
func (d Uniform) In(x float64) bool          { return x > d.Min && x < d.Max }
func (d Uniform) String() string             { return fmt.Sprintf("Uniform(%g, %g)", d.Min, d.Max) }

// Exponential with rate Rate.
type Exponential struct {
	Rate float64
}

func (d Exponential) Sample(src rand.Source) float64 {
	return distuv.Exponential{Rate: d.Rate, Src: src}.Rand()
}

func (d Exponential) LogProb(x float64) float64 {
	if d.Rate <= 0 || x < 0 {
		return math.Inf(-1)
	}
	return finiteOrNegInf(distuv.Exponential{Rate: d.Rate}.LogProb(x))
}

func (d Exponential) Mean() float64              { return 1 / d.Rate }
func (d Exponential) Bounds() (float64, float64) { return 0, math.Inf(1) }
func (d Exponential) In(x float64) bool          { return x > 0 && !math.IsInf(x, 0) }
func (d Exponential) String() string             { return fmt.Sprintf("Exponential(%g)", d.Rate) }

// Poisson over non-negative integer counts. Discrete: never given an
// unconstraining transform, so gradient-based kernels can not target a
// latent Poisson site; sample those with a forward-simulating sampler
// (prior, importance, SMC) or keep the site observed.
type Poisson struct {
	Lambda float64
}

func (d Poisson) Sample(src rand.Source) float64 {
	return distuv.Poisson{Lambda: d.Lambda, Src: src}.Rand()
}

func (d Poisson) LogProb(x float64) float64 {
	if d.Lambda <= 0 || x < 0 || x != math.Floor(x) {
		return math.Inf(-1)
	}
	return finiteOrNegInf(distuv.Poisson{Lambda: d.Lambda}.LogProb(x))
}

func (d Poisson) Mean() float64              { return d.Lambda }
func (d Poisson) Bounds() (float64, float64) { return 0, math.Inf(1) }
func (d Poisson) In(x float64) bool          { return x >= 0 && x == math.Floor(x) }
func (d Poisson) String() string             { return fmt.Sprintf("Poisson(%g)", d.Lambda) }

// Discrete reports whether the distribution has countable support.
func Discrete(d Dist) bool {
	switch d.(type) {
	case Poisson, Bernoulli:
		return true
	}
	return false
}

// Bernoulli over {0, 1}.
type Bernoulli struct {
	P float64
}

func (d Bernoulli) Sample(src rand.Source) float64 {
	return distuv.Bernoulli{P: d.P, Src: src}.Rand()
}

func (d Bernoulli) LogProb(x float64) float64 {
	if d.P < 0 || d.P > 1 || (x != 0 && x != 1) {
		return math.Inf(-1)
	}
	return finiteOrNegInf(distuv.Bernoulli{P: d.P}.LogProb(x))
}

func (d Bernoulli) Mean() float64              { return d.P }
func (d Bernoulli) Bounds() (float64, float64) { return 0, 1 }
func (d Bernoulli) In(x float64) bool          { return x == 0 || x == 1 }
func (d Bernoulli) String() string             { return fmt.Sprintf("Bernoulli(%g)", d.P) }
