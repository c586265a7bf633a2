// Package vmf fits mixtures of von Mises–Fisher distributions to 2-D
// directions.
package vmf

import (
	"math"
)

// Dimension of the directions handled by this package.
const Dimension = 2

// Regime selects how concentration parameters are shared across components.
type Regime string

// Concentration regimes.
const (
	// Shared uses one concentration broadcast to every component.
	Shared Regime = "shared"
	// Independent gives each component its own concentration.
	Independent Regime = "independent"
)

// Regimes lists every regime, simplest first.
var Regimes = []Regime{Shared, Independent}

// Direction is a unit vector.
type Direction struct {
	X float64
	Y float64
}

// Unit normalizes (x, y). It reports false for the zero vector.
func Unit(x, y float64) (Direction, bool) {
	r := math.Hypot(x, y)
	if r == 0 || math.IsNaN(r) || math.IsInf(r, 0) {
		return Direction{}, false
	}
	return Direction{X: x / r, Y: y / r}, true
}

// FromAngle returns the unit vector at angle rad.
func FromAngle(rad float64) Direction {
	return Direction{X: math.Cos(rad), Y: math.Sin(rad)}
}

// Angle returns the direction angle in radians, (-π, π].
func (d Direction) Angle() float64 { return math.Atan2(d.Y, d.X) }

// Dot returns the inner product.
func (d Direction) Dot(o Direction) float64 { return d.X*o.X + d.Y*o.Y }

// LogDensity returns the log density of a von Mises distribution with mean
// mu and concentration kappa at direction x.
func LogDensity(x, mu Direction, kappa float64) float64 {
	return kappa*x.Dot(mu) - math.Log(2*math.Pi) - LogI0(kappa)
}

// ParamCount returns the number of free parameters of a k component mixture:
// one angle per mean, k-1 mixing weights and one or k concentrations.
func ParamCount(k int, regime Regime) int {
	kappas := k
	if regime == Shared {
		kappas = 1
	}
	return k*(Dimension-1) + (k - 1) + kappas
}

// BIC returns -2*logLik + params*ln(n).
func BIC(logLik float64, params, n int) float64 {
	return -2*logLik + float64(params)*math.Log(float64(n))
}

// Model is a fitted mixture. Components are ordered by mean angle.
type Model struct {
	K          int
	Regime     Regime
	Means      []Direction
	Kappas     []float64 // len K, or 1 for the shared regime
	Weights    []float64
	LogLik     float64
	Iterations int
	Converged  bool // false when the winning restart stopped at the iteration cap
	Restarts   int
	Failed     int // restarts discarded as collapsed or non-finite
	N          int
	Params     int
	BIC        float64
}

// Kappa returns the concentration of component j.
func (m *Model) Kappa(j int) float64 {
	if len(m.Kappas) == 1 {
		return m.Kappas[0]
	}
	return m.Kappas[j]
}

// Posterior returns the component membership probabilities of x.
func (m *Model) Posterior(x Direction) []float64 {
	logp := make([]float64, m.K)
	for j := 0; j < m.K; j++ {
		logp[j] = math.Log(m.Weights[j]) + LogDensity(x, m.Means[j], m.Kappa(j))
	}
	norm := logSumExp(logp)
	for j := range logp {
		logp[j] = math.Exp(logp[j] - norm)
	}
	return logp
}

// Assign returns the index of the most likely component for x. Ties go to
// the lowest index.
func (m *Model) Assign(x Direction) int {
	best, bestLog := 0, math.Inf(-1)
	for j := 0; j < m.K; j++ {
		l := math.Log(m.Weights[j]) + LogDensity(x, m.Means[j], m.Kappa(j))
		if l > bestLog {
			best, bestLog = j, l
		}
	}
	return best
}

// LogLikelihood evaluates the mixture log-likelihood of dirs.
func (m *Model) LogLikelihood(dirs []Direction) float64 {
	logp := make([]float64, m.K)
	total := 0.0
	for _, x := range dirs {
		for j := 0; j < m.K; j++ {
			logp[j] = math.Log(m.Weights[j]) + LogDensity(x, m.Means[j], m.Kappa(j))
		}
		total += logSumExp(logp)
	}
	return total
}

func logSumExp(v []float64) float64 {
	maxV := math.Inf(-1)
	for _, x := range v {
		if x > maxV {
			maxV = x
		}
	}
	if math.IsInf(maxV, -1) {
		return maxV
	}
	sum := 0.0
	for _, x := range v {
		sum += math.Exp(x - maxV)
	}
	return maxV + math.Log(sum)
}
