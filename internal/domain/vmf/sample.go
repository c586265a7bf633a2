package vmf

import (
	"math"
	"math/rand"
)

// Sample draws an angle (radians) from a von Mises distribution using the
// Best–Fisher rejection sampler.
func Sample(rng *rand.Rand, mu, kappa float64) float64 {
	if kappa < 1e-8 {
		return mu + (2*rng.Float64()-1)*math.Pi
	}
	tau := 1 + math.Sqrt(1+4*kappa*kappa)
	rho := (tau - math.Sqrt(2*tau)) / (2 * kappa)
	r := (1 + rho*rho) / (2 * rho)

	for {
		u1, u2, u3 := rng.Float64(), rng.Float64(), rng.Float64()
		z := math.Cos(math.Pi * u1)
		f := (1 + r*z) / (r + z)
		c := kappa * (r - f)
		if c*(2-c)-u2 > 0 || math.Log(c/u2)+1-c >= 0 {
			theta := math.Acos(math.Max(-1, math.Min(1, f)))
			if u3 < 0.5 {
				theta = -theta
			}
			return math.Remainder(mu+theta, 2*math.Pi)
		}
	}
}
