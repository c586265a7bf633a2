package vmf

import "math"

// Polynomial approximations of the modified Bessel functions I0 and I1
// (Abramowitz & Stegun 9.8.1 to 9.8.4). Accurate to about 1e-7 relative.
const besselSplit = 3.75

// besselScaled returns I0 and I1 divided by e^x/sqrt(x) for x >= 3.75, and
// the raw values otherwise. The boolean reports which form was used.
func besselScaled(x float64) (i0, i1 float64, scaled bool) {
	if x < besselSplit {
		t := x / besselSplit
		t2 := t * t
		i0 = 1 + t2*(3.5156229+t2*(3.0899424+t2*(1.2067492+t2*(0.2659732+t2*(0.0360768+t2*0.0045813)))))
		i1 = x * (0.5 + t2*(0.87890594+t2*(0.51498869+t2*(0.15084934+t2*(0.02658733+t2*(0.00301532+t2*0.00032411))))))
		return i0, i1, false
	}
	u := besselSplit / x
	i0 = 0.39894228 + u*(0.01328592+u*(0.00225319+u*(-0.00157565+u*(0.00916281+u*(-0.02057706+u*(0.02635537+u*(-0.01647633+u*0.00392377)))))))
	i1 = 0.39894228 + u*(-0.03988024+u*(-0.00362018+u*(0.00163801+u*(-0.01031555+u*(0.02282967+u*(-0.02895312+u*(0.01787654-u*0.00420059)))))))
	return i0, i1, true
}

// LogI0 returns log I0(kappa) without overflowing for large kappa.
func LogI0(kappa float64) float64 {
	i0, _, scaled := besselScaled(math.Abs(kappa))
	if !scaled {
		return math.Log(i0)
	}
	k := math.Abs(kappa)
	return k - 0.5*math.Log(k) + math.Log(i0)
}

// A returns the mean resultant length I1(kappa)/I0(kappa) of a circular
// von Mises distribution with concentration kappa >= 0.
func A(kappa float64) float64 {
	if kappa <= 0 {
		return 0
	}
	i0, i1, _ := besselScaled(kappa)
	return i1 / i0
}

// InverseA solves A(kappa) = r for kappa. It returns 0 for r <= 0 and
// +Inf for r >= 1.
func InverseA(r float64) float64 {
	const (
		maxSteps = 50
		relTol   = 1e-12
	)
	switch {
	case r <= 0:
		return 0
	case r >= 1:
		return math.Inf(1)
	}

	kappa := r * (2 - r*r) / (1 - r*r)
	for i := 0; i < maxSteps; i++ {
		a := A(kappa)
		deriv := 1 - a/kappa - a*a
		if deriv <= 0 {
			break
		}
		next := kappa - (a-r)/deriv
		if next <= 0 {
			next = kappa / 2
		}
		if math.Abs(next-kappa) <= relTol*kappa {
			return next
		}
		kappa = next
	}
	return kappa
}

// ApproxKappa is Fisher's piecewise estimate of kappa from a mean resultant
// length. It is used to seed restarts.
func ApproxKappa(r float64) float64 {
	switch {
	case r < 0.53:
		return 2*r + r*r*r + 5*r*r*r*r*r/6
	case r < 0.85:
		return -0.4 + 1.39*r + 0.43/(1-r)
	default:
		return 1 / (r*r*r - 4*r*r + 3*r)
	}
}
