package vmf

// Option applies a configuration option to the EMFitter.
type Option func(*EMFitter)

// WithMaxIterations caps the EM iterations of a single restart.
func WithMaxIterations(n int) Option {
	return func(f *EMFitter) {
		if n > 0 {
			f.maxIterations = n
		}
	}
}

// WithTolerance sets the relative log-likelihood change that counts as converged.
func WithTolerance(tol float64) Option {
	return func(f *EMFitter) {
		if tol > 0 {
			f.tolerance = tol
		}
	}
}

// WithMaxKappa caps concentration estimates.
func WithMaxKappa(k float64) Option {
	return func(f *EMFitter) {
		if k > 0 {
			f.maxKappa = k
		}
	}
}

// WithMinComponentMass sets the smallest expected member count a component
// may keep before the restart is treated as collapsed.
func WithMinComponentMass(m float64) Option {
	return func(f *EMFitter) {
		if m > 0 {
			f.minMass = m
		}
	}
}
