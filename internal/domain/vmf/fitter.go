package vmf

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/okian/puntscope/internal/domain/model"
)

// Default fitter configuration constants.
const (
	defaultMaxIterations = 500
	defaultTolerance     = 1.5e-8
	defaultMaxKappa      = 500.0
	defaultMinMass       = 1e-3
	minSeedKappa         = 1.0
)

// ErrInvalidRequest is returned for arguments no fit can satisfy.
var ErrInvalidRequest = errors.New("invalid fit request")

// Fitter fits a k component directional mixture to unit vectors, keeping
// the best of several random restarts.
type Fitter interface {
	Fit(ctx context.Context, dirs []Direction, k int, regime Regime, restarts int, seed int64) (*Model, error)
}

// EMFitter implements Fitter with expectation–maximisation.
type EMFitter struct {
	maxIterations int
	tolerance     float64
	maxKappa      float64
	minMass       float64
}

// NewEMFitter creates an EM fitter with configuration options.
func NewEMFitter(opts ...Option) *EMFitter {
	f := &EMFitter{
		maxIterations: defaultMaxIterations,
		tolerance:     defaultTolerance,
		maxKappa:      defaultMaxKappa,
		minMass:       defaultMinMass,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// restartResult is the outcome of one EM run.
type restartResult struct {
	means      []Direction
	kappas     []float64
	weights    []float64
	logLik     float64
	iterations int
	converged  bool
}

// Fit runs restarts independent EM runs and returns the one with the highest
// log-likelihood. A restart that hits the iteration cap still counts, since
// EM never lowers the likelihood; the model records whether the winner
// converged. Restarts that collapse a component or reach a non-finite
// likelihood are discarded; when none survive a FitConvergenceError is
// returned.
func (f *EMFitter) Fit(ctx context.Context, dirs []Direction, k int, regime Regime, restarts int, seed int64) (*Model, error) {
	if k < 1 || restarts < 1 {
		return nil, fmt.Errorf("%w: k=%d restarts=%d", ErrInvalidRequest, k, restarts)
	}
	if regime != Shared && regime != Independent {
		return nil, fmt.Errorf("%w: unknown regime %q", ErrInvalidRequest, regime)
	}
	if len(dirs) < k {
		return nil, &model.FitConvergenceError{K: k, Regime: string(regime),
			Reason: fmt.Sprintf("%d directions cannot support %d components", len(dirs), k)}
	}

	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // reproducible restarts
	var (
		best    *restartResult
		failed  int
		lastErr error
	)
	for r := 0; r < restarts; r++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("fit k=%d regime=%s interrupted: %w", k, regime, err)
		}
		res, err := f.run(ctx, dirs, k, regime, rng)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("fit k=%d regime=%s interrupted: %w", k, regime, ctxErr)
			}
			failed++
			lastErr = err
			continue
		}
		if best == nil || res.logLik > best.logLik {
			best = res
		}
	}
	if best == nil {
		return nil, &model.FitConvergenceError{K: k, Regime: string(regime),
			Reason: fmt.Sprintf("all %d restarts failed, last: %v", restarts, lastErr)}
	}

	m := &Model{
		K:          k,
		Regime:     regime,
		Means:      best.means,
		Kappas:     best.kappas,
		Weights:    best.weights,
		LogLik:     best.logLik,
		Iterations: best.iterations,
		Converged:  best.converged,
		Restarts:   restarts,
		Failed:     failed,
		N:          len(dirs),
		Params:     ParamCount(k, regime),
	}
	m.BIC = BIC(m.LogLik, m.Params, m.N)
	sortComponents(m)
	return m, nil
}

// run performs a single EM restart.
func (f *EMFitter) run(ctx context.Context, dirs []Direction, k int, regime Regime, rng *rand.Rand) (*restartResult, error) {
	n := len(dirs)
	res := f.seed(dirs, k, regime, rng)

	resp := make([][]float64, n)
	for i := range resp {
		resp[i] = make([]float64, k)
	}
	logp := make([]float64, k)
	prevLL := math.Inf(-1)

	for iter := 1; iter <= f.maxIterations; iter++ {
		if iter%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		ll, err := res.expect(dirs, resp, logp)
		if err != nil {
			return nil, err
		}
		res.logLik = ll
		res.iterations = iter
		if math.Abs(ll-prevLL) <= f.tolerance*(1+math.Abs(ll)) {
			res.converged = true
			return res, nil
		}
		prevLL = ll

		// M-step.
		sumLen := 0.0
		for j := 0; j < k; j++ {
			var mass, sx, sy float64
			for i, x := range dirs {
				mass += resp[i][j]
				sx += resp[i][j] * x.X
				sy += resp[i][j] * x.Y
			}
			if mass < f.minMass {
				return nil, fmt.Errorf("component %d collapsed (mass %.3g)", j, mass)
			}
			length := math.Hypot(sx, sy)
			if length == 0 {
				return nil, fmt.Errorf("component %d has no mean direction", j)
			}
			res.weights[j] = mass / float64(n)
			res.means[j] = Direction{X: sx / length, Y: sy / length}
			if regime == Independent {
				res.kappas[j] = f.clampKappa(InverseA(length / mass))
			}
			sumLen += length
		}
		if regime == Shared {
			res.kappas[0] = f.clampKappa(InverseA(sumLen / float64(n)))
		}
	}

	// Iteration cap: score the parameters of the last M-step.
	ll, err := res.expect(dirs, resp, logp)
	if err != nil {
		return nil, err
	}
	res.logLik = ll
	return res, nil
}

// expect runs the E-step, filling resp with membership probabilities, and
// returns the log-likelihood of the current parameters.
func (r *restartResult) expect(dirs []Direction, resp [][]float64, logp []float64) (float64, error) {
	k := len(r.means)
	ll := 0.0
	for i, x := range dirs {
		for j := 0; j < k; j++ {
			logp[j] = math.Log(r.weights[j]) + LogDensity(x, r.means[j], r.kappa(j))
		}
		li := logSumExp(logp)
		for j := 0; j < k; j++ {
			resp[i][j] = math.Exp(logp[j] - li)
		}
		ll += li
	}
	if math.IsNaN(ll) || math.IsInf(ll, 0) {
		return 0, errors.New("non-finite log-likelihood")
	}
	return ll, nil
}

// seed draws k distinct data points as initial means.
func (f *EMFitter) seed(dirs []Direction, k int, regime Regime, rng *rand.Rand) *restartResult {
	var sx, sy float64
	for _, x := range dirs {
		sx += x.X
		sy += x.Y
	}
	kappa0 := ApproxKappa(math.Hypot(sx, sy) / float64(len(dirs)))
	kappa0 = math.Max(minSeedKappa, f.clampKappa(kappa0))

	res := &restartResult{
		means:   make([]Direction, k),
		weights: make([]float64, k),
	}
	if regime == Shared {
		res.kappas = []float64{kappa0}
	} else {
		res.kappas = make([]float64, k)
	}
	for j, idx := range rng.Perm(len(dirs))[:k] {
		res.means[j] = dirs[idx]
		res.weights[j] = 1 / float64(k)
		if regime == Independent {
			res.kappas[j] = kappa0
		}
	}
	return res
}

func (f *EMFitter) clampKappa(k float64) float64 {
	if math.IsNaN(k) || k > f.maxKappa {
		return f.maxKappa
	}
	return k
}

func (r *restartResult) kappa(j int) float64 {
	if len(r.kappas) == 1 {
		return r.kappas[0]
	}
	return r.kappas[j]
}

// sortComponents orders components by mean angle so labels are stable
// across restarts and runs.
func sortComponents(m *Model) {
	idx := make([]int, m.K)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return m.Means[idx[a]].Angle() < m.Means[idx[b]].Angle()
	})

	means := make([]Direction, m.K)
	weights := make([]float64, m.K)
	for to, from := range idx {
		means[to] = m.Means[from]
		weights[to] = m.Weights[from]
	}
	if len(m.Kappas) == m.K && m.K > 1 {
		kappas := make([]float64, m.K)
		for to, from := range idx {
			kappas[to] = m.Kappas[from]
		}
		m.Kappas = kappas
	}
	m.Means = means
	m.Weights = weights
}
