// Package selection picks the best directional mixture by BIC.
package selection

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/okian/puntscope/internal/domain/vmf"
)

// ErrNoSuccessfulFit is returned when every fit in a sweep failed.
var ErrNoSuccessfulFit = errors.New("no successful fit in sweep")

// Pair is one point of the sweep grid.
type Pair struct {
	K      int
	Regime vmf.Regime
}

func (p Pair) String() string { return fmt.Sprintf("k=%d/%s", p.K, p.Regime) }

// Grid returns every (k, regime) pair for k in [kMin, kMax], both regimes.
func Grid(kMin, kMax int) []Pair {
	if kMin < 1 {
		kMin = 1
	}
	var out []Pair
	for k := kMin; k <= kMax; k++ {
		for _, r := range vmf.Regimes {
			out = append(out, Pair{K: k, Regime: r})
		}
	}
	return out
}

// SeedFor derives a per-pair seed so restarts do not depend on the order
// in which pairs are scheduled.
func SeedFor(base int64, p Pair) int64 {
	regime := int64(1)
	if p.Regime == vmf.Independent {
		regime = 2
	}
	return base*1_000_003 + int64(p.K)*7_919 + regime
}

// Outcome is the result of fitting one pair. A failed fit carries Err and a
// BIC of +Inf so it never wins the minimum search.
type Outcome struct {
	Pair
	Model    *vmf.Model
	BIC      float64
	Params   int
	Duration time.Duration
	Err      error
}

// Succeeded wraps a fitted model.
func Succeeded(p Pair, m *vmf.Model, d time.Duration) Outcome {
	return Outcome{Pair: p, Model: m, BIC: m.BIC, Params: m.Params, Duration: d}
}

// Failed records a failed fit.
func Failed(p Pair, err error, d time.Duration) Outcome {
	return Outcome{Pair: p, BIC: math.Inf(1), Params: vmf.ParamCount(p.K, p.Regime), Duration: d, Err: err}
}

// OK reports whether the fit succeeded.
func (o Outcome) OK() bool { return o.Err == nil && o.Model != nil }

// Less orders outcomes best first: lower BIC, then fewer parameters, then
// the shared regime, then lower k.
func Less(a, b Outcome) bool {
	if a.BIC != b.BIC {
		return a.BIC < b.BIC
	}
	if a.Params != b.Params {
		return a.Params < b.Params
	}
	if a.Regime != b.Regime {
		return a.Regime == vmf.Shared
	}
	return a.K < b.K
}

// Select returns the global BIC minimum across all outcomes.
func Select(outcomes []Outcome) (Outcome, error) {
	var (
		best  Outcome
		found bool
	)
	for _, o := range outcomes {
		if !o.OK() {
			continue
		}
		if !found || Less(o, best) {
			best, found = o, true
		}
	}
	if !found {
		return Outcome{}, ErrNoSuccessfulFit
	}
	return best, nil
}

// Entry is one line of the model ranking.
type Entry struct {
	Rank     int
	Pair     Pair
	BIC      float64
	DeltaBIC float64
	Params   int
	LogLik   float64
	Error    string

	// Converged is false when the fit stopped at the EM iteration cap.
	Converged bool
}

// Ranking orders every outcome best first. Failures rank last with an
// infinite ΔBIC.
func Ranking(outcomes []Outcome) []Entry {
	sorted := append([]Outcome(nil), outcomes...)
	sort.SliceStable(sorted, func(i, j int) bool { return Less(sorted[i], sorted[j]) })

	out := make([]Entry, len(sorted))
	bestBIC := math.Inf(1)
	if len(sorted) > 0 {
		bestBIC = sorted[0].BIC
	}
	for i, o := range sorted {
		e := Entry{Rank: i + 1, Pair: o.Pair, BIC: o.BIC, Params: o.Params, DeltaBIC: o.BIC - bestBIC}
		if o.OK() {
			e.LogLik = o.Model.LogLik
			e.Converged = o.Model.Converged
		} else {
			e.LogLik = math.NaN()
			e.DeltaBIC = math.Inf(1)
			if o.Err != nil {
				e.Error = o.Err.Error()
			}
		}
		out[i] = e
	}
	return out
}
