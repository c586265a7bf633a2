// Package interpret turns a selected mixture into readable clusters and
// per-event labels.
package interpret

import (
	"errors"
	"fmt"
	"math"

	"github.com/okian/puntscope/internal/domain/model"
	"github.com/okian/puntscope/internal/domain/normalize"
	"github.com/okian/puntscope/internal/domain/vmf"
)

// straightTolerance is the bearing band, in degrees, reported as straight.
const straightTolerance = 0.5

// ErrNoModel is returned when there is nothing to interpret.
var ErrNoModel = errors.New("no model to interpret")

// Cluster describes one mixture component.
type Cluster struct {
	Label     int     // 1..K
	MeanDeg   float64 // [0, 360)
	MirrorDeg float64 // (-180, 180]
	Bearing   string
	Kappa     float64
	Weight    float64
	Members   int
}

// Assignment labels one event.
type Assignment struct {
	EventID    string
	Label      int
	Confidence float64 // posterior probability of the label
}

// Interpretation is the readable form of a selected model.
type Interpretation struct {
	Clusters    []Cluster
	Assignments []Assignment
}

// Interpret labels every row with its most likely component and summarises
// each component's mean direction.
func Interpret(m *vmf.Model, rows []model.NormalizedPuntEvent) (Interpretation, error) {
	if m == nil || m.K == 0 {
		return Interpretation{}, ErrNoModel
	}

	out := Interpretation{
		Clusters:    make([]Cluster, m.K),
		Assignments: make([]Assignment, 0, len(rows)),
	}
	for j := 0; j < m.K; j++ {
		_, deg := normalize.PolarAngle(m.Means[j].X, m.Means[j].Y)
		mirror := normalize.MirrorAngle(deg)
		out.Clusters[j] = Cluster{
			Label:     j + 1,
			MeanDeg:   deg,
			MirrorDeg: mirror,
			Bearing:   Bearing(mirror),
			Kappa:     m.Kappa(j),
			Weight:    m.Weights[j],
		}
	}

	for _, r := range rows {
		dir, ok := vmf.Unit(r.X2Shift, r.Y2Shift)
		if !ok {
			return Interpretation{}, &model.InvalidEventError{EventID: r.Label(), Reason: "zero-length offset has no direction"}
		}
		j := m.Assign(dir)
		post := m.Posterior(dir)
		out.Clusters[j].Members++
		out.Assignments = append(out.Assignments, Assignment{
			EventID:    r.Label(),
			Label:      j + 1,
			Confidence: post[j],
		})
	}
	return out, nil
}

// Labels returns the bare label of each assignment, in row order.
func (in Interpretation) Labels() []int {
	out := make([]int, len(in.Assignments))
	for i, a := range in.Assignments {
		out[i] = a.Label
	}
	return out
}

// Bearing describes a mirror angle relative to straight downfield.
// Positive angles turn toward increasing y, reported as left.
func Bearing(mirrorDeg float64) string {
	switch {
	case math.Abs(mirrorDeg) <= straightTolerance:
		return "straight"
	case mirrorDeg >= 180-straightTolerance:
		return "backward"
	case mirrorDeg > 0:
		return fmt.Sprintf("%.1f° left", mirrorDeg)
	default:
		return fmt.Sprintf("%.1f° right", -mirrorDeg)
	}
}
