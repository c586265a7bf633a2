// Package normalize moves punt events into the canonical reference frame.
//
// Events punted from the far half are mirrored so every punter sits on the
// near half, then the landing point is re-centered on the punter and
// expressed in polar form.
package normalize

import (
	"errors"
	"fmt"
	"math"

	"github.com/okian/puntscope/internal/domain/model"
)

// Default bucketing constants.
const (
	DefaultAngleBins     = 40
	DefaultShortZoneEdge = 10.0
	DefaultMidZoneEdge   = 20.0

	fullTurnDeg = 360.0
	halfTurnDeg = 180.0
)

var (
	// ErrNoEvents is returned when MaxY cannot be measured.
	ErrNoEvents = errors.New("no events to measure field width")
	// ErrInvalidField is returned for unusable field geometry.
	ErrInvalidField = errors.New("invalid field geometry")
)

// Normalizer converts raw events using a fixed field geometry.
type Normalizer struct {
	field      model.Field
	zoneBreaks [2]float64
	angleBins  int
}

// FieldMaxY returns the largest landing y across events. It must be computed
// once, before any event is normalized, and held constant for the run.
func FieldMaxY(events []model.PuntEvent) (float64, error) {
	if len(events) == 0 {
		return 0, ErrNoEvents
	}
	maxY := math.Inf(-1)
	for _, e := range events {
		if e.Y2 > maxY {
			maxY = e.Y2
		}
	}
	return maxY, nil
}

// NewNormalizer creates a Normalizer for the given field.
func NewNormalizer(field model.Field, opts ...Option) (*Normalizer, error) {
	if field.Length <= 0 || field.MaxY <= 0 || math.IsNaN(field.MaxY) {
		return nil, fmt.Errorf("%w: length=%v maxY=%v", ErrInvalidField, field.Length, field.MaxY)
	}
	n := &Normalizer{
		field:      field,
		zoneBreaks: [2]float64{DefaultShortZoneEdge, DefaultMidZoneEdge},
		angleBins:  DefaultAngleBins,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Field returns the geometry the normalizer was built with.
func (n *Normalizer) Field() model.Field { return n.field }

// AngleBins returns the configured number of angle buckets.
func (n *Normalizer) AngleBins() int { return n.angleBins }

// IsFarHalf reports whether the punter stands beyond the midpoint.
// The comparison is strict: a punter exactly on the midpoint is not mirrored.
func (n *Normalizer) IsFarHalf(e model.PuntEvent) bool {
	return e.X1 > n.field.Midpoint
}

// Reflect mirrors both endpoints of an event across the field center.
// Applying it twice returns the original coordinates.
func Reflect(e model.PuntEvent, field model.Field) model.PuntEvent {
	e.X1 = field.Length - e.X1
	e.X2 = field.Length - e.X2
	e.Y1 = field.MaxY - e.Y1
	e.Y2 = field.MaxY - e.Y2
	return e
}

// Normalize produces the canonical form of a single event. A landing point
// that coincides with the re-centered origin has no direction and is
// rejected with an InvalidEventError.
func (n *Normalizer) Normalize(e model.PuntEvent) (model.NormalizedPuntEvent, error) {
	for _, v := range []float64{e.X1, e.Y1, e.X2, e.Y2, e.YardLine} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return model.NormalizedPuntEvent{}, &model.InvalidEventError{EventID: e.Label(), Reason: "non-finite coordinate"}
		}
	}

	flipped := e
	reflected := n.IsFarHalf(e)
	if reflected {
		flipped = Reflect(e, n.field)
	}

	out := model.NormalizedPuntEvent{
		PuntEvent: e,
		Reflected: reflected,
		X1Flip:    flipped.X1,
		Y1Flip:    flipped.Y1,
		X2Flip:    flipped.X2,
		Y2Flip:    flipped.Y2,
		X1LOS:     e.YardLine + n.field.EndZone,
	}
	out.X2Shift = out.X2Flip - out.X1LOS
	out.Y2Shift = out.Y2Flip - out.Y1Flip

	out.R = math.Hypot(out.X2Shift, out.Y2Shift)
	if out.R == 0 {
		return model.NormalizedPuntEvent{}, &model.InvalidEventError{EventID: e.Label(), Reason: "zero-length offset has no direction"}
	}
	out.AngleRad, out.AngleDeg = PolarAngle(out.X2Shift, out.Y2Shift)
	out.MirrorDeg = MirrorAngle(out.AngleDeg)

	out.FieldBucketX = n.ZoneOf(e.YardLine)
	out.FieldBucketY = n.SideOf(out.Y1Flip)
	out.AngleBucket = AngleBucket(out.MirrorDeg, n.angleBins)
	return out, nil
}

// NormalizeAll normalizes every event. Rejected events are returned as
// errors and never stop the remaining events from being processed.
func (n *Normalizer) NormalizeAll(events []model.PuntEvent) ([]model.NormalizedPuntEvent, []error) {
	kept := make([]model.NormalizedPuntEvent, 0, len(events))
	var rejected []error
	for _, e := range events {
		ne, err := n.Normalize(e)
		if err != nil {
			rejected = append(rejected, err)
			continue
		}
		kept = append(kept, ne)
	}
	return kept, rejected
}

// PolarAngle returns the direction of (x, y) in radians [0, 2π) and
// degrees [0, 360).
func PolarAngle(x, y float64) (rad, deg float64) {
	rad = math.Atan2(y, x)
	if rad < 0 {
		rad += 2 * math.Pi
	}
	if rad >= 2*math.Pi {
		rad = 0
	}
	deg = math.Atan2(y, x) * halfTurnDeg / math.Pi
	if deg < 0 {
		deg += fullTurnDeg
	}
	if deg >= fullTurnDeg {
		deg = 0
	}
	return rad, deg
}

// MirrorAngle folds a [0, 360) angle into (-180, 180].
func MirrorAngle(deg float64) float64 {
	if deg > halfTurnDeg {
		return deg - fullTurnDeg
	}
	return deg
}
