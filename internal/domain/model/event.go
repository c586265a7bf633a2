// Package model contains domain models passed between pipeline stages.
package model

// PuntEvent is one observed punt as read from the input table.
// Coordinates are field units measured from the scoring origin.
type PuntEvent struct {
	ID       string  // optional row identifier
	GameID   string  // optional game identifier
	PlayID   string  // optional play identifier
	X1       float64 // punter x
	Y1       float64 // punter y
	X2       float64 // landing x
	Y2       float64 // landing y
	YardLine float64 // yard line at the snap

	// Extra carries every other input column unchanged.
	Extra map[string]string
}

// Key returns the identity used for duplicate detection. An explicit ID wins,
// otherwise GameID/PlayID is used. Empty means the row has no identity.
func (e PuntEvent) Key() string {
	if e.ID != "" {
		return e.ID
	}
	if e.GameID == "" && e.PlayID == "" {
		return ""
	}
	return e.GameID + "/" + e.PlayID
}

// Label returns a human readable reference for logs and reports.
func (e PuntEvent) Label() string {
	if k := e.Key(); k != "" {
		return k
	}
	return "<unkeyed>"
}

// NormalizedPuntEvent is a PuntEvent moved into the canonical frame: punter
// on the near half, re-centered so the punter sits at the origin.
type NormalizedPuntEvent struct {
	PuntEvent

	Reflected bool

	X1Flip float64
	Y1Flip float64
	X2Flip float64
	Y2Flip float64

	// X1LOS is the line-of-scrimmage x coordinate (yard line plus end zone).
	X1LOS float64

	X2Shift float64
	Y2Shift float64

	R         float64 // polar radius, >= 0
	AngleRad  float64 // [0, 2π)
	AngleDeg  float64 // [0, 360)
	MirrorDeg float64 // (-180, 180]

	FieldBucketX FieldBucketX
	FieldBucketY FieldBucketY
	AngleBucket  int
}
