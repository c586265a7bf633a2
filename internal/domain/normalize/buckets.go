package normalize

import (
	"math"

	"github.com/okian/puntscope/internal/domain/model"
)

// ZoneOf places a yard line into one of the three right-closed zones.
func (n *Normalizer) ZoneOf(yardLine float64) model.FieldBucketX {
	switch {
	case yardLine <= n.zoneBreaks[0]:
		return model.ZoneShort
	case yardLine <= n.zoneBreaks[1]:
		return model.ZoneMid
	default:
		return model.ZoneLong
	}
}

// SideOf places a (reflected) punter y into the near or far sideline half.
func (n *Normalizer) SideOf(y float64) model.FieldBucketY {
	if y <= n.field.MaxY/2 {
		return model.SideNear
	}
	return model.SideFar
}

// AngleBucket returns the index of the right-closed bin containing a mirror
// angle. Bins have equal width and cover (-180, 180].
func AngleBucket(mirrorDeg float64, bins int) int {
	width := fullTurnDeg / float64(bins)
	idx := int(math.Ceil((mirrorDeg+halfTurnDeg)/width)) - 1
	if idx < 0 {
		return 0
	}
	if idx >= bins {
		return bins - 1
	}
	return idx
}

// AngleBucketBounds returns the lower (exclusive) and upper (inclusive)
// edges and the center of bin idx, in degrees.
func AngleBucketBounds(idx, bins int) (lower, upper, center float64) {
	width := fullTurnDeg / float64(bins)
	lower = -halfTurnDeg + float64(idx)*width
	upper = lower + width
	return lower, upper, lower + width/2
}
