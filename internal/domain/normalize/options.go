package normalize

// Option applies a configuration option to the Normalizer.
type Option func(*Normalizer)

// WithZoneBreaks sets the right-closed yard-line breakpoints of the three
// line-of-scrimmage zones.
func WithZoneBreaks(short, mid float64) Option {
	return func(n *Normalizer) {
		if mid > short {
			n.zoneBreaks = [2]float64{short, mid}
		}
	}
}

// WithAngleBins sets the number of equal-width angle buckets over (-180, 180].
func WithAngleBins(bins int) Option {
	return func(n *Normalizer) {
		if bins > 0 {
			n.angleBins = bins
		}
	}
}
