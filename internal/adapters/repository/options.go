package repository

// Option configures a TreapStore.
type Option func(*TreapStore)

// WithKeepFailed controls whether failed outcomes are stored. They are kept
// by default so the ranking shows every pair of the sweep.
func WithKeepFailed(keep bool) Option {
	return func(s *TreapStore) {
		s.keepFailed = keep
	}
}
