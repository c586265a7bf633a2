// Package repository holds the ranked outcomes of a mixture sweep.
package repository

import (
	"context"

	"github.com/okian/puntscope/internal/domain/selection"
)

// Store provides read/write access to the ranking state.
type Store interface {
	// Record stores o, replacing any earlier outcome for the same pair.
	Record(ctx context.Context, o selection.Outcome) error

	// Best returns the top ranked successful outcome.
	// Returns ErrEmpty if no successful outcome was recorded.
	Best(ctx context.Context) (selection.Outcome, error)

	// Rank returns the 1-based rank of a pair and its outcome.
	// Returns ErrNotFound if the pair is unknown.
	Rank(ctx context.Context, p selection.Pair) (int, selection.Outcome, error)

	// TopN returns up to n outcomes best first.
	TopN(ctx context.Context, n int) ([]selection.Outcome, error)

	// All returns every outcome best first.
	All(ctx context.Context) []selection.Outcome

	// Count returns the number of pairs tracked.
	Count(ctx context.Context) int
}
