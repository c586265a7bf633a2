package model

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for the pipeline. These allow errors.Is/As from callers.
var (
	// ErrInputSchema aborts the run: required columns are missing.
	ErrInputSchema = errors.New("input schema error")
	// ErrInvalidEvent marks a single event that cannot be normalized.
	ErrInvalidEvent = errors.New("invalid event")
	// ErrFitConvergence marks a single mixture fit that failed.
	ErrFitConvergence = errors.New("fit did not converge")
	// ErrAggregationDegenerate marks a bucket whose standard error is undefined.
	ErrAggregationDegenerate = errors.New("aggregation bucket is degenerate")
)

// InvalidEventError reports why an event was rejected.
type InvalidEventError struct {
	EventID string
	Reason  string
}

func (e *InvalidEventError) Error() string {
	return fmt.Sprintf("invalid event %s: %s", e.EventID, e.Reason)
}

// Unwrap returns ErrInvalidEvent.
func (e *InvalidEventError) Unwrap() error { return ErrInvalidEvent }

// SchemaError lists the required columns that were not found.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("input schema error: missing required columns %v", e.Missing)
}

// Unwrap returns ErrInputSchema.
func (e *SchemaError) Unwrap() error { return ErrInputSchema }

// FitConvergenceError reports a failed fit for one (k, regime) pair.
type FitConvergenceError struct {
	K      int
	Regime string
	Reason string
}

func (e *FitConvergenceError) Error() string {
	return fmt.Sprintf("fit k=%d regime=%s failed: %s", e.K, e.Regime, e.Reason)
}

// Unwrap returns ErrFitConvergence.
func (e *FitConvergenceError) Unwrap() error { return ErrFitConvergence }
