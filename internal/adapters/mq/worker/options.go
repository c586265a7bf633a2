// Package worker runs mixture fit jobs off the queue.
package worker

import (
	"time"

	"github.com/okian/puntscope/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithFitTimeout bounds each fit. Zero or negative disables the bound.
func WithFitTimeout(d time.Duration) Option {
	return func(w *InMemoryWorker) {
		w.fitTimeout = d
	}
}
