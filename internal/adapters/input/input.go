// Package input reads punt events from CSV files or SQLite tables.
package input

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/puntscope/internal/domain/model"
	"github.com/okian/puntscope/pkg/logger"
)

// Supported source formats.
const (
	FormatCSV    = "csv"
	FormatSQLite = "sqlite"
)

// ctxCheckEvery is how many rows are read between context checks.
const ctxCheckEvery = 1024

// ErrUnknownFormat is returned for a format no loader handles.
var ErrUnknownFormat = errors.New("unknown input format")

// Result is the outcome of a load. Rejected holds one InvalidEventError per
// row that could not be parsed; such rows are skipped, not fatal.
type Result struct {
	Events   []model.PuntEvent
	Rejected []error
}

// Loader reads every punt event from its source.
type Loader interface {
	Load(ctx context.Context) (Result, error)
}

// Option configures loaders.
type Option func(*options)

type options struct {
	table  string
	logger logger.Logger
}

// WithTable sets the SQLite table to read.
func WithTable(table string) Option {
	return func(o *options) {
		if table != "" {
			o.table = table
		}
	}
}

// WithLogger sets the loader logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// New returns the loader for format reading from path.
func New(format, path string, opts ...Option) (Loader, error) {
	o := options{table: "punts"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Get().Named("input")
	}

	switch format {
	case FormatCSV:
		return &CSVLoader{path: path, logger: o.logger}, nil
	case FormatSQLite:
		return &SQLiteLoader{path: path, table: o.table, logger: o.logger}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Load is New followed by Loader.Load.
func Load(ctx context.Context, format, path string, opts ...Option) (Result, error) {
	l, err := New(format, path, opts...)
	if err != nil {
		return Result{}, err
	}
	return l.Load(ctx)
}
