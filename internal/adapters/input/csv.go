package input

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/okian/puntscope/internal/domain/model"
	"github.com/okian/puntscope/pkg/logger"
)

// CSVLoader reads a CSV file with a header row.
type CSVLoader struct {
	path   string
	logger logger.Logger
}

// Load opens the file and reads it.
func (l *CSVLoader) Load(ctx context.Context) (Result, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return Result{}, fmt.Errorf("open %s: %w", l.path, err)
	}
	defer func() { _ = f.Close() }()

	res, err := ReadCSV(ctx, f)
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", l.path, err)
	}
	l.logger.Info(ctx, "csv loaded",
		logger.String("path", l.path),
		logger.Int("events", len(res.Events)),
		logger.Int("rejected", len(res.Rejected)),
	)
	return res, nil
}

// ReadCSV parses punt rows from r. A missing required column fails with a
// SchemaError; unparseable rows are collected in Result.Rejected.
func ReadCSV(ctx context.Context, r io.Reader) (Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	headers, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Result{}, &model.SchemaError{Missing: append([]string(nil), requiredColumns...)}
	}
	if err != nil {
		return Result{}, fmt.Errorf("header: %w", err)
	}
	if len(headers) > 0 {
		headers[0] = trimBOM(headers[0])
	}

	s, err := resolveSchema(headers)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for line := 1; ; line++ {
		if line%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
		}
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("row %d: %w", line, err)
		}
		e, err := s.event(line, record)
		if err != nil {
			res.Rejected = append(res.Rejected, err)
			continue
		}
		res.Events = append(res.Events, e)
	}
	return res, nil
}

func trimBOM(s string) string {
	const bom = "\ufeff"
	if len(s) >= len(bom) && s[:len(bom)] == bom {
		return s[len(bom):]
	}
	return s
}
