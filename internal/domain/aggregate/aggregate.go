// Package aggregate summarises normalized punts by sideline half and
// direction bucket.
package aggregate

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/okian/puntscope/internal/domain/model"
	"github.com/okian/puntscope/internal/domain/normalize"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrNoRows is returned when there is nothing to aggregate.
	ErrNoRows = errors.New("no rows to aggregate")
	// ErrInvalidBins is returned for a bucket count or bucket index that
	// does not fit the angle partition.
	ErrInvalidBins = errors.New("invalid angle buckets")
)

// Key identifies one aggregation group.
type Key struct {
	Side  model.FieldBucketY
	Angle int
}

// Row is one aggregated group. StdErr is NaN when the group has a single
// member, in which case Degenerate is set.
type Row struct {
	Key          Key
	AngleLower   float64
	AngleUpper   float64
	AngleCenter  float64
	Count        int
	Proportion   float64
	MeanDistance float64
	StdErr       float64
	Degenerate   bool
}

// Table is the aggregation result, independent of any rendering layer.
type Table struct {
	AngleBins int
	Rows      []Row
	// Totals holds the number of events per sideline half.
	Totals map[model.FieldBucketY]int
	// Warnings lists non-fatal degeneracies, one per affected row.
	Warnings []error
}

// Aggregate groups rows by (sideline half, angle bucket) and computes the
// share, mean travel distance and standard error of each group. Iteration
// order over the input does not affect the result. Rows must have been
// bucketed with the same angleBins.
func Aggregate(rows []model.NormalizedPuntEvent, angleBins int) (Table, error) {
	if angleBins < 1 {
		return Table{}, fmt.Errorf("%w: %d bins", ErrInvalidBins, angleBins)
	}
	if len(rows) == 0 {
		return Table{}, ErrNoRows
	}

	groups := make(map[Key][]float64)
	totals := make(map[model.FieldBucketY]int)
	for _, r := range rows {
		if r.AngleBucket < 0 || r.AngleBucket >= angleBins {
			return Table{}, fmt.Errorf("%w: event %s has bucket %d of %d",
				ErrInvalidBins, r.Label(), r.AngleBucket, angleBins)
		}
		k := Key{Side: r.FieldBucketY, Angle: r.AngleBucket}
		groups[k] = append(groups[k], r.X2Shift)
		totals[r.FieldBucketY]++
	}

	t := Table{AngleBins: angleBins, Totals: totals, Rows: make([]Row, 0, len(groups))}
	for k, distances := range groups {
		row := summarise(k, distances, totals[k.Side], angleBins)
		if row.Degenerate {
			t.Warnings = append(t.Warnings, fmt.Errorf("%w: side=%s bucket=%d has %d member",
				model.ErrAggregationDegenerate, k.Side, k.Angle, row.Count))
		}
		t.Rows = append(t.Rows, row)
	}

	sort.Slice(t.Rows, func(i, j int) bool {
		if t.Rows[i].Key.Side != t.Rows[j].Key.Side {
			return t.Rows[i].Key.Side < t.Rows[j].Key.Side
		}
		return t.Rows[i].Key.Angle < t.Rows[j].Key.Angle
	})
	return t, nil
}

func summarise(k Key, distances []float64, sideTotal, angleBins int) Row {
	n := len(distances)
	lower, upper, center := normalize.AngleBucketBounds(k.Angle, angleBins)
	row := Row{
		Key:         k,
		AngleLower:  lower,
		AngleUpper:  upper,
		AngleCenter: center,
		Count:       n,
		Proportion:  float64(n) / float64(sideTotal),
	}

	if n < 2 {
		row.MeanDistance = distances[0]
		row.StdErr = math.NaN()
		row.Degenerate = true
		return row
	}

	mean, std := stat.MeanStdDev(distances, nil)
	row.MeanDistance = mean
	row.StdErr = std / math.Sqrt(float64(n))
	return row
}

// Side returns the rows of one sideline half in angle order.
func (t Table) Side(side model.FieldBucketY) []Row {
	var out []Row
	for _, r := range t.Rows {
		if r.Key.Side == side {
			out = append(out, r)
		}
	}
	return out
}
