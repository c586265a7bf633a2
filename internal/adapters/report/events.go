package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/okian/puntscope/internal/domain/interpret"
	"github.com/okian/puntscope/internal/domain/model"
)

var eventColumns = []string{ //nolint:gochecknoglobals // fixed layout
	"run_id", "event_id", "game_id", "play_id",
	"x1", "y1", "x2", "y2", "yrdline",
	"reflected", "x1_flip", "y1_flip", "x2_flip", "y2_flip", "x1_los",
	"x2_shift", "y2_shift", "r", "angle_deg", "mirror_deg",
	"zone", "side", "angle_bucket", "cluster", "confidence",
}

// WriteEventsCSV writes one line per normalized event with its cluster
// label. Extra input columns are appended in name order.
func WriteEventsCSV(dir, runID string, rows []model.NormalizedPuntEvent, in interpret.Interpretation) (string, error) {
	if len(in.Assignments) != len(rows) {
		return "", fmt.Errorf("%d assignments for %d rows", len(in.Assignments), len(rows))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	path := filepath.Join(dir, EventsFile)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	extras := extraColumns(rows)
	w := csv.NewWriter(f)
	if err := w.Write(append(append([]string(nil), eventColumns...), extras...)); err != nil {
		return "", err
	}

	ff := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	for i, r := range rows {
		a := in.Assignments[i]
		record := []string{
			runID, r.ID, r.GameID, r.PlayID,
			ff(r.X1), ff(r.Y1), ff(r.X2), ff(r.Y2), ff(r.YardLine),
			strconv.FormatBool(r.Reflected), ff(r.X1Flip), ff(r.Y1Flip), ff(r.X2Flip), ff(r.Y2Flip), ff(r.X1LOS),
			ff(r.X2Shift), ff(r.Y2Shift), ff(r.R), ff(r.AngleDeg), ff(r.MirrorDeg),
			r.FieldBucketX.String(), r.FieldBucketY.String(), strconv.Itoa(r.AngleBucket),
			strconv.Itoa(a.Label), ff(a.Confidence),
		}
		for _, name := range extras {
			record = append(record, r.Extra[name])
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, f.Close()
}

func extraColumns(rows []model.NormalizedPuntEvent) []string {
	seen := make(map[string]bool)
	var names []string
	for _, r := range rows {
		for name := range r.Extra {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}
