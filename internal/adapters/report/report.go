// Package report writes the results of a pipeline run as JSON and CSV.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	service "github.com/okian/puntscope/internal/app"
	"github.com/okian/puntscope/internal/domain/model"
	"github.com/okian/puntscope/internal/domain/normalize"
)

// Output file names.
const (
	ReportFile = "report.json"
	EventsFile = "events.csv"
)

// Rejection stages.
const (
	StageLoad      = "load"
	StageNormalize = "normalize"
)

// Number is a float that encodes NaN and ±Inf as JSON null.
type Number float64

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(f, 'g', -1, 64)), nil
}

// Meta describes the run's input.
type Meta struct {
	InputPath   string
	InputFormat string
	StartedAt   time.Time
}

// Report is the JSON document of one run.
type Report struct {
	RunID       string             `json:"run_id"`
	StartedAt   time.Time          `json:"started_at"`
	FinishedAt  time.Time          `json:"finished_at"`
	Input       Input              `json:"input"`
	Field       Field              `json:"field"`
	Rejections  []Rejection        `json:"rejections"`
	Aggregation []Bucket           `json:"aggregation"`
	Ranking     []Rank             `json:"ranking"`
	Selected    Selected           `json:"selected"`
	Clusters    []Cluster          `json:"clusters"`
	StageMillis map[string]float64 `json:"stage_ms"`
}

// Input counts rows through the early stages.
type Input struct {
	Path              string `json:"path"`
	Format            string `json:"format"`
	Loaded            int    `json:"loaded"`
	LoadRejected      int    `json:"load_rejected"`
	Duplicates        int    `json:"duplicates"`
	NormalizeRejected int    `json:"normalize_rejected"`
	Used              int    `json:"used"`
}

// Field is the geometry the run normalized against.
type Field struct {
	Length   float64 `json:"length"`
	Midpoint float64 `json:"midpoint"`
	EndZone  float64 `json:"end_zone"`
	MaxY     float64 `json:"max_y"`
}

// Rejection is one dropped event.
type Rejection struct {
	Stage   string `json:"stage"`
	EventID string `json:"event_id,omitempty"`
	Reason  string `json:"reason"`
}

// Bucket is one aggregation row.
type Bucket struct {
	Side         string  `json:"side"`
	AngleBucket  int     `json:"angle_bucket"`
	AngleLower   float64 `json:"angle_lower"`
	AngleUpper   float64 `json:"angle_upper"`
	Count        int     `json:"count"`
	Proportion   float64 `json:"proportion"`
	MeanDistance Number  `json:"mean_distance"`
	StdErr       Number  `json:"std_err"`
	Degenerate   bool    `json:"degenerate,omitempty"`
}

// Rank is one line of the model ranking.
type Rank struct {
	Rank      int    `json:"rank"`
	K         int    `json:"k"`
	Regime    string `json:"regime"`
	Params    int    `json:"params"`
	BIC       Number `json:"bic"`
	DeltaBIC  Number `json:"delta_bic"`
	LogLik    Number `json:"loglik"`
	Converged bool   `json:"converged"`
	Error     string `json:"error,omitempty"`
}

// Selected is the winning model.
type Selected struct {
	Name       string      `json:"name"`
	K          int         `json:"k"`
	Regime     string      `json:"regime"`
	BIC        Number      `json:"bic"`
	LogLik     Number      `json:"loglik"`
	Iterations int         `json:"iterations"`
	Converged  bool        `json:"converged"`
	Components []Component `json:"components"`
}

// Component is one fitted mixture component.
type Component struct {
	MeanDeg   float64 `json:"mean_deg"`
	MirrorDeg float64 `json:"mirror_deg"`
	Kappa     Number  `json:"kappa"`
	Weight    float64 `json:"weight"`
}

// Cluster is one interpreted component.
type Cluster struct {
	Label     int     `json:"label"`
	Bearing   string  `json:"bearing"`
	MirrorDeg float64 `json:"mirror_deg"`
	Kappa     Number  `json:"kappa"`
	Weight    float64 `json:"weight"`
	Members   int     `json:"members"`
}

// Build assembles the report of res under a fresh run id. loadRejected are
// the rows the loader could not parse.
func Build(meta Meta, res *service.Result, loadRejected []error) *Report {
	r := &Report{
		RunID:      uuid.NewString(),
		StartedAt:  meta.StartedAt.UTC(),
		FinishedAt: time.Now().UTC(),
		Input: Input{
			Path:              meta.InputPath,
			Format:            meta.InputFormat,
			Loaded:            res.Loaded + len(loadRejected),
			LoadRejected:      len(loadRejected),
			Duplicates:        res.Duplicates,
			NormalizeRejected: len(res.Rejected),
			Used:              len(res.Rows),
		},
		Field: Field{
			Length:   res.Field.Length,
			Midpoint: res.Field.Midpoint,
			EndZone:  res.Field.EndZone,
			MaxY:     res.Field.MaxY,
		},
		Rejections:  make([]Rejection, 0, len(loadRejected)+len(res.Rejected)),
		StageMillis: make(map[string]float64, len(res.Durations)),
	}

	for _, err := range loadRejected {
		r.Rejections = append(r.Rejections, rejection(StageLoad, err))
	}
	for _, err := range res.Rejected {
		r.Rejections = append(r.Rejections, rejection(StageNormalize, err))
	}

	for _, row := range res.Table.Rows {
		r.Aggregation = append(r.Aggregation, Bucket{
			Side:         row.Key.Side.String(),
			AngleBucket:  row.Key.Angle,
			AngleLower:   row.AngleLower,
			AngleUpper:   row.AngleUpper,
			Count:        row.Count,
			Proportion:   row.Proportion,
			MeanDistance: Number(row.MeanDistance),
			StdErr:       Number(row.StdErr),
			Degenerate:   row.Degenerate,
		})
	}

	for _, e := range res.Ranking {
		r.Ranking = append(r.Ranking, Rank{
			Rank:      e.Rank,
			K:         e.Pair.K,
			Regime:    string(e.Pair.Regime),
			Params:    e.Params,
			BIC:       Number(e.BIC),
			DeltaBIC:  Number(e.DeltaBIC),
			LogLik:    Number(e.LogLik),
			Converged: e.Converged,
			Error:     e.Error,
		})
	}

	if m := res.Selected.Model; m != nil {
		r.Selected = Selected{
			Name:       res.Selected.Pair.String(),
			K:          m.K,
			Regime:     string(m.Regime),
			BIC:        Number(m.BIC),
			LogLik:     Number(m.LogLik),
			Iterations: m.Iterations,
			Converged:  m.Converged,
		}
		for j := 0; j < m.K; j++ {
			_, deg := normalize.PolarAngle(m.Means[j].X, m.Means[j].Y)
			r.Selected.Components = append(r.Selected.Components, Component{
				MeanDeg:   deg,
				MirrorDeg: normalize.MirrorAngle(deg),
				Kappa:     Number(m.Kappa(j)),
				Weight:    m.Weights[j],
			})
		}
	}

	for _, c := range res.Interpretation.Clusters {
		r.Clusters = append(r.Clusters, Cluster{
			Label:     c.Label,
			Bearing:   c.Bearing,
			MirrorDeg: c.MirrorDeg,
			Kappa:     Number(c.Kappa),
			Weight:    c.Weight,
			Members:   c.Members,
		})
	}

	for stage, d := range res.Durations {
		r.StageMillis[stage] = float64(d.Microseconds()) / 1000
	}
	return r
}

func rejection(stage string, err error) Rejection {
	var ie *model.InvalidEventError
	if errors.As(err, &ie) {
		return Rejection{Stage: stage, EventID: ie.EventID, Reason: ie.Reason}
	}
	return Rejection{Stage: stage, Reason: err.Error()}
}

// WriteJSON writes r as indented JSON into dir and returns the file path.
func WriteJSON(dir string, r *Report) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	path := filepath.Join(dir, ReportFile)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
