// Package render draws the pipeline charts with gonum/plot.
package render

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/okian/puntscope/internal/domain/aggregate"
	"github.com/okian/puntscope/internal/domain/interpret"
	"github.com/okian/puntscope/internal/domain/model"
	"github.com/okian/puntscope/internal/domain/selection"
	"github.com/okian/puntscope/internal/domain/vmf"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Chart file base names.
const (
	DirectionChartName = "direction"
	ClusterChartName   = "clusters"
	BICChartName       = "bic"
)

const (
	defaultWidth  = 10 * vg.Inch
	defaultHeight = 6 * vg.Inch

	// sideShift separates the near and far series around each bin, in bin units.
	sideShift = 0.2
	// labelEvery thins the angle axis labels.
	labelEvery = 5
)

// ErrNothingToDraw is returned for empty inputs.
var ErrNothingToDraw = errors.New("nothing to draw")

// Option configures a Renderer.
type Option func(*Renderer)

// WithSize sets the output size of every chart.
func WithSize(width, height vg.Length) Option {
	return func(r *Renderer) {
		if width > 0 && height > 0 {
			r.width, r.height = width, height
		}
	}
}

// Renderer writes charts into a directory. The format is any extension
// gonum/plot can save, typically png or svg.
type Renderer struct {
	dir    string
	format string
	width  vg.Length
	height vg.Length
}

// New creates a Renderer writing into dir.
func New(dir, format string, opts ...Option) *Renderer {
	if format == "" {
		format = "png"
	}
	r := &Renderer{dir: dir, format: format, width: defaultWidth, height: defaultHeight}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// save writes p under name and returns the file path.
func (r *Renderer) save(p *plot.Plot, name string) (string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", r.dir, err)
	}
	path := filepath.Join(r.dir, name+"."+r.format)
	if err := p.Save(r.width, r.height, path); err != nil {
		return "", fmt.Errorf("save %s: %w", path, err)
	}
	return path, nil
}

// DirectionChart writes the mean distance per direction bucket chart.
func (r *Renderer) DirectionChart(t aggregate.Table) (string, error) {
	p, err := DirectionPlot(t)
	if err != nil {
		return "", err
	}
	return r.save(p, DirectionChartName)
}

// ClusterScatter writes the labelled scatter of shifted landing points.
func (r *Renderer) ClusterScatter(rows []model.NormalizedPuntEvent, in interpret.Interpretation) (string, error) {
	p, err := ClusterPlot(rows, in)
	if err != nil {
		return "", err
	}
	return r.save(p, ClusterChartName)
}

// BICCurve writes BIC against k for both regimes.
func (r *Renderer) BICCurve(ranking []selection.Entry) (string, error) {
	p, err := BICPlot(ranking)
	if err != nil {
		return "", err
	}
	return r.save(p, BICChartName)
}

// errPoints pairs bar tops with their whiskers.
type errPoints struct {
	plotter.XYs
	plotter.YErrors
}

// DirectionPlot draws one bar series per sideline half: bar height is the
// mean distance of a direction bucket, whiskers are ±1 standard error.
// Degenerate buckets get no whisker.
func DirectionPlot(t aggregate.Table) (*plot.Plot, error) {
	if len(t.Rows) == 0 {
		return nil, fmt.Errorf("%w: empty aggregation", ErrNothingToDraw)
	}

	p := plot.New()
	p.Title.Text = "Mean punt distance by direction"
	p.X.Label.Text = "direction (degrees, 0 = downfield)"
	p.Y.Label.Text = "mean distance (yards)"

	sides := []struct {
		side  model.FieldBucketY
		shift float64
	}{
		{model.SideNear, -sideShift},
		{model.SideFar, sideShift},
	}
	for i, s := range sides {
		rows := t.Side(s.side)
		if len(rows) == 0 {
			continue
		}

		values := make(plotter.Values, t.AngleBins)
		pts := errPoints{
			XYs:     make(plotter.XYs, 0, len(rows)),
			YErrors: make(plotter.YErrors, 0, len(rows)),
		}
		for _, row := range rows {
			values[row.Key.Angle] = row.MeanDistance
			if row.Degenerate || math.IsNaN(row.StdErr) {
				continue
			}
			pts.XYs = append(pts.XYs, plotter.XY{X: float64(row.Key.Angle) + s.shift, Y: row.MeanDistance})
			pts.YErrors = append(pts.YErrors, struct{ Low, High float64 }{row.StdErr, row.StdErr})
		}

		bars, err := plotter.NewBarChart(values, vg.Points(5))
		if err != nil {
			return nil, fmt.Errorf("bars %s: %w", s.side, err)
		}
		bars.XMin = s.shift
		bars.Color = plotutil.Color(i)
		bars.LineStyle.Width = 0
		p.Add(bars)
		p.Legend.Add(s.side.String(), bars)

		if len(pts.XYs) > 0 {
			whiskers, err := plotter.NewYErrorBars(pts)
			if err != nil {
				return nil, fmt.Errorf("whiskers %s: %w", s.side, err)
			}
			p.Add(whiskers)
		}
	}

	p.NominalX(angleLabels(t)...)
	p.Legend.Top = true
	return p, nil
}

// angleLabels names every labelEvery-th bucket by its center angle.
func angleLabels(t aggregate.Table) []string {
	width := 360 / float64(t.AngleBins)
	labels := make([]string, t.AngleBins)
	for i := range labels {
		if i%labelEvery == 0 {
			center := -180 + (float64(i)+0.5)*width
			labels[i] = strconv.FormatFloat(center, 'f', 0, 64)
		}
	}
	return labels
}

// ClusterPlot draws shifted landing points coloured by cluster label, with
// one ray per cluster along its mean direction.
func ClusterPlot(rows []model.NormalizedPuntEvent, in interpret.Interpretation) (*plot.Plot, error) {
	if len(rows) == 0 || len(in.Clusters) == 0 {
		return nil, fmt.Errorf("%w: no labelled events", ErrNothingToDraw)
	}
	if len(in.Assignments) != len(rows) {
		return nil, fmt.Errorf("%d assignments for %d rows", len(in.Assignments), len(rows))
	}

	p := plot.New()
	p.Title.Text = "Punt landing offsets by cluster"
	p.X.Label.Text = "downfield (yards)"
	p.Y.Label.Text = "across field (yards)"

	groups := make([]plotter.XYs, len(in.Clusters))
	maxR := 0.0
	for i, r := range rows {
		j := in.Assignments[i].Label - 1
		groups[j] = append(groups[j], plotter.XY{X: r.X2Shift, Y: r.Y2Shift})
		maxR = math.Max(maxR, r.R)
	}

	for j, c := range in.Clusters {
		col := plotutil.Color(j)
		if len(groups[j]) > 0 {
			sc, err := plotter.NewScatter(groups[j])
			if err != nil {
				return nil, fmt.Errorf("cluster %d: %w", c.Label, err)
			}
			sc.GlyphStyle.Color = col
			sc.GlyphStyle.Shape = draw.CircleGlyph{}
			sc.GlyphStyle.Radius = vg.Points(2)
			p.Add(sc)
			p.Legend.Add(fmt.Sprintf("%d: %s (%d)", c.Label, c.Bearing, c.Members), sc)
		}

		dir := vmf.FromAngle(c.MeanDeg * math.Pi / 180)
		ray, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: dir.X * maxR, Y: dir.Y * maxR}})
		if err != nil {
			return nil, fmt.Errorf("ray %d: %w", c.Label, err)
		}
		ray.LineStyle.Color = darken(col)
		ray.LineStyle.Width = vg.Points(1.5)
		p.Add(ray)
	}

	p.Add(plotter.NewGrid())
	return p, nil
}

// BICPlot draws BIC against k with one line per regime. Failed fits are
// left out.
func BICPlot(ranking []selection.Entry) (*plot.Plot, error) {
	byRegime := make(map[vmf.Regime]plotter.XYs)
	for _, e := range ranking {
		if math.IsInf(e.BIC, 0) || math.IsNaN(e.BIC) {
			continue
		}
		byRegime[e.Pair.Regime] = append(byRegime[e.Pair.Regime], plotter.XY{X: float64(e.Pair.K), Y: e.BIC})
	}
	if len(byRegime) == 0 {
		return nil, fmt.Errorf("%w: no successful fits", ErrNothingToDraw)
	}

	p := plot.New()
	p.Title.Text = "BIC by component count"
	p.X.Label.Text = "k"
	p.Y.Label.Text = "BIC"

	var series []interface{}
	for _, regime := range vmf.Regimes {
		xys, ok := byRegime[regime]
		if !ok {
			continue
		}
		sortByX(xys)
		series = append(series, string(regime), xys)
	}
	if err := plotutil.AddLinePoints(p, series...); err != nil {
		return nil, fmt.Errorf("bic lines: %w", err)
	}
	return p, nil
}

func sortByX(xys plotter.XYs) {
	sort.Slice(xys, func(i, j int) bool { return xys[i].X < xys[j].X })
}

func darken(c color.Color) color.Color {
	r, g, b, a := c.RGBA()
	return color.RGBA64{R: uint16(r * 3 / 5), G: uint16(g * 3 / 5), B: uint16(b * 3 / 5), A: uint16(a)}
}
