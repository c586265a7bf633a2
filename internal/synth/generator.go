package synth

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strconv"

	"github.com/atgjack/prob"
	"github.com/google/uuid"

	"github.com/okian/puntscope/internal/domain/model"
	"github.com/okian/puntscope/internal/domain/normalize"
	"github.com/okian/puntscope/internal/domain/vmf"
	"github.com/okian/puntscope/pkg/logger"
)

// TruthColumn is the extra column carrying the generating cluster index.
const TruthColumn = "true_cluster"

const (
	minDistance   = 1.0
	ctxCheckEvery = 64
)

// Dataset is a generated set of punts.
type Dataset struct {
	Events     []model.PuntEvent
	Truth      []int // generating cluster per event, aligned with Events
	Duplicates int
}

// Generator draws punts from a Config.
type Generator struct {
	cfg      Config
	rng      *rand.Rand
	cum      []float64
	distance func() float64
}

// NewGenerator validates cfg and prepares a seeded generator. Directions,
// positions and IDs are reproducible from the seed. Distance jitter is drawn
// from a Normal distribution and is not.
func NewGenerator(cfg Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)), //nolint:gosec // synthetic data
	}

	var total float64
	for _, cl := range cfg.Clusters {
		total += cl.Weight
		g.cum = append(g.cum, total)
	}
	for i := range g.cum {
		g.cum[i] /= total
	}

	g.distance = func() float64 { return cfg.DistanceMean }
	if cfg.DistanceSigma > 0 {
		normal, err := prob.NewNormal(cfg.DistanceMean, cfg.DistanceSigma)
		if err != nil {
			return nil, fmt.Errorf("%w: distance distribution: %v", ErrInvalidConfig, err)
		}
		g.distance = func() float64 { return math.Max(minDistance, normal.Random()) }
	}
	return g, nil
}

// Generate produces the dataset. Games get a fresh UUID every PlaysPerGame
// punts and play IDs count up within a game.
func (g *Generator) Generate(ctx context.Context) (*Dataset, error) {
	log := logger.Get().Named("synth")
	log.Info(ctx, "generating punts",
		logger.Int("numEvents", g.cfg.NumEvents),
		logger.Int("clusters", len(g.cfg.Clusters)),
		logger.Int64("seed", g.cfg.Seed))

	ds := &Dataset{
		Events: make([]model.PuntEvent, 0, g.cfg.NumEvents),
		Truth:  make([]int, 0, g.cfg.NumEvents),
	}
	var gameID string
	for i := 0; i < g.cfg.NumEvents; i++ {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("generation cancelled: %w", err)
			}
		}
		if i%g.cfg.PlaysPerGame == 0 {
			id, err := uuid.NewRandomFromReader(g.rng)
			if err != nil {
				return nil, fmt.Errorf("game id: %w", err)
			}
			gameID = id.String()
		}
		cluster := g.pickCluster()
		e := g.punt(cluster)
		e.GameID = gameID
		e.PlayID = strconv.Itoa(i%g.cfg.PlaysPerGame + 1)
		ds.Events = append(ds.Events, e)
		ds.Truth = append(ds.Truth, cluster)
	}

	n := len(ds.Events)
	for i := 0; i < n; i++ {
		if g.cfg.DuplicateRate > 0 && g.rng.Float64() < g.cfg.DuplicateRate {
			ds.Events = append(ds.Events, ds.Events[i])
			ds.Truth = append(ds.Truth, ds.Truth[i])
			ds.Duplicates++
		}
	}

	log.Info(ctx, "generated punts",
		logger.Int("count", len(ds.Events)),
		logger.Int("duplicates", ds.Duplicates))
	return ds, nil
}

func (g *Generator) pickCluster() int {
	u := g.rng.Float64()
	for i, c := range g.cum {
		if u < c {
			return i
		}
	}
	return len(g.cum) - 1
}

// punt builds one event in the canonical frame and mirrors it onto the far
// half when drawn to.
func (g *Generator) punt(cluster int) model.PuntEvent {
	cl := g.cfg.Clusters[cluster]
	f := g.cfg.Field

	yardLine := g.cfg.MinYardLine + g.rng.Float64()*(g.cfg.MaxYardLine-g.cfg.MinYardLine)
	los := yardLine + f.EndZone
	margin := f.MaxY * hashMarginRate
	y1 := margin + g.rng.Float64()*(f.MaxY-2*margin)

	theta := vmf.Sample(g.rng, cl.AngleDeg*math.Pi/180, cl.Kappa)
	d := g.distance()

	e := model.PuntEvent{
		X1:       los - g.cfg.PunterDepth,
		Y1:       y1,
		X2:       los + d*math.Cos(theta),
		Y2:       y1 + d*math.Sin(theta),
		YardLine: yardLine,
		Extra:    map[string]string{TruthColumn: strconv.Itoa(cluster)},
	}
	if g.rng.Float64() < g.cfg.FarHalfRate {
		e = normalize.Reflect(e, f)
	}
	return e
}
