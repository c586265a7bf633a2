// Package synth generates synthetic punt datasets with known direction
// clusters. The output goes through the same loader as real data, so it is
// used to exercise the pipeline end to end.
package synth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/okian/puntscope/internal/domain/model"
)

// Default generator settings.
const (
	DefaultNumEvents     = 2000
	DefaultPlaysPerGame  = 12
	DefaultFieldWidth    = 53.3
	DefaultDistanceMean  = 42.0
	DefaultDistanceSigma = 6.0
	DefaultPunterDepth   = 14.0
	DefaultMinYardLine   = 20.0
	DefaultMaxYardLine   = 50.0
	DefaultFarHalfRate   = 0.5
	DefaultSeed          = 1

	hashMarginRate = 0.15
)

// ErrInvalidConfig is returned when a generator configuration is unusable.
var ErrInvalidConfig = errors.New("invalid generator config")

// Cluster is one direction mode in the canonical frame.
type Cluster struct {
	AngleDeg float64 // mean direction, degrees counter-clockwise from +x
	Kappa    float64 // concentration
	Weight   float64 // relative share of events
}

// Config holds configuration for a synthetic run.
type Config struct {
	NumEvents     int       // number of unique punts
	PlaysPerGame  int       // punts sharing one game ID
	Clusters      []Cluster // direction modes
	Field         model.Field
	DistanceMean  float64 // mean kick distance
	DistanceSigma float64 // kick distance jitter, 0 disables it
	PunterDepth   float64 // punter distance behind the line of scrimmage
	MinYardLine   float64
	MaxYardLine   float64
	FarHalfRate   float64 // share of punts mirrored onto the far half
	DuplicateRate float64 // share of punts emitted twice
	Seed          int64
}

// DefaultConfig returns a two-mode configuration: one cluster per sideline.
func DefaultConfig() Config {
	field := model.DefaultField(DefaultFieldWidth)
	return Config{
		NumEvents:    DefaultNumEvents,
		PlaysPerGame: DefaultPlaysPerGame,
		Clusters: []Cluster{
			{AngleDeg: -25, Kappa: 25, Weight: 1},
			{AngleDeg: 25, Kappa: 25, Weight: 1},
		},
		Field:         field,
		DistanceMean:  DefaultDistanceMean,
		DistanceSigma: DefaultDistanceSigma,
		PunterDepth:   DefaultPunterDepth,
		MinYardLine:   DefaultMinYardLine,
		MaxYardLine:   DefaultMaxYardLine,
		FarHalfRate:   DefaultFarHalfRate,
		Seed:          DefaultSeed,
	}
}

// Validate checks the configuration for values the generator cannot use.
func (c Config) Validate() error {
	var problems []string
	if c.NumEvents < 1 {
		problems = append(problems, "num events must be positive")
	}
	if c.PlaysPerGame < 1 {
		problems = append(problems, "plays per game must be positive")
	}
	if len(c.Clusters) == 0 {
		problems = append(problems, "at least one cluster is required")
	}
	var total float64
	for i, cl := range c.Clusters {
		if cl.Kappa < 0 || cl.Weight < 0 {
			problems = append(problems, fmt.Sprintf("cluster %d has a negative kappa or weight", i))
		}
		total += cl.Weight
	}
	if len(c.Clusters) > 0 && total <= 0 {
		problems = append(problems, "cluster weights must sum to a positive value")
	}
	if c.Field.Length <= 0 || c.Field.MaxY <= 0 {
		problems = append(problems, "field length and width must be positive")
	}
	if c.DistanceMean <= 0 || c.DistanceSigma < 0 {
		problems = append(problems, "distance mean must be positive and sigma non-negative")
	}
	if c.PunterDepth <= 0 {
		problems = append(problems, "punter depth must be positive")
	}
	if c.MinYardLine < 0 || c.MaxYardLine < c.MinYardLine {
		problems = append(problems, "yard line range is empty")
	}
	if c.MaxYardLine+c.Field.EndZone > c.Field.Midpoint {
		problems = append(problems, "line of scrimmage must stay on the near half")
	}
	for _, r := range []float64{c.FarHalfRate, c.DuplicateRate} {
		if r < 0 || r > 1 {
			problems = append(problems, "rates must be within [0, 1]")
			break
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// ParseClusters reads "angle:kappa[:weight]" specs separated by commas,
// e.g. "-30:20,35:15:2". A missing weight defaults to 1.
func ParseClusters(s string) ([]Cluster, error) {
	var out []Cluster
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ":")
		if len(fields) < 2 || len(fields) > 3 {
			return nil, fmt.Errorf("%w: cluster %q is not angle:kappa[:weight]", ErrInvalidConfig, part)
		}
		vals := []float64{0, 0, 1}
		for i, f := range fields {
			var v float64
			if _, err := fmt.Sscan(f, &v); err != nil {
				return nil, fmt.Errorf("%w: cluster %q: %v", ErrInvalidConfig, part, err)
			}
			vals[i] = v
		}
		out = append(out, Cluster{AngleDeg: vals[0], Kappa: vals[1], Weight: vals[2]})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no clusters in %q", ErrInvalidConfig, s)
	}
	return out, nil
}
