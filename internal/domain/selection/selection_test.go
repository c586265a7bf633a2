package selection_test

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/okian/puntscope/internal/domain/model"
	"github.com/okian/puntscope/internal/domain/selection"
	"github.com/okian/puntscope/internal/domain/vmf"
	. "github.com/smartystreets/goconvey/convey"
)

func fitted(k int, r vmf.Regime, bic float64) selection.Outcome {
	m := &vmf.Model{K: k, Regime: r, BIC: bic, Params: vmf.ParamCount(k, r)}
	return selection.Succeeded(selection.Pair{K: k, Regime: r}, m, 0)
}

func TestGrid(t *testing.T) {
	Convey("Given the default sweep", t, func() {
		grid := selection.Grid(1, 10)

		Convey("Then it holds both regimes for every k", func() {
			So(grid, ShouldHaveLength, 20)
			So(grid[0], ShouldResemble, selection.Pair{K: 1, Regime: vmf.Shared})
			So(grid[19], ShouldResemble, selection.Pair{K: 10, Regime: vmf.Independent})
		})

		Convey("Then every pair has its own seed", func() {
			seen := map[int64]bool{}
			for _, p := range grid {
				s := selection.SeedFor(42, p)
				So(seen[s], ShouldBeFalse)
				seen[s] = true
			}
		})
	})
}

func TestSelect(t *testing.T) {
	Convey("Given a set of outcomes", t, func() {
		outcomes := []selection.Outcome{
			fitted(3, vmf.Independent, 120),
			fitted(2, vmf.Shared, 100),
			fitted(2, vmf.Independent, 101),
			selection.Failed(selection.Pair{K: 4, Regime: vmf.Shared}, errors.New("boom"), 0),
		}

		Convey("Then the global minimum wins", func() {
			best, err := selection.Select(outcomes)
			So(err, ShouldBeNil)
			So(best.Pair, ShouldResemble, selection.Pair{K: 2, Regime: vmf.Shared})
		})

		Convey("Then the ranking lists failures last", func() {
			ranking := selection.Ranking(outcomes)
			So(ranking, ShouldHaveLength, 4)
			So(ranking[0].Rank, ShouldEqual, 1)
			So(ranking[0].DeltaBIC, ShouldEqual, 0)
			So(ranking[1].DeltaBIC, ShouldEqual, 1)
			So(ranking[3].Pair.K, ShouldEqual, 4)
			So(ranking[3].Error, ShouldEqual, "boom")
			So(math.IsInf(ranking[3].DeltaBIC, 1), ShouldBeTrue)
		})
	})

	Convey("Given a fit that stopped at the iteration cap", t, func() {
		capped := fitted(3, vmf.Shared, 90)
		capped.Model.Converged = false
		converged := fitted(2, vmf.Shared, 100)
		converged.Model.Converged = true
		outcomes := []selection.Outcome{converged, capped}

		Convey("Then it competes on BIC like any other fit", func() {
			best, err := selection.Select(outcomes)
			So(err, ShouldBeNil)
			So(best.Pair.K, ShouldEqual, 3)
		})

		Convey("Then the ranking reports its convergence state", func() {
			ranking := selection.Ranking(outcomes)
			So(ranking[0].Converged, ShouldBeFalse)
			So(ranking[1].Converged, ShouldBeTrue)
		})
	})

	Convey("Given equal BIC for one component in both regimes", t, func() {
		outcomes := []selection.Outcome{
			fitted(1, vmf.Independent, 50),
			fitted(1, vmf.Shared, 50),
		}

		Convey("Then the shared regime wins the tie", func() {
			best, err := selection.Select(outcomes)
			So(err, ShouldBeNil)
			So(best.Regime, ShouldEqual, vmf.Shared)
		})
	})

	Convey("Given equal BIC with different parameter counts", t, func() {
		outcomes := []selection.Outcome{
			fitted(3, vmf.Shared, 80),
			fitted(2, vmf.Independent, 80),
		}

		Convey("Then fewer parameters win", func() {
			best, err := selection.Select(outcomes)
			So(err, ShouldBeNil)
			So(best.K, ShouldEqual, 2)
			So(best.Params, ShouldEqual, 5)
		})
	})

	Convey("Given only failures", t, func() {
		_, err := selection.Select([]selection.Outcome{
			selection.Failed(selection.Pair{K: 1, Regime: vmf.Shared}, errors.New("x"), 0),
		})

		Convey("Then selection reports it", func() {
			So(errors.Is(err, selection.ErrNoSuccessfulFit), ShouldBeTrue)
		})
	})
}

func TestSelect_TwoDirectionClusters(t *testing.T) {
	Convey("Given directions drawn from two well separated clusters", t, func() {
		fitter := vmf.NewEMFitter()
		ctx := context.Background()

		for _, seed := range []int64{1, 2, 3} {
			rng := rand.New(rand.NewSource(seed))
			var dirs []vmf.Direction
			for i := 0; i < 250; i++ {
				dirs = append(dirs, vmf.FromAngle(vmf.Sample(rng, -35*math.Pi/180, 30)))
				dirs = append(dirs, vmf.FromAngle(vmf.Sample(rng, 40*math.Pi/180, 30)))
			}

			var outcomes []selection.Outcome
			for _, p := range selection.Grid(1, 5) {
				m, err := fitter.Fit(ctx, dirs, p.K, p.Regime, 20, selection.SeedFor(seed, p))
				if err != nil {
					So(errors.Is(err, model.ErrFitConvergence), ShouldBeTrue)
					outcomes = append(outcomes, selection.Failed(p, err, 0))
					continue
				}
				outcomes = append(outcomes, selection.Succeeded(p, m, 0))
			}

			best, err := selection.Select(outcomes)
			So(err, ShouldBeNil)
			So(best.K, ShouldEqual, 2)
		}
	})
}
