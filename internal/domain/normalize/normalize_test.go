package normalize_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/puntscope/internal/domain/model"
	"github.com/okian/puntscope/internal/domain/normalize"
	. "github.com/smartystreets/goconvey/convey"
)

const tolerance = 1e-9

// fourPunts is a small hand-checked scenario: two events on the near half
// (one exactly on the midpoint) and two mirrored from the far half.
func fourPunts() []model.PuntEvent {
	return []model.PuntEvent{
		{ID: "a", X1: 30, Y1: 20, X2: 75, Y2: 20, YardLine: 25},
		{ID: "b", X1: 60, Y1: 10, X2: 60, Y2: 5, YardLine: 50},
		{ID: "c", X1: 90, Y1: 40, X2: 50, Y2: 10, YardLine: 30},
		{ID: "d", X1: 100, Y1: 20, X2: 60, Y2: 50, YardLine: 10},
	}
}

func newNormalizer(events []model.PuntEvent) *normalize.Normalizer {
	maxY, err := normalize.FieldMaxY(events)
	So(err, ShouldBeNil)
	n, err := normalize.NewNormalizer(model.DefaultField(maxY))
	So(err, ShouldBeNil)
	return n
}

func TestFieldMaxY(t *testing.T) {
	Convey("Given the four punt scenario", t, func() {
		maxY, err := normalize.FieldMaxY(fourPunts())

		Convey("Then MaxY is the largest landing y", func() {
			So(err, ShouldBeNil)
			So(maxY, ShouldEqual, 50)
		})
	})

	Convey("Given no events", t, func() {
		_, err := normalize.FieldMaxY(nil)

		Convey("Then it should fail", func() {
			So(errors.Is(err, normalize.ErrNoEvents), ShouldBeTrue)
		})
	})
}

func TestNewNormalizer(t *testing.T) {
	Convey("Given a field without a measured MaxY", t, func() {
		_, err := normalize.NewNormalizer(model.DefaultField(0))

		Convey("Then construction is refused", func() {
			So(errors.Is(err, normalize.ErrInvalidField), ShouldBeTrue)
		})
	})
}

func TestNormalize_FourPunts(t *testing.T) {
	Convey("Given a normalizer over the four punt scenario", t, func() {
		events := fourPunts()
		n := newNormalizer(events)

		out := make([]model.NormalizedPuntEvent, len(events))
		for i, e := range events {
			ne, err := n.Normalize(e)
			So(err, ShouldBeNil)
			out[i] = ne
		}

		Convey("Then a near-half punt passes through unchanged", func() {
			a := out[0]
			So(a.Reflected, ShouldBeFalse)
			So([]float64{a.X1Flip, a.Y1Flip, a.X2Flip, a.Y2Flip}, ShouldResemble, []float64{30, 20, 75, 20})
			So(a.X1LOS, ShouldEqual, 35)
			So(a.X2Shift, ShouldEqual, 40)
			So(a.Y2Shift, ShouldEqual, 0)
			So(a.R, ShouldEqual, 40)
			So(a.AngleDeg, ShouldEqual, 0)
			So(a.MirrorDeg, ShouldEqual, 0)
		})

		Convey("Then a punter exactly on the midpoint is not mirrored", func() {
			b := out[1]
			So(b.Reflected, ShouldBeFalse)
			So(b.X2Shift, ShouldEqual, 0)
			So(b.Y2Shift, ShouldEqual, -5)
			So(b.R, ShouldEqual, 5)
			So(b.AngleDeg, ShouldAlmostEqual, 270, tolerance)
			So(b.AngleRad, ShouldAlmostEqual, 3*math.Pi/2, tolerance)
			So(b.MirrorDeg, ShouldAlmostEqual, -90, tolerance)
		})

		Convey("Then far-half punts are mirrored on both endpoints", func() {
			c := out[2]
			So(c.Reflected, ShouldBeTrue)
			So([]float64{c.X1Flip, c.Y1Flip, c.X2Flip, c.Y2Flip}, ShouldResemble, []float64{30, 10, 70, 40})
			So(c.X2Shift, ShouldEqual, 30)
			So(c.Y2Shift, ShouldEqual, 30)
			So(c.AngleDeg, ShouldAlmostEqual, 45, tolerance)
			So(c.R, ShouldAlmostEqual, 30*math.Sqrt2, tolerance)

			d := out[3]
			So(d.Reflected, ShouldBeTrue)
			So([]float64{d.X1Flip, d.Y1Flip, d.X2Flip, d.Y2Flip}, ShouldResemble, []float64{20, 30, 60, 0})
			So(d.X2Shift, ShouldEqual, 40)
			So(d.Y2Shift, ShouldEqual, -30)
			So(d.R, ShouldEqual, 50)
			So(d.AngleDeg, ShouldAlmostEqual, 360-math.Atan2(30, 40)*180/math.Pi, tolerance)
			So(d.MirrorDeg, ShouldAlmostEqual, -math.Atan2(30, 40)*180/math.Pi, tolerance)
		})

		Convey("Then buckets are assigned from the frozen geometry", func() {
			So(out[0].AngleBucket, ShouldEqual, 19)
			So(out[1].AngleBucket, ShouldEqual, 9)
			So(out[2].AngleBucket, ShouldEqual, 24)
			So(out[3].AngleBucket, ShouldEqual, 15)

			So(out[0].FieldBucketY, ShouldEqual, model.SideNear)
			So(out[3].FieldBucketY, ShouldEqual, model.SideFar)
			So(out[3].FieldBucketX, ShouldEqual, model.ZoneShort)
			So(out[0].FieldBucketX, ShouldEqual, model.ZoneLong)
		})
	})
}

func TestNormalize_ReflectionLaws(t *testing.T) {
	Convey("Given a grid of punter positions", t, func() {
		field := model.DefaultField(53.3)
		n, err := normalize.NewNormalizer(field)
		So(err, ShouldBeNil)

		Convey("Then near-half events keep raw coordinates and far-half events are mirrored", func() {
			for x1 := 5.0; x1 <= 115; x1 += 5 {
				e := model.PuntEvent{X1: x1, Y1: 12, X2: x1 + 3, Y2: 40, YardLine: 20}
				ne, err := n.Normalize(e)
				So(err, ShouldBeNil)
				if x1 <= 60 {
					So(ne.X1Flip, ShouldEqual, e.X1)
					So(ne.X2Flip, ShouldEqual, e.X2)
					So(ne.Y1Flip, ShouldEqual, e.Y1)
					So(ne.Y2Flip, ShouldEqual, e.Y2)
				} else {
					So(ne.X1Flip, ShouldEqual, field.Length-e.X1)
					So(ne.X2Flip, ShouldEqual, field.Length-e.X2)
					So(ne.Y1Flip, ShouldEqual, field.MaxY-e.Y1)
					So(ne.Y2Flip, ShouldEqual, field.MaxY-e.Y2)
				}
			}
		})

		Convey("Then reflecting twice returns the original event", func() {
			e := model.PuntEvent{X1: 81.25, Y1: 7.5, X2: 33.75, Y2: 49.125, YardLine: 28}
			back := normalize.Reflect(normalize.Reflect(e, field), field)
			So(back.X1, ShouldAlmostEqual, e.X1, tolerance)
			So(back.Y1, ShouldAlmostEqual, e.Y1, tolerance)
			So(back.X2, ShouldAlmostEqual, e.X2, tolerance)
			So(back.Y2, ShouldAlmostEqual, e.Y2, tolerance)
		})
	})
}

func TestNormalize_AngleRanges(t *testing.T) {
	Convey("Given offsets all around the circle", t, func() {
		Convey("Then degree and mirror angles stay in range and agree", func() {
			for i := 0; i < 720; i++ {
				theta := float64(i) * math.Pi / 360
				x, y := 10*math.Cos(theta), 10*math.Sin(theta)
				rad, deg := normalize.PolarAngle(x, y)
				mirror := normalize.MirrorAngle(deg)

				So(rad, ShouldBeGreaterThanOrEqualTo, 0)
				So(rad, ShouldBeLessThan, 2*math.Pi)
				So(deg, ShouldBeGreaterThanOrEqualTo, 0)
				So(deg, ShouldBeLessThan, 360)
				So(mirror, ShouldBeGreaterThan, -180)
				So(mirror, ShouldBeLessThanOrEqualTo, 180)
				if deg <= 180 {
					So(mirror, ShouldEqual, deg)
				} else {
					So(mirror, ShouldEqual, deg-360)
				}
			}
		})

		Convey("Then straight back is 180, not -180", func() {
			_, deg := normalize.PolarAngle(-3, 0)
			So(normalize.MirrorAngle(deg), ShouldEqual, 180)
		})
	})
}

func TestNormalize_InvalidEvents(t *testing.T) {
	Convey("Given a normalizer", t, func() {
		n, err := normalize.NewNormalizer(model.DefaultField(53.3))
		So(err, ShouldBeNil)

		Convey("When the landing point coincides with the line of scrimmage", func() {
			_, err := n.Normalize(model.PuntEvent{ID: "zero", X1: 20, Y1: 10, X2: 30, Y2: 10, YardLine: 20})

			Convey("Then it is rejected as an invalid event", func() {
				var invalid *model.InvalidEventError
				So(errors.As(err, &invalid), ShouldBeTrue)
				So(invalid.EventID, ShouldEqual, "zero")
				So(errors.Is(err, model.ErrInvalidEvent), ShouldBeTrue)
			})
		})

		Convey("When a coordinate is NaN", func() {
			_, err := n.Normalize(model.PuntEvent{X1: math.NaN(), X2: 40, YardLine: 20})

			Convey("Then it is rejected", func() {
				So(errors.Is(err, model.ErrInvalidEvent), ShouldBeTrue)
			})
		})

		Convey("When normalizing a batch that contains a bad row", func() {
			kept, rejected := n.NormalizeAll([]model.PuntEvent{
				{ID: "ok", X1: 20, Y1: 10, X2: 60, Y2: 15, YardLine: 10},
				{ID: "bad", X1: 20, Y1: 10, X2: 30, Y2: 10, YardLine: 20},
			})

			Convey("Then the remaining rows are still normalized", func() {
				So(kept, ShouldHaveLength, 1)
				So(kept[0].ID, ShouldEqual, "ok")
				So(rejected, ShouldHaveLength, 1)
			})
		})
	})
}

func TestAngleBucket(t *testing.T) {
	Convey("Given 40 angle buckets", t, func() {
		Convey("Then bins are right-closed", func() {
			So(normalize.AngleBucket(180, 40), ShouldEqual, 39)
			So(normalize.AngleBucket(-179.999, 40), ShouldEqual, 0)
			So(normalize.AngleBucket(-171, 40), ShouldEqual, 0)
			So(normalize.AngleBucket(-170.9, 40), ShouldEqual, 1)
			So(normalize.AngleBucket(0, 40), ShouldEqual, 19)
			So(normalize.AngleBucket(0.1, 40), ShouldEqual, 20)
		})

		Convey("Then bounds describe the bin", func() {
			lower, upper, center := normalize.AngleBucketBounds(19, 40)
			So(lower, ShouldEqual, -9)
			So(upper, ShouldEqual, 0)
			So(center, ShouldEqual, -4.5)
		})
	})
}
