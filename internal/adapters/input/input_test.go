package input_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/puntscope/internal/adapters/input"
	"github.com/okian/puntscope/internal/domain/model"
	logging "github.com/okian/puntscope/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
	_ "modernc.org/sqlite"
)

const sample = `GameId,PlayId,X1,Y1,X2,Y2,YrdLine,Team
g1,1,30,20,75,20,25,NE
g1,2,60,10,60,5,50,NE
g2,7,90,40,50,10,30,KC
g2,9,100,20,60,50,10,KC
`

func TestReadCSV(t *testing.T) {
	Convey("Given a CSV with mixed-case headers and an extra column", t, func() {
		res, err := input.ReadCSV(context.Background(), strings.NewReader(sample))

		Convey("Then every row should be parsed", func() {
			So(err, ShouldBeNil)
			So(res.Rejected, ShouldBeEmpty)
			So(len(res.Events), ShouldEqual, 4)

			e := res.Events[2]
			So(e.GameID, ShouldEqual, "g2")
			So(e.PlayID, ShouldEqual, "7")
			So(e.X1, ShouldEqual, 90)
			So(e.Y2, ShouldEqual, 10)
			So(e.YardLine, ShouldEqual, 30)
			So(e.Extra, ShouldResemble, map[string]string{"Team": "KC"})
			So(e.Key(), ShouldEqual, "g2/7")
		})
	})

	Convey("Given a CSV missing required columns", t, func() {
		_, err := input.ReadCSV(context.Background(), strings.NewReader("x1,y1,x2\n1,2,3\n"))

		Convey("Then a schema error naming them should be returned", func() {
			var se *model.SchemaError
			So(errors.As(err, &se), ShouldBeTrue)
			So(se.Missing, ShouldResemble, []string{"y2", "yrdline"})
			So(errors.Is(err, model.ErrInputSchema), ShouldBeTrue)
		})
	})

	Convey("Given an empty file", t, func() {
		_, err := input.ReadCSV(context.Background(), strings.NewReader(""))

		Convey("Then it is a schema error", func() {
			So(errors.Is(err, model.ErrInputSchema), ShouldBeTrue)
		})
	})

	Convey("Given rows with unparseable numbers", t, func() {
		data := "id,x1,y1,x2,y2,yrdline\n" +
			"a,30,20,75,20,25\n" +
			"b,30,abc,75,20,25\n" +
			",30,20,NaN,20,25\n"
		res, err := input.ReadCSV(context.Background(), strings.NewReader(data))

		Convey("Then bad rows should be rejected without failing the load", func() {
			So(err, ShouldBeNil)
			So(len(res.Events), ShouldEqual, 1)
			So(len(res.Rejected), ShouldEqual, 2)

			var ie *model.InvalidEventError
			So(errors.As(res.Rejected[0], &ie), ShouldBeTrue)
			So(ie.EventID, ShouldEqual, "b")
			So(ie.Reason, ShouldContainSubstring, "y1")
			So(errors.As(res.Rejected[1], &ie), ShouldBeTrue)
			So(ie.EventID, ShouldEqual, "row 3")
		})
	})

	Convey("Given a header with a byte order mark", t, func() {
		res, err := input.ReadCSV(context.Background(), strings.NewReader("\ufeffx1,y1,x2,y2,yrdline\n1,2,3,4,5\n"))

		Convey("Then the first column should still match", func() {
			So(err, ShouldBeNil)
			So(len(res.Events), ShouldEqual, 1)
			So(res.Events[0].X1, ShouldEqual, 1)
		})
	})
}

func TestCSVLoader(t *testing.T) {
	Convey("Given a CSV file on disk", t, func() {
		_ = logging.Init()
		path := filepath.Join(t.TempDir(), "punts.csv")
		So(os.WriteFile(path, []byte(sample), 0o600), ShouldBeNil)

		Convey("When loading through the format switch", func() {
			res, err := input.Load(context.Background(), input.FormatCSV, path)

			Convey("Then the events should be returned", func() {
				So(err, ShouldBeNil)
				So(len(res.Events), ShouldEqual, 4)
			})
		})

		Convey("When the file is missing", func() {
			_, err := input.Load(context.Background(), input.FormatCSV, path+".missing")

			Convey("Then an error should be returned", func() {
				So(errors.Is(err, os.ErrNotExist), ShouldBeTrue)
			})
		})

		Convey("When the format is unknown", func() {
			_, err := input.New("xlsx", path)

			Convey("Then ErrUnknownFormat should be returned", func() {
				So(errors.Is(err, input.ErrUnknownFormat), ShouldBeTrue)
			})
		})
	})
}

func TestSQLiteLoader(t *testing.T) {
	Convey("Given a SQLite database with a punt table", t, func() {
		_ = logging.Init()
		path := filepath.Join(t.TempDir(), "season.db")
		db, err := sql.Open("sqlite", path)
		So(err, ShouldBeNil)
		_, err = db.Exec(`CREATE TABLE season_punts (
			game_id TEXT, play_id INTEGER, x1 REAL, y1 REAL, x2 REAL, y2 REAL, YrdLine INTEGER, weather TEXT)`)
		So(err, ShouldBeNil)
		_, err = db.Exec(`INSERT INTO season_punts VALUES
			('g1', 1, 30, 20, 75, 20, 25, 'rain'),
			('g1', 2, 60.5, 10, 60, 5, 50, NULL),
			('g1', 3, NULL, 10, 60, 5, 50, 'dry')`)
		So(err, ShouldBeNil)
		So(db.Close(), ShouldBeNil)

		Convey("When loading the table", func() {
			res, err := input.Load(context.Background(), input.FormatSQLite, path, input.WithTable("season_punts"))

			Convey("Then typed columns should convert and NULL coordinates reject the row", func() {
				So(err, ShouldBeNil)
				So(len(res.Events), ShouldEqual, 2)
				So(res.Events[0].PlayID, ShouldEqual, "1")
				So(res.Events[0].Extra["weather"], ShouldEqual, "rain")
				So(res.Events[1].X1, ShouldEqual, 60.5)
				So(res.Events[1].Extra["weather"], ShouldEqual, "")
				So(len(res.Rejected), ShouldEqual, 1)
				So(errors.Is(res.Rejected[0], model.ErrInvalidEvent), ShouldBeTrue)
			})
		})

		Convey("When the table lacks required columns", func() {
			db, err := sql.Open("sqlite", path)
			So(err, ShouldBeNil)
			_, err = db.Exec(`CREATE TABLE thin (x1 REAL, y1 REAL)`)
			So(err, ShouldBeNil)
			So(db.Close(), ShouldBeNil)

			_, err = input.Load(context.Background(), input.FormatSQLite, path, input.WithTable("thin"))

			Convey("Then a schema error should be returned", func() {
				So(errors.Is(err, model.ErrInputSchema), ShouldBeTrue)
			})
		})
	})
}
