package input

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/okian/puntscope/internal/domain/model"
)

// Required coordinate columns, matched case-insensitively.
var requiredColumns = []string{"x1", "y1", "x2", "y2", "yrdline"} //nolint:gochecknoglobals // fixed schema

// Identity columns and their accepted spellings.
var idAliases = map[string][]string{ //nolint:gochecknoglobals // fixed schema
	"id":      {"id"},
	"game_id": {"game_id", "gameid"},
	"play_id": {"play_id", "playid"},
}

// schema maps header positions to PuntEvent fields.
type schema struct {
	headers []string
	numeric map[string]int
	ids     map[string]int
	extras  []int
}

// resolveSchema validates headers. Missing required columns are fatal.
func resolveSchema(headers []string) (*schema, error) {
	byName := make(map[string]int, len(headers))
	for i, h := range headers {
		name := strings.ToLower(strings.TrimSpace(h))
		if _, dup := byName[name]; !dup {
			byName[name] = i
		}
	}

	s := &schema{headers: headers, numeric: make(map[string]int), ids: make(map[string]int)}
	used := make(map[int]bool)

	var missing []string
	for _, col := range requiredColumns {
		idx, ok := byName[col]
		if !ok {
			missing = append(missing, col)
			continue
		}
		s.numeric[col] = idx
		used[idx] = true
	}
	if len(missing) > 0 {
		return nil, &model.SchemaError{Missing: missing}
	}

	for field, aliases := range idAliases {
		for _, alias := range aliases {
			if idx, ok := byName[alias]; ok {
				s.ids[field] = idx
				used[idx] = true
				break
			}
		}
	}

	for i := range headers {
		if !used[i] {
			s.extras = append(s.extras, i)
		}
	}
	return s, nil
}

// event converts one row. line is the 1-based data row number used when the
// row has no identity of its own.
func (s *schema) event(line int, cells []string) (model.PuntEvent, error) {
	cell := func(i int) string {
		if i >= 0 && i < len(cells) {
			return strings.TrimSpace(cells[i])
		}
		return ""
	}

	e := model.PuntEvent{
		ID:     cell(indexOr(s.ids, "id")),
		GameID: cell(indexOr(s.ids, "game_id")),
		PlayID: cell(indexOr(s.ids, "play_id")),
	}
	if len(s.extras) > 0 {
		e.Extra = make(map[string]string, len(s.extras))
		for _, i := range s.extras {
			e.Extra[s.headers[i]] = cell(i)
		}
	}

	targets := map[string]*float64{
		"x1": &e.X1, "y1": &e.Y1, "x2": &e.X2, "y2": &e.Y2, "yrdline": &e.YardLine,
	}
	for _, col := range requiredColumns {
		raw := cell(s.numeric[col])
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return e, &model.InvalidEventError{
				EventID: rowLabel(e, line),
				Reason:  fmt.Sprintf("column %s: cannot parse %q as a finite number", col, raw),
			}
		}
		*targets[col] = v
	}
	return e, nil
}

// indexOr returns the mapped index or -1, which cell treats as empty.
func indexOr(m map[string]int, key string) int {
	if i, ok := m[key]; ok {
		return i
	}
	return -1
}

func rowLabel(e model.PuntEvent, line int) string {
	if k := e.Key(); k != "" {
		return k
	}
	return "row " + strconv.Itoa(line)
}
