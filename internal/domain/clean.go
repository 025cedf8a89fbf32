package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Raw column names produced by the forecast parser.
const (
	ColDate          = "date"
	ColHour          = "hour"
	ColTemperature   = "temperature"
	ColHumidity      = "humidity"
	ColWindSpeed     = "wind_speed"
	ColWindDirection = "wind_direction"
	ColSkyCondition  = "sky_condition"
	ColTimestamp     = "timestamp"
)

// Canonical column names produced by Clean.
const (
	ColDateTime             = "datetime"
	ColWindDirectionDegrees = "wind_direction_degrees"
	ColWindStatus           = "wind_status"
)

// Intermediate enrichment columns. Translators add them under their AEMET-era
// names; the final rename step of Clean promotes them to the canonical names.
const (
	colWindDirectionFull = "wind_direction_completo"
	colWindDirectionDeg  = "wind_direction_grados"
	colSkyConditionEN    = "sky_condition_ingles"
)

// Wind status labels.
const (
	WindStatusCalm     = "calm"
	WindStatusWithWind = "with wind"
)

// windDirectionNames maps AEMET compass codes to full English names. AEMET
// abbreviates southwest/west/northwest in Spanish: SO (sudoeste), O (oeste),
// NO (noroeste). "C" is the calm sentinel.
var windDirectionNames = map[string]string{
	"N": "north", "NE": "northeast", "E": "east", "SE": "southeast",
	"S": "south", "SO": "southwest", "O": "west", "NO": "northwest", "C": WindStatusCalm,
}

// windDirectionDegrees maps compass codes to degrees, N=0 clockwise. Calm has
// no direction and is deliberately absent: it enriches to nil.
var windDirectionDegrees = map[string]float64{
	"N": 0, "NE": 45, "E": 90, "SE": 135,
	"S": 180, "SO": 225, "O": 270, "NO": 315,
}

// skyConditionEnglish maps the AEMET sky-state phrases seen in the hourly
// municipality forecast to English. The provider's phrase set is open-ended;
// phrases outside this table enrich to nil rather than failing, so newly
// introduced states flow through the pipeline as missing translations.
var skyConditionEnglish = map[string]string{
	"Nubes altas":                           "high clouds",
	"Cubierto":                              "overcast",
	"Poco nuboso":                           "few clouds",
	"Nuboso":                                "cloudy",
	"Muy nuboso":                            "very cloudy",
	"Despejado":                             "clear",
	"Cubierto con lluvia escasa":            "overcast with light rain",
	"Cubierto con lluvia":                   "overcast with rain",
	"Cubierto con tormenta y lluvia escasa": "overcast with thunderstorm and light rain",
}

// TranslateWindDirection adds wind_direction_completo (full English name) and
// wind_direction_grados (compass degrees) derived from the raw wind_direction
// code. Unknown codes and the calm sentinel "C" yield nil degrees; unknown
// codes also yield a nil name. The input table is not modified.
func TranslateWindDirection(t *Table) (*Table, error) {
	codes, err := t.Column(ColWindDirection)
	if err != nil {
		return nil, err
	}

	names := make([]any, len(codes))
	degrees := make([]any, len(codes))
	for i, cell := range codes {
		code, ok := cell.(string)
		if !ok {
			continue // nil or non-string: tolerated, stays missing
		}
		if name, known := windDirectionNames[code]; known {
			names[i] = name
		}
		if deg, known := windDirectionDegrees[code]; known {
			degrees[i] = deg
		}
	}

	return t.withColumn(colWindDirectionFull, names).withColumn(colWindDirectionDeg, degrees), nil
}

// TranslateSkyCondition adds sky_condition_ingles with the English phrase for
// the raw Spanish sky_condition. Phrases outside the translation table yield
// nil; that tolerance is deliberate and must not be tightened into an error.
func TranslateSkyCondition(t *Table) (*Table, error) {
	phrases, err := t.Column(ColSkyCondition)
	if err != nil {
		return nil, err
	}

	english := make([]any, len(phrases))
	for i, cell := range phrases {
		phrase, ok := cell.(string)
		if !ok {
			continue
		}
		if en, known := skyConditionEnglish[phrase]; known {
			english[i] = en
		}
	}

	return t.withColumn(colSkyConditionEN, english), nil
}

// DropColumns removes the named columns. Asking for a column the table does
// not have is a schema error; the pipeline calls this with fixed literal
// lists whose presence is guaranteed by the preceding stages, so a miss means
// the stage wiring drifted and should fail loudly.
func DropColumns(t *Table, names ...string) (*Table, error) {
	drop := make(map[string]bool, len(names))
	for _, name := range names {
		if !t.HasColumn(name) {
			return nil, fmt.Errorf("%w: cannot drop missing column %q", ErrSchema, name)
		}
		drop[name] = true
	}

	keep := make([]int, 0, len(t.cols))
	cols := make([]string, 0, len(t.cols))
	for i, c := range t.cols {
		if !drop[c] {
			keep = append(keep, i)
			cols = append(cols, c)
		}
	}

	out := &Table{cols: cols, rows: make([][]any, len(t.rows))}
	for r, row := range t.rows {
		cells := make([]any, len(keep))
		for j, i := range keep {
			cells[j] = row[i]
		}
		out.rows[r] = cells
	}
	return out, nil
}

// NormalizeTypes coerces raw columns to their working types: date to a
// calendar date (dd/mm/yyyy or ISO yyyy-mm-dd both accepted), hour to the
// zero-padded "HH:00" string, and temperature, humidity, wind_speed plus
// wind_direction_grados (when present) to float64. Nil cells pass through as
// missing readings; malformed values are parse errors.
func NormalizeTypes(t *Table) (*Table, error) {
	out := t.clone()

	if err := out.mapColumn(ColDate, normalizeDate); err != nil {
		return nil, err
	}
	if err := out.mapColumn(ColHour, normalizeHour); err != nil {
		return nil, err
	}

	numeric := []string{ColTemperature, ColHumidity, ColWindSpeed}
	if out.HasColumn(colWindDirectionDeg) {
		numeric = append(numeric, colWindDirectionDeg)
	}
	for _, col := range numeric {
		if err := out.mapColumn(col, normalizeFloat); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// mapColumn rewrites every cell of a column through fn. The receiver must be
// a private clone; this is the only place cells are written in place.
func (t *Table) mapColumn(name string, fn func(any) (any, error)) error {
	i := t.columnIndex(name)
	if i < 0 {
		return fmt.Errorf("%w: column %q not found", ErrSchema, name)
	}
	for r := range t.rows {
		v, err := fn(t.rows[r][i])
		if err != nil {
			return fmt.Errorf("column %q row %d: %w", name, r, err)
		}
		t.rows[r][i] = v
	}
	return nil
}

func normalizeDate(cell any) (any, error) {
	switch v := cell.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return v, nil
	case string:
		for _, layout := range []string{"02/01/2006", "2006-01-02"} {
			if d, err := time.Parse(layout, v); err == nil {
				return d, nil
			}
		}
		return nil, fmt.Errorf("%w: unparseable date %q", ErrParse, v)
	default:
		return nil, fmt.Errorf("%w: date cell has type %T", ErrParse, cell)
	}
}

func normalizeHour(cell any) (any, error) {
	var h int
	switch v := cell.(type) {
	case nil:
		return nil, nil
	case int:
		h = v
	case float64:
		h = int(v)
		if float64(h) != v {
			return nil, fmt.Errorf("%w: fractional hour %v", ErrParse, v)
		}
	case string:
		if len(v) == 5 && strings.HasSuffix(v, ":00") {
			v = v[:2] // already "HH:00", e.g. reloaded from CSV
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%w: unparseable hour %q", ErrParse, v)
		}
		h = n
	default:
		return nil, fmt.Errorf("%w: hour cell has type %T", ErrParse, cell)
	}
	if h < 0 || h > 23 {
		return nil, fmt.Errorf("%w: hour %d out of range", ErrParse, h)
	}
	return fmt.Sprintf("%02d:00", h), nil
}

func normalizeFloat(cell any) (any, error) {
	switch v := cell.(type) {
	case nil:
		return nil, nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: non-numeric value %q", ErrParse, v)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("%w: numeric cell has type %T", ErrParse, cell)
	}
}

// UnifyDateTime adds a datetime column combining the date and hour columns.
// It requires both to be already normalized (date a time.Time, hour "HH:00");
// it does not itself parse loosely formatted input.
func UnifyDateTime(t *Table) (*Table, error) {
	dates, err := t.Column(ColDate)
	if err != nil {
		return nil, err
	}
	hours, err := t.Column(ColHour)
	if err != nil {
		return nil, err
	}

	combined := make([]any, len(dates))
	for i := range dates {
		d, ok := dates[i].(time.Time)
		if !ok {
			return nil, fmt.Errorf("%w: date cell at row %d is %T, not a normalized date", ErrSchema, i, dates[i])
		}
		hs, ok := hours[i].(string)
		if !ok {
			return nil, fmt.Errorf("%w: hour cell at row %d is %T, not a normalized hour", ErrSchema, i, hours[i])
		}
		h, err := strconv.Atoi(strings.TrimSuffix(hs, ":00"))
		if err != nil {
			return nil, fmt.Errorf("%w: hour cell %q at row %d", ErrSchema, hs, i)
		}
		combined[i] = time.Date(d.Year(), d.Month(), d.Day(), h, 0, 0, 0, time.UTC)
	}

	return t.withColumn(ColDateTime, combined), nil
}

// NormalizeColumnNames lower-cases every column name and then applies the
// rename map. Rename keys that match no column are ignored; the pipeline
// supplies a fixed map it trusts, and tolerating no-ops keeps the stage total.
func NormalizeColumnNames(t *Table, renames map[string]string) *Table {
	out := t.clone()
	for i, c := range out.cols {
		name := strings.ToLower(c)
		if newName, ok := renames[name]; ok {
			name = newName
		}
		out.cols[i] = name
	}
	return out
}

// TagWindStatus adds the wind_status column: "calm" when the row has no
// wind_direction_degrees value, "with wind" otherwise. Total over any table
// that has the degrees column.
func TagWindStatus(t *Table) (*Table, error) {
	degrees, err := t.Column(ColWindDirectionDegrees)
	if err != nil {
		return nil, err
	}

	status := make([]any, len(degrees))
	for i, deg := range degrees {
		if deg == nil {
			status[i] = WindStatusCalm
		} else {
			status[i] = WindStatusWithWind
		}
	}
	return t.withColumn(ColWindStatus, status), nil
}

// Physically implausible bounds for Madrid hourly readings.
const (
	outlierTempMin     = -10.0
	outlierTempMax     = 50.0
	outlierHumidityMin = 0.0
	outlierHumidityMax = 100.0
	outlierWindMin     = 0.0
)

// DetectOutliers returns the subset of rows holding physically implausible
// readings: temperature outside [-10, 50] °C, humidity outside [0, 100] %, or
// negative wind speed. It is a diagnostic filter for inspection and reporting;
// Clean never invokes it and outlier rows are never removed from the dataset.
func DetectOutliers(t *Table) (*Table, error) {
	for _, col := range []string{ColTemperature, ColHumidity, ColWindSpeed} {
		if !t.HasColumn(col) {
			return nil, fmt.Errorf("%w: column %q not found", ErrSchema, col)
		}
	}

	out := New(t.cols...)
	for r := range t.rows {
		temp, okT := t.numericCell(r, ColTemperature)
		hum, okH := t.numericCell(r, ColHumidity)
		wind, okW := t.numericCell(r, ColWindSpeed)

		flagged := (okT && (temp < outlierTempMin || temp > outlierTempMax)) ||
			(okH && (hum < outlierHumidityMin || hum > outlierHumidityMax)) ||
			(okW && wind < outlierWindMin)
		if flagged {
			out.rows = append(out.rows, append([]any(nil), t.rows[r]...))
		}
	}
	return out, nil
}

// numericCell reads a cell as float64. Missing or non-numeric cells report
// false and never flag a row.
func (t *Table) numericCell(row int, col string) (float64, bool) {
	v, _ := t.Cell(row, col)
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

// Deduplicate removes rows that are identical across every column, keeping
// the first occurrence, and reports how many rows were removed. Two forecasts
// for the same slot that differ in any cell are both kept; only full-row
// coincidence counts. Idempotent: re-running on its own output removes zero.
func Deduplicate(t *Table) (*Table, int) {
	seen := make(map[string]bool, len(t.rows))
	out := New(t.cols...)
	removed := 0
	for r := range t.rows {
		key := t.rowKey(r)
		if seen[key] {
			removed++
			continue
		}
		seen[key] = true
		out.rows = append(out.rows, append([]any(nil), t.rows[r]...))
	}
	return out, removed
}

// moveColumnFront reorders the table so the named column comes first.
func moveColumnFront(t *Table, name string) (*Table, error) {
	i := t.columnIndex(name)
	if i < 0 {
		return nil, fmt.Errorf("%w: column %q not found", ErrSchema, name)
	}

	order := append([]int{i}, make([]int, 0, len(t.cols)-1)...)
	for j := range t.cols {
		if j != i {
			order = append(order, j)
		}
	}

	out := &Table{cols: make([]string, len(t.cols)), rows: make([][]any, len(t.rows))}
	for j, idx := range order {
		out.cols[j] = t.cols[idx]
	}
	for r, row := range t.rows {
		cells := make([]any, len(order))
		for j, idx := range order {
			cells[j] = row[idx]
		}
		out.rows[r] = cells
	}
	return out, nil
}

// cleanRenames promotes the intermediate enrichment columns to their
// canonical public names at the end of the pipeline.
var cleanRenames = map[string]string{
	colSkyConditionEN:    ColSkyCondition,
	colWindDirectionDeg:  ColWindDirectionDegrees,
	colWindDirectionFull: ColWindDirection,
}

// Clean runs the full cleaning pipeline over a raw forecast table and returns
// the canonical cleaned table:
//
//	datetime, temperature, humidity, wind_speed, wind_direction,
//	wind_direction_degrees, sky_condition, wind_status
//
// The stage order is fixed: translate wind and sky, drop the consumed raw
// columns, normalize types, unify date+hour into datetime, drop date and
// hour, move datetime to the front, apply the canonical renames, tag wind
// status, deduplicate. Intermediate stages therefore operate on the
// AEMET-era column names; the canonical names exist only after the rename.
// Any stage error aborts the call with no partial output.
func Clean(t *Table) (*Table, error) {
	t, err := TranslateWindDirection(t)
	if err != nil {
		return nil, err
	}
	t, err = TranslateSkyCondition(t)
	if err != nil {
		return nil, err
	}
	t, err = DropColumns(t, ColWindDirection, ColSkyCondition, ColTimestamp)
	if err != nil {
		return nil, err
	}
	t, err = NormalizeTypes(t)
	if err != nil {
		return nil, err
	}
	t, err = UnifyDateTime(t)
	if err != nil {
		return nil, err
	}
	t, err = DropColumns(t, ColDate, ColHour)
	if err != nil {
		return nil, err
	}
	t, err = moveColumnFront(t, ColDateTime)
	if err != nil {
		return nil, err
	}
	t = NormalizeColumnNames(t, cleanRenames)
	t, err = TagWindStatus(t)
	if err != nil {
		return nil, err
	}
	t, _ = Deduplicate(t)
	return t, nil
}
