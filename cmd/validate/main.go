// Command validate performs data integrity checks over the collector's CSV
// datasets: canonical schema, per-row field validity, the calm invariant,
// duplicate detection, and raw/clean consistency. It exits non-zero when any
// check fails, so it can gate fixture regeneration.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -clean-csv data/madrid_weather_clean.csv \
//	  -raw-csv data/madrid_weather_forecast.csv
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/madridclima/weather-etl/internal/adapter/csvstore"
	"github.com/madridclima/weather-etl/internal/domain"
)

var canonicalColumns = []string{
	domain.ColDateTime,
	domain.ColTemperature,
	domain.ColHumidity,
	domain.ColWindSpeed,
	domain.ColWindDirection,
	domain.ColWindDirectionDegrees,
	domain.ColSkyCondition,
	domain.ColWindStatus,
}

var windDirectionNames = []string{
	"north", "northeast", "east", "southeast",
	"south", "southwest", "west", "northwest", "calm",
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func (p *phase) report() bool {
	if p.passed() {
		fmt.Printf("PASS %s\n", p.name)
		return true
	}
	fmt.Printf("FAIL %s\n", p.name)
	for _, e := range p.errors {
		fmt.Printf("  - %s\n", e)
	}
	return false
}

func main() {
	cleanCSV := flag.String("clean-csv", "", "path to the cleaned dataset CSV")
	rawCSV := flag.String("raw-csv", "", "optional path to the raw dataset CSV for cross-checking")
	flag.Parse()

	if *cleanCSV == "" {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(*cleanCSV, *rawCSV))
}

func run(cleanPath, rawPath string) int {
	store := csvstore.New(slog.Default())

	cleaned, err := store.Load(cleanPath)
	if err != nil {
		fmt.Printf("FAIL load cleaned dataset: %v\n", err)
		return 1
	}

	ok := checkSchema(cleaned).report()
	ok = checkRows(cleaned).report() && ok
	ok = checkDuplicates(cleaned).report() && ok

	if rawPath != "" {
		ok = checkRawConsistency(store, rawPath, cleaned).report() && ok
	}

	if !ok {
		return 1
	}
	fmt.Printf("OK %d rows validated\n", cleaned.Len())
	return 0
}

func checkSchema(t *domain.Table) *phase {
	p := &phase{name: "canonical schema"}
	if !slices.Equal(t.Columns(), canonicalColumns) {
		p.errorf("columns %v, want %v", t.Columns(), canonicalColumns)
	}
	return p
}

// checkRows validates every cell of the cleaned dataset. Cells come back from
// the CSV loader as strings, with empty cells as nil.
func checkRows(t *domain.Table) *phase {
	p := &phase{name: "row integrity"}
	if !t.HasColumn(domain.ColDateTime) {
		p.errorf("no %s column, skipping row checks", domain.ColDateTime)
		return p
	}

	for r := 0; r < t.Len(); r++ {
		checkRow(p, t, r)
	}
	return p
}

func checkRow(p *phase, t *domain.Table, r int) {
	dt, _ := t.Cell(r, domain.ColDateTime)
	s, ok := dt.(string)
	if !ok {
		p.errorf("row %d: empty datetime", r)
	} else if _, err := time.Parse("2006-01-02 15:04:05", s); err != nil {
		p.errorf("row %d: bad datetime %q", r, s)
	}

	for _, col := range []string{domain.ColTemperature, domain.ColHumidity, domain.ColWindSpeed} {
		v, _ := t.Cell(r, col)
		s, ok := v.(string)
		if !ok {
			continue // missing readings are allowed
		}
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			p.errorf("row %d: %s %q is not numeric", r, col, s)
		}
	}

	status, _ := t.Cell(r, domain.ColWindStatus)
	if status != domain.WindStatusCalm && status != domain.WindStatusWithWind {
		p.errorf("row %d: wind_status %v", r, status)
	}

	dir, _ := t.Cell(r, domain.ColWindDirection)
	if s, ok := dir.(string); ok && !slices.Contains(windDirectionNames, s) {
		p.errorf("row %d: wind_direction %q", r, s)
	}

	checkDegrees(p, t, r, status, dir)
}

// checkDegrees enforces the calm invariant: a row is calm exactly when it has
// no direction degrees, and a "calm" direction name always means a calm row.
func checkDegrees(p *phase, t *domain.Table, r int, status, dir any) {
	deg, _ := t.Cell(r, domain.ColWindDirectionDegrees)
	s, hasDeg := deg.(string)
	if hasDeg {
		d, err := strconv.ParseFloat(s, 64)
		if err != nil || d < 0 || d >= 360 {
			p.errorf("row %d: wind_direction_degrees %q outside [0, 360)", r, s)
		}
	}

	calm := status == domain.WindStatusCalm
	if calm == hasDeg {
		p.errorf("row %d: wind_status %v with degrees present=%t", r, status, hasDeg)
	}
	if dir == "calm" && !calm {
		p.errorf("row %d: calm direction but wind_status %v", r, status)
	}
}

func checkDuplicates(t *domain.Table) *phase {
	p := &phase{name: "no duplicate rows"}
	_, removed := domain.Deduplicate(t)
	if removed > 0 {
		p.errorf("%d fully identical rows", removed)
	}
	return p
}

// checkRawConsistency re-runs the cleaning pipeline over the raw dataset and
// compares the outcome with the cleaned CSV on disk.
func checkRawConsistency(store *csvstore.Store, rawPath string, cleaned *domain.Table) *phase {
	p := &phase{name: "raw/clean consistency"}

	raw, err := store.Load(rawPath)
	if err != nil {
		p.errorf("load raw dataset: %v", err)
		return p
	}

	recleaned, err := domain.Clean(raw)
	if err != nil {
		p.errorf("clean raw dataset: %v", err)
		return p
	}

	if recleaned.Len() != cleaned.Len() {
		p.errorf("cleaning the raw dataset yields %d rows, cleaned CSV has %d", recleaned.Len(), cleaned.Len())
	}

	outliers, err := domain.DetectOutliers(recleaned)
	if err != nil {
		p.errorf("detect outliers: %v", err)
		return p
	}
	if outliers.Len() > 0 {
		fmt.Printf("  note: %d rows hold physically implausible readings\n", outliers.Len())
	}
	return p
}
