// Package csvstore persists observation tables as CSV files on disk and
// merges fresh forecast rows into the existing dataset.
package csvstore

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/madridclima/weather-etl/internal/domain"
)

// ErrNotFound reports a Load on a path with no dataset yet.
var ErrNotFound = errors.New("csvstore: file not found")

// Store reads and writes observation tables as CSV.
type Store struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Store {
	return &Store{logger: logger}
}

// Load reads a CSV file into a table. All cells come back as strings; empty
// cells become nil. Returns ErrNotFound when the file does not exist.
func (s *Store) Load(path string) (*domain.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("read %s: missing header", path)
	}

	tbl := domain.New(records[0]...)
	for _, record := range records[1:] {
		cells := make([]any, len(record))
		for i, field := range record {
			if field != "" {
				cells[i] = field
			}
		}
		if err := tbl.AppendRow(cells...); err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}
	return tbl, nil
}

// Save writes a table to path, creating parent directories as needed. When
// the write fails it falls back once to a timestamped sibling filename, the
// way the dataset has always survived a locked file. Returns the path
// actually written.
func (s *Store) Save(tbl *domain.Table, path string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}

	if err := s.write(tbl, path); err != nil {
		fallback := timestampedPath(path)
		s.logger.Warn("csv write failed, using fallback path", "path", path, "fallback", fallback, "error", err)
		if err2 := s.write(tbl, fallback); err2 != nil {
			return "", fmt.Errorf("write %s: %w (fallback also failed: %v)", path, err, err2)
		}
		return fallback, nil
	}
	return path, nil
}

func (s *Store) write(tbl *domain.Table, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write(tbl.Columns()); err != nil {
		f.Close()
		return err
	}
	for r := 0; r < tbl.Len(); r++ {
		record := make([]string, 0, len(tbl.Columns()))
		for _, col := range tbl.Columns() {
			v, _ := tbl.Cell(r, col)
			record = append(record, formatCell(v))
		}
		if err := w.Write(record); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func timestampedPath(path string) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	return fmt.Sprintf("%s_%s%s", stem, domain.Now().Format("20060102_150405"), ext)
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case time.Time:
		return x.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprintf("%v", x)
	}
}

// MergeForecast merges freshly parsed raw rows into the existing raw dataset.
// Rows are keyed by forecast slot (date, hour); an incoming row replaces any
// existing rows for the same slot, since the newer collection supersedes the
// stale forecast. The result is sorted by date then hour. Either argument may
// be nil or empty.
func MergeForecast(existing, incoming *domain.Table) (*domain.Table, error) {
	if incoming == nil || incoming.Len() == 0 {
		if existing == nil {
			return domain.New(), nil
		}
		return existing, nil
	}
	if existing == nil || existing.Len() == 0 {
		return sortBySlot(incoming)
	}

	fresh := make(map[string]bool, incoming.Len())
	for r := 0; r < incoming.Len(); r++ {
		key, err := slotKey(incoming, r)
		if err != nil {
			return nil, err
		}
		fresh[key] = true
	}

	merged := domain.New(existing.Columns()...)
	for r := 0; r < existing.Len(); r++ {
		key, err := slotKey(existing, r)
		if err != nil {
			return nil, err
		}
		if fresh[key] {
			continue // superseded by the new collection
		}
		if err := appendRowFrom(merged, existing, r); err != nil {
			return nil, err
		}
	}
	for r := 0; r < incoming.Len(); r++ {
		if err := appendRowFrom(merged, incoming, r); err != nil {
			return nil, err
		}
	}

	return sortBySlot(merged)
}

func appendRowFrom(dst, src *domain.Table, row int) error {
	cells := make([]any, 0, len(dst.Columns()))
	for _, col := range dst.Columns() {
		v, ok := src.Cell(row, col)
		if !ok {
			return fmt.Errorf("%w: column %q not found while merging", domain.ErrSchema, col)
		}
		cells = append(cells, v)
	}
	return dst.AppendRow(cells...)
}

// slot identifies one forecast hour of one day.
type slot struct {
	date time.Time
	hour int
}

func slotKey(t *domain.Table, row int) (string, error) {
	s, err := slotOf(t, row)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s#%02d", s.date.Format("2006-01-02"), s.hour), nil
}

func slotOf(t *domain.Table, row int) (slot, error) {
	rawDate, ok := t.Cell(row, domain.ColDate)
	if !ok {
		return slot{}, fmt.Errorf("%w: column %q not found", domain.ErrSchema, domain.ColDate)
	}
	rawHour, ok := t.Cell(row, domain.ColHour)
	if !ok {
		return slot{}, fmt.Errorf("%w: column %q not found", domain.ErrSchema, domain.ColHour)
	}

	date, err := parseSlotDate(rawDate)
	if err != nil {
		return slot{}, err
	}
	hour, err := parseSlotHour(rawHour)
	if err != nil {
		return slot{}, err
	}
	return slot{date: date, hour: hour}, nil
}

func parseSlotDate(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case string:
		for _, layout := range []string{"02/01/2006", "2006-01-02"} {
			if d, err := time.Parse(layout, x); err == nil {
				return d, nil
			}
		}
		return time.Time{}, fmt.Errorf("%w: unparseable date %q", domain.ErrParse, x)
	default:
		return time.Time{}, fmt.Errorf("%w: date cell has type %T", domain.ErrParse, v)
	}
}

func parseSlotHour(v any) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case float64:
		return int(x), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSuffix(x, ":00"))
		if err != nil {
			return 0, fmt.Errorf("%w: unparseable hour %q", domain.ErrParse, x)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: hour cell has type %T", domain.ErrParse, v)
	}
}

func sortBySlot(t *domain.Table) (*domain.Table, error) {
	type indexed struct {
		s   slot
		row int
	}
	slots := make([]indexed, t.Len())
	for r := 0; r < t.Len(); r++ {
		s, err := slotOf(t, r)
		if err != nil {
			return nil, err
		}
		slots[r] = indexed{s: s, row: r}
	}

	sort.SliceStable(slots, func(i, j int) bool {
		if !slots[i].s.date.Equal(slots[j].s.date) {
			return slots[i].s.date.Before(slots[j].s.date)
		}
		return slots[i].s.hour < slots[j].s.hour
	})

	out := domain.New(t.Columns()...)
	for _, idx := range slots {
		if err := appendRowFrom(out, t, idx.row); err != nil {
			return nil, err
		}
	}
	return out, nil
}
