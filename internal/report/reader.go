package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sayhar/wiki-know/internal/safeio"
)

// Reader reads one test's metadata record, screenshot manifest, and auxiliary
// files from the report tree. It performs no caching; every call re-reads
// storage. Errors are structural only (file absent, parse failure).
type Reader struct {
	fs   *safeio.FS
	base string // subdirectory of fs holding one directory per test
}

// NewReader returns a Reader over base (usually "report") inside fsys.
func NewReader(fsys *safeio.FS, base string) *Reader {
	if base == "" {
		base = "report"
	}
	return &Reader{fs: fsys, base: base}
}

// Dir returns the fs-relative directory of a test.
func (r *Reader) Dir(testID string) string {
	return filepath.Join(r.base, testID)
}

// TestDirs lists the identifiers of all tests (one subdirectory each).
func (r *Reader) TestDirs() ([]string, error) {
	names, err := r.fs.SubdirNames(r.base)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, r.base)
		}
		return nil, err
	}
	return names, nil
}

// Files lists the plain filenames present in a test directory.
func (r *Reader) Files(testID string) ([]string, error) {
	entries, err := r.fs.ReadDir(r.Dir(testID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, testID)
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Meta reads the test's metadata record: the first data row of meta.csv.
func (r *Reader) Meta(testID string) (Meta, error) {
	f, err := r.fs.Open(filepath.Join(r.Dir(testID), "meta.csv"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Meta{}, fmt.Errorf("%w: %s", ErrNotFound, testID)
		}
		return Meta{}, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return Meta{}, fmt.Errorf("read meta header for %s: %w", testID, err)
	}
	row, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return Meta{}, fmt.Errorf("%w: %s has no metadata row", ErrNotFound, testID)
		}
		return Meta{}, fmt.Errorf("read meta row for %s: %w", testID, err)
	}

	fields := make(map[string]string, len(header))
	for i, name := range header {
		if i < len(row) {
			fields[strings.TrimSpace(name)] = row[i]
		}
	}

	var m Meta
	if m.LowerBound, err = requiredFloat(fields, "lowerbound"); err != nil {
		return Meta{}, fmt.Errorf("meta for %s: %w", testID, err)
	}
	if m.BestGuess, err = requiredFloat(fields, "bestguess"); err != nil {
		return Meta{}, fmt.Errorf("meta for %s: %w", testID, err)
	}
	if m.UpperBound, err = requiredFloat(fields, "upperbound"); err != nil {
		return Meta{}, fmt.Errorf("meta for %s: %w", testID, err)
	}
	ts, err := requiredFloat(fields, "time")
	if err != nil {
		return Meta{}, fmt.Errorf("meta for %s: %w", testID, err)
	}
	m.Time = int64(ts)
	m.Winner = fields["winner"]
	m.Loser = fields["loser"]
	m.Variable = fields["var"]
	m.Country = fields["country"]
	m.Language = fields["language"]

	// Monetary columns are optional and absent in older tests.
	pct, err1 := strconv.ParseFloat(fields["dollarimprovementpct"], 64)
	low, err2 := strconv.ParseFloat(fields["dollarlowerpct"], 64)
	up, err3 := strconv.ParseFloat(fields["dollarupperpct"], 64)
	if err1 == nil && err2 == nil && err3 == nil {
		m.HasDollar = true
		m.DollarPct = pct
		m.DollarLower = low
		m.DollarUpper = up
	}
	m.Campaign = fields["campaign"]
	return m, nil
}

func requiredFloat(fields map[string]string, key string) (float64, error) {
	raw, ok := fields[key]
	if !ok {
		return 0, fmt.Errorf("missing %q column", key)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", key, err)
	}
	return v, nil
}

// Screenshots reads the test's manifest. ErrMalformed is returned when the
// rows do not reference exactly two distinct variant names.
func (r *Reader) Screenshots(testID string) ([]ScreenshotRow, error) {
	f, err := r.fs.Open(filepath.Join(r.Dir(testID), "screenshots.csv"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, testID)
		}
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	if _, err := cr.Read(); err != nil { // header
		return nil, fmt.Errorf("read manifest header for %s: %w", testID, err)
	}

	var rows []ScreenshotRow
	variants := make(map[string]struct{})
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read manifest row for %s: %w", testID, err)
		}
		if len(rec) < 5 {
			continue
		}
		row := ScreenshotRow{
			Index:     rec[0],
			Variant:   rec[1],
			Primary:   rec[3],
			Secondary: rec[4],
		}
		rows = append(rows, row)
		variants[row.Variant] = struct{}{}
	}

	if len(variants) != 2 {
		return nil, fmt.Errorf("%w: %s has %d variants", ErrMalformed, testID, len(variants))
	}
	return rows, nil
}

// LongName resolves a variant slug to its long description via val_lookup.csv,
// falling back to the slug when the file or the entry is missing.
func (r *Reader) LongName(testID, slug string) string {
	f, err := r.fs.Open(filepath.Join(r.Dir(testID), "val_lookup.csv"))
	if err != nil {
		return slug
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	if _, err := cr.Read(); err != nil { // header
		return slug
	}
	for {
		rec, err := cr.Read()
		if err != nil {
			return slug
		}
		if len(rec) >= 2 && rec[0] == slug {
			return rec[1]
		}
	}
}

// Info returns the free-text description of a test, or "" when absent.
func (r *Reader) Info(testID string) string {
	b, err := r.fs.ReadFile(filepath.Join(r.Dir(testID), "info.txt"))
	if err != nil {
		return ""
	}
	return string(b)
}

// Fragments returns the pre-rendered report fragments for a test: the four
// lettered fragments when all are present, otherwise the single report.html,
// otherwise nil.
func (r *Reader) Fragments(testID string) []string {
	lettered := []string{"reportA.html", "reportB.html", "reportD.html", "reportE.html"}
	out := make([]string, 0, len(lettered))
	for _, name := range lettered {
		b, err := r.fs.ReadFile(filepath.Join(r.Dir(testID), name))
		if err != nil {
			out = nil
			break
		}
		out = append(out, string(b))
	}
	if out != nil {
		return out
	}
	if b, err := r.fs.ReadFile(filepath.Join(r.Dir(testID), "report.html")); err == nil {
		return []string{string(b)}
	}
	return nil
}
