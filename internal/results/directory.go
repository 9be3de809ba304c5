package results

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/sayhar/wiki-know/internal/batch"
)

// ErrUnsupportedBatch marks a directory request for an order the listing
// does not serve. The directory is only materialized chronologically; other
// orders would need their own expensive scan.
var ErrUnsupportedBatch = errors.New("results: unsupported directory batch")

// DirectoryEntry is one test's row in the directory listing.
type DirectoryEntry struct {
	TestID      string              `json:"testname"`
	Shots       map[string][]string `json:"shots"`
	LongNames   map[string]string   `json:"longnames"`
	Date        string              `json:"date"`
	Variable    string              `json:"variable"`
	Stats       Stats               `json:"stats"`
	WinnerSlug  string              `json:"winner"`
	LoserSlug   string              `json:"loser"`
}

// Directory is the full listing in the requested order.
type Directory struct {
	Batch string           `json:"batch"`
	Tests []DirectoryEntry `json:"tests"`
}

const dirBaseKey = "base"

// Directory builds the listing for chronological or reverse order. The
// underlying per-test data is scanned once and cached with a TTL; reverse is
// served by flipping the cached chronological base.
func (s *Service) Directory(ctx context.Context, batchName string) (*Directory, error) {
	if batchName != batch.Chronological && batchName != batch.Reverse {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBatch, batchName)
	}

	base, ok := s.dirCache.Get(dirBaseKey)
	if !ok {
		var err error
		base, err = s.buildDirectoryBase(ctx)
		if err != nil {
			return nil, err
		}
		s.dirCache.Set(dirBaseKey, base)
	}

	entries := base
	if batchName == batch.Reverse {
		entries = make([]DirectoryEntry, len(base))
		for i, e := range base {
			entries[len(base)-1-i] = e
		}
	}
	return &Directory{Batch: batchName, Tests: entries}, nil
}

// buildDirectoryBase walks the chronological batch once, collecting each
// test's screenshots and statistics. Tests with unreadable manifests are
// logged and skipped rather than failing the whole listing.
func (s *Service) buildDirectoryBase(ctx context.Context) ([]DirectoryEntry, error) {
	ids, err := s.index.Tests(ctx, batch.Chronological)
	if err != nil {
		return nil, err
	}

	entries := make([]DirectoryEntry, 0, len(ids))
	for _, id := range ids {
		m, err := s.reader.Meta(id)
		if err != nil {
			log.Printf("directory: skipping %s: %v", id, err)
			continue
		}
		rows, err := s.reader.Screenshots(id)
		if err != nil {
			log.Printf("directory: skipping %s: %v", id, err)
			continue
		}
		shots := s.GroupScreenshots(id, rows)
		stats := MetaStats(m)
		entries = append(entries, DirectoryEntry{
			TestID:     id,
			Shots:      shots.Shots,
			LongNames:  shots.LongNames,
			Date:       stats.Date,
			Variable:   stats.Variable,
			Stats:      stats,
			WinnerSlug: m.Winner,
			LoserSlug:  m.Loser,
		})
	}
	return entries, nil
}
