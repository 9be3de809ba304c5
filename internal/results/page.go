package results

import (
	"context"
	"errors"
	"fmt"

	"github.com/sayhar/wiki-know/internal/batch"
	"github.com/sayhar/wiki-know/internal/diag"
)

// ErrNotInBatch marks a page request for a test outside the requested batch.
var ErrNotInBatch = errors.New("results: test not in batch")

// Page is the assembled view of a single test within a batch.
type Page struct {
	TestID string `json:"testname"`
	Batch  string `json:"batch"`

	Stats   Stats   `json:"stats"`
	Outcome Outcome `json:"outcome"`

	// Tables holds the pre-rendered report fragments, nil when absent.
	Tables []string `json:"tables,omitempty"`
	Info   string   `json:"description"`

	GraphName       string                     `json:"graphname"`
	ForceLocalGraph bool                       `json:"force_local_graph"`
	Diagnostics     map[string]diag.Descriptor `json:"diagnostic_graphs"`

	// Screenshots is nil when the manifest is missing or malformed.
	Screenshots *Screenshots `json:"screenshots,omitempty"`

	// Next and Prev are empty at the batch boundaries.
	Next string `json:"nexttest,omitempty"`
	Prev string `json:"prevtest,omitempty"`
}

// GuessPage carries what the guessing form needs before a result is revealed:
// the screenshots to choose between, but nothing that gives away the winner.
type GuessPage struct {
	TestID      string       `json:"testname"`
	Batch       string       `json:"batch"`
	Screenshots *Screenshots `json:"screenshots"`
	Date        string       `json:"date"`
	Info        string       `json:"description"`
	NoneToken   string       `json:"guessnone"`
}

// ResultPage assembles the full result view of a test. guess may be empty
// with hasGuess false for no-guess mode. Unknown tests surface
// report.ErrNotFound; membership failures surface ErrNotInBatch.
func (s *Service) ResultPage(ctx context.Context, testID, batchName, guess string, hasGuess bool) (*Page, error) {
	m, err := s.reader.Meta(testID)
	if err != nil {
		return nil, err
	}
	member, err := s.index.Member(ctx, testID, batchName)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, fmt.Errorf("%w: %s in %s", ErrNotInBatch, testID, batchName)
	}

	p := &Page{
		TestID:          testID,
		Batch:           batchName,
		Stats:           MetaStats(m),
		Outcome:         s.EvaluateGuess(testID, m, guess, hasGuess),
		Tables:          s.reader.Fragments(testID),
		Info:            s.reader.Info(testID),
		GraphName:       GraphName,
		ForceLocalGraph: s.ForceLocalGraph(ctx, testID),
	}

	if descs, err := s.diags.Descriptors(ctx, testID); err == nil {
		p.Diagnostics = descs
	}
	if rows, err := s.reader.Screenshots(testID); err == nil {
		p.Screenshots = s.GroupScreenshots(testID, rows)
	}

	if next, status, err := s.index.Next(ctx, testID, batchName); err == nil && status == batch.NavOK {
		p.Next = next
	}
	if prev, status, err := s.index.Prev(ctx, testID, batchName); err == nil && status == batch.NavOK {
		p.Prev = prev
	}
	return p, nil
}

// AskPage assembles the pre-guess view of a test. The screenshot manifest is
// mandatory here: without two variants there is nothing to guess between.
func (s *Service) AskPage(ctx context.Context, testID, batchName string) (*GuessPage, error) {
	m, err := s.reader.Meta(testID)
	if err != nil {
		return nil, err
	}
	rows, err := s.reader.Screenshots(testID)
	if err != nil {
		return nil, err
	}
	return &GuessPage{
		TestID:      testID,
		Batch:       batchName,
		Screenshots: s.GroupScreenshots(testID, rows),
		Date:        MetaStats(m).Date,
		Info:        s.reader.Info(testID),
		NoneToken:   GuessNoDifference,
	}, nil
}
