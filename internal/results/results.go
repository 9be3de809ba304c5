// Package results assembles the presentation-level view of a single test and
// of the full directory listing: win statistics, screenshot groupings, guess
// evaluation, and diagnostic graph descriptors.
package results

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/sayhar/wiki-know/internal/assets"
	"github.com/sayhar/wiki-know/internal/batch"
	"github.com/sayhar/wiki-know/internal/cache"
	"github.com/sayhar/wiki-know/internal/diag"
	"github.com/sayhar/wiki-know/internal/report"
)

// GuessNoDifference is the reserved guess token meaning "no clear winner".
const GuessNoDifference = "__guess_no_difference__"

// GraphName is the primary results graph shipped with every report.
const GraphName = "pamplona.jpeg"

// NoShotAsset is the placeholder image for variants without a screenshot.
const NoShotAsset = "img/noshot.gif"

// Kind classifies a test by its screenshot layout.
type Kind string

const (
	// KindSingle means each variant has exactly one screenshot.
	KindSingle Kind = "single"
	// KindMultivariate means at least one variant has several screenshots.
	KindMultivariate Kind = "multivariate"
	// KindCombo means at least one row carried a secondary screenshot.
	KindCombo Kind = "combo"
)

// Screenshots groups a test's screenshots by variant slug.
type Screenshots struct {
	// Shots maps variant slug to asset paths, first appearance order.
	// A variant with no usable screenshot gets the no-shot placeholder.
	Shots map[string][]string
	// LongNames maps variant slug to its human description.
	LongNames map[string]string
	Kind      Kind
}

// Stats is the display form of a test's win metrics.
type Stats struct {
	WinBy      float64 `json:"win_by"`
	LowerBound float64 `json:"atleast"`
	UpperBound float64 `json:"atmost"`
	Variable   string  `json:"variable"`
	Country    string  `json:"country"`
	Language   string  `json:"language"`
	Date       string  `json:"date"`

	HasDollar   bool    `json:"has_dollar"`
	DollarPct   float64 `json:"dollar_pct,omitempty"`
	DollarLower float64 `json:"lower_dollar,omitempty"`
	DollarUpper float64 `json:"upper_dollar,omitempty"`
	Campaign    string  `json:"campaign"`
}

// Outcome is a guess evaluation against a test's recorded winner.
type Outcome struct {
	IsConfident bool `json:"isconfidence"`
	// Evaluated is false when no guess was submitted; the Correct fields
	// are meaningless then.
	Evaluated        bool `json:"evaluated"`
	GuessedCorrectly bool `json:"guessedcorrectly"`
	LeanCorrectly    bool `json:"leancorrectly"`
	// Winner and Loser are long descriptions, not slugs.
	Winner string `json:"winner"`
	Loser  string `json:"loser"`
}

// Options tunes a Service.
type Options struct {
	// DirectoryTTL bounds how long the directory base data is served before
	// being rebuilt; <= 0 uses a 15 minute default.
	DirectoryTTL time.Duration
}

// Service builds view models for test and directory pages.
type Service struct {
	reader *report.Reader
	index  *batch.Index
	diags  *diag.Resolver
	oracle *assets.Oracle

	dirCache *cache.LRUTTL[string, []DirectoryEntry]
}

// NewService wires a results service over its collaborators.
func NewService(reader *report.Reader, index *batch.Index, diags *diag.Resolver, oracle *assets.Oracle, opts Options) *Service {
	ttl := opts.DirectoryTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Service{
		reader:   reader,
		index:    index,
		diags:    diags,
		oracle:   oracle,
		dirCache: cache.NewLRUTTL[string, []DirectoryEntry](4, ttl),
	}
}

// dateFormat renders launch timestamps the way the reports always have.
const dateFormat = "Mon, 02 Jan 2006 15:04:05 UTC"

// MetaStats converts a metadata row into its display statistics.
func MetaStats(m report.Meta) Stats {
	s := Stats{
		WinBy:      m.BestGuess,
		LowerBound: m.LowerBound,
		UpperBound: m.UpperBound,
		Variable:   m.Variable,
		Country:    m.Country,
		Language:   m.Language,
		Date:       time.Unix(m.Time, 0).UTC().Format(dateFormat),
		Campaign:   "Unknown",
	}
	if m.HasDollar {
		s.HasDollar = true
		s.DollarPct = m.DollarPct
		s.DollarLower = m.DollarLower
		s.DollarUpper = m.DollarUpper
		s.Campaign = m.Campaign
	}
	return s
}

// EvaluateGuess scores a submitted guess against the recorded winner. Guesses
// are compared against variant slugs case-insensitively; a low-confidence
// test is only "guessed correctly" by the no-difference token, though naming
// the nominal winner still counts as leaning correctly.
func (s *Service) EvaluateGuess(testID string, m report.Meta, guess string, hasGuess bool) Outcome {
	out := Outcome{IsConfident: m.Confident()}
	if hasGuess {
		out.Evaluated = true
		if out.IsConfident {
			out.GuessedCorrectly = strings.EqualFold(guess, m.Winner)
		} else {
			out.GuessedCorrectly = guess == GuessNoDifference
		}
		out.LeanCorrectly = strings.EqualFold(guess, m.Winner)
	}
	out.Winner = s.reader.LongName(testID, m.Winner)
	out.Loser = s.reader.LongName(testID, m.Loser)
	return out
}

// GroupScreenshots folds the per-row manifest into per-variant groups. Rows
// are processed in file order; a screenshot is added once no matter how many
// rows repeat it, and "NA" cells are holes, not screenshots. Variants left
// with no screenshot at all receive the no-shot placeholder.
func (s *Service) GroupScreenshots(testID string, rows []report.ScreenshotRow) *Screenshots {
	shots := make(map[string][]string)
	longnames := make(map[string]string)
	combo := false

	for _, row := range rows {
		if _, seen := shots[row.Variant]; !seen {
			longnames[row.Variant] = s.reader.LongName(testID, row.Variant)
			shots[row.Variant] = []string{}
		}
		if row.Primary == report.NA {
			continue
		}
		shots[row.Variant] = appendMissing(shots[row.Variant], row.Primary)
		if row.Secondary != report.NA {
			combo = true
			shots[row.Variant] = appendMissing(shots[row.Variant], row.Secondary)
		}
	}

	kind := KindSingle
	for _, group := range shots {
		if len(group) > 1 {
			kind = KindMultivariate
			break
		}
	}
	if combo {
		kind = KindCombo
	}

	placeholder := s.oracle.Resolve(NoShotAsset)
	for variant, group := range shots {
		if len(group) == 0 {
			shots[variant] = []string{placeholder}
		}
	}
	return &Screenshots{Shots: shots, LongNames: longnames, Kind: kind}
}

func appendMissing(group []string, shot string) []string {
	for _, have := range group {
		if have == shot {
			return group
		}
	}
	return append(group, shot)
}

// ForceLocalGraph reports whether the results graph must be served from the
// local tree because the remote store does not have it. Always false when no
// remote store is configured.
func (s *Service) ForceLocalGraph(ctx context.Context, testID string) bool {
	if !s.oracle.RemoteEnabled() {
		return false
	}
	found, checkedRemotely := s.oracle.Exists(ctx, path.Join("report", testID, GraphName))
	return !found || !checkedRemotely
}
