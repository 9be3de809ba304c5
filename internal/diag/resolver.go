// Package diag discovers the diagnostic-chart assets of a test: which chart
// families are present and, per family, the highest asset index that exists.
package diag

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/sayhar/wiki-know/internal/assets"
	"github.com/sayhar/wiki-know/internal/report"
)

// Probe bounds. Diagnostic indices form a contiguous run starting at 1, and
// real tests cluster near StartIndex, so the probe bounces from there instead
// of scanning linearly. The values encode an assumption about the data set;
// override them through Config if that assumption changes.
const (
	DefaultStartIndex = 10
	DefaultMaxIndex   = 30
)

// Config tunes the bidirectional probe.
type Config struct {
	StartIndex int
	MaxIndex   int
}

// Descriptor records the outcome of asset discovery for one (test, family)
// pair. MaxIndex is 0 when no assets exist; UsedLocalFallback reports whether
// the confirming existence check fell back to a local file.
type Descriptor struct {
	MaxIndex          int  `json:"num"`
	UsedLocalFallback bool `json:"local"`
}

// Resolver discovers diagnostic assets, memoizing one Descriptor per
// (test, family) pair for the process lifetime. Entries are immutable once
// inserted; the map only ever grows.
type Resolver struct {
	reader *report.Reader
	oracle *assets.Oracle
	cfg    Config

	mu    sync.RWMutex
	cache map[cacheKey]Descriptor
}

type cacheKey struct {
	testID string
	family string
}

// NewResolver builds a resolver over the given reader and oracle.
// Zero config fields fall back to the defaults.
func NewResolver(reader *report.Reader, oracle *assets.Oracle, cfg Config) *Resolver {
	if cfg.StartIndex <= 0 {
		cfg.StartIndex = DefaultStartIndex
	}
	if cfg.MaxIndex <= cfg.StartIndex {
		cfg.MaxIndex = DefaultMaxIndex
	}
	return &Resolver{
		reader: reader,
		oracle: oracle,
		cfg:    cfg,
		cache:  make(map[cacheKey]Descriptor),
	}
}

// AssetName returns the manifest filename for a family and index.
// The empty family denotes the default diagnostic set.
func AssetName(family string, index int) string {
	if family == "" {
		return fmt.Sprintf("diagnostic_%d.jpeg", index)
	}
	return fmt.Sprintf("diagnostic_%s_%d.jpeg", family, index)
}

var familyPattern = regexp.MustCompile(`^diagnostic_(.+)_[0-9]+\.jpeg$`)

// Families lists the distinct diagnostic families present in the test
// directory, always including the default (empty) family, sorted with the
// default first.
func (r *Resolver) Families(testID string) ([]string, error) {
	files, err := r.reader.Files(testID)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{"": {}}
	for _, name := range files {
		if m := familyPattern.FindStringSubmatch(name); m != nil {
			seen[m[1]] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for fam := range seen {
		out = append(out, fam)
	}
	sort.Strings(out)
	return out, nil
}

// Max returns the Descriptor for one (test, family) pair, probing on first
// request and serving the memoized result thereafter.
func (r *Resolver) Max(ctx context.Context, testID, family string) Descriptor {
	key := cacheKey{testID: testID, family: family}
	r.mu.RLock()
	d, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return d
	}

	d = r.probe(ctx, testID, family)

	r.mu.Lock()
	if prev, ok := r.cache[key]; ok {
		d = prev // another goroutine probed first; keep its immutable entry
	} else {
		r.cache[key] = d
	}
	r.mu.Unlock()
	return d
}

// Descriptors discovers every family of a test and resolves each one.
func (r *Resolver) Descriptors(ctx context.Context, testID string) (map[string]Descriptor, error) {
	families, err := r.Families(testID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Descriptor, len(families))
	for _, fam := range families {
		out[fam] = r.Max(ctx, testID, fam)
	}
	return out, nil
}

// probe bounces around StartIndex until it brackets the top of the contiguous
// run: upward while assets exist, downward while they don't. It terminates
// within [0, MaxIndex] even when every check fails.
func (r *Resolver) probe(ctx context.Context, testID, family string) Descriptor {
	const (
		dirNone = iota
		dirUp
		dirDown
	)

	i := r.cfg.StartIndex
	direction := dirNone
	lastLocal := false // fallback flag of the most recent successful check
	for i > 0 && i <= r.cfg.MaxIndex {
		rel := "report/" + testID + "/" + AssetName(family, i)
		found, checkedRemotely := r.oracle.Exists(ctx, rel)

		if found {
			usedLocal := !checkedRemotely && r.oracle.RemoteEnabled()
			if direction == dirDown {
				// First hit while walking down from an absent index: this is the top.
				return Descriptor{MaxIndex: i, UsedLocalFallback: usedLocal}
			}
			lastLocal = usedLocal
			direction = dirUp
			i++
			continue
		}
		if direction == dirUp {
			// The previous index was the last one that existed.
			return Descriptor{MaxIndex: i - 1, UsedLocalFallback: lastLocal}
		}
		direction = dirDown
		i--
	}

	// Degenerate: nothing found below 1, or the run extends past MaxIndex.
	if i > r.cfg.MaxIndex {
		return Descriptor{MaxIndex: r.cfg.MaxIndex, UsedLocalFallback: lastLocal}
	}
	return Descriptor{MaxIndex: i}
}
