package batch

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sayhar/wiki-know/internal/orderstore"
	"github.com/sayhar/wiki-know/internal/report"
)

// collisionMaxBumps caps how far a colliding sort key may be nudged before
// the identifier is appended after the keyed sequence instead.
const collisionMaxBumps = 10000

// scoreStep is the nudge applied to colliding best-guess scores.
const scoreStep = 0.001

// build constructs the named batch. siblings carries batches that were fully
// determined as a by-product and should be published alongside.
func (x *Index) build(ctx context.Context, name string) (ids []string, siblings map[string][]string, err error) {
	switch name {
	case Chronological:
		ids, err = x.buildChronological(ctx)
		if err == nil {
			siblings = map[string][]string{Reverse: reversed(ids)}
		}
		return ids, siblings, err
	case Reverse:
		chron, err := x.Tests(ctx, Chronological)
		if err != nil {
			return nil, nil, err
		}
		return reversed(chron), nil, nil
	case Random:
		return x.buildRandom()
	case Ascending:
		asc, err := x.buildAscending(ctx)
		if err != nil {
			return nil, nil, err
		}
		return asc, map[string][]string{Descending: reversed(asc)}, nil
	case Descending:
		asc, err := x.buildAscending(ctx)
		if err != nil {
			return nil, nil, err
		}
		return reversed(asc), map[string][]string{Ascending: asc}, nil
	case English:
		en, fr, err := x.partitionByLanguage(ctx)
		if err != nil {
			return nil, nil, err
		}
		return en, map[string][]string{Foreign: fr}, nil
	case Foreign:
		en, fr, err := x.partitionByLanguage(ctx)
		if err != nil {
			return nil, nil, err
		}
		return fr, map[string][]string{English: en}, nil
	case Interesting:
		ids, err = x.buildInteresting(ctx)
		return ids, nil, err
	default:
		ids = x.buildCustom(name)
		return ids, nil, nil
	}
}

// scanMetas reads metadata for every test directory with bounded parallelism.
// Tests without a readable meta row are skipped; the returned slices are
// parallel to the sorted directory listing with ok marking usable entries.
func (x *Index) scanMetas(ctx context.Context) (ids []string, metas []report.Meta, ok []bool, err error) {
	ids, err = x.reader.TestDirs()
	if err != nil {
		return nil, nil, nil, err
	}
	sort.Strings(ids)

	metas = make([]report.Meta, len(ids))
	ok = make([]bool, len(ids))
	var warnOnce sync.Once

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(x.workers)
	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m, err := x.reader.Meta(id)
			if err != nil {
				if !errors.Is(err, report.ErrNotFound) {
					warnOnce.Do(func() {
						log.Printf("batch: skipping %s: %v", id, err)
					})
				}
				return nil
			}
			metas[i] = m
			ok[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}
	return ids, metas, ok, nil
}

// buildChronological orders tests by launch timestamp. Equal timestamps are
// resolved deterministically: identifiers are visited in lexical order and a
// colliding timestamp is bumped by one second until it is free.
func (x *Index) buildChronological(ctx context.Context) ([]string, error) {
	ids, metas, ok, err := x.scanMetas(ctx)
	if err != nil {
		return nil, err
	}

	byTime := make(map[int64]string, len(ids))
	var overflow []string
	for i, id := range ids {
		if !ok[i] {
			continue
		}
		t := metas[i].Time
		bumps := 0
		for {
			if _, taken := byTime[t]; !taken {
				byTime[t] = id
				break
			}
			t++
			bumps++
			if bumps > collisionMaxBumps {
				log.Printf("batch: timestamp for %s collided %d times, appending out of order", id, bumps)
				overflow = append(overflow, id)
				break
			}
		}
	}

	keys := make([]int64, 0, len(byTime))
	for t := range byTime {
		keys = append(keys, t)
	}
	sort.Slice(keys, func(a, b int) bool { return keys[a] < keys[b] })

	out := make([]string, 0, len(byTime)+len(overflow))
	for _, t := range keys {
		out = append(out, byTime[t])
	}
	return append(out, overflow...), nil
}

// buildAscending orders tests by best-guess improvement score, low to high.
// Colliding scores are nudged up by a thousandth in lexical identifier order.
func (x *Index) buildAscending(ctx context.Context) ([]string, error) {
	ids, metas, ok, err := x.scanMetas(ctx)
	if err != nil {
		return nil, err
	}

	byScore := make(map[float64]string, len(ids))
	var overflow []string
	for i, id := range ids {
		if !ok[i] {
			continue
		}
		s := metas[i].BestGuess
		bumps := 0
		for {
			if _, taken := byScore[s]; !taken {
				byScore[s] = id
				break
			}
			s += scoreStep
			bumps++
			if bumps > collisionMaxBumps {
				log.Printf("batch: score for %s collided %d times, appending out of order", id, bumps)
				overflow = append(overflow, id)
				break
			}
		}
	}

	keys := make([]float64, 0, len(byScore))
	for s := range byScore {
		keys = append(keys, s)
	}
	sort.Float64s(keys)

	out := make([]string, 0, len(byScore)+len(overflow))
	for _, s := range keys {
		out = append(out, byScore[s])
	}
	return append(out, overflow...), nil
}

// buildRandom shuffles the directory listing once; the shuffled order is
// then pinned by the cache for the rest of the process.
func (x *Index) buildRandom() ([]string, map[string][]string, error) {
	ids, err := x.reader.TestDirs()
	if err != nil {
		return nil, nil, err
	}
	sort.Strings(ids)
	rand.Shuffle(len(ids), func(a, b int) {
		ids[a], ids[b] = ids[b], ids[a]
	})
	return ids, nil, nil
}

// englishLanguage reports whether a metadata language tag counts as English.
// "yy" is a legacy tag some English tests shipped with.
func englishLanguage(lang string) bool {
	switch strings.ToLower(lang) {
	case "en", "yy":
		return true
	}
	return false
}

// partitionByLanguage splits the chronological order into English and foreign
// sequences in one pass, preserving relative order in both.
func (x *Index) partitionByLanguage(ctx context.Context) (english, foreign []string, err error) {
	chron, err := x.Tests(ctx, Chronological)
	if err != nil {
		return nil, nil, err
	}
	for _, id := range chron {
		m, err := x.reader.Meta(id)
		if err != nil {
			continue
		}
		if englishLanguage(m.Language) {
			english = append(english, id)
		} else {
			foreign = append(foreign, id)
		}
	}
	return english, foreign, nil
}

// buildInteresting keeps the curated identifiers that actually exist,
// preserving the curated order.
func (x *Index) buildInteresting(ctx context.Context) ([]string, error) {
	chron, err := x.Tests(ctx, Chronological)
	if err != nil {
		return nil, err
	}
	members := memberIndex(chron)
	out := make([]string, 0, len(x.interesting))
	for _, id := range x.interesting {
		if _, ok := members[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

// buildCustom loads a stored order for an unrecognized batch name. A missing
// or failing lookup is a warning, never a fault: the batch is cached empty.
func (x *Index) buildCustom(name string) []string {
	if x.orders == nil {
		log.Printf("batch: no order store, %q resolves empty", name)
		return []string{}
	}
	ids, err := x.orders.Load(name)
	if err != nil {
		if errors.Is(err, orderstore.ErrNoOrder) {
			log.Printf("batch: unknown batch %q, serving empty", name)
		} else {
			log.Printf("batch: loading order for %q: %v", name, err)
		}
		return []string{}
	}
	return ids
}
