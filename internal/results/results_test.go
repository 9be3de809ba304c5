package results

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sayhar/wiki-know/internal/assets"
	"github.com/sayhar/wiki-know/internal/batch"
	"github.com/sayhar/wiki-know/internal/diag"
	"github.com/sayhar/wiki-know/internal/report"
	"github.com/sayhar/wiki-know/internal/safeio"
)

const metaHeader = "lowerbound,bestguess,upperbound,winner,loser,var,country,language,time\n"

type fixture struct {
	t    *testing.T
	root string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "report"), 0o755); err != nil {
		t.Fatalf("mkdir report: %v", err)
	}
	return &fixture{t: t, root: root}
}

func (f *fixture) write(testID, name, content string) {
	f.t.Helper()
	dir := filepath.Join(f.root, "report", testID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		f.t.Fatalf("mkdir %s: %v", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		f.t.Fatalf("write %s: %v", name, err)
	}
}

func (f *fixture) writeMeta(testID string, lower float64, winner, loser string, ts int64) {
	f.t.Helper()
	row := fmt.Sprintf("%g,1.5,3.0,%s,%s,banner,US,en,%d\n", lower, winner, loser, ts)
	f.write(testID, "meta.csv", metaHeader+row)
}

func (f *fixture) service() *Service {
	f.t.Helper()
	fsys, err := safeio.New(f.root)
	if err != nil {
		f.t.Fatalf("safeio.New: %v", err)
	}
	reader := report.NewReader(fsys, "report")
	oracle := assets.NewOracle(assets.LocalResolver{}, fsys, nil, 0)
	idx := batch.NewIndex(reader, nil, batch.Options{})
	diags := diag.NewResolver(reader, oracle, diag.Config{})
	return NewService(reader, idx, diags, oracle, Options{})
}

func TestMetaStatsFormatsDate(t *testing.T) {
	s := MetaStats(report.Meta{Time: 1366633701, BestGuess: 2.5})
	if s.Date != "Mon, 22 Apr 2013 12:28:21 UTC" {
		t.Fatalf("unexpected date: %q", s.Date)
	}
	if s.WinBy != 2.5 {
		t.Fatalf("unexpected win_by: %g", s.WinBy)
	}
	if s.HasDollar || s.Campaign != "Unknown" {
		t.Fatalf("dollarless meta should have Unknown campaign: %+v", s)
	}
}

func TestMetaStatsCarriesDollarFields(t *testing.T) {
	s := MetaStats(report.Meta{
		HasDollar: true, DollarPct: 5.5, DollarLower: 1.1, DollarUpper: 9.9,
		Campaign: "C14",
	})
	if !s.HasDollar || s.DollarPct != 5.5 || s.Campaign != "C14" {
		t.Fatalf("unexpected stats: %+v", s)
	}
}

func TestEvaluateGuess(t *testing.T) {
	f := newFixture(t)
	f.writeMeta("t1", 0.2, "B", "A", 100)
	f.write("t1", "val_lookup.csv", "slug,description\nA,Plain banner\nB,Bold banner\n")
	svc := f.service()

	m, err := report.NewReader(mustFS(t, f.root), "report").Meta("t1")
	if err != nil {
		t.Fatalf("Meta: %v", err)
	}

	out := svc.EvaluateGuess("t1", m, "b", true)
	if !out.GuessedCorrectly || !out.LeanCorrectly || !out.IsConfident {
		t.Fatalf("case-insensitive winner guess should score: %+v", out)
	}
	if out.Winner != "Bold banner" || out.Loser != "Plain banner" {
		t.Fatalf("expected long names, got %+v", out)
	}

	out = svc.EvaluateGuess("t1", m, "A", true)
	if out.GuessedCorrectly || out.LeanCorrectly {
		t.Fatalf("loser guess should not score: %+v", out)
	}

	out = svc.EvaluateGuess("t1", m, "", false)
	if out.Evaluated {
		t.Fatalf("no guess submitted, outcome should be unevaluated")
	}
}

func TestEvaluateGuessLowConfidence(t *testing.T) {
	f := newFixture(t)
	f.writeMeta("t1", -0.3, "B", "A", 100)
	svc := f.service()
	m, err := report.NewReader(mustFS(t, f.root), "report").Meta("t1")
	if err != nil {
		t.Fatalf("Meta: %v", err)
	}

	out := svc.EvaluateGuess("t1", m, GuessNoDifference, true)
	if !out.Evaluated || out.IsConfident || !out.GuessedCorrectly {
		t.Fatalf("no-difference guess should score on low confidence: %+v", out)
	}
	if out.LeanCorrectly {
		t.Fatalf("no-difference token is not a lean toward the winner")
	}

	out = svc.EvaluateGuess("t1", m, "B", true)
	if out.GuessedCorrectly || !out.LeanCorrectly {
		t.Fatalf("naming the nominal winner is a lean, not a correct guess: %+v", out)
	}
}

func TestGroupScreenshots(t *testing.T) {
	f := newFixture(t)
	svc := f.service()

	shots := svc.GroupScreenshots("t1", []report.ScreenshotRow{
		{Variant: "A", Primary: "a1.png", Secondary: report.NA},
		{Variant: "A", Primary: "a1.png", Secondary: report.NA}, // duplicate row
		{Variant: "A", Primary: "a2.png", Secondary: report.NA},
		{Variant: "B", Primary: report.NA, Secondary: report.NA},
	})
	if got := shots.Shots["A"]; len(got) != 2 || got[0] != "a1.png" || got[1] != "a2.png" {
		t.Fatalf("unexpected group A: %v", got)
	}
	if got := shots.Shots["B"]; len(got) != 1 || got[0] != "/static/img/noshot.gif" {
		t.Fatalf("variant with no shots should get the placeholder, got %v", got)
	}
	if shots.Kind != KindMultivariate {
		t.Fatalf("expected multivariate, got %s", shots.Kind)
	}
}

func TestGroupScreenshotsKinds(t *testing.T) {
	f := newFixture(t)
	svc := f.service()

	single := svc.GroupScreenshots("t1", []report.ScreenshotRow{
		{Variant: "A", Primary: "a.png", Secondary: report.NA},
		{Variant: "B", Primary: "b.png", Secondary: report.NA},
	})
	if single.Kind != KindSingle {
		t.Fatalf("expected single, got %s", single.Kind)
	}

	combo := svc.GroupScreenshots("t1", []report.ScreenshotRow{
		{Variant: "A", Primary: "a.png", Secondary: "a-side.png"},
		{Variant: "B", Primary: "b.png", Secondary: report.NA},
	})
	if combo.Kind != KindCombo {
		t.Fatalf("expected combo, got %s", combo.Kind)
	}
	if got := combo.Shots["A"]; len(got) != 2 || got[1] != "a-side.png" {
		t.Fatalf("secondary shot should join the group: %v", got)
	}
}

func TestForceLocalGraphFalseWithoutRemote(t *testing.T) {
	f := newFixture(t)
	svc := f.service()
	if svc.ForceLocalGraph(context.Background(), "t1") {
		t.Fatalf("no remote store configured, nothing to force")
	}
}

func TestResultPageAssembly(t *testing.T) {
	f := newFixture(t)
	f.writeMeta("t1", 0.2, "B", "A", 100)
	f.writeMeta("t2", 0.2, "B", "A", 200)
	f.write("t1", "screenshots.csv",
		"index,variant,extra,shot,shot2\n1,A,x,a.png,NA\n2,B,x,b.png,NA\n")
	f.write("t1", "info.txt", "April banner test")
	svc := f.service()
	ctx := context.Background()

	p, err := svc.ResultPage(ctx, "t1", batch.Chronological, "B", true)
	if err != nil {
		t.Fatalf("ResultPage: %v", err)
	}
	if !p.Outcome.GuessedCorrectly {
		t.Fatalf("expected correct guess: %+v", p.Outcome)
	}
	if p.Info != "April banner test" {
		t.Fatalf("unexpected info: %q", p.Info)
	}
	if p.GraphName != GraphName {
		t.Fatalf("unexpected graph name: %q", p.GraphName)
	}
	if p.Screenshots == nil || p.Screenshots.Kind != KindSingle {
		t.Fatalf("expected single-kind screenshots, got %+v", p.Screenshots)
	}
	if p.Next != "t2" || p.Prev != "" {
		t.Fatalf("unexpected navigation: next=%q prev=%q", p.Next, p.Prev)
	}
	if p.Diagnostics == nil {
		t.Fatalf("expected diagnostic descriptors")
	}
}

func TestResultPageRejectsNonMember(t *testing.T) {
	f := newFixture(t)
	f.writeMeta("t1", 0.2, "B", "A", 100)
	svc := f.service()

	_, err := svc.ResultPage(context.Background(), "t1", "no-such-batch", "", false)
	if !errors.Is(err, ErrNotInBatch) {
		t.Fatalf("expected ErrNotInBatch, got %v", err)
	}

	_, err = svc.ResultPage(context.Background(), "missing", batch.Chronological, "", false)
	if !errors.Is(err, report.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAskPageRequiresManifest(t *testing.T) {
	f := newFixture(t)
	f.writeMeta("t1", 0.2, "B", "A", 100)
	svc := f.service()

	if _, err := svc.AskPage(context.Background(), "t1", batch.Chronological); !errors.Is(err, report.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing manifest, got %v", err)
	}

	f.write("t1", "screenshots.csv",
		"index,variant,extra,shot,shot2\n1,A,x,a.png,NA\n2,B,x,b.png,NA\n")
	p, err := svc.AskPage(context.Background(), "t1", batch.Chronological)
	if err != nil {
		t.Fatalf("AskPage: %v", err)
	}
	if p.NoneToken != GuessNoDifference {
		t.Fatalf("unexpected none token: %q", p.NoneToken)
	}
	if len(p.Screenshots.Shots) != 2 {
		t.Fatalf("expected both variants, got %v", p.Screenshots.Shots)
	}
}

func TestDirectoryOrdersAndCaches(t *testing.T) {
	f := newFixture(t)
	f.writeMeta("t1", 0.2, "B", "A", 100)
	f.writeMeta("t2", 0.2, "B", "A", 200)
	for _, id := range []string{"t1", "t2"} {
		f.write(id, "screenshots.csv",
			"index,variant,extra,shot,shot2\n1,A,x,a.png,NA\n2,B,x,b.png,NA\n")
	}
	svc := f.service()
	ctx := context.Background()

	chron, err := svc.Directory(ctx, batch.Chronological)
	if err != nil {
		t.Fatalf("Directory: %v", err)
	}
	if len(chron.Tests) != 2 || chron.Tests[0].TestID != "t1" {
		t.Fatalf("unexpected chronological listing: %+v", chron.Tests)
	}

	rev, err := svc.Directory(ctx, batch.Reverse)
	if err != nil {
		t.Fatalf("Directory reverse: %v", err)
	}
	if rev.Tests[0].TestID != "t2" || rev.Tests[1].TestID != "t1" {
		t.Fatalf("unexpected reverse listing: %+v", rev.Tests)
	}

	if _, err := svc.Directory(ctx, batch.Random); !errors.Is(err, ErrUnsupportedBatch) {
		t.Fatalf("expected ErrUnsupportedBatch, got %v", err)
	}
}

func TestDirectorySkipsBrokenManifests(t *testing.T) {
	f := newFixture(t)
	f.writeMeta("good", 0.2, "B", "A", 100)
	f.write("good", "screenshots.csv",
		"index,variant,extra,shot,shot2\n1,A,x,a.png,NA\n2,B,x,b.png,NA\n")
	f.writeMeta("broken", 0.2, "B", "A", 200)
	f.write("broken", "screenshots.csv",
		"index,variant,extra,shot,shot2\n1,A,x,a.png,NA\n")
	svc := f.service()

	dir, err := svc.Directory(context.Background(), batch.Chronological)
	if err != nil {
		t.Fatalf("Directory: %v", err)
	}
	if len(dir.Tests) != 1 || dir.Tests[0].TestID != "good" {
		t.Fatalf("broken manifest should be skipped: %+v", dir.Tests)
	}
}

func mustFS(t *testing.T, root string) *safeio.FS {
	t.Helper()
	fsys, err := safeio.New(root)
	if err != nil {
		t.Fatalf("safeio.New: %v", err)
	}
	return fsys
}
