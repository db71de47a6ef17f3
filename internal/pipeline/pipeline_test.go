package pipeline

import (
	"context"
	"testing"

	"github.com/atp2osm/atp2osm-import/internal/aggregate"
	"github.com/atp2osm/atp2osm-import/internal/audit"
	"github.com/atp2osm/atp2osm-import/internal/diff"
	"github.com/atp2osm/atp2osm-import/internal/logging"
	"github.com/atp2osm/atp2osm-import/internal/match"
	"github.com/atp2osm/atp2osm-import/internal/model"
	"github.com/atp2osm/atp2osm-import/internal/upload"
)

type fakeMatcher struct {
	pairs []match.Pair
}

func (m *fakeMatcher) Match(_ context.Context, f match.Filters) ([]match.Pair, error) {
	return m.pairs, nil
}

type fakePublisher struct {
	brands []string
}

func (p *fakePublisher) UploadGroup(_ context.Context, departement int, brand string, diffs []diff.TagDiff) upload.Result {
	p.brands = append(p.brands, brand)
	res := upload.Result{ChangesetIDs: []int64{111}, Published: len(diffs)}
	for _, d := range diffs {
		res.Entries = append(res.Entries, audit.Entry{TagDiff: d, ChangesetID: 111, Confirmed: true})
	}
	return res
}

func TestRunReportsBrandsWithoutDiffs(t *testing.T) {
	s := func(v string) *string { return &v }
	pairs := []match.Pair{
		// Q1 contributes a new tag; Q2 is already up to date.
		{OSMID: 1, NodeType: model.KindNode, Tags: model.Tags{},
			AtpBrandWikidata: s("Q1"), AtpCity: s("Paris"), SourceID: 10, Departement: 42},
		{OSMID: 2, NodeType: model.KindNode, Tags: model.Tags{"addr:city": "Lyon"},
			AtpBrandWikidata: s("Q2"), AtpCity: s("Lyon"), SourceID: 11, Departement: 42},
	}
	pub := &fakePublisher{}
	runner := NewRunner(&fakeMatcher{pairs: pairs}, pub, audit.NewStore(t.TempDir()), logging.NewNop())

	summary, err := runner.Run(context.Background(), Options{Departement: 42})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Matched != 2 || summary.Diffed != 1 || summary.Published != 1 {
		t.Errorf("summary = matched %d, diffed %d, published %d, want 2, 1, 1",
			summary.Matched, summary.Diffed, summary.Published)
	}
	if len(pub.brands) != 1 || pub.brands[0] != "Q1" {
		t.Errorf("published brands = %v, want [Q1]", pub.brands)
	}

	// Q2 matched but had nothing to change: it still appears in the scope
	// report with its matched count.
	if len(summary.Scopes) != 2 {
		t.Fatalf("len(Scopes) = %d, want 2", len(summary.Scopes))
	}
	var q2 *ScopeSummary
	for i := range summary.Scopes {
		if summary.Scopes[i].Brand == "Q2" {
			q2 = &summary.Scopes[i]
		}
	}
	if q2 == nil {
		t.Fatal("Q2 missing from scope report")
	}
	if q2.Matched != 1 || q2.Diffed != 0 || q2.Published != 0 {
		t.Errorf("Q2 scope = matched %d, diffed %d, published %d, want 1, 0, 0",
			q2.Matched, q2.Diffed, q2.Published)
	}
}

func TestDepartementsAllByDefault(t *testing.T) {
	deps, err := departements(Options{})
	if err != nil {
		t.Fatalf("departements: %v", err)
	}
	if len(deps) != 95 {
		t.Fatalf("len(deps) = %d, want 95", len(deps))
	}
	if deps[0] != 1 || deps[94] != 95 {
		t.Errorf("bounds = %d..%d, want 1..95", deps[0], deps[94])
	}
}

func TestDepartementsExplicit(t *testing.T) {
	deps, err := departements(Options{Departement: 13})
	if err != nil {
		t.Fatalf("departements: %v", err)
	}
	if len(deps) != 1 || deps[0] != 13 {
		t.Errorf("deps = %v, want [13]", deps)
	}

	if _, err := departements(Options{Departement: 96}); err == nil {
		t.Error("departement 96: expected error")
	}
}

func TestDepartementsFromPostcode(t *testing.T) {
	deps, err := departements(Options{Postcode: "69003"})
	if err != nil {
		t.Fatalf("departements: %v", err)
	}
	if len(deps) != 1 || deps[0] != 69 {
		t.Errorf("deps = %v, want [69]", deps)
	}

	// Consistent explicit departement is accepted.
	deps, err = departements(Options{Postcode: "69003", Departement: 69})
	if err != nil {
		t.Fatalf("departements: %v", err)
	}
	if len(deps) != 1 || deps[0] != 69 {
		t.Errorf("deps = %v, want [69]", deps)
	}

	// Conflicting explicit departement is rejected.
	if _, err := departements(Options{Postcode: "69003", Departement: 75}); err == nil {
		t.Error("conflicting postcode and departement: expected error")
	}

	if _, err := departements(Options{Postcode: "bogus"}); err == nil {
		t.Error("bad postcode: expected error")
	}
}

func TestBrandKey(t *testing.T) {
	q := "Q1"
	empty := ""
	if got := brandKey(&q); got != "Q1" {
		t.Errorf("brandKey(Q1) = %q", got)
	}
	if got := brandKey(nil); got != aggregate.NoBrand {
		t.Errorf("brandKey(nil) = %q, want %q", got, aggregate.NoBrand)
	}
	if got := brandKey(&empty); got != aggregate.NoBrand {
		t.Errorf("brandKey(\"\") = %q, want %q", got, aggregate.NoBrand)
	}
}
