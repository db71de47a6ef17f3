package aggregate

import (
	"reflect"
	"testing"

	"github.com/atp2osm/atp2osm-import/internal/diff"
	"github.com/atp2osm/atp2osm-import/internal/model"
)

func sampleDiffs() []diff.TagDiff {
	return []diff.TagDiff{
		{OSMID: 1, BrandWikidata: "Q1", Departement: 75},
		{OSMID: 2, BrandWikidata: "Q2", Departement: 75},
		{OSMID: 3, BrandWikidata: "Q1", Departement: 13},
		{OSMID: 4, BrandWikidata: "", Departement: 13},
	}
}

func TestGroupByBrandPartitions(t *testing.T) {
	groups := GroupByBrand(sampleDiffs())

	if len(groups) != 3 {
		t.Fatalf("len(groups) = %d, want 3", len(groups))
	}
	if got := len(groups["Q1"]); got != 2 {
		t.Errorf("len(Q1) = %d, want 2", got)
	}
	if got := len(groups[NoBrand]); got != 1 {
		t.Errorf("len(%s) = %d, want 1", NoBrand, got)
	}

	// Every diff lands in exactly one group.
	total := 0
	for _, g := range groups {
		total += len(g)
	}
	if total != 4 {
		t.Errorf("total grouped = %d, want 4", total)
	}

	// Input order survives within a group.
	if groups["Q1"][0].OSMID != 1 || groups["Q1"][1].OSMID != 3 {
		t.Errorf("Q1 order = %d, %d, want 1, 3", groups["Q1"][0].OSMID, groups["Q1"][1].OSMID)
	}
}

func TestComputeStats(t *testing.T) {
	diffs := []diff.TagDiff{
		{
			Departement: 75,
			OldTags:     model.Tags{"name": "Foo"},
			NewTags:     model.Tags{"name": "Foo", "website": "foo.fr", "phone": "01"},
		},
		{
			Departement: 13,
			OldTags:     model.Tags{},
			NewTags:     model.Tags{"website": "bar.fr"},
		},
	}

	stats := ComputeStats(diffs)

	if stats.Total != 2 {
		t.Errorf("Total = %d, want 2", stats.Total)
	}
	// "name" is unchanged and must not count.
	wantKeys := map[string]int{"website": 2, "phone": 1}
	if !reflect.DeepEqual(stats.ByKey, wantKeys) {
		t.Errorf("ByKey = %v, want %v", stats.ByKey, wantKeys)
	}
	wantDeps := map[int]int{75: 1, 13: 1}
	if !reflect.DeepEqual(stats.ByDepartement, wantDeps) {
		t.Errorf("ByDepartement = %v, want %v", stats.ByDepartement, wantDeps)
	}
	if got := stats.Keys(); !reflect.DeepEqual(got, []string{"website", "phone"}) {
		t.Errorf("Keys() = %v, want [website phone]", got)
	}
}
