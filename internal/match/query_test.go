package match

import (
	"strings"
	"testing"
)

func TestBuildQueryDepartementOnly(t *testing.T) {
	query, args, err := BuildQuery(Filters{Departement: 75})
	if err != nil {
		t.Fatalf("BuildQuery: %v", err)
	}

	if !strings.Contains(query, "atp.departement_number = $1") {
		t.Errorf("query missing departement placeholder:\n%s", query)
	}
	if strings.Contains(query, "similarity(") {
		t.Error("fuzzy clause present without FuzzyNames")
	}
	if len(args) != 1 || args[0] != 75 {
		t.Errorf("args = %v, want [75]", args)
	}
}

func TestBuildQueryAllFilters(t *testing.T) {
	query, args, err := BuildQuery(Filters{
		Departement:      13,
		Brand:            "Q123",
		Postcode:         "13001",
		FuzzyNames:       true,
		ExcludeSourceIDs: []int64{7, 9},
	})
	if err != nil {
		t.Fatalf("BuildQuery: %v", err)
	}

	for _, fragment := range []string{
		"atp.departement_number = $1",
		"atp.brand_wikidata = $2",
		"atp.postcode = $3",
		"NOT (atp.id = ANY($4))",
		"similarity(LOWER(osm.name), LOWER(atp.name)) > " + FuzzyNameThreshold,
		"ST_DWithin",
		"pt_cnt <= 1 AND poly_cnt <= 1",
	} {
		if !strings.Contains(query, fragment) {
			t.Errorf("query missing %q:\n%s", fragment, query)
		}
	}
	if len(args) != 4 {
		t.Errorf("len(args) = %d, want 4", len(args))
	}
	if args[0] != 13 || args[1] != "Q123" || args[2] != "13001" {
		t.Errorf("scalar args = %v", args[:3])
	}
}

func TestBuildQueryNoValueInterpolation(t *testing.T) {
	brand := "Q1'; DROP TABLE atp_fr; --"
	query, _, err := BuildQuery(Filters{Departement: 1, Brand: brand})
	if err != nil {
		t.Fatalf("BuildQuery: %v", err)
	}
	if strings.Contains(query, brand) {
		t.Error("filter value interpolated into SQL text")
	}
}

func TestBuildQueryRejectsBadDepartement(t *testing.T) {
	for _, dep := range []int{0, -3, 96, 200} {
		if _, _, err := BuildQuery(Filters{Departement: dep}); err == nil {
			t.Errorf("departement %d: expected error", dep)
		}
	}
}
