package match

import (
	"reflect"
	"testing"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"+33 1 23 45 67 89", "0123456789"},
		{"+33123456789", "0123456789"},
		{"01 23 45 67 89", "0123456789"},
		{"0123456789", "0123456789"},
		{"+44 20 7946 0000", "+442079460000"},
	}
	for _, tt := range tests {
		if got := NormalizePhone(tt.in); got != tt.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeWebsite(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://Example.fr/Shop", "example.fr/shop"},
		{"http://example.fr", "example.fr"},
		{"HTTPS://EXAMPLE.FR", "example.fr"},
		{"example.fr", "example.fr"},
		{"ftp://example.fr", "ftp://example.fr"},
	}
	for _, tt := range tests {
		if got := NormalizeWebsite(tt.in); got != tt.want {
			t.Errorf("NormalizeWebsite(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCriteria(t *testing.T) {
	s := func(v string) *string { return &v }

	tests := []struct {
		name string
		pair Pair
		want []string
	}{
		{
			name: "phone matches across formats",
			pair: Pair{Phone: s("+33 1 23 45 67 89"), AtpPhone: s("0123456789")},
			want: []string{"phone"},
		},
		{
			name: "brand wikidata is case sensitive",
			pair: Pair{BrandWikidata: s("Q123"), AtpBrandWikidata: s("q123")},
			want: nil,
		},
		{
			name: "name and brand fold case",
			pair: Pair{
				Name: s("Café De La Gare"), AtpName: s("café de la gare"),
				Brand: s("SNCF"), AtpBrand: s("sncf"),
			},
			want: []string{"brand", "name"},
		},
		{
			name: "website ignores scheme",
			pair: Pair{Website: s("https://foo.fr"), AtpWebsite: s("foo.fr")},
			want: []string{"website"},
		},
		{
			name: "nil never matches nil",
			pair: Pair{},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pair.Criteria(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Criteria() = %v, want %v", got, tt.want)
			}
		})
	}
}
