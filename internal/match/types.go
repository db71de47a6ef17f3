package match

import (
	"regexp"
	"strings"

	"github.com/atp2osm/atp2osm-import/internal/model"
)

// Pair is one unambiguous source-to-target match: the joined row of one
// source catalog record and its single proximate identity candidate of one
// geometry kind, with the per-kind match counts of the source record.
type Pair struct {
	// Target side.
	OSMID         int64      `db:"osm_id"`
	NodeType      model.Kind `db:"node_type"`
	Version       int        `db:"version"`
	Tags          model.Tags `db:"tags"`
	Name          *string    `db:"name"`
	BrandWikidata *string    `db:"brand_wikidata"`
	Brand         *string    `db:"brand"`
	Website       *string    `db:"website"`
	Phone         *string    `db:"phone"`
	Email         *string    `db:"email"`
	Lon           float64    `db:"lon"`
	Lat           float64    `db:"lat"`

	// Source side.
	SourceID         int64   `db:"atp_id"`
	Departement      int     `db:"atp_departement"`
	AtpBrandWikidata *string `db:"atp_brand_wikidata"`
	AtpBrand         *string `db:"atp_brand"`
	AtpName          *string `db:"atp_name"`
	AtpOpeningHours  *string `db:"atp_opening_hours"`
	AtpPhone         *string `db:"atp_phone"`
	AtpEmail         *string `db:"atp_email"`
	AtpWebsite       *string `db:"atp_website"`
	AtpCountry       *string `db:"atp_country"`
	AtpPostcode      *string `db:"atp_postcode"`
	AtpCity          *string `db:"atp_city"`

	// Per-source-record candidate counts per geometry kind. The query
	// only emits rows where both are <=1.
	PointCount    int `db:"pt_cnt"`
	RelationCount int `db:"poly_cnt"`
}

var (
	schemeRe     = regexp.MustCompile(`(?i)^https?://`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// NormalizeWebsite strips a leading http(s) scheme and case-folds, mirroring
// the website predicate of the matching query.
func NormalizeWebsite(website string) string {
	return strings.ToLower(schemeRe.ReplaceAllString(website, ""))
}

// NormalizePhone collapses a leading +33 country code to the national trunk
// digit and removes all whitespace, mirroring the phone predicate of the
// matching query.
func NormalizePhone(phone string) string {
	if strings.HasPrefix(phone, "+33") {
		phone = "0" + phone[len("+33"):]
	}
	return whitespaceRe.ReplaceAllString(phone, "")
}

// Criteria returns the names of the identity criteria that hold for p, in
// the order the matching query checks them. At least one holds for every row
// the query emits; the list feeds the audit record and debug logging.
func (p *Pair) Criteria() []string {
	var out []string
	if eq(p.BrandWikidata, p.AtpBrandWikidata) {
		out = append(out, "brand_wikidata")
	}
	if foldEq(p.Brand, p.AtpBrand) {
		out = append(out, "brand")
	}
	if foldEq(p.Name, p.AtpName) {
		out = append(out, "name")
	}
	if foldEq(p.Email, p.AtpEmail) {
		out = append(out, "email")
	}
	if p.Website != nil && p.AtpWebsite != nil &&
		NormalizeWebsite(*p.Website) == NormalizeWebsite(*p.AtpWebsite) {
		out = append(out, "website")
	}
	if p.Phone != nil && p.AtpPhone != nil &&
		NormalizePhone(*p.Phone) == NormalizePhone(*p.AtpPhone) {
		out = append(out, "phone")
	}
	return out
}

func eq(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}

func foldEq(a, b *string) bool {
	return a != nil && b != nil && strings.EqualFold(*a, *b)
}
