// Package diff computes the minimal additive tag update for one matched
// pair. The merge policy never overwrites an existing target value: the
// source only fills gaps, so locally curated edits always win.
package diff

import (
	"github.com/atp2osm/atp2osm-import/internal/match"
	"github.com/atp2osm/atp2osm-import/internal/model"
)

// TagDiff is the unit of work published to the remote API: the full new tag
// set for one target element, plus provenance used for grouping and audit.
type TagDiff struct {
	OSMID    int64      `json:"id"`
	NodeType model.Kind `json:"node_type"`
	Version  int        `json:"version"`
	Lon      float64    `json:"lon"`
	Lat      float64    `json:"lat"`
	OldTags  model.Tags `json:"old_tags"`
	NewTags  model.Tags `json:"tag"`

	// Provenance; grouping and audit only, never uploaded.
	Departement   int      `json:"departement"`
	BrandWikidata string   `json:"brand_wikidata,omitempty"`
	SourceID      int64    `json:"atp_id"`
	MatchedBy     []string `json:"matched_by,omitempty"`
}

// Reconcile computes the additive tag diff for one matched pair. It returns
// nil when the source contributes nothing new, which makes repeated runs
// against unchanged inputs no-ops. Pure: the pair is never mutated.
func Reconcile(p *match.Pair) *TagDiff {
	newTags := p.Tags.Clone()

	applyTag(newTags, "opening_hours", p.AtpOpeningHours)
	applyTag(newTags, "addr:country", p.AtpCountry)
	applyTag(newTags, "addr:postcode", p.AtpPostcode)
	applyTag(newTags, "addr:city", p.AtpCity)

	// Namespaced aliases: when the contact:* form is already present, the
	// bare key stays absent so semantically equivalent tags never double up.
	if _, ok := newTags["contact:website"]; !ok {
		applyTag(newTags, "website", p.AtpWebsite)
	}
	if _, ok := newTags["contact:email"]; !ok {
		applyTag(newTags, "email", p.AtpEmail)
	}
	if _, ok := newTags["contact:phone"]; !ok {
		applyTag(newTags, "phone", p.AtpPhone)
	}

	if newTags.Equal(p.Tags) {
		return nil
	}

	var brand string
	if p.AtpBrandWikidata != nil {
		brand = *p.AtpBrandWikidata
	}

	return &TagDiff{
		OSMID:         p.OSMID,
		NodeType:      p.NodeType,
		Version:       p.Version,
		Lon:           p.Lon,
		Lat:           p.Lat,
		OldTags:       p.Tags.Clone(),
		NewTags:       newTags,
		Departement:   p.Departement,
		BrandWikidata: brand,
		SourceID:      p.SourceID,
		MatchedBy:     p.Criteria(),
	}
}

// applyTag writes value under key only when the key is absent and the value
// is non-nil. A nil source value never displaces an absent key.
func applyTag(tags model.Tags, key string, value *string) {
	if value == nil {
		return
	}
	if _, ok := tags[key]; ok {
		return
	}
	tags[key] = *value
}
