// Package aggregate groups computed diffs for publication and derives
// run-level statistics. Grouping is what scopes each remote changeset to one
// coherent brand topic.
package aggregate

import (
	"sort"

	"github.com/atp2osm/atp2osm-import/internal/diff"
)

// NoBrand is the bucket for diffs whose source record has no brand
// identifier. They are still published, under their own changesets.
const NoBrand = "no-brand"

// GroupByBrand partitions diffs by brand identifier, preserving input order
// within each group. Every input diff lands in exactly one group.
func GroupByBrand(diffs []diff.TagDiff) map[string][]diff.TagDiff {
	groups := make(map[string][]diff.TagDiff)
	for _, d := range diffs {
		brand := d.BrandWikidata
		if brand == "" {
			brand = NoBrand
		}
		groups[brand] = append(groups[brand], d)
	}
	return groups
}

// Stats summarizes a diff set: how many diffs touch each tag key and how
// many originate in each departement.
type Stats struct {
	Total         int            `json:"total"`
	ByKey         map[string]int `json:"by_key"`
	ByDepartement map[int]int    `json:"by_departement"`
}

// ComputeStats derives Stats for diffs. A key counts once per diff that adds
// or changes it relative to the old tag set.
func ComputeStats(diffs []diff.TagDiff) Stats {
	stats := Stats{
		Total:         len(diffs),
		ByKey:         make(map[string]int),
		ByDepartement: make(map[int]int),
	}
	for _, d := range diffs {
		stats.ByDepartement[d.Departement]++
		for key, value := range d.NewTags {
			if old, ok := d.OldTags[key]; !ok || old != value {
				stats.ByKey[key]++
			}
		}
	}
	return stats
}

// Keys returns the modified tag keys of s in descending count order, ties
// alphabetical, for stable reporting.
func (s Stats) Keys() []string {
	keys := make([]string, 0, len(s.ByKey))
	for k := range s.ByKey {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if s.ByKey[keys[i]] != s.ByKey[keys[j]] {
			return s.ByKey[keys[i]] > s.ByKey[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}
