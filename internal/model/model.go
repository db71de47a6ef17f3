// Package model holds the small shared vocabulary of the import pipeline:
// free-form OSM tag sets and the two target geometry kinds.
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Kind is the target store geometry kind.
type Kind string

const (
	// KindNode is a point feature.
	KindNode Kind = "node"
	// KindRelation is an area feature.
	KindRelation Kind = "relation"
)

// Valid reports whether k is one of the two supported geometry kinds.
func (k Kind) Valid() bool {
	return k == KindNode || k == KindRelation
}

// Tags is a free-form OSM tag set. It scans from the jsonb tags column of
// mv_places and marshals back to JSON for the audit log.
type Tags map[string]string

// Scan implements sql.Scanner for jsonb columns.
func (t *Tags) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*t = Tags{}
		return nil
	case []byte:
		return json.Unmarshal(v, t)
	case string:
		return json.Unmarshal([]byte(v), t)
	default:
		return fmt.Errorf("cannot scan %T into Tags", src)
	}
}

// Value implements driver.Valuer.
func (t Tags) Value() (driver.Value, error) {
	if t == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(t)
}

// Clone returns an independent copy of the tag set.
func (t Tags) Clone() Tags {
	out := make(Tags, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Equal reports whether two tag sets hold exactly the same keys and values.
func (t Tags) Equal(other Tags) bool {
	if len(t) != len(other) {
		return false
	}
	for k, v := range t {
		if ov, ok := other[k]; !ok || ov != v {
			return false
		}
	}
	return true
}
