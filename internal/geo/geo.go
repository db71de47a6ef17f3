package geo

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ParsePoint decodes a GeoJSON geometry string into a point. Source catalog
// records carry point features only; any other geometry type is treated as
// malformed.
func ParsePoint(raw string) (orb.Point, error) {
	if raw == "" {
		return orb.Point{}, fmt.Errorf("empty geometry")
	}

	g, err := geojson.UnmarshalGeometry([]byte(raw))
	if err != nil {
		return orb.Point{}, fmt.Errorf("invalid geojson geometry: %w", err)
	}

	pt, ok := g.Geometry().(orb.Point)
	if !ok {
		return orb.Point{}, fmt.Errorf("geometry is %s, expected Point", g.Type)
	}
	return pt, nil
}
