package match

import (
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"

	"github.com/atp2osm/atp2osm-import/internal/catalog"
)

// MaxDistanceMeters is the proximity radius of the spatial join, measured in
// the planar Lambert-93 v2b projection.
const MaxDistanceMeters = 500

// FuzzyNameThreshold is the trigram similarity cutoff of the optional
// fuzzy-name criterion.
const FuzzyNameThreshold = "0.6"

// Filters scope one matching query. Departement is required; the rest are
// optional narrowing filters. All values are bound as query parameters, never
// interpolated into the SQL text.
type Filters struct {
	Departement int
	Brand       string
	Postcode    string
	// FuzzyNames additionally accepts trigram name similarity above
	// FuzzyNameThreshold as a match criterion. Off by default: exact
	// equality is the precision-safe rule for unattended batch edits.
	FuzzyNames bool
	// ExcludeSourceIDs drops source records whose geometry failed local
	// validation, so one malformed record cannot fail the whole join.
	ExcludeSourceIDs []int64
}

// matchQuery joins every in-scope source record to its proximate identity
// candidates in one set-oriented query. The window counts partition matches
// per source record and geometry kind; the outer filter keeps only source
// records that are unambiguous on both kinds. {{filters}} and {{fuzzy}} are
// replaced with static SQL fragments whose values arrive as bound args.
const matchQuery = `
WITH joined_poi AS (
	SELECT
		osm.osm_id,
		osm.node_type,
		osm.version,
		osm.tags,
		osm.name,
		osm.brand_wikidata,
		osm.brand,
		osm.website,
		osm.phone,
		osm.email,
		ST_X(ST_Centroid(ST_Transform(osm.geom, 4326))) AS lon,
		ST_Y(ST_Centroid(ST_Transform(osm.geom, 4326))) AS lat,
		atp.id                  AS atp_id,
		atp.departement_number  AS atp_departement,
		atp.brand_wikidata      AS atp_brand_wikidata,
		atp.brand               AS atp_brand,
		atp.name                AS atp_name,
		atp.opening_hours       AS atp_opening_hours,
		atp.phone               AS atp_phone,
		atp.email               AS atp_email,
		atp.website             AS atp_website,
		atp.country             AS atp_country,
		atp.postcode            AS atp_postcode,
		atp.city                AS atp_city,
		count(*) FILTER (WHERE osm.node_type = 'node')     OVER (PARTITION BY atp.id) AS pt_cnt,
		count(*) FILTER (WHERE osm.node_type = 'relation') OVER (PARTITION BY atp.id) AS poly_cnt
	FROM
		mv_places osm
	INNER JOIN atp_fr atp ON
		ST_DWithin(
			osm.geom_9794,
			ST_Transform(ST_GeomFromGeoJSON(atp.geom), 9794),
			{{distance}}
		)
	WHERE
		{{filters}}
		AND (atp.end_date IS NULL OR atp.end_date >= to_char(CURRENT_DATE, 'YYYY-MM-DD'))
		AND (
			osm.brand_wikidata = atp.brand_wikidata
			OR LOWER(osm.brand) = LOWER(atp.brand)
			OR LOWER(osm.name) = LOWER(atp.name)
			OR LOWER(osm.email) = LOWER(atp.email)
			OR LOWER(REGEXP_REPLACE(osm.website, '^https?://', '', 'i')) = LOWER(REGEXP_REPLACE(atp.website, '^https?://', '', 'i'))
			OR REGEXP_REPLACE(REGEXP_REPLACE(osm.phone, '^\+33', '0'), '\s+', '', 'g') = REGEXP_REPLACE(REGEXP_REPLACE(atp.phone, '^\+33', '0'), '\s+', '', 'g'){{fuzzy}}
		)
)
SELECT *
FROM joined_poi
WHERE pt_cnt <= 1 AND poly_cnt <= 1
ORDER BY atp_id, node_type
`

const fuzzyNameClause = `
			OR similarity(LOWER(osm.name), LOWER(atp.name)) > ` + FuzzyNameThreshold

// BuildQuery renders the matching query and its bound arguments for f.
func BuildQuery(f Filters) (string, []interface{}, error) {
	if !catalog.ValidDepartement(f.Departement) {
		return "", nil, fmt.Errorf("departement %d outside %d..%d",
			f.Departement, catalog.MinDepartement, catalog.MaxDepartement)
	}

	exprs := []string{"atp.departement_number = %v"}
	args := []interface{}{f.Departement}
	if f.Brand != "" {
		exprs = append(exprs, "atp.brand_wikidata = %v")
		args = append(args, f.Brand)
	}
	if f.Postcode != "" {
		exprs = append(exprs, "atp.postcode = %v")
		args = append(args, f.Postcode)
	}
	if len(f.ExcludeSourceIDs) > 0 {
		exprs = append(exprs, "NOT (atp.id = ANY(%v))")
		args = append(args, pq.Array(f.ExcludeSourceIDs))
	}

	fuzzy := ""
	if f.FuzzyNames {
		fuzzy = fuzzyNameClause
	}

	format := strings.NewReplacer(
		"{{distance}}", fmt.Sprintf("%d", MaxDistanceMeters),
		"{{filters}}", strings.Join(exprs, " AND "),
		"{{fuzzy}}", fuzzy,
	).Replace(matchQuery)

	query, built := sqlbuilder.Buildf(format, args...).BuildWithFlavor(sqlbuilder.PostgreSQL)
	return query, built, nil
}
