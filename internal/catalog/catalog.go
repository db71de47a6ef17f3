// Package catalog reads the normalized source catalog table (atp_fr): the
// bulk-crawled POI snapshot restricted to metropolitan France, annotated with
// a two-digit departement code derived from the postcode.
package catalog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"
)

// MinDepartement and MaxDepartement bound the metropolitan departement codes
// handled by the pipeline. Overseas codes (97x) are filtered out at load time.
const (
	MinDepartement = 1
	MaxDepartement = 95
)

// SourceRecord is one POI from the source catalog.
type SourceRecord struct {
	ID            int64   `db:"id"`
	Country       *string `db:"country"`
	City          *string `db:"city"`
	Postcode      *string `db:"postcode"`
	Departement   int     `db:"departement_number"`
	BrandWikidata *string `db:"brand_wikidata"`
	Brand         *string `db:"brand"`
	Name          *string `db:"name"`
	OpeningHours  *string `db:"opening_hours"`
	Website       *string `db:"website"`
	Phone         *string `db:"phone"`
	Email         *string `db:"email"`
	Geom          string  `db:"geom"`
	EndDate       *string `db:"end_date"`
	Spider        *string `db:"spider"`
	SourceType    *string `db:"source_type"`
}

// BrandCount is one brand of the catalog with its record count.
type BrandCount struct {
	BrandWikidata string `db:"brand_wikidata"`
	Brand         string `db:"brand"`
	Count         int    `db:"count"`
}

// ValidDepartement reports whether code is a metropolitan departement code.
func ValidDepartement(code int) bool {
	return code >= MinDepartement && code <= MaxDepartement
}

// DepartementFromPostcode derives the departement code from the first two
// digits of a postal code. Records without a parseable prefix are rejected at
// load time; this mirrors that rule for values arriving through filters.
func DepartementFromPostcode(postcode string) (int, error) {
	if len(postcode) < 2 {
		return 0, fmt.Errorf("postcode %q too short", postcode)
	}
	code, err := strconv.Atoi(postcode[:2])
	if err != nil {
		return 0, fmt.Errorf("postcode %q has no numeric prefix: %w", postcode, err)
	}
	if !ValidDepartement(code) {
		return 0, fmt.Errorf("postcode %q maps to departement %d, outside %d..%d",
			postcode, code, MinDepartement, MaxDepartement)
	}
	return code, nil
}

// Catalog reads the atp_fr table.
type Catalog struct {
	db *sqlx.DB
}

// New creates a catalog reader over db.
func New(db *sqlx.DB) *Catalog {
	return &Catalog{db: db}
}

// ListBrands returns every brand in the catalog with its record count,
// largest first. Records without a brand identifier are excluded; they are
// still matched and grouped under the no-brand bucket downstream.
func (c *Catalog) ListBrands(ctx context.Context) ([]BrandCount, error) {
	var brands []BrandCount
	err := c.db.SelectContext(ctx, &brands, `
		SELECT
			brand_wikidata,
			MIN(brand) AS brand,
			COUNT(*)   AS count
		FROM atp_fr
		WHERE brand_wikidata IS NOT NULL AND brand IS NOT NULL
		GROUP BY brand_wikidata
		ORDER BY count DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog brands: %w", err)
	}
	return brands, nil
}

// Count returns the number of materialized catalog records.
func (c *Catalog) Count(ctx context.Context) (int, error) {
	var count int
	if err := c.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM atp_fr`); err != nil {
		return 0, fmt.Errorf("failed to count catalog records: %w", err)
	}
	return count, nil
}

// CountByDepartement returns record counts keyed by departement code.
func (c *Catalog) CountByDepartement(ctx context.Context) (map[int]int, error) {
	rows, err := c.db.QueryxContext(ctx, `
		SELECT departement_number, COUNT(*)
		FROM atp_fr
		GROUP BY departement_number
		ORDER BY departement_number
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count by departement: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var dep, count int
		if err := rows.Scan(&dep, &count); err != nil {
			return nil, fmt.Errorf("failed to scan departement count: %w", err)
		}
		counts[dep] = count
	}
	return counts, rows.Err()
}
