// Package places manages the unified place view (mv_places): one normalized
// schema over the target store's point and area features, with geometry
// reprojected into the planar Lambert-93 v2b system so proximity predicates
// run in meters.
package places

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// SRID of the Lambert-93 v2b projection, the legally accurate planar system
// for metropolitan France. Older osm2pgsql databases do not ship it.
const SRID = 9794

const sridInsert = `
INSERT INTO spatial_ref_sys (srid, auth_name, auth_srid, srtext, proj4text)
VALUES (9794, 'EPSG', 9794,
	'PROJCS["RGF93_v2b_Lambert-93",GEOGCS["RGF93_v2b",DATUM["Reseau_Geodesique_Francais_1993_v2b",SPHEROID["GRS_1980",6378137.0,298.257222101]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]],PROJECTION["Lambert_Conformal_Conic"],PARAMETER["False_Easting",700000.0],PARAMETER["False_Northing",6600000.0],PARAMETER["Central_Meridian",3.0],PARAMETER["Standard_Parallel_1",49.0],PARAMETER["Standard_Parallel_2",44.0],PARAMETER["Latitude_Of_Origin",46.5],UNIT["Meter",1.0]]',
	'+proj=lcc +lat_0=46.5 +lon_0=3 +lat_1=49 +lat_2=44 +x_0=700000 +y_0=6600000 +ellps=GRS80 +units=m +no_defs +type=crs')
`

const createView = `
CREATE MATERIALIZED VIEW IF NOT EXISTS mv_places AS
SELECT
	node_id                  AS osm_id,
	'node'                   AS node_type,
	version,
	tags,
	tags->>'name'            AS name,
	tags->>'brand:wikidata'  AS brand_wikidata,
	tags->>'brand'           AS brand,
	tags->>'addr:city'       AS city,
	tags->>'addr:postcode'   AS postcode,
	tags->>'opening_hours'   AS opening_hours,
	tags->>'website'         AS website,
	tags->>'phone'           AS phone,
	tags->>'email'           AS email,
	ST_Transform(geom, 9794) AS geom_9794,
	geom
FROM points

UNION ALL

SELECT
	area_id                  AS osm_id,
	'relation'               AS node_type,
	version,
	tags,
	tags->>'name'            AS name,
	tags->>'brand:wikidata'  AS brand_wikidata,
	tags->>'brand'           AS brand,
	tags->>'addr:city'       AS city,
	tags->>'addr:postcode'   AS postcode,
	tags->>'opening_hours'   AS opening_hours,
	tags->>'website'         AS website,
	tags->>'phone'           AS phone,
	tags->>'email'           AS email,
	ST_Transform(geom, 9794) AS geom_9794,
	geom
FROM polygons
`

// createIndexes holds the supporting indexes the matching query relies on:
// the GIST index for ST_DWithin and one functional index per identity
// criterion, normalized exactly the way the matching predicates normalize.
var createIndexes = []string{
	`CREATE INDEX IF NOT EXISTS mv_places_geom_9794_idx
		ON mv_places USING GIST (geom_9794)`,
	`CREATE INDEX IF NOT EXISTS mv_places_brand_wikidata_idx
		ON mv_places ((brand_wikidata))`,
	`CREATE INDEX IF NOT EXISTS mv_places_brand_lower_idx
		ON mv_places (LOWER(brand))`,
	`CREATE INDEX IF NOT EXISTS mv_places_name_lower_idx
		ON mv_places (LOWER(name))`,
	`CREATE INDEX IF NOT EXISTS mv_places_name_trgm_idx
		ON mv_places USING GIN (LOWER(name) gin_trgm_ops)`,
	`CREATE INDEX IF NOT EXISTS mv_places_website_norm_idx
		ON mv_places (LOWER(REGEXP_REPLACE(website, '^https?://', '', 'i')))`,
	`CREATE INDEX IF NOT EXISTS mv_places_phone_norm_idx
		ON mv_places (REGEXP_REPLACE(REGEXP_REPLACE(phone, '^\+33', '0'), '\s+', '', 'g'))`,
	`CREATE INDEX IF NOT EXISTS mv_places_email_lower_idx
		ON mv_places (LOWER(email))`,
}

// Manager creates and refreshes the unified place view.
type Manager struct {
	db  *sqlx.DB
	log *zap.SugaredLogger
}

// NewManager creates a view manager over db.
func NewManager(db *sqlx.DB, log *zap.SugaredLogger) *Manager {
	return &Manager{db: db, log: log}
}

// Setup makes the unified place view and its indexes exist. With force, the
// view is dropped and rebuilt from the underlying tables first.
func (m *Manager) Setup(ctx context.Context, force bool) error {
	if err := m.ensureProjection(ctx); err != nil {
		return err
	}

	if force {
		m.log.Infof("Forcing place view rebuild")
		if _, err := m.db.ExecContext(ctx, `DROP MATERIALIZED VIEW IF EXISTS mv_places CASCADE`); err != nil {
			return fmt.Errorf("failed to drop place view: %w", err)
		}
	}

	m.log.Infof("Creating materialized view mv_places and indexes")
	if _, err := m.db.ExecContext(ctx, createView); err != nil {
		return fmt.Errorf("failed to create place view: %w", err)
	}
	for _, stmt := range createIndexes {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create place view index: %w", err)
		}
	}

	m.log.Infof("Place view setup complete")
	return nil
}

// Refresh re-materializes the view against the current target store state.
func (m *Manager) Refresh(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, `REFRESH MATERIALIZED VIEW mv_places`); err != nil {
		return fmt.Errorf("failed to refresh place view: %w", err)
	}
	return nil
}

// Count returns the number of places in the view.
func (m *Manager) Count(ctx context.Context) (int, error) {
	var count int
	if err := m.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM mv_places`); err != nil {
		return 0, fmt.Errorf("failed to count places: %w", err)
	}
	return count, nil
}

// ensureProjection inserts the Lambert-93 v2b SRID if the database does not
// already carry it.
func (m *Manager) ensureProjection(ctx context.Context) error {
	var count int
	if err := m.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM spatial_ref_sys WHERE srid = $1`, SRID); err != nil {
		return fmt.Errorf("failed to check projection %d: %w", SRID, err)
	}
	if count > 0 {
		return nil
	}

	m.log.Infof("Inserting EPSG:%d projection", SRID)
	if _, err := m.db.ExecContext(ctx, sridInsert); err != nil {
		return fmt.Errorf("failed to insert projection %d: %w", SRID, err)
	}
	return nil
}
