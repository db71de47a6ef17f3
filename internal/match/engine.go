package match

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/atp2osm/atp2osm-import/internal/debug"
	"github.com/atp2osm/atp2osm-import/internal/geo"
)

// Engine runs the matching query against the unified place view and the
// source catalog table. The spatial join and identity predicates execute in
// the database; the engine validates source geometry locally, streams the
// result rows, and annotates pairs for downstream logging.
type Engine struct {
	db       *sqlx.DB
	log      *zap.SugaredLogger
	debugDir string
}

// NewEngine creates a matching engine. debugDir may be empty; when set, the
// generated query text is persisted there per scope for troubleshooting.
func NewEngine(db *sqlx.DB, log *zap.SugaredLogger, debugDir string) *Engine {
	return &Engine{db: db, log: log, debugDir: debugDir}
}

// Match returns every unambiguous matched pair in the scope described by f,
// in the result order of the matching query (source record id, then geometry
// kind). Source records with malformed geometry are excluded with a warning
// before the join runs, so they cannot fail the whole scope.
func (e *Engine) Match(ctx context.Context, f Filters) ([]Pair, error) {
	defer debug.Timing(fmt.Sprintf("departement %02d matching", f.Departement), e.log.Debugf)()

	bad, err := e.malformedGeometries(ctx, f)
	if err != nil {
		return nil, err
	}
	f.ExcludeSourceIDs = append(f.ExcludeSourceIDs, bad...)

	query, args, err := BuildQuery(f)
	if err != nil {
		return nil, err
	}

	if e.debugDir != "" {
		name := fmt.Sprintf("match-dep%02d", f.Departement)
		if f.Brand != "" {
			name += "-" + f.Brand
		}
		if err := debug.SaveQuery(e.debugDir, name, query, args); err != nil {
			e.log.Warnf("Could not save debug query for departement %d: %v", f.Departement, err)
		}
	}

	rows, err := e.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("matching query failed for departement %d: %w", f.Departement, err)
	}
	defer rows.Close()

	var pairs []Pair
	for rows.Next() {
		var p Pair
		if err := rows.StructScan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan matched pair: %w", err)
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("matching query failed for departement %d: %w", f.Departement, err)
	}

	e.log.Debugf("Departement %d: %d matched pairs", f.Departement, len(pairs))
	return pairs, nil
}

// malformedGeometries validates the source geometry of every record in scope
// and returns the ids whose geometry does not parse as a GeoJSON point. Each
// offender is logged once and skipped; everything else proceeds.
func (e *Engine) malformedGeometries(ctx context.Context, f Filters) ([]int64, error) {
	exprs := "departement_number = $1"
	args := []interface{}{f.Departement}
	if f.Brand != "" {
		exprs += " AND brand_wikidata = $2"
		args = append(args, f.Brand)
	}

	rows, err := e.db.QueryxContext(ctx,
		`SELECT id, geom FROM atp_fr WHERE `+exprs, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read source geometries: %w", err)
	}
	defer rows.Close()

	var bad []int64
	for rows.Next() {
		var id int64
		var raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan source geometry: %w", err)
		}
		if _, err := geo.ParsePoint(raw); err != nil {
			e.log.Warnf("Skipping source record %d: %v", id, err)
			bad = append(bad, id)
		}
	}
	return bad, rows.Err()
}
