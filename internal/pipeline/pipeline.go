// Package pipeline drives one import run: for each departement in scope,
// match source records against the place view, reconcile tag diffs, group
// them by brand, publish each group as a changeset, and record everything in
// the audit log. Departements are data-disjoint and processed sequentially;
// the remote API is only ever written by one changeset at a time.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atp2osm/atp2osm-import/internal/aggregate"
	"github.com/atp2osm/atp2osm-import/internal/audit"
	"github.com/atp2osm/atp2osm-import/internal/catalog"
	"github.com/atp2osm/atp2osm-import/internal/diff"
	"github.com/atp2osm/atp2osm-import/internal/match"
	"github.com/atp2osm/atp2osm-import/internal/upload"
)

// Options scope one run.
type Options struct {
	Departement int    // 0 means all metropolitan departements
	Brand       string // brand identifier filter
	Postcode    string // postal code filter; also narrows the departement
	FuzzyNames  bool
	// IgnoreAuditHint processes brands even when a non-empty audit log
	// already exists for today.
	IgnoreAuditHint bool
}

// ScopeSummary is the outcome of one (departement, brand) group.
type ScopeSummary struct {
	Departement int
	Brand       string
	Matched     int
	Diffed      int
	Published   int
	Failed      int
}

// Summary is the user-visible result of a completed run.
type Summary struct {
	RunID           string
	Matched         int
	Diffed          int
	Published       int
	Failed          int
	SkippedUpToDate int
	Changesets      []int64
	Stats           aggregate.Stats
	Scopes          []ScopeSummary
}

// Matcher yields the unambiguous matched pairs for one scope.
type Matcher interface {
	Match(ctx context.Context, f match.Filters) ([]match.Pair, error)
}

// Publisher publishes one grouped diff set as a changeset.
type Publisher interface {
	UploadGroup(ctx context.Context, departement int, brand string, diffs []diff.TagDiff) upload.Result
}

// Runner executes import runs.
type Runner struct {
	engine Matcher
	orch   Publisher
	store  *audit.Store
	log    *zap.SugaredLogger
}

// NewRunner creates a runner from its collaborators.
func NewRunner(engine Matcher, orch Publisher, store *audit.Store, log *zap.SugaredLogger) *Runner {
	return &Runner{engine: engine, orch: orch, store: store, log: log}
}

// Run executes one run over the scope described by opts. Infrastructure
// errors abort immediately; record defects and publish failures are
// contained to their record or changeset and the run continues. The audit
// log is written per group, before anything else can fail.
func (r *Runner) Run(ctx context.Context, opts Options) (*Summary, error) {
	deps, err := departements(opts)
	if err != nil {
		return nil, err
	}

	summary := &Summary{RunID: uuid.New().String()}
	runDate := time.Now()
	var allDiffs []diff.TagDiff
	processedThisRun := make(map[string]bool)

	r.log.Infof("Run %s: %d departement(s) in scope", summary.RunID, len(deps))

	for _, dep := range deps {
		pairs, err := r.engine.Match(ctx, match.Filters{
			Departement: dep,
			Brand:       opts.Brand,
			Postcode:    opts.Postcode,
			FuzzyNames:  opts.FuzzyNames,
		})
		if err != nil {
			return nil, fmt.Errorf("departement %d: %w", dep, err)
		}
		if len(pairs) == 0 {
			continue
		}
		summary.Matched += len(pairs)

		// Brand iteration order comes from the matched pairs, not the
		// diffs: a brand whose matches are all already up to date still
		// gets a scope row with its matched count.
		matchedByBrand := make(map[string]int)
		var brandOrder []string
		var diffs []diff.TagDiff
		for i := range pairs {
			key := brandKey(pairs[i].AtpBrandWikidata)
			if matchedByBrand[key] == 0 {
				brandOrder = append(brandOrder, key)
			}
			matchedByBrand[key]++
			if d := diff.Reconcile(&pairs[i]); d != nil {
				diffs = append(diffs, *d)
			}
		}
		summary.Diffed += len(diffs)
		allDiffs = append(allDiffs, diffs...)

		groups := aggregate.GroupByBrand(diffs)
		for _, brand := range brandOrder {
			scope := ScopeSummary{
				Departement: dep,
				Brand:       brand,
				Matched:     matchedByBrand[brand],
				Diffed:      len(groups[brand]),
			}
			if len(groups[brand]) == 0 {
				summary.Scopes = append(summary.Scopes, scope)
				continue
			}

			// The audit hint only applies to brands this run has not
			// touched yet; a brand spanning several departements keeps
			// accumulating into today's log.
			if !opts.IgnoreAuditHint && !processedThisRun[brand] {
				done, err := r.store.AlreadyProcessed(brand, runDate)
				if err != nil {
					return nil, err
				}
				if done {
					r.log.Infof("Skipping %s in departement %02d: already imported today", brand, dep)
					summary.SkippedUpToDate += len(groups[brand])
					summary.Scopes = append(summary.Scopes, scope)
					continue
				}
			}
			processedThisRun[brand] = true

			res := r.orch.UploadGroup(ctx, dep, brand, groups[brand])
			scope.Published = res.Published
			scope.Failed = res.Failed
			summary.Published += res.Published
			summary.Failed += res.Failed
			summary.Changesets = append(summary.Changesets, res.ChangesetIDs...)
			summary.Scopes = append(summary.Scopes, scope)

			if err := r.store.Append(summary.RunID, brand, runDate, res.Entries, res.ChangesetIDs); err != nil {
				return nil, fmt.Errorf("departement %d, brand %s: %w", dep, brand, err)
			}
		}
	}

	summary.Stats = aggregate.ComputeStats(allDiffs)
	return summary, nil
}

// departements resolves the departement iteration order for opts: one code
// when filtered (explicitly or via postcode), otherwise all of 1..95.
func departements(opts Options) ([]int, error) {
	if opts.Postcode != "" {
		code, err := catalog.DepartementFromPostcode(opts.Postcode)
		if err != nil {
			return nil, err
		}
		if opts.Departement != 0 && opts.Departement != code {
			return nil, fmt.Errorf("postcode %s is in departement %02d, not %02d",
				opts.Postcode, code, opts.Departement)
		}
		return []int{code}, nil
	}
	if opts.Departement != 0 {
		if !catalog.ValidDepartement(opts.Departement) {
			return nil, fmt.Errorf("departement %d outside %d..%d",
				opts.Departement, catalog.MinDepartement, catalog.MaxDepartement)
		}
		return []int{opts.Departement}, nil
	}

	deps := make([]int, 0, catalog.MaxDepartement)
	for dep := catalog.MinDepartement; dep <= catalog.MaxDepartement; dep++ {
		deps = append(deps, dep)
	}
	return deps, nil
}

func brandKey(brand *string) string {
	if brand == nil || *brand == "" {
		return aggregate.NoBrand
	}
	return *brand
}
