// Package upload publishes grouped diffs to the remote API as versioned
// changesets. Each changeset is scoped to one departement and one brand, so
// its all-or-nothing semantics never span more work than necessary; a
// failing group never aborts its siblings.
package upload

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/atp2osm/atp2osm-import/internal/audit"
	"github.com/atp2osm/atp2osm-import/internal/config"
	"github.com/atp2osm/atp2osm-import/internal/diff"
	"github.com/atp2osm/atp2osm-import/internal/model"
	"github.com/atp2osm/atp2osm-import/internal/osm"
)

// Result reports one group's publication outcome: the changeset identifiers
// created and every diff attempted, confirmed or not, for the audit log.
type Result struct {
	ChangesetIDs []int64
	Entries      []audit.Entry
	Published    int
	Failed       int
}

// Orchestrator drives the changeset lifecycle. Writers to the remote API are
// serialized: one changeset is in flight at a time, which also respects the
// service's per-account changeset quotas.
type Orchestrator struct {
	api osm.API
	cfg config.OSMConfig
	log *zap.SugaredLogger
	dry bool
}

// NewOrchestrator creates an orchestrator publishing through api. In dry
// mode diffs are computed and recorded but nothing touches the remote API.
func NewOrchestrator(api osm.API, cfg config.OSMConfig, log *zap.SugaredLogger, dry bool) *Orchestrator {
	return &Orchestrator{api: api, cfg: cfg, log: log, dry: dry}
}

// UploadGroup publishes one (departement, brand) group as a single
// changeset: open with metadata, upload both kind-homogeneous operation
// lists in one atomic call, close. Any publish failure marks the whole
// group failed; its diffs stay recorded as unconfirmed and the caller
// moves on to the next group.
func (o *Orchestrator) UploadGroup(ctx context.Context, departement int, brand string, diffs []diff.TagDiff) Result {
	var res Result
	if len(diffs) == 0 {
		return res
	}

	if o.dry {
		o.log.Infof("Dry run: %d diffs for %s in departement %02d not uploaded", len(diffs), brand, departement)
		res.Entries = unconfirmedEntries(diffs)
		return res
	}

	meta := osm.ChangesetMeta{
		Comment:   fmt.Sprintf("Importation des données ATP (%02d; %s)", departement, brand),
		CreatedBy: o.cfg.CreatedBy,
		Source:    o.cfg.SourceURL,
		PolicyURL: o.cfg.PolicyURL,
	}

	changesetID, err := o.api.OpenChangeset(ctx, meta)
	if err != nil {
		o.log.Errorf("Failed to open changeset for %s in departement %02d: %v", brand, departement, err)
		res.Entries = unconfirmedEntries(diffs)
		res.Failed = len(diffs)
		return res
	}
	o.log.Infof("Opened changeset %d for %s in departement %02d (%d diffs)", changesetID, brand, departement, len(diffs))

	nodes, relations := partition(diffs)
	err = o.api.UploadChanges(ctx, changesetID, nodes, relations)

	if closeErr := o.api.CloseChangeset(ctx, changesetID); closeErr != nil && err == nil {
		err = closeErr
	}

	if err != nil {
		// The whole changeset is treated as failed; the API promises no
		// partial commit on a rejected upload.
		o.log.Errorf("Changeset %d upload failed for %s in departement %02d: %v", changesetID, brand, departement, err)
		res.Entries = unconfirmedEntries(diffs)
		res.Failed = len(diffs)
		return res
	}

	res.ChangesetIDs = append(res.ChangesetIDs, changesetID)
	res.Published = len(diffs)
	for _, d := range diffs {
		res.Entries = append(res.Entries, audit.Entry{TagDiff: d, ChangesetID: changesetID, Confirmed: true})
	}
	o.log.Infof("Changeset %d closed: %d modifications published", changesetID, len(diffs))
	return res
}

// partition splits diffs into the two kind-homogeneous element batches the
// upload call requires.
func partition(diffs []diff.TagDiff) (nodes, relations []osm.Element) {
	for _, d := range diffs {
		el := osm.Element{
			Kind:    d.NodeType,
			ID:      d.OSMID,
			Version: d.Version,
			Lat:     d.Lat,
			Lon:     d.Lon,
			Tags:    d.NewTags,
		}
		if d.NodeType == model.KindRelation {
			relations = append(relations, el)
		} else {
			nodes = append(nodes, el)
		}
	}
	return nodes, relations
}

func unconfirmedEntries(diffs []diff.TagDiff) []audit.Entry {
	entries := make([]audit.Entry, 0, len(diffs))
	for _, d := range diffs {
		entries = append(entries, audit.Entry{TagDiff: d})
	}
	return entries
}
