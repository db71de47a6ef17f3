// Package audit persists the durable record of every run: one JSON file per
// brand per run date holding every diff attempted and every changeset
// identifier obtained. The files double as an idempotence hint: a brand/date
// that recorded at least one confirmed diff is presumed already processed.
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/atp2osm/atp2osm-import/internal/diff"
)

// Entry is one attempted diff. Confirmed is set with the changeset id when
// the publish succeeded; unconfirmed entries are kept for manual or next-run
// re-evaluation.
type Entry struct {
	diff.TagDiff
	ChangesetID int64 `json:"changeset,omitempty"`
	Confirmed   bool  `json:"confirmed"`
}

// RunLog is the on-disk document for one brand and run date.
type RunLog struct {
	RunID      string  `json:"run_id"`
	Brand      string  `json:"brand"`
	Date       string  `json:"date"`
	Diffs      []Entry `json:"diffs"`
	Changesets []int64 `json:"changesets"`
}

// Store reads and writes audit logs under a base directory, laid out as
// <dir>/<brand>/<YYYY-MM-DD>.json.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(brand string, date time.Time) string {
	return filepath.Join(s.dir, brand, date.Format("2006-01-02")+".json")
}

// Append merges entries and changeset ids into the brand's log for date,
// creating it on first write. A brand processed across several departements
// in one run accumulates into the same file.
func (s *Store) Append(runID, brand string, date time.Time, entries []Entry, changesets []int64) error {
	path := s.path(brand, date)

	log, err := s.read(path)
	if err != nil {
		return err
	}
	if log == nil {
		log = &RunLog{RunID: runID, Brand: brand, Date: date.Format("2006-01-02")}
	}
	log.Diffs = append(log.Diffs, entries...)
	log.Changesets = append(log.Changesets, changesets...)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create audit directory: %w", err)
	}
	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode audit log: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// AlreadyProcessed reports whether brand has a log for date recording at
// least one confirmed diff. Dry runs and fully failed runs leave only
// unconfirmed entries and do not arm the hint.
func (s *Store) AlreadyProcessed(brand string, date time.Time) (bool, error) {
	log, err := s.read(s.path(brand, date))
	if err != nil || log == nil {
		return false, err
	}
	for _, e := range log.Diffs {
		if e.Confirmed {
			return true, nil
		}
	}
	return false, nil
}

// LastImport returns the most recent run date recorded for brand, or "never".
func (s *Store) LastImport(brand string) string {
	files, err := os.ReadDir(filepath.Join(s.dir, brand))
	if err != nil || len(files) == 0 {
		return "never"
	}

	var dates []string
	for _, f := range files {
		if name, ok := strings.CutSuffix(f.Name(), ".json"); ok {
			dates = append(dates, name)
		}
	}
	if len(dates) == 0 {
		return "never"
	}
	sort.Strings(dates)
	return dates[len(dates)-1]
}

// read loads a log file, returning nil without error when it does not exist.
func (s *Store) read(path string) (*RunLog, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}

	var log RunLog
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("failed to decode audit log %s: %w", path, err)
	}
	return &log, nil
}
