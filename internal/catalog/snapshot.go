package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/atp2osm/atp2osm-import/internal/config"
)

// latestRun is the snapshot index document published by the catalog service.
type latestRun struct {
	RunID      string `json:"run_id"`
	ParquetURL string `json:"parquet_url"`
}

// SnapshotDownloader fetches the latest source catalog snapshot to local
// disk. Loading the snapshot into the atp_fr table is the import
// collaborator's job; this only guarantees the file is present.
type SnapshotDownloader struct {
	cfg     config.SnapshotConfig
	dataDir string
	client  *http.Client
	log     *zap.SugaredLogger
}

// NewSnapshotDownloader creates a downloader writing under dataDir/atp.
func NewSnapshotDownloader(cfg config.SnapshotConfig, dataDir string, log *zap.SugaredLogger) *SnapshotDownloader {
	return &SnapshotDownloader{
		cfg:     cfg,
		dataDir: dataDir,
		client:  &http.Client{Timeout: 5 * time.Minute},
		log:     log,
	}
}

// Download ensures the latest snapshot file exists locally and returns its
// path. With force, any cached snapshot is discarded first. Transient HTTP
// failures are retried with bounded exponential backoff; running out of
// attempts is an infrastructure error and fatal to the run.
func (d *SnapshotDownloader) Download(ctx context.Context, force bool) (string, error) {
	latest, err := d.fetchLatest(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to resolve latest snapshot: %w", err)
	}
	if latest.ParquetURL == "" {
		return "", fmt.Errorf("snapshot index %s has no parquet_url", d.cfg.RunsURL)
	}

	path := filepath.Join(d.dataDir, "atp", latest.RunID+".parquet")
	if force {
		d.log.Infof("Forcing download of latest catalog snapshot")
		os.Remove(path)
	}
	if _, err := os.Stat(path); err == nil {
		d.log.Infof("%s already exists, skipping download", path)
		return path, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	d.log.Infof("Downloading catalog snapshot %s", latest.RunID)
	if err := d.fetchFile(ctx, latest.ParquetURL, path); err != nil {
		return "", fmt.Errorf("failed to download snapshot: %w", err)
	}
	d.log.Infof("Downloaded %s", path)
	return path, nil
}

// fetchLatest retrieves and decodes the snapshot index document.
func (d *SnapshotDownloader) fetchLatest(ctx context.Context) (*latestRun, error) {
	var latest latestRun
	err := d.retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.cfg.RunsURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := d.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("GET %s: status %d", d.cfg.RunsURL, resp.StatusCode)
		}
		return json.NewDecoder(resp.Body).Decode(&latest)
	})
	if err != nil {
		return nil, err
	}
	return &latest, nil
}

// fetchFile downloads url into path via a temp file so a partial download
// never looks like a cached snapshot.
func (d *SnapshotDownloader) fetchFile(ctx context.Context, url, path string) error {
	return d.retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := d.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
		}

		tmp, err := os.CreateTemp(filepath.Dir(path), ".download-*")
		if err != nil {
			return backoff.Permanent(err)
		}
		defer os.Remove(tmp.Name())

		if _, err := io.Copy(tmp, resp.Body); err != nil {
			tmp.Close()
			return err
		}
		if err := tmp.Close(); err != nil {
			return err
		}
		return os.Rename(tmp.Name(), path)
	})
}

// retry runs op under the downloader's bounded backoff policy.
func (d *SnapshotDownloader) retry(ctx context.Context, op func() error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4), ctx)
	return backoff.Retry(op, policy)
}
