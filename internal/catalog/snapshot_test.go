package catalog

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/atp2osm/atp2osm-import/internal/config"
	"github.com/atp2osm/atp2osm-import/internal/logging"
)

func snapshotServer(t *testing.T, payload string, downloads *int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/runs/latest.json", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"run_id": "2026-08-30", "parquet_url": "`+srv.URL+`/data.parquet"}`)
	})
	mux.HandleFunc("/data.parquet", func(w http.ResponseWriter, r *http.Request) {
		if downloads != nil {
			*downloads++
		}
		io.WriteString(w, payload)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDownloadFetchesSnapshot(t *testing.T) {
	downloads := 0
	srv := snapshotServer(t, "parquet-bytes", &downloads)
	dataDir := t.TempDir()

	d := NewSnapshotDownloader(config.SnapshotConfig{RunsURL: srv.URL + "/runs/latest.json"}, dataDir, logging.NewNop())

	path, err := d.Download(context.Background(), false)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	want := filepath.Join(dataDir, "atp", "2026-08-30.parquet")
	if path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "parquet-bytes" {
		t.Errorf("content = %q", data)
	}
	if downloads != 1 {
		t.Errorf("downloads = %d, want 1", downloads)
	}
}

func TestDownloadSkipsCachedSnapshot(t *testing.T) {
	downloads := 0
	srv := snapshotServer(t, "parquet-bytes", &downloads)
	dataDir := t.TempDir()

	d := NewSnapshotDownloader(config.SnapshotConfig{RunsURL: srv.URL + "/runs/latest.json"}, dataDir, logging.NewNop())

	if _, err := d.Download(context.Background(), false); err != nil {
		t.Fatalf("first Download: %v", err)
	}
	if _, err := d.Download(context.Background(), false); err != nil {
		t.Fatalf("second Download: %v", err)
	}
	if downloads != 1 {
		t.Errorf("downloads = %d, want 1 (cached file must be reused)", downloads)
	}

	// Force discards the cache.
	if _, err := d.Download(context.Background(), true); err != nil {
		t.Fatalf("forced Download: %v", err)
	}
	if downloads != 2 {
		t.Errorf("downloads = %d, want 2 after force", downloads)
	}
}

func TestDownloadRejectsEmptyIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"run_id": "2026-08-30"}`)
	}))
	defer srv.Close()

	d := NewSnapshotDownloader(config.SnapshotConfig{RunsURL: srv.URL}, t.TempDir(), logging.NewNop())
	if _, err := d.Download(context.Background(), false); err == nil {
		t.Fatal("expected error for index without parquet_url")
	}
}
