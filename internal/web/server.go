// Package web serves the read-only review dashboard: brand metadata from the
// source catalog joined with audit-log recency. It never mutates anything.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/atp2osm/atp2osm-import/internal/audit"
	"github.com/atp2osm/atp2osm-import/internal/catalog"
)

// Server is the dashboard HTTP server.
type Server struct {
	catalog    *catalog.Catalog
	store      *audit.Store
	log        *zap.SugaredLogger
	httpServer *http.Server
	router     *mux.Router
}

// NewServer creates a dashboard server listening on addr.
func NewServer(addr string, cat *catalog.Catalog, store *audit.Store, log *zap.SugaredLogger) *Server {
	s := &Server{
		catalog: cat,
		store:   store,
		log:     log,
		router:  mux.NewRouter(),
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/brands", s.handleBrands).Methods(http.MethodGet)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("Dashboard listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// brandMetadata is one dashboard row.
type brandMetadata struct {
	BrandWikidata string `json:"brand_wikidata"`
	Brand         string `json:"brand"`
	Count         int    `json:"count"`
	LastImport    string `json:"last_import"`
}

func (s *Server) handleBrands(w http.ResponseWriter, r *http.Request) {
	brands, err := s.catalog.ListBrands(r.Context())
	if err != nil {
		s.log.Errorf("Failed to list brands: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list brands"})
		return
	}

	rows := make([]brandMetadata, 0, len(brands))
	for _, b := range brands {
		rows = append(rows, brandMetadata{
			BrandWikidata: b.BrandWikidata,
			Brand:         b.Brand,
			Count:         b.Count,
			LastImport:    s.store.LastImport(b.BrandWikidata),
		})
	}
	writeJSON(w, http.StatusOK, rows)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
