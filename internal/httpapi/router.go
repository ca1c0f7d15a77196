package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"TenderScanner/internal/domain"
	"TenderScanner/internal/logging"
	"TenderScanner/internal/ports"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Scanner runs one ingestion pass.
type Scanner interface {
	Scan(ctx context.Context) (domain.ScanSummary, error)
}

type server struct {
	scanner Scanner
	catalog ports.TenderCatalog
	log     *slog.Logger
}

// NewRouter exposes the scan trigger, the tender list and the health probe.
func NewRouter(scanner Scanner, catalog ports.TenderCatalog, log *slog.Logger) http.Handler {
	if log == nil {
		log = logging.Discard()
	}
	srv := &server{scanner: scanner, catalog: catalog, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/health", srv.handleHealth)
	r.Get("/scan", srv.handleScan)
	r.Get("/tenders", srv.handleTenders)

	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.catalog.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleScan runs detached from the request so a dropped client does not abort a half-done run.
func (s *server) handleScan(w http.ResponseWriter, r *http.Request) {
	summary, err := s.scanner.Scan(context.WithoutCancel(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, scanResponse{
			Success: false,
			RunID:   summary.RunID,
			Error:   err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, newScanResponse(summary))
}

func (s *server) handleTenders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	limit := clampInt(r.URL.Query().Get("limit"), defaultListLimit, maxListLimit)

	records, err := s.catalog.ListTenders(ctx, limit)
	if err != nil {
		s.log.Error("list tenders", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	views := make([]tenderView, 0, len(records))
	for _, rec := range records {
		views = append(views, newTenderView(rec))
	}
	writeJSON(w, http.StatusOK, tenderList{Tenders: views, Count: len(views)})
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			started := time.Now()
			next.ServeHTTP(ww, r)

			log.Info("http request",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(started))
		})
	}
}

func clampInt(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	if value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
