// Package httpapi wires the four documented inbound ingestion
// endpoints and the read-side analytics endpoints onto a plain
// net/http.ServeMux, matching the teacher's preference for no routing
// framework (see SPEC_FULL.md's Domain Stack notes on router choice).
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chessanalytics/ingest-core/internal/domain"
	"github.com/chessanalytics/ingest-core/internal/ingest"
	"github.com/chessanalytics/ingest-core/internal/store"
	"github.com/chessanalytics/ingest-core/pkg/ingestdto"
)

// Server holds the dependencies the HTTP handlers need.
type Server struct {
	accounts    store.AccountStore
	games       store.GameStore
	jobs        store.JobStore
	coordinator *ingest.Coordinator
	uploadDir   string
	log         *zap.Logger
}

// New builds a Server and its wired *http.ServeMux.
func New(accounts store.AccountStore, games store.GameStore, jobs store.JobStore, coordinator *ingest.Coordinator, uploadDir string, log *zap.Logger) *http.ServeMux {
	s := &Server{
		accounts:    accounts,
		games:       games,
		jobs:        jobs,
		coordinator: coordinator,
		uploadDir:   uploadDir,
		log:         log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /accounts/{id}/upload", s.handleUpload)
	mux.HandleFunc("POST /accounts/{id}/import/chesscom", s.handleImportChessCom)
	mux.HandleFunc("POST /accounts/{id}/import/lichess", s.handleImportLichess)
	mux.HandleFunc("GET /accounts/{id}/jobs/{job_id}", s.handleGetJob)
	mux.HandleFunc("GET /accounts/{id}/analytics/daily-activity", s.handleDailyActivity)
	mux.HandleFunc("GET /accounts/{id}/analytics/by-color", s.handleBreakdownByColor)
	mux.HandleFunc("GET /accounts/{id}/analytics/by-time-control", s.handleBreakdownByTimeControl)
	return mux
}

func (s *Server) accountFromPath(w http.ResponseWriter, r *http.Request) (*domain.Account, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return nil, false
	}
	account, err := s.accounts.Get(r.Context(), id)
	if err != nil {
		s.log.Error("load account failed", zap.Error(err), zap.Int64("account_id", id))
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	if account == nil {
		writeError(w, http.StatusNotFound, "account not found")
		return nil, false
	}
	return account, true
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	account, ok := s.accountFromPath(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	storedName := fmt.Sprintf("%s_%s", uuid.NewString(), header.Filename)
	storedPath := filepath.Join(s.uploadDir, storedName)
	out, err := os.Create(storedPath)
	if err != nil {
		s.log.Error("create upload file failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not store upload")
		return
	}
	defer out.Close()
	if _, err := io.Copy(out, file); err != nil {
		s.log.Error("write upload file failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not store upload")
		return
	}

	job, err := s.coordinator.EnqueueFileImport(r.Context(), account, storedPath, header.Filename)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, ingestdto.FromJob(job))
}

func (s *Server) handleImportChessCom(w http.ResponseWriter, r *http.Request) {
	account, ok := s.accountFromPath(w, r)
	if !ok {
		return
	}
	job, err := s.coordinator.EnqueueChessComImport(r.Context(), account)
	if err != nil {
		writeImportError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ingestdto.FromJob(job))
}

func (s *Server) handleImportLichess(w http.ResponseWriter, r *http.Request) {
	account, ok := s.accountFromPath(w, r)
	if !ok {
		return
	}
	job, err := s.coordinator.EnqueueLichessImport(r.Context(), account)
	if err != nil {
		writeImportError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ingestdto.FromJob(job))
}

func writeImportError(w http.ResponseWriter, err error) {
	if errors.Is(err, ingest.ErrWrongPlatform) || errors.Is(err, ingest.ErrImportActive) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := strconv.ParseInt(r.PathValue("job_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	job, err := s.jobs.Get(r.Context(), jobID)
	if err != nil {
		s.log.Error("get job failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, ingestdto.FromJob(job))
}

func (s *Server) handleDailyActivity(w http.ResponseWriter, r *http.Request) {
	account, ok := s.accountFromPath(w, r)
	if !ok {
		return
	}
	from, to, err := parseDateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := s.games.DailyActivity(r.Context(), account.ID, from, to)
	if err != nil {
		s.log.Error("daily activity failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, ingestdto.FromDailyActivity(rows))
}

// parseDateRange reads the optional "from"/"to" query parameters, each
// an RFC3339 timestamp, as documented by SPEC_FULL.md's
// daily_activity(account_id, from?, to?) signature.
func parseDateRange(r *http.Request) (from, to *time.Time, err error) {
	if v := strings.TrimSpace(r.URL.Query().Get("from")); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid from: %w", err)
		}
		from = &t
	}
	if v := strings.TrimSpace(r.URL.Query().Get("to")); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid to: %w", err)
		}
		to = &t
	}
	return from, to, nil
}

func (s *Server) handleBreakdownByColor(w http.ResponseWriter, r *http.Request) {
	account, ok := s.accountFromPath(w, r)
	if !ok {
		return
	}
	breakdown, err := s.games.BreakdownByColor(r.Context(), account.ID)
	if err != nil {
		s.log.Error("breakdown by color failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, ingestdto.FromColorBreakdown(breakdown))
}

func (s *Server) handleBreakdownByTimeControl(w http.ResponseWriter, r *http.Request) {
	account, ok := s.accountFromPath(w, r)
	if !ok {
		return
	}
	breakdown, err := s.games.BreakdownByTimeControl(r.Context(), account.ID)
	if err != nil {
		s.log.Error("breakdown by time control failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, ingestdto.FromTimeControlBreakdown(breakdown))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: strings.TrimSpace(msg)})
}
