package httpapi

import (
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/chessanalytics/ingest-core/internal/domain"
	"github.com/chessanalytics/ingest-core/internal/fetch"
	"github.com/chessanalytics/ingest-core/internal/ingest"
	"github.com/chessanalytics/ingest-core/internal/providerprofile"
	"github.com/chessanalytics/ingest-core/internal/store"
	"github.com/chessanalytics/ingest-core/pkg/ingestdto"
)

func newTestServer(t *testing.T, account *domain.Account) (*httptest.Server, store.JobStore) {
	t.Helper()
	catalog, err := providerprofile.New("")
	if err != nil {
		t.Fatalf("providerprofile.New: %v", err)
	}
	games := store.NewMemoryGameStore()
	jobs := store.NewMemoryJobStore()
	accounts := store.NewMemoryAccountStore(account)
	coordinator := ingest.New(games, jobs, accounts, fetch.NewClient(), catalog, zap.NewNop(), 2)

	uploadDir := t.TempDir()
	mux := New(accounts, games, jobs, coordinator, uploadDir, zap.NewNop())
	return httptest.NewServer(mux), jobs
}

func multipartUploadBody(t *testing.T, filename, content string) (string, string) {
	t.Helper()
	var buf strings.Builder
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return w.FormDataContentType(), buf.String()
}

func TestUploadEndpointReturns202WithJob(t *testing.T) {
	account := &domain.Account{ID: 1, Platform: domain.PlatformOther, Username: "alice"}
	srv, _ := newTestServer(t, account)
	defer srv.Close()

	contentType, body := multipartUploadBody(t, "games.pgn", "[Event \"x\"]\n[White \"alice\"]\n[Black \"bob\"]\n[Date \"2024.01.01\"]\n[Result \"1-0\"]\n\n1. e4 *\n")

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/accounts/1/upload", strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	var job ingestdto.Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if job.AccountID != 1 {
		t.Fatalf("expected account_id 1, got %d", job.AccountID)
	}
	if job.Status != string(domain.JobPending) {
		t.Fatalf("expected status PENDING, got %s", job.Status)
	}
}

func TestGetJobEndpointReturns404ForUnknownJob(t *testing.T) {
	account := &domain.Account{ID: 1, Platform: domain.PlatformOther, Username: "alice"}
	srv, _ := newTestServer(t, account)
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/accounts/1/jobs/999")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestImportChessComEndpointRejectsWrongPlatform(t *testing.T) {
	account := &domain.Account{ID: 1, Platform: domain.PlatformLichess, Username: "alice"}
	srv, _ := newTestServer(t, account)
	defer srv.Close()

	resp, err := srv.Client().Post(srv.URL+"/accounts/1/import/chesscom", "application/json", nil)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestUploadEndpoint404ForUnknownAccount(t *testing.T) {
	account := &domain.Account{ID: 1, Platform: domain.PlatformOther, Username: "alice"}
	srv, _ := newTestServer(t, account)
	defer srv.Close()

	contentType, body := multipartUploadBody(t, "games.pgn", "irrelevant")
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/accounts/42/upload", strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
