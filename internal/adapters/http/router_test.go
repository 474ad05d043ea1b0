package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/askdocs/pdfchat/internal/core/domain"
)

type engineFake struct {
	created      []string
	createErr    error
	destroyed    []string
	destroyErr   error
	uploaded     *domain.File
	uploadErr    error
	file         *domain.File
	fileErr      error
	snippets     []domain.Snippet
	queryErr     error
	lastQuestion string
	lastScope    domain.FileScope
}

func (f *engineFake) CreateSession(sessionID string) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, sessionID)
	return nil
}

func (f *engineFake) DestroySession(_ context.Context, sessionID string) error {
	if f.destroyErr != nil {
		return f.destroyErr
	}
	f.destroyed = append(f.destroyed, sessionID)
	return nil
}

func (f *engineFake) Upload(_ context.Context, sessionID, filename string, body io.Reader) (*domain.File, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	_, _ = io.Copy(io.Discard, body)
	return f.uploaded, nil
}

func (f *engineFake) FileStatus(_ context.Context, sessionID, fileID string) (*domain.File, error) {
	if f.fileErr != nil {
		return nil, f.fileErr
	}
	return f.file, nil
}

func (f *engineFake) Query(_ context.Context, sessionID, question string, scope domain.FileScope) ([]domain.Snippet, error) {
	f.lastQuestion = question
	f.lastScope = scope
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.snippets, nil
}

func newTestHandler(fake *engineFake, cfg RouterConfig) http.Handler {
	return NewRouter(fake, fake, fake, fake, cfg).Handler()
}

func TestHealthz(t *testing.T) {
	handler := newTestHandler(&engineFake{}, RouterConfig{})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestCreateSessionEchoesProvidedID(t *testing.T) {
	fake := &engineFake{}
	handler := newTestHandler(fake, RouterConfig{})

	body := strings.NewReader(`{"session_id":"s1"}`)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/sessions", body))

	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	var resp map[string]string
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["session_id"] != "s1" {
		t.Fatalf("expected session_id s1, got %q", resp["session_id"])
	}
	if len(fake.created) != 1 || fake.created[0] != "s1" {
		t.Fatalf("expected create call for s1, got %v", fake.created)
	}
}

func TestCreateSessionGeneratesIDWhenOmitted(t *testing.T) {
	fake := &engineFake{}
	handler := newTestHandler(fake, RouterConfig{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/sessions", nil))

	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", res.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["session_id"] == "" {
		t.Fatal("expected a generated session id")
	}
}

func TestCreateSessionDuplicateMapsTo400(t *testing.T) {
	fake := &engineFake{createErr: domain.WrapError(domain.ErrInvalidInput, "create session", errors.New("exists"))}
	handler := newTestHandler(fake, RouterConfig{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/sessions", strings.NewReader(`{"session_id":"s1"}`)))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestDestroySession(t *testing.T) {
	fake := &engineFake{}
	handler := newTestHandler(fake, RouterConfig{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodDelete, "/v1/sessions/s1", nil))
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}
	if len(fake.destroyed) != 1 || fake.destroyed[0] != "s1" {
		t.Fatalf("expected destroy call for s1, got %v", fake.destroyed)
	}
}

func TestDestroyUnknownSessionMapsTo404(t *testing.T) {
	fake := &engineFake{destroyErr: domain.WrapError(domain.ErrSessionNotFound, "destroy session", errors.New("s1"))}
	handler := newTestHandler(fake, RouterConfig{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodDelete, "/v1/sessions/s1", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func multipartPDF(t *testing.T, field, filename string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("%PDF-1.4 fake")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func TestUploadFileReturns202(t *testing.T) {
	fake := &engineFake{uploaded: &domain.File{ID: "file-1", SessionID: "s1", Status: domain.FileStatusUploaded}}
	handler := newTestHandler(fake, RouterConfig{})

	body, contentType := multipartPDF(t, "file", "report.pdf")
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/s1/files", body)
	req.Header.Set("Content-Type", contentType)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	var resp domain.File
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "file-1" {
		t.Fatalf("unexpected file id %q", resp.ID)
	}
}

func TestUploadWithoutFileFieldReturns400(t *testing.T) {
	handler := newTestHandler(&engineFake{}, RouterConfig{})

	body, contentType := multipartPDF(t, "attachment", "report.pdf")
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/s1/files", body)
	req.Header.Set("Content-Type", contentType)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestFileStatusEndpoint(t *testing.T) {
	fake := &engineFake{file: &domain.File{ID: "file-1", SessionID: "s1", Status: domain.FileStatusReady, Pages: 3, Chunks: 9}}
	handler := newTestHandler(fake, RouterConfig{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/sessions/s1/files/file-1", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var resp domain.File
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != domain.FileStatusReady || resp.Chunks != 9 {
		t.Fatalf("unexpected file: %+v", resp)
	}
}

func TestFileStatusNotFoundMapsTo404(t *testing.T) {
	fake := &engineFake{fileErr: domain.WrapError(domain.ErrFileNotFound, "get file", errors.New("ghost"))}
	handler := newTestHandler(fake, RouterConfig{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/sessions/s1/files/ghost", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestQueryEndpointPassesScopeAndReturnsSnippets(t *testing.T) {
	fake := &engineFake{snippets: []domain.Snippet{{
		ChunkID:    "f1:p2:c0",
		FileID:     "f1",
		FileName:   "report.pdf",
		PageNumber: 2,
		Span:       domain.CharSpan{Start: 5, End: 42},
		Text:       "revenue grew",
		FusedScore: 0.03,
	}}}
	handler := newTestHandler(fake, RouterConfig{})

	body := strings.NewReader(`{"question":"what was revenue","file_ids":["f1"]}`)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/sessions/s1/query", body))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	if fake.lastQuestion != "what was revenue" {
		t.Fatalf("unexpected question %q", fake.lastQuestion)
	}
	if fake.lastScope == nil || !fake.lastScope.Contains("f1") {
		t.Fatalf("expected scope containing f1, got %v", fake.lastScope)
	}

	var resp struct {
		Snippets []domain.Snippet `json:"snippets"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Snippets) != 1 || resp.Snippets[0].ChunkID != "f1:p2:c0" {
		t.Fatalf("unexpected snippets: %+v", resp.Snippets)
	}
}

func TestQueryWithoutQuestionReturns400(t *testing.T) {
	handler := newTestHandler(&engineFake{}, RouterConfig{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/sessions/s1/query", strings.NewReader(`{}`)))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestQueryEmbeddingUnavailableMapsTo503(t *testing.T) {
	fake := &engineFake{queryErr: domain.WrapError(domain.ErrEmbeddingUnavailable, "ollama embed", errors.New("model down"))}
	handler := newTestHandler(fake, RouterConfig{})

	body := strings.NewReader(`{"question":"anything"}`)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/sessions/s1/query", body))
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestRequestIDHeaderIsSet(t *testing.T) {
	handler := newTestHandler(&engineFake{}, RouterConfig{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected X-Request-Id header")
	}

	res2 := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "fixed-id")
	handler.ServeHTTP(res2, req)
	if res2.Header().Get("X-Request-Id") != "fixed-id" {
		t.Fatalf("expected propagated request id, got %q", res2.Header().Get("X-Request-Id"))
	}
}

func TestUnknownSessionSubpathReturns404(t *testing.T) {
	handler := newTestHandler(&engineFake{}, RouterConfig{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/sessions/s1/unknown", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}
