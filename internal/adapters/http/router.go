package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/askdocs/pdfchat/internal/core/domain"
	"github.com/askdocs/pdfchat/internal/core/ports"
)

type RouterConfig struct {
	MaxUploadBytes    int64
	RateLimitRPS      int
	RateLimitBurst    int
	BackpressureLimit int

	// ObserveQuery, when set, receives the outcome of every retrieval query.
	ObserveQuery func(duration time.Duration, snippets int, err error)
}

type Router struct {
	sessions  ports.SessionAdmin
	ingestor  ports.FileIngestor
	files     ports.FileReader
	retriever ports.SnippetRetriever
	cfg       RouterConfig
}

func NewRouter(
	sessions ports.SessionAdmin,
	ingestor ports.FileIngestor,
	files ports.FileReader,
	retriever ports.SnippetRetriever,
	cfg RouterConfig,
) *Router {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 32 << 20
	}
	return &Router{
		sessions:  sessions,
		ingestor:  ingestor,
		files:     files,
		retriever: retriever,
		cfg:       cfg,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/sessions", rt.createSession)
	mux.HandleFunc("/v1/sessions/", rt.sessionSubtree)

	var handler http.Handler = mux
	if rt.cfg.BackpressureLimit > 0 {
		handler = backpressureMiddleware(handler, rt.cfg.BackpressureLimit, backpressureWait)
	}
	if rt.cfg.RateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) createSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		SessionID string `json:"session_id"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	if err := rt.sessions.CreateSession(sessionID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": sessionID})
}

// sessionSubtree dispatches everything under /v1/sessions/{session_id}.
func (rt *Router) sessionSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/sessions/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session id is required"})
		return
	}
	sessionID := parts[0]

	switch {
	case len(parts) == 1:
		rt.destroySession(w, r, sessionID)
	case len(parts) == 2 && parts[1] == "files":
		rt.uploadFile(w, r, sessionID)
	case len(parts) == 3 && parts[1] == "files":
		rt.getFileStatus(w, r, sessionID, parts[2])
	case len(parts) == 2 && parts[1] == "query":
		rt.query(w, r, sessionID)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	}
}

func (rt *Router) destroySession(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodDelete {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if err := rt.sessions.DestroySession(r.Context(), sessionID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) uploadFile(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	meta, err := rt.ingestor.Upload(r.Context(), sessionID, fileHeader.Filename, file)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, meta)
}

func (rt *Router) getFileStatus(w http.ResponseWriter, r *http.Request, sessionID, fileID string) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	meta, err := rt.files.FileStatus(r.Context(), sessionID, fileID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (rt *Router) query(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Question string   `json:"question"`
		FileIDs  []string `json:"file_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	start := time.Now()
	snippets, err := rt.retriever.Query(r.Context(), sessionID, req.Question, domain.NewFileScope(req.FileIDs))
	if rt.cfg.ObserveQuery != nil {
		rt.cfg.ObserveQuery(time.Since(start), len(snippets), err)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"snippets": snippets})
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
