// Package api exposes the workspace actions over HTTP and pushes state
// changes to browsers over a websocket.
package api

import (
	"bufio"
	"context"
	"fmt"
	"mime/multipart"
	"net"
	"net/http"
	"time"

	"zproposal/internal/auth"
	"zproposal/internal/documents"
	"zproposal/internal/generation"
	"zproposal/internal/logging"
	"zproposal/internal/store"
	"zproposal/internal/workspace"
)

// Workspace is the set of actions the handlers drive.
type Workspace interface {
	Upload(ctx context.Context, req workspace.UploadRequest) (documents.Record, error)
	ImportURL(ctx context.Context, rawURL, category string) (documents.Record, error)
	Documents() []documents.Record
	DisplayText(id int64) (string, error)
	Toggle(id int64) (bool, error)
	Selected() []int64
	IsSelected(id int64) bool
	Delete(ctx context.Context, id int64) error
	ResetAll(ctx context.Context) error
	Generate(ctx context.Context) (generation.Session, error)
	Generation() generation.Session
	SaveCredential(ctx context.Context, key string) error
	Credential(ctx context.Context) (masked string, configured bool, err error)
	ClearCredential(ctx context.Context) error
	Result() (string, bool)
	CopyResult() error
	DownloadResult(now time.Time) (filename string, content []byte, mimeType string, err error)
	ClearResult()
}

// UploadReader reads multipart file parts under the upload guardrails.
type UploadReader interface {
	ReadUpload(file multipart.File, header *multipart.FileHeader) (string, []byte, error)
}

// Server holds dependencies and provides HTTP handlers
type Server struct {
	workspace Workspace
	session   *auth.Session
	uploads   UploadReader
	wsHub     *WebSocketHub
	meter     store.Meter
	quota     int64
	logger    *logging.Logger
	now       func() time.Time
}

// NewServer creates a server and starts its websocket hub. Call Close to stop the hub.
func NewServer(ws Workspace, session *auth.Session, uploads UploadReader, logger *logging.Logger) *Server {
	srv := &Server{
		workspace: ws,
		session:   session,
		uploads:   uploads,
		wsHub:     NewWebSocketHub(logger.Named("websocket")),
		logger:    logger,
		now:       time.Now,
	}

	// Start WebSocket hub
	go srv.wsHub.Run()

	return srv
}

// SetStorageMeter enables GET /api/storage. quota is reported as-is; zero
// means unlimited.
func (s *Server) SetStorageMeter(m store.Meter, quota int64) {
	s.meter = m
	s.quota = quota
}

// Close stops the websocket hub and disconnects its clients.
func (s *Server) Close() {
	s.wsHub.Stop()
}

// Notify forwards workspace events to connected websocket clients.
func (s *Server) Notify(e workspace.Event) {
	s.wsHub.Broadcast(e.Type, e.Data)
}

// RegisterRoutes sets up all HTTP routes
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("POST /api/logout", s.handleLogout)
	mux.HandleFunc("GET /api/session", s.handleSession)

	mux.HandleFunc("GET /api/documents", s.handleListDocuments)
	mux.HandleFunc("POST /api/documents", s.handleUpload)
	mux.HandleFunc("POST /api/documents/import", s.handleImport)
	mux.HandleFunc("DELETE /api/documents", s.handleResetAll)
	mux.HandleFunc("DELETE /api/documents/{id}", s.handleDelete)
	mux.HandleFunc("GET /api/documents/{id}/text", s.handleDocumentText)

	mux.HandleFunc("GET /api/selection", s.handleSelection)
	mux.HandleFunc("POST /api/selection/{id}", s.handleToggle)

	mux.HandleFunc("POST /api/generate", s.handleGenerate)
	mux.HandleFunc("GET /api/generation", s.handleGeneration)

	mux.HandleFunc("GET /api/credential", s.handleGetCredential)
	mux.HandleFunc("PUT /api/credential", s.handleSaveCredential)
	mux.HandleFunc("DELETE /api/credential", s.handleClearCredential)
	mux.HandleFunc("GET /api/storage", s.handleStorage)

	mux.HandleFunc("GET /api/result", s.handleResult)
	mux.HandleFunc("GET /api/result/download", s.handleDownload)
	mux.HandleFunc("POST /api/result/copy", s.handleCopy)
	mux.HandleFunc("DELETE /api/result", s.handleClearResult)

	mux.HandleFunc("GET /ws", s.handleWebSocket)
}

// Handler returns the routes behind request logging and the session gate.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s.logRequests(auth.RequireSession(s.session, s.logger)(mux))
}

// statusRecorder captures the status code for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack is needed by the websocket upgrader.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.WithFields(map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}).Debug("request handled")
	})
}
