package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"zproposal/internal/auth"
	"zproposal/internal/codec"
	"zproposal/internal/documents"
	"zproposal/internal/ingest"
	"zproposal/internal/workspace"
)

// maxMultipartMemory is how much of an upload is held in memory before
// spilling to temp files.
const maxMultipartMemory = 32 << 20

// documentView is a record as listed to clients, without its content.
type documentView struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Type      string    `json:"type"`
	Date      time.Time `json:"date"`
	MediaType string    `json:"media_type"`
	Selected  bool      `json:"selected"`
}

func (s *Server) view(rec documents.Record) documentView {
	return documentView{
		ID:        rec.ID,
		Name:      rec.Name,
		Category:  string(rec.Category),
		Type:      rec.Category.Label(),
		Date:      rec.UploadedAt,
		MediaType: codec.MediaType(rec.Data),
		Selected:  s.workspace.IsSelected(rec.ID),
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErrorMessage(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, map[string]string{"error": msg, "kind": kind})
}

// statusFor maps a workspace error kind to an HTTP status.
func statusFor(kind workspace.Kind) int {
	switch kind {
	case workspace.KindInput:
		return http.StatusBadRequest
	case workspace.KindNotFound:
		return http.StatusNotFound
	case workspace.KindBusy:
		return http.StatusConflict
	case workspace.KindStorage:
		return http.StatusInsufficientStorage
	case workspace.KindService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports err with the status for its kind.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var we *workspace.Error
	if !errors.As(err, &we) {
		s.logger.Error("unclassified error: %v", err)
		writeErrorMessage(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	status := statusFor(we.Kind)
	if status >= http.StatusInternalServerError {
		s.logger.WithContext("kind", string(we.Kind)).Error("%v", err)
	}
	writeErrorMessage(w, status, string(we.Kind), we.Message())
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid document id %q", r.PathValue("id"))
	}
	return id, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleLogin checks the static credentials and sets the session flag
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, string(workspace.KindInput), "Invalid request")
		return
	}

	if err := s.session.Login(r.Context(), req.Username, req.Password); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeErrorMessage(w, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}
		s.logger.Error("login failed: %v", err)
		writeErrorMessage(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"authenticated": true})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Logout(r.Context()); err != nil {
		s.logger.Error("logout failed: %v", err)
		writeErrorMessage(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"authenticated": false})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"authenticated": s.session.IsAuthenticated(r.Context())})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	recs := s.workspace.Documents()
	views := make([]documentView, len(recs))
	for i, rec := range recs {
		views[i] = s.view(rec)
	}
	writeJSON(w, http.StatusOK, views)
}

// handleUpload processes a multipart upload with "file" and "category" fields
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, string(workspace.KindInput), "Failed to parse form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, string(workspace.KindInput), "a file is required")
		return
	}
	defer file.Close()

	name, content, err := s.uploads.ReadUpload(file, header)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrTooLarge):
			writeErrorMessage(w, http.StatusRequestEntityTooLarge, string(workspace.KindInput), err.Error())
		case errors.Is(err, ingest.ErrBlocked):
			writeErrorMessage(w, http.StatusBadRequest, string(workspace.KindInput), err.Error())
		default:
			s.logger.Error("failed to read upload: %v", err)
			writeErrorMessage(w, http.StatusBadRequest, string(workspace.KindInput), "Failed to read file")
		}
		return
	}

	rec, err := s.workspace.Upload(r.Context(), workspace.UploadRequest{
		Name:     name,
		Category: r.FormValue("category"),
		Content:  content,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.view(rec))
}

// handleImport stores a web page's readable text as a document
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL      string `json:"url"`
		Category string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, string(workspace.KindInput), "Invalid request")
		return
	}

	rec, err := s.workspace.ImportURL(r.Context(), req.URL, req.Category)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.view(rec))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, string(workspace.KindInput), err.Error())
		return
	}
	if err := s.workspace.Delete(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResetAll(w http.ResponseWriter, r *http.Request) {
	if err := s.workspace.ResetAll(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDocumentText(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, string(workspace.KindInput), err.Error())
		return
	}
	text, err := s.workspace.DisplayText(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(text))
}

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]int64{"selected": s.workspace.Selected()})
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, string(workspace.KindInput), err.Error())
		return
	}
	selected, err := s.workspace.Toggle(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":       id,
		"selected": selected,
		"all":      s.workspace.Selected(),
	})
}

// handleGenerate runs a generation and answers when it finishes. Progress is
// also pushed over the websocket.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	session, err := s.workspace.Generate(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleGeneration(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.workspace.Generation())
}

func (s *Server) handleGetCredential(w http.ResponseWriter, r *http.Request) {
	masked, ok, err := s.workspace.Credential(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"configured": ok, "masked": masked})
}

func (s *Server) handleSaveCredential(w http.ResponseWriter, r *http.Request) {
	var req struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, string(workspace.KindInput), "Invalid request")
		return
	}
	if err := s.workspace.SaveCredential(r.Context(), req.APIKey); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearCredential(w http.ResponseWriter, r *http.Request) {
	if err := s.workspace.ClearCredential(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStorage(w http.ResponseWriter, r *http.Request) {
	if s.meter == nil {
		writeErrorMessage(w, http.StatusNotFound, string(workspace.KindNotFound), "storage usage is not available")
		return
	}
	used, err := s.meter.Usage(r.Context())
	if err != nil {
		s.logger.Error("failed to read storage usage: %v", err)
		writeErrorMessage(w, http.StatusInternalServerError, "storage", "failed to read storage usage")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"used_bytes": used, "quota_bytes": s.quota})
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	artifact, ok := s.workspace.Result()
	writeJSON(w, http.StatusOK, map[string]interface{}{"available": ok, "artifact": artifact})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name, content, mimeType, err := s.workspace.DownloadResult(s.now())
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.Write(content)
}

func (s *Server) handleCopy(w http.ResponseWriter, r *http.Request) {
	if err := s.workspace.CopyResult(); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearResult(w http.ResponseWriter, r *http.Request) {
	s.workspace.ClearResult()
	w.WriteHeader(http.StatusNoContent)
}
