package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/conanshim/registry/internal/common"
	"github.com/conanshim/registry/internal/registry/auth"
	"github.com/conanshim/registry/internal/registry/broker"
	"github.com/conanshim/registry/internal/registry/models"
)

// decodeUploadBody reads the upload-URL request body, which arrives
// either as {"files": [...]} or as the Conan 1.x {filename: size} map,
// possibly alongside settings/options for binary uploads.
func decodeUploadBody(r *http.Request) (files []string, settings, options map[string]any) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, nil, nil
	}
	return filesFromBody(body), mapField(body, "settings"), mapField(body, "options")
}

func filesFromBody(body map[string]any) []string {
	if v, ok := body["files"]; ok {
		if arr, ok := v.([]any); ok {
			files := make([]string, 0, len(arr))
			for _, e := range arr {
				if s, ok := e.(string); ok {
					files = append(files, s)
				}
			}
			return files
		}
	}
	var files []string
	for k, v := range body {
		switch k {
		case "files", "settings", "options", "packageId":
			continue
		}
		// Only scalar values denote filenames (the map form carries sizes).
		switch v.(type) {
		case string, float64:
			files = append(files, k)
		}
	}
	sort.Strings(files)
	return files
}

func mapField(body map[string]any, key string) map[string]any {
	if v, ok := body[key]; ok {
		if m, ok := v.(map[string]any); ok {
			return m
		}
	}
	return nil
}

func (s *Server) handleRecipeUploadURLs(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireUploader(w, r)
	if !ok {
		return
	}
	rf := refFromRequest(r)
	files, _, _ := decodeUploadBody(r)

	urls, err := s.broker.RecipeUploadURLs(r.Context(), rf, files)
	if err != nil {
		s.logger.Error(r.Context(), "recipe upload urls failed", "reference", rf.String(), "error", err)
		writeInternalError(w)
		return
	}

	if _, err := s.recipes.UpsertFiles(r.Context(), rf, files); err != nil {
		s.logger.Error(r.Context(), "recipe upsert failed", "reference", rf.String(), "error", err)
		writeInternalError(w)
		return
	}

	s.audit.Record(id.Username, models.AuditUploadRecipe,
		fmt.Sprintf("Uploaded recipe for %s", rf))

	writeJSON(w, http.StatusOK, urls)
}

func (s *Server) handleBinaryUploadURLs(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireUploader(w, r)
	if !ok {
		return
	}
	rf := refFromRequest(r)
	binaryID := binaryIDFromRequest(r)
	files, settings, options := decodeUploadBody(r)

	urls, err := s.broker.BinaryUploadURLs(r.Context(), rf, binaryID, files)
	if err != nil {
		s.logger.Error(r.Context(), "binary upload urls failed", "reference", rf.String(), "error", err)
		writeInternalError(w)
		return
	}

	// Metadata persistence is best-effort here: the signed URLs are
	// already issued and older clients retry the whole upload on error.
	if _, err := s.recipes.UpsertBinary(r.Context(), rf, binaryID, settings, options); err != nil {
		s.logger.Error(r.Context(), "binary upsert failed",
			"reference", rf.String(), "binary", binaryID, "error", err)
	} else {
		s.audit.Record(id.Username, models.AuditUploadPackage,
			fmt.Sprintf("Uploaded binary package %s for %s", binaryID, rf))
	}

	writeJSON(w, http.StatusOK, urls)
}

func (s *Server) handleRecipeDownloadURLs(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.getRecipeOr404(w, r)
	if !ok {
		return
	}

	urls, err := s.broker.RecipeDownloadURLs(r.Context(), refFromRequest(r), rec.Files)
	if err != nil {
		s.logger.Error(r.Context(), "recipe download urls failed", "reference", rec.Reference, "error", err)
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, urls)
}

// handleBinaryDownloadURLs assumes the fixed binary file triple; the
// blob store is authoritative about which of them actually exist.
func (s *Server) handleBinaryDownloadURLs(w http.ResponseWriter, r *http.Request) {
	rf := refFromRequest(r)
	urls, err := s.broker.BinaryDownloadURLs(r.Context(), rf, binaryIDFromRequest(r), broker.BinaryFiles)
	if err != nil {
		s.logger.Error(r.Context(), "binary download urls failed", "reference", rf.String(), "error", err)
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, urls)
}

// Single-file requests redirect (302) to a fresh signed URL instead of
// returning JSON.
func (s *Server) handleRecipeFileRedirect(w http.ResponseWriter, r *http.Request) {
	rf := refFromRequest(r)
	url, err := s.broker.RecipeFileURL(r.Context(), rf, urlParamFilename(r))
	if err != nil {
		s.logger.Error(r.Context(), "recipe file url failed", "reference", rf.String(), "error", err)
		writeInternalError(w)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

func (s *Server) handleBinaryFileRedirect(w http.ResponseWriter, r *http.Request) {
	rf := refFromRequest(r)
	url, err := s.broker.BinaryFileURL(r.Context(), rf, binaryIDFromRequest(r), urlParamFilename(r))
	if err != nil {
		s.logger.Error(r.Context(), "binary file url failed", "reference", rf.String(), "error", err)
		writeInternalError(w)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

func (s *Server) handleRemoveFiles(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireUploader(w, r)
	if !ok {
		return
	}
	rf := refFromRequest(r)
	s.audit.Record(id.Username, models.AuditRemoveFiles,
		fmt.Sprintf("Removed recipe files for %s", rf))
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRemoveBinaryFiles(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireUploader(w, r)
	if !ok {
		return
	}
	rf := refFromRequest(r)
	s.audit.Record(id.Username, models.AuditRemovePackageFiles,
		fmt.Sprintf("Removed binary files for %s (Package: %s)", rf, binaryIDFromRequest(r)))
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleDeletePackage is audit-only: the action is recorded but metadata
// and blobs are retained.
func (s *Server) handleDeletePackage(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireIdentity(w, r)
	if !ok {
		return
	}
	if !auth.CanDelete(id.Role) {
		writeError(w, http.StatusForbidden, "Forbidden: Admin required for deletion")
		return
	}
	rf := refFromRequest(r)
	s.audit.Record(id.Username, models.AuditDeletePackage,
		fmt.Sprintf("Deleted package %s", rf))
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleRedirect verifies identity and role, then answers 307 so the
// client replays the same method against the signed URL. The body is
// never read.
func (s *Server) handleRedirect(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if r.Method == http.MethodPut && !auth.CanUpload(id.Role) {
		writeError(w, http.StatusForbidden, "Forbidden: Upload access denied")
		return
	}

	key := strings.TrimPrefix(r.URL.Path, "/v1/files/redirect/")
	url, err := s.broker.RedirectURL(r.Context(), r.Method, key)
	if err != nil {
		if errors.Is(err, common.ErrMethodNotAllowed) {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		s.logger.Error(r.Context(), "redirect presign failed", "key", key, "error", err)
		writeInternalError(w)
		return
	}

	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// handleProxyDownload streams blob bytes through the registry. Deprecated:
// kept only for clients that cannot follow the redirect flow.
func (s *Server) handleProxyDownload(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireIdentity(w, r); !ok {
		return
	}

	key := strings.TrimPrefix(r.URL.Path, "/v1/files/")
	body, contentType, err := s.blobs.Get(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		s.logger.Warn(r.Context(), "proxy download interrupted", "key", key, "error", err)
	}
}

// handleProxyUpload accepts bounded file bytes and writes them to the
// blob store itself. Deprecated alongside handleProxyDownload.
func (s *Server) handleProxyUpload(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireUploader(w, r); !ok {
		return
	}

	key := strings.TrimPrefix(r.URL.Path, "/v1/files/")
	limited := http.MaxBytesReader(w, r.Body, s.maxProxyBytes)
	data, err := io.ReadAll(limited)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "File too large")
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := s.blobs.Put(r.Context(), key, contentType, bytes.NewReader(data)); err != nil {
		s.logger.Error(r.Context(), "proxy upload failed", "key", key, "error", err)
		writeInternalError(w)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
