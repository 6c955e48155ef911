package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/conanshim/registry/internal/common"
	"github.com/conanshim/registry/internal/registry/auth"
)

func (s *Server) handlePing(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version})
	}
}

// identity resolves the request's bearer credential, if any.
func (s *Server) identity(r *http.Request) (*auth.Identity, bool) {
	return s.auth.Verify(r.Context(), auth.ExtractToken(r))
}

// requireIdentity writes 401 and returns false when no valid credential
// is present.
func (s *Server) requireIdentity(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	id, ok := s.identity(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}
	return id, true
}

// requireUploader enforces the upload-class role check: 401 without a
// valid credential, 403 for roles below developer.
func (s *Server) requireUploader(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	id, ok := s.requireIdentity(w, r)
	if !ok {
		return nil, false
	}
	if !auth.CanUpload(id.Role) {
		writeError(w, http.StatusForbidden, "Forbidden: Admin or Developer role required for uploads")
		return nil, false
	}
	return id, true
}

// handleAuthenticateBasic is the legacy GET form: Basic-Auth credentials
// in, raw token string out. Conan 1.x hard-codes this shape.
func (s *Server) handleAuthenticateBasic(w http.ResponseWriter, r *http.Request) {
	username, password, ok := r.BasicAuth()
	if !ok || username == "" || password == "" {
		writeError(w, http.StatusUnauthorized, "Missing Basic Auth")
		return
	}

	token, err := s.auth.Authenticate(r.Context(), username, password)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(token))
}

// handleAuthenticateJSON is the POST form: JSON body in, {token} out.
func (s *Server) handleAuthenticateJSON(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil ||
		strings.TrimSpace(body.Username) == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "Missing username or password")
		return
	}

	token, err := s.auth.Authenticate(r.Context(), body.Username, body.Password)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, common.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	s.logger.Error(r.Context(), "authentication failed", "error", err)
	writeInternalError(w)
}

func (s *Server) handleCheckCredentials(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.identity(r); !ok {
		writeError(w, http.StatusUnauthorized, "Invalid token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
