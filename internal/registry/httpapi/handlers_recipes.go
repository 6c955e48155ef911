package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/conanshim/registry/internal/common"
	"github.com/conanshim/registry/internal/registry/models"
	"github.com/conanshim/registry/internal/registry/ref"
)

func refFromRequest(r *http.Request) ref.Ref {
	return ref.New(
		chi.URLParam(r, "name"),
		chi.URLParam(r, "version"),
		chi.URLParam(r, "user"),
		chi.URLParam(r, "channel"),
	)
}

func binaryIDFromRequest(r *http.Request) string {
	return chi.URLParam(r, "binaryID")
}

func urlParamFilename(r *http.Request) string {
	return chi.URLParam(r, "filename")
}

// handleSearch is the full-scan recipe search shared by every search
// path alias.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("q")
	if pattern == "" {
		pattern = "*"
	}

	all, err := s.recipes.All(r.Context())
	if err != nil {
		s.logger.Error(r.Context(), "search scan failed", "error", err)
		writeInternalError(w)
		return
	}

	results := make([]string, 0, len(all))
	for _, rec := range all {
		if matchesPattern(pattern, rec) {
			results = append(results, rec.Reference)
		}
	}

	writeJSON(w, http.StatusOK, map[string][]string{"results": results})
}

// matchesPattern implements the glob-ish search contract: "*" matches
// everything; otherwise the wildcard-stripped literal must be contained
// in the package name or contain it, or the pattern must equal the full
// reference.
func matchesPattern(pattern string, rec *models.Recipe) bool {
	if pattern == "*" {
		return true
	}
	literal := strings.ReplaceAll(pattern, "*", "")
	if literal == "" {
		return true
	}
	if strings.Contains(rec.Name, literal) {
		return true
	}
	if strings.Contains(literal, rec.Name) {
		return true
	}
	return rec.Reference == pattern
}

func (s *Server) handleGetRecipe(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.getRecipeOr404(w, r)
	if !ok {
		return
	}
	if rec.Files == nil {
		rec.Files = []string{}
	}
	writeJSON(w, http.StatusOK, rec)
}

// getRecipeOr404 loads the recipe or writes the protocol's 404 body.
func (s *Server) getRecipeOr404(w http.ResponseWriter, r *http.Request) (*models.Recipe, bool) {
	rec, err := s.recipes.Get(r.Context(), refFromRequest(r).String())
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Package not found")
			return nil, false
		}
		s.logger.Error(r.Context(), "recipe lookup failed", "error", err)
		writeInternalError(w)
		return nil, false
	}
	return rec, true
}

// handleListBinaries returns the recipe's binaries map, or an empty map
// when the recipe or its binaries are absent. Never a 404: "recipe
// exists but has no binaries" is an empty result, not an error.
func (s *Server) handleListBinaries(w http.ResponseWriter, r *http.Request) {
	rec, err := s.recipes.Get(r.Context(), refFromRequest(r).String())
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			writeJSON(w, http.StatusOK, map[string]models.Binary{})
			return
		}
		s.logger.Error(r.Context(), "recipe lookup failed", "error", err)
		writeInternalError(w)
		return
	}
	binaries := rec.Binaries
	if binaries == nil {
		binaries = map[string]models.Binary{}
	}
	writeJSON(w, http.StatusOK, binaries)
}

// handleBinarySnapshot returns the filename-to-hash map for one binary.
// 404 only when the binary record itself is absent.
func (s *Server) handleBinarySnapshot(w http.ResponseWriter, r *http.Request) {
	rf := refFromRequest(r)
	binaryID := binaryIDFromRequest(r)

	rec, err := s.recipes.Get(r.Context(), rf.String())
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Binary package not found")
			return
		}
		s.logger.Error(r.Context(), "recipe lookup failed", "error", err)
		writeInternalError(w)
		return
	}
	if _, ok := rec.Binaries[binaryID]; !ok {
		writeError(w, http.StatusNotFound, "Binary package not found")
		return
	}

	writeJSON(w, http.StatusOK, s.manifests.BinarySnapshot(r.Context(), rf, binaryID))
}

// handleRecipeDigest returns the recipe's manifest snapshot when the
// recipe exists. The snapshot reader never fails, so the only error
// path is the missing recipe.
func (s *Server) handleRecipeDigest(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.getRecipeOr404(w, r); !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.manifests.RecipeSnapshot(r.Context(), refFromRequest(r)))
}

// handleRecipeFiles is the revision-scoped files listing; same content
// as the digest.
func (s *Server) handleRecipeFiles(w http.ResponseWriter, r *http.Request) {
	s.handleRecipeDigest(w, r)
}

// handleBinaryFiles lists one binary's files from its manifest snapshot.
func (s *Server) handleBinaryFiles(w http.ResponseWriter, r *http.Request) {
	s.handleBinarySnapshot(w, r)
}

// The synthetic revision model: every revision query, recipe or binary
// scope, resolves to the single revision "0" stamped with the current
// time. The wire protocol's revision negotiation is satisfied without
// real revision history.
const syntheticRevision = "0"

func revisionTime() string {
	return time.Now().UTC().Format("2006-01-02 15:04:05 UTC")
}

func (s *Server) handleListRevisions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"revisions": []map[string]string{
			{"revision": syntheticRevision, "time": revisionTime()},
		},
	})
}

func (s *Server) handleLatestRevision(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"revision": syntheticRevision,
		"time":     revisionTime(),
	})
}
