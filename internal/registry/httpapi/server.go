// Package httpapi adapts both Conan protocol generations onto the
// canonical registry operations. The v2-aware behavior is canonical;
// v1-only clients exercise the subset reachable without revision path
// segments. Revision segments are accepted everywhere and ignored: the
// registry exposes a single synthetic revision "0".
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/conanshim/registry/internal/logging"
	"github.com/conanshim/registry/internal/registry/auth"
	"github.com/conanshim/registry/internal/registry/blobstore"
	"github.com/conanshim/registry/internal/registry/broker"
	"github.com/conanshim/registry/internal/registry/manifest"
	"github.com/conanshim/registry/internal/registry/repositories/recipes"
)

// capabilities advertised on every response. Conan clients gate feature
// negotiation on this header.
const capabilities = "checksum_deploy,revisions"

// AuthService is what the router needs from the auth gateway.
type AuthService interface {
	Authenticate(ctx context.Context, username, password string) (string, error)
	Verify(ctx context.Context, token string) (*auth.Identity, bool)
}

// AuditRecorder is the fire-and-forget audit hook.
type AuditRecorder interface {
	Record(username, action, details string)
}

// Server routes both protocol generations onto the canonical operations.
type Server struct {
	logger        logging.Logger
	auth          AuthService
	recipes       recipes.Repository
	broker        *broker.Broker
	manifests     *manifest.Reader
	blobs         blobstore.Store
	audit         AuditRecorder
	maxProxyBytes int64
	router        chi.Router
}

func NewServer(
	logger logging.Logger,
	authSvc AuthService,
	recipeRepo recipes.Repository,
	brk *broker.Broker,
	manifests *manifest.Reader,
	blobs blobstore.Store,
	auditSink AuditRecorder,
	maxProxyBytes int64,
) *Server {
	s := &Server{
		logger:        logger,
		auth:          authSvc,
		recipes:       recipeRepo,
		broker:        brk,
		manifests:     manifests,
		blobs:         blobs,
		audit:         auditSink,
		maxProxyBytes: maxProxyBytes,
		router:        chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := s.router
	r.Use(capabilityHeader)

	// The redirect endpoint never reads the request body: identity and
	// role are checked and the 307 issued before any buffering, so large
	// PUT payloads do not stall here.
	r.Handle("/v1/files/redirect/*", http.HandlerFunc(s.handleRedirect))

	r.Get("/v1/ping", s.handlePing("1.0.0"))
	r.Get("/v2/ping", s.handlePing("2.0.0"))

	r.Get("/v1/users/authenticate", s.handleAuthenticateBasic)
	r.Post("/v1/users/authenticate", s.handleAuthenticateJSON)
	r.Handle("/v1/users/check_credentials", http.HandlerFunc(s.handleCheckCredentials))

	r.Get("/v1/conans/search", s.handleSearch)
	r.Get("/v2/conans/search", s.handleSearch)
	r.Get("/v2/conans", s.handleSearch)
	r.Get("/search", s.handleSearch)

	// Recipe and binary scope, for both generations, with and without
	// revision segments. The revision values are ignored for routing.
	for _, proto := range []string{"/v1", "/v2"} {
		for _, rev := range []string{"", "/revisions/{rrev}"} {
			base := proto + "/conans/{name}/{version}/{user}/{channel}" + rev

			r.Get(base, s.handleGetRecipe)
			r.Delete(base, s.handleDeletePackage)
			r.Get(base+"/packages", s.handleListBinaries)
			r.Get(base+"/search", s.handleListBinaries)
			r.Get(base+"/digest", s.handleRecipeDigest)
			r.Get(base+"/download_urls", s.handleRecipeDownloadURLs)
			r.Post(base+"/upload_urls", s.handleRecipeUploadURLs)
			r.Post(base+"/remove_files", s.handleRemoveFiles)
			r.Get(base+"/files", s.handleRecipeFiles)
			r.Get(base+"/files/{filename}", s.handleRecipeFileRedirect)

			if rev == "" {
				r.Get(base+"/revisions", s.handleListRevisions)
				r.Get(base+"/revisions/latest", s.handleLatestRevision)
			}

			for _, prev := range []string{"", "/revisions/{prev}"} {
				binBase := base + "/packages/{binaryID}" + prev

				r.Get(binBase, s.handleBinarySnapshot)
				r.Get(binBase+"/download_urls", s.handleBinaryDownloadURLs)
				r.Post(binBase+"/upload_urls", s.handleBinaryUploadURLs)
				r.Post(binBase+"/remove_files", s.handleRemoveBinaryFiles)
				r.Get(binBase+"/files", s.handleBinaryFiles)
				r.Get(binBase+"/files/{filename}", s.handleBinaryFileRedirect)

				if prev == "" {
					r.Get(binBase+"/revisions", s.handleListRevisions)
					r.Get(binBase+"/revisions/latest", s.handleLatestRevision)
				}
			}
		}
	}

	// Deprecated direct proxy, kept for clients that cannot follow the
	// redirect/presign flow.
	r.Get("/v1/files/*", s.handleProxyDownload)
	r.Put("/v1/files/*", s.handleProxyUpload)

	r.NotFound(s.handleUnmatched)
}

func capabilityHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Conan-Server-Capabilities", capabilities)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleUnmatched(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug(r.Context(), "unhandled route", "method", r.Method, "path", r.URL.Path)
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error":  "Route not found",
		"method": r.Method,
		"path":   r.URL.Path,
	})
}
