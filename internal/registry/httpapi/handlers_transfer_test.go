package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/conanshim/registry/internal/registry/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecipeUploadURLs_PersistsFileList(t *testing.T) {
	fx := newFixture(t)

	rec := fx.do(t, "POST", "/v1/conans/zlib/1.2.11/_/_/upload_urls", "dev-token",
		`{"conanfile.py": 1024, "conanmanifest.txt": 90}`)
	require.Equal(t, http.StatusOK, rec.Code)

	urls := decodeMap(t, rec)
	require.Len(t, urls, 2)
	assert.Equal(t, "https://blob.example.com/PUT/zlib/1.2.11@_/_/conanfile.py", urls["conanfile.py"])
	assert.Equal(t, "https://blob.example.com/PUT/zlib/1.2.11@_/_/conanmanifest.txt", urls["conanmanifest.txt"])

	// The file list is visible on the recipe record afterwards.
	get := fx.do(t, "GET", "/v1/conans/zlib/1.2.11/_/_", "", "")
	require.Equal(t, http.StatusOK, get.Code)
	assert.Equal(t, []any{"conanfile.py", "conanmanifest.txt"}, decodeMap(t, get)["files"])

	require.Len(t, fx.audit.entries, 1)
	assert.Equal(t, models.AuditUploadRecipe, fx.audit.entries[0].Action)
	assert.Equal(t, "dev", fx.audit.entries[0].Username)
	assert.Equal(t, "Uploaded recipe for zlib/1.2.11@_/_", fx.audit.entries[0].Details)
}

func TestRecipeUploadURLs_FilesArrayBody(t *testing.T) {
	fx := newFixture(t)

	rec := fx.do(t, "POST", "/v1/conans/zlib/1.2.11/_/_/upload_urls", "admin-token",
		`{"files": ["conanfile.py"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeMap(t, rec), 1)
}

func TestRecipeUploadURLs_ReuploadPreservesBinaries(t *testing.T) {
	fx := newFixture(t)
	fx.seedRecipe(&models.Recipe{
		Reference: "zlib/1.2.11@_/_", Name: "zlib", Files: []string{"old.py"},
		Binaries: map[string]models.Binary{"abc": {Settings: map[string]any{"os": "Linux"}}},
	})

	rec := fx.do(t, "POST", "/v1/conans/zlib/1.2.11/_/_/upload_urls", "dev-token",
		`{"conanfile.py": 10}`)
	require.Equal(t, http.StatusOK, rec.Code)

	stored := fx.recipes.records["zlib/1.2.11@_/_"]
	assert.Equal(t, []string{"conanfile.py"}, stored.Files)
	require.Contains(t, stored.Binaries, "abc")
}

func TestBinaryUploadURLs_PersistsMetadata(t *testing.T) {
	fx := newFixture(t)

	rec := fx.do(t, "POST", "/v1/conans/zlib/1.2.11/_/_/packages/abc/upload_urls", "dev-token",
		`{"conan_package.tgz": 4096, "conaninfo.txt": 128, "settings": {"os": "Linux"}, "options": {"shared": "True"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	urls := decodeMap(t, rec)
	require.Len(t, urls, 2)
	assert.Equal(t, "https://blob.example.com/PUT/zlib/1.2.11@_/_/package/abc/conaninfo.txt", urls["conaninfo.txt"])

	stored := fx.recipes.records["zlib/1.2.11@_/_"]
	require.Contains(t, stored.Binaries, "abc")
	assert.Equal(t, map[string]any{"os": "Linux"}, stored.Binaries["abc"].Settings)
	assert.Equal(t, map[string]any{"shared": "True"}, stored.Binaries["abc"].Options)

	require.Len(t, fx.audit.entries, 1)
	assert.Equal(t, models.AuditUploadPackage, fx.audit.entries[0].Action)
	assert.Equal(t, "Uploaded binary package abc for zlib/1.2.11@_/_", fx.audit.entries[0].Details)
}

func TestBinaryUploadURLs_RepeatedUploadUnchanged(t *testing.T) {
	fx := newFixture(t)

	body := `{"conan_package.tgz": 4096, "settings": {"os": "Linux"}, "options": {"shared": "True"}}`

	rec := fx.do(t, "POST", "/v1/conans/zlib/1.2.11/_/_/packages/abc/upload_urls", "dev-token", body)
	require.Equal(t, http.StatusOK, rec.Code)
	afterFiles := fx.recipes.records["zlib/1.2.11@_/_"].Files
	afterBinary := fx.recipes.records["zlib/1.2.11@_/_"].Binaries["abc"]

	rec = fx.do(t, "POST", "/v1/conans/zlib/1.2.11/_/_/packages/abc/upload_urls", "dev-token", body)
	require.Equal(t, http.StatusOK, rec.Code)

	stored := fx.recipes.records["zlib/1.2.11@_/_"]
	assert.Equal(t, afterFiles, stored.Files)
	assert.Equal(t, afterBinary, stored.Binaries["abc"])
	assert.Len(t, stored.Binaries, 1)
}

func TestRecipeDownloadURLs(t *testing.T) {
	fx := newFixture(t)
	fx.seedRecipe(&models.Recipe{
		Reference: "zlib/1.2.11@_/_", Name: "zlib",
		Files: []string{"conanfile.py", "conanmanifest.txt"},
	})

	rec := fx.do(t, "GET", "/v1/conans/zlib/1.2.11/_/_/download_urls", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	urls := decodeMap(t, rec)
	require.Len(t, urls, 2)
	assert.Equal(t, "https://blob.example.com/GET/zlib/1.2.11@_/_/conanfile.py", urls["conanfile.py"])

	rec = fx.do(t, "GET", "/v1/conans/ghost/1.0/_/_/download_urls", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBinaryDownloadURLs_FixedTriple(t *testing.T) {
	fx := newFixture(t)

	// No metadata lookup: the fixed file set is signed unconditionally.
	rec := fx.do(t, "GET", "/v1/conans/zlib/1.2.11/_/_/packages/abc/download_urls", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	urls := decodeMap(t, rec)
	assert.Len(t, urls, 3)
	for _, f := range []string{"conan_package.tgz", "conaninfo.txt", "conanmanifest.txt"} {
		assert.Contains(t, urls, f)
	}
}

func TestSingleFileRequests_302ToSignedURL(t *testing.T) {
	fx := newFixture(t)

	rec := fx.do(t, "GET", "/v1/conans/zlib/1.2.11/_/_/files/conanfile.py", "", "")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://blob.example.com/GET/zlib/1.2.11@_/_/conanfile.py",
		rec.Header().Get("Location"))

	rec = fx.do(t, "GET", "/v1/conans/zlib/1.2.11/_/_/packages/abc/files/conaninfo.txt", "", "")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://blob.example.com/GET/zlib/1.2.11@_/_/package/abc/conaninfo.txt",
		rec.Header().Get("Location"))
}

func TestRedirect_RoleGate(t *testing.T) {
	fx := newFixture(t)

	// PUT as admin replays against a PUT-signed URL.
	rec := fx.do(t, "PUT", "/v1/files/redirect/zlib/1.2.11@_/_/conanfile.py", "admin-token", "payload")
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "https://blob.example.com/PUT/zlib/1.2.11@_/_/conanfile.py",
		rec.Header().Get("Location"))

	// GET only requires a valid identity, any role.
	rec = fx.do(t, "GET", "/v1/files/redirect/zlib/1.2.11@_/_/conanfile.py", "viewer-token", "")
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "https://blob.example.com/GET/zlib/1.2.11@_/_/conanfile.py",
		rec.Header().Get("Location"))

	rec = fx.do(t, "PUT", "/v1/files/redirect/zlib/1.2.11@_/_/conanfile.py", "viewer-token", "payload")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Forbidden: Upload access denied", decodeMap(t, rec)["error"])

	rec = fx.do(t, "PUT", "/v1/files/redirect/zlib/1.2.11@_/_/conanfile.py", "", "payload")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = fx.do(t, "POST", "/v1/files/redirect/zlib/1.2.11@_/_/conanfile.py", "admin-token", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method not allowed", decodeMap(t, rec)["error"])
}

func TestRedirect_AuthTokenQueryParam(t *testing.T) {
	fx := newFixture(t)

	rec := fx.do(t, "GET", "/v1/files/redirect/some/key?auth_token=viewer-token", "", "")
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
}

func TestUploadEndpoints_RoleMatrix(t *testing.T) {
	fx := newFixture(t)

	endpoints := []struct {
		method, path string
	}{
		{"POST", "/v1/conans/zlib/1.2.11/_/_/upload_urls"},
		{"POST", "/v1/conans/zlib/1.2.11/_/_/packages/abc/upload_urls"},
		{"POST", "/v1/conans/zlib/1.2.11/_/_/remove_files"},
		{"POST", "/v1/conans/zlib/1.2.11/_/_/packages/abc/remove_files"},
	}
	for _, ep := range endpoints {
		rec := fx.do(t, ep.method, ep.path, "viewer-token", `{}`)
		assert.Equal(t, http.StatusForbidden, rec.Code, "%s %s as viewer", ep.method, ep.path)
		assert.Equal(t, "Forbidden: Admin or Developer role required for uploads",
			decodeMap(t, rec)["error"])

		rec = fx.do(t, ep.method, ep.path, "", `{}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s without token", ep.method, ep.path)
		assert.Equal(t, "Unauthorized", decodeMap(t, rec)["error"])
	}
}

func TestRemoveFiles_AuditOnly(t *testing.T) {
	fx := newFixture(t)
	fx.seedRecipe(&models.Recipe{Reference: "zlib/1.2.11@_/_", Name: "zlib", Files: []string{"conanfile.py"}})

	rec := fx.do(t, "POST", "/v1/conans/zlib/1.2.11/_/_/remove_files", "dev-token", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"status": "ok"}, decodeMap(t, rec))

	// The record is untouched.
	assert.Equal(t, []string{"conanfile.py"}, fx.recipes.records["zlib/1.2.11@_/_"].Files)

	require.Len(t, fx.audit.entries, 1)
	assert.Equal(t, models.AuditRemoveFiles, fx.audit.entries[0].Action)

	rec = fx.do(t, "POST", "/v1/conans/zlib/1.2.11/_/_/packages/abc/remove_files", "dev-token", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, fx.audit.entries, 2)
	assert.Equal(t, models.AuditRemovePackageFiles, fx.audit.entries[1].Action)
	assert.Equal(t, "Removed binary files for zlib/1.2.11@_/_ (Package: abc)", fx.audit.entries[1].Details)
}

func TestDeletePackage_AdminOnly(t *testing.T) {
	fx := newFixture(t)
	fx.seedRecipe(&models.Recipe{Reference: "zlib/1.2.11@_/_", Name: "zlib"})

	rec := fx.do(t, "DELETE", "/v1/conans/zlib/1.2.11/_/_", "dev-token", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Forbidden: Admin required for deletion", decodeMap(t, rec)["error"])

	rec = fx.do(t, "DELETE", "/v1/conans/zlib/1.2.11/_/_", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = fx.do(t, "DELETE", "/v2/conans/zlib/1.2.11/_/_", "admin-token", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"status": "ok"}, decodeMap(t, rec))

	// Audit-only delete: metadata survives.
	require.Contains(t, fx.recipes.records, "zlib/1.2.11@_/_")
	require.Len(t, fx.audit.entries, 1)
	assert.Equal(t, models.AuditDeletePackage, fx.audit.entries[0].Action)
	assert.Equal(t, "Deleted package zlib/1.2.11@_/_", fx.audit.entries[0].Details)
}

func TestProxyDownload(t *testing.T) {
	fx := newFixture(t)
	fx.blobs.objects["zlib/1.2.11@_/_/conanfile.py"] = "from conans import ConanFile"

	rec := fx.do(t, "GET", "/v1/files/zlib/1.2.11@_/_/conanfile.py", "viewer-token", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "from conans import ConanFile", rec.Body.String())
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))

	rec = fx.do(t, "GET", "/v1/files/zlib/1.2.11@_/_/missing.txt", "viewer-token", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "File not found", decodeMap(t, rec)["error"])

	rec = fx.do(t, "GET", "/v1/files/zlib/1.2.11@_/_/conanfile.py", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProxyUpload(t *testing.T) {
	fx := newFixture(t)

	rec := fx.do(t, "PUT", "/v1/files/zlib/1.2.11@_/_/conanfile.py", "dev-token", "payload bytes")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.Equal(t, "payload bytes", fx.blobs.objects["zlib/1.2.11@_/_/conanfile.py"])

	rec = fx.do(t, "PUT", "/v1/files/zlib/1.2.11@_/_/conanfile.py", "viewer-token", "x")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestProxyUpload_SizeLimit(t *testing.T) {
	fx := newFixture(t)
	fx.server.maxProxyBytes = 8

	req := httptest.NewRequest("PUT", "/v1/files/big.bin", strings.NewReader("way past the limit"))
	req.Header.Set("Authorization", "Bearer dev-token")
	rec := httptest.NewRecorder()
	fx.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "File too large", decodeMap(t, rec)["error"])
}
