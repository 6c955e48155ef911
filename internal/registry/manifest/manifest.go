// Package manifest synthesizes file snapshots from conanmanifest.txt
// blobs. A snapshot maps filename to content hash; entries the server
// cannot verify get the placeholder hash "0", which satisfies client
// existence checks without a content-integrity claim.
package manifest

import (
	"context"
	"io"
	"strings"

	"github.com/conanshim/registry/internal/logging"
	"github.com/conanshim/registry/internal/registry/blobstore"
	"github.com/conanshim/registry/internal/registry/ref"
)

const (
	manifestFile = "conanmanifest.txt"
	packageFile  = "conan_package.tgz"
	infoFile     = "conaninfo.txt"
	recipeFile   = "conanfile.py"
)

// Placeholder hash for entries that exist but cannot cheaply be verified.
const placeholderHash = "0"

// Reader derives snapshots from manifest blobs. It never fails: when the
// manifest cannot be fetched or parsed it falls back to a fixed file set.
type Reader struct {
	blobs  blobstore.Store
	logger logging.Logger
}

func NewReader(blobs blobstore.Store, logger logging.Logger) *Reader {
	return &Reader{blobs: blobs, logger: logger}
}

// RecipeSnapshot returns the filename-to-hash map for a recipe's files.
func (r *Reader) RecipeSnapshot(ctx context.Context, rf ref.Ref) map[string]string {
	snapshot, ok := r.fetch(ctx, rf.RecipeKey(manifestFile))
	if !ok {
		return map[string]string{
			recipeFile:   placeholderHash,
			manifestFile: placeholderHash,
		}
	}
	ensure(snapshot, manifestFile)
	return snapshot
}

// BinarySnapshot returns the filename-to-hash map for a binary package's
// files. The conan_package.tgz entry is always present so client
// existence checks succeed even before the archive hash is known.
func (r *Reader) BinarySnapshot(ctx context.Context, rf ref.Ref, binaryID string) map[string]string {
	snapshot, ok := r.fetch(ctx, rf.BinaryKey(binaryID, manifestFile))
	if !ok {
		return map[string]string{
			packageFile:  placeholderHash,
			infoFile:     placeholderHash,
			manifestFile: placeholderHash,
		}
	}
	ensure(snapshot, manifestFile)
	ensure(snapshot, packageFile)
	return snapshot
}

func (r *Reader) fetch(ctx context.Context, key string) (map[string]string, bool) {
	body, _, err := r.blobs.Get(ctx, key)
	if err != nil {
		r.logger.Debug(ctx, "manifest unavailable, using fallback snapshot", "key", key, "error", err)
		return nil, false
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		r.logger.Warn(ctx, "manifest read failed, using fallback snapshot", "key", key, "error", err)
		return nil, false
	}

	return parse(string(raw)), true
}

// parse decodes the manifest format: the first line is a timestamp header,
// each following line is "filename: hash". Malformed lines are skipped.
func parse(content string) map[string]string {
	snapshot := map[string]string{}
	lines := strings.Split(strings.TrimSpace(content), "\n")
	for i := 1; i < len(lines); i++ {
		name, hash, ok := strings.Cut(lines[i], ": ")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		hash = strings.TrimSpace(hash)
		if name == "" || hash == "" {
			continue
		}
		snapshot[name] = hash
	}
	return snapshot
}

// ensure adds a placeholder entry if the file is not already described.
// The manifest never lists itself.
func ensure(snapshot map[string]string, filename string) {
	if _, ok := snapshot[filename]; !ok {
		snapshot[filename] = placeholderHash
	}
}
