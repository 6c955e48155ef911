// Package broker computes deterministic blob keys and issues signed,
// time-limited transfer URLs. File bytes never pass through the registry
// on this path; clients talk to the blob store directly.
package broker

import (
	"context"
	"fmt"
	"net/http"

	"github.com/conanshim/registry/internal/common"
	"github.com/conanshim/registry/internal/registry/blobstore"
	"github.com/conanshim/registry/internal/registry/ref"
)

// BinaryFiles is the fixed file set assumed for binary download URLs.
var BinaryFiles = []string{"conan_package.tgz", "conaninfo.txt", "conanmanifest.txt"}

type Broker struct {
	blobs blobstore.Store
}

func New(blobs blobstore.Store) *Broker {
	return &Broker{blobs: blobs}
}

// RecipeUploadURLs issues one signed PUT URL per recipe file.
func (b *Broker) RecipeUploadURLs(ctx context.Context, rf ref.Ref, files []string) (map[string]string, error) {
	urls := make(map[string]string, len(files))
	for _, f := range files {
		u, err := b.blobs.PresignPut(ctx, rf.RecipeKey(f))
		if err != nil {
			return nil, fmt.Errorf("upload url for %q: %w", f, err)
		}
		urls[f] = u
	}
	return urls, nil
}

// RecipeDownloadURLs issues one signed GET URL per recipe file.
func (b *Broker) RecipeDownloadURLs(ctx context.Context, rf ref.Ref, files []string) (map[string]string, error) {
	urls := make(map[string]string, len(files))
	for _, f := range files {
		u, err := b.blobs.PresignGet(ctx, rf.RecipeKey(f))
		if err != nil {
			return nil, fmt.Errorf("download url for %q: %w", f, err)
		}
		urls[f] = u
	}
	return urls, nil
}

// BinaryUploadURLs issues one signed PUT URL per binary file.
func (b *Broker) BinaryUploadURLs(ctx context.Context, rf ref.Ref, binaryID string, files []string) (map[string]string, error) {
	urls := make(map[string]string, len(files))
	for _, f := range files {
		u, err := b.blobs.PresignPut(ctx, rf.BinaryKey(binaryID, f))
		if err != nil {
			return nil, fmt.Errorf("upload url for %q: %w", f, err)
		}
		urls[f] = u
	}
	return urls, nil
}

// BinaryDownloadURLs issues one signed GET URL per binary file.
func (b *Broker) BinaryDownloadURLs(ctx context.Context, rf ref.Ref, binaryID string, files []string) (map[string]string, error) {
	urls := make(map[string]string, len(files))
	for _, f := range files {
		u, err := b.blobs.PresignGet(ctx, rf.BinaryKey(binaryID, f))
		if err != nil {
			return nil, fmt.Errorf("download url for %q: %w", f, err)
		}
		urls[f] = u
	}
	return urls, nil
}

// RecipeFileURL issues a signed GET URL for a single recipe file.
func (b *Broker) RecipeFileURL(ctx context.Context, rf ref.Ref, filename string) (string, error) {
	return b.blobs.PresignGet(ctx, rf.RecipeKey(filename))
}

// BinaryFileURL issues a signed GET URL for a single binary file.
func (b *Broker) BinaryFileURL(ctx context.Context, rf ref.Ref, binaryID, filename string) (string, error) {
	return b.blobs.PresignGet(ctx, rf.BinaryKey(binaryID, filename))
}

// RedirectURL picks upload vs download signing from the inbound method:
// PUT gets a signed upload URL, GET and HEAD a signed download URL. Any
// other method is common.ErrMethodNotAllowed.
func (b *Broker) RedirectURL(ctx context.Context, method, key string) (string, error) {
	switch method {
	case http.MethodPut:
		return b.blobs.PresignPut(ctx, key)
	case http.MethodGet, http.MethodHead:
		return b.blobs.PresignGet(ctx, key)
	default:
		return "", common.ErrMethodNotAllowed
	}
}
