package object

import (
	"context"
	"io"
	"time"
)

// ObjectStore defines the contract for saving and retrieving document binaries.
// Blobs are namespaced by the owning company code.
type ObjectStore interface {
	Save(ctx context.Context, companyCode string, fileName string, r io.Reader) (blobPath string, sizeBytes int64, mimeType string, err error)
	Open(ctx context.Context, blobPath string) (io.ReadCloser, error)
	// SignedURL returns a time-limited read-only URL for the blob. Anyone holding
	// the URL can fetch the blob until it expires; early revocation is not possible.
	SignedURL(ctx context.Context, blobPath string, expires time.Duration) (string, error)
}
