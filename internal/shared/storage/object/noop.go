package object

import (
	"context"
	"fmt"
	"io"
	"time"
)

// NoopStore records synthetic blob paths without storing bytes. It exists so the
// API stays usable in development with no blob storage configured; never a
// production choice.
type NoopStore struct{}

// Save drains the reader and fabricates a blob path.
func (NoopStore) Save(ctx context.Context, companyCode string, fileName string, r io.Reader) (string, int64, string, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, "", err
	}
	n, err := io.Copy(io.Discard, r)
	if err != nil {
		return "", 0, "", err
	}
	blobPath := fmt.Sprintf("%s/dev-%d-%s", companyCode, time.Now().UnixMilli(), fileName)
	return blobPath, n, "application/octet-stream", nil
}

// Open always fails; nothing was stored.
func (NoopStore) Open(ctx context.Context, blobPath string) (io.ReadCloser, error) {
	return nil, fmt.Errorf("blob storage not configured")
}

// SignedURL returns a placeholder reference.
func (NoopStore) SignedURL(ctx context.Context, blobPath string, expires time.Duration) (string, error) {
	return "#dev-placeholder-" + blobPath, nil
}

var _ ObjectStore = NoopStore{}
