package storage

import (
	"context"
	"time"
)

// Default expiry duration for presigned URLs
const DefaultPresignedURLExpiry = 15 * time.Minute

// MediaSigner hands out temporary read URLs for exercise media.
type MediaSigner interface {
	// PresignedDownloadURL creates a temporary URL that allows GET requests
	// for viewing an object directly from the storage provider.
	PresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error)
}
