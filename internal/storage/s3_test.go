package storage

import (
	"context"
	"fittrainer/backend/internal/config"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresignedDownloadURL(t *testing.T) {
	signer, err := NewS3Storage(context.Background(), config.S3Config{
		Endpoint:        "http://localhost:9000",
		Region:          "us-east-1",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio-secret",
		BucketName:      "media",
	})
	require.NoError(t, err)

	url, err := signer.PresignedDownloadURL(context.Background(), "exercises/bench.mp4", time.Minute)
	require.NoError(t, err)

	assert.Contains(t, url, "http://localhost:9000/media/exercises/bench.mp4")
	assert.Contains(t, url, "X-Amz-Signature=")
	assert.Contains(t, url, "X-Amz-Expires=60")
	assert.NotContains(t, url, "minio-secret")
}
