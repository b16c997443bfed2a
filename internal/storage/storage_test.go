package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjelicb/kinetix-backend-sub000/internal/config"
)

func TestWeighInPhotoKey(t *testing.T) {
	key, err := WeighInPhotoKey("abc123", "image/JPEG")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "weigh-ins/abc123/"))
	assert.True(t, strings.HasSuffix(key, ".jpg"))

	_, err = WeighInPhotoKey("abc123", "application/pdf")
	assert.Error(t, err)
}

func TestS3Storage_PresignUpload(t *testing.T) {
	s, err := NewS3Storage(context.Background(), config.S3Config{
		Endpoint:        "http://localhost:9000",
		Region:          "us-east-1",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
		BucketName:      "kinetix",
	})
	require.NoError(t, err)

	// Presigning is a local signature computation; no server is contacted.
	url, err := s.GeneratePresignedUploadURL(context.Background(), "weigh-ins/c/x.jpg", "image/jpeg", 0)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://localhost:9000/kinetix/weigh-ins/c/x.jpg?"))
	assert.Contains(t, url, "X-Amz-Signature=")
}

func TestDisabledStorage(t *testing.T) {
	_, err := NewDisabledStorage().GeneratePresignedUploadURL(context.Background(), "k", "image/png", 0)
	assert.ErrorIs(t, err, ErrStorageDisabled)
}
