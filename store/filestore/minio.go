package filestore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioBlob keeps the document as a single object in a MinIO bucket.
type MinioBlob struct {
	client *minio.Client
	bucket string
	object string
}

// NewMinioBlob connects and creates the bucket if it does not exist.
func NewMinioBlob(ctx context.Context, endpoint, accessKey, secretKey, bucket, object string, useSSL bool) (*MinioBlob, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("minio make bucket: %w", err)
		}
	}

	return &MinioBlob{client: client, bucket: bucket, object: object}, nil
}

func (m *MinioBlob) Read(ctx context.Context) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, m.object, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio get: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, nil
		}
		return nil, fmt.Errorf("minio read: %w", err)
	}
	return data, nil
}

func (m *MinioBlob) Write(ctx context.Context, data []byte) error {
	_, err := m.client.PutObject(ctx, m.bucket, m.object, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("minio put: %w", err)
	}
	return nil
}
