package storage

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type minioProber struct {
	client *minio.Client
	bucket string
}

func newMinio(conf S3Conf) (*minioProber, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	client, err := minio.New(conf.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(conf.AccessKey, conf.SecretKey, ""),
		Secure: conf.UseTLS,
		Region: conf.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &minioProber{client: client, bucket: conf.Bucket}, nil
}

func (m *minioProber) Provider() string { return StorageMinio }

func (m *minioProber) Location() string { return m.bucket }

func (m *minioProber) Probe(ctx context.Context) error {
	ok, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("bucket %s: %w", m.bucket, err)
	}
	if !ok {
		return fmt.Errorf("bucket %s does not exist", m.bucket)
	}
	return nil
}
