package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const defaultRegion = "us-east-1"

type s3Prober struct {
	client *s3.Client
	bucket string
}

func newS3(conf S3Conf) (*s3Prober, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	region := conf.Region
	if region == "" {
		region = defaultRegion
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if conf.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.StaticCredentialsProvider{
			Value: aws.Credentials{AccessKeyID: conf.AccessKey, SecretAccessKey: conf.SecretKey},
		}))
	}
	cfg, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load s3 config: %w", err)
	}
	endpoint := conf.Endpoint
	if !strings.Contains(endpoint, "://") {
		scheme := "http://"
		if conf.UseTLS {
			scheme = "https://"
		}
		endpoint = scheme + endpoint
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
	return &s3Prober{client: client, bucket: conf.Bucket}, nil
}

func (p *s3Prober) Provider() string { return StorageS3 }

func (p *s3Prober) Location() string { return p.bucket }

func (p *s3Prober) Probe(ctx context.Context) error {
	if _, err := p.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(p.bucket)}); err != nil {
		return fmt.Errorf("bucket %s: %w", p.bucket, err)
	}
	return nil
}
