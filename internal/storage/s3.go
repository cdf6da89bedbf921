package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3 stores report archives in a bucket.
type S3 struct {
	Client *s3.Client
	Bucket string
	Prefix string
}

// S3Config configures the archive bucket.
type S3Config struct {
	Region   string
	Bucket   string
	Prefix   string
	Endpoint string // Optional, for S3-compatible stores
}

// NewS3 creates an S3 store from the default AWS credential chain.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3{
		Client: client,
		Bucket: cfg.Bucket,
		Prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Upload writes body under name and returns the object location.
func (s *S3) Upload(ctx context.Context, name string, body []byte, contentType string) (string, error) {
	key := name
	if s.Prefix != "" {
		key = s.Prefix + "/" + name
	}

	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("s3://%s/%s", s.Bucket, key), nil
}

func (s *S3) String() string { return fmt.Sprintf("s3(%s/%s)", s.Bucket, s.Prefix) }
