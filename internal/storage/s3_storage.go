package storage

import (
	"bytes"
	"context"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

const defaultRegion = "us-east-1"

// S3Storage mirrors artifacts into a bucket, below an optional key prefix.
type S3Storage struct {
	client *s3.Client
	bucket string
	prefix string
}

type S3Options struct {
	Bucket   string
	Prefix   string
	Endpoint string
	Region   string
	User     string
	Password string
}

func NewS3Storage(ctx context.Context, opts S3Options) (*S3Storage, error) {
	region := opts.Region
	if region == "" {
		region = defaultRegion
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if opts.User != "" {
		creds := credentials.NewStaticCredentialsProvider(opts.User, opts.Password, "")
		loadOpts = append(loadOpts, config.WithCredentialsProvider(creds))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint) // e.g. "http://localhost:9000"
			o.UsePathStyle = true                      // Required for MinIO
		}
	})

	return &S3Storage{
		client: client,
		bucket: opts.Bucket,
		prefix: strings.Trim(opts.Prefix, "/"),
	}, nil
}

func (s *S3Storage) Save(ctx context.Context, key string, data []byte) error {
	key = s.objectKey(key)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType(key)),
	})
	if err == nil {
		log.Debug().Str("bucket", s.bucket).Str("key", key).Msg("Uploaded to S3")
	}
	return err
}

func (s *S3Storage) Load(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()

	return io.ReadAll(out.Body)
}

func (s *S3Storage) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func contentType(key string) string {
	switch path.Ext(key) {
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".js":
		return "text/javascript; charset=utf-8"
	case ".html":
		return "text/html; charset=utf-8"
	}
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
