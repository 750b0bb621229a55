package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/saturnines/commerce-export/pkg/config"
	"github.com/saturnines/commerce-export/pkg/errors"
)

// PutObjectAPI is the part of the S3 client the uploader needs
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader copies finished artifacts to a bucket under a key prefix.
type Uploader struct {
	client PutObjectAPI
	bucket string
	prefix string
	log    zerolog.Logger
}

func NewUploader(client PutObjectAPI, bucket, prefix string, log zerolog.Logger) *Uploader {
	return &Uploader{client: client, bucket: bucket, prefix: prefix, log: log}
}

// NewS3Uploader builds an uploader from cfg. Without static keys the default
// AWS credential chain is used; an endpoint selects an S3-compatible store.
func NewS3Uploader(ctx context.Context, cfg *config.S3, log zerolog.Logger) (*Uploader, error) {
	if cfg == nil || cfg.Bucket == "" {
		return nil, errors.Config("s3 bucket is required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrConfiguration, "failed to create AWS config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewUploader(client, cfg.Bucket, cfg.Prefix, log), nil
}

// Key returns the object key for a local artifact
func (u *Uploader) Key(file string) string {
	return path.Join(u.prefix, filepath.Base(file))
}

// Upload puts every file and returns the object keys in order.
func (u *Uploader) Upload(ctx context.Context, files ...string) ([]string, error) {
	keys := make([]string, 0, len(files))
	for _, file := range files {
		key := u.Key(file)
		if err := u.put(ctx, file, key); err != nil {
			return keys, err
		}
		u.log.Info().Str("bucket", u.bucket).Str("key", key).Msg("artifact uploaded")
		keys = append(keys, key)
	}
	return keys, nil
}

func (u *Uploader) put(ctx context.Context, file, key string) error {
	f, err := os.Open(file)
	if err != nil {
		return errors.WrapError(err, errors.ErrExport, "failed to open "+file)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return errors.WrapError(err, errors.ErrExport, "failed to stat "+file)
	}

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType(file)),
	})
	if err != nil {
		return errors.WrapError(err, errors.ErrExport, fmt.Sprintf("failed to upload %s to s3://%s/%s", file, u.bucket, key))
	}
	return nil
}

func contentType(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".csv":
		return "text/csv"
	case ".xml":
		return "application/xml"
	default:
		return "application/octet-stream"
	}
}
