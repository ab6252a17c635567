// Package archival is a SPEC_FULL supplement: optional off-node archival of
// checkpoint snapshots to S3-compatible object storage, independent of the
// primary/backup replication path. Grounded on pkg/blocks/store/s3's
// client construction and upload shape.
package archival

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/marmos91/ssnode/internal/logger"
)

// Config configures the S3 archival target.
type Config struct {
	Bucket         string
	Prefix         string
	Region         string
	Endpoint       string
	ForcePathStyle bool
}

// Archiver uploads a node's checkpoint file to S3 after each local save.
type Archiver struct {
	client *s3.Client
	bucket string
	prefix string
}

// New builds an Archiver from an existing S3 client.
func New(client *s3.Client, cfg Config) *Archiver {
	return &Archiver{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}
}

// NewFromConfig builds an Archiver by constructing its own S3 client from
// cfg, following the standard AWS SDK v2 default credential chain.
func NewFromConfig(ctx context.Context, cfg Config) (*Archiver, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("archival: load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)
	return New(client, cfg), nil
}

// key returns the object key a snapshot taken at savedAt is stored under,
// per the archival key scheme: {prefix}ss_{ss_id}/metadata-{timestamp}.db.
func (a *Archiver) key(ssID int32, savedAt time.Time) string {
	return fmt.Sprintf("%sss_%d/metadata-%d.db", a.prefix, ssID, savedAt.UTC().Unix())
}

// UploadCheckpoint reads the checkpoint file at path and uploads it under a
// timestamped key, preserving checkpoint history rather than overwriting the
// prior snapshot. Intended to be called from pkg/checkpoint right after a
// successful local save, with savedAt set to the time that save began.
func (a *Archiver) UploadCheckpoint(ctx context.Context, ssID int32, path string, savedAt time.Time) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("archival: open checkpoint %s: %w", path, err)
	}
	defer f.Close()

	key := a.key(ssID, savedAt)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("archival: put object %s/%s: %w", a.bucket, key, err)
	}

	logger.InfoCtx(ctx, "checkpoint archived to S3", "bucket", a.bucket, "key", key)
	return nil
}
