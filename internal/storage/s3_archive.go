package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3Archive uploads rotated activation-log snapshots to S3, for fleets
// that centralize diagnostics instead of (or alongside) querying each
// reader's local ParamStore. Adapted from the teacher's AWSS3Node upload
// path; the list/download/copy/presign operations that node also offered
// have no role here and are dropped.
type S3Archive struct {
	client *s3.S3
	bucket string
	prefix string
}

// S3ArchiveConfig configures the S3 archive uploader.
type S3ArchiveConfig struct {
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
}

// NewS3Archive creates an S3Archive and verifies the target bucket is
// reachable.
func NewS3Archive(config S3ArchiveConfig) (*S3Archive, error) {
	if config.Region == "" {
		config.Region = "us-east-1"
	}
	if config.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	sess, err := session.NewSession(&aws.Config{
		Region:      aws.String(config.Region),
		Credentials: credentials.NewStaticCredentials(config.AccessKey, config.SecretKey, ""),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	client := s3.New(sess)

	if _, err := client.HeadBucket(&s3.HeadBucketInput{Bucket: aws.String(config.Bucket)}); err != nil {
		return nil, fmt.Errorf("failed to access bucket: %w", err)
	}

	return &S3Archive{client: client, bucket: config.Bucket, prefix: config.Prefix}, nil
}

// UploadActivationLog archives a batch of activation records as a single
// JSON-lines object, keyed by the upload timestamp.
func (a *S3Archive) UploadActivationLog(ctx context.Context, records []ActivationRecord) (string, error) {
	var buf bytes.Buffer
	for _, r := range records {
		line, err := json.Marshal(r)
		if err != nil {
			return "", fmt.Errorf("failed to marshal activation record: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	key := fmt.Sprintf("activation-log-%s.jsonl", time.Now().UTC().Format("20060102T150405Z"))
	if a.prefix != "" {
		key = a.prefix + "/" + key
	}

	_, err := a.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          aws.ReadSeekCloser(bytes.NewReader(buf.Bytes())),
		ContentLength: aws.Int64(int64(buf.Len())),
		ContentType:   aws.String("application/x-ndjson"),
		ACL:           aws.String("private"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload activation log archive: %w", err)
	}
	return key, nil
}
