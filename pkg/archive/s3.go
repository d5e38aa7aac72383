package archive

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/angles-client-go/pkg/config"
)

const writeTestKey = ".angles-write-test"

// s3Sink implements Sink for S3-compatible storage.
type s3Sink struct {
	log    logrus.FieldLogger
	cfg    *config.S3ArchiveConfig
	client *s3.Client
}

// Ensure interface compliance.
var _ Sink = (*s3Sink)(nil)

// NewS3Sink creates a new S3 sink from the given configuration.
func NewS3Sink(
	log logrus.FieldLogger,
	cfg *config.S3ArchiveConfig,
) Sink {
	return &s3Sink{
		log:    log.WithField("component", "s3-sink"),
		cfg:    cfg,
		client: newS3Client(cfg),
	}
}

func newS3Client(cfg *config.S3ArchiveConfig) *s3.Client {
	return s3.New(s3.Options{}, func(o *s3.Options) {
		if cfg.Region != "" {
			o.Region = cfg.Region
		} else {
			o.Region = "us-east-1"
		}

		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
		}

		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}

		if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
			o.Credentials = credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID, cfg.SecretAccessKey, "",
			)
		}
	})
}

// Preflight verifies S3 connectivity by writing a small test object.
func (s *s3Sink) Preflight(ctx context.Context) error {
	content := fmt.Sprintf("angles write test: %s", time.Now().UTC().Format(time.RFC3339))

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(writeTestKey),
		Body:        strings.NewReader(content),
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		return fmt.Errorf("writing test object to s3://%s: %w", s.cfg.Bucket, err)
	}

	return nil
}

func (s *s3Sink) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = detectContentType(key)
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}

	if s.cfg.StorageClass != "" {
		input.StorageClass = s3types.StorageClass(s.cfg.StorageClass)
	}

	if s.cfg.ACL != "" {
		input.ACL = s3types.ObjectCannedACL(s.cfg.ACL)
	}

	s.log.WithFields(logrus.Fields{
		"key":    key,
		"bucket": s.cfg.Bucket,
	}).Debug("Uploading object")

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("putting object %q: %w", key, err)
	}

	return nil
}

func (s *s3Sink) Location(key string) string {
	return "s3://" + s.cfg.Bucket + "/" + key
}
