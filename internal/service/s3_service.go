package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	cfg "github.com/GTDGit/passport_api/internal/config"
)

// objectPutter is the part of the S3 client used for archiving.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Service archives uploaded passports to S3
type S3Service struct {
	client objectPutter
	bucket string
	prefix string
}

// NewS3Service creates a new S3 service. Credentials come from the default AWS chain.
func NewS3Service(ctx context.Context, s3Cfg *cfg.S3Config) (*S3Service, error) {
	if s3Cfg == nil || s3Cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is not configured")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(s3Cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if s3Cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(s3Cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Service(client, s3Cfg.Bucket, s3Cfg.Prefix), nil
}

func newS3Service(client objectPutter, bucket, prefix string) *S3Service {
	return &S3Service{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// ObjectKey returns the archive key for a document fingerprint.
func (s *S3Service) ObjectKey(fingerprint string) string {
	if s.prefix == "" {
		return fingerprint + ".pdf"
	}
	return fmt.Sprintf("%s/%s.pdf", s.prefix, fingerprint)
}

// Archive uploads the original PDF under its fingerprint.
func (s *S3Service) Archive(ctx context.Context, fingerprint string, data []byte) error {
	key := s.ObjectKey(fingerprint)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String("application/pdf"),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}
	log.Info().Str("key", key).Msg("Successfully uploaded to S3")
	return nil
}
