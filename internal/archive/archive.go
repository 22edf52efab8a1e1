// Package archive keeps a copy of every recognised upload in an
// S3-compatible bucket (Cloudflare R2 in production).
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/4ier/logodeth/internal/validate"
)

// KeyPrefix is the object key prefix for archived logos.
const KeyPrefix = "logos/"

// Archive errors
var (
	ErrInvalidHash = errors.New("invalid image hash")
	ErrEmptyObject = errors.New("empty object")
)

// Config holds the bucket location and credentials.
type Config struct {
	BucketName      string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	URLExpiry       time.Duration // Default: 15 minutes
}

// SignedURL is a time-limited download link for an archived object.
type SignedURL struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store writes uploads to the bucket.
type Store struct {
	s3Client      *s3.Client
	presignClient *s3.PresignClient
	bucketName    string
	urlExpiry     time.Duration
	timeNow       func() time.Time
}

// NewStore creates a Store. Every field except URLExpiry is required.
func NewStore(cfg Config) (*Store, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("bucket name is required")
	}
	if cfg.AccessKeyID == "" {
		return nil, errors.New("access key ID is required")
	}
	if cfg.SecretAccessKey == "" {
		return nil, errors.New("secret access key is required")
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if cfg.URLExpiry <= 0 {
		cfg.URLExpiry = 15 * time.Minute
	}

	s3Client := s3.New(s3.Options{
		Region: "auto", // R2 uses auto region
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		BaseEndpoint: aws.String(cfg.Endpoint),
		UsePathStyle: true, // R2 requires path-style addressing
	})

	return &Store{
		s3Client:      s3Client,
		presignClient: s3.NewPresignClient(s3Client),
		bucketName:    cfg.BucketName,
		urlExpiry:     cfg.URLExpiry,
		timeNow:       time.Now,
	}, nil
}

// ObjectKey returns logos/<hash><ext> for an image hash and content type.
func ObjectKey(hash, contentType string) (string, error) {
	clean := sanitizePathComponent(hash)
	if clean == "" || clean != hash {
		return "", ErrInvalidHash
	}
	return KeyPrefix + clean + validate.ExtensionFor(contentType), nil
}

// sanitizePathComponent keeps only alphanumerics, hyphens and underscores.
func sanitizePathComponent(s string) string {
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// Put uploads data under the key derived from hash and returns that key.
// Uploads are content-addressed, so writing the same image twice is harmless.
func (s *Store) Put(ctx context.Context, hash, contentType string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyObject
	}
	key, err := ObjectKey(hash, contentType)
	if err != nil {
		return "", err
	}

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return key, nil
}

// PresignGet generates a pre-signed GET URL for an archived object.
func (s *Store) PresignGet(ctx context.Context, key string) (*SignedURL, error) {
	if !strings.HasPrefix(key, KeyPrefix) {
		return nil, fmt.Errorf("%w: key %q outside %s", ErrInvalidHash, key, KeyPrefix)
	}

	req, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.urlExpiry
	})
	if err != nil {
		return nil, fmt.Errorf("failed to presign request: %w", err)
	}

	return &SignedURL{
		URL:       req.URL,
		Key:       key,
		ExpiresAt: s.timeNow().Add(s.urlExpiry),
	}, nil
}

// HealthCheck verifies the bucket is reachable with the configured credentials.
func (s *Store) HealthCheck(ctx context.Context) error {
	_, err := s.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucketName),
	})
	return err
}

// BucketName returns the bucket the store writes to.
func (s *Store) BucketName() string {
	return s.bucketName
}
