package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/vidfriends/uploader/internal/config"
	"github.com/vidfriends/uploader/internal/logging"
	"github.com/vidfriends/uploader/internal/models"
)

// S3Storage implements Provider backed by an S3-compatible bucket. It
// authenticates with the ambient AWS credentials rather than the caller's token.
type S3Storage struct {
	uploader   *manager.Uploader
	presigner  *s3.PresignClient
	bucket     string
	prefix     string
	baseURL    string
	presignTTL time.Duration
}

// NewS3Storage configures an uploader targeting the provided object store.
// Keys are written under cfg.Prefix when it is non-empty.
func NewS3Storage(ctx context.Context, cfg config.ObjectStoreConfig) (*S3Storage, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 storage: bucket is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = true
	})

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 16 * 1024 * 1024
		u.LeavePartsOnError = false
	})

	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}

	return &S3Storage{
		uploader:   uploader,
		presigner:  s3.NewPresignClient(client),
		bucket:     cfg.Bucket,
		prefix:     strings.Trim(cfg.Prefix, "/"),
		baseURL:    strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		presignTTL: ttl,
	}, nil
}

// Name identifies the provider in logs and the upload ledger.
func (s *S3Storage) Name() string { return "s3" }

// Create writes obj under a unique key. The returned link is public when a
// base URL is configured and presigned otherwise.
func (s *S3Storage) Create(ctx context.Context, _ string, obj Object) (file models.StoredFile, err error) {
	if err := validateObject(obj); err != nil {
		return models.StoredFile{}, err
	}

	ctx, span := logging.StartSpan(ctx, "s3.put_object")
	defer func() { span.EndWithError(err) }()

	key := s.objectKey(obj.Name)
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   obj.Body,
	}
	if obj.MediaType != "" {
		input.ContentType = aws.String(obj.MediaType)
	}
	if s.baseURL != "" {
		input.ACL = s3types.ObjectCannedACLPublicRead
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return models.StoredFile{}, fmt.Errorf("s3 storage upload %s: %w", key, err)
	}

	link, err := s.link(ctx, key)
	if err != nil {
		return models.StoredFile{}, err
	}

	return models.StoredFile{ID: key, Name: obj.Name, WebViewLink: link}, nil
}

func (s *S3Storage) objectKey(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" {
		base = "upload"
	}
	key := uuid.NewString() + "-" + base
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func (s *S3Storage) link(ctx context.Context, key string) (string, error) {
	if s.baseURL != "" {
		return fmt.Sprintf("%s/%s", s.baseURL, key), nil
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.presignTTL))
	if err != nil {
		return "", fmt.Errorf("s3 storage presign %s: %w", key, err)
	}
	return req.URL, nil
}
