package storage

import (
	"context"
	"fmt"
	"log"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"hometour/portal/internal/config"
)

// IS3Storage defines the interface for S3 operations: uploading signed
// agreement documents and fetching them back, plus keys for cached listing
// thumbnails.
type IS3Storage interface {
	GenerateAgreementUploadURL(ctx context.Context, showingID, filename, contentType string) (url string, objectKey string, err error)
	GenerateDownloadURL(ctx context.Context, objectKey string) (string, error)
	PropertyImageKey(propertyID, sourceURL string) string
	Client() *s3.Client
}

// s3Storage implements IS3Storage.
type s3Storage struct {
	cfg           *config.Config
	s3Client      *s3.Client
	presignClient *s3.PresignClient
}

// NewS3Storage creates a new S3 storage service.
func NewS3Storage(cfg *config.Config) (IS3Storage, error) {
	awsCfg, err := aws_config.LoadDefaultConfig(context.TODO(),
		aws_config.WithRegion(cfg.AwsRegion),
		aws_config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AwsAccessKeyID,
			cfg.AwsSecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg)
	return &s3Storage{
		cfg:           cfg,
		s3Client:      s3Client,
		presignClient: s3.NewPresignClient(s3Client),
	}, nil
}

// Client exposes the underlying S3 client for the photo-cache task.
func (s *s3Storage) Client() *s3.Client {
	return s.s3Client
}

// sanitizeFilename keeps the base name and strips anything that could smuggle
// path segments into the object key.
func sanitizeFilename(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		}
		return '_'
	}, base)
}

// GenerateAgreementUploadURL creates a pre-signed URL for uploading a signed
// agreement document. Returns the URL and the generated object key.
func (s *s3Storage) GenerateAgreementUploadURL(ctx context.Context, showingID, filename, contentType string) (string, string, error) {
	objectKey := fmt.Sprintf("agreements/%s/%s_%s", showingID, uuid.NewString(), sanitizeFilename(filename))
	expiration := 15 * time.Minute

	presignedReq, err := s.presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.AwsS3Bucket),
		Key:         aws.String(objectKey),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(expiration))
	if err != nil {
		return "", "", fmt.Errorf("failed to generate presigned PUT URL for key %s: %w", objectKey, err)
	}

	log.Printf("Generated agreement upload URL for key: %s", objectKey)
	return presignedReq.URL, objectKey, nil
}

// GenerateDownloadURL creates a short-lived pre-signed GET URL for an object.
func (s *s3Storage) GenerateDownloadURL(ctx context.Context, objectKey string) (string, error) {
	presignedReq, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.AwsS3Bucket),
		Key:    aws.String(objectKey),
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned GET URL for key %s: %w", objectKey, err)
	}
	return presignedReq.URL, nil
}

// PropertyImageKey derives a stable object key for a cached listing thumbnail
// so re-processing the same source URL overwrites rather than accumulates.
func (s *s3Storage) PropertyImageKey(propertyID, sourceURL string) string {
	name := sanitizeFilename(path.Base(sourceURL))
	if name == "" || name == "." {
		name = "image.jpg"
	}
	return fmt.Sprintf("properties/%s/%s", propertyID, name)
}
