package media

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/maltedev/catalog-sync/internal/config"
	"github.com/maltedev/catalog-sync/internal/models"
)

// Archiver keeps a copy of a published image before its local file is deleted.
type Archiver interface {
	Archive(ctx context.Context, sku string, img *models.DownloadedImage) error
}

type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Archiver struct {
	client S3API
	bucket string
	prefix string
	logger *slog.Logger
}

// NewS3Archiver loads AWS credentials from the default chain.
func NewS3Archiver(ctx context.Context, cfg config.ArchiveConfig, logger *slog.Logger) (*S3Archiver, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}
	return NewS3ArchiverWithClient(s3.NewFromConfig(awsCfg), cfg.Bucket, cfg.Prefix, logger), nil
}

func NewS3ArchiverWithClient(client S3API, bucket, prefix string, logger *slog.Logger) *S3Archiver {
	return &S3Archiver{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger.With("component", "s3_archiver"),
	}
}

// Key is <prefix>/<sku>/<file name>.
func (a *S3Archiver) Key(sku, name string) string {
	return path.Join(a.prefix, sku, name)
}

func (a *S3Archiver) Archive(ctx context.Context, sku string, img *models.DownloadedImage) error {
	f, err := os.Open(img.Path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", img.Path, err)
	}
	defer f.Close()

	contentType := mime.TypeByExtension(filepath.Ext(img.Name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := a.Key(sku, img.Name)
	if _, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	}); err != nil {
		return fmt.Errorf("failed to upload %s to S3: %w", key, err)
	}

	a.logger.Debug("image archived", "bucket", a.bucket, "key", key)
	return nil
}
