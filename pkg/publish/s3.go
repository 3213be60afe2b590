package publish

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/fluxo/siard-archiver/pkg/config"
	"github.com/fluxo/siard-archiver/pkg/logger"
)

// S3Uploader uploads archives to S3 or an S3 compatible store.
// Credentials are read from the environment.
type S3Uploader struct {
	uploader *s3manager.Uploader
	bucket   string
	prefix   string
	policy   RetryPolicy
	logger   *logger.Logger
}

var _ Publisher = (*S3Uploader)(nil)

// NewS3Uploader creates a new S3 uploader
func NewS3Uploader(cfg *config.PublishConfig, log *logger.Logger) (*S3Uploader, error) {
	s3Config := &aws.Config{
		Region:      aws.String(cfg.S3.Region),
		Credentials: credentials.NewEnvCredentials(),
	}
	if cfg.S3.Endpoint != "" {
		s3Config.Endpoint = aws.String(cfg.S3.Endpoint)
		s3Config.S3ForcePathStyle = aws.Bool(true)
	}

	s3Session, err := session.NewSession(s3Config)
	if err != nil {
		return nil, fmt.Errorf("error making new session: %w", err)
	}

	uploader := s3manager.NewUploader(s3Session, func(u *s3manager.Uploader) {
		if cfg.S3.PartSize >= s3manager.MinUploadPartSize {
			u.PartSize = cfg.S3.PartSize
		}
	})
	if log == nil {
		log = logger.Nop()
	}

	return &S3Uploader{
		uploader: uploader,
		bucket:   cfg.S3.Bucket,
		prefix:   cfg.Prefix,
		policy:   policyFrom(cfg),
		logger:   log,
	}, nil
}

// Publish uploads a file or folder to S3 with retries
func (u *S3Uploader) Publish(ctx context.Context, runID string, localPath string) (*Result, error) {
	startTime := time.Now()
	contextLogger := u.logger.WithContext(ctx).WithTaskID(runID).WithComponent("s3_uploader")

	prefix := objectPrefix(u.prefix, runID, startTime)
	files, err := collectFiles(localPath, prefix)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, f := range files {
		total += f.size
	}
	rootKey := files[0].key
	if len(files) > 1 {
		rootKey = prefix
	}

	contextLogger.LogUploadStarted("Starting S3 upload", logger.Fields{
		"bucket":     u.bucket,
		"object_key": rootKey,
		"file_size":  total,
		"files":      len(files),
	})

	var location string
	for _, f := range files {
		f := f
		err := retry(ctx, u.policy, contextLogger, func() error {
			body, err := os.Open(f.path)
			if err != nil {
				return fmt.Errorf("failed to open file: %w", err)
			}
			defer body.Close()

			out, err := u.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
				Bucket: aws.String(u.bucket),
				Key:    aws.String(f.key),
				Body:   body,
			})
			if err != nil {
				return fmt.Errorf("error uploading to s3: %w", err)
			}
			location = out.Location
			return nil
		})
		if err != nil {
			contextLogger.LogUploadFailed("S3 upload failed after retries", "UPLOAD_ERROR", err.Error(),
				logger.Fields{"object_key": f.key, "attempts": u.policy.MaxRetries + 1})
			return nil, fmt.Errorf("failed to upload %s: %w", f.key, err)
		}
	}

	result := &Result{
		ObjectKey:  rootKey,
		Size:       total,
		Files:      len(files),
		UploadTime: time.Since(startTime),
	}
	if len(files) == 1 {
		result.SignedURL = location
	}

	contextLogger.LogUploadCompleted("S3 upload completed successfully", result.UploadTime.Milliseconds(),
		logger.Fields{"object_key": rootKey, "file_size": total})
	return result, nil
}

// Close cleans up resources
func (u *S3Uploader) Close() error {
	return nil
}
