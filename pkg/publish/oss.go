package publish

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"github.com/fluxo/siard-archiver/pkg/config"
	"github.com/fluxo/siard-archiver/pkg/logger"
)

// OSSUploader handles archive uploads to Alibaba Cloud OSS
type OSSUploader struct {
	client *oss.Client
	bucket *oss.Bucket
	config *config.OSSConfig
	prefix string
	policy RetryPolicy
	logger *logger.Logger
}

var _ Publisher = (*OSSUploader)(nil)

// NewOSSUploader creates a new OSS uploader
func NewOSSUploader(cfg *config.PublishConfig, log *logger.Logger) (*OSSUploader, error) {
	client, err := oss.New(cfg.OSS.Endpoint, cfg.OSS.AccessKeyID, cfg.OSS.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSS client: %w", err)
	}

	bucket, err := client.Bucket(cfg.OSS.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to get OSS bucket: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}

	return &OSSUploader{
		client: client,
		bucket: bucket,
		config: &cfg.OSS,
		prefix: cfg.Prefix,
		policy: policyFrom(cfg),
		logger: log,
	}, nil
}

// Publish uploads a file or folder to OSS with retries
func (u *OSSUploader) Publish(ctx context.Context, runID string, localPath string) (*Result, error) {
	startTime := time.Now()
	contextLogger := u.logger.WithContext(ctx).WithTaskID(runID).WithComponent("oss_uploader")

	files, err := collectFiles(localPath, objectPrefix(u.prefix, runID, startTime))
	if err != nil {
		return nil, err
	}

	var total int64
	for _, f := range files {
		total += f.size
	}
	rootKey := files[0].key
	if len(files) > 1 {
		rootKey = objectPrefix(u.prefix, runID, startTime)
	}

	contextLogger.LogUploadStarted(
		"Starting OSS upload",
		logger.Fields{
			"object_key": rootKey,
			"file_size":  total,
			"files":      len(files),
			"local_path": localPath,
		},
	)

	for _, f := range files {
		f := f
		err := retry(ctx, u.policy, contextLogger, func() error {
			if f.size > u.config.PartSize && u.config.PartSize > 0 {
				return u.multiPartUpload(f, contextLogger)
			}
			return u.bucket.PutObjectFromFile(f.key, f.path)
		})
		if err != nil {
			contextLogger.LogUploadFailed(
				"OSS upload failed after retries",
				"UPLOAD_ERROR",
				err.Error(),
				logger.Fields{"object_key": f.key, "attempts": u.policy.MaxRetries + 1},
			)
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
		signedURL, err := u.generateSignedURL(rootKey)
		if err != nil {
			return nil, err
		}
		result.SignedURL = signedURL
	}

	contextLogger.LogUploadCompleted(
		"OSS upload completed successfully",
		result.UploadTime.Milliseconds(),
		logger.Fields{
			"object_key": rootKey,
			"signed_url": result.SignedURL,
			"file_size":  total,
		},
	)
	return result, nil
}

// multiPartUpload uploads a file using multi-part upload
func (u *OSSUploader) multiPartUpload(f localFile, contextLogger *logger.ContextLogger) error {
	imur, err := u.bucket.InitiateMultipartUpload(f.key)
	if err != nil {
		return fmt.Errorf("failed to initiate multi-part upload: %w", err)
	}

	file, err := os.Open(f.path)
	if err != nil {
		u.bucket.AbortMultipartUpload(imur)
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	partSize := u.config.PartSize
	partCount := int(f.size / partSize)
	if f.size%partSize != 0 {
		partCount++
	}

	var parts []oss.UploadPart
	for partNum := 1; partNum <= partCount; partNum++ {
		offset := int64(partNum-1) * partSize
		size := partSize
		if offset+size > f.size {
			size = f.size - offset
		}

		part, err := u.bucket.UploadPartFromFile(imur, f.path, offset, size, partNum)
		if err != nil {
			u.bucket.AbortMultipartUpload(imur)
			return fmt.Errorf("failed to upload part %d: %w", partNum, err)
		}
		parts = append(parts, part)

		contextLogger.LogDebug(
			"OSSPartUploaded",
			fmt.Sprintf("Uploaded part %d/%d", partNum, partCount),
			logger.Fields{"part_number": partNum, "part_size": size},
		)
	}

	if _, err := u.bucket.CompleteMultipartUpload(imur, parts); err != nil {
		u.bucket.AbortMultipartUpload(imur)
		return fmt.Errorf("failed to complete multi-part upload: %w", err)
	}
	return nil
}

// generateSignedURL creates a signed URL for downloading
func (u *OSSUploader) generateSignedURL(objectKey string) (string, error) {
	expiry := int64(u.config.SignedURLExpiry.Seconds())
	signedURL, err := u.bucket.SignURL(objectKey, oss.HTTPGet, expiry)
	if err != nil {
		return "", fmt.Errorf("failed to sign URL: %w", err)
	}
	return signedURL, nil
}

// Close cleans up resources
func (u *OSSUploader) Close() error {
	return nil
}
