package publish

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/UltimateTournament/backoff/v4"

	"github.com/fluxo/siard-archiver/pkg/config"
	"github.com/fluxo/siard-archiver/pkg/logger"
)

// Result contains the result of publishing one archive output
type Result struct {
	ObjectKey  string
	SignedURL  string
	Size       int64
	Files      int
	UploadTime time.Duration
}

// Publisher uploads finished archive outputs. A folder is uploaded file
// by file under a common key prefix.
type Publisher interface {
	Publish(ctx context.Context, runID string, localPath string) (*Result, error)
	Close() error
}

// New returns the publisher selected by the configuration, or nil when
// publishing is disabled
func New(cfg *config.PublishConfig, log *logger.Logger) (Publisher, error) {
	switch cfg.Target {
	case config.PublishNone, "":
		return nil, nil
	case config.PublishOSS:
		return NewOSSUploader(cfg, log)
	case config.PublishS3:
		return NewS3Uploader(cfg, log)
	default:
		return nil, fmt.Errorf("unsupported publish target: %s", cfg.Target)
	}
}

// RetryPolicy bounds the retries of one upload
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxElapsedTime  time.Duration
}

func policyFrom(cfg *config.PublishConfig) RetryPolicy {
	return RetryPolicy{
		MaxRetries:      cfg.MaxRetries,
		InitialInterval: cfg.InitialInterval,
		MaxElapsedTime:  cfg.MaxElapsedTime,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	b.MaxElapsedTime = p.MaxElapsedTime
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.MaxRetries)), ctx)
}

// retry runs op until it succeeds, fails permanently or the policy gives up
func retry(ctx context.Context, p RetryPolicy, cl *logger.ContextLogger, op func() error) error {
	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		return op()
	}, p.backOff(ctx), func(err error, wait time.Duration) {
		cl.LogWarn(
			"UploadRetry",
			fmt.Sprintf("Retrying upload (attempt %d/%d)", attempt+1, p.MaxRetries+1),
			logger.Fields{"wait_time": wait.String(), "reason": err.Error()},
		)
	})
}

type localFile struct {
	path string
	key  string
	size int64
}

// collectFiles lists the files to upload for localPath. A single file
// maps to prefix/name; a directory maps each file to prefix/dir/relative.
func collectFiles(localPath string, prefix string) ([]localFile, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to stat file: %w", err))
	}
	base := filepath.Base(localPath)
	if !info.IsDir() {
		return []localFile{{path: localPath, key: path.Join(prefix, base), size: info.Size()}}, nil
	}

	var files []localFile
	err = filepath.WalkDir(localPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(localPath, p)
		if err != nil {
			return err
		}
		files = append(files, localFile{
			path: p,
			key:  path.Join(prefix, base, filepath.ToSlash(rel)),
			size: fi.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", localPath, err)
	}
	if len(files) == 0 {
		return nil, backoff.Permanent(fmt.Errorf("nothing to publish in %s", localPath))
	}
	return files, nil
}

// objectPrefix creates the key prefix of a run
func objectPrefix(prefix string, runID string, now time.Time) string {
	datePrefix := now.Format("2006/01/02")
	return path.Join(prefix, datePrefix, runID)
}
