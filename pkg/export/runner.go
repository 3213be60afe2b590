package export

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fluxo/siard-archiver/pkg/config"
	"github.com/fluxo/siard-archiver/pkg/content"
	"github.com/fluxo/siard-archiver/pkg/logger"
	"github.com/fluxo/siard-archiver/pkg/model"
	"github.com/fluxo/siard-archiver/pkg/publish"
	"github.com/fluxo/siard-archiver/pkg/report"
	"github.com/fluxo/siard-archiver/pkg/source"
	"github.com/fluxo/siard-archiver/pkg/storage"
)

// RunStatus represents the current state of a run
type RunStatus int

const (
	StatusPending RunStatus = iota
	StatusWriting
	StatusReporting
	StatusPublishing
	StatusCompleted
	StatusFailed
)

// String returns the string representation of the status
func (s RunStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusWriting:
		return "writing"
	case StatusReporting:
		return "reporting"
	case StatusPublishing:
		return "publishing"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Run is one export of a dataset into an archive
type Run struct {
	ID             string
	Profile        string
	Output         string
	Status         RunStatus
	Tables         []content.TableStats
	Outputs        []string
	Reports        []*report.FileMetadata
	Published      []*publish.Result
	ErrorCode      string
	ErrorMessage   string
	StartTime      time.Time
	CompletionTime time.Time
	mu             sync.RWMutex
}

func (r *Run) setStatus(s RunStatus) {
	r.mu.Lock()
	r.Status = s
	r.mu.Unlock()
}

// CurrentStatus returns the status of the run
func (r *Run) CurrentStatus() RunStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Status
}

// Runner drives exports end to end: write, promote, report, publish
type Runner struct {
	config    *config.Config
	logger    *logger.Logger
	storage   *storage.Manager
	publisher publish.Publisher
}

// NewRunner creates a new runner. publisher may be nil.
func NewRunner(cfg *config.Config, log *logger.Logger, storageMgr *storage.Manager, publisher publish.Publisher) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{
		config:    cfg,
		logger:    log,
		storage:   storageMgr,
		publisher: publisher,
	}
}

// Run exports the dataset. The returned Run is filled in even when an
// error is returned.
func (r *Runner) Run(ctx context.Context, ds *source.Dataset) (*Run, error) {
	run := &Run{
		ID:        uuid.New().String(),
		Profile:   r.config.Export.Profile,
		Output:    r.config.Export.Output,
		Status:    StatusPending,
		StartTime: time.Now(),
	}
	ctx = logger.ContextWithTaskID(ctx, run.ID)
	contextLogger := r.logger.WithContext(ctx).WithComponent("export_runner")

	contextLogger.LogExportStarted("Export started", logger.Fields{
		"profile":  run.Profile,
		"output":   run.Output,
		"database": ds.Database.Name,
	})

	if err := r.storage.CheckDiskSpace(); err != nil {
		return run, r.failRun(ctx, run, "STORAGE_ERROR", err, false)
	}
	stage, err := r.storage.CreateRunDirectory(ctx, run.ID)
	if err != nil {
		return run, r.failRun(ctx, run, "STORAGE_ERROR", err, false)
	}

	mainPath := filepath.Join(stage, filepath.Base(r.config.Export.Output))
	w, err := NewWriter(r.config, mainPath, r.logger)
	if err != nil {
		return run, r.failRun(ctx, run, content.Code(err), err, true)
	}

	run.setStatus(StatusWriting)
	if err := r.write(ctx, w, ds); err != nil {
		if abortErr := w.Abort(ctx); abortErr != nil {
			contextLogger.LogWarn("AbortError", "Failed to release archive", logger.Fields{"error": abortErr.Error()})
		}
		return run, r.failRun(ctx, run, errorCode(err), err, true)
	}
	if err := w.Finish(ctx); err != nil {
		return run, r.failRun(ctx, run, content.Code(err), err, true)
	}
	run.Tables = w.Stats()

	outputs, err := r.storage.Promote(ctx, run.ID, filepath.Dir(r.config.Export.Output))
	run.Outputs = outputs
	if err != nil {
		return run, r.failRun(ctx, run, "STORAGE_ERROR", err, true)
	}

	if r.config.Report.Enabled {
		run.setStatus(StatusReporting)
		if err := r.writeReports(ctx, run); err != nil {
			return run, r.failRun(ctx, run, "REPORT_ERROR", err, false)
		}
	}

	if r.publisher != nil {
		run.setStatus(StatusPublishing)
		for _, out := range run.Outputs {
			result, err := r.publisher.Publish(ctx, run.ID, out)
			if err != nil {
				return run, r.failRun(ctx, run, "UPLOAD_ERROR", err, false)
			}
			run.Published = append(run.Published, result)
		}
	}

	run.mu.Lock()
	run.Status = StatusCompleted
	run.CompletionTime = time.Now()
	run.mu.Unlock()

	var rows int64
	for _, t := range run.Tables {
		rows += t.Rows
	}
	contextLogger.LogExportCompleted("Export completed successfully", time.Since(run.StartTime).Milliseconds(), logger.Fields{
		"tables":  len(run.Tables),
		"rows":    rows,
		"outputs": run.Outputs,
	})
	return run, nil
}

func (r *Runner) write(ctx context.Context, w *content.Writer, ds *source.Dataset) error {
	for _, schema := range ds.Database.Schemas {
		if err := w.OpenSchema(ctx, schema); err != nil {
			return err
		}
		for _, table := range schema.Tables {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := w.OpenTable(ctx, table); err != nil {
				return err
			}
			err := ds.Rows(ctx, table, func(row model.Row) error {
				return w.TableRow(ctx, row)
			})
			var cerr *content.Error
			if err != nil && !errors.As(err, &cerr) && ctx.Err() == nil {
				return &sourceError{table: table.Name, err: err}
			}
			if err != nil {
				return err
			}
			if err := w.CloseTable(ctx); err != nil {
				return err
			}
		}
		if err := w.CloseSchema(ctx); err != nil {
			return err
		}
	}
	return nil
}

// sourceError marks a failure reading the dataset rather than writing
// the archive
type sourceError struct {
	table string
	err   error
}

func (e *sourceError) Error() string {
	return fmt.Sprintf("failed to read table %s: %v", e.table, e.err)
}

func (e *sourceError) Unwrap() error {
	return e.err
}

func errorCode(err error) string {
	var serr *sourceError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "CANCELLED"
	case errors.As(err, &serr):
		return "SOURCE_ERROR"
	}
	return content.Code(err)
}

func (r *Runner) writeReports(ctx context.Context, run *Run) error {
	dir := r.config.Report.Directory
	if dir == "" {
		dir = filepath.Dir(r.config.Export.Output)
	}
	metadata := &report.Metadata{
		RunID:   run.ID,
		Profile: run.Profile,
		Archive: run.Output,
	}
	for _, format := range r.config.Report.Formats {
		meta, err := report.Write(ctx, format, dir, metadata, run.Tables)
		if err != nil {
			return fmt.Errorf("failed to write %s report: %w", format, err)
		}
		run.Reports = append(run.Reports, meta)
	}
	return nil
}

// failRun marks a run as failed and discards its staged outputs when
// they were never promoted
func (r *Runner) failRun(ctx context.Context, run *Run, errorCode string, err error, discard bool) error {
	run.mu.Lock()
	run.Status = StatusFailed
	run.ErrorCode = errorCode
	run.ErrorMessage = err.Error()
	run.CompletionTime = time.Now()
	run.mu.Unlock()

	contextLogger := r.logger.WithContext(ctx).WithComponent("export_runner")
	contextLogger.LogExportFailed("Export failed", errorCode, err.Error(), logger.Fields{"output": run.Output})

	if discard {
		if derr := r.storage.Discard(ctx, run.ID); derr != nil {
			contextLogger.LogWarn("RunCleanupError", "Failed to discard run directory", logger.Fields{"error": derr.Error()})
		}
	}
	return err
}
