package report

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/fluxo/siard-archiver/pkg/content"
)

// Supported report formats
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// FileMetadata contains metadata about the generated file
type FileMetadata struct {
	Path     string
	Size     int64
	Checksum string
	RowCount int64
}

// Metadata describes the export run a report belongs to
type Metadata struct {
	RunID   string
	Profile string
	Archive string
	Options Options
}

// Options tune the output of a format
type Options struct {
	CSVDelimiter string
	SheetName    string
}

// Record is one line of the report
type Record struct {
	Values []string
}

// Writer defines the interface that all format writers must implement
type Writer interface {
	// Initialize prepares the writer with configuration
	Initialize(ctx context.Context, metadata *Metadata, outputPath string) error

	// WriteHeader writes the column headers
	WriteHeader(columns []string) error

	// WriteRecords appends data records
	WriteRecords(records []Record) error

	// Finalize closes the file and returns metadata
	Finalize() (*FileMetadata, error)

	// Cleanup releases resources on error
	Cleanup() error
}

// NewWriter returns the writer for a format
func NewWriter(format string) (Writer, error) {
	switch format {
	case FormatCSV:
		return NewCSVWriter(), nil
	case FormatXLSX:
		return NewExcelWriter(), nil
	default:
		return nil, fmt.Errorf("unsupported report format: %s", format)
	}
}

// Columns of the per-table report
var Columns = []string{"run_id", "profile", "schema", "table", "path", "rows", "lobs", "lob_bytes", "duration_ms"}

// Records turns table statistics into report records
func Records(metadata *Metadata, stats []content.TableStats) []Record {
	records := make([]Record, 0, len(stats))
	for _, s := range stats {
		records = append(records, Record{Values: []string{
			metadata.RunID,
			metadata.Profile,
			s.Schema,
			s.Table,
			s.Path,
			strconv.FormatInt(s.Rows, 10),
			strconv.Itoa(s.LOBs),
			strconv.FormatInt(s.LOBBytes, 10),
			strconv.FormatInt(s.Duration.Milliseconds(), 10),
		}})
	}
	return records
}

// Write renders a report of stats in format into dir. The file is named
// after the archive.
func Write(ctx context.Context, format string, dir string, metadata *Metadata, stats []content.TableStats) (*FileMetadata, error) {
	w, err := NewWriter(format)
	if err != nil {
		return nil, err
	}

	base := filepath.Base(metadata.Archive)
	outputPath := filepath.Join(dir, fmt.Sprintf("%s.report.%s", base, format))

	if err := w.Initialize(ctx, metadata, outputPath); err != nil {
		w.Cleanup()
		return nil, err
	}
	if err := w.WriteHeader(Columns); err != nil {
		w.Cleanup()
		return nil, err
	}
	if err := w.WriteRecords(Records(metadata, stats)); err != nil {
		w.Cleanup()
		return nil, err
	}
	meta, err := w.Finalize()
	if err != nil {
		w.Cleanup()
		return nil, err
	}
	return meta, nil
}
