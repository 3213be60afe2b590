package report

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// numericColumns are stored as numbers so the sheet can sum them
var numericColumns = map[string]bool{
	"rows":        true,
	"lobs":        true,
	"lob_bytes":   true,
	"duration_ms": true,
}

// ExcelWriter implements Writer interface for Excel format
type ExcelWriter struct {
	file         *excelize.File
	outputPath   string
	sheetName    string
	currentRow   int
	rowCount     int64
	numeric      []bool
	streamWriter *excelize.StreamWriter
}

// NewExcelWriter creates a new Excel writer
func NewExcelWriter() *ExcelWriter {
	return &ExcelWriter{
		sheetName:  "Tables",
		currentRow: 1,
	}
}

// Initialize prepares the Excel writer with configuration
func (w *ExcelWriter) Initialize(ctx context.Context, metadata *Metadata, outputPath string) error {
	w.outputPath = outputPath

	if metadata != nil && metadata.Options.SheetName != "" {
		w.sheetName = metadata.Options.SheetName
	}

	w.file = excelize.NewFile()

	index, err := w.file.NewSheet(w.sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	w.file.SetActiveSheet(index)

	if w.sheetName != "Sheet1" {
		// Sheet1 is created by NewFile and may already be gone
		_ = w.file.DeleteSheet("Sheet1")
	}

	streamWriter, err := w.file.NewStreamWriter(w.sheetName)
	if err != nil {
		return fmt.Errorf("failed to create stream writer: %w", err)
	}
	w.streamWriter = streamWriter

	return nil
}

// WriteHeader writes the column headers
func (w *ExcelWriter) WriteHeader(columns []string) error {
	if w.streamWriter == nil {
		return fmt.Errorf("writer not initialized")
	}

	headers := make([]interface{}, len(columns))
	w.numeric = make([]bool, len(columns))
	for i, col := range columns {
		headers[i] = col
		w.numeric[i] = numericColumns[col]
	}

	cell, err := excelize.CoordinatesToCellName(1, w.currentRow)
	if err != nil {
		return fmt.Errorf("failed to get cell coordinate: %w", err)
	}
	if err := w.streamWriter.SetRow(cell, headers); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}

	w.currentRow++
	w.rowCount++
	return nil
}

// WriteRecords appends data records
func (w *ExcelWriter) WriteRecords(records []Record) error {
	if w.streamWriter == nil {
		return fmt.Errorf("writer not initialized")
	}

	for _, record := range records {
		values := make([]interface{}, len(record.Values))
		for i, val := range record.Values {
			values[i] = val
			if i < len(w.numeric) && w.numeric[i] {
				if n, err := strconv.ParseInt(val, 10, 64); err == nil {
					values[i] = n
				}
			}
		}

		cell, err := excelize.CoordinatesToCellName(1, w.currentRow)
		if err != nil {
			return fmt.Errorf("failed to get cell coordinate: %w", err)
		}
		if err := w.streamWriter.SetRow(cell, values); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}

		w.currentRow++
		w.rowCount++
	}

	return nil
}

// Finalize closes the file and returns metadata
func (w *ExcelWriter) Finalize() (*FileMetadata, error) {
	if w.streamWriter == nil {
		return nil, fmt.Errorf("writer not initialized")
	}

	if err := w.streamWriter.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush stream: %w", err)
	}
	if err := w.file.SaveAs(w.outputPath); err != nil {
		return nil, fmt.Errorf("failed to save Excel file: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close Excel file: %w", err)
	}
	w.file = nil

	meta, err := describe(w.outputPath, w.rowCount)
	if err != nil {
		return nil, fmt.Errorf("failed to describe report: %w", err)
	}
	return meta, nil
}

// Cleanup releases resources on error
func (w *ExcelWriter) Cleanup() error {
	if w.file != nil {
		w.file.Close()
	}
	if w.outputPath != "" {
		os.Remove(w.outputPath)
	}
	return nil
}
