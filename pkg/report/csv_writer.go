package report

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"os"
)

// CSVWriter implements Writer interface for CSV format
type CSVWriter struct {
	file       *os.File
	writer     *csv.Writer
	buffered   *bufio.Writer
	outputPath string
	rowCount   int64
	delimiter  rune
}

// NewCSVWriter creates a new CSV writer
func NewCSVWriter() *CSVWriter {
	return &CSVWriter{delimiter: ','}
}

// Initialize prepares the CSV writer with configuration
func (w *CSVWriter) Initialize(ctx context.Context, metadata *Metadata, outputPath string) error {
	w.outputPath = outputPath

	if metadata != nil && metadata.Options.CSVDelimiter != "" {
		runes := []rune(metadata.Options.CSVDelimiter)
		w.delimiter = runes[0]
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	w.file = file

	w.buffered = bufio.NewWriterSize(file, 64*1024) // 64KB buffer
	w.writer = csv.NewWriter(w.buffered)
	w.writer.Comma = w.delimiter

	return nil
}

// WriteHeader writes the column headers
func (w *CSVWriter) WriteHeader(columns []string) error {
	if w.writer == nil {
		return fmt.Errorf("writer not initialized")
	}
	if err := w.writer.Write(columns); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	w.rowCount++
	return nil
}

// WriteRecords appends data records
func (w *CSVWriter) WriteRecords(records []Record) error {
	if w.writer == nil {
		return fmt.Errorf("writer not initialized")
	}

	for _, record := range records {
		if err := w.writer.Write(record.Values); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
		w.rowCount++
	}

	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		return fmt.Errorf("failed to flush writer: %w", err)
	}
	return nil
}

// Finalize closes the file and returns metadata
func (w *CSVWriter) Finalize() (*FileMetadata, error) {
	if w.writer == nil {
		return nil, fmt.Errorf("writer not initialized")
	}

	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV writer: %w", err)
	}
	if err := w.buffered.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush buffer: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	w.file = nil

	meta, err := describe(w.outputPath, w.rowCount)
	if err != nil {
		return nil, fmt.Errorf("failed to describe report: %w", err)
	}
	return meta, nil
}

// Cleanup releases resources on error
func (w *CSVWriter) Cleanup() error {
	if w.file != nil {
		w.file.Close()
	}
	if w.outputPath != "" {
		os.Remove(w.outputPath)
	}
	return nil
}
