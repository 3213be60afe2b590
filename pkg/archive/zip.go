package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// Compression selects how ZIP entries are stored
type Compression string

const (
	CompressionDeflate Compression = "deflate"
	CompressionStore   Compression = "store"
)

type zipArchive struct {
	file   *os.File
	zw     *zip.Writer
	active *zipEntry
}

// ZipStrategy writes containers as ZIP files, one entry at a time
type ZipStrategy struct {
	method uint16
	level  int
	now    func() time.Time

	mu       sync.Mutex
	archives map[string]*zipArchive
}

// NewZipStrategy creates a ZIP strategy. level only applies to deflate.
func NewZipStrategy(compression Compression, level int) (*ZipStrategy, error) {
	var method uint16
	switch compression {
	case CompressionDeflate, "":
		method = zip.Deflate
	case CompressionStore:
		method = zip.Store
	default:
		return nil, fmt.Errorf("unsupported zip compression: %s", compression)
	}
	if level < flate.HuffmanOnly || level > flate.BestCompression {
		return nil, fmt.Errorf("invalid deflate level: %d", level)
	}
	return &ZipStrategy{
		method:   method,
		level:    level,
		now:      time.Now,
		archives: make(map[string]*zipArchive),
	}, nil
}

// SupportsConcurrentStreams is false: a ZIP is written sequentially
func (s *ZipStrategy) SupportsConcurrentStreams() bool {
	return false
}

// Setup creates the ZIP file
func (s *ZipStrategy) Setup(c Container) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.archives[c.Root]; exists {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.Root), 0755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}
	f, err := os.Create(c.Root)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	zw := zip.NewWriter(f)
	level := s.level
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})
	s.archives[c.Root] = &zipArchive{file: f, zw: zw}
	return nil
}

// CreateOutputStream adds an entry to the archive
func (s *ZipStrategy) CreateOutputStream(c Container, path string) (io.WriteCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.archives[c.Root]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotSetUp, c.Root)
	}
	if a.active != nil {
		return nil, fmt.Errorf("%w: %s", ErrStreamBusy, a.active.name)
	}
	w, err := a.zw.CreateHeader(&zip.FileHeader{
		Name:     filepath.ToSlash(path),
		Method:   s.method,
		Modified: s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create zip entry %s: %w", path, err)
	}
	entry := &zipEntry{Writer: w, name: path, owner: s, archive: a}
	a.active = entry
	return entry, nil
}

// Finish writes the central directory and closes the file
func (s *ZipStrategy) Finish(c Container) error {
	s.mu.Lock()
	a, ok := s.archives[c.Root]
	delete(s.archives, c.Root)
	s.mu.Unlock()

	if !ok {
		return nil
	}
	return errors.Join(a.zw.Close(), a.file.Close())
}

type zipEntry struct {
	io.Writer
	name    string
	owner   *ZipStrategy
	archive *zipArchive
	closed  bool
}

// Close releases the archive for the next entry. Entry data is flushed
// by the zip writer when the next header is created.
func (e *zipEntry) Close() error {
	e.owner.mu.Lock()
	defer e.owner.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	if e.archive.active == e {
		e.archive.active = nil
	}
	return nil
}
