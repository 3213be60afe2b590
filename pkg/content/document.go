package content

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"

	"github.com/fluxo/siard-archiver/pkg/archive"
	"github.com/fluxo/siard-archiver/pkg/digest"
	"github.com/fluxo/siard-archiver/pkg/ledger"
	"github.com/fluxo/siard-archiver/pkg/logger"
	"github.com/fluxo/siard-archiver/pkg/model"
	"github.com/fluxo/siard-archiver/pkg/paths"
)

// sniffLen is how much of a document is read ahead for MIME detection
const sniffLen = 3072

// documentExtensions are the document formats the archive accepts
var documentExtensions = map[string]string{
	"image/tiff": "tif",
	"image/jp2":  "jp2",
}

// DocumentPlacement stores binary LOBs as numbered SIARD-DK documents
type DocumentPlacement struct {
	strategy archive.Strategy
	main     archive.Container
	layout   *paths.DK
	ledger   *ledger.Ledger
	index    *FileIndex
	log      *logger.Logger
}

// NewDocumentPlacement creates the SIARD-DK document placement
func NewDocumentPlacement(s archive.Strategy, main archive.Container, layout *paths.DK, l *ledger.Ledger, index *FileIndex, log *logger.Logger) *DocumentPlacement {
	if log == nil {
		log = logger.Nop()
	}
	return &DocumentPlacement{
		strategy: s,
		main:     main,
		layout:   layout,
		ledger:   l,
		index:    index,
		log:      log,
	}
}

// Write records the document in the ledger, sniffs its type and stores it.
// The ledger is rolled back when the document cannot be written.
func (p *DocumentPlacement) Write(ctx context.Context, lob *model.LargeObject) (ref Reference, err error) {
	p.ledger.RecordLOB()
	defer func() {
		if err != nil {
			p.ledger.DecrementLOBs()
		}
	}()

	src, err := lob.Open()
	if err != nil {
		return Reference{}, fmt.Errorf("failed to open document source: %w", err)
	}
	defer src.Close()

	br := bufio.NewReaderSize(src, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return Reference{}, fmt.Errorf("failed to read document: %w", err)
	}

	mime := mimetype.Detect(head)
	ext := "bin"
	for m := mime; m != nil; m = m.Parent() {
		if e, ok := documentExtensions[m.String()]; ok {
			ext = e
			break
		}
	}
	path := p.layout.BlobPath(0, 0, 0, 0) + ext
	if ext == "bin" {
		p.log.WithContext(ctx).WithComponent("document_placement").LogError("UnsupportedDocument",
			"document type is not accepted by the archive, stored as binary",
			"UNSUPPORTED_DOCUMENT", mime.String(), logger.Fields{"path": path})
	}

	_, sum, err := copyLOB(p.strategy, p.main, path, br, digest.MD5)
	if err != nil {
		return Reference{}, err
	}
	if p.index != nil {
		if err := p.index.Add(path, sum); err != nil {
			return Reference{}, err
		}
	}
	return Reference{File: path, Digest: sum, Document: p.ledger.Count()}, nil
}

// Finish is a no-op: documents live in the main container
func (p *DocumentPlacement) Finish() error {
	return nil
}
