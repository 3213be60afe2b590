package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fluxo/siard-archiver/pkg/archive"
	"github.com/fluxo/siard-archiver/pkg/digest"
	"github.com/fluxo/siard-archiver/pkg/ledger"
	"github.com/fluxo/siard-archiver/pkg/logger"
	"github.com/fluxo/siard-archiver/pkg/model"
	"github.com/fluxo/siard-archiver/pkg/paths"
	"github.com/fluxo/siard-archiver/pkg/typemap"
)

type state int

const (
	stateIdle state = iota
	stateSchemaOpen
	stateTableOpen
	stateFailed
	stateFinished
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateSchemaOpen:
		return "schema open"
	case stateTableOpen:
		return "table open"
	case stateFailed:
		return "failed"
	case stateFinished:
		return "finished"
	}
	return "unknown"
}

// Options wires a Writer to its collaborators
type Options struct {
	Profile  Profile
	Strategy archive.Strategy
	Paths    paths.Strategy
	Main     archive.Container
	// Placement defaults to a DirectPlacement into Main, or to a
	// DocumentPlacement for profiles storing documents
	Placement Placement
	// Digest is used for messageDigest when the profile writes digests;
	// defaults to MD5
	Digest digest.Algorithm
	// Ledger and Index are required by profiles storing documents
	Ledger *ledger.Ledger
	Index  *FileIndex
	Logger *logger.Logger
}

// TableStats summarizes one exported table
type TableStats struct {
	Schema   string
	Table    string
	Path     string
	Rows     int64
	LOBs     int
	LOBBytes int64
	Duration time.Duration
}

// Writer serializes tables into the archive, one table at a time
type Writer struct {
	profile    Profile
	strategy   archive.Strategy
	paths      paths.Strategy
	main       archive.Container
	placement  Placement
	deferrable Deferrable
	concurrent bool
	ledger     *ledger.Ledger
	index      *FileIndex
	log        *logger.Logger
	enc        cellEncoder

	state     state
	mainReady bool
	dkTables  int

	schema   *model.Schema
	table    *model.Table
	schemaNo int
	tableNo  int
	columns  []columnInfo
	content  io.WriteCloser
	out      *xmlWriter
	rowIndex int64
	pending  []*model.LargeObject
	current  TableStats
	started  time.Time

	stats []TableStats
}

// NewWriter validates the wiring and returns an idle Writer. No I/O
// happens before OpenSchema.
func NewWriter(opts Options) (*Writer, error) {
	if opts.Profile.Mapper == nil || opts.Strategy == nil || opts.Paths == nil {
		return nil, &Error{Kind: KindInvalidState, Err: errors.New("profile, strategy and paths are required")}
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	alg := opts.Digest
	if alg == "" {
		alg = digest.MD5
	}
	if !opts.Profile.Digests {
		alg = ""
	}

	concurrent := opts.Strategy.SupportsConcurrentStreams()

	placement := opts.Placement
	if opts.Profile.Documents {
		if opts.Ledger == nil || opts.Index == nil {
			return nil, &Error{Kind: KindInvalidState, Err: errors.New("document profiles need a ledger and a file index")}
		}
		if !concurrent {
			return nil, &Error{Kind: KindUnsupportedFeature, Err: errors.New("document profiles need a strategy with concurrent streams")}
		}
		layout, ok := opts.Paths.(*paths.DK)
		if placement == nil {
			if !ok {
				return nil, &Error{Kind: KindInvalidState, Err: errors.New("document profiles need the SIARD-DK layout")}
			}
			placement = NewDocumentPlacement(opts.Strategy, opts.Main, layout, opts.Ledger, opts.Index, log)
		}
	}
	if placement == nil {
		placement = NewDirectPlacement(opts.Strategy, opts.Main, alg)
	}

	w := &Writer{
		profile:    opts.Profile,
		strategy:   opts.Strategy,
		paths:      opts.Paths,
		main:       opts.Main,
		placement:  placement,
		concurrent: concurrent,
		ledger:     opts.Ledger,
		index:      opts.Index,
		log:        log,
	}
	if !concurrent {
		d, ok := placement.(Deferrable)
		if !ok {
			return nil, &Error{Kind: KindUnsupportedFeature, Err: fmt.Errorf("placement %T cannot defer LOBs on a sequential strategy", placement)}
		}
		w.deferrable = d
	}
	w.enc = cellEncoder{w: w}
	return w, nil
}

func (w *Writer) logger(ctx context.Context) *logger.ContextLogger {
	return w.log.WithContext(ctx).WithComponent("content_writer")
}

func (w *Writer) tableID() string {
	if w.table == nil {
		return ""
	}
	return w.table.ID(w.schema)
}

func (w *Writer) expect(s state, op string) error {
	if w.state != s {
		return &Error{Kind: KindInvalidState, Table: w.tableID(),
			Err: fmt.Errorf("%s while %s", op, w.state)}
	}
	return nil
}

// fail moves the writer to the failed state and releases the open
// content stream. The table document is left unfinished.
func (w *Writer) fail(err *Error) error {
	if w.content != nil {
		_ = w.content.Close()
		w.content = nil
	}
	w.out = nil
	w.pending = nil
	w.state = stateFailed
	return err
}

func (w *Writer) ioFailure(err error) error {
	return w.fail(&Error{Kind: KindIOFailure, Table: w.tableID(), Err: err})
}

// OpenSchema starts a schema. The main container is set up on first use.
func (w *Writer) OpenSchema(ctx context.Context, schema *model.Schema) error {
	if err := w.expect(stateIdle, "open schema"); err != nil {
		return err
	}
	if !w.mainReady {
		if err := w.strategy.Setup(w.main); err != nil {
			return w.ioFailure(err)
		}
		w.mainReady = true
	}
	w.schema = schema
	w.schemaNo = schema.Index
	w.state = stateSchemaOpen
	w.logger(ctx).LogDebug("SchemaOpened", "schema opened", logger.Fields{"schema": schema.Name})
	return nil
}

// CloseSchema ends the current schema
func (w *Writer) CloseSchema(ctx context.Context) error {
	if err := w.expect(stateSchemaOpen, "close schema"); err != nil {
		return err
	}
	w.logger(ctx).LogDebug("SchemaClosed", "schema closed", logger.Fields{"schema": w.schema.Name})
	w.schema = nil
	w.state = stateIdle
	return nil
}

func (w *Writer) mapColumns(table *model.Table) ([]columnInfo, []string, error) {
	columns := make([]columnInfo, 0, len(table.Columns))
	var downgraded []string
	for i, col := range table.Columns {
		res, err := w.profile.Mapper.Map(col.Type)
		if err != nil {
			return nil, nil, err
		}
		if res.Downgraded {
			downgraded = append(downgraded, col.Name)
		}
		info := columnInfo{
			index:    i + 1,
			name:     col.Name,
			sqlType:  col.Type,
			token:    res.Token,
			nullable: col.Nullable,
		}
		if w.profile.Documents {
			if kind, ok := typemap.LOBKind(col.Type); ok {
				info.lobKind = kind
			}
		}
		columns = append(columns, info)
	}
	return columns, downgraded, nil
}

// OpenTable maps the columns and starts the table document. Profiles
// writing the schema first register LOB columns in the ledger and write
// the schema document here.
func (w *Writer) OpenTable(ctx context.Context, table *model.Table) error {
	if err := w.expect(stateSchemaOpen, "open table"); err != nil {
		return err
	}
	w.table = table

	columns, downgraded, err := w.mapColumns(table)
	if err != nil {
		return w.fail(&Error{Kind: KindUnsupportedType, Table: w.tableID(), Err: err})
	}
	cl := w.logger(ctx)
	if len(downgraded) > 0 {
		cl.LogWarn("TypeDowngraded", "unknown column types stored as text", logger.Fields{
			"table":   w.tableID(),
			"columns": downgraded,
		})
	}

	w.tableNo = table.Index
	if w.profile.Documents {
		w.dkTables++
		w.tableNo = w.dkTables
		for _, c := range columns {
			if c.lobKind != "" {
				w.ledger.RecordLocationAndType(w.tableNo, c.index, c.lobKind)
			}
		}
	}
	w.columns = columns
	w.rowIndex = 0
	w.pending = nil
	w.started = time.Now()
	w.current = TableStats{
		Table: table.Name,
		Path:  w.paths.TableXMLPath(w.schemaNo, w.tableNo),
	}
	if w.schema != nil {
		w.current.Schema = w.schema.Name
	}

	if w.profile.SchemaAtOpen {
		if err := w.writeSchemaDocument(); err != nil {
			return w.ioFailure(err)
		}
	}

	stream, err := w.openMain(w.current.Path)
	if err != nil {
		return w.ioFailure(err)
	}
	w.content = stream
	w.out = newXMLWriter(stream)

	ns := w.paths.TableNamespace(w.profile.NamespaceBase, w.schemaNo, w.tableNo)
	w.out.str(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	w.out.printf("<table xsi:schemaLocation=\"%s %s\" xmlns=\"%s\" xmlns:xsi=\"%s\">\n",
		attrEscaper.Replace(ns), w.paths.TableXSDFileName(w.tableNo), attrEscaper.Replace(ns), xsiNamespace)
	if w.out.err != nil {
		return w.ioFailure(w.out.err)
	}

	w.state = stateTableOpen
	cl.LogTableOpened("table opened", logger.Fields{
		"table":   w.tableID(),
		"path":    w.current.Path,
		"columns": len(columns),
	})
	return nil
}

// openMain opens a stream in the main container, hashed when the archive
// keeps a file index
func (w *Writer) openMain(path string) (io.WriteCloser, error) {
	stream, err := w.strategy.CreateOutputStream(w.main, path)
	if err != nil {
		return nil, err
	}
	if w.index != nil {
		return &indexedStream{Writer: digest.NewWriter(stream, digest.MD5), path: path, index: w.index}, nil
	}
	return stream, nil
}

// indexedStream adds the file to the index once it is closed
type indexedStream struct {
	*digest.Writer
	path  string
	index *FileIndex
}

func (s *indexedStream) Close() error {
	if err := s.Writer.Close(); err != nil {
		return err
	}
	return s.index.Add(s.path, s.Writer.String())
}

func (w *Writer) writeSchemaDocument() error {
	stream, err := w.openMain(w.paths.TableXSDPath(w.schemaNo, w.tableNo))
	if err != nil {
		return err
	}
	ns := w.paths.TableNamespace(w.profile.NamespaceBase, w.schemaNo, w.tableNo)
	err = writeSchema(stream, w.profile, ns, w.columns)
	if cerr := stream.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	return err
}

// TableRow writes one row. The number of cells must match the table.
func (w *Writer) TableRow(ctx context.Context, row model.Row) error {
	if err := w.expect(stateTableOpen, "write row"); err != nil {
		return err
	}
	if len(row.Cells) != len(w.columns) {
		return w.fail(&Error{Kind: KindArityMismatch, Table: w.tableID(),
			Err: fmt.Errorf("row %d has %d cells, table has %d columns", w.rowIndex+1, len(row.Cells), len(w.columns))})
	}

	w.out.str("\t<row>\n")
	for i, cell := range row.Cells {
		if err := w.enc.encode(ctx, w.out, cell, w.columns[i], w.rowIndex); err != nil {
			return err
		}
	}
	w.out.str("\t</row>\n")
	if w.out.err != nil {
		return w.ioFailure(w.out.err)
	}
	w.rowIndex++
	return nil
}

// place hands a LOB to the placement, or queues it when the strategy
// cannot write it next to the open content stream
func (w *Writer) place(ctx context.Context, lob *model.LargeObject) (Reference, error) {
	w.current.LOBs++
	w.current.LOBBytes += lob.Length

	if !w.concurrent {
		w.pending = append(w.pending, lob)
		return w.deferrable.Resolve(lob), nil
	}

	ref, err := w.placement.Write(ctx, lob)
	if err != nil {
		return Reference{}, w.fail(&Error{Kind: KindIOFailure, Table: w.tableID(), LOB: lob.Path, Err: err})
	}
	if !w.profile.Digests {
		ref.Digest = ""
	}
	w.logger(ctx).LogLOBWritten("lob written", logger.Fields{
		"table":  w.tableID(),
		"file":   ref.File,
		"length": lob.Length,
	})
	return ref, nil
}

// CloseTable finishes the table document, writes deferred LOBs in the
// order they were met and then the schema document
func (w *Writer) CloseTable(ctx context.Context) error {
	if err := w.expect(stateTableOpen, "close table"); err != nil {
		return err
	}

	w.out.str("</table>\n")
	err := w.out.flush()
	cerr := w.content.Close()
	w.content = nil
	if err != nil || cerr != nil {
		return w.ioFailure(errors.Join(err, cerr))
	}

	pending := w.pending
	w.pending = nil
	for _, lob := range pending {
		if _, err := w.placement.Write(ctx, lob); err != nil {
			return w.fail(&Error{Kind: KindIOFailure, Table: w.tableID(), LOB: lob.Path, Err: err})
		}
	}

	if !w.profile.SchemaAtOpen {
		if err := w.writeSchemaDocument(); err != nil {
			return w.ioFailure(err)
		}
	}

	w.current.Rows = w.rowIndex
	w.current.Duration = time.Since(w.started)
	w.stats = append(w.stats, w.current)
	w.logger(ctx).LogTableClosed("table closed", w.current.Duration.Milliseconds(), logger.Fields{
		"table":     w.tableID(),
		"rows":      w.current.Rows,
		"lobs":      w.current.LOBs,
		"lob_bytes": w.current.LOBBytes,
	})

	w.table = nil
	w.columns = nil
	w.out = nil
	w.state = stateSchemaOpen
	return nil
}

// Finish closes the placement and the main container. After a failure it
// only releases what is still open and reports nothing new.
func (w *Writer) Finish(ctx context.Context) error {
	switch w.state {
	case stateFinished:
		return &Error{Kind: KindInvalidState, Err: errors.New("writer already finished")}
	case stateFailed:
		w.state = stateFinished
		err := w.placement.Finish()
		if w.mainReady {
			err = errors.Join(err, w.strategy.Finish(w.main))
		}
		return err
	}
	if err := w.expect(stateIdle, "finish"); err != nil {
		return err
	}

	if err := w.placement.Finish(); err != nil {
		if w.mainReady {
			err = errors.Join(err, w.strategy.Finish(w.main))
		}
		return w.finishFailure(err)
	}
	if !w.mainReady {
		if err := w.strategy.Setup(w.main); err != nil {
			return w.finishFailure(err)
		}
		w.mainReady = true
	}
	if w.index != nil {
		if err := w.writeFileIndex(); err != nil {
			return w.finishFailure(errors.Join(err, w.strategy.Finish(w.main)))
		}
	}
	if err := w.strategy.Finish(w.main); err != nil {
		return w.finishFailure(err)
	}
	w.state = stateFinished
	w.logger(ctx).LogInfo("ArchiveFinished", "archive finished", logger.Fields{
		"container": w.main.Name(),
		"tables":    len(w.stats),
	})
	return nil
}

// finishFailure reports a failed Finish. Everything has been released by
// then, so the writer cannot be finished again.
func (w *Writer) finishFailure(err error) error {
	err = w.ioFailure(err)
	w.state = stateFinished
	return err
}

// Abort gives up on the archive, releasing every open stream and
// container. It is safe to call in any state.
func (w *Writer) Abort(ctx context.Context) error {
	switch w.state {
	case stateFinished:
		return nil
	case stateFailed:
	default:
		_ = w.fail(&Error{Kind: KindInvalidState, Table: w.tableID(), Err: errors.New("export aborted")})
	}
	w.logger(ctx).LogWarn("ArchiveAborted", "archive aborted", logger.Fields{"container": w.main.Name()})
	return w.Finish(ctx)
}

func (w *Writer) writeFileIndex() error {
	stream, err := w.strategy.CreateOutputStream(w.main, FileIndexPath)
	if err != nil {
		return err
	}
	_, err = w.index.WriteTo(stream)
	if cerr := stream.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	return err
}

// Stats returns the statistics of every closed table
func (w *Writer) Stats() []TableStats {
	return append([]TableStats(nil), w.stats...)
}

// Placement returns the LOB placement in use
func (w *Writer) Placement() Placement {
	return w.placement
}
