package model

import (
	"bytes"
	"io"
	"strings"
)

// Database is the root of the relational model handed to the exporter
type Database struct {
	Name    string
	Schemas []*Schema
}

// Schema groups tables; Index is 1-based
type Schema struct {
	Name   string
	Index  int
	Tables []*Table
}

// Table describes one relational table; Index is 1-based within its schema
type Table struct {
	Name    string
	Index   int
	Columns []*Column
	Rows    int64
}

// ID returns a dotted identifier used in logs and errors
func (t *Table) ID(schema *Schema) string {
	if schema == nil {
		return t.Name
	}
	return schema.Name + "." + t.Name
}

// Column is immutable for the duration of an export
type Column struct {
	Name     string
	Index    int
	Type     string
	Nullable bool
}

// Row is an ordered list of cells matching the table's columns
type Row struct {
	Index int64
	Cells []Cell
}

// Cell is one value of a row. The set of implementations is closed.
type Cell interface {
	cell()
}

// SimpleCell holds text; a nil Value is SQL NULL
type SimpleCell struct {
	Value *string
}

// BinaryCell holds a byte stream of known length
type BinaryCell struct {
	Length int64
	Open   func() (io.ReadCloser, error)
}

// ComposedCell holds array or structured values
type ComposedCell struct {
	Children []Cell
}

func (SimpleCell) cell()   {}
func (BinaryCell) cell()   {}
func (ComposedCell) cell() {}

// Text builds a non-null SimpleCell
func Text(s string) SimpleCell {
	return SimpleCell{Value: &s}
}

// Null builds a null SimpleCell
func Null() SimpleCell {
	return SimpleCell{}
}

// Bytes builds a BinaryCell backed by an in-memory slice
func Bytes(b []byte) BinaryCell {
	return BinaryCell{
		Length: int64(len(b)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(b)), nil
		},
	}
}

// IsNull reports whether the binary cell carries no stream
func (c BinaryCell) IsNull() bool {
	return c.Open == nil
}

// LargeObject is a LOB on its way to its own resource. It is consumed once.
type LargeObject struct {
	Path   string
	Length int64
	Open   func() (io.ReadCloser, error)
}

// TextObject builds a LargeObject over character data. Length is the
// UTF-8 size in bytes.
func TextObject(path string, text string) *LargeObject {
	return &LargeObject{
		Path:   path,
		Length: int64(len(text)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(text)), nil
		},
	}
}
