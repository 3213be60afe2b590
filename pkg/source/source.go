package source

import (
	"context"
	"encoding/base64"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/fluxo/siard-archiver/pkg/model"
	"github.com/fluxo/siard-archiver/pkg/typemap"
)

// Binary value encodings in CSV files
const (
	EncodingHex    = "hex"
	EncodingBase64 = "base64"
	// EncodingFile values are paths, relative to the dataset, of files
	// holding the bytes
	EncodingFile = "file"
)

// DefaultNull is the CSV value read as SQL NULL
const DefaultNull = `\N`

// Manifest describes a dataset: a directory of CSV files, one per table
type Manifest struct {
	Name    string           `yaml:"name" validate:"required"`
	Null    string           `yaml:"null"`
	Schemas []SchemaManifest `yaml:"schemas" validate:"required,min=1,dive"`
}

// SchemaManifest lists the tables of one schema
type SchemaManifest struct {
	Name   string          `yaml:"name" validate:"required"`
	Tables []TableManifest `yaml:"tables" validate:"dive"`
}

// TableManifest maps a table to its CSV file
type TableManifest struct {
	Name    string           `yaml:"name" validate:"required"`
	File    string           `yaml:"file"`
	Columns []ColumnManifest `yaml:"columns" validate:"required,min=1,dive"`
}

// ColumnManifest declares one column
type ColumnManifest struct {
	Name     string `yaml:"name" validate:"required"`
	Type     string `yaml:"type" validate:"required"`
	Nullable *bool  `yaml:"nullable"`
	Encoding string `yaml:"encoding" validate:"omitempty,oneof=hex base64 file"`
}

type columnKind int

const (
	kindText columnKind = iota
	kindBinary
	kindComposed
)

type tableSource struct {
	path     string
	kinds    []columnKind
	encoding []string
}

// Dataset is a loaded manifest ready to be read table by table
type Dataset struct {
	Database *model.Database
	dir      string
	null     string
	tables   map[*model.Table]tableSource
}

var validate = validator.New()

// Load reads and validates a manifest
func Load(manifestPath string) (*Dataset, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := validate.Struct(&m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	d := &Dataset{
		Database: &model.Database{Name: m.Name},
		dir:      filepath.Dir(manifestPath),
		null:     m.Null,
		tables:   make(map[*model.Table]tableSource),
	}
	if d.null == "" {
		d.null = DefaultNull
	}

	for si, sm := range m.Schemas {
		schema := &model.Schema{Name: sm.Name, Index: si + 1}
		for ti, tm := range sm.Tables {
			table := &model.Table{Name: tm.Name, Index: ti + 1}
			src := tableSource{path: tm.File}
			if src.path == "" {
				src.path = tm.Name + ".csv"
			}
			src.path = filepath.Join(d.dir, src.path)

			for ci, cm := range tm.Columns {
				nullable := true
				if cm.Nullable != nil {
					nullable = *cm.Nullable
				}
				table.Columns = append(table.Columns, &model.Column{
					Name:     cm.Name,
					Index:    ci + 1,
					Type:     cm.Type,
					Nullable: nullable,
				})

				kind := classify(cm.Type)
				enc := cm.Encoding
				if kind == kindBinary && enc == "" {
					enc = EncodingHex
				}
				if kind != kindBinary && enc != "" {
					return nil, fmt.Errorf("column %s.%s: encoding only applies to binary types", tm.Name, cm.Name)
				}
				src.kinds = append(src.kinds, kind)
				src.encoding = append(src.encoding, enc)
			}

			d.tables[table] = src
			schema.Tables = append(schema.Tables, table)
		}
		d.Database.Schemas = append(d.Database.Schemas, schema)
	}
	return d, nil
}

func classify(sqlType string) columnKind {
	if typemap.IsComposed(sqlType) {
		return kindComposed
	}
	if kind, ok := typemap.LOBKind(sqlType); ok {
		if kind == typemap.BinaryLargeObject {
			return kindBinary
		}
		return kindText
	}
	t := typemap.Normalize(sqlType)
	if strings.HasPrefix(t, "BINARY") || strings.HasPrefix(t, "BIT") || strings.HasPrefix(t, "VARBINARY") {
		return kindBinary
	}
	return kindText
}

// Rows streams the rows of table to fn in file order. The first CSV
// line is a header and must name the declared columns in order.
func (d *Dataset) Rows(ctx context.Context, table *model.Table, fn func(model.Row) error) error {
	src, ok := d.tables[table]
	if !ok {
		return fmt.Errorf("table %s is not part of the dataset", table.Name)
	}

	f, err := os.Open(src.path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(table.Columns)
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("failed to read header of %s: %w", src.path, err)
	}
	for i, col := range table.Columns {
		if !strings.EqualFold(strings.TrimSpace(header[i]), col.Name) {
			return fmt.Errorf("%s: column %d is %q, expected %q", src.path, i+1, header[i], col.Name)
		}
	}

	var index int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", src.path, err)
		}

		row := model.Row{Index: index, Cells: make([]model.Cell, len(record))}
		for i, value := range record {
			cell, err := d.cell(src, i, value)
			if err != nil {
				line, _ := r.FieldPos(i)
				return fmt.Errorf("%s line %d column %s: %w", src.path, line, table.Columns[i].Name, err)
			}
			row.Cells[i] = cell
		}
		if err := fn(row); err != nil {
			return err
		}
		index++
	}
}

func (d *Dataset) cell(src tableSource, i int, value string) (model.Cell, error) {
	if value == d.null {
		if src.kinds[i] == kindBinary {
			return model.BinaryCell{}, nil
		}
		return model.Null(), nil
	}

	switch src.kinds[i] {
	case kindComposed:
		return model.ComposedCell{Children: []model.Cell{model.Text(value)}}, nil
	case kindBinary:
		return d.binary(src.encoding[i], value)
	}
	return model.Text(value), nil
}

func (d *Dataset) binary(encoding string, value string) (model.Cell, error) {
	switch encoding {
	case EncodingBase64:
		b, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return nil, fmt.Errorf("invalid base64: %w", err)
		}
		return model.Bytes(b), nil
	case EncodingFile:
		path := filepath.Join(d.dir, filepath.FromSlash(value))
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		return model.BinaryCell{
			Length: info.Size(),
			Open: func() (io.ReadCloser, error) {
				return os.Open(path)
			},
		}, nil
	default:
		b, err := hex.DecodeString(value)
		if err != nil {
			return nil, fmt.Errorf("invalid hex: %w", err)
		}
		return model.Bytes(b), nil
	}
}
