package paths

import (
	"fmt"
	"path/filepath"

	"github.com/fluxo/siard-archiver/pkg/archive"
	"github.com/fluxo/siard-archiver/pkg/ledger"
)

// Namespace bases of the supported archive flavours
const (
	SIARD1Namespace = "http://www.admin.ch/xmlns/siard/1.0/"
	SIARD2Namespace = "http://www.admin.ch/xmlns/siard/2.0/"
	DKNamespace     = "http://www.sa.dk/xmlns/siard/1.0/"
)

// Strategy computes the deterministic locations of table documents and
// LOB resources. Indices are 1-based.
type Strategy interface {
	TableXMLPath(schema, table int) string
	TableXSDPath(schema, table int) string
	TableXSDFileName(table int) string
	TableNamespace(base string, schema, table int) string
	ClobPath(schema, table, column, row int) string
	BlobPath(schema, table, column, row int) string
}

// ContainerNamer names the auxiliary containers used for LOB overflow
type ContainerNamer interface {
	NextContainer(main archive.Container) archive.Container
}

// SIARD lays out SIARD 1 and SIARD 2 archives
type SIARD struct{}

func (SIARD) tableDir(schema, table int) string {
	return fmt.Sprintf("content/schema%d/table%d", schema, table)
}

// TableXMLPath returns content/schemaS/tableT/tableT.xml
func (p SIARD) TableXMLPath(schema, table int) string {
	return fmt.Sprintf("%s/table%d.xml", p.tableDir(schema, table), table)
}

// TableXSDPath returns content/schemaS/tableT/tableT.xsd
func (p SIARD) TableXSDPath(schema, table int) string {
	return fmt.Sprintf("%s/table%d.xsd", p.tableDir(schema, table), table)
}

func (SIARD) TableXSDFileName(table int) string {
	return fmt.Sprintf("table%d.xsd", table)
}

func (SIARD) TableNamespace(base string, schema, table int) string {
	return fmt.Sprintf("%sschema%d/table%d.xsd", base, schema, table)
}

func (p SIARD) ClobPath(schema, table, column, row int) string {
	return fmt.Sprintf("%s/lob%d/record%d.txt", p.tableDir(schema, table), column, row)
}

func (p SIARD) BlobPath(schema, table, column, row int) string {
	return fmt.Sprintf("%s/lob%d/record%d.bin", p.tableDir(schema, table), column, row)
}

// External lays out SIARD 2 archives whose LOBs live in auxiliary
// folders next to the main archive. LOB paths are relative to the
// auxiliary container.
type External struct {
	SIARD
	segment int
}

// NewExternal returns a path strategy for externally stored LOBs
func NewExternal() *External {
	return &External{}
}

func (*External) ClobPath(schema, table, column, row int) string {
	return fmt.Sprintf("schema%d/table%d/lob%d/record%d.txt", schema, table, column, row)
}

func (*External) BlobPath(schema, table, column, row int) string {
	return fmt.Sprintf("schema%d/table%d/lob%d/record%d.bin", schema, table, column, row)
}

// NextContainer returns <dir>/<main stem>_lobseg_<n>, n counting from 1
func (p *External) NextContainer(main archive.Container) archive.Container {
	p.segment++
	dir := filepath.Dir(main.Root)
	return archive.Auxiliary(filepath.Join(dir, fmt.Sprintf("%s_lobseg_%d", main.Stem(), p.segment)))
}

// DK lays out SIARD-DK archives. Tables are numbered across the whole
// archive and documents are placed by the ledger's counters.
type DK struct {
	ledger *ledger.Ledger
}

// NewDK returns the SIARD-DK layout backed by a ledger
func NewDK(l *ledger.Ledger) *DK {
	return &DK{ledger: l}
}

func (*DK) TableXMLPath(_, table int) string {
	return fmt.Sprintf("Tables/table%d/table%d.xml", table, table)
}

func (*DK) TableXSDPath(_, table int) string {
	return fmt.Sprintf("Tables/table%d/table%d.xsd", table, table)
}

func (*DK) TableXSDFileName(table int) string {
	return fmt.Sprintf("table%d.xsd", table)
}

// TableNamespace uses the table number for the schema segment too; the
// archive has no schema level.
func (*DK) TableNamespace(base string, _, table int) string {
	return fmt.Sprintf("%sschema%d/table%d.xsd", base, table, table)
}

// ClobPath is empty: SIARD-DK keeps character LOBs inline
func (*DK) ClobPath(_, _, _, _ int) string {
	return ""
}

// BlobPath returns the document path without extension, derived from the
// ledger state after the document was recorded
func (p *DK) BlobPath(_, _, _, _ int) string {
	return fmt.Sprintf("Documents/docCollection%d/%d/1.", p.ledger.DocCollection(), p.ledger.Count())
}
