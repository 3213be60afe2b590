package content

import (
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/fluxo/siard-archiver/pkg/digest"
)

// FileIndexPath is where the SIARD-DK file index lives in the archive
const FileIndexPath = "Indices/fileIndex.xml"

const (
	fileIndexNamespace = "http://www.sa.dk/xmlns/diark/1.0"
	fileIndexSchema    = "../Schemas/standard/fileIndex.xsd"
)

// FileIndex records the MD5 of every file written into a SIARD-DK archive
type FileIndex struct {
	mu      sync.Mutex
	archive string
	entries map[string]string
}

// NewFileIndex creates an index for the archive folder archiveName
func NewFileIndex(archiveName string) *FileIndex {
	return &FileIndex{archive: archiveName, entries: make(map[string]string)}
}

// Add records a file by its container-relative path and MD5 digest as
// formatted by the digest package
func (f *FileIndex) Add(filePath string, sum string) error {
	hex := strings.TrimPrefix(sum, string(digest.MD5))
	if hex == sum || hex == "" {
		return fmt.Errorf("file index needs an MD5 digest, got %q", sum)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[filePath] = hex
	return nil
}

// Len returns the number of recorded files
func (f *FileIndex) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

type fileIndexDoc struct {
	XMLName        xml.Name         `xml:"fileIndex"`
	Namespace      string           `xml:"xmlns,attr"`
	XSI            string           `xml:"xmlns:xsi,attr"`
	SchemaLocation string           `xml:"xsi:schemaLocation,attr"`
	Files          []fileIndexEntry `xml:"f"`
}

type fileIndexEntry struct {
	Folder string `xml:"foN"`
	Name   string `xml:"fiN"`
	MD5    string `xml:"md5"`
}

// WriteTo writes the index document sorted by path
func (f *FileIndex) WriteTo(w io.Writer) (int64, error) {
	f.mu.Lock()
	keys := make([]string, 0, len(f.entries))
	for k := range f.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	doc := fileIndexDoc{
		Namespace:      fileIndexNamespace,
		XSI:            xsiNamespace,
		SchemaLocation: fileIndexNamespace + " " + fileIndexSchema,
	}
	for _, k := range keys {
		dir, name := path.Split(k)
		folder := f.archive
		if dir = strings.TrimSuffix(dir, "/"); dir != "" {
			folder += `\` + strings.ReplaceAll(dir, "/", `\`)
		}
		doc.Files = append(doc.Files, fileIndexEntry{Folder: folder, Name: name, MD5: f.entries[k]})
	}
	f.mu.Unlock()

	out, err := xml.MarshalIndent(doc, "", "\t")
	if err != nil {
		return 0, fmt.Errorf("failed to marshal file index: %w", err)
	}
	n, err := io.WriteString(w, xml.Header+string(out)+"\n")
	return int64(n), err
}
