package archive

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"github.com/fluxo/siard-archiver/pkg/digest"
)

func writeString(t *testing.T, s Strategy, c Container, path string, content string) io.WriteCloser {
	t.Helper()
	w, err := s.CreateOutputStream(c, path)
	require.NoError(t, err)
	_, err = io.WriteString(w, content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return w
}

func readZip(t *testing.T, path string) map[string]string {
	t.Helper()
	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	entries := make(map[string]string)
	for _, f := range r.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		entries[f.Name] = string(data)
	}
	return entries
}

func TestZipStrategy(t *testing.T) {
	for _, compression := range []Compression{CompressionDeflate, CompressionStore} {
		t.Run(string(compression), func(t *testing.T) {
			root := filepath.Join(t.TempDir(), "out", "db.siard")
			c := Main(root)

			s, err := NewZipStrategy(compression, 6)
			require.NoError(t, err)
			require.False(t, s.SupportsConcurrentStreams())
			require.NoError(t, s.Setup(c))

			writeString(t, s, c, "content/schema1/table1/table1.xml", "<table/>")
			writeString(t, s, c, "content/schema1/table1/table1.xsd", "<xs:schema/>")
			require.NoError(t, s.Finish(c))

			entries := readZip(t, root)
			require.Equal(t, "<table/>", entries["content/schema1/table1/table1.xml"])
			require.Equal(t, "<xs:schema/>", entries["content/schema1/table1/table1.xsd"])
		})
	}
}

func TestZipStrategyRejectsSecondStream(t *testing.T) {
	c := Main(filepath.Join(t.TempDir(), "db.siard"))
	s, err := NewZipStrategy(CompressionDeflate, -1)
	require.NoError(t, err)
	require.NoError(t, s.Setup(c))
	defer s.Finish(c)

	first, err := s.CreateOutputStream(c, "a.xml")
	require.NoError(t, err)

	_, err = s.CreateOutputStream(c, "b.xml")
	require.ErrorIs(t, err, ErrStreamBusy)

	require.NoError(t, first.Close())
	second, err := s.CreateOutputStream(c, "b.xml")
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestZipStrategyRequiresSetup(t *testing.T) {
	s, err := NewZipStrategy(CompressionStore, 0)
	require.NoError(t, err)
	_, err = s.CreateOutputStream(Main(filepath.Join(t.TempDir(), "x.zip")), "a")
	require.ErrorIs(t, err, ErrNotSetUp)
}

func TestNewZipStrategyValidation(t *testing.T) {
	_, err := NewZipStrategy("bzip2", 0)
	require.Error(t, err)
	_, err = NewZipStrategy(CompressionDeflate, 42)
	require.Error(t, err)
}

func TestFolderStrategy(t *testing.T) {
	c := Main(filepath.Join(t.TempDir(), "archive"))
	s := NewFolderStrategy()
	require.True(t, s.SupportsConcurrentStreams())
	require.NoError(t, s.Setup(c))

	a, err := s.CreateOutputStream(c, "Tables/table1/table1.xml")
	require.NoError(t, err)
	b, err := s.CreateOutputStream(c, "Documents/docCollection1/1/1.tif")
	require.NoError(t, err)
	_, err = io.WriteString(a, "a")
	require.NoError(t, err)
	_, err = io.WriteString(b, "b")
	require.NoError(t, err)
	require.NoError(t, a.Close())
	require.NoError(t, b.Close())
	require.NoError(t, s.Finish(c))

	data, err := os.ReadFile(filepath.Join(c.Root, "Tables", "table1", "table1.xml"))
	require.NoError(t, err)
	require.Equal(t, "a", string(data))
}

func TestExternalLOBStrategy(t *testing.T) {
	dir := t.TempDir()
	zipStrategy, err := NewZipStrategy(CompressionDeflate, -1)
	require.NoError(t, err)
	s := NewExternalLOBStrategy(zipStrategy, NewFolderStrategy(), digest.MD5)
	require.True(t, s.SupportsConcurrentStreams())

	main := Main(filepath.Join(dir, "db.siard"))
	aux := Auxiliary(filepath.Join(dir, "db_lobseg_1"))
	require.NoError(t, s.Setup(main))
	require.NoError(t, s.Setup(aux))

	content, err := s.CreateOutputStream(main, "content/schema1/table1/table1.xml")
	require.NoError(t, err)
	_, isDigester := content.(digest.Digester)
	require.False(t, isDigester)

	lob := writeString(t, s, aux, "schema1/table1/lob1/record1.bin", "payload")
	d, ok := lob.(digest.Digester)
	require.True(t, ok)
	require.Len(t, d.Sum(), 16)

	_, err = io.WriteString(content, "<table/>")
	require.NoError(t, err)
	require.NoError(t, content.Close())
	require.NoError(t, s.Finish(aux))
	require.NoError(t, s.Finish(main))

	data, err := os.ReadFile(filepath.Join(aux.Root, "schema1", "table1", "lob1", "record1.bin"))
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))
	require.Equal(t, "<table/>", readZip(t, main.Root)["content/schema1/table1/table1.xml"])
}

func TestContainerNames(t *testing.T) {
	c := Main("/tmp/out/db.siard")
	require.Equal(t, "db.siard", c.Name())
	require.Equal(t, "db", c.Stem())
	require.Equal(t, "main", c.Role.String())
	require.Equal(t, "auxiliary", Auxiliary("/x").Role.String())
}
