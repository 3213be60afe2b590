package export

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"github.com/fluxo/siard-archiver/pkg/config"
	"github.com/fluxo/siard-archiver/pkg/content"
	"github.com/fluxo/siard-archiver/pkg/logger"
	"github.com/fluxo/siard-archiver/pkg/source"
	"github.com/fluxo/siard-archiver/pkg/storage"
)

const shopManifest = `
name: shop
schemas:
  - name: public
    tables:
      - name: products
        columns:
          - {name: id, type: INTEGER, nullable: false}
          - {name: title, type: "CHARACTER VARYING(40)"}
          - {name: notes, type: CLOB}
          - {name: scan, type: BLOB, encoding: file}
`

// tiffHeader is enough of a little-endian TIFF for type detection
var tiffHeader = []byte{'I', 'I', 0x2a, 0x00, 0x08, 0x00, 0x00, 0x00}

func writeShop(t *testing.T, csvData string) *source.Dataset {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.yaml"), []byte(shopManifest), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "products.csv"), []byte(csvData), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "scans"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scans", "a.tif"), tiffHeader, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scans", "b.tif"), tiffHeader, 0644))

	ds, err := source.Load(filepath.Join(dir, "manifest.yaml"))
	require.NoError(t, err)
	return ds
}

const shopRows = "id,title,notes,scan\n" +
	"1,Lamp,bright,scans/a.tif\n" +
	"2,Desk,\\N,scans/b.tif\n" +
	"3,Chair,comfy,\\N\n"

func newRunner(t *testing.T, mutate func(cfg *config.Config)) (*Runner, *config.Config) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Export.Output = filepath.Join(t.TempDir(), "out", "shop.siard")
	cfg.Storage.WorkDirectory = t.TempDir()
	cfg.Report.Formats = []string{"csv"}
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())

	mgr, err := storage.NewManager(cfg.Storage.WorkDirectory, true, cfg.Storage.Retention, logger.Nop())
	require.NoError(t, err)
	return NewRunner(cfg, logger.Nop(), mgr, nil), cfg
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
		require.NoError(t, rc.Close())
		entries[f.Name] = string(data)
	}
	return entries
}

func TestRunSIARD2Zip(t *testing.T) {
	runner, cfg := newRunner(t, nil)
	run, err := runner.Run(context.Background(), writeShop(t, shopRows))
	require.NoError(t, err)

	require.Equal(t, StatusCompleted, run.CurrentStatus())
	require.Equal(t, []string{cfg.Export.Output}, run.Outputs)
	require.Len(t, run.Tables, 1)
	require.EqualValues(t, 3, run.Tables[0].Rows)

	entries := readZip(t, cfg.Export.Output)
	xml := entries["content/schema1/table1/table1.xml"]
	require.Contains(t, xml, "<c2>Lamp</c2>")
	require.Contains(t, xml, `<c3 xsi:nil="true"/>`)
	require.Contains(t, xml, "<c4>49492a0008000000</c4>")
	require.Contains(t, entries, "content/schema1/table1/table1.xsd")

	report := filepath.Join(filepath.Dir(cfg.Export.Output), "shop.siard.report.csv")
	data, err := os.ReadFile(report)
	require.NoError(t, err)
	require.Contains(t, string(data), "products")
	require.Len(t, run.Reports, 1)
}

func TestRunSIARD1Folder(t *testing.T) {
	runner, cfg := newRunner(t, func(cfg *config.Config) {
		cfg.Export.Profile = config.ProfileSIARD1
		cfg.Export.Container = "folder"
		cfg.Export.BlobThreshold = 4
		cfg.Report.Enabled = false
	})
	run, err := runner.Run(context.Background(), writeShop(t, shopRows))
	require.NoError(t, err)
	require.Empty(t, run.Reports)

	table := filepath.Join(cfg.Export.Output, "content", "schema1", "table1")
	xml, err := os.ReadFile(filepath.Join(table, "table1.xml"))
	require.NoError(t, err)
	require.Contains(t, string(xml), `<c4 file="content/schema1/table1/lob4/record1.bin" length="8"/>`)

	lob, err := os.ReadFile(filepath.Join(table, "lob4", "record1.bin"))
	require.NoError(t, err)
	require.Equal(t, tiffHeader, lob)
}

func TestRunSIARD2External(t *testing.T) {
	runner, cfg := newRunner(t, func(cfg *config.Config) {
		cfg.Export.Profile = config.ProfileSIARD2External
		cfg.LOBs.MaxPerFolder = 1
	})
	run, err := runner.Run(context.Background(), writeShop(t, shopRows))
	require.NoError(t, err)

	dir := filepath.Dir(cfg.Export.Output)
	require.ElementsMatch(t, []string{
		cfg.Export.Output,
		filepath.Join(dir, "shop_lobseg_1"),
		filepath.Join(dir, "shop_lobseg_2"),
	}, run.Outputs)

	xml := readZip(t, cfg.Export.Output)["content/schema1/table1/table1.xml"]
	require.Contains(t, xml, `file="../shop_lobseg_1/schema1/table1/lob4/record1.bin"`)
	require.Contains(t, xml, `file="../shop_lobseg_2/schema1/table1/lob4/record2.bin"`)

	lob, err := os.ReadFile(filepath.Join(dir, "shop_lobseg_2", "schema1", "table1", "lob4", "record2.bin"))
	require.NoError(t, err)
	require.Equal(t, tiffHeader, lob)
}

func TestRunSIARDDK(t *testing.T) {
	runner, cfg := newRunner(t, func(cfg *config.Config) {
		cfg.Export.Profile = config.ProfileSIARDDK
		cfg.Export.Container = "folder"
		cfg.Export.Output = filepath.Join(t.TempDir(), "AVID.SA.18000.1")
	})
	_, err := runner.Run(context.Background(), writeShop(t, shopRows))
	require.NoError(t, err)

	root := cfg.Export.Output
	xml, err := os.ReadFile(filepath.Join(root, "Tables", "table1", "table1.xml"))
	require.NoError(t, err)
	require.Contains(t, string(xml), "<c4>1</c4>")
	require.Contains(t, string(xml), "<c4>2</c4>")

	for _, doc := range []string{"1", "2"} {
		data, err := os.ReadFile(filepath.Join(root, "Documents", "docCollection1", doc, "1.tif"))
		require.NoError(t, err)
		require.Equal(t, tiffHeader, data)
	}

	index, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(content.FileIndexPath)))
	require.NoError(t, err)
	require.Contains(t, string(index), `AVID.SA.18000.1\Documents\docCollection1\1`)
	require.Contains(t, string(index), "<fiN>table1.xml</fiN>")
}

func TestRunFailureLeavesNoOutput(t *testing.T) {
	runner, cfg := newRunner(t, nil)
	run, err := runner.Run(context.Background(), writeShop(t, "id,title,notes\n1,Lamp,bright\n"))
	require.Error(t, err)

	require.Equal(t, StatusFailed, run.CurrentStatus())
	require.Equal(t, "SOURCE_ERROR", run.ErrorCode)
	require.Empty(t, run.Outputs)

	_, statErr := os.Stat(cfg.Export.Output)
	require.True(t, os.IsNotExist(statErr))

	staged, err := os.ReadDir(cfg.Storage.WorkDirectory)
	require.NoError(t, err)
	for _, e := range staged {
		require.False(t, strings.Contains(e.Name(), run.ID), "run directory %s left behind", e.Name())
	}
}

func TestProfileRejectsUnknown(t *testing.T) {
	_, err := Profile(&config.ExportConfig{Profile: "siard3"})
	require.Error(t, err)
}
