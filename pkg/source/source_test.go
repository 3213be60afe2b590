package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fluxo/siard-archiver/pkg/model"
)

const manifest = `
name: shop
schemas:
  - name: public
    tables:
      - name: products
        columns:
          - {name: id, type: INTEGER, nullable: false}
          - {name: title, type: "CHARACTER VARYING(40)"}
          - {name: thumb, type: BLOB}
          - {name: manual, type: BLOB, encoding: file}
          - {name: tags, type: "CHARACTER VARYING(10) ARRAY"}
`

func writeDataset(t *testing.T, csvData string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.yaml"), []byte(manifest), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "products.csv"), []byte(csvData), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "docs"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docs", "a.pdf"), []byte("%PDF-1.4"), 0644))
	return dir
}

func TestLoadBuildsModel(t *testing.T) {
	dir := writeDataset(t, "id,title,thumb,manual,tags\n")
	ds, err := Load(filepath.Join(dir, "manifest.yaml"))
	require.NoError(t, err)

	require.Equal(t, "shop", ds.Database.Name)
	require.Len(t, ds.Database.Schemas, 1)
	schema := ds.Database.Schemas[0]
	require.Equal(t, 1, schema.Index)
	require.Len(t, schema.Tables, 1)

	table := schema.Tables[0]
	require.Equal(t, "products", table.Name)
	require.Len(t, table.Columns, 5)
	require.False(t, table.Columns[0].Nullable)
	require.True(t, table.Columns[1].Nullable)
	require.Equal(t, 3, table.Columns[2].Index)
}

func TestRowsDecodesCells(t *testing.T) {
	dir := writeDataset(t, "id,title,thumb,manual,tags\n"+
		"1,Lamp,cafe,docs/a.pdf,\"{a,b}\"\n"+
		"2,\\N,\\N,\\N,\\N\n")
	ds, err := Load(filepath.Join(dir, "manifest.yaml"))
	require.NoError(t, err)
	table := ds.Database.Schemas[0].Tables[0]

	var rows []model.Row
	require.NoError(t, ds.Rows(context.Background(), table, func(r model.Row) error {
		cells := make([]model.Cell, len(r.Cells))
		copy(cells, r.Cells)
		rows = append(rows, model.Row{Index: r.Index, Cells: cells})
		return nil
	}))
	require.Len(t, rows, 2)

	first := rows[0]
	require.Equal(t, "1", *first.Cells[0].(model.SimpleCell).Value)
	thumb := first.Cells[2].(model.BinaryCell)
	require.EqualValues(t, 2, thumb.Length)

	manual := first.Cells[3].(model.BinaryCell)
	require.EqualValues(t, 8, manual.Length)
	rc, err := manual.Open()
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, "%PDF-1.4", string(data))

	require.IsType(t, model.ComposedCell{}, first.Cells[4])

	second := rows[1]
	require.EqualValues(t, 1, second.Index)
	require.Nil(t, second.Cells[1].(model.SimpleCell).Value)
	require.True(t, second.Cells[2].(model.BinaryCell).IsNull())
}

func TestRowsRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"header mismatch": "id,name,thumb,manual,tags\n",
		"bad hex":         "id,title,thumb,manual,tags\n1,x,zz,\\N,\\N\n",
		"missing file":    "id,title,thumb,manual,tags\n1,x,\\N,docs/none.pdf,\\N\n",
		"short row":       "id,title,thumb,manual,tags\n1,x\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			dir := writeDataset(t, data)
			ds, err := Load(filepath.Join(dir, "manifest.yaml"))
			require.NoError(t, err)
			err = ds.Rows(context.Background(), ds.Database.Schemas[0].Tables[0], func(model.Row) error { return nil })
			require.Error(t, err)
		})
	}
}

func TestRowsHonoursCancellation(t *testing.T) {
	dir := writeDataset(t, "id,title,thumb,manual,tags\n1,x,\\N,\\N,\\N\n")
	ds, err := Load(filepath.Join(dir, "manifest.yaml"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = ds.Rows(ctx, ds.Database.Schemas[0].Tables[0], func(model.Row) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoadRejectsInvalidManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yaml")

	require.NoError(t, os.WriteFile(path, []byte("name: x\nschemas: []\n"), 0644))
	_, err := Load(path)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`
name: x
schemas:
  - name: s
    tables:
      - name: t
        columns:
          - {name: c, type: INTEGER, encoding: hex}
`), 0644))
	_, err = Load(path)
	require.Error(t, err)

	_, err = Load(filepath.Join(dir, "absent.yaml"))
	require.Error(t, err)
}
