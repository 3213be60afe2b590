package model

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCells(t *testing.T) {
	require.Nil(t, Null().Value)
	require.Equal(t, "abc", *Text("abc").Value)

	var c BinaryCell
	require.True(t, c.IsNull())

	c = Bytes([]byte{1, 2, 3})
	require.False(t, c.IsNull())
	require.EqualValues(t, 3, c.Length)

	r, err := c.Open()
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, data)
}

func TestTextObject(t *testing.T) {
	lob := TextObject("lob1/record1.txt", "héllo")
	r, err := lob.Open()
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "héllo", string(data))
	require.EqualValues(t, 6, lob.Length)
}

func TestTableID(t *testing.T) {
	tbl := &Table{Name: "orders"}
	require.Equal(t, "orders", tbl.ID(nil))
	require.Equal(t, "public.orders", tbl.ID(&Schema{Name: "public"}))
}
