package typemap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"varchar":                     "VARCHAR",
		"  character   varying (10) ": "CHARACTER VARYING(10)",
		"numeric(10, 2)":              "NUMERIC(10,2)",
		"time(3) with time zone":      "TIME(3) WITH TIME ZONE",
	}
	for in, want := range cases {
		require.Equal(t, want, Normalize(in), in)
	}
}

func TestSQL2008(t *testing.T) {
	m := SQL2008(DefaultThresholds())
	cases := map[string]string{
		"INTEGER":                  "xs:integer",
		"CHARACTER VARYING(10)":    "xs:string",
		"CHARACTER VARYING(4000)":  "xs:string",
		"CHARACTER VARYING(4001)":  ClobType,
		"CHARACTER LARGE OBJECT":   ClobType,
		"BINARY(16)":               BlobType,
		"BINARY LARGE OBJECT":      BlobType,
		"DATE":                     DateType,
		"TIME WITH TIME ZONE":      TimeType,
		"TIMESTAMP":                DateTimeType,
		"TIMESTAMP(6)":             DateTimeType,
		"DECIMAL(10,2)":            "xs:decimal",
		"NUMERIC(5)":               "xs:decimal",
		"DOUBLE PRECISION":         "xs:double",
		"FLOAT(24)":                "xs:float",
		"BOOLEAN":                  "xs:boolean",
		"national character(20)":   "xs:string",
		"NATIONAL CHARACTER(5000)": ClobType,
	}
	for in, want := range cases {
		res, err := m.Map(in)
		require.NoError(t, err, in)
		require.Equal(t, want, res.Token, in)
		require.False(t, res.Downgraded, in)
	}

	res, err := m.Map("GEOMETRY")
	require.NoError(t, err)
	require.Equal(t, "xs:string", res.Token)
	require.True(t, res.Downgraded)

	_, err = m.Map("INTEGER ARRAY")
	require.True(t, errors.Is(err, ErrUnsupportedType))
	_, err = m.Map("ROW(a INTEGER)")
	require.True(t, errors.Is(err, ErrUnsupportedType))
}

func TestSQL99(t *testing.T) {
	m := SQL99(DefaultThresholds())
	cases := map[string]string{
		"BIT(8)":                   "xs:hexBinary",
		"BINARY VARYING(100)":      "xs:hexBinary",
		"BINARY VARYING(3000)":     BlobType,
		"BLOB":                     BlobType,
		"DATE":                     "xs:date",
		"TIMESTAMP WITH TIME ZONE": "xs:dateTime",
		"DOUBLE PRECISION":         "xs:float",
		"CHARACTER(4001)":          ClobType,
	}
	for in, want := range cases {
		res, err := m.Map(in)
		require.NoError(t, err, in)
		require.Equal(t, want, res.Token, in)
	}

	res, err := m.Map("INTEGER ARRAY")
	require.NoError(t, err)
	require.Equal(t, "xs:string", res.Token)
	require.True(t, res.Downgraded)
}

func TestThresholdsAreConfigurable(t *testing.T) {
	m := SQL2008(Thresholds{Clob: 10, Blob: 10})
	res, err := m.Map("CHARACTER VARYING(11)")
	require.NoError(t, err)
	require.Equal(t, ClobType, res.Token)
}

func TestDK(t *testing.T) {
	m := DK()
	res, err := m.Map("BINARY LARGE OBJECT")
	require.NoError(t, err)
	require.Equal(t, "xs:integer", res.Token)

	res, err = m.Map("CHARACTER LARGE OBJECT")
	require.NoError(t, err)
	require.Equal(t, "xs:string", res.Token)

	_, err = m.Map("GEOMETRY")
	require.ErrorIs(t, err, ErrUnsupportedType)
}

func TestLOBKind(t *testing.T) {
	kind, ok := LOBKind("blob")
	require.True(t, ok)
	require.Equal(t, BinaryLargeObject, kind)

	kind, ok = LOBKind("national character large object")
	require.True(t, ok)
	require.Equal(t, CharacterLargeObject, kind)

	_, ok = LOBKind("INTEGER")
	require.False(t, ok)
}

func TestIsLarge(t *testing.T) {
	require.True(t, IsLarge(ClobType))
	require.True(t, IsLarge(BlobType))
	require.False(t, IsLarge("xs:string"))
}
