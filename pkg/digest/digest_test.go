package digest

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type closeRecorder struct {
	bytes.Buffer
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestWriterMD5(t *testing.T) {
	buf := &closeRecorder{}
	w := NewWriter(buf, MD5)

	_, err := io.WriteString(w, "hello world")
	require.NoError(t, err)
	require.Nil(t, w.Sum())
	require.Empty(t, w.String())

	require.NoError(t, w.Close())
	require.True(t, buf.closed)
	require.Equal(t, "hello world", buf.String())

	want := md5.Sum([]byte("hello world"))
	require.Equal(t, want[:], w.Sum())
	require.Equal(t, "MD5"+strings.ToUpper(hex.EncodeToString(want[:])), w.String())

	// second close is a no-op
	require.NoError(t, w.Close())
}

func TestAlgorithms(t *testing.T) {
	sizes := map[Algorithm]int{
		MD5:     16,
		SHA1:    20,
		SHA256:  32,
		SHA512:  64,
		BLAKE2b: 64,
		SHA3:    32,
	}
	for alg, size := range sizes {
		h := alg.New()
		require.Equal(t, size, h.Size(), string(alg))
	}
}

func TestParse(t *testing.T) {
	cases := map[string]Algorithm{
		"":        MD5,
		"md5":     MD5,
		"sha256":  SHA256,
		"SHA-512": SHA512,
		"blake2b": BLAKE2b,
		"sha3":    SHA3,
		"sha_1":   SHA1,
	}
	for in, want := range cases {
		got, err := Parse(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := Parse("crc32")
	require.Error(t, err)
}
