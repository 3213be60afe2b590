package digest

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// Algorithm names a message digest usable for LOB integrity
type Algorithm string

// Supported algorithms. The value is the prefix written before the hex
// digest in a messageDigest attribute.
const (
	MD5     Algorithm = "MD5"
	SHA1    Algorithm = "SHA-1"
	SHA256  Algorithm = "SHA-256"
	SHA512  Algorithm = "SHA-512"
	BLAKE2b Algorithm = "BLAKE2B-512"
	SHA3    Algorithm = "SHA3-256"
)

// Parse resolves a configured algorithm name, case-insensitively
func Parse(name string) (Algorithm, error) {
	switch strings.ToUpper(strings.ReplaceAll(name, "_", "-")) {
	case "", "MD5":
		return MD5, nil
	case "SHA-1", "SHA1":
		return SHA1, nil
	case "SHA-256", "SHA256":
		return SHA256, nil
	case "SHA-512", "SHA512":
		return SHA512, nil
	case "BLAKE2B", "BLAKE2B-512":
		return BLAKE2b, nil
	case "SHA3", "SHA3-256":
		return SHA3, nil
	}
	return "", fmt.Errorf("unknown digest algorithm: %s", name)
}

// New returns a fresh hash for the algorithm
func (a Algorithm) New() hash.Hash {
	switch a {
	case SHA1:
		return sha1.New()
	case SHA256:
		return sha256.New()
	case SHA512:
		return sha512.New()
	case BLAKE2b:
		h, _ := blake2b.New512(nil)
		return h
	case SHA3:
		return sha3.New256()
	default:
		return md5.New()
	}
}

// Format renders a digest the way archives store it: the algorithm
// prefix followed by upper-case hex
func (a Algorithm) Format(sum []byte) string {
	return string(a) + strings.ToUpper(hex.EncodeToString(sum))
}

// Digester is implemented by streams that hash what is written to them.
// Sum is valid once the stream is closed.
type Digester interface {
	Algorithm() Algorithm
	Sum() []byte
}

// Writer hashes everything written through it
type Writer struct {
	io.Writer
	w      io.WriteCloser
	alg    Algorithm
	h      hash.Hash
	sum    []byte
	closed bool
}

var _ Digester = (*Writer)(nil)

// NewWriter wraps w so that its content is hashed with alg
func NewWriter(w io.WriteCloser, alg Algorithm) *Writer {
	h := alg.New()
	return &Writer{
		Writer: io.MultiWriter(w, h),
		w:      w,
		alg:    alg,
		h:      h,
	}
}

// Close finalizes the digest and closes the underlying stream
func (d *Writer) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.sum = d.h.Sum(nil)
	return d.w.Close()
}

// Algorithm returns the algorithm in use
func (d *Writer) Algorithm() Algorithm {
	return d.alg
}

// Sum returns the digest, or nil before Close
func (d *Writer) Sum() []byte {
	return d.sum
}

// String returns the formatted digest, or "" before Close
func (d *Writer) String() string {
	if d.sum == nil {
		return ""
	}
	return d.alg.Format(d.sum)
}
