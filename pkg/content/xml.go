package content

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

const xsiNamespace = "http://www.w3.org/2001/XMLSchema-instance"

// mustEscape lists the code points written as \uXXXX: the backslash
// itself and the characters XML 1.0 cannot carry or that readers drop
func mustEscape(r rune) bool {
	switch {
	case r == '\\':
		return true
	case r <= 0x08, r == 0x0B, r == 0x0C:
		return true
	case r >= 0x0E && r <= 0x1F:
		return true
	case r >= 0x7F && r <= 0x9F:
		return true
	case r == 0xFFFE, r == 0xFFFF:
		return true
	}
	return false
}

// EncodeText encodes a cell value for element content. Runs of two or
// more spaces are kept as \u0020 escapes so that whitespace normalization on the
// reading side cannot collapse them.
func EncodeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	spaces := 0
	flush := func() {
		switch {
		case spaces == 1:
			b.WriteByte(' ')
		case spaces > 1:
			for i := 0; i < spaces; i++ {
				b.WriteString(`\u0020`)
			}
		}
		spaces = 0
	}

	for _, r := range s {
		if r == ' ' {
			spaces++
			continue
		}
		flush()
		switch {
		case mustEscape(r):
			fmt.Fprintf(&b, `\u%04X`, r)
		case r == '&':
			b.WriteString("&amp;")
		case r == '<':
			b.WriteString("&lt;")
		case r == '>':
			b.WriteString("&gt;")
		case r == '"':
			b.WriteString("&quot;")
		case r == '\'':
			b.WriteString("&apos;")
		default:
			b.WriteRune(r)
		}
	}
	flush()
	return b.String()
}

var attrEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// xmlWriter buffers a document and keeps the first write error
type xmlWriter struct {
	w   *bufio.Writer
	err error
}

func newXMLWriter(w io.Writer) *xmlWriter {
	return &xmlWriter{w: bufio.NewWriterSize(w, 64*1024)}
}

func (x *xmlWriter) str(s string) {
	if x.err != nil {
		return
	}
	_, x.err = x.w.WriteString(s)
}

func (x *xmlWriter) printf(format string, args ...interface{}) {
	if x.err != nil {
		return
	}
	_, x.err = fmt.Fprintf(x.w, format, args...)
}

func (x *xmlWriter) Write(p []byte) (int, error) {
	if x.err != nil {
		return 0, x.err
	}
	n, err := x.w.Write(p)
	x.err = err
	return n, err
}

func (x *xmlWriter) flush() error {
	if x.err != nil {
		return x.err
	}
	x.err = x.w.Flush()
	return x.err
}
