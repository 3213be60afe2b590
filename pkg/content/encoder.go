package content

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fluxo/siard-archiver/pkg/model"
	"github.com/fluxo/siard-archiver/pkg/typemap"
)

// cellEncoder renders the cells of one row. It belongs to a Writer and
// reads the open table's state from it.
type cellEncoder struct {
	w *Writer
}

func (e cellEncoder) encode(ctx context.Context, out *xmlWriter, cell model.Cell, col columnInfo, row int64) error {
	switch c := cell.(type) {
	case model.SimpleCell:
		if c.Value == nil {
			writeNil(out, col.index)
			return nil
		}
		return e.encodeText(ctx, out, *c.Value, col, row)
	case *model.SimpleCell:
		if c == nil || c.Value == nil {
			writeNil(out, col.index)
			return nil
		}
		return e.encodeText(ctx, out, *c.Value, col, row)
	case model.BinaryCell:
		return e.encodeBinary(ctx, out, c, col, row)
	case *model.BinaryCell:
		if c == nil {
			writeNil(out, col.index)
			return nil
		}
		return e.encodeBinary(ctx, out, *c, col, row)
	case model.ComposedCell, *model.ComposedCell:
		return e.w.fail(&Error{Kind: KindUnsupportedType, Table: e.w.tableID(),
			Err: fmt.Errorf("column c%d holds a composed value", col.index)})
	case nil:
		writeNil(out, col.index)
		return nil
	}
	return e.w.fail(&Error{Kind: KindUnsupportedType, Table: e.w.tableID(),
		Err: fmt.Errorf("column c%d holds an unknown cell %T", col.index, cell)})
}

// trimControl strips leading and trailing spaces and control characters.
// SIARD-DK stores text values trimmed.
func trimControl(s string) string {
	return strings.TrimFunc(s, func(r rune) bool { return r <= ' ' })
}

func writeNil(out *xmlWriter, index int) {
	out.printf("\t\t<c%d xsi:nil=\"true\"/>\n", index)
}

func (e cellEncoder) encodeText(ctx context.Context, out *xmlWriter, text string, col columnInfo, row int64) error {
	w := e.w

	if w.profile.Documents {
		text = trimControl(text)
		if col.lobKind == typemap.CharacterLargeObject {
			w.ledger.UpdateMaxTextLength(w.tableNo, col.index, utf8.RuneCountInString(text))
		}
		out.printf("\t\t<c%d>%s</c%d>\n", col.index, EncodeText(text), col.index)
		return nil
	}

	length := utf8.RuneCountInString(text)
	if col.token == typemap.ClobType && length > w.profile.Thresholds.Clob {
		path := w.paths.ClobPath(w.schemaNo, w.tableNo, col.index, int(row)+1)
		lob := model.TextObject(path, text)
		ref, err := w.place(ctx, lob)
		if err != nil {
			return err
		}
		writeReference(out, col.index, ref, int64(length))
		return nil
	}

	out.printf("\t\t<c%d>%s</c%d>\n", col.index, EncodeText(text), col.index)
	return nil
}

func (e cellEncoder) encodeBinary(ctx context.Context, out *xmlWriter, c model.BinaryCell, col columnInfo, row int64) error {
	w := e.w
	if c.IsNull() || c.Length == 0 {
		writeNil(out, col.index)
		return nil
	}

	if w.profile.Documents {
		ref, err := w.place(ctx, &model.LargeObject{Length: c.Length, Open: c.Open})
		if err != nil {
			return err
		}
		out.printf("\t\t<c%d>%d</c%d>\n", col.index, ref.Document, col.index)
		return nil
	}

	external := w.profile.AlwaysExternalBinary ||
		(col.token == typemap.BlobType && c.Length > w.profile.Thresholds.Blob)
	if external {
		path := w.paths.BlobPath(w.schemaNo, w.tableNo, col.index, int(row)+1)
		ref, err := w.place(ctx, &model.LargeObject{Path: path, Length: c.Length, Open: c.Open})
		if err != nil {
			return err
		}
		writeReference(out, col.index, ref, c.Length)
		return nil
	}

	src, err := c.Open()
	if err != nil {
		return w.fail(&Error{Kind: KindIOFailure, Table: w.tableID(), Err: err})
	}
	out.printf("\t\t<c%d>", col.index)
	_, err = io.Copy(hex.NewEncoder(out), src)
	if cerr := src.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	if err != nil {
		return w.fail(&Error{Kind: KindIOFailure, Table: w.tableID(), Err: err})
	}
	out.printf("</c%d>\n", col.index)
	return nil
}

func writeReference(out *xmlWriter, index int, ref Reference, length int64) {
	out.printf("\t\t<c%d file=\"%s\" length=\"%d\"", index, attrEscaper.Replace(ref.File), length)
	if ref.Digest != "" {
		out.printf(" messageDigest=\"%s\"", ref.Digest)
	}
	out.str("/>\n")
}
