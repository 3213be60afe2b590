package content

import (
	"io"

	"github.com/fluxo/siard-archiver/pkg/typemap"
)

// columnInfo is the per-table view of a column after type mapping. The
// same values drive the schema document and the cell encoder.
type columnInfo struct {
	index    int
	name     string
	sqlType  string
	token    string
	nullable bool
	// lobKind is set for SIARD-DK LOB columns
	lobKind string
}

// writeSchema emits the table schema document. Element order and
// attribute spelling are stable so that two runs produce equal bytes.
func writeSchema(w io.Writer, p Profile, namespace string, columns []columnInfo) error {
	x := newXMLWriter(w)
	x.str(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	x.printf(`<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema" xmlns="%s" attributeFormDefault="unqualified" elementFormDefault="qualified" targetNamespace="%s">`+"\n",
		attrEscaper.Replace(namespace), attrEscaper.Replace(namespace))

	x.str("\t<xs:element name=\"table\">\n")
	x.str("\t\t<xs:complexType>\n")
	x.str("\t\t\t<xs:sequence>\n")
	x.str("\t\t\t\t<xs:element maxOccurs=\"unbounded\" minOccurs=\"0\" name=\"row\" type=\"rowType\"/>\n")
	x.str("\t\t\t</xs:sequence>\n")
	x.str("\t\t</xs:complexType>\n")
	x.str("\t</xs:element>\n")

	x.str("\t<xs:complexType name=\"rowType\">\n")
	x.str("\t\t<xs:sequence>\n")
	for _, c := range columns {
		x.str("\t\t\t<xs:element")
		if c.nullable && p.MinOccursOnNullable {
			x.str(` minOccurs="0"`)
		}
		x.printf(` name="c%d"`, c.index)
		if c.nullable {
			x.str(` nillable="true"`)
		}
		x.printf(" type=\"%s\"/>\n", c.token)
	}
	x.str("\t\t</xs:sequence>\n")
	x.str("\t</xs:complexType>\n")

	if p.LOBTypes {
		writeLOBType(x, typemap.ClobType, "CLOB", "xs:string")
		writeLOBType(x, typemap.BlobType, "BLOB", "xs:hexBinary")
	}
	if p.DateTypes {
		writeDateTypes(x)
	}

	x.str("</xs:schema>\n")
	return x.flush()
}

func writeLOBType(x *xmlWriter, name string, family string, base string) {
	x.printf("\t<xs:complexType name=\"%s\">\n", name)
	x.str("\t\t<xs:annotation>\n")
	x.printf("\t\t\t<xs:documentation>Type to refer %s types. Either inline or in a separate file.</xs:documentation>\n", family)
	x.str("\t\t</xs:annotation>\n")
	x.str("\t\t<xs:simpleContent>\n")
	x.printf("\t\t\t<xs:extension base=\"%s\">\n", base)
	x.str("\t\t\t\t<xs:attribute name=\"file\" type=\"xs:anyURI\"/>\n")
	x.str("\t\t\t\t<xs:attribute name=\"length\" type=\"xs:integer\"/>\n")
	x.str("\t\t\t\t<xs:attribute name=\"messageDigest\" type=\"xs:string\"/>\n")
	x.str("\t\t\t</xs:extension>\n")
	x.str("\t\t</xs:simpleContent>\n")
	x.str("\t</xs:complexType>\n")
}

func writeDateTypes(x *xmlWriter) {
	x.printf("\t<xs:simpleType name=\"%s\">\n", typemap.DateType)
	x.str("\t\t<xs:restriction base=\"xs:date\">\n")
	x.str("\t\t\t<xs:minInclusive value=\"0001-01-01Z\"/>\n")
	x.str("\t\t\t<xs:maxExclusive value=\"10000-01-01Z\"/>\n")
	x.str("\t\t\t<xs:pattern value=\"\\d{4}-\\d{2}-\\d{2}Z?\"/>\n")
	x.str("\t\t</xs:restriction>\n")
	x.str("\t</xs:simpleType>\n")

	x.printf("\t<xs:simpleType name=\"%s\">\n", typemap.TimeType)
	x.str("\t\t<xs:restriction base=\"xs:time\">\n")
	x.str("\t\t\t<xs:pattern value=\"\\d{2}:\\d{2}:\\d{2}(\\.\\d*)?Z?\"/>\n")
	x.str("\t\t</xs:restriction>\n")
	x.str("\t</xs:simpleType>\n")

	x.printf("\t<xs:simpleType name=\"%s\">\n", typemap.DateTimeType)
	x.str("\t\t<xs:restriction base=\"xs:dateTime\">\n")
	x.str("\t\t\t<xs:minInclusive value=\"0001-01-01T00:00:00.000000000Z\"/>\n")
	x.str("\t\t\t<xs:maxExclusive value=\"10000-01-01T00:00:00.000000000Z\"/>\n")
	x.str("\t\t\t<xs:pattern value=\"\\d{4}-\\d{2}-\\d{2}T\\d{2}:\\d{2}:\\d{2}(\\.\\d*)?Z?\"/>\n")
	x.str("\t\t</xs:restriction>\n")
	x.str("\t</xs:simpleType>\n")
}
