package content

import (
	"github.com/fluxo/siard-archiver/pkg/paths"
	"github.com/fluxo/siard-archiver/pkg/typemap"
)

// Profile is the capability set that distinguishes the archive flavours
// sharing one Writer
type Profile struct {
	Name          string
	NamespaceBase string
	Mapper        *typemap.Mapper
	Thresholds    typemap.Thresholds

	// AlwaysExternalBinary sends every non-empty binary cell to a LOB
	AlwaysExternalBinary bool
	// Digests adds messageDigest to LOB references written synchronously
	Digests bool
	// MinOccursOnNullable marks nullable columns optional in the schema
	MinOccursOnNullable bool
	// LOBTypes declares clobType and blobType in the schema
	LOBTypes bool
	// DateTypes declares the year-bounded dateType, timeType and dateTimeType
	DateTypes bool
	// SchemaAtOpen writes the schema document before the rows
	SchemaAtOpen bool
	// Documents stores binary LOBs as numbered documents tracked by the
	// ledger and keeps character LOBs inline
	Documents bool
}

// SIARD1 returns the SIARD 1.0 profile
func SIARD1(th typemap.Thresholds) Profile {
	return Profile{
		Name:                "siard1",
		NamespaceBase:       paths.SIARD1Namespace,
		Mapper:              typemap.SQL99(th),
		Thresholds:          th,
		MinOccursOnNullable: true,
		LOBTypes:            true,
	}
}

// SIARD2 returns the SIARD 2 profile
func SIARD2(th typemap.Thresholds) Profile {
	return Profile{
		Name:                "siard2",
		NamespaceBase:       paths.SIARD2Namespace,
		Mapper:              typemap.SQL2008(th),
		Thresholds:          th,
		Digests:             true,
		MinOccursOnNullable: true,
		LOBTypes:            true,
		DateTypes:           true,
	}
}

// SIARD2External returns the SIARD 2 profile that keeps LOBs outside the
// main archive
func SIARD2External(th typemap.Thresholds) Profile {
	p := SIARD2(th)
	p.Name = "siard2-external"
	p.AlwaysExternalBinary = true
	return p
}

// SIARDDK returns the Danish national archive profile
func SIARDDK() Profile {
	return Profile{
		Name:          "siard-dk",
		NamespaceBase: paths.DKNamespace,
		Mapper:        typemap.DK(),
		Thresholds:    typemap.DefaultThresholds(),
		SchemaAtOpen:  true,
		Documents:     true,
	}
}
