package archive

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
)

// Role tells the main archive apart from LOB overflow containers
type Role int

const (
	RoleMain Role = iota
	RoleAuxiliary
)

// String returns the string representation of the role
func (r Role) String() string {
	switch r {
	case RoleMain:
		return "main"
	case RoleAuxiliary:
		return "auxiliary"
	default:
		return "unknown"
	}
}

// Container is a physical output target
type Container struct {
	Root string
	Role Role
}

// Main returns the main container rooted at path
func Main(path string) Container {
	return Container{Root: path, Role: RoleMain}
}

// Auxiliary returns an auxiliary container rooted at path
func Auxiliary(path string) Container {
	return Container{Root: path, Role: RoleAuxiliary}
}

// Name returns the last element of the container root
func (c Container) Name() string {
	return filepath.Base(c.Root)
}

// Stem returns the container name without its extension
func (c Container) Stem() string {
	name := c.Name()
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// ErrStreamBusy is returned when a strategy that holds one stream at a time
// is asked for a second one
var ErrStreamBusy = errors.New("another output stream is still open")

// ErrNotSetUp is returned when writing to a container before Setup
var ErrNotSetUp = errors.New("container is not set up")

// Strategy creates output streams inside containers
type Strategy interface {
	// CreateOutputStream opens path inside the container for writing
	CreateOutputStream(c Container, path string) (io.WriteCloser, error)

	// SupportsConcurrentStreams reports whether several streams may be
	// open at the same time
	SupportsConcurrentStreams() bool

	// Setup prepares a container before its first stream
	Setup(c Container) error

	// Finish closes a container; no stream may be created afterwards
	Finish(c Container) error
}
