package content

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fluxo/siard-archiver/pkg/archive"
	"github.com/fluxo/siard-archiver/pkg/digest"
	"github.com/fluxo/siard-archiver/pkg/logger"
	"github.com/fluxo/siard-archiver/pkg/model"
	"github.com/fluxo/siard-archiver/pkg/paths"
)

// Reference is what a table document records about a placed LOB
type Reference struct {
	// File is the value of the file attribute
	File string
	// Digest is the algorithm-prefixed digest, empty when not computed
	Digest string
	// Document is the SIARD-DK document number
	Document int
}

// Placement decides where LOB bytes go and writes them
type Placement interface {
	Write(ctx context.Context, lob *model.LargeObject) (Reference, error)
	Finish() error
}

// Deferrable placements can name a LOB before writing it. The writer
// relies on this when the strategy cannot hold a LOB stream open next to
// the content stream.
type Deferrable interface {
	Placement
	Resolve(lob *model.LargeObject) Reference
}

// copyLOB streams lob into path inside c. The digest is computed with alg
// unless alg is empty; a stream that already hashes its content is reused.
func copyLOB(s archive.Strategy, c archive.Container, path string, src io.Reader, alg digest.Algorithm) (n int64, sum string, err error) {
	out, err := s.CreateOutputStream(c, path)
	if err != nil {
		return 0, "", err
	}

	var d digest.Digester
	if alg != "" {
		if existing, ok := out.(digest.Digester); ok {
			d = existing
		} else {
			dw := digest.NewWriter(out, alg)
			out = dw
			d = dw
		}
	}

	n, err = io.Copy(out, src)
	if cerr := out.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	if err != nil {
		return n, "", err
	}
	if d != nil {
		sum = d.Algorithm().Format(d.Sum())
	}
	return n, sum, nil
}

func openAndCopy(s archive.Strategy, c archive.Container, lob *model.LargeObject, alg digest.Algorithm) (int64, string, error) {
	src, err := lob.Open()
	if err != nil {
		return 0, "", fmt.Errorf("failed to open lob source: %w", err)
	}
	n, sum, err := copyLOB(s, c, lob.Path, src, alg)
	if cerr := src.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return n, sum, err
}

// DirectPlacement writes LOBs into the main container
type DirectPlacement struct {
	strategy  archive.Strategy
	main      archive.Container
	algorithm digest.Algorithm
}

var _ Deferrable = (*DirectPlacement)(nil)

// NewDirectPlacement creates a placement into main. An empty algorithm
// disables digests.
func NewDirectPlacement(s archive.Strategy, main archive.Container, alg digest.Algorithm) *DirectPlacement {
	return &DirectPlacement{strategy: s, main: main, algorithm: alg}
}

// Resolve returns the reference without writing anything
func (p *DirectPlacement) Resolve(lob *model.LargeObject) Reference {
	return Reference{File: lob.Path}
}

func (p *DirectPlacement) Write(_ context.Context, lob *model.LargeObject) (Reference, error) {
	_, sum, err := openAndCopy(p.strategy, p.main, lob, p.algorithm)
	if err != nil {
		return Reference{}, err
	}
	return Reference{File: lob.Path, Digest: sum}, nil
}

// Finish is a no-op: the main container belongs to the writer
func (p *DirectPlacement) Finish() error {
	return nil
}

// RotationLimits bound one auxiliary container
type RotationLimits struct {
	MaxPerFolder int
	// MaxSize is in bytes; 0 means unbounded
	MaxSize int64
}

// RotatingPlacement spreads LOBs over a sequence of auxiliary containers
// next to the main archive
type RotatingPlacement struct {
	strategy  archive.Strategy
	namer     paths.ContainerNamer
	main      archive.Container
	limits    RotationLimits
	algorithm digest.Algorithm
	log       *logger.Logger

	current    *archive.Container
	size       int64
	count      int
	containers []archive.Container
}

// NewRotatingPlacement fails with UnsupportedFeature when the strategy
// cannot keep a LOB stream open next to the content stream
func NewRotatingPlacement(s archive.Strategy, namer paths.ContainerNamer, main archive.Container, limits RotationLimits, alg digest.Algorithm, log *logger.Logger) (*RotatingPlacement, error) {
	if !s.SupportsConcurrentStreams() {
		return nil, &Error{Kind: KindUnsupportedFeature, Err: errors.New("external LOB folders need a strategy with concurrent streams")}
	}
	if limits.MaxPerFolder <= 0 {
		return nil, &Error{Kind: KindUnsupportedFeature, Err: fmt.Errorf("invalid max LOBs per folder: %d", limits.MaxPerFolder)}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RotatingPlacement{
		strategy:  s,
		namer:     namer,
		main:      main,
		limits:    limits,
		algorithm: alg,
		log:       log,
	}, nil
}

func (p *RotatingPlacement) open() error {
	next := p.namer.NextContainer(p.main)
	if err := p.strategy.Setup(next); err != nil {
		return err
	}
	p.current = &next
	p.size = 0
	p.count = 0
	p.containers = append(p.containers, next)
	return nil
}

func (p *RotatingPlacement) Write(ctx context.Context, lob *model.LargeObject) (Reference, error) {
	cl := p.log.WithContext(ctx).WithComponent("lob_placement")

	if p.current == nil {
		if err := p.open(); err != nil {
			return Reference{}, err
		}
	}

	bounded := p.limits.MaxSize > 0
	if bounded && lob.Length > p.limits.MaxSize {
		cl.LogWarn("OversizedLOB", "LOB exceeds the folder size limit and is written whole", logger.Fields{
			"lob":      lob.Path,
			"length":   lob.Length,
			"max_size": p.limits.MaxSize,
		})
	}

	// An empty container takes any LOB, so an oversized one never leaves
	// an empty folder behind.
	full := bounded && p.count > 0 && p.size+lob.Length >= p.limits.MaxSize
	if full || p.count >= p.limits.MaxPerFolder {
		previous := *p.current
		if err := p.strategy.Finish(previous); err != nil {
			return Reference{}, err
		}
		p.current = nil
		if err := p.open(); err != nil {
			return Reference{}, err
		}
		cl.LogContainerRotated("LOB container rotated", logger.Fields{
			"previous": previous.Name(),
			"current":  p.current.Name(),
		})
	}

	n, sum, err := openAndCopy(p.strategy, *p.current, lob, p.algorithm)
	if err != nil {
		return Reference{}, err
	}
	p.size += n
	p.count++

	return Reference{File: "../" + p.current.Name() + "/" + lob.Path, Digest: sum}, nil
}

// Finish closes the open auxiliary container, if any
func (p *RotatingPlacement) Finish() error {
	if p.current == nil {
		return nil
	}
	c := *p.current
	p.current = nil
	return p.strategy.Finish(c)
}

// Containers lists every auxiliary container opened so far
func (p *RotatingPlacement) Containers() []archive.Container {
	return append([]archive.Container(nil), p.containers...)
}
