package archive

import (
	"io"

	"github.com/fluxo/siard-archiver/pkg/digest"
)

// ExternalLOBStrategy keeps the main archive in one strategy (usually a
// ZIP) and auxiliary LOB containers in another (usually folders). Streams
// into auxiliary containers are hashed.
type ExternalLOBStrategy struct {
	main      Strategy
	auxiliary Strategy
	algorithm digest.Algorithm
}

// NewExternalLOBStrategy combines a main and an auxiliary strategy
func NewExternalLOBStrategy(main Strategy, auxiliary Strategy, alg digest.Algorithm) *ExternalLOBStrategy {
	return &ExternalLOBStrategy{main: main, auxiliary: auxiliary, algorithm: alg}
}

func (s *ExternalLOBStrategy) route(c Container) Strategy {
	if c.Role == RoleAuxiliary {
		return s.auxiliary
	}
	return s.main
}

// CreateOutputStream dispatches on the container role
func (s *ExternalLOBStrategy) CreateOutputStream(c Container, path string) (io.WriteCloser, error) {
	w, err := s.route(c).CreateOutputStream(c, path)
	if err != nil {
		return nil, err
	}
	if c.Role == RoleAuxiliary {
		return digest.NewWriter(w, s.algorithm), nil
	}
	return w, nil
}

// SupportsConcurrentStreams is true as long as LOBs go to a strategy that
// can hold streams open next to the main content stream
func (s *ExternalLOBStrategy) SupportsConcurrentStreams() bool {
	return s.auxiliary.SupportsConcurrentStreams()
}

// Setup dispatches on the container role
func (s *ExternalLOBStrategy) Setup(c Container) error {
	return s.route(c).Setup(c)
}

// Finish dispatches on the container role
func (s *ExternalLOBStrategy) Finish(c Container) error {
	return s.route(c).Finish(c)
}
