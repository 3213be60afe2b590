package export

import (
	"fmt"
	"path/filepath"

	"github.com/fluxo/siard-archiver/pkg/archive"
	"github.com/fluxo/siard-archiver/pkg/config"
	"github.com/fluxo/siard-archiver/pkg/content"
	"github.com/fluxo/siard-archiver/pkg/digest"
	"github.com/fluxo/siard-archiver/pkg/ledger"
	"github.com/fluxo/siard-archiver/pkg/logger"
	"github.com/fluxo/siard-archiver/pkg/paths"
	"github.com/fluxo/siard-archiver/pkg/typemap"
)

// Profile returns the content profile named in the configuration
func Profile(cfg *config.ExportConfig) (content.Profile, error) {
	th := typemap.Thresholds{Clob: cfg.ClobThreshold, Blob: cfg.BlobThreshold}
	switch cfg.Profile {
	case config.ProfileSIARD1:
		return content.SIARD1(th), nil
	case config.ProfileSIARD2:
		return content.SIARD2(th), nil
	case config.ProfileSIARD2External:
		return content.SIARD2External(th), nil
	case config.ProfileSIARDDK:
		return content.SIARDDK(), nil
	}
	return content.Profile{}, fmt.Errorf("unknown profile: %s", cfg.Profile)
}

func mainStrategy(cfg *config.ExportConfig) (archive.Strategy, error) {
	if cfg.Container == "folder" {
		return archive.NewFolderStrategy(), nil
	}
	return archive.NewZipStrategy(archive.Compression(cfg.Compression), cfg.CompressionLevel)
}

// NewWriter wires a content writer for the configured profile with its
// main container at mainPath
func NewWriter(cfg *config.Config, mainPath string, log *logger.Logger) (*content.Writer, error) {
	profile, err := Profile(&cfg.Export)
	if err != nil {
		return nil, err
	}
	alg, err := digest.Parse(cfg.Export.DigestAlgorithm)
	if err != nil {
		return nil, err
	}
	strategy, err := mainStrategy(&cfg.Export)
	if err != nil {
		return nil, err
	}

	main := archive.Main(mainPath)
	opts := content.Options{
		Profile:  profile,
		Strategy: strategy,
		Paths:    paths.SIARD{},
		Main:     main,
		Digest:   alg,
		Logger:   log,
	}

	switch cfg.Export.Profile {
	case config.ProfileSIARD2External:
		maxSize, err := cfg.LOBs.MaxFolderSizeBytes()
		if err != nil {
			return nil, err
		}
		external := archive.NewExternalLOBStrategy(strategy, archive.NewFolderStrategy(), alg)
		layout := paths.NewExternal()
		placement, err := content.NewRotatingPlacement(external, layout, main, content.RotationLimits{
			MaxPerFolder: cfg.LOBs.MaxPerFolder,
			MaxSize:      maxSize,
		}, alg, log)
		if err != nil {
			return nil, err
		}
		opts.Strategy = external
		opts.Paths = layout
		opts.Placement = placement
	case config.ProfileSIARDDK:
		l := ledger.New()
		opts.Paths = paths.NewDK(l)
		opts.Ledger = l
		opts.Index = content.NewFileIndex(filepath.Base(mainPath))
	}

	return content.NewWriter(opts)
}
