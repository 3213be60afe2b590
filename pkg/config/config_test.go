package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, ProfileSIARD2, cfg.Export.Profile)
	require.Equal(t, 4000, cfg.Export.ClobThreshold)
	require.EqualValues(t, 2000, cfg.Export.BlobThreshold)
	require.Equal(t, 1000, cfg.LOBs.MaxPerFolder)

	size, err := cfg.LOBs.MaxFolderSizeBytes()
	require.NoError(t, err)
	require.Zero(t, size)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
export:
  profile: siard2-external
  output: /data/out/db.siard
  digest_algorithm: SHA-256
lobs:
  max_per_folder: 50
  max_folder_size: 1000MB
report:
  enabled: true
  formats: [csv, xlsx]
logging:
  level: debug
  format: text
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, ProfileSIARD2External, cfg.Export.Profile)
	require.Equal(t, "/data/out/db.siard", cfg.Export.Output)
	require.Equal(t, "SHA-256", cfg.Export.DigestAlgorithm)
	require.Equal(t, 50, cfg.LOBs.MaxPerFolder)
	require.Equal(t, []string{"csv", "xlsx"}, cfg.Report.Formats)
	require.Equal(t, "zip", cfg.Export.Container)

	size, err := cfg.LOBs.MaxFolderSizeBytes()
	require.NoError(t, err)
	require.EqualValues(t, 1000*1024*1024, size)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SIARD_PROFILE", "siard1")
	t.Setenv("SIARD_THRESHOLD_CLOB", "100")
	t.Setenv("SIARD_THRESHOLD_BLOB", "50")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, ProfileSIARD1, cfg.Export.Profile)
	require.Equal(t, 100, cfg.Export.ClobThreshold)
	require.EqualValues(t, 50, cfg.Export.BlobThreshold)
	require.Equal(t, "warn", cfg.Logging.Level)
}

func TestEnvOverrideRejectsGarbage(t *testing.T) {
	t.Setenv("SIARD_THRESHOLD_CLOB", "lots")
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"unknown profile":      func(c *Config) { c.Export.Profile = "siard3" },
		"zero clob threshold":  func(c *Config) { c.Export.ClobThreshold = 0 },
		"bad digest":           func(c *Config) { c.Export.DigestAlgorithm = "CRC32" },
		"bad report format":    func(c *Config) { c.Report.Formats = []string{"pdf"} },
		"bad folder size":      func(c *Config) { c.LOBs.MaxFolderSize = "lots" },
		"external over folder": func(c *Config) { c.Export.Profile = ProfileSIARD2External; c.Export.Container = "folder" },
		"dk over zip":          func(c *Config) { c.Export.Profile = ProfileSIARDDK },
		"oss without endpoint": func(c *Config) { c.Publish.Target = PublishOSS },
		"s3 without bucket":    func(c *Config) { c.Publish.Target = PublishS3 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}

	require.NoError(t, DefaultConfig().Validate())
}

func TestInvalidYAML(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "export: [unterminated"))
	require.Error(t, err)
}
