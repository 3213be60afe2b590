package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Profile names accepted in the configuration
const (
	ProfileSIARD1         = "siard1"
	ProfileSIARD2         = "siard2"
	ProfileSIARD2External = "siard2-external"
	ProfileSIARDDK        = "siard-dk"
)

// Publish targets
const (
	PublishNone = "none"
	PublishOSS  = "oss"
	PublishS3   = "s3"
)

// Config represents the complete exporter configuration
type Config struct {
	Export  ExportConfig  `yaml:"export"`
	LOBs    LOBConfig     `yaml:"lobs"`
	Storage StorageConfig `yaml:"storage"`
	Report  ReportConfig  `yaml:"report"`
	Publish PublishConfig `yaml:"publish"`
	Logging LoggingConfig `yaml:"logging"`
}

// ExportConfig selects the archive flavour and its output
type ExportConfig struct {
	Profile          string `yaml:"profile" validate:"oneof=siard1 siard2 siard2-external siard-dk"`
	Output           string `yaml:"output" validate:"required"`
	Container        string `yaml:"container" validate:"oneof=zip folder"`
	Compression      string `yaml:"compression" validate:"oneof=deflate store"`
	CompressionLevel int    `yaml:"compression_level" validate:"min=-2,max=9"`
	DigestAlgorithm  string `yaml:"digest_algorithm" validate:"oneof=MD5 SHA-1 SHA-256 SHA-512 BLAKE2B-512 SHA3-256"`
	ClobThreshold    int    `yaml:"clob_threshold" validate:"gt=0"`
	BlobThreshold    int64  `yaml:"blob_threshold" validate:"gt=0"`
}

// LOBConfig bounds the auxiliary LOB folders
type LOBConfig struct {
	MaxPerFolder  int    `yaml:"max_per_folder" validate:"gt=0"`
	MaxFolderSize string `yaml:"max_folder_size"`
}

// MaxFolderSizeBytes parses the human readable folder bound; zero means
// unbounded
func (c LOBConfig) MaxFolderSizeBytes() (int64, error) {
	if c.MaxFolderSize == "" || c.MaxFolderSize == "0" {
		return 0, nil
	}
	var size datasize.ByteSize
	if err := size.UnmarshalText([]byte(c.MaxFolderSize)); err != nil {
		return 0, fmt.Errorf("invalid max folder size %q: %w", c.MaxFolderSize, err)
	}
	return int64(size.Bytes()), nil
}

// StorageConfig contains the working directory settings
type StorageConfig struct {
	WorkDirectory    string        `yaml:"work_directory" validate:"required"`
	CleanupOnFailure bool          `yaml:"cleanup_on_failure"`
	Retention        time.Duration `yaml:"retention"`
}

// ReportConfig controls the per-table export report
type ReportConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Formats   []string `yaml:"formats" validate:"dive,oneof=csv xlsx"`
	Directory string   `yaml:"directory"`
}

// PublishConfig controls where a finished archive is uploaded
type PublishConfig struct {
	Target          string        `yaml:"target" validate:"oneof=none oss s3"`
	Prefix          string        `yaml:"prefix"`
	MaxRetries      int           `yaml:"max_retries" validate:"min=0"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxElapsedTime  time.Duration `yaml:"max_elapsed_time"`
	OSS             OSSConfig     `yaml:"oss"`
	S3              S3Config      `yaml:"s3"`
}

// OSSConfig contains Alibaba Cloud OSS settings
type OSSConfig struct {
	Endpoint        string        `yaml:"endpoint"`
	Bucket          string        `yaml:"bucket"`
	AccessKeyID     string        `yaml:"access_key_id"`
	AccessKeySecret string        `yaml:"access_key_secret"`
	PartSize        int64         `yaml:"part_size" validate:"min=0"`
	SignedURLExpiry time.Duration `yaml:"signed_url_expiry"`
}

// S3Config contains S3 settings; credentials come from the environment
type S3Config struct {
	Region   string `yaml:"region"`
	Bucket   string `yaml:"bucket"`
	Endpoint string `yaml:"endpoint"`
	PartSize int64  `yaml:"part_size" validate:"min=0"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level         string `yaml:"level" validate:"oneof=debug info warn warning error fatal"`
	Format        string `yaml:"format" validate:"oneof=json text"`
	Output        string `yaml:"output"`
	EnableTracing bool   `yaml:"enable_tracing"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Export: ExportConfig{
			Profile:          ProfileSIARD2,
			Output:           "archive.siard",
			Container:        "zip",
			Compression:      "deflate",
			CompressionLevel: -1,
			DigestAlgorithm:  "MD5",
			ClobThreshold:    4000,
			BlobThreshold:    2000,
		},
		LOBs: LOBConfig{
			MaxPerFolder:  1000,
			MaxFolderSize: "0",
		},
		Storage: StorageConfig{
			WorkDirectory:    "/tmp/siard-archiver",
			CleanupOnFailure: true,
			Retention:        24 * time.Hour,
		},
		Report: ReportConfig{
			Enabled: true,
			Formats: []string{"csv"},
		},
		Publish: PublishConfig{
			Target:          PublishNone,
			Prefix:          "archives",
			MaxRetries:      3,
			InitialInterval: time.Second,
			MaxElapsedTime:  10 * time.Minute,
			OSS: OSSConfig{
				PartSize:        10 * 1024 * 1024, // 10MB
				SignedURLExpiry: 7 * 24 * time.Hour,
			},
			S3: S3Config{
				Region:   "us-east-1",
				PartSize: 10 * 1024 * 1024, // 10MB
			},
		},
		Logging: LoggingConfig{
			Level:         "info",
			Format:        "json",
			Output:        "stdout",
			EnableTracing: false,
		},
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// If config file doesn't exist, start from the defaults
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override with environment variables if set
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides
func (c *Config) applyEnvOverrides() error {
	if val := os.Getenv("SIARD_PROFILE"); val != "" {
		c.Export.Profile = val
	}
	if val := os.Getenv("SIARD_OUTPUT"); val != "" {
		c.Export.Output = val
	}
	if val := os.Getenv("SIARD_THRESHOLD_CLOB"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid SIARD_THRESHOLD_CLOB: %w", err)
		}
		c.Export.ClobThreshold = n
	}
	if val := os.Getenv("SIARD_THRESHOLD_BLOB"); val != "" {
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid SIARD_THRESHOLD_BLOB: %w", err)
		}
		c.Export.BlobThreshold = n
	}
	if val := os.Getenv("OSS_ENDPOINT"); val != "" {
		c.Publish.OSS.Endpoint = val
	}
	if val := os.Getenv("OSS_BUCKET"); val != "" {
		c.Publish.OSS.Bucket = val
	}
	if val := os.Getenv("OSS_ACCESS_KEY_ID"); val != "" {
		c.Publish.OSS.AccessKeyID = val
	}
	if val := os.Getenv("OSS_ACCESS_KEY_SECRET"); val != "" {
		c.Publish.OSS.AccessKeySecret = val
	}
	if val := os.Getenv("S3_BUCKET"); val != "" {
		c.Publish.S3.Bucket = val
	}
	if val := os.Getenv("S3_ENDPOINT"); val != "" {
		c.Publish.S3.Endpoint = val
	}
	if val := os.Getenv("AWS_DEFAULT_REGION"); val != "" {
		c.Publish.S3.Region = val
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Logging.Level = val
	}
	return nil
}

var validate = validator.New()

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, err := c.LOBs.MaxFolderSizeBytes(); err != nil {
		return err
	}
	if c.Export.Profile == ProfileSIARD2External && c.Export.Container != "zip" {
		return fmt.Errorf("profile %s requires a zip main container", c.Export.Profile)
	}
	if c.Export.Profile == ProfileSIARDDK && c.Export.Container != "folder" {
		return fmt.Errorf("profile %s requires a folder main container", c.Export.Profile)
	}
	switch c.Publish.Target {
	case PublishOSS:
		if c.Publish.OSS.Endpoint == "" {
			return fmt.Errorf("OSS endpoint is required")
		}
		if c.Publish.OSS.Bucket == "" {
			return fmt.Errorf("OSS bucket is required")
		}
		if c.Publish.OSS.AccessKeyID == "" {
			return fmt.Errorf("OSS access key ID is required")
		}
		if c.Publish.OSS.AccessKeySecret == "" {
			return fmt.Errorf("OSS access key secret is required")
		}
	case PublishS3:
		if c.Publish.S3.Bucket == "" {
			return fmt.Errorf("S3 bucket is required")
		}
	}
	return nil
}
