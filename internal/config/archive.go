package config

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Archive backends
const (
	ArchiveS3  = "s3"
	ArchiveDir = "dir"
)

// ArchiveConfig locates history archives.
type ArchiveConfig struct {
	Backend string `env:"ARCHIVE_BACKEND" yaml:"backend" default:"s3"`
	Bucket  string `env:"ARCHIVE_BUCKET" yaml:"bucket"`
	Prefix  string `env:"ARCHIVE_PREFIX" yaml:"prefix" default:"chat-history"`
	// Dir is the base directory of the dir backend
	Dir string `env:"ARCHIVE_DIR" yaml:"dir" default:"archive"`

	// Endpoint and UsePathStyle target S3-compatible stores
	Endpoint     string `env:"S3_ENDPOINT" yaml:"endpoint"`
	UsePathStyle bool   `env:"S3_USE_PATH_STYLE" yaml:"use_path_style" default:"false"`
}

// Validate checks the archive settings. Only the history commands use them,
// so AppConfig.Validate does not call it.
func (a ArchiveConfig) Validate() error {
	var result error

	switch a.Backend {
	case ArchiveS3:
		if a.Bucket == "" {
			result = multierror.Append(result, fmt.Errorf("archive.bucket (ARCHIVE_BUCKET) is required for the s3 backend"))
		}
	case ArchiveDir:
		if a.Dir == "" {
			result = multierror.Append(result, fmt.Errorf("archive.dir is required for the dir backend"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("archive backend must be one of [%s, %s], got %q", ArchiveS3, ArchiveDir, a.Backend))
	}

	return result
}
