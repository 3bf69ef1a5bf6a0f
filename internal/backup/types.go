package backup

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the date prefix used in artifact names
const DateLayout = "2006-01-02"

// Artifact represents one compressed database dump on disk or on a backend
type Artifact struct {
	Database    string          `json:"database"`
	Host        string          `json:"host,omitempty"`
	Date        time.Time       `json:"date"`
	Name        string          `json:"name"`
	Path        string          `json:"path,omitempty"`
	Size        int64           `json:"size"`
	Checksum    string          `json:"checksum,omitempty"`
	Compression CompressionType `json:"compression"`
	Encrypted   bool            `json:"encrypted"`
}

// ArtifactName renders the canonical artifact file name for a database dump,
// e.g. "2026-08-21_shop.sql.gz".
func ArtifactName(date time.Time, database string, compression CompressionType, encrypted bool) string {
	name := date.Format(DateLayout) + "_" + database + ".sql" + compression.Extension()
	if encrypted {
		name += ".enc"
	}
	return name
}

// ParseArtifactName parses an artifact file name back into its parts. The
// returned Artifact carries Database, Date, Compression and Encrypted only.
func ParseArtifactName(name string) (Artifact, error) {
	var art Artifact
	art.Name = name

	if len(name) < len(DateLayout)+1 || name[len(DateLayout)] != '_' {
		return art, NewValidationError(fmt.Sprintf("artifact name %q has no date prefix", name), nil)
	}

	date, err := time.Parse(DateLayout, name[:len(DateLayout)])
	if err != nil {
		return art, NewValidationError(fmt.Sprintf("artifact name %q has an invalid date", name), err)
	}
	art.Date = date

	rest := name[len(DateLayout)+1:]
	if strings.HasSuffix(rest, ".enc") {
		art.Encrypted = true
		rest = strings.TrimSuffix(rest, ".enc")
	}

	switch {
	case strings.HasSuffix(rest, ".sql.gz"):
		art.Compression = CompressionTypeGzip
		rest = strings.TrimSuffix(rest, ".sql.gz")
	case strings.HasSuffix(rest, ".sql.zst"):
		art.Compression = CompressionTypeZstd
		rest = strings.TrimSuffix(rest, ".sql.zst")
	case strings.HasSuffix(rest, ".sql.lz4"):
		art.Compression = CompressionTypeLZ4
		rest = strings.TrimSuffix(rest, ".sql.lz4")
	case strings.HasSuffix(rest, ".sql"):
		art.Compression = CompressionTypeNone
		rest = strings.TrimSuffix(rest, ".sql")
	default:
		return art, NewValidationError(fmt.Sprintf("artifact name %q has an unknown suffix", name), nil)
	}

	if rest == "" {
		return art, NewValidationError(fmt.Sprintf("artifact name %q has no database name", name), nil)
	}
	art.Database = rest

	return art, nil
}

// RemoteArtifact describes an artifact as listed by a storage backend
type RemoteArtifact struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// ResultStatus is the per-database outcome of a run
type ResultStatus string

const (
	StatusUploaded  ResultStatus = "UPLOADED"
	StatusUnchanged ResultStatus = "UNCHANGED"
	StatusFailed    ResultStatus = "FAILED"
)

// DatabaseResult records what happened to one database during a run
type DatabaseResult struct {
	Host      string        `json:"host"`
	Database  string        `json:"database"`
	Status    ResultStatus  `json:"status"`
	Artifact  string        `json:"artifact,omitempty"`
	DumpSize  int64         `json:"dump_size,omitempty"`
	StoreSize int64         `json:"store_size,omitempty"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

// Enums and constants
type CompressionType string

const (
	CompressionTypeNone CompressionType = "NONE"
	CompressionTypeGzip CompressionType = "GZIP"
	CompressionTypeLZ4  CompressionType = "LZ4"
	CompressionTypeZstd CompressionType = "ZSTD"
)

// Extension returns the file name suffix for the compression type
func (c CompressionType) Extension() string {
	switch c {
	case CompressionTypeGzip:
		return ".gz"
	case CompressionTypeLZ4:
		return ".lz4"
	case CompressionTypeZstd:
		return ".zst"
	default:
		return ""
	}
}

// normalizeToken folds a configuration token for comparison.
func normalizeToken(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ParseCompressionType maps a configuration string to a CompressionType
func ParseCompressionType(s string) (CompressionType, error) {
	switch normalizeToken(s) {
	case "", "gzip", "gz":
		return CompressionTypeGzip, nil
	case "zstd", "zst":
		return CompressionTypeZstd, nil
	case "lz4":
		return CompressionTypeLZ4, nil
	case "none":
		return CompressionTypeNone, nil
	default:
		return "", NewConfigurationError(fmt.Sprintf("unknown compression type %q", s), nil)
	}
}
