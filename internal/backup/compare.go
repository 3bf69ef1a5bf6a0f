package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// ChangeDetector decides whether a fresh dump differs from the previous
// artifact. Both sides are reduced to a SHA-256 digest of their uncompressed
// bytes, so the comparison is insensitive to compression algorithm, level,
// and encryption of the stored baseline.
type ChangeDetector struct {
	compression *CompressionManager
	encryption  *EncryptionManager
}

// CompareResult describes one change-detection decision.
type CompareResult struct {
	Changed          bool
	DumpChecksum     string
	PreviousChecksum string

	// Baseline is the artifact name the dump was compared against. Empty
	// when no prior artifact existed.
	Baseline string
}

// NewChangeDetector creates a new change detector.
func NewChangeDetector(compression *CompressionManager, encryption *EncryptionManager) *ChangeDetector {
	return &ChangeDetector{
		compression: compression,
		encryption:  encryption,
	}
}

// HashFile returns the SHA-256 digest and size of a plain file, normally the
// fresh mysqldump output.
func (cd *ChangeDetector) HashFile(path string) (string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", 0, NewCompareError(fmt.Sprintf("failed to open dump %s", path), err)
	}
	defer file.Close()

	hash := sha256.New()
	size, err := io.Copy(hash, file)
	if err != nil {
		return "", 0, NewCompareError(fmt.Sprintf("failed to hash dump %s", path), err)
	}

	return hex.EncodeToString(hash.Sum(nil)), size, nil
}

// HashArtifact returns the SHA-256 digest of an archived artifact's
// uncompressed content, decrypting first when the artifact is encrypted.
func (cd *ChangeDetector) HashArtifact(artifact *Artifact) (string, error) {
	if artifact == nil {
		return "", NewCompareError("artifact is nil", nil)
	}

	reader, err := cd.OpenPlaintext(artifact)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, reader); err != nil {
		return "", NewCompareError(fmt.Sprintf("failed to hash artifact %s", artifact.Name), err)
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

// Compare hashes the dump and the previous artifact. A nil previous means no
// baseline exists, so the dump counts as changed. An unreadable baseline is
// returned as an error; the caller decides whether to fail open.
func (cd *ChangeDetector) Compare(dumpPath string, previous *Artifact) (*CompareResult, error) {
	dumpChecksum, _, err := cd.HashFile(dumpPath)
	if err != nil {
		return nil, err
	}

	result := &CompareResult{
		Changed:      true,
		DumpChecksum: dumpChecksum,
	}

	if previous == nil {
		return result, nil
	}

	previousChecksum, err := cd.HashArtifact(previous)
	if err != nil {
		return nil, err
	}

	result.Baseline = previous.Name
	result.PreviousChecksum = previousChecksum
	result.Changed = dumpChecksum != previousChecksum

	return result, nil
}

// OpenPlaintext opens an artifact for streaming reads of its original
// uncompressed bytes, decrypting and decompressing as needed. Restore
// uses this to recover the SQL text from a stored artifact.
func (cd *ChangeDetector) OpenPlaintext(artifact *Artifact) (io.ReadCloser, error) {
	if !artifact.Encrypted {
		return cd.compression.OpenDecompressed(artifact.Path, artifact.Compression)
	}

	if cd.encryption == nil || !cd.encryption.IsEnabled() {
		return nil, NewCompareError(fmt.Sprintf("artifact %s is encrypted but encryption is not configured", artifact.Name), nil)
	}

	decrypted, err := cd.encryption.OpenDecrypted(artifact.Path)
	if err != nil {
		return nil, err
	}

	if artifact.Compression == CompressionTypeNone {
		return decrypted, nil
	}

	compressor, err := cd.compression.GetCompressor(artifact.Compression)
	if err != nil {
		decrypted.Close()
		return nil, err
	}

	decompressed, err := compressor.NewReader(decrypted)
	if err != nil {
		decrypted.Close()
		return nil, NewCompressionError(fmt.Sprintf("failed to decompress artifact %s", artifact.Name), err)
	}

	return &chainedReadCloser{reader: decompressed, inner: decrypted}, nil
}

// chainedReadCloser closes the decompression layer and the decrypted source
// beneath it.
type chainedReadCloser struct {
	reader io.ReadCloser
	inner  io.ReadCloser
}

func (c *chainedReadCloser) Read(p []byte) (int, error) {
	return c.reader.Read(p)
}

func (c *chainedReadCloser) Close() error {
	rerr := c.reader.Close()
	ierr := c.inner.Close()
	if rerr != nil {
		return rerr
	}
	return ierr
}
