package backup

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionStats contains statistics about compression operations
type CompressionStats struct {
	OriginalSize     int64           `json:"original_size"`
	CompressedSize   int64           `json:"compressed_size"`
	CompressionRatio float64         `json:"compression_ratio"`
	Algorithm        CompressionType `json:"algorithm"`
	Level            int             `json:"level"`
	Duration         time.Duration   `json:"duration"`
}

// Compressor interface defines streaming compression for one algorithm
type Compressor interface {
	NewWriter(w io.Writer, level int) (io.WriteCloser, error)
	NewReader(r io.Reader) (io.ReadCloser, error)
	GetAlgorithm() CompressionType
	GetDefaultLevel() int
	GetMaxLevel() int
	GetMinLevel() int
}

// CompressionManager manages compression operations
type CompressionManager struct {
	compressors map[CompressionType]Compressor
}

// NewCompressionManager creates a new compression manager
func NewCompressionManager() *CompressionManager {
	cm := &CompressionManager{
		compressors: make(map[CompressionType]Compressor),
	}

	// Register available compressors
	cm.compressors[CompressionTypeGzip] = &GzipCompressor{}
	cm.compressors[CompressionTypeLZ4] = &LZ4Compressor{}
	cm.compressors[CompressionTypeZstd] = &ZstdCompressor{}

	return cm
}

// normalizeLevel clamps an out-of-range level to the compressor default
func normalizeLevel(c Compressor, level int) int {
	if level < c.GetMinLevel() || level > c.GetMaxLevel() {
		return c.GetDefaultLevel()
	}
	return level
}

// Compress compresses data using the specified algorithm and level
func (cm *CompressionManager) Compress(data []byte, algorithm CompressionType, level int) ([]byte, *CompressionStats, error) {
	if algorithm == CompressionTypeNone {
		return data, &CompressionStats{
			OriginalSize:     int64(len(data)),
			CompressedSize:   int64(len(data)),
			CompressionRatio: 1.0,
			Algorithm:        CompressionTypeNone,
			Level:            0,
			Duration:         0,
		}, nil
	}

	compressor, exists := cm.compressors[algorithm]
	if !exists {
		return nil, nil, NewCompressionError(fmt.Sprintf("unsupported compression algorithm: %s", algorithm), nil)
	}
	level = normalizeLevel(compressor, level)

	start := time.Now()
	var buf bytes.Buffer
	writer, err := compressor.NewWriter(&buf, level)
	if err != nil {
		return nil, nil, err
	}
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, nil, NewCompressionError("failed to write data to compressor", err)
	}
	if err := writer.Close(); err != nil {
		return nil, nil, NewCompressionError("failed to finalize compressed data", err)
	}

	compressed := buf.Bytes()
	stats := &CompressionStats{
		OriginalSize:     int64(len(data)),
		CompressedSize:   int64(len(compressed)),
		CompressionRatio: CalculateCompressionRatio(int64(len(data)), int64(len(compressed))),
		Algorithm:        algorithm,
		Level:            level,
		Duration:         time.Since(start),
	}

	return compressed, stats, nil
}

// Decompress decompresses data using the specified algorithm
func (cm *CompressionManager) Decompress(data []byte, algorithm CompressionType) ([]byte, error) {
	if algorithm == CompressionTypeNone {
		return data, nil
	}

	compressor, exists := cm.compressors[algorithm]
	if !exists {
		return nil, NewCompressionError(fmt.Sprintf("unsupported compression algorithm: %s", algorithm), nil)
	}

	reader, err := compressor.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	decompressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, NewCompressionError("failed to decompress data", err)
	}

	return decompressed, nil
}

// CompressFile streams src into a compressed file at dst
func (cm *CompressionManager) CompressFile(src, dst string, algorithm CompressionType, level int) (*CompressionStats, error) {
	start := time.Now()

	in, err := os.Open(src)
	if err != nil {
		return nil, NewCompressionError(fmt.Sprintf("failed to open %s", src), err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return nil, NewCompressionError(fmt.Sprintf("failed to create %s", dst), err)
	}
	defer out.Close()

	var written int64
	if algorithm == CompressionTypeNone {
		written, err = io.Copy(out, in)
		if err != nil {
			return nil, NewCompressionError("failed to copy dump", err)
		}
	} else {
		compressor, exists := cm.compressors[algorithm]
		if !exists {
			return nil, NewCompressionError(fmt.Sprintf("unsupported compression algorithm: %s", algorithm), nil)
		}
		level = normalizeLevel(compressor, level)

		writer, err := compressor.NewWriter(out, level)
		if err != nil {
			return nil, err
		}
		written, err = io.Copy(writer, in)
		if err != nil {
			writer.Close()
			return nil, NewCompressionError("failed to compress dump", err)
		}
		if err := writer.Close(); err != nil {
			return nil, NewCompressionError("failed to finalize compressed file", err)
		}
	}

	if err := out.Sync(); err != nil {
		return nil, NewCompressionError("failed to sync compressed file", err)
	}

	info, err := os.Stat(dst)
	if err != nil {
		return nil, NewCompressionError("failed to stat compressed file", err)
	}

	return &CompressionStats{
		OriginalSize:     written,
		CompressedSize:   info.Size(),
		CompressionRatio: CalculateCompressionRatio(written, info.Size()),
		Algorithm:        algorithm,
		Level:            level,
		Duration:         time.Since(start),
	}, nil
}

// OpenDecompressed opens a compressed file for streaming reads of its
// uncompressed content. The caller must close the returned reader.
func (cm *CompressionManager) OpenDecompressed(path string, algorithm CompressionType) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, NewCompressionError(fmt.Sprintf("failed to open %s", path), err)
	}

	if algorithm == CompressionTypeNone {
		return file, nil
	}

	compressor, exists := cm.compressors[algorithm]
	if !exists {
		file.Close()
		return nil, NewCompressionError(fmt.Sprintf("unsupported compression algorithm: %s", algorithm), nil)
	}

	reader, err := compressor.NewReader(file)
	if err != nil {
		file.Close()
		return nil, err
	}

	return &decompressReader{reader: reader, file: file}, nil
}

// decompressReader closes both the decompression reader and the backing file
type decompressReader struct {
	reader io.ReadCloser
	file   *os.File
}

func (d *decompressReader) Read(p []byte) (int, error) {
	return d.reader.Read(p)
}

func (d *decompressReader) Close() error {
	rerr := d.reader.Close()
	ferr := d.file.Close()
	if rerr != nil {
		return rerr
	}
	return ferr
}

// GetCompressor returns a compressor for the specified algorithm
func (cm *CompressionManager) GetCompressor(algorithm CompressionType) (Compressor, error) {
	compressor, exists := cm.compressors[algorithm]
	if !exists {
		return nil, NewCompressionError(fmt.Sprintf("unsupported compression algorithm: %s", algorithm), nil)
	}
	return compressor, nil
}

// GetSupportedAlgorithms returns a list of supported compression algorithms
func (cm *CompressionManager) GetSupportedAlgorithms() []CompressionType {
	algorithms := make([]CompressionType, 0, len(cm.compressors))
	for algorithm := range cm.compressors {
		algorithms = append(algorithms, algorithm)
	}
	return algorithms
}

// CalculateCompressionRatio calculates the compression ratio
func CalculateCompressionRatio(originalSize, compressedSize int64) float64 {
	if originalSize == 0 {
		return 1.0
	}
	return float64(compressedSize) / float64(originalSize)
}

// GzipCompressor implements gzip compression
type GzipCompressor struct{}

func (gc *GzipCompressor) NewWriter(w io.Writer, level int) (io.WriteCloser, error) {
	writer, err := gzip.NewWriterLevel(w, level)
	if err != nil {
		return nil, NewCompressionError("failed to create gzip writer", err)
	}
	return writer, nil
}

func (gc *GzipCompressor) NewReader(r io.Reader) (io.ReadCloser, error) {
	reader, err := gzip.NewReader(r)
	if err != nil {
		return nil, NewCompressionError("failed to create gzip reader", err)
	}
	return reader, nil
}

func (gc *GzipCompressor) GetAlgorithm() CompressionType {
	return CompressionTypeGzip
}

func (gc *GzipCompressor) GetDefaultLevel() int {
	return gzip.DefaultCompression
}

func (gc *GzipCompressor) GetMaxLevel() int {
	return gzip.BestCompression
}

func (gc *GzipCompressor) GetMinLevel() int {
	return gzip.BestSpeed
}

// LZ4Compressor implements LZ4 compression
type LZ4Compressor struct{}

func (lc *LZ4Compressor) NewWriter(w io.Writer, level int) (io.WriteCloser, error) {
	writer := lz4.NewWriter(w)

	// LZ4 has limited level options - use fast or high compression
	if level > 6 {
		if err := writer.Apply(lz4.CompressionLevelOption(lz4.Level9)); err != nil {
			return nil, NewCompressionError("failed to set LZ4 high compression", err)
		}
	}

	return writer, nil
}

func (lc *LZ4Compressor) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(lz4.NewReader(r)), nil
}

func (lc *LZ4Compressor) GetAlgorithm() CompressionType {
	return CompressionTypeLZ4
}

func (lc *LZ4Compressor) GetDefaultLevel() int {
	return 1 // Fast compression
}

func (lc *LZ4Compressor) GetMaxLevel() int {
	return 12
}

func (lc *LZ4Compressor) GetMinLevel() int {
	return 1
}

// ZstdCompressor implements Zstandard compression
type ZstdCompressor struct{}

func (zc *ZstdCompressor) NewWriter(w io.Writer, level int) (io.WriteCloser, error) {
	encoderLevel := zstd.SpeedFastest
	switch {
	case level <= 1:
		encoderLevel = zstd.SpeedFastest
	case level <= 3:
		encoderLevel = zstd.SpeedDefault
	case level <= 6:
		encoderLevel = zstd.SpeedBetterCompression
	default:
		encoderLevel = zstd.SpeedBestCompression
	}

	encoder, err := zstd.NewWriter(w, zstd.WithEncoderLevel(encoderLevel))
	if err != nil {
		return nil, NewCompressionError("failed to create zstd encoder", err)
	}
	return encoder, nil
}

func (zc *ZstdCompressor) NewReader(r io.Reader) (io.ReadCloser, error) {
	decoder, err := zstd.NewReader(r)
	if err != nil {
		return nil, NewCompressionError("failed to create zstd decoder", err)
	}
	return decoder.IOReadCloser(), nil
}

func (zc *ZstdCompressor) GetAlgorithm() CompressionType {
	return CompressionTypeZstd
}

func (zc *ZstdCompressor) GetDefaultLevel() int {
	return 3 // Balanced compression
}

func (zc *ZstdCompressor) GetMaxLevel() int {
	return 22
}

func (zc *ZstdCompressor) GetMinLevel() int {
	return 1
}
