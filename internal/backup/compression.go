package backup

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pierrec/lz4/v4"
)

// CompressionType identifies the compression applied to a plain backup.
type CompressionType string

const (
	CompressionNone CompressionType = "none"
	CompressionGzip CompressionType = "gzip"
	CompressionLZ4  CompressionType = "lz4"
)

// ParseCompression parses a compression flag value.
func ParseCompression(s string) (CompressionType, error) {
	switch CompressionType(s) {
	case CompressionNone, "":
		return CompressionNone, nil
	case CompressionGzip, CompressionLZ4:
		return CompressionType(s), nil
	default:
		return "", fmt.Errorf("unsupported compression %q (expected gzip or lz4)", s)
	}
}

// Extension returns the extra file extension for the compression type, with
// leading dot, or "" for none.
func (c CompressionType) Extension() string {
	switch c {
	case CompressionGzip:
		return ".gz"
	case CompressionLZ4:
		return ".lz4"
	default:
		return ""
	}
}

// CompressFile compresses src into dst using the given algorithm. src is
// left untouched.
func CompressFile(src, dst string, algorithm CompressionType) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open file for compression: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create compressed file: %w", err)
	}
	defer out.Close()

	var w io.WriteCloser
	switch algorithm {
	case CompressionGzip:
		w = gzip.NewWriter(out)
	case CompressionLZ4:
		w = lz4.NewWriter(out)
	default:
		return fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}

	if _, err := io.Copy(w, in); err != nil {
		w.Close()
		return fmt.Errorf("compression failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize compressed file: %w", err)
	}
	return out.Close()
}

// DecompressFile decompresses src into dst using the given algorithm.
func DecompressFile(src, dst string, algorithm CompressionType) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open compressed file: %w", err)
	}
	defer in.Close()

	var r io.Reader
	switch algorithm {
	case CompressionGzip:
		gz, err := gzip.NewReader(in)
		if err != nil {
			return fmt.Errorf("failed to read gzip header: %w", err)
		}
		defer gz.Close()
		r = gz
	case CompressionLZ4:
		r = lz4.NewReader(in)
	default:
		return fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create decompressed file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, r); err != nil {
		return fmt.Errorf("decompression failed: %w", err)
	}
	return out.Close()
}

// CompressionForPath infers the compression type from a file name.
func CompressionForPath(path string) CompressionType {
	switch {
	case strings.HasSuffix(path, ".gz"):
		return CompressionGzip
	case strings.HasSuffix(path, ".lz4"):
		return CompressionLZ4
	default:
		return CompressionNone
	}
}
