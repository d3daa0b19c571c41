package output

import (
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionType defines the compression algorithm applied to the output stream
type CompressionType string

const (
	CompressionNone   CompressionType = "none"
	CompressionGzip   CompressionType = "gzip"
	CompressionSnappy CompressionType = "snappy"
	CompressionZstd   CompressionType = "zstd"
	CompressionLZ4    CompressionType = "lz4"
)

// ParseCompressionType validates a compression name; empty means none.
func ParseCompressionType(name string) (CompressionType, error) {
	switch c := CompressionType(name); c {
	case "":
		return CompressionNone, nil
	case CompressionNone, CompressionGzip, CompressionSnappy, CompressionZstd, CompressionLZ4:
		return c, nil
	default:
		return "", fmt.Errorf("unsupported compression type: %s", name)
	}
}

// NewCompressedWriter wraps w in a streaming compressor. Closing the result
// flushes the compressor; it never closes w.
func NewCompressedWriter(w io.Writer, compressionType CompressionType) (io.WriteCloser, error) {
	switch compressionType {
	case CompressionNone, "":
		return nopWriteCloser{w}, nil
	case CompressionGzip:
		return gzip.NewWriter(w), nil
	case CompressionSnappy:
		return snappy.NewBufferedWriter(w), nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("zstd writer creation failed: %w", err)
		}
		return enc, nil
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported compression type: %s", compressionType)
	}
}

// NewDecompressedReader reverses NewCompressedWriter
func NewDecompressedReader(r io.Reader, compressionType CompressionType) (io.ReadCloser, error) {
	switch compressionType {
	case CompressionNone, "":
		return io.NopCloser(r), nil
	case CompressionGzip:
		reader, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip reader creation failed: %w", err)
		}
		return reader, nil
	case CompressionSnappy:
		return io.NopCloser(snappy.NewReader(r)), nil
	case CompressionZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd reader creation failed: %w", err)
		}
		return dec.IOReadCloser(), nil
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("unsupported compression type: %s", compressionType)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
