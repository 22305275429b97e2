// Package codecs provides the compression codecs with which checkpoint
// files may be written.
package codecs

import (
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
)

// Codec names a compression codec.
type Codec string

const (
	None      Codec = "none"
	Gzip      Codec = "gzip"
	Snappy    Codec = "snappy"
	Zstandard Codec = "zstandard"
)

// DefaultZstandardLevel is the default ZstandardLevel.
const DefaultZstandardLevel = 3

// ZstandardLevel is the compression level of Zstandard Compressors.
var ZstandardLevel = DefaultZstandardLevel

// Validate returns an error if the Codec is not known, or was not enabled
// at compile time. Zstandard also validates ZstandardLevel.
func (c Codec) Validate() error {
	switch c {
	case None, Gzip, Snappy:
		return nil
	case Zstandard:
		return zstdCheckLevel(ZstandardLevel)
	default:
		return fmt.Errorf("unsupported codec %q", string(c))
	}
}

// Decompressor is a ReadCloser where Close closes and releases Decompressor
// state, but does not Close or affect the underlying Reader.
type Decompressor io.ReadCloser

// Compressor is a WriteCloser where Close closes and releases Compressor
// state, potentially flushing final content to the underlying Writer,
// but does not Close or otherwise affect the underlying Writer.
type Compressor io.WriteCloser

// NewReader returns a Decompressor of the Reader encoded with the Codec.
func NewReader(r io.Reader, codec Codec) (Decompressor, error) {
	switch codec {
	case None:
		return io.NopCloser(r), nil
	case Gzip:
		return gzip.NewReader(r)
	case Snappy:
		return io.NopCloser(snappy.NewReader(r)), nil
	case Zstandard:
		return zstdNewReader(r)
	default:
		return nil, fmt.Errorf("unsupported codec %q", string(codec))
	}
}

// NewWriter returns a Compressor wrapping the Writer encoding with the Codec.
func NewWriter(w io.Writer, codec Codec) (Compressor, error) {
	switch codec {
	case None:
		return nopWriteCloser{w}, nil
	case Gzip:
		return gzip.NewWriter(w), nil
	case Snappy:
		return snappy.NewBufferedWriter(w), nil
	case Zstandard:
		return zstdNewWriter(w)
	default:
		return nil, fmt.Errorf("unsupported codec %q", string(codec))
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

var errZstdDisabled = fmt.Errorf("zstandard was not enabled at compile time")

var (
	zstdCheckLevel = func(int) error { return errZstdDisabled }
	zstdNewReader  = func(io.Reader) (io.ReadCloser, error) { return nil, errZstdDisabled }
	zstdNewWriter  = func(io.Writer) (io.WriteCloser, error) { return nil, errZstdDisabled }
)
