// Package fileblocks encodes a file as a sequence of fixed-size blocks of
// checkpoint records, and decodes such a sequence back into a file.
//
// The encoding is a signed block count, followed by that number of string
// buffers. Each buffer holds BlockSize bytes of the file, except the last
// which may be shorter. There's no checksum or versioning: a file decoded
// from its encoding is byte-for-byte identical to the original.
package fileblocks

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"go.gazette.dev/sqlkv/sqlerr"
)

// DefaultBlockSize is the default size of an encoded block.
const DefaultBlockSize = 40960

// Writer of checkpoint records. host.RDBWriter is a Writer.
type Writer interface {
	SaveSigned(int64) error
	SaveStringBuffer([]byte) error
}

// Reader of checkpoint records. host.RDBReader is a Reader.
type Reader interface {
	LoadSigned() (int64, error)
	LoadStringBuffer() ([]byte, error)
}

// File is an open file to be encoded. *os.File and afero.File are Files.
type File interface {
	io.Reader
	Stat() (os.FileInfo, error)
}

// Encode |f| into |w| as blocks of |blockSize| bytes, reading from the
// current offset of |f|.
func Encode(w Writer, f File, blockSize int) error {
	if blockSize <= 0 {
		return errors.Errorf("invalid block size %d", blockSize)
	}
	var info, err = f.Stat()
	if err != nil {
		return sqlerr.NewIO(err, "failed to stat file to encode")
	}
	var size = info.Size()
	var count = (size + int64(blockSize) - 1) / int64(blockSize)

	if err = w.SaveSigned(count); err != nil {
		return err
	}
	var buf = make([]byte, blockSize)

	for i := int64(0); i != count; i++ {
		var n, err = io.ReadFull(f, buf)
		if err == io.ErrUnexpectedEOF && i+1 == count {
			err = nil // Final, partial block.
		}
		if err != nil {
			return sqlerr.NewIO(err, "failed to read block of file to encode")
		}
		if err = w.SaveStringBuffer(buf[:n]); err != nil {
			return err
		}
	}
	return nil
}

// Decode blocks from |r| into |w|, returning the number of bytes written.
// A zero-length block ends decoding, even before the encoded block count
// is reached.
func Decode(r Reader, w io.Writer) (int64, error) {
	var count, err = r.LoadSigned()
	if err != nil {
		return 0, err
	} else if count < 0 {
		return 0, sqlerr.New(sqlerr.IO, "invalid block count",
			"the encoded file has a negative number of blocks")
	}
	var total int64

	for i := int64(0); i != count; i++ {
		var b, err = r.LoadStringBuffer()
		if err != nil {
			return total, err
		} else if len(b) == 0 {
			break
		}
		if _, err = w.Write(b); err != nil {
			return total, sqlerr.NewIO(err, "failed to write decoded block")
		}
		total += int64(len(b))
	}
	return total, nil
}
