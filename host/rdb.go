package host

import (
	"bufio"
	"encoding/binary"
	"io"

	"go.gazette.dev/sqlkv/sqlerr"
)

// maxStringBuffer bounds the length of a loaded string buffer, so that
// a corrupt length prefix doesn't exhaust memory.
const maxStringBuffer = 1 << 30

// RDBWriter writes the records of a checkpoint.
type RDBWriter struct {
	bw  *bufio.Writer
	buf [binary.MaxVarintLen64]byte
}

// NewRDBWriter returns an RDBWriter of |w|. Flush must be called once all
// records are written.
func NewRDBWriter(w io.Writer) *RDBWriter { return &RDBWriter{bw: bufio.NewWriter(w)} }

// SaveSigned writes a signed integer.
func (w *RDBWriter) SaveSigned(v int64) error { return w.SaveUnsigned(uint64(v)) }

// SaveUnsigned writes an unsigned integer.
func (w *RDBWriter) SaveUnsigned(v uint64) error {
	binary.BigEndian.PutUint64(w.buf[:8], v)
	return w.write(w.buf[:8])
}

// SaveStringBuffer writes a length-prefixed byte string.
func (w *RDBWriter) SaveStringBuffer(b []byte) error {
	var n = binary.PutUvarint(w.buf[:], uint64(len(b)))
	if err := w.write(w.buf[:n]); err != nil {
		return err
	}
	return w.write(b)
}

// SaveString writes a length-prefixed string.
func (w *RDBWriter) SaveString(s string) error { return w.SaveStringBuffer([]byte(s)) }

// Flush buffered records to the underlying Writer.
func (w *RDBWriter) Flush() error {
	if err := w.bw.Flush(); err != nil {
		return sqlerr.NewIO(err, "failed to flush checkpoint records")
	}
	return nil
}

func (w *RDBWriter) write(b []byte) error {
	if _, err := w.bw.Write(b); err != nil {
		return sqlerr.NewIO(err, "failed to write checkpoint record")
	}
	return nil
}

// RDBReader reads the records of a checkpoint.
type RDBReader struct {
	br  *bufio.Reader
	buf [8]byte
}

// NewRDBReader returns an RDBReader of |r|.
func NewRDBReader(r io.Reader) *RDBReader { return &RDBReader{br: bufio.NewReader(r)} }

// LoadSigned reads a signed integer.
func (r *RDBReader) LoadSigned() (int64, error) {
	var v, err = r.LoadUnsigned()
	return int64(v), err
}

// LoadUnsigned reads an unsigned integer.
func (r *RDBReader) LoadUnsigned() (uint64, error) {
	if _, err := io.ReadFull(r.br, r.buf[:]); err != nil {
		return 0, readError(err)
	}
	return binary.BigEndian.Uint64(r.buf[:]), nil
}

// LoadStringBuffer reads a length-prefixed byte string.
func (r *RDBReader) LoadStringBuffer() ([]byte, error) {
	var n, err = binary.ReadUvarint(r.br)
	if err != nil {
		return nil, readError(err)
	} else if n > maxStringBuffer {
		return nil, sqlerr.New(sqlerr.IO, "string buffer too large",
			"the checkpoint holds a string longer than the permitted maximum")
	}
	var b = make([]byte, n)
	if _, err = io.ReadFull(r.br, b); err != nil {
		return nil, readError(err)
	}
	return b, nil
}

// LoadString reads a length-prefixed string.
func (r *RDBReader) LoadString() (string, error) {
	var b, err = r.LoadStringBuffer()
	return string(b), err
}

func readError(err error) error {
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return sqlerr.NewIO(err, "failed to read checkpoint record")
}
