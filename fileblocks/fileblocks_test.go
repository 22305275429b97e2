package fileblocks

import (
	"bytes"
	"io"
	"math/rand"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.gazette.dev/sqlkv/host"
	"go.gazette.dev/sqlkv/sqlerr"
)

func TestRoundTripSizes(t *testing.T) {
	const bs = 1024
	var fs = afero.NewMemMapFs()

	for _, tc := range []struct {
		size   int
		blocks int64
	}{
		{0, 0},
		{1, 1},
		{bs, 1},
		{bs + 1, 2},
		{3*bs + 17, 4},
	} {
		var content = make([]byte, tc.size)
		rand.New(rand.NewSource(int64(tc.size))).Read(content)
		require.NoError(t, afero.WriteFile(fs, "/src", content, 0644))

		var f, err = fs.Open("/src")
		require.NoError(t, err)

		var enc bytes.Buffer
		var w = host.NewRDBWriter(&enc)
		require.NoError(t, Encode(w, f, bs))
		require.NoError(t, w.Flush())
		require.NoError(t, f.Close())

		// The leading record is the block count.
		count, err := host.NewRDBReader(bytes.NewReader(enc.Bytes())).LoadSigned()
		require.NoError(t, err)
		require.Equal(t, tc.blocks, count)

		out, err := fs.OpenFile("/dst", os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
		require.NoError(t, err)
		n, err := Decode(host.NewRDBReader(&enc), out)
		require.NoError(t, err)
		require.NoError(t, out.Close())
		require.Equal(t, int64(tc.size), n)

		decoded, err := afero.ReadFile(fs, "/dst")
		require.NoError(t, err)
		require.Equal(t, content, decoded)
	}
}

func TestDecodeStopsAtEmptyBlock(t *testing.T) {
	var rec = &records{ints: []int64{3}, bufs: [][]byte{[]byte("abc"), {}, []byte("never")}}

	var out bytes.Buffer
	var n, err = Decode(rec, &out)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
	require.Equal(t, "abc", out.String())
	require.Len(t, rec.bufs, 1) // The block after the empty one isn't read.
}

func TestDecodeErrors(t *testing.T) {
	var _, err = Decode(&records{ints: []int64{-1}}, io.Discard)
	require.Equal(t, sqlerr.IO, sqlerr.KindOf(err))

	// Fewer blocks than declared.
	var enc bytes.Buffer
	var w = host.NewRDBWriter(&enc)
	require.NoError(t, w.SaveSigned(2))
	require.NoError(t, w.SaveStringBuffer([]byte("abc")))
	require.NoError(t, w.Flush())

	_, err = Decode(host.NewRDBReader(&enc), io.Discard)
	require.Equal(t, sqlerr.IO, sqlerr.KindOf(err))

	require.EqualError(t, Encode(w, nil, 0), "invalid block size 0")
}

type records struct {
	ints []int64
	bufs [][]byte
}

func (r *records) LoadSigned() (int64, error) {
	var v = r.ints[0]
	r.ints = r.ints[1:]
	return v, nil
}

func (r *records) LoadStringBuffer() ([]byte, error) {
	var b = r.bufs[0]
	r.bufs = r.bufs[1:]
	return b, nil
}
