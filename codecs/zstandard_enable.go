//go:build !nozstd

package codecs

import (
	"fmt"
	"io"

	"github.com/DataDog/zstd"
)

func init() {
	zstdCheckLevel = func(level int) error {
		if level < zstd.BestSpeed || level > zstd.BestCompression {
			return fmt.Errorf("zstandard level %d is not in [%d, %d]",
				level, zstd.BestSpeed, zstd.BestCompression)
		}
		return nil
	}
	zstdNewReader = func(r io.Reader) (io.ReadCloser, error) { return zstd.NewReader(r), nil }
	zstdNewWriter = func(w io.Writer) (io.WriteCloser, error) {
		if err := zstdCheckLevel(ZstandardLevel); err != nil {
			return nil, err
		}
		return zstd.NewWriterLevel(w, ZstandardLevel), nil
	}
}
