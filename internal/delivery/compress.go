package delivery

import (
	"fmt"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"

	"github.com/arkilian/beacon/internal/config"
)

var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdErr     error
)

// sharedZstdEncoder returns a process-wide encoder. EncodeAll is safe for
// concurrent use.
func sharedZstdEncoder() (*zstd.Encoder, error) {
	zstdOnce.Do(func() {
		zstdEncoder, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})
	return zstdEncoder, zstdErr
}

// compress encodes body and returns the Content-Encoding value to send.
func compress(body []byte, encoding string) ([]byte, string, error) {
	switch encoding {
	case config.CompressionNone, "":
		return body, "", nil
	case config.CompressionSnappy:
		return snappy.Encode(nil, body), "snappy", nil
	case config.CompressionZstd:
		enc, err := sharedZstdEncoder()
		if err != nil {
			return nil, "", fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		return enc.EncodeAll(body, make([]byte, 0, len(body)/2)), "zstd", nil
	default:
		return nil, "", fmt.Errorf("unsupported compression: %s", encoding)
	}
}
