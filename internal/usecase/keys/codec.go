package keys

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
)

// zstd frame magic number; anything else is read as plain JSON.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// snapshot is the persisted form of the key index.
type snapshot struct {
	Keys        []string  `json:"keys"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

type codec struct {
	compress bool
	enc      *zstd.Encoder
	dec      *zstd.Decoder
}

func newCodec(compress bool) (*codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &codec{compress: compress, enc: enc, dec: dec}, nil
}

func (c *codec) encode(snap *snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	if !c.compress {
		return data, nil
	}
	return c.enc.EncodeAll(data, nil), nil
}

// decode accepts both compressed and plain snapshots, so toggling compression
// does not invalidate what is already stored.
func (c *codec) decode(data []byte) (*snapshot, error) {
	if bytes.HasPrefix(data, zstdMagic) {
		plain, err := c.dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("decode zstd snapshot: %w", err)
		}
		data = plain
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}
