package storage

import (
	"encoding/json"
	"fmt"

	"github.com/annel0/voxel-editor/internal/world"
	"github.com/klauspost/compress/zstd"
)

// codec упаковывает VolumeData в JSON, сжатый zstd.
// Encoder и Decoder в режиме EncodeAll/DecodeAll безопасны для конкурентного использования.
type codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func newCodec() (*codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("не удалось создать zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("не удалось создать zstd decoder: %w", err)
	}
	return &codec{encoder: enc, decoder: dec}, nil
}

func (c *codec) encode(data *world.VolumeData) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации объёма: %w", err)
	}
	return c.encoder.EncodeAll(raw, make([]byte, 0, len(raw)/4)), nil
}

func (c *codec) decode(payload []byte) (*world.VolumeData, error) {
	raw, err := c.decoder.DecodeAll(payload, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка распаковки объёма: %w", err)
	}
	var data world.VolumeData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("ошибка десериализации объёма: %w", err)
	}
	return &data, nil
}

func (c *codec) close() {
	c.encoder.Close()
	c.decoder.Close()
}
