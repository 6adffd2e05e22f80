// Package codec converts line maps to and from the opaque byte blob that is
// embedded in a module: serialized, gzip compressed and AES encrypted.
package codec

import (
	"github.com/pkg/errors"

	"github.com/grafana/linemap/pkg/linemap"
)

// Codec is safe for concurrent use.
type Codec struct {
	cfg        Config
	compressor *compressor
	cipher     *cbc
}

func New(cfg Config) (*Codec, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Codec{
		cfg:        cfg,
		compressor: newCompressor(cfg.CompressionLevel),
	}
	if cfg.Encryption == EncryptionAESCBC {
		key, _ := decodeHex(cfg.Key, keySize)
		iv, _ := decodeHex(cfg.IV, blockSize)
		var err error
		if c.cipher, err = newCBC(key, iv); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Encode is deterministic: equal maps give byte-identical blobs.
func (c *Codec) Encode(m *linemap.LineMap) ([]byte, error) {
	if m == nil {
		return nil, errors.New("encode line map: nil map")
	}
	if err := m.Validate(); err != nil {
		return nil, errors.Wrap(err, "encode line map")
	}
	b, err := c.compressor.compress(serialize(m))
	if err != nil {
		return nil, errors.Wrap(err, "encode line map")
	}
	if c.cipher != nil {
		b = c.cipher.encrypt(b)
	}
	return b, nil
}

// Decode reverses Encode. Any failure is a *DecodeFailure naming the stage
// that rejected the input.
func (c *Codec) Decode(b []byte) (*linemap.LineMap, error) {
	if c.cipher != nil {
		var err error
		if b, err = c.cipher.decrypt(b); err != nil {
			return nil, &DecodeFailure{Stage: Decrypt, Err: err}
		}
	}
	b, err := decompress(b)
	if err != nil {
		return nil, &DecodeFailure{Stage: Decompress, Err: err}
	}
	m, err := deserialize(b)
	if err != nil {
		return nil, &DecodeFailure{Stage: Deserialize, Err: err}
	}
	return m, nil
}
