package codec

import (
	"encoding/hex"
	"flag"
	"fmt"

	"github.com/klauspost/compress/gzip"
)

const (
	EncryptionAESCBC = "aes-cbc"
	EncryptionNone   = "none"
)

// Shared by every producer and consumer of embedded line maps. Changing them
// makes previously written resources unreadable.
const (
	DefaultKey = "6c696e656d61702e7265736f757263652e656e6372797074696f6e2e6b657921"
	DefaultIV  = "6c696e656d61702d6362632d69762d31"
)

type Config struct {
	Encryption       string `yaml:"encryption"`
	Key              string `yaml:"key"`
	IV               string `yaml:"iv"`
	CompressionLevel int    `yaml:"compression_level" category:"advanced"`
}

func DefaultConfig() Config {
	return Config{
		Encryption:       EncryptionAESCBC,
		Key:              DefaultKey,
		IV:               DefaultIV,
		CompressionLevel: gzip.DefaultCompression,
	}
}

func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	d := DefaultConfig()
	f.StringVar(&cfg.Encryption, "codec.encryption", d.Encryption, fmt.Sprintf("Payload encryption, one of %q or %q.", EncryptionAESCBC, EncryptionNone))
	f.StringVar(&cfg.Key, "codec.key", d.Key, "Hex encoded 32 byte AES key.")
	f.StringVar(&cfg.IV, "codec.iv", d.IV, "Hex encoded 16 byte AES initialization vector.")
	f.IntVar(&cfg.CompressionLevel, "codec.compression-level", d.CompressionLevel, "Gzip compression level, -2 (huffman only) to 9.")
}

func (cfg *Config) Validate() error {
	switch cfg.Encryption {
	case EncryptionAESCBC:
		if _, err := decodeHex(cfg.Key, keySize); err != nil {
			return fmt.Errorf("invalid codec key: %w", err)
		}
		if _, err := decodeHex(cfg.IV, blockSize); err != nil {
			return fmt.Errorf("invalid codec iv: %w", err)
		}
	case EncryptionNone:
	default:
		return fmt.Errorf("unsupported codec encryption %q", cfg.Encryption)
	}
	if cfg.CompressionLevel < gzip.HuffmanOnly || cfg.CompressionLevel > gzip.BestCompression {
		return fmt.Errorf("invalid compression level %d", cfg.CompressionLevel)
	}
	return nil
}

func decodeHex(s string, size int) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) != size {
		return nil, fmt.Errorf("expected %d bytes, got %d", size, len(b))
	}
	return b, nil
}
