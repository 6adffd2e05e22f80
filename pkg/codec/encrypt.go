package codec

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
)

const (
	keySize   = 32
	blockSize = aes.BlockSize
)

// cbc is AES-256 in CBC mode with PKCS#7 padding and a fixed IV.
type cbc struct {
	block cipher.Block
	iv    []byte
}

func newCBC(key, iv []byte) (*cbc, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &cbc{block: block, iv: bytes.Clone(iv)}, nil
}

func (c *cbc) encrypt(p []byte) []byte {
	pad := blockSize - len(p)%blockSize
	out := make([]byte, len(p)+pad)
	copy(out, p)
	for i := len(p); i < len(out); i++ {
		out[i] = byte(pad)
	}
	cipher.NewCBCEncrypter(c.block, c.iv).CryptBlocks(out, out)
	return out
}

func (c *cbc) decrypt(p []byte) ([]byte, error) {
	if len(p) == 0 || len(p)%blockSize != 0 {
		return nil, errTruncated
	}
	out := make([]byte, len(p))
	cipher.NewCBCDecrypter(c.block, c.iv).CryptBlocks(out, p)
	pad := int(out[len(out)-1])
	if pad == 0 || pad > blockSize {
		return nil, errBadPadding
	}
	for _, b := range out[len(out)-pad:] {
		if int(b) != pad {
			return nil, errBadPadding
		}
	}
	return out[:len(out)-pad], nil
}
