package tuya

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

const aesBlockSize = 16

// ecbEncrypter/ecbDecrypter implement cipher.BlockMode for AES-ECB. The
// standard library deliberately omits ECB (each block is encrypted
// independently, with no chaining), but the Tuya v3.3 wire protocol requires
// it, so it is implemented here directly against the block cipher.
type ecbEncrypter struct{ b cipher.Block }
type ecbDecrypter struct{ b cipher.Block }

func newECBEncrypter(b cipher.Block) cipher.BlockMode { return ecbEncrypter{b} }
func newECBDecrypter(b cipher.Block) cipher.BlockMode { return ecbDecrypter{b} }

func (e ecbEncrypter) BlockSize() int { return e.b.BlockSize() }
func (e ecbEncrypter) CryptBlocks(dst, src []byte) {
	for len(src) > 0 {
		e.b.Encrypt(dst, src[:e.b.BlockSize()])
		src, dst = src[e.b.BlockSize():], dst[e.b.BlockSize():]
	}
}

func (d ecbDecrypter) BlockSize() int { return d.b.BlockSize() }
func (d ecbDecrypter) CryptBlocks(dst, src []byte) {
	for len(src) > 0 {
		d.b.Decrypt(dst, src[:d.b.BlockSize()])
		src, dst = src[d.b.BlockSize():], dst[d.b.BlockSize():]
	}
}

// aesCipher wraps an opaque 16-byte AES key. The key is never logged or
// serialized.
type aesCipher struct {
	block cipher.Block
}

func newAESCipher(key []byte) (*aesCipher, error) {
	if len(key) != 16 {
		return nil, fmt.Errorf("tuya: aes key must be 16 bytes, got %d", len(key))
	}
	b, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &aesCipher{block: b}, nil
}

// encrypt PKCS#7-pads s to a multiple of the block size and encrypts it in
// ECB mode. Empty input passes through unchanged.
func (c *aesCipher) encrypt(s []byte) []byte {
	if len(s) == 0 {
		return s
	}
	padded := pkcs7Pad(s, aesBlockSize)
	out := make([]byte, len(padded))
	newECBEncrypter(c.block).CryptBlocks(out, padded)
	return out
}

// decrypt reverses encrypt. Empty input passes through unchanged.
func (c *aesCipher) decrypt(s []byte) ([]byte, error) {
	if len(s) == 0 {
		return s, nil
	}
	if len(s)%aesBlockSize != 0 {
		return nil, fmt.Errorf("tuya: ciphertext length %d not a multiple of %d", len(s), aesBlockSize)
	}
	out := make([]byte, len(s))
	newECBDecrypter(c.block).CryptBlocks(out, s)
	return pkcs7Unpad(out, aesBlockSize)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+n)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	n := len(data)
	if n == 0 || n%blockSize != 0 {
		return nil, fmt.Errorf("tuya: invalid padded length %d", n)
	}
	pad := int(data[n-1])
	if pad == 0 || pad > blockSize || pad > n {
		return nil, fmt.Errorf("tuya: invalid pkcs7 padding byte %d", pad)
	}
	for _, b := range data[n-pad:] {
		if int(b) != pad {
			return nil, fmt.Errorf("tuya: invalid pkcs7 padding")
		}
	}
	return data[:n-pad], nil
}
