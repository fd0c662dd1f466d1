package adaptive

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"runtime"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the required key length in bytes.
const KeySize = 32

// CipherType identifies the cipher algorithm.
type CipherType string

const (
	CipherAESGCM   CipherType = "aes-gcm"
	CipherChaCha20 CipherType = "chacha20-poly1305"
)

// tag returns the one-byte prefix stored with sealed values.
func (t CipherType) tag() byte {
	switch t {
	case CipherAESGCM:
		return 1
	case CipherChaCha20:
		return 2
	default:
		return 0
	}
}

func typeForTag(tag byte) (CipherType, bool) {
	switch tag {
	case 1:
		return CipherAESGCM, true
	case 2:
		return CipherChaCha20, true
	default:
		return "", false
	}
}

// Cipher provides authenticated encryption with a random nonce per call.
type Cipher struct {
	typ  CipherType
	aead cipher.AEAD
}

// NewCipher creates a cipher of the given type from a 32-byte key.
func NewCipher(key []byte, typ CipherType) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("adaptive: key must be %d bytes, got %d", KeySize, len(key))
	}

	var (
		aead cipher.AEAD
		err  error
	)
	switch typ {
	case CipherAESGCM:
		var block cipher.Block
		block, err = aes.NewCipher(key)
		if err == nil {
			aead, err = cipher.NewGCM(block)
		}
	case CipherChaCha20:
		aead, err = chacha20poly1305.New(key)
	default:
		return nil, errors.New("adaptive: unknown cipher type: " + string(typ))
	}
	if err != nil {
		return nil, fmt.Errorf("adaptive: %s: %w", typ, err)
	}
	return &Cipher{typ: typ, aead: aead}, nil
}

// PreferredType returns the cipher best suited to this CPU.
// Go uses AES hardware instructions on amd64 and arm64.
func PreferredType() CipherType {
	switch runtime.GOARCH {
	case "amd64", "arm64":
		return CipherAESGCM
	default:
		return CipherChaCha20
	}
}

// Type returns the cipher type.
func (c *Cipher) Type() CipherType { return c.typ }

// Overhead returns the bytes added by Encrypt.
func (c *Cipher) Overhead() int { return c.aead.NonceSize() + c.aead.Overhead() }

// Encrypt returns nonce||ciphertext.
func (c *Cipher) Encrypt(plaintext, additionalData []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return c.aead.Seal(nonce, nonce, plaintext, additionalData), nil
}

// Decrypt reverses Encrypt.
func (c *Cipher) Decrypt(ciphertext, additionalData []byte) ([]byte, error) {
	n := c.aead.NonceSize()
	if len(ciphertext) < n {
		return nil, errors.New("adaptive: ciphertext too short")
	}
	return c.aead.Open(nil, ciphertext[:n], ciphertext[n:], additionalData)
}
