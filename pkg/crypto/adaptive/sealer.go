package adaptive

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownTag is returned when a sealed value carries no known cipher tag.
var ErrUnknownTag = errors.New("adaptive: unknown cipher tag")

// Sealer seals values with the preferred cipher and opens values sealed by
// either cipher.
type Sealer struct {
	primary *Cipher
	byType  map[CipherType]*Cipher
}

// NewSealer creates a sealer that writes with PreferredType().
func NewSealer(key []byte) (*Sealer, error) {
	return NewSealerWithType(key, PreferredType())
}

// NewSealerWithType creates a sealer that writes with typ.
func NewSealerWithType(key []byte, typ CipherType) (*Sealer, error) {
	s := &Sealer{byType: make(map[CipherType]*Cipher, 2)}
	for _, t := range []CipherType{CipherAESGCM, CipherChaCha20} {
		c, err := NewCipher(key, t)
		if err != nil {
			return nil, err
		}
		s.byType[t] = c
	}
	primary, ok := s.byType[typ]
	if !ok {
		return nil, errors.New("adaptive: unknown cipher type: " + string(typ))
	}
	s.primary = primary
	return s, nil
}

// Type returns the cipher used by Seal.
func (s *Sealer) Type() CipherType { return s.primary.Type() }

// Seal encrypts plaintext bound to aad.
func (s *Sealer) Seal(plaintext, aad []byte) ([]byte, error) {
	ct, err := s.primary.Encrypt(plaintext, aad)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 1+len(ct))
	out = append(out, s.primary.Type().tag())
	return append(out, ct...), nil
}

// Open decrypts a value produced by Seal with the same aad.
func (s *Sealer) Open(sealed, aad []byte) ([]byte, error) {
	if len(sealed) == 0 {
		return nil, errors.New("adaptive: empty sealed value")
	}
	typ, ok := typeForTag(sealed[0])
	if !ok {
		return nil, ErrUnknownTag
	}
	plain, err := s.byType[typ].Decrypt(sealed[1:], aad)
	if err != nil {
		return nil, fmt.Errorf("adaptive: open: %w", err)
	}
	return plain, nil
}

// ParseKey decodes a 32-byte key given as 64 hex characters or standard
// base64.
func ParseKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("adaptive: empty key")
	}
	if len(s) == hex.EncodedLen(KeySize) {
		if key, err := hex.DecodeString(s); err == nil {
			return key, nil
		}
	}
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("adaptive: key is neither hex nor base64")
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("adaptive: key must be %d bytes, got %d", KeySize, len(key))
	}
	return key, nil
}
