// Package adaptive provides at-rest encryption for stored values.
//
// A Sealer picks AES-256-GCM when the CPU has AES acceleration and
// ChaCha20-Poly1305 otherwise. Every sealed value starts with a one-byte
// cipher tag, so a database written on one machine opens on another
// regardless of which algorithm each prefers.
//
// Sealed layout:
//
//	[tag:1][nonce][ciphertext+auth tag]
//
// Usage:
//
//	key, err := adaptive.ParseKey(cfg.Security.EncryptionKey)
//	s, err := adaptive.NewSealer(key)
//	sealed, err := s.Seal(value, storageKey)
//	value, err := s.Open(sealed, storageKey)
package adaptive
